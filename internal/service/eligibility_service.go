package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/noah-isme/campus-timetable-api/internal/dto"
	"github.com/noah-isme/campus-timetable-api/internal/models"
	appErrors "github.com/noah-isme/campus-timetable-api/pkg/errors"
)

type eligibilityReader interface {
	FindCourse(ctx context.Context, collegeID, courseID string) (*models.Course, error)
	ListCoursesWithActiveStudents(ctx context.Context, collegeID string) ([]models.Course, error)
	CountActiveStudents(ctx context.Context, collegeID string, courseID *string) (int, error)
	ListCourseUnits(ctx context.Context, collegeID, courseID string, semester int) ([]models.CourseUnit, error)
}

// EligibilityResult lists the units a run must schedule. Reason explains an empty list.
type EligibilityResult struct {
	Units  []models.SchedulableUnit
	Course *models.Course
	Reason dto.FailureReason
}

// EligibilityResolver decides which (course, unit) pairs a run schedules.
type EligibilityResolver struct {
	academics eligibilityReader
}

// NewEligibilityResolver constructs an EligibilityResolver.
func NewEligibilityResolver(academics eligibilityReader) *EligibilityResolver {
	return &EligibilityResolver{academics: academics}
}

// Resolve returns lecturer-assigned units of courses with active students for the scope's semester,
// in course name then year of study and unit code order.
func (r *EligibilityResolver) Resolve(ctx context.Context, scope models.RunScope) (EligibilityResult, error) {
	if scope.General() {
		return r.resolveGeneral(ctx, scope)
	}
	return r.resolveCourse(ctx, scope)
}

func (r *EligibilityResolver) resolveCourse(ctx context.Context, scope models.RunScope) (EligibilityResult, error) {
	result := EligibilityResult{Units: []models.SchedulableUnit{}}

	course, err := r.academics.FindCourse(ctx, scope.CollegeID, *scope.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	result.Course = course

	active, err := r.academics.CountActiveStudents(ctx, scope.CollegeID, &course.ID)
	if err != nil {
		return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count active students")
	}
	if active == 0 {
		result.Reason = dto.ReasonNoActiveStudents
		return result, nil
	}

	assignments, err := r.academics.ListCourseUnits(ctx, scope.CollegeID, course.ID, scope.Semester)
	if err != nil {
		return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course units")
	}
	if len(assignments) == 0 {
		result.Reason = dto.ReasonNoUnitsAssigned
		return result, nil
	}

	result.Units = appendSchedulable(result.Units, *course, assignments)
	if len(result.Units) == 0 {
		result.Reason = dto.ReasonUnitsMissingLecturers
	}
	return result, nil
}

func (r *EligibilityResolver) resolveGeneral(ctx context.Context, scope models.RunScope) (EligibilityResult, error) {
	result := EligibilityResult{Units: []models.SchedulableUnit{}}

	courses, err := r.academics.ListCoursesWithActiveStudents(ctx, scope.CollegeID)
	if err != nil {
		return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}
	if len(courses) == 0 {
		result.Reason = dto.ReasonNoActiveStudents
		return result, nil
	}

	sawAssignments := false
	for _, course := range courses {
		assignments, err := r.academics.ListCourseUnits(ctx, scope.CollegeID, course.ID, scope.Semester)
		if err != nil {
			return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course units")
		}
		if len(assignments) > 0 {
			sawAssignments = true
		}
		result.Units = appendSchedulable(result.Units, course, assignments)
	}

	if len(result.Units) == 0 {
		if sawAssignments {
			result.Reason = dto.ReasonUnitsMissingLecturers
		} else {
			result.Reason = dto.ReasonNoUnitsAssigned
		}
	}
	return result, nil
}

func appendSchedulable(dst []models.SchedulableUnit, course models.Course, assignments []models.CourseUnit) []models.SchedulableUnit {
	for _, assignment := range assignments {
		if !assignment.HasLecturer() {
			continue
		}
		username := ""
		if assignment.LecturerUsername != nil {
			username = *assignment.LecturerUsername
		}
		dst = append(dst, models.SchedulableUnit{
			CourseID:         course.ID,
			CourseName:       course.Name,
			UnitID:           assignment.UnitID,
			UnitCode:         assignment.UnitCode,
			UnitName:         assignment.UnitName,
			LecturerID:       *assignment.LecturerID,
			LecturerUsername: username,
		})
	}
	return dst
}
