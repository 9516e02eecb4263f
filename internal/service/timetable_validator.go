package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/campus-timetable-api/internal/dto"
	"github.com/noah-isme/campus-timetable-api/internal/models"
	appErrors "github.com/noah-isme/campus-timetable-api/pkg/errors"
)

const (
	excludedCourseDisplayLimit  = 5
	missingLecturerDisplayLimit = 10
)

type referenceLister interface {
	ListDays(ctx context.Context) ([]models.Day, error)
	ListTimeSlots(ctx context.Context) ([]models.TimeSlot, error)
	ListClassrooms(ctx context.Context, collegeID string) ([]models.Classroom, error)
	ListLecturers(ctx context.Context, collegeID string) ([]models.Lecturer, error)
}

type prerequisiteReader interface {
	eligibilityReader
	FindCollege(ctx context.Context, id string) (*models.College, error)
	ListCourses(ctx context.Context, collegeID string) ([]models.Course, error)
}

// TimetableValidator runs the pre-flight checks that gate generation.
type TimetableValidator struct {
	reference referenceLister
	academics prerequisiteReader
}

// NewTimetableValidator constructs a TimetableValidator.
func NewTimetableValidator(reference referenceLister, academics prerequisiteReader) *TimetableValidator {
	return &TimetableValidator{reference: reference, academics: academics}
}

// Validate checks reference data, lecturers, enrolments and unit assignments for the scope.
// Findings are returned as data; the error is reserved for lookups that failed.
func (v *TimetableValidator) Validate(ctx context.Context, scope models.RunScope) (dto.ValidationResult, error) {
	result := dto.ValidationResult{Errors: []string{}, Recommendations: []string{}}

	college, err := v.academics.FindCollege(ctx, scope.CollegeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result, appErrors.Clone(appErrors.ErrNotFound, "college not found")
		}
		return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load college")
	}

	if err := v.checkResources(ctx, college, &result); err != nil {
		return result, err
	}

	active, err := v.academics.CountActiveStudents(ctx, college.ID, nil)
	if err != nil {
		return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count active students")
	}
	if active == 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("No active students found for %s. Timetable generation requires at least one active student.", college.Name))
		result.Recommendations = append(result.Recommendations, "Enroll active students before generating timetable")
		return result, nil
	}

	if scope.General() {
		err = v.checkGeneral(ctx, college, scope.Semester, &result)
	} else {
		err = v.checkCourse(ctx, college, *scope.CourseID, scope.Semester, &result)
	}
	if err != nil {
		return result, err
	}

	result.IsValid = len(result.Errors) == 0
	return result, nil
}

func (v *TimetableValidator) checkResources(ctx context.Context, college *models.College, result *dto.ValidationResult) error {
	days, err := v.reference.ListDays(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable days")
	}
	if len(days) == 0 {
		result.Errors = append(result.Errors, "No timetable days configured. Please add days (Monday, Tuesday, etc.) in the admin panel.")
	}

	slots, err := v.reference.ListTimeSlots(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time slots")
	}
	if len(slots) == 0 {
		result.Errors = append(result.Errors, "No time slots configured. Please add time slots (e.g., 08:00-09:00) in the admin panel.")
	}

	rooms, err := v.reference.ListClassrooms(ctx, college.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classrooms")
	}
	if len(rooms) == 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("No classrooms configured for %s. Please add classrooms in the admin panel.", college.Name))
	}

	lecturers, err := v.reference.ListLecturers(ctx, college.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lecturers")
	}
	if len(lecturers) == 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("No lecturers found for %s. Please add lecturers first.", college.Name))
	}
	return nil
}

func (v *TimetableValidator) checkCourse(ctx context.Context, college *models.College, courseID string, semester int, result *dto.ValidationResult) error {
	course, err := v.academics.FindCourse(ctx, college.ID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			result.Errors = append(result.Errors, fmt.Sprintf("Course '%s' not found for %s.", courseID, college.Name))
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	active, err := v.academics.CountActiveStudents(ctx, college.ID, &course.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count active students")
	}
	if active == 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("Course '%s' has no active students assigned.", course.Name))
		result.Recommendations = append(result.Recommendations, fmt.Sprintf("Deactivate course '%s' or enroll active students", course.Name))
		return nil
	}

	assignments, err := v.academics.ListCourseUnits(ctx, college.ID, course.ID, semester)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course units")
	}
	if len(assignments) == 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("Course '%s' has enrolled students but no units assigned.", course.Name))
		result.Recommendations = append(result.Recommendations, fmt.Sprintf("Assign units to course '%s' before generating timetable", course.Name))
		return nil
	}

	var missing []string
	for _, assignment := range assignments {
		if !assignment.HasLecturer() {
			missing = append(missing, assignment.UnitCode)
		}
	}
	if len(missing) > 0 {
		result.Errors = append(result.Errors, missingLecturersMessage(missing))
	}
	return nil
}

func (v *TimetableValidator) checkGeneral(ctx context.Context, college *models.College, semester int, result *dto.ValidationResult) error {
	withStudents, err := v.academics.ListCoursesWithActiveStudents(ctx, college.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}
	if len(withStudents) == 0 {
		result.Errors = append(result.Errors, "No eligible courses found for timetable generation. All courses have zero active students.")
		result.Recommendations = append(result.Recommendations, "Enroll active students to courses before generating timetable")
		return nil
	}

	var withoutUnits, missing []string
	eligible := 0
	enrolled := make(map[string]struct{}, len(withStudents))
	for _, course := range withStudents {
		enrolled[course.ID] = struct{}{}
		assignments, err := v.academics.ListCourseUnits(ctx, college.ID, course.ID, semester)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course units")
		}
		if len(assignments) == 0 {
			withoutUnits = append(withoutUnits, course.Name)
			continue
		}
		complete := true
		for _, assignment := range assignments {
			if !assignment.HasLecturer() {
				missing = append(missing, fmt.Sprintf("%s (%s)", assignment.UnitCode, course.Name))
				complete = false
			}
		}
		if complete {
			eligible++
		}
	}

	for _, name := range withoutUnits {
		result.Errors = append(result.Errors, fmt.Sprintf("Course '%s' has enrolled students but no units assigned.", name))
		result.Recommendations = append(result.Recommendations, fmt.Sprintf("Assign units to course '%s' before generating timetable", name))
	}

	all, err := v.academics.ListCourses(ctx, college.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}
	var excluded []string
	for _, course := range all {
		if _, ok := enrolled[course.ID]; !ok {
			excluded = append(excluded, course.Name)
		}
	}
	if len(excluded) > 0 {
		if len(excluded) > excludedCourseDisplayLimit {
			excluded = excluded[:excludedCourseDisplayLimit]
		}
		result.Recommendations = append(result.Recommendations,
			fmt.Sprintf("The following courses have no active students and will be excluded: %s", strings.Join(excluded, ", ")))
	}

	if len(missing) > 0 {
		if len(missing) > missingLecturerDisplayLimit {
			missing = missing[:missingLecturerDisplayLimit]
		}
		result.Errors = append(result.Errors, missingLecturersMessage(missing))
	}

	if eligible == 0 && len(withoutUnits) == 0 {
		result.Errors = append(result.Errors, "No eligible courses found for timetable generation.")
		result.Recommendations = append(result.Recommendations, "Ensure courses have both active students and assigned units with lecturers")
	}
	return nil
}

func missingLecturersMessage(units []string) string {
	return fmt.Sprintf("The following units do not have assigned lecturers: %s. Please assign lecturers to these units first.", strings.Join(units, ", "))
}
