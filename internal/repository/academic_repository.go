package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-timetable-api/internal/models"
)

const studentStatusActive = "active"

// AcademicRepository reads colleges, courses, enrolments and unit assignments owned by the campus portal.
type AcademicRepository struct {
	db *sqlx.DB
}

// NewAcademicRepository constructs an AcademicRepository.
func NewAcademicRepository(db *sqlx.DB) *AcademicRepository {
	return &AcademicRepository{db: db}
}

// FindCollege loads a college by id.
func (r *AcademicRepository) FindCollege(ctx context.Context, id string) (*models.College, error) {
	const query = `SELECT id, name FROM colleges WHERE id = $1`
	var college models.College
	if err := r.db.GetContext(ctx, &college, query, id); err != nil {
		return nil, err
	}
	return &college, nil
}

// FindCourse loads a course scoped to its college.
func (r *AcademicRepository) FindCourse(ctx context.Context, collegeID, courseID string) (*models.Course, error) {
	const query = `SELECT id, college_id, name FROM courses WHERE id = $1 AND college_id = $2`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, courseID, collegeID); err != nil {
		return nil, err
	}
	return &course, nil
}

// ListCourses returns every course of a college ordered by name.
func (r *AcademicRepository) ListCourses(ctx context.Context, collegeID string) ([]models.Course, error) {
	const query = `SELECT id, college_id, name FROM courses WHERE college_id = $1 ORDER BY name ASC, id ASC`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, collegeID); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// ListCoursesWithActiveStudents returns courses having at least one active student.
func (r *AcademicRepository) ListCoursesWithActiveStudents(ctx context.Context, collegeID string) ([]models.Course, error) {
	const query = `SELECT DISTINCT c.id, c.college_id, c.name
FROM courses c
JOIN students s ON s.course_id = c.id AND s.college_id = c.college_id
WHERE c.college_id = $1 AND s.status = $2
ORDER BY c.name ASC, c.id ASC`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, collegeID, studentStatusActive); err != nil {
		return nil, fmt.Errorf("list courses with active students: %w", err)
	}
	return courses, nil
}

// CountActiveStudents counts active students of a college, optionally within one course.
func (r *AcademicRepository) CountActiveStudents(ctx context.Context, collegeID string, courseID *string) (int, error) {
	query := `SELECT COUNT(*) FROM students WHERE college_id = $1 AND status = $2`
	args := []interface{}{collegeID, studentStatusActive}
	if courseID != nil {
		query += ` AND course_id = $3`
		args = append(args, *courseID)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("count active students: %w", err)
	}
	return total, nil
}

// ListCourseUnits returns the unit assignments of a course for a semester, lecturer included when assigned.
func (r *AcademicRepository) ListCourseUnits(ctx context.Context, collegeID, courseID string, semester int) ([]models.CourseUnit, error) {
	const query = `SELECT cu.course_id, cu.unit_id, cu.college_id, cu.year_of_study, cu.semester,
	u.code AS unit_code, u.name AS unit_name, u.lecturer_id, l.username AS lecturer_username
FROM course_units cu
JOIN units u ON u.id = cu.unit_id
LEFT JOIN users l ON l.id = u.lecturer_id
WHERE cu.college_id = $1 AND cu.course_id = $2 AND cu.semester = $3
ORDER BY cu.year_of_study ASC, u.code ASC`
	var units []models.CourseUnit
	if err := r.db.SelectContext(ctx, &units, query, collegeID, courseID, semester); err != nil {
		return nil, fmt.Errorf("list course units: %w", err)
	}
	return units, nil
}
