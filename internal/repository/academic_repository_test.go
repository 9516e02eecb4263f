package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcademicRepositoryListCoursesWithActiveStudents(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewAcademicRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT c.id, c.college_id, c.name FROM courses c JOIN students s")).
		WithArgs("college-1", "active").
		WillReturnRows(sqlmock.NewRows([]string{"id", "college_id", "name"}).
			AddRow("course-1", "college-1", "Nursing"))

	courses, err := repo.ListCoursesWithActiveStudents(context.Background(), "college-1")
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "Nursing", courses[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcademicRepositoryCountActiveStudents(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewAcademicRepository(db)
	courseID := "course-1"

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students WHERE college_id = $1 AND status = $2")).
		WithArgs("college-1", "active").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students WHERE college_id = $1 AND status = $2 AND course_id = $3")).
		WithArgs("college-1", "active", "course-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	total, err := repo.CountActiveStudents(context.Background(), "college-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 12, total)

	inCourse, err := repo.CountActiveStudents(context.Background(), "college-1", &courseID)
	require.NoError(t, err)
	assert.Zero(t, inCourse)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcademicRepositoryListCourseUnits(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewAcademicRepository(db)

	rows := sqlmock.NewRows([]string{"course_id", "unit_id", "college_id", "year_of_study", "semester", "unit_code", "unit_name", "lecturer_id", "lecturer_username"}).
		AddRow("course-1", "unit-1", "college-1", 1, 2, "NUR101", "Anatomy", "lec-1", "jdoe").
		AddRow("course-1", "unit-2", "college-1", 1, 2, "NUR102", "Ethics", nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM course_units cu JOIN units u ON u.id = cu.unit_id LEFT JOIN users l")).
		WithArgs("college-1", "course-1", 2).
		WillReturnRows(rows)

	units, err := repo.ListCourseUnits(context.Background(), "college-1", "course-1", 2)
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.True(t, units[0].HasLecturer())
	assert.False(t, units[1].HasLecturer())
	assert.NoError(t, mock.ExpectationsWereMet())
}
