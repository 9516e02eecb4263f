package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-timetable-api/internal/models"
	appErrors "github.com/noah-isme/campus-timetable-api/pkg/errors"
)

type academicStub struct {
	college *models.College
	courses []models.Course
	active  map[string]int
	units   map[string][]models.CourseUnit
	err     error
}

func newAcademicStub() *academicStub {
	return &academicStub{
		college: &models.College{ID: "college-1", Name: "Riverside College"},
		active:  map[string]int{},
		units:   map[string][]models.CourseUnit{},
	}
}

func (s *academicStub) withCourse(id, name string, students int, units ...models.CourseUnit) *academicStub {
	s.courses = append(s.courses, models.Course{ID: id, CollegeID: "college-1", Name: name})
	s.active[id] = students
	s.units[id] = append(s.units[id], units...)
	return s
}

func (s *academicStub) FindCollege(ctx context.Context, id string) (*models.College, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.college == nil || s.college.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.college, nil
}

func (s *academicStub) FindCourse(ctx context.Context, collegeID, courseID string) (*models.Course, error) {
	if s.err != nil {
		return nil, s.err
	}
	for _, course := range s.courses {
		if course.ID == courseID && course.CollegeID == collegeID {
			c := course
			return &c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *academicStub) ListCourses(ctx context.Context, collegeID string) ([]models.Course, error) {
	return s.courses, s.err
}

func (s *academicStub) ListCoursesWithActiveStudents(ctx context.Context, collegeID string) ([]models.Course, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []models.Course
	for _, course := range s.courses {
		if s.active[course.ID] > 0 {
			out = append(out, course)
		}
	}
	return out, nil
}

func (s *academicStub) CountActiveStudents(ctx context.Context, collegeID string, courseID *string) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	if courseID != nil {
		return s.active[*courseID], nil
	}
	total := 0
	for _, count := range s.active {
		total += count
	}
	return total, nil
}

func (s *academicStub) ListCourseUnits(ctx context.Context, collegeID, courseID string, semester int) ([]models.CourseUnit, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []models.CourseUnit
	for _, unit := range s.units[courseID] {
		if unit.Semester == semester {
			out = append(out, unit)
		}
	}
	return out, nil
}

func courseUnit(courseID, unitID, code string, semester int, lecturerID string) models.CourseUnit {
	unit := models.CourseUnit{
		CourseID:    courseID,
		UnitID:      unitID,
		CollegeID:   "college-1",
		YearOfStudy: 1,
		Semester:    semester,
		UnitCode:    code,
		UnitName:    "Unit " + code,
	}
	if lecturerID != "" {
		username := "user-" + lecturerID
		unit.LecturerID = &lecturerID
		unit.LecturerUsername = &username
	}
	return unit
}

type referenceStub struct {
	days      []models.Day
	slots     []models.TimeSlot
	rooms     []models.Classroom
	lecturers []models.Lecturer
	err       error
}

func newReferenceStub(days, slots, rooms int, lecturerIDs ...string) *referenceStub {
	stub := &referenceStub{days: fixtureDays(days), slots: fixtureSlots(slots), rooms: fixtureRooms(rooms)}
	for _, id := range lecturerIDs {
		stub.lecturers = append(stub.lecturers, models.Lecturer{ID: id, CollegeID: "college-1", Username: "user-" + id, FullName: "Lecturer " + id})
	}
	return stub
}

func (s *referenceStub) ListDays(ctx context.Context) ([]models.Day, error) { return s.days, s.err }

func (s *referenceStub) ListTimeSlots(ctx context.Context) ([]models.TimeSlot, error) {
	return s.slots, s.err
}

func (s *referenceStub) ListClassrooms(ctx context.Context, collegeID string) ([]models.Classroom, error) {
	return s.rooms, s.err
}

func (s *referenceStub) ListLecturers(ctx context.Context, collegeID string) ([]models.Lecturer, error) {
	return s.lecturers, s.err
}

func (s *referenceStub) FindDay(ctx context.Context, id string) (*models.Day, error) {
	for _, day := range s.days {
		if day.ID == id {
			d := day
			return &d, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *referenceStub) FindTimeSlot(ctx context.Context, id string) (*models.TimeSlot, error) {
	for _, slot := range s.slots {
		if slot.ID == id {
			sl := slot
			return &sl, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *referenceStub) FindClassroom(ctx context.Context, id string) (*models.Classroom, error) {
	for _, room := range s.rooms {
		if room.ID == id {
			r := room
			return &r, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *referenceStub) FindLecturer(ctx context.Context, id string) (*models.Lecturer, error) {
	for _, lecturer := range s.lecturers {
		if lecturer.ID == id {
			l := lecturer
			return &l, nil
		}
	}
	return nil, sql.ErrNoRows
}

type noopTxProvider struct{}

func (noopTxProvider) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider unavailable")
}

type txProviderMock struct {
	db *sqlx.DB
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlx.NewDb(db, "sqlmock")}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}
