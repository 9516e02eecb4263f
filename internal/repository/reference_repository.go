package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-timetable-api/internal/models"
)

const (
	timeSlotColumns = `ts.id, to_char(ts.start_time, 'HH24:MI') AS start_time, to_char(ts.end_time, 'HH24:MI') AS end_time`
	lecturerColumns = `id, college_id, username, COALESCE(full_name, '') AS full_name`
)

// ReferenceRepository reads days, time slots, classrooms and lecturers.
type ReferenceRepository struct {
	db *sqlx.DB
}

// NewReferenceRepository constructs a ReferenceRepository.
func NewReferenceRepository(db *sqlx.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

// ListDays returns all days ordered by order_index.
func (r *ReferenceRepository) ListDays(ctx context.Context) ([]models.Day, error) {
	const query = `SELECT id, name, order_index FROM timetable_days ORDER BY order_index ASC`
	var days []models.Day
	if err := r.db.SelectContext(ctx, &days, query); err != nil {
		return nil, fmt.Errorf("list timetable days: %w", err)
	}
	return days, nil
}

// ListTimeSlots returns all slots ordered by start then end time.
func (r *ReferenceRepository) ListTimeSlots(ctx context.Context) ([]models.TimeSlot, error) {
	query := `SELECT ` + timeSlotColumns + ` FROM timetable_time_slots ts ORDER BY ts.start_time ASC, ts.end_time ASC`
	var slots []models.TimeSlot
	if err := r.db.SelectContext(ctx, &slots, query); err != nil {
		return nil, fmt.Errorf("list time slots: %w", err)
	}
	return slots, nil
}

// ListClassrooms returns the classrooms of a college ordered by name.
func (r *ReferenceRepository) ListClassrooms(ctx context.Context, collegeID string) ([]models.Classroom, error) {
	const query = `SELECT id, college_id, name, capacity FROM timetable_classrooms WHERE college_id = $1 ORDER BY name ASC, id ASC`
	var rooms []models.Classroom
	if err := r.db.SelectContext(ctx, &rooms, query, collegeID); err != nil {
		return nil, fmt.Errorf("list classrooms: %w", err)
	}
	return rooms, nil
}

// ListLecturers returns users holding the lecturer role within a college.
func (r *ReferenceRepository) ListLecturers(ctx context.Context, collegeID string) ([]models.Lecturer, error) {
	query := `SELECT ` + lecturerColumns + ` FROM users WHERE college_id = $1 AND role = $2 ORDER BY full_name ASC, username ASC`
	var lecturers []models.Lecturer
	if err := r.db.SelectContext(ctx, &lecturers, query, collegeID, string(models.RoleLecturer)); err != nil {
		return nil, fmt.Errorf("list lecturers: %w", err)
	}
	return lecturers, nil
}

// FindDay loads a day by id.
func (r *ReferenceRepository) FindDay(ctx context.Context, id string) (*models.Day, error) {
	const query = `SELECT id, name, order_index FROM timetable_days WHERE id = $1`
	var day models.Day
	if err := r.db.GetContext(ctx, &day, query, id); err != nil {
		return nil, err
	}
	return &day, nil
}

// FindTimeSlot loads a time slot by id.
func (r *ReferenceRepository) FindTimeSlot(ctx context.Context, id string) (*models.TimeSlot, error) {
	query := `SELECT ` + timeSlotColumns + ` FROM timetable_time_slots ts WHERE ts.id = $1`
	var slot models.TimeSlot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		return nil, err
	}
	return &slot, nil
}

// FindClassroom loads a classroom by id.
func (r *ReferenceRepository) FindClassroom(ctx context.Context, id string) (*models.Classroom, error) {
	const query = `SELECT id, college_id, name, capacity FROM timetable_classrooms WHERE id = $1`
	var room models.Classroom
	if err := r.db.GetContext(ctx, &room, query, id); err != nil {
		return nil, err
	}
	return &room, nil
}

// FindLecturer loads a lecturer by user id.
func (r *ReferenceRepository) FindLecturer(ctx context.Context, id string) (*models.Lecturer, error) {
	query := `SELECT ` + lecturerColumns + ` FROM users WHERE id = $1 AND role = $2`
	var lecturer models.Lecturer
	if err := r.db.GetContext(ctx, &lecturer, query, id, string(models.RoleLecturer)); err != nil {
		return nil, err
	}
	return &lecturer, nil
}
