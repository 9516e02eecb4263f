package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-timetable-api/internal/models"
	appErrors "github.com/noah-isme/campus-timetable-api/pkg/errors"
)

const (
	entryColumns = `id, run_id, day_id, time_slot_id, course_id, unit_id, lecturer_id, classroom_id, created_at, updated_at`

	entryDetailSelect = `SELECT e.id, e.run_id, e.day_id, e.time_slot_id, e.course_id, e.unit_id, e.lecturer_id, e.classroom_id, e.created_at, e.updated_at,
	d.name AS day_name, d.order_index AS day_order,
	to_char(ts.start_time, 'HH24:MI') AS start_time, to_char(ts.end_time, 'HH24:MI') AS end_time,
	c.name AS course_name, u.code AS unit_code, u.name AS unit_name,
	COALESCE(NULLIF(l.full_name, ''), l.username) AS lecturer_name, cr.name AS classroom_name
FROM timetable_entries e
JOIN timetable_days d ON d.id = e.day_id
JOIN timetable_time_slots ts ON ts.id = e.time_slot_id
JOIN courses c ON c.id = e.course_id
JOIN units u ON u.id = e.unit_id
LEFT JOIN users l ON l.id = e.lecturer_id
LEFT JOIN timetable_classrooms cr ON cr.id = e.classroom_id`

	// 10 bind parameters per row keeps a batch well under the Postgres limit of 65535.
	entryInsertBatchSize = 500
)

// TimetableEntryRepository persists the entries of a run.
type TimetableEntryRepository struct {
	db *sqlx.DB
}

// NewTimetableEntryRepository constructs a TimetableEntryRepository.
func NewTimetableEntryRepository(db *sqlx.DB) *TimetableEntryRepository {
	return &TimetableEntryRepository{db: db}
}

func (r *TimetableEntryRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// DeleteByRun removes every entry of a run and reports how many were removed.
func (r *TimetableEntryRepository) DeleteByRun(ctx context.Context, exec sqlx.ExtContext, runID string) (int64, error) {
	result, err := r.exec(exec).ExecContext(ctx, `DELETE FROM timetable_entries WHERE run_id = $1`, runID)
	if err != nil {
		return 0, fmt.Errorf("delete timetable entries: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("timetable entries rows affected: %w", err)
	}
	return affected, nil
}

// BulkInsert writes entries in batches. Unique violations surface as schedule conflicts.
func (r *TimetableEntryRepository) BulkInsert(ctx context.Context, exec sqlx.ExtContext, entries []models.TimetableEntry) error {
	if len(entries) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range entries {
		if entries[i].ID == "" {
			entries[i].ID = uuid.NewString()
		}
		if entries[i].CreatedAt.IsZero() {
			entries[i].CreatedAt = now
		}
		entries[i].UpdatedAt = now
	}

	const query = `INSERT INTO timetable_entries (` + entryColumns + `)
VALUES (:id, :run_id, :day_id, :time_slot_id, :course_id, :unit_id, :lecturer_id, :classroom_id, :created_at, :updated_at)`

	target := r.exec(exec)
	for start := 0; start < len(entries); start += entryInsertBatchSize {
		end := start + entryInsertBatchSize
		if end > len(entries) {
			end = len(entries)
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, entries[start:end]); err != nil {
			return mapEntryWriteError(err, "insert timetable entries")
		}
	}
	return nil
}

// ListDetailedByRun returns the entries of a run ordered by day, start time, course and unit code.
func (r *TimetableEntryRepository) ListDetailedByRun(ctx context.Context, runID string) ([]models.TimetableEntryDetail, error) {
	query := entryDetailSelect + `
WHERE e.run_id = $1
ORDER BY d.order_index ASC, ts.start_time ASC, c.name ASC, u.code ASC`
	var entries []models.TimetableEntryDetail
	if err := r.db.SelectContext(ctx, &entries, query, runID); err != nil {
		return nil, fmt.Errorf("list timetable entries: %w", err)
	}
	return entries, nil
}

// FindByID loads an entry by id.
func (r *TimetableEntryRepository) FindByID(ctx context.Context, id string) (*models.TimetableEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM timetable_entries WHERE id = $1`
	var entry models.TimetableEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindDetailByID loads an entry with display names.
func (r *TimetableEntryRepository) FindDetailByID(ctx context.Context, id string) (*models.TimetableEntryDetail, error) {
	var entry models.TimetableEntryDetail
	if err := r.db.GetContext(ctx, &entry, entryDetailSelect+` WHERE e.id = $1`, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindConflicts returns other entries of the run at the same day and slot sharing the lecturer or classroom.
func (r *TimetableEntryRepository) FindConflicts(ctx context.Context, exec sqlx.ExtContext, candidate models.TimetableEntry) ([]models.TimetableEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM timetable_entries
WHERE run_id = $1 AND day_id = $2 AND time_slot_id = $3 AND id <> $4
AND ((lecturer_id IS NOT NULL AND lecturer_id = $5) OR (classroom_id IS NOT NULL AND classroom_id = $6))
ORDER BY id ASC`
	var conflicts []models.TimetableEntry
	err := sqlx.SelectContext(ctx, r.exec(exec), &conflicts, query,
		candidate.RunID, candidate.DayID, candidate.TimeSlotID, candidate.ID, candidate.LecturerID, candidate.ClassroomID)
	if err != nil {
		return nil, fmt.Errorf("find timetable entry conflicts: %w", err)
	}
	return conflicts, nil
}

// Update rewrites the placement columns of an entry.
func (r *TimetableEntryRepository) Update(ctx context.Context, exec sqlx.ExtContext, entry *models.TimetableEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	const query = `UPDATE timetable_entries
SET day_id = :day_id, time_slot_id = :time_slot_id, lecturer_id = :lecturer_id, classroom_id = :classroom_id, updated_at = :updated_at
WHERE id = :id`
	result, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, entry)
	if err != nil {
		return mapEntryWriteError(err, "update timetable entry")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable entry rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListPublishedByLecturer returns a lecturer's entries across the published runs of a college.
func (r *TimetableEntryRepository) ListPublishedByLecturer(ctx context.Context, collegeID, lecturerID string) ([]models.TimetableEntryDetail, error) {
	query := entryDetailSelect + `
JOIN timetable_runs r ON r.id = e.run_id
WHERE e.lecturer_id = $1 AND r.status = $2 AND r.college_id = $3
ORDER BY r.published_at DESC, d.order_index ASC, ts.start_time ASC`
	var entries []models.TimetableEntryDetail
	if err := r.db.SelectContext(ctx, &entries, query, lecturerID, string(models.RunStatusPublished), collegeID); err != nil {
		return nil, fmt.Errorf("list lecturer timetable entries: %w", err)
	}
	return entries, nil
}

func mapEntryWriteError(err error, action string) error {
	constraint, dup := uniqueViolation(err)
	if !dup {
		return fmt.Errorf("%s: %w", action, err)
	}
	switch constraint {
	case "timetable_entries_lecturer_key":
		return appErrors.Wrap(err, appErrors.ErrScheduleConflict.Code, appErrors.ErrScheduleConflict.Status, "Lecturer already assigned at this time")
	case "timetable_entries_classroom_key":
		return appErrors.Wrap(err, appErrors.ErrScheduleConflict.Code, appErrors.ErrScheduleConflict.Status, "Classroom already booked at this time")
	}
	return appErrors.Wrap(err, appErrors.ErrScheduleConflict.Code, appErrors.ErrScheduleConflict.Status, "timetable entry conflicts with an existing entry")
}
