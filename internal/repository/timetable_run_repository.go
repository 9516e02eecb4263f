package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-timetable-api/internal/models"
	appErrors "github.com/noah-isme/campus-timetable-api/pkg/errors"
)

const runColumns = `id, college_id, course_id, academic_year, semester, status, notes, created_by, created_at, updated_at, generated_at, published_at`

// TimetableRunRepository persists timetable runs.
type TimetableRunRepository struct {
	db *sqlx.DB
}

// NewTimetableRunRepository constructs a TimetableRunRepository.
func NewTimetableRunRepository(db *sqlx.DB) *TimetableRunRepository {
	return &TimetableRunRepository{db: db}
}

func (r *TimetableRunRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByScope loads the run keyed by college, course (or general), academic year and semester.
func (r *TimetableRunRepository) FindByScope(ctx context.Context, exec sqlx.ExtContext, scope models.RunScope) (*models.TimetableRun, error) {
	query := `SELECT ` + runColumns + ` FROM timetable_runs WHERE college_id = $1 AND academic_year = $2 AND semester = $3`
	args := []interface{}{scope.CollegeID, scope.AcademicYear, scope.Semester}
	if scope.General() {
		query += ` AND course_id IS NULL`
	} else {
		query += ` AND course_id = $4`
		args = append(args, *scope.CourseID)
	}
	var run models.TimetableRun
	if err := sqlx.GetContext(ctx, r.exec(exec), &run, query, args...); err != nil {
		return nil, err
	}
	return &run, nil
}

// Create inserts a run in draft status.
func (r *TimetableRunRepository) Create(ctx context.Context, exec sqlx.ExtContext, run *models.TimetableRun) error {
	if run == nil {
		return fmt.Errorf("timetable run payload is nil")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = models.RunStatusDraft
	}
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now

	const query = `INSERT INTO timetable_runs (id, college_id, course_id, academic_year, semester, status, notes, created_by, created_at, updated_at)
VALUES (:id, :college_id, :course_id, :academic_year, :semester, :status, :notes, :created_by, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, run); err != nil {
		if _, dup := uniqueViolation(err); dup {
			return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "timetable run already exists for this scope")
		}
		return fmt.Errorf("insert timetable run: %w", err)
	}
	return nil
}

// FindByID loads a run by id.
func (r *TimetableRunRepository) FindByID(ctx context.Context, id string) (*models.TimetableRun, error) {
	query := `SELECT ` + runColumns + ` FROM timetable_runs WHERE id = $1`
	var run models.TimetableRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		return nil, err
	}
	return &run, nil
}

// LockByID loads a run and holds a row lock until the surrounding transaction ends.
func (r *TimetableRunRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.TimetableRun, error) {
	query := `SELECT ` + runColumns + ` FROM timetable_runs WHERE id = $1 FOR UPDATE`
	var run models.TimetableRun
	if err := sqlx.GetContext(ctx, r.exec(exec), &run, query, id); err != nil {
		return nil, err
	}
	return &run, nil
}

// UpdateStatus moves a run to status, stamping generated_at or published_at with at.
// The write only applies while the stored status is one of models.PriorStatuses(status);
// otherwise it fails with INVALID_STATE, or sql.ErrNoRows when the run is gone.
func (r *TimetableRunRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.RunStatus, at time.Time) error {
	var query string
	switch status {
	case models.RunStatusGenerated:
		query = `UPDATE timetable_runs SET status = $1, generated_at = $2, updated_at = $2 WHERE id = $3 AND status IN ('draft', 'generated')`
	case models.RunStatusPublished:
		query = `UPDATE timetable_runs SET status = $1, published_at = $2, updated_at = $2 WHERE id = $3 AND status = 'generated'`
	case models.RunStatusDraft:
		query = `UPDATE timetable_runs SET status = $1, updated_at = $2 WHERE id = $3 AND status IN ('draft', 'generated')`
	default:
		return fmt.Errorf("unknown timetable run status %q", status)
	}
	result, err := r.exec(exec).ExecContext(ctx, query, status, at, id)
	if err != nil {
		return fmt.Errorf("update timetable run status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable run status rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var current models.RunStatus
	if err := sqlx.GetContext(ctx, r.exec(exec), &current, `SELECT status FROM timetable_runs WHERE id = $1`, id); err != nil {
		return err
	}
	return appErrors.Clone(appErrors.ErrInvalidState,
		fmt.Sprintf("timetable run is %s and cannot become %s", current, status))
}

// Touch bumps updated_at so cached views of the run stop matching.
func (r *TimetableRunRepository) Touch(ctx context.Context, exec sqlx.ExtContext, id string, at time.Time) error {
	result, err := r.exec(exec).ExecContext(ctx, `UPDATE timetable_runs SET updated_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("touch timetable run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch timetable run rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns runs matching the filter, newest first, with the total count.
func (r *TimetableRunRepository) List(ctx context.Context, filter models.RunFilter) ([]models.TimetableRun, int, error) {
	conditions := []string{"college_id = $1"}
	args := []interface{}{filter.CollegeID}

	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.CourseID != nil {
		args = append(args, *filter.CourseID)
		conditions = append(conditions, fmt.Sprintf("course_id = $%d", len(args)))
	}
	if filter.AcademicYear != "" {
		args = append(args, filter.AcademicYear)
		conditions = append(conditions, fmt.Sprintf("academic_year = $%d", len(args)))
	}
	if filter.Semester > 0 {
		args = append(args, filter.Semester)
		conditions = append(conditions, fmt.Sprintf("semester = $%d", len(args)))
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM timetable_runs%s ORDER BY created_at DESC, id ASC LIMIT %d OFFSET %d", runColumns, where, size, offset)
	var runs []models.TimetableRun
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list timetable runs: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM timetable_runs"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count timetable runs: %w", err)
	}
	return runs, total, nil
}

// FindActive returns the latest published run of a college, else the latest generated one.
func (r *TimetableRunRepository) FindActive(ctx context.Context, collegeID string) (*models.TimetableRun, error) {
	query := `SELECT ` + runColumns + ` FROM timetable_runs
WHERE college_id = $1 AND status IN ('generated', 'published')
ORDER BY published_at DESC NULLS LAST, created_at DESC LIMIT 1`
	var run models.TimetableRun
	if err := r.db.GetContext(ctx, &run, query, collegeID); err != nil {
		return nil, err
	}
	return &run, nil
}

// Delete removes a run; entries cascade.
func (r *TimetableRunRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	result, err := r.exec(exec).ExecContext(ctx, `DELETE FROM timetable_runs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete timetable run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable run rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
