package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-timetable-api/internal/dto"
	"github.com/noah-isme/campus-timetable-api/internal/models"
	appErrors "github.com/noah-isme/campus-timetable-api/pkg/errors"
)

const (
	msgPublishedRegenerate = "Cannot regenerate a published timetable. Create a new one instead."
	msgNotEditable         = "Timetable is not editable. Only generated timetables can be edited."
	msgPublishedDelete     = "Published timetables cannot be deleted."
	msgNoUnits             = "No units found to schedule."
	generalRunNotes        = "Auto-generated for all eligible courses"
	placeholderName        = "TBA"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type timetableRunStore interface {
	FindByScope(ctx context.Context, exec sqlx.ExtContext, scope models.RunScope) (*models.TimetableRun, error)
	Create(ctx context.Context, exec sqlx.ExtContext, run *models.TimetableRun) error
	FindByID(ctx context.Context, id string) (*models.TimetableRun, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.TimetableRun, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.RunStatus, at time.Time) error
	Touch(ctx context.Context, exec sqlx.ExtContext, id string, at time.Time) error
	List(ctx context.Context, filter models.RunFilter) ([]models.TimetableRun, int, error)
	FindActive(ctx context.Context, collegeID string) (*models.TimetableRun, error)
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type timetableEntryStore interface {
	DeleteByRun(ctx context.Context, exec sqlx.ExtContext, runID string) (int64, error)
	BulkInsert(ctx context.Context, exec sqlx.ExtContext, entries []models.TimetableEntry) error
	ListDetailedByRun(ctx context.Context, runID string) ([]models.TimetableEntryDetail, error)
	FindByID(ctx context.Context, id string) (*models.TimetableEntry, error)
	FindDetailByID(ctx context.Context, id string) (*models.TimetableEntryDetail, error)
	FindConflicts(ctx context.Context, exec sqlx.ExtContext, candidate models.TimetableEntry) ([]models.TimetableEntry, error)
	Update(ctx context.Context, exec sqlx.ExtContext, entry *models.TimetableEntry) error
	ListPublishedByLecturer(ctx context.Context, collegeID, lecturerID string) ([]models.TimetableEntryDetail, error)
}

type referenceStore interface {
	referenceLister
	FindDay(ctx context.Context, id string) (*models.Day, error)
	FindTimeSlot(ctx context.Context, id string) (*models.TimeSlot, error)
	FindClassroom(ctx context.Context, id string) (*models.Classroom, error)
	FindLecturer(ctx context.Context, id string) (*models.Lecturer, error)
}

type academicStore interface {
	FindCourse(ctx context.Context, collegeID, courseID string) (*models.Course, error)
	ListCourses(ctx context.Context, collegeID string) ([]models.Course, error)
}

type prerequisiteValidator interface {
	Validate(ctx context.Context, scope models.RunScope) (dto.ValidationResult, error)
}

type unitResolver interface {
	Resolve(ctx context.Context, scope models.RunScope) (EligibilityResult, error)
}

type unitAssigner interface {
	Assign(ctx context.Context, input AssignmentInput) (AssignmentOutcome, error)
}

type gridCache interface {
	Lookup(ctx context.Context, run *models.TimetableRun, mode dto.GridMode) (*dto.GridView, bool)
	Store(ctx context.Context, run *models.TimetableRun, view *dto.GridView) error
	InvalidateRun(ctx context.Context, runID string) error
}

// TimetableConfig bounds a generation pass.
type TimetableConfig struct {
	GenerationTimeout time.Duration
}

// TimetableService owns the run lifecycle: generation, publishing, edits and read models.
type TimetableService struct {
	runs      timetableRunStore
	entries   timetableEntryStore
	reference referenceStore
	academics academicStore
	checks    prerequisiteValidator
	resolver  unitResolver
	assigner  unitAssigner
	tx        txProvider
	cache     gridCache
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       TimetableConfig
	now       func() time.Time
}

// NewTimetableService wires the lifecycle dependencies.
func NewTimetableService(
	runs timetableRunStore,
	entries timetableEntryStore,
	reference referenceStore,
	academics academicStore,
	checks prerequisiteValidator,
	resolver unitResolver,
	assigner unitAssigner,
	tx txProvider,
	cache gridCache,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableConfig,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if assigner == nil {
		assigner = NewSlotAssigner()
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 30 * time.Second
	}
	return &TimetableService{
		runs:      runs,
		entries:   entries,
		reference: reference,
		academics: academics,
		checks:    checks,
		resolver:  resolver,
		assigner:  assigner,
		tx:        tx,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Generate finds or creates the run for the caller's college and scope, then runs a generation pass.
// Generation failures are reported in the result; the error covers invalid input and state.
func (s *TimetableService) Generate(ctx context.Context, collegeID, userID string, req dto.GenerateRunRequest) (*dto.GenerationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generate payload")
	}
	scope := models.RunScope{
		CollegeID:    collegeID,
		CourseID:     normalizeOptional(req.CourseID),
		AcademicYear: strings.TrimSpace(req.AcademicYear),
		Semester:     req.Semester,
	}
	if !scope.General() {
		if _, err := s.academics.FindCourse(ctx, collegeID, *scope.CourseID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
		}
	}

	run, err := s.findOrCreateRun(ctx, scope, userID, req.Notes)
	if err != nil {
		return nil, err
	}
	if err := s.resetForGeneration(ctx, run); err != nil {
		return nil, err
	}
	return s.runGeneration(ctx, run), nil
}

// Regenerate reruns generation for an existing draft or generated run.
func (s *TimetableService) Regenerate(ctx context.Context, collegeID, runID string) (*dto.GenerationResult, error) {
	run, err := s.loadRun(ctx, collegeID, runID)
	if err != nil {
		return nil, err
	}
	if err := s.resetForGeneration(ctx, run); err != nil {
		return nil, err
	}
	return s.runGeneration(ctx, run), nil
}

// ValidateScope runs the pre-flight checks without creating a run.
func (s *TimetableService) ValidateScope(ctx context.Context, collegeID string, req dto.ValidateScopeRequest) (*dto.ValidationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid validation payload")
	}
	result, err := s.checks.Validate(ctx, models.RunScope{
		CollegeID:    collegeID,
		CourseID:     normalizeOptional(req.CourseID),
		AcademicYear: strings.TrimSpace(req.AcademicYear),
		Semester:     req.Semester,
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ValidateRun runs the pre-flight checks for a run's scope.
func (s *TimetableService) ValidateRun(ctx context.Context, collegeID, runID string) (*dto.ValidationResult, error) {
	run, err := s.loadRun(ctx, collegeID, runID)
	if err != nil {
		return nil, err
	}
	result, err := s.checks.Validate(ctx, run.Scope())
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Publish locks a generated run against further changes.
func (s *TimetableService) Publish(ctx context.Context, collegeID, runID string) (*models.TimetableRun, error) {
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	run, err := s.runs.LockByID(ctx, tx, runID)
	if err != nil {
		err = mapRunLookupError(err)
		return nil, err
	}
	if run.CollegeID != collegeID {
		err = appErrors.Clone(appErrors.ErrNotFound, "timetable run not found")
		return nil, err
	}
	if !run.Status.CanTransitionTo(models.RunStatusPublished) {
		err = appErrors.Clone(appErrors.ErrInvalidState,
			fmt.Sprintf("Can only deploy timetables with status \"generated\". Current status: %s.", run.Status.Label()))
		return nil, err
	}

	at := s.now()
	if err = s.runs.UpdateStatus(ctx, tx, run.ID, models.RunStatusPublished, at); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish timetable run")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit publish")
		return nil, err
	}

	run.Status = models.RunStatusPublished
	run.PublishedAt = &at
	run.UpdatedAt = at
	s.invalidateGrid(ctx, run.ID)
	s.logger.Info("timetable run published", zap.String("run_id", run.ID), zap.String("college_id", run.CollegeID))
	return run, nil
}

// EditEntry applies a partial, conflict-checked update to one entry of a generated run.
func (s *TimetableService) EditEntry(ctx context.Context, collegeID, entryID string, req dto.EditEntryRequest) (*models.TimetableEntryDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid entry payload")
	}
	if req.Empty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one of day_id, time_slot_id, classroom_id or lecturer_id is required")
	}

	entry, err := s.entries.FindByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable entry")
	}
	run, err := s.loadRun(ctx, collegeID, entry.RunID)
	if err != nil {
		return nil, err
	}
	if run.Status != models.RunStatusGenerated {
		s.metrics.RecordEntryEdit(OutcomeRejected)
		return nil, appErrors.Clone(appErrors.ErrInvalidState, msgNotEditable)
	}

	candidate := *entry
	names, err := s.applyEdit(ctx, run, &candidate, req)
	if err != nil {
		return nil, err
	}

	if err := s.persistEdit(ctx, &candidate, names); err != nil {
		if appErrors.HasCode(err, appErrors.ErrScheduleConflict.Code) {
			s.metrics.RecordEntryEdit(OutcomeConflict)
		} else if appErrors.HasCode(err, appErrors.ErrInvalidState.Code) {
			s.metrics.RecordEntryEdit(OutcomeRejected)
		} else {
			s.metrics.RecordEntryEdit(OutcomeError)
		}
		return nil, err
	}
	s.metrics.RecordEntryEdit(OutcomeSuccess)
	s.invalidateGrid(ctx, run.ID)

	detail, err := s.entries.FindDetailByID(ctx, candidate.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable entry")
	}
	return detail, nil
}

// ListRuns returns runs of a college, newest first.
func (s *TimetableService) ListRuns(ctx context.Context, filter models.RunFilter) ([]models.TimetableRun, *models.Pagination, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown timetable run status")
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	runs, total, err := s.runs.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable runs")
	}
	return runs, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// GetRun returns one run of the caller's college.
func (s *TimetableService) GetRun(ctx context.Context, collegeID, runID string) (*models.TimetableRun, error) {
	return s.loadRun(ctx, collegeID, runID)
}

// DeleteRun removes a non-published run and its entries.
func (s *TimetableService) DeleteRun(ctx context.Context, collegeID, runID string) error {
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	run, err := s.runs.LockByID(ctx, tx, runID)
	if err != nil {
		err = mapRunLookupError(err)
		return err
	}
	if run.CollegeID != collegeID {
		err = appErrors.Clone(appErrors.ErrNotFound, "timetable run not found")
		return err
	}
	if run.Status == models.RunStatusPublished {
		err = appErrors.Clone(appErrors.ErrInvalidState, msgPublishedDelete)
		return err
	}
	if _, err = s.entries.DeleteByRun(ctx, tx, run.ID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable entries")
		return err
	}
	if err = s.runs.Delete(ctx, tx, run.ID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable run")
		return err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit delete")
		return err
	}
	s.invalidateGrid(ctx, run.ID)
	return nil
}

// Entries returns the entries of a run in day, slot, course and unit order.
func (s *TimetableService) Entries(ctx context.Context, collegeID, runID string) ([]models.TimetableEntryDetail, error) {
	if _, err := s.loadRun(ctx, collegeID, runID); err != nil {
		return nil, err
	}
	entries, err := s.entries.ListDetailedByRun(ctx, runID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable entries")
	}
	return entries, nil
}

// LecturerTimetable returns a lecturer's entries across the published runs of the caller's college.
func (s *TimetableService) LecturerTimetable(ctx context.Context, collegeID, lecturerID string) ([]models.TimetableEntryDetail, error) {
	entries, err := s.entries.ListPublishedByLecturer(ctx, collegeID, lecturerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lecturer timetable")
	}
	return entries, nil
}

func (s *TimetableService) findOrCreateRun(ctx context.Context, scope models.RunScope, userID string, notes *string) (*models.TimetableRun, error) {
	run, err := s.runs.FindByScope(ctx, nil, scope)
	if err == nil {
		return run, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable run")
	}

	run = &models.TimetableRun{
		CollegeID:    scope.CollegeID,
		CourseID:     scope.CourseID,
		AcademicYear: scope.AcademicYear,
		Semester:     scope.Semester,
		Status:       models.RunStatusDraft,
		Notes:        normalizeOptional(notes),
		CreatedBy:    normalizeOptional(&userID),
	}
	if run.Notes == nil && scope.General() {
		text := generalRunNotes
		run.Notes = &text
	}
	if err := s.runs.Create(ctx, nil, run); err != nil {
		if !appErrors.HasCode(err, appErrors.ErrConflict.Code) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable run")
		}
		// Lost a race with a concurrent create for the same scope.
		existing, findErr := s.runs.FindByScope(ctx, nil, scope)
		if findErr != nil {
			return nil, appErrors.Wrap(findErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable run")
		}
		return existing, nil
	}
	s.logger.Info("timetable run created", zap.String("run_id", run.ID), zap.String("college_id", run.CollegeID))
	return run, nil
}

func (s *TimetableService) resetForGeneration(ctx context.Context, run *models.TimetableRun) error {
	switch run.Status {
	case models.RunStatusPublished:
		return appErrors.Clone(appErrors.ErrInvalidState, msgPublishedRegenerate)
	case models.RunStatusGenerated:
		// The run may have been published since it was read; the store refuses that reset.
		if err := s.runs.UpdateStatus(ctx, nil, run.ID, models.RunStatusDraft, s.now()); err != nil {
			if appErrors.HasCode(err, appErrors.ErrInvalidState.Code) {
				return appErrors.Clone(appErrors.ErrInvalidState, msgPublishedRegenerate)
			}
			if errors.Is(err, sql.ErrNoRows) {
				return mapRunLookupError(err)
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset timetable run")
		}
		run.Status = models.RunStatusDraft
		s.invalidateGrid(ctx, run.ID)
	}
	return nil
}

func (s *TimetableService) runGeneration(ctx context.Context, run *models.TimetableRun) *dto.GenerationResult {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.cfg.GenerationTimeout)
	defer cancel()

	result := s.generate(ctx, run)
	result.RunID = run.ID
	if result.Errors == nil {
		result.Errors = []string{}
	}
	if result.Recommendations == nil {
		result.Recommendations = []string{}
	}

	outcome := OutcomeSuccess
	if !result.Success {
		outcome = string(result.Reason)
	}
	elapsed := time.Since(start)
	s.metrics.RecordGeneration(outcome, result.EntriesCreated, elapsed)

	fields := []zap.Field{
		zap.String("run_id", run.ID),
		zap.String("college_id", run.CollegeID),
		zap.Int("semester", run.Semester),
		zap.Int("entries", result.EntriesCreated),
		zap.Duration("elapsed", elapsed),
	}
	switch {
	case result.Success:
		run.Status = models.RunStatusGenerated
		s.invalidateGrid(ctx, run.ID)
		s.logger.Info("timetable generated", fields...)
	case result.Reason == dto.ReasonInternalError:
		s.logger.Error("timetable generation failed", append(fields, zap.Strings("errors", result.Errors))...)
	default:
		s.logger.Info("timetable generation rejected", append(fields, zap.String("reason", string(result.Reason)))...)
	}
	return result
}

func (s *TimetableService) generate(ctx context.Context, run *models.TimetableRun) *dto.GenerationResult {
	scope := run.Scope()

	validation, err := s.checks.Validate(ctx, scope)
	if err != nil {
		return internalFailure(err)
	}
	if !validation.IsValid {
		recommendations := validation.Recommendations
		if len(recommendations) == 0 {
			recommendations = validation.Errors
		}
		return &dto.GenerationResult{
			Message:         "Validation failed. Please fix the following issues:",
			Reason:          dto.ReasonValidationFailed,
			Errors:          validation.Errors,
			Recommendations: recommendations,
		}
	}

	eligible, err := s.resolver.Resolve(ctx, scope)
	if err != nil {
		return internalFailure(err)
	}
	if len(eligible.Units) == 0 {
		return noUnitsFailure(run, eligible)
	}

	input, missing, err := s.loadResources(ctx, run.CollegeID)
	if err != nil {
		return internalFailure(err)
	}
	if len(missing) > 0 {
		return &dto.GenerationResult{
			Message:         "Insufficient resources for timetable generation.",
			Reason:          dto.ReasonInsufficientResources,
			Errors:          []string{"Missing required resources."},
			Recommendations: missing,
		}
	}
	input.Units = eligible.Units

	outcome, err := s.placeAndPersist(ctx, run.ID, input)
	if err != nil {
		if appErrors.HasCode(err, appErrors.ErrInvalidState.Code) {
			return &dto.GenerationResult{
				Message: appErrors.FromError(err).Message,
				Reason:  dto.ReasonInvalidState,
				Errors:  []string{appErrors.FromError(err).Message},
			}
		}
		return internalFailure(err)
	}
	if !outcome.Complete {
		return &dto.GenerationResult{
			Message:         "Failed to generate timetable. Insufficient resources or conflicts detected.",
			Reason:          dto.ReasonInsufficientResources,
			EntriesCreated:  len(outcome.Placements),
			Errors:          []string{"Could not assign all units without conflicts."},
			Recommendations: outcome.Recommendations,
		}
	}
	return &dto.GenerationResult{
		Success:        true,
		Message:        fmt.Sprintf("Timetable generated successfully. Created %d entries.", len(outcome.Placements)),
		EntriesCreated: len(outcome.Placements),
	}
}

func (s *TimetableService) loadResources(ctx context.Context, collegeID string) (AssignmentInput, []string, error) {
	var input AssignmentInput
	var err error
	if input.Days, err = s.reference.ListDays(ctx); err != nil {
		return input, nil, err
	}
	if input.TimeSlots, err = s.reference.ListTimeSlots(ctx); err != nil {
		return input, nil, err
	}
	if input.Classrooms, err = s.reference.ListClassrooms(ctx, collegeID); err != nil {
		return input, nil, err
	}

	var missing []string
	if len(input.Days) == 0 {
		missing = append(missing, "Add timetable days (Monday, Tuesday, etc.)")
	}
	if len(input.TimeSlots) == 0 {
		missing = append(missing, "Add more time slots")
	}
	if len(input.Classrooms) == 0 {
		missing = append(missing, "Add more classrooms")
	}
	return input, missing, nil
}

// placeAndPersist replaces the run's entries inside one transaction. An incomplete outcome rolls back.
func (s *TimetableService) placeAndPersist(ctx context.Context, runID string, input AssignmentInput) (outcome AssignmentOutcome, err error) {
	if s.tx == nil {
		return outcome, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return outcome, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil || !outcome.Complete {
			_ = tx.Rollback()
		}
	}()

	locked, err := s.runs.LockByID(ctx, tx, runID)
	if err != nil {
		err = mapRunLookupError(err)
		return outcome, err
	}
	if locked.Status == models.RunStatusPublished {
		err = appErrors.Clone(appErrors.ErrInvalidState, msgPublishedRegenerate)
		return outcome, err
	}
	if _, err = s.entries.DeleteByRun(ctx, tx, runID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear timetable entries")
		return outcome, err
	}

	outcome, err = s.assigner.Assign(ctx, input)
	if err != nil || !outcome.Complete {
		return outcome, err
	}

	entries := make([]models.TimetableEntry, 0, len(outcome.Placements))
	for _, placement := range outcome.Placements {
		lecturerID := placement.Unit.LecturerID
		classroomID := placement.ClassroomID
		entries = append(entries, models.TimetableEntry{
			RunID:       runID,
			DayID:       placement.DayID,
			TimeSlotID:  placement.TimeSlotID,
			CourseID:    placement.Unit.CourseID,
			UnitID:      placement.Unit.UnitID,
			LecturerID:  &lecturerID,
			ClassroomID: &classroomID,
		})
	}
	if err = s.entries.BulkInsert(ctx, tx, entries); err != nil {
		return outcome, err
	}
	if err = s.runs.UpdateStatus(ctx, tx, runID, models.RunStatusGenerated, s.now()); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark timetable generated")
		return outcome, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable entries")
		return outcome, err
	}
	return outcome, nil
}

// editNames carries display names of the resources an edit touches.
type editNames struct {
	lecturer  string
	classroom string
}

func (s *TimetableService) applyEdit(ctx context.Context, run *models.TimetableRun, entry *models.TimetableEntry, req dto.EditEntryRequest) (editNames, error) {
	var names editNames
	if id := normalizeOptional(req.DayID); id != nil {
		if _, err := s.reference.FindDay(ctx, *id); err != nil {
			return names, referenceLookupError(err, "day not found")
		}
		entry.DayID = *id
	}
	if id := normalizeOptional(req.TimeSlotID); id != nil {
		if _, err := s.reference.FindTimeSlot(ctx, *id); err != nil {
			return names, referenceLookupError(err, "time slot not found")
		}
		entry.TimeSlotID = *id
	}
	if id := normalizeOptional(req.ClassroomID); id != nil {
		room, err := s.reference.FindClassroom(ctx, *id)
		if err != nil {
			return names, referenceLookupError(err, "classroom not found")
		}
		if room.CollegeID != run.CollegeID {
			return names, appErrors.Clone(appErrors.ErrValidation, "classroom not found")
		}
		entry.ClassroomID = &room.ID
		names.classroom = room.Name
	}
	if id := normalizeOptional(req.LecturerID); id != nil {
		lecturer, err := s.reference.FindLecturer(ctx, *id)
		if err != nil {
			return names, referenceLookupError(err, "lecturer not found")
		}
		if lecturer.CollegeID != run.CollegeID {
			return names, appErrors.Clone(appErrors.ErrValidation, "lecturer not found")
		}
		entry.LecturerID = &lecturer.ID
		names.lecturer = lecturer.DisplayName()
	}
	return names, nil
}

func (s *TimetableService) persistEdit(ctx context.Context, entry *models.TimetableEntry, names editNames) (err error) {
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	run, err := s.runs.LockByID(ctx, tx, entry.RunID)
	if err != nil {
		err = mapRunLookupError(err)
		return err
	}
	if run.Status != models.RunStatusGenerated {
		err = appErrors.Clone(appErrors.ErrInvalidState, msgNotEditable)
		return err
	}

	conflicts, err := s.entries.FindConflicts(ctx, tx, *entry)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check timetable conflicts")
		return err
	}
	if messages := s.conflictMessages(ctx, *entry, conflicts, names); len(messages) > 0 {
		err = appErrors.Clone(appErrors.ErrScheduleConflict, strings.Join(messages, "; "))
		return err
	}

	if err = s.entries.Update(ctx, tx, entry); err != nil {
		if !appErrors.HasCode(err, appErrors.ErrScheduleConflict.Code) {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update timetable entry")
		}
		return err
	}
	if err = s.runs.Touch(ctx, tx, run.ID, s.now()); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update timetable run")
		return err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable entry")
		return err
	}
	return nil
}

// conflictMessages names the lecturer or classroom another entry already holds at the candidate's day and slot.
func (s *TimetableService) conflictMessages(ctx context.Context, entry models.TimetableEntry, conflicts []models.TimetableEntry, names editNames) []string {
	var lecturerClash, classroomClash bool
	for _, other := range conflicts {
		if sameID(entry.LecturerID, other.LecturerID) {
			lecturerClash = true
		}
		if sameID(entry.ClassroomID, other.ClassroomID) {
			classroomClash = true
		}
	}
	var messages []string
	if lecturerClash {
		if names.lecturer == "" {
			if lecturer, err := s.reference.FindLecturer(ctx, *entry.LecturerID); err == nil {
				names.lecturer = lecturer.DisplayName()
			}
		}
		messages = append(messages, fmt.Sprintf("Lecturer %s already assigned at this time", labelOr(names.lecturer, entry.LecturerID)))
	}
	if classroomClash {
		if names.classroom == "" {
			if room, err := s.reference.FindClassroom(ctx, *entry.ClassroomID); err == nil {
				names.classroom = room.Name
			}
		}
		messages = append(messages, fmt.Sprintf("Classroom %s already booked at this time", labelOr(names.classroom, entry.ClassroomID)))
	}
	return messages
}

func (s *TimetableService) loadRun(ctx context.Context, collegeID, runID string) (*models.TimetableRun, error) {
	run, err := s.runs.FindByID(ctx, runID)
	if err != nil {
		return nil, mapRunLookupError(err)
	}
	if run.CollegeID != collegeID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable run not found")
	}
	return run, nil
}

func (s *TimetableService) invalidateGrid(ctx context.Context, runID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateRun(ctx, runID); err != nil {
		s.logger.Warn("grid cache invalidation failed", zap.String("run_id", runID), zap.Error(err))
	}
}

func noUnitsFailure(run *models.TimetableRun, eligible EligibilityResult) *dto.GenerationResult {
	result := &dto.GenerationResult{Message: msgNoUnits, Reason: eligible.Reason}
	if eligible.Course != nil {
		name := eligible.Course.Name
		switch eligible.Reason {
		case dto.ReasonNoActiveStudents:
			result.Errors = []string{fmt.Sprintf("Course '%s' has no active students.", name)}
			result.Recommendations = []string{
				fmt.Sprintf("Enroll active students to course '%s' before generating timetable", name),
				fmt.Sprintf("Or deactivate course '%s' if it's no longer needed", name),
			}
		case dto.ReasonUnitsMissingLecturers:
			result.Errors = []string{fmt.Sprintf("Course '%s' has units for semester %d but none have an assigned lecturer.", name, run.Semester)}
			result.Recommendations = []string{fmt.Sprintf("Assign lecturers to the units of course '%s' before generating timetable", name)}
		default:
			result.Reason = dto.ReasonNoUnitsAssigned
			result.Errors = []string{fmt.Sprintf("Course '%s' has enrolled students but no units assigned for semester %d.", name, run.Semester)}
			result.Recommendations = []string{fmt.Sprintf("Assign units to course '%s' for semester %d before generating timetable", name, run.Semester)}
		}
		return result
	}

	if eligible.Reason == dto.ReasonNoActiveStudents {
		result.Errors = []string{"No eligible courses found for timetable generation. All courses have zero active students."}
		result.Recommendations = []string{
			"Enroll active students to courses before generating timetable",
			"No eligible courses found for timetable generation",
		}
		return result
	}
	if result.Reason == "" {
		result.Reason = dto.ReasonNoUnitsAssigned
	}
	result.Errors = []string{"No units found for courses with active students for the specified semester."}
	result.Recommendations = []string{
		fmt.Sprintf("Assign units to courses with active students for semester %d", run.Semester),
		"Ensure units have assigned lecturers",
	}
	return result
}

func internalFailure(err error) *dto.GenerationResult {
	return &dto.GenerationResult{
		Message:         fmt.Sprintf("Generation failed: %s", err.Error()),
		Reason:          dto.ReasonInternalError,
		Errors:          []string{err.Error()},
		Recommendations: []string{"Please check the error message and try again."},
	}
}

func mapRunLookupError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "timetable run not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable run")
}

func referenceLookupError(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrValidation, message)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reference data")
}

func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func sameID(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

func labelOr(name string, id *string) string {
	if name != "" {
		return name
	}
	if id != nil {
		return *id
	}
	return placeholderName
}
