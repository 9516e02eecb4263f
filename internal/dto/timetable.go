package dto

import "github.com/noah-isme/campus-timetable-api/internal/models"

// FailureReason classifies why a generation pass did not produce a timetable.
type FailureReason string

const (
	ReasonValidationFailed      FailureReason = "validation_failed"
	ReasonNoActiveStudents      FailureReason = "no_active_students"
	ReasonNoUnitsAssigned       FailureReason = "no_units_assigned"
	ReasonUnitsMissingLecturers FailureReason = "units_missing_lecturers"
	ReasonInsufficientResources FailureReason = "insufficient_resources"
	ReasonInvalidState          FailureReason = "invalid_state"
	ReasonInternalError         FailureReason = "internal_error"
)

// GenerationResult is the structured outcome of a generation pass. Failures are data, not errors.
type GenerationResult struct {
	RunID           string        `json:"run_id,omitempty"`
	Success         bool          `json:"success"`
	Message         string        `json:"message"`
	Reason          FailureReason `json:"reason,omitempty"`
	EntriesCreated  int           `json:"entries_created"`
	Errors          []string      `json:"errors"`
	Recommendations []string      `json:"recommendations"`
}

// ValidationResult is the outcome of the pre-flight check.
type ValidationResult struct {
	IsValid         bool     `json:"is_valid"`
	Errors          []string `json:"errors"`
	Recommendations []string `json:"recommendations"`
}

// GenerateRunRequest creates or reuses the run keyed by the caller's college and this scope.
type GenerateRunRequest struct {
	CourseID     *string `json:"course_id" validate:"omitempty,max=64"`
	AcademicYear string  `json:"academic_year" validate:"required,max=20"`
	Semester     int     `json:"semester" validate:"required,min=1,max=12"`
	Notes        *string `json:"notes" validate:"omitempty,max=500"`
}

// ValidateScopeRequest runs the pre-flight check without creating a run.
type ValidateScopeRequest struct {
	CourseID     *string `json:"course_id" validate:"omitempty,max=64"`
	AcademicYear string  `json:"academic_year" validate:"omitempty,max=20"`
	Semester     int     `json:"semester" validate:"required,min=1,max=12"`
}

// EditEntryRequest carries a partial update; nil fields keep their current value.
type EditEntryRequest struct {
	DayID       *string `json:"day_id" validate:"omitempty,min=1"`
	TimeSlotID  *string `json:"time_slot_id" validate:"omitempty,min=1"`
	ClassroomID *string `json:"classroom_id" validate:"omitempty,min=1"`
	LecturerID  *string `json:"lecturer_id" validate:"omitempty,min=1"`
}

// Empty reports whether the request changes nothing.
func (r EditEntryRequest) Empty() bool {
	return r.DayID == nil && r.TimeSlotID == nil && r.ClassroomID == nil && r.LecturerID == nil
}

// GridMode selects the row dimension of a grid view.
type GridMode string

const (
	GridModeCourse    GridMode = "course"
	GridModeLecturer  GridMode = "lecturer"
	GridModeClassroom GridMode = "classroom"
)

// ParseGridMode defaults to course view and rejects unknown modes.
func ParseGridMode(raw string) (GridMode, bool) {
	switch GridMode(raw) {
	case "", GridModeCourse:
		return GridModeCourse, true
	case GridModeLecturer:
		return GridModeLecturer, true
	case GridModeClassroom:
		return GridModeClassroom, true
	}
	return "", false
}

// GridOption is an id/label pair for pickers.
type GridOption struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// GridRow holds entry ids per day id for one course, lecturer or classroom.
type GridRow struct {
	ID         string              `json:"id"`
	Label      string              `json:"label"`
	DayEntries map[string][]string `json:"day_entries"`
}

// GridEntry is the flattened entry rendered in a grid cell.
type GridEntry struct {
	ID            string  `json:"id"`
	DayID         string  `json:"day_id"`
	DayName       string  `json:"day_name"`
	TimeSlotID    string  `json:"time_slot_id"`
	TimeSlotStart string  `json:"time_slot_start"`
	TimeSlotEnd   string  `json:"time_slot_end"`
	CourseID      string  `json:"course_id"`
	CourseName    string  `json:"course_name"`
	UnitID        string  `json:"unit_id"`
	UnitCode      string  `json:"unit_code"`
	UnitName      string  `json:"unit_name"`
	LecturerID    *string `json:"lecturer_id"`
	LecturerName  string  `json:"lecturer_name"`
	ClassroomID   *string `json:"classroom_id"`
	ClassroomName string  `json:"classroom_name"`
}

// GridView is the editable grid of one run.
type GridView struct {
	RunID         string               `json:"run_id"`
	Status        models.RunStatus     `json:"status"`
	Mode          GridMode             `json:"mode"`
	Days          []models.Day         `json:"days"`
	Rows          []GridRow            `json:"rows"`
	Entries       map[string]GridEntry `json:"entries"`
	AllTimeSlots  []GridOption         `json:"all_time_slots"`
	AllClassrooms []GridOption         `json:"all_classrooms"`
	AllLecturers  []GridOption         `json:"all_lecturers"`
}

// RunSummary identifies a run and its status.
type RunSummary struct {
	ID     string           `json:"id"`
	Status models.RunStatus `json:"status"`
}

// ReferenceSnapshot initialises an empty grid for a college.
type ReferenceSnapshot struct {
	Days       []GridOption `json:"days"`
	TimeSlots  []GridOption `json:"time_slots"`
	Courses    []GridOption `json:"courses"`
	Lecturers  []GridOption `json:"lecturers"`
	Classrooms []GridOption `json:"classrooms"`
	ActiveRun  *RunSummary  `json:"active_run"`
}
