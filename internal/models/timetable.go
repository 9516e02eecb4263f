package models

import (
	"fmt"
	"time"
)

// RunStatus is the lifecycle phase of a timetable run.
type RunStatus string

const (
	RunStatusDraft     RunStatus = "draft"
	RunStatusGenerated RunStatus = "generated"
	RunStatusPublished RunStatus = "published"
)

// Valid reports whether the status is one of the known phases.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusDraft, RunStatusGenerated, RunStatusPublished:
		return true
	}
	return false
}

// Label renders the status for user-facing messages.
func (s RunStatus) Label() string {
	switch s {
	case RunStatusDraft:
		return "Draft"
	case RunStatusGenerated:
		return "Generated"
	case RunStatusPublished:
		return "Published"
	}
	return string(s)
}

// CanTransitionTo encodes draft -> generated -> published plus regeneration resets.
func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	switch s {
	case RunStatusDraft:
		return next == RunStatusGenerated
	case RunStatusGenerated:
		return next == RunStatusPublished || next == RunStatusDraft
	}
	return false
}

// PriorStatuses lists the statuses a stored run may hold when it is moved to next.
// A published run never leaves published.
func PriorStatuses(next RunStatus) []RunStatus {
	switch next {
	case RunStatusDraft, RunStatusGenerated:
		return []RunStatus{RunStatusDraft, RunStatusGenerated}
	case RunStatusPublished:
		return []RunStatus{RunStatusGenerated}
	}
	return nil
}

// Day is a weekday column of the timetable, shared by every college.
type Day struct {
	ID         string `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	OrderIndex int    `db:"order_index" json:"order_index"`
}

// TimeSlot is a teaching period. Times are HH:MM strings.
type TimeSlot struct {
	ID        string `db:"id" json:"id"`
	StartTime string `db:"start_time" json:"start_time"`
	EndTime   string `db:"end_time" json:"end_time"`
}

// DurationMinutes returns the slot length, wrapping past midnight.
func (t TimeSlot) DurationMinutes() int {
	start, err := time.Parse("15:04", t.StartTime)
	if err != nil {
		return 0
	}
	end, err := time.Parse("15:04", t.EndTime)
	if err != nil {
		return 0
	}
	if end.Before(start) {
		end = end.Add(24 * time.Hour)
	}
	return int(end.Sub(start).Minutes())
}

// DurationLabel renders the duration as "1h 30m", "1h" or "45m".
func (t TimeSlot) DurationLabel() string {
	minutes := t.DurationMinutes()
	hours, rest := minutes/60, minutes%60
	switch {
	case hours > 0 && rest > 0:
		return fmt.Sprintf("%dh %dm", hours, rest)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dm", rest)
	}
}

// String renders "08:00-09:00".
func (t TimeSlot) String() string {
	return t.StartTime + "-" + t.EndTime
}

// Classroom is a room owned by one college.
type Classroom struct {
	ID        string `db:"id" json:"id"`
	CollegeID string `db:"college_id" json:"college_id"`
	Name      string `db:"name" json:"name"`
	Capacity  int    `db:"capacity" json:"capacity"`
}

// RunScope identifies what a run schedules. A nil CourseID means every eligible course.
type RunScope struct {
	CollegeID    string  `json:"college_id"`
	CourseID     *string `json:"course_id,omitempty"`
	AcademicYear string  `json:"academic_year"`
	Semester     int     `json:"semester"`
}

// General reports whether the scope spans all courses of the college.
func (s RunScope) General() bool {
	return s.CourseID == nil || *s.CourseID == ""
}

// TimetableRun is one generation unit for a (college, course, academic year, semester) key.
type TimetableRun struct {
	ID           string     `db:"id" json:"id"`
	CollegeID    string     `db:"college_id" json:"college_id"`
	CourseID     *string    `db:"course_id" json:"course_id,omitempty"`
	AcademicYear string     `db:"academic_year" json:"academic_year"`
	Semester     int        `db:"semester" json:"semester"`
	Status       RunStatus  `db:"status" json:"status"`
	Notes        *string    `db:"notes" json:"notes,omitempty"`
	CreatedBy    *string    `db:"created_by" json:"created_by,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
	GeneratedAt  *time.Time `db:"generated_at" json:"generated_at,omitempty"`
	PublishedAt  *time.Time `db:"published_at" json:"published_at,omitempty"`
}

// Scope returns the run's scheduling scope.
func (r TimetableRun) Scope() RunScope {
	return RunScope{CollegeID: r.CollegeID, CourseID: r.CourseID, AcademicYear: r.AcademicYear, Semester: r.Semester}
}

// RunFilter narrows run listings.
type RunFilter struct {
	CollegeID    string
	Status       *RunStatus
	CourseID     *string
	AcademicYear string
	Semester     int
	Page         int
	PageSize     int
}

// TimetableEntry is one scheduled class placement inside a run.
type TimetableEntry struct {
	ID          string    `db:"id" json:"id"`
	RunID       string    `db:"run_id" json:"run_id"`
	DayID       string    `db:"day_id" json:"day_id"`
	TimeSlotID  string    `db:"time_slot_id" json:"time_slot_id"`
	CourseID    string    `db:"course_id" json:"course_id"`
	UnitID      string    `db:"unit_id" json:"unit_id"`
	LecturerID  *string   `db:"lecturer_id" json:"lecturer_id,omitempty"`
	ClassroomID *string   `db:"classroom_id" json:"classroom_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// TimetableEntryDetail is an entry joined with the names needed for rendering.
type TimetableEntryDetail struct {
	TimetableEntry
	DayName       string  `db:"day_name" json:"day_name"`
	DayOrder      int     `db:"day_order" json:"day_order"`
	StartTime     string  `db:"start_time" json:"start_time"`
	EndTime       string  `db:"end_time" json:"end_time"`
	CourseName    string  `db:"course_name" json:"course_name"`
	UnitCode      string  `db:"unit_code" json:"unit_code"`
	UnitName      string  `db:"unit_name" json:"unit_name"`
	LecturerName  *string `db:"lecturer_name" json:"lecturer_name,omitempty"`
	ClassroomName *string `db:"classroom_name" json:"classroom_name,omitempty"`
}

// ScheduleConflict describes another entry holding a resource at the same day and slot.
type ScheduleConflict struct {
	EntryID   string `json:"entry_id"`
	Dimension string `json:"dimension"`
	Resource  string `json:"resource"`
}
