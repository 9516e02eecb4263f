package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/campus-timetable-api/internal/models"
)

const (
	// lecturerOverloadShare flags lecturers holding more than this share of day x slot cells.
	lecturerOverloadShare = 0.3
)

// AssignmentInput is everything one generation pass places units into.
type AssignmentInput struct {
	Units      []models.SchedulableUnit
	Days       []models.Day
	TimeSlots  []models.TimeSlot
	Classrooms []models.Classroom
}

// Placement is one unit bound to a day, slot and classroom.
type Placement struct {
	Unit        models.SchedulableUnit
	DayID       string
	TimeSlotID  string
	ClassroomID string
}

// AssignmentOutcome reports the placements made. When Complete is false Unplaced names the first unit
// that found no cell and Recommendations explain the shortage.
type AssignmentOutcome struct {
	Placements      []Placement
	Complete        bool
	Unplaced        *models.SchedulableUnit
	Recommendations []string
}

// SlotAssigner runs the greedy round-robin, first-fit placement.
type SlotAssigner struct{}

// NewSlotAssigner constructs a SlotAssigner.
func NewSlotAssigner() *SlotAssigner {
	return &SlotAssigner{}
}

type cellKey struct {
	day  string
	slot string
}

// assignmentState is owned by a single Assign call.
type assignmentState struct {
	lecturerBusy  map[string]map[cellKey]struct{}
	courseBusy    map[string]map[cellKey]struct{}
	classroomBusy map[cellKey]map[string]struct{}
	lecturerLoad  map[string]int
	usernames     map[string]string
}

func newAssignmentState() *assignmentState {
	return &assignmentState{
		lecturerBusy:  make(map[string]map[cellKey]struct{}),
		courseBusy:    make(map[string]map[cellKey]struct{}),
		classroomBusy: make(map[cellKey]map[string]struct{}),
		lecturerLoad:  make(map[string]int),
		usernames:     make(map[string]string),
	}
}

func (s *assignmentState) busy(index map[string]map[cellKey]struct{}, id string, key cellKey) bool {
	_, ok := index[id][key]
	return ok
}

func (s *assignmentState) mark(index map[string]map[cellKey]struct{}, id string, key cellKey) {
	cells, ok := index[id]
	if !ok {
		cells = make(map[cellKey]struct{})
		index[id] = cells
	}
	cells[key] = struct{}{}
}

func (s *assignmentState) record(unit models.SchedulableUnit, key cellKey, classroomID string) {
	s.mark(s.lecturerBusy, unit.LecturerID, key)
	s.mark(s.courseBusy, unit.CourseID, key)
	rooms, ok := s.classroomBusy[key]
	if !ok {
		rooms = make(map[string]struct{})
		s.classroomBusy[key] = rooms
	}
	rooms[classroomID] = struct{}{}
	s.lecturerLoad[unit.LecturerID]++
	s.usernames[unit.LecturerID] = unit.LecturerUsername
}

// Assign distributes units across days round-robin, then for each day and each of its units takes the
// first slot where neither the lecturer nor the course is busy and the first classroom free in that slot.
// Days are ordered by order_index and slots by start time so identical input yields identical output.
func (a *SlotAssigner) Assign(ctx context.Context, input AssignmentInput) (AssignmentOutcome, error) {
	days := sortedDays(input.Days)
	slots := sortedTimeSlots(input.TimeSlots)
	rooms := input.Classrooms

	outcome := AssignmentOutcome{Placements: make([]Placement, 0, len(input.Units))}
	if len(input.Units) == 0 {
		outcome.Complete = true
		return outcome, nil
	}
	if len(days) == 0 || len(slots) == 0 || len(rooms) == 0 {
		unit := input.Units[0]
		outcome.Unplaced = &unit
		outcome.Recommendations = failureRecommendations(input.Units, days, slots, rooms, newAssignmentState())
		return outcome, nil
	}

	buckets := make([][]models.SchedulableUnit, len(days))
	for i, unit := range input.Units {
		idx := i % len(days)
		buckets[idx] = append(buckets[idx], unit)
	}

	state := newAssignmentState()
	for dayIdx, day := range days {
		for _, unit := range buckets[dayIdx] {
			if err := ctx.Err(); err != nil {
				return outcome, err
			}
			if unit.LecturerID == "" {
				continue
			}
			placement, ok := a.firstFit(state, unit, day, slots, rooms)
			if !ok {
				failed := unit
				outcome.Unplaced = &failed
				outcome.Recommendations = failureRecommendations(input.Units, days, slots, rooms, state)
				return outcome, nil
			}
			state.record(unit, cellKey{day: placement.DayID, slot: placement.TimeSlotID}, placement.ClassroomID)
			outcome.Placements = append(outcome.Placements, placement)
		}
	}
	outcome.Complete = true
	return outcome, nil
}

func (a *SlotAssigner) firstFit(state *assignmentState, unit models.SchedulableUnit, day models.Day, slots []models.TimeSlot, rooms []models.Classroom) (Placement, bool) {
	for _, slot := range slots {
		key := cellKey{day: day.ID, slot: slot.ID}
		if state.busy(state.lecturerBusy, unit.LecturerID, key) {
			continue
		}
		if state.busy(state.courseBusy, unit.CourseID, key) {
			continue
		}
		used := state.classroomBusy[key]
		for _, room := range rooms {
			if _, taken := used[room.ID]; taken {
				continue
			}
			return Placement{Unit: unit, DayID: day.ID, TimeSlotID: slot.ID, ClassroomID: room.ID}, true
		}
	}
	return Placement{}, false
}

func failureRecommendations(units []models.SchedulableUnit, days []models.Day, slots []models.TimeSlot, rooms []models.Classroom, state *assignmentState) []string {
	var recommendations []string
	totalSlots := len(days) * len(slots)
	totalUnits := len(units)

	if totalUnits > totalSlots {
		recommendations = append(recommendations, fmt.Sprintf("Too many units (%d) for available time slots (%d). Add more time slots or reduce units.", totalUnits, totalSlots))
	}
	if totalUnits > len(days)*len(rooms) {
		recommendations = append(recommendations, fmt.Sprintf("Too many units (%d) for available classrooms (%d). Add more classrooms.", totalUnits, len(rooms)))
	}

	threshold := float64(totalSlots) * lecturerOverloadShare
	var overloaded []string
	for lecturerID, count := range state.lecturerLoad {
		if float64(count) > threshold {
			name := state.usernames[lecturerID]
			if name == "" {
				name = lecturerID
			}
			overloaded = append(overloaded, name)
		}
	}
	if len(overloaded) > 0 {
		sort.Strings(overloaded)
		recommendations = append(recommendations, fmt.Sprintf("Lecturers overloaded: %s. Consider redistributing units or adding more lecturers.", strings.Join(overloaded, ", ")))
	}

	if len(recommendations) == 0 {
		recommendations = append(recommendations,
			"Add more time slots",
			"Add more classrooms",
			"Consider scheduling some units across multiple weeks",
		)
	}
	return recommendations
}

func sortedDays(days []models.Day) []models.Day {
	out := append([]models.Day(nil), days...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out
}

// HH:MM strings order lexically.
func sortedTimeSlots(slots []models.TimeSlot) []models.TimeSlot {
	out := append([]models.TimeSlot(nil), slots...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].EndTime < out[j].EndTime
	})
	return out
}
