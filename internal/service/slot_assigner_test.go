package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-timetable-api/internal/models"
)

func fixtureDays(n int) []models.Day {
	names := []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}
	days := make([]models.Day, 0, n)
	for i := 0; i < n; i++ {
		days = append(days, models.Day{ID: fmt.Sprintf("day-%d", i+1), Name: names[i%len(names)], OrderIndex: i + 1})
	}
	return days
}

func fixtureSlots(n int) []models.TimeSlot {
	slots := make([]models.TimeSlot, 0, n)
	for i := 0; i < n; i++ {
		slots = append(slots, models.TimeSlot{
			ID:        fmt.Sprintf("slot-%d", i+1),
			StartTime: fmt.Sprintf("%02d:00", 8+i),
			EndTime:   fmt.Sprintf("%02d:00", 9+i),
		})
	}
	return slots
}

func fixtureRooms(n int) []models.Classroom {
	rooms := make([]models.Classroom, 0, n)
	for i := 0; i < n; i++ {
		rooms = append(rooms, models.Classroom{ID: fmt.Sprintf("room-%d", i+1), CollegeID: "college-1", Name: fmt.Sprintf("Room %d", i+1), Capacity: 40})
	}
	return rooms
}

func fixtureUnit(course, unit, lecturer string) models.SchedulableUnit {
	return models.SchedulableUnit{
		CourseID:         course,
		CourseName:       "Course " + course,
		UnitID:           unit,
		UnitCode:         "CODE-" + unit,
		UnitName:         "Unit " + unit,
		LecturerID:       lecturer,
		LecturerUsername: "user-" + lecturer,
	}
}

func assertNoDoubleBooking(t *testing.T, placements []Placement) {
	t.Helper()
	lecturers := map[string]string{}
	rooms := map[string]string{}
	courses := map[string]string{}
	for _, p := range placements {
		cell := p.DayID + "|" + p.TimeSlotID
		lk := cell + "|" + p.Unit.LecturerID
		rk := cell + "|" + p.ClassroomID
		ck := cell + "|" + p.Unit.CourseID
		assert.NotContains(t, lecturers, lk, "lecturer double-booked")
		assert.NotContains(t, rooms, rk, "classroom double-booked")
		assert.NotContains(t, courses, ck, "course double-booked")
		lecturers[lk] = p.Unit.UnitID
		rooms[rk] = p.Unit.UnitID
		courses[ck] = p.Unit.UnitID
	}
}

func TestSlotAssignerFailsWhenSingleCellIsContested(t *testing.T) {
	assigner := NewSlotAssigner()
	outcome, err := assigner.Assign(context.Background(), AssignmentInput{
		Units: []models.SchedulableUnit{
			fixtureUnit("course-1", "unit-1", "lec-1"),
			fixtureUnit("course-2", "unit-2", "lec-2"),
		},
		Days:       fixtureDays(1),
		TimeSlots:  fixtureSlots(1),
		Classrooms: fixtureRooms(1),
	})
	require.NoError(t, err)
	assert.False(t, outcome.Complete)
	require.Len(t, outcome.Placements, 1)
	require.NotNil(t, outcome.Unplaced)
	assert.Equal(t, "unit-2", outcome.Unplaced.UnitID)
	assert.Contains(t, outcome.Recommendations, "Too many units (2) for available time slots (1). Add more time slots or reduce units.")
	assert.Contains(t, outcome.Recommendations, "Too many units (2) for available classrooms (1). Add more classrooms.")
}

func TestSlotAssignerPlacesTwoUnitsWithDistinctLecturers(t *testing.T) {
	assigner := NewSlotAssigner()
	outcome, err := assigner.Assign(context.Background(), AssignmentInput{
		Units: []models.SchedulableUnit{
			fixtureUnit("course-1", "unit-1", "lec-1"),
			fixtureUnit("course-1", "unit-2", "lec-2"),
		},
		Days:       fixtureDays(5),
		TimeSlots:  fixtureSlots(4),
		Classrooms: fixtureRooms(2),
	})
	require.NoError(t, err)
	require.True(t, outcome.Complete)
	require.Len(t, outcome.Placements, 2)
	assert.Equal(t, "lec-1", outcome.Placements[0].Unit.LecturerID)
	assert.Equal(t, "lec-2", outcome.Placements[1].Unit.LecturerID)
	assert.Equal(t, "day-1", outcome.Placements[0].DayID)
	assert.Equal(t, "day-2", outcome.Placements[1].DayID)
	assert.Empty(t, outcome.Recommendations)
}

func TestSlotAssignerSameCourseNeverSharesSlot(t *testing.T) {
	assigner := NewSlotAssigner()
	outcome, err := assigner.Assign(context.Background(), AssignmentInput{
		Units: []models.SchedulableUnit{
			fixtureUnit("course-1", "unit-1", "lec-1"),
			fixtureUnit("course-1", "unit-2", "lec-2"),
		},
		Days:       fixtureDays(1),
		TimeSlots:  fixtureSlots(2),
		Classrooms: fixtureRooms(2),
	})
	require.NoError(t, err)
	require.True(t, outcome.Complete)
	assert.Equal(t, "slot-1", outcome.Placements[0].TimeSlotID)
	assert.Equal(t, "slot-2", outcome.Placements[1].TimeSlotID)
	assert.Equal(t, "room-1", outcome.Placements[1].ClassroomID)
}

func TestSlotAssignerUsesNextClassroomInSharedSlot(t *testing.T) {
	assigner := NewSlotAssigner()
	outcome, err := assigner.Assign(context.Background(), AssignmentInput{
		Units: []models.SchedulableUnit{
			fixtureUnit("course-1", "unit-1", "lec-1"),
			fixtureUnit("course-2", "unit-2", "lec-2"),
		},
		Days:       fixtureDays(1),
		TimeSlots:  fixtureSlots(1),
		Classrooms: fixtureRooms(2),
	})
	require.NoError(t, err)
	require.True(t, outcome.Complete)
	assert.Equal(t, "room-1", outcome.Placements[0].ClassroomID)
	assert.Equal(t, "room-2", outcome.Placements[1].ClassroomID)
}

func TestSlotAssignerOrdersSlotsAndDays(t *testing.T) {
	assigner := NewSlotAssigner()
	days := []models.Day{
		{ID: "tuesday", Name: "Tuesday", OrderIndex: 2},
		{ID: "monday", Name: "Monday", OrderIndex: 1},
	}
	slots := []models.TimeSlot{
		{ID: "late", StartTime: "14:00", EndTime: "15:00"},
		{ID: "early", StartTime: "08:00", EndTime: "09:00"},
	}
	outcome, err := assigner.Assign(context.Background(), AssignmentInput{
		Units:      []models.SchedulableUnit{fixtureUnit("course-1", "unit-1", "lec-1")},
		Days:       days,
		TimeSlots:  slots,
		Classrooms: fixtureRooms(1),
	})
	require.NoError(t, err)
	require.Len(t, outcome.Placements, 1)
	assert.Equal(t, "monday", outcome.Placements[0].DayID)
	assert.Equal(t, "early", outcome.Placements[0].TimeSlotID)
}

func TestSlotAssignerInvariantsAndDeterminism(t *testing.T) {
	var units []models.SchedulableUnit
	for i := 0; i < 24; i++ {
		units = append(units, fixtureUnit(fmt.Sprintf("course-%d", i%4), fmt.Sprintf("unit-%d", i), fmt.Sprintf("lec-%d", i%6)))
	}
	input := AssignmentInput{Units: units, Days: fixtureDays(5), TimeSlots: fixtureSlots(6), Classrooms: fixtureRooms(3)}

	assigner := NewSlotAssigner()
	first, err := assigner.Assign(context.Background(), input)
	require.NoError(t, err)
	require.True(t, first.Complete)
	require.Len(t, first.Placements, len(units))
	assertNoDoubleBooking(t, first.Placements)

	placed := map[string]string{}
	for _, p := range first.Placements {
		placed[p.Unit.UnitID] = p.Unit.LecturerID
	}
	for _, unit := range units {
		assert.Equal(t, unit.LecturerID, placed[unit.UnitID])
	}

	second, err := assigner.Assign(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, first.Placements, second.Placements)
}

func TestSlotAssignerSkipsUnitsWithoutLecturer(t *testing.T) {
	assigner := NewSlotAssigner()
	outcome, err := assigner.Assign(context.Background(), AssignmentInput{
		Units: []models.SchedulableUnit{
			fixtureUnit("course-1", "unit-1", ""),
			fixtureUnit("course-1", "unit-2", "lec-2"),
		},
		Days:       fixtureDays(2),
		TimeSlots:  fixtureSlots(1),
		Classrooms: fixtureRooms(1),
	})
	require.NoError(t, err)
	assert.True(t, outcome.Complete)
	require.Len(t, outcome.Placements, 1)
	assert.Equal(t, "unit-2", outcome.Placements[0].Unit.UnitID)
}

func TestSlotAssignerFlagsOverloadedLecturer(t *testing.T) {
	var units []models.SchedulableUnit
	for i := 0; i < 3; i++ {
		units = append(units, fixtureUnit(fmt.Sprintf("course-%d", i), fmt.Sprintf("unit-%d", i), "lec-1"))
	}
	assigner := NewSlotAssigner()
	outcome, err := assigner.Assign(context.Background(), AssignmentInput{
		Units:      units,
		Days:       fixtureDays(1),
		TimeSlots:  fixtureSlots(2),
		Classrooms: fixtureRooms(3),
	})
	require.NoError(t, err)
	assert.False(t, outcome.Complete)
	assert.Len(t, outcome.Placements, 2)
	assert.Contains(t, outcome.Recommendations, "Lecturers overloaded: user-lec-1. Consider redistributing units or adding more lecturers.")
}

func TestFailureRecommendationsFallBackToGenericAdvice(t *testing.T) {
	units := []models.SchedulableUnit{fixtureUnit("course-1", "unit-1", "lec-1")}
	recommendations := failureRecommendations(units, fixtureDays(2), fixtureSlots(2), fixtureRooms(2), newAssignmentState())
	assert.Equal(t, []string{
		"Add more time slots",
		"Add more classrooms",
		"Consider scheduling some units across multiple weeks",
	}, recommendations)
}

func TestSlotAssignerHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSlotAssigner().Assign(ctx, AssignmentInput{
		Units:      []models.SchedulableUnit{fixtureUnit("course-1", "unit-1", "lec-1")},
		Days:       fixtureDays(1),
		TimeSlots:  fixtureSlots(1),
		Classrooms: fixtureRooms(1),
	})
	assert.ErrorIs(t, err, context.Canceled)
}
