package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-timetable-api/internal/dto"
	"github.com/noah-isme/campus-timetable-api/internal/models"
	appErrors "github.com/noah-isme/campus-timetable-api/pkg/errors"
)

// Grid builds the editable grid of a run with rows keyed by course, lecturer or classroom.
// The boolean reports whether the view came from cache.
func (s *TimetableService) Grid(ctx context.Context, collegeID, runID string, mode dto.GridMode) (*dto.GridView, bool, error) {
	run, err := s.loadRun(ctx, collegeID, runID)
	if err != nil {
		return nil, false, err
	}

	if s.cache != nil {
		if cached, hit := s.cache.Lookup(ctx, run, mode); hit {
			return cached, true, nil
		}
	}

	view, err := s.buildGrid(ctx, run, mode)
	if err != nil {
		return nil, false, err
	}
	if s.cache != nil {
		if err := s.cache.Store(ctx, run, view); err != nil {
			s.logger.Debug("grid cache write skipped", zap.String("run_id", run.ID), zap.Error(err))
		}
	}
	return view, false, nil
}

// Reference returns the pickers needed to initialise an empty grid, plus the college's active run.
func (s *TimetableService) Reference(ctx context.Context, collegeID string) (*dto.ReferenceSnapshot, error) {
	days, err := s.reference.ListDays(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable days")
	}
	slots, err := s.reference.ListTimeSlots(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time slots")
	}
	courses, err := s.academics.ListCourses(ctx, collegeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}
	lecturers, err := s.reference.ListLecturers(ctx, collegeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lecturers")
	}
	rooms, err := s.reference.ListClassrooms(ctx, collegeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classrooms")
	}

	snapshot := &dto.ReferenceSnapshot{
		Days:       make([]dto.GridOption, 0, len(days)),
		TimeSlots:  timeSlotOptions(slots),
		Courses:    make([]dto.GridOption, 0, len(courses)),
		Lecturers:  lecturerOptions(lecturers),
		Classrooms: classroomOptions(rooms),
	}
	for _, day := range sortedDays(days) {
		snapshot.Days = append(snapshot.Days, dto.GridOption{ID: day.ID, Name: day.Name})
	}
	for _, course := range courses {
		snapshot.Courses = append(snapshot.Courses, dto.GridOption{ID: course.ID, Name: course.Name})
	}
	sortOptionsByName(snapshot.Courses)

	active, err := s.runs.FindActive(ctx, collegeID)
	switch {
	case err == nil:
		snapshot.ActiveRun = &dto.RunSummary{ID: active.ID, Status: active.Status}
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active timetable run")
	}
	return snapshot, nil
}

func (s *TimetableService) buildGrid(ctx context.Context, run *models.TimetableRun, mode dto.GridMode) (*dto.GridView, error) {
	days, err := s.reference.ListDays(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable days")
	}
	slots, err := s.reference.ListTimeSlots(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time slots")
	}
	rooms, err := s.reference.ListClassrooms(ctx, run.CollegeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classrooms")
	}
	lecturers, err := s.reference.ListLecturers(ctx, run.CollegeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lecturers")
	}
	entries, err := s.entries.ListDetailedByRun(ctx, run.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable entries")
	}

	days = sortedDays(days)
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].DayOrder != entries[j].DayOrder {
			return entries[i].DayOrder < entries[j].DayOrder
		}
		return entries[i].StartTime < entries[j].StartTime
	})

	view := &dto.GridView{
		RunID:         run.ID,
		Status:        run.Status,
		Mode:          mode,
		Days:          days,
		Rows:          []dto.GridRow{},
		Entries:       make(map[string]dto.GridEntry, len(entries)),
		AllTimeSlots:  timeSlotOptions(slots),
		AllClassrooms: classroomOptions(rooms),
		AllLecturers:  lecturerOptions(lecturers),
	}

	rowIndex := make(map[string]int)
	for _, entry := range entries {
		view.Entries[entry.ID] = gridEntry(entry)

		rowID, label, ok := gridRowKey(entry, mode)
		if !ok {
			continue
		}
		idx, seen := rowIndex[rowID]
		if !seen {
			row := dto.GridRow{ID: rowID, Label: label, DayEntries: make(map[string][]string, len(days))}
			for _, day := range days {
				row.DayEntries[day.ID] = []string{}
			}
			view.Rows = append(view.Rows, row)
			idx = len(view.Rows) - 1
			rowIndex[rowID] = idx
		}
		view.Rows[idx].DayEntries[entry.DayID] = append(view.Rows[idx].DayEntries[entry.DayID], entry.ID)
	}
	return view, nil
}

func gridRowKey(entry models.TimetableEntryDetail, mode dto.GridMode) (string, string, bool) {
	switch mode {
	case dto.GridModeLecturer:
		if entry.LecturerID == nil {
			return "", "", false
		}
		return *entry.LecturerID, stringOr(entry.LecturerName, placeholderName), true
	case dto.GridModeClassroom:
		if entry.ClassroomID == nil {
			return "", "", false
		}
		return *entry.ClassroomID, stringOr(entry.ClassroomName, placeholderName), true
	default:
		return entry.CourseID, entry.CourseName, true
	}
}

func gridEntry(entry models.TimetableEntryDetail) dto.GridEntry {
	return dto.GridEntry{
		ID:            entry.ID,
		DayID:         entry.DayID,
		DayName:       entry.DayName,
		TimeSlotID:    entry.TimeSlotID,
		TimeSlotStart: entry.StartTime,
		TimeSlotEnd:   entry.EndTime,
		CourseID:      entry.CourseID,
		CourseName:    entry.CourseName,
		UnitID:        entry.UnitID,
		UnitCode:      entry.UnitCode,
		UnitName:      entry.UnitName,
		LecturerID:    entry.LecturerID,
		LecturerName:  stringOr(entry.LecturerName, placeholderName),
		ClassroomID:   entry.ClassroomID,
		ClassroomName: stringOr(entry.ClassroomName, placeholderName),
	}
}

func timeSlotOptions(slots []models.TimeSlot) []dto.GridOption {
	options := make([]dto.GridOption, 0, len(slots))
	for _, slot := range sortedTimeSlots(slots) {
		options = append(options, dto.GridOption{ID: slot.ID, Name: slot.String(), Start: slot.StartTime, End: slot.EndTime})
	}
	return options
}

func classroomOptions(rooms []models.Classroom) []dto.GridOption {
	options := make([]dto.GridOption, 0, len(rooms))
	for _, room := range rooms {
		options = append(options, dto.GridOption{ID: room.ID, Name: room.Name})
	}
	sortOptionsByName(options)
	return options
}

func lecturerOptions(lecturers []models.Lecturer) []dto.GridOption {
	options := make([]dto.GridOption, 0, len(lecturers))
	for _, lecturer := range lecturers {
		options = append(options, dto.GridOption{ID: lecturer.ID, Name: lecturer.DisplayName()})
	}
	sortOptionsByName(options)
	return options
}

func sortOptionsByName(options []dto.GridOption) {
	sort.SliceStable(options, func(i, j int) bool { return options[i].Name < options[j].Name })
}

func stringOr(value *string, fallback string) string {
	if value == nil || *value == "" {
		return fallback
	}
	return *value
}
