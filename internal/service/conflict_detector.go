package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/course-scheduler/internal/models"
	"github.com/noah-isme/course-scheduler/pkg/daypattern"
	"github.com/noah-isme/course-scheduler/pkg/timeofday"
)

// ScheduleSource supplies the active schedules of one academic term.
type ScheduleSource interface {
	ListActiveByTerm(ctx context.Context, academicYearID string, semester models.Semester) ([]models.Schedule, error)
}

// YearLevelResolver follows a curriculum subject link to its year level.
// ok is false when the schedule has no block-section identity.
type YearLevelResolver interface {
	ResolveYearLevel(ctx context.Context, curriculumSubjectID string) (level int, ok bool, err error)
}

// RoomLookup loads room data for capacity checks.
type RoomLookup interface {
	FindRoomByID(ctx context.Context, id string) (*models.Room, error)
}

// DayWindow is the institutional teaching day. Meetings must fit inside it.
type DayWindow struct {
	Start timeofday.Clock
	End   timeofday.Clock
}

// DefaultDayWindow spans 06:00 to 22:00.
var DefaultDayWindow = DayWindow{Start: timeofday.New(6, 0), End: timeofday.New(22, 0)}

// ConflictDetector decides whether a schedule collides with the schedules on
// the books. It keeps no state between calls; every call re-reads its
// candidate set from the ScheduleSource.
type ConflictDetector struct {
	schedules  ScheduleSource
	yearLevels YearLevelResolver
	rooms      RoomLookup
	window     DayWindow
}

// NewConflictDetector wires the detector. yearLevels and rooms may be nil, in
// which case block-sectioning and capacity checks never fire.
func NewConflictDetector(schedules ScheduleSource, yearLevels YearLevelResolver, rooms RoomLookup, window DayWindow) *ConflictDetector {
	if window.Start == 0 && window.End == 0 {
		window = DefaultDayWindow
	}
	return &ConflictDetector{schedules: schedules, yearLevels: yearLevels, rooms: rooms, window: window}
}

// DetectConflicts runs the room-time and block-sectioning rules of candidate
// against every active schedule of the same academic year and semester. All
// rules are evaluated for every opposing schedule.
func (d *ConflictDetector) DetectConflicts(ctx context.Context, candidate models.Schedule, excludeSelf bool) ([]models.ConflictRecord, error) {
	others, err := d.candidateSet(ctx, candidate, excludeSelf)
	if err != nil {
		return nil, err
	}

	levels := newYearLevelMemo(d.yearLevels)
	candidateDays := daypattern.Parse(candidate.DayPattern)
	var conflicts []models.ConflictRecord

	for _, other := range others {
		if !candidateDays.Intersects(daypattern.Parse(other.DayPattern)) {
			continue
		}
		if !timeofday.Overlaps(candidate.StartTime, candidate.EndTime, other.StartTime, other.EndTime) {
			continue
		}

		if candidate.RoomID == other.RoomID {
			conflicts = append(conflicts, models.ConflictRecord{
				Type:     models.ConflictRoomTime,
				Schedule: other,
				Message:  fmt.Sprintf("room is already booked on %s from %s to %s (section %s)", other.DayPattern, other.StartTime, other.EndTime, strings.TrimSpace(other.Section)),
			})
		}

		block, err := d.sharedBlockSection(ctx, levels, candidate, other)
		if err != nil {
			return nil, err
		}
		if block != nil {
			conflicts = append(conflicts, models.ConflictRecord{
				Type:         models.ConflictBlockSectioning,
				Schedule:     other,
				BlockSection: block,
				Message:      fmt.Sprintf("block section Year %d - Section %s already has a class on %s from %s to %s", block.YearLevel, block.Section, other.DayPattern, other.StartTime, other.EndTime),
			})
		}
	}
	return conflicts, nil
}

// CheckDuplicateSubjectSection reports schedules that repeat the candidate's
// subject and section within the same academic year and semester, whatever
// their room, days or times.
func (d *ConflictDetector) CheckDuplicateSubjectSection(ctx context.Context, candidate models.Schedule, excludeSelf bool) ([]models.ConflictRecord, error) {
	others, err := d.candidateSet(ctx, candidate, excludeSelf)
	if err != nil {
		return nil, err
	}

	section := candidate.NormalizedSection()
	var conflicts []models.ConflictRecord
	for _, other := range others {
		if other.SubjectID != candidate.SubjectID || other.NormalizedSection() != section {
			continue
		}
		conflicts = append(conflicts, models.ConflictRecord{
			Type:     models.ConflictDuplicateSubjectSection,
			Schedule: other,
			Message:  fmt.Sprintf("subject is already scheduled for section %s in the %s semester", section, candidate.Semester),
		})
	}
	return conflicts, nil
}

// ValidateTimeRange returns human readable problems with the meeting times.
// Conflict detection is meaningless while this list is non-empty.
func (d *ConflictDetector) ValidateTimeRange(schedule models.Schedule) []string {
	var problems []string
	if !schedule.StartTime.Valid() {
		problems = append(problems, "start time is not a valid time of day")
	}
	if !schedule.EndTime.Valid() {
		problems = append(problems, "end time is not a valid time of day")
	}
	if len(problems) > 0 {
		return problems
	}

	if !schedule.StartTime.Before(schedule.EndTime) {
		problems = append(problems, fmt.Sprintf("start time %s must be before end time %s", schedule.StartTime, schedule.EndTime))
	}
	if schedule.StartTime.Before(d.window.Start) {
		problems = append(problems, fmt.Sprintf("start time %s is before the institutional day starts at %s", schedule.StartTime, d.window.Start))
	}
	if schedule.EndTime.After(d.window.End) {
		problems = append(problems, fmt.Sprintf("end time %s is after the institutional day ends at %s", schedule.EndTime, d.window.End))
	}
	return problems
}

// ValidateRoomCapacity warns when enrolment exceeds the room's capacity. The
// warning never blocks persistence.
func (d *ConflictDetector) ValidateRoomCapacity(ctx context.Context, schedule models.Schedule) ([]string, error) {
	if d.rooms == nil || schedule.RoomID == "" {
		return nil, nil
	}
	room, err := d.rooms.FindRoomByID(ctx, schedule.RoomID)
	if err != nil {
		return nil, fmt.Errorf("load room %s: %w", schedule.RoomID, err)
	}
	if room.Capacity <= 0 || schedule.EnrolledStudents <= room.Capacity {
		return nil, nil
	}
	return []string{
		fmt.Sprintf("enrolled students (%d) exceed the capacity of room %s (%d)", schedule.EnrolledStudents, room.Name, room.Capacity),
	}, nil
}

// Evaluate runs every check in order: time range first, then the hard
// conflict rules, then the capacity warning.
func (d *ConflictDetector) Evaluate(ctx context.Context, candidate models.Schedule, excludeSelf bool) (*models.ScheduleCheck, error) {
	check := &models.ScheduleCheck{ValidationErrors: d.ValidateTimeRange(candidate)}
	if len(check.ValidationErrors) > 0 {
		return check, nil
	}

	conflicts, err := d.DetectConflicts(ctx, candidate, excludeSelf)
	if err != nil {
		return nil, err
	}
	duplicates, err := d.CheckDuplicateSubjectSection(ctx, candidate, excludeSelf)
	if err != nil {
		return nil, err
	}
	check.Conflicts = append(conflicts, duplicates...)

	warnings, err := d.ValidateRoomCapacity(ctx, candidate)
	if err != nil {
		return nil, err
	}
	check.Warnings = warnings
	return check, nil
}

func (d *ConflictDetector) candidateSet(ctx context.Context, candidate models.Schedule, excludeSelf bool) ([]models.Schedule, error) {
	schedules, err := d.schedules.ListActiveByTerm(ctx, candidate.AcademicYearID, candidate.Semester)
	if err != nil {
		return nil, fmt.Errorf("load active schedules: %w", err)
	}
	if !excludeSelf || !candidate.Persisted() {
		return schedules, nil
	}
	filtered := make([]models.Schedule, 0, len(schedules))
	for _, s := range schedules {
		if s.ID != candidate.ID {
			filtered = append(filtered, s)
		}
	}
	return filtered, nil
}

func (d *ConflictDetector) sharedBlockSection(ctx context.Context, levels *yearLevelMemo, a, b models.Schedule) (*models.BlockSection, error) {
	section := a.NormalizedSection()
	if section != b.NormalizedSection() {
		return nil, nil
	}
	levelA, okA, err := levels.lookup(ctx, a)
	if err != nil || !okA {
		return nil, err
	}
	levelB, okB, err := levels.lookup(ctx, b)
	if err != nil || !okB {
		return nil, err
	}
	if levelA != levelB {
		return nil, nil
	}
	return &models.BlockSection{YearLevel: levelA, Section: section}, nil
}

type yearLevel struct {
	level int
	ok    bool
}

// yearLevelMemo caches lookups for the duration of a single detection call.
type yearLevelMemo struct {
	resolver YearLevelResolver
	seen     map[string]yearLevel
}

func newYearLevelMemo(resolver YearLevelResolver) *yearLevelMemo {
	return &yearLevelMemo{resolver: resolver, seen: make(map[string]yearLevel)}
}

func (m *yearLevelMemo) lookup(ctx context.Context, s models.Schedule) (int, bool, error) {
	if m.resolver == nil || s.CurriculumSubjectID == nil || *s.CurriculumSubjectID == "" {
		return 0, false, nil
	}
	id := *s.CurriculumSubjectID
	if cached, hit := m.seen[id]; hit {
		return cached.level, cached.ok, nil
	}
	level, ok, err := m.resolver.ResolveYearLevel(ctx, id)
	if err != nil {
		return 0, false, fmt.Errorf("resolve year level for %s: %w", id, err)
	}
	m.seen[id] = yearLevel{level: level, ok: ok}
	return level, ok, nil
}
