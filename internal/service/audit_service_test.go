package service

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-scheduler/internal/models"
)

type auditRepoStub struct {
	schedules []models.Schedule
	listErr   error
	flagErr   error
	flags     map[string]bool
	filter    models.AuditFilter
}

func (s *auditRepoStub) ListActive(ctx context.Context, filter models.AuditFilter) ([]models.Schedule, error) {
	s.filter = filter
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.Schedule
	for _, item := range s.schedules {
		if filter.AcademicYearID != "" && item.AcademicYearID != filter.AcademicYearID {
			continue
		}
		if filter.Semester != "" && item.Semester != filter.Semester {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *auditRepoStub) UpdateConflictFlags(ctx context.Context, flags map[string]bool) error {
	if s.flagErr != nil {
		return s.flagErr
	}
	s.flags = flags
	return nil
}

func auditFixture() []models.Schedule {
	third := map[string]string{"s-1": "cs-3a", "s-2": "cs-3b", "s-3": "cs-3c"}
	schedules := []models.Schedule{
		withCurriculum(newSchedule("s-1", "math", "room-1", "A", "M-T-TH-F", "07:00", "08:30"), third["s-1"]),
		withCurriculum(newSchedule("s-2", "physics", "room-2", "a", "T-TH", "08:00", "09:30"), third["s-2"]),
		withCurriculum(newSchedule("s-3", "chem", "room-3", "A ", "T-TH", "09:00", "10:00"), third["s-3"]),
		withCurriculum(newSchedule("s-4", "history", "room-4", "B", "M-W-F", "07:00", "08:00"), "cs-1b"),
		withCurriculum(newSchedule("s-5", "english", "room-5", "B", "M-W-F", "10:00", "11:00"), "cs-1b2"),
	}
	schedules[3].IsConflicted = true
	return schedules
}

func auditLevels() map[string]int {
	return map[string]int{"cs-3a": 3, "cs-3b": 3, "cs-3c": 3, "cs-1b": 1, "cs-1b2": 1}
}

func TestAuditRunGroupsAndDeduplicatesPairs(t *testing.T) {
	repo := &auditRepoStub{schedules: auditFixture()}
	metrics := NewMetricsService()
	svc := NewAuditService(repo, &yearLevelStub{levels: auditLevels()}, DefaultDayWindow, metrics, nil)

	report, err := svc.Run(context.Background(), AuditOptions{})
	require.NoError(t, err)

	assert.Equal(t, 5, report.SchedulesScanned)
	require.Len(t, report.Groups, 1)
	group := report.Groups[0]
	assert.Equal(t, 3, group.YearLevel)
	assert.Equal(t, "A", group.Section)
	// s-1/s-2 and s-2/s-3 overlap; s-1/s-3 do not.
	require.Len(t, group.Pairs, 2)
	assert.Equal(t, "s-1", group.Pairs[0].First.ID)
	assert.Equal(t, "s-2", group.Pairs[0].Second.ID)
	assert.Equal(t, "s-2", group.Pairs[1].First.ID)
	assert.Equal(t, "s-3", group.Pairs[1].Second.ID)
	assert.Contains(t, group.Pairs[0].Message, "Year 3 - Section A")

	assert.Equal(t, 2, report.ConflictCount())
	assert.Equal(t, 0, report.FlagsUpdated)
	assert.Nil(t, repo.flags)
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.auditConflicts))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.auditRuns.WithLabelValues("ok")))
}

func TestAuditRunWritesOnlyChangedFlags(t *testing.T) {
	repo := &auditRepoStub{schedules: auditFixture()}
	svc := NewAuditService(repo, &yearLevelStub{levels: auditLevels()}, DefaultDayWindow, nil, nil)

	report, err := svc.Run(context.Background(), AuditOptions{UpdateFlags: true})
	require.NoError(t, err)

	assert.Equal(t, map[string]bool{"s-1": true, "s-2": true, "s-3": true, "s-4": false}, repo.flags)
	assert.Equal(t, 4, report.FlagsUpdated)
}

func TestAuditRunFlagsRoomConflictsWithoutReportingThem(t *testing.T) {
	repo := &auditRepoStub{schedules: []models.Schedule{
		newSchedule("s-1", "math", "room-1", "A", "M-W-F", "07:00", "08:30"),
		newSchedule("s-2", "physics", "room-1", "B", "M-W-F", "08:00", "09:00"),
	}}
	svc := NewAuditService(repo, &yearLevelStub{}, DefaultDayWindow, nil, nil)

	report, err := svc.Run(context.Background(), AuditOptions{UpdateFlags: true})
	require.NoError(t, err)
	assert.Empty(t, report.Groups)
	assert.Equal(t, map[string]bool{"s-1": true, "s-2": true}, repo.flags)
}

func TestAuditRunFlagsDuplicateSubjectSections(t *testing.T) {
	repo := &auditRepoStub{schedules: []models.Schedule{
		newSchedule("s-1", "math", "room-1", "A", "M-W-F", "07:00", "08:00"),
		newSchedule("s-2", "math", "room-2", "a ", "T-TH", "13:00", "14:00"),
		newSchedule("s-3", "math", "room-3", "B", "T-TH", "15:00", "16:00"),
	}}
	svc := NewAuditService(repo, &yearLevelStub{}, DefaultDayWindow, nil, nil)

	report, err := svc.Run(context.Background(), AuditOptions{UpdateFlags: true})
	require.NoError(t, err)
	assert.Empty(t, report.Groups)
	assert.Equal(t, map[string]bool{"s-1": true, "s-2": true}, repo.flags)
	assert.Equal(t, 2, report.FlagsUpdated)
}

func TestAuditRunKeepsTermsApart(t *testing.T) {
	other := withCurriculum(newSchedule("s-9", "physics", "room-2", "A", "T-TH", "08:00", "09:30"), "cs-3b")
	other.Semester = models.SemesterSecond
	repo := &auditRepoStub{schedules: []models.Schedule{
		withCurriculum(newSchedule("s-1", "math", "room-1", "A", "M-T-TH-F", "07:00", "08:30"), "cs-3a"),
		other,
	}}
	svc := NewAuditService(repo, &yearLevelStub{levels: auditLevels()}, DefaultDayWindow, nil, nil)

	report, err := svc.Run(context.Background(), AuditOptions{})
	require.NoError(t, err)
	assert.Empty(t, report.Groups)

	report, err = svc.Run(context.Background(), AuditOptions{Filter: models.AuditFilter{Semester: models.SemesterSecond}})
	require.NoError(t, err)
	assert.Equal(t, 1, report.SchedulesScanned)
	assert.Equal(t, models.SemesterSecond, repo.filter.Semester)
}

func TestAuditRunPropagatesFailures(t *testing.T) {
	metrics := NewMetricsService()
	repo := &auditRepoStub{listErr: errors.New("db down")}
	svc := NewAuditService(repo, &yearLevelStub{}, DefaultDayWindow, metrics, nil)

	_, err := svc.Run(context.Background(), AuditOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.auditRuns.WithLabelValues("error")))

	repo = &auditRepoStub{schedules: auditFixture(), flagErr: errors.New("deadlock")}
	svc = NewAuditService(repo, &yearLevelStub{levels: auditLevels()}, DefaultDayWindow, nil, nil)
	_, err = svc.Run(context.Background(), AuditOptions{UpdateFlags: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deadlock")

	svc = NewAuditService(&auditRepoStub{schedules: auditFixture()}, &yearLevelStub{err: errors.New("curriculum gone")}, DefaultDayWindow, nil, nil)
	_, err = svc.Run(context.Background(), AuditOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "curriculum gone")
}
