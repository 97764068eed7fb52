package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-scheduler/internal/models"
	"github.com/noah-isme/course-scheduler/pkg/logger"
)

type auditRepository interface {
	ListActive(ctx context.Context, filter models.AuditFilter) ([]models.Schedule, error)
	UpdateConflictFlags(ctx context.Context, flags map[string]bool) error
}

// AuditOptions narrows a sweep and controls whether flags are written back.
type AuditOptions struct {
	Filter      models.AuditFilter
	UpdateFlags bool
}

// AuditService re-checks every active schedule and reports block sections
// that are double-booked.
type AuditService struct {
	repo       auditRepository
	yearLevels YearLevelResolver
	window     DayWindow
	metrics    *MetricsService
	logger     *zap.Logger
	now        func() time.Time
}

// NewAuditService constructs the audit sweep.
func NewAuditService(repo auditRepository, yearLevels YearLevelResolver, window DayWindow, metrics *MetricsService, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{
		repo:       repo,
		yearLevels: yearLevels,
		window:     window,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// Run loads the active schedules once and re-runs the conflict rules for each
// of them against an in-memory snapshot of its term. Only block-sectioning
// conflicts are reported; flags reflect every hard conflict.
func (s *AuditService) Run(ctx context.Context, opts AuditOptions) (report *models.BlockSectionReport, err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveAudit(report, time.Since(start))
	}()

	schedules, err := s.repo.ListActive(ctx, opts.Filter)
	if err != nil {
		return nil, fmt.Errorf("load active schedules: %w", err)
	}

	snapshot := newTermSnapshot(schedules)
	detector := NewConflictDetector(snapshot, s.yearLevels, nil, s.window)

	groups := make(map[models.BlockSection]*models.BlockSectionGroup)
	seenPairs := make(map[string]struct{})
	flags := make(map[string]bool)

	for _, schedule := range schedules {
		conflicts, err := detector.DetectConflicts(ctx, schedule, true)
		if err != nil {
			return nil, fmt.Errorf("audit schedule %s: %w", schedule.ID, err)
		}
		duplicates, err := detector.CheckDuplicateSubjectSection(ctx, schedule, true)
		if err != nil {
			return nil, fmt.Errorf("audit schedule %s: %w", schedule.ID, err)
		}
		// Rows imported before the unique index existed can still duplicate.
		conflicted := len(conflicts) > 0 || len(duplicates) > 0
		if conflicted != schedule.IsConflicted {
			flags[schedule.ID] = conflicted
		}

		for _, c := range conflicts {
			if c.Type != models.ConflictBlockSectioning || c.BlockSection == nil {
				continue
			}
			key := pairKey(schedule.ID, c.Schedule.ID)
			if _, dup := seenPairs[key]; dup {
				continue
			}
			seenPairs[key] = struct{}{}

			group, ok := groups[*c.BlockSection]
			if !ok {
				group = &models.BlockSectionGroup{BlockSection: *c.BlockSection}
				groups[*c.BlockSection] = group
			}
			first, second := orderPair(schedule, c.Schedule)
			group.Pairs = append(group.Pairs, models.BlockSectionConflictPair{
				First:   first,
				Second:  second,
				Message: pairMessage(*c.BlockSection, first, second),
			})
		}
	}

	report = &models.BlockSectionReport{
		GeneratedAt:      s.now().UTC(),
		SchedulesScanned: len(schedules),
		Groups:           sortedGroups(groups),
	}

	if opts.UpdateFlags && len(flags) > 0 {
		if err := s.repo.UpdateConflictFlags(ctx, flags); err != nil {
			return nil, fmt.Errorf("update conflict flags: %w", err)
		}
		report.FlagsUpdated = len(flags)
	}

	logger.WithContext(ctx, s.logger).Info("schedule audit completed",
		zap.Int("schedules_scanned", report.SchedulesScanned),
		zap.Int("block_section_conflicts", report.ConflictCount()),
		zap.Int("flags_updated", report.FlagsUpdated),
		zap.Duration("duration", time.Since(start)),
	)
	return report, nil
}

// termSnapshot serves ListActiveByTerm from schedules already in memory.
type termSnapshot map[termKey][]models.Schedule

type termKey struct {
	academicYearID string
	semester       models.Semester
}

func newTermSnapshot(schedules []models.Schedule) termSnapshot {
	snapshot := make(termSnapshot)
	for _, s := range schedules {
		if s.Status != models.ScheduleStatusActive {
			continue
		}
		key := termKey{academicYearID: s.AcademicYearID, semester: s.Semester}
		snapshot[key] = append(snapshot[key], s)
	}
	return snapshot
}

func (t termSnapshot) ListActiveByTerm(_ context.Context, academicYearID string, semester models.Semester) ([]models.Schedule, error) {
	return t[termKey{academicYearID: academicYearID, semester: semester}], nil
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

func orderPair(a, b models.Schedule) (models.Schedule, models.Schedule) {
	if b.StartTime < a.StartTime || (b.StartTime == a.StartTime && b.ID < a.ID) {
		return b, a
	}
	return a, b
}

func pairMessage(block models.BlockSection, first, second models.Schedule) string {
	return fmt.Sprintf("Year %d - Section %s: %s %s-%s overlaps %s %s-%s",
		block.YearLevel, block.Section,
		first.DayPattern, first.StartTime, first.EndTime,
		second.DayPattern, second.StartTime, second.EndTime,
	)
}

func sortedGroups(groups map[models.BlockSection]*models.BlockSectionGroup) []models.BlockSectionGroup {
	out := make([]models.BlockSectionGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].YearLevel != out[j].YearLevel {
			return out[i].YearLevel < out[j].YearLevel
		}
		return out[i].Section < out[j].Section
	})
	return out
}
