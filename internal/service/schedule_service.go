package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-scheduler/internal/dto"
	"github.com/noah-isme/course-scheduler/internal/models"
	"github.com/noah-isme/course-scheduler/pkg/daypattern"
	appErrors "github.com/noah-isme/course-scheduler/pkg/errors"
	"github.com/noah-isme/course-scheduler/pkg/logger"
	"github.com/noah-isme/course-scheduler/pkg/timeofday"
)

type scheduleRepository interface {
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error)
	FindByID(ctx context.Context, id string) (*models.Schedule, error)
	Create(ctx context.Context, schedule *models.Schedule) error
	Update(ctx context.Context, schedule *models.Schedule) error
	Deactivate(ctx context.Context, id string) error
}

type scheduleEvaluator interface {
	Evaluate(ctx context.Context, candidate models.Schedule, excludeSelf bool) (*models.ScheduleCheck, error)
}

// ScheduleService coordinates schedule writes with the conflict engine.
type ScheduleService struct {
	repo      scheduleRepository
	detector  scheduleEvaluator
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewScheduleService instantiates ScheduleService.
func NewScheduleService(repo scheduleRepository, detector scheduleEvaluator, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	RegisterScheduleValidations(validate)
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{repo: repo, detector: detector, validator: validate, metrics: metrics, logger: logger}
}

// RegisterScheduleValidations installs the day_pattern and semester tags.
func RegisterScheduleValidations(v *validator.Validate) {
	_ = v.RegisterValidation("day_pattern", func(fl validator.FieldLevel) bool {
		return daypattern.IsCanonical(fl.Field().String())
	})
	_ = v.RegisterValidation("semester", func(fl validator.FieldLevel) bool {
		return models.Semester(fl.Field().String()).Valid()
	})
}

// List returns schedules with pagination metadata.
func (s *ScheduleService) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, *models.Pagination, error) {
	schedules, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedules")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return schedules, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get loads a single schedule.
func (s *ScheduleService) Get(ctx context.Context, id string) (*models.Schedule, error) {
	return s.load(ctx, id)
}

// Check evaluates a payload without persisting it. A non-empty id checks the
// payload as an edit of that schedule.
func (s *ScheduleService) Check(ctx context.Context, id string, req dto.ScheduleRequest) (*models.ScheduleCheck, error) {
	candidate, problems, err := s.buildCandidate(req)
	if err != nil {
		return nil, err
	}
	if len(problems) > 0 {
		return &models.ScheduleCheck{ValidationErrors: problems}, nil
	}
	if id != "" {
		existing, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		candidate.ID = existing.ID
	}
	return s.evaluate(ctx, "check", candidate, id != "")
}

// Create inserts a new schedule when no hard conflict exists.
func (s *ScheduleService) Create(ctx context.Context, req dto.ScheduleRequest) (*dto.ScheduleResult, error) {
	candidate, problems, err := s.buildCandidate(req)
	if err != nil {
		return nil, err
	}
	if len(problems) > 0 {
		return nil, validationError(problems)
	}

	check, err := s.evaluate(ctx, "create", candidate, false)
	if err != nil {
		return nil, err
	}
	if err := gate(check, req.AcknowledgeWarnings); err != nil {
		return nil, err
	}

	candidate.Status = models.ScheduleStatusActive
	if err := s.repo.Create(ctx, &candidate); err != nil {
		return nil, writeError(err, "failed to create schedule")
	}
	logger.WithContext(ctx, s.logger).Info("schedule created",
		zap.String("schedule_id", candidate.ID),
		zap.String("section", candidate.Section),
		zap.Int("warnings", len(check.Warnings)),
	)
	return &dto.ScheduleResult{Schedule: &candidate, Warnings: check.Warnings}, nil
}

// Update edits a schedule in place, excluding its own stored row from the checks.
func (s *ScheduleService) Update(ctx context.Context, id string, req dto.ScheduleRequest) (*dto.ScheduleResult, error) {
	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	candidate, problems, err := s.buildCandidate(req)
	if err != nil {
		return nil, err
	}
	if len(problems) > 0 {
		return nil, validationError(problems)
	}
	candidate.ID = existing.ID
	candidate.Status = existing.Status
	candidate.IsConflicted = existing.IsConflicted
	candidate.CreatedAt = existing.CreatedAt

	check, err := s.evaluate(ctx, "update", candidate, true)
	if err != nil {
		return nil, err
	}
	if err := gate(check, req.AcknowledgeWarnings); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, &candidate); err != nil {
		return nil, writeError(err, "failed to update schedule")
	}
	logger.WithContext(ctx, s.logger).Info("schedule updated", zap.String("schedule_id", candidate.ID))
	return &dto.ScheduleResult{Schedule: &candidate, Warnings: check.Warnings}, nil
}

// Delete deactivates a schedule.
func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete schedule")
	}
	logger.WithContext(ctx, s.logger).Info("schedule deactivated", zap.String("schedule_id", id))
	return nil
}

func (s *ScheduleService) load(ctx context.Context, id string) (*models.Schedule, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	return existing, nil
}

func (s *ScheduleService) evaluate(ctx context.Context, operation string, candidate models.Schedule, excludeSelf bool) (*models.ScheduleCheck, error) {
	start := time.Now()
	check, err := s.detector.Evaluate(ctx, candidate, excludeSelf)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, validationError([]string{fmt.Sprintf("room %s does not exist", candidate.RoomID)})
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check schedule conflicts")
	}
	s.metrics.ObserveScheduleCheck(operation, check, time.Since(start))
	if len(check.Conflicts) > 0 {
		logger.WithContext(ctx, s.logger).Info("schedule conflicts detected",
			zap.String("operation", operation),
			zap.String("schedule_id", candidate.ID),
			zap.Int("conflicts", len(check.Conflicts)),
		)
	}
	return check, nil
}

// buildCandidate validates the payload and converts it into a schedule. Time
// parse failures are returned as problems rather than errors.
func (s *ScheduleService) buildCandidate(req dto.ScheduleRequest) (models.Schedule, []string, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.Schedule{}, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}

	var problems []string
	start, err := timeofday.Parse(req.StartTime)
	if err != nil {
		problems = append(problems, fmt.Sprintf("start time: %v", err))
	}
	end, err := timeofday.Parse(req.EndTime)
	if err != nil {
		problems = append(problems, fmt.Sprintf("end time: %v", err))
	}

	return models.Schedule{
		SubjectID:           req.SubjectID,
		CurriculumSubjectID: req.CurriculumSubjectID,
		RoomID:              req.RoomID,
		FacultyID:           req.FacultyID,
		AcademicYearID:      req.AcademicYearID,
		Semester:            req.Semester,
		Section:             strings.TrimSpace(req.Section),
		DayPattern:          daypattern.Normalize(req.DayPattern),
		StartTime:           start,
		EndTime:             end,
		EnrolledStudents:    req.EnrolledStudents,
		IsOverload:          req.IsOverload,
	}, problems, nil
}

// gate turns a check into the error the caller must see, if any.
func gate(check *models.ScheduleCheck, acknowledged bool) error {
	if len(check.ValidationErrors) > 0 {
		return validationError(check.ValidationErrors)
	}
	if len(check.Conflicts) > 0 {
		conflictErr := &models.ScheduleConflictError{
			Message:   fmt.Sprintf("schedule has %d conflict(s)", len(check.Conflicts)),
			Conflicts: check.Conflicts,
		}
		return appErrors.Wrap(conflictErr, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "schedule conflicts detected").
			WithDetails(map[string]interface{}{"conflicts": check.Conflicts})
	}
	if len(check.Warnings) > 0 && !acknowledged {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "capacity warnings must be acknowledged").
			WithDetails(map[string]interface{}{"warnings": check.Warnings})
	}
	return nil
}

// writeError reports a lost race on the subject/section index as a conflict.
func writeError(err error, message string) error {
	if errors.Is(err, models.ErrDuplicateSubjectSection) {
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "schedule conflicts detected")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func validationError(problems []string) error {
	return appErrors.Clone(appErrors.ErrValidation, "invalid schedule times").
		WithDetails(map[string]interface{}{"errors": problems})
}
