package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/course-scheduler/internal/models"
)

const scheduleColumns = "id, subject_id, curriculum_subject_id, room_id, faculty_id, academic_year_id, semester, section, day_pattern, start_time, end_time, enrolled_students, status, is_conflicted, is_overload, created_at, updated_at"

// ScheduleRepository provides persistence for schedules.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// List returns schedules with optional filtering and pagination.
func (r *ScheduleRepository) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error) {
	base := "FROM schedules WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.AcademicYearID != "" {
		conditions = append(conditions, fmt.Sprintf("academic_year_id = $%d", len(args)+1))
		args = append(args, filter.AcademicYearID)
	}
	if filter.Semester != "" {
		conditions = append(conditions, fmt.Sprintf("semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.RoomID != "" {
		conditions = append(conditions, fmt.Sprintf("room_id = $%d", len(args)+1))
		args = append(args, filter.RoomID)
	}
	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.Section != "" {
		conditions = append(conditions, fmt.Sprintf("UPPER(TRIM(section)) = $%d", len(args)+1))
		args = append(args, models.NormalizeSection(filter.Section))
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"start_time": true,
		"section":    true,
		"room_id":    true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "start_time"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", scheduleColumns, base, sortBy, order, size, offset)
	var schedules []models.Schedule
	if err := r.db.SelectContext(ctx, &schedules, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list schedules: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count schedules: %w", err)
	}

	return schedules, total, nil
}

// FindByID loads a schedule by id.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	query := fmt.Sprintf("SELECT %s FROM schedules WHERE id = $1", scheduleColumns)
	var sched models.Schedule
	if err := r.db.GetContext(ctx, &sched, query, id); err != nil {
		return nil, err
	}
	return &sched, nil
}

// ListActiveByTerm returns every active schedule of an academic year and semester.
func (r *ScheduleRepository) ListActiveByTerm(ctx context.Context, academicYearID string, semester models.Semester) ([]models.Schedule, error) {
	query := fmt.Sprintf("SELECT %s FROM schedules WHERE academic_year_id = $1 AND semester = $2 AND status = $3 ORDER BY start_time ASC", scheduleColumns)
	var schedules []models.Schedule
	if err := r.db.SelectContext(ctx, &schedules, query, academicYearID, semester, models.ScheduleStatusActive); err != nil {
		return nil, fmt.Errorf("list active schedules by term: %w", err)
	}
	return schedules, nil
}

// ListActive returns active schedules, optionally narrowed to a term.
func (r *ScheduleRepository) ListActive(ctx context.Context, filter models.AuditFilter) ([]models.Schedule, error) {
	conditions := []string{"status = $1"}
	args := []interface{}{models.ScheduleStatusActive}
	if filter.AcademicYearID != "" {
		conditions = append(conditions, fmt.Sprintf("academic_year_id = $%d", len(args)+1))
		args = append(args, filter.AcademicYearID)
	}
	if filter.Semester != "" {
		conditions = append(conditions, fmt.Sprintf("semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}

	query := fmt.Sprintf("SELECT %s FROM schedules WHERE %s ORDER BY academic_year_id ASC, semester ASC, start_time ASC", scheduleColumns, strings.Join(conditions, " AND "))
	var schedules []models.Schedule
	if err := r.db.SelectContext(ctx, &schedules, query, args...); err != nil {
		return nil, fmt.Errorf("list active schedules: %w", err)
	}
	return schedules, nil
}

// Create stores a new schedule record.
func (r *ScheduleRepository) Create(ctx context.Context, schedule *models.Schedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	if schedule.Status == "" {
		schedule.Status = models.ScheduleStatusActive
	}
	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}
	schedule.UpdatedAt = now

	const query = `INSERT INTO schedules (id, subject_id, curriculum_subject_id, room_id, faculty_id, academic_year_id, semester, section, day_pattern, start_time, end_time, enrolled_students, status, is_conflicted, is_overload, created_at, updated_at) VALUES (:id, :subject_id, :curriculum_subject_id, :room_id, :faculty_id, :academic_year_id, :semester, :section, :day_pattern, :start_time, :end_time, :enrolled_students, :status, :is_conflicted, :is_overload, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("create schedule: %w", translateWriteError(err))
	}
	return nil
}

// Update modifies a schedule record.
func (r *ScheduleRepository) Update(ctx context.Context, schedule *models.Schedule) error {
	schedule.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schedules SET subject_id = :subject_id, curriculum_subject_id = :curriculum_subject_id, room_id = :room_id, faculty_id = :faculty_id, academic_year_id = :academic_year_id, semester = :semester, section = :section, day_pattern = :day_pattern, start_time = :start_time, end_time = :end_time, enrolled_students = :enrolled_students, status = :status, is_conflicted = :is_conflicted, is_overload = :is_overload, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("update schedule: %w", translateWriteError(err))
	}
	return nil
}

// Deactivate soft-deletes a schedule by moving it to the inactive status.
func (r *ScheduleRepository) Deactivate(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE schedules SET status = $1, updated_at = $2 WHERE id = $3`, models.ScheduleStatusInactive, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("deactivate schedule: %w", err)
	}
	return nil
}

// UpdateConflictFlags writes the derived conflict flag for many schedules in one transaction.
func (r *ScheduleRepository) UpdateConflictFlags(ctx context.Context, flags map[string]bool) (err error) {
	if len(flags) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update conflict flags: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	ids := make([]string, 0, len(flags))
	for id := range flags {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if _, err = tx.ExecContext(ctx, `UPDATE schedules SET is_conflicted = $1 WHERE id = $2`, flags[id], id); err != nil {
			return fmt.Errorf("update conflict flag for %s: %w", id, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit conflict flags: %w", err)
	}
	return nil
}

// translateWriteError maps the active subject/section unique index onto
// models.ErrDuplicateSubjectSection.
func translateWriteError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && pqErr.Constraint == activeSubjectSectionIndex {
		return models.ErrDuplicateSubjectSection
	}
	return err
}

const (
	uniqueViolation           = pq.ErrorCode("23505")
	activeSubjectSectionIndex = "schedules_active_subject_section_key"
)
