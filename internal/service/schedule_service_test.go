package service

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-scheduler/internal/dto"
	"github.com/noah-isme/course-scheduler/internal/models"
	appErrors "github.com/noah-isme/course-scheduler/pkg/errors"
)

type scheduleRepoStub struct {
	scheduleSourceStub
	created     []models.Schedule
	updated     []models.Schedule
	deactivated []string
	listFilter  models.ScheduleFilter
}

func (r *scheduleRepoStub) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error) {
	r.listFilter = filter
	return r.items, len(r.items), nil
}

func (r *scheduleRepoStub) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	for _, item := range r.items {
		if item.ID == id {
			found := item
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *scheduleRepoStub) Create(ctx context.Context, schedule *models.Schedule) error {
	schedule.ID = "new-id"
	r.created = append(r.created, *schedule)
	return nil
}

func (r *scheduleRepoStub) Update(ctx context.Context, schedule *models.Schedule) error {
	r.updated = append(r.updated, *schedule)
	return nil
}

func (r *scheduleRepoStub) Deactivate(ctx context.Context, id string) error {
	r.deactivated = append(r.deactivated, id)
	return nil
}

func newScheduleServiceFixture(existing ...models.Schedule) (*ScheduleService, *scheduleRepoStub, *MetricsService) {
	repo := &scheduleRepoStub{scheduleSourceStub: scheduleSourceStub{items: existing}}
	rooms := roomLookupStub{rooms: map[string]models.Room{
		"room-1": {ID: "room-1", Name: "LAB 301", Capacity: 40},
		"room-2": {ID: "room-2", Name: "RM 204", Capacity: 30},
	}}
	detector := NewConflictDetector(repo, &yearLevelStub{levels: map[string]int{"cs-3a": 3, "cs-3b": 3}}, rooms, DefaultDayWindow)
	metrics := NewMetricsService()
	return NewScheduleService(repo, detector, nil, metrics, nil), repo, metrics
}

func validRequest() dto.ScheduleRequest {
	return dto.ScheduleRequest{
		SubjectID:      "math",
		RoomID:         "room-1",
		AcademicYearID: "ay-2024",
		Semester:       models.SemesterFirst,
		Section:        " A ",
		DayPattern:     "m-w-f",
		StartTime:      "7:00 AM",
		EndTime:        "08:30",
	}
}

func appError(t *testing.T, err error) *appErrors.Error {
	t.Helper()
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr), "expected *errors.Error, got %T", err)
	return appErr
}

func TestScheduleServiceCreatePersistsNormalizedSchedule(t *testing.T) {
	svc, repo, metrics := newScheduleServiceFixture()

	result, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)
	require.Len(t, repo.created, 1)

	saved := repo.created[0]
	assert.Equal(t, "new-id", result.Schedule.ID)
	assert.Equal(t, "A", saved.Section)
	assert.Equal(t, "M-W-F", saved.DayPattern)
	assert.Equal(t, "07:00", saved.StartTime.String())
	assert.Equal(t, models.ScheduleStatusActive, saved.Status)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.checksTotal.WithLabelValues("create", "clean")))
}

func TestScheduleServiceCreateRejectsConflicts(t *testing.T) {
	existing := newSchedule("s-1", "physics", "room-1", "B", "M-W-F", "08:00", "09:00")
	svc, repo, metrics := newScheduleServiceFixture(existing)

	_, err := svc.Create(context.Background(), validRequest())
	require.Error(t, err)

	appErr := appError(t, err)
	assert.Equal(t, http.StatusConflict, appErr.Status)
	details, ok := appErr.Details.(map[string]interface{})
	require.True(t, ok)
	conflicts, ok := details["conflicts"].([]models.ConflictRecord)
	require.True(t, ok)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictRoomTime, conflicts[0].Type)

	var conflictErr *models.ScheduleConflictError
	require.True(t, errors.As(err, &conflictErr))
	assert.Len(t, conflictErr.Conflicts, 1)
	assert.Empty(t, repo.created)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.conflictsTotal.WithLabelValues(string(models.ConflictRoomTime))))
}

func TestScheduleServiceCreateRejectsDuplicateSubjectSection(t *testing.T) {
	existing := newSchedule("s-1", "math", "room-2", "a", "T-TH", "13:00", "14:30")
	svc, _, _ := newScheduleServiceFixture(existing)

	_, err := svc.Create(context.Background(), validRequest())
	appErr := appError(t, err)
	assert.Equal(t, http.StatusConflict, appErr.Status)
	details := appErr.Details.(map[string]interface{})
	conflicts := details["conflicts"].([]models.ConflictRecord)
	assert.Equal(t, models.ConflictDuplicateSubjectSection, conflicts[0].Type)
}

func TestScheduleServiceCreateInvalidTimes(t *testing.T) {
	svc, repo, _ := newScheduleServiceFixture()

	req := validRequest()
	req.StartTime = "09:00"
	req.EndTime = "08:00"
	_, err := svc.Create(context.Background(), req)
	appErr := appError(t, err)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	problems := appErr.Details.(map[string]interface{})["errors"].([]string)
	assert.Len(t, problems, 1)

	req.StartTime = "noon"
	_, err = svc.Create(context.Background(), req)
	appErr = appError(t, err)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Empty(t, repo.created)
}

func TestScheduleServiceCreateRejectsLegacyPattern(t *testing.T) {
	svc, _, _ := newScheduleServiceFixture()

	req := validRequest()
	req.DayPattern = "MWF"
	_, err := svc.Create(context.Background(), req)
	appErr := appError(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	req = validRequest()
	req.Semester = "3rd"
	_, err = svc.Create(context.Background(), req)
	assert.Equal(t, appErrors.ErrValidation.Code, appError(t, err).Code)
}

func TestScheduleServiceCapacityWarningNeedsAcknowledgement(t *testing.T) {
	svc, repo, _ := newScheduleServiceFixture()

	req := validRequest()
	req.EnrolledStudents = 45
	_, err := svc.Create(context.Background(), req)
	appErr := appError(t, err)
	assert.Equal(t, http.StatusPreconditionFailed, appErr.Status)
	warnings := appErr.Details.(map[string]interface{})["warnings"].([]string)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "LAB 301")
	assert.Empty(t, repo.created)

	req.AcknowledgeWarnings = true
	result, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, result.Warnings, 1)
	assert.Len(t, repo.created, 1)
}

func TestScheduleServiceUnknownRoomIsValidationError(t *testing.T) {
	svc, _, _ := newScheduleServiceFixture()

	req := validRequest()
	req.RoomID = "room-404"
	_, err := svc.Create(context.Background(), req)
	appErr := appError(t, err)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
}

func TestScheduleServiceUpdateExcludesSelf(t *testing.T) {
	existing := newSchedule("s-1", "math", "room-1", "A", "M-W-F", "07:00", "08:30")
	svc, repo, _ := newScheduleServiceFixture(existing)

	req := validRequest()
	req.EndTime = "09:00"
	result, err := svc.Update(context.Background(), "s-1", req)
	require.NoError(t, err)
	assert.Equal(t, "s-1", result.Schedule.ID)
	require.Len(t, repo.updated, 1)
	assert.Equal(t, "09:00", repo.updated[0].EndTime.String())

	_, err = svc.Update(context.Background(), "missing", req)
	assert.Equal(t, http.StatusNotFound, appError(t, err).Status)
}

func TestScheduleServiceCheckDoesNotPersist(t *testing.T) {
	existing := withCurriculum(newSchedule("s-1", "physics", "room-2", "A", "M-T-TH-F", "07:00", "08:30"), "cs-3a")
	svc, repo, metrics := newScheduleServiceFixture(existing)

	req := validRequest()
	req.DayPattern = "T-TH"
	req.CurriculumSubjectID = strPtr("cs-3b")
	req.StartTime = "08:00"
	req.EndTime = "09:30"

	check, err := svc.Check(context.Background(), "", req)
	require.NoError(t, err)
	assert.True(t, check.Blocking())
	assert.Equal(t, []models.ConflictType{models.ConflictBlockSectioning}, conflictTypes(check.Conflicts))
	assert.Empty(t, repo.created)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.checksTotal.WithLabelValues("check", "conflict")))

	check, err = svc.Check(context.Background(), "s-1", req)
	require.NoError(t, err)
	assert.False(t, check.Blocking())

	req.StartTime = "bogus"
	check, err = svc.Check(context.Background(), "", req)
	require.NoError(t, err)
	assert.NotEmpty(t, check.ValidationErrors)
}

func TestScheduleServiceDeleteAndGet(t *testing.T) {
	existing := newSchedule("s-1", "math", "room-1", "A", "M-W-F", "07:00", "08:30")
	svc, repo, _ := newScheduleServiceFixture(existing)

	got, err := svc.Get(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, "math", got.SubjectID)

	require.NoError(t, svc.Delete(context.Background(), "s-1"))
	assert.Equal(t, []string{"s-1"}, repo.deactivated)

	err = svc.Delete(context.Background(), "missing")
	assert.Equal(t, http.StatusNotFound, appError(t, err).Status)
}

func TestScheduleServiceListPagination(t *testing.T) {
	svc, repo, _ := newScheduleServiceFixture(newSchedule("s-1", "math", "room-1", "A", "M-W-F", "07:00", "08:30"))

	items, pagination, err := svc.List(context.Background(), models.ScheduleFilter{Page: 0, PageSize: 500, Section: "a"})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.Equal(t, "a", repo.listFilter.Section)
}
