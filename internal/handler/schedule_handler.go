package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-scheduler/internal/dto"
	"github.com/noah-isme/course-scheduler/internal/models"
	appErrors "github.com/noah-isme/course-scheduler/pkg/errors"
	"github.com/noah-isme/course-scheduler/pkg/response"
)

type scheduleService interface {
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Schedule, error)
	Check(ctx context.Context, id string, req dto.ScheduleRequest) (*models.ScheduleCheck, error)
	Create(ctx context.Context, req dto.ScheduleRequest) (*dto.ScheduleResult, error)
	Update(ctx context.Context, id string, req dto.ScheduleRequest) (*dto.ScheduleResult, error)
	Delete(ctx context.Context, id string) error
}

// ScheduleHandler manages schedule endpoints.
type ScheduleHandler struct {
	service scheduleService
}

// NewScheduleHandler constructs handler.
func NewScheduleHandler(svc scheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: svc}
}

// List godoc
// @Summary List schedules
// @Tags Schedules
// @Produce json
// @Param academicYearId query string false "Filter by academic year"
// @Param semester query string false "Filter by semester (1st, 2nd, Summer)"
// @Param roomId query string false "Filter by room"
// @Param subjectId query string false "Filter by subject"
// @Param section query string false "Filter by section (case-insensitive)"
// @Param status query string false "Filter by status (active, inactive)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param sort query string false "Sort column"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /schedules [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	filter := models.ScheduleFilter{
		AcademicYearID: c.Query("academicYearId"),
		Semester:       models.Semester(c.Query("semester")),
		RoomID:         c.Query("roomId"),
		SubjectID:      c.Query("subjectId"),
		Section:        c.Query("section"),
		Status:         models.ScheduleStatus(c.Query("status")),
		SortBy:         c.Query("sort"),
		SortOrder:      c.Query("order"),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}

	schedules, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedules, pagination)
}

// Get godoc
// @Summary Get schedule
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedules/{id} [get]
func (h *ScheduleHandler) Get(c *gin.Context) {
	schedule, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// Create godoc
// @Summary Create schedule
// @Description Rejects hard conflicts with 409. Capacity warnings return 412 unless acknowledge_warnings is set.
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body dto.ScheduleRequest true "Schedule payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /schedules [post]
func (h *ScheduleHandler) Create(c *gin.Context) {
	var req dto.ScheduleRequest
	if !bindSchedule(c, &req) {
		return
	}
	result, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result.Schedule, warningsMeta(result.Warnings))
}

// Update godoc
// @Summary Update schedule
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param payload body dto.ScheduleRequest true "Schedule payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /schedules/{id} [put]
func (h *ScheduleHandler) Update(c *gin.Context) {
	var req dto.ScheduleRequest
	if !bindSchedule(c, &req) {
		return
	}
	result, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result.Schedule, nil, warningsMeta(result.Warnings))
}

// Delete godoc
// @Summary Deactivate schedule
// @Tags Schedules
// @Param id path string true "Schedule ID"
// @Success 204
// @Router /schedules/{id} [delete]
func (h *ScheduleHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Check godoc
// @Summary Dry-run schedule validation
// @Description Returns validation errors, conflicts and warnings without saving. Pass scheduleId to check an edit.
// @Tags Schedules
// @Accept json
// @Produce json
// @Param scheduleId query string false "Existing schedule being edited"
// @Param payload body dto.ScheduleRequest true "Schedule payload"
// @Success 200 {object} response.Envelope
// @Router /schedules/check [post]
func (h *ScheduleHandler) Check(c *gin.Context) {
	var req dto.ScheduleRequest
	if !bindSchedule(c, &req) {
		return
	}
	check, err := h.service.Check(c.Request.Context(), c.Query("scheduleId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, check, nil, map[string]interface{}{"blocking": check.Blocking()})
}

func bindSchedule(c *gin.Context, req *dto.ScheduleRequest) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}

func warningsMeta(warnings []string) map[string]interface{} {
	if len(warnings) == 0 {
		return nil
	}
	return map[string]interface{}{"warnings": warnings}
}
