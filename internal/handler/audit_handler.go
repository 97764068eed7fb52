package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/course-scheduler/internal/dto"
	"github.com/noah-isme/course-scheduler/internal/models"
	"github.com/noah-isme/course-scheduler/internal/service"
	appErrors "github.com/noah-isme/course-scheduler/pkg/errors"
	"github.com/noah-isme/course-scheduler/pkg/export"
	"github.com/noah-isme/course-scheduler/pkg/jobs"
	"github.com/noah-isme/course-scheduler/pkg/response"
)

type auditService interface {
	Run(ctx context.Context, opts service.AuditOptions) (*models.BlockSectionReport, error)
}

type auditQueue interface {
	Enqueue(opts service.AuditOptions) (string, error)
	Status(jobID string) (jobs.State, bool)
}

// AuditHandler exposes the block-section audit sweep.
type AuditHandler struct {
	audit    auditService
	worker   auditQueue
	validate *validator.Validate
}

// NewAuditHandler constructs the handler. worker may be nil when the
// background worker is disabled.
func NewAuditHandler(audit auditService, worker auditQueue) *AuditHandler {
	validate := validator.New()
	service.RegisterScheduleValidations(validate)
	return &AuditHandler{audit: audit, worker: worker, validate: validate}
}

// Run godoc
// @Summary Run block-section audit
// @Description Re-checks every active schedule and groups double-booked block sections. Read only.
// @Tags Audit
// @Produce json
// @Param academicYearId query string false "Academic year"
// @Param semester query string false "Semester"
// @Success 200 {object} response.Envelope
// @Router /schedules/audit [get]
func (h *AuditHandler) Run(c *gin.Context) {
	report, ok := h.runFromQuery(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, report, nil, map[string]interface{}{"conflicts": report.ConflictCount()})
}

// Export godoc
// @Summary Download block-section audit
// @Tags Audit
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Param academicYearId query string false "Academic year"
// @Param semester query string false "Semester"
// @Success 200 {file} file
// @Router /schedules/audit/export [get]
func (h *AuditHandler) Export(c *gin.Context) {
	format := strings.ToLower(c.DefaultQuery("format", "csv"))
	if format != "csv" && format != "pdf" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
		return
	}
	report, ok := h.runFromQuery(c)
	if !ok {
		return
	}

	var (
		body        []byte
		err         error
		contentType string
	)
	if format == "pdf" {
		body, err = export.NewPDFExporter().Render(export.AuditDataset(report), "Block Section Audit", export.AuditSubtitle(report))
		contentType = "application/pdf"
	} else {
		body, err = export.NewCSVExporter().Render(export.AuditDataset(report))
		contentType = "text/csv"
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("block-section-audit-%s.%s", report.GeneratedAt.Format("20060102-1504"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, body)
}

func (h *AuditHandler) runFromQuery(c *gin.Context) (*models.BlockSectionReport, bool) {
	var req dto.AuditRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return nil, false
	}
	if !h.validRequest(c, req) {
		return nil, false
	}
	report, err := h.audit.Run(c.Request.Context(), service.AuditOptions{
		Filter: models.AuditFilter{AcademicYearID: req.AcademicYearID, Semester: req.Semester},
	})
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	return report, true
}

func (h *AuditHandler) validRequest(c *gin.Context, req dto.AuditRequest) bool {
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unknown semester"))
		return false
	}
	return true
}

// Enqueue godoc
// @Summary Enqueue block-section audit
// @Description Runs the sweep in the background and refreshes each schedule's is_conflicted flag.
// @Tags Audit
// @Accept json
// @Produce json
// @Param payload body dto.AuditRequest false "Audit scope"
// @Success 202 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /schedules/audit [post]
func (h *AuditHandler) Enqueue(c *gin.Context) {
	if h.worker == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnavailable, "audit worker is disabled"))
		return
	}
	var req dto.AuditRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	if !h.validRequest(c, req) {
		return
	}

	jobID, err := h.worker.Enqueue(service.AuditOptions{
		Filter:      models.AuditFilter{AcademicYearID: req.AcademicYearID, Semester: req.Semester},
		UpdateFlags: true,
	})
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to enqueue audit"))
		return
	}
	response.Accepted(c, dto.AuditJobResponse{JobID: jobID, Status: string(jobs.StatusQueued)})
}

// Job godoc
// @Summary Audit job status
// @Tags Audit
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedules/audit/jobs/{id} [get]
func (h *AuditHandler) Job(c *gin.Context) {
	if h.worker == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnavailable, "audit worker is disabled"))
		return
	}
	state, ok := h.worker.Status(c.Param("id"))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "audit job not found"))
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}
