package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/brightpath-labs/engage-sync-api/internal/dto"
	"github.com/brightpath-labs/engage-sync-api/internal/models"
	"github.com/brightpath-labs/engage-sync-api/internal/service"
	appErrors "github.com/brightpath-labs/engage-sync-api/pkg/errors"
	"github.com/brightpath-labs/engage-sync-api/pkg/response"
)

// RunHandler exposes batch reconciliation runs.
type RunHandler struct {
	batch  *service.BatchService
	export *service.ExportService
}

// NewRunHandler creates a new handler.
func NewRunHandler(batch *service.BatchService, export *service.ExportService) *RunHandler {
	return &RunHandler{batch: batch, export: export}
}

// Start godoc
// @Summary Start a reconciliation run
// @Description Launch an asynchronous batch run over the enrollment population
// @Tags Runs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.StartRunRequest false "Run scope"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /runs [post]
func (h *RunHandler) Start(c *gin.Context) {
	var req dto.StartRunRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.WrapAs(err, appErrors.ErrValidation, "invalid run payload"))
			return
		}
	}

	status := models.EnrollmentStatus(strings.ToUpper(req.Status))
	if req.Status != "" && !status.Valid() {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown enrollment status %q", req.Status)))
		return
	}

	triggeredBy := "api"
	if claims := claimsFromContext(c); claims != nil {
		triggeredBy = claims.Email
	}

	run, err := h.batch.StartRun(c.Request.Context(), triggeredBy, models.EnrollmentFilter{
		OfferingID:   req.OfferingID,
		Status:       status,
		UpdatedSince: req.UpdatedSince,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Accepted(c, run)
}

// List godoc
// @Summary List reconciliation runs
// @Tags Runs
// @Produce json
// @Security BearerAuth
// @Param status query string false "Run status"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /runs [get]
func (h *RunHandler) List(c *gin.Context) {
	var query dto.RunListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.WrapAs(err, appErrors.ErrValidation, "invalid run query"))
		return
	}

	runs, total, err := h.batch.ListRuns(c.Request.Context(), models.RunFilter{
		Status:   models.RunStatus(strings.ToUpper(query.Status)),
		Page:     query.Page,
		PageSize: query.PageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	page := query.Page
	if page < 1 {
		page = 1
	}
	size := query.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	response.JSON(c, http.StatusOK, runs, &models.Pagination{
		Page:       page,
		PageSize:   size,
		TotalCount: total,
	})
}

// Get godoc
// @Summary Fetch a run summary
// @Tags Runs
// @Produce json
// @Security BearerAuth
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /runs/{id} [get]
func (h *RunHandler) Get(c *gin.Context) {
	run, err := h.batch.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}

// Outcomes godoc
// @Summary List a run's per-enrollment outcomes
// @Tags Runs
// @Produce json
// @Security BearerAuth
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /runs/{id}/outcomes [get]
func (h *RunHandler) Outcomes(c *gin.Context) {
	outcomes, err := h.batch.RunOutcomes(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcomes, nil)
}

// Export godoc
// @Summary Export a run report
// @Description Render the run's outcomes as CSV or PDF
// @Tags Runs
// @Produce octet-stream
// @Security BearerAuth
// @Param id path string true "Run ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /runs/{id}/export [get]
func (h *RunHandler) Export(c *gin.Context) {
	format := service.ReportFormat(strings.ToLower(c.DefaultQuery("format", string(service.ReportFormatCSV))))

	result, err := h.export.GenerateRunReport(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	if result.Token != "" {
		c.Header("X-Download-Token", result.Token)
	}
	c.Data(http.StatusOK, result.ContentType, result.Payload)
}

// Download godoc
// @Summary Download an archived run report
// @Description Serve a previously rendered report using its signed token
// @Tags Runs
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /runs/export/download [get]
func (h *RunHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	report, err := h.export.OpenArchivedReport(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer report.File.Close() //nolint:errcheck

	c.DataFromReader(http.StatusOK, report.Size, report.ContentType, report.File, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", report.Filename),
	})
}
