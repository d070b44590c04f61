package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/brightpath-labs/engage-sync-api/internal/dto"
	"github.com/brightpath-labs/engage-sync-api/internal/service"
	appErrors "github.com/brightpath-labs/engage-sync-api/pkg/errors"
	"github.com/brightpath-labs/engage-sync-api/pkg/response"
)

// ReconcileHandler exposes on-demand reconciliation for a single enrollment.
type ReconcileHandler struct {
	service *service.ReconcileService
}

// NewReconcileHandler creates a new handler.
func NewReconcileHandler(svc *service.ReconcileService) *ReconcileHandler {
	return &ReconcileHandler{service: svc}
}

// Reconcile godoc
// @Summary Reconcile one enrollment
// @Description Recompute engagement facts and synchronise the contact's managed tags
// @Tags Reconciliation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.ReconcileRequest true "Enrollment target"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reconcile [post]
func (h *ReconcileHandler) Reconcile(c *gin.Context) {
	var req dto.ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.WrapAs(err, appErrors.ErrValidation, "invalid reconcile payload"))
		return
	}

	result, err := h.service.ReconcileEnrollment(c.Request.Context(), req.LearnerID, req.OfferingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}
