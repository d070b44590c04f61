package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/brightpath-labs/engage-sync-api/internal/service"
	appErrors "github.com/brightpath-labs/engage-sync-api/pkg/errors"
	"github.com/brightpath-labs/engage-sync-api/pkg/response"
)

// EnrollmentHandler exposes the read-only dry-run surface over enrollments.
type EnrollmentHandler struct {
	reconcile *service.ReconcileService
}

// NewEnrollmentHandler creates a new handler.
func NewEnrollmentHandler(reconcile *service.ReconcileService) *EnrollmentHandler {
	return &EnrollmentHandler{reconcile: reconcile}
}

// Preview godoc
// @Summary Preview an enrollment's evaluation
// @Description Compute engagement facts and the desired tag intent without mutating the CRM
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param learnerId query string true "Learner ID"
// @Param offeringId query string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments/preview [get]
func (h *EnrollmentHandler) Preview(c *gin.Context) {
	learnerID := c.Query("learnerId")
	offeringID := c.Query("offeringId")
	if learnerID == "" || offeringID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "learnerId and offeringId are required"))
		return
	}

	preview, err := h.reconcile.Preview(c.Request.Context(), learnerID, offeringID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, preview, nil)
}
