package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/brightpath-labs/engage-sync-api/internal/service"
	"github.com/brightpath-labs/engage-sync-api/pkg/response"
)

// RuleHandler exposes the tagging rule catalog read surface.
type RuleHandler struct {
	service *service.RuleService
}

// NewRuleHandler creates a new handler.
func NewRuleHandler(svc *service.RuleService) *RuleHandler {
	return &RuleHandler{service: svc}
}

// List godoc
// @Summary List tagging rules
// @Description List the rule catalog; pass active=true for the evaluated subset
// @Tags Rules
// @Produce json
// @Security BearerAuth
// @Param active query bool false "Only active rules"
// @Success 200 {object} response.Envelope
// @Router /rules [get]
func (h *RuleHandler) List(c *gin.Context) {
	if c.Query("active") == "true" {
		rules, err := h.service.ActiveRules(c.Request.Context())
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, rules, nil)
		return
	}

	rules, err := h.service.ListAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rules, nil)
}
