package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/brightpath-labs/engage-sync-api/internal/models"
	"github.com/brightpath-labs/engage-sync-api/internal/service"
	appErrors "github.com/brightpath-labs/engage-sync-api/pkg/errors"
	"github.com/brightpath-labs/engage-sync-api/pkg/response"
)

// AuthHandler exposes the operator login endpoint.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Login godoc
// @Summary Authenticate operator
// @Description Exchange the operator's email and password for an access token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.WrapAs(err, appErrors.ErrValidation, "invalid login payload"))
		return
	}

	res, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}
