package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/brightpath-labs/engage-sync-api/internal/middleware"
	"github.com/brightpath-labs/engage-sync-api/internal/models"
)

// claimsFromContext returns the authenticated operator's claims, or nil
// on routes that never passed through the JWT middleware.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil
	}
	claims, _ := value.(*models.JWTClaims)
	return claims
}
