package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerKey  = "X-Request-ID"
	contextKey = "request_id"
)

// Middleware tags every request with a correlation ID. An inbound
// X-Request-ID is honored only when it is a well-formed UUID, so
// upstream proxies cannot inject arbitrary strings into the logs.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerKey)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}

		c.Set(contextKey, id)
		c.Writer.Header().Set(headerKey, id)
		c.Next()
	}
}

// Value returns the request ID assigned by Middleware, or empty.
func Value(c *gin.Context) string {
	v, ok := c.Get(contextKey)
	if !ok {
		return ""
	}
	id, _ := v.(string)
	return id
}
