package handler

import (
	"github.com/gin-gonic/gin"

	"blood-connect/backend/internal/api/middleware"
	"blood-connect/backend/pkg/response"
)

// MustGetUserID reads the caller id injected by JWTAuth. On failure it
// writes a 401 and returns ok=false; the caller should just return.
func MustGetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get(middleware.ContextUserID)
	if !exists {
		response.Unauthorized(c, response.CodeUnauthorized, "unauthenticated")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, response.CodeUnauthorized, "unauthenticated")
		return "", false
	}
	return s, true
}
