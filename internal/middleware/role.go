package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"guestvault/internal/pkg/response"
)

// AdminOnly lets the request through only for an admin session.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(ContextIsAdmin) {
			response.Abort(c, http.StatusForbidden, "FORBIDDEN", "Admin access required")
			return
		}
		c.Next()
	}
}
