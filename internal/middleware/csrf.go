package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"guestvault/internal/pkg/response"
)

const (
	CSRFHeader    = "X-CSRF-Token"
	CSRFFormField = "csrf_token"
)

// CSRF rejects the request unless it carries the session's anti-forgery
// token in the X-CSRF-Token header or the csrf_token form field.
func CSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		want := c.GetString(ContextCSRF)
		got := c.GetHeader(CSRFHeader)
		if got == "" {
			got = c.PostForm(CSRFFormField)
		}

		if want == "" || got == "" || subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
			response.Abort(c, http.StatusBadRequest, "CSRF_INVALID", "Missing or invalid CSRF token")
			return
		}
		c.Next()
	}
}
