package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"guestvault/internal/pkg/response"
)

// BodyLimit caps request bodies at max bytes. Requests that announce a larger
// body are refused up front; others are cut off while reading.
func BodyLimit(max int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if max <= 0 || c.Request.Body == nil {
			c.Next()
			return
		}
		if c.Request.ContentLength > max {
			response.Abort(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "Upload exceeds the size limit")
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)
		c.Next()
	}
}
