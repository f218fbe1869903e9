package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"guestvault/internal/pkg/response"
)

const (
	RequestIDHeader  = "X-Request-ID"
	ContextRequestID = "request_id"
)

// RequestID tags the request with the caller's X-Request-ID or a new UUID
// and echoes it in the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(ContextRequestID, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// RequestLogger logs every request once it completes and turns panics into
// a 500 response.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			if recovered := recover(); recovered != nil {
				requestEntry(c, start).
					WithField("panic", fmt.Sprint(recovered)).
					WithField("stack", string(debug.Stack())).
					Error("request panicked")
				response.Abort(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
				return
			}

			entry := requestEntry(c, start)
			for _, err := range c.Errors {
				entry = entry.WithError(err.Err)
			}
			switch status := c.Writer.Status(); {
			case status >= http.StatusInternalServerError:
				entry.Error("request failed")
			case status >= http.StatusBadRequest:
				entry.Warn("request rejected")
			default:
				entry.Info("request")
			}
		}()

		c.Next()
	}
}

func requestEntry(c *gin.Context, start time.Time) *log.Entry {
	return log.WithFields(log.Fields{
		"request_id": c.GetString(ContextRequestID),
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"status":     c.Writer.Status(),
		"client_ip":  c.ClientIP(),
		"admin":      c.GetBool(ContextIsAdmin),
		"latency":    time.Since(start).String(),
	})
}
