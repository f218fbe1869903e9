package auth

import "github.com/gin-gonic/gin"

// SessionIssuer replaces the caller's session cookie.
type SessionIssuer interface {
	Issue(c *gin.Context, admin bool) (csrf string, err error)
}

// AttemptLimiter throttles login attempts per client.
type AttemptLimiter interface {
	Allow(key string) bool
	Reset(key string)
}
