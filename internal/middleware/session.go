package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"guestvault/internal/pkg/jwt"
	"guestvault/internal/pkg/response"
)

const (
	ContextIsAdmin = "is_admin"
	ContextCSRF    = "csrf_token"
)

type CookieConfig struct {
	Name     string
	Secure   bool
	SameSite http.SameSite
}

// ParseSameSite maps the config value to http.SameSite. Unknown values fall
// back to Lax.
func ParseSameSite(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// Sessions keeps the browser session in a signed cookie. Every visitor gets
// one, so there is always a CSRF token to check mutating requests against.
type Sessions struct {
	tokens *jwt.Service
	cookie CookieConfig
}

func NewSessions(tokens *jwt.Service, cookie CookieConfig) *Sessions {
	return &Sessions{tokens: tokens, cookie: cookie}
}

// Load validates the session cookie and puts the admin flag and CSRF token
// into the context. Missing or invalid cookies get a fresh anonymous session.
func (s *Sessions) Load() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, err := c.Cookie(s.cookie.Name); err == nil && raw != "" {
			if claims, err := s.tokens.ValidateToken(raw); err == nil {
				c.Set(ContextIsAdmin, claims.Admin)
				c.Set(ContextCSRF, claims.CSRF)
				c.Next()
				return
			}
		}

		if _, err := s.Issue(c, false); err != nil {
			log.WithError(err).Error("failed to start session")
			response.Abort(c, http.StatusInternalServerError, "SESSION_ERROR", "Failed to start session")
			return
		}
		c.Next()
	}
}

// Issue replaces the session with a new one carrying admin and a freshly
// generated CSRF token, which it returns.
func (s *Sessions) Issue(c *gin.Context, admin bool) (string, error) {
	csrf, err := jwt.NewCSRFToken()
	if err != nil {
		return "", err
	}
	token, err := s.tokens.GenerateToken(admin, csrf)
	if err != nil {
		return "", err
	}

	s.dropPendingCookie(c)
	c.SetSameSite(s.cookie.SameSite)
	c.SetCookie(s.cookie.Name, token, int(s.tokens.TTL().Seconds()), "/", "", s.cookie.Secure, true)
	c.Set(ContextIsAdmin, admin)
	c.Set(ContextCSRF, csrf)
	return csrf, nil
}

// dropPendingCookie removes a session cookie already written during this
// request, so a response never carries two of them.
func (s *Sessions) dropPendingCookie(c *gin.Context) {
	header := c.Writer.Header()
	prefix := s.cookie.Name + "="
	var kept []string
	for _, v := range header.Values("Set-Cookie") {
		if !strings.HasPrefix(v, prefix) {
			kept = append(kept, v)
		}
	}
	header.Del("Set-Cookie")
	for _, v := range kept {
		header.Add("Set-Cookie", v)
	}
}
