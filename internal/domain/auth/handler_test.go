package auth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guestvault/internal/pkg/ratelimit"
)

type fakeSessions struct {
	admin  bool
	issued int
}

func (f *fakeSessions) Issue(c *gin.Context, admin bool) (string, error) {
	f.admin = admin
	f.issued++
	return "rotated-token", nil
}

func setupTestRouter(t *testing.T, attempts int) (*gin.Engine, *fakeSessions) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc, err := NewService("s3cret", ratelimit.New(attempts, time.Hour))
	require.NoError(t, err)
	sessions := &fakeSessions{}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("is_admin", false)
		c.Set("csrf_token", "current-token")
		c.Next()
	})
	pass := func(c *gin.Context) { c.Next() }
	NewHandler(svc, sessions).RegisterRoutes(r.Group("/api/v1"), pass)
	return r, sessions
}

func login(r http.Handler, password string) *httptest.ResponseRecorder {
	form := url.Values{"password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_Session(t *testing.T) {
	r, _ := setupTestRouter(t, 8)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/session", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"csrf_token":"current-token"`)
	assert.Contains(t, w.Body.String(), `"is_admin":false`)
}

func TestHandler_LoginSuccessRotatesToken(t *testing.T) {
	r, sessions := setupTestRouter(t, 8)

	w := login(r, "s3cret")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"csrf_token":"rotated-token"`)
	assert.True(t, sessions.admin)
	assert.Equal(t, 1, sessions.issued)
}

func TestHandler_LoginFailures(t *testing.T) {
	r, sessions := setupTestRouter(t, 2)

	w := login(r, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = login(r, "nope")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_CREDENTIALS")

	login(r, "nope")
	w = login(r, "s3cret")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Zero(t, sessions.issued)
}

func TestHandler_LoginJSON(t *testing.T) {
	r, _ := setupTestRouter(t, 8)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/login", strings.NewReader(`{"password":"s3cret"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandler_Logout(t *testing.T) {
	r, sessions := setupTestRouter(t, 8)
	sessions.admin = true

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/admin/logout", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, sessions.admin)
	assert.Contains(t, w.Body.String(), `"is_admin":false`)
}
