package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"guestvault/internal/pkg/response"
	"guestvault/internal/pkg/validator"
)

type Handler struct {
	service  *Service
	sessions SessionIssuer
}

func NewHandler(service *Service, sessions SessionIssuer) *Handler {
	return &Handler{service: service, sessions: sessions}
}

// Session godoc
// @Summary Current session
// @Description Returns the admin flag and the CSRF token mutating requests must send.
// @Tags Auth
// @Produce json
// @Success 200 {object} response.Response{data=SessionResponse}
// @Router /session [get]
func (h *Handler) Session(c *gin.Context) {
	response.Success(c, http.StatusOK, SessionResponse{
		IsAdmin:   c.GetBool("is_admin"),
		CSRFToken: c.GetString("csrf_token"),
	})
}

// Login godoc
// @Summary Admin login
// @Description Upgrades the session to admin and rotates the CSRF token.
// @Tags Auth
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param X-CSRF-Token header string true "CSRF token"
// @Param request body LoginRequest true "Admin password"
// @Success 200 {object} response.Response{data=SessionResponse}
// @Failure 400,401,429 {object} response.Response
// @Router /admin/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", errs)
		return
	}

	if err := h.service.Login(c.ClientIP(), req.Password); err != nil {
		switch {
		case errors.Is(err, ErrRateLimitExceeded):
			response.Error(c, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Too many login attempts, try again later")
		case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrLoginDisabled):
			response.Error(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid password")
		default:
			log.WithError(err).Error("admin login failed")
			response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		}
		return
	}

	h.issue(c, true)
}

// Logout godoc
// @Summary Log out
// @Description Drops admin rights and rotates the CSRF token.
// @Tags Auth
// @Produce json
// @Param X-CSRF-Token header string true "CSRF token"
// @Success 200 {object} response.Response{data=SessionResponse}
// @Router /admin/logout [post]
func (h *Handler) Logout(c *gin.Context) {
	h.issue(c, false)
}

func (h *Handler) issue(c *gin.Context, admin bool) {
	csrf, err := h.sessions.Issue(c, admin)
	if err != nil {
		log.WithError(err).Error("failed to issue session")
		response.Error(c, http.StatusInternalServerError, "SESSION_ERROR", "Failed to update session")
		return
	}
	response.Success(c, http.StatusOK, SessionResponse{IsAdmin: admin, CSRFToken: csrf})
}
