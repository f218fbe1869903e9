package auth

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the session endpoints. csrf guards login and logout.
func (h *Handler) RegisterRoutes(v1 *gin.RouterGroup, csrf gin.HandlerFunc) {
	v1.GET("/session", h.Session)

	admin := v1.Group("/admin")
	{
		admin.POST("/login", csrf, h.Login)
		admin.POST("/logout", csrf, h.Logout)
	}
}
