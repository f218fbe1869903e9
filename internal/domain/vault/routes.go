package vault

import "github.com/gin-gonic/gin"

// Guards are the middleware the file routes need from the app. CSRF protects
// every mutating route, Admin additionally requires an admin session.
type Guards struct {
	CSRF  gin.HandlerFunc
	Admin gin.HandlerFunc
}

// RegisterRoutes mounts the file routes on the /api/v1 group.
func RegisterRoutes(r *gin.RouterGroup, h *Handler, g Guards) {
	files := r.Group("/files")
	{
		files.GET("", h.List)
		files.POST("", g.CSRF, h.Upload)
		files.GET("/:id", h.Detail)
		files.GET("/:id/download", h.Download)
		files.GET("/:id/raw", h.Raw)
		files.DELETE("/:id", g.CSRF, g.Admin, h.Delete)
		files.POST("/bulk-delete", g.CSRF, g.Admin, h.BulkDelete)
	}

	admin := r.Group("/admin", g.CSRF, g.Admin)
	{
		admin.POST("/blobs/sweep", h.Sweep)
	}
}
