package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"guestvault/internal/config"
	"guestvault/internal/domain/auth"
	"guestvault/internal/domain/feed"
	"guestvault/internal/domain/vault"
	"guestvault/internal/middleware"
	"guestvault/internal/pkg/blobstore"
	"guestvault/internal/pkg/jwt"
	"guestvault/internal/pkg/ratelimit"
)

const maxMultipartMemory = 32 << 20

// Proxies whose X-Forwarded-For is believed when BEHIND_PROXY is set.
var trustedProxies = []string{"127.0.0.1/8", "::1/128", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "fc00::/7"}

// App is the assembled HTTP server.
type App struct {
	Router *gin.Engine
	Vault  *vault.Service
	Feed   *feed.Hub
}

// New wires the services and routes. db must already be migrated.
func New(cfg *config.Config, db *gorm.DB, store *blobstore.Store) (*App, error) {
	hub := feed.NewHub()
	vaultService := vault.NewService(vault.NewRepository(db), store).WithPublisher(hub)

	authService, err := auth.NewService(cfg.AdminPassword, ratelimit.New(cfg.LoginLimitAttempts, cfg.LoginLimitWindow))
	if err != nil {
		return nil, err
	}
	sessions := middleware.NewSessions(jwt.New(cfg.SecretKey, cfg.SessionTTL), middleware.CookieConfig{
		Name:     cfg.CookieName,
		Secure:   cfg.CookieSecure,
		SameSite: middleware.ParseSameSite(cfg.CookieSameSite),
	})

	r := gin.New()
	r.MaxMultipartMemory = maxMultipartMemory
	proxies := []string(nil)
	if cfg.BehindProxy {
		proxies = trustedProxies
	}
	if err := r.SetTrustedProxies(proxies); err != nil {
		return nil, err
	}

	r.Use(
		middleware.RequestID(),
		middleware.RequestLogger(),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.CORSAllowedOrigins),
	)

	r.GET("/healthz", healthz(db))

	v1 := r.Group("/api/v1", middleware.BodyLimit(cfg.MaxContentLength), sessions.Load())
	csrf := middleware.CSRF()

	auth.NewHandler(authService, sessions).RegisterRoutes(v1, csrf)
	vault.RegisterRoutes(v1, vault.NewHandler(vaultService), vault.Guards{
		CSRF:  csrf,
		Admin: middleware.AdminOnly(),
	})
	feed.NewHandler(hub, cfg.CORSAllowedOrigins).RegisterRoutes(v1)

	return &App{Router: r, Vault: vaultService, Feed: hub}, nil
}

func healthz(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			log.WithError(err).Warn("health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
