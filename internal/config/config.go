package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const (
	defaultHTTPAddr         = ":5000"
	defaultDatabaseURL      = "data.db"
	defaultUploadDir        = "uploads"
	defaultMaxContentLength = 512 * 1024 * 1024
	defaultSessionTTL       = "24h"
	defaultCookieName       = "vault_session"
	defaultCookieSameSite   = "Lax"
	defaultLoginAttempts    = 8
	defaultLoginWindowSecs  = 300
	defaultLogLevel         = "info"
)

type Config struct {
	AppEnv           string
	HTTPAddr         string
	DatabaseURL      string
	UploadDir        string
	MaxContentLength int64

	SecretKey     string
	AdminPassword string

	SessionTTL     time.Duration
	CookieName     string
	CookieSecure   bool
	CookieSameSite string
	BehindProxy    bool

	LoginLimitAttempts int
	LoginLimitWindow   time.Duration

	CORSAllowedOrigins []string
	LogLevel           string
}

// Load reads configuration from the environment, after merging a .env file
// from the working directory when one exists. Variables already set in the
// environment win over .env.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("ENV"))
	}
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.HTTPAddr = strings.TrimSpace(getEnv("HTTP_ADDR", defaultHTTPAddr))
	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", defaultDatabaseURL))
	cfg.UploadDir = strings.TrimSpace(getEnv("UPLOAD_DIR", defaultUploadDir))
	cfg.SecretKey = os.Getenv("SECRET_KEY")
	cfg.AdminPassword = strings.TrimSpace(os.Getenv("ADMIN_PASSWORD"))
	cfg.CookieName = strings.TrimSpace(getEnv("SESSION_COOKIE_NAME", defaultCookieName))
	cfg.CookieSameSite = strings.TrimSpace(getEnv("SESSION_COOKIE_SAMESITE", defaultCookieSameSite))
	cfg.CookieSecure = parseBoolEnv("SESSION_COOKIE_SECURE", getEnv("COOKIE_SECURE", "false"))
	cfg.BehindProxy = parseBoolEnv("BEHIND_PROXY", "false")
	cfg.LogLevel = strings.TrimSpace(getEnv("LOG_LEVEL", defaultLogLevel))

	var err error
	cfg.MaxContentLength, err = parseInt64Env("MAX_CONTENT_LENGTH", defaultMaxContentLength)
	if err != nil {
		return nil, err
	}

	cfg.SessionTTL, err = parseDurationEnv("SESSION_TTL", defaultSessionTTL)
	if err != nil {
		return nil, err
	}

	attempts, err := parseInt64Env(firstSet("LOGIN_LIMIT_ATTEMPTS", "LOGIN_MAX_ATTEMPTS"), defaultLoginAttempts)
	if err != nil {
		return nil, err
	}
	cfg.LoginLimitAttempts = int(attempts)

	windowSecs, err := parseInt64Env(firstSet("LOGIN_LIMIT_WINDOW", "LOGIN_WINDOW_SECONDS"), defaultLoginWindowSecs)
	if err != nil {
		return nil, err
	}
	cfg.LoginLimitWindow = time.Duration(windowSecs) * time.Second

	if extra := os.Getenv("CORS_ALLOWED_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
			}
		}
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidateServer checks the settings only the HTTP server needs.
func (cfg *Config) ValidateServer() error {
	if cfg.SecretKey == "" {
		return fmt.Errorf("SECRET_KEY is required")
	}
	if cfg.AdminPassword == "" {
		return fmt.Errorf("ADMIN_PASSWORD is required")
	}
	if cfg.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if cfg.CookieName == "" {
		return fmt.Errorf("SESSION_COOKIE_NAME must not be empty")
	}
	sameSite := strings.ToLower(cfg.CookieSameSite)
	if sameSite != "lax" && sameSite != "none" && sameSite != "strict" {
		return fmt.Errorf("SESSION_COOKIE_SAMESITE must be one of: Lax, None, Strict")
	}
	if sameSite == "none" && !cfg.CookieSecure {
		return fmt.Errorf("SESSION_COOKIE_SECURE must be true when SESSION_COOKIE_SAMESITE=None")
	}
	if cfg.LoginLimitAttempts <= 0 {
		return fmt.Errorf("LOGIN_LIMIT_ATTEMPTS must be > 0")
	}
	if cfg.LoginLimitWindow <= 0 {
		return fmt.Errorf("LOGIN_LIMIT_WINDOW must be > 0")
	}
	if isProdLike(cfg.AppEnv) && !cfg.CookieSecure {
		return fmt.Errorf("in prod/release SESSION_COOKIE_SECURE must be true")
	}

	log.WithFields(log.Fields{
		"secure":   cfg.CookieSecure,
		"sameSite": cfg.CookieSameSite,
		"proxy":    cfg.BehindProxy,
	}).Info("session cookie config")
	return nil
}

// IsProduction reports whether APP_ENV names a production-like environment.
func (cfg *Config) IsProduction() bool {
	return isProdLike(cfg.AppEnv)
}

func validateConfig(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if cfg.UploadDir == "" {
		return fmt.Errorf("UPLOAD_DIR must not be empty")
	}
	if cfg.MaxContentLength <= 0 {
		return fmt.Errorf("MAX_CONTENT_LENGTH must be > 0")
	}
	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

// firstSet returns the first variable name that has a value, or the first
// name when none is set.
func firstSet(names ...string) string {
	for _, n := range names {
		if strings.TrimSpace(os.Getenv(n)) != "" {
			return n
		}
	}
	return names[0]
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseInt64Env(name string, fallback int64) (int64, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
