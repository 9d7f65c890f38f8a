package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Session
	SessionMaxAge         int
	SessionHydrateTimeout time.Duration

	// Session cleanup worker
	SessionCleanupInterval   time.Duration
	SessionCleanupGraceHours int

	// Idle
	IdleTimeout    time.Duration
	IdleCountdown  int
	IdleTickPeriod time.Duration

	// Image storage
	GCSBucket          string
	GCSCredentialsFile string
	UploadDir          string
	PublicUploadURL    string
	MaxUploadSize      int64

	// Avatar import
	AvatarImportTimeout time.Duration
	AvatarMaxSize       int64
	AvatarAllowedHosts  []string

	// Notification relay
	RedisURL string

	// Locale
	SupportedLocales []string
	DefaultLocale    string

	// Rate Limit
	RateLimitGeneral int
	RateLimitLogin   int

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	if cfg.GoogleClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}

	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	if cfg.GoogleClientSecret == "" {
		missing = append(missing, "GOOGLE_CLIENT_SECRET")
	}

	cfg.GoogleRedirectURL = os.Getenv("GOOGLE_REDIRECT_URL")
	if cfg.GoogleRedirectURL == "" {
		missing = append(missing, "GOOGLE_REDIRECT_URL")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.SessionHydrateTimeout = getEnvDuration("SESSION_HYDRATE_TIMEOUT", 5*time.Second)
	cfg.SessionCleanupInterval = getEnvDuration("SESSION_CLEANUP_INTERVAL", time.Hour)
	cfg.SessionCleanupGraceHours = getEnvInt("SESSION_CLEANUP_GRACE_HOURS", 24)
	cfg.IdleTimeout = getEnvDuration("IDLE_TIMEOUT", 100*time.Minute)
	cfg.IdleCountdown = getEnvInt("IDLE_COUNTDOWN", 10)
	cfg.IdleTickPeriod = getEnvDuration("IDLE_TICK_PERIOD", time.Second)
	cfg.GCSBucket = getEnvString("GCS_BUCKET", "")
	cfg.GCSCredentialsFile = getEnvString("GCS_CREDENTIALS_FILE", "")
	cfg.UploadDir = getEnvString("UPLOAD_DIR", "./uploads")
	cfg.PublicUploadURL = getEnvString("PUBLIC_UPLOAD_URL", strings.TrimRight(cfg.BaseURL, "/")+"/uploads")
	cfg.MaxUploadSize = getEnvInt64("MAX_UPLOAD_SIZE", 5242880)
	cfg.AvatarImportTimeout = getEnvDuration("AVATAR_IMPORT_TIMEOUT", 10*time.Second)
	cfg.AvatarMaxSize = getEnvInt64("AVATAR_MAX_SIZE", 2097152)
	cfg.AvatarAllowedHosts = getEnvList("AVATAR_ALLOWED_HOSTS", []string{"googleusercontent.com"})
	cfg.RedisURL = getEnvString("REDIS_URL", "")
	cfg.SupportedLocales = getEnvList("SUPPORTED_LOCALES", []string{"en", "es", "fr"})
	cfg.DefaultLocale = getEnvString("DEFAULT_LOCALE", "en")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitLogin = getEnvInt("RATE_LIMIT_LOGIN", 10)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	if !contains(cfg.SupportedLocales, cfg.DefaultLocale) {
		return nil, fmt.Errorf("DEFAULT_LOCALE %q is not in SUPPORTED_LOCALES %v", cfg.DefaultLocale, cfg.SupportedLocales)
	}

	return cfg, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// getEnvList はカンマ区切りの環境変数を読み込む。空要素は捨てる。
func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
