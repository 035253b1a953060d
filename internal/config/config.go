package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration
	RequestTimeout     time.Duration
	Environment        string

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	JWTAccessSecret  string
	JWTRefreshSecret string
	JWTAccessTTL     time.Duration
	JWTRefreshTTL    time.Duration

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	FrontendURL       string
	CookieSameSite    http.SameSite
	CORSOrigins       []string
	RateLimitRPM      int
	AuthRateLimitRPM  int
	StoreRetryBackoff time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:         getEnv("SERVER_PORT", "5005"),
		ServerReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		ServerWriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:     getDuration("REQUEST_TIMEOUT", 30*time.Second),
		Environment:        getEnv("ENVIRONMENT", "development"),
		DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:         int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:         int32(getInt("DB_MIN_CONNS", 2)),
		JWTAccessSecret:    strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTRefreshSecret:   strings.TrimSpace(os.Getenv("JWT_REFRESH_TOKEN_KEY")),
		JWTAccessTTL:       getDuration("JWT_ACCESS_TTL", 15*time.Minute),
		JWTRefreshTTL:      getDuration("JWT_REFRESH_TTL", 168*time.Hour),
		GoogleClientID:     strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_ID")),
		GoogleClientSecret: strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_SECRET")),
		GoogleRedirectURL:  strings.TrimSpace(os.Getenv("GOOGLE_REDIRECT_URL")),
		FrontendURL:        getEnv("FRONTEND_URL", "http://localhost:3000"),
		CookieSameSite:     parseSameSite(getEnv("COOKIE_SAMESITE", "lax")),
		CORSOrigins:        splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		RateLimitRPM:       getInt("RATE_LIMIT_RPM", 100),
		AuthRateLimitRPM:   getInt("AUTH_RATE_LIMIT_RPM", 10),
		StoreRetryBackoff:  getDuration("STORE_RETRY_BACKOFF", 500*time.Millisecond),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTAccessSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.JWTRefreshSecret == "" {
		return fmt.Errorf("JWT_REFRESH_TOKEN_KEY is required")
	}

	if c.JWTAccessSecret == c.JWTRefreshSecret {
		return fmt.Errorf("JWT_SECRET and JWT_REFRESH_TOKEN_KEY must differ")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.StoreRetryBackoff <= 0 {
		return fmt.Errorf("STORE_RETRY_BACKOFF must be positive")
	}

	// Google OAuth is optional as a whole, but a half-configured provider
	// would only fail at callback time, so reject it at startup.
	googleVars := []string{c.GoogleClientID, c.GoogleClientSecret, c.GoogleRedirectURL}
	set := 0
	for _, v := range googleVars {
		if v != "" {
			set++
		}
	}
	if set > 0 && set < len(googleVars) {
		return fmt.Errorf("GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET and GOOGLE_REDIRECT_URL must be set together")
	}

	return nil
}

func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func parseSameSite(raw string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "none":
		return http.SameSiteNoneMode
	case "strict":
		return http.SameSiteStrictMode
	default:
		return http.SameSiteLaxMode
	}
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
