package config

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "access-secret")
	t.Setenv("JWT_REFRESH_TOKEN_KEY", "refresh-secret")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/flowauth")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5005", cfg.ServerPort)
	assert.Equal(t, 15*time.Minute, cfg.JWTAccessTTL)
	assert.Equal(t, 168*time.Hour, cfg.JWTRefreshTTL)
	assert.Equal(t, "http://localhost:3000", cfg.FrontendURL)
	assert.Equal(t, http.SameSiteLaxMode, cfg.CookieSameSite)
	assert.Equal(t, 500*time.Millisecond, cfg.StoreRetryBackoff)
	assert.False(t, cfg.GoogleEnabled())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_MissingSecretsFailFast(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/flowauth")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("JWT_REFRESH_TOKEN_KEY", "refresh-secret")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "access-secret")
	t.Setenv("JWT_REFRESH_TOKEN_KEY", "")

	_, err = Load()
	assert.Error(t, err)
}

func TestLoad_EqualSecretsRejected(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/flowauth")
	t.Setenv("JWT_SECRET", "shared-secret")
	t.Setenv("JWT_REFRESH_TOKEN_KEY", "shared-secret")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_PartialGoogleConfigRejected(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GOOGLE_CLIENT_ID", "client-id")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_FullGoogleConfig(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GOOGLE_CLIENT_ID", "client-id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "client-secret")
	t.Setenv("GOOGLE_REDIRECT_URL", "http://localhost:5005/auth/google/callback")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.GoogleEnabled())
}

func TestParseSameSite(t *testing.T) {
	assert.Equal(t, http.SameSiteNoneMode, parseSameSite("none"))
	assert.Equal(t, http.SameSiteStrictMode, parseSameSite("strict"))
	assert.Equal(t, http.SameSiteLaxMode, parseSameSite("lax"))
	assert.Equal(t, http.SameSiteLaxMode, parseSameSite("garbage"))
}

func TestIsProduction(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ENVIRONMENT", "Production")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}
