package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_NAME", "authz")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("ACCESS_TOKEN_TTL", "15m")
	t.Setenv("REDIS_ADDR", "127.0.0.1:6379")
	t.Setenv("PERMISSION_CACHE_TTL", "1h")
	t.Setenv("REVOCATION_FAIL_OPEN", "true")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, time.Hour, cfg.PermissionCacheTTL)
	assert.True(t, cfg.FailOpen())
	assert.True(t, cfg.PermissionFanout)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, "127.0.0.1:6379", cfg.Redis.Addr)
	assert.Equal(t, 10, cfg.RateLimit.Capacity)
}

func TestLoadFailOpenFalse(t *testing.T) {
	setRequired(t)
	t.Setenv("REVOCATION_FAIL_OPEN", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.FailOpen())
}

func TestLoadReadsDotEnv(t *testing.T) {
	setRequired(t)
	t.Setenv("LOG_LEVEL", "")
	require.NoError(t, os.Unsetenv("LOG_LEVEL"))
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LOG_LEVEL=debug\n"), 0o600))
	t.Chdir(dir)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRejectsMalformedDotEnv(t *testing.T) {
	setRequired(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("BAD-KEY=1\n"), 0o600))
	t.Chdir(dir)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".env")
}

func TestLoadFailsWithoutMandatoryValues(t *testing.T) {
	for _, key := range []string{"JWT_SECRET", "REDIS_ADDR", "PERMISSION_CACHE_TTL", "REVOCATION_FAIL_OPEN"} {
		t.Run(key, func(t *testing.T) {
			setRequired(t)
			t.Setenv(key, "")

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestValidateReportsEveryViolation(t *testing.T) {
	cfg := Config{
		JWTSecret:  "short",
		BcryptCost: 2,
		LogFormat:  "xml",
	}
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"JWT_SECRET", "ACCESS_TOKEN_TTL", "PERMISSION_CACHE_TTL", "REVOCATION_FAIL_OPEN", "REDIS_ADDR", "BCRYPT_COST", "LOG_FORMAT"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateRaisesRateLimitTTL(t *testing.T) {
	failOpen := false
	cfg := Config{
		JWTSecret:          "0123456789abcdef0123456789abcdef",
		AccessTokenTTL:     time.Minute,
		PermissionCacheTTL: time.Minute,
		RevocationFailOpen: &failOpen,
		Redis:              RedisConfig{Addr: "x:1"},
		BcryptCost:         10,
		LogFormat:          "json",
		RateLimit:          RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Minute, TTL: time.Second},
	}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5*time.Minute, cfg.RateLimit.TTL)
}
