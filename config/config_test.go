package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(body), 0o600))
	return dir
}

func TestLoad_FromFile(t *testing.T) {
	dir := writeConfig(t, `
jwt:
  secret_key: "`+testSecret+`"
  access_token_ttl: 5m
rate_limit:
  login:
    capacity: 5
    refill_period: 30s
verification:
  resend_after: 2h
`)

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.JWT.AccessTokenTTL)
	assert.Equal(t, 5, cfg.RateLimit.Login.Capacity)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Login.RefillPeriod)
	assert.Equal(t, 2*time.Hour, cfg.Verification.ResendAfter)

	// untouched keys keep their defaults
	assert.Equal(t, 1, cfg.RateLimit.Login.RefillTokens)
	assert.Equal(t, 3, cfg.RateLimit.PasswordReset.Capacity)
	assert.Equal(t, 24*time.Hour, cfg.RateLimit.PasswordReset.RefillPeriod)
	assert.Equal(t, "memory", cfg.RateLimit.Backend)
	assert.Equal(t, time.Hour, cfg.Cleanup.Interval)
}

func TestLoad_EnvOverride(t *testing.T) {
	dir := writeConfig(t, "jwt:\n  secret_key: \"short\"\n")
	t.Setenv("JWT_SECRET_KEY", testSecret)
	t.Setenv("DATABASE_HOST", "db.internal")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, testSecret, cfg.JWT.SecretKey)
	assert.Equal(t, "db.internal", cfg.Database.Host)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", testSecret)

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTokenTTL)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("short secret", func(t *testing.T) {
		dir := writeConfig(t, "jwt:\n  secret_key: \"too-short\"\n")
		_, err := Load(dir)
		assert.Error(t, err)
	})

	t.Run("unknown backend", func(t *testing.T) {
		dir := writeConfig(t, "jwt:\n  secret_key: \""+testSecret+"\"\nrate_limit:\n  backend: memcached\n")
		_, err := Load(dir)
		assert.Error(t, err)
	})
}

func TestLoadConfig_SetsAppConfig(t *testing.T) {
	dir := writeConfig(t, "jwt:\n  secret_key: \""+testSecret+"\"\nserver:\n  port: \"9090\"\n")
	require.NoError(t, LoadConfig(dir))
	assert.Equal(t, "9090", AppConfig.Server.Port)
}
