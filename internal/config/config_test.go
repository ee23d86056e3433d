package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "authbase", cfg.Auth.Issuer)
	assert.Equal(t, "X-JWT-Token", cfg.Auth.CookieName)
	assert.Equal(t, 30*time.Minute, cfg.Auth.KeyRotateInterval)
	assert.Equal(t, 60*time.Minute, cfg.Auth.KeyExpireInterval)
	assert.Greater(t, cfg.Auth.KeyExpireInterval, cfg.Auth.KeyRotateInterval)
}

func TestLoadRejectsExpireBeforeRotate(t *testing.T) {
	t.Setenv("AUTH_KEY_ROTATE_INTERVAL", "2h")
	t.Setenv("AUTH_KEY_EXPIRE_INTERVAL", "1h")

	_, err := Load()
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("AUTH_SESSION_TTL", "15m")
	t.Setenv("AUTH_REDIRECT_TO_LOGIN", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 15*time.Minute, cfg.Auth.SessionTTL)
	assert.False(t, cfg.Auth.RedirectToLogin)
}

func TestBadEnvValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")
	t.Setenv("AUTH_SESSION_TTL", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Minute, cfg.Auth.SessionTTL)
}
