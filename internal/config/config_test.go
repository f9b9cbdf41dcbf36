package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/postsync/internal/config"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func brokerEnv() map[string]string {
	return map[string]string{
		"POSTSYNC_PROVIDER_CLIENT_ID":     "client-1",
		"POSTSYNC_PROVIDER_CLIENT_SECRET": "secret-1",
		"POSTSYNC_JWT_SECRET":             testSecret,
	}
}

func TestNewFromMap_Defaults(t *testing.T) {
	c, err := config.NewFromMap(brokerEnv())
	require.NoError(t, err)

	require.Equal(t, ":8080", c.GetPort())
	require.Equal(t, "DEV", c.GetEnv())
	require.Equal(t, "client-1", c.GetProviderClientID())
	require.Equal(t, []string{"openid", "profile", "email", "w_member_social"}, c.GetProviderScopes())
	require.Equal(t, 168*time.Hour, c.GetSessionTokenTTL())
	require.True(t, c.GetAllowedOrigins().IsAllowedOrigin("http://localhost:5173"))
}

func TestNewFromMap_Overrides(t *testing.T) {
	environ := brokerEnv()
	environ["POSTSYNC_PORT"] = ":9090"
	environ["POSTSYNC_BASE_URL"] = "https://api.example.com/"
	environ["POSTSYNC_ALLOWED_ORIGINS"] = "https://a.example.com, https://b.example.com"
	environ["POSTSYNC_SESSION_TTL"] = "2h"

	c, err := config.NewFromMap(environ)
	require.NoError(t, err)

	require.Equal(t, ":9090", c.GetPort())
	require.Equal(t, "https://api.example.com", c.GetBaseURL())
	require.True(t, c.GetAllowedOrigins().IsAllowedOrigin("https://b.example.com"))
	require.Equal(t, 2*time.Hour, c.GetSessionTokenTTL())
}

func TestNewFromMap_Validation(t *testing.T) {
	t.Run("missing client secret", func(t *testing.T) {
		environ := brokerEnv()
		delete(environ, "POSTSYNC_PROVIDER_CLIENT_SECRET")
		_, err := config.NewFromMap(environ)
		require.ErrorContains(t, err, "POSTSYNC_PROVIDER_CLIENT_SECRET")
	})

	t.Run("short jwt secret", func(t *testing.T) {
		environ := brokerEnv()
		environ["POSTSYNC_JWT_SECRET"] = "short"
		_, err := config.NewFromMap(environ)
		require.ErrorContains(t, err, "at least 32 bytes")
	})
}

func TestLoadClientConfig_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlDoc := `backend_url: https://api.example.com
client_id: from-file
scopes: [openid, email]
callback_timeout: 2m
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0600))

	cfg, err := config.LoadClientConfig(path, map[string]string{
		"POSTSYNC_CLIENT_ID":   "from-env",
		"POSTSYNC_SESSION_DIR": filepath.Join(dir, "session"),
	})
	require.NoError(t, err)

	require.Equal(t, "https://api.example.com", cfg.BackendURL)
	require.Equal(t, "from-env", cfg.ClientID)
	require.Equal(t, []string{"openid", "email"}, cfg.Scopes)
	require.Equal(t, 2*time.Minute, cfg.CallbackTimeout)
	require.Equal(t, 15*time.Minute, cfg.PendingLoginTTL)
	require.Equal(t, filepath.Join(dir, "session"), cfg.SessionDir)
}

func TestLoadClientConfig_MissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := config.LoadClientConfig(filepath.Join(dir, "absent.yaml"), map[string]string{
		"POSTSYNC_SESSION_DIR": dir,
	})
	require.ErrorContains(t, err, "client_id is required")
}
