package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// DefaultClientConfigPath is relative to the user's home directory.
const DefaultClientConfigPath = ".config/postsync/config.yaml"

// DefaultSessionDir is relative to the user's home directory.
const DefaultSessionDir = ".config/postsync/session"

// ClientConfig configures the login client (the CLI host of the session lifecycle).
// Values come from, in increasing precedence: defaults, the YAML file, environment variables.
type ClientConfig struct {
	BackendURL      string        `yaml:"backend_url" env:"POSTSYNC_BACKEND_URL"`
	ProviderAuthURL string        `yaml:"provider_auth_url" env:"POSTSYNC_PROVIDER_AUTH_URL"`
	ClientID        string        `yaml:"client_id" env:"POSTSYNC_CLIENT_ID"`
	RedirectURI     string        `yaml:"redirect_uri" env:"POSTSYNC_REDIRECT_URI"`
	Scopes          []string      `yaml:"scopes" env:"POSTSYNC_SCOPES" envSeparator:" "`
	SessionDir      string        `yaml:"session_dir" env:"POSTSYNC_SESSION_DIR"`
	StoreKey        string        `yaml:"store_key" env:"POSTSYNC_STORE_KEY"`
	PendingLoginTTL time.Duration `yaml:"pending_login_ttl" env:"POSTSYNC_PENDING_LOGIN_TTL"`
	CallbackTimeout time.Duration `yaml:"callback_timeout" env:"POSTSYNC_CALLBACK_TIMEOUT"`
	HTTPTimeout     time.Duration `yaml:"http_timeout" env:"POSTSYNC_HTTP_TIMEOUT"`
	Env             string        `yaml:"env" env:"POSTSYNC_ENV"`
	LogLevel        string        `yaml:"log_level" env:"POSTSYNC_LOG_LEVEL"`
}

func defaultClientConfig() ClientConfig {
	return ClientConfig{
		BackendURL:      "http://localhost:8080",
		ProviderAuthURL: "https://www.linkedin.com/oauth/v2/authorization",
		RedirectURI:     "http://localhost:3000/callback",
		Scopes:          []string{"openid", "profile", "email", "w_member_social"},
		PendingLoginTTL: 15 * time.Minute,
		CallbackTimeout: 10 * time.Minute,
		HTTPTimeout:     30 * time.Second,
		Env:             "PROD",
		LogLevel:        "warn",
	}
}

// LoadClientConfig reads the client configuration. An empty path means the default location;
// a missing file is not an error. A nil environ means the process environment.
func LoadClientConfig(path string, environ map[string]string) (ClientConfig, error) {
	cfg := defaultClientConfig()

	home, homeErr := os.UserHomeDir()
	if path == "" && homeErr == nil {
		path = filepath.Join(home, DefaultClientConfigPath)
	}

	if path != "" {
		// #nosec G304 -- the path is chosen by the local user
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return ClientConfig{}, fmt.Errorf("[config] parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return ClientConfig{}, fmt.Errorf("[config] read %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return ClientConfig{}, fmt.Errorf("[config] parse environment: %w", err)
	}

	if cfg.SessionDir == "" {
		if homeErr != nil {
			return ClientConfig{}, fmt.Errorf("[config] resolve session dir: %w", homeErr)
		}
		cfg.SessionDir = filepath.Join(home, DefaultSessionDir)
	}

	return cfg, cfg.Validate()
}

// Validate checks the fields the login flow cannot work without.
func (c ClientConfig) Validate() error {
	switch {
	case c.BackendURL == "":
		return errors.New("[config] backend_url is required")
	case c.ProviderAuthURL == "":
		return errors.New("[config] provider_auth_url is required")
	case c.ClientID == "":
		return errors.New("[config] client_id is required")
	case c.RedirectURI == "":
		return errors.New("[config] redirect_uri is required")
	}
	return nil
}
