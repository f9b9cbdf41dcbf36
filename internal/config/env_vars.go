package config

import "strings"

type EnvVars struct {
	Port     string `env:"POSTSYNC_PORT" envDefault:"8080"`
	AppName  string `env:"POSTSYNC_APP_NAME" envDefault:"PostSync Broker"`
	BaseURL  string `env:"POSTSYNC_BASE_URL" envDefault:"http://localhost:8080"`
	LogLevel string `env:"POSTSYNC_LOG_LEVEL" envDefault:"info"`
	Env      string `env:"POSTSYNC_ENV" envDefault:"DEV"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	if strings.HasPrefix(e.Port, ":") {
		return e.Port
	}
	return ":" + e.Port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

// GetBaseURL returns the public base URL of the broker (e.g., "https://api.postsync.example").
// It is used as the issuer of session tokens.
func (e EnvVars) GetBaseURL() string {
	return strings.TrimSuffix(e.BaseURL, "/")
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

func (e EnvVars) GetEnv() string {
	if e.Env == "" {
		return "DEV"
	}
	return strings.ToUpper(e.Env)
}
