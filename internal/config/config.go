package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config interface {
	EnvConfig
	CorsConfig
	ProviderConfig
	SecurityConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetLogLevel() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Provider
	Security
}

// New loads the broker configuration from the process environment.
func New() (Config, error) {
	return load(env.Options{})
}

// NewFromMap loads the broker configuration from an explicit environment instead of the process one.
func NewFromMap(environ map[string]string) (Config, error) {
	return load(env.Options{Environment: environ})
}

func load(opts env.Options) (Config, error) {
	var c mainConfig
	if err := env.ParseWithOptions(&c, opts); err != nil {
		return nil, fmt.Errorf("[config] parse environment: %w", err)
	}
	if err := c.Provider.validate(); err != nil {
		return nil, err
	}
	if err := c.Security.validate(); err != nil {
		return nil, err
	}
	return c, nil
}
