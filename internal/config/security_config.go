package config

import (
	"errors"
	"time"
)

type SecurityConfig interface {
	GetJWTSecret() []byte
	GetSessionTokenTTL() time.Duration
}

type Security struct {
	JWTSecret       string        `env:"POSTSYNC_JWT_SECRET"`
	SessionTokenTTL time.Duration `env:"POSTSYNC_SESSION_TTL" envDefault:"168h"` // 7 days
}

var _ SecurityConfig = Security{}

func (s Security) GetJWTSecret() []byte {
	return []byte(s.JWTSecret)
}

func (s Security) GetSessionTokenTTL() time.Duration {
	return s.SessionTokenTTL
}

// minJWTSecretLength matches the HS256 key size.
const minJWTSecretLength = 32

func (s Security) validate() error {
	if len(s.JWTSecret) < minJWTSecretLength {
		return errors.New("[config] POSTSYNC_JWT_SECRET must be at least 32 bytes")
	}
	if s.SessionTokenTTL <= 0 {
		return errors.New("[config] POSTSYNC_SESSION_TTL must be positive")
	}
	return nil
}
