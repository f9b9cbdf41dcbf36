package pendinglogin

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("pending login not found")
	ErrExpired  = errors.New("pending login expired")
)

// PendingLogin is the in-flight state of one login attempt, keyed by its nonce.
type PendingLogin struct {
	Nonce       string
	RedirectURI string
	CreatedAt   time.Time
}

type Repo interface {
	Upsert(nonce string, login *PendingLogin) error
	Get(nonce string) (*PendingLogin, error)
	Delete(nonce string) error
}
