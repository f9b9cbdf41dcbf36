package authsession

import (
	"context"
	"net/url"

	"github.com/jrsteele09/postsync/oauthflow"
	"github.com/jrsteele09/postsync/sessions"
)

// Provider is what consumers depend on to ask "who is logged in". Hosts inject it; there is no
// package-level instance.
type Provider interface {
	Init(ctx context.Context, callback url.Values) error
	Teardown()

	Session() (sessions.Session, bool)
	SessionCredential() (string, bool)
	IsAuthenticated() bool
	Snapshot() Snapshot
	OnChange(fn func(Snapshot))

	SignIn(ctx context.Context) (string, error)
	HandleCallback(ctx context.Context, query url.Values) error
	SignOut() error
	OnUnauthorizedResponse() error
}

var _ Provider = (*Context)(nil)

// Snapshot is the login state and the stored session, read together.
type Snapshot struct {
	State      oauthflow.State
	Session    sessions.Session
	HasSession bool
	LastError  error
}

// IsAuthenticated is true iff a complete session is present and no code exchange is running.
func (s Snapshot) IsAuthenticated() bool {
	return s.HasSession && s.State != oauthflow.ExchangingCode
}

func (s Snapshot) equal(o Snapshot) bool {
	return s.State == o.State &&
		s.HasSession == o.HasSession &&
		s.Session == o.Session &&
		errText(s.LastError) == errText(o.LastError)
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
