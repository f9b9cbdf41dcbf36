package sessions

import (
	"errors"
	"strings"
)

// ErrInvalidSession is returned by Save when the session breaks the credential/identity invariant.
var ErrInvalidSession = errors.New("invalid session")

// Identity is the provider identity of the logged in user, as returned by the backend broker.
type Identity struct {
	UserID      string `json:"id"`
	DisplayName string `json:"name"`
	Email       string `json:"email,omitempty"`
	PictureURL  string `json:"picture,omitempty"`
	Locale      string `json:"locale,omitempty"`
}

// Session is an authenticated identity together with the two credentials obtained at login.
// It is created whole by a successful login and replaced whole, never patched.
type Session struct {
	Identity

	// SessionCredential is the opaque token issued by the backend; it authorizes API calls.
	SessionCredential string
	// ProviderCredential is the identity provider token. It is stored but never sent to the API.
	ProviderCredential string
}

// Validate enforces that identity and session credential only ever exist together.
func (s Session) Validate() error {
	if strings.TrimSpace(s.SessionCredential) == "" {
		return errors.New("invalid session: missing session credential")
	}
	if strings.TrimSpace(s.UserID) == "" {
		return errors.New("invalid session: missing user id")
	}
	return nil
}

// HasEmail reports whether the identity carries an email address.
func (s Session) HasEmail() bool {
	return strings.TrimSpace(s.Email) != ""
}
