package sessions

// Store persists the current session. Implementations make Save and Clear atomic from the
// point of view of Load: a caller never sees a credential without an identity or the reverse.
// No expiry is enforced by a Store; the backend signals expiry with 401.
type Store interface {
	// Save replaces any stored session with s.
	Save(s Session) error

	// Load returns the stored session, or false when none is stored.
	Load() (Session, bool, error)

	// Clear removes the session credential, the provider credential and the identity record.
	Clear() error
}
