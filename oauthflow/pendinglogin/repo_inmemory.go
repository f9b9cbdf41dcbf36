package pendinglogin

import (
	"errors"
	"sync"
	"time"
)

// DefaultTTL bounds how long the user may take at the provider before the attempt is void.
const DefaultTTL = 10 * time.Minute

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface.
// Pending logins never outlive the process.
type InMemoryRepo struct {
	mu      sync.RWMutex
	logins  map[string]*PendingLogin
	ttl     time.Duration
	nowFunc func() time.Time
}

// NewInMemoryRepo creates a repository whose entries expire after ttl (DefaultTTL when zero).
func NewInMemoryRepo(ttl time.Duration) *InMemoryRepo {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &InMemoryRepo{
		logins:  make(map[string]*PendingLogin),
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

// WithNowFunc replaces the clock, for tests.
func (r *InMemoryRepo) WithNowFunc(now func() time.Time) *InMemoryRepo {
	r.nowFunc = now
	return r
}

// Upsert stores or replaces a pending login
func (r *InMemoryRepo) Upsert(nonce string, login *PendingLogin) error {
	if nonce == "" {
		return errors.New("nonce cannot be empty")
	}
	if login == nil {
		return errors.New("login cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.purgeExpired()

	// Create a copy to prevent external modifications
	r.logins[nonce] = &PendingLogin{
		Nonce:       login.Nonce,
		RedirectURI: login.RedirectURI,
		CreatedAt:   login.CreatedAt,
	}
	return nil
}

// Get retrieves a pending login by nonce. Expired entries are reported as ErrExpired.
func (r *InMemoryRepo) Get(nonce string) (*PendingLogin, error) {
	if nonce == "" {
		return nil, errors.New("nonce cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	login, exists := r.logins[nonce]
	if !exists {
		return nil, ErrNotFound
	}
	if r.expired(login) {
		return nil, ErrExpired
	}

	// Return a copy to prevent external modifications
	return &PendingLogin{
		Nonce:       login.Nonce,
		RedirectURI: login.RedirectURI,
		CreatedAt:   login.CreatedAt,
	}, nil
}

// Delete removes a pending login
func (r *InMemoryRepo) Delete(nonce string) error {
	if nonce == "" {
		return errors.New("nonce cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.logins, nonce)
	return nil
}

func (r *InMemoryRepo) expired(login *PendingLogin) bool {
	return r.nowFunc().Sub(login.CreatedAt) > r.ttl
}

// purgeExpired must be called with the write lock held.
func (r *InMemoryRepo) purgeExpired() {
	for nonce, login := range r.logins {
		if r.expired(login) {
			delete(r.logins, nonce)
		}
	}
}
