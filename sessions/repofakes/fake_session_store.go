package fakesessionstore

import (
	"errors"
	"sync"

	"github.com/jrsteele09/postsync/sessions"
)

var _ sessions.Store = (*FakeSessionStore)(nil)

// FakeSessionStore is an in-memory sessions.Store that counts calls and can be told to fail.
type FakeSessionStore struct {
	lock    sync.RWMutex
	session *sessions.Session

	SaveErr    error
	SaveCalls  int
	ClearCalls int
}

func NewFakeSessionStore() *FakeSessionStore {
	return &FakeSessionStore{}
}

// WithSession returns a store that already holds s, as if restored from a previous run.
func WithSession(s sessions.Session) *FakeSessionStore {
	return &FakeSessionStore{session: &s}
}

func (fs *FakeSessionStore) Save(s sessions.Session) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	fs.SaveCalls++
	if fs.SaveErr != nil {
		return fs.SaveErr
	}
	if err := s.Validate(); err != nil {
		return errors.Join(sessions.ErrInvalidSession, err)
	}
	fs.session = &s
	return nil
}

func (fs *FakeSessionStore) Load() (sessions.Session, bool, error) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()

	if fs.session == nil {
		return sessions.Session{}, false, nil
	}
	return *fs.session, true, nil
}

func (fs *FakeSessionStore) Clear() error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	fs.ClearCalls++
	fs.session = nil
	return nil
}
