package sessions

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	sessionCredentialFile  = "session_credential"
	providerCredentialFile = "provider_credential"
	identityFile           = "identity.json"
)

// FileStoreConfig configures a FileStore.
type FileStoreConfig struct {
	// Dir holds the three session entries. It is created with 0700 permissions.
	Dir string

	// Key, when set, seals both credential entries at rest.
	Key string
}

// FileStore keeps the session as three independent entries in a directory:
// the session credential, the provider credential and the identity record.
//
// SECURITY: files are written 0600 and credential values are never logged.
//
// Other processes may write the same directory. The identity record carries a digest binding
// it to both credentials, so a Load racing a Save or Clear in another process sees the old
// session, the new one, or nothing; never a mix. Concurrent writers are last-write-wins.
type FileStore struct {
	mu     sync.Mutex
	dir    string
	sealer *sealer
}

var _ Store = (*FileStore)(nil)

type identityRecord struct {
	Identity
	Binding string    `json:"binding"`
	Sealed  bool      `json:"sealed,omitempty"`
	SavedAt time.Time `json:"saved_at"`
}

// NewFileStore creates the storage directory if needed.
func NewFileStore(cfg FileStoreConfig) (*FileStore, error) {
	if cfg.Dir == "" {
		return nil, errors.New("session directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	s := &FileStore{dir: cfg.Dir}
	if cfg.Key != "" {
		sl, err := newSealer(cfg.Key)
		if err != nil {
			return nil, err
		}
		s.sealer = sl
	}
	return s, nil
}

// Dir returns the directory holding the session entries.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) Save(session Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := json.Marshal(identityRecord{
		Identity: session.Identity,
		Binding:  binding(session.SessionCredential, session.ProviderCredential),
		Sealed:   s.sealer != nil,
		SavedAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}

	providerCred, err := s.seal(session.ProviderCredential)
	if err != nil {
		return err
	}
	sessionCred, err := s.seal(session.SessionCredential)
	if err != nil {
		return err
	}

	// The session credential goes last: a session "exists" once it is in place.
	if err := s.writeEntry(providerCredentialFile, providerCred); err != nil {
		return err
	}
	if err := s.writeEntry(identityFile, record); err != nil {
		return err
	}
	if err := s.writeEntry(sessionCredentialFile, sessionCred); err != nil {
		return err
	}

	log.Info().Str("user_id", session.UserID).Msg("session stored")
	return nil
}

func (s *FileStore) Load() (Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rawSessionCred, ok, err := s.readEntry(sessionCredentialFile)
	if err != nil || !ok {
		return Session{}, false, err
	}
	rawRecord, ok, err := s.readEntry(identityFile)
	if err != nil || !ok {
		return Session{}, false, err
	}
	rawProviderCred, _, err := s.readEntry(providerCredentialFile)
	if err != nil {
		return Session{}, false, err
	}

	var record identityRecord
	if err := json.Unmarshal(rawRecord, &record); err != nil {
		log.Warn().Err(err).Str("dir", s.dir).Msg("unreadable identity record, treating session as absent")
		return Session{}, false, nil
	}

	sessionCred, err := s.open(rawSessionCred, record.Sealed)
	if err != nil {
		return Session{}, false, err
	}
	providerCred, err := s.open(rawProviderCred, record.Sealed)
	if err != nil {
		return Session{}, false, err
	}
	if record.Binding != binding(sessionCred, providerCred) {
		log.Debug().Str("dir", s.dir).Msg("session entries are not bound to each other, treating session as absent")
		return Session{}, false, nil
	}

	session := Session{
		Identity:           record.Identity,
		SessionCredential:  sessionCred,
		ProviderCredential: providerCred,
	}
	if session.Validate() != nil {
		return Session{}, false, nil
	}
	return session, true, nil
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	// Session credential first so readers observe "absent" immediately.
	for _, name := range []string{sessionCredentialFile, identityFile, providerCredentialFile} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to clear session: %w", errors.Join(errs...))
	}

	log.Info().Msg("session cleared")
	return nil
}

func (s *FileStore) seal(value string) ([]byte, error) {
	if s.sealer == nil {
		return []byte(value), nil
	}
	return s.sealer.seal([]byte(value))
}

// open reverses seal. Whether the entries were sealed comes from the identity record
// written alongside them, never from the entry contents.
func (s *FileStore) open(raw []byte, sealed bool) (string, error) {
	if !sealed {
		return string(raw), nil
	}
	if s.sealer == nil {
		return "", errors.New("session credentials are sealed but no store key is configured")
	}
	plain, err := s.sealer.open(raw)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// writeEntry replaces a file atomically with a temp file and a rename.
func (s *FileStore) writeEntry(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) readEntry(name string) ([]byte, bool, error) {
	// #nosec G304 -- name is one of the fixed entry names
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, true, nil
}

func binding(sessionCred, providerCred string) string {
	h := sha256.New()
	h.Write([]byte(sessionCred))
	h.Write([]byte{0})
	h.Write([]byte(providerCred))
	return hex.EncodeToString(h.Sum(nil)[:16])
}
