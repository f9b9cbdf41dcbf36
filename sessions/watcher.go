package sessions

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultDebounceInterval collapses the three writes of one Save into a single notification.
const DefaultDebounceInterval = 100 * time.Millisecond

// Watcher reports changes made to a FileStore directory by any process.
type Watcher struct {
	dir      string
	debounce time.Duration
	onChange func()

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher creates a watcher for dir; onChange runs after each burst of changes.
func NewWatcher(dir string, onChange func()) *Watcher {
	return &Watcher{
		dir:      dir,
		debounce: DefaultDebounceInterval,
		onChange: onChange,
	}
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if w.onChange == nil {
		return errors.New("session watcher needs an onChange callback")
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsWatcher.Close()

	if err := fsWatcher.Add(w.dir); err != nil {
		return err
	}
	log.Debug().Str("dir", w.dir).Msg("watching session directory")

	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return nil

		case event, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}
			if isSessionEntry(event.Name) {
				w.trigger()
			}

		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			log.Err(err).Str("dir", w.dir).Msg("session watcher error")
		}
	}
}

func (w *Watcher) trigger() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.onChange)
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

func isSessionEntry(path string) bool {
	switch filepath.Base(path) {
	case sessionCredentialFile, providerCredentialFile, identityFile:
		return true
	}
	return false
}
