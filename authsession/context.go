package authsession

import (
	"context"
	"errors"
	"net/url"
	"sync"

	"github.com/jrsteele09/postsync/oauthflow"
	"github.com/jrsteele09/postsync/sessions"
	"github.com/rs/zerolog/log"
)

// Context projects the session store and the login controller into one read-only view.
// The view is rebuilt after every controller transition and every store change seen by Watch,
// so readers only ever see complete snapshots.
type Context struct {
	store sessions.Store
	ctrl  *oauthflow.Controller

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []func(Snapshot)
}

// New wires a Context to the controller. Call Init before reading it.
func New(store sessions.Store, ctrl *oauthflow.Controller) *Context {
	c := &Context{store: store, ctrl: ctrl}
	ctrl.Subscribe(func(oauthflow.State) { c.refresh() })
	return c
}

// Init restores a stored session, then handles callback parameters if nothing was restored.
// A login failure is retained in the snapshot and also returned.
func (c *Context) Init(ctx context.Context, callback url.Values) error {
	err := c.ctrl.OnStartup(ctx, callback)
	c.refresh()
	return err
}

// HandleCallback passes a provider redirect received after SignIn to the controller.
func (c *Context) HandleCallback(ctx context.Context, query url.Values) error {
	err := c.ctrl.OnCallbackReceived(ctx, query)
	c.refresh()
	return err
}

// Teardown abandons a login in flight.
func (c *Context) Teardown() {
	c.ctrl.Teardown()
}

// Session returns the stored session, if any.
func (c *Context) Session() (sessions.Session, bool) {
	snap := c.Snapshot()
	return snap.Session, snap.HasSession
}

// SessionCredential returns the credential to attach to protected calls.
func (c *Context) SessionCredential() (string, bool) {
	snap := c.Snapshot()
	if !snap.HasSession {
		return "", false
	}
	return snap.Session.SessionCredential, true
}

// IsAuthenticated reports whether a session is held and no code exchange is in progress.
func (c *Context) IsAuthenticated() bool {
	return c.Snapshot().IsAuthenticated()
}

// Snapshot returns the latest flow state and session as one consistent value.
func (c *Context) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// OnChange registers fn to run with every new snapshot.
func (c *Context) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// SignIn starts a login and returns the provider authorization URL.
func (c *Context) SignIn(ctx context.Context) (string, error) {
	return c.ctrl.Start(ctx)
}

// SignOut clears the stored session and returns the flow to Idle.
func (c *Context) SignOut() error {
	return c.ctrl.OnSignOut()
}

// OnUnauthorizedResponse drops the session after a 401 from a protected endpoint.
func (c *Context) OnUnauthorizedResponse() error {
	return c.ctrl.OnUnauthorizedResponse()
}

// Watch follows store writes made by other processes until ctx is cancelled.
// The store must expose its directory, as sessions.FileStore does.
func (c *Context) Watch(ctx context.Context) error {
	dirStore, ok := c.store.(interface{ Dir() string })
	if !ok {
		return errors.New("session store does not support watching")
	}

	w := sessions.NewWatcher(dirStore.Dir(), func() {
		_, present, err := c.store.Load()
		if err != nil {
			log.Warn().Err(err).Msg("failed to reload session after external change")
			return
		}
		log.Debug().Bool("present", present).Msg("session changed by another process")
		c.ctrl.Reconcile(present)
		c.refresh()
	})
	return w.Run(ctx)
}

func (c *Context) refresh() {
	c.mu.Lock()
	next := Snapshot{
		State:     c.ctrl.State(),
		LastError: c.ctrl.LastError(),
	}
	s, ok, err := c.store.Load()
	if err != nil {
		log.Warn().Err(err).Msg("failed to read session store")
	}
	if ok {
		next.Session = s
		next.HasSession = true
	}

	changed := !next.equal(c.snapshot)
	c.snapshot = next
	listeners := make([]func(Snapshot), len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range listeners {
		fn(next)
	}
}
