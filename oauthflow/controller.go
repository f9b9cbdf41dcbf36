package oauthflow

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/jrsteele09/postsync/broker"
	apperrors "github.com/jrsteele09/postsync/internal/errors"
	"github.com/jrsteele09/postsync/oauthflow/pendinglogin"
	"github.com/jrsteele09/postsync/sessions"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Broker exchanges the authorization code and resolves the identity on the backend.
type Broker interface {
	ExchangeCode(ctx context.Context, code, redirectURI string) (string, error)
	FetchIdentity(ctx context.Context, providerToken string) (*broker.IdentityResponse, error)
}

var _ Broker = (*broker.Client)(nil)

// Config describes the provider authorization request.
type Config struct {
	ClientID    string
	AuthURL     string
	RedirectURI string
	Scopes      []string

	// PendingLogins holds the nonce of the login in flight. Defaults to an in-memory repo.
	PendingLogins pendinglogin.Repo
	// PendingTTL is used for the default repo.
	PendingTTL time.Duration

	NowFunc func() time.Time
}

// Controller drives the authorization-code login:
//
//	Idle -> AwaitingProviderRedirect -> ExchangingCode -> Authenticated
//
// with Failed reachable from the two middle states. All state is guarded by one mutex and
// network calls run outside it. Sign-out and teardown bump an epoch so that an exchange still in
// flight drops its result instead of writing a session nobody asked for.
type Controller struct {
	oauthCfg *oauth2.Config
	store    sessions.Store
	broker   Broker
	nav      Navigator
	pending  pendinglogin.Repo
	nowFunc  func() time.Time

	mu           sync.Mutex
	state        State
	lastErr      error
	activeNonce  string
	consumedCode string
	restored     bool
	epoch        uint64
	listeners    []func(State)
}

func NewController(cfg Config, store sessions.Store, b Broker, nav Navigator) *Controller {
	if nav == nil {
		nav = NopNavigator{}
	}
	pending := cfg.PendingLogins
	if pending == nil {
		pending = pendinglogin.NewInMemoryRepo(cfg.PendingTTL)
	}
	nowFunc := cfg.NowFunc
	if nowFunc == nil {
		nowFunc = time.Now
	}

	return &Controller{
		oauthCfg: &oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURI,
			Scopes:      cfg.Scopes,
			Endpoint:    oauth2.Endpoint{AuthURL: cfg.AuthURL},
		},
		store:   store,
		broker:  b,
		nav:     nav,
		pending: pending,
		nowFunc: nowFunc,
		state:   Idle,
	}
}

// State returns the current step.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the diagnostic of the last failed login, nil otherwise.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Restored reports whether the current session came from the store at startup.
func (c *Controller) Restored() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.restored
}

// Subscribe registers fn to run after every state change. fn runs outside the controller lock.
func (c *Controller) Subscribe(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// OnStartup restores a stored session. A restored session wins over any callback parameters;
// otherwise a callback present at startup is handled as if it had just arrived.
func (c *Controller) OnStartup(ctx context.Context, callback url.Values) error {
	c.mu.Lock()
	s, ok, err := c.store.Load()
	if err != nil {
		log.Warn().Err(err).Msg("failed to load stored session, starting logged out")
	}
	if ok {
		c.restored = true
		c.state = Authenticated
		c.lastErr = nil
	}
	c.mu.Unlock()

	if ok {
		log.Info().Str("user_id", s.UserID).Msg("session restored")
		c.notify(Authenticated)
		if hasCallbackParams(callback) {
			log.Debug().Msg("ignoring callback parameters, session already restored")
		}
		return nil
	}

	if !hasCallbackParams(callback) {
		return nil
	}
	return c.OnCallbackReceived(ctx, callback)
}

// OnCallbackReceived handles the provider redirect query: code and state, or error and
// error_description.
func (c *Controller) OnCallbackReceived(ctx context.Context, query url.Values) error {
	if providerErr := query.Get("error"); providerErr != "" {
		return c.rejectProviderError(query.Get("state"), providerErr, query.Get("error_description"))
	}
	return c.HandleCallback(ctx, query.Get("code"), query.Get("state"))
}

// Start begins a login. Any previous pending login is replaced and an exchange still running for
// it is discarded when it completes.
func (c *Controller) Start(ctx context.Context) (string, error) {
	nonce, err := newNonce()
	if err != nil {
		return "", apperrors.Wrapf(apperrors.ErrInternal, "start login: %v", err)
	}

	c.mu.Lock()
	c.epoch++
	if c.activeNonce != "" {
		_ = c.pending.Delete(c.activeNonce)
	}
	err = c.pending.Upsert(nonce, &pendinglogin.PendingLogin{
		Nonce:       nonce,
		RedirectURI: c.oauthCfg.RedirectURL,
		CreatedAt:   c.nowFunc(),
	})
	if err != nil {
		c.mu.Unlock()
		return "", apperrors.Wrapf(apperrors.ErrInternal, "start login: %v", err)
	}
	c.activeNonce = nonce
	c.restored = false
	c.lastErr = nil
	c.state = AwaitingProviderRedirect
	c.mu.Unlock()

	c.notify(AwaitingProviderRedirect)

	authURL := c.oauthCfg.AuthCodeURL(nonce)
	log.Info().Str("auth_url", c.oauthCfg.Endpoint.AuthURL).Msg("login started, redirecting to provider")

	if err := c.nav.Redirect(ctx, authURL); err != nil {
		return authURL, c.failNow(apperrors.Wrapf(apperrors.ErrInternal, "redirect to provider: %v", err))
	}
	return authURL, nil
}

// HandleCallback consumes the provider callback. The returned state must match the nonce issued
// by Start before any network call is made. The first callback carrying a given code performs
// exactly one exchange, one identity fetch and one store write; repeats are no-ops.
func (c *Controller) HandleCallback(ctx context.Context, code, returnedState string) error {
	c.mu.Lock()
	if c.restored || c.state == Authenticated {
		c.mu.Unlock()
		return nil
	}
	if code != "" && code == c.consumedCode {
		c.mu.Unlock()
		return nil
	}
	if c.state == ExchangingCode {
		c.mu.Unlock()
		log.Warn().Msg("callback received while another login is being exchanged, ignoring")
		return apperrors.Wrapf(apperrors.ErrAuthRejected, "a login is already being completed")
	}

	login, err := c.takePendingLogin(returnedState)
	if err != nil {
		c.mu.Unlock()
		return c.failNow(err)
	}
	if code == "" {
		c.mu.Unlock()
		return c.failNow(apperrors.Wrapf(apperrors.ErrAuthRejected, "callback has no authorization code"))
	}

	c.consumedCode = code
	c.state = ExchangingCode
	epoch := c.epoch
	c.mu.Unlock()

	c.notify(ExchangingCode)

	providerToken, err := c.broker.ExchangeCode(ctx, code, login.RedirectURI)
	if err != nil {
		return c.fail(epoch, err)
	}
	if c.epochChanged(epoch) {
		log.Debug().Msg("login superseded during code exchange, skipping identity fetch")
		return nil
	}
	identity, err := c.broker.FetchIdentity(ctx, providerToken)
	if err != nil {
		return c.fail(epoch, err)
	}
	session := identity.Session(providerToken)

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		log.Debug().Msg("login finished after sign-out, teardown or a new start, discarding result")
		return nil
	}
	if err := c.store.Save(session); err != nil {
		c.mu.Unlock()
		return c.fail(epoch, apperrors.Wrapf(apperrors.ErrInternal, "store session: %v", err))
	}
	c.state = Authenticated
	c.lastErr = nil
	c.mu.Unlock()

	log.Info().Str("user_id", session.UserID).Msg("login complete")
	c.notify(Authenticated)
	c.nav.Landing()
	return nil
}

// OnSignOut clears the session and returns to Idle.
func (c *Controller) OnSignOut() error {
	err := c.reset(nil)
	log.Info().Msg("signed out")
	c.nav.Entry()
	return err
}

// OnUnauthorizedResponse is called when a protected endpoint answered 401.
// The session is dropped unconditionally and the user is sent to the entry surface.
func (c *Controller) OnUnauthorizedResponse() error {
	err := c.reset(apperrors.ErrSessionExpired)
	log.Warn().Msg("session rejected by backend, logged out")
	c.nav.Entry()
	return err
}

// Reconcile aligns the state with the store after another process changed it.
func (c *Controller) Reconcile(sessionPresent bool) {
	c.mu.Lock()
	prev := c.state
	switch {
	case sessionPresent && (c.state == Idle || c.state == Failed):
		c.state = Authenticated
	case !sessionPresent && c.state == Authenticated:
		c.state = Idle
		c.restored = false
	}
	next := c.state
	c.mu.Unlock()

	if next != prev {
		log.Debug().Stringer("from", prev).Stringer("to", next).Msg("login state reconciled with store")
		c.notify(next)
	}
}

// Teardown abandons any login in flight. An exchange that completes afterwards is discarded.
// The state falls back to Authenticated when the store still holds a session, Idle otherwise.
func (c *Controller) Teardown() {
	c.mu.Lock()
	c.epoch++
	if c.activeNonce != "" {
		_ = c.pending.Delete(c.activeNonce)
		c.activeNonce = ""
	}
	prev := c.state
	if prev == AwaitingProviderRedirect || prev == ExchangingCode {
		_, present, err := c.store.Load()
		if err != nil {
			log.Warn().Err(err).Msg("failed to load stored session during teardown")
		}
		c.state = Idle
		if present {
			c.state = Authenticated
		}
	}
	next := c.state
	c.mu.Unlock()

	if next != prev {
		c.notify(next)
	}
}

// takePendingLogin checks and discards the pending login. Must be called with c.mu held.
func (c *Controller) takePendingLogin(returnedState string) (*pendinglogin.PendingLogin, error) {
	active := c.activeNonce
	if active == "" {
		return nil, apperrors.Wrapf(apperrors.ErrAuthRejected, "no login in progress")
	}
	c.activeNonce = ""
	login, err := c.pending.Get(active)
	_ = c.pending.Delete(active)

	if !nonceMatches(active, returnedState) {
		return nil, apperrors.Wrapf(apperrors.ErrAuthRejected, "callback state does not match the login request")
	}
	if errors.Is(err, pendinglogin.ErrExpired) {
		return nil, apperrors.Wrapf(apperrors.ErrAuthRejected, "login attempt expired")
	}
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrAuthRejected, "no login in progress: %v", err)
	}
	return login, nil
}

func (c *Controller) rejectProviderError(returnedState, code, description string) error {
	c.mu.Lock()
	if c.restored || c.state == Authenticated {
		c.mu.Unlock()
		return nil
	}
	if c.state == ExchangingCode {
		c.mu.Unlock()
		return apperrors.Wrapf(apperrors.ErrAuthRejected, "provider returned %s while a login is being completed", code)
	}
	if c.activeNonce != "" {
		_ = c.pending.Delete(c.activeNonce)
		c.activeNonce = ""
	}
	c.mu.Unlock()

	msg := code
	if description != "" {
		msg = code + ": " + description
	}
	return c.failNow(apperrors.Wrapf(apperrors.ErrAuthRejected, "provider returned %s", msg))
}

func (c *Controller) epochChanged(epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch != epoch
}

// failNow fails the current attempt regardless of epoch.
func (c *Controller) failNow(err error) error {
	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()
	return c.fail(epoch, err)
}

func (c *Controller) fail(epoch uint64, err error) error {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		log.Debug().Err(err).Msg("login failed after sign-out or teardown, ignoring")
		return nil
	}
	c.state = Failed
	c.lastErr = err
	c.mu.Unlock()

	log.Err(err).Msg("login failed")
	c.notify(Failed)
	return err
}

func (c *Controller) reset(reason error) error {
	c.mu.Lock()
	c.epoch++
	if c.activeNonce != "" {
		_ = c.pending.Delete(c.activeNonce)
		c.activeNonce = ""
	}
	err := c.store.Clear()
	c.state = Idle
	c.lastErr = reason
	c.restored = false
	c.mu.Unlock()

	c.notify(Idle)
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrInternal, "clear session: %v", err)
	}
	return nil
}

func (c *Controller) notify(state State) {
	c.mu.Lock()
	listeners := make([]func(State), len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(state)
	}
}

func hasCallbackParams(q url.Values) bool {
	return q.Get("code") != "" || q.Get("error") != ""
}
