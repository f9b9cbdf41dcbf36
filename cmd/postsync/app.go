package main

import (
	"net/http"

	"github.com/jrsteele09/postsync/api"
	"github.com/jrsteele09/postsync/authsession"
	"github.com/jrsteele09/postsync/broker"
	"github.com/jrsteele09/postsync/internal/config"
	"github.com/jrsteele09/postsync/interceptor"
	"github.com/jrsteele09/postsync/oauthflow"
	"github.com/jrsteele09/postsync/sessions"
)

// app wires the session lifecycle for one CLI invocation.
type app struct {
	cfg     config.ClientConfig
	session *authsession.Context
	api     *api.Client
}

func newApp(cfg config.ClientConfig, nav oauthflow.Navigator) (*app, error) {
	store, err := sessions.NewFileStore(sessions.FileStoreConfig{Dir: cfg.SessionDir, Key: cfg.StoreKey})
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	ctrl := oauthflow.NewController(oauthflow.Config{
		ClientID:    cfg.ClientID,
		AuthURL:     cfg.ProviderAuthURL,
		RedirectURI: cfg.RedirectURI,
		Scopes:      cfg.Scopes,
		PendingTTL:  cfg.PendingLoginTTL,
	}, store, broker.NewClient(cfg.BackendURL, httpClient), nav)

	session := authsession.New(store, ctrl)
	return &app{
		cfg:     cfg,
		session: session,
		api:     api.NewClient(cfg.BackendURL, interceptor.New(session, nil), session),
	}, nil
}
