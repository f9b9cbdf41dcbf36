package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/postsync/agent"
	"github.com/jrsteele09/postsync/internal/config"
	"github.com/jrsteele09/postsync/token"
	"golang.org/x/oauth2"
)

// AgentService is the part of the agent registry the handlers use.
type AgentService interface {
	agent.Starter
	SaveCredentials(userID string, creds agent.Credentials) error
	Get(userID, jobID string) (*agent.Job, error)
	Summary(userID string) agent.Summary
}

// Dependencies are the collaborators of the broker.
type Dependencies struct {
	Tokens *token.Manager
	Agents AgentService

	// HTTPClient is used for every call to the identity provider. Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

type Server struct {
	env        string // Environment (e.g., "DEV", "PROD")
	mux        *http.ServeMux
	routes     []string
	config     config.Config
	tokens     *token.Manager
	agents     AgentService
	httpClient *http.Client
	oauthCfg   *oauth2.Config

	providerLock sync.Mutex
	provider     *oidc.Provider
}

func New(cfg config.Config, deps Dependencies) (*Server, error) {
	if deps.Tokens == nil {
		return nil, fmt.Errorf("[Server New] token manager is required")
	}
	if deps.Agents == nil {
		return nil, fmt.Errorf("[Server New] agent service is required")
	}
	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	s := &Server{
		env:        cfg.GetEnv(),
		mux:        http.NewServeMux(),
		config:     cfg,
		tokens:     deps.Tokens,
		agents:     deps.Agents,
		httpClient: httpClient,
		oauthCfg: &oauth2.Config{
			ClientID:     cfg.GetProviderClientID(),
			ClientSecret: cfg.GetProviderClientSecret(),
			RedirectURL:  cfg.GetRedirectURI(),
			Scopes:       cfg.GetProviderScopes(),
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.GetProviderAuthURL(),
				TokenURL:  cfg.GetProviderTokenURL(),
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

// providerContext makes oauth2 and go-oidc use the configured HTTP client.
func (s *Server) providerContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	return oidc.ClientContext(ctx, s.httpClient)
}

// identityProvider returns the OIDC provider. Configured endpoints take precedence; discovery on
// the issuer is only used when no userinfo endpoint is configured.
func (s *Server) identityProvider(ctx context.Context) (*oidc.Provider, error) {
	s.providerLock.Lock()
	defer s.providerLock.Unlock()

	if s.provider != nil {
		return s.provider, nil
	}

	ctx = s.providerContext(ctx)
	if s.config.GetProviderUserInfoURL() != "" {
		pc := &oidc.ProviderConfig{
			IssuerURL:   s.config.GetProviderIssuer(),
			AuthURL:     s.config.GetProviderAuthURL(),
			TokenURL:    s.config.GetProviderTokenURL(),
			UserInfoURL: s.config.GetProviderUserInfoURL(),
		}
		s.provider = pc.NewProvider(ctx)
		return s.provider, nil
	}

	provider, err := oidc.NewProvider(ctx, s.config.GetProviderIssuer())
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	s.provider = provider
	return provider, nil
}
