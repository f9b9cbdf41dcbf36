package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/jrsteele09/postsync/agent"
	"github.com/jrsteele09/postsync/broker"
	"github.com/jrsteele09/postsync/internal/config"
	"github.com/jrsteele09/postsync/server"
	"github.com/jrsteele09/postsync/token"
	"github.com/stretchr/testify/require"
)

const (
	testSecret      = "0123456789abcdef0123456789abcdef"
	testRedirectURI = "http://localhost:3000/callback"
	validCode       = "code-ok"
	validProvider   = "provider-token"
)

// fakeProvider stands in for the identity provider's token and userinfo endpoints.
type fakeProvider struct {
	mu         sync.Mutex
	tokenForms []map[string]string
	server     *httptest.Server
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	p := &fakeProvider{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		p.mu.Lock()
		p.tokenForms = append(p.tokenForms, map[string]string{
			"code":          r.PostForm.Get("code"),
			"client_id":     r.PostForm.Get("client_id"),
			"client_secret": r.PostForm.Get("client_secret"),
			"redirect_uri":  r.PostForm.Get("redirect_uri"),
			"grant_type":    r.PostForm.Get("grant_type"),
		})
		p.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch r.PostForm.Get("code") {
		case validCode:
			_, _ = w.Write([]byte(`{"access_token":"` + validProvider + `","token_type":"Bearer","expires_in":5183999}`))
		case "no-token":
			_, _ = w.Write([]byte(`{"token_type":"Bearer"}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"The authorization code is invalid or expired"}`))
		}
	})
	mux.HandleFunc("GET /v2/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+validProvider {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Invalid access token"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sub":"abc123","name":"Ada Lovelace","email":"ada@example.com","picture":"https://img/ada.png","locale":{"country":"GB","language":"en"}}`))
	})
	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakeProvider) forms() []map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]map[string]string(nil), p.tokenForms...)
}

type fixture struct {
	server   *server.Server
	tokens   *token.Manager
	registry *agent.Registry
	provider *fakeProvider
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	provider := newFakeProvider(t)
	cfg, err := config.NewFromMap(map[string]string{
		"POSTSYNC_PROVIDER_CLIENT_ID":     "client-1",
		"POSTSYNC_PROVIDER_CLIENT_SECRET": "secret-1",
		"POSTSYNC_PROVIDER_ISSUER":        provider.server.URL,
		"POSTSYNC_PROVIDER_AUTH_URL":      provider.server.URL + "/oauth/authorize",
		"POSTSYNC_PROVIDER_TOKEN_URL":     provider.server.URL + "/oauth/token",
		"POSTSYNC_PROVIDER_USERINFO_URL":  provider.server.URL + "/v2/userinfo",
		"POSTSYNC_REDIRECT_URI":           testRedirectURI,
		"POSTSYNC_JWT_SECRET":             testSecret,
		"POSTSYNC_ENV":                    "TEST",
	})
	require.NoError(t, err)

	tokens := token.New(token.NewHMACSigner(cfg.GetJWTSecret()))
	registry := agent.NewRegistry()
	s, err := server.New(cfg, server.Dependencies{
		Tokens:     tokens,
		Agents:     registry,
		HTTPClient: provider.server.Client(),
	})
	require.NoError(t, err)
	return &fixture{server: s, tokens: tokens, registry: registry, provider: provider}
}

func (f *fixture) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func detailOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Detail
}

// login runs the two broker steps and returns the identity.
func (f *fixture) login(t *testing.T) broker.IdentityResponse {
	t.Helper()
	rec := f.do(t, http.MethodPost, server.RouteProviderToken, "", broker.TokenRequest{Code: validCode, RedirectURI: testRedirectURI})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tok broker.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))

	rec = f.do(t, http.MethodGet, server.RouteProviderIdentity, tok.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var identity broker.IdentityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &identity))
	return identity
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, server.RouteHealth, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestProviderToken_ExchangesCode(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, server.RouteProviderToken, "", broker.TokenRequest{Code: validCode, RedirectURI: testRedirectURI})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var resp broker.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, validProvider, resp.AccessToken)
	require.Equal(t, "Bearer", resp.TokenType)
	require.Equal(t, int64(5183999), resp.ExpiresIn)

	forms := f.provider.forms()
	require.Len(t, forms, 1)
	form := forms[0]
	require.Equal(t, "authorization_code", form["grant_type"])
	require.Equal(t, "client-1", form["client_id"])
	require.Equal(t, "secret-1", form["client_secret"])
	require.Equal(t, testRedirectURI, form["redirect_uri"])
}

func TestProviderToken_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantDetail string
	}{
		{"missing code", broker.TokenRequest{}, http.StatusBadRequest, "Missing authorization code"},
		{"foreign redirect uri", broker.TokenRequest{Code: validCode, RedirectURI: "http://evil/callback"}, http.StatusBadRequest, "redirect_uri does not match the registered one"},
		{"rejected code", broker.TokenRequest{Code: "bad"}, http.StatusBadRequest, "The authorization code is invalid or expired"},
		{"no access token", broker.TokenRequest{Code: "no-token"}, http.StatusBadRequest, "No access token received"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.do(t, http.MethodPost, server.RouteProviderToken, "", tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			require.Equal(t, tt.wantDetail, detailOf(t, rec))
		})
	}
}

func TestProviderIdentity_IssuesSessionToken(t *testing.T) {
	f := newFixture(t)

	identity := f.login(t)
	require.NoError(t, identity.Validate())
	require.Equal(t, "abc123", identity.ID)
	require.Equal(t, "Ada Lovelace", identity.Name)
	require.Equal(t, "ada@example.com", identity.Email)
	require.Equal(t, "https://img/ada.png", identity.Picture)
	require.Equal(t, "en_GB", identity.Locale)
	require.Equal(t, validProvider, identity.ProviderAccessToken)

	claims, err := f.tokens.Verify(identity.SessionToken)
	require.NoError(t, err)
	require.Equal(t, "abc123", claims.UserID)
	require.Equal(t, "ada@example.com", claims.Email)
}

func TestProviderIdentity_Errors(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, server.RouteProviderIdentity, "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, server.RouteProviderIdentity, "revoked", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Access token invalid or revoked", detailOf(t, rec))
}

func TestProtectedRoutes_RequireSessionToken(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{server.RouteAPIMe, server.RouteAgentSummary, "/agent/jobs/any"} {
		rec := f.do(t, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code, path)
		require.Equal(t, "Not authenticated", detailOf(t, rec))

		rec = f.do(t, http.MethodGet, path, "not-a-jwt", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code, path)
		require.Equal(t, "Invalid token", detailOf(t, rec))
	}
}

func TestMe(t *testing.T) {
	f := newFixture(t)
	identity := f.login(t)

	rec := f.do(t, http.MethodGet, server.RouteAPIMe, identity.SessionToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	require.Equal(t, "abc123", me["user_id"])
}

func TestLogout_RevokesSessionToken(t *testing.T) {
	f := newFixture(t)
	identity := f.login(t)

	rec := f.do(t, http.MethodPost, server.RouteAuthLogout, identity.SessionToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, server.RouteAPIMe, identity.SessionToken, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Token revoked", detailOf(t, rec))
}

func TestAgentStart(t *testing.T) {
	f := newFixture(t)
	identity := f.login(t)

	rec := f.do(t, http.MethodPost, server.RouteAgentStart, identity.SessionToken, agent.StartRequest{Niche: "golang", Email: identity.Email})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var started agent.StartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	require.Equal(t, "Agent run queued", started.Message)
	require.NotEmpty(t, started.JobID)

	rec = f.do(t, http.MethodGet, "/agent/jobs/"+started.JobID, identity.SessionToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var job agent.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	require.Equal(t, started.JobID, job.ID)
	require.Equal(t, "golang", job.Niche)
	require.Equal(t, agent.StatusQueued, job.Status)

	rec = f.do(t, http.MethodGet, server.RouteAgentSummary, identity.SessionToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"total_completed":0,"total_failed":0}`, rec.Body.String())
}

func TestAgentStart_Errors(t *testing.T) {
	f := newFixture(t)
	identity := f.login(t)

	rec := f.do(t, http.MethodPost, server.RouteAgentStart, identity.SessionToken, agent.StartRequest{Email: identity.Email})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "niche is required", detailOf(t, rec))

	rec = f.do(t, http.MethodPost, server.RouteAgentStart, identity.SessionToken, agent.StartRequest{Niche: "golang"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "email is required", detailOf(t, rec))

	// A valid session for a user the agent holds no provider credentials for.
	orphan, _, err := f.tokens.Issue(token.Subject{UserID: "nobody", Email: "n@example.com"})
	require.NoError(t, err)
	rec = f.do(t, http.MethodPost, server.RouteAgentStart, orphan, agent.StartRequest{Niche: "golang", Email: "n@example.com"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Could not find user credentials. Please log in again.", detailOf(t, rec))
}

func TestAgentJob_ScopedToOwner(t *testing.T) {
	f := newFixture(t)
	identity := f.login(t)

	rec := f.do(t, http.MethodPost, server.RouteAgentStart, identity.SessionToken, agent.StartRequest{Niche: "golang", Email: identity.Email})
	require.Equal(t, http.StatusAccepted, rec.Code)
	var started agent.StartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))

	other, _, err := f.tokens.Issue(token.Subject{UserID: "someone-else"})
	require.NoError(t, err)
	rec = f.do(t, http.MethodGet, "/agent/jobs/"+started.JobID, other, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Job not found", detailOf(t, rec))
}

func TestCors(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodOptions, server.RouteAgentStart, nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, server.RouteAgentStart, nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	require.False(t, strings.Contains(rec.Header().Get("Access-Control-Allow-Origin"), "evil"))
}
