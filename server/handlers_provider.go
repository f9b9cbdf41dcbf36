package server

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/postsync/agent"
	"github.com/jrsteele09/postsync/broker"
	"github.com/jrsteele09/postsync/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// providerClaims are the userinfo fields the broker reads besides sub and email
type providerClaims struct {
	Name    string `json:"name"`
	Picture string `json:"picture"`
	Locale  any    `json:"locale"` // a string or {"country","language"} depending on the provider
}

// ProviderTokenHandler exchanges an authorization code with the identity provider. The client
// secret never leaves the broker.
func (s *Server) ProviderTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req broker.TokenRequest
		if err := decodeJSONBody(r, &req); err != nil {
			writeJSONDetail(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Code) == "" {
			writeJSONDetail(w, "Missing authorization code", http.StatusBadRequest)
			return
		}
		if req.RedirectURI != "" && req.RedirectURI != s.oauthCfg.RedirectURL {
			writeJSONDetail(w, "redirect_uri does not match the registered one", http.StatusBadRequest)
			return
		}

		tok, err := s.oauthCfg.Exchange(s.providerContext(r.Context()), req.Code)
		if err != nil {
			status, detail := exchangeFailure(err)
			log.Err(err).Int("status", status).Msg("provider code exchange failed")
			writeJSONDetail(w, detail, status)
			return
		}

		resp := broker.TokenResponse{
			AccessToken: tok.AccessToken,
			TokenType:   tok.Type(),
			ExpiresIn:   tok.ExpiresIn,
		}
		writeJSON(w, resp, http.StatusOK)
	}
}

// ProviderIdentityHandler resolves a provider access token to the user's identity, remembers the
// provider token for the agent and issues the session token.
func (s *Server) ProviderIdentityHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerToken, ok := bearerToken(r)
		if !ok {
			writeJSONDetail(w, "Missing or invalid authorization header", http.StatusUnauthorized)
			return
		}

		ctx := s.providerContext(r.Context())
		provider, err := s.identityProvider(ctx)
		if err != nil {
			log.Err(err).Msg("identity provider unavailable")
			writeJSONDetail(w, "Identity provider unavailable", http.StatusBadGateway)
			return
		}

		info, err := provider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: providerToken}))
		if err != nil {
			if strings.HasPrefix(err.Error(), "401") {
				writeJSONDetail(w, "Access token invalid or revoked", http.StatusUnauthorized)
				return
			}
			log.Err(err).Msg("failed to fetch provider userinfo")
			writeJSONDetail(w, "Failed to fetch user info", http.StatusBadGateway)
			return
		}
		if info.Subject == "" {
			writeJSONDetail(w, "User info has no subject", http.StatusBadGateway)
			return
		}

		var extra providerClaims
		if err := info.Claims(&extra); err != nil {
			log.Warn().Err(err).Msg("failed to decode optional userinfo claims")
		}

		if err := s.agents.SaveCredentials(info.Subject, agent.Credentials{
			ProviderAccessToken: providerToken,
			PersonURN:           "urn:li:person:" + info.Subject,
		}); err != nil {
			log.Err(err).Str("user_id", info.Subject).Msg("failed to save provider credentials")
			writeJSONDetail(w, "Failed to save credentials", http.StatusInternalServerError)
			return
		}

		sessionToken, _, err := s.tokens.Issue(token.Subject{UserID: info.Subject, Name: extra.Name, Email: info.Email})
		if err != nil {
			log.Err(err).Msg("failed to issue session token")
			writeJSONDetail(w, "Failed to issue session token", http.StatusInternalServerError)
			return
		}

		log.Info().Str("user_id", info.Subject).Msg("user logged in")
		writeJSON(w, broker.IdentityResponse{
			SessionToken:        sessionToken,
			ProviderAccessToken: providerToken,
			ID:                  info.Subject,
			Name:                extra.Name,
			Email:               info.Email,
			Picture:             extra.Picture,
			Locale:              localeString(extra.Locale),
		}, http.StatusOK)
	}
}

// exchangeFailure maps an oauth2 exchange error to the status and detail returned to the client
func exchangeFailure(err error) (int, string) {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := http.StatusBadGateway
		if retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= 400 && retrieveErr.Response.StatusCode < 500 {
			status = retrieveErr.Response.StatusCode
		}
		switch {
		case retrieveErr.ErrorDescription != "":
			return status, retrieveErr.ErrorDescription
		case retrieveErr.ErrorCode != "":
			return status, retrieveErr.ErrorCode
		default:
			return status, "Token exchange failed"
		}
	}
	if strings.Contains(err.Error(), "missing access_token") {
		return http.StatusBadRequest, "No access token received"
	}
	return http.StatusBadGateway, "Failed to reach identity provider"
}

func localeString(v any) string {
	switch l := v.(type) {
	case string:
		return l
	case map[string]any:
		lang, _ := l["language"].(string)
		country, _ := l["country"].(string)
		if lang != "" && country != "" {
			return lang + "_" + country
		}
		return lang
	default:
		return ""
	}
}
