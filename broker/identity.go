package broker

import (
	"strings"

	apperrors "github.com/jrsteele09/postsync/internal/errors"
	"github.com/jrsteele09/postsync/sessions"
)

// IdentityResponse is the body of GET /auth/provider/me.
type IdentityResponse struct {
	SessionToken        string `json:"session_token"`
	ProviderAccessToken string `json:"provider_access_token,omitempty"`
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Email               string `json:"email,omitempty"`
	Picture             string `json:"picture,omitempty"`
	Locale              string `json:"locale,omitempty"`
}

// Validate rejects identity payloads that cannot become a session.
func (r IdentityResponse) Validate() error {
	if strings.TrimSpace(r.SessionToken) == "" {
		return apperrors.Wrapf(apperrors.ErrAuthRejected, "identity response has no session_token")
	}
	if strings.TrimSpace(r.ID) == "" {
		return apperrors.Wrapf(apperrors.ErrAuthRejected, "identity response has no id")
	}
	return nil
}

// Session turns a validated response into a session. exchangedToken is used as the provider
// credential when the broker does not echo one back.
func (r IdentityResponse) Session(exchangedToken string) sessions.Session {
	providerCred := r.ProviderAccessToken
	if providerCred == "" {
		providerCred = exchangedToken
	}
	return sessions.Session{
		Identity: sessions.Identity{
			UserID:      r.ID,
			DisplayName: r.Name,
			Email:       r.Email,
			PictureURL:  r.Picture,
			Locale:      r.Locale,
		},
		SessionCredential:  r.SessionToken,
		ProviderCredential: providerCred,
	}
}

// TokenRequest is the body of POST /auth/provider/token.
type TokenRequest struct {
	Code        string `json:"code"`
	RedirectURI string `json:"redirect_uri,omitempty"`
}

// TokenResponse is the broker's answer to a code exchange.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
	ExpiresIn   int64  `json:"expires_in,omitempty"`
}
