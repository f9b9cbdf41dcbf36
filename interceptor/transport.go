package interceptor

import (
	"net/http"

	apperrors "github.com/jrsteele09/postsync/internal/errors"
	"github.com/rs/zerolog/log"
)

// CredentialSource supplies the session credential and is told when the backend rejects it.
// authsession.Context satisfies it.
type CredentialSource interface {
	SessionCredential() (string, bool)
	OnUnauthorizedResponse() error
}

// Transport attaches the session credential to every request and logs the user out on 401.
type Transport struct {
	Base   http.RoundTripper
	Source CredentialSource
}

// New wraps base, or http.DefaultTransport when base is nil.
func New(source CredentialSource, base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Base: base, Source: source}
}

// Client returns an http.Client that sends every request through the transport.
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}

// RoundTrip fails with ErrMissingCredential without sending anything when no session is held.
// A 401 answer clears the session before the response is handed back, unless the session was
// replaced while the request was in flight.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	credential, ok := t.Source.SessionCredential()
	if !ok || credential == "" {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, apperrors.Wrapf(apperrors.ErrMissingCredential, "%s %s", req.Method, req.URL.Path)
	}

	outbound := req.Clone(req.Context())
	outbound.Header.Set("Authorization", "Bearer "+credential)

	resp, err := t.Base.RoundTrip(outbound)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrNetworkFailure, "%s %s: %v", req.Method, req.URL.Path, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		current, _ := t.Source.SessionCredential()
		if current != credential {
			log.Debug().Str("path", req.URL.Path).Msg("401 for a replaced session, keeping the current one")
			return resp, nil
		}
		log.Warn().Str("path", req.URL.Path).Msg("backend rejected session credential")
		if err := t.Source.OnUnauthorizedResponse(); err != nil {
			log.Err(err).Msg("failed to clear rejected session")
		}
	}
	return resp, nil
}
