package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/postsync/internal/errors"
)

const (
	TokenPath    = "/auth/provider/token"
	IdentityPath = "/auth/provider/me"

	// DefaultTimeout applies when the caller does not provide an http.Client.
	DefaultTimeout = 30 * time.Second

	maxBodyBytes = 1 << 20
)

// Client talks to the backend broker that holds the provider client secret.
// Neither endpoint uses the session credential, so requests do not go through the interceptor.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a broker client for baseURL. A nil httpClient gets DefaultTimeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// ExchangeCode trades an authorization code for a provider access token.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (string, error) {
	body, err := json.Marshal(TokenRequest{Code: code, RedirectURI: redirectURI})
	if err != nil {
		return "", apperrors.Wrapf(apperrors.ErrInternal, "failed to encode token request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+TokenPath, bytes.NewReader(body))
	if err != nil {
		return "", apperrors.Wrapf(apperrors.ErrInternal, "failed to build token request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var tokenResp TokenResponse
	if err := c.do(req, &tokenResp); err != nil {
		return "", apperrors.Wrapf(err, "code exchange")
	}
	if tokenResp.AccessToken == "" {
		return "", apperrors.Wrapf(apperrors.ErrAuthRejected, "code exchange returned no access_token")
	}
	return tokenResp.AccessToken, nil
}

// FetchIdentity resolves the provider access token into an identity and a session token.
func (c *Client) FetchIdentity(ctx context.Context, providerToken string) (*IdentityResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+IdentityPath, nil)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInternal, "failed to build identity request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+providerToken)
	req.Header.Set("Accept", "application/json")

	var identity IdentityResponse
	if err := c.do(req, &identity); err != nil {
		return nil, apperrors.Wrapf(err, "identity fetch")
	}
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	return &identity, nil
}

// do sends req and decodes a 2xx JSON body into out.
// Transport failures map to ErrNetworkFailure, everything else the broker says no to maps to
// ErrAuthRejected.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrNetworkFailure, "%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrNetworkFailure, "failed to read response: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperrors.FromResponse(resp.StatusCode, body, apperrors.ErrAuthRejected)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return apperrors.Wrapf(apperrors.ErrAuthRejected, "malformed response: %v", err)
	}
	return nil
}
