package broker_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/postsync/broker"
	apperrors "github.com/jrsteele09/postsync/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestClient_ExchangeCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, broker.TokenPath, r.URL.Path)

		var body broker.TokenRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "c1", body.Code)
		require.Equal(t, "http://localhost:3000/callback", body.RedirectURI)

		_, _ = w.Write([]byte(`{"access_token":"p1","token_type":"Bearer"}`))
	}))
	defer srv.Close()

	token, err := broker.NewClient(srv.URL+"/", nil).ExchangeCode(context.Background(), "c1", "http://localhost:3000/callback")
	require.NoError(t, err)
	require.Equal(t, "p1", token)
}

func TestClient_ExchangeCodeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":"Invalid authorization code"}`))
	}))
	defer srv.Close()

	_, err := broker.NewClient(srv.URL, nil).ExchangeCode(context.Background(), "bad", "")
	require.ErrorIs(t, err, apperrors.ErrAuthRejected)

	var apiErr *apperrors.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.Equal(t, "Invalid authorization code", apiErr.Detail)
}

func TestClient_ExchangeCodeWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := broker.NewClient(srv.URL, nil).ExchangeCode(context.Background(), "c1", "")
	require.ErrorIs(t, err, apperrors.ErrAuthRejected)
}

func TestClient_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := broker.NewClient(url, nil).ExchangeCode(context.Background(), "c1", "")
	require.ErrorIs(t, err, apperrors.ErrNetworkFailure)

	_, err = broker.NewClient(url, nil).FetchIdentity(context.Background(), "p1")
	require.ErrorIs(t, err, apperrors.ErrNetworkFailure)
}

func TestClient_CancelledContextIsNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"p1"}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := broker.NewClient(srv.URL, nil).ExchangeCode(ctx, "c1", "")
	require.ErrorIs(t, err, apperrors.ErrNetworkFailure)
}

func TestClient_FetchIdentity(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		want    *broker.IdentityResponse
	}{
		{
			name:   "complete",
			status: http.StatusOK,
			body:   `{"session_token":"s1","provider_access_token":"p1","id":"u1","name":"Ada","email":"a@b.com"}`,
			want:   &broker.IdentityResponse{SessionToken: "s1", ProviderAccessToken: "p1", ID: "u1", Name: "Ada", Email: "a@b.com"},
		},
		{
			name:   "name is optional",
			status: http.StatusOK,
			body:   `{"session_token":"s1","id":"u1"}`,
			want:   &broker.IdentityResponse{SessionToken: "s1", ID: "u1"},
		},
		{
			name:    "missing session token",
			status:  http.StatusOK,
			body:    `{"id":"u1","name":"Ada"}`,
			wantErr: apperrors.ErrAuthRejected,
		},
		{
			name:    "missing id",
			status:  http.StatusOK,
			body:    `{"session_token":"s1"}`,
			wantErr: apperrors.ErrAuthRejected,
		},
		{
			name:    "wrong types",
			status:  http.StatusOK,
			body:    `{"session_token":"s1","id":42}`,
			wantErr: apperrors.ErrAuthRejected,
		},
		{
			name:    "not an object",
			status:  http.StatusOK,
			body:    `["s1"]`,
			wantErr: apperrors.ErrAuthRejected,
		},
		{
			name:    "revoked provider token",
			status:  http.StatusUnauthorized,
			body:    `{"detail":"Access token invalid or revoked"}`,
			wantErr: apperrors.ErrAuthRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, broker.IdentityPath, r.URL.Path)
				require.Equal(t, "Bearer p1", r.Header.Get("Authorization"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			got, err := broker.NewClient(srv.URL, nil).FetchIdentity(context.Background(), "p1")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.Nil(t, got)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestIdentityResponse_Session(t *testing.T) {
	resp := broker.IdentityResponse{SessionToken: "s1", ID: "u1", Name: "Ada", Picture: "https://pic"}

	s := resp.Session("p-exchanged")
	require.Equal(t, "s1", s.SessionCredential)
	require.Equal(t, "p-exchanged", s.ProviderCredential)
	require.Equal(t, "u1", s.UserID)
	require.Equal(t, "https://pic", s.PictureURL)

	resp.ProviderAccessToken = "p1"
	require.Equal(t, "p1", resp.Session("p-exchanged").ProviderCredential)
}
