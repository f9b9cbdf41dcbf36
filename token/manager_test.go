package token_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/postsync/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newManager(now *time.Time, opts ...token.ManagerOption) *token.Manager {
	opts = append(opts, token.WithNowFunc(func() time.Time { return *now }))
	return token.New(token.NewHMACSigner(testSecret), opts...)
}

func TestManager_IssueAndVerify(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	m := newManager(&now, token.WithIssuer("postsync"))

	raw, issued, err := m.Issue(token.Subject{UserID: "u1", Name: "Ada", Email: "a@b.com"})
	require.NoError(t, err)
	require.Equal(t, 3, len(strings.Split(raw, ".")))
	require.Equal(t, now.Add(token.DefaultSessionTokenExpiry), issued.ExpiresAt)
	require.NotEmpty(t, issued.ID)

	claims, err := m.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "Ada", claims.Name)
	assert.Equal(t, "a@b.com", claims.Email)
	assert.Equal(t, issued.ID, claims.ID)
	assert.True(t, claims.ExpiresAt.Equal(issued.ExpiresAt))
}

func TestManager_IssueRequiresUserID(t *testing.T) {
	now := time.Now()
	_, _, err := newManager(&now).Issue(token.Subject{Name: "nobody"})
	require.Error(t, err)
}

func TestManager_Expiry(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	m := newManager(&now, token.WithTokenExpiry(time.Hour))

	raw, _, err := m.Issue(token.Subject{UserID: "u1"})
	require.NoError(t, err)

	now = now.Add(59 * time.Minute)
	_, err = m.Verify(raw)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = m.Verify(raw)
	require.ErrorIs(t, err, token.ErrExpiredToken)
}

func TestManager_Revoke(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	m := newManager(&now)

	raw, _, err := m.Issue(token.Subject{UserID: "u1"})
	require.NoError(t, err)
	claims, err := m.Verify(raw)
	require.NoError(t, err)

	require.NoError(t, m.Revoke(claims))
	_, err = m.Verify(raw)
	require.ErrorIs(t, err, token.ErrRevokedToken)

	require.Error(t, m.Revoke(&token.SessionClaims{}))
}

func TestManager_RejectsForeignTokens(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	m := newManager(&now, token.WithIssuer("postsync"))

	other := token.New(token.NewHMACSigner([]byte("another-secret-another-secret-xx")),
		token.WithNowFunc(func() time.Time { return now }), token.WithIssuer("postsync"))
	foreign, _, err := other.Issue(token.Subject{UserID: "u1"})
	require.NoError(t, err)

	wrongIssuer, _, err := newManager(&now, token.WithIssuer("someone-else")).Issue(token.Subject{UserID: "u1"})
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"user_id": "u1",
		"exp":     now.Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"empty":        "",
		"garbage":      "not-a-jwt",
		"wrong secret": foreign,
		"wrong issuer": wrongIssuer,
		"alg none":     noneAlg,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := m.Verify(raw)
			require.ErrorIs(t, err, token.ErrInvalidToken)
		})
	}
}

func TestInMemoryRevokedTokenCache_Cleanup(t *testing.T) {
	cache := token.NewInMemoryRevokedTokenCache()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, cache.Add("old", now.Add(-time.Minute)))
	require.NoError(t, cache.Add("live", now.Add(time.Hour)))

	cache.Cleanup(now)
	require.False(t, cache.IsRevoked("old"))
	require.True(t, cache.IsRevoked("live"))
}
