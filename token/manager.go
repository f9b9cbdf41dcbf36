package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// DefaultSessionTokenExpiry matches the lifetime of a login: one week.
const DefaultSessionTokenExpiry = 7 * 24 * time.Hour

var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrExpiredToken = errors.New("session token expired")
	ErrRevokedToken = errors.New("session token revoked")
)

// Subject is who a session token is issued to.
type Subject struct {
	UserID string
	Name   string
	Email  string
}

// SessionClaims are the verified claims of a session token.
type SessionClaims struct {
	UserID    string
	Name      string
	Email     string
	ID        string // jti
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Manager issues and verifies the session tokens the backend hands out after login.
// The tokens are opaque to clients: they never refresh, and expire or get revoked wholesale.
type Manager struct {
	signer       Signer
	issuer       string
	revokedCache RevokedTokenCache
	expiry       time.Duration
	nowFunc      func() time.Time
}

type ManagerOption func(*Manager)

func WithTokenExpiry(expiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.expiry = expiry
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithIssuer(issuer string) ManagerOption {
	return func(m *Manager) {
		m.issuer = issuer
	}
}

func WithRevokedTokenCache(cache RevokedTokenCache) ManagerOption {
	return func(m *Manager) {
		m.revokedCache = cache
	}
}

func New(signer Signer, options ...ManagerOption) *Manager {
	m := &Manager{
		signer:       signer,
		revokedCache: NewInMemoryRevokedTokenCache(),
	}

	for _, opt := range options {
		opt(m)
	}

	if m.expiry == 0 {
		m.expiry = DefaultSessionTokenExpiry
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

// Issue signs a session token for subject.
func (m *Manager) Issue(subject Subject) (string, *SessionClaims, error) {
	if strings.TrimSpace(subject.UserID) == "" {
		return "", nil, errors.New("Manager.Issue: subject has no user id")
	}

	now := m.nowFunc()
	sc := &SessionClaims{
		UserID:    subject.UserID,
		Name:      subject.Name,
		Email:     subject.Email,
		ID:        uuid.New().String(),
		IssuedAt:  now,
		ExpiresAt: now.Add(m.expiry),
	}

	claims := jwt.MapClaims{
		"sub":     sc.UserID,
		"user_id": sc.UserID,
		"name":    sc.Name,
		"email":   sc.Email,
		"iat":     sc.IssuedAt.Unix(),
		"exp":     sc.ExpiresAt.Unix(),
		"jti":     sc.ID,
	}
	if m.issuer != "" {
		claims["iss"] = m.issuer
	}

	signed, err := m.signer.Sign(claims)
	if err != nil {
		return "", nil, errors.Wrap(err, "Manager.Issue")
	}
	return signed, sc, nil
}

// Verify checks signature, expiry and revocation of a raw session token.
func (m *Manager) Verify(rawToken string) (*SessionClaims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, ErrInvalidToken
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.signer.GetSigningMethod().Alg()}),
		jwt.WithTimeFunc(m.nowFunc),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(m.issuer))
	}

	token, err := jwt.Parse(rawToken, m.signer.GetVerificationKey, parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, errors.Wrap(ErrInvalidToken, err.Error())
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return nil, errors.Wrap(ErrInvalidToken, "missing user_id")
	}
	name, _ := claims["name"].(string)
	email, _ := claims["email"].(string)
	jti, _ := claims["jti"].(string)
	iat, _ := claims["iat"].(float64)
	exp, _ := claims["exp"].(float64)

	if jti != "" && m.revokedCache.IsRevoked(jti) {
		return nil, ErrRevokedToken
	}

	return &SessionClaims{
		UserID:    userID,
		Name:      name,
		Email:     email,
		ID:        jti,
		IssuedAt:  time.Unix(int64(iat), 0),
		ExpiresAt: time.Unix(int64(exp), 0),
	}, nil
}

// Revoke invalidates a session token before its expiry.
func (m *Manager) Revoke(claims *SessionClaims) error {
	if claims == nil || claims.ID == "" {
		return errors.New("Manager.Revoke: token has no jti")
	}
	m.revokedCache.Cleanup(m.nowFunc())
	return errors.Wrap(m.revokedCache.Add(claims.ID, claims.ExpiresAt), "Manager.Revoke")
}
