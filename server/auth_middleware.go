package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/postsync/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyRequestID stores the request ID
	ContextKeyRequestID ContextKey = "request_id"
	// ContextKeyClaims stores the verified session token claims
	ContextKeyClaims ContextKey = "claims"
)

// RequireAuth is middleware that validates the Bearer session token
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			rawToken, ok := bearerToken(r)
			if !ok {
				writeJSONDetail(w, "Not authenticated", http.StatusUnauthorized)
				return
			}

			claims, err := s.tokens.Verify(rawToken)
			if err != nil {
				detail := "Invalid token"
				switch {
				case errors.Is(err, token.ErrExpiredToken):
					detail = "Token expired"
				case errors.Is(err, token.ErrRevokedToken):
					detail = "Token revoked"
				}
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("rejected session token")
				writeJSONDetail(w, detail, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyClaims, claims)
			next(w, r.WithContext(ctx))
		}
	}
}

// bearerToken extracts the token of an "Authorization: Bearer <token>" header
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	t := strings.TrimSpace(parts[1])
	return t, t != ""
}

func claimsFromContext(ctx context.Context) (*token.SessionClaims, bool) {
	claims, ok := ctx.Value(ContextKeyClaims).(*token.SessionClaims)
	return claims, ok && claims != nil
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ContextKeyRequestID).(string)
	return id
}
