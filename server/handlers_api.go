package server

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/postsync/agent"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	agentQueuedMessage    = "Agent run queued"
	missingCredentialsMsg = "Could not find user credentials. Please log in again."
)

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	}
}

// MeHandler returns the identity behind the session token
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFromContext(r.Context())
		if !ok {
			writeJSONDetail(w, "Not authenticated", http.StatusUnauthorized)
			return
		}
		writeJSON(w, map[string]string{
			"user_id": claims.UserID,
			"name":    claims.Name,
			"email":   claims.Email,
		}, http.StatusOK)
	}
}

// LogoutHandler revokes the presented session token
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFromContext(r.Context())
		if !ok {
			writeJSONDetail(w, "Not authenticated", http.StatusUnauthorized)
			return
		}
		if err := s.tokens.Revoke(claims); err != nil {
			log.Err(err).Str("user_id", claims.UserID).Msg("failed to revoke session token")
			writeJSONDetail(w, "Failed to log out", http.StatusInternalServerError)
			return
		}
		log.Info().Str("user_id", claims.UserID).Msg("user logged out")
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) AgentStartHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFromContext(r.Context())
		if !ok {
			writeJSONDetail(w, "Not authenticated", http.StatusUnauthorized)
			return
		}

		var req agent.StartRequest
		if err := decodeJSONBody(r, &req); err != nil {
			writeJSONDetail(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		req.Niche = strings.TrimSpace(req.Niche)
		req.Email = strings.TrimSpace(req.Email)
		if req.Niche == "" {
			writeJSONDetail(w, "niche is required", http.StatusBadRequest)
			return
		}
		if req.Email == "" {
			writeJSONDetail(w, "email is required", http.StatusBadRequest)
			return
		}

		job, err := s.agents.Start(r.Context(), agent.Run{UserID: claims.UserID, Niche: req.Niche, Email: req.Email})
		switch {
		case errors.Is(err, agent.ErrNoCredentials):
			writeJSONDetail(w, missingCredentialsMsg, http.StatusUnauthorized)
			return
		case errors.Is(err, agent.ErrInvalidRun):
			writeJSONDetail(w, err.Error(), http.StatusBadRequest)
			return
		case err != nil:
			log.Err(err).Str("request_id", requestIDFromContext(r.Context())).Msg("failed to start agent run")
			writeJSONDetail(w, "Failed to start agent", http.StatusInternalServerError)
			return
		}

		writeJSON(w, agent.StartResponse{Message: agentQueuedMessage, JobID: job.ID}, http.StatusAccepted)
	}
}

func (s *Server) AgentJobHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFromContext(r.Context())
		if !ok {
			writeJSONDetail(w, "Not authenticated", http.StatusUnauthorized)
			return
		}

		job, err := s.agents.Get(claims.UserID, r.PathValue("id"))
		if err != nil {
			if errors.Is(err, agent.ErrJobNotFound) {
				writeJSONDetail(w, "Job not found", http.StatusNotFound)
				return
			}
			writeJSONDetail(w, "Failed to load job", http.StatusInternalServerError)
			return
		}
		writeJSON(w, job, http.StatusOK)
	}
}

func (s *Server) AgentSummaryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFromContext(r.Context())
		if !ok {
			writeJSONDetail(w, "Not authenticated", http.StatusUnauthorized)
			return
		}
		writeJSON(w, s.agents.Summary(claims.UserID), http.StatusOK)
	}
}
