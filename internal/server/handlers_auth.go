package server

import (
	"errors"
	"net/http"

	"github.com/tickerwell/fincollect/internal/auth"
	"github.com/tickerwell/fincollect/internal/models"
)

// handleToken handles POST /token — exchange client credentials for a JWT.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req models.TokenRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	if req.ClientID == "" || req.ClientSecret == "" {
		WriteError(w, http.StatusUnprocessableEntity, "client_id and client_secret are required")
		return
	}

	token, err := s.app.Auth.IssueToken(req.ClientID, req.ClientSecret)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			w.Header().Set("WWW-Authenticate", "Bearer")
			WriteError(w, http.StatusUnauthorized, "Invalid client credentials")
			return
		}
		s.logger.Error().Err(err).Msg("Failed to sign token")
		WriteError(w, http.StatusInternalServerError, "failed to sign token")
		return
	}

	WriteJSON(w, http.StatusOK, token)
}
