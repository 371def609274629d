package handlers

import (
	"net/http"

	"random-photo-backend/internal/middleware"
	"random-photo-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// SessionHandler handles screen session requests
type SessionHandler struct {
	sessions *services.SessionService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *services.SessionService) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
	}
}

// CreateSession handles POST /api/v1/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Create()
	if err != nil {
		log.Error().Err(err).Msg("Failed to create session")
		respondError(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	screen, err := h.sessions.Get(session.ID)
	if err != nil {
		respondError(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"session_id":          session.ID,
		"token":               session.Token,
		"expires_at":          session.ExpiresAt,
		"permission_required": screen.PermissionRequired(),
	})
}

// DeleteSession handles DELETE /api/v1/sessions/current
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetSessionID(r.Context())

	if err := h.sessions.Destroy(sessionID); err != nil {
		respondError(w, "Session not found", statusFor(err))
		return
	}

	log.Info().Str("session_id", sessionID).Msg("Session closed")
	w.WriteHeader(http.StatusNoContent)
}
