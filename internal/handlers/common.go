package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"random-photo-backend/internal/middleware"
	"random-photo-backend/internal/models"
	"random-photo-backend/internal/services"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, models.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, models.ErrWallpaper):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrNetwork):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// screenFor resolves the screen of the authenticated session
func screenFor(w http.ResponseWriter, r *http.Request, sessions *services.SessionService) (*services.Screen, bool) {
	sessionID := middleware.GetSessionID(r.Context())
	screen, err := sessions.Get(sessionID)
	if err != nil {
		respondError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return screen, true
}
