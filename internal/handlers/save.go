package handlers

import (
	"encoding/json"
	"net/http"

	"random-photo-backend/internal/models"
	"random-photo-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// SaveRequest is the body of POST /api/v1/saves
type SaveRequest struct {
	Photo *models.PhotoRecord `json:"photo"`
}

// SaveHandler handles photo save requests
type SaveHandler struct {
	sessions *services.SessionService
}

// NewSaveHandler creates a new save handler
func NewSaveHandler(sessions *services.SessionService) *SaveHandler {
	return &SaveHandler{
		sessions: sessions,
	}
}

// CreateSave handles POST /api/v1/saves: a tap on a grid item
func (h *SaveHandler) CreateSave(w http.ResponseWriter, r *http.Request) {
	screen, ok := screenFor(w, r, h.sessions)
	if !ok {
		return
	}

	var req SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Photo == nil {
		respondError(w, "photo is required", http.StatusBadRequest)
		return
	}

	op, err := screen.SelectPhoto(*req.Photo)
	if err != nil {
		log.Warn().Err(err).Str("session_id", screen.ID).Msg("Rejected photo selection")
		respondError(w, "Photo not found", statusFor(err))
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"save":   op,
		"prompt": services.TextConfirm,
	})
}

// GetSave handles GET /api/v1/saves/{save_id}
func (h *SaveHandler) GetSave(w http.ResponseWriter, r *http.Request) {
	screen, ok := screenFor(w, r, h.sessions)
	if !ok {
		return
	}

	op, err := screen.Saves().Get(chi.URLParam(r, "save_id"))
	if err != nil {
		respondError(w, "Save not found", statusFor(err))
		return
	}
	respondJSON(w, http.StatusOK, op)
}

// ConfirmSave handles POST /api/v1/saves/{save_id}/confirm
func (h *SaveHandler) ConfirmSave(w http.ResponseWriter, r *http.Request) {
	screen, ok := screenFor(w, r, h.sessions)
	if !ok {
		return
	}

	saveID := chi.URLParam(r, "save_id")
	if err := screen.Saves().Confirm(saveID); err != nil {
		log.Warn().Err(err).Str("session_id", screen.ID).Str("save_id", saveID).Msg("Save not confirmed")
		respondError(w, err.Error(), statusFor(err))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// CancelSave handles POST /api/v1/saves/{save_id}/cancel
func (h *SaveHandler) CancelSave(w http.ResponseWriter, r *http.Request) {
	screen, ok := screenFor(w, r, h.sessions)
	if !ok {
		return
	}

	if err := screen.Saves().Cancel(chi.URLParam(r, "save_id")); err != nil {
		respondError(w, err.Error(), statusFor(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetWallpaper handles POST /api/v1/saves/{save_id}/wallpaper
func (h *SaveHandler) SetWallpaper(w http.ResponseWriter, r *http.Request) {
	screen, ok := screenFor(w, r, h.sessions)
	if !ok {
		return
	}

	if err := screen.Saves().SetWallpaper(r.Context(), chi.URLParam(r, "save_id")); err != nil {
		respondError(w, err.Error(), statusFor(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
