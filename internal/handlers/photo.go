package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"random-photo-backend/internal/services"
)

// SearchRequest is the body of POST /api/v1/photos/search
type SearchRequest struct {
	Query string `json:"query"`
}

// PermissionRequest is the body of POST /api/v1/permission
type PermissionRequest struct {
	Granted *bool `json:"granted"`
}

// PhotoHandler handles photo list and grid requests
type PhotoHandler struct {
	sessions       *services.SessionService
	containerWidth int
}

// NewPhotoHandler creates a new photo handler. containerWidth is used when
// a grid request carries no width.
func NewPhotoHandler(sessions *services.SessionService, containerWidth int) *PhotoHandler {
	return &PhotoHandler{
		sessions:       sessions,
		containerWidth: containerWidth,
	}
}

// GetPhotos handles GET /api/v1/photos
func (h *PhotoHandler) GetPhotos(w http.ResponseWriter, r *http.Request) {
	screen, ok := screenFor(w, r, h.sessions)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, screen.State())
}

// SearchPhotos handles POST /api/v1/photos/search
func (h *PhotoHandler) SearchPhotos(w http.ResponseWriter, r *http.Request) {
	screen, ok := screenFor(w, r, h.sessions)
	if !ok {
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	screen.Search(req.Query)
	w.WriteHeader(http.StatusAccepted)
}

// RefreshPhotos handles POST /api/v1/photos/refresh
func (h *PhotoHandler) RefreshPhotos(w http.ResponseWriter, r *http.Request) {
	screen, ok := screenFor(w, r, h.sessions)
	if !ok {
		return
	}

	screen.Refresh()
	w.WriteHeader(http.StatusAccepted)
}

// GetGrid handles GET /api/v1/grid
func (h *PhotoHandler) GetGrid(w http.ResponseWriter, r *http.Request) {
	screen, ok := screenFor(w, r, h.sessions)
	if !ok {
		return
	}

	width, ok := h.width(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"width": width,
		"cards": screen.Layout(width),
	})
}

// RenderGrid handles POST /api/v1/grid/render. Frames arrive over the websocket.
func (h *PhotoHandler) RenderGrid(w http.ResponseWriter, r *http.Request) {
	screen, ok := screenFor(w, r, h.sessions)
	if !ok {
		return
	}

	width, ok := h.width(w, r)
	if !ok {
		return
	}

	if !screen.RenderGrid(width) {
		respondError(w, "Session is closing", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// SetPermission handles POST /api/v1/permission
func (h *PhotoHandler) SetPermission(w http.ResponseWriter, r *http.Request) {
	screen, ok := screenFor(w, r, h.sessions)
	if !ok {
		return
	}

	var req PermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Granted == nil {
		respondError(w, "granted is required", http.StatusBadRequest)
		return
	}

	screen.GrantPermission(*req.Granted)
	respondJSON(w, http.StatusOK, map[string]bool{
		"permission_required": screen.PermissionRequired(),
	})
}

func (h *PhotoHandler) width(w http.ResponseWriter, r *http.Request) (int, bool) {
	widthStr := r.URL.Query().Get("width")
	if widthStr == "" {
		return h.containerWidth, true
	}

	width, err := strconv.Atoi(widthStr)
	if err != nil || width <= 0 {
		respondError(w, "width must be a positive integer", http.StatusBadRequest)
		return 0, false
	}
	return width, true
}
