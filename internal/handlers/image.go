package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"random-photo-backend/internal/media"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// Linker issues time-limited download links for stored images
type Linker interface {
	Link(ctx context.Context, id string) (string, error)
}

// ImageHandler serves published entries of the shared image store
type ImageHandler struct {
	store media.Store
}

// NewImageHandler creates a new image handler
func NewImageHandler(store media.Store) *ImageHandler {
	return &ImageHandler{
		store: store,
	}
}

// ListImages handles GET /api/v1/images
func (h *ImageHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	images, err := h.store.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list images")
		respondError(w, "Failed to list images", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"images": images,
		"total":  len(images),
	})
}

// GetImage handles GET /api/v1/images/{image_id}
func (h *ImageHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	imageID := chi.URLParam(r, "image_id")

	img, err := h.store.Get(ctx, imageID)
	if err != nil {
		respondError(w, "Image not found", statusFor(err))
		return
	}

	body, err := h.store.Open(ctx, imageID)
	if err != nil {
		respondError(w, "Image not found", statusFor(err))
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", img.MimeType)
	if img.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(img.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		log.Warn().Err(err).Str("image_id", imageID).Msg("Image stream interrupted")
	}
}

// GetImageLink handles GET /api/v1/images/{image_id}/link
func (h *ImageHandler) GetImageLink(w http.ResponseWriter, r *http.Request) {
	linker, ok := h.store.(Linker)
	if !ok {
		respondError(w, "Links are not supported by this store", http.StatusNotImplemented)
		return
	}

	imageID := chi.URLParam(r, "image_id")
	url, err := linker.Link(r.Context(), imageID)
	if err != nil {
		respondError(w, "Image not found", statusFor(err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"image_id": imageID,
		"url":      url,
	})
}
