package handlers

import (
	"net/http"

	"random-photo-backend/internal/media"
	"random-photo-backend/internal/middleware"
	"random-photo-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterDeps are the services behind the HTTP API
type RouterDeps struct {
	Sessions       *services.SessionService
	Hub            *services.WSHub
	Store          media.Store
	ContainerWidth int
}

// NewRouter builds the HTTP API
func NewRouter(deps RouterDeps) http.Handler {
	sessionHandler := NewSessionHandler(deps.Sessions)
	photoHandler := NewPhotoHandler(deps.Sessions, deps.ContainerWidth)
	saveHandler := NewSaveHandler(deps.Sessions)
	imageHandler := NewImageHandler(deps.Store)
	wsHandler := NewWebSocketHandler(deps.Hub, deps.Sessions, deps.ContainerWidth)

	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.MetricsMiddleware())
	r.Use(corsMiddleware)

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/sessions", sessionHandler.CreateSession)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(deps.Sessions))
			r.Delete("/sessions/current", sessionHandler.DeleteSession)

			r.Get("/photos", photoHandler.GetPhotos)
			r.Post("/photos/search", photoHandler.SearchPhotos)
			r.Post("/photos/refresh", photoHandler.RefreshPhotos)
			r.Get("/grid", photoHandler.GetGrid)
			r.Post("/grid/render", photoHandler.RenderGrid)
			r.Post("/permission", photoHandler.SetPermission)

			r.Post("/saves", saveHandler.CreateSave)
			r.Get("/saves/{save_id}", saveHandler.GetSave)
			r.Post("/saves/{save_id}/confirm", saveHandler.ConfirmSave)
			r.Post("/saves/{save_id}/cancel", saveHandler.CancelSave)
			r.Post("/saves/{save_id}/wallpaper", saveHandler.SetWallpaper)

			r.Get("/images", imageHandler.ListImages)
			r.Get("/images/{image_id}", imageHandler.GetImage)
			r.Get("/images/{image_id}/link", imageHandler.GetImageLink)
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"status":   "ok",
			"sessions": deps.Sessions.Count(),
		})
	})

	return r
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
