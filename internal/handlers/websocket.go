package handlers

import (
	"encoding/json"
	"net/http"

	"random-photo-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsRequest is a command sent by the screen client
type wsRequest struct {
	Type  string `json:"type"`
	Query string `json:"query,omitempty"`
	Width int    `json:"width,omitempty"`
}

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub            *services.WSHub
	sessions       *services.SessionService
	containerWidth int
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *services.WSHub, sessions *services.SessionService, containerWidth int) *WebSocketHandler {
	return &WebSocketHandler{
		hub:            hub,
		sessions:       sessions,
		containerWidth: containerWidth,
	}
}

// HandleWebSocket handles WebSocket connections
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, "token required", http.StatusUnauthorized)
		return
	}

	sessionID, err := h.sessions.ValidateJWT(token)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	screen, err := h.sessions.Get(sessionID)
	if err != nil {
		respondError(w, "Session not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.hub.Register(sessionID, conn)
	defer h.hub.Unregister(sessionID, conn)

	// Bring the client up to date
	if err := h.hub.Send(sessionID, services.WSMessage{Type: services.MsgFetchState, Data: screen.State()}); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to send fetch_state message")
	}

	log.Info().Str("session_id", sessionID).Msg("WebSocket connection established")

	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("session_id", sessionID).Msg("WebSocket error")
			}
			break
		}

		var req wsRequest
		if err := json.Unmarshal(messageBytes, &req); err != nil {
			log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to parse WebSocket message")
			h.sendError(sessionID, "Invalid message format")
			continue
		}

		h.handleMessage(screen, req)
	}
}

// handleMessage processes incoming WebSocket messages
func (h *WebSocketHandler) handleMessage(screen *services.Screen, req wsRequest) {
	switch req.Type {
	case "search":
		screen.Search(req.Query)
	case "refresh":
		screen.Refresh()
	case "render_grid":
		width := req.Width
		if width <= 0 {
			width = h.containerWidth
		}
		screen.RenderGrid(width)
	default:
		h.sendError(screen.ID, "Unknown message type")
	}
}

// sendError sends an error message to a session
func (h *WebSocketHandler) sendError(sessionID, message string) {
	h.hub.Notify(sessionID, services.WSMessage{
		Type:    services.MsgError,
		Message: message,
	})
}
