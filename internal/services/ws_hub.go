package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Message types pushed to screen clients
const (
	MsgFetchState   = "fetch_state"
	MsgSaveState    = "save_state"
	MsgNotification = "notification"
	MsgRenderFrame  = "render_frame"
	MsgError        = "error"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type      string      `json:"type"`
	Timestamp int64       `json:"timestamp,omitempty"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// Notifier delivers messages to the client of a screen session
type Notifier interface {
	Notify(sessionID string, message WSMessage)
}

// wsClient serializes writes to one connection
type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WSHub manages WebSocket connections, one per screen session
type WSHub struct {
	mu          sync.RWMutex
	connections map[string]*wsClient
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		connections: make(map[string]*wsClient),
	}
}

// Register registers a new WebSocket connection for a session
func (h *WSHub) Register(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Close existing connection if any
	if existing, exists := h.connections[sessionID]; exists {
		existing.conn.Close()
	}

	h.connections[sessionID] = &wsClient{conn: conn}

	log.Info().Str("session_id", sessionID).Msg("WebSocket connection registered")
}

// Unregister removes the connection of a session if it is still conn
func (h *WSHub) Unregister(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client, exists := h.connections[sessionID]; exists && (conn == nil || client.conn == conn) {
		client.conn.Close()
		delete(h.connections, sessionID)
		log.Info().Str("session_id", sessionID).Msg("WebSocket connection unregistered")
	}
}

// Send sends a message to a specific session
func (h *WSHub) Send(sessionID string, message WSMessage) error {
	h.mu.RLock()
	client, exists := h.connections[sessionID]
	h.mu.RUnlock()

	if !exists {
		return fmt.Errorf("session %s is not connected", sessionID)
	}

	if message.Timestamp == 0 {
		message.Timestamp = time.Now().UnixMilli()
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := client.write(data); err != nil {
		h.Unregister(sessionID, client.conn)
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

// Notify sends a message and only logs delivery failures
func (h *WSHub) Notify(sessionID string, message WSMessage) {
	if !h.IsOnline(sessionID) {
		log.Debug().
			Str("session_id", sessionID).
			Str("type", message.Type).
			Msg("Session offline, message dropped")
		return
	}

	if err := h.Send(sessionID, message); err != nil {
		log.Error().
			Err(err).
			Str("session_id", sessionID).
			Str("type", message.Type).
			Msg("Failed to notify session")
	}
}

// IsOnline checks if a session has a live connection
func (h *WSHub) IsOnline(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, exists := h.connections[sessionID]
	return exists
}
