package gateway

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler upgrades HTTP requests into room connections.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	session           SessionHandler
}

func NewWebSocketHandler(cm *ConnectionManager, session SessionHandler) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		session:           session,
	}
}

// HandleRoomConnection handles WebSocket upgrade requests. The optional
// username query parameter binds the display name at open; without it the
// client is expected to send a set_name envelope.
func (h *WebSocketHandler) HandleRoomConnection(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")

	conn, err := h.connectionManager.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return
	}

	connection := &Connection{
		ID:          uuid.New(),
		Conn:        conn,
		Send:        make(chan []byte, 256),
		manager:     h.connectionManager,
		session:     h.session,
		ConnectedAt: time.Now(),
	}

	h.connectionManager.registerConnection(connection)
	h.session.HandleOpen(connection.ID, username)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID.String()).
		Str("username", username).
		Msg("WebSocket connection established")
}

// HandleConnectionStats reports the number of open connections.
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"total_connections":%d}`, h.connectionManager.ConnectionCount())
}

// RegisterRoutes registers WebSocket routes with an HTTP mux.
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleRoomConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
