package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// SessionHandler receives connection lifecycle events and raw inbound
// messages. The room actor implements it; the gateway holds no game state.
type SessionHandler interface {
	HandleOpen(connID uuid.UUID, username string)
	HandleMessage(connID uuid.UUID, data []byte)
	HandleClose(connID uuid.UUID)
}

// ConnectionManager tracks open WebSocket connections and fans messages out
// to them.
type ConnectionManager struct {
	connections map[uuid.UUID]*Connection
	mu          sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan broadcastMessage
}

// Connection is one live WebSocket peer.
type Connection struct {
	ID      uuid.UUID
	Conn    *websocket.Conn
	Send    chan []byte
	manager *ConnectionManager
	session SessionHandler

	ConnectedAt time.Time
}

// ConnectionConfig holds transport-level settings for WebSocket peers.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	PongTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// broadcastMessage is a queued fan-out. A zero target means every open
// connection; otherwise only the targeted one.
type broadcastMessage struct {
	target  uuid.UUID
	payload any
}

// DefaultConnectionConfig returns the default WebSocket settings.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		PongTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1 << 20, // image chat messages arrive base64-encoded
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates a connection manager.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[uuid.UUID]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan broadcastMessage, 1000),
	}
}

// Start processes queued broadcasts until ctx is cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) error {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return nil
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// Broadcast queues v for delivery to every open connection.
func (cm *ConnectionManager) Broadcast(v any) {
	select {
	case cm.broadcastCh <- broadcastMessage{payload: v}:
	default:
		log.Warn().Msg("broadcast channel full, dropping message")
	}
}

// Send queues v for delivery to a single connection.
func (cm *ConnectionManager) Send(connID uuid.UUID, v any) {
	select {
	case cm.broadcastCh <- broadcastMessage{target: connID, payload: v}:
	default:
		log.Warn().Str("connection_id", connID.String()).Msg("broadcast channel full, dropping message")
	}
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.connections[conn.ID] = conn

	log.Debug().
		Str("connection_id", conn.ID.String()).
		Int("total_connections", len(cm.connections)).
		Msg("connection registered")
}

// unregisterConnection removes a connection; safe to call more than once.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, exists := cm.connections[conn.ID]; !exists {
		return
	}
	delete(cm.connections, conn.ID)
	close(conn.Send)

	log.Info().
		Str("connection_id", conn.ID.String()).
		Int("total_connections", len(cm.connections)).
		Msg("connection unregistered")
}

// handleBroadcast marshals the payload once and delivers it to the selected
// connections. A slow or dead peer is closed and skipped; the others still
// receive the message.
func (cm *ConnectionManager) handleBroadcast(message broadcastMessage) {
	cm.mu.RLock()
	targets := make([]*Connection, 0, len(cm.connections))
	for _, conn := range cm.connections {
		if message.target != uuid.Nil && conn.ID != message.target {
			continue
		}
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	data, err := json.Marshal(message.payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal message for broadcast")
		return
	}

	for _, conn := range targets {
		select {
		case conn.Send <- data:
		default:
			log.Warn().
				Str("connection_id", conn.ID.String()).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
			conn.Conn.Close()
		}
	}
}

// ConnectionCount returns the number of open connections.
func (cm *ConnectionManager) ConnectionCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}

// writePump drains the send channel onto the socket and keeps the peer alive
// with pings.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID.String()).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump forwards inbound messages to the session and drives terminal
// cleanup when the peer goes away.
func (c *Connection) readPump() {
	defer func() {
		c.manager.unregisterConnection(c)
		c.Conn.Close()
		c.session.HandleClose(c.ID)
	}()

	c.Conn.SetReadLimit(c.manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.PongTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.PongTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("connection_id", c.ID.String()).Msg("read error")
			}
			return
		}
		c.session.HandleMessage(c.ID, message)
	}
}
