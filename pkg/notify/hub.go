package notify

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Connection wraps a websocket.Conn with its owner.
type Connection struct {
	Conn   *websocket.Conn
	UserID string
}

// Hub tracks live websocket connections per user so new notifications can
// be pushed without polling. A user may hold several connections at once.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]map[*Connection]struct{}
	logger      *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		connections: make(map[string]map[*Connection]struct{}),
		logger:      logger,
	}
}

// Add registers a connection for a user.
func (h *Hub) Add(userID string, conn *websocket.Conn) *Connection {
	c := &Connection{Conn: conn, UserID: userID}

	h.mu.Lock()
	if _, ok := h.connections[userID]; !ok {
		h.connections[userID] = make(map[*Connection]struct{})
	}
	h.connections[userID][c] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("ws connected", zap.String("user_id", userID))
	return c
}

// Remove disconnects and removes a connection.
func (h *Hub) Remove(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.connections[c.UserID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.connections, c.UserID)
		}
	}
	_ = c.Conn.Close()
}

// Send pushes a notification to every connection the user holds. Broken
// connections are dropped.
func (h *Hub) Send(userID string, n Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.connections[userID] {
		if err := c.Conn.WriteJSON(n); err != nil {
			h.logger.Debug("ws send failed", zap.String("user_id", userID), zap.Error(err))
			go h.Remove(c)
		}
	}
}

// Heartbeat pings all connections periodically to keep them alive.
func (h *Hub) Heartbeat(interval time.Duration) {
	ticker := time.NewTicker(interval)
	for range ticker.C {
		h.mu.RLock()
		for _, conns := range h.connections {
			for c := range conns {
				_ = c.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second))
			}
		}
		h.mu.RUnlock()
	}
}
