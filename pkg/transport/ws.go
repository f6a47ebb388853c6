package transport

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/riverwatch/evacroute/pkg/reporting"
)

const (
	// Time allowed to write a message to a peer.
	writeWait = 2 * time.Second
	// Maximum message size allowed from a peer.
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub broadcasts envelope messages to every connected WebSocket client.
// A slow client is dropped rather than back-pressuring the tick loop.
type Hub struct {
	logger *reporting.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// NewHub creates an empty broadcast hub.
func NewHub(logger *reporting.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*websocket.Conn]bool),
	}
}

// HandleWS upgrades an HTTP request and registers the client.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.Warn("WebSocket upgrade failed", "error", err)
		}
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	count := len(h.clients)
	h.mu.Unlock()

	if h.logger != nil {
		h.logger.Info("WebSocket client connected", "clients", count)
	}

	h.sendTo(conn, reporting.NewEnvelope(reporting.MsgConnection, map[string]interface{}{
		"message": "connected",
	}))

	go h.readLoop(conn)
}

// readLoop answers pings and detects disconnects. Clients only ever send
// ping frames; anything else is ignored.
func (h *Hub) readLoop(conn *websocket.Conn) {
	defer h.drop(conn)
	conn.SetReadLimit(maxMessageSize)

	for {
		var incoming map[string]interface{}
		if err := conn.ReadJSON(&incoming); err != nil {
			return
		}
		if t, ok := incoming["type"].(string); ok && t == "ping" {
			h.sendTo(conn, reporting.NewEnvelope(reporting.MsgPong, map[string]interface{}{}))
		}
	}
}

// Broadcast sends an envelope to every connected client.
func (h *Hub) Broadcast(env reporting.Envelope) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		h.sendTo(conn, env)
	}
}

// sendTo writes one envelope; a write failure drops the client.
func (h *Hub) sendTo(conn *websocket.Conn, env reporting.Envelope) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(env); err != nil {
		h.drop(conn)
	}
}

// drop closes and forgets a client.
func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mu.Unlock()
}

// ClientCount reports connected clients, for the system_status broadcast.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
