package sink

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const clientBufferSize = 64

// envelope wraps every broadcast message with its stream name.
type envelope struct {
	Stream  string      `json:"stream"`
	Payload interface{} `json:"payload"`
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub fans engine events out to connected websocket clients. Clients whose
// send buffer fills up are dropped rather than allowed to stall a broadcast.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*client
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*client),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.With(zap.String("component", "hub")),
	}
}

// HandleWS upgrades an HTTP request and registers the connection.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, clientBufferSize),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("client connected",
		zap.String("client_id", c.id),
		zap.Int("clients", count))

	go h.writePump(c)
	go h.readPump(c)
}

// Broadcast sends one payload on the named stream to every client.
func (h *Hub) Broadcast(stream string, payload interface{}) {
	data, err := json.Marshal(envelope{Stream: stream, Payload: payload})
	if err != nil {
		h.logger.Error("failed to encode event",
			zap.String("stream", stream),
			zap.Error(err))
		return
	}

	h.mu.RLock()
	var slow []*client
	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow client", zap.String("client_id", c.id))
		h.remove(c)
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[string]*client)
	h.mu.Unlock()

	for _, c := range clients {
		close(c.send)
		c.conn.Close()
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	if ok {
		delete(h.clients, c.id)
	}
	h.mu.Unlock()

	if ok {
		close(c.send)
		c.conn.Close()
	}
}

func (h *Hub) writePump(c *client) {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.remove(c)
			return
		}
	}
}

// readPump discards inbound frames; it exists to notice disconnects.
func (h *Hub) readPump(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.remove(c)
			return
		}
	}
}
