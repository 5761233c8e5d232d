package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/marisol-bistro/marisol-pos-api/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The SPA is served from a different origin in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// envelope is the wire format pushed to clients.
type envelope struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

func mustEnvelope(msgType string, payload interface{}) []byte {
	b, err := json.Marshal(envelope{Type: msgType, Payload: payload, Timestamp: time.Now().UTC()})
	if err != nil {
		// Payloads are our own structs; marshal failure is a programming error.
		log.Error().Err(err).Str("type", msgType).Msg("failed to marshal envelope")
		return []byte(`{"type":"error"}`)
	}
	return b
}

// Hub relays domain events to connected WebSocket clients. Delivery is
// best-effort and at-most-once per open connection: closed or slow clients
// are skipped, never retried, and no backlog is kept.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	closed  bool
}

// NewHub creates a hub and wires it to every event on the bus.
func NewHub(bus *events.Bus) *Hub {
	h := &Hub{clients: make(map[string]*Client)}
	bus.SubscribeAll(h.handleEvent)
	return h
}

// handleEvent fans one domain event out to all subscribed clients.
func (h *Hub) handleEvent(ev events.Event) {
	msg, err := json.Marshal(envelope{Type: ev.Type, Payload: ev.Payload, Timestamp: ev.Timestamp})
	if err != nil {
		log.Error().Err(err).Str("event", ev.Type).Msg("failed to marshal event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.subscribedTo(ev.Type) {
			c.enqueue(msg)
		}
	}
}

// ServeWS upgrades an HTTP request to a WebSocket connection and registers
// the client. The client starts with no subscriptions.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		ID:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
		subs: make(map[string]bool),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[client.ID] = client
	h.mu.Unlock()

	log.Debug().Str("client", client.ID).Msg("websocket client connected")

	go client.writePump()
	go client.readPump()
}

// unregister removes a client and signals its pumps to stop.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.ID]; ok {
		delete(h.clients, c.ID)
		c.shutdown()
		log.Debug().Str("client", c.ID).Msg("websocket client disconnected")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and stops accepting new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, c := range h.clients {
		delete(h.clients, id)
		c.shutdown()
	}
}
