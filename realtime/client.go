package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Client is one connected WebSocket consumer. Each client holds its own
// subscription set; the hub never buffers messages for a client whose send
// queue is full or whose connection is gone.
type Client struct {
	ID   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	closeOnce sync.Once

	mu   sync.RWMutex
	subs map[string]bool
}

// clientMessage is what clients send us: subscribe, unsubscribe or ping.
type clientMessage struct {
	Type    string `json:"type"`
	Payload struct {
		Events []string `json:"events"`
	} `json:"payload"`
}

// subscribedTo reports whether the client wants this event type. A "*"
// subscription matches everything.
func (c *Client) subscribedTo(eventType string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subs["*"] || c.subs[eventType]
}

func (c *Client) subscribe(events []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range events {
		c.subs[e] = true
	}
	return c.subscriptionsLocked()
}

func (c *Client) unsubscribe(events []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range events {
		delete(c.subs, e)
	}
	return c.subscriptionsLocked()
}

func (c *Client) subscriptionsLocked() []string {
	out := make([]string, 0, len(c.subs))
	for e := range c.subs {
		out = append(out, e)
	}
	return out
}

// shutdown signals both pumps to stop. Safe to call from any goroutine and
// more than once. The send channel is never closed, so a read-pump reply
// racing a hub shutdown cannot panic on it.
func (c *Client) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}

// enqueue attempts a best-effort delivery. If the client is shutting down
// or its queue is full the message is dropped; reconnecting clients re-sync
// via the pull endpoints instead of replay.
func (c *Client) enqueue(msg []byte) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- msg:
	default:
		log.Warn().Str("client", c.ID).Msg("send queue full, dropping message")
	}
}

// readPump consumes control messages from the client until the connection
// closes, then unregisters the client.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Str("client", c.ID).Err(err).Msg("websocket closed unexpectedly")
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.enqueue(mustEnvelope("error", map[string]string{"message": "invalid message"}))
			continue
		}

		switch msg.Type {
		case "subscribe":
			events := c.subscribe(msg.Payload.Events)
			c.enqueue(mustEnvelope("subscription:confirmed", map[string]interface{}{"events": events}))
		case "unsubscribe":
			events := c.unsubscribe(msg.Payload.Events)
			c.enqueue(mustEnvelope("subscription:confirmed", map[string]interface{}{"events": events}))
		case "ping":
			c.enqueue(mustEnvelope("pong", nil))
		default:
			c.enqueue(mustEnvelope("error", map[string]string{"message": "unknown message type: " + msg.Type}))
		}
	}
}

// writePump drains the send queue onto the wire and keeps the connection
// alive with pings. Exits when the client shuts down or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
