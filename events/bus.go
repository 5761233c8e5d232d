package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Domain event names. Broadcast envelopes use the same strings as their type.
const (
	OrderCreated       = "order:created"
	OrderUpdated       = "order:updated"
	OrderCompleted     = "order:completed"
	OrderCancelled     = "order:cancelled"
	InventoryUpdated   = "inventory:updated"
	InventoryLowStock  = "inventory:low_stock"
	TableStatusChanged = "table:status_changed"
	ReservationCreated = "reservation:created"
	UserLogin          = "user:login"
	UserLogout         = "user:logout"
)

// Event is one domain event published on the bus.
type Event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Handler consumes one event. Handlers run synchronously on the publisher's
// goroutine, in registration order.
type Handler func(Event)

// Bus is a process-local publish/subscribe hub. It is constructed once at
// startup and passed to every component that publishes or subscribes;
// Close makes further publishes no-ops.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	all      []Handler
	closed   bool
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

// Subscribe registers a handler for one event name.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

// SubscribeAll registers a handler invoked for every event.
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, h)
}

// Publish delivers the event to wildcard handlers, then to handlers
// registered for its name, in registration order. A panic in one handler is
// caught and logged so later handlers still run.
func (b *Bus) Publish(name string, payload interface{}) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	all := b.all
	named := b.handlers[name]
	b.mu.RUnlock()

	ev := Event{Type: name, Payload: payload, Timestamp: time.Now().UTC()}
	for _, h := range all {
		b.invoke(h, ev)
	}
	for _, h := range named {
		b.invoke(h, ev)
	}
}

func (b *Bus) invoke(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("event", ev.Type).Interface("panic", r).Msg("event handler panicked")
		}
	}()
	h(ev)
}

// Close stops delivery. Publish after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = make(map[string][]Handler)
	b.all = nil
}
