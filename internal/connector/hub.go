package connector

import (
	"sync"

	"github.com/overchat/overchat/internal/protocol"
	"github.com/overchat/overchat/internal/session"
	"github.com/overchat/overchat/internal/telemetry"
)

// Event is one broadcast from the connector: either a session status record
// or an inbound application message, never both.
type Event struct {
	Key     string
	Status  *session.Status
	Message *protocol.Envelope
}

// Hub fans connector events out to registered observer surfaces. Delivery
// is scoped: a subscriber only receives events for the key it registered,
// so two unrelated channels open in different page contexts never see each
// other's traffic. Subscribing with key "" receives everything published on
// this hub.
//
// Events are delivered in publish order per subscriber. A subscriber that
// cannot keep up loses events rather than stalling the connector; drops are
// counted.
type Hub struct {
	mu     sync.Mutex
	subs   map[int64]*subscriber
	nextID int64
}

type subscriber struct {
	key string
	ch  chan Event
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int64]*subscriber)}
}

// Subscribe registers an observer for events matching key ("" for all).
// The returned cancel func unregisters and closes the channel.
func (h *Hub) Subscribe(key string, buf int) (<-chan Event, func()) {
	if buf <= 0 {
		buf = 64
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	sub := &subscriber{key: key, ch: make(chan Event, buf)}
	h.subs[id] = sub

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if s, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(s.ch)
		}
	}
	return sub.ch, cancel
}

// Publish delivers an event to all matching subscribers without blocking.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		if sub.key != "" && sub.key != ev.Key {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			telemetry.Inc(telemetry.DroppedEvents)
		}
	}
}
