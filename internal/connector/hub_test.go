package connector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overchat/overchat/internal/protocol"
	"github.com/overchat/overchat/internal/session"
)

func TestHubScopedDelivery(t *testing.T) {
	h := NewHub()
	alpha, cancelA := h.Subscribe("alpha", 4)
	defer cancelA()
	beta, cancelB := h.Subscribe("beta", 4)
	defer cancelB()
	all, cancelAll := h.Subscribe("", 4)
	defer cancelAll()

	h.Publish(Event{Key: "alpha", Message: &protocol.Envelope{Type: protocol.TypeChatMessage}})

	// Delivery is scoped by key; unrelated subscribers see nothing.
	select {
	case ev := <-alpha:
		assert.Equal(t, "alpha", ev.Key)
	default:
		t.Fatal("alpha subscriber missed its event")
	}
	select {
	case <-beta:
		t.Fatal("beta subscriber received alpha traffic")
	default:
	}
	select {
	case <-all:
	default:
		t.Fatal("wildcard subscriber missed the event")
	}
}

func TestHubPublishOrder(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("alpha", 8)
	defer cancel()

	for i := 1; i <= 3; i++ {
		st := session.Status{Key: "alpha", Attempt: i}
		h.Publish(Event{Key: "alpha", Status: &st})
	}
	for i := 1; i <= 3; i++ {
		ev := <-ch
		require.NotNil(t, ev.Status)
		assert.Equal(t, i, ev.Status.Attempt)
	}
}

func TestHubDropsWhenSubscriberFull(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("alpha", 1)
	defer cancel()

	h.Publish(Event{Key: "alpha"})
	h.Publish(Event{Key: "alpha"}) // dropped, not blocked

	<-ch
	select {
	case <-ch:
		t.Fatal("second event should have been dropped")
	default:
	}
}

func TestHubCancelClosesChannel(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("alpha", 1)
	cancel()
	cancel() // idempotent

	_, ok := <-ch
	assert.False(t, ok)

	// Publishing after cancel must not panic.
	h.Publish(Event{Key: "alpha"})
}
