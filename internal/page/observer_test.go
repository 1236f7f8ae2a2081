package page

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserverCoalescesBursts(t *testing.T) {
	o := NewObserver(30 * time.Millisecond)
	defer o.Stop()

	// A burst of mutations produces a single tick after the settle delay.
	for i := 0; i < 20; i++ {
		o.Note(Mutation)
	}

	select {
	case d := <-o.C():
		assert.Equal(t, Mutation, d.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected a coalesced tick")
	}

	// No second tick follows.
	select {
	case <-o.C():
		t.Fatal("burst produced more than one tick")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestObserverNavigationWins(t *testing.T) {
	o := NewObserver(30 * time.Millisecond)
	defer o.Stop()

	o.Note(Mutation)
	o.Note(Navigation)
	o.Note(Mutation)

	select {
	case d := <-o.C():
		assert.Equal(t, Navigation, d.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected a tick")
	}

	// The navigation flag resets once flushed.
	o.Note(Mutation)
	select {
	case d := <-o.C():
		assert.Equal(t, Mutation, d.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected a tick")
	}
}

func TestObserverStopSilences(t *testing.T) {
	o := NewObserver(100 * time.Millisecond)
	o.Note(Mutation)
	o.Stop()
	o.Note(Navigation)

	select {
	case <-o.C():
		t.Fatal("tick after Stop")
	case <-time.After(250 * time.Millisecond):
	}
}

func TestObserverDefaultSettle(t *testing.T) {
	o := NewObserver(0)
	defer o.Stop()
	require.Equal(t, DefaultSettleDelay, o.settle)
}
