package page

import (
	"sync"
	"time"
)

// DisruptionKind classifies what triggered a reconcile tick.
type DisruptionKind int

const (
	// Mutation is a structural change on the host page.
	Mutation DisruptionKind = iota
	// Navigation is a location change (client-side routing included).
	Navigation
)

func (k DisruptionKind) String() string {
	if k == Navigation {
		return "navigation"
	}
	return "mutation"
}

// Disruption is one coalesced reason to re-run reconciliation.
type Disruption struct {
	Kind DisruptionKind
	At   time.Time
}

// Observer coalesces bursts of page disruptions into single reconcile ticks.
// Host pages emit storms of structural changes during their own re-renders;
// a short settle delay avoids rebuild storms. A navigation noted during the
// settle window upgrades the pending tick to Navigation.
type Observer struct {
	settle time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending DisruptionKind
	stopped bool

	out chan Disruption
}

// DefaultSettleDelay is the debounce window for disruption bursts.
const DefaultSettleDelay = 250 * time.Millisecond

// NewObserver creates an observer with the given settle delay.
func NewObserver(settle time.Duration) *Observer {
	if settle <= 0 {
		settle = DefaultSettleDelay
	}
	return &Observer{
		settle: settle,
		out:    make(chan Disruption, 1),
	}
}

// C delivers coalesced disruptions. The channel holds at most one pending
// tick; a consumer that is mid-pass will simply pick up one combined tick
// when it returns to the loop.
func (o *Observer) C() <-chan Disruption {
	return o.out
}

// Note records a disruption and (re)arms the settle timer.
func (o *Observer) Note(kind DisruptionKind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return
	}
	if kind == Navigation {
		o.pending = Navigation
	}
	if o.timer != nil {
		o.timer.Stop()
	}
	o.timer = time.AfterFunc(o.settle, o.flush)
}

func (o *Observer) flush() {
	o.mu.Lock()
	kind := o.pending
	o.pending = Mutation
	o.timer = nil
	stopped := o.stopped
	o.mu.Unlock()
	if stopped {
		return
	}
	select {
	case o.out <- Disruption{Kind: kind, At: time.Now()}:
	default:
		// A tick is already queued; it covers this disruption too.
	}
}

// Stop cancels any pending tick. Safe to call more than once.
func (o *Observer) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopped = true
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}
