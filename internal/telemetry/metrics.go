// Package telemetry registers the Prometheus metrics exported at /metrics.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	SessionTransitions *prometheus.CounterVec
	Reconnects         prometheus.Counter
	ReconcilePasses    prometheus.Counter
	OverlayRebuilds    prometheus.Counter
	MountFailures      prometheus.Counter
	DuplicateOverlays  prometheus.Counter
	DroppedEvents      prometheus.Counter

	// Gauges
	PageContexts prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		SessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "overchat_session_transitions_total",
			Help: "Session state transitions by resulting state",
		}, []string{"state"})
		Reconnects = promauto.NewCounter(prometheus.CounterOpts{
			Name: "overchat_reconnects_total",
			Help: "Unexpected transport closes that entered the reconnect path",
		})
		ReconcilePasses = promauto.NewCounter(prometheus.CounterOpts{
			Name: "overchat_reconcile_passes_total",
			Help: "Reconciliation passes executed",
		})
		OverlayRebuilds = promauto.NewCounter(prometheus.CounterOpts{
			Name: "overchat_overlay_rebuilds_total",
			Help: "Overlay instances rebuilt after host page clobbered them",
		})
		MountFailures = promauto.NewCounter(prometheus.CounterOpts{
			Name: "overchat_mount_failures_total",
			Help: "Reconcile passes that found no usable mount anchor",
		})
		DuplicateOverlays = promauto.NewCounter(prometheus.CounterOpts{
			Name: "overchat_duplicate_overlays_total",
			Help: "Extra overlay instances retired by the keep-earliest sweep",
		})
		DroppedEvents = promauto.NewCounter(prometheus.CounterOpts{
			Name: "overchat_dropped_events_total",
			Help: "Broadcast events dropped because a subscriber buffer was full",
		})
		PageContexts = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "overchat_page_contexts",
			Help: "Currently connected page contexts",
		})
	})
}

// Transition records a session state transition if metrics are initialized.
func Transition(state string) {
	if SessionTransitions != nil {
		SessionTransitions.WithLabelValues(state).Inc()
	}
}

// Inc increments a counter if metrics are initialized. Components call this
// so they stay usable in tests without Init.
func Inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// AddGauge adjusts a gauge if metrics are initialized.
func AddGauge(g prometheus.Gauge, delta float64) {
	if g != nil {
		g.Add(delta)
	}
}
