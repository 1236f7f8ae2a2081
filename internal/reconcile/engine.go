// Package reconcile re-derives desired state (channel key, overlay, session)
// from observed page state and corrects drift. The engine is the sole
// authority allowed to replace the overlay instance or the session, and it
// always swaps them together so their keys never diverge.
package reconcile

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/overchat/overchat/internal/channel"
	"github.com/overchat/overchat/internal/connector"
	"github.com/overchat/overchat/internal/overlay"
	"github.com/overchat/overchat/internal/page"
	"github.com/overchat/overchat/internal/platform"
	"github.com/overchat/overchat/internal/telemetry"
)

// Config assembles an Engine for one page context.
type Config struct {
	Doc       *page.Document
	Observer  *page.Observer
	Spec      platform.Spec
	Connector *connector.Connector
	Directory channel.Directory
	Log       zerolog.Logger

	// Enabled is the initial extension toggle state.
	Enabled bool
}

// Engine is the reconciliation loop for one page context.
type Engine struct {
	doc      *page.Document
	obs      *page.Observer
	resolver *channel.Resolver
	planner  *overlay.Planner
	conn     *connector.Connector
	dir      channel.Directory
	log      zerolog.Logger

	// mu makes each reconcile pass atomic: no other disruption is
	// processed mid-transition, and overlay creation is mutually
	// exclusive by construction rather than deduplicated after the fact.
	mu       sync.Mutex
	enabled  bool
	boundKey string
	current  *overlay.Instance
}

// New builds an engine. The directory defaults to routing every channel by
// its own key.
func New(cfg Config) *Engine {
	if cfg.Directory == nil {
		cfg.Directory = channel.PassthroughDirectory{}
	}
	return &Engine{
		doc:      cfg.Doc,
		obs:      cfg.Observer,
		resolver: channel.NewResolver(cfg.Spec),
		planner:  overlay.NewPlanner(cfg.Doc, cfg.Spec, cfg.Log),
		conn:     cfg.Connector,
		dir:      cfg.Directory,
		log:      cfg.Log,
		enabled:  cfg.Enabled,
	}
}

// Run consumes debounced disruptions until the context ends. Rebuilds are
// never performed inside the disruption callback itself; the observer's
// settle delay has already coalesced the burst by the time a tick arrives.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-e.obs.C():
			e.log.Debug().Stringer("kind", d.Kind).Msg("disruption tick")
			e.Reconcile(ctx, d.Kind)
		}
	}
}

// BoundKey returns the channel key the engine currently serves.
func (e *Engine) BoundKey() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.boundKey
}

// SetEnabled flips the extension toggle. Disabling tears everything down;
// enabling runs a fresh reconciliation pass.
func (e *Engine) SetEnabled(ctx context.Context, on bool) {
	e.mu.Lock()
	e.enabled = on
	e.mu.Unlock()
	e.log.Info().Bool("enabled", on).Msg("toggle changed")
	e.Reconcile(ctx, page.Navigation)
}

// Shutdown stops observation and retires the overlay and session. Called on
// page unload.
func (e *Engine) Shutdown() {
	e.obs.Stop()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.retireLocked()
}

// Reconcile executes one pass. kind distinguishes navigations from pure DOM
// churn: churn alone never touches the session, while a navigation may
// revive a Failed session for the same key.
func (e *Engine) Reconcile(ctx context.Context, kind page.DisruptionKind) {
	e.mu.Lock()
	defer e.mu.Unlock()
	telemetry.Inc(telemetry.ReconcilePasses)

	if !e.enabled {
		e.retireLocked()
		return
	}

	key, ok := e.resolver.Resolve(e.doc)
	if !ok {
		key = ""
	}
	route := key
	if key != "" {
		id, found, err := e.dir.Lookup(ctx, key)
		switch {
		case err != nil:
			// Lookup trouble is not a teardown reason; keep the current
			// binding and try again on the next disruption.
			e.log.Warn().Err(err).Str("key", key).Msg("directory lookup failed")
			return
		case !found:
			// Unknown channel is a steady state: no overlay, no error.
			key, route = "", ""
		default:
			route = id
		}
	}

	if key != e.boundKey {
		e.swapLocked(key, route)
		return
	}
	if key == "" {
		return
	}
	e.healLocked(key, route, kind)
}

// swapLocked retires the current overlay/session pair and, for a non-empty
// key, creates the new pair. The two halves happen under one lock hold so
// no observer ever sees a session and overlay with mismatched keys.
func (e *Engine) swapLocked(key, route string) {
	e.retireLocked()
	if key == "" {
		return
	}
	e.boundKey = key
	e.current = e.planner.Ensure(key)
	if e.current == nil {
		// Non-fatal: the native widget stays visible and the next
		// disruption retries the mount. The session still connects so
		// chat is live the moment an anchor appears.
		telemetry.Inc(telemetry.MountFailures)
	}
	e.conn.EnsureSession(key, route)
}

// healLocked repairs drift while the key is unchanged: duplicate overlay
// instances are swept (earliest-created wins) and a clobbered overlay is
// rebuilt without touching the session. DOM churn never forces a reconnect.
func (e *Engine) healLocked(key, route string, kind page.DisruptionKind) {
	mounts := e.doc.Mounts()
	if len(mounts) > 1 {
		keep := mounts[0]
		for _, m := range mounts[1:] {
			e.planner.RetireMountID(m.ID)
			telemetry.Inc(telemetry.DuplicateOverlays)
		}
		if e.current == nil || e.current.MountID != keep.ID {
			e.current = &overlay.Instance{MountID: keep.ID, Key: keep.Key, Anchor: keep.Anchor, CreatedAt: keep.CreatedAt}
		}
	}

	if !e.planner.Alive(e.current) {
		e.current = e.planner.Ensure(key)
		if e.current != nil {
			telemetry.Inc(telemetry.OverlayRebuilds)
			e.log.Info().Str("key", key).Msg("overlay rebuilt after host page disruption")
		} else {
			telemetry.Inc(telemetry.MountFailures)
		}
	}

	// A fresh navigation to the same channel may revive a session that
	// exhausted its retries; EnsureSession is a no-op while healthy.
	if kind == page.Navigation {
		e.conn.EnsureSession(key, route)
	}
}

func (e *Engine) retireLocked() {
	if e.current != nil {
		e.planner.Retire(e.current)
		e.current = nil
	}
	// Sweep strays so a retired context never leaves mounts behind.
	for _, m := range e.doc.Mounts() {
		e.planner.RetireMountID(m.ID)
	}
	e.boundKey = ""
	e.conn.Teardown()
}
