// Package connector owns the one live session per page context: it drives
// the session state machine, performs heartbeat and linear-backoff
// reconnects, and broadcasts state and inbound messages through a key-scoped
// hub. All session mutation is serialized on one mutex, so handlers run to
// completion before the next is dispatched.
package connector

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/overchat/overchat/internal/protocol"
	"github.com/overchat/overchat/internal/session"
	"github.com/overchat/overchat/internal/telemetry"
)

// Config assembles a Connector.
type Config struct {
	Policy    session.Policy
	Transport Transport
	Hub       *Hub
	Log       zerolog.Logger
}

// Connector holds at most one active session at a time. Only the reconcile
// loop may ask it to switch keys, and never concurrently for two keys.
type Connector struct {
	policy    session.Policy
	transport Transport
	hub       *Hub
	log       zerolog.Logger

	// mu serializes every session mutation: reconcile calls, transport
	// callbacks, timer fires. Handlers are never re-entrant with each
	// other.
	mu  sync.Mutex
	cur *active
}

// active bundles the session with its transport resources. Stale callbacks
// (from a retired generation) compare their pointer against cur and bail.
type active struct {
	sess   *session.Session
	route  string
	ctx    context.Context
	cancel context.CancelFunc

	conn       Conn
	retryTimer *time.Timer
	hbStop     chan struct{}
}

// New builds a connector.
func New(cfg Config) *Connector {
	if cfg.Policy == (session.Policy{}) {
		cfg.Policy = session.DefaultPolicy()
	}
	if cfg.Hub == nil {
		cfg.Hub = NewHub()
	}
	return &Connector{
		policy:    cfg.Policy,
		transport: cfg.Transport,
		hub:       cfg.Hub,
		log:       cfg.Log,
	}
}

// Hub returns the broadcast hub for this connector.
func (c *Connector) Hub() *Hub { return c.hub }

// Policy returns the shared reconnect policy.
func (c *Connector) Policy() session.Policy { return c.policy }

// CurrentKey returns the key of the active session, "" when none.
func (c *Connector) CurrentKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil {
		return ""
	}
	return c.cur.sess.Key
}

// Status snapshots the active session's status.
func (c *Connector) Status() (session.Status, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil {
		return session.Status{}, false
	}
	return c.cur.sess.Status(time.Now(), c.policy), true
}

// EnsureSession makes the connector own a session for key, dialing the
// backend at route. When the existing session already has this key and is
// Connected or Connecting the call is a no-op, so repeated reconcile passes
// cost nothing. Any other existing session, including one for the same key
// that is Reconnecting or Failed, is fully retired first; a key never
// reuses a session instance. The dial runs in the background; the session
// lifetime is bounded by Teardown, not by a caller context.
func (c *Connector) EnsureSession(key, route string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cur != nil && c.cur.sess.Key == key {
		switch c.cur.sess.State() {
		case session.Connected, session.Connecting:
			return
		}
	}

	c.teardownLocked()

	sctx, cancel := context.WithCancel(context.Background())
	a := &active{
		sess:   session.New(key, time.Now()),
		route:  route,
		ctx:    sctx,
		cancel: cancel,
	}
	c.cur = a

	_ = a.sess.BeginConnect()
	c.broadcastLocked(a)
	c.log.Info().Str("key", key).Str("route", route).Msg("session starting")
	go c.connect(a)
}

// Teardown forces the current session, if any, to Disconnected and releases
// its timers and transport. Safe to call when no session exists.
func (c *Connector) Teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
}

func (c *Connector) teardownLocked() {
	a := c.cur
	if a == nil {
		return
	}
	c.cur = nil
	a.cancel()
	if a.retryTimer != nil {
		a.retryTimer.Stop()
		a.retryTimer = nil
	}
	if a.hbStop != nil {
		close(a.hbStop)
		a.hbStop = nil
	}
	if a.conn != nil {
		_ = a.conn.Close()
		a.conn = nil
	}
	a.sess.Retire()
	c.broadcastLocked(a)
	c.log.Info().Str("key", a.sess.Key).Msg("session retired")
}

// connect dials the backend for a session generation. Runs off the lock;
// re-checks ownership before touching connector state.
func (c *Connector) connect(a *active) {
	conn, err := c.transport.Dial(a.ctx, a.route)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur != a {
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		c.log.Warn().Err(err).Str("key", a.sess.Key).Msg("dial failed")
		c.lossLocked(a)
		return
	}

	a.conn = conn
	_ = a.sess.Established(time.Now())
	c.broadcastLocked(a)
	c.log.Info().Str("key", a.sess.Key).Msg("session connected")

	a.hbStop = make(chan struct{})
	go c.heartbeat(a, a.hbStop)
	go c.readPump(a, conn)
}

// readPump forwards inbound envelopes until the transport closes. Liveness
// frames never leave the connector; everything else is fanned out verbatim.
func (c *Connector) readPump(a *active, conn Conn) {
	for {
		env, err := conn.ReadEnvelope()
		if err != nil {
			c.mu.Lock()
			if c.cur == a && a.conn == conn {
				c.log.Warn().Err(err).Str("key", a.sess.Key).Msg("transport closed unexpectedly")
				c.lossLocked(a)
			}
			c.mu.Unlock()
			return
		}

		switch env.Type {
		case protocol.TypePing:
			c.mu.Lock()
			if c.cur == a {
				a.sess.Heartbeat(time.Now())
				_ = conn.WriteEnvelope(protocol.Pong(time.Now().UnixMilli()))
			}
			c.mu.Unlock()
		case protocol.TypePong:
			c.mu.Lock()
			if c.cur == a {
				a.sess.Heartbeat(time.Now())
			}
			c.mu.Unlock()
		default:
			c.mu.Lock()
			if c.cur == a {
				msg := env
				c.hub.Publish(Event{Key: a.sess.Key, Message: &msg})
			}
			c.mu.Unlock()
		}
	}
}

// heartbeat sends liveness pings while Connected. A failed ping write means
// the transport is gone and is treated identically to an unexpected close.
func (c *Connector) heartbeat(a *active, stop chan struct{}) {
	ticker := time.NewTicker(c.policy.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.cur != a || a.sess.State() != session.Connected || a.conn == nil {
				c.mu.Unlock()
				return
			}
			if err := a.conn.WriteEnvelope(protocol.Ping(time.Now().UnixMilli())); err != nil {
				c.log.Warn().Err(err).Str("key", a.sess.Key).Msg("heartbeat write failed")
				c.lossLocked(a)
				c.mu.Unlock()
				return
			}
			c.mu.Unlock()
		}
	}
}

// lossLocked runs the reconnect branch after an unexpected close. Cancels
// any previously scheduled retry before arming a new one, so at most one
// reconnect timer is ever pending per session.
func (c *Connector) lossLocked(a *active) {
	if a.hbStop != nil {
		close(a.hbStop)
		a.hbStop = nil
	}
	if a.conn != nil {
		_ = a.conn.Close()
		a.conn = nil
	}

	telemetry.Inc(telemetry.Reconnects)
	retry, delay, err := a.sess.Lost(time.Now(), c.policy)
	if err != nil {
		return
	}
	c.broadcastLocked(a)

	if !retry {
		c.log.Error().Str("key", a.sess.Key).Int("attempts", a.sess.Attempt()).
			Msg("reconnect attempts exhausted; session failed")
		return
	}

	c.log.Info().Str("key", a.sess.Key).Int("attempt", a.sess.Attempt()).
		Dur("delay", delay).Msg("reconnect scheduled")
	if a.retryTimer != nil {
		a.retryTimer.Stop()
	}
	a.retryTimer = time.AfterFunc(delay, func() { c.retryFire(a) })
}

// retryFire moves a Reconnecting session back into Connecting when its
// scheduled delay elapses. The Reconnecting broadcast always precedes this
// Connecting broadcast for the same attempt.
func (c *Connector) retryFire(a *active) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur != a {
		return
	}
	a.retryTimer = nil
	if err := a.sess.BeginConnect(); err != nil {
		return
	}
	c.broadcastLocked(a)
	go c.connect(a)
}

func (c *Connector) broadcastLocked(a *active) {
	st := a.sess.Status(time.Now(), c.policy)
	telemetry.Transition(st.StateName)
	c.hub.Publish(Event{Key: st.Key, Status: &st})
}
