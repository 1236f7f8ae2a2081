// Package session holds the pure state machine for one logical connection
// to one channel. It has no knowledge of transports or timers; the connector
// drives transitions and schedules retries from the values returned here.
package session

import (
	"fmt"
	"time"
)

// State is the connection lifecycle state of a session.
type State int

const (
	Idle State = iota
	Connecting
	Connected
	Reconnecting
	Disconnected
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Disconnected:
		return "disconnected"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the session can make no further progress on its
// own. Disconnected and Failed sessions are never revived; a new key always
// produces a new Session.
func (s State) Terminal() bool {
	return s == Disconnected || s == Failed
}

// Policy configures reconnect and heartbeat behavior. One Policy is shared
// by every session for the process lifetime.
type Policy struct {
	// BaseDelay is multiplied by the attempt number to produce the retry
	// delay: attempt 1 waits 1x base, attempt 2 waits 2x base, and so on.
	// The backoff is linear, not exponential; consumers render a countdown
	// from the scheduled delay.
	BaseDelay time.Duration

	// MaxAttempts is the number of consecutive reconnect attempts before
	// the session is marked Failed.
	MaxAttempts int

	// HeartbeatInterval is how often a liveness ping is sent while
	// Connected.
	HeartbeatInterval time.Duration
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		BaseDelay:         time.Second,
		MaxAttempts:       10,
		HeartbeatInterval: 20 * time.Second,
	}
}

// RetryDelay returns the delay before the given reconnect attempt.
func (p Policy) RetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return time.Duration(attempt) * p.BaseDelay
}

// Status is the transition record broadcast to consumers. It is the single
// source of truth for connectivity; consumers must not infer status from
// message traffic.
type Status struct {
	Key         string        `json:"key"`
	State       State         `json:"-"`
	StateName   string        `json:"state"`
	Attempt     int           `json:"attempt"`
	MaxAttempts int           `json:"max_attempts"`
	NextRetryIn time.Duration `json:"-"`
	// NextRetryInMs is NextRetryIn for wire consumers, only set while
	// Reconnecting.
	NextRetryInMs int64 `json:"next_retry_in_ms,omitempty"`
}

// Session is the runtime binding of a channel key to a connection attempt.
// It is owned exclusively by the connector and is not safe for concurrent
// use; the connector serializes all access.
type Session struct {
	Key       string
	CreatedAt time.Time

	state         State
	attempt       int
	lastHeartbeat time.Time
	nextRetryAt   time.Time
}

// New returns a Session in Idle for the given key.
func New(key string, now time.Time) *Session {
	return &Session{Key: key, CreatedAt: now, state: Idle}
}

func (s *Session) State() State { return s.state }
func (s *Session) Attempt() int { return s.attempt }

// LastHeartbeatAt returns when liveness was last confirmed.
func (s *Session) LastHeartbeatAt() time.Time { return s.lastHeartbeat }

func (s *Session) invalid(to State) error {
	return fmt.Errorf("session %q: invalid transition %s -> %s", s.Key, s.state, to)
}

// BeginConnect moves Idle or Reconnecting into Connecting. For Reconnecting
// sessions this is the retry firing after its scheduled delay.
func (s *Session) BeginConnect() error {
	if s.state != Idle && s.state != Reconnecting {
		return s.invalid(Connecting)
	}
	s.state = Connecting
	s.nextRetryAt = time.Time{}
	return nil
}

// Established records a successful transport handshake. Resets the attempt
// counter so a later drop starts the backoff ladder from the bottom.
func (s *Session) Established(now time.Time) error {
	if s.state != Connecting {
		return s.invalid(Connected)
	}
	s.state = Connected
	s.attempt = 0
	s.lastHeartbeat = now
	return nil
}

// Lost records an unexpected transport close or handshake failure. It
// returns whether a retry should be scheduled and, if so, after what delay.
// When the attempt count would exceed the policy maximum the session becomes
// Failed and no further automatic attempt may be made.
func (s *Session) Lost(now time.Time, p Policy) (retry bool, delay time.Duration, err error) {
	if s.state != Connected && s.state != Connecting {
		return false, 0, s.invalid(Reconnecting)
	}
	s.attempt++
	if s.attempt > p.MaxAttempts {
		s.state = Failed
		return false, 0, nil
	}
	s.state = Reconnecting
	delay = p.RetryDelay(s.attempt)
	s.nextRetryAt = now.Add(delay)
	return true, delay, nil
}

// Heartbeat records confirmed liveness.
func (s *Session) Heartbeat(now time.Time) {
	s.lastHeartbeat = now
}

// Retire is the explicit teardown requested on key change, feature disable
// or page unload. Valid from any state and terminal for this instance.
func (s *Session) Retire() {
	s.state = Disconnected
	s.nextRetryAt = time.Time{}
}

// Status snapshots the transition record for broadcast.
func (s *Session) Status(now time.Time, p Policy) Status {
	st := Status{
		Key:         s.Key,
		State:       s.state,
		StateName:   s.state.String(),
		Attempt:     s.attempt,
		MaxAttempts: p.MaxAttempts,
	}
	if s.state == Reconnecting && s.nextRetryAt.After(now) {
		st.NextRetryIn = s.nextRetryAt.Sub(now)
		st.NextRetryInMs = st.NextRetryIn.Milliseconds()
	}
	return st
}
