// Package bridge hosts the websocket endpoint the injected page agent talks
// to. Every agent connection becomes an isolated page context with its own
// document mirror, observer, connector and reconciliation engine; nothing is
// shared between tabs.
package bridge

import (
	"context"
	_ "embed"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/overchat/overchat/internal/channel"
	"github.com/overchat/overchat/internal/connector"
	"github.com/overchat/overchat/internal/page"
	"github.com/overchat/overchat/internal/platform"
	"github.com/overchat/overchat/internal/protocol"
	"github.com/overchat/overchat/internal/reconcile"
	"github.com/overchat/overchat/internal/session"
	"github.com/overchat/overchat/internal/telemetry"
)

//go:embed script.js
var agentScript []byte

// Config assembles a bridge server.
type Config struct {
	// Registry maps page hosts to platform specs. Defaults to the builtin
	// registry.
	Registry *platform.Registry

	// Transport opens backend sessions for every page context.
	Transport connector.Transport

	// Directory routes channel names. Defaults to passthrough.
	Directory channel.Directory

	Policy      session.Policy
	SettleDelay time.Duration
	Log         zerolog.Logger
}

// Server accepts page agent connections and serves the agent script and
// operational endpoints.
type Server struct {
	cfg      Config
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewServer(cfg Config) *Server {
	if cfg.Registry == nil {
		cfg.Registry = platform.Builtin()
	}
	if cfg.Directory == nil {
		cfg.Directory = channel.PassthroughDirectory{}
	}
	if cfg.Policy == (session.Policy{}) {
		cfg.Policy = session.DefaultPolicy()
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = page.DefaultSettleDelay
	}
	return &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			// Page agents connect from arbitrary platform origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: cfg.Log,
	}
}

// Handler returns the full HTTP surface of the daemon.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/bridge", s.handleBridge)
	mux.HandleFunc("/overchat.js", s.handleScript)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) handleScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(agentScript)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleBridge(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("bridge upgrade failed")
		return
	}
	pc := &pageConn{ws: ws}
	defer ws.Close()

	// The first frame must introduce the page.
	var hello protocol.PageEvent
	if err := ws.ReadJSON(&hello); err != nil || hello.Type != protocol.EventHello {
		s.log.Debug().Err(err).Msg("bridge connection without hello")
		return
	}

	spec, ok := s.cfg.Registry.Select(hello.Host)
	if !ok {
		// Not a page we serve. Close politely so the agent goes quiet.
		s.log.Debug().Str("host", hello.Host).Msg("no platform for host")
		return
	}

	log := s.log.With().Str("platform", spec.Name).Str("host", hello.Host).Logger()
	log.Info().Str("location", hello.Location).Msg("page connected")
	telemetry.AddGauge(telemetry.PageContexts, 1)
	defer telemetry.AddGauge(telemetry.PageContexts, -1)

	doc := page.NewDocument(pc)
	doc.SetLocation(hello.Location)
	doc.SetMeta(hello.Meta)

	obs := page.NewObserver(s.cfg.SettleDelay)
	conn := connector.New(connector.Config{
		Policy:    s.cfg.Policy,
		Transport: s.cfg.Transport,
		Log:       log,
	})
	enabled := hello.Enabled == nil || *hello.Enabled
	eng := reconcile.New(reconcile.Config{
		Doc:       doc,
		Observer:  obs,
		Spec:      spec,
		Connector: conn,
		Directory: s.cfg.Directory,
		Log:       log,
		Enabled:   enabled,
	})
	defer eng.Shutdown()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, unsubscribe := conn.Hub().Subscribe("", 0)
	defer unsubscribe()
	go pc.relay(events, log)
	go eng.Run(ctx)

	eng.Reconcile(ctx, page.Navigation)

	for {
		var ev protocol.PageEvent
		if err := ws.ReadJSON(&ev); err != nil {
			log.Info().Msg("page disconnected")
			return
		}
		switch ev.Type {
		case protocol.EventNavigated:
			doc.SetLocation(ev.Location)
			obs.Note(page.Navigation)
		case protocol.EventMutated:
			doc.MarkPresent(ev.Added...)
			doc.MarkAbsent(ev.Removed...)
			obs.Note(page.Mutation)
		case protocol.EventMeta:
			doc.SetMeta(ev.Meta)
			obs.Note(page.Mutation)
		case protocol.EventEnabled:
			if ev.Enabled != nil {
				eng.SetEnabled(ctx, *ev.Enabled)
			}
		case protocol.EventHello:
			// Duplicate hello after an agent-side reconnect; the location
			// may have changed in between.
			doc.SetLocation(ev.Location)
			doc.SetMeta(ev.Meta)
			obs.Note(page.Navigation)
		default:
			log.Debug().Str("type", ev.Type).Msg("unknown page event")
		}
	}
}

// pageConn is the write half of a bridge connection. Gorilla allows one
// concurrent writer, so the reconcile engine and the relay goroutine share a
// mutex here.
type pageConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (p *pageConn) send(v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ws.WriteJSON(v)
}

// Apply forwards a DOM write to the page agent.
func (p *pageConn) Apply(op protocol.DOMOp) error {
	return p.send(op)
}

// relay pushes session status records and application messages out to the
// overlay UI until the hub subscription is cancelled.
func (p *pageConn) relay(events <-chan connector.Event, log zerolog.Logger) {
	for ev := range events {
		frame := protocol.RelayFrame{Key: ev.Key}
		switch {
		case ev.Status != nil:
			frame.Type = protocol.RelayState
			raw, err := json.Marshal(ev.Status)
			if err != nil {
				continue
			}
			frame.State = raw
		case ev.Message != nil:
			frame.Type = protocol.RelayMessage
			raw, err := json.Marshal(ev.Message)
			if err != nil {
				continue
			}
			frame.Message = raw
		default:
			continue
		}
		if err := p.send(frame); err != nil {
			log.Debug().Err(err).Msg("relay write failed")
			return
		}
	}
}
