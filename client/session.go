package client

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SessionOptions are the injection points of a session; every field is
// optional.
type SessionOptions struct {
	Listeners  Listeners
	OnFeedback func(Feedback)
	OnStale    func(aggregate string)
	Registerer prometheus.Registerer
	Scheduler  Scheduler
	Gateway    Gateway // nil means the HTTP gateway from Config
}

// Session owns one complete sync session: the connection, dispatcher,
// store, mutation coordinator, and route tracker, wired together with no
// package-level shared state. Two sessions never interfere.
type Session struct {
	Config      Config
	Store       *Store
	Conn        *Connection
	Coordinator *Coordinator
	Tracker     *RouteTracker

	metrics *Collector
}

// NewSession wires all components.
func NewSession(cfg Config, opts SessionOptions) *Session {
	metrics := NewCollector(opts.Registerer)
	store := NewStore(metrics)
	dispatcher := NewDispatcher(store, opts.Listeners, metrics)
	conn := NewConnection(cfg, dispatcher, opts.Scheduler, metrics)

	gw := opts.Gateway
	if gw == nil {
		gw = NewHTTPGateway(cfg)
	}

	return &Session{
		Config:      cfg,
		Store:       store,
		Conn:        conn,
		Coordinator: NewCoordinator(store, gw, cfg.UserID, opts.OnFeedback, opts.OnStale, metrics),
		Tracker:     NewRouteTracker(gw, cfg),
		metrics:     metrics,
	}
}

// Connect opens the push channel.
func (s *Session) Connect() { s.Conn.Connect() }

// Close tears the session down; the cache stays readable but receives no
// further events.
func (s *Session) Close() { s.Conn.Disconnect() }
