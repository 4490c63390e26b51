package client

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector bundles the session's Prometheus metrics. A nil *Collector is
// valid and drops all observations, so components never need nil checks at
// call sites beyond the receiver.
type Collector struct {
	gatherer prometheus.Gatherer

	framesTotal   *prometheus.CounterVec
	framesDropped prometheus.Counter
	reconnects    prometheus.Counter
	connState     prometheus.Gauge
	eventsApplied *prometheus.CounterVec
	mutations     *prometheus.CounterVec
	territories   prometheus.Gauge
}

// NewCollector registers the session metrics against reg, defaulting to a
// private registry when nil so parallel sessions never collide.
func NewCollector(reg prometheus.Registerer) *Collector {
	gatherer := prometheus.DefaultGatherer
	if reg == nil {
		private := prometheus.NewRegistry()
		reg = private
		gatherer = private
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{
		gatherer: gatherer,
		framesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "turf_frames_total",
			Help: "Inbound push-channel frames, labeled by frame type.",
		}, []string{"type"}),
		framesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "turf_frames_dropped_total",
			Help: "Frames dropped because they could not be decoded.",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "turf_reconnect_attempts_total",
			Help: "Automatic reconnection attempts scheduled after unclean closes.",
		}),
		connState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "turf_connection_state",
			Help: "Current connection state as its enum ordinal.",
		}),
		eventsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "turf_events_applied_total",
			Help: "Territory events applied to the local cache, by event type.",
		}, []string{"type"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "turf_mutations_total",
			Help: "Optimistic mutations, labeled by outcome (committed, rolled_back, rejected).",
		}, []string{"outcome"}),
		territories: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "turf_territories",
			Help: "Number of territories in the local cache.",
		}),
	}

	reg.MustRegister(
		c.framesTotal, c.framesDropped, c.reconnects, c.connState,
		c.eventsApplied, c.mutations, c.territories,
	)
	return c
}

// Gatherer exposes the registry backing this collector for the debug
// /metrics endpoint.
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return prometheus.DefaultGatherer
	}
	return c.gatherer
}

func (c *Collector) frameReceived(frameType string) {
	if c == nil {
		return
	}
	c.framesTotal.WithLabelValues(frameType).Inc()
}

func (c *Collector) frameDropped() {
	if c == nil {
		return
	}
	c.framesDropped.Inc()
}

func (c *Collector) reconnectScheduled() {
	if c == nil {
		return
	}
	c.reconnects.Inc()
}

func (c *Collector) stateChanged(s ConnState) {
	if c == nil {
		return
	}
	c.connState.Set(float64(s))
}

func (c *Collector) eventApplied(eventType string) {
	if c == nil {
		return
	}
	c.eventsApplied.WithLabelValues(eventType).Inc()
}

func (c *Collector) mutationFinished(outcome string) {
	if c == nil {
		return
	}
	c.mutations.WithLabelValues(outcome).Inc()
}

func (c *Collector) territoryCount(n int) {
	if c == nil {
		return
	}
	c.territories.Set(float64(n))
}
