package client

import (
	"encoding/json"
	"strings"
	"time"
)

// transport is what the dispatcher needs from the connection: a way to
// answer pings and to record the connection identity.
type transport interface {
	SendEnvelope(frameType string, data any) error
	noteCorrelationID(id string)
}

// Listeners are the external callbacks a session registers; all are
// optional. They decouple user-facing notification (toasts, banners) from
// internal reconciliation.
type Listeners struct {
	OnEvent        func(TerritoryEvent)
	OnNotification func(Notification)
	OnStateChange  func(ConnState, string)
}

// Dispatcher decodes raw push-channel frames into typed domain events and
// routes them: territory events go to the store exactly once and are
// re-emitted to the external listener; heartbeat frames go back to the
// connection; everything undecodable is logged and dropped so one bad frame
// can never halt the stream.
type Dispatcher struct {
	store     *Store
	listeners Listeners
	metrics   *Collector
	sender    transport // bound once during session construction
}

// NewDispatcher creates a dispatcher over the given store.
func NewDispatcher(store *Store, listeners Listeners, metrics *Collector) *Dispatcher {
	return &Dispatcher{store: store, listeners: listeners, metrics: metrics}
}

func (d *Dispatcher) bind(t transport) { d.sender = t }

// HandleStateChange forwards connection lifecycle transitions to the
// external listener.
func (d *Dispatcher) HandleStateChange(s ConnState, errMsg string) {
	if d.listeners.OnStateChange != nil {
		d.listeners.OnStateChange(s, errMsg)
	}
}

// HandleFrame decodes one raw text frame. Parsing never propagates an
// error to the caller.
func (d *Dispatcher) HandleFrame(raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		d.metrics.frameDropped()
		Log.Warnf("dropping undecodable frame: %v", err)
		return
	}
	if env.Type == "" {
		d.metrics.frameDropped()
		Log.Warn("dropping frame without a type")
		return
	}
	d.metrics.frameReceived(env.Type)

	switch {
	case env.Type == FrameConnectionEstablished:
		var data struct {
			ConnectionID string `json:"connectionId"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			d.metrics.frameDropped()
			Log.Warnf("dropping malformed %s frame: %v", env.Type, err)
			return
		}
		if d.sender != nil {
			d.sender.noteCorrelationID(data.ConnectionID)
		}
		Log.Infof("connection established: id=%s", data.ConnectionID)

	case env.Type == FramePing:
		// Heartbeat: answer the server immediately.
		if d.sender != nil {
			_ = d.sender.SendEnvelope(FramePong, nil)
		}

	case env.Type == FramePong:
		// Receipt alone refreshed the idle clock; nothing else to do.

	case env.Type == FrameNotification:
		var n Notification
		if err := json.Unmarshal(env.Data, &n); err != nil {
			d.metrics.frameDropped()
			Log.Warnf("dropping malformed notification: %v", err)
			return
		}
		if d.listeners.OnNotification != nil {
			d.listeners.OnNotification(n)
		}
		// Territory sub-types additionally update local state.
		if ev, ok := notificationEvent(n, env.Timestamp); ok {
			d.deliver(ev)
		}

	case strings.HasPrefix(env.Type, frameTerritoryPrefix):
		var p eventPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			d.metrics.frameDropped()
			Log.Warnf("dropping malformed %s frame: %v", env.Type, err)
			return
		}
		d.deliver(TerritoryEvent{
			Type:      EventType(strings.TrimPrefix(env.Type, frameTerritoryPrefix)),
			Territory: p.Territory,
			Timestamp: parseFrameTime(env.Timestamp),
			Actor:     p.Actor,
		})

	default:
		Log.Infof("ignoring unknown frame type %q", env.Type)
	}
}

// deliver hands a decoded event to the store exactly once and re-emits it
// as a generic signal for external listeners. Unknown event types are a
// state no-op inside Apply but still reach the listener, which keeps the
// client forward-compatible with new event kinds.
func (d *Dispatcher) deliver(ev TerritoryEvent) {
	d.store.Apply(ev)
	if d.listeners.OnEvent != nil {
		d.listeners.OnEvent(ev)
	}
}

// notificationEvent derives a territory event from a notification whose
// kind names a territory sub-type and that carries a snapshot.
func notificationEvent(n Notification, ts string) (TerritoryEvent, bool) {
	if n.Territory == nil || !strings.HasPrefix(n.Kind, frameTerritoryPrefix) {
		return TerritoryEvent{}, false
	}
	return TerritoryEvent{
		Type:      EventType(strings.TrimPrefix(n.Kind, frameTerritoryPrefix)),
		Territory: *n.Territory,
		Timestamp: parseFrameTime(ts),
		Actor:     n.Actor,
	}, true
}

func parseFrameTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Now()
}
