package client

import (
	"encoding/json"
	"time"

	"github.com/paulmach/orb"
)

// TerritoryStatus is the contest state of a territory.
type TerritoryStatus string

const (
	StatusClaimed   TerritoryStatus = "claimed"
	StatusContested TerritoryStatus = "contested"
	StatusNeutral   TerritoryStatus = "neutral"
)

// Territory is a claimed geographic region. Instances held by the Store are
// never handed out directly; readers get clones.
type Territory struct {
	ID           string          `json:"id"`
	Owner        string          `json:"owner"`
	Boundary     orb.Ring        `json:"boundary"`
	AreaM2       float64         `json:"area"`
	Status       TerritoryStatus `json:"status"`
	ContestCount int             `json:"contestCount"`
	LastActivity time.Time       `json:"lastActivity"`
}

// Clone returns a deep copy, including the boundary ring.
func (t Territory) Clone() Territory {
	out := t
	if t.Boundary != nil {
		out.Boundary = make(orb.Ring, len(t.Boundary))
		copy(out.Boundary, t.Boundary)
	}
	return out
}

// EventType classifies an authoritative territory event.
type EventType string

const (
	EventClaimed          EventType = "claimed"
	EventAttacked         EventType = "attacked"
	EventLost             EventType = "lost"
	EventContested        EventType = "contested"
	EventOwnershipChanged EventType = "ownership_changed"
	EventConflictResolved EventType = "conflict_resolved"
)

// TerritoryEvent is a decoded push-channel event. It is immutable once
// constructed; only the Dispatcher produces them.
type TerritoryEvent struct {
	Type      EventType
	Territory Territory
	Timestamp time.Time
	Actor     string // optional: who triggered the event
}

// Coordinate is a single raw location sample. Optional sensor fields are
// pointers so absence is distinguishable from zero.
type Coordinate struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  *float64  `json:"altitude,omitempty"` // meters
	Accuracy  *float64  `json:"accuracy,omitempty"` // meters
	SpeedKmh  *float64  `json:"speed,omitempty"`
	Bearing   *float64  `json:"bearing,omitempty"` // degrees, [0,360)
	Timestamp time.Time `json:"timestamp"`
}

// Point converts the sample to an orb lon/lat point.
func (c Coordinate) Point() orb.Point {
	return orb.Point{c.Longitude, c.Latitude}
}

// Route is an ordered, validated coordinate sequence tracked against the
// backend gateway.
type Route struct {
	ID          string       `json:"id"`
	Coordinates []Coordinate `json:"coordinates"`
}

// Envelope is the JSON wire format of every push-channel frame, both
// directions.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

// Inbound and outbound frame types.
const (
	FrameConnectionEstablished = "connection_established"
	FrameNotification          = "notification"
	FramePing                  = "ping"
	FramePong                  = "pong"
	FrameMarkRead              = "mark_read"

	frameTerritoryPrefix = "territory_"
)

// eventPayload is the data shape of territory_* frames.
type eventPayload struct {
	Territory Territory `json:"territory"`
	Actor     string    `json:"actor,omitempty"`
}

// Notification is a user-facing push message; Kind may name a territory
// sub-type in which case the dispatcher also derives a state update.
type Notification struct {
	ID        string     `json:"id"`
	Kind      string     `json:"kind"`
	Message   string     `json:"message"`
	Territory *Territory `json:"territory,omitempty"`
	Actor     string     `json:"actor,omitempty"`
}
