package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Route tracking errors.
var (
	ErrNoActiveRoute   = errors.New("no active route")
	ErrRouteNotClosed  = errors.New("route is not a closed loop")
	ErrInvalidSample   = errors.New("invalid coordinate sample")
	ErrInvalidSequence = errors.New("invalid coordinate sequence")
)

// RouteTracker runs the route-tracking workflow: raw samples pass the
// validator before joining the active route, and only a chronologically
// sound closed loop can be completed and handed to the mutation
// coordinator as a claim.
type RouteTracker struct {
	gateway   Gateway
	opts      ValidationOptions
	tolerance float64

	mu       sync.Mutex
	routeID  string
	coords   []Coordinate
	rejected int
}

// NewRouteTracker builds a tracker with the configured validation bounds.
func NewRouteTracker(gateway Gateway, cfg Config) *RouteTracker {
	return &RouteTracker{
		gateway:   gateway,
		opts:      cfg.validation(),
		tolerance: cfg.LoopToleranceMeters,
	}
}

// Start opens a new route on the backend, discarding any previous progress.
func (t *RouteTracker) Start(ctx context.Context) error {
	resp, err := t.gateway.StartRoute(ctx)
	if err != nil {
		return fmt.Errorf("start route: %w", err)
	}
	if !resp.Success || resp.RouteID == "" {
		return classifyMutationError(resp, nil)
	}
	t.mu.Lock()
	t.routeID = resp.RouteID
	t.coords = nil
	t.rejected = 0
	t.mu.Unlock()
	Log.Infof("route %s started", resp.RouteID)
	return nil
}

// Add validates one sample and appends it to the active route, pushing it
// to the backend. Invalid samples are rejected with every failing rule
// listed and never enter the route.
func (t *RouteTracker) Add(ctx context.Context, c Coordinate) error {
	t.mu.Lock()
	if t.routeID == "" {
		t.mu.Unlock()
		return ErrNoActiveRoute
	}
	res := ValidateCoordinate(c, t.opts)
	if !res.IsValid {
		t.rejected++
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInvalidSample, strings.Join(res.Errors, "; "))
	}
	t.coords = append(t.coords, c)
	id := t.routeID
	t.mu.Unlock()

	if _, err := t.gateway.AddCoordinates(ctx, id, []Coordinate{c}); err != nil {
		return fmt.Errorf("push coordinate: %w", err)
	}
	return nil
}

// Complete re-validates the whole sequence, checks closed-loop eligibility,
// and finishes the route on the backend. The returned Route is ready for
// Coordinator.ClaimTerritory.
func (t *RouteTracker) Complete(ctx context.Context) (Route, error) {
	t.mu.Lock()
	id := t.routeID
	coords := make([]Coordinate, len(t.coords))
	copy(coords, t.coords)
	t.mu.Unlock()

	if id == "" {
		return Route{}, ErrNoActiveRoute
	}
	seq := ValidateCoordinateSequence(coords, t.opts)
	if !seq.IsValid {
		return Route{}, fmt.Errorf("%w: %d rule violations", ErrInvalidSequence, len(seq.Violations))
	}
	if !IsClosedLoop(coords, t.tolerance) {
		return Route{}, ErrRouteNotClosed
	}

	resp, err := t.gateway.CompleteRoute(ctx, id)
	if err != nil {
		return Route{}, fmt.Errorf("complete route: %w", err)
	}
	if !resp.Success {
		return Route{}, classifyMutationError(resp, nil)
	}

	t.mu.Lock()
	t.routeID = ""
	t.mu.Unlock()
	return Route{ID: id, Coordinates: coords}, nil
}

// Stats reports the derived metrics of the route in progress.
func (t *RouteTracker) Stats() (distanceMeters, speedKmh float64, samples, rejected int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return TotalDistance(t.coords), AverageSpeedKmh(t.coords), len(t.coords), t.rejected
}
