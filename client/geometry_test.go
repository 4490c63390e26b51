package client

import (
	"math"
	"testing"
	"time"
)

func coord(lat, lon float64, ts time.Time) Coordinate {
	return Coordinate{Latitude: lat, Longitude: lon, Timestamp: ts}
}

func TestDistance_Reflexive(t *testing.T) {
	points := []Coordinate{
		coord(0, 0, time.Time{}),
		coord(51.5, -0.12, time.Time{}),
		coord(-89.9, 179.9, time.Time{}),
	}
	for _, p := range points {
		if d := Distance(p, p); d != 0 {
			t.Errorf("Distance(p, p) = %v for %+v, want 0", d, p)
		}
	}
}

func TestDistance_Symmetric(t *testing.T) {
	a := coord(48.8566, 2.3522, time.Time{})  // Paris
	b := coord(40.7128, -74.006, time.Time{}) // New York
	ab := Distance(a, b)
	ba := Distance(b, a)
	if math.Abs(ab-ba) > 1e-6 {
		t.Errorf("Distance not symmetric: %v vs %v", ab, ba)
	}
	// Sanity: Paris to New York is roughly 5,840 km.
	if ab < 5.7e6 || ab > 6.0e6 {
		t.Errorf("Distance(Paris, NYC) = %vm, outside plausible range", ab)
	}
}

func TestTotalDistance_FewerThanTwoPoints(t *testing.T) {
	if d := TotalDistance(nil); d != 0 {
		t.Errorf("TotalDistance(nil) = %v, want 0", d)
	}
	if d := TotalDistance([]Coordinate{coord(1, 1, time.Time{})}); d != 0 {
		t.Errorf("TotalDistance(single) = %v, want 0", d)
	}
}

func TestAverageSpeed_NonPositiveElapsed(t *testing.T) {
	t0 := time.Now()
	coords := []Coordinate{coord(0, 0, t0), coord(0, 0.01, t0)}
	if s := AverageSpeedKmh(coords); s != 0 {
		t.Errorf("AverageSpeedKmh with zero elapsed = %v, want 0", s)
	}
}

func TestIsClosedLoop_TooFewPoints(t *testing.T) {
	t0 := time.Now()
	// Three identical points: perfect geometry, still not a loop.
	coords := []Coordinate{coord(0, 0, t0), coord(0, 0, t0.Add(time.Second)), coord(0, 0, t0.Add(2 * time.Second))}
	if IsClosedLoop(coords, 50) {
		t.Error("IsClosedLoop returned true for fewer than 4 points")
	}
}

func TestIsClosedLoop_OpenPath(t *testing.T) {
	t0 := time.Now()
	coords := []Coordinate{
		coord(0, 0, t0),
		coord(0, 0.01, t0.Add(10 * time.Second)),
		coord(0.01, 0.01, t0.Add(20 * time.Second)),
		coord(0.01, 0, t0.Add(30 * time.Second)), // ~1.1km from start
	}
	if IsClosedLoop(coords, 50) {
		t.Error("IsClosedLoop returned true for an open path")
	}
}

// A square-ish loop: three ~111-157m legs returning to the start.
func TestRouteLoopMetrics(t *testing.T) {
	t0 := time.Now()
	coords := []Coordinate{
		coord(0, 0, t0),
		coord(0, 0.001, t0.Add(10 * time.Second)),
		coord(0.001, 0.001, t0.Add(20 * time.Second)),
		coord(0, 0, t0.Add(30 * time.Second)),
	}

	if !IsClosedLoop(coords, 50) {
		t.Error("expected the loop to be closed: first and last points coincide")
	}

	total := TotalDistance(coords)
	if total < 300 || total > 450 {
		t.Errorf("TotalDistance = %vm, want three ~111-157m legs", total)
	}
	for i := 1; i < len(coords); i++ {
		leg := Distance(coords[i-1], coords[i])
		if leg < 110 || leg > 158 {
			t.Errorf("leg %d = %vm, want within [110, 158]", i, leg)
		}
	}

	speed := AverageSpeedKmh(coords)
	want := total / 30 * 3.6
	if math.Abs(speed-want) > 1e-9 {
		t.Errorf("AverageSpeedKmh = %v, want total/30s = %v", speed, want)
	}
}

func TestBoundaryRing(t *testing.T) {
	t0 := time.Now()
	if r := BoundaryRing([]Coordinate{coord(0, 0, t0), coord(0, 1, t0)}); r != nil {
		t.Errorf("BoundaryRing with 2 points = %v, want nil", r)
	}

	coords := []Coordinate{
		coord(0, 0, t0),
		coord(0, 0.001, t0),
		coord(0.001, 0.001, t0),
	}
	ring := BoundaryRing(coords)
	if len(ring) != 4 {
		t.Fatalf("ring length = %d, want 4 (closed)", len(ring))
	}
	if !ring.Closed() {
		t.Error("BoundaryRing did not close the ring")
	}
	if area := RingArea(ring); area <= 0 {
		t.Errorf("RingArea = %v, want > 0", area)
	}
}

func TestRingArea_Degenerate(t *testing.T) {
	if a := RingArea(nil); a != 0 {
		t.Errorf("RingArea(nil) = %v, want 0", a)
	}
}
