package client

import (
	"strings"
	"testing"
	"time"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func testOpts() ValidationOptions {
	return ValidationOptions{Now: func() time.Time { return testNow }}
}

func fptr(v float64) *float64 { return &v }

func TestValidateCoordinate_ValidRanges(t *testing.T) {
	cases := []struct{ lat, lon float64 }{
		{0, 0},
		{-90, -180},
		{90, 180},
		{45.5, -122.6},
		{-33.9, 151.2},
	}
	for _, tc := range cases {
		c := Coordinate{Latitude: tc.lat, Longitude: tc.lon, Timestamp: testNow}
		res := ValidateCoordinate(c, testOpts())
		if !res.IsValid {
			t.Errorf("(%v, %v) flagged invalid: %v", tc.lat, tc.lon, res.Errors)
		}
	}
}

func TestValidateCoordinate_FieldViolations(t *testing.T) {
	cases := []struct {
		name string
		c    Coordinate
		want string
	}{
		{"latitude high", Coordinate{Latitude: 90.1, Timestamp: testNow}, "latitude"},
		{"latitude low", Coordinate{Latitude: -90.1, Timestamp: testNow}, "latitude"},
		{"longitude high", Coordinate{Longitude: 180.5, Timestamp: testNow}, "longitude"},
		{"timestamp missing", Coordinate{}, "timestamp is required"},
		{"timestamp stale", Coordinate{Timestamp: testNow.Add(-2 * time.Hour)}, "older"},
		{"timestamp future", Coordinate{Timestamp: testNow.Add(5 * time.Minute)}, "future"},
		{"accuracy", Coordinate{Timestamp: testNow, Accuracy: fptr(150)}, "accuracy"},
		{"altitude low", Coordinate{Timestamp: testNow, Altitude: fptr(-600)}, "altitude"},
		{"altitude high", Coordinate{Timestamp: testNow, Altitude: fptr(12000)}, "altitude"},
		{"speed negative", Coordinate{Timestamp: testNow, SpeedKmh: fptr(-1)}, "speed"},
		{"speed excessive", Coordinate{Timestamp: testNow, SpeedKmh: fptr(250)}, "speed"},
		{"bearing wraps", Coordinate{Timestamp: testNow, Bearing: fptr(360)}, "bearing"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := ValidateCoordinate(tc.c, testOpts())
			if res.IsValid {
				t.Fatalf("expected invalid, got valid")
			}
			if !containsSubstring(res.Errors, tc.want) {
				t.Errorf("errors %v do not mention %q", res.Errors, tc.want)
			}
		})
	}
}

// A bearing of 0 is due north and must pass; 360 must not.
func TestValidateCoordinate_BearingBoundary(t *testing.T) {
	c := Coordinate{Timestamp: testNow, Bearing: fptr(0)}
	if res := ValidateCoordinate(c, testOpts()); !res.IsValid {
		t.Errorf("bearing 0 flagged invalid: %v", res.Errors)
	}
}

func TestValidateCoordinate_CollectsAllViolations(t *testing.T) {
	c := Coordinate{
		Latitude:  95,
		Longitude: -200,
		Bearing:   fptr(400),
		Timestamp: testNow,
	}
	res := ValidateCoordinate(c, testOpts())
	if len(res.Errors) != 3 {
		t.Errorf("got %d errors %v, want all 3 violations collected", len(res.Errors), res.Errors)
	}
}

func TestValidateSequence_Empty(t *testing.T) {
	res := ValidateCoordinateSequence(nil, testOpts())
	if res.IsValid {
		t.Fatal("empty sequence reported valid")
	}
	if len(res.Violations) != 1 || res.Violations[0].Index != -1 {
		t.Errorf("unexpected violations: %+v", res.Violations)
	}
}

func TestValidateSequence_DuplicateTimestamp(t *testing.T) {
	coords := []Coordinate{
		coord(0, 0, testNow),
		coord(0, 0.0001, testNow),
	}
	res := ValidateCoordinateSequence(coords, testOpts())
	if res.IsValid {
		t.Fatal("duplicate timestamps reported valid")
	}
	assertViolationAt(t, res, 1, "duplicate")
}

func TestValidateSequence_ChronologicalOrder(t *testing.T) {
	coords := []Coordinate{
		coord(0, 0, testNow),
		coord(0, 0.0001, testNow.Add(10*time.Second)),
		coord(0, 0.0002, testNow.Add(5*time.Second)), // goes backwards
	}
	res := ValidateCoordinateSequence(coords, testOpts())
	if res.IsValid {
		t.Fatal("out-of-order sequence reported valid")
	}
	assertViolationAt(t, res, 2, "chronological")
}

func TestValidateSequence_Teleportation(t *testing.T) {
	// ~111km in 10 seconds is ~40,000 km/h; far past 2×200 km/h.
	coords := []Coordinate{
		coord(0, 0, testNow),
		coord(1, 0, testNow.Add(10*time.Second)),
	}
	res := ValidateCoordinateSequence(coords, testOpts())
	if res.IsValid {
		t.Fatal("teleporting sequence reported valid")
	}
	assertViolationAt(t, res, 1, "teleportation")
}

func TestValidateSequence_WalkingPace(t *testing.T) {
	coords := []Coordinate{
		coord(0, 0, testNow),
		coord(0, 0.0001, testNow.Add(10*time.Second)),
		coord(0.0001, 0.0001, testNow.Add(20*time.Second)),
	}
	res := ValidateCoordinateSequence(coords, testOpts())
	if !res.IsValid {
		t.Errorf("walking-pace sequence flagged: %+v", res.Violations)
	}
}

func assertViolationAt(t *testing.T, res SequenceResult, index int, substr string) {
	t.Helper()
	for _, v := range res.Violations {
		if v.Index == index && strings.Contains(v.Message, substr) {
			return
		}
	}
	t.Errorf("no violation mentioning %q at index %d; got %+v", substr, index, res.Violations)
}

func containsSubstring(errs []string, substr string) bool {
	for _, e := range errs {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}
