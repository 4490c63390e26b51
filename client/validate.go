package client

import (
	"fmt"
	"time"
)

// Validation defaults, overridable per call through ValidationOptions.
const (
	defaultMaxAccuracyMeters = 100.0
	defaultMaxSpeedKmh       = 200.0

	maxSampleAge  = time.Hour
	maxSampleSkew = time.Minute // tolerated clock skew into the future
)

// ValidationOptions bounds the physically plausible ranges for a sample.
// The zero value means "use defaults". Now is injectable for tests.
type ValidationOptions struct {
	MinAccuracyMeters float64
	MaxAccuracyMeters float64
	MaxSpeedKmh       float64
	Now               func() time.Time
}

func (o ValidationOptions) withDefaults() ValidationOptions {
	if o.MaxAccuracyMeters == 0 {
		o.MaxAccuracyMeters = defaultMaxAccuracyMeters
	}
	if o.MaxSpeedKmh == 0 {
		o.MaxSpeedKmh = defaultMaxSpeedKmh
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// ValidationResult lists every rule a single sample violated. Violations
// are collected, never short-circuited.
type ValidationResult struct {
	IsValid bool
	Errors  []string
}

// SequenceViolation pins a rule violation to a position in the sequence.
// Index is -1 for sequence-level violations with no single culprit.
type SequenceViolation struct {
	Index   int
	Message string
}

// SequenceResult is the outcome of validating an ordered sequence.
type SequenceResult struct {
	IsValid    bool
	Violations []SequenceViolation
}

// ValidateCoordinate checks a single sample against field constraints.
// It never panics and always returns a structured result.
func ValidateCoordinate(c Coordinate, opts ValidationOptions) ValidationResult {
	opts = opts.withDefaults()
	var errs []string

	if c.Latitude < -90 || c.Latitude > 90 {
		errs = append(errs, fmt.Sprintf("latitude %v out of range [-90, 90]", c.Latitude))
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		errs = append(errs, fmt.Sprintf("longitude %v out of range [-180, 180]", c.Longitude))
	}

	now := opts.Now()
	switch {
	case c.Timestamp.IsZero():
		errs = append(errs, "timestamp is required")
	case c.Timestamp.Before(now.Add(-maxSampleAge)):
		errs = append(errs, fmt.Sprintf("timestamp %s is older than %s", c.Timestamp.Format(time.RFC3339), maxSampleAge))
	case c.Timestamp.After(now.Add(maxSampleSkew)):
		errs = append(errs, fmt.Sprintf("timestamp %s is too far in the future", c.Timestamp.Format(time.RFC3339)))
	}

	if c.Accuracy != nil && (*c.Accuracy < opts.MinAccuracyMeters || *c.Accuracy > opts.MaxAccuracyMeters) {
		errs = append(errs, fmt.Sprintf("accuracy %vm out of range [%v, %v]", *c.Accuracy, opts.MinAccuracyMeters, opts.MaxAccuracyMeters))
	}
	if c.Altitude != nil && (*c.Altitude < -500 || *c.Altitude > 10000) {
		errs = append(errs, fmt.Sprintf("altitude %vm out of range [-500, 10000]", *c.Altitude))
	}
	if c.SpeedKmh != nil && (*c.SpeedKmh < 0 || *c.SpeedKmh > opts.MaxSpeedKmh) {
		errs = append(errs, fmt.Sprintf("speed %vkm/h out of range [0, %v]", *c.SpeedKmh, opts.MaxSpeedKmh))
	}
	if c.Bearing != nil && (*c.Bearing < 0 || *c.Bearing >= 360) {
		errs = append(errs, fmt.Sprintf("bearing %v out of range [0, 360)", *c.Bearing))
	}

	return ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}

// ValidateCoordinateSequence validates each sample plus the sequence-level
// rules: non-empty, strictly increasing timestamps with no duplicates, and
// a teleportation check flagging pairs whose derived speed exceeds twice
// the speed bound.
func ValidateCoordinateSequence(coords []Coordinate, opts ValidationOptions) SequenceResult {
	opts = opts.withDefaults()
	var violations []SequenceViolation

	if len(coords) == 0 {
		return SequenceResult{Violations: []SequenceViolation{{Index: -1, Message: "sequence is empty"}}}
	}

	for i, c := range coords {
		res := ValidateCoordinate(c, opts)
		for _, msg := range res.Errors {
			violations = append(violations, SequenceViolation{Index: i, Message: msg})
		}
	}

	for i := 1; i < len(coords); i++ {
		prev, cur := coords[i-1], coords[i]
		switch {
		case cur.Timestamp.Equal(prev.Timestamp):
			violations = append(violations, SequenceViolation{Index: i, Message: "duplicate timestamp"})
			continue
		case cur.Timestamp.Before(prev.Timestamp):
			violations = append(violations, SequenceViolation{Index: i, Message: "timestamps not in chronological order"})
			continue
		}

		// Teleportation check: implied speed between consecutive samples.
		elapsed := cur.Timestamp.Sub(prev.Timestamp).Seconds()
		impliedKmh := Distance(prev, cur) / elapsed * 3.6
		if impliedKmh > 2*opts.MaxSpeedKmh {
			violations = append(violations, SequenceViolation{
				Index:   i,
				Message: fmt.Sprintf("implied speed %.1fkm/h exceeds teleportation threshold %.1fkm/h", impliedKmh, 2*opts.MaxSpeedKmh),
			})
		}
	}

	return SequenceResult{IsValid: len(violations) == 0, Violations: violations}
}
