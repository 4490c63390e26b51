package client

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// EarthRadiusMeters is the mean Earth radius used for all great-circle
// calculations.
const EarthRadiusMeters = 6371000.0

// Distance returns the great-circle (haversine) distance between two
// samples, in meters.
func Distance(a, b Coordinate) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return EarthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// TotalDistance sums consecutive pairwise distances, in meters. Fewer than
// two points yields 0.
func TotalDistance(coords []Coordinate) float64 {
	var total float64
	for i := 1; i < len(coords); i++ {
		total += Distance(coords[i-1], coords[i])
	}
	return total
}

// AverageSpeedKmh is the total distance divided by the elapsed time between
// the first and last timestamp, in km/h. Returns 0 when elapsed time is not
// positive.
func AverageSpeedKmh(coords []Coordinate) float64 {
	if len(coords) < 2 {
		return 0
	}
	elapsed := coords[len(coords)-1].Timestamp.Sub(coords[0].Timestamp).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return TotalDistance(coords) / elapsed * 3.6
}

// IsClosedLoop reports whether the sequence forms a closed path: at least
// 4 points with the first and last within toleranceMeters of each other.
func IsClosedLoop(coords []Coordinate, toleranceMeters float64) bool {
	if len(coords) < 4 {
		return false
	}
	return Distance(coords[0], coords[len(coords)-1]) <= toleranceMeters
}

// BoundaryRing converts a coordinate sequence into a closed orb ring
// suitable as a territory boundary. Returns nil for fewer than 3 points.
func BoundaryRing(coords []Coordinate) orb.Ring {
	if len(coords) < 3 {
		return nil
	}
	ring := make(orb.Ring, 0, len(coords)+1)
	for _, c := range coords {
		ring = append(ring, c.Point())
	}
	if !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return ring
}

// RingArea returns the geodesic area enclosed by the ring, in square
// meters, regardless of winding order. Nil or degenerate rings yield 0.
func RingArea(ring orb.Ring) float64 {
	if len(ring) < 4 {
		return 0
	}
	return math.Abs(geo.Area(ring))
}
