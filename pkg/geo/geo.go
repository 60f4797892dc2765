package geo

import (
	"math"
)

// --- Geometry Helpers ---

// Mean Earth radius in meters.
const EarthRadiusM = 6371000.0

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DistanceMeters returns the great-circle (haversine) distance between a and b.
func DistanceMeters(a, b Coordinate) float64 {
	r1, r2 := a.Lat*math.Pi/180, b.Lat*math.Pi/180

	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lng - a.Lng) * math.Pi / 180

	// --- handle dateline crossing ---
	for dLon > math.Pi {
		dLon -= 2 * math.Pi
	}
	for dLon < -math.Pi {
		dLon += 2 * math.Pi
	}

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(r1)*math.Cos(r2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return EarthRadiusM * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// BearingDegrees returns the forward azimuth from a to b in [0, 360).
func BearingDegrees(a, b Coordinate) float64 {
	r1, r2 := a.Lat*math.Pi/180, b.Lat*math.Pi/180
	dLon := (b.Lng - a.Lng) * math.Pi / 180

	y := math.Sin(dLon) * math.Cos(r2)
	x := math.Cos(r1)*math.Sin(r2) - math.Sin(r1)*math.Cos(r2)*math.Cos(dLon)

	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// HeadingDiffDegrees returns the absolute difference between two compass
// headings, circularly normalized to [0, 180].
func HeadingDiffDegrees(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}

// NearestVertex returns the index of the polyline vertex closest to p by
// straight vertex distance, and that distance. Returns -1 for an empty
// polyline. This is a vertex scan, not a point-to-segment projection, so it
// can be off near sharp turns or very long segments.
func NearestVertex(p Coordinate, polyline []Coordinate) (int, float64) {
	best := -1
	bestDist := math.MaxFloat64
	for i, v := range polyline {
		d := DistanceMeters(p, v)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best, bestDist
}
