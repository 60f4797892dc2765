package routing

import (
	"encoding/json"

	"github.com/evermore-parks/parknav/pkg/geo"
)

// Mode selects which road network the routing service queries.
type Mode string

const (
	// ModeDriving routes over the public road network.
	ModeDriving Mode = "driving"
	// ModeWalking routes over the private pedestrian path network.
	ModeWalking Mode = "walking"
)

// Fallback speeds for synthetic legs, meters per second.
const (
	DrivingSpeedMS = 13.89 // ~50 km/h
	WalkingSpeedMS = 1.4
)

// SpeedFor returns the assumed travel speed for a mode, in m/s.
func SpeedFor(mode Mode) float64 {
	if mode == ModeDriving {
		return DrivingSpeedMS
	}
	return WalkingSpeedMS
}

// Step is one turn-by-turn instruction as reported by the routing service.
// Type and Modifier carry the service's raw maneuver strings; mapping onto
// the application's maneuver model happens downstream.
type Step struct {
	Type            string  `json:"type"`
	Modifier        string  `json:"modifier"`
	StreetName      string  `json:"streetName"`
	DistanceMeters  float64 `json:"distanceMeters"`
	DurationSeconds float64 `json:"durationSeconds"`
}

// Leg is one continuous stretch of a route. Polyline is in travel order with
// at least 2 points.
type Leg struct {
	From            geo.Coordinate   `json:"from"`
	To              geo.Coordinate   `json:"to"`
	Polyline        []geo.Coordinate `json:"polyline"`
	DistanceMeters  float64          `json:"distanceMeters"`
	DurationSeconds float64          `json:"durationSeconds"`
	Steps           []Step           `json:"steps,omitempty"`
	// Degraded marks a synthetic straight-line leg produced because the
	// routing service could not supply real geometry.
	Degraded bool `json:"degraded"`
}

// --- OSRM wire format ---

type osrmResponse struct {
	Code   string      `json:"code"`
	Routes []osrmRoute `json:"routes"`
}

type osrmRoute struct {
	Distance float64      `json:"distance"`
	Duration float64      `json:"duration"`
	Geometry osrmGeometry `json:"geometry"`
	Legs     []osrmLeg    `json:"legs"`
}

type osrmGeometry struct {
	// Tuples are kept raw so a malformed entry can be dropped without
	// failing the whole decode.
	Coordinates []json.RawMessage `json:"coordinates"`
}

type osrmLeg struct {
	Steps []osrmStep `json:"steps"`
}

type osrmStep struct {
	Distance float64      `json:"distance"`
	Duration float64      `json:"duration"`
	Name     string       `json:"name"`
	Maneuver osrmManeuver `json:"maneuver"`
}

type osrmManeuver struct {
	Type     string `json:"type"`
	Modifier string `json:"modifier"`
}
