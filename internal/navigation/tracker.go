package navigation

import (
	"time"

	"github.com/evermore-parks/parknav/internal/geoloc"
	"github.com/evermore-parks/parknav/pkg/geo"
)

// Observation is the tracker's digest of one position fix.
type Observation struct {
	Position          geo.Coordinate
	Heading           float64
	HasHeading        bool
	DriftMeters       float64
	Elapsed           time.Duration
	Divergent         bool
	ShouldRecalculate bool
}

// Tracker evaluates incoming fixes against the previous observation and the
// active route. It holds no session state of its own.
type Tracker struct {
	driftThresholdM float64
	staleAfter      time.Duration
	divergenceDeg   float64
}

func NewTracker(cfg Config) *Tracker {
	cfg.applyDefaults()
	return &Tracker{
		driftThresholdM: cfg.DriftThresholdMeters,
		staleAfter:      time.Duration(cfg.StaleFixSeconds * float64(time.Second)),
		divergenceDeg:   cfg.DivergenceDegrees,
	}
}

// Observe computes drift, heading and route divergence for one fix. The
// position is always forwarded to the caller; ShouldRecalculate is advisory.
func (t *Tracker) Observe(fix geoloc.Fix, lastPos *geo.Coordinate, lastAt time.Time, route *ComposedRoute) Observation {
	obs := Observation{Position: fix.Position()}

	// A zero heading means the device did not report one; derive it from
	// movement instead when a previous position exists.
	if fix.HeadingDegrees != 0 {
		obs.Heading = fix.HeadingDegrees
		obs.HasHeading = true
	} else if lastPos != nil {
		obs.Heading = geo.BearingDegrees(*lastPos, obs.Position)
		obs.HasHeading = true
	}

	if lastPos != nil {
		obs.DriftMeters = geo.DistanceMeters(obs.Position, *lastPos)
	}
	if !lastAt.IsZero() {
		obs.Elapsed = fix.ObservedAt().Sub(lastAt)
	}
	if obs.HasHeading && route != nil {
		obs.Divergent = t.diverges(obs.Position, obs.Heading, route.FullPolyline())
	}

	obs.ShouldRecalculate = obs.DriftMeters > t.driftThresholdM ||
		obs.Elapsed > t.staleAfter ||
		obs.Divergent
	return obs
}

// diverges compares the user's heading against the bearing of the route
// segment that starts at the nearest polyline vertex. When the nearest
// vertex is the final one the last segment is used.
func (t *Tracker) diverges(pos geo.Coordinate, heading float64, polyline []geo.Coordinate) bool {
	if len(polyline) < 2 {
		return false
	}
	idx, _ := geo.NearestVertex(pos, polyline)
	if idx >= len(polyline)-1 {
		idx = len(polyline) - 2
	}
	segBearing := geo.BearingDegrees(polyline[idx], polyline[idx+1])
	return geo.HeadingDiffDegrees(heading, segBearing) > t.divergenceDeg
}
