package navigation

import (
	"context"
	"fmt"
	"sync"

	"github.com/evermore-parks/parknav/internal/routing"
	"github.com/evermore-parks/parknav/pkg/geo"
)

// Gate is the configured boundary waypoint between the public roadway and
// the private grounds. Every route that approaches from outside passes
// through it.
type Gate struct {
	Name string  `yaml:"name" validate:"required"`
	Lat  float64 `yaml:"lat" validate:"required"`
	Lng  float64 `yaml:"lng" validate:"required"`
}

func (g Gate) Position() geo.Coordinate {
	return geo.Coordinate{Lat: g.Lat, Lng: g.Lng}
}

// LegFetcher yields a single route leg between two points. Implementations
// degrade to a synthetic leg rather than failing.
type LegFetcher interface {
	FetchLeg(ctx context.Context, from, to geo.Coordinate, mode routing.Mode) routing.Leg
}

// ComposedRoute is a full door-to-destination route: an optional public
// (driving) approach up to the gate and the in-grounds walking leg.
type ComposedRoute struct {
	PublicLeg  *routing.Leg   `json:"publicLeg,omitempty"`
	PrivateLeg routing.Leg    `json:"privateLeg"`
	Gate       geo.Coordinate `json:"gate"`
	Degraded   bool           `json:"degraded"`
}

func (r *ComposedRoute) TotalDistanceMeters() float64 {
	total := r.PrivateLeg.DistanceMeters
	if r.PublicLeg != nil {
		total += r.PublicLeg.DistanceMeters
	}
	return total
}

func (r *ComposedRoute) TotalDurationSeconds() float64 {
	total := r.PrivateLeg.DurationSeconds
	if r.PublicLeg != nil {
		total += r.PublicLeg.DurationSeconds
	}
	return total
}

// FullPolyline concatenates both legs into one drawable line. When both legs
// are present the junction vertex appears once.
func (r *ComposedRoute) FullPolyline() []geo.Coordinate {
	if r.PublicLeg == nil {
		return r.PrivateLeg.Polyline
	}
	pub := r.PublicLeg.Polyline
	priv := r.PrivateLeg.Polyline
	out := make([]geo.Coordinate, 0, len(pub)+len(priv))
	out = append(out, pub...)
	if len(out) > 0 && len(priv) > 0 && priv[0] == out[len(out)-1] {
		priv = priv[1:]
	}
	return append(out, priv...)
}

// Composer builds composed routes. The user's position relative to the gate
// decides which legs are fetched:
//
//   - within gateProximityM of the gate: a straight walking hop to the gate
//     plus the in-grounds leg
//   - closer to the destination than to the gate: already inside, in-grounds
//     leg only
//   - otherwise: driving approach and in-grounds leg, fetched concurrently
type Composer struct {
	fetcher          LegFetcher
	gate             Gate
	gateProximityM   float64
	destinationSnapM float64
}

func NewComposer(fetcher LegFetcher, cfg Config) *Composer {
	cfg.applyDefaults()
	return &Composer{
		fetcher:          fetcher,
		gate:             cfg.Gate,
		gateProximityM:   cfg.GateProximityMeters,
		destinationSnapM: cfg.DestinationSnapMeters,
	}
}

func (c *Composer) Compose(ctx context.Context, user, dest geo.Coordinate) (*ComposedRoute, error) {
	gatePos := c.gate.Position()
	distToGate := geo.DistanceMeters(user, gatePos)
	distToDest := geo.DistanceMeters(user, dest)

	route := &ComposedRoute{Gate: gatePos}
	switch {
	case distToGate < c.gateProximityM:
		// Standing at the threshold: a routed driving approach would be
		// noise, so the public leg is a deliberate straight walk.
		pub := routing.SyntheticLeg(user, gatePos, routing.ModeWalking)
		pub.Degraded = false
		route.PublicLeg = &pub
		route.PrivateLeg = c.fetcher.FetchLeg(ctx, gatePos, dest, routing.ModeWalking)
	case distToDest < distToGate:
		// Already inside the grounds.
		route.PrivateLeg = c.fetcher.FetchLeg(ctx, user, dest, routing.ModeWalking)
	default:
		var pub routing.Leg
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			pub = c.fetcher.FetchLeg(ctx, user, gatePos, routing.ModeDriving)
		}()
		go func() {
			defer wg.Done()
			route.PrivateLeg = c.fetcher.FetchLeg(ctx, gatePos, dest, routing.ModeWalking)
		}()
		wg.Wait()
		route.PublicLeg = &pub
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("error composing route: %w", err)
	}

	c.snapJunction(route, dest)
	route.Degraded = route.PrivateLeg.Degraded ||
		(route.PublicLeg != nil && route.PublicLeg.Degraded)
	return route, nil
}

// snapJunction pins both legs to the exact gate coordinate so the drawn
// route has no visible seam, and appends the requested destination when the
// routed leg stops short of it. Only applies when both legs are present.
func (c *Composer) snapJunction(route *ComposedRoute, dest geo.Coordinate) {
	if route.PublicLeg == nil {
		return
	}

	pub := route.PublicLeg
	if n := len(pub.Polyline); n > 0 {
		pub.Polyline[n-1] = route.Gate
	}
	pub.To = route.Gate

	priv := &route.PrivateLeg
	if len(priv.Polyline) == 0 {
		return
	}
	priv.Polyline[0] = route.Gate
	priv.From = route.Gate
	if last := priv.Polyline[len(priv.Polyline)-1]; geo.DistanceMeters(last, dest) > c.destinationSnapM {
		priv.Polyline = append(priv.Polyline, dest)
		priv.To = dest
	}
}
