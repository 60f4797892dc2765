package navigation

import (
	"context"
	"sync"
	"testing"

	"github.com/evermore-parks/parknav/internal/routing"
	"github.com/evermore-parks/parknav/pkg/geo"
)

type fetchCall struct {
	from, to geo.Coordinate
	mode     routing.Mode
}

// stubFetcher returns routed legs whose endpoints stop a touch short of the
// requested points, the way a road-network snap does.
type stubFetcher struct {
	mu       sync.Mutex
	calls    []fetchCall
	endShort float64
	degraded bool
}

func (f *stubFetcher) FetchLeg(ctx context.Context, from, to geo.Coordinate, mode routing.Mode) routing.Leg {
	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{from: from, to: to, mode: mode})
	f.mu.Unlock()

	end := geo.Coordinate{Lat: to.Lat - f.endShort, Lng: to.Lng}
	mid := geo.Coordinate{Lat: (from.Lat + end.Lat) / 2, Lng: (from.Lng + end.Lng) / 2}
	polyline := []geo.Coordinate{
		{Lat: from.Lat + f.endShort, Lng: from.Lng},
		mid,
		end,
	}
	dist := geo.DistanceMeters(polyline[0], mid) + geo.DistanceMeters(mid, end)
	return routing.Leg{
		From:            from,
		To:              to,
		Polyline:        polyline,
		DistanceMeters:  dist,
		DurationSeconds: dist / routing.SpeedFor(mode),
		Degraded:        f.degraded,
	}
}

func (f *stubFetcher) callsByMode(mode routing.Mode) []fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fetchCall
	for _, c := range f.calls {
		if c.mode == mode {
			out = append(out, c)
		}
	}
	return out
}

func testConfig() Config {
	return Config{Gate: Gate{Name: "The East Gate", Lat: 10.2490, Lng: 123.7975}}
}

func TestComposeApproachFromOutside(t *testing.T) {
	fetcher := &stubFetcher{endShort: 0.0001} // ends ~11m short of each target
	composer := NewComposer(fetcher, testConfig())

	user := geo.Coordinate{Lat: 10.2440, Lng: 123.7975} // ~550m south of the gate
	dest := geo.Coordinate{Lat: 10.2495, Lng: 123.7980}

	route, err := composer.Compose(context.Background(), user, dest)
	if err != nil {
		t.Fatalf("Compose returned error: %v", err)
	}
	if route.PublicLeg == nil {
		t.Fatal("expected a public leg for a user outside the grounds")
	}

	driving := fetcher.callsByMode(routing.ModeDriving)
	walking := fetcher.callsByMode(routing.ModeWalking)
	if len(driving) != 1 || len(walking) != 1 {
		t.Fatalf("expected one driving and one walking fetch, got %d and %d", len(driving), len(walking))
	}
	gate := testConfig().Gate.Position()
	if driving[0].from != user || driving[0].to != gate {
		t.Errorf("driving leg fetched %v -> %v, want %v -> %v", driving[0].from, driving[0].to, user, gate)
	}
	if walking[0].from != gate || walking[0].to != dest {
		t.Errorf("walking leg fetched %v -> %v, want %v -> %v", walking[0].from, walking[0].to, gate, dest)
	}

	// Junction snap: both legs meet at the exact gate coordinate.
	pub := route.PublicLeg.Polyline
	if pub[len(pub)-1] != gate {
		t.Errorf("public leg ends at %v, want the gate %v", pub[len(pub)-1], gate)
	}
	if route.PrivateLeg.Polyline[0] != gate {
		t.Errorf("private leg starts at %v, want the gate %v", route.PrivateLeg.Polyline[0], gate)
	}

	// The routed walking leg stops ~11m short, so the destination is appended.
	priv := route.PrivateLeg.Polyline
	if priv[len(priv)-1] != dest {
		t.Errorf("private leg ends at %v, want the destination %v appended", priv[len(priv)-1], dest)
	}

	// The merged line carries the junction vertex once.
	full := route.FullPolyline()
	for i := 1; i < len(full); i++ {
		if full[i] == full[i-1] {
			t.Errorf("duplicate vertex %v at index %d in merged polyline", full[i], i)
		}
	}
}

func TestComposeNearGate(t *testing.T) {
	fetcher := &stubFetcher{}
	composer := NewComposer(fetcher, testConfig())

	user := geo.Coordinate{Lat: 10.24905, Lng: 123.7975} // ~6m from the gate
	dest := geo.Coordinate{Lat: 10.2495, Lng: 123.7980}

	route, err := composer.Compose(context.Background(), user, dest)
	if err != nil {
		t.Fatalf("Compose returned error: %v", err)
	}
	if route.PublicLeg == nil {
		t.Fatal("expected a synthetic public hop to the gate")
	}
	if route.PublicLeg.Degraded {
		t.Error("the straight hop to the gate is deliberate and must not read as degraded")
	}
	if len(fetcher.callsByMode(routing.ModeDriving)) != 0 {
		t.Error("no driving leg should be fetched within gate proximity")
	}
	if got := len(fetcher.callsByMode(routing.ModeWalking)); got != 1 {
		t.Fatalf("expected one walking fetch for the in-grounds leg, got %d", got)
	}
	if route.PublicLeg.Polyline[0] != user {
		t.Errorf("synthetic hop starts at %v, want the user position %v", route.PublicLeg.Polyline[0], user)
	}
}

func TestComposeInsideGrounds(t *testing.T) {
	fetcher := &stubFetcher{endShort: 0.0001}
	composer := NewComposer(fetcher, testConfig())

	user := geo.Coordinate{Lat: 10.2494, Lng: 123.7979} // closer to the site than to the gate
	dest := geo.Coordinate{Lat: 10.2495, Lng: 123.7980}

	route, err := composer.Compose(context.Background(), user, dest)
	if err != nil {
		t.Fatalf("Compose returned error: %v", err)
	}
	if route.PublicLeg != nil {
		t.Fatal("no public leg expected for a user already inside the grounds")
	}
	walking := fetcher.callsByMode(routing.ModeWalking)
	if len(walking) != 1 || walking[0].from != user {
		t.Fatalf("expected one walking fetch from the user position, got %+v", walking)
	}

	// Single-leg routes keep the fetched geometry untouched: no snapping.
	priv := route.PrivateLeg.Polyline
	if priv[len(priv)-1] == dest {
		t.Error("destination snap must not apply without a public leg")
	}
}

func TestComposeDegradedFlag(t *testing.T) {
	fetcher := &stubFetcher{degraded: true}
	composer := NewComposer(fetcher, testConfig())

	user := geo.Coordinate{Lat: 10.2440, Lng: 123.7975}
	dest := geo.Coordinate{Lat: 10.2495, Lng: 123.7980}

	route, err := composer.Compose(context.Background(), user, dest)
	if err != nil {
		t.Fatalf("Compose returned error: %v", err)
	}
	if !route.Degraded {
		t.Error("route with fallback legs should report Degraded")
	}
}

func TestComposeCancelledContext(t *testing.T) {
	fetcher := &stubFetcher{}
	composer := NewComposer(fetcher, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := composer.Compose(ctx,
		geo.Coordinate{Lat: 10.2440, Lng: 123.7975},
		geo.Coordinate{Lat: 10.2495, Lng: 123.7980})
	if err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
}
