package routing

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/evermore-parks/parknav/pkg/geo"
)

var (
	testFrom = geo.Coordinate{Lat: 10.2490, Lng: 123.7975}
	testTo   = geo.Coordinate{Lat: 10.2481, Lng: 123.7976}
)

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(Config{
		DrivingBaseURL: srv.URL + "/route/v1/driving",
		WalkingBaseURL: srv.URL + "/route/v1/walking",
		TimeoutMS:      2000,
	})
}

func TestFetchLegSuccess(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"code": "Ok",
			"routes": [{
				"distance": 140.5,
				"duration": 101.2,
				"geometry": {"coordinates": [[123.7975,10.2490],[123.7976,10.2485],[123.7976,10.2481]]}
			}]
		}`))
	}))
	defer srv.Close()

	leg := newTestClient(srv).FetchLeg(context.Background(), testFrom, testTo, ModeDriving)

	if !strings.HasPrefix(gotPath, "/route/v1/driving/") {
		t.Fatalf("unexpected request path: %s", gotPath)
	}
	if !strings.Contains(gotPath, "123.7975,10.249;123.7976,10.2481") {
		t.Fatalf("coordinates not lon,lat ordered in path: %s", gotPath)
	}
	if !strings.Contains(gotQuery, "overview=full") || !strings.Contains(gotQuery, "geometries=geojson") {
		t.Fatalf("missing query parameters: %s", gotQuery)
	}
	if leg.Degraded {
		t.Fatal("successful service response should not be flagged degraded")
	}
	if len(leg.Polyline) != 3 {
		t.Fatalf("polyline length = %d, want 3", len(leg.Polyline))
	}
	// GeoJSON pairs arrive (lon, lat) and must be reordered
	if leg.Polyline[0].Lat != 10.2490 || leg.Polyline[0].Lng != 123.7975 {
		t.Fatalf("polyline[0] not reordered to lat,lng: %+v", leg.Polyline[0])
	}
	if leg.DistanceMeters != 140.5 || leg.DurationSeconds != 101.2 {
		t.Fatalf("distance/duration mismatch: %+v", leg)
	}
}

func TestFetchLegWalkingRequestsSteps(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{
			"code": "Ok",
			"routes": [{
				"distance": 80,
				"duration": 57,
				"geometry": {"coordinates": [[123.7976,10.2481],[123.7970,10.2475]]},
				"legs": [{"steps": [
					{"distance": 50, "duration": 36, "name": "Rose Path", "maneuver": {"type": "turn", "modifier": "left"}},
					{"distance": 30, "duration": 21, "name": "", "maneuver": {"type": "arrive"}}
				]}]
			}]
		}`))
	}))
	defer srv.Close()

	leg := newTestClient(srv).FetchLeg(context.Background(), testFrom, testTo, ModeWalking)

	if !strings.Contains(gotQuery, "steps=true") {
		t.Fatalf("walking request should ask for steps: %s", gotQuery)
	}
	if len(leg.Steps) != 2 {
		t.Fatalf("steps length = %d, want 2", len(leg.Steps))
	}
	if leg.Steps[0].Type != "turn" || leg.Steps[0].Modifier != "left" || leg.Steps[0].StreetName != "Rose Path" {
		t.Fatalf("unexpected first step: %+v", leg.Steps[0])
	}
}

func TestFetchLegFallbacks(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "empty routes",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"code": "NoRoute", "routes": []}`))
			},
		},
		{
			name: "http error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"routes": [`))
			},
		},
		{
			name: "missing geometry",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"routes": [{"distance": 10, "duration": 5}]}`))
			},
		},
		{
			name: "all tuples malformed",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"routes": [{"distance": 10, "duration": 5, "geometry": {"coordinates": [["x","y"],[1],[]]}}]}`))
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			leg := newTestClient(srv).FetchLeg(context.Background(), testFrom, testTo, ModeDriving)

			if !leg.Degraded {
				t.Fatal("expected synthetic fallback leg")
			}
			if len(leg.Polyline) != 2 || leg.Polyline[0] != testFrom || leg.Polyline[1] != testTo {
				t.Fatalf("fallback polyline should be [from,to]: %+v", leg.Polyline)
			}
			wantDist := geo.DistanceMeters(testFrom, testTo)
			if math.Abs(leg.DistanceMeters-wantDist) > 1e-9 {
				t.Fatalf("fallback distance = %.4f, want haversine %.4f", leg.DistanceMeters, wantDist)
			}
			wantDur := wantDist / DrivingSpeedMS
			if math.Abs(leg.DurationSeconds-wantDur) > 1e-9 {
				t.Fatalf("fallback duration = %.4f, want %.4f", leg.DurationSeconds, wantDur)
			}
		})
	}
}

func TestFetchLegUnreachableService(t *testing.T) {
	client := NewClient(Config{
		DrivingBaseURL: "http://127.0.0.1:1/route/v1/driving",
		WalkingBaseURL: "http://127.0.0.1:1/route/v1/walking",
		TimeoutMS:      200,
	})

	leg := client.FetchLeg(context.Background(), testFrom, testTo, ModeWalking)
	if !leg.Degraded {
		t.Fatal("expected synthetic fallback when service is unreachable")
	}
	wantDur := geo.DistanceMeters(testFrom, testTo) / WalkingSpeedMS
	if math.Abs(leg.DurationSeconds-wantDur) > 1e-9 {
		t.Fatalf("walking fallback duration = %.4f, want %.4f", leg.DurationSeconds, wantDur)
	}
}

func TestFetchLegDropsMalformedTuplesAndClamps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"routes": [{
				"distance": -12,
				"duration": -3,
				"geometry": {"coordinates": [[123.7975,10.2490],["bad"],[123.7976],[123.7976,10.2481],[123.7,10.2,55]]}
			}]
		}`))
	}))
	defer srv.Close()

	leg := newTestClient(srv).FetchLeg(context.Background(), testFrom, testTo, ModeDriving)

	if leg.Degraded {
		t.Fatal("two valid tuples remain, should not fall back")
	}
	if len(leg.Polyline) != 2 {
		t.Fatalf("polyline length = %d, want 2 after dropping malformed tuples", len(leg.Polyline))
	}
	if leg.DistanceMeters != 0 || leg.DurationSeconds != 0 {
		t.Fatalf("negative distance/duration must clamp to 0: %+v", leg)
	}
}
