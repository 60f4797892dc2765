package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/evermore-parks/parknav/pkg/geo"
)

// Config holds the OSRM-compatible routing service endpoints. The driving
// endpoint serves the public road network, the walking endpoint the private
// pedestrian paths through the grounds.
type Config struct {
	DrivingBaseURL string `yaml:"driving_base_url" validate:"required,url"`
	WalkingBaseURL string `yaml:"walking_base_url" validate:"required,url"`
	TimeoutMS      int    `yaml:"timeout_ms" validate:"gte=0"`
}

// Client fetches route legs from an OSRM-compatible routing service and
// degrades to a synthetic straight-line leg when the service cannot help.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := 10 * time.Second
	if cfg.TimeoutMS > 0 {
		timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FetchLeg returns a usable leg from one coordinate to another. It never
// fails: on any service, decode or geometry problem it logs the cause and
// returns a synthetic straight-line leg instead, flagged Degraded.
func (c *Client) FetchLeg(ctx context.Context, from, to geo.Coordinate, mode Mode) Leg {
	leg, err := c.fetchServiceLeg(ctx, from, to, mode)
	if err != nil {
		log.Printf("routing: %s leg (%.6f,%.6f)->(%.6f,%.6f) using synthetic fallback: %v",
			mode, from.Lat, from.Lng, to.Lat, to.Lng, err)
		return SyntheticLeg(from, to, mode)
	}
	return leg
}

// SyntheticLeg builds a straight-line leg between two coordinates with
// distance from the haversine formula and duration from the mode's assumed
// speed.
func SyntheticLeg(from, to geo.Coordinate, mode Mode) Leg {
	dist := geo.DistanceMeters(from, to)
	return Leg{
		From:            from,
		To:              to,
		Polyline:        []geo.Coordinate{from, to},
		DistanceMeters:  dist,
		DurationSeconds: dist / SpeedFor(mode),
		Degraded:        true,
	}
}

func (c *Client) baseURL(mode Mode) string {
	if mode == ModeDriving {
		return c.cfg.DrivingBaseURL
	}
	return c.cfg.WalkingBaseURL
}

func (c *Client) fetchServiceLeg(ctx context.Context, from, to geo.Coordinate, mode Mode) (Leg, error) {
	fullURL := fmt.Sprintf("%s/%s,%s;%s,%s?overview=full&geometries=geojson",
		c.baseURL(mode),
		formatCoord(from.Lng), formatCoord(from.Lat),
		formatCoord(to.Lng), formatCoord(to.Lat))
	if mode == ModeWalking {
		// Steps drive the maneuver list for the in-grounds leg.
		fullURL += "&steps=true"
	}

	// Create the HTTP Request object
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return Leg{}, fmt.Errorf("error creating HTTP request: %w", err)
	}
	// Set required header
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Leg{}, fmt.Errorf("error performing HTTP GET to %s: %w", fullURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Read body for a detailed routing service error message
		body, _ := io.ReadAll(resp.Body)
		return Leg{}, fmt.Errorf("received non-OK status code %d from routing service. Response: %s", resp.StatusCode, string(body))
	}

	var response osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return Leg{}, fmt.Errorf("error decoding response body: %w", err)
	}

	if len(response.Routes) == 0 {
		return Leg{}, fmt.Errorf("routing service returned no routes")
	}
	route := response.Routes[0]

	polyline := decodePolyline(route.Geometry.Coordinates)
	if len(polyline) < 2 {
		return Leg{}, fmt.Errorf("routing service geometry has %d usable coordinates", len(polyline))
	}

	leg := Leg{
		From:            from,
		To:              to,
		Polyline:        polyline,
		DistanceMeters:  clampNonNegative(route.Distance),
		DurationSeconds: clampNonNegative(route.Duration),
	}
	for _, l := range route.Legs {
		for _, s := range l.Steps {
			leg.Steps = append(leg.Steps, Step{
				Type:            s.Maneuver.Type,
				Modifier:        s.Maneuver.Modifier,
				StreetName:      s.Name,
				DistanceMeters:  clampNonNegative(s.Distance),
				DurationSeconds: clampNonNegative(s.Duration),
			})
		}
	}
	return leg, nil
}

// decodePolyline converts GeoJSON (longitude, latitude) tuples into
// coordinates. Any tuple that is not a 2-element numeric pair is dropped.
func decodePolyline(raw []json.RawMessage) []geo.Coordinate {
	out := make([]geo.Coordinate, 0, len(raw))
	for _, tuple := range raw {
		var pair []float64
		if err := json.Unmarshal(tuple, &pair); err != nil || len(pair) != 2 {
			continue
		}
		out = append(out, geo.Coordinate{Lat: pair[1], Lng: pair[0]})
	}
	return out
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
