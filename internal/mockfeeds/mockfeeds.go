// Package mockfeeds emulates the two external collaborators (the
// OSRM-compatible routing service and the WebSocket location feed) for
// development runs and tests.
package mockfeeds

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/evermore-parks/parknav/internal/geoloc"
	"github.com/evermore-parks/parknav/pkg/geo"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// Start starts the mock routing + location feed server on the given port
// (e.g. "5090"). It returns the *http.Server so the caller can shut it down
// when desired.
func Start(port string, fixes []geoloc.Fix, fixInterval time.Duration) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/route/v1/", RoutingHandler())
	mux.Handle("/feed", LocationFeedHandler(fixes, fixInterval))

	srv := &http.Server{Addr: ":" + port, Handler: mux}
	go func() {
		log.Printf("mockfeeds: listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("mockfeeds: ListenAndServe error: %v", err)
		}
	}()
	return srv
}

// DefaultFixes builds a short stroll that starts near the given point and
// walks roughly north, one fix per step. Timestamps are rewritten on replay.
func DefaultFixes(lat, lng float64) []geoloc.Fix {
	fixes := make([]geoloc.Fix, 0, 8)
	for i := 0; i < 8; i++ {
		fixes = append(fixes, geoloc.Fix{
			Lat:            lat + float64(i)*0.0001,
			Lng:            lng,
			HeadingDegrees: 0,
		})
	}
	return fixes
}

// RoutingHandler serves GET /route/v1/{mode}/{lon,lat;lon,lat} with a
// three-point GeoJSON route: the endpoints plus a midpoint, so callers see
// non-trivial geometry.
func RoutingHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/route/v1/")
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) != 2 {
			http.Error(w, "expected /route/v1/{mode}/{coords}", http.StatusBadRequest)
			return
		}
		mode := parts[0]
		from, to, err := parseCoordPair(parts[1])
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		speed := 13.89
		if mode == "walking" {
			speed = 1.4
		}
		mid := geo.Coordinate{Lat: (from.Lat + to.Lat) / 2, Lng: (from.Lng + to.Lng) / 2}
		dist := geo.DistanceMeters(from, mid) + geo.DistanceMeters(mid, to)

		route := map[string]interface{}{
			"distance": dist,
			"duration": dist / speed,
			"geometry": map[string]interface{}{
				"coordinates": [][]float64{
					{from.Lng, from.Lat},
					{mid.Lng, mid.Lat},
					{to.Lng, to.Lat},
				},
			},
		}
		if r.URL.Query().Get("steps") == "true" {
			route["legs"] = []map[string]interface{}{{
				"steps": []map[string]interface{}{
					{"distance": dist / 2, "duration": dist / 2 / speed, "name": "Memorial Walk",
						"maneuver": map[string]string{"type": "depart"}},
					{"distance": dist / 2, "duration": dist / 2 / speed, "name": "Garden Path",
						"maneuver": map[string]string{"type": "turn", "modifier": "right"}},
					{"distance": 0, "duration": 0, "name": "",
						"maneuver": map[string]string{"type": "arrive"}},
				},
			}}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"code": "Ok", "routes": []interface{}{route}})
	})
}

// LocationFeedHandler upgrades to WebSocket and, once a watch_position
// request arrives, replays the given fixes at the given interval with
// timestamps rewritten to delivery time.
func LocationFeedHandler(fixes []geoloc.Fix, interval time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("mockfeeds: websocket upgrade error: %v", err)
			return
		}
		defer conn.Close()

		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt != websocket.TextMessage {
				continue
			}

			var incoming struct {
				RequestID int64  `json:"req_id"`
				Type      string `json:"type"`
			}
			if err := json.Unmarshal(msg, &incoming); err != nil {
				log.Printf("mockfeeds: invalid JSON: %v", err)
				continue
			}

			switch incoming.Type {
			case "watch_position":
				conn.WriteJSON(map[string]interface{}{
					"req_id": incoming.RequestID, "type": "result", "success": true,
				})
				go func() {
					for _, fix := range fixes {
						time.Sleep(interval)
						fix.Timestamp = time.Now().UnixMilli()
						err := conn.WriteJSON(map[string]interface{}{
							"type": "position_update", "data": fix,
						})
						if err != nil {
							return
						}
					}
				}()
			default:
				log.Printf("mockfeeds: received unknown ws type=%q msg=%s", incoming.Type, string(msg))
			}
		}
	})
}

func parseCoordPair(s string) (geo.Coordinate, geo.Coordinate, error) {
	pairs := strings.Split(s, ";")
	if len(pairs) != 2 {
		return geo.Coordinate{}, geo.Coordinate{}, fmt.Errorf("expected two coordinates, got %d", len(pairs))
	}
	var out [2]geo.Coordinate
	for i, p := range pairs {
		lonlat := strings.Split(p, ",")
		if len(lonlat) != 2 {
			return geo.Coordinate{}, geo.Coordinate{}, fmt.Errorf("malformed coordinate %q", p)
		}
		lon, errLon := strconv.ParseFloat(lonlat[0], 64)
		lat, errLat := strconv.ParseFloat(lonlat[1], 64)
		if errLon != nil || errLat != nil {
			return geo.Coordinate{}, geo.Coordinate{}, fmt.Errorf("malformed coordinate %q", p)
		}
		out[i] = geo.Coordinate{Lat: lat, Lng: lon}
	}
	return out[0], out[1], nil
}
