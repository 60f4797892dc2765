// Package geoloc provides the position stream collaborator: a push-based
// feed of geolocation fixes with watch/clear subscription semantics.
package geoloc

import (
	"errors"
	"time"

	"github.com/evermore-parks/parknav/pkg/geo"
)

// ErrWatchTimeout is reported through a watch's error callback when no fix
// arrives within the watch timeout. The watch stays registered; the caller
// decides whether to keep waiting or tear down.
var ErrWatchTimeout = errors.New("geoloc: no position fix within watch timeout")

// Fix is a single observed position. HeadingDegrees is 0 when the device did
// not report a heading; consumers treat zero as unreported.
type Fix struct {
	Lat            float64 `json:"lat"`
	Lng            float64 `json:"lng"`
	HeadingDegrees float64 `json:"headingDegrees,omitempty"`
	Timestamp      int64   `json:"timestamp"` // unix milliseconds
}

func (f Fix) Position() geo.Coordinate {
	return geo.Coordinate{Lat: f.Lat, Lng: f.Lng}
}

func (f Fix) ObservedAt() time.Time {
	return time.UnixMilli(f.Timestamp)
}

// WatchOptions bound how long a watch may sit without a fix and how stale a
// delivered fix may be.
type WatchOptions struct {
	EnableHighAccuracy bool `json:"enableHighAccuracy"`
	TimeoutMS          int  `json:"timeoutMs"`
	MaxAgeMS           int  `json:"maxAgeMs"`
}

// WatchHandle identifies one active subscription. The zero value is never a
// live handle.
type WatchHandle int64

// Provider is the platform geolocation collaborator. Watch registers a
// callback for every fix; Clear cancels a watch and is safe to call with a
// handle that is no longer (or never was) active.
type Provider interface {
	Watch(opts WatchOptions, onFix func(Fix), onError func(error)) (WatchHandle, error)
	Clear(handle WatchHandle)
}
