package navigation

import (
	"time"

	"github.com/google/uuid"

	"github.com/evermore-parks/parknav/internal/geoloc"
	"github.com/evermore-parks/parknav/pkg/geo"
)

// Session is the single mutable entity for one navigation run. Exactly one
// session is live at a time; it is created on start and destroyed on stop or
// cancel.
type Session struct {
	ID                uuid.UUID
	Origin            geo.Coordinate
	Destination       geo.Coordinate
	StartedAt         time.Time
	LastKnownPosition *geo.Coordinate
	LastObservedAt    time.Time
	Watch             geoloc.WatchHandle
	RerouteCount      int
}

func newSession(origin, dest geo.Coordinate) *Session {
	return &Session{
		ID:          uuid.New(),
		Origin:      origin,
		Destination: dest,
		StartedAt:   time.Now(),
	}
}
