package navigation

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/evermore-parks/parknav/pkg/geo"
)

type routeComposer interface {
	Compose(ctx context.Context, user, dest geo.Coordinate) (*ComposedRoute, error)
}

// RerouteCoordinator turns recalculation triggers into at most one in-flight
// recomputation. Competing triggers are dropped, never queued; the in-flight
// flag is a CAS so concurrent fix handlers cannot both get through. Every
// request carries the ID of the session that asked for it, and the hooks get
// that ID back so results landing after a restart can be discarded.
type RerouteCoordinator struct {
	composer routeComposer
	timeout  time.Duration

	inFlight atomic.Bool

	onBegin   func(sessionID string)
	onSuccess func(sessionID string, route *ComposedRoute)
	onFailure func(sessionID string, err error)
}

func NewRerouteCoordinator(composer routeComposer, timeout time.Duration) *RerouteCoordinator {
	return &RerouteCoordinator{composer: composer, timeout: timeout}
}

// SetHooks installs the lifecycle callbacks. onSuccess and onFailure run on
// the recomputation goroutine, before the in-flight flag clears.
func (rc *RerouteCoordinator) SetHooks(onBegin func(string), onSuccess func(string, *ComposedRoute), onFailure func(string, error)) {
	rc.onBegin = onBegin
	rc.onSuccess = onSuccess
	rc.onFailure = onFailure
}

func (rc *RerouteCoordinator) InFlight() bool {
	return rc.inFlight.Load()
}

// RequestRecompute starts one recomputation unless one is already running.
// Returns false when the request was dropped.
func (rc *RerouteCoordinator) RequestRecompute(sessionID string, user, dest geo.Coordinate) bool {
	if !rc.inFlight.CompareAndSwap(false, true) {
		return false
	}
	if rc.onBegin != nil {
		rc.onBegin(sessionID)
	}
	go func() {
		defer rc.inFlight.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), rc.timeout)
		defer cancel()

		route, err := rc.composer.Compose(ctx, user, dest)
		if err != nil {
			if rc.onFailure != nil {
				rc.onFailure(sessionID, err)
			}
			return
		}
		if rc.onSuccess != nil {
			rc.onSuccess(sessionID, route)
		}
	}()
	return true
}
