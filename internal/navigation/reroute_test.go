package navigation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/evermore-parks/parknav/pkg/geo"
)

// blockingComposer holds every Compose call until release is closed.
type blockingComposer struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
	err     error
	route   *ComposedRoute
}

func newBlockingComposer() *blockingComposer {
	return &blockingComposer{release: make(chan struct{}), route: northboundRoute()}
}

func (c *blockingComposer) Compose(ctx context.Context, user, dest geo.Coordinate) (*ComposedRoute, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	<-c.release
	if c.err != nil {
		return nil, c.err
	}
	return c.route, nil
}

func (c *blockingComposer) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestRequestRecomputeSingleFlight(t *testing.T) {
	composer := newBlockingComposer()
	rc := NewRerouteCoordinator(composer, time.Second)

	done := make(chan string, 1)
	rc.SetHooks(nil, func(id string, r *ComposedRoute) { done <- id }, nil)

	user := geo.Coordinate{Lat: 10.2492, Lng: 123.7975}
	dest := geo.Coordinate{Lat: 10.2500, Lng: 123.7975}

	if !rc.RequestRecompute("session-a", user, dest) {
		t.Fatal("first request should start a recomputation")
	}
	waitFor(t, "the recomputation to start", func() bool { return composer.callCount() == 1 })

	// Competing triggers while one is in flight are dropped, not queued.
	for i := 0; i < 5; i++ {
		if rc.RequestRecompute("session-a", user, dest) {
			t.Fatal("request admitted while another was in flight")
		}
	}
	if !rc.InFlight() {
		t.Fatal("coordinator should report in-flight")
	}

	close(composer.release)
	if id := <-done; id != "session-a" {
		t.Errorf("success hook saw session %q, want the requesting session-a", id)
	}
	waitFor(t, "the in-flight flag to clear", func() bool { return !rc.InFlight() })

	if got := composer.callCount(); got != 1 {
		t.Errorf("composer ran %d times, want 1", got)
	}

	// A fresh trigger after completion is admitted again.
	if !rc.RequestRecompute("session-a", user, dest) {
		t.Error("request after completion should start a new recomputation")
	}
	waitFor(t, "the second recomputation", func() bool { return composer.callCount() == 2 })
}

func TestRequestRecomputeFailureClearsFlag(t *testing.T) {
	composer := newBlockingComposer()
	composer.err = errors.New("routing service down")
	close(composer.release)
	rc := NewRerouteCoordinator(composer, time.Second)

	failed := make(chan error, 1)
	rc.SetHooks(nil, nil, func(_ string, err error) { failed <- err })

	user := geo.Coordinate{Lat: 10.2492, Lng: 123.7975}
	dest := geo.Coordinate{Lat: 10.2500, Lng: 123.7975}

	if !rc.RequestRecompute("session-a", user, dest) {
		t.Fatal("request should start")
	}
	err := <-failed
	if err == nil {
		t.Fatal("expected the failure hook to fire")
	}
	waitFor(t, "the in-flight flag to clear after failure", func() bool { return !rc.InFlight() })
}
