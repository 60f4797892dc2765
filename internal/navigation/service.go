package navigation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mohae/deepcopy"

	"github.com/evermore-parks/parknav/internal/geoloc"
	"github.com/evermore-parks/parknav/pkg/geo"
	"github.com/evermore-parks/parknav/pkg/util"
)

// State is the session lifecycle state. Idle and Ended are both absorbing:
// the only way out of either is a fresh start.
type State int

const (
	StateIdle State = iota
	StateNavigating
	StateRerouting
	StateEnded
)

func (s State) String() string {
	return [...]string{"Idle", "Navigating", "Rerouting", "Ended"}[s]
}

// ErrMissingEndpoint is returned when a start request lacks either
// coordinate. The service stays in its current state.
var ErrMissingEndpoint = errors.New("start requires both an origin and a destination")

// StateUpdate is the full display snapshot pushed to the listener after
// every observable change.
type StateUpdate struct {
	SessionID       string          `json:"sessionId,omitempty"`
	State           string          `json:"state"`
	Route           *ComposedRoute  `json:"route,omitempty"`
	Navigation      NavigationState `json:"navigation"`
	Position        *geo.Coordinate `json:"position,omitempty"`
	HeadingDegrees  *float64        `json:"headingDegrees,omitempty"`
	IsRecalculating bool            `json:"isRecalculating"`
	RerouteCount    int             `json:"rerouteCount"`
	Error           string          `json:"error,omitempty"`
}

type ServiceInterface interface {
	Start(origin, destination *geo.Coordinate) error
	Stop()
	Cancel()
	State() State
	IsRecalculating() bool
	Snapshot() StateUpdate
	SetListener(func(StateUpdate))
}

// Service drives the whole navigation loop: it composes the initial route,
// subscribes to the position stream, evaluates every fix, and hands
// recalculation to the coordinator.
type Service struct {
	cfg         Config
	composer    routeComposer
	tracker     *Tracker
	coordinator *RerouteCoordinator
	locations   geoloc.Provider
	announcer   *Announcer

	// startMu serializes Start end to end; overlapping starts would race on
	// the watch handle and leak a live subscription.
	startMu sync.Mutex

	mu          sync.Mutex
	listener    func(StateUpdate)
	state       State
	session     *Session
	route       *ComposedRoute
	maneuvers   []Maneuver
	nav         NavigationState
	lastHeading *float64
	lastErr     string
}

func New(cfg Config, composer routeComposer, locations geoloc.Provider, speaker Speaker) *Service {
	cfg.applyDefaults()
	s := &Service{
		cfg:       cfg,
		composer:  composer,
		tracker:   NewTracker(cfg),
		locations: locations,
		announcer: NewAnnouncer(speaker, 4),
		state:     StateIdle,
	}
	timeout := time.Duration(cfg.RecomputeTimeoutMS) * time.Millisecond
	s.coordinator = NewRerouteCoordinator(composer, timeout)
	s.coordinator.SetHooks(s.rerouteBegan, s.rerouteSucceeded, s.rerouteFailed)
	return s
}

// SetListener installs the display sink. Updates are deep-copied and
// delivered on their own goroutine so a slow sink cannot stall the loop.
func (s *Service) SetListener(listener func(StateUpdate)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = listener
}

func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Service) IsRecalculating() bool {
	return s.coordinator.InFlight()
}

// Start composes the initial route and begins tracking. A live session is
// torn down first, so at most one is ever active.
func (s *Service) Start(origin, destination *geo.Coordinate) error {
	if origin == nil || destination == nil {
		return ErrMissingEndpoint
	}

	s.startMu.Lock()
	defer s.startMu.Unlock()

	s.mu.Lock()
	if s.session != nil {
		s.teardownLocked(StateIdle)
	}
	s.mu.Unlock()

	timeout := time.Duration(s.cfg.RecomputeTimeoutMS) * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	route, err := s.composer.Compose(ctx, *origin, *destination)
	if err != nil {
		return fmt.Errorf("error composing initial route: %w", err)
	}

	session := newSession(*origin, *destination)
	handle, err := s.locations.Watch(geoloc.DefaultWatchOptions(), s.handleFix, s.handleLocationError)
	if err != nil {
		return fmt.Errorf("error subscribing to position stream: %w", err)
	}
	session.Watch = handle

	s.mu.Lock()
	s.session = session
	s.route = route
	s.maneuvers = buildManeuvers(route, s.cfg.Gate.Name)
	s.nav = progressFor(route, s.maneuvers, *origin)
	s.state = StateNavigating
	s.lastHeading = nil
	s.lastErr = ""
	s.announcer.StartSession()
	s.mu.Unlock()

	util.LogWithLabel(session.ID.String(), "navigation started, %.0fm over %d maneuvers",
		route.TotalDistanceMeters(), len(s.maneuvers))
	s.emitUpdate()
	s.announceCurrent()
	return nil
}

// Stop ends the session and moves to Ended. Stopping with no live session
// only records the terminal state.
func (s *Service) Stop() {
	s.end(StateEnded)
}

// Cancel abandons the session and returns to Idle.
func (s *Service) Cancel() {
	s.end(StateIdle)
}

func (s *Service) end(terminal State) {
	s.mu.Lock()
	hadSession := s.session != nil
	s.teardownLocked(terminal)
	s.mu.Unlock()
	if hadSession {
		s.emitUpdate()
	}
}

func (s *Service) teardownLocked(terminal State) {
	if s.session != nil {
		if s.session.Watch != 0 {
			s.locations.Clear(s.session.Watch)
		}
		util.LogWithLabel(s.session.ID.String(), "navigation ended in state %s", terminal)
	}
	s.announcer.EndSession()
	s.session = nil
	s.route = nil
	s.maneuvers = nil
	s.nav = NavigationState{}
	s.lastHeading = nil
	s.lastErr = ""
	s.state = terminal
}

// handleFix runs for every position fix. The position and progress always
// move forward; recalculation is a separate, single-flight decision.
func (s *Service) handleFix(fix geoloc.Fix) {
	s.mu.Lock()
	if s.session == nil || (s.state != StateNavigating && s.state != StateRerouting) {
		s.mu.Unlock()
		return
	}

	obs := s.tracker.Observe(fix, s.session.LastKnownPosition, s.session.LastObservedAt, s.route)
	pos := obs.Position
	s.session.LastKnownPosition = &pos
	s.session.LastObservedAt = fix.ObservedAt()
	if obs.HasHeading {
		h := obs.Heading
		s.lastHeading = &h
	}
	if s.route != nil {
		s.nav = progressFor(s.route, s.maneuvers, pos)
	}
	dest := s.session.Destination
	sessionID := s.session.ID.String()
	s.mu.Unlock()

	s.emitUpdate()
	s.announceCurrent()

	if obs.ShouldRecalculate {
		s.coordinator.RequestRecompute(sessionID, pos, dest)
	}
}

// handleLocationError records a recoverable stream error. The session and
// its route survive; only tracking stalls until fixes resume.
func (s *Service) handleLocationError(err error) {
	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return
	}
	s.lastErr = err.Error()
	label := s.session.ID.String()
	s.mu.Unlock()

	util.LogWithLabel(label, "position stream error, navigation preserved: %v", err)
	s.emitUpdate()
}

func (s *Service) rerouteBegan(sessionID string) {
	s.mu.Lock()
	if s.session == nil || s.session.ID.String() != sessionID {
		s.mu.Unlock()
		return
	}
	if s.state == StateNavigating {
		s.state = StateRerouting
	}
	s.mu.Unlock()
	s.emitUpdate()
}

func (s *Service) rerouteSucceeded(sessionID string, route *ComposedRoute) {
	s.mu.Lock()
	if s.session == nil || s.session.ID.String() != sessionID {
		// The session that asked for this recomputation is gone; its result
		// must not touch whichever session is live now.
		s.mu.Unlock()
		util.LogWithLabel(sessionID, "discarding recalculation for an ended session")
		return
	}
	s.route = route
	s.maneuvers = buildManeuvers(route, s.cfg.Gate.Name)
	if s.session.LastKnownPosition != nil {
		s.nav = progressFor(route, s.maneuvers, *s.session.LastKnownPosition)
	}
	s.session.RerouteCount++
	if s.state == StateRerouting {
		s.state = StateNavigating
	}
	s.lastErr = ""
	label := s.session.ID.String()
	count := s.session.RerouteCount
	s.mu.Unlock()

	util.LogWithLabel(label, "route recalculated (#%d)", count)
	s.emitUpdate()
	s.announceCurrent()
}

func (s *Service) rerouteFailed(sessionID string, err error) {
	s.mu.Lock()
	if s.session == nil || s.session.ID.String() != sessionID {
		s.mu.Unlock()
		return
	}
	if s.state == StateRerouting {
		// Keep the previous route verbatim; staying on a stale line beats
		// dropping guidance.
		s.state = StateNavigating
	}
	s.lastErr = err.Error()
	s.mu.Unlock()

	util.LogWithLabel(sessionID, "recalculation failed, keeping previous route: %v", err)
	s.emitUpdate()
}

// Snapshot returns the current display state without waiting for the next
// change. Used to prime newly attached clients.
func (s *Service) Snapshot() StateUpdate {
	s.mu.Lock()
	update := s.snapshotLocked()
	s.mu.Unlock()
	return deepcopy.Copy(update).(StateUpdate)
}

func (s *Service) snapshotLocked() StateUpdate {
	update := StateUpdate{
		State:           s.state.String(),
		Route:           s.route,
		Navigation:      s.nav,
		HeadingDegrees:  s.lastHeading,
		IsRecalculating: s.coordinator.InFlight(),
		Error:           s.lastErr,
	}
	if s.session != nil {
		update.SessionID = s.session.ID.String()
		update.Position = s.session.LastKnownPosition
		update.RerouteCount = s.session.RerouteCount
	}
	return update
}

func (s *Service) emitUpdate() {
	s.mu.Lock()
	listener := s.listener
	if listener == nil {
		s.mu.Unlock()
		return
	}
	update := s.snapshotLocked()
	s.mu.Unlock()

	snap := deepcopy.Copy(update).(StateUpdate)
	go listener(snap)
}

func (s *Service) announceCurrent() {
	s.mu.Lock()
	var text string
	if s.nav.CurrentManeuver != nil && (s.state == StateNavigating || s.state == StateRerouting) {
		text = s.nav.CurrentManeuver.InstructionText
	}
	s.mu.Unlock()

	if text != "" {
		s.announcer.Announce(text)
	}
}
