package navigation

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/evermore-parks/parknav/internal/routing"
	"github.com/evermore-parks/parknav/pkg/geo"
)

// ManeuverType is the closed set of turn instructions the engine emits.
// Anything the routing service reports outside this set maps to
// ManeuverOther.
type ManeuverType int

const (
	ManeuverStart ManeuverType = iota
	ManeuverDestination
	ManeuverTurnLeft
	ManeuverTurnSlightLeft
	ManeuverTurnSharpLeft
	ManeuverTurnRight
	ManeuverTurnSlightRight
	ManeuverTurnSharpRight
	ManeuverContinue
	ManeuverUTurn
	ManeuverRoundaboutEnter
	ManeuverRoundaboutExit
	ManeuverRamp
	ManeuverOther
)

func (m ManeuverType) String() string {
	return [...]string{
		"Start",
		"Destination",
		"Turn Left",
		"Slight Left",
		"Sharp Left",
		"Turn Right",
		"Slight Right",
		"Sharp Right",
		"Continue",
		"U-Turn",
		"Enter Roundabout",
		"Exit Roundabout",
		"Ramp",
		"Other",
	}[m]
}

// Maneuver is one discrete navigation instruction with the stretch of route
// it covers.
type Maneuver struct {
	Type            ManeuverType `json:"type"`
	InstructionText string       `json:"instructionText"`
	StreetNames     []string     `json:"streetNames,omitempty"`
	LengthMeters    float64      `json:"lengthMeters"`
	TimeSeconds     float64      `json:"timeSeconds"`
}

// NavigationState is the maneuver progress snapshot recomputed on every
// route change and position fix.
type NavigationState struct {
	CurrentManeuver               *Maneuver `json:"currentManeuver,omitempty"`
	NextManeuver                  *Maneuver `json:"nextManeuver,omitempty"`
	ManeuverIndex                 int       `json:"maneuverIndex"`
	DistanceToDestinationMeters   *float64  `json:"distanceToDestinationMeters,omitempty"`
	EstimatedTimeRemainingSeconds *float64  `json:"estimatedTimeRemainingSeconds,omitempty"`
}

var printer = message.NewPrinter(language.English)

// maneuverTypeForStep maps the routing service's raw maneuver strings onto
// the closed enum.
func maneuverTypeForStep(stepType, modifier string) ManeuverType {
	switch stepType {
	case "depart":
		return ManeuverStart
	case "arrive":
		return ManeuverDestination
	case "continue", "new name":
		return ManeuverContinue
	case "roundabout", "rotary":
		return ManeuverRoundaboutEnter
	case "exit roundabout", "exit rotary":
		return ManeuverRoundaboutExit
	case "on ramp", "off ramp":
		return ManeuverRamp
	case "turn", "end of road", "fork", "merge":
		switch modifier {
		case "left":
			return ManeuverTurnLeft
		case "slight left":
			return ManeuverTurnSlightLeft
		case "sharp left":
			return ManeuverTurnSharpLeft
		case "right":
			return ManeuverTurnRight
		case "slight right":
			return ManeuverTurnSlightRight
		case "sharp right":
			return ManeuverTurnSharpRight
		case "straight":
			return ManeuverContinue
		case "uturn":
			return ManeuverUTurn
		}
		return ManeuverOther
	default:
		return ManeuverOther
	}
}

func instructionFor(t ManeuverType, street string, lengthMeters float64) string {
	onto := ""
	if street != "" {
		onto = printer.Sprintf(" onto %s", street)
	}
	switch t {
	case ManeuverStart:
		if street != "" {
			return printer.Sprintf("Head out along %s", street)
		}
		return "Head out toward the grounds"
	case ManeuverDestination:
		return "You have arrived at the memorial site"
	case ManeuverTurnLeft:
		return "Turn left" + onto
	case ManeuverTurnSlightLeft:
		return "Keep slightly left" + onto
	case ManeuverTurnSharpLeft:
		return "Make a sharp left" + onto
	case ManeuverTurnRight:
		return "Turn right" + onto
	case ManeuverTurnSlightRight:
		return "Keep slightly right" + onto
	case ManeuverTurnSharpRight:
		return "Make a sharp right" + onto
	case ManeuverContinue:
		if street != "" {
			return printer.Sprintf("Continue on %s for %d meters", street, int(lengthMeters+0.5))
		}
		return printer.Sprintf("Continue for %d meters", int(lengthMeters+0.5))
	case ManeuverUTurn:
		return "Make a U-turn"
	case ManeuverRoundaboutEnter:
		return "Enter the roundabout"
	case ManeuverRoundaboutExit:
		return "Exit the roundabout"
	case ManeuverRamp:
		return "Take the ramp" + onto
	default:
		if street != "" {
			return printer.Sprintf("Proceed along %s", street)
		}
		return "Proceed along the route"
	}
}

// maneuversForLeg converts a leg's steps into maneuvers. A leg without steps
// (synthetic fallback, or a service that returned no steps) is synthesized
// as a single walk plus arrival so the caller always has a maneuver list.
func maneuversForLeg(leg routing.Leg) []Maneuver {
	if len(leg.Steps) == 0 {
		return []Maneuver{
			{
				Type:            ManeuverContinue,
				InstructionText: instructionFor(ManeuverContinue, "", leg.DistanceMeters),
				LengthMeters:    leg.DistanceMeters,
				TimeSeconds:     leg.DurationSeconds,
			},
			{
				Type:            ManeuverDestination,
				InstructionText: instructionFor(ManeuverDestination, "", 0),
			},
		}
	}

	out := make([]Maneuver, 0, len(leg.Steps))
	for _, step := range leg.Steps {
		t := maneuverTypeForStep(step.Type, step.Modifier)
		m := Maneuver{
			Type:            t,
			InstructionText: instructionFor(t, step.StreetName, step.DistanceMeters),
			LengthMeters:    step.DistanceMeters,
			TimeSeconds:     step.DurationSeconds,
		}
		if step.StreetName != "" {
			m.StreetNames = []string{step.StreetName}
		}
		out = append(out, m)
	}
	if out[len(out)-1].Type != ManeuverDestination {
		out = append(out, Maneuver{
			Type:            ManeuverDestination,
			InstructionText: instructionFor(ManeuverDestination, "", 0),
		})
	}
	return out
}

// buildManeuvers assembles the full maneuver list for a composed route: the
// public approach (when present), the gate entry, then the in-grounds leg.
func buildManeuvers(route *ComposedRoute, gateName string) []Maneuver {
	if route == nil {
		return nil
	}

	private := maneuversForLeg(route.PrivateLeg)

	if route.PublicLeg == nil {
		if private[0].Type != ManeuverStart {
			start := Maneuver{
				Type:            ManeuverStart,
				InstructionText: instructionFor(ManeuverStart, "", 0),
			}
			private = append([]Maneuver{start}, private...)
		}
		return private
	}

	pub := route.PublicLeg
	out := []Maneuver{{
		Type:            ManeuverStart,
		InstructionText: printer.Sprintf("Head toward %s", gateName),
		LengthMeters:    pub.DistanceMeters,
		TimeSeconds:     pub.DurationSeconds,
	}}

	gateEntry := Maneuver{
		Type:            ManeuverContinue,
		InstructionText: printer.Sprintf("Enter the grounds through %s", gateName),
	}
	// The private leg's own depart step is the gate entry; fold its span in
	// rather than emitting both.
	if private[0].Type == ManeuverStart {
		gateEntry.LengthMeters = private[0].LengthMeters
		gateEntry.TimeSeconds = private[0].TimeSeconds
		private = private[1:]
	}
	out = append(out, gateEntry)
	return append(out, private...)
}

// progressFor maps the traveled distance along the route onto the maneuver
// list: the first maneuver whose cumulative length has not yet been exceeded
// is current, the one after it is next.
func progressFor(route *ComposedRoute, maneuvers []Maneuver, pos geo.Coordinate) NavigationState {
	if route == nil || len(maneuvers) == 0 {
		return NavigationState{}
	}

	full := route.FullPolyline()
	traveled := 0.0
	if idx, _ := geo.NearestVertex(pos, full); idx > 0 {
		for i := 0; i < idx; i++ {
			traveled += geo.DistanceMeters(full[i], full[i+1])
		}
	}

	index := len(maneuvers) - 1
	cumulative := 0.0
	for i := range maneuvers {
		cumulative += maneuvers[i].LengthMeters
		if traveled < cumulative {
			index = i
			break
		}
	}

	state := NavigationState{
		CurrentManeuver: &maneuvers[index],
		ManeuverIndex:   index,
	}
	if index+1 < len(maneuvers) {
		state.NextManeuver = &maneuvers[index+1]
	}

	total := route.TotalDistanceMeters()
	remaining := total - traveled
	if remaining < 0 {
		remaining = 0
	}
	state.DistanceToDestinationMeters = &remaining

	eta := 0.0
	if total > 0 {
		eta = route.TotalDurationSeconds() * remaining / total
	}
	state.EstimatedTimeRemainingSeconds = &eta
	return state
}
