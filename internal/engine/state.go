package engine

import "fmt"

// Direction identifies one of the four approach roads. The numeric
// values are part of the wire protocol and must not be reordered.
type Direction uint8

const (
	North Direction = iota
	East
	South
	West
)

// NumRoads is the number of approach roads at the intersection.
const NumRoads = 4

var directionNames = [NumRoads]string{"north", "east", "south", "west"}

func (d Direction) String() string {
	if !d.Valid() {
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
	return directionNames[d]
}

// Valid reports whether d names a real approach road.
func (d Direction) Valid() bool {
	return d < NumRoads
}

// ParseDirection maps a lowercase road name ("north", "east", "south",
// "west") to its Direction. Scenario files and the HTTP API use names
// rather than wire codes.
func ParseDirection(s string) (Direction, error) {
	for i, name := range directionNames {
		if s == name {
			return Direction(i), nil
		}
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// RightTurn returns the destination road of a right turn off d.
// Directions run clockwise, so a right turn lands one step behind.
func (d Direction) RightTurn() Direction {
	return Direction((uint8(d) + 3) % NumRoads)
}

// LeftTurn returns the destination road of a left turn off d.
func (d Direction) LeftTurn() Direction {
	return Direction((uint8(d) + 1) % NumRoads)
}

// IsLeftTurn reports whether travelling start->end crosses oncoming
// traffic. On the clockwise compass a left turn is one step ahead.
func IsLeftTurn(start, end Direction) bool {
	return (uint8(end)-uint8(start)+NumRoads)%NumRoads == 1
}

// Lane identifies one of the two approach lanes on a road. Left turns
// queue separately; straight-through and right turns share a lane.
type Lane uint8

const (
	LaneStraightRight Lane = iota
	LaneLeft
)

// NumLanes is the number of queueing lanes per road.
const NumLanes = 2

func (l Lane) String() string {
	switch l {
	case LaneStraightRight:
		return "straight_right"
	case LaneLeft:
		return "left"
	}
	return fmt.Sprintf("lane(%d)", uint8(l))
}

// LaneFor resolves the lane a vehicle joins for the given route, or an
// error if the route is not drivable (off-grid road or a U-turn).
func LaneFor(start, end Direction) (Lane, error) {
	if !start.Valid() || !end.Valid() {
		return 0, fmt.Errorf("%w: %s to %s", ErrBadRoute, start, end)
	}
	if start == end {
		return 0, fmt.Errorf("%w: %s to %s", ErrBadRoute, start, end)
	}
	if IsLeftTurn(start, end) {
		return LaneLeft, nil
	}
	return LaneStraightRight, nil
}

// LightColor is the signal shown to one lane. The numeric values are
// part of the wire protocol and must not be reordered.
type LightColor uint8

const (
	LightRed LightColor = iota
	LightYellow
	LightGreen
	LightRedYellow
	LightRightArrowGreen
)

func (c LightColor) String() string {
	switch c {
	case LightRed:
		return "red"
	case LightYellow:
		return "yellow"
	case LightGreen:
		return "green"
	case LightRedYellow:
		return "red_yellow"
	case LightRightArrowGreen:
		return "right_arrow_green"
	}
	return fmt.Sprintf("light(%d)", uint8(c))
}

// State is one of the 13 controller states. The numeric values are
// part of the wire protocol and must not be reordered.
type State uint8

const (
	StateAllRed State = iota
	StateNSRedYellow
	StateNSStraight
	StateNSStraightYellow
	StateNSLeftRedYellow
	StateNSLeft
	StateNSLeftYellow
	StateEWRedYellow
	StateEWStraight
	StateEWStraightYellow
	StateEWLeftRedYellow
	StateEWLeft
	StateEWLeftYellow
)

// NumStates is the number of controller states.
const NumStates = 13

var stateNames = [NumStates]string{
	"all_red",
	"ns_red_yellow",
	"ns_straight",
	"ns_straight_yellow",
	"ns_left_red_yellow",
	"ns_left",
	"ns_left_yellow",
	"ew_red_yellow",
	"ew_straight",
	"ew_straight_yellow",
	"ew_left_red_yellow",
	"ew_left",
	"ew_left_yellow",
}

func (s State) String() string {
	if s >= NumStates {
		return fmt.Sprintf("state(%d)", uint8(s))
	}
	return stateNames[s]
}

// IsGreen reports whether s is one of the four green phases.
func (s State) IsGreen() bool {
	switch s {
	case StateNSStraight, StateNSLeft, StateEWStraight, StateEWLeft:
		return true
	}
	return false
}

// isYellow reports whether s is a clearance interval after a green.
func (s State) isYellow() bool {
	switch s {
	case StateNSStraightYellow, StateNSLeftYellow, StateEWStraightYellow, StateEWLeftYellow:
		return true
	}
	return false
}

// Phase indexes the four green phases in rotation order.
type Phase uint8

const (
	PhaseNSStraight Phase = iota
	PhaseNSLeft
	PhaseEWStraight
	PhaseEWLeft
)

// NumPhases is the number of green phases in the rotation.
const NumPhases = 4

func (p Phase) String() string {
	switch p {
	case PhaseNSStraight:
		return "ns_straight"
	case PhaseNSLeft:
		return "ns_left"
	case PhaseEWStraight:
		return "ew_straight"
	case PhaseEWLeft:
		return "ew_left"
	}
	return fmt.Sprintf("phase(%d)", uint8(p))
}

// next returns the phase that follows p in the fixed rotation.
func (p Phase) next() Phase {
	return (p + 1) % NumPhases
}

// entryState returns the red-yellow preparation state that leads into
// phase p.
func (p Phase) entryState() State {
	switch p {
	case PhaseNSStraight:
		return StateNSRedYellow
	case PhaseNSLeft:
		return StateNSLeftRedYellow
	case PhaseEWStraight:
		return StateEWRedYellow
	case PhaseEWLeft:
		return StateEWLeftRedYellow
	}
	return StateAllRed
}

// phaseAfterYellow returns the first candidate phase considered when
// the controller leaves s. Leaving a yellow resumes the rotation at the
// phase after the one that just ran; waking from all-red starts the
// rotation from the top.
func phaseAfterYellow(s State) Phase {
	switch s {
	case StateNSStraightYellow:
		return PhaseNSLeft
	case StateNSLeftYellow:
		return PhaseEWStraight
	case StateEWStraightYellow:
		return PhaseEWLeft
	case StateEWLeftYellow:
		return PhaseNSStraight
	}
	return PhaseNSStraight
}

// phaseLanes lists the (road, lane) pair served by each green phase on
// both sides of the intersection.
var phaseLanes = [NumPhases][2]struct {
	Road Direction
	Lane Lane
}{
	PhaseNSStraight: {{North, LaneStraightRight}, {South, LaneStraightRight}},
	PhaseNSLeft:     {{North, LaneLeft}, {South, LaneLeft}},
	PhaseEWStraight: {{East, LaneStraightRight}, {West, LaneStraightRight}},
	PhaseEWLeft:     {{East, LaneLeft}, {West, LaneLeft}},
}
