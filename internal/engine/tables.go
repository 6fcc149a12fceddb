package engine

// lightEntry asserts one color on a pair of opposing lanes while the
// controller sits in a given state.
type lightEntry struct {
	roadA Direction
	roadB Direction
	lane  Lane
	color LightColor
}

// lightTable maps each state to the lanes it lights. Lanes not listed
// stay red. During a left-turn phase (both its red-yellow preparation
// and its green) the two orthogonal straight-right lanes get a
// permissive right-arrow: their right turns never cross the protected
// left stream.
var lightTable = map[State][]lightEntry{
	StateNSRedYellow: {
		{North, South, LaneStraightRight, LightRedYellow},
	},
	StateNSStraight: {
		{North, South, LaneStraightRight, LightGreen},
	},
	StateNSStraightYellow: {
		{North, South, LaneStraightRight, LightYellow},
	},
	StateNSLeftRedYellow: {
		{North, South, LaneLeft, LightRedYellow},
		{East, West, LaneStraightRight, LightRightArrowGreen},
	},
	StateNSLeft: {
		{North, South, LaneLeft, LightGreen},
		{East, West, LaneStraightRight, LightRightArrowGreen},
	},
	StateNSLeftYellow: {
		{North, South, LaneLeft, LightYellow},
	},
	StateEWRedYellow: {
		{East, West, LaneStraightRight, LightRedYellow},
	},
	StateEWStraight: {
		{East, West, LaneStraightRight, LightGreen},
	},
	StateEWStraightYellow: {
		{East, West, LaneStraightRight, LightYellow},
	},
	StateEWLeftRedYellow: {
		{East, West, LaneLeft, LightRedYellow},
		{North, South, LaneStraightRight, LightRightArrowGreen},
	},
	StateEWLeft: {
		{East, West, LaneLeft, LightGreen},
		{North, South, LaneStraightRight, LightRightArrowGreen},
	},
	StateEWLeftYellow: {
		{East, West, LaneLeft, LightYellow},
	},
}

// transition is one row of the state table: where to go once the
// gating interval has elapsed.
type transition struct {
	next State
	gate gateKind
}

// transitionTable drives the fixed state sequence. Rows out of yellow
// states and all-red name the nominal next state; phase selection may
// override it when queues are empty.
var transitionTable = [NumStates]transition{
	StateAllRed:           {StateNSRedYellow, gateRedYellow},
	StateNSRedYellow:      {StateNSStraight, gateRedYellow},
	StateNSStraight:       {StateNSStraightYellow, gateGreenStraight},
	StateNSStraightYellow: {StateNSLeftRedYellow, gateYellow},
	StateNSLeftRedYellow:  {StateNSLeft, gateRedYellow},
	StateNSLeft:           {StateNSLeftYellow, gateGreenLeft},
	StateNSLeftYellow:     {StateEWRedYellow, gateYellow},
	StateEWRedYellow:      {StateEWStraight, gateRedYellow},
	StateEWStraight:       {StateEWStraightYellow, gateGreenStraight},
	StateEWStraightYellow: {StateEWLeftRedYellow, gateYellow},
	StateEWLeftRedYellow:  {StateEWLeft, gateRedYellow},
	StateEWLeft:           {StateEWLeftYellow, gateGreenLeft},
	StateEWLeftYellow:     {StateNSRedYellow, gateYellow},
}
