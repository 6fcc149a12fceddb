package engine

// Timing holds the tick budget for each controller interval plus the
// demand-shaping knobs. All values are non-negative tick counts; a
// zero interval is left on the very next tick.
type Timing struct {
	// GreenStraight and GreenLeft are the base green durations for
	// straight and left phases.
	GreenStraight uint32 `json:"green_straight"`
	GreenLeft     uint32 `json:"green_left"`

	// Yellow is the clearance interval after every green.
	Yellow uint32 `json:"yellow"`

	// AllRed is carried for configuration compatibility but gates no
	// transition: the all-red hold between phase-selection passes is
	// pinned to the one-tick red-yellow interval.
	AllRed uint32 `json:"all_red"`

	// RedYellow is the prepare-to-go interval. It is fixed at one tick
	// and not settable by callers; Normalize enforces this.
	RedYellow uint32 `json:"red_yellow"`

	// ExtendThreshold is the queue depth on a green lane at which the
	// green is held past its base duration.
	ExtendThreshold uint32 `json:"extension_threshold"`

	// MaxExtension caps how many extra ticks a green can be held.
	MaxExtension uint32 `json:"max_extension"`

	// SkipLimit is how many consecutive times an empty phase may be
	// passed over before it is forced to run anyway.
	SkipLimit uint32 `json:"skip_limit"`
}

// DefaultTiming returns the stock signal plan used when no
// configuration has been received.
func DefaultTiming() Timing {
	return Timing{
		GreenStraight:   4,
		GreenLeft:       3,
		Yellow:          1,
		AllRed:          3,
		RedYellow:       1,
		ExtendThreshold: 1,
		MaxExtension:    15,
		SkipLimit:       2,
	}
}

// Normalize returns t with the fixed intervals pinned. RedYellow is
// always one tick regardless of what the caller supplied.
func (t Timing) Normalize() Timing {
	t.RedYellow = 1
	return t
}

// gateKind selects which Timing field gates a transition.
type gateKind uint8

const (
	gateGreenStraight gateKind = iota
	gateGreenLeft
	gateYellow
	gateRedYellow
)

// gate returns the duration of the interval selected by k.
func (t Timing) gate(k gateKind) uint32 {
	switch k {
	case gateGreenStraight:
		return t.GreenStraight
	case gateGreenLeft:
		return t.GreenLeft
	case gateYellow:
		return t.Yellow
	case gateRedYellow:
		return t.RedYellow
	}
	return 0
}
