// Package engine implements a discrete-time controller for a four-way
// road intersection: per-lane arrival queues, a table-driven signal
// state machine with demand-based phase skipping and green extension,
// and per-tick discharge of departing vehicles.
//
// The engine is deliberately single-threaded and allocation-light.
// Hosts that expose it to more than one goroutine must serialize
// Configure, AddVehicle and Step behind a single owner.
package engine

import "fmt"

// Departure records one vehicle leaving the intersection during a
// step, with the lane it left from and how long it waited.
type Departure struct {
	ID   string
	Road Direction
	Lane Lane
	Wait uint32
}

// StepResult is the observable outcome of one tick: the tick number,
// the state and lights after any transition, and the vehicles that
// departed, in discharge order.
type StepResult struct {
	Tick     uint32
	State    State
	Lights   [NumRoads][NumLanes]LightColor
	Departed []Departure
}

// Engine is one intersection controller instance. The zero value is
// not usable; construct with New.
type Engine struct {
	timing Timing

	state    State
	tick     uint32 // global step counter
	inState  uint32 // ticks spent in the current state
	extended uint32 // extension ticks granted to the current green

	queues [NumRoads][NumLanes]LaneQueue
	lights [NumRoads][NumLanes]LightColor

	// skips[p] counts consecutive times phase p was passed over for
	// being empty. At SkipLimit the phase runs regardless.
	skips [NumPhases]uint32
}

// New returns an engine at tick zero in the all-red state with empty
// queues, running the given signal plan.
func New(t Timing) *Engine {
	e := &Engine{timing: t.Normalize()}
	e.applyLights()
	return e
}

// Configure resets the engine to its initial state under a new signal
// plan. Queued vehicles, timers, statistics and skip counters are all
// discarded.
func (e *Engine) Configure(t Timing) {
	*e = Engine{timing: t.Normalize()}
	e.applyLights()
}

// Timing returns the active signal plan.
func (e *Engine) Timing() Timing {
	return e.timing
}

// State returns the current controller state.
func (e *Engine) State() State {
	return e.state
}

// Tick returns the number of steps taken since the last configure.
func (e *Engine) Tick() uint32 {
	return e.tick
}

// Lights returns the current signal for every (road, lane).
func (e *Engine) Lights() [NumRoads][NumLanes]LightColor {
	return e.lights
}

// Light returns the signal shown to one lane.
func (e *Engine) Light(road Direction, lane Lane) LightColor {
	return e.lights[road][lane]
}

// QueueLen returns the number of vehicles waiting in one lane.
func (e *Engine) QueueLen(road Direction, lane Lane) int {
	return e.queues[road][lane].Len()
}

// QueueLens returns the depth of every lane queue.
func (e *Engine) QueueLens() [NumRoads][NumLanes]int {
	var out [NumRoads][NumLanes]int
	for r := range e.queues {
		for l := range e.queues[r] {
			out[r][l] = e.queues[r][l].Len()
		}
	}
	return out
}

// QueuedTotal returns the number of vehicles waiting across all lanes.
func (e *Engine) QueuedTotal() int {
	total := 0
	for r := range e.queues {
		for l := range e.queues[r] {
			total += e.queues[r][l].Len()
		}
	}
	return total
}

// MaxWait returns the longest wait observed on one lane since the last
// configure.
func (e *Engine) MaxWait(road Direction, lane Lane) uint32 {
	return e.queues[road][lane].MaxWait()
}

// AddVehicle queues a vehicle arriving at tick arrival on the lane its
// route implies. The ID is truncated to MaxVehicleIDLen bytes. Returns
// ErrBadRoute for an undrivable route and ErrQueueFull when the lane
// is at capacity; both leave the engine unchanged.
func (e *Engine) AddVehicle(id string, start, end Direction, arrival uint32) error {
	lane, err := LaneFor(start, end)
	if err != nil {
		return err
	}
	if err := e.queues[start][lane].Enqueue(Vehicle{ID: id, Start: start, End: end, Arrival: arrival}); err != nil {
		return fmt.Errorf("road %s lane %s: %w", start, lane, err)
	}
	return nil
}

// Step advances the controller by one tick: timers advance, the state
// machine moves (or holds for a green extension), lights are
// recomputed, and every lane with a permitting signal discharges at
// most one vehicle.
func (e *Engine) Step() StepResult {
	e.tick++
	e.inState++

	next := e.nextState()

	// A green about to end is held while demand persists, up to
	// MaxExtension extra ticks.
	if next != e.state && e.state.IsGreen() &&
		e.shouldExtend() && e.extended < e.timing.MaxExtension {
		e.extended++
		next = e.state
	}

	if next != e.state {
		e.state = next
		e.inState = 0
		e.extended = 0
	}

	e.applyLights()
	departed := e.discharge()

	return StepResult{
		Tick:     e.tick,
		State:    e.state,
		Lights:   e.lights,
		Departed: departed,
	}
}

// nextState computes where the controller goes this tick. States hold
// until their gating interval elapses. Leaving a green or a red-yellow
// follows the static table; leaving a yellow or the all-red state runs
// phase selection over the queues.
func (e *Engine) nextState() State {
	tr := transitionTable[e.state]
	if e.inState < e.timing.gate(tr.gate) {
		return e.state
	}
	if !e.state.isYellow() && e.state != StateAllRed {
		return tr.next
	}
	return e.selectPhase()
}

// selectPhase scans the rotation starting at the phase that naturally
// follows the current state. An empty phase is skipped, at the cost of
// one starvation credit, until SkipLimit skips force it to run. With
// every phase empty and under its limit the intersection rests at
// all-red.
func (e *Engine) selectPhase() State {
	p := phaseAfterYellow(e.state)
	for i := 0; i < NumPhases; i++ {
		if !e.phaseEmpty(p) || e.skips[p] >= e.timing.SkipLimit {
			e.skips[p] = 0
			return p.entryState()
		}
		e.skips[p]++
		p = p.next()
	}
	return StateAllRed
}

// phaseEmpty reports whether both lanes served by phase p are empty.
func (e *Engine) phaseEmpty(p Phase) bool {
	for _, rl := range phaseLanes[p] {
		if !e.queues[rl.Road][rl.Lane].Empty() {
			return false
		}
	}
	return true
}

// shouldExtend reports whether any lane currently shown a full green
// has reached the extension threshold.
func (e *Engine) shouldExtend() bool {
	for r := range e.queues {
		for l := range e.queues[r] {
			if e.lights[r][l] != LightGreen {
				continue
			}
			if uint32(e.queues[r][l].Len()) >= e.timing.ExtendThreshold {
				return true
			}
		}
	}
	return false
}

// applyLights recomputes the signal for every lane from the current
// state: everything red, then the state's table entries on top.
func (e *Engine) applyLights() {
	for r := range e.lights {
		for l := range e.lights[r] {
			e.lights[r][l] = LightRed
		}
	}
	for _, le := range lightTable[e.state] {
		e.lights[le.roadA][le.lane] = le.color
		e.lights[le.roadB][le.lane] = le.color
	}
}

// discharge lets at most one vehicle per lane leave, scanning roads
// north to west and the straight-right lane before the left lane. A
// full green releases the front vehicle unconditionally; a permissive
// right-arrow releases it only if it is actually turning right,
// otherwise the lane stays blocked behind it.
func (e *Engine) discharge() []Departure {
	var departed []Departure
	for road := Direction(0); road < NumRoads; road++ {
		for lane := Lane(0); lane < NumLanes; lane++ {
			q := &e.queues[road][lane]
			if q.Empty() {
				continue
			}
			switch e.lights[road][lane] {
			case LightGreen:
				// front vehicle released below
			case LightRightArrowGreen:
				front, err := q.Peek()
				if err != nil || front.End != road.RightTurn() {
					continue
				}
			default:
				continue
			}
			v, wait, err := q.Dequeue(e.tick)
			if err != nil {
				continue
			}
			departed = append(departed, Departure{
				ID:   v.ID,
				Road: road,
				Lane: lane,
				Wait: wait,
			})
		}
	}
	return departed
}
