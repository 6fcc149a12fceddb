// Package api serves the controller's HTTP monitor surface: live
// state, signal plan, vehicle injection, stepping, and recorded runs.
package api

import (
	"sync"

	"github.com/fourway-systems/fourway/internal/engine"
)

// Control serializes one engine shared between the wire session and
// the HTTP handlers. The engine itself is single-threaded; every
// access goes through the mutex here.
type Control struct {
	mu  sync.Mutex
	eng *engine.Engine

	// OnStep, when set before serving starts, observes every step with
	// the post-step queue depths. It runs outside the engine lock.
	OnStep func(res engine.StepResult, queues [engine.NumRoads][engine.NumLanes]int)
}

// NewControl wraps eng for shared use.
func NewControl(eng *engine.Engine) *Control {
	return &Control{eng: eng}
}

// Configure resets the engine under a new signal plan.
func (c *Control) Configure(t engine.Timing) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eng.Configure(t)
}

// Timing returns the active signal plan.
func (c *Control) Timing() engine.Timing {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eng.Timing()
}

// AddVehicle queues a vehicle with an explicit arrival tick. The wire
// session uses this; HTTP callers use AddVehicleNow.
func (c *Control) AddVehicle(id string, start, end engine.Direction, arrival uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eng.AddVehicle(id, start, end, arrival)
}

// AddVehicleNow queues a vehicle arriving at the current tick.
func (c *Control) AddVehicleNow(id string, start, end engine.Direction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eng.AddVehicle(id, start, end, c.eng.Tick())
}

// Step advances the engine one tick and feeds the step observer.
func (c *Control) Step() engine.StepResult {
	c.mu.Lock()
	res := c.eng.Step()
	queues := c.eng.QueueLens()
	c.mu.Unlock()

	if c.OnStep != nil {
		c.OnStep(res, queues)
	}
	return res
}

// Snapshot is a consistent view of the engine for the monitor.
type Snapshot struct {
	Tick     uint32
	State    engine.State
	Lights   [engine.NumRoads][engine.NumLanes]engine.LightColor
	Queues   [engine.NumRoads][engine.NumLanes]int
	MaxWaits [engine.NumRoads][engine.NumLanes]uint32
	Queued   int
}

// Snapshot captures tick, state, lights, queue depths and max waits
// under one lock acquisition.
func (c *Control) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Tick:   c.eng.Tick(),
		State:  c.eng.State(),
		Lights: c.eng.Lights(),
		Queues: c.eng.QueueLens(),
	}
	for road := engine.Direction(0); road < engine.NumRoads; road++ {
		for lane := engine.Lane(0); lane < engine.NumLanes; lane++ {
			snap.MaxWaits[road][lane] = c.eng.MaxWait(road, lane)
			snap.Queued += snap.Queues[road][lane]
		}
	}
	return snap
}
