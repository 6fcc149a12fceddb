package engine

import (
	"errors"
	"fmt"
	"testing"
)

func TestAddVehicleRouting(t *testing.T) {
	e := New(DefaultTiming())

	if err := e.AddVehicle("left-turner", North, East, 0); err != nil {
		t.Fatalf("AddVehicle failed: %v", err)
	}
	if err := e.AddVehicle("straight", North, South, 0); err != nil {
		t.Fatalf("AddVehicle failed: %v", err)
	}
	if err := e.AddVehicle("right-turner", North, West, 0); err != nil {
		t.Fatalf("AddVehicle failed: %v", err)
	}

	if got := e.QueueLen(North, LaneLeft); got != 1 {
		t.Errorf("Expected 1 vehicle in the left lane, got %d", got)
	}
	if got := e.QueueLen(North, LaneStraightRight); got != 2 {
		t.Errorf("Expected 2 vehicles in the straight-right lane, got %d", got)
	}
	if got := e.QueuedTotal(); got != 3 {
		t.Errorf("Expected 3 vehicles total, got %d", got)
	}
}

func TestAddVehicleRejectsBadRoutes(t *testing.T) {
	e := New(DefaultTiming())

	if err := e.AddVehicle("u-turn", East, East, 0); !errors.Is(err, ErrBadRoute) {
		t.Errorf("Expected ErrBadRoute for a U-turn, got %v", err)
	}
	if err := e.AddVehicle("off-grid", Direction(9), North, 0); !errors.Is(err, ErrBadRoute) {
		t.Errorf("Expected ErrBadRoute for an invalid road, got %v", err)
	}
	if got := e.QueuedTotal(); got != 0 {
		t.Errorf("Rejected vehicles must not be queued, got %d", got)
	}
}

func TestAddVehicleQueueFull(t *testing.T) {
	e := New(DefaultTiming())
	for i := 0; i < QueueCapacity; i++ {
		if err := e.AddVehicle(fmt.Sprintf("v%d", i), West, East, 0); err != nil {
			t.Fatalf("AddVehicle %d failed: %v", i, err)
		}
	}
	err := e.AddVehicle("overflow", West, East, 0)
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Expected ErrQueueFull, got %v", err)
	}
	if got := e.QueueLen(West, LaneStraightRight); got != QueueCapacity {
		t.Errorf("Expected %d queued, got %d", QueueCapacity, got)
	}
}

// TestFirstGreenDischarge drives a single North->South vehicle through
// the opening sequence: all-red, one red-yellow tick, then the vehicle
// leaves on the very first green tick with its full wait reported.
func TestFirstGreenDischarge(t *testing.T) {
	e := New(Timing{
		GreenStraight:   4,
		GreenLeft:       3,
		Yellow:          2,
		AllRed:          3,
		ExtendThreshold: 1,
		MaxExtension:    1,
		SkipLimit:       2,
	})
	if err := e.AddVehicle("veh-1", North, South, 0); err != nil {
		t.Fatalf("AddVehicle failed: %v", err)
	}

	res := e.Step()
	if res.Tick != 1 || res.State != StateNSRedYellow {
		t.Fatalf("Tick 1: expected ns_red_yellow, got %v at tick %d", res.State, res.Tick)
	}
	if len(res.Departed) != 0 {
		t.Fatalf("No vehicle may leave during red-yellow, got %v", res.Departed)
	}

	res = e.Step()
	if res.Tick != 2 || res.State != StateNSStraight {
		t.Fatalf("Tick 2: expected ns_straight, got %v at tick %d", res.State, res.Tick)
	}
	if len(res.Departed) != 1 {
		t.Fatalf("Expected exactly one departure on the first green tick, got %d", len(res.Departed))
	}
	dep := res.Departed[0]
	if dep.ID != "veh-1" {
		t.Errorf("Expected veh-1, got %q", dep.ID)
	}
	if dep.Road != North || dep.Lane != LaneStraightRight {
		t.Errorf("Expected departure from north straight-right, got %v %v", dep.Road, dep.Lane)
	}
	if dep.Wait != 2 {
		t.Errorf("Expected wait of 2 ticks, got %d", dep.Wait)
	}
	if e.MaxWait(North, LaneStraightRight) != 2 {
		t.Errorf("Expected lane max wait 2, got %d", e.MaxWait(North, LaneStraightRight))
	}
}

// TestEmptyIntersectionRestsAllRed checks the idle behavior: with no
// demand the controller sits at all-red, burning one skip credit per
// phase per tick, until the skip limit forces a phase through.
func TestEmptyIntersectionRestsAllRed(t *testing.T) {
	e := New(Timing{GreenStraight: 2, GreenLeft: 2, Yellow: 1, SkipLimit: 10})

	for i := 0; i < 10; i++ {
		res := e.Step()
		if res.State != StateAllRed {
			t.Fatalf("Tick %d: expected all_red, got %v", res.Tick, res.State)
		}
		if res.Lights != grid() {
			t.Fatalf("Tick %d: expected all lights red", res.Tick)
		}
	}

	// Skip counters reach the limit together; the rotation head runs.
	res := e.Step()
	if res.State != StateNSRedYellow {
		t.Fatalf("Expected forced ns_red_yellow after skip limit, got %v", res.State)
	}
}

// TestStarvationBound keeps the north-south straight lane supplied
// while every other phase stays empty, and verifies an empty phase is
// never passed over more than skip_limit consecutive times.
func TestStarvationBound(t *testing.T) {
	e := New(Timing{
		GreenStraight:   1,
		GreenLeft:       1,
		Yellow:          1,
		ExtendThreshold: 100,
		MaxExtension:    0,
		SkipLimit:       2,
	})

	topUp := func() {
		if e.QueueLen(North, LaneStraightRight) == 0 {
			if err := e.AddVehicle("feeder", North, South, e.Tick()); err != nil {
				t.Fatalf("AddVehicle failed: %v", err)
			}
		}
	}

	// With one-tick greens and no extension, every green tick is a
	// distinct phase entry.
	topUp()
	var greens []State
	for i := 0; i < 12 && len(greens) < 4; i++ {
		res := e.Step()
		if res.State.IsGreen() {
			greens = append(greens, res.State)
		}
		topUp()
	}

	want := []State{StateNSStraight, StateNSStraight, StateNSStraight, StateNSLeft}
	if len(greens) != len(want) {
		t.Fatalf("Expected green sequence %v, got %v", want, greens)
	}
	for i := range want {
		if greens[i] != want[i] {
			t.Fatalf("Green entry %d: expected %v, got %v (full %v)", i, want[i], greens[i], greens)
		}
	}
}

// TestGreenExtension loads one lane far beyond the base green duration
// and verifies the green is stretched by exactly max_extension ticks
// before yielding.
func TestGreenExtension(t *testing.T) {
	e := New(Timing{
		GreenStraight:   2,
		GreenLeft:       1,
		Yellow:          1,
		ExtendThreshold: 1,
		MaxExtension:    3,
		SkipLimit:       0,
	})
	for i := 0; i < 8; i++ {
		if err := e.AddVehicle(fmt.Sprintf("v%d", i), South, North, 0); err != nil {
			t.Fatalf("AddVehicle failed: %v", err)
		}
	}

	greenTicks := 0
	departed := 0
	sawYellow := false
	for i := 0; i < 20 && !sawYellow; i++ {
		res := e.Step()
		switch {
		case res.State == StateNSStraight:
			greenTicks++
			departed += len(res.Departed)
		case res.State == StateNSStraightYellow:
			sawYellow = true
		}
	}

	if !sawYellow {
		t.Fatal("Green never yielded to yellow")
	}
	// Base green of 2 plus 3 extension ticks.
	if greenTicks != 5 {
		t.Errorf("Expected 5 green ticks (2 base + 3 extension), got %d", greenTicks)
	}
	if departed != 5 {
		t.Errorf("Expected 5 departures during the extended green, got %d", departed)
	}
	if got := e.QueueLen(South, LaneStraightRight); got != 3 {
		t.Errorf("Expected 3 vehicles still queued, got %d", got)
	}
}

// TestRightArrowDischarge exercises the permissive right turn: during
// the north-south left phase (both its red-yellow and green ticks) the
// east-west straight lanes carry a green arrow that releases right
// turners only, while anything else blocks the lane.
func TestRightArrowDischarge(t *testing.T) {
	e := New(Timing{
		GreenStraight:   2,
		GreenLeft:       2,
		Yellow:          1,
		ExtendThreshold: 100,
		MaxExtension:    0,
		SkipLimit:       5,
	})

	// Left-turn demand pulls the controller into the NS left phase
	// (the straight phase is empty and gets skipped).
	if err := e.AddVehicle("ns-left", North, East, 0); err != nil {
		t.Fatalf("AddVehicle failed: %v", err)
	}
	// East right turn goes to north; behind it a straight crosser.
	if err := e.AddVehicle("east-right", East, North, 0); err != nil {
		t.Fatalf("AddVehicle failed: %v", err)
	}
	if err := e.AddVehicle("east-straight", East, West, 0); err != nil {
		t.Fatalf("AddVehicle failed: %v", err)
	}

	res := e.Step()
	if res.State != StateNSLeftRedYellow {
		t.Fatalf("Tick 1: expected ns_left_red_yellow, got %v", res.State)
	}
	if got := res.Lights[East][LaneStraightRight]; got != LightRightArrowGreen {
		t.Fatalf("Expected right arrow on east straight lane during red-yellow, got %v", got)
	}
	if len(res.Departed) != 1 || res.Departed[0].ID != "east-right" {
		t.Fatalf("Expected east-right to slip through on the arrow, got %v", res.Departed)
	}

	res = e.Step()
	if res.State != StateNSLeft {
		t.Fatalf("Tick 2: expected ns_left, got %v", res.State)
	}
	if got := res.Lights[East][LaneStraightRight]; got != LightRightArrowGreen {
		t.Fatalf("Expected right arrow to persist through green, got %v", got)
	}
	if len(res.Departed) != 1 || res.Departed[0].ID != "ns-left" {
		t.Fatalf("Expected only the protected left turner, got %v", res.Departed)
	}
	// The straight crosser stays put behind the arrow.
	if got := e.QueueLen(East, LaneStraightRight); got != 1 {
		t.Errorf("Expected blocked straight vehicle to remain, got %d queued", got)
	}
}

// TestDischargeOrder queues releasable vehicles on several lanes at
// once and verifies the departure list scans roads north to west.
func TestDischargeOrder(t *testing.T) {
	e := New(Timing{
		GreenStraight:   3,
		GreenLeft:       1,
		Yellow:          1,
		ExtendThreshold: 100,
		MaxExtension:    0,
		SkipLimit:       2,
	})
	if err := e.AddVehicle("north-bound", North, South, 0); err != nil {
		t.Fatalf("AddVehicle failed: %v", err)
	}
	if err := e.AddVehicle("south-bound", South, North, 0); err != nil {
		t.Fatalf("AddVehicle failed: %v", err)
	}

	e.Step() // all_red -> ns_red_yellow
	res := e.Step()
	if res.State != StateNSStraight {
		t.Fatalf("Expected ns_straight, got %v", res.State)
	}
	if len(res.Departed) != 2 {
		t.Fatalf("Expected both directions to discharge, got %v", res.Departed)
	}
	if res.Departed[0].ID != "north-bound" || res.Departed[1].ID != "south-bound" {
		t.Errorf("Expected north before south, got %v", res.Departed)
	}
}

func TestConfigureResets(t *testing.T) {
	e := New(DefaultTiming())
	if err := e.AddVehicle("stale", North, South, 0); err != nil {
		t.Fatalf("AddVehicle failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		e.Step()
	}
	if e.Tick() == 0 {
		t.Fatal("Engine should have advanced")
	}

	e.Configure(Timing{GreenStraight: 9, RedYellow: 7})

	if e.Tick() != 0 {
		t.Errorf("Expected tick reset, got %d", e.Tick())
	}
	if e.State() != StateAllRed {
		t.Errorf("Expected all_red after configure, got %v", e.State())
	}
	if e.QueuedTotal() != 0 {
		t.Errorf("Expected queues cleared, got %d vehicles", e.QueuedTotal())
	}
	if e.MaxWait(North, LaneStraightRight) != 0 {
		t.Errorf("Expected wait statistics cleared, got %d", e.MaxWait(North, LaneStraightRight))
	}
	if e.Timing().GreenStraight != 9 {
		t.Errorf("New timing not applied: %+v", e.Timing())
	}
	if e.Timing().RedYellow != 1 {
		t.Errorf("red_yellow must stay pinned at 1, got %d", e.Timing().RedYellow)
	}
	if e.Lights() != grid() {
		t.Errorf("Expected all lights red after configure")
	}
}
