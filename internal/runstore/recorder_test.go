package runstore

import (
	"testing"

	"github.com/fourway-systems/fourway/internal/engine"
)

func TestRecorderSummaryAndFinish(t *testing.T) {
	s := newTestStore(t)

	runID, err := s.CreateRun("steady", 1, engine.DefaultTiming())
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	rec := NewRecorder(s, runID)
	if rec.RunID() != runID {
		t.Errorf("Expected RunID %s, got %s", runID, rec.RunID())
	}

	var q1 [engine.NumRoads][engine.NumLanes]int
	q1[engine.North][engine.LaneStraightRight] = 2
	rec.OnStep(engine.StepResult{Tick: 1, State: engine.StateNSRedYellow}, q1)

	var q2 [engine.NumRoads][engine.NumLanes]int
	q2[engine.North][engine.LaneStraightRight] = 1
	rec.OnStep(engine.StepResult{
		Tick:  2,
		State: engine.StateNSStraight,
		Departed: []engine.Departure{
			{ID: "a", Road: engine.North, Lane: engine.LaneStraightRight, Wait: 2},
			{ID: "b", Road: engine.South, Lane: engine.LaneLeft, Wait: 4},
		},
	}, q2)

	sum := rec.Summary()
	if sum.Steps != 2 {
		t.Errorf("Expected 2 steps, got %d", sum.Steps)
	}
	if sum.Departures != 2 {
		t.Errorf("Expected 2 departures, got %d", sum.Departures)
	}
	// One vehicle still queued after the last step.
	if sum.Arrivals != 3 {
		t.Errorf("Expected 3 arrivals, got %d", sum.Arrivals)
	}
	if sum.AvgWait != 3 {
		t.Errorf("Expected avg wait 3, got %v", sum.AvgWait)
	}
	if sum.MaxWait != 4 {
		t.Errorf("Expected max wait 4, got %v", sum.MaxWait)
	}
	if sum.LeftWait != 4 {
		t.Errorf("Expected left wait 4, got %v", sum.LeftWait)
	}

	if err := rec.Finish(); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	run, err := s.Run(runID)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if run.Steps != 2 || run.Arrivals != 3 || run.Departures != 2 {
		t.Errorf("Expected counters 2/3/2, got %d/%d/%d", run.Steps, run.Arrivals, run.Departures)
	}
	if run.FinishedAt == nil {
		t.Error("Expected finished run to have FinishedAt set")
	}

	deps, err := s.RunDepartures(runID)
	if err != nil {
		t.Fatalf("RunDepartures failed: %v", err)
	}
	if len(deps) != 2 {
		t.Fatalf("Expected 2 recorded departures, got %d", len(deps))
	}
	if deps[0].VehicleID != "a" || deps[1].VehicleID != "b" {
		t.Errorf("Expected departures a, b, got %s, %s", deps[0].VehicleID, deps[1].VehicleID)
	}

	samples, err := s.RunQueueSamples(runID)
	if err != nil {
		t.Fatalf("RunQueueSamples failed: %v", err)
	}
	if len(samples) != 2*int(engine.NumRoads) {
		t.Errorf("Expected %d queue samples, got %d", 2*int(engine.NumRoads), len(samples))
	}
}

func TestRecorderEmptyRun(t *testing.T) {
	s := newTestStore(t)

	runID, err := s.CreateRun("ghost", 1, engine.DefaultTiming())
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	rec := NewRecorder(s, runID)
	sum := rec.Summary()
	if sum != (RunSummary{}) {
		t.Errorf("Expected zero summary before any step, got %+v", sum)
	}

	// A run with no departures must not divide by zero.
	rec.OnStep(engine.StepResult{Tick: 1, State: engine.StateAllRed}, [engine.NumRoads][engine.NumLanes]int{})
	sum = rec.Summary()
	if sum.Steps != 1 || sum.AvgWait != 0 || sum.LeftWait != 0 {
		t.Errorf("Expected one idle step with zero waits, got %+v", sum)
	}

	if err := rec.Finish(); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
}
