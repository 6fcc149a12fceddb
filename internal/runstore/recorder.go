package runstore

import (
	"sync"

	"github.com/fourway-systems/fourway/internal/engine"
	"github.com/fourway-systems/fourway/internal/monitoring"
)

// Recorder persists every step of one run and accumulates its summary.
// Hosts hang OnStep off their controller's step hook; OnStep is safe
// for concurrent callers.
type Recorder struct {
	store *Store
	runID string

	mu       sync.Mutex
	steps    int
	departed int
	queued   int // depth across all lanes after the latest step
	waitSum  float64
	maxWait  float64
	leftSum  float64
	leftN    int
}

// NewRecorder records steps against an existing run row.
func NewRecorder(store *Store, runID string) *Recorder {
	return &Recorder{store: store, runID: runID}
}

// RunID returns the run this recorder feeds.
func (r *Recorder) RunID() string { return r.runID }

// OnStep persists one step and folds its departures into the summary.
// Persistence failures are logged, not returned: a recording fault must
// not stall the controller.
func (r *Recorder) OnStep(res engine.StepResult, queues [engine.NumRoads][engine.NumLanes]int) {
	if err := r.store.RecordStep(r.runID, res, queues); err != nil {
		monitoring.Logf("runstore: recording step %d: %v", res.Tick, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps++
	for _, dep := range res.Departed {
		r.departed++
		wait := float64(dep.Wait)
		r.waitSum += wait
		if wait > r.maxWait {
			r.maxWait = wait
		}
		if dep.Lane == engine.LaneLeft {
			r.leftSum += wait
			r.leftN++
		}
	}
	r.queued = 0
	for _, road := range queues {
		for _, n := range road {
			r.queued += n
		}
	}
}

// Summary returns the totals accumulated so far. Arrivals count
// everything that departed plus everything still queued after the
// latest step.
func (r *Recorder) Summary() RunSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	sum := RunSummary{
		Steps:      r.steps,
		Arrivals:   r.departed + r.queued,
		Departures: r.departed,
		MaxWait:    r.maxWait,
	}
	if r.departed > 0 {
		sum.AvgWait = r.waitSum / float64(r.departed)
	}
	if r.leftN > 0 {
		sum.LeftWait = r.leftSum / float64(r.leftN)
	}
	return sum
}

// Finish closes out the run row with the accumulated summary.
func (r *Recorder) Finish() error {
	return r.store.FinishRun(r.runID, r.Summary())
}
