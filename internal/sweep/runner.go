package sweep

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/fourway-systems/fourway/internal/engine"
	"github.com/fourway-systems/fourway/internal/monitoring"
	"github.com/fourway-systems/fourway/internal/scenario"
)

// Runner measures every grid combination against the scenario suite.
type Runner struct {
	Profiles []scenario.Profile
	Grid     Grid

	// Seed drives script generation; zero selects the published default.
	Seed int64

	// Workers bounds concurrent simulations; zero means GOMAXPROCS.
	Workers int
}

// Measurements holds raw metrics for every combination x scenario pair.
// They carry no costs: the same measurements evaluate under any policy.
type Measurements struct {
	Timings   []engine.Timing
	Scenarios []string
	Seed      int64

	// Metrics is indexed [combination][scenario].
	Metrics [][]scenario.Metrics
}

// Measure plays every scenario under every timing combination. Runs are
// independent and execute in parallel.
func (r *Runner) Measure(ctx context.Context) (*Measurements, error) {
	if len(r.Profiles) == 0 {
		return nil, errors.New("sweep: no scenario profiles")
	}
	if err := r.Grid.Validate(); err != nil {
		return nil, err
	}

	seed := r.Seed
	if seed == 0 {
		seed = scenario.DefaultSeed
	}

	scripts := make([]*scenario.Script, len(r.Profiles))
	names := make([]string, len(r.Profiles))
	for i, p := range r.Profiles {
		scripts[i] = scenario.Generate(p, seed)
		names[i] = p.Name
	}

	combos := r.Grid.Combos()
	m := &Measurements{
		Timings:   combos,
		Scenarios: names,
		Seed:      seed,
		Metrics:   make([][]scenario.Metrics, len(combos)),
	}
	for i := range m.Metrics {
		m.Metrics[i] = make([]scenario.Metrics, len(scripts))
	}

	workers := r.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	total := len(combos) * len(scripts)
	monitoring.Logf("sweep: measuring %d combinations x %d scenarios", len(combos), len(scripts))

	var done atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for ci := range combos {
		for si := range scripts {
			g.Go(func() error {
				res, err := scenario.PlayLocal(ctx, combos[ci], scripts[si])
				if err != nil {
					return fmt.Errorf("combination %d, scenario %s: %w", ci, names[si], err)
				}
				m.Metrics[ci][si] = res.Metrics
				if n := done.Add(1); n%20 == 0 || n == int64(total) {
					monitoring.Logf("sweep: %d/%d runs complete", n, total)
				}
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return m, nil
}

// Norms derives the suite-wide normalization scales from every measured
// run.
func (m *Measurements) Norms() Norms {
	var avg, max, left []float64
	for _, row := range m.Metrics {
		for _, met := range row {
			avg = append(avg, met.AvgWait)
			max = append(max, met.MaxWait)
			left = append(left, met.LeftWait)
		}
	}
	return NormsFromSamples(avg, max, left)
}

// ComboResult is one timing combination scored under a policy.
type ComboResult struct {
	Timing    engine.Timing               `json:"timing"`
	Scenarios map[string]scenario.Metrics `json:"scenarios"`
	Costs     map[string]float64          `json:"costs"`
	AvgCost   float64                     `json:"avg_cost"`
}

// Report is a full sweep evaluation under one policy. Results are sorted
// best first; Optima holds each scenario's individual winner and
// Compromise the combination with the lowest suite-average cost.
type Report struct {
	Policy     string                 `json:"policy"`
	Weights    Weights                `json:"weights"`
	Norms      Norms                  `json:"norms"`
	Seed       int64                  `json:"seed"`
	Optima     map[string]ComboResult `json:"scenario_optima"`
	Compromise ComboResult            `json:"compromise"`
	Results    []ComboResult          `json:"results"`
}

// Evaluate scores measurements under one policy. Measurements must come
// from Measure, which guarantees at least one combination and scenario.
func Evaluate(m *Measurements, policy string, w Weights, n Norms) *Report {
	results := make([]ComboResult, len(m.Timings))
	for ci, timing := range m.Timings {
		cr := ComboResult{
			Timing:    timing,
			Scenarios: make(map[string]scenario.Metrics, len(m.Scenarios)),
			Costs:     make(map[string]float64, len(m.Scenarios)),
		}
		total := 0.0
		for si, name := range m.Scenarios {
			met := m.Metrics[ci][si]
			cost := w.Cost(met, n)
			cr.Scenarios[name] = met
			cr.Costs[name] = cost
			total += cost
		}
		cr.AvgCost = total / float64(len(m.Scenarios))
		results[ci] = cr
	}

	optima := make(map[string]ComboResult, len(m.Scenarios))
	for _, name := range m.Scenarios {
		best := results[0]
		for _, r := range results[1:] {
			if r.Costs[name] < best.Costs[name] {
				best = r
			}
		}
		optima[name] = best
	}

	sorted := append([]ComboResult(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].AvgCost < sorted[j].AvgCost
	})

	return &Report{
		Policy:     policy,
		Weights:    w,
		Norms:      n,
		Seed:       m.Seed,
		Optima:     optima,
		Compromise: sorted[0],
		Results:    sorted,
	}
}
