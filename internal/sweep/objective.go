package sweep

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/fourway-systems/fourway/internal/scenario"
)

// Weights sets the relative importance of each wait statistic in the
// cost. All three statistics are minimized; a heavier weight punishes
// that statistic harder.
type Weights struct {
	Avg  float64 `json:"avg"`
	Max  float64 `json:"max"`
	Left float64 `json:"left"`
}

// Policies returns the named weight presets.
func Policies() map[string]Weights {
	return map[string]Weights{
		"balanced":      {Avg: 1.0, Max: 0.5, Left: 0.3},
		"fairness":      {Avg: 0.7, Max: 2.0, Left: 0.5},
		"throughput":    {Avg: 1.0, Max: 0.3, Left: 0.2},
		"left_friendly": {Avg: 0.8, Max: 0.4, Left: 2.0},
	}
}

// PolicyNames lists the presets in stable order.
func PolicyNames() []string {
	var names []string
	for name := range Policies() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Norms are the normalization scales for the cost terms, typically the
// suite's 80th-percentile waits.
type Norms struct {
	Avg  float64 `json:"avg"`
	Max  float64 `json:"max"`
	Left float64 `json:"left"`
}

// DefaultNorms covers the degenerate case of a suite that produced no
// samples.
func DefaultNorms() Norms {
	return Norms{Avg: 50, Max: 200, Left: 60}
}

// NormQuantile is the percentile norms are taken at.
const NormQuantile = 0.8

// NormsFromSamples derives norms from measured waits. Sample order does
// not matter; an empty slice falls back to the default scale.
func NormsFromSamples(avg, max, left []float64) Norms {
	d := DefaultNorms()
	return Norms{
		Avg:  quantileOr(avg, d.Avg),
		Max:  quantileOr(max, d.Max),
		Left: quantileOr(left, d.Left),
	}
}

func quantileOr(samples []float64, fallback float64) float64 {
	if len(samples) == 0 {
		return fallback
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	return stat.Quantile(NormQuantile, stat.Empirical, sorted, nil)
}

// Cost scores one run under the weights: each wait statistic is scaled
// by its norm and clamped to 1, so a single saturated term cannot drown
// out the others.
func (w Weights) Cost(m scenario.Metrics, n Norms) float64 {
	return w.Avg*clampNorm(m.AvgWait, n.Avg) +
		w.Max*clampNorm(m.MaxWait, n.Max) +
		w.Left*clampNorm(m.LeftWait, n.Left)
}

func clampNorm(v, norm float64) float64 {
	if norm <= 0 {
		return 0
	}
	return math.Min(1, v/norm)
}
