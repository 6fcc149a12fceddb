package sweep

import (
	"fmt"

	"github.com/fourway-systems/fourway/internal/engine"
)

// Grid is the swept parameter space: candidate values per timing knob
// plus the base plan supplying the fixed intervals.
type Grid struct {
	GreenStraight   []int
	GreenLeft       []int
	ExtendThreshold []int
	MaxExtension    []int
	SkipLimit       []int

	Base engine.Timing
}

// DefaultGrid covers the historically useful search bounds: both greens
// swept wide, the demand knobs pinned at their best-performing values.
func DefaultGrid() Grid {
	return Grid{
		GreenStraight:   GenerateIntRange(4, 18, 2),
		GreenLeft:       GenerateIntRange(3, 11, 2),
		ExtendThreshold: []int{1},
		MaxExtension:    []int{15},
		SkipLimit:       []int{2},
		Base:            BaseTiming(),
	}
}

// BaseTiming is the fixed part of every swept plan. Sweeps run a two-tick
// yellow, one tick longer than the daemon default.
func BaseTiming() engine.Timing {
	t := engine.DefaultTiming()
	t.Yellow = 2
	return t
}

// Validate rejects a grid with an empty dimension.
func (g Grid) Validate() error {
	for _, dim := range []struct {
		name   string
		values []int
	}{
		{"green_straight", g.GreenStraight},
		{"green_left", g.GreenLeft},
		{"extension_threshold", g.ExtendThreshold},
		{"max_extension", g.MaxExtension},
		{"skip_limit", g.SkipLimit},
	} {
		if len(dim.values) == 0 {
			return fmt.Errorf("sweep grid: %s range is empty", dim.name)
		}
	}
	return nil
}

// Combos expands the cartesian product of the grid, green-straight major.
func (g Grid) Combos() []engine.Timing {
	var out []engine.Timing
	for _, st := range g.GreenStraight {
		for _, lt := range g.GreenLeft {
			for _, eth := range g.ExtendThreshold {
				for _, mext := range g.MaxExtension {
					for _, skip := range g.SkipLimit {
						t := g.Base
						t.GreenStraight = uint32(st)
						t.GreenLeft = uint32(lt)
						t.ExtendThreshold = uint32(eth)
						t.MaxExtension = uint32(mext)
						t.SkipLimit = uint32(skip)
						out = append(out, t.Normalize())
					}
				}
			}
		}
	}
	return out
}
