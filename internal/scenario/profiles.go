package scenario

import (
	"fmt"
	"math/rand"

	"github.com/fourway-systems/fourway/internal/engine"
)

// DefaultSeed is the seed used for the published benchmark scripts.
// Regenerating with it reproduces them exactly.
const DefaultSeed = 42

// Profile describes a traffic pattern: a per-road arrival probability for
// each step and the share of arrivals that turn left.
type Profile struct {
	Name     string
	Steps    int
	Arrival  func(step int, road engine.Direction) float64
	LeftBias float64
}

// Profiles returns the standard benchmark patterns.
func Profiles() []Profile {
	return []Profile{
		{Name: "steady", Steps: 200, LeftBias: 0.25, Arrival: flat(0.1)},
		{Name: "rush", Steps: 200, LeftBias: 0.25, Arrival: axis(engine.North, engine.South, 0.4, 0.05)},
		{Name: "ghost", Steps: 200, LeftBias: 0.25, Arrival: flat(0.02)},
		{Name: "asymmetric", Steps: 200, LeftBias: 0.25, Arrival: only(engine.North, 0.4, 0.05)},
		{Name: "burst", Steps: 200, LeftBias: 0.25, Arrival: window(50, 100, 0.6, 0.05)},
		{Name: "left_heavy", Steps: 200, LeftBias: 0.7, Arrival: flat(0.15)},
	}
}

// JamProfiles returns the saturation patterns used for stress runs. They
// are heavier and longer than the standard set.
func JamProfiles() []Profile {
	return []Profile{
		{Name: "extreme_rush", Steps: 500, LeftBias: 0.3, Arrival: axis(engine.North, engine.South, 0.6, 0.3)},
		{Name: "left_turn_jam", Steps: 400, LeftBias: 0.8, Arrival: flat(0.5)},
		{Name: "all_directions_jam", Steps: 300, LeftBias: 0.5, Arrival: flat(0.7)},
	}
}

// ByName finds a profile in the standard or jam sets.
func ByName(name string) (Profile, bool) {
	for _, p := range append(Profiles(), JamProfiles()...) {
		if p.Name == name {
			return p, true
		}
	}
	return Profile{}, false
}

// ProfileNames lists every known profile name, standard set first.
func ProfileNames() []string {
	var names []string
	for _, p := range append(Profiles(), JamProfiles()...) {
		names = append(names, p.Name)
	}
	return names
}

func flat(p float64) func(int, engine.Direction) float64 {
	return func(int, engine.Direction) float64 { return p }
}

func axis(a, b engine.Direction, on, off float64) func(int, engine.Direction) float64 {
	return func(_ int, road engine.Direction) float64 {
		if road == a || road == b {
			return on
		}
		return off
	}
}

func only(d engine.Direction, on, off float64) func(int, engine.Direction) float64 {
	return func(_ int, road engine.Direction) float64 {
		if road == d {
			return on
		}
		return off
	}
}

func window(from, to int, during, outside float64) func(int, engine.Direction) float64 {
	return func(step int, _ engine.Direction) float64 {
		if step >= from && step <= to {
			return during
		}
		return outside
	}
}

// Generate builds the script for a profile. Generation is deterministic:
// the same profile and seed always produce the same script.
func Generate(p Profile, seed int64) *Script {
	rng := rand.New(rand.NewSource(seed))

	s := &Script{Name: p.Name, Commands: []Command{}}
	count := 0

	for step := 0; step < p.Steps; step++ {
		for road := engine.North; road <= engine.West; road++ {
			if rng.Float64() >= p.Arrival(step, road) {
				continue
			}
			count++
			s.Commands = append(s.Commands, Command{
				Type:      CommandAddVehicle,
				VehicleID: fmt.Sprintf("v_%s_%d", road.String()[:1], count),
				StartRoad: road.String(),
				EndRoad:   pickEnd(rng, road, p.LeftBias).String(),
			})
		}
		s.Commands = append(s.Commands, Command{Type: CommandStep})
	}

	return s
}

// pickEnd chooses a destination: a left turn with probability leftBias,
// otherwise straight or right with equal odds.
func pickEnd(rng *rand.Rand, start engine.Direction, leftBias float64) engine.Direction {
	if rng.Float64() < leftBias {
		return start.LeftTurn()
	}

	var others []engine.Direction
	for road := engine.North; road <= engine.West; road++ {
		if road != start && road != start.LeftTurn() {
			others = append(others, road)
		}
	}
	return others[rng.Intn(len(others))]
}
