// Command sweep grid-searches signal timing plans across the benchmark
// scenario suite, scores them under one or more weight policies, and
// writes JSON, HTML, and PNG reports per policy.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fourway-systems/fourway/internal/runstore"
	"github.com/fourway-systems/fourway/internal/scenario"
	"github.com/fourway-systems/fourway/internal/sweep"
	"github.com/fourway-systems/fourway/internal/version"
)

func main() {
	policy := flag.String("policy", "balanced", "Weight policy, or 'all' for every preset")
	scenarios := flag.String("scenarios", "", "Comma-separated scenario names (default: the standard suite)")
	jam := flag.Bool("jam", false, "Sweep the saturation suite instead of the standard one")
	greenStraight := flag.String("green-straight", "", "green_straight values: comma list or min:max:step")
	greenLeft := flag.String("green-left", "", "green_left values: comma list or min:max:step")
	extendThreshold := flag.String("extension-threshold", "", "extension_threshold values: comma list or min:max:step")
	maxExtension := flag.String("max-extension", "", "max_extension values: comma list or min:max:step")
	skipLimit := flag.String("skip-limit", "", "skip_limit values: comma list or min:max:step")
	seed := flag.Int64("seed", scenario.DefaultSeed, "Script generation seed")
	workers := flag.Int("workers", 0, "Concurrent simulations (default: GOMAXPROCS)")
	outDir := flag.String("out", "", "Output directory (defaults to sweep-<timestamp>)")
	dbPath := flag.String("db", "", "Record every scored run to this run store database")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("sweep " + version.String())
		return
	}

	grid := buildGrid(*greenStraight, *greenLeft, *extendThreshold, *maxExtension, *skipLimit)
	profiles := resolveProfiles(*scenarios, *jam)
	policies := resolvePolicies(*policy)

	runner := &sweep.Runner{
		Profiles: profiles,
		Grid:     grid,
		Seed:     *seed,
		Workers:  *workers,
	}

	started := time.Now()
	m, err := runner.Measure(context.Background())
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}
	log.Printf("measured %d combinations x %d scenarios in %v",
		len(m.Timings), len(m.Scenarios), time.Since(started).Round(time.Millisecond))

	norms := m.Norms()

	dir := *outDir
	if dir == "" {
		dir = fmt.Sprintf("sweep-%s", time.Now().Format("20060102-150405"))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Fatalf("Could not create output directory %s: %v", dir, err)
	}

	var store *runstore.Store
	if *dbPath != "" {
		store, err = runstore.New(*dbPath)
		if err != nil {
			log.Fatalf("Failed to open run store: %v", err)
		}
		defer store.Close()
	}

	for _, name := range policies {
		rep := sweep.Evaluate(m, name, sweep.Policies()[name], norms)

		writers := []struct {
			ext   string
			write func(string) error
		}{
			{".json", rep.WriteJSON},
			{".html", rep.WriteHTML},
			{".png", rep.WritePNG},
		}
		for _, w := range writers {
			path := filepath.Join(dir, name+w.ext)
			if err := w.write(path); err != nil {
				log.Fatalf("Could not write %s: %v", path, err)
			}
			log.Printf("wrote %s", path)
		}

		if store != nil {
			persistReport(store, rep)
		}

		printReport(rep)
	}
}

// buildGrid starts from the default search bounds and narrows any
// dimension named on the command line.
func buildGrid(gs, gl, eth, mext, skip string) sweep.Grid {
	grid := sweep.DefaultGrid()
	for _, dim := range []struct {
		name string
		spec string
		dst  *[]int
	}{
		{"green-straight", gs, &grid.GreenStraight},
		{"green-left", gl, &grid.GreenLeft},
		{"extension-threshold", eth, &grid.ExtendThreshold},
		{"max-extension", mext, &grid.MaxExtension},
		{"skip-limit", skip, &grid.SkipLimit},
	} {
		if dim.spec == "" {
			continue
		}
		values, err := sweep.ParseIntParamList(dim.spec)
		if err != nil {
			log.Fatalf("Invalid -%s: %v", dim.name, err)
		}
		*dim.dst = values
	}
	return grid
}

// resolveProfiles picks the swept scenario set: an explicit name list,
// or one of the built-in suites.
func resolveProfiles(names string, jam bool) []scenario.Profile {
	if names == "" {
		if jam {
			return scenario.JamProfiles()
		}
		return scenario.Profiles()
	}

	var out []scenario.Profile
	for _, name := range strings.Split(names, ",") {
		name = strings.TrimSpace(name)
		p, ok := scenario.ByName(name)
		if !ok {
			log.Fatalf("Unknown scenario %q (known: %s)", name, strings.Join(scenario.ProfileNames(), ", "))
		}
		out = append(out, p)
	}
	return out
}

func resolvePolicies(policy string) []string {
	if policy == "all" {
		return sweep.PolicyNames()
	}
	if _, ok := sweep.Policies()[policy]; !ok {
		log.Fatalf("Unknown policy %q (known: %s, all)", policy, strings.Join(sweep.PolicyNames(), ", "))
	}
	return []string{policy}
}

// persistReport records every scored (combination, scenario) pair so the
// cost surface can be queried through the run store afterwards.
func persistReport(store *runstore.Store, rep *sweep.Report) {
	n := 0
	for _, cr := range rep.Results {
		for name, met := range cr.Scenarios {
			err := store.RecordSweepResult(runstore.SweepResult{
				Policy:     rep.Policy,
				Scenario:   name,
				Seed:       rep.Seed,
				Timing:     cr.Timing,
				AvgWait:    met.AvgWait,
				MaxWait:    met.MaxWait,
				LeftWait:   met.LeftWait,
				Throughput: met.Throughput,
				Cost:       cr.Costs[name],
			})
			if err != nil {
				log.Fatalf("Failed to record sweep result: %v", err)
			}
			n++
		}
	}
	log.Printf("recorded %d measurements under policy %s", n, rep.Policy)
}

func printReport(rep *sweep.Report) {
	fmt.Printf("\n=== %s ===\n", rep.Policy)
	c := rep.Compromise
	fmt.Printf("compromise: green_straight=%d green_left=%d (avg cost %.4f)\n",
		c.Timing.GreenStraight, c.Timing.GreenLeft, c.AvgCost)

	names := make([]string, 0, len(rep.Optima))
	for name := range rep.Optima {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		o := rep.Optima[name]
		fmt.Printf("  %-20s green_straight=%-3d green_left=%-3d cost=%.4f avg_wait=%.2f\n",
			name, o.Timing.GreenStraight, o.Timing.GreenLeft, o.Costs[name], o.Scenarios[name].AvgWait)
	}
}
