// Command simulate plays a traffic scenario against a controller and
// reports its metrics. The controller is in-process by default; -serial
// drives real hardware over the same wire protocol. Results land in the
// step-status JSON the bench tooling exchanges.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fourway-systems/fourway/internal/config"
	"github.com/fourway-systems/fourway/internal/engine"
	"github.com/fourway-systems/fourway/internal/link"
	"github.com/fourway-systems/fourway/internal/runstore"
	"github.com/fourway-systems/fourway/internal/scenario"
	"github.com/fourway-systems/fourway/internal/session"
	"github.com/fourway-systems/fourway/internal/version"
)

var (
	scenarioFlag  = flag.String("scenario", "", "Built-in scenario name or script file path (see -list)")
	seed          = flag.Int64("seed", scenario.DefaultSeed, "Generation seed for built-in scenarios")
	configPath    = flag.String("config", "", "Path to JSON config file for the signal plan")
	greenStraight = flag.Int("green-straight", 0, "Override green_straight ticks")
	greenLeft     = flag.Int("green-left", 0, "Override green_left ticks")
	serialDev     = flag.String("serial", "", "Serial device of a remote controller (default: in-process)")
	baud          = flag.Int("baud", 115200, "Serial baud rate")
	out           = flag.String("out", "", "Write step results JSON to this file")
	record        = flag.Bool("record", false, "Record the run to the run store")
	dbPath        = flag.String("db", "junction_runs.db", "Path to the run store database")
	gen           = flag.String("gen", "", "Generate the benchmark suite into this directory and exit")
	list          = flag.Bool("list", false, "List built-in scenario names and exit")
	showVersion   = flag.Bool("version", false, "Print version and exit")
)

// recordingController wraps the engine so every step flows into the run
// store before its status returns to the driver.
type recordingController struct {
	eng *engine.Engine
	rec *runstore.Recorder
}

func (c *recordingController) Configure(t engine.Timing) { c.eng.Configure(t) }

func (c *recordingController) AddVehicle(id string, start, end engine.Direction, arrival uint32) error {
	return c.eng.AddVehicle(id, start, end, arrival)
}

func (c *recordingController) Step() engine.StepResult {
	res := c.eng.Step()
	c.rec.OnStep(res, c.eng.QueueLens())
	return res
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("simulate " + version.String())
		return
	}
	if *list {
		for _, name := range scenario.ProfileNames() {
			fmt.Println(name)
		}
		return
	}
	if *gen != "" {
		generateSuite(*gen, *seed)
		return
	}
	if *scenarioFlag == "" {
		log.Fatal("-scenario is required; use -list for the built-in names")
	}

	timing := resolvePlan()

	// A built-in profile name generates its script; anything else loads
	// as a file.
	var script *scenario.Script
	var name string
	var genSeed int64
	if p, ok := scenario.ByName(*scenarioFlag); ok {
		script = scenario.Generate(p, *seed)
		name = p.Name
		genSeed = *seed
	} else {
		var err error
		script, err = scenario.Load(*scenarioFlag)
		if err != nil {
			log.Fatalf("Failed to load scenario: %v", err)
		}
		name = script.Name
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(*scenarioFlag), ".json")
		}
	}

	log.Printf("playing %s: %d steps, %d vehicles", name, script.Steps(), script.Vehicles())

	var store *runstore.Store
	var runID string
	if *record {
		var err error
		store, err = runstore.New(*dbPath)
		if err != nil {
			log.Fatalf("Failed to open run store: %v", err)
		}
		defer store.Close()

		runID, err = store.CreateRun(name, genSeed, timing)
		if err != nil {
			log.Fatalf("Failed to create run: %v", err)
		}
		log.Printf("recording run %s to %s", runID, *dbPath)
	}

	var res *scenario.RunResult
	var err error
	if *serialDev != "" {
		res, err = runSerial(*serialDev, *baud, timing, script, store, runID)
	} else {
		res, err = runLocal(timing, script, store, runID)
	}
	if err != nil {
		log.Fatalf("Run failed: %v", err)
	}

	if *out != "" {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			log.Fatalf("Failed to encode results: %v", err)
		}
		if err := os.WriteFile(*out, data, 0o644); err != nil {
			log.Fatalf("Failed to write results: %v", err)
		}
		log.Printf("wrote step results to %s", *out)
	}

	printMetrics(name, script, res.Metrics)
}

// runLocal plays the script against an in-process controller, recording
// per-step rows when a store is open.
func runLocal(timing engine.Timing, script *scenario.Script, store *runstore.Store, runID string) (*scenario.RunResult, error) {
	if store == nil {
		return scenario.PlayLocal(context.Background(), timing, script)
	}

	rec := runstore.NewRecorder(store, runID)
	ctl := &recordingController{eng: engine.New(timing), rec: rec}
	res, err := scenario.PlayWith(context.Background(), ctl, timing, script)
	if err != nil {
		return nil, err
	}
	if err := rec.Finish(); err != nil {
		log.Printf("failed to finish run %s: %v", runID, err)
	}
	return res, nil
}

// runSerial plays the script against a controller on the far end of a
// serial link.
func runSerial(device string, baud int, timing engine.Timing, script *scenario.Script, store *runstore.Store, runID string) (*scenario.RunResult, error) {
	port, err := link.Open(device, link.PortOptions{BaudRate: baud})
	if err != nil {
		return nil, err
	}
	defer port.Close()

	client := session.NewClient(port)
	res, err := scenario.Play(client, timing, script)
	if err != nil {
		return nil, err
	}
	if err := client.Stop(); err != nil {
		log.Printf("failed to stop controller session: %v", err)
	}

	if store != nil {
		// A remote run is only observable through its metrics; the
		// per-step tables stay empty.
		sum := runstore.RunSummary{
			Steps:      script.Steps(),
			Arrivals:   script.Vehicles(),
			Departures: res.Metrics.Throughput,
			AvgWait:    res.Metrics.AvgWait,
			MaxWait:    res.Metrics.MaxWait,
			LeftWait:   res.Metrics.LeftWait,
		}
		if err := store.FinishRun(runID, sum); err != nil {
			log.Printf("failed to finish run %s: %v", runID, err)
		}
	}
	return res, nil
}

// resolvePlan assembles the signal plan: config file values under flag
// overrides.
func resolvePlan() engine.Timing {
	cfg := config.EmptyConfig()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	t := cfg.SignalPlan()
	if *greenStraight > 0 {
		t.GreenStraight = uint32(*greenStraight)
	}
	if *greenLeft > 0 {
		t.GreenLeft = uint32(*greenLeft)
	}
	return t
}

// generateSuite writes every benchmark script to dir under its
// conventional file name.
func generateSuite(dir string, seed int64) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Fatalf("Failed to create %s: %v", dir, err)
	}
	for _, p := range append(scenario.Profiles(), scenario.JamProfiles()...) {
		s := scenario.Generate(p, seed)
		path := filepath.Join(dir, scenario.BenchFileName(p.Name))
		if err := s.Save(path); err != nil {
			log.Fatalf("Failed to write %s: %v", path, err)
		}
		log.Printf("wrote %s (%d vehicles, %d steps)", path, s.Vehicles(), s.Steps())
	}
}

func printMetrics(name string, script *scenario.Script, m scenario.Metrics) {
	fmt.Printf("\n=== %s ===\n", name)
	fmt.Printf("steps:      %d\n", script.Steps())
	fmt.Printf("vehicles:   %d\n", script.Vehicles())
	fmt.Printf("throughput: %d\n", m.Throughput)
	fmt.Printf("avg wait:   %.2f\n", m.AvgWait)
	fmt.Printf("max wait:   %.0f\n", m.MaxWait)
	fmt.Printf("left wait:  %.2f\n", m.LeftWait)
}
