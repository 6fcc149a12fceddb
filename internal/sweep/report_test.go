package sweep

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fourway-systems/fourway/internal/engine"
	"github.com/fourway-systems/fourway/internal/scenario"
)

func sampleReport() *Report {
	m := &Measurements{
		Timings: []engine.Timing{
			{GreenStraight: 4, GreenLeft: 3, Yellow: 2, RedYellow: 1},
			{GreenStraight: 4, GreenLeft: 5, Yellow: 2, RedYellow: 1},
			{GreenStraight: 6, GreenLeft: 3, Yellow: 2, RedYellow: 1},
			{GreenStraight: 6, GreenLeft: 5, Yellow: 2, RedYellow: 1},
		},
		Scenarios: []string{"steady"},
		Seed:      scenario.DefaultSeed,
		Metrics: [][]scenario.Metrics{
			{{AvgWait: 4, MaxWait: 9, LeftWait: 5, Throughput: 50}},
			{{AvgWait: 3, MaxWait: 8, LeftWait: 4, Throughput: 52}},
			{{AvgWait: 5, MaxWait: 11, LeftWait: 6, Throughput: 48}},
			{{AvgWait: 2, MaxWait: 7, LeftWait: 3, Throughput: 55}},
		},
	}
	return Evaluate(m, "balanced", Policies()["balanced"], m.Norms())
}

func TestReportWriteJSON(t *testing.T) {
	rep := sampleReport()
	path := filepath.Join(t.TempDir(), "sweep.json")

	if err := rep.WriteJSON(path); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	var got Report
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.Policy != "balanced" {
		t.Errorf("Policy = %q, want balanced", got.Policy)
	}
	if len(got.Results) != 4 {
		t.Errorf("len(Results) = %d, want 4", len(got.Results))
	}
	if got.Compromise.Timing.GreenStraight != rep.Compromise.Timing.GreenStraight {
		t.Errorf("Compromise timing did not survive the round trip")
	}
}

func TestReportCostSurface(t *testing.T) {
	rep := sampleReport()
	sts, lts, grid := rep.costSurface()

	if len(sts) != 2 || sts[0] != 4 || sts[1] != 6 {
		t.Errorf("straight axis = %v, want [4 6]", sts)
	}
	if len(lts) != 2 || lts[0] != 3 || lts[1] != 5 {
		t.Errorf("left axis = %v, want [3 5]", lts)
	}
	for _, lt := range lts {
		for _, st := range sts {
			if _, ok := grid[lt][st]; !ok {
				t.Errorf("missing cost cell for straight=%d left=%d", st, lt)
			}
		}
	}
}

func TestReportWriteHTML(t *testing.T) {
	rep := sampleReport()
	path := filepath.Join(t.TempDir(), "sweep.html")

	if err := rep.WriteHTML(path); err != nil {
		t.Fatalf("WriteHTML() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	page := string(data)
	if !strings.Contains(page, "echarts") {
		t.Error("rendered page does not reference echarts")
	}
	if !strings.Contains(page, "left=3") {
		t.Error("rendered page is missing the left=3 series")
	}
}

func TestReportWritePNG(t *testing.T) {
	rep := sampleReport()
	path := filepath.Join(t.TempDir(), "sweep.png")

	if err := rep.WritePNG(path); err != nil {
		t.Fatalf("WritePNG() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("output is not a PNG file")
	}
}
