package sweep

import (
	"encoding/json"
	"fmt"
	"image/color"
	"os"
	"sort"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// WriteJSON saves the full report as indented JSON.
func (r *Report) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// costSurface projects the results onto the two green durations. When the
// demand knobs also vary, each cell keeps its best cost. Returns the sorted
// axis values and a [left][straight] cost grid.
func (r *Report) costSurface() (sts, lts []int, grid map[int]map[int]float64) {
	grid = make(map[int]map[int]float64)
	stSeen := make(map[int]bool)

	for _, res := range r.Results {
		st := int(res.Timing.GreenStraight)
		lt := int(res.Timing.GreenLeft)
		stSeen[st] = true
		if grid[lt] == nil {
			grid[lt] = make(map[int]float64)
		}
		if cur, ok := grid[lt][st]; !ok || res.AvgCost < cur {
			grid[lt][st] = res.AvgCost
		}
	}

	for st := range stSeen {
		sts = append(sts, st)
	}
	sort.Ints(sts)
	for lt := range grid {
		lts = append(lts, lt)
	}
	sort.Ints(lts)
	return sts, lts, grid
}

// WriteHTML renders the cost curves and the compromise breakdown as a
// standalone page.
func (r *Report) WriteHTML(path string) error {
	sts, lts, grid := r.costSurface()

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Timing sweep: " + r.Policy,
			Width:     "900px",
			Height:    "500px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Suite-average cost by green durations",
			Subtitle: fmt.Sprintf("policy=%s seed=%d", r.Policy, r.Seed),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "green straight (ticks)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "cost J"}),
	)

	xs := make([]string, len(sts))
	for i, st := range sts {
		xs[i] = strconv.Itoa(st)
	}
	line.SetXAxis(xs)

	for _, lt := range lts {
		data := make([]opts.LineData, len(sts))
		for i, st := range sts {
			data[i] = opts.LineData{Value: grid[lt][st]}
		}
		line.AddSeries(fmt.Sprintf("left=%d", lt), data)
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Width:  "900px",
			Height: "400px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title: "Compromise cost by scenario",
			Subtitle: fmt.Sprintf("green_straight=%d green_left=%d",
				r.Compromise.Timing.GreenStraight, r.Compromise.Timing.GreenLeft),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	var names []string
	for name := range r.Compromise.Costs {
		names = append(names, name)
	}
	sort.Strings(names)

	bars := make([]opts.BarData, len(names))
	for i, name := range names {
		bars[i] = opts.BarData{Value: r.Compromise.Costs[name]}
	}
	bar.SetXAxis(names).AddSeries("cost", bars,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
	)

	page := components.NewPage()
	page.AddCharts(line, bar)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := page.Render(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WritePNG draws the cost curves with gonum/plot for report attachments.
func (r *Report) WritePNG(path string) error {
	sts, lts, grid := r.costSurface()

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Timing sweep cost (%s)", r.Policy)
	p.X.Label.Text = "Green straight (ticks)"
	p.Y.Label.Text = "Suite-average cost"

	colors := palette(len(lts))
	for i, lt := range lts {
		pts := make(plotter.XYs, 0, len(sts))
		for _, st := range sts {
			pts = append(pts, plotter.XY{X: float64(st), Y: grid[lt][st]})
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("left=%d: %w", lt, err)
		}
		line.Width = vg.Points(1)
		line.Color = colors[i]
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("left=%d", lt), line)
	}
	p.Legend.Top = true

	return p.Save(8*vg.Inch, 5*vg.Inch, path)
}

// palette returns n distinguishable line colors.
func palette(n int) []color.Color {
	base := []color.Color{
		color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
		color.RGBA{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
		color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
		color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
		color.RGBA{R: 0x94, G: 0x67, B: 0xbd, A: 0xff},
		color.RGBA{R: 0x8c, G: 0x56, B: 0x4b, A: 0xff},
	}
	out := make([]color.Color, n)
	for i := range out {
		out[i] = base[i%len(base)]
	}
	return out
}
