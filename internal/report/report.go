// Package report renders an HTML summary of a sampling run: batch sizes,
// per-class point distribution and per-stage timings, charted with
// go-echarts so a run can be eyeballed without the training side attached.
package report

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/pointbatch/internal/pipeline"
)

// BatchStat is the per-batch footprint kept for charting.
type BatchStat struct {
	ID      string
	Samples int
	Points  int
}

// RunReport accumulates statistics over the batches of one run.
type RunReport struct {
	RunID string
	Mode  string

	// ClassNames labels the class axis; unnamed classes chart by number.
	ClassNames map[int32]string

	batches     []BatchStat
	classPoints map[int32]int64
	started     time.Time
}

// NewRunReport starts an empty report for a run.
func NewRunReport(runID, mode string) *RunReport {
	return &RunReport{
		RunID:       runID,
		Mode:        mode,
		classPoints: make(map[int32]int64),
		started:     time.Now(),
	}
}

// AddBatch folds one batch into the report.
func (r *RunReport) AddBatch(b *pipeline.Batch) {
	r.batches = append(r.batches, BatchStat{
		ID:      b.ID,
		Samples: b.Samples(),
		Points:  b.TotalPoints(),
	})
	for _, l := range b.Labels {
		r.classPoints[l]++
	}
}

// Batches returns the per-batch statistics in arrival order.
func (r *RunReport) Batches() []BatchStat { return r.batches }

// TotalPoints returns the point count summed over all recorded batches.
func (r *RunReport) TotalPoints() int {
	total := 0
	for _, b := range r.batches {
		total += b.Points
	}
	return total
}

func (r *RunReport) className(label int32) string {
	if name, ok := r.ClassNames[label]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("class %d", label)
}

// WriteHTML renders the report as a standalone HTML page.
func (r *RunReport) WriteHTML(w io.Writer, timings map[string]time.Duration) error {
	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("Sampling run %s", r.RunID)
	page.AddCharts(r.batchChart(), r.classChart())
	if len(timings) > 0 {
		page.AddCharts(r.timingChart(timings))
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render run report: %w", err)
	}
	return nil
}

// WriteHTMLFile renders the report into a file at path.
func (r *RunReport) WriteHTMLFile(path string, timings map[string]time.Duration) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()
	if err := r.WriteHTML(f, timings); err != nil {
		return err
	}
	return f.Close()
}

// batchChart plots points per batch with the sample count overlaid.
func (r *RunReport) batchChart() components.Charter {
	x := make([]string, len(r.batches))
	points := make([]opts.BarData, len(r.batches))
	samples := make([]opts.BarData, len(r.batches))
	for i, b := range r.batches {
		x[i] = fmt.Sprintf("#%d", i)
		points[i] = opts.BarData{Value: b.Points}
		samples[i] = opts.BarData{Value: b.Samples}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Batch sizes",
			Subtitle: fmt.Sprintf("run=%s mode=%s batches=%d points=%d", r.RunID, r.Mode, len(r.batches), r.TotalPoints()),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("points", points).
		AddSeries("samples", samples,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}

// classChart plots the point count drawn per class over the whole run.
func (r *RunReport) classChart() components.Charter {
	labels := make([]int32, 0, len(r.classPoints))
	for l := range r.classPoints {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })

	x := make([]string, len(labels))
	y := make([]opts.BarData, len(labels))
	for i, l := range labels {
		x[i] = r.className(l)
		y[i] = opts.BarData{Value: r.classPoints[l]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Points drawn per class"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).AddSeries("points", y,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
	)
	return bar
}

// timingChart plots mean stage durations in milliseconds.
func (r *RunReport) timingChart(timings map[string]time.Duration) components.Charter {
	stages := make([]string, 0, len(timings))
	for s := range timings {
		stages = append(stages, s)
	}
	sort.Strings(stages)

	y := make([]opts.BarData, len(stages))
	for i, s := range stages {
		y[i] = opts.BarData{Value: float64(timings[s]) / float64(time.Millisecond)}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Mean stage duration (ms)"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(stages).AddSeries("mean ms", y,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
	)
	return bar
}
