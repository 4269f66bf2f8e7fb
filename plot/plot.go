// Package plot renders loaded session artifacts to a self-contained HTML
// report: per-step summary bars, chronological step timelines and memory
// usage over call order.
package plot

import (
	"fmt"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/tictocbench/tictoc/record"
	"github.com/tictocbench/tictoc/series"
)

const bytesPerMB = 1024 * 1024

// Options tunes timeline rendering.
type Options struct {
	// FilterNoChange drops memory timeline entries whose value moved
	// less than this fraction of the series range. Negative disables
	// filtering.
	FilterNoChange float64

	// ClusterMaxLength collapses repeated step patterns up to this
	// length in the timelines. Zero disables clustering.
	ClusterMaxLength int

	// ClusterSpikeFraction blocks a collapse when a value inside the
	// repeat deviates by more than this fraction of the series range.
	ClusterSpikeFraction float64
}

// DefaultOptions matches the defaults used by the rendering layer of the
// original tooling: no quiet-region filtering, clusters up to 5 steps,
// 5% spike fence.
func DefaultOptions() Options {
	return Options{
		FilterNoChange:       -1,
		ClusterMaxLength:     5,
		ClusterSpikeFraction: 0.05,
	}
}

// SummaryBars builds a bar chart of mean and quantile-filtered mean per
// step.
func SummaryBars(name string, summary *record.Summary) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: name + " step times"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "seconds"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	names := summary.Names()
	means := make([]opts.BarData, 0, len(names))
	filtered := make([]opts.BarData, 0, len(names))
	for _, step := range names {
		st, _ := summary.Get(step)
		means = append(means, opts.BarData{Value: st.Mean})
		filtered = append(filtered, opts.BarData{Value: st.QuantileFiltered})
	}

	bar.SetXAxis(names).
		AddSeries("mean", means).
		AddSeries("quantile filtered", filtered)
	return bar
}

// ChronoTimeline builds a line chart of step durations in call order
// across all iterations, with repeated patterns collapsed.
func ChronoTimeline(name string, rows []record.StepRow, o Options) *charts.Line {
	var entries []series.Entry
	for _, row := range rows {
		chrono := series.ChronoFromCalls(row)
		if o.ClusterMaxLength > 0 {
			chrono = series.FindClusters(chrono, o.ClusterMaxLength, o.ClusterSpikeFraction)
		}
		entries = append(entries, chrono...)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: name + " chronological steps"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "seconds"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)

	labels, values := timelineSeries(entries, 1)
	line.SetXAxis(labels).AddSeries("step time", values)
	return line
}

// MemoryTimeline builds a line chart of total memory usage in call order,
// optionally dropping quiet regions and collapsing repeated patterns.
func MemoryTimeline(name string, rows []record.MemoryRow, o Options) *charts.Line {
	var entries []series.Entry
	for _, row := range rows {
		chrono := series.ChronoFromMemory(row)
		if o.FilterNoChange >= 0 {
			chrono, _ = series.FilterNoChange(o.FilterNoChange, chrono)
		}
		if o.ClusterMaxLength > 0 {
			chrono = series.FindClusters(chrono, o.ClusterMaxLength, o.ClusterSpikeFraction)
		}
		entries = append(entries, chrono...)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: name + " memory usage"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "MB"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)

	labels, values := timelineSeries(entries, bytesPerMB)
	line.SetXAxis(labels).AddSeries("total memory (MB)", values)
	return line
}

// timelineSeries flattens entries into x-axis labels of the form
// "<iteration>_<step>" and scaled y values.
func timelineSeries(entries []series.Entry, scale float64) ([]string, []opts.LineData) {
	labels := make([]string, 0, len(entries))
	values := make([]opts.LineData, 0, len(entries))
	for _, e := range entries {
		labels = append(labels, fmt.Sprintf("%d_%s", e.StepNumber, e.StepName))
		values = append(values, opts.LineData{Value: e.Total / scale})
	}
	return labels, values
}

// RenderSession writes one HTML page with every chart the session's
// artifacts support.
func RenderSession(sess *record.Session, outPath string, o Options) error {
	page := components.NewPage().SetPageTitle("tictoc report")

	for _, name := range sess.Names() {
		if summary, ok := sess.Summaries[name]; ok && summary.Len() > 0 {
			page.AddCharts(SummaryBars(name, summary))
		}
		if rows, ok := sess.StepData[name]; ok && len(rows) > 0 {
			page.AddCharts(ChronoTimeline(name, rows, o))
		}
		if rows, ok := sess.Memory[name]; ok && len(rows) > 0 {
			page.AddCharts(MemoryTimeline(name, rows, o))
		}
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating report %s: %w", outPath, err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		return fmt.Errorf("rendering report %s: %w", outPath, err)
	}
	return nil
}
