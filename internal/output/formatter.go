// Package output formats loaded session data for the terminal.
package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/tictocbench/tictoc/bench"
	"github.com/tictocbench/tictoc/record"
)

// Formatter renders session artifacts as text.
type Formatter struct {
	NoColor bool
	scheme  *ColorScheme
}

// NewFormatter creates a formatter with the given options.
func NewFormatter(noColor bool) *Formatter {
	return &Formatter{NoColor: noColor, scheme: SchemeFor(noColor)}
}

// FormatSession renders an overview of every accumulator in the session.
func (f *Formatter) FormatSession(sess *record.Session) string {
	var buf strings.Builder
	buf.WriteString(f.scheme.Title.Sprintf("Session %s", sess.Path))
	buf.WriteString("\n\n")

	for _, name := range sess.Names() {
		buf.WriteString(f.scheme.Title.Sprintf("▶ %s", name))
		buf.WriteString("\n")
		if rows, ok := sess.StepData[name]; ok {
			buf.WriteString(fmt.Sprintf("  iterations: %d\n", len(rows)))
		}
		if summary, ok := sess.Summaries[name]; ok {
			buf.WriteString(f.FormatSummary(summary))
		}
		if rows, ok := sess.Memory[name]; ok && len(rows) > 0 {
			buf.WriteString(f.formatMemory(rows))
		}
		buf.WriteString("\n")
	}
	return buf.String()
}

// FormatSummary renders per-step statistics as an aligned table, keeping
// the summary's own key order (GLOBAL last).
func (f *Formatter) FormatSummary(summary *record.Summary) string {
	names := summary.Names()
	if len(names) == 0 {
		return "  (no summary data)\n"
	}

	width := len("step")
	for _, name := range names {
		if len(name) > width {
			width = len(name)
		}
	}

	var buf strings.Builder
	buf.WriteString(f.scheme.Dim.Sprintf("  %-*s  %12s  %12s  %12s  %12s",
		width, "step", "mean", "min", "max", "filtered"))
	buf.WriteString("\n")
	for _, name := range names {
		st, _ := summary.Get(name)
		buf.WriteString(fmt.Sprintf("  %s  %12s  %12s  %12s  %12s\n",
			f.scheme.StepName.Sprintf("%-*s", width, name),
			formatSeconds(st.Mean),
			formatSeconds(st.Min),
			formatSeconds(st.Max),
			formatSeconds(st.QuantileFiltered),
		))
	}
	return buf.String()
}

// FormatLatency renders a step-duration distribution snapshot.
func (f *Formatter) FormatLatency(stats bench.LatencyStats) string {
	if stats.Count == 0 {
		return "  (no latency data)\n"
	}
	var buf strings.Builder
	buf.WriteString(fmt.Sprintf("  steps recorded: %d\n", stats.Count))
	buf.WriteString(fmt.Sprintf("  min/mean/max:   %v / %v / %v\n",
		stats.Min, stats.Mean, stats.Max))
	buf.WriteString(fmt.Sprintf("  p50/p90/p95/p99: %v / %v / %v / %v\n",
		stats.P50, stats.P90, stats.P95, stats.P99))
	return buf.String()
}

func (f *Formatter) formatMemory(rows []record.MemoryRow) string {
	var peakBytes int64
	snapshots := 0
	for _, row := range rows {
		for _, snaps := range row.Data {
			for _, s := range snaps {
				snapshots++
				if s.TotalMemoryUsage > peakBytes {
					peakBytes = s.TotalMemoryUsage
				}
			}
		}
	}
	return fmt.Sprintf("  memory snapshots: %d (peak %s)\n",
		snapshots, formatBytes(peakBytes))
}

func formatSeconds(s float64) string {
	return time.Duration(s * float64(time.Second)).Round(time.Microsecond).String()
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.2f GiB", float64(b)/(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.2f MiB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.2f KiB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
