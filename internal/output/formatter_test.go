package output

import (
	"strings"
	"testing"
	"time"

	"github.com/tictocbench/tictoc/bench"
	"github.com/tictocbench/tictoc/record"
)

func TestFormatSummaryKeepsOrder(t *testing.T) {
	summary := record.NewSummary()
	summary.Set("load", record.StepStats{Mean: 0.5, Min: 0.4, Max: 0.6, QuantileFiltered: 0.5})
	summary.Set(record.GlobalKey, record.StepStats{Mean: 1, Min: 1, Max: 1, QuantileFiltered: 1})

	out := NewFormatter(true).FormatSummary(summary)
	iLoad := strings.Index(out, "load")
	iGlobal := strings.Index(out, record.GlobalKey)
	if iLoad < 0 || iGlobal < 0 || iGlobal < iLoad {
		t.Errorf("summary rows out of order:\n%s", out)
	}
}

func TestFormatSummaryEmpty(t *testing.T) {
	out := NewFormatter(true).FormatSummary(record.NewSummary())
	if !strings.Contains(out, "no summary data") {
		t.Errorf("empty summary output = %q", out)
	}
}

func TestFormatSessionListsAccumulators(t *testing.T) {
	sess := &record.Session{
		Path: "x",
		StepData: map[string][]record.StepRow{
			"train": {{}, {}},
		},
		Summaries: map[string]*record.Summary{},
		Memory: map[string][]record.MemoryRow{
			"train": {{
				Data: map[string][]record.MemorySnapshot{
					"gstep": {{TotalMemoryUsage: 3 * 1024 * 1024}},
				},
			}},
		},
	}

	out := NewFormatter(true).FormatSession(sess)
	for _, want := range []string{"train", "iterations: 2", "memory snapshots: 1", "3.00 MiB"} {
		if !strings.Contains(out, want) {
			t.Errorf("session output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatLatency(t *testing.T) {
	out := NewFormatter(true).FormatLatency(bench.LatencyStats{
		Count: 3,
		Min:   time.Millisecond,
		Mean:  2 * time.Millisecond,
		Max:   3 * time.Millisecond,
		P50:   2 * time.Millisecond,
		P90:   3 * time.Millisecond,
		P95:   3 * time.Millisecond,
		P99:   3 * time.Millisecond,
	})
	if !strings.Contains(out, "steps recorded: 3") {
		t.Errorf("latency output = %q", out)
	}

	if empty := NewFormatter(true).FormatLatency(bench.LatencyStats{}); !strings.Contains(empty, "no latency data") {
		t.Errorf("empty latency output = %q", empty)
	}
}
