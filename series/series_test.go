package series

import (
	"math"
	"strings"
	"testing"

	"github.com/tictocbench/tictoc/record"
)

func makeIteration(totals map[string][]float64) *record.Iteration {
	it := record.NewIteration(0)
	for name, times := range totals {
		for i, tm := range times {
			it.Append(name, record.CallRecord{Time: tm, CronoCounter: i})
		}
	}
	return it
}

func TestSummarizeBasicStats(t *testing.T) {
	iterations := []*record.Iteration{
		makeIteration(map[string][]float64{"work": {0.10}, "GLOBAL": {0.15}}),
		makeIteration(map[string][]float64{"work": {0.12}, "GLOBAL": {0.18}}),
		makeIteration(map[string][]float64{"work": {0.14}, "GLOBAL": {0.21}}),
	}

	summary, series := Summarize(iterations, SummarizeOptions{})
	st, ok := summary.Get("work")
	if !ok {
		t.Fatal("summary missing work")
	}
	if math.Abs(st.Mean-0.12) > 1e-9 {
		t.Errorf("mean = %f, want 0.12", st.Mean)
	}
	if st.Min != 0.10 || st.Max != 0.14 {
		t.Errorf("min/max = %f/%f", st.Min, st.Max)
	}

	if len(series["work"]) != 3 {
		t.Errorf("series[work] has %d points, want 3", len(series["work"]))
	}
	if series["work"][2] != 0.14 {
		t.Errorf("series[work][2] = %f", series["work"][2])
	}
}

func TestSummarizeSumsMultipleCalls(t *testing.T) {
	iterations := []*record.Iteration{
		makeIteration(map[string][]float64{"io": {0.05, 0.05, 0.10}}),
	}

	summary, _ := Summarize(iterations, SummarizeOptions{})
	st, _ := summary.Get("io")
	if math.Abs(st.Mean-0.20) > 1e-9 {
		t.Errorf("mean = %f, want the per-iteration sum 0.20", st.Mean)
	}
}

func TestSummarizeGlobalLast(t *testing.T) {
	iterations := []*record.Iteration{
		makeIteration(map[string][]float64{
			"GLOBAL": {1}, "alpha": {0.1}, "zeta": {0.2},
		}),
	}

	summary, _ := Summarize(iterations, SummarizeOptions{})
	names := summary.Names()
	if names[len(names)-1] != record.GlobalKey {
		t.Errorf("names = %v, want GLOBAL last", names)
	}
}

func TestSummarizeFiltersOutliers(t *testing.T) {
	iterations := make([]*record.Iteration, 0, 5)
	for _, v := range []float64{1, 1, 1, 1, 100} {
		iterations = append(iterations, makeIteration(map[string][]float64{"work": {v}}))
	}

	summary, _ := Summarize(iterations, SummarizeOptions{})
	st, _ := summary.Get("work")
	if math.Abs(st.QuantileFiltered-1) > 1e-9 {
		t.Errorf("quantile_filtered = %f, want the spike excluded (1)", st.QuantileFiltered)
	}
	if st.Max != 100 {
		t.Errorf("max = %f, want the spike preserved (100)", st.Max)
	}
}

func TestSummarizeFilterBelowFallsBackToMean(t *testing.T) {
	iterations := []*record.Iteration{
		makeIteration(map[string][]float64{"work": {0.1}}),
		makeIteration(map[string][]float64{"work": {0.2}}),
	}

	summary, _ := Summarize(iterations, SummarizeOptions{FilterBelow: 10})
	st, _ := summary.Get("work")
	if math.Abs(st.QuantileFiltered-st.Mean) > 1e-9 {
		t.Errorf("quantile_filtered = %f, want fallback to mean %f", st.QuantileFiltered, st.Mean)
	}
}

func TestSummarizeMissingStepsKeepSparseSeries(t *testing.T) {
	iterations := []*record.Iteration{
		makeIteration(map[string][]float64{"warmup": {0.5}, "work": {0.1}}),
		makeIteration(map[string][]float64{"work": {0.1}}),
	}

	_, series := Summarize(iterations, SummarizeOptions{})
	if len(series["warmup"]) != 1 {
		t.Errorf("series[warmup] has %d points, want 1", len(series["warmup"]))
	}
	if _, ok := series["warmup"][0]; !ok {
		t.Error("series[warmup] lost its iteration number")
	}
}

func TestPercentileLinearInterpolation(t *testing.T) {
	vals := []float64{1, 2, 3, 4}
	if got := Percentile(vals, 50); math.Abs(got-2.5) > 1e-9 {
		t.Errorf("Percentile(50) = %f, want 2.5", got)
	}
	if got := Percentile(vals, 0); got != 1 {
		t.Errorf("Percentile(0) = %f, want 1", got)
	}
	if got := Percentile(vals, 100); got != 4 {
		t.Errorf("Percentile(100) = %f, want 4", got)
	}
}

func makeChrono(names []string, totals []float64) []Entry {
	entries := make([]Entry, len(names))
	for i, n := range names {
		total := 0.1
		if totals != nil {
			total = totals[i]
		}
		entries[i] = Entry{StepName: n, Total: total}
	}
	return entries
}

func TestFindClustersNonRepeatingPreserved(t *testing.T) {
	result := FindClusters(makeChrono([]string{"a", "b", "c"}, nil), 3, 0.05)
	if len(result) != 3 {
		t.Errorf("got %d entries, want 3", len(result))
	}
}

func TestFindClustersCollapsesRepeatingPair(t *testing.T) {
	result := FindClusters(makeChrono([]string{"a", "b", "a", "b"}, nil), 4, 0.05)
	if len(result) >= 4 {
		t.Fatalf("got %d entries, want fewer than 4", len(result))
	}
	var merged bool
	for _, e := range result {
		if strings.Contains(e.StepName, " x2") && strings.Contains(e.StepName, " || ") {
			merged = true
		}
	}
	if !merged {
		t.Errorf("no merged cluster label in %v", result)
	}
}

func TestFindClustersSingleElement(t *testing.T) {
	result := FindClusters(makeChrono([]string{"x"}, nil), 5, 0.05)
	if len(result) != 1 {
		t.Errorf("got %d entries, want 1", len(result))
	}
}

func TestFindClustersAdjacentRepeat(t *testing.T) {
	// A bare repeated name must merge without running past the series end.
	result := FindClusters(makeChrono([]string{"a", "a"}, nil), 3, 0.05)
	if len(result) != 1 {
		t.Fatalf("got %d entries, want 1", len(result))
	}
	if result[0].StepName != "a x2" {
		t.Errorf("label = %q, want \"a x2\"", result[0].StepName)
	}
}

func TestFindClustersSpikeBreaksCluster(t *testing.T) {
	entries := makeChrono(
		[]string{"a", "b", "a", "b"},
		[]float64{0.1, 0.1, 10.0, 0.1},
	)
	result := FindClusters(entries, 4, 0.05)
	if len(result) < 3 {
		t.Errorf("got %d entries, want the spike to prevent merging (>= 3)", len(result))
	}
}

func TestFilterNoChangeAllIdentical(t *testing.T) {
	entries := makeChrono([]string{"a", "b", "c"}, []float64{100, 100, 100})
	kept, rejected := FilterNoChange(0.05, entries)
	if len(kept) != 1 || len(rejected) != 2 {
		t.Errorf("kept %d rejected %d, want 1 and 2", len(kept), len(rejected))
	}
}

func TestFilterNoChangeAllChanging(t *testing.T) {
	entries := makeChrono([]string{"a", "b", "c"}, []float64{100, 200, 300})
	kept, rejected := FilterNoChange(0.05, entries)
	if len(kept) != 3 || len(rejected) != 0 {
		t.Errorf("kept %d rejected %d, want 3 and 0", len(kept), len(rejected))
	}
}

func TestFilterNoChangeFirstAlwaysKept(t *testing.T) {
	entries := makeChrono([]string{"a", "b"}, []float64{50, 51})
	kept, _ := FilterNoChange(0.5, entries)
	if kept[0].StepName != "a" {
		t.Errorf("first kept entry = %q, want a", kept[0].StepName)
	}
}

func TestFilterNoChangeInvalidThresholdUsesDefault(t *testing.T) {
	entries := makeChrono([]string{"a", "b"}, []float64{100, 100})
	kept, _ := FilterNoChange(math.NaN(), entries)
	if len(kept) != 1 {
		t.Errorf("kept %d entries, want 1 (default threshold)", len(kept))
	}
}

func TestChronoFromCallsOrdersByCounter(t *testing.T) {
	row := record.StepRow{
		Info: record.IterationInfo{StepNumber: 3},
		IndividualCalls: map[string][]record.CallRecord{
			"late":  {{Time: 0.2, CronoCounter: 1}},
			"early": {{Time: 0.1, CronoCounter: 0}},
		},
	}

	entries := ChronoFromCalls(row)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].StepName != "early" || entries[1].StepName != "late" {
		t.Errorf("order = %v", entries)
	}
	if entries[0].StepNumber != 3 {
		t.Errorf("step number = %d, want 3", entries[0].StepNumber)
	}
}

func TestChronoFromMemoryCarriesTotals(t *testing.T) {
	row := record.MemoryRow{
		Data: map[string][]record.MemorySnapshot{
			"load_MEMORY_STEP": {{TotalMemoryUsage: 4096, CronoCounter: 0}},
		},
	}

	entries := ChronoFromMemory(row)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Total != 4096 {
		t.Errorf("total = %f, want 4096", entries[0].Total)
	}
}
