package record

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tictocbench/tictoc/clock"
)

func TestSummaryMarshalPreservesOrder(t *testing.T) {
	s := NewSummary()
	s.Set("load", StepStats{Mean: 1})
	s.Set("compute", StepStats{Mean: 2})
	s.Set(GlobalKey, StepStats{Mean: 3})

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	text := string(data)
	iLoad := strings.Index(text, `"load"`)
	iCompute := strings.Index(text, `"compute"`)
	iGlobal := strings.Index(text, `"GLOBAL"`)
	if iLoad < 0 || iCompute < 0 || iGlobal < 0 {
		t.Fatalf("missing keys in %s", text)
	}
	if !(iLoad < iCompute && iCompute < iGlobal) {
		t.Errorf("keys out of insertion order: %s", text)
	}
}

func TestSummarySetUpdatesInPlace(t *testing.T) {
	s := NewSummary()
	s.Set("a", StepStats{Mean: 1})
	s.Set("a", StepStats{Mean: 2})

	if got := s.Len(); got != 1 {
		t.Fatalf("Len() = %d, want 1", got)
	}
	st, _ := s.Get("a")
	if st.Mean != 2 {
		t.Errorf("Get(a).Mean = %f, want 2", st.Mean)
	}
}

func TestTopObjectRoundTrip(t *testing.T) {
	data, err := json.Marshal(TopObject{Name: "bytes.growSlice", Bytes: 4096})
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if got := string(data); got != `["bytes.growSlice",4096]` {
		t.Errorf("Marshal() = %s, want tuple form", got)
	}

	var back TopObject
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if back.Name != "bytes.growSlice" || back.Bytes != 4096 {
		t.Errorf("round trip = %+v", back)
	}
}

func TestIterationCloneIsIndependent(t *testing.T) {
	it := NewIteration(1.0)
	it.Append("a", CallRecord{Time: 0.5})

	cp := it.Clone()
	it.Append("a", CallRecord{Time: 0.7})

	if len(cp.Calls["a"]) != 1 {
		t.Errorf("clone grew with the original: %d calls", len(cp.Calls["a"]))
	}
}

func TestFormatStepRowsSumsAbsolutes(t *testing.T) {
	it := NewIteration(10)
	it.StopTime = 12
	it.Append("a", CallRecord{Time: 0.25, CronoCounter: 0})
	it.Append("a", CallRecord{Time: 0.75, CronoCounter: 1})
	it.Append(GlobalKey, CallRecord{Time: 2, CronoCounter: 1})

	rows := FormatStepRows([]*Iteration{it})
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	row := rows[0]
	if row.Absolutes["a"] != 1.0 {
		t.Errorf("absolutes[a] = %f, want 1.0", row.Absolutes["a"])
	}
	if row.Info.StepNumber != 0 || row.Info.StartTime != 10 || row.Info.StopTime != 12 {
		t.Errorf("info = %+v", row.Info)
	}
	if len(row.IndividualCalls["a"]) != 2 {
		t.Errorf("individual_calls[a] has %d entries, want 2", len(row.IndividualCalls["a"]))
	}
}

func TestWriteAndLoadSessionRoundTrip(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "inference")

	it := NewIteration(100)
	it.StopTime = 101
	it.Append("fwd", CallRecord{Time: 0.9, CronoCounter: 0, Extra: "warm"})
	it.Append(GlobalKey, CallRecord{Time: 1.0, CronoCounter: 0})
	if err := WriteStepData(base, FormatStepRows([]*Iteration{it})); err != nil {
		t.Fatalf("WriteStepData() error: %v", err)
	}

	summary := NewSummary()
	summary.Set("fwd", StepStats{Mean: 0.9, Min: 0.9, Max: 0.9, QuantileFiltered: 0.9})
	summary.Set(GlobalKey, StepStats{Mean: 1, Min: 1, Max: 1, QuantileFiltered: 1})
	if err := WriteSummary(base, summary); err != nil {
		t.Fatalf("WriteSummary() error: %v", err)
	}

	mem := NewMemoryIteration()
	mem.StartTime = 100
	mem.StopTime = 101
	peak := int64(2048)
	mem.Append("fwd_MEMORY_STEP", MemorySnapshot{
		TotalMemoryUsage: 1024,
		TopObjects:       []TopObject{{Name: "makeTensor", Bytes: 512}},
		CronoCounter:     0,
		PeakMemoryUsage:  &peak,
	})
	if err := WriteMemoryData(base, FormatMemoryRows([]*MemoryIteration{mem})); err != nil {
		t.Fatalf("WriteMemoryData() error: %v", err)
	}

	sess, err := LoadSession(dir)
	if err != nil {
		t.Fatalf("LoadSession() error: %v", err)
	}

	rows, ok := sess.StepData["inference"]
	if !ok || len(rows) != 1 {
		t.Fatalf("StepData[inference] = %v", rows)
	}
	if rows[0].IndividualCalls["fwd"][0].Time != 0.9 {
		t.Errorf("reloaded call time = %f", rows[0].IndividualCalls["fwd"][0].Time)
	}

	got, ok := sess.Summaries["inference"]
	if !ok {
		t.Fatal("summary missing")
	}
	names := got.Names()
	if names[len(names)-1] != GlobalKey {
		t.Errorf("reloaded summary order %v, want GLOBAL last", names)
	}

	memRows, ok := sess.Memory["inference"]
	if !ok || len(memRows) != 1 {
		t.Fatalf("Memory[inference] = %v", memRows)
	}
	snap := memRows[0].Data["fwd_MEMORY_STEP"][0]
	if snap.TotalMemoryUsage != 1024 {
		t.Errorf("total memory usage = %d", snap.TotalMemoryUsage)
	}
	if snap.PeakMemoryUsage == nil || *snap.PeakMemoryUsage != 2048 {
		t.Errorf("max memory usage = %v", snap.PeakMemoryUsage)
	}
	if len(snap.TopObjects) != 1 || snap.TopObjects[0].Name != "makeTensor" {
		t.Errorf("top_memory_objects = %v", snap.TopObjects)
	}
}

func TestLoadSessionRejectsMalformedStepData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad"+StepDataSuffix+".json")
	if err := os.WriteFile(path, []byte(`[{"absolutes": {}}]`), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadSession(dir); err == nil {
		t.Error("LoadSession() accepted a row missing info and individual_calls")
	}
}

func TestLatestSessionPicksNewest(t *testing.T) {
	root := t.TempDir()
	older := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	newer := time.Date(2026, 3, 2, 18, 5, 0, 0, time.UTC)
	for _, ts := range []time.Time{older, newer} {
		if err := os.Mkdir(filepath.Join(root, ts.Format(clock.TimestampLayout)), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(root, "not-a-session"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := LatestSession(root)
	if err != nil {
		t.Fatalf("LatestSession() error: %v", err)
	}
	want := filepath.Join(root, newer.Format(clock.TimestampLayout))
	if got != want {
		t.Errorf("LatestSession() = %s, want %s", got, want)
	}
}

func TestLatestSessionEmptyRoot(t *testing.T) {
	if _, err := LatestSession(t.TempDir()); err == nil {
		t.Error("LatestSession() on empty root did not fail")
	}
}
