package bench

import (
	"testing"

	"github.com/tictocbench/tictoc/record"
)

func TestTimeAccumulatorBasicIteration(t *testing.T) {
	acc := NewTimeAccumulator()
	acc.Start()
	acc.Step("a", nil)
	acc.Step("b", nil)
	acc.GStop()

	if got := acc.ClosedCount(); got != 1 {
		t.Fatalf("ClosedCount() = %d, want 1", got)
	}
	it := acc.Snapshot()[0]
	if !it.Has(record.GlobalKey) {
		t.Error("closed iteration lacks GLOBAL")
	}
	if got := it.Len(); got != 3 {
		t.Errorf("iteration has %d keys, want 3 (a, b, GLOBAL)", got)
	}
}

func TestTimeAccumulatorCallOrder(t *testing.T) {
	acc := NewTimeAccumulator()
	acc.Start()
	acc.Step("a", nil)
	acc.Step("b", nil)
	acc.Step("a", nil)
	acc.GStop()

	it := acc.Snapshot()[0]
	calls := it.Calls["a"]
	if len(calls) != 2 {
		t.Fatalf("a has %d calls, want 2", len(calls))
	}
	if calls[0].CronoCounter != 0 || calls[1].CronoCounter != 2 {
		t.Errorf("call orders = %d, %d, want 0 and 2",
			calls[0].CronoCounter, calls[1].CronoCounter)
	}
	global := it.Calls[record.GlobalKey][0]
	if global.CronoCounter != 3 {
		t.Errorf("GLOBAL call order = %d, want 3", global.CronoCounter)
	}
}

func TestTimeAccumulatorGStepLoop(t *testing.T) {
	const n = 5
	acc := NewTimeAccumulator()
	acc.Start()
	for i := 0; i < n; i++ {
		acc.Step("x", nil)
		acc.GStep()
	}
	acc.GStop()

	// Each GStep closes one iteration; the trailing GStop closes the
	// one the last GStep opened.
	if got := acc.ClosedCount(); got != n+1 {
		t.Errorf("ClosedCount() = %d, want %d", got, n+1)
	}
}

func TestTimeAccumulatorFirstGStepIsBootstrap(t *testing.T) {
	acc := NewTimeAccumulator()
	acc.GStep()

	if got := acc.ClosedCount(); got != 0 {
		t.Errorf("ClosedCount() after bootstrapping GStep = %d, want 0", got)
	}
	acc.GStop()
	if got := acc.ClosedCount(); got != 1 {
		t.Errorf("ClosedCount() after GStop = %d, want 1", got)
	}
}

func TestTimeAccumulatorGStopWithoutStart(t *testing.T) {
	acc := NewTimeAccumulator()
	acc.GStop()
	if got := acc.ClosedCount(); got != 0 {
		t.Errorf("ClosedCount() = %d, want 0", got)
	}
}

func TestTimeAccumulatorCounterResetsPerIteration(t *testing.T) {
	acc := NewTimeAccumulator()
	acc.Start()
	acc.Step("a", nil)
	acc.Step("b", nil)
	acc.GStep()
	acc.Step("c", nil)
	acc.GStop()

	second := acc.Snapshot()[1]
	if got := second.Calls["c"][0].CronoCounter; got != 0 {
		t.Errorf("first call order of second iteration = %d, want 0", got)
	}
}

func TestTimeAccumulatorDisabledNoOps(t *testing.T) {
	acc := NewTimeAccumulator()
	acc.Disable()
	acc.Start()
	acc.Step("a", nil)
	acc.GStep()
	acc.GStop()

	if got := acc.ClosedCount(); got != 0 {
		t.Errorf("ClosedCount() = %d, want 0 while disabled", got)
	}
}

func TestTimeAccumulatorStepTagThreadsThrough(t *testing.T) {
	acc := NewTimeAccumulator()
	acc.Start()
	acc.Step("a", map[string]int{"batch": 7})
	acc.GStop()

	extra := acc.Snapshot()[0].Calls["a"][0].Extra
	tag, ok := extra.(map[string]int)
	if !ok || tag["batch"] != 7 {
		t.Errorf("extra = %#v, want the tag passed to Step", extra)
	}
}

func TestTimeAccumulatorSnapshotIncludesInFlight(t *testing.T) {
	acc := NewTimeAccumulator()
	acc.Start()
	acc.Step("a", nil)

	snapshot := acc.Snapshot()
	if len(snapshot) != 1 {
		t.Fatalf("snapshot has %d iterations, want the in-flight one", len(snapshot))
	}

	// Mutating the accumulator afterwards must not change the snapshot.
	acc.Step("b", nil)
	if snapshot[0].Has("b") {
		t.Error("snapshot shares state with the live iteration")
	}
}

func TestTimeAccumulatorStepTimingsAreExclusive(t *testing.T) {
	acc := NewTimeAccumulator()
	acc.Start()
	acc.Step("a", nil)
	acc.Step("b", nil)
	acc.GStop()

	it := acc.Snapshot()[0]
	a := it.Calls["a"][0].Time
	b := it.Calls["b"][0].Time
	global := it.Calls[record.GlobalKey][0].Time
	if global < a+b {
		t.Errorf("GLOBAL %f < a+b %f, whole-iteration timer must cover both", global, a+b)
	}
}
