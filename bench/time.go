// Package bench implements the accumulation engine: per-workload time and
// memory accumulators, the facade combining them, and the registry that
// hands out named facades.
//
// All accumulators share one state machine: Idle until Start or a
// bootstrapping GStep, Started until GStop. Recording operations are
// silent no-ops while disabled or out of order. Expensive work (stopwatch
// arithmetic, heap inspection, file writes) runs outside the state lock:
// flags are snapshotted under the lock, the measurement is collected
// without it, and the result is committed under the lock again.
package bench

import (
	"sync"
	"time"

	"github.com/tevino/abool/v2"

	"github.com/tictocbench/tictoc/clock"
	"github.com/tictocbench/tictoc/record"
	"github.com/tictocbench/tictoc/series"
)

// epoch returns the current time as fractional epoch seconds.
func epoch() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// TimeAccumulator records, for one logical workload, a sequence of
// iterations holding named step timings with call-order counters.
//
// Two independently reset stopwatches back it: Step resets only the
// per-step one, so step timings are exclusive (time since the previous
// step call), while GLOBAL measures the whole iteration regardless of how
// many steps fired.
type TimeAccumulator struct {
	enabled *abool.AtomicBool

	stepTimer   *clock.Timer
	globalTimer *clock.Timer

	mu      sync.Mutex
	started bool
	counter int
	current *record.Iteration
	closed  []*record.Iteration
}

// NewTimeAccumulator returns an enabled, idle accumulator.
func NewTimeAccumulator() *TimeAccumulator {
	return &TimeAccumulator{
		enabled:     abool.NewBool(true),
		stepTimer:   clock.NewTimer(),
		globalTimer: clock.NewTimer(),
		current:     record.NewIteration(epoch()),
	}
}

// Enable turns recording on.
func (a *TimeAccumulator) Enable() { a.enabled.Set() }

// Disable turns recording off. Every operation becomes a no-op.
func (a *TimeAccumulator) Disable() { a.enabled.UnSet() }

// Enabled reports whether recording is on.
func (a *TimeAccumulator) Enabled() bool { return a.enabled.IsSet() }

// Start resets both stopwatches and marks the accumulator started.
func (a *TimeAccumulator) Start() {
	if !a.enabled.IsSet() {
		return
	}
	a.stepTimer.Tic()
	a.globalTimer.Tic()

	a.mu.Lock()
	a.started = true
	a.mu.Unlock()
}

// Step appends a call record for topic holding the elapsed seconds since
// the previous Step (or Start) and returns it. Repeated calls with the
// same topic accumulate; summation happens only at save time.
func (a *TimeAccumulator) Step(topic string, extra any) float64 {
	if !a.enabled.IsSet() {
		return 0
	}
	elapsed := a.stepTimer.TToc()

	a.mu.Lock()
	a.current.Append(topic, record.CallRecord{
		Time:         elapsed,
		CronoCounter: a.counter,
		Extra:        extra,
	})
	a.counter++
	a.mu.Unlock()
	return elapsed
}

// GStep closes the current iteration (if one is open) and opens the next
// one with a fresh START_TIME and a zeroed call-order counter. The first
// GStep on a never-started accumulator opens the first iteration without
// appending anything.
func (a *TimeAccumulator) GStep() {
	if !a.enabled.IsSet() {
		return
	}
	a.GStop()

	a.mu.Lock()
	a.counter = 0
	a.current = record.NewIteration(epoch())
	a.mu.Unlock()

	a.Start()
}

// GStop closes the current iteration: records GLOBAL (unless a caller
// already did), stamps STOP_TIME and appends the iteration to the closed
// list. A no-op when disabled or not started.
func (a *TimeAccumulator) GStop() {
	if !a.enabled.IsSet() {
		return
	}

	a.mu.Lock()
	if !a.started {
		a.mu.Unlock()
		return
	}
	a.started = false
	a.mu.Unlock()

	a.seal()
}

// seal unconditionally closes the in-flight iteration. The facade uses
// it directly when its own started flag, not this accumulator's, decides
// that an iteration must close.
func (a *TimeAccumulator) seal() {
	a.mu.Lock()
	a.started = false
	hasGlobal := a.current.Has(record.GlobalKey)
	a.mu.Unlock()

	var global float64
	if !hasGlobal {
		global = a.globalTimer.TToc()
	}
	stop := epoch()

	a.mu.Lock()
	if !hasGlobal {
		a.current.Append(record.GlobalKey, record.CallRecord{
			Time:         global,
			CronoCounter: a.counter,
		})
	}
	a.current.StopTime = stop
	a.closed = append(a.closed, a.current)
	a.current = record.NewIteration(stop)
	a.mu.Unlock()
}

// ClosedCount returns the number of closed iterations.
func (a *TimeAccumulator) ClosedCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.closed)
}

// Snapshot returns a copy of the closed iterations plus, if one is open,
// a copy of the in-flight iteration.
func (a *TimeAccumulator) Snapshot() []*record.Iteration {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*record.Iteration, 0, len(a.closed)+1)
	out = append(out, a.closed...)
	if a.started {
		out = append(out, a.current.Clone())
	}
	return out
}

// SaveData writes the step-data and summary artifacts for base from a
// snapshot of the accumulated iterations.
func (a *TimeAccumulator) SaveData(base string) error {
	snapshot := a.Snapshot()
	summary, _ := series.Summarize(snapshot, series.SummarizeOptions{})
	if err := record.WriteSummary(base, summary); err != nil {
		return err
	}
	return record.WriteStepData(base, record.FormatStepRows(snapshot))
}
