package bench

import (
	"runtime"
	"sync"
	"time"

	"github.com/tevino/abool/v2"

	"github.com/tictocbench/tictoc/clock"
	"github.com/tictocbench/tictoc/record"
)

const defaultGCInterval = 100 * time.Millisecond

// MemoryAccumulator mirrors TimeAccumulator but records memory snapshots
// instead of durations. Tracking is opt-in at two levels: the master
// enable flag covers iteration boundaries, while snapshots inside named
// steps additionally require EnableStepTracking, since heap inspection is
// expensive.
type MemoryAccumulator struct {
	enabled *abool.AtomicBool

	probe      MemoryProbe
	accelProbe AcceleratorProbe
	gcClock    *clock.CountdownClock

	mu          sync.Mutex
	started     bool
	trackInStep bool
	trackAccel  bool
	trackPeak   bool
	topN        int
	counter     int
	monitor     *PeakMonitor
	current     *record.MemoryIteration
	closed      []*record.MemoryIteration
}

// NewMemoryAccumulator returns an enabled, idle accumulator probing the
// process resident-set size.
func NewMemoryAccumulator() *MemoryAccumulator {
	return &MemoryAccumulator{
		enabled: abool.NewBool(true),
		probe:   ProcessRSS,
		gcClock: clock.NewCountdownClock(defaultGCInterval),
		current: record.NewMemoryIteration(),
	}
}

// Enable turns memory recording on.
func (a *MemoryAccumulator) Enable() { a.enabled.Set() }

// Disable turns memory recording off.
func (a *MemoryAccumulator) Disable() { a.enabled.UnSet() }

// Enabled reports whether memory recording is on.
func (a *MemoryAccumulator) Enabled() bool { return a.enabled.IsSet() }

// EnableStepTracking turns on snapshots inside named steps. Without it
// only the iteration boundaries (GStep/GStop) record memory.
func (a *MemoryAccumulator) EnableStepTracking() {
	a.mu.Lock()
	a.trackInStep = true
	a.mu.Unlock()
}

// SetTopN sets how many of the largest live allocation sites each
// snapshot records. Zero disables the heap walk.
func (a *MemoryAccumulator) SetTopN(n int) {
	a.mu.Lock()
	a.topN = n
	a.mu.Unlock()
}

// SetGCInterval re-arms the countdown that throttles forced garbage
// collection before heap inspection.
func (a *MemoryAccumulator) SetGCInterval(d time.Duration) {
	a.gcClock.SetDuration(d)
}

// SetProbe replaces the resident-set probe. Nil restores the default.
func (a *MemoryAccumulator) SetProbe(probe MemoryProbe) {
	if probe == nil {
		probe = ProcessRSS
	}
	a.mu.Lock()
	a.probe = probe
	a.mu.Unlock()
}

// SetAcceleratorProbe installs an accelerator memory probe and enables
// accelerator tracking. Nil disables it.
func (a *MemoryAccumulator) SetAcceleratorProbe(probe AcceleratorProbe) {
	a.mu.Lock()
	a.accelProbe = probe
	a.trackAccel = probe != nil
	a.mu.Unlock()
}

// EnablePeakTracking starts recording the peak resident size between
// snapshots, sampled by a background poller at the given interval.
func (a *MemoryAccumulator) EnablePeakTracking(pollInterval time.Duration) {
	a.mu.Lock()
	if a.monitor == nil {
		a.monitor = NewPeakMonitor(pollInterval, a.probe)
	}
	a.trackPeak = true
	a.mu.Unlock()
}

// Start marks the accumulator started.
func (a *MemoryAccumulator) Start() {
	if !a.enabled.IsSet() {
		return
	}
	a.mu.Lock()
	a.started = true
	a.mu.Unlock()
}

// GStep opens the next iteration: takes a boundary snapshot, resets the
// call-order counter and records the snapshot as the first entry of the
// fresh iteration under the "gstep" topic, then starts the peak poller
// if peak tracking is on.
func (a *MemoryAccumulator) GStep() {
	if !a.enabled.IsSet() {
		return
	}

	a.mu.Lock()
	monitor := a.monitor
	startMonitor := a.trackPeak && monitor != nil
	a.mu.Unlock()

	snap := a.collect(nil)

	a.mu.Lock()
	if a.enabled.IsSet() {
		a.current = record.NewMemoryIteration()
		a.counter = 0
		a.commitLocked("gstep", snap)
		a.started = true
	}
	a.mu.Unlock()

	if startMonitor {
		monitor.Start()
	}
}

// GStop closes the current iteration: takes a boundary snapshot under the
// "gstop" topic, appends the iteration to the closed list and stops the
// peak poller. A no-op when disabled or not started.
func (a *MemoryAccumulator) GStop() {
	if !a.enabled.IsSet() {
		return
	}

	a.mu.Lock()
	if !a.started {
		a.mu.Unlock()
		return
	}
	a.started = false
	monitor := a.monitor
	stopMonitor := a.trackPeak && monitor != nil
	a.mu.Unlock()

	snap := a.collect(nil)

	a.mu.Lock()
	a.commitLocked("gstop", snap)
	a.closed = append(a.closed, a.current)
	a.current = record.NewMemoryIteration()
	a.mu.Unlock()

	if stopMonitor {
		monitor.Stop()
	}
}

// Step records a snapshot under topic. Requires both the master flag and
// step tracking. Before the heap inspection a garbage collection is
// forced at most once per countdown interval.
func (a *MemoryAccumulator) Step(topic string, extra any) {
	a.mu.Lock()
	if !a.enabled.IsSet() || !a.trackInStep {
		a.mu.Unlock()
		return
	}
	shouldGC := a.gcClock.Completed()
	if shouldGC {
		a.gcClock.Reset()
	}
	a.mu.Unlock()

	if shouldGC {
		runtime.GC()
	}

	// Flags may have flipped while collecting ran unlocked.
	a.mu.Lock()
	if !a.enabled.IsSet() || !a.trackInStep {
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()

	snap := a.collect(extra)

	a.mu.Lock()
	if a.enabled.IsSet() && a.trackInStep {
		a.commitLocked(topic, snap)
	}
	a.mu.Unlock()
}

// collect gathers a snapshot without touching shared iteration state.
func (a *MemoryAccumulator) collect(extra any) record.MemorySnapshot {
	a.mu.Lock()
	probe := a.probe
	accelProbe := a.accelProbe
	trackAccel := a.trackAccel
	trackPeak := a.trackPeak
	monitor := a.monitor
	topN := a.topN
	a.mu.Unlock()

	snap := record.MemorySnapshot{
		TopObjects: TopHeapConsumers(topN),
		Extra:      extra,
	}
	if trackAccel && accelProbe != nil {
		if stats, ok := accelProbe(); ok {
			snap.Accelerator = &stats
		}
	}
	if trackPeak && monitor != nil {
		peak := monitor.Step()
		snap.PeakMemoryUsage = &peak
	}
	snap.TotalMemoryUsage = probe()
	return snap
}

// commitLocked appends snap under topic and advances the call-order
// counter. Boundary topics stamp the iteration timestamps. Callers hold
// the lock.
func (a *MemoryAccumulator) commitLocked(topic string, snap record.MemorySnapshot) {
	snap.CronoCounter = a.counter
	a.counter++
	a.current.Append(topic, snap)
	switch topic {
	case "gstep":
		a.current.StartTime = epoch()
	case "gstop":
		a.current.StopTime = epoch()
	}
}

// Snapshot returns a copy of the closed iterations plus, if one is open,
// a copy of the in-flight iteration.
func (a *MemoryAccumulator) Snapshot() []*record.MemoryIteration {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*record.MemoryIteration, 0, len(a.closed)+1)
	out = append(out, a.closed...)
	if a.started {
		out = append(out, a.current.Clone())
	}
	return out
}

// SaveData writes the memory artifact for base from a snapshot of the
// accumulated iterations.
func (a *MemoryAccumulator) SaveData(base string) error {
	return record.WriteMemoryData(base, record.FormatMemoryRows(a.Snapshot()))
}
