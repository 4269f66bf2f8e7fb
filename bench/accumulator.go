package bench

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/tevino/abool/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Latency histogram bounds in microseconds: 1us up to one hour.
const (
	latencyMinMicros = 1
	latencyMaxMicros = 3_600_000_000
	latencySigFigs   = 3
)

// Accumulator combines one TimeAccumulator and one MemoryAccumulator for
// a named workload under a single enable flag and autosave policy.
//
// When memory tracking is on, each memory collection is followed by a
// synthetic time step ("gstep_memory", "gstop_memory" or
// "<topic>_MEMORY_STEP") so the collection overhead shows up in the time
// series instead of silently inflating other steps.
//
// Start on an already-started accumulator closes the open iteration
// before opening the next one. This keeps the closed-iteration count
// equal to the number of start/gstop pairs even when several goroutines
// share one accumulator.
type Accumulator struct {
	enabled *abool.AtomicBool

	timeAcc *TimeAccumulator
	memAcc  *MemoryAccumulator

	file   string
	folder string
	log    *zap.Logger

	mu                    sync.Mutex
	started               bool
	registerMemoryTimings bool
	saveOnGStop           int
	saveOnStep            bool

	latencyMu sync.Mutex
	latency   *hdrhistogram.Histogram
}

// Option configures an Accumulator at construction time.
type Option func(*Accumulator)

// WithLogger installs a logger for save failures and debug output.
func WithLogger(log *zap.Logger) Option {
	return func(a *Accumulator) {
		if log != nil {
			a.log = log
		}
	}
}

// WithSaveOnGStop enables autosave every n closed iterations. Zero
// disables it.
func WithSaveOnGStop(n int) Option {
	return func(a *Accumulator) { a.saveOnGStop = n }
}

// WithSaveOnStep enables saving after every recorded step.
func WithSaveOnStep(on bool) Option {
	return func(a *Accumulator) { a.saveOnStep = on }
}

// WithMemoryTracking enables memory recording at iteration boundaries
// and, when perStep is true, inside named steps as well.
func WithMemoryTracking(perStep bool) Option {
	return func(a *Accumulator) { a.EnableMemoryTracking(perStep) }
}

// WithTopN sets how many of the largest live allocation sites each
// memory snapshot records.
func WithTopN(n int) Option {
	return func(a *Accumulator) { a.memAcc.SetTopN(n) }
}

// WithPeakTracking enables the background peak-memory poller.
func WithPeakTracking(pollInterval time.Duration) Option {
	return func(a *Accumulator) { a.memAcc.EnablePeakTracking(pollInterval) }
}

// WithGCInterval sets the minimum spacing between forced collections
// before heap inspection.
func WithGCInterval(d time.Duration) Option {
	return func(a *Accumulator) { a.memAcc.SetGCInterval(d) }
}

// WithAcceleratorProbe installs an accelerator memory probe.
func WithAcceleratorProbe(probe AcceleratorProbe) Option {
	return func(a *Accumulator) { a.memAcc.SetAcceleratorProbe(probe) }
}

// NewAccumulator returns an enabled accumulator writing its artifacts to
// paths derived from file. Memory tracking starts disabled.
func NewAccumulator(file string, opts ...Option) *Accumulator {
	a := &Accumulator{
		enabled: abool.NewBool(true),
		timeAcc: NewTimeAccumulator(),
		memAcc:  NewMemoryAccumulator(),
		file:    file,
		folder:  filepath.Dir(file),
		log:     zap.NewNop(),
		latency: hdrhistogram.New(latencyMinMicros, latencyMaxMicros, latencySigFigs),
	}
	a.memAcc.Disable()
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Enable turns recording on.
func (a *Accumulator) Enable() { a.enabled.Set() }

// Disable turns recording off. Every operation becomes a no-op.
func (a *Accumulator) Disable() { a.enabled.UnSet() }

// Enabled reports whether recording is on.
func (a *Accumulator) Enabled() bool { return a.enabled.IsSet() }

// File returns the artifact base path.
func (a *Accumulator) File() string { return a.file }

// EnableMemoryTracking turns on memory recording at iteration boundaries
// and, when perStep is true, inside named steps as well.
func (a *Accumulator) EnableMemoryTracking(perStep bool) {
	a.memAcc.Enable()
	if perStep {
		a.memAcc.EnableStepTracking()
	}
	a.mu.Lock()
	a.registerMemoryTimings = true
	a.mu.Unlock()
}

// SetSaveOnStep toggles saving after every recorded step.
func (a *Accumulator) SetSaveOnStep(on bool) {
	a.mu.Lock()
	a.saveOnStep = on
	a.mu.Unlock()
}

// SetSaveOnGStop sets autosave every n closed iterations. Zero disables.
func (a *Accumulator) SetSaveOnGStop(n int) {
	a.mu.Lock()
	a.saveOnGStop = n
	a.mu.Unlock()
}

// Start opens a new iteration. If one is already open it is closed
// first, so every Start/GStop pair accounts for exactly one closed
// iteration.
func (a *Accumulator) Start() {
	if !a.enabled.IsSet() {
		return
	}

	a.mu.Lock()
	wasStarted := a.started
	a.started = true
	register := a.registerMemoryTimings
	a.mu.Unlock()

	if wasStarted {
		a.closeIteration(register)
	}
	a.timeAcc.Start()
	a.memAcc.Start()
}

// GStep closes the current iteration (if any) and opens the next one.
// Safe to call as the sole iteration boundary marker: the first GStep on
// a fresh accumulator opens the first iteration without appending
// anything.
func (a *Accumulator) GStep() {
	if !a.enabled.IsSet() {
		return
	}

	a.mu.Lock()
	register := a.registerMemoryTimings
	a.mu.Unlock()

	a.GStop()
	a.timeAcc.GStep()
	a.memAcc.GStep()
	if register {
		a.timeAcc.Step("gstep_memory", nil)
	}
	a.Start()
}

// GStop closes the current iteration and applies the autosave-on-gstop
// policy. A no-op when disabled or no iteration is open.
func (a *Accumulator) GStop() {
	if !a.enabled.IsSet() {
		return
	}

	a.mu.Lock()
	if !a.started {
		a.mu.Unlock()
		return
	}
	a.started = false
	register := a.registerMemoryTimings
	a.mu.Unlock()

	a.closeIteration(register)
}

// closeIteration seals the in-flight iteration on both sub-accumulators
// and autosaves when the closed count hits the save-on-gstop modulus.
func (a *Accumulator) closeIteration(register bool) {
	a.timeAcc.Step("gstop", nil)
	a.memAcc.GStop()
	if register {
		a.timeAcc.Step("gstop_memory", nil)
	}
	a.timeAcc.seal()

	a.mu.Lock()
	saveEvery := a.saveOnGStop
	a.mu.Unlock()
	if saveEvery > 0 && a.timeAcc.ClosedCount()%saveEvery == 0 {
		if err := a.SaveData(); err != nil {
			a.log.Warn("autosave on gstop failed", zap.String("file", a.file), zap.Error(err))
		}
	}
}

// Step records a named sub-step on both sub-accumulators.
func (a *Accumulator) Step(topic string) {
	a.StepTagged(topic, nil, nil)
}

// StepTagged records a named sub-step, attaching opaque tags to the time
// and memory records. The core never inspects tag contents, only threads
// them through to serialization.
func (a *Accumulator) StepTagged(topic string, timeTag, memoryTag any) {
	if !a.enabled.IsSet() {
		return
	}

	a.mu.Lock()
	register := a.registerMemoryTimings
	saveOnStep := a.saveOnStep
	a.mu.Unlock()

	elapsed := a.timeAcc.Step(topic, timeTag)
	a.memAcc.Step(topic, memoryTag)
	if register {
		a.timeAcc.Step(topic+"_MEMORY_STEP", nil)
	}
	a.recordLatency(elapsed)

	if saveOnStep {
		if err := a.SaveData(); err != nil {
			a.log.Warn("autosave on step failed", zap.String("file", a.file), zap.Error(err))
		}
	}
}

// ClosedCount returns the number of closed iterations.
func (a *Accumulator) ClosedCount() int {
	return a.timeAcc.ClosedCount()
}

// SaveData writes the three artifacts for this accumulator. Filesystem
// failures propagate to the caller.
func (a *Accumulator) SaveData() error {
	if !a.enabled.IsSet() {
		return nil
	}

	if err := os.MkdirAll(a.folder, 0o755); err != nil {
		return fmt.Errorf("creating output dir %s: %w", a.folder, err)
	}
	err := multierr.Append(
		a.timeAcc.SaveData(a.file),
		a.memAcc.SaveData(a.file),
	)
	if err == nil {
		a.log.Debug("saved accumulator artifacts", zap.String("file", a.file))
	}
	return err
}

func (a *Accumulator) recordLatency(elapsed float64) {
	micros := int64(elapsed * 1e6)
	if micros < latencyMinMicros {
		micros = latencyMinMicros
	}
	if micros > latencyMaxMicros {
		micros = latencyMaxMicros
	}
	a.latencyMu.Lock()
	a.latency.RecordValue(micros)
	a.latencyMu.Unlock()
}

// LatencyStats is a point-in-time view of recorded step durations.
type LatencyStats struct {
	Count int64
	Min   time.Duration
	Max   time.Duration
	Mean  time.Duration
	P50   time.Duration
	P90   time.Duration
	P95   time.Duration
	P99   time.Duration
}

// LatencySnapshot returns distribution statistics over every step
// duration recorded so far.
func (a *Accumulator) LatencySnapshot() LatencyStats {
	a.latencyMu.Lock()
	defer a.latencyMu.Unlock()

	if a.latency.TotalCount() == 0 {
		return LatencyStats{}
	}
	return LatencyStats{
		Count: a.latency.TotalCount(),
		Min:   time.Duration(a.latency.Min()) * time.Microsecond,
		Max:   time.Duration(a.latency.Max()) * time.Microsecond,
		Mean:  time.Duration(a.latency.Mean()) * time.Microsecond,
		P50:   time.Duration(a.latency.ValueAtQuantile(50)) * time.Microsecond,
		P90:   time.Duration(a.latency.ValueAtQuantile(90)) * time.Microsecond,
		P95:   time.Duration(a.latency.ValueAtQuantile(95)) * time.Microsecond,
		P99:   time.Duration(a.latency.ValueAtQuantile(99)) * time.Microsecond,
	}
}
