package bench

import (
	"context"
	"sync"
	"time"

	"github.com/tevino/abool/v2"
)

// PeakMonitor samples resident-set size on a fixed interval in a
// background goroutine and tracks the running maximum. Step atomically
// reads and resets that maximum, giving peak-memory-since-the-previous-
// checkpoint semantics.
type PeakMonitor struct {
	interval time.Duration
	probe    MemoryProbe
	running  *abool.AtomicBool

	mu   sync.Mutex
	peak int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPeakMonitor returns a stopped monitor polling with probe every
// interval.
func NewPeakMonitor(interval time.Duration, probe MemoryProbe) *PeakMonitor {
	if probe == nil {
		probe = ProcessRSS
	}
	return &PeakMonitor{
		interval: interval,
		probe:    probe,
		running:  abool.New(),
	}
}

// Start launches the polling goroutine. Calling Start on a monitor that
// is already running is a no-op.
func (m *PeakMonitor) Start() {
	if !m.running.SetToIf(false, true) {
		return
	}

	m.mu.Lock()
	m.peak = 0
	m.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.wg.Add(1)
	go m.run(ctx)
}

// Stop halts the polling goroutine and waits for it to exit. A no-op on
// a stopped monitor.
func (m *PeakMonitor) Stop() {
	if !m.running.SetToIf(true, false) {
		return
	}
	m.cancel()
	m.wg.Wait()
}

// Running reports whether the polling goroutine is active.
func (m *PeakMonitor) Running() bool {
	return m.running.IsSet()
}

// Step returns the peak resident bytes observed since the previous Step
// (or Start) and resets the running maximum.
func (m *PeakMonitor) Step() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	peak := m.peak
	m.peak = 0
	return peak
}

func (m *PeakMonitor) run(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.sample()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sample()
		}
	}
}

func (m *PeakMonitor) sample() {
	current := m.probe()
	m.mu.Lock()
	if current > m.peak {
		m.peak = current
	}
	m.mu.Unlock()
}
