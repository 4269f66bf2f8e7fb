// Package clock provides the wall-clock stopwatch primitives backing the
// accumulators: a resettable Timer and a CountdownClock derived from it.
package clock

import (
	"sync"
	"time"
)

// TimestampLayout is the format used for session directory names.
const TimestampLayout = "15:04-02:01:2006"

// Timestamp returns the current time formatted for session directory names.
func Timestamp() string {
	return time.Now().Format(TimestampLayout)
}

// Timer is a wall-clock stopwatch. All operations are total functions of
// the stored reference instant and the current time, and are safe for
// concurrent use.
type Timer struct {
	mu  sync.Mutex
	ref time.Time
}

// NewTimer returns a Timer with its reference instant set to now.
func NewTimer() *Timer {
	return &Timer{ref: time.Now()}
}

// Tic resets the reference instant to now.
func (t *Timer) Tic() {
	t.mu.Lock()
	t.ref = time.Now()
	t.mu.Unlock()
}

// Toc returns the elapsed seconds since the last Tic without resetting.
func (t *Timer) Toc() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Since(t.ref).Seconds()
}

// TToc returns the elapsed seconds since the last Tic and resets the
// reference instant. The read and the reset happen atomically: no other
// Tic or TToc can interleave between them.
func (t *Timer) TToc() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	elapsed := now.Sub(t.ref).Seconds()
	t.ref = now
	return elapsed
}
