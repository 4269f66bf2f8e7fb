package clock

import (
	"sync"
	"time"
)

// CountdownClock reports whether a fixed duration has elapsed since the
// last reset. The memory accumulator uses one to throttle forced garbage
// collection between heap inspections.
type CountdownClock struct {
	timer *Timer

	mu       sync.Mutex
	duration time.Duration
}

// NewCountdownClock returns an armed countdown for the given duration.
func NewCountdownClock(d time.Duration) *CountdownClock {
	return &CountdownClock{timer: NewTimer(), duration: d}
}

// SetDuration re-arms the countdown with a new duration.
func (c *CountdownClock) SetDuration(d time.Duration) {
	c.mu.Lock()
	c.duration = d
	c.mu.Unlock()
	c.timer.Tic()
}

// Reset re-arms the countdown with its current duration.
func (c *CountdownClock) Reset() {
	c.timer.Tic()
}

// TimeLeft returns the remaining time. Negative once the countdown has
// completed.
func (c *CountdownClock) TimeLeft() time.Duration {
	c.mu.Lock()
	d := c.duration
	c.mu.Unlock()
	return d - time.Duration(c.timer.Toc()*float64(time.Second))
}

// Completed reports whether the countdown duration has fully elapsed.
func (c *CountdownClock) Completed() bool {
	c.mu.Lock()
	d := c.duration
	c.mu.Unlock()
	return c.timer.Toc() > d.Seconds()
}
