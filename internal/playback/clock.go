package playback

import (
	"sync"
	"time"
)

// Clock is a free-running TimingSource driven by the monotonic wall clock.
//
// The zero value is not usable; create clocks with NewClock.
type Clock struct {
	mu      sync.Mutex
	now     func() time.Time
	running bool
	paused  bool
	base    time.Duration // position at anchor
	anchor  time.Time
}

// NewClock creates a stopped clock at position zero.
func NewClock() *Clock {
	return newClockWithNow(time.Now)
}

// newClockWithNow allows tests to control the passage of time.
func newClockWithNow(now func() time.Time) *Clock {
	return &Clock{
		now:    now,
		anchor: now(),
	}
}

// NewClockResolver returns a resolver that creates a fresh Clock for every
// play session, so concurrent sessions never share a timing source.
func NewClockResolver() TimingResolver {
	return func() TimingSource {
		return NewClock()
	}
}

// Position returns the current position.
func (c *Clock) Position() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionLocked()
}

func (c *Clock) positionLocked() time.Duration {
	if !c.running || c.paused {
		return c.base
	}
	return c.base + c.now().Sub(c.anchor)
}

// SetPosition moves the clock. A running clock keeps advancing from p.
func (c *Clock) SetPosition(p time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base = p
	c.anchor = c.now()
}

// Start starts the clock from its current position.
func (c *Clock) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running && !c.paused {
		return
	}
	c.running = true
	c.paused = false
	c.anchor = c.now()
}

// Pause freezes the position.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running || c.paused {
		return
	}
	c.base = c.positionLocked()
	c.paused = true
}

// Resume continues from the frozen position.
func (c *Clock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		return
	}
	c.paused = false
	c.anchor = c.now()
}

// Stop halts the clock and rewinds it to zero.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	c.paused = false
	c.base = 0
	c.anchor = c.now()
}
