package execution

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-showcore/internal/playback"
)

// LiveContextName is the name of the system live context.
const LiveContextName = "System Live"

// LiveContext renders ad-hoc effects outside any authored sequence.
//
// It runs from creation until Close against its own clock; Start, Pause,
// Resume and Stop do nothing. Inserted effects are scheduled relative to
// the clock position at insertion and pruned once they have ended.
type LiveContext struct {
	id    string
	clock *playback.Clock

	mu      sync.Mutex
	pending []playback.Effect
	closed  bool

	tracker elementTracker
}

// NewLiveContext creates a running live context.
func NewLiveContext() *LiveContext {
	clock := playback.NewClock()
	clock.Start()
	return &LiveContext{
		id:    uuid.New().String(),
		clock: clock,
	}
}

func (c *LiveContext) ID() string   { return c.id }
func (c *LiveContext) Name() string { return LiveContextName }
func (c *LiveContext) Start()       {}
func (c *LiveContext) Pause()       {}
func (c *LiveContext) Resume()      {}
func (c *LiveContext) Stop()        {}

// IsRunning reports true until Close.
func (c *LiveContext) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// Insert schedules fx. Its Start is an offset from now.
func (c *LiveContext) Insert(fx playback.Effect) {
	fx.Start += c.clock.Position()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.pending = append(c.pending, fx)
}

// GetTimeSnapshot returns the live clock position.
func (c *LiveContext) GetTimeSnapshot() (time.Duration, error) {
	if !c.IsRunning() {
		return 0, ErrNotRunning
	}
	return c.clock.Position(), nil
}

// UpdateElementStates returns the elements touched by live effects at t.
func (c *LiveContext) UpdateElementStates(t time.Duration) (ElementSet, error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	c.tracker.addLive(pending)
	return c.tracker.update(t, make(ElementSet)), nil
}

// Close stops the context. Later inserts are dropped.
func (c *LiveContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.pending = nil
	c.clock.Stop()
	return nil
}

// Info describes the context.
func (c *LiveContext) Info() Info {
	running := c.IsRunning()
	var pos time.Duration
	if running {
		pos = c.clock.Position()
	}
	return Info{
		ID:       c.id,
		Name:     LiveContextName,
		Target:   TargetLive,
		Running:  running,
		Position: pos,
	}
}
