package execution

import (
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-showcore/internal/playback"
)

// ProgramContext ticks a program, updating against whichever sequence of
// the program is currently playing.
type ProgramContext struct {
	id      string
	exec    *playback.ProgramExecutor
	tracker elementTracker
	current *playback.Executor
	session uint64
}

// NewProgramContext wraps exec.
func NewProgramContext(exec *playback.ProgramExecutor) *ProgramContext {
	return &ProgramContext{
		id:   uuid.New().String(),
		exec: exec,
	}
}

func (c *ProgramContext) ID() string      { return c.id }
func (c *ProgramContext) Name() string    { return c.exec.Program().Name }
func (c *ProgramContext) IsRunning() bool { return c.exec.IsRunning() }
func (c *ProgramContext) Start()          { c.exec.Start() }
func (c *ProgramContext) Pause()          { c.exec.Pause() }
func (c *ProgramContext) Resume()         { c.exec.Resume() }
func (c *ProgramContext) Stop()           { c.exec.Stop() }
func (c *ProgramContext) Close() error    { return c.exec.Close() }

// Executor returns the wrapped program executor.
func (c *ProgramContext) Executor() *playback.ProgramExecutor {
	return c.exec
}

// Dispatcher returns the queue the program's events are delivered on.
func (c *ProgramContext) Dispatcher() *playback.Dispatcher {
	return c.exec.Dispatcher()
}

// GetTimeSnapshot returns the position within the current sequence.
func (c *ProgramContext) GetTimeSnapshot() (time.Duration, error) {
	if !c.exec.IsRunning() {
		return 0, ErrNotRunning
	}
	return c.exec.Position(), nil
}

// UpdateElementStates returns the elements affected at t in the current
// sequence. Elements active before a sequence change are reported once more.
func (c *ProgramContext) UpdateElementStates(t time.Duration) (ElementSet, error) {
	cur := c.exec.Current()
	if cur == nil {
		return c.tracker.update(t, make(ElementSet)), nil
	}

	if cur != c.current || cur.SessionID() != c.session {
		c.current = cur
		c.session = cur.SessionID()
		c.tracker.dropLive()
	}
	c.tracker.addLive(cur.TakeLiveData())

	var active ElementSet
	if seq := cur.Sequence(); seq != nil {
		active = activeTargets(seq.Effects(), t)
	} else {
		active = make(ElementSet)
	}
	return c.tracker.update(t, active), nil
}

// Info describes the context.
func (c *ProgramContext) Info() Info {
	return Info{
		ID:       c.id,
		Name:     c.Name(),
		Target:   TargetProgram,
		Running:  c.exec.IsRunning(),
		Paused:   c.exec.IsPaused(),
		Position: c.exec.Position(),
	}
}
