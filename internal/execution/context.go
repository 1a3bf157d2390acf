package execution

import (
	"time"

	"github.com/nerrad567/gray-logic-showcore/internal/playback"
)

// Context is the unit the Manager registers and ticks.
type Context interface {
	// ID is assigned at creation and stable for the context's lifetime.
	ID() string
	Name() string
	IsRunning() bool

	Start()
	Pause()
	Resume()
	Stop()

	// GetTimeSnapshot returns the position to update against this tick.
	GetTimeSnapshot() (time.Duration, error)

	// UpdateElementStates advances the context to t and returns the
	// elements affected.
	UpdateElementStates(t time.Duration) (ElementSet, error)

	Close() error
}

// TargetType is the kind of thing a context executes.
type TargetType string

// Target types.
const (
	TargetSequence TargetType = "sequence"
	TargetProgram  TargetType = "program"
	TargetLive     TargetType = "live"
)

// Features selects among implementations for the same target type.
type Features struct {
	// Caching indexes effects by start time instead of scanning them.
	Caching bool `json:"caching"`
}

// Info is a point-in-time description of a context.
type Info struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Target   TargetType    `json:"target"`
	Running  bool          `json:"running"`
	Paused   bool          `json:"paused"`
	Position time.Duration `json:"position_ns"`
}

// Describer is implemented by contexts that can report Info.
type Describer interface {
	Info() Info
}

// Describe returns Info for c, falling back to the Context methods.
func Describe(c Context) Info {
	if d, ok := c.(Describer); ok {
		return d.Info()
	}
	return Info{ID: c.ID(), Name: c.Name(), Running: c.IsRunning()}
}

// LiveInserter is implemented by contexts accepting ad-hoc effects.
type LiveInserter interface {
	Insert(fx playback.Effect)
}
