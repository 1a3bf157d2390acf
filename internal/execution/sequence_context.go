package execution

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-showcore/internal/playback"
)

// sequenceBase holds what both sequence context flavours share.
type sequenceBase struct {
	id      string
	exec    *playback.Executor
	tracker elementTracker
	session uint64
}

func newSequenceBase(exec *playback.Executor) sequenceBase {
	return sequenceBase{
		id:   uuid.New().String(),
		exec: exec,
	}
}

// ID returns the context ID.
func (b *sequenceBase) ID() string { return b.id }

// Name returns the sequence name.
func (b *sequenceBase) Name() string { return b.exec.Name() }

// IsRunning mirrors the executor.
func (b *sequenceBase) IsRunning() bool { return b.exec.IsRunning() }

// Start plays the whole sequence.
func (b *sequenceBase) Start() { b.exec.Start() }

// Pause pauses playback.
func (b *sequenceBase) Pause() { b.exec.Pause() }

// Resume resumes playback.
func (b *sequenceBase) Resume() { b.exec.Resume() }

// Stop stops playback.
func (b *sequenceBase) Stop() { b.exec.Stop() }

// Close disposes the executor.
func (b *sequenceBase) Close() error { return b.exec.Close() }

// Executor returns the wrapped executor.
func (b *sequenceBase) Executor() *playback.Executor { return b.exec }

// Dispatcher returns the queue the executor's events are delivered on.
func (b *sequenceBase) Dispatcher() *playback.Dispatcher { return b.exec.Dispatcher() }

// GetTimeSnapshot returns the executor position.
func (b *sequenceBase) GetTimeSnapshot() (time.Duration, error) {
	if !b.exec.IsRunning() {
		return 0, ErrNotRunning
	}
	return b.exec.Position(), nil
}

// Info describes the context.
func (b *sequenceBase) Info() Info {
	return Info{
		ID:       b.id,
		Name:     b.exec.Name(),
		Target:   TargetSequence,
		Running:  b.exec.IsRunning(),
		Paused:   b.exec.IsPaused(),
		Position: b.exec.Position(),
	}
}

// beginUpdate returns the sequence to update and whether a new play session
// started since the last update. Live data taken from the executor is
// queued on the tracker.
func (b *sequenceBase) beginUpdate() (playback.Sequence, bool, error) {
	seq := b.exec.Sequence()
	if seq == nil {
		return nil, false, fmt.Errorf("%w: no sequence bound", ErrNotRunning)
	}

	fresh := false
	if sid := b.exec.SessionID(); sid != b.session {
		b.session = sid
		b.tracker.dropLive()
		fresh = true
	}
	b.tracker.addLive(b.exec.TakeLiveData())
	return seq, fresh, nil
}

// SequenceContext ticks a sequence by scanning all of its effects.
type SequenceContext struct {
	sequenceBase
}

// NewSequenceContext wraps exec.
func NewSequenceContext(exec *playback.Executor) *SequenceContext {
	return &SequenceContext{sequenceBase: newSequenceBase(exec)}
}

// UpdateElementStates returns the elements affected at t.
func (c *SequenceContext) UpdateElementStates(t time.Duration) (ElementSet, error) {
	seq, _, err := c.beginUpdate()
	if err != nil {
		return nil, err
	}
	return c.tracker.update(t, activeTargets(seq.Effects(), t)), nil
}

// CachingSequenceContext ticks a sequence through an index of its effects
// sorted by start time. The index is built on the first update of each play
// session; effects added to the sequence mid-session are picked up on the
// next session.
type CachingSequenceContext struct {
	sequenceBase
	index       []playback.Effect
	maxDuration time.Duration
	indexed     bool
}

// NewCachingSequenceContext wraps exec.
func NewCachingSequenceContext(exec *playback.Executor) *CachingSequenceContext {
	return &CachingSequenceContext{sequenceBase: newSequenceBase(exec)}
}

// UpdateElementStates returns the elements affected at t.
func (c *CachingSequenceContext) UpdateElementStates(t time.Duration) (ElementSet, error) {
	seq, fresh, err := c.beginUpdate()
	if err != nil {
		return nil, err
	}
	if fresh || !c.indexed {
		c.buildIndex(seq.Effects())
	}
	return c.tracker.update(t, c.activeAt(t)), nil
}

func (c *CachingSequenceContext) buildIndex(effects []playback.Effect) {
	sort.SliceStable(effects, func(i, j int) bool {
		return effects[i].Start < effects[j].Start
	})
	c.index = effects
	c.maxDuration = 0
	for _, fx := range effects {
		if fx.Duration > c.maxDuration {
			c.maxDuration = fx.Duration
		}
	}
	c.indexed = true
}

// activeAt finds candidates with t-maxDuration < Start <= t by binary search.
func (c *CachingSequenceContext) activeAt(t time.Duration) ElementSet {
	set := make(ElementSet)
	hi := sort.Search(len(c.index), func(i int) bool { return c.index[i].Start > t })
	lo := sort.Search(hi, func(i int) bool { return c.index[i].Start > t-c.maxDuration })
	for _, fx := range c.index[lo:hi] {
		if fx.Active(t) {
			set.Add(fx.Targets...)
		}
	}
	return set
}

// IndexSize returns the number of indexed effects.
func (c *CachingSequenceContext) IndexSize() int {
	return len(c.index)
}
