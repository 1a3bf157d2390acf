package playback

import (
	"sync"
	"time"
)

// Effect is one timed entry of a sequence. It is active at t when
// Start <= t < Start+Duration. Targets are the output element IDs it touches.
type Effect struct {
	ID       string        `json:"id"`
	Start    time.Duration `json:"start"`
	Duration time.Duration `json:"duration"`
	Targets  []string      `json:"targets"`
}

// End returns the first position at which the effect is no longer active.
func (e Effect) End() time.Duration {
	return e.Start + e.Duration
}

// Active reports whether the effect is active at t.
func (e Effect) Active(t time.Duration) bool {
	return e.Start <= t && t < e.End()
}

// DataListener is offered effects inserted into a sequence while it plays.
// Returning true consumes the effect so it is not stored in the sequence.
type DataListener func(Effect) bool

// Sequence is what an Executor plays.
type Sequence interface {
	Name() string
	Length() time.Duration

	// Timing returns the sequence's own timing source, or nil to use the
	// executor's default resolver.
	Timing() TimingSource

	Media() []Media
	Effects() []Effect

	// OnInsertData registers a listener for inserted data and returns a
	// function that removes it.
	OnInsertData(l DataListener) (unsubscribe func())
}

// TimedSequence is an in-memory Sequence.
//
// All methods are safe for concurrent use. The length may change while the
// sequence plays; sessions already in progress keep their frozen bounds.
type TimedSequence struct {
	mu        sync.RWMutex
	name      string
	length    time.Duration
	timing    TimingSource
	media     []Media
	effects   []Effect
	consumers []listenerEntry
	nextID    int
}

type listenerEntry struct {
	id int
	fn DataListener
}

// NewTimedSequence creates an empty sequence.
func NewTimedSequence(name string, length time.Duration) *TimedSequence {
	return &TimedSequence{
		name:   name,
		length: length,
	}
}

// Name returns the sequence name.
func (s *TimedSequence) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// Length returns the sequence length.
func (s *TimedSequence) Length() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.length
}

// SetLength changes the sequence length.
func (s *TimedSequence) SetLength(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.length = d
}

// Timing returns the explicit timing source, if any.
func (s *TimedSequence) Timing() TimingSource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timing
}

// SetTiming binds an explicit timing source. A sequence with its own timing
// source must not be played by two executors at once.
func (s *TimedSequence) SetTiming(t TimingSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timing = t
}

// Media returns a copy of the attached media list.
func (s *TimedSequence) Media() []Media {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Media, len(s.media))
	copy(out, s.media)
	return out
}

// AddMedia attaches a media stream.
func (s *TimedSequence) AddMedia(m Media) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.media = append(s.media, m)
}

// Effects returns a copy of the stored effects.
func (s *TimedSequence) Effects() []Effect {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Effect, len(s.effects))
	copy(out, s.effects)
	return out
}

// AddEffect stores an effect without offering it to listeners.
func (s *TimedSequence) AddEffect(e Effect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.effects = append(s.effects, e)
}

// InsertData offers e to the registered listeners in registration order.
// The first listener that returns true consumes it. Unconsumed effects are
// stored in the sequence. Reports whether the effect was consumed.
func (s *TimedSequence) InsertData(e Effect) bool {
	s.mu.RLock()
	consumers := make([]listenerEntry, len(s.consumers))
	copy(consumers, s.consumers)
	s.mu.RUnlock()

	// Listeners run without the lock so they may call back into the sequence.
	for _, c := range consumers {
		if c.fn(e) {
			return true
		}
	}

	s.AddEffect(e)
	return false
}

// OnInsertData registers a listener for inserted data.
func (s *TimedSequence) OnInsertData(l DataListener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.consumers = append(s.consumers, listenerEntry{id: id, fn: l})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, c := range s.consumers {
				if c.id == id {
					s.consumers = append(s.consumers[:i:i], s.consumers[i+1:]...)
					return
				}
			}
		})
	}
}

// ListenerCount returns the number of registered data listeners.
func (s *TimedSequence) ListenerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.consumers)
}
