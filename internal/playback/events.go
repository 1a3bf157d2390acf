package playback

import "sync"

// StartedEvent is emitted when a play session becomes Running.
// It carries the resolved timing source and the clamped bounds.
type StartedEvent struct {
	Sequence Sequence
	Timing   TimingSource
	Bounds   Bounds
	Session  uint64
}

// EndedEvent is emitted when a play session stops, whether by an explicit
// Stop or by natural end.
type EndedEvent struct {
	Sequence Sequence
	Bounds   Bounds
	Session  uint64
	// Completed is set when the session reached the end of its range.
	Completed bool
}

// Observers is an ordered list of subscribers for one event kind.
// The zero value is ready to use and safe for concurrent use.
type Observers[T any] struct {
	mu     sync.Mutex
	nextID int
	subs   []observer[T]
}

type observer[T any] struct {
	id int
	fn func(T)
}

// Add subscribes fn and returns a function that removes it.
// The returned function may be called more than once.
func (o *Observers[T]) Add(fn func(T)) (unsubscribe func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.nextID++
	id := o.nextID
	o.subs = append(o.subs, observer[T]{id: id, fn: fn})

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		for i, s := range o.subs {
			if s.id == id {
				o.subs = append(o.subs[:i:i], o.subs[i+1:]...)
				return
			}
		}
	}
}

// Notify calls every subscriber in subscription order on the calling
// goroutine. Subscribers added or removed during Notify take effect on the
// next call.
func (o *Observers[T]) Notify(v T) {
	o.mu.Lock()
	subs := make([]observer[T], len(o.subs))
	copy(subs, o.subs)
	o.mu.Unlock()

	for _, s := range subs {
		s.fn(v)
	}
}

// Len returns the number of subscribers.
func (o *Observers[T]) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.subs)
}
