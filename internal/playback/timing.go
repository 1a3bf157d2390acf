package playback

import (
	"math"
	"time"
)

// MaxDuration is the open-ended bound used by Start. It clamps to the
// sequence length.
const MaxDuration = time.Duration(math.MaxInt64)

// TimingSource is the clock a sequence is played against.
//
// It may be backed by audio playback, a free-running clock or external sync
// hardware. The executor treats it as opaque: the position may drift, loop
// back to zero or be reset externally.
//
// Implementations must allow Position to be called concurrently with the
// other methods, since the end-check poll reads it from its own goroutine.
type TimingSource interface {
	Position() time.Duration
	SetPosition(p time.Duration)
	Start()
	Pause()
	Resume()
	Stop()
}

// TimingResolver supplies a timing source when a sequence has none of its own.
type TimingResolver func() TimingSource

// Bounds are the start and end positions of one play session.
// They are clamped to the sequence length when Play is called and then
// frozen for the whole session.
type Bounds struct {
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
}

// Timed reports whether the session has a finite range. A session with
// End < Start runs unbounded.
func (b Bounds) Timed() bool {
	return b.End >= b.Start
}

// Empty reports whether the range has zero length.
func (b Bounds) Empty() bool {
	return b.Start == b.End
}

// ClampBounds clamps start and end independently to [0, length].
func ClampBounds(start, end, length time.Duration) Bounds {
	return Bounds{
		Start: clamp(start, length),
		End:   clamp(end, length),
	}
}

func clamp(v, length time.Duration) time.Duration {
	if length < 0 {
		length = 0
	}
	switch {
	case v < 0:
		return 0
	case v > length:
		return length
	default:
		return v
	}
}
