package playback

import "errors"

// Domain errors for the playback package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, playback.ErrRunning) {
//	    // stop first, then swap the sequence
//	}
var (
	// ErrRunning is returned when an operation requires a stopped executor.
	ErrRunning = errors.New("playback: executor is running")

	// ErrClosed is returned when an operation is attempted on a closed executor.
	ErrClosed = errors.New("playback: executor closed")

	// ErrNoTiming is reported when neither the sequence nor the default
	// resolver supplies a timing source.
	ErrNoTiming = errors.New("playback: no timing source")

	// ErrMedia wraps failures reported by attached media streams.
	ErrMedia = errors.New("playback: media failure")
)
