package playback

import (
	"errors"
	"fmt"
	"time"
)

// Media is an auxiliary stream (audio, video) attached to a sequence.
type Media interface {
	LoadMedia(at time.Duration) error
	Start() error
	Pause() error
	Resume() error
	Stop() error
}

// MediaSync applies each transport operation to every attached media stream
// in order. Every stream is attempted even when an earlier one fails; the
// failures are joined and wrapped with ErrMedia.
type MediaSync struct {
	media []Media
}

// NewMediaSync creates a synchronizer over the given streams.
// Nil entries are skipped.
func NewMediaSync(media []Media) *MediaSync {
	list := make([]Media, 0, len(media))
	for _, m := range media {
		if m != nil {
			list = append(list, m)
		}
	}
	return &MediaSync{media: list}
}

// Len returns the number of attached streams.
func (s *MediaSync) Len() int {
	return len(s.media)
}

// Load positions every stream at the given offset.
func (s *MediaSync) Load(at time.Duration) error {
	return s.apply("load", func(m Media) error { return m.LoadMedia(at) })
}

// Start starts every stream.
func (s *MediaSync) Start() error {
	return s.apply("start", Media.Start)
}

// Pause pauses every stream.
func (s *MediaSync) Pause() error {
	return s.apply("pause", Media.Pause)
}

// Resume resumes every stream.
func (s *MediaSync) Resume() error {
	return s.apply("resume", Media.Resume)
}

// Stop stops every stream.
func (s *MediaSync) Stop() error {
	return s.apply("stop", Media.Stop)
}

func (s *MediaSync) apply(op string, fn func(Media) error) error {
	var errs []error
	for i, m := range s.media {
		if err := fn(m); err != nil {
			errs = append(errs, fmt.Errorf("media %d %s: %w", i, op, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrMedia, errors.Join(errs...))
}
