package execution

import (
	"context"
	"time"
)

// TickStats summarises one Tick.
type TickStats struct {
	Duration time.Duration
	Contexts int // running contexts ticked
	Affected int
	Failures int
}

// TickRecorder receives statistics for every tick.
type TickRecorder interface {
	RecordTick(TickStats)
}

// TickRecorderFunc adapts a function to TickRecorder.
type TickRecorderFunc func(TickStats)

// RecordTick calls f.
func (f TickRecorderFunc) RecordTick(s TickStats) { f(s) }

// MultiRecorder fans statistics out to several recorders.
type MultiRecorder []TickRecorder

// RecordTick forwards s to every non-nil recorder.
func (mr MultiRecorder) RecordTick(s TickStats) {
	for _, r := range mr {
		if r != nil {
			r.RecordTick(s)
		}
	}
}

// RunLoop calls Tick every interval until ctx is cancelled and passes each
// result to the OnTick subscribers. It is the single driver of Tick.
func (m *Manager) RunLoop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 25 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info("tick loop started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("tick loop stopped")
			return nil
		case <-ticker.C:
			m.ticks.Notify(m.Tick())
		}
	}
}
