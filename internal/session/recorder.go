package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-showcore/internal/execution"
)

// Recorder defaults.
const (
	DefaultQueueSize    = 256
	DefaultWriteTimeout = 5 * time.Second
)

// Source publishes session lifecycle events. *execution.Manager satisfies it.
type Source interface {
	OnSessionStarted(fn func(execution.SessionEvent)) func()
	OnSessionEnded(fn func(execution.SessionEvent)) func()
}

// RecorderOptions configures a Recorder. Zero fields take defaults.
type RecorderOptions struct {
	QueueSize    int
	WriteTimeout time.Duration
	Logger       Logger
}

type sessionKey struct {
	contextID string
	session   uint64
}

type queued struct {
	ended bool
	ev    execution.SessionEvent
}

// Recorder turns session events into repository writes.
//
// Event handlers only enqueue; Run performs the writes on its own
// goroutine, so a slow database never stalls playback.
type Recorder struct {
	repo         Repository
	queue        chan queued
	writeTimeout time.Duration
	logger       Logger
	dropped      atomic.Uint64

	// open maps live sessions to their record IDs. Owned by Run.
	open map[sessionKey]string
}

// NewRecorder creates a Recorder writing to repo.
func NewRecorder(repo Repository, opts RecorderOptions) *Recorder {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	return &Recorder{
		repo:         repo,
		queue:        make(chan queued, opts.QueueSize),
		writeTimeout: opts.WriteTimeout,
		logger:       opts.Logger,
		open:         make(map[sessionKey]string),
	}
}

// Attach subscribes to src and returns a function that unsubscribes.
func (r *Recorder) Attach(src Source) (detach func()) {
	offStarted := src.OnSessionStarted(func(ev execution.SessionEvent) {
		r.enqueue(queued{ev: ev})
	})
	offEnded := src.OnSessionEnded(func(ev execution.SessionEvent) {
		r.enqueue(queued{ended: true, ev: ev})
	})
	return func() {
		offStarted()
		offEnded()
	}
}

func (r *Recorder) enqueue(q queued) {
	select {
	case r.queue <- q:
	default:
		r.dropped.Add(1)
		r.logger.Warn("session event dropped, queue full",
			"context_id", q.ev.ContextID,
			"session", q.ev.Session,
			"ended", q.ended,
		)
	}
}

// Dropped returns the number of events discarded because the queue was full.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Run writes queued events until ctx is cancelled, then writes whatever
// is still queued and returns. Call it from exactly one goroutine.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return nil
		case q := <-r.queue:
			r.write(ctx, q)
		}
	}
}

func (r *Recorder) drain() {
	for {
		select {
		case q := <-r.queue:
			r.write(context.Background(), q)
		default:
			return
		}
	}
}

func (r *Recorder) write(parent context.Context, q queued) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), r.writeTimeout)
	defer cancel()

	key := sessionKey{contextID: q.ev.ContextID, session: q.ev.Session}

	if !q.ended {
		rec := &Record{
			ContextID:   q.ev.ContextID,
			ContextName: q.ev.ContextName,
			Sequence:    q.ev.Sequence,
			Start:       q.ev.Bounds.Start,
			End:         q.ev.Bounds.End,
			StartedAt:   q.ev.At,
			Status:      StatusRunning,
		}
		if err := r.repo.Create(ctx, rec); err != nil {
			r.logger.Error("recording session start", "context_id", key.contextID, "error", err)
			return
		}
		r.open[key] = rec.ID
		r.logger.Debug("session recorded", "session_id", rec.ID, "context_id", key.contextID)
		return
	}

	id, ok := r.open[key]
	if !ok {
		r.logger.Debug("session end without start record", "context_id", key.contextID, "session", key.session)
		return
	}
	delete(r.open, key)

	status := StatusStopped
	if q.ev.Completed {
		status = StatusCompleted
	}
	endedAt := q.ev.At
	if endedAt.IsZero() {
		endedAt = time.Now()
	}
	if err := r.repo.Finish(ctx, id, status, endedAt); err != nil {
		r.logger.Error("recording session end", "session_id", id, "error", err)
	}
}
