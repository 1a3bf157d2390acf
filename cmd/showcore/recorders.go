package main

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-showcore/internal/execution"
	"github.com/nerrad567/gray-logic-showcore/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-showcore/internal/infrastructure/logging"
)

// statsSink is the Prometheus side of tick and session recording.
type statsSink interface {
	ObserveTick(d time.Duration, running, affected, failures int)
	IncSessionStarted()
	IncSessionEnded(completed bool)
	IncNotice(level string)
}

// seriesSink is the time-series side. Nil when InfluxDB is disabled.
type seriesSink interface {
	WriteTick(s influxdb.TickSample)
	WriteSessionEvent(s influxdb.SessionSample)
}

// sessionSource is satisfied by *execution.Manager.
type sessionSource interface {
	OnSessionStarted(fn func(execution.SessionEvent)) func()
	OnSessionEnded(fn func(execution.SessionEvent)) func()
}

// noticeSource is satisfied by *execution.Manager.
type noticeSource interface {
	OnNotice(fn func(execution.NoticeEvent)) func()
}

// pruner is satisfied by *session.SQLiteRepository.
type pruner interface {
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// tickRecorder builds the manager's per-tick recorder. series may be nil.
func tickRecorder(stats statsSink, series seriesSink) execution.TickRecorder {
	recorders := execution.MultiRecorder{
		execution.TickRecorderFunc(func(s execution.TickStats) {
			stats.ObserveTick(s.Duration, s.Contexts, s.Affected, s.Failures)
		}),
	}
	if series != nil {
		recorders = append(recorders, execution.TickRecorderFunc(func(s execution.TickStats) {
			series.WriteTick(influxdb.TickSample{
				Duration: s.Duration,
				Contexts: s.Contexts,
				Affected: s.Affected,
				Failures: s.Failures,
				At:       time.Now(),
			})
		}))
	}
	return recorders
}

// observeSessions counts session starts and ends and mirrors them to the
// time-series store. series may be nil. The returned func detaches both
// observers.
func observeSessions(src sessionSource, stats statsSink, series seriesSink) func() {
	offStarted := src.OnSessionStarted(func(ev execution.SessionEvent) {
		stats.IncSessionStarted()
		if series != nil {
			series.WriteSessionEvent(sessionSample(ev, false))
		}
	})
	offEnded := src.OnSessionEnded(func(ev execution.SessionEvent) {
		stats.IncSessionEnded(ev.Completed)
		if series != nil {
			series.WriteSessionEvent(sessionSample(ev, true))
		}
	})
	return func() {
		offStarted()
		offEnded()
	}
}

// observeNotices counts executor notices by level. The returned func
// detaches the observer.
func observeNotices(src noticeSource, stats statsSink) func() {
	return src.OnNotice(func(ev execution.NoticeEvent) {
		stats.IncNotice(ev.Level)
	})
}

func sessionSample(ev execution.SessionEvent, ended bool) influxdb.SessionSample {
	return influxdb.SessionSample{
		ContextID:   ev.ContextID,
		ContextName: ev.ContextName,
		Sequence:    ev.Sequence,
		Ended:       ended,
		Completed:   ended && ev.Completed,
		Start:       ev.Bounds.Start,
		End:         ev.Bounds.End,
		At:          ev.At,
	}
}

// pruneSessions deletes session records older than retention once at
// startup and then every pruneInterval until ctx is cancelled.
func pruneSessions(ctx context.Context, repo pruner, retention time.Duration, log *logging.Logger) {
	prune := func() {
		n, err := repo.Prune(ctx, retention)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("pruning sessions failed", "error", err)
			}
			return
		}
		if n > 0 {
			log.Info("pruned session records", "count", n, "retention", retention)
		}
	}

	prune()
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}
