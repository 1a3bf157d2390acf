package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-showcore/internal/execution"
	"github.com/nerrad567/gray-logic-showcore/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-showcore/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-showcore/internal/playback"
)

const baseConfig = `
site:
  id: test-site

database:
  path: %DB%
  wal_mode: true
  busy_timeout: 5
  session_retention_days: 30

playback:
  tick_interval_ms: 5
  end_check_interval_ms: 5
  start_guard_timeout_ms: 50
  start_guard_poll_ms: 1

mqtt:
  enabled: false

influxdb:
  enabled: false

api:
  enabled: false

logging:
  level: error
  format: text
  output: stderr
`

func writeConfig(t *testing.T, dbPath string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := strings.ReplaceAll(baseConfig, "%DB%", `"`+dbPath+`"`)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestRun_InvalidConfig verifies run fails when an explicit config path is missing.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("SHOWCORE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("run() error = %v, want not-exist", err)
	}
}

// TestRun_MissingDatabasePath verifies run fails when database path is empty.
func TestRun_MissingDatabasePath(t *testing.T) {
	t.Setenv("SHOWCORE_CONFIG", writeConfig(t, ""))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with empty database path")
	}
	if !strings.Contains(err.Error(), "database.path") {
		t.Errorf("run() error = %v, want database.path validation", err)
	}
}

// TestRun_StartStop runs the core with every optional backend disabled and
// cancels it.
func TestRun_StartStop(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "showcore.db")
	t.Setenv("SHOWCORE_CONFIG", writeConfig(t, dbPath))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run() did not return after cancellation")
	}

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("SHOWCORE_CONFIG", "")
	path, explicit := getConfigPath()
	if path != defaultConfigPath || explicit {
		t.Errorf("getConfigPath() = %q, %v; want %q, false", path, explicit, defaultConfigPath)
	}

	t.Setenv("SHOWCORE_CONFIG", "/etc/showcore.yaml")
	path, explicit = getConfigPath()
	if path != "/etc/showcore.yaml" || !explicit {
		t.Errorf("getConfigPath() = %q, %v; want /etc/showcore.yaml, true", path, explicit)
	}
}

func TestLoadConfig_DefaultsWhenDefaultPathMissing(t *testing.T) {
	t.Setenv("SHOWCORE_CONFIG", "")
	t.Chdir(t.TempDir())

	cfg, path, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if path != "(defaults)" {
		t.Errorf("path = %q, want (defaults)", path)
	}
	if cfg.Site.ID == "" {
		t.Error("default config has no site id")
	}
}

func TestTickRecorder(t *testing.T) {
	stats := &fakeStats{}
	series := &fakeSeries{}

	rec := tickRecorder(stats, series)
	rec.RecordTick(execution.TickStats{Duration: time.Millisecond, Contexts: 2, Affected: 7, Failures: 1})

	if len(stats.ticks) != 1 {
		t.Fatalf("stats ticks = %d, want 1", len(stats.ticks))
	}
	if got := stats.ticks[0]; got.Contexts != 2 || got.Affected != 7 || got.Failures != 1 {
		t.Errorf("stats tick = %+v", got)
	}
	if len(series.ticks) != 1 {
		t.Fatalf("series ticks = %d, want 1", len(series.ticks))
	}
	if got := series.ticks[0]; got.Duration != time.Millisecond || got.At.IsZero() {
		t.Errorf("series tick = %+v", got)
	}
}

func TestTickRecorder_NoSeries(t *testing.T) {
	stats := &fakeStats{}

	rec := tickRecorder(stats, nil)
	rec.RecordTick(execution.TickStats{Contexts: 1})

	if len(stats.ticks) != 1 {
		t.Errorf("stats ticks = %d, want 1", len(stats.ticks))
	}
}

func TestObserveSessions(t *testing.T) {
	src := &fakeSessionSource{}
	stats := &fakeStats{}
	series := &fakeSeries{}

	detach := observeSessions(src, stats, series)

	ev := execution.SessionEvent{
		ContextID:   "ctx-1",
		ContextName: "intro",
		Sequence:    "intro",
		Bounds:      playback.Bounds{Start: 0, End: 4 * time.Second},
		At:          time.Now(),
	}
	src.started.Notify(ev)
	ev.Completed = true
	src.ended.Notify(ev)

	if stats.started != 1 || stats.completed != 1 || stats.stopped != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if len(series.sessions) != 2 {
		t.Fatalf("series sessions = %d, want 2", len(series.sessions))
	}
	if s := series.sessions[0]; s.Ended || s.Completed || s.End != 4*time.Second {
		t.Errorf("start sample = %+v", s)
	}
	if s := series.sessions[1]; !s.Ended || !s.Completed || s.ContextID != "ctx-1" {
		t.Errorf("end sample = %+v", s)
	}

	detach()
	src.started.Notify(ev)
	if stats.started != 1 {
		t.Error("observer still attached after detach")
	}
}

func TestObserveSessions_NoSeries(t *testing.T) {
	src := &fakeSessionSource{}
	stats := &fakeStats{}

	defer observeSessions(src, stats, nil)()
	src.ended.Notify(execution.SessionEvent{})

	if stats.stopped != 1 {
		t.Errorf("stopped = %d, want 1", stats.stopped)
	}
}

func TestObserveNotices(t *testing.T) {
	src := &fakeSessionSource{}
	stats := &fakeStats{}

	detach := observeNotices(src, stats)
	src.notices.Notify(execution.NoticeEvent{Level: execution.NoticeError, Text: "codec missing"})
	src.notices.Notify(execution.NoticeEvent{Level: execution.NoticeMessage, Text: "timing stalled"})
	src.notices.Notify(execution.NoticeEvent{Level: execution.NoticeError, Text: "codec missing"})

	if stats.notices[execution.NoticeError] != 2 || stats.notices[execution.NoticeMessage] != 1 {
		t.Errorf("notices = %v", stats.notices)
	}

	detach()
	src.notices.Notify(execution.NoticeEvent{Level: execution.NoticeError})
	if stats.notices[execution.NoticeError] != 2 {
		t.Error("observer still attached after detach")
	}
}

func TestPruneSessions(t *testing.T) {
	repo := &fakePruner{calls: make(chan time.Duration, 4)}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		pruneSessions(ctx, repo, 48*time.Hour, logging.Default())
	}()

	select {
	case got := <-repo.calls:
		if got != 48*time.Hour {
			t.Errorf("Prune(olderThan) = %v, want 48h", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Prune was not called at startup")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pruneSessions did not return after cancel")
	}
}

// ─── Test Doubles ───────────────────────────────────────────────────

type fakeStats struct {
	ticks     []execution.TickStats
	started   int
	completed int
	stopped   int
	notices   map[string]int
}

func (f *fakeStats) ObserveTick(d time.Duration, running, affected, failures int) {
	f.ticks = append(f.ticks, execution.TickStats{Duration: d, Contexts: running, Affected: affected, Failures: failures})
}

func (f *fakeStats) IncSessionStarted() { f.started++ }

func (f *fakeStats) IncSessionEnded(completed bool) {
	if completed {
		f.completed++
		return
	}
	f.stopped++
}

func (f *fakeStats) IncNotice(level string) {
	if f.notices == nil {
		f.notices = make(map[string]int)
	}
	f.notices[level]++
}

type fakeSeries struct {
	ticks    []influxdb.TickSample
	sessions []influxdb.SessionSample
}

func (f *fakeSeries) WriteTick(s influxdb.TickSample)            { f.ticks = append(f.ticks, s) }
func (f *fakeSeries) WriteSessionEvent(s influxdb.SessionSample) { f.sessions = append(f.sessions, s) }

type fakeSessionSource struct {
	started playback.Observers[execution.SessionEvent]
	ended   playback.Observers[execution.SessionEvent]
	notices playback.Observers[execution.NoticeEvent]
}

func (f *fakeSessionSource) OnSessionStarted(fn func(execution.SessionEvent)) func() {
	return f.started.Add(fn)
}

func (f *fakeSessionSource) OnSessionEnded(fn func(execution.SessionEvent)) func() {
	return f.ended.Add(fn)
}

func (f *fakeSessionSource) OnNotice(fn func(execution.NoticeEvent)) func() {
	return f.notices.Add(fn)
}

type fakePruner struct {
	calls chan time.Duration
}

func (f *fakePruner) Prune(_ context.Context, olderThan time.Duration) (int64, error) {
	f.calls <- olderThan
	return 1, nil
}
