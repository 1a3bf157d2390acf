package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-showcore/internal/playback"
)

// ─── Test Doubles ───────────────────────────────────────────────────────────

// fakeContext is a Context with scripted tick output.
type fakeContext struct {
	id      string
	name    string
	running atomic.Bool
	closed  atomic.Int32
	stops   atomic.Int32
	pauses  atomic.Int32
	resumes atomic.Int32

	mu      sync.Mutex
	outputs []ElementSet // returned in turn, last one repeats
	calls   int
	fail    error
	panics  bool

	snapshotErr error
}

func newFakeContext(id string, outputs ...ElementSet) *fakeContext {
	c := &fakeContext{id: id, name: "fake-" + id, outputs: outputs}
	c.running.Store(true)
	return c
}

func (c *fakeContext) ID() string      { return c.id }
func (c *fakeContext) Name() string    { return c.name }
func (c *fakeContext) IsRunning() bool { return c.running.Load() }
func (c *fakeContext) Start()          { c.running.Store(true) }
func (c *fakeContext) Pause()          { c.pauses.Add(1) }
func (c *fakeContext) Resume()         { c.resumes.Add(1) }
func (c *fakeContext) Stop() {
	c.stops.Add(1)
	c.running.Store(false)
}
func (c *fakeContext) Close() error {
	c.closed.Add(1)
	return nil
}

func (c *fakeContext) GetTimeSnapshot() (time.Duration, error) {
	if c.snapshotErr != nil {
		return 0, c.snapshotErr
	}
	return time.Second, nil
}

func (c *fakeContext) UpdateElementStates(time.Duration) (ElementSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.panics {
		panic("update exploded")
	}
	if c.fail != nil {
		return nil, c.fail
	}
	if len(c.outputs) == 0 {
		return nil, nil
	}
	out := c.outputs[0]
	if len(c.outputs) > 1 {
		c.outputs = c.outputs[1:]
	}
	return out, nil
}

func (c *fakeContext) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// newFakeManager returns a manager whose sequence factory hands out the
// given fake contexts in order.
func newFakeManager(t *testing.T, fakes ...*fakeContext) *Manager {
	t.Helper()
	return newFakeManagerWithLogger(t, nil, fakes...)
}

func newFakeManagerWithLogger(t *testing.T, logger Logger, fakes ...*fakeContext) *Manager {
	t.Helper()
	catalog := NewCatalog()
	next := 0
	catalog.Register(TargetSequence, Features{}, func(tg Target) (Context, error) {
		_ = tg.Executor.Close()
		c := fakes[next]
		next++
		return c, nil
	})
	m := NewManager(Options{Catalog: catalog, Logger: logger})
	for range fakes {
		if _, err := m.CreateSequenceContext(&Features{}, playback.NewTimedSequence("s", time.Second)); err != nil {
			t.Fatalf("CreateSequenceContext() error = %v", err)
		}
	}
	return m
}

// recordingLogger counts error logs.
type recordingLogger struct {
	noopLogger
	mu     sync.Mutex
	errors []string
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors)
}

// stuckTiming is a TimingSource that never advances.
type stuckTiming struct{}

func (stuckTiming) Position() time.Duration   { return 0 }
func (stuckTiming) SetPosition(time.Duration) {}
func (stuckTiming) Start()                    {}
func (stuckTiming) Pause()                    {}
func (stuckTiming) Resume()                   {}
func (stuckTiming) Stop()                     {}

// brokenMedia fails to load.
type brokenMedia struct{}

func (brokenMedia) LoadMedia(time.Duration) error { return errors.New("codec missing") }
func (brokenMedia) Start() error                  { return nil }
func (brokenMedia) Pause() error                  { return nil }
func (brokenMedia) Resume() error                 { return nil }
func (brokenMedia) Stop() error                   { return nil }

// ─── Factory ────────────────────────────────────────────────────────────────

func TestManager_CreateSequenceContext_InvalidArguments(t *testing.T) {
	logger := &recordingLogger{}
	m := NewManager(Options{Logger: logger})

	if _, err := m.CreateSequenceContext(nil, playback.NewTimedSequence("s", time.Second)); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("nil features error = %v, want ErrInvalidArgument", err)
	}
	if _, err := m.CreateSequenceContext(&Features{}, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("nil sequence error = %v, want ErrInvalidArgument", err)
	}
	if _, err := m.CreateProgramContext(nil, &playback.Program{}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("nil program features error = %v, want ErrInvalidArgument", err)
	}
	if _, err := m.CreateProgramContext(&Features{}, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("nil program error = %v, want ErrInvalidArgument", err)
	}
	if _, err := m.CreateProgramContext(&Features{}, &playback.Program{}, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("nil executor error = %v, want ErrInvalidArgument", err)
	}
	gappy := &playback.Program{Name: "gappy", Sequences: []playback.Sequence{
		playback.NewTimedSequence("a", time.Second),
		nil,
	}}
	if _, err := m.CreateProgramContext(&Features{}, gappy); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("nil program entry error = %v, want ErrInvalidArgument", err)
	}

	if logger.count() != 0 {
		t.Errorf("contract violations logged %d errors, want 0", logger.count())
	}
	if m.Count() != 0 {
		t.Errorf("Count() = %d, want 0", m.Count())
	}
}

func TestManager_CreateContext_NoContextType(t *testing.T) {
	logger := &recordingLogger{}
	m := NewManager(Options{Logger: logger})

	ctx, err := m.CreateProgramContext(&Features{Caching: true}, &playback.Program{Name: "p"})
	if !errors.Is(err, ErrNoContextType) {
		t.Fatalf("error = %v, want ErrNoContextType", err)
	}
	if ctx != nil {
		t.Error("expected nil context on configuration error")
	}
	if logger.count() != 1 {
		t.Errorf("logged errors = %d, want 1", logger.count())
	}

	_, err = m.CreateSequenceContext(&Features{}, playback.NewTimedSequence("s", time.Second))
	if err != nil {
		t.Fatalf("default catalog sequence context error = %v", err)
	}
	m.ReleaseContexts()
}

func TestManager_CreateSelectsImplementation(t *testing.T) {
	m := NewManager(Options{})
	defer m.ReleaseContexts()

	tests := []struct {
		name     string
		features Features
		check    func(Context) bool
	}{
		{"plain", Features{}, func(c Context) bool { _, ok := c.(*SequenceContext); return ok }},
		{"caching", Features{Caching: true}, func(c Context) bool { _, ok := c.(*CachingSequenceContext); return ok }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.features
			ctx, err := m.CreateSequenceContext(&f, playback.NewTimedSequence(tt.name, time.Second))
			if err != nil {
				t.Fatalf("CreateSequenceContext() error = %v", err)
			}
			if !tt.check(ctx) {
				t.Errorf("context type = %T", ctx)
			}
			if ctx.Name() != tt.name {
				t.Errorf("Name() = %q, want %q", ctx.Name(), tt.name)
			}
			if got, err := m.Get(ctx.ID()); err != nil || got != ctx {
				t.Errorf("Get(%q) = %v, %v", ctx.ID(), got, err)
			}
		})
	}
}

func TestManager_CreateProgramContext_InjectedExecutor(t *testing.T) {
	m := NewManager(Options{})
	program := &playback.Program{Name: "show", Sequences: []playback.Sequence{
		playback.NewTimedSequence("a", time.Minute),
	}}
	exec := playback.NewProgramExecutor(program, playback.ExecutorOptions{})

	ctx, err := m.CreateProgramContext(&Features{}, program, exec)
	if err != nil {
		t.Fatalf("CreateProgramContext() error = %v", err)
	}
	pc, ok := ctx.(*ProgramContext)
	if !ok {
		t.Fatalf("context type = %T, want *ProgramContext", ctx)
	}
	if pc.Executor() != exec {
		t.Error("injected executor was not used")
	}
	if ctx.Name() != "show" {
		t.Errorf("Name() = %q, want show", ctx.Name())
	}

	m.ReleaseContext(ctx)
}

// ─── Release ────────────────────────────────────────────────────────────────

func TestManager_ReleaseContextTwiceEmitsOnce(t *testing.T) {
	fake := newFakeContext("a")
	m := newFakeManager(t, fake)

	var released atomic.Int32
	m.OnContextReleased(func(Context) { released.Add(1) })

	m.ReleaseContext(fake)
	m.ReleaseContext(fake)

	if n := released.Load(); n != 1 {
		t.Errorf("released events = %d, want 1", n)
	}
	if fake.stops.Load() != 1 || fake.closed.Load() != 1 {
		t.Errorf("stops/closes = %d/%d, want 1/1", fake.stops.Load(), fake.closed.Load())
	}
	if m.Count() != 0 {
		t.Errorf("Count() = %d, want 0", m.Count())
	}
	if _, err := m.Get("a"); !errors.Is(err, ErrContextNotFound) {
		t.Errorf("Get() error = %v, want ErrContextNotFound", err)
	}
}

func TestManager_ReleaseContexts(t *testing.T) {
	fakes := []*fakeContext{newFakeContext("a"), newFakeContext("b"), newFakeContext("c")}
	m := newFakeManager(t, fakes...)

	m.ReleaseContexts()
	if m.Count() != 0 {
		t.Errorf("Count() = %d, want 0", m.Count())
	}
	for _, f := range fakes {
		if f.closed.Load() != 1 {
			t.Errorf("context %s closed %d times, want 1", f.id, f.closed.Load())
		}
	}
	m.ReleaseContext(nil)
}

func TestManager_ContextsSnapshotInCreationOrder(t *testing.T) {
	m := newFakeManager(t, newFakeContext("z"), newFakeContext("a"), newFakeContext("m"))

	snap := m.Contexts()
	m.ReleaseContexts()

	want := []string{"z", "a", "m"}
	if len(snap) != len(want) {
		t.Fatalf("snapshot size = %d, want %d", len(snap), len(want))
	}
	for i, c := range snap {
		if c.ID() != want[i] {
			t.Errorf("snapshot[%d] = %s, want %s", i, c.ID(), want[i])
		}
	}
}

// ─── Tick ───────────────────────────────────────────────────────────────────

func TestManager_TickIsolatesFaultingContext(t *testing.T) {
	tests := []struct {
		name  string
		fault func(c *fakeContext)
	}{
		{"error", func(c *fakeContext) { c.fail = errors.New("renderer offline") }},
		{"panic", func(c *fakeContext) { c.panics = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := newFakeContext("first", NewElementSet("a", "b"))
			second := newFakeContext("second", NewElementSet("x"))
			third := newFakeContext("third", NewElementSet("c"))
			tt.fault(second)

			logger := &recordingLogger{}
			m := newFakeManagerWithLogger(t, logger, first, second, third)

			var stats TickStats
			m.SetTickRecorder(TickRecorderFunc(func(s TickStats) { stats = s }))

			got := m.Tick()

			want := NewElementSet("a", "b", "c")
			if len(got) != len(want) {
				t.Fatalf("Tick() = %v, want %v", got.Sorted(), want.Sorted())
			}
			for id := range want {
				if !got.Has(id) {
					t.Errorf("Tick() missing %q", id)
				}
			}
			if m.Count() != 3 {
				t.Errorf("Count() = %d, want all three registered", m.Count())
			}
			if logger.count() != 1 {
				t.Errorf("logged errors = %d, want 1", logger.count())
			}
			if stats.Contexts != 3 || stats.Failures != 1 || stats.Affected != 3 {
				t.Errorf("stats = %+v", stats)
			}

			// The faulting context is retried.
			m.Tick()
			if second.callCount() != 2 {
				t.Errorf("faulting context updated %d times, want 2", second.callCount())
			}
		})
	}
}

func TestManager_TickResultIsFresh(t *testing.T) {
	fake := newFakeContext("a", NewElementSet("a", "b"), NewElementSet())
	m := newFakeManager(t, fake)

	if got := m.Tick(); len(got) != 2 {
		t.Fatalf("first Tick() = %v, want 2 elements", got.Sorted())
	}
	if got := m.Tick(); len(got) != 0 {
		t.Errorf("second Tick() = %v, want empty", got.Sorted())
	}
}

func TestManager_TickSkipsStoppedContexts(t *testing.T) {
	running := newFakeContext("running", NewElementSet("a"))
	stopped := newFakeContext("stopped", NewElementSet("b"))
	stopped.running.Store(false)
	m := newFakeManager(t, running, stopped)

	got := m.Tick()
	if got.Has("b") || !got.Has("a") {
		t.Errorf("Tick() = %v, want [a]", got.Sorted())
	}
	if stopped.callCount() != 0 {
		t.Error("stopped context was updated")
	}
}

func TestManager_ConcurrentCreateReleaseDuringTick(t *testing.T) {
	m := NewManager(Options{})
	defer m.ReleaseContexts()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				m.Tick()
			}
		}
	}()

	for i := 0; i < 20; i++ {
		ctx, err := m.CreateSequenceContext(&Features{}, playback.NewTimedSequence("s", time.Second))
		if err != nil {
			t.Fatalf("CreateSequenceContext() error = %v", err)
		}
		m.ReleaseContext(ctx)
	}
	close(stop)
	wg.Wait()

	if m.Count() != 0 {
		t.Errorf("Count() = %d, want 0", m.Count())
	}
}

// ─── Live context ───────────────────────────────────────────────────────────

func TestManager_GetSystemLiveContextIsSingleton(t *testing.T) {
	m := NewManager(Options{})

	var created atomic.Int32
	m.OnContextCreated(func(Context) { created.Add(1) })

	a, err := m.GetSystemLiveContext()
	if err != nil {
		t.Fatalf("GetSystemLiveContext() error = %v", err)
	}
	b, _ := m.GetSystemLiveContext()
	if a != b {
		t.Error("GetSystemLiveContext() returned different contexts")
	}
	if created.Load() != 1 || m.Count() != 1 {
		t.Errorf("created=%d count=%d, want 1/1", created.Load(), m.Count())
	}
	if !a.IsRunning() {
		t.Error("live context should always be running")
	}

	m.ReleaseContext(a)
	c, _ := m.GetSystemLiveContext()
	if c == a {
		t.Error("released live context was reused")
	}
	m.ReleaseContexts()
}

func TestManager_TickSkipsContextStoppedMidTick(t *testing.T) {
	racing := newFakeContext("racing", NewElementSet("a"))
	racing.snapshotErr = fmt.Errorf("sequence: %w", ErrNotRunning)
	logger := &recordingLogger{}
	m := newFakeManagerWithLogger(t, logger, racing)

	var stats TickStats
	m.SetTickRecorder(TickRecorderFunc(func(s TickStats) { stats = s }))

	if got := m.Tick(); len(got) != 0 {
		t.Errorf("Tick() = %v, want empty", got.Sorted())
	}
	if stats.Failures != 0 || stats.Contexts != 0 {
		t.Errorf("stats = %+v, want no failures and no ticked contexts", stats)
	}
	if logger.count() != 0 {
		t.Errorf("logged errors = %d, want 0", logger.count())
	}
	if racing.callCount() != 0 {
		t.Error("stopped context was updated")
	}
}

// ─── Session events and loop ────────────────────────────────────────────────

func TestManager_RelaysSessionEvents(t *testing.T) {
	m := NewManager(Options{Executor: playback.ExecutorOptions{EndCheckInterval: time.Millisecond}})
	defer m.ReleaseContexts()

	started := make(chan SessionEvent, 1)
	ended := make(chan SessionEvent, 1)
	m.OnSessionStarted(func(ev SessionEvent) { started <- ev })
	m.OnSessionEnded(func(ev SessionEvent) { ended <- ev })

	ctx, err := m.CreateSequenceContext(&Features{}, playback.NewTimedSequence("intro", 20*time.Millisecond))
	if err != nil {
		t.Fatalf("CreateSequenceContext() error = %v", err)
	}
	ctx.Start()

	for _, ch := range []chan SessionEvent{started, ended} {
		select {
		case ev := <-ch:
			if ev.ContextID != ctx.ID() || ev.Sequence != "intro" {
				t.Errorf("event = %+v", ev)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for session event")
		}
	}
}

func TestManager_RunLoopNotifiesTicks(t *testing.T) {
	fake := newFakeContext("a", NewElementSet("par-1"))
	m := newFakeManager(t, fake)

	got := make(chan ElementSet, 8)
	m.OnTick(func(s ElementSet) {
		select {
		case got <- s:
		default:
		}
	})

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.RunLoop(runCtx, time.Millisecond) }()

	select {
	case s := <-got:
		if !s.Has("par-1") {
			t.Errorf("tick set = %v, want par-1", s.Sorted())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no tick delivered")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("RunLoop() error = %v", err)
	}
}

func TestMultiRecorder(t *testing.T) {
	var a, b int
	mr := MultiRecorder{
		TickRecorderFunc(func(TickStats) { a++ }),
		nil,
		TickRecorderFunc(func(TickStats) { b++ }),
	}
	mr.RecordTick(TickStats{})
	if a != 1 || b != 1 {
		t.Errorf("recorders called %d/%d times, want 1/1", a, b)
	}
}

func TestManager_ReleaseDeliversSessionEndBeforeReleased(t *testing.T) {
	tests := []struct {
		name   string
		create func(m *Manager) (Context, error)
	}{
		{"sequence", func(m *Manager) (Context, error) {
			return m.CreateSequenceContext(&Features{}, playback.NewTimedSequence("intro", time.Minute))
		}},
		{"program", func(m *Manager) (Context, error) {
			return m.CreateProgramContext(&Features{}, &playback.Program{Name: "show", Sequences: []playback.Sequence{
				playback.NewTimedSequence("intro", time.Minute),
			}})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(Options{})

			var mu sync.Mutex
			var order []string
			record := func(s string) {
				mu.Lock()
				defer mu.Unlock()
				order = append(order, s)
			}
			started := make(chan struct{}, 1)
			m.OnSessionStarted(func(SessionEvent) { started <- struct{}{} })
			m.OnSessionEnded(func(ev SessionEvent) {
				// Slow subscriber: released must still wait for it.
				time.Sleep(20 * time.Millisecond)
				record("ended")
			})
			m.OnContextReleased(func(Context) { record("released") })

			ctx, err := tt.create(m)
			if err != nil {
				t.Fatalf("create error = %v", err)
			}
			ctx.Start()
			select {
			case <-started:
			case <-time.After(2 * time.Second):
				t.Fatal("timed out waiting for session start")
			}

			m.ReleaseContext(ctx)

			mu.Lock()
			defer mu.Unlock()
			if len(order) != 2 || order[0] != "ended" || order[1] != "released" {
				t.Errorf("event order = %v, want [ended released]", order)
			}
		})
	}
}

func TestManager_RelaysNotices(t *testing.T) {
	seq := playback.NewTimedSequence("intro", time.Minute)
	seq.SetTiming(stuckTiming{})
	seq.AddMedia(brokenMedia{})

	tests := []struct {
		name   string
		create func(m *Manager) (Context, error)
	}{
		{"sequence", func(m *Manager) (Context, error) {
			return m.CreateSequenceContext(&Features{}, seq)
		}},
		{"program", func(m *Manager) (Context, error) {
			return m.CreateProgramContext(&Features{}, &playback.Program{Name: "show", Sequences: []playback.Sequence{seq}})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(Options{Executor: playback.ExecutorOptions{StartGuardTimeout: 5 * time.Millisecond}})
			defer m.ReleaseContexts()

			notices := make(chan NoticeEvent, 4)
			m.OnNotice(func(ev NoticeEvent) { notices <- ev })

			ctx, err := tt.create(m)
			if err != nil {
				t.Fatalf("create error = %v", err)
			}
			ctx.Start()

			levels := map[string]bool{}
			for len(levels) < 2 {
				select {
				case ev := <-notices:
					if ev.ContextID != ctx.ID() || ev.Text == "" {
						t.Errorf("notice = %+v", ev)
					}
					levels[ev.Level] = true
				case <-time.After(2 * time.Second):
					t.Fatalf("timed out waiting for notices, got %v", levels)
				}
			}
			if !levels[NoticeMessage] || !levels[NoticeError] {
				t.Errorf("notice levels = %v, want message and error", levels)
			}
		})
	}
}
