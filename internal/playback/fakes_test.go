package playback

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// ─── Test Doubles ───────────────────────────────────────────────────────────

// fakeTiming is a TimingSource whose position only moves when the test says so.
type fakeTiming struct {
	mu        sync.Mutex
	pos       time.Duration
	advanceBy time.Duration // applied on Start, to satisfy the start guard
	starts    int
	pauses    int
	resumes   int
	stops     int
}

func (f *fakeTiming) Position() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos
}

func (f *fakeTiming) SetPosition(p time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pos = p
}

func (f *fakeTiming) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	f.pos += f.advanceBy
}

func (f *fakeTiming) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
}

func (f *fakeTiming) Resume() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumes++
}

func (f *fakeTiming) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeTiming) counts() (starts, pauses, resumes, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.pauses, f.resumes, f.stops
}

// fakeMedia records transport calls and can be told to fail.
type fakeMedia struct {
	mu      sync.Mutex
	calls   []string
	loadsAt []time.Duration
	failOn  string
}

func (m *fakeMedia) record(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, op)
	if op == m.failOn {
		return errors.New(op + " failed")
	}
	return nil
}

func (m *fakeMedia) LoadMedia(at time.Duration) error {
	m.mu.Lock()
	m.loadsAt = append(m.loadsAt, at)
	m.mu.Unlock()
	return m.record("load")
}

func (m *fakeMedia) Start() error  { return m.record("start") }
func (m *fakeMedia) Pause() error  { return m.record("pause") }
func (m *fakeMedia) Resume() error { return m.record("resume") }
func (m *fakeMedia) Stop() error   { return m.record("stop") }

func (m *fakeMedia) count(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == op {
			n++
		}
	}
	return n
}

// eventLog collects executor events in delivery order.
type eventLog struct {
	mu       sync.Mutex
	kinds    []string
	started  []StartedEvent
	ended    []EndedEvent
	messages []string
	errs     []error
	changed  chan struct{}
}

func newEventLog(e *Executor) *eventLog {
	l := &eventLog{changed: make(chan struct{}, 64)}
	e.OnStarted(func(ev StartedEvent) {
		l.add("started", func() { l.started = append(l.started, ev) })
	})
	e.OnEnded(func(ev EndedEvent) {
		l.add("ended", func() { l.ended = append(l.ended, ev) })
	})
	e.OnMessage(func(msg string) {
		l.add("message", func() { l.messages = append(l.messages, msg) })
	})
	e.OnError(func(err error) {
		l.add("error", func() { l.errs = append(l.errs, err) })
	})
	return l
}

func (l *eventLog) add(kind string, fn func()) {
	l.mu.Lock()
	l.kinds = append(l.kinds, kind)
	fn()
	l.mu.Unlock()
	select {
	case l.changed <- struct{}{}:
	default:
	}
}

func (l *eventLog) count(kind string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, k := range l.kinds {
		if k == kind {
			n++
		}
	}
	return n
}

func (l *eventLog) order() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.kinds))
	copy(out, l.kinds)
	return out
}

// waitFor blocks until at least n events of kind have been delivered.
func (l *eventLog) waitFor(t *testing.T, kind string, n int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for l.count(kind) < n {
		select {
		case <-l.changed:
		case <-deadline:
			t.Fatalf("timed out waiting for %d %q events, got %v", n, kind, l.order())
		}
	}
}

// newTestExecutor builds an executor with fast polling and a sequence
// playing against ft.
func newTestExecutor(t *testing.T, length time.Duration, ft *fakeTiming) (*Executor, *TimedSequence) {
	t.Helper()
	seq := NewTimedSequence("test", length)
	if ft != nil {
		seq.SetTiming(ft)
	}
	exec := NewExecutor(ExecutorOptions{
		EndCheckInterval:  time.Millisecond,
		StartGuardTimeout: 50 * time.Millisecond,
		StartGuardPoll:    time.Millisecond,
	})
	if err := exec.SetSequence(seq); err != nil {
		t.Fatalf("SetSequence() error = %v", err)
	}
	t.Cleanup(func() { _ = exec.Close() })
	return exec, seq
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
