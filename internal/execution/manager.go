package execution

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-showcore/internal/playback"
)

// SessionEvent describes a play session starting or ending inside a context.
type SessionEvent struct {
	ContextID   string
	ContextName string
	Sequence    string
	Session     uint64
	Bounds      playback.Bounds
	At          time.Time
	// Completed is set on an end event when the range played out.
	Completed bool
}

// Notice levels.
const (
	NoticeMessage = "message"
	NoticeError   = "error"
)

// NoticeEvent carries an informational message or a non-fatal error raised
// by a context's executor.
type NoticeEvent struct {
	ContextID   string
	ContextName string
	Level       string
	Text        string
	At          time.Time
}

// eventDrainTimeout bounds how long ReleaseContext waits for a context's
// pending events before emitting released.
const eventDrainTimeout = time.Second

// Options configures a Manager. Zero fields take defaults.
type Options struct {
	// Catalog resolves context implementations. Defaults to DefaultCatalog.
	Catalog *Catalog

	// Executor is applied to every executor the Manager creates.
	Executor playback.ExecutorOptions

	// Recorder receives per-tick statistics.
	Recorder TickRecorder

	Logger Logger
}

type entry struct {
	ctx   Context
	order uint64
}

// Manager is the context registry and scheduler.
//
// It is the sole owner of the contexts it creates. Creation and release
// are safe from any goroutine; Tick must be called from one goroutine at a
// time and works on a snapshot taken when it starts. The logger is fixed
// at construction.
type Manager struct {
	mu        sync.RWMutex
	contexts  map[string]entry
	nextOrder uint64
	live      Context

	catalog  *Catalog
	execOpts playback.ExecutorOptions
	logger   Logger

	recMu    sync.RWMutex
	recorder TickRecorder

	created        playback.Observers[Context]
	released       playback.Observers[Context]
	sessionStarted playback.Observers[SessionEvent]
	sessionEnded   playback.Observers[SessionEvent]
	ticks          playback.Observers[ElementSet]
	notices        playback.Observers[NoticeEvent]
}

// NewManager creates an empty registry.
func NewManager(opts Options) *Manager {
	m := &Manager{
		contexts: make(map[string]entry),
		catalog:  opts.Catalog,
		execOpts: opts.Executor,
		logger:   opts.Logger,
		recorder: opts.Recorder,
	}
	if m.catalog == nil {
		m.catalog = DefaultCatalog()
	}
	if m.logger == nil {
		m.logger = noopLogger{}
	}
	if m.execOpts.Logger == nil && opts.Logger != nil {
		m.execOpts.Logger = opts.Logger
	}
	return m
}

// SetTickRecorder replaces the per-tick statistics sink. Nil disables it.
func (m *Manager) SetTickRecorder(r TickRecorder) {
	m.recMu.Lock()
	defer m.recMu.Unlock()
	m.recorder = r
}

// CreateSequenceContext creates and registers a context that plays seq.
//
// Parameters:
//   - features: selects the implementation; must not be nil
//   - seq: the sequence to play; must not be nil
//
// Returns:
//   - Context: the registered context
//   - error: ErrInvalidArgument for nil arguments, ErrNoContextType when
//     nothing matches the features (logged)
func (m *Manager) CreateSequenceContext(features *Features, seq playback.Sequence) (Context, error) {
	if features == nil {
		return nil, fmt.Errorf("%w: features is nil", ErrInvalidArgument)
	}
	if seq == nil {
		return nil, fmt.Errorf("%w: sequence is nil", ErrInvalidArgument)
	}

	factory, err := m.lookup(TargetSequence, *features)
	if err != nil {
		return nil, err
	}

	exec := playback.NewExecutor(m.execOpts)
	if err := exec.SetSequence(seq); err != nil {
		_ = exec.Close()
		return nil, fmt.Errorf("binding sequence: %w", err)
	}

	ctx, err := factory(Target{Type: TargetSequence, Executor: exec})
	if err != nil {
		_ = exec.Close()
		return nil, err
	}

	m.relaySessions(ctx, exec.OnStarted, exec.OnEnded)
	m.relayNotices(ctx, exec.OnMessage, exec.OnError)
	m.register(ctx)
	return ctx, nil
}

// CreateProgramContext creates and registers a context that plays program.
// An executor may be injected; otherwise one is created.
//
// Returns ErrInvalidArgument for a nil features, program or injected
// executor, and ErrNoContextType when nothing matches the features.
func (m *Manager) CreateProgramContext(features *Features, program *playback.Program, executor ...*playback.ProgramExecutor) (Context, error) {
	if features == nil {
		return nil, fmt.Errorf("%w: features is nil", ErrInvalidArgument)
	}
	if program == nil {
		return nil, fmt.Errorf("%w: program is nil", ErrInvalidArgument)
	}
	for i, seq := range program.Sequences {
		if seq == nil {
			return nil, fmt.Errorf("%w: program sequence %d is nil", ErrInvalidArgument, i)
		}
	}
	if len(executor) > 0 && executor[0] == nil {
		return nil, fmt.Errorf("%w: program executor is nil", ErrInvalidArgument)
	}

	factory, err := m.lookup(TargetProgram, *features)
	if err != nil {
		return nil, err
	}

	var exec *playback.ProgramExecutor
	if len(executor) > 0 {
		exec = executor[0]
	} else {
		exec = playback.NewProgramExecutor(program, m.execOpts)
	}

	ctx, err := factory(Target{Type: TargetProgram, Program: exec})
	if err != nil {
		if len(executor) == 0 {
			_ = exec.Close()
		}
		return nil, err
	}

	m.relaySessions(ctx, exec.OnSequenceStarted, exec.OnSequenceEnded)
	m.relayNotices(ctx, exec.OnSequenceMessage, exec.OnSequenceError)
	m.register(ctx)
	return ctx, nil
}

// GetSystemLiveContext returns the system live context, creating and
// registering it on first use.
func (m *Manager) GetSystemLiveContext() (Context, error) {
	m.mu.Lock()
	if m.live != nil {
		live := m.live
		m.mu.Unlock()
		return live, nil
	}

	factory, ok := m.catalog.Lookup(TargetLive, Features{})
	if !ok {
		m.mu.Unlock()
		m.logger.Error("no live context type registered")
		return nil, fmt.Errorf("%w: %s", ErrNoContextType, TargetLive)
	}
	ctx, err := factory(Target{Type: TargetLive})
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.live = ctx
	m.addLocked(ctx)
	m.mu.Unlock()

	m.logger.Info("system live context created", "context_id", ctx.ID())
	m.created.Notify(ctx)
	return ctx, nil
}

func (m *Manager) lookup(target TargetType, features Features) (Factory, error) {
	factory, ok := m.catalog.Lookup(target, features)
	if !ok {
		m.logger.Error("no context type for target and features",
			"target", string(target),
			"caching", features.Caching,
		)
		return nil, fmt.Errorf("%w: %s %+v", ErrNoContextType, target, features)
	}
	return factory, nil
}

// relaySessions forwards an executor's session events to the manager's
// subscribers, tagged with the context.
func (m *Manager) relaySessions(ctx Context,
	onStarted func(func(playback.StartedEvent)) func(),
	onEnded func(func(playback.EndedEvent)) func(),
) {
	onStarted(func(ev playback.StartedEvent) {
		m.sessionStarted.Notify(SessionEvent{
			ContextID:   ctx.ID(),
			ContextName: ctx.Name(),
			Sequence:    ev.Sequence.Name(),
			Session:     ev.Session,
			Bounds:      ev.Bounds,
			At:          time.Now(),
		})
	})
	onEnded(func(ev playback.EndedEvent) {
		m.sessionEnded.Notify(SessionEvent{
			ContextID:   ctx.ID(),
			ContextName: ctx.Name(),
			Sequence:    ev.Sequence.Name(),
			Session:     ev.Session,
			Bounds:      ev.Bounds,
			At:          time.Now(),
			Completed:   ev.Completed,
		})
	})
}

// relayNotices forwards an executor's messages and errors to the manager's
// notice subscribers.
func (m *Manager) relayNotices(ctx Context,
	onMessage func(func(string)) func(),
	onError func(func(error)) func(),
) {
	onMessage(func(msg string) {
		m.notices.Notify(NoticeEvent{
			ContextID:   ctx.ID(),
			ContextName: ctx.Name(),
			Level:       NoticeMessage,
			Text:        msg,
			At:          time.Now(),
		})
	})
	onError(func(err error) {
		m.logger.Warn("context reported error", "context_id", ctx.ID(), "error", err)
		m.notices.Notify(NoticeEvent{
			ContextID:   ctx.ID(),
			ContextName: ctx.Name(),
			Level:       NoticeError,
			Text:        err.Error(),
			At:          time.Now(),
		})
	})
}

func (m *Manager) register(ctx Context) {
	m.mu.Lock()
	m.addLocked(ctx)
	m.mu.Unlock()

	m.logger.Info("context created", "context_id", ctx.ID(), "context_name", ctx.Name())
	m.created.Notify(ctx)
}

func (m *Manager) addLocked(ctx Context) {
	m.nextOrder++
	m.contexts[ctx.ID()] = entry{ctx: ctx, order: m.nextOrder}
}

// ReleaseContext stops, unregisters and disposes ctx, then emits a
// released event once the context's pending events, including the final
// session end, have been delivered. Releasing an unregistered context is a
// no-op.
func (m *Manager) ReleaseContext(ctx Context) {
	if ctx == nil {
		return
	}

	m.mu.Lock()
	e, ok := m.contexts[ctx.ID()]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.contexts, ctx.ID())
	if m.live == e.ctx {
		m.live = nil
	}
	m.mu.Unlock()

	e.ctx.Stop()
	if err := e.ctx.Close(); err != nil {
		m.logger.Warn("closing context", "context_id", ctx.ID(), "error", err)
	}
	m.awaitEvents(e.ctx)

	m.logger.Info("context released", "context_id", ctx.ID(), "context_name", ctx.Name())
	m.released.Notify(e.ctx)
}

// dispatched is implemented by contexts whose events are delivered on a
// playback dispatcher.
type dispatched interface {
	Dispatcher() *playback.Dispatcher
}

// awaitEvents waits until every event ctx posted before the call has been
// delivered. A dispatcher closed by the context is waited on until it has
// drained. Called from one of the context's own event handlers, the wait
// gives up after eventDrainTimeout.
func (m *Manager) awaitEvents(ctx Context) {
	d, ok := ctx.(dispatched)
	if !ok {
		return
	}
	disp := d.Dispatcher()
	if disp == nil {
		return
	}

	wait := disp.Done()
	marker := make(chan struct{})
	if disp.Post(func() { close(marker) }) {
		wait = marker
	}

	timer := time.NewTimer(eventDrainTimeout)
	defer timer.Stop()
	select {
	case <-wait:
	case <-timer.C:
		m.logger.Warn("context events still pending after release", "context_id", ctx.ID())
	}
}

// ReleaseContexts releases every context registered when the call starts.
func (m *Manager) ReleaseContexts() {
	for _, ctx := range m.Contexts() {
		m.ReleaseContext(ctx)
	}
}

// Get returns the context with the given ID.
func (m *Manager) Get(id string) (Context, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.contexts[id]
	if !ok {
		return nil, ErrContextNotFound
	}
	return e.ctx, nil
}

// Count returns the number of registered contexts.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.contexts)
}

// Contexts returns a point-in-time snapshot in creation order.
func (m *Manager) Contexts() []Context {
	m.mu.RLock()
	entries := make([]entry, 0, len(m.contexts))
	for _, e := range m.contexts {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].order < entries[j].order })
	out := make([]Context, len(entries))
	for i, e := range entries {
		out[i] = e.ctx
	}
	return out
}

// Tick advances every running context once and returns the union of the
// elements they affected. The result is built fresh on every call.
//
// A context whose snapshot or update fails or panics is logged and skipped
// for this tick; it stays registered and is retried on the next tick.
func (m *Manager) Tick() ElementSet {
	began := time.Now()
	affected := make(ElementSet)

	var ticked, failures int
	for _, ctx := range m.Contexts() {
		set, ran, err := m.tickContext(ctx)
		if !ran {
			continue
		}
		ticked++
		if err != nil {
			failures++
			m.logger.Error("context tick failed",
				"context_id", ctx.ID(),
				"context_name", safeName(ctx),
				"error", err,
			)
			continue
		}
		affected.Merge(set)
	}

	m.recMu.RLock()
	rec := m.recorder
	m.recMu.RUnlock()
	if rec != nil {
		rec.RecordTick(TickStats{
			Duration: time.Since(began),
			Contexts: ticked,
			Affected: len(affected),
			Failures: failures,
		})
	}
	return affected
}

// tickContext runs one context. ran is false when the context is not
// running. Panics are returned as ErrContextPanic.
func (m *Manager) tickContext(ctx Context) (set ElementSet, ran bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ran = true
			err = fmt.Errorf("%w: %v", ErrContextPanic, r)
		}
	}()

	if !ctx.IsRunning() {
		return nil, false, nil
	}
	t, err := ctx.GetTimeSnapshot()
	if errors.Is(err, ErrNotRunning) {
		// Stopped between the running check and the snapshot.
		return nil, false, nil
	}
	if err != nil {
		return nil, true, fmt.Errorf("time snapshot: %w", err)
	}
	set, err = ctx.UpdateElementStates(t)
	if err != nil {
		return nil, true, fmt.Errorf("update at %v: %w", t, err)
	}
	return set, true, nil
}

// safeName returns ctx.Name without letting a faulty context panic the tick.
func safeName(ctx Context) (name string) {
	defer func() {
		if recover() != nil {
			name = "<unavailable>"
		}
	}()
	return ctx.Name()
}

// OnContextCreated subscribes to context creation.
func (m *Manager) OnContextCreated(fn func(Context)) func() {
	return m.created.Add(fn)
}

// OnContextReleased subscribes to context release.
func (m *Manager) OnContextReleased(fn func(Context)) func() {
	return m.released.Add(fn)
}

// OnSessionStarted subscribes to play sessions starting in any context.
// Handlers run on the executor's dispatcher.
func (m *Manager) OnSessionStarted(fn func(SessionEvent)) func() {
	return m.sessionStarted.Add(fn)
}

// OnSessionEnded subscribes to play sessions ending in any context.
func (m *Manager) OnSessionEnded(fn func(SessionEvent)) func() {
	return m.sessionEnded.Add(fn)
}

// OnNotice subscribes to messages and non-fatal errors raised by any
// context's executor. Handlers run on the executor's dispatcher.
func (m *Manager) OnNotice(fn func(NoticeEvent)) func() {
	return m.notices.Add(fn)
}

// OnTick subscribes to the affected-element set of each RunLoop tick.
func (m *Manager) OnTick(fn func(ElementSet)) func() {
	return m.ticks.Add(fn)
}
