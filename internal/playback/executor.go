package playback

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Default timing parameters for an Executor.
const (
	DefaultEndCheckInterval  = 10 * time.Millisecond
	DefaultStartGuardTimeout = 500 * time.Millisecond
	DefaultStartGuardPoll    = time.Millisecond
)

// ExecutorOptions configures an Executor. Zero fields take defaults.
type ExecutorOptions struct {
	// Dispatcher is the owner queue for natural-end stops and events.
	// When nil the executor creates its own and closes it on Close.
	Dispatcher *Dispatcher

	// DefaultTiming supplies a timing source for sequences without one.
	// Defaults to NewClockResolver.
	DefaultTiming TimingResolver

	// EndCheckInterval is the natural-end poll period.
	EndCheckInterval time.Duration

	// StartGuardTimeout bounds the wait for the timing source to move off
	// the start position.
	StartGuardTimeout time.Duration

	// StartGuardPoll is the sleep between start-guard position checks.
	StartGuardPoll time.Duration

	Logger Logger
}

// session is the state of one Play invocation. Its fields are fixed once the
// session is published.
type session struct {
	id     uint64
	seq    Sequence
	timing TimingSource
	bounds Bounds
	media  *MediaSync
	unhook func()
}

// Executor plays one sequence at a time.
//
// State machine:
//
//	Stopped --Play--> Running --Pause--> Paused --Resume--> Running
//	Running|Paused --Stop or natural end--> Stopped
//
// An Executor is created once and reused across play sessions. The sequence
// may only be swapped while stopped.
//
// Locking: mu serialises transport operations (Play, Pause, Resume, Stop,
// Close). pollMu guards the end-check timer and the disposed flag and is
// shared with the poll callback. Lock order is mu then pollMu.
type Executor struct {
	mu sync.Mutex

	seqMu sync.RWMutex
	seq   Sequence

	current  atomic.Pointer[session]
	sessions atomic.Uint64
	running  atomic.Bool
	paused   atomic.Bool

	pollMu      sync.Mutex
	pollEnabled bool
	pollSession *session
	timer       *time.Timer
	disposed    bool

	liveMu sync.Mutex
	live   []Effect

	dispatcher        *Dispatcher
	ownsDispatcher    bool
	defaultTiming     TimingResolver
	endCheckInterval  time.Duration
	startGuardTimeout time.Duration
	startGuardPoll    time.Duration
	logger            Logger

	started  Observers[StartedEvent]
	ended    Observers[EndedEvent]
	messages Observers[string]
	errs     Observers[error]
}

// NewExecutor creates a stopped executor with no sequence.
func NewExecutor(opts ExecutorOptions) *Executor {
	e := &Executor{
		dispatcher:        opts.Dispatcher,
		defaultTiming:     opts.DefaultTiming,
		endCheckInterval:  opts.EndCheckInterval,
		startGuardTimeout: opts.StartGuardTimeout,
		startGuardPoll:    opts.StartGuardPoll,
		logger:            opts.Logger,
	}
	if e.logger == nil {
		e.logger = noopLogger{}
	}
	if e.dispatcher == nil {
		e.dispatcher = NewDispatcher(e.logger)
		e.ownsDispatcher = true
	}
	if e.defaultTiming == nil {
		e.defaultTiming = NewClockResolver()
	}
	if e.endCheckInterval <= 0 {
		e.endCheckInterval = DefaultEndCheckInterval
	}
	if e.startGuardTimeout <= 0 {
		e.startGuardTimeout = DefaultStartGuardTimeout
	}
	if e.startGuardPoll <= 0 {
		e.startGuardPoll = DefaultStartGuardPoll
	}
	return e
}

// SetSequence binds the sequence to play.
//
// Returns ErrRunning unless the executor is stopped, and ErrClosed after Close.
func (e *Executor) SetSequence(seq Sequence) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.isDisposed() {
		return ErrClosed
	}
	if e.running.Load() {
		return ErrRunning
	}

	e.seqMu.Lock()
	e.seq = seq
	e.seqMu.Unlock()
	return nil
}

// Start plays the whole sequence.
func (e *Executor) Start() {
	e.Play(0, MaxDuration)
}

// Play starts a session over [start, end], both clamped to the sequence
// length. It is a no-op when already running, when no sequence is bound, or
// after Close.
//
// Play blocks until the timing source has moved off the start position, or
// until the start-guard timeout elapses. A zero-length range does not wait:
// it emits Started and then Ended.
func (e *Executor) Play(start, end time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	seq := e.Sequence()
	if e.running.Load() || seq == nil || e.isDisposed() {
		return
	}

	bounds := ClampBounds(start, end, seq.Length())

	timing := seq.Timing()
	if timing == nil {
		timing = e.defaultTiming()
	}
	if timing == nil {
		e.logger.Error("no timing source for sequence", "sequence", seq.Name())
		e.emitError(fmt.Errorf("%w: sequence %q", ErrNoTiming, seq.Name()))
		return
	}

	s := &session{
		id:     e.sessions.Add(1),
		seq:    seq,
		timing: timing,
		bounds: bounds,
		media:  NewMediaSync(seq.Media()),
	}

	e.clearLiveData()
	s.unhook = seq.OnInsertData(e.acceptLiveData)

	stopInline := false
	if bounds.Empty() {
		// The task blocks on mu until Play returns, so Started is queued first.
		stopInline = !e.dispatcher.Post(func() { e.finishSession(s, false) })
	}

	if err := s.media.Load(bounds.Start); err != nil {
		e.reportError(s, "loading media", err)
	}
	if err := s.media.Start(); err != nil {
		e.reportError(s, "starting media", err)
	}

	timing.SetPosition(bounds.Start)
	timing.Start()
	if !bounds.Empty() {
		e.waitForTiming(s)
	}

	e.current.Store(s)
	e.paused.Store(false)
	e.running.Store(true)

	e.logger.Debug("sequence started",
		"sequence", seq.Name(),
		"session", s.id,
		"start", bounds.Start,
		"end", bounds.End,
	)
	e.emit(func() {
		e.started.Notify(StartedEvent{Sequence: seq, Timing: timing, Bounds: bounds, Session: s.id})
	})

	if stopInline {
		e.stopLocked(true)
		return
	}
	if !bounds.Empty() {
		e.armPoll(s)
	}
}

// waitForTiming waits for the timing source to report a position other than
// the start bound, so the end-check poll never sees a clock that has not
// begun advancing.
func (e *Executor) waitForTiming(s *session) {
	deadline := time.Now().Add(e.startGuardTimeout)
	for s.timing.Position() == s.bounds.Start {
		if !time.Now().Before(deadline) {
			e.logger.Warn("timing source did not advance, starting anyway",
				"sequence", s.seq.Name(),
				"timeout", e.startGuardTimeout,
			)
			msg := fmt.Sprintf("timing source for %q did not advance within %s", s.seq.Name(), e.startGuardTimeout)
			e.emit(func() { e.messages.Notify(msg) })
			return
		}
		time.Sleep(e.startGuardPoll)
	}
}

// Pause suspends a running session. No-op unless running and not paused.
func (e *Executor) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running.Load() || e.paused.Load() {
		return
	}
	s := e.current.Load()

	e.disarmPoll()
	s.timing.Pause()
	if err := s.media.Pause(); err != nil {
		e.reportError(s, "pausing media", err)
	}
	e.paused.Store(true)
}

// Resume continues a paused session. No-op unless paused.
func (e *Executor) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.paused.Load() {
		return
	}
	s := e.current.Load()

	s.timing.Resume()
	if err := s.media.Resume(); err != nil {
		e.reportError(s, "resuming media", err)
	}
	e.paused.Store(false)
	e.armPoll(s)
}

// Stop ends the current session. Safe to call in any state.
func (e *Executor) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked(false)
}

// stopLocked ends the current session. completed reports that the session
// reached the end of its range rather than being stopped.
func (e *Executor) stopLocked(completed bool) {
	if !e.running.Load() {
		return
	}
	s := e.current.Load()

	e.disarmPoll()

	// Unhook while still Running so in-flight listeners see a live session.
	if s.unhook != nil {
		s.unhook()
	}
	e.running.Store(false)
	e.paused.Store(false)

	s.timing.Stop()
	if err := s.media.Stop(); err != nil {
		e.reportError(s, "stopping media", err)
	}

	e.logger.Debug("sequence ended", "sequence", s.seq.Name(), "session", s.id, "completed", completed)
	e.emit(func() {
		e.ended.Notify(EndedEvent{Sequence: s.seq, Bounds: s.bounds, Session: s.id, Completed: completed})
	})
}

// Close stops playback and releases the end-check timer. It is idempotent.
// An owned dispatcher is closed after queued events have been posted.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopLocked(false)

	e.pollMu.Lock()
	if e.disposed {
		e.pollMu.Unlock()
		return nil
	}
	e.disposed = true
	e.pollEnabled = false
	if e.timer != nil {
		e.timer.Stop()
	}
	e.pollMu.Unlock()

	if e.ownsDispatcher {
		e.dispatcher.Close()
	}
	return nil
}

// finishSession runs on the dispatcher. It stops s if it is still the
// current session. With rearm set, the end-check poll is armed again when
// the executor is still running and not paused afterwards.
func (e *Executor) finishSession(s *session, rearm bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current.Load() == s && e.running.Load() {
		e.stopLocked(true)
	}
	if rearm && e.running.Load() && !e.paused.Load() {
		e.armPoll(e.current.Load())
	}
}

// armPoll enables the end-check poll for s. Arming the already armed
// session is a no-op.
func (e *Executor) armPoll(s *session) {
	e.pollMu.Lock()
	defer e.pollMu.Unlock()

	if e.disposed || s == nil {
		return
	}
	if e.pollEnabled && e.pollSession == s {
		return
	}
	e.pollEnabled = true
	e.pollSession = s
	if e.timer == nil {
		e.timer = time.AfterFunc(e.endCheckInterval, e.checkEnd)
		return
	}
	e.timer.Reset(e.endCheckInterval)
}

func (e *Executor) disarmPoll() {
	e.pollMu.Lock()
	defer e.pollMu.Unlock()

	e.pollEnabled = false
	if e.timer != nil {
		e.timer.Stop()
	}
}

// checkEnd is the end-check poll callback. On natural end it posts the stop
// to the dispatcher and leaves the poll disarmed.
func (e *Executor) checkEnd() {
	e.pollMu.Lock()
	defer e.pollMu.Unlock()

	if !e.pollEnabled || e.disposed {
		return
	}
	s := e.pollSession

	if reachedEnd(s.bounds, s.timing.Position()) {
		e.pollEnabled = false
		if !e.dispatcher.Post(func() { e.finishSession(s, true) }) {
			e.logger.Warn("dispatcher closed, natural end dropped", "sequence", s.seq.Name())
		}
		return
	}
	e.timer.Reset(e.endCheckInterval)
}

// reachedEnd reports natural end. A position of exactly zero means the clock
// looped or was reset. Untimed sessions never end on their own.
func reachedEnd(b Bounds, pos time.Duration) bool {
	return b.Timed() && (pos >= b.End || pos == 0)
}

func (e *Executor) isDisposed() bool {
	e.pollMu.Lock()
	defer e.pollMu.Unlock()
	return e.disposed
}

// acceptLiveData is the data listener hooked for the length of a session.
func (e *Executor) acceptLiveData(fx Effect) bool {
	if !e.running.Load() {
		return false
	}
	e.liveMu.Lock()
	defer e.liveMu.Unlock()
	e.live = append(e.live, fx)
	return true
}

func (e *Executor) clearLiveData() {
	e.liveMu.Lock()
	defer e.liveMu.Unlock()
	e.live = nil
}

// TakeLiveData returns and clears the effects inserted into the sequence
// while it was playing.
func (e *Executor) TakeLiveData() []Effect {
	e.liveMu.Lock()
	defer e.liveMu.Unlock()
	out := e.live
	e.live = nil
	return out
}

func (e *Executor) emit(fn func()) {
	e.dispatcher.Post(fn)
}

func (e *Executor) emitError(err error) {
	e.emit(func() { e.errs.Notify(err) })
}

func (e *Executor) reportError(s *session, op string, err error) {
	e.logger.Error("media operation failed",
		"op", op,
		"sequence", s.seq.Name(),
		"error", err,
	)
	e.emitError(fmt.Errorf("%s: %w", op, err))
}

// OnStarted subscribes to session start. Handlers run on the dispatcher.
func (e *Executor) OnStarted(fn func(StartedEvent)) (unsubscribe func()) {
	return e.started.Add(fn)
}

// OnEnded subscribes to session end. Handlers run on the dispatcher.
func (e *Executor) OnEnded(fn func(EndedEvent)) (unsubscribe func()) {
	return e.ended.Add(fn)
}

// OnMessage subscribes to informational messages.
func (e *Executor) OnMessage(fn func(string)) (unsubscribe func()) {
	return e.messages.Add(fn)
}

// OnError subscribes to error reports.
func (e *Executor) OnError(fn func(error)) (unsubscribe func()) {
	return e.errs.Add(fn)
}

// IsRunning reports whether a session is in progress, paused or not.
func (e *Executor) IsRunning() bool {
	return e.running.Load()
}

// IsPaused reports whether the current session is paused.
func (e *Executor) IsPaused() bool {
	return e.paused.Load()
}

// Bounds returns the bounds of the current or most recent session.
func (e *Executor) Bounds() (Bounds, bool) {
	s := e.current.Load()
	if s == nil {
		return Bounds{}, false
	}
	return s.bounds, true
}

// TimingSource returns the timing source of the current session, or nil
// when stopped.
func (e *Executor) TimingSource() TimingSource {
	s := e.current.Load()
	if s == nil || !e.running.Load() {
		return nil
	}
	return s.timing
}

// Position returns the current session position, or zero when stopped.
func (e *Executor) Position() time.Duration {
	t := e.TimingSource()
	if t == nil {
		return 0
	}
	return t.Position()
}

// SessionID returns the ID of the current or most recent session. IDs start
// at 1 and increase with every Play.
func (e *Executor) SessionID() uint64 {
	s := e.current.Load()
	if s == nil {
		return 0
	}
	return s.id
}

// Sequence returns the bound sequence.
func (e *Executor) Sequence() Sequence {
	e.seqMu.RLock()
	defer e.seqMu.RUnlock()
	return e.seq
}

// Name returns the bound sequence name, or "" when none is bound.
func (e *Executor) Name() string {
	seq := e.Sequence()
	if seq == nil {
		return ""
	}
	return seq.Name()
}

// Dispatcher returns the executor's owner queue.
func (e *Executor) Dispatcher() *Dispatcher {
	return e.dispatcher
}
