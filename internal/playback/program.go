package playback

import (
	"sync"
	"sync/atomic"
	"time"
)

// Program is an ordered list of sequences played back to back.
type Program struct {
	Name      string
	Sequences []Sequence
}

// ProgramEvent is emitted when a program starts or ends.
type ProgramEvent struct {
	Program *Program
}

// ProgramExecutor plays a Program. It runs one Executor per sequence, all
// sharing the program's dispatcher, and advances when a sequence ends.
type ProgramExecutor struct {
	mu        sync.Mutex
	program   *Program
	executors []*Executor
	index     int
	running   atomic.Bool
	closed    bool

	dispatcher     *Dispatcher
	ownsDispatcher bool
	logger         Logger

	started         Observers[ProgramEvent]
	ended           Observers[ProgramEvent]
	sequenceStarted Observers[StartedEvent]
	sequenceEnded   Observers[EndedEvent]
	messages        Observers[string]
	errs            Observers[error]
}

// NewProgramExecutor creates a stopped program executor. opts apply to every
// sequence executor; when opts.Dispatcher is nil one dispatcher is created
// and shared by all of them. Nil sequences are skipped.
func NewProgramExecutor(program *Program, opts ExecutorOptions) *ProgramExecutor {
	p := &ProgramExecutor{
		program:    program,
		dispatcher: opts.Dispatcher,
		logger:     opts.Logger,
	}
	if p.logger == nil {
		p.logger = noopLogger{}
	}
	if p.dispatcher == nil {
		p.dispatcher = NewDispatcher(p.logger)
		p.ownsDispatcher = true
	}
	opts.Dispatcher = p.dispatcher

	for i, seq := range program.Sequences {
		if seq == nil {
			p.logger.Warn("skipping nil sequence", "program", program.Name, "index", i)
			continue
		}
		exec := NewExecutor(opts)
		_ = exec.SetSequence(seq) // a fresh executor is stopped
		idx := len(p.executors)
		exec.OnStarted(func(ev StartedEvent) { p.sequenceStarted.Notify(ev) })
		exec.OnEnded(func(ev EndedEvent) {
			p.sequenceEnded.Notify(ev)
			p.advance(idx, ev.Session)
		})
		exec.OnMessage(func(msg string) { p.messages.Notify(msg) })
		exec.OnError(func(err error) { p.errs.Notify(err) })
		p.executors = append(p.executors, exec)
	}
	return p
}

// Program returns the program being played.
func (p *ProgramExecutor) Program() *Program {
	return p.program
}

// Start plays the program from its first sequence. No-op when running,
// closed, or when the program is empty.
func (p *ProgramExecutor) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running.Load() || p.closed || len(p.executors) == 0 {
		return
	}
	p.running.Store(true)
	p.index = 0

	ev := ProgramEvent{Program: p.program}
	p.dispatcher.Post(func() { p.started.Notify(ev) })
	p.logger.Debug("program started", "program", p.program.Name, "sequences", len(p.executors))

	p.executors[0].Start()
}

// advance runs on the dispatcher after session sid of sequence idx ended.
func (p *ProgramExecutor) advance(idx int, sid uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Stale when the program was stopped, or stopped and restarted, since.
	if !p.running.Load() || idx != p.index || p.executors[idx].SessionID() != sid {
		return
	}

	p.index++
	if p.index < len(p.executors) {
		p.executors[p.index].Start()
		return
	}

	p.running.Store(false)
	p.index = 0
	p.logger.Debug("program ended", "program", p.program.Name)
	ev := ProgramEvent{Program: p.program}
	p.dispatcher.Post(func() { p.ended.Notify(ev) })
}

// Pause pauses the current sequence.
func (p *ProgramExecutor) Pause() {
	if exec := p.Current(); exec != nil {
		exec.Pause()
	}
}

// Resume resumes the current sequence.
func (p *ProgramExecutor) Resume() {
	if exec := p.Current(); exec != nil {
		exec.Resume()
	}
}

// Stop ends the program. Safe to call in any state.
func (p *ProgramExecutor) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *ProgramExecutor) stopLocked() {
	if !p.running.Load() {
		return
	}
	p.running.Store(false)
	p.executors[p.index].Stop()
	p.index = 0

	p.logger.Debug("program stopped", "program", p.program.Name)
	ev := ProgramEvent{Program: p.program}
	p.dispatcher.Post(func() { p.ended.Notify(ev) })
}

// Close stops the program and closes every sequence executor. Idempotent.
func (p *ProgramExecutor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.stopLocked()
	p.closed = true
	for _, exec := range p.executors {
		_ = exec.Close()
	}
	if p.ownsDispatcher {
		p.dispatcher.Close()
	}
	return nil
}

// Current returns the executor of the sequence being played, or nil when
// the program is stopped.
func (p *ProgramExecutor) Current() *Executor {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running.Load() {
		return nil
	}
	return p.executors[p.index]
}

// CurrentIndex returns the index of the sequence being played, or -1 when
// stopped.
func (p *ProgramExecutor) CurrentIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running.Load() {
		return -1
	}
	return p.index
}

// IsRunning reports whether the program is playing.
func (p *ProgramExecutor) IsRunning() bool {
	return p.running.Load()
}

// IsPaused reports whether the current sequence is paused.
func (p *ProgramExecutor) IsPaused() bool {
	exec := p.Current()
	return exec != nil && exec.IsPaused()
}

// Position returns the position within the current sequence.
func (p *ProgramExecutor) Position() time.Duration {
	exec := p.Current()
	if exec == nil {
		return 0
	}
	return exec.Position()
}

// Dispatcher returns the program's owner queue.
func (p *ProgramExecutor) Dispatcher() *Dispatcher {
	return p.dispatcher
}

// OnStarted subscribes to program start.
func (p *ProgramExecutor) OnStarted(fn func(ProgramEvent)) func() {
	return p.started.Add(fn)
}

// OnEnded subscribes to program end, natural or explicit.
func (p *ProgramExecutor) OnEnded(fn func(ProgramEvent)) func() {
	return p.ended.Add(fn)
}

// OnSequenceStarted subscribes to the start of each sequence in the program.
func (p *ProgramExecutor) OnSequenceStarted(fn func(StartedEvent)) func() {
	return p.sequenceStarted.Add(fn)
}

// OnSequenceEnded subscribes to the end of each sequence in the program.
func (p *ProgramExecutor) OnSequenceEnded(fn func(EndedEvent)) func() {
	return p.sequenceEnded.Add(fn)
}

// OnSequenceMessage subscribes to informational messages from any sequence
// in the program.
func (p *ProgramExecutor) OnSequenceMessage(fn func(string)) func() {
	return p.messages.Add(fn)
}

// OnSequenceError subscribes to non-fatal errors from any sequence in the
// program.
func (p *ProgramExecutor) OnSequenceError(fn func(error)) func() {
	return p.errs.Add(fn)
}
