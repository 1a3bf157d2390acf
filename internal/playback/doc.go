// Package playback provides the single-session playback engine of the show core.
//
// A Sequence is a timed list of effects plus optional media streams. An
// Executor drives one sequence at a time against a TimingSource (a pluggable
// clock that may drift, loop or reset) and keeps the attached media in
// lockstep with it.
//
// Architecture:
//
//	┌──────────────────────────────────────────────────────┐
//	│                 Executor (executor.go)                │
//	│  Play ─▶ clamp bounds ─▶ load/start media ─▶ start    │
//	│  timing ─▶ start guard ─▶ Running ─▶ arm end check    │
//	│                                                      │
//	│  ┌─────────────┐   natural end   ┌────────────────┐  │
//	│  │ end-check   │────────────────▶│  Dispatcher    │  │
//	│  │ poll (timer)│   posted Stop   │ (owner queue)  │  │
//	│  └─────────────┘                 └────────────────┘  │
//	│                     events ─────────────▲            │
//	└──────────────────────────────────────────────────────┘
//
// # Key Types
//
//   - TimingSource: clock contract (Position, Start, Pause, Resume, Stop)
//   - Media / MediaSync: auxiliary media kept in step with the clock
//   - Sequence / TimedSequence: what gets played
//   - Executor: Stopped, Running, Running+Paused state machine for one sequence
//   - ProgramExecutor: plays a list of sequences back to back
//   - Dispatcher: per-owner FIFO task queue with its own goroutine
//
// # Thread Safety
//
// Executor and ProgramExecutor are safe for concurrent use. State transitions
// requested by the background end-check poll, and every event emission, run
// on the owner's Dispatcher so subscribers observe events in order.
//
// # Usage
//
//	seq := playback.NewTimedSequence("intro", 30*time.Second)
//	seq.AddEffect(playback.Effect{ID: "fx1", Start: 0, Duration: 5 * time.Second, Targets: []string{"par-1"}})
//
//	exec := playback.NewExecutor(playback.ExecutorOptions{Logger: log})
//	defer exec.Close()
//	_ = exec.SetSequence(seq)
//	exec.OnEnded(func(ev playback.EndedEvent) { log.Info("sequence ended", "name", ev.Sequence.Name()) })
//	exec.Start()
package playback
