// Package execution provides the context registry and scheduler of the show core.
//
// An execution context wraps one playback executor (sequence or program
// level) and is the unit the scheduler ticks. The Manager owns every
// context: it creates them through a catalog keyed by target type and
// feature set, releases them, and advances all running contexts once per
// Tick, collecting the IDs of the output elements they touched.
//
// Architecture:
//
//	┌─────────────────────────────────────────────────────┐
//	│                 Manager (manager.go)                 │
//	│  ┌────────────┐   create    ┌──────────────────┐    │
//	│  │  Catalog   │────────────▶│ Context registry │    │
//	│  │(catalog.go)│             │ map + RWMutex    │    │
//	│  └────────────┘             └──────────────────┘    │
//	│                                      │ snapshot     │
//	│                                      ▼              │
//	│  Tick: for each running context                     │
//	│    t := GetTimeSnapshot()                           │
//	│    set := UpdateElementStates(t)  (faults isolated) │
//	│    affected ∪= set                                  │
//	└─────────────────────────────────────────────────────┘
//
// # Thread Safety
//
// Creation and release are safe from any goroutine, including while Tick
// runs. Tick itself must be driven by one goroutine at a time; RunLoop does
// that on a ticker.
//
// # Usage
//
//	mgr := execution.NewManager(execution.Options{Logger: log})
//	ctx, err := mgr.CreateSequenceContext(&execution.Features{}, seq)
//	if err != nil {
//	    return err
//	}
//	ctx.Start()
//	go mgr.RunLoop(runCtx, 25*time.Millisecond)
package execution
