package playback

import (
	"fmt"
	"runtime/debug"
	"sync"
)

// Dispatcher is a FIFO task queue served by a single goroutine.
//
// It is the logical owner of one or more executors: natural-end stops
// detected by the end-check poll and all event emissions are posted here,
// so they run one at a time in the order they were requested.
//
// A panicking task is recovered and logged; the queue keeps running.
type Dispatcher struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
	logger Logger
}

// NewDispatcher creates a dispatcher and starts its goroutine.
// A nil logger discards panic reports.
func NewDispatcher(logger Logger) *Dispatcher {
	if logger == nil {
		logger = noopLogger{}
	}
	d := &Dispatcher{
		done:   make(chan struct{}),
		logger: logger,
	}
	d.cond = sync.NewCond(&d.mu)
	go d.run()
	return d
}

// Post enqueues fn. It returns false, without running fn, once the
// dispatcher has been closed.
func (d *Dispatcher) Post(fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	d.queue = append(d.queue, fn)
	d.cond.Signal()
	return true
}

// Flush blocks until every task posted before the call has run.
// It returns false if the dispatcher is closed. Must not be called from a
// task running on this dispatcher.
func (d *Dispatcher) Flush() bool {
	ran := make(chan struct{})
	if !d.Post(func() { close(ran) }) {
		return false
	}
	<-ran
	return true
}

// Close stops accepting tasks. Tasks already queued still run; Done is
// closed once they have. Close does not wait, so it is safe to call from a
// task. Calling Close more than once is a no-op.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	d.cond.Broadcast()
}

// Done returns a channel closed once the dispatcher has drained after Close.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		fn := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		d.mu.Unlock()

		d.safeRun(fn)
	}
}

func (d *Dispatcher) safeRun(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dispatcher task panicked",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	fn()
}
