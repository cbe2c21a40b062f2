package runtime

import (
	"fmt"
	"sync"

	"github.com/GriffinCanCode/InferOS/runtime/internal/shared/id"
)

// InitWorkerName is reserved for the System-owned init worker used for
// pre-startup callbacks. CreateWorker rejects it.
const InitWorkerName = "init"

// WorkerOptions configures a worker at creation time.
type WorkerOptions struct {
	Name string
	// OwnedThread gives the worker its own goroutine, started after the
	// worker initializers have run. Workers without an owned thread
	// execute submitted tasks inline on the caller.
	OwnedThread bool
}

// Worker is an independently schedulable execution context. The System
// retains ownership; callers hold non-owning references.
type Worker struct {
	id   id.WorkerID
	opts WorkerOptions

	tasks chan func()
	kill  chan struct{}
	done  chan struct{}

	killOnce  sync.Once
	startOnce sync.Once
}

func newWorker(opts WorkerOptions) *Worker {
	w := &Worker{
		id:    id.NewWorkerID(),
		opts:  opts,
		tasks: make(chan func(), 16),
		kill:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	if !opts.OwnedThread {
		// Nothing will ever run the loop; joining must not block.
		close(w.done)
	}
	return w
}

// ID returns the worker's instance id.
func (w *Worker) ID() id.WorkerID { return w.id }

// Name returns the registry name.
func (w *Worker) Name() string { return w.opts.Name }

// Options returns the creation options.
func (w *Worker) Options() WorkerOptions { return w.opts }

// Start launches the worker's goroutine. A no-op for workers without an
// owned thread, and idempotent otherwise.
func (w *Worker) Start() {
	if !w.opts.OwnedThread {
		return
	}
	w.startOnce.Do(func() {
		go w.run()
	})
}

func (w *Worker) run() {
	defer close(w.done)
	for {
		select {
		case <-w.kill:
			return
		case fn := <-w.tasks:
			fn()
		}
	}
}

// Submit schedules fn on the worker. Thread-owning workers enqueue; the
// init worker and other threadless workers run fn inline. Fails once
// the worker has been killed.
func (w *Worker) Submit(fn func()) error {
	select {
	case <-w.kill:
		return fmt.Errorf("worker %q has been killed: %w", w.opts.Name, ErrLogic)
	default:
	}

	if !w.opts.OwnedThread {
		fn()
		return nil
	}

	select {
	case w.tasks <- fn:
		return nil
	case <-w.kill:
		return fmt.Errorf("worker %q has been killed: %w", w.opts.Name, ErrLogic)
	}
}

// Kill requests the worker to stop. Non-blocking and idempotent; a task
// already running finishes before the loop exits.
func (w *Worker) Kill() {
	w.killOnce.Do(func() {
		close(w.kill)
	})
}

// WaitForShutdown blocks until the worker's goroutine has fully exited.
// There is no timeout: a worker that never observes its kill signal
// hangs the caller. Workers are required to stay responsive to Kill;
// this is a documented liveness assumption, not enforced here.
func (w *Worker) WaitForShutdown() {
	<-w.done
}
