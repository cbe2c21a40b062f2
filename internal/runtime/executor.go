package runtime

import (
	"fmt"
	"sync"
)

// blockingExecutor runs blocking calls off-worker, one goroutine per
// task. Shutdown stops intake and drains in-flight tasks.
type blockingExecutor struct {
	mu      sync.Mutex
	stopped bool // Protected by mu
	wg      sync.WaitGroup
}

func newBlockingExecutor() *blockingExecutor {
	return &blockingExecutor{}
}

// Submit runs fn on its own goroutine.
func (e *blockingExecutor) Submit(fn func()) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return fmt.Errorf("blocking executor is stopped: %w", ErrLogic)
	}
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		fn()
	}()
	return nil
}

// Kill stops intake and blocks until all in-flight tasks have finished.
// Idempotent.
func (e *blockingExecutor) Kill() {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()

	e.wg.Wait()
}
