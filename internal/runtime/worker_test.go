package runtime

import (
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerExecutesTasks(t *testing.T) {
	w := newWorker(WorkerOptions{Name: "w1", OwnedThread: true})
	w.Start()
	defer func() {
		w.Kill()
		w.WaitForShutdown()
	}()

	done := make(chan struct{})
	if err := w.Submit(func() { close(done) }); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Task never ran")
	}
}

func TestWorkerInlineExecution(t *testing.T) {
	w := newWorker(WorkerOptions{Name: "inline"})

	var ran atomic.Bool
	if err := w.Submit(func() { ran.Store(true) }); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !ran.Load() {
		t.Error("Threadless worker must execute inline")
	}

	// Joining a threadless worker never blocks.
	w.WaitForShutdown()
}

func TestWorkerKillIdempotent(t *testing.T) {
	w := newWorker(WorkerOptions{Name: "w1", OwnedThread: true})
	w.Start()

	w.Kill()
	w.Kill()
	w.WaitForShutdown()
	w.WaitForShutdown()
}

func TestSubmitAfterKill(t *testing.T) {
	w := newWorker(WorkerOptions{Name: "w1", OwnedThread: true})
	w.Start()
	w.Kill()
	w.WaitForShutdown()

	err := w.Submit(func() {})
	if err == nil {
		t.Fatal("Submit after Kill should fail")
	}
	if !strings.Contains(err.Error(), "killed") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestWorkerFinishesRunningTaskBeforeExit(t *testing.T) {
	w := newWorker(WorkerOptions{Name: "w1", OwnedThread: true})
	w.Start()

	started := make(chan struct{})
	var finished atomic.Bool
	if err := w.Submit(func() {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
	}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	<-started
	w.Kill()
	w.WaitForShutdown()

	if !finished.Load() {
		t.Error("In-flight task must complete before the worker exits")
	}
}

func TestWorkerIDPrefix(t *testing.T) {
	w := newWorker(WorkerOptions{Name: "w1"})
	if !strings.HasPrefix(w.ID().String(), "wrk_") {
		t.Errorf("Unexpected worker id: %s", w.ID())
	}
}
