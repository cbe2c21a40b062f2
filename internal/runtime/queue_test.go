package runtime

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestQueueFIFO(t *testing.T) {
	q := newQueue(QueueOptions{Name: "work", Depth: 8})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := q.Write(ctx, i); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if q.Len() != 3 {
		t.Errorf("Expected depth 3, got %d", q.Len())
	}

	for i := 0; i < 3; i++ {
		msg, err := q.Read(ctx)
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if msg != i {
			t.Errorf("Expected %d, got %v", i, msg)
		}
	}
}

func TestQueueDefaultDepth(t *testing.T) {
	q := newQueue(QueueOptions{Name: "work"})
	if cap(q.ch) != DefaultQueueDepth {
		t.Errorf("Expected default depth %d, got %d", DefaultQueueDepth, cap(q.ch))
	}
}

func TestQueueWriteBlocksWhenFull(t *testing.T) {
	q := newQueue(QueueOptions{Name: "tiny", Depth: 1})
	ctx := context.Background()

	if err := q.Write(ctx, "first"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	cancelCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Write(cancelCtx, "second")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline error, got %v", err)
	}
}

func TestQueueReadBlocksWhenEmpty(t *testing.T) {
	q := newQueue(QueueOptions{Name: "empty", Depth: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Read(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected cancellation error, got %v", err)
	}
}
