package runtime

import (
	"context"
	"fmt"

	"github.com/GriffinCanCode/InferOS/runtime/internal/shared/id"
)

// QueueOptions configures a named queue.
type QueueOptions struct {
	Name string
	// Depth bounds the number of buffered messages. Depth < 1 falls back
	// to DefaultQueueDepth.
	Depth int
}

// DefaultQueueDepth is used when QueueOptions.Depth is unset.
const DefaultQueueDepth = 64

// Queue is a named, bounded handoff channel between components. The
// System retains ownership; callers hold non-owning references.
type Queue struct {
	id   id.QueueID
	opts QueueOptions
	ch   chan interface{}
}

func newQueue(opts QueueOptions) *Queue {
	depth := opts.Depth
	if depth < 1 {
		depth = DefaultQueueDepth
	}
	return &Queue{
		id:   id.NewQueueID(),
		opts: opts,
		ch:   make(chan interface{}, depth),
	}
}

// ID returns the queue's instance id.
func (q *Queue) ID() id.QueueID { return q.id }

// Options returns the creation options.
func (q *Queue) Options() QueueOptions { return q.opts }

// Write enqueues msg, blocking while the queue is full.
func (q *Queue) Write(ctx context.Context, msg interface{}) error {
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("write to queue %q: %w", q.opts.Name, ctx.Err())
	}
}

// Read dequeues the next message, blocking while the queue is empty.
func (q *Queue) Read(ctx context.Context) (interface{}, error) {
	select {
	case msg := <-q.ch:
		return msg, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("read from queue %q: %w", q.opts.Name, ctx.Err())
	}
}

// Len returns the number of buffered messages.
func (q *Queue) Len() int { return len(q.ch) }
