// Package bus is the in-memory event stream between the execution engine and
// its observers (journal, notifier, UI feeds). Consumers attach plain handler
// functions; the engine itself has no UI-framework dependency.
package bus

import (
	"context"
	"sync/atomic"

	"github.com/yanun0323/errors"

	"main/internal/model"
)

var (
	ErrQueueFull   = errors.New("event queue full")
	ErrQueueClosed = errors.New("event queue closed")
)

// Kind discriminates event payloads.
type Kind uint8

const (
	KindSubmit Kind = iota + 1
	KindPositionChanged
	KindPnLSnapshot
)

// Event is the unit passed through the in-memory bus. Exactly one payload
// field is set, according to Kind.
type Event struct {
	Kind     Kind
	Submit   *model.SubmitEvent
	Position *PositionChange
	Snapshot any
}

// PositionChange notifies observers that a symbol's position mutated.
type PositionChange struct {
	Symbol      string
	Qty         int64
	AvgPrice    float64
	PendingBuy  int64
	PendingSell int64
}

// Queue is a bounded, non-blocking event queue.
type Queue struct {
	ch     chan Event
	closed uint32
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan Event, capacity)}
}

// TryPublish enqueues an event without blocking.
func (q *Queue) TryPublish(e Event) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		return ErrQueueClosed
	}
	select {
	case q.ch <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the queue from accepting new events.
func (q *Queue) Close() {
	if atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		close(q.ch)
	}
}

// Run consumes events until the context is done or the queue is closed.
func (q *Queue) Run(ctx context.Context, handler func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-q.ch:
			if !ok {
				return
			}
			handler(e)
		}
	}
}
