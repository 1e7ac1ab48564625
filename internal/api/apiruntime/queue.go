package apiruntime

import (
	"context"
	"sync"

	"github.com/Sh00ty/dataflow-cp/pkg/api/cppbv1"
)

// eventQueue is the per-session outbound queue. It is unbounded: the
// store fan-out runs under the store mutex and must never block on a
// slow stream writer.
type eventQueue struct {
	mu     sync.Mutex
	items  []*cppbv1.Event
	notify chan struct{}
	closed bool
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		notify: make(chan struct{}, 1),
	}
}

// Push enqueues an event. Pushing into a closed queue is a silent
// no-op so late fan-outs during teardown are harmless.
func (q *eventQueue) Push(events ...*cppbv1.Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, events...)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Pop blocks until an event is available, the queue closes, or the
// context ends. The second result is false once the queue is drained
// and closed, or the context is done.
func (q *eventQueue) Pop(ctx context.Context) (*cppbv1.Event, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			ev := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return ev, true
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return nil, false
		}
		select {
		case <-ctx.Done():
			return nil, false
		case <-q.notify:
		}
	}
}

func (q *eventQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}
