package watchkey

import (
	"context"
	"sync"
)

// Queue is the FIFO of signaled TopLevelKeys awaiting retrieval. Keys are
// announced at most once between retrieval and Reset.
type Queue struct {
	mu     sync.Mutex
	ready  []*TopLevelKey
	closed bool

	wake chan struct{}
	done chan struct{}
}

// NewQueue creates an empty ready queue.
func NewQueue() *Queue {
	return &Queue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// enqueue appends a signaled key and wakes one blocked Take.
func (q *Queue) enqueue(k *TopLevelKey) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.ready = append(q.ready, k)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Poll removes and returns the next signaled key, or nil when none is
// pending.
func (q *Queue) Poll() *TopLevelKey {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ready) == 0 {
		return nil
	}

	k := q.ready[0]
	q.ready = q.ready[1:]
	return k
}

// Take blocks until a signaled key is available, the context is done, or
// the queue is closed. Keys already signaled before close are still
// delivered.
func (q *Queue) Take(ctx context.Context) (*TopLevelKey, error) {
	for {
		if k := q.Poll(); k != nil {
			return k, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.done:
			if k := q.Poll(); k != nil {
				return k, nil
			}
			return nil, ErrQueueClosed
		case <-q.wake:
		}
	}
}

// Close releases all blocked Take calls. Idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}
