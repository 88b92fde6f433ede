package queue

import (
	"context"
	"sync"

	"github.com/rangeops/missiond/pkg/types"
)

// MemoryQueue is the in-process TaskQueue. Each category owns an unbounded
// FIFO slice plus a wakeup channel; consumers park on the wakeup channel
// when the slice is empty. A fixed-capacity channel per category would give
// the same delivery semantics but would let a slow executor family block
// engine scheduling, so depth lives in the slice and the channel only
// carries wakeups.
type MemoryQueue struct {
	mu     sync.Mutex
	subs   map[string]*subQueue
	closed bool
	stopCh chan struct{}
}

type subQueue struct {
	items  []types.Task
	wakeCh chan struct{} // capacity 1, coalesced wakeups
}

// NewMemoryQueue creates an empty in-process task queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		subs:   make(map[string]*subQueue),
		stopCh: make(chan struct{}),
	}
}

func (q *MemoryQueue) sub(category string) *subQueue {
	s, ok := q.subs[category]
	if !ok {
		s = &subQueue{wakeCh: make(chan struct{}, 1)}
		q.subs[category] = s
	}
	return s
}

// Publish enqueues the task for its category and wakes one parked consumer.
func (q *MemoryQueue) Publish(task types.Task) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	s := q.sub(task.Category)
	s.items = append(s.items, task)
	q.mu.Unlock()

	select {
	case s.wakeCh <- struct{}{}:
	default:
		// a wakeup is already pending; consumers drain until empty
	}
	return nil
}

// Consume pops the oldest task for the category, blocking while empty.
func (q *MemoryQueue) Consume(ctx context.Context, category string) (types.Task, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return types.Task{}, ErrQueueClosed
	}
	s := q.sub(category)
	q.mu.Unlock()

	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return types.Task{}, ErrQueueClosed
		}
		if len(s.items) > 0 {
			task := s.items[0]
			s.items = s.items[1:]
			remaining := len(s.items)
			q.mu.Unlock()
			if remaining > 0 {
				// more work queued: pass the wakeup on to the next consumer
				select {
				case s.wakeCh <- struct{}{}:
				default:
				}
			}
			return task, nil
		}
		q.mu.Unlock()

		select {
		case <-s.wakeCh:
			// retry the pop; another consumer may have raced us to it
		case <-q.stopCh:
			return types.Task{}, ErrQueueClosed
		case <-ctx.Done():
			return types.Task{}, ctx.Err()
		}
	}
}

// Depth reports the number of queued tasks for a category.
func (q *MemoryQueue) Depth(category string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if s, ok := q.subs[category]; ok {
		return len(s.items)
	}
	return 0
}

// Close releases all blocked consumers and rejects further publishes.
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	close(q.stopCh)
}
