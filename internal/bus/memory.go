package bus

import (
	"context"
	"sync"

	"github.com/rangeops/missiond/pkg/types"
)

// subscriberBuffer is the per-mission event channel capacity. Publishes
// beyond it block the publishing executor until the engine catches up,
// which is the intended backpressure for a mission falling behind.
const subscriberBuffer = 256

// MemoryBus is the in-process EventBus. Exactly one subscriber per mission
// id; re-subscribing replaces the previous subscription.
type MemoryBus struct {
	mu     sync.Mutex
	subs   map[types.MissionID]*subscription
	closed bool
	stopCh chan struct{}
}

type subscription struct {
	ch     chan types.ResultEvent
	doneCh chan struct{}
}

// NewMemoryBus creates an empty in-process event bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		subs:   make(map[types.MissionID]*subscription),
		stopCh: make(chan struct{}),
	}
}

// PublishResult delivers the event to the mission's subscriber. Events for
// missions without a subscriber are discarded with ErrNoSubscriber.
func (b *MemoryBus) PublishResult(event types.ResultEvent) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBusClosed
	}
	sub, ok := b.subs[event.Mission]
	b.mu.Unlock()
	if !ok {
		return ErrNoSubscriber
	}

	select {
	case sub.ch <- event:
		return nil
	case <-sub.doneCh:
		return ErrNoSubscriber
	case <-b.stopCh:
		return ErrBusClosed
	}
}

// SubscribeResults registers the engine as the mission's subscriber.
func (b *MemoryBus) SubscribeResults(ctx context.Context, mission types.MissionID) (<-chan types.ResultEvent, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBusClosed
	}
	if prev, ok := b.subs[mission]; ok {
		close(prev.doneCh)
	}
	sub := &subscription{
		ch:     make(chan types.ResultEvent, subscriberBuffer),
		doneCh: make(chan struct{}),
	}
	b.subs[mission] = sub
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-b.stopCh:
		case <-sub.doneCh:
			return
		}
		b.mu.Lock()
		if cur, ok := b.subs[mission]; ok && cur == sub {
			delete(b.subs, mission)
		}
		// doneCh is only ever closed under the lock, here or by the
		// replacing subscriber
		select {
		case <-sub.doneCh:
		default:
			close(sub.doneCh)
		}
		b.mu.Unlock()
	}()

	return sub.ch, nil
}

// Close shuts the bus down; blocked publishers are released with ErrBusClosed.
func (b *MemoryBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()
	close(b.stopCh)
}
