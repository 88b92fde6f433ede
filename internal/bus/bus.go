// Package bus carries result events from executors back to the engine that
// owns the event's mission. One engine subscribes per mission; the bus does
// not deduplicate or reorder — events arrive in publish order per publisher
// and the engine must not assume any interleaving across hosts.
package bus

import (
	"context"
	"errors"

	"github.com/rangeops/missiond/pkg/types"
)

var (
	// ErrBusClosed is returned once the bus has been shut down.
	ErrBusClosed = errors.New("event bus is closed")

	// ErrNoSubscriber is returned when publishing for a mission nothing
	// subscribes to. Executors treat it as a discard, not a fault: the
	// mission was cancelled while its tasks were in flight.
	ErrNoSubscriber = errors.New("no subscriber for mission")
)

// EventBus delivers result events to per-mission subscribers.
type EventBus interface {
	// PublishResult delivers the event to the mission's subscriber.
	PublishResult(event types.ResultEvent) error

	// SubscribeResults registers the caller as the mission's subscriber
	// and returns a channel of its result events. Cancelling the context
	// drops the subscription; events published afterwards are discarded.
	SubscribeResults(ctx context.Context, mission types.MissionID) (<-chan types.ResultEvent, error)

	// Close shuts the bus down and drops every subscription.
	Close()
}
