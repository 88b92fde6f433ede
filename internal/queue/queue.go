// ============================================================================
// Missiond Task Queue - category-keyed task distribution
// ============================================================================
//
// Package: internal/queue
// Purpose: Decouples mission engines from executors. Engines publish tasks
// onto the sub-queue named by the task's executor category; executor workers
// consume from their category's sub-queue. Tasks are distributed, never
// broadcast: each task is handed to exactly one consumer.
//
// Guarantees:
//   - Publish never blocks on queue depth (sub-queues are unbounded).
//   - FIFO within one category relative to publish order.
//   - No ordering across categories.
//   - Publish after Close fails with ErrQueueClosed; a closed queue is an
//     infrastructure fault for the caller, not a task-level error.
//
// ============================================================================

package queue

import (
	"context"
	"errors"

	"github.com/rangeops/missiond/pkg/types"
)

var (
	// ErrQueueClosed is returned once the queue has been shut down.
	ErrQueueClosed = errors.New("task queue is closed")
)

// TaskQueue routes tasks from engines to category-matched executors.
// Implementations must be safe for concurrent publishers and consumers.
type TaskQueue interface {
	// Publish enqueues the task onto the sub-queue named by task.Category.
	Publish(task types.Task) error

	// Consume blocks until a task for the category is available or the
	// context is cancelled. Concurrent consumers of the same category
	// compete: each task is delivered to exactly one of them.
	Consume(ctx context.Context, category string) (types.Task, error)

	// Close shuts the queue down; blocked consumers are released with
	// ErrQueueClosed.
	Close()
}
