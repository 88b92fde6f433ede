// ============================================================================
// Missiond Executor - per-category task workers
// ============================================================================
//
// Package: internal/executor
// Purpose: Pulls tasks for one executor category off the task queue,
// performs them through the remote-execution capability and publishes
// exactly one result event per consumed task — including for tasks it
// cannot even interpret. A silent drop or an escaped fault would strand the
// task in the mission's pending set forever.
//
// Execution model:
//   Each worker is an independent goroutine looping
//   consume -> handle -> publish. Several workers per category compete on
//   the same sub-queue for intra-category parallelism.
//
// ============================================================================

package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rangeops/missiond/internal/bus"
	"github.com/rangeops/missiond/internal/queue"
	"github.com/rangeops/missiond/internal/remoteexec"
	"github.com/rangeops/missiond/pkg/types"
)

var log = slog.Default()

// AddressParam is the reserved task param carrying the host address.
const AddressParam = "address"

// Result error codes beyond types.ErrorCodeUnknownAction.
const (
	ErrorCodeInvalidParams   = "INVALID_PARAMS"
	ErrorCodeCapabilityError = "CAPABILITY_ERROR"
)

// actionSpec declares one supported action verb and its required params.
type actionSpec struct {
	requiredParams []string
}

// supportedVerbs is shared by every category; the action's family prefix
// must additionally match the executor's category.
var supportedVerbs = map[string]actionSpec{
	"discover":    {},
	"baseline":    {},
	"inject_vuln": {requiredParams: []string{"vuln"}},
}

// Executor performs tasks for one category.
type Executor struct {
	Category string
	Runner   remoteexec.Runner
}

// New builds an executor for one category over a capability runner.
func New(category string, runner remoteexec.Runner) *Executor {
	return &Executor{Category: category, Runner: runner}
}

// HandleTask performs one task and maps its raw outcome into a result
// event. It never returns an error: every failure mode becomes a result.
func (e *Executor) HandleTask(ctx context.Context, task types.Task) types.ResultEvent {
	result := types.ResultEvent{
		TaskID:    task.ID,
		Mission:   task.Mission,
		Host:      task.Host,
		Category:  task.Category,
		Action:    task.Action,
		Timestamp: time.Now(),
	}

	verb, ok := e.parseAction(task.Action)
	if !ok {
		result.Status = types.ResultError
		result.ErrorCode = types.ErrorCodeUnknownAction
		result.Retriable = false
		result.Summary = fmt.Sprintf("no handler for action %q in category %q", task.Action, e.Category)
		return result
	}

	address, err := e.validateParams(verb, task.Params)
	if err != nil {
		result.Status = types.ResultError
		result.ErrorCode = ErrorCodeInvalidParams
		result.Retriable = false
		result.Summary = err.Error()
		return result
	}

	outcome, err := e.Runner.Run(ctx, address, task.Action, task.Params)
	result.Timestamp = time.Now()
	if err != nil {
		// the capability could not perform the action at all
		result.Status = types.ResultError
		result.ErrorCode = ErrorCodeCapabilityError
		result.Retriable = true
		result.Summary = remoteexec.Truncate(err.Error())
		return result
	}

	result.Data = outcome.Facts
	if outcome.Success {
		result.Status = types.ResultSuccess
		result.Summary = summarize(outcome.Stdout, fmt.Sprintf("%s completed", task.Action))
	} else {
		result.Status = types.ResultError
		result.Retriable = true
		result.Summary = summarize(outcome.Stderr, fmt.Sprintf("%s failed", task.Action))
	}
	return result
}

// parseAction checks that the action belongs to this category and maps to
// a supported verb.
func (e *Executor) parseAction(action string) (string, bool) {
	prefix, verb, found := strings.Cut(action, ".")
	if !found || prefix != e.Category {
		return "", false
	}
	if _, ok := supportedVerbs[verb]; !ok {
		return "", false
	}
	return verb, true
}

// validateParams checks required params and extracts the host address.
func (e *Executor) validateParams(verb string, params map[string]string) (string, error) {
	address := params[AddressParam]
	if address == "" {
		return "", fmt.Errorf("missing %q param", AddressParam)
	}
	for _, p := range supportedVerbs[verb].requiredParams {
		if params[p] == "" {
			return "", fmt.Errorf("action verb %q requires param %q", verb, p)
		}
	}
	return address, nil
}

// summarize returns the first line of raw output, or fallback when empty.
func summarize(raw, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	if i := strings.IndexByte(raw, '\n'); i >= 0 {
		raw = raw[:i]
	}
	return remoteexec.Truncate(raw)
}

// Pool runs N workers for one executor.
type Pool struct {
	executor *Executor
	queue    queue.TaskQueue
	bus      bus.EventBus

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewPool wires an executor to the queue and bus.
func NewPool(e *Executor, q queue.TaskQueue, b bus.EventBus) *Pool {
	return &Pool{executor: e, queue: q, bus: b}
}

// Start launches workerCount worker goroutines.
func (p *Pool) Start(ctx context.Context, workerCount int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return errors.New("executor pool already started")
	}
	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < workerCount; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.run(ctx, id)
		}(i)
	}
	p.started = true
	log.Info("executor pool started", "category", p.executor.Category, "workers", workerCount)
	return nil
}

// run is one worker's consume-handle-publish loop.
func (p *Pool) run(ctx context.Context, id int) {
	for {
		task, err := p.queue.Consume(ctx, p.executor.Category)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, queue.ErrQueueClosed) {
				return
			}
			log.Error("executor consume failed",
				"category", p.executor.Category, "worker", id, "error", err)
			return
		}

		result := p.executor.HandleTask(ctx, task)

		if err := p.bus.PublishResult(result); err != nil {
			if errors.Is(err, bus.ErrNoSubscriber) {
				// mission cancelled while the task was in flight
				log.Debug("result discarded, no subscriber",
					"missionID", task.Mission, "taskID", task.ID)
				continue
			}
			if errors.Is(err, bus.ErrBusClosed) {
				return
			}
			log.Error("executor publish failed",
				"category", p.executor.Category, "worker", id, "error", err)
			return
		}
	}
}

// Stop cancels the workers and waits for them to drain.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
}
