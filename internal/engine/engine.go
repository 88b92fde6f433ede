// ============================================================================
// Missiond Mission Engine - per-mission controller
// ============================================================================
//
// Package: internal/engine
// Purpose: One engine owns one mission. It seeds the initial tasks, then
// runs an event loop consuming result events, applying them to mission
// state, persisting, consulting the planner and scheduling follow-ups.
//
// Ownership model:
//   MissionState is mutated by exactly one engine goroutine, so state needs
//   no locking of its own. State is loaded from and saved to the store
//   around every transition; an in-memory mutation counts as committed only
//   once Save returns nil.
//
// Fault policy:
//   - Host-level faults arrive as error results and are absorbed into
//     state (failure counters, locks). They never stop the loop.
//   - Infrastructure faults (store, queue, bus, journal) halt the loop and
//     surface to the supervisor. The engine does not retry them.
//
// ============================================================================

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rangeops/missiond/internal/bus"
	"github.com/rangeops/missiond/internal/journal"
	"github.com/rangeops/missiond/internal/metrics"
	"github.com/rangeops/missiond/internal/planner"
	"github.com/rangeops/missiond/internal/queue"
	"github.com/rangeops/missiond/internal/store"
	"github.com/rangeops/missiond/pkg/types"
)

var log = slog.Default()

// ErrCancelled is returned when an operation reaches a cancelled engine.
var ErrCancelled = errors.New("mission cancelled")

// Deps are the collaborators an engine drives. Journal and Metrics are
// optional.
type Deps struct {
	Store   store.MissionStore
	Queue   queue.TaskQueue
	Bus     bus.EventBus
	Planner planner.Planner
	Journal *journal.Journal
	Metrics *metrics.Collector
}

// Engine is the per-mission controller.
type Engine struct {
	mission types.MissionID
	deps    Deps

	// writeMu serializes the load-mutate-save cycle. The event loop is the
	// only steady-state writer; the mutex covers operator task injection,
	// which shares the single-writer path rather than bypassing it.
	writeMu sync.Mutex

	mu          sync.Mutex
	cancelled   bool
	plannerIdle bool // last planner consultation scheduled nothing
	publishedAt map[types.TaskID]time.Time
	events      <-chan types.ResultEvent
}

// New builds an engine for one mission.
func New(mission types.MissionID, deps Deps) *Engine {
	return &Engine{
		mission:     mission,
		deps:        deps,
		plannerIdle: false,
		publishedAt: make(map[types.TaskID]time.Time),
	}
}

// Mission returns the mission id this engine owns.
func (e *Engine) Mission() types.MissionID { return e.mission }

// StartMission persists the initial state, asks the planner for the seed
// tasks and schedules them.
func (e *Engine) StartMission(state *types.MissionState) error {
	if err := e.deps.Store.Save(state); err != nil {
		return fmt.Errorf("persist initial state: %w", err)
	}
	tasks := e.deps.Planner.InitialTasks(state)
	if err := e.schedule(state, tasks); err != nil {
		return err
	}
	log.Info("mission started",
		"missionID", e.mission,
		"hosts", len(state.Hosts),
		"initialTasks", len(tasks))
	return nil
}

// ProcessResult applies one result event: idempotence guard, host state
// update, persistence, planner consultation, follow-up scheduling.
func (e *Engine) ProcessResult(event types.ResultEvent) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	e.mu.Lock()
	if e.cancelled {
		e.mu.Unlock()
		log.Debug("result discarded after cancel", "missionID", e.mission, "taskID", event.TaskID)
		return nil
	}
	published, sawPublish := e.publishedAt[event.TaskID]
	delete(e.publishedAt, event.TaskID)
	e.mu.Unlock()

	state, err := e.deps.Store.Load(e.mission)
	if err != nil {
		return fmt.Errorf("load mission state: %w", err)
	}

	// Idempotence guard: a task id no longer pending was already applied
	// (or never belonged to this mission). The duplicate is a no-op.
	if !state.IsPending(event.TaskID) {
		log.Debug("duplicate result discarded",
			"missionID", e.mission, "taskID", event.TaskID)
		return nil
	}

	state.MarkCompleted(event.TaskID)
	e.applyToHost(state, event)
	state.Touch()

	if err := e.deps.Store.Save(state); err != nil {
		return fmt.Errorf("persist state after result: %w", err)
	}

	if e.deps.Journal != nil {
		if err := e.deps.Journal.Append(event); err != nil {
			return fmt.Errorf("journal result: %w", err)
		}
	}

	latency := -1.0
	if sawPublish {
		latency = time.Since(published).Seconds()
	}
	e.deps.Metrics.RecordResult(string(event.Status), latency)

	next := e.deps.Planner.NextTasks(state, event)
	next = e.dropLockedTargets(state, next)
	if err := e.schedule(state, next); err != nil {
		return err
	}

	e.mu.Lock()
	e.plannerIdle = len(next) == 0
	e.mu.Unlock()
	return nil
}

// applyToHost folds one result into the target host's state.
func (e *Engine) applyToHost(state *types.MissionState, event types.ResultEvent) {
	host, ok := state.Hosts[event.Host]
	if !ok {
		log.Warn("result for unknown host", "missionID", e.mission, "hostID", event.Host)
		return
	}
	switch event.Status {
	case types.ResultSuccess:
		host.FailureCount = 0
		host.LastStatus = types.HostHealthy
		host.MergeFacts(event.Data)

	case types.ResultPartial:
		// success for the failure counter, but a degraded host stays degraded
		host.FailureCount = 0
		if host.LastStatus != types.HostDegraded {
			host.LastStatus = types.HostHealthy
		}
		host.MergeFacts(event.Data)

	case types.ResultError:
		host.FailureCount++
		host.LastStatus = types.HostDegraded
		if host.FailureCount >= host.MaxFailures && !host.Locked {
			host.Locked = true
			host.LastStatus = types.HostLocked
			e.deps.Metrics.RecordHostLocked()
			log.Warn("host locked",
				"missionID", e.mission,
				"hostID", host.ID,
				"failures", host.FailureCount)
		}
	}
}

// dropLockedTargets suppresses planner output aimed at locked hosts. This
// is the lock invariant at work, not an error.
func (e *Engine) dropLockedTargets(state *types.MissionState, tasks []types.Task) []types.Task {
	kept := tasks[:0]
	for _, t := range tasks {
		if host, ok := state.Hosts[t.Host]; ok && host.Locked {
			log.Debug("task for locked host suppressed",
				"missionID", e.mission, "hostID", t.Host, "action", t.Action)
			continue
		}
		kept = append(kept, t)
	}
	return kept
}

// schedule records the tasks as pending, persists, then publishes them.
// Persist-before-publish: a task visible to executors is always visible in
// the stored pending set, so its result can never be mistaken for a
// duplicate.
func (e *Engine) schedule(state *types.MissionState, tasks []types.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	for _, t := range tasks {
		state.MarkPending(t)
	}
	state.Touch()
	if err := e.deps.Store.Save(state); err != nil {
		return fmt.Errorf("persist scheduled tasks: %w", err)
	}
	now := time.Now()
	for _, t := range tasks {
		if err := e.deps.Queue.Publish(t); err != nil {
			return fmt.Errorf("publish task %s: %w", t.ID, err)
		}
		e.mu.Lock()
		e.publishedAt[t.ID] = now
		e.mu.Unlock()
		e.deps.Metrics.RecordTaskPublished()
		log.Debug("task scheduled",
			"missionID", e.mission,
			"taskID", t.ID,
			"hostID", t.Host,
			"action", t.Action)
	}
	return nil
}

// Subscribe registers the engine on the event bus. Callers subscribe
// before seeding the initial tasks so a fast executor cannot publish into
// a mission nothing listens to yet. Run subscribes itself if this was
// skipped.
func (e *Engine) Subscribe(ctx context.Context) error {
	events, err := e.deps.Bus.SubscribeResults(ctx, e.mission)
	if err != nil {
		return fmt.Errorf("subscribe results: %w", err)
	}
	e.mu.Lock()
	e.events = events
	e.mu.Unlock()
	return nil
}

// Run processes the mission's results until the context is cancelled or an
// infrastructure fault halts the loop.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	events := e.events
	e.mu.Unlock()
	if events == nil {
		if err := e.Subscribe(ctx); err != nil {
			return err
		}
		e.mu.Lock()
		events = e.events
		e.mu.Unlock()
	}
	e.deps.Metrics.MissionStarted()
	defer e.deps.Metrics.MissionStopped()

	for {
		select {
		case <-ctx.Done():
			log.Info("engine loop stopped", "missionID", e.mission)
			return nil
		case event, ok := <-events:
			if !ok {
				log.Info("result subscription closed", "missionID", e.mission)
				return nil
			}
			if err := e.ProcessResult(event); err != nil {
				// infrastructure fault: halt and surface, do not retry
				log.Error("engine halted on infrastructure fault",
					"missionID", e.mission, "error", err)
				return err
			}
		}
	}
}

// Cancel marks the engine non-schedulable. In-flight tasks complete on
// their executors; their events are discarded on arrival. Idempotent.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancelled {
		return
	}
	e.cancelled = true
	log.Info("mission cancelled", "missionID", e.mission)
}

// Cancelled reports whether Cancel has been called.
func (e *Engine) Cancelled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelled
}

// PlannerIdle reports whether the most recent planner consultation
// scheduled nothing. Combined with an empty pending set this derives the
// "quiescent" status; it is never stored, because an operator can inject
// new work into a quiescent mission at any time.
func (e *Engine) PlannerIdle() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.plannerIdle
}

// InjectTasks schedules operator-supplied tasks onto a running mission,
// waking a quiescent mission back up. Tasks for locked hosts are dropped.
func (e *Engine) InjectTasks(tasks []types.Task) error {
	e.mu.Lock()
	if e.cancelled {
		e.mu.Unlock()
		return ErrCancelled
	}
	e.mu.Unlock()

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	state, err := e.deps.Store.Load(e.mission)
	if err != nil {
		return fmt.Errorf("load mission state: %w", err)
	}
	tasks = e.dropLockedTargets(state, tasks)
	if err := e.schedule(state, tasks); err != nil {
		return err
	}
	if len(tasks) > 0 {
		e.mu.Lock()
		e.plannerIdle = false
		e.mu.Unlock()
	}
	return nil
}
