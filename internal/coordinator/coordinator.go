// ============================================================================
// Missiond Coordinator - mission lifecycle and registry
// ============================================================================
//
// Package: internal/coordinator
// Purpose: Top-level entry point. Creates missions (immutable host set,
// planner resolved by mission type), owns one engine per active mission,
// answers status queries from stored state and cancels missions. The
// registry is an explicit concurrency-safe map, not ambient global state.
//
// ============================================================================

package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/rangeops/missiond/internal/bus"
	"github.com/rangeops/missiond/internal/engine"
	"github.com/rangeops/missiond/internal/journal"
	"github.com/rangeops/missiond/internal/metrics"
	"github.com/rangeops/missiond/internal/planner"
	"github.com/rangeops/missiond/internal/queue"
	"github.com/rangeops/missiond/internal/store"
	"github.com/rangeops/missiond/pkg/types"
)

var log = slog.Default()

var (
	// ErrMissionExists rejects create calls reusing a mission id. Reuse
	// with a different host set is undefined, so reuse is always rejected.
	ErrMissionExists = errors.New("mission already exists")

	// ErrMissionNotFound is surfaced for status/cancel on unknown ids.
	ErrMissionNotFound = store.ErrMissionNotFound
)

// HostSpec describes one target host at mission creation.
type HostSpec struct {
	HostID  string `json:"host_id"`
	Family  string `json:"family"`
	Address string `json:"address"`
}

// Deps are the infrastructure collaborators shared by all missions.
type Deps struct {
	Store    store.MissionStore
	Queue    queue.TaskQueue
	Bus      bus.EventBus
	Planners *planner.Registry
	Journal  *journal.Journal
	Metrics  *metrics.Collector
}

// Coordinator owns the mission_id -> engine registry.
type Coordinator struct {
	deps Deps

	mu       sync.RWMutex
	missions map[types.MissionID]*missionHandle
}

type missionHandle struct {
	engine *engine.Engine
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a coordinator over shared infrastructure.
func New(deps Deps) *Coordinator {
	if deps.Planners == nil {
		deps.Planners = planner.NewRegistry()
	}
	return &Coordinator{
		deps:     deps,
		missions: make(map[types.MissionID]*missionHandle),
	}
}

// CreateMission validates the request, builds mission state over the host
// list, starts an engine and launches its event loop in the background.
func (c *Coordinator) CreateMission(missionID, missionType string, hosts []HostSpec) error {
	id := types.MissionID(missionID)
	if strings.TrimSpace(missionID) == "" {
		return errors.New("mission id is required")
	}
	if len(hosts) == 0 {
		return errors.New("at least one host is required")
	}
	p, err := c.deps.Planners.Resolve(missionType)
	if err != nil {
		return err
	}

	hostStates := make([]*types.HostState, 0, len(hosts))
	seen := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		if h.HostID == "" || h.Family == "" || h.Address == "" {
			return fmt.Errorf("host entry needs host_id, family and address: %+v", h)
		}
		if _, dup := seen[h.HostID]; dup {
			return fmt.Errorf("duplicate host id %q", h.HostID)
		}
		seen[h.HostID] = struct{}{}
		hostStates = append(hostStates, types.NewHostState(types.HostID(h.HostID), h.Family, h.Address))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, active := c.missions[id]; active {
		return fmt.Errorf("%w: %s", ErrMissionExists, missionID)
	}
	// the store may know missions from a previous process lifetime
	if _, err := c.deps.Store.Load(id); err == nil {
		return fmt.Errorf("%w: %s", ErrMissionExists, missionID)
	} else if !errors.Is(err, store.ErrMissionNotFound) {
		return fmt.Errorf("check existing mission: %w", err)
	}

	state := types.NewMissionState(id, missionType, hostStates)
	eng := engine.New(id, engine.Deps{
		Store:   c.deps.Store,
		Queue:   c.deps.Queue,
		Bus:     c.deps.Bus,
		Planner: p,
		Journal: c.deps.Journal,
		Metrics: c.deps.Metrics,
	})

	ctx, cancel := context.WithCancel(context.Background())
	handle := &missionHandle{engine: eng, cancel: cancel, done: make(chan struct{})}

	// Subscribe before seeding: a fast executor must not publish into a
	// mission nothing listens to yet.
	if err := eng.Subscribe(ctx); err != nil {
		cancel()
		return fmt.Errorf("subscribe mission: %w", err)
	}
	if err := eng.StartMission(state); err != nil {
		cancel()
		return fmt.Errorf("start mission: %w", err)
	}

	go func() {
		defer close(handle.done)
		if err := eng.Run(ctx); err != nil {
			log.Error("mission engine exited with fault", "missionID", id, "error", err)
		}
	}()

	c.missions[id] = handle
	return nil
}

// CancelMission stops the mission's event loop and marks it
// non-schedulable. In-flight tasks complete on their executors and their
// results are discarded on arrival. Idempotent.
func (c *Coordinator) CancelMission(missionID string) error {
	id := types.MissionID(missionID)

	c.mu.Lock()
	handle, ok := c.missions[id]
	c.mu.Unlock()

	if !ok {
		// already-cancelled missions stay cancellable as a no-op, but a
		// mission the system never saw is a caller error
		if _, err := c.deps.Store.Load(id); err != nil {
			return err
		}
		return nil
	}

	if !handle.engine.Cancelled() {
		handle.engine.Cancel()
		handle.cancel()
		<-handle.done
	}
	return nil
}

// InjectTasks schedules operator-supplied tasks onto a running mission.
func (c *Coordinator) InjectTasks(missionID string, tasks []types.Task) error {
	c.mu.RLock()
	handle, ok := c.missions[types.MissionID(missionID)]
	c.mu.RUnlock()
	if !ok {
		return ErrMissionNotFound
	}
	return handle.engine.InjectTasks(tasks)
}

// Close cancels every active mission. Shared infrastructure (queue, bus,
// store, journal) belongs to the caller and is closed there.
func (c *Coordinator) Close() {
	c.mu.Lock()
	handles := make([]*missionHandle, 0, len(c.missions))
	for _, h := range c.missions {
		handles = append(handles, h)
	}
	c.mu.Unlock()

	for _, h := range handles {
		if !h.engine.Cancelled() {
			h.engine.Cancel()
			h.cancel()
			<-h.done
		}
	}
}
