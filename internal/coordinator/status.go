package coordinator

import (
	"github.com/rangeops/missiond/pkg/types"
)

// HostSummary is the per-host slice of a status response.
type HostSummary struct {
	Status       types.HostStatus `json:"status"`
	FailureCount int              `json:"failure_count"`
	Locked       bool             `json:"locked"`

	// populated only by detailed status
	Facts       map[string]any `json:"facts,omitempty"`
	TaskHistory []types.TaskID `json:"task_history,omitempty"`
}

// Status is a point-in-time summary view over stored mission state, never
// the raw mutable state.
type Status struct {
	MissionID      string                 `json:"mission_id"`
	MissionType    string                 `json:"mission_type"`
	TotalHosts     int                    `json:"total_hosts"`
	PendingTasks   int                    `json:"pending_tasks"`
	CompletedTasks int                    `json:"completed_tasks"`
	Quiescent      bool                   `json:"quiescent"`
	Cancelled      bool                   `json:"cancelled"`
	Hosts          map[string]HostSummary `json:"hosts"`
}

// GetStatus summarizes a mission. Unknown ids surface as not-found, never
// as an empty status.
func (c *Coordinator) GetStatus(missionID string) (Status, error) {
	return c.status(missionID, false)
}

// GetDetailedStatus additionally carries each host's facts and task history.
func (c *Coordinator) GetDetailedStatus(missionID string) (Status, error) {
	return c.status(missionID, true)
}

func (c *Coordinator) status(missionID string, detailed bool) (Status, error) {
	id := types.MissionID(missionID)
	state, err := c.deps.Store.Load(id)
	if err != nil {
		return Status{}, err
	}

	c.mu.RLock()
	handle, active := c.missions[id]
	c.mu.RUnlock()

	// Quiescence is derived, never stored: nothing pending and the last
	// planner consultation proposed nothing. A mission without a running
	// engine cannot produce more work, so its pending set alone decides.
	plannerIdle := true
	cancelled := false
	if active {
		plannerIdle = handle.engine.PlannerIdle()
		cancelled = handle.engine.Cancelled()
	}

	s := Status{
		MissionID:      string(state.ID),
		MissionType:    state.Type,
		TotalHosts:     len(state.Hosts),
		PendingTasks:   len(state.PendingTask),
		CompletedTasks: len(state.DoneTask),
		Quiescent:      len(state.PendingTask) == 0 && plannerIdle,
		Cancelled:      cancelled,
		Hosts:          make(map[string]HostSummary, len(state.Hosts)),
	}
	for hid, host := range state.Hosts {
		hs := HostSummary{
			Status:       host.LastStatus,
			FailureCount: host.FailureCount,
			Locked:       host.Locked,
		}
		if detailed {
			hs.Facts = host.Facts
			hs.TaskHistory = host.TaskHistory
		}
		s.Hosts[string(hid)] = hs
	}
	return s, nil
}

// ListMissions returns every stored mission id.
func (c *Coordinator) ListMissions() ([]types.MissionID, error) {
	return c.deps.Store.List()
}
