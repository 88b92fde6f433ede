// Package types defines the core domain model shared by every missiond
// component: tasks, result events, per-host state and mission state.
package types

import (
	"time"
)

// MissionID uniquely identifies one mission.
type MissionID string

// TaskID uniquely identifies one dispatched task.
type TaskID string

// HostID uniquely identifies one target host within a mission.
type HostID string

// ResultStatus is the outcome classification of one executed task.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "success" // action completed
	ResultError   ResultStatus = "error"   // action failed against the host
	ResultPartial ResultStatus = "partial" // action partly applied
)

// HostStatus is the operator-visible condition of one host.
type HostStatus string

const (
	HostUnknown  HostStatus = "unknown"  // no result processed yet
	HostHealthy  HostStatus = "healthy"  // last result succeeded
	HostDegraded HostStatus = "degraded" // last result failed
	HostLocked   HostStatus = "locked"   // failure budget exhausted, terminal for this mission
)

// DefaultMaxFailures is the consecutive-error budget before a host is locked.
const DefaultMaxFailures = 3

// ErrorCodeUnknownAction marks results for actions no executor handler maps.
const ErrorCodeUnknownAction = "UNKNOWN_ACTION"

// Task is one immutable unit of dispatchable work, addressed to one host
// and executed by exactly one executor of the matching category.
type Task struct {
	ID       TaskID            `json:"task_id"`
	Mission  MissionID         `json:"mission_id"`
	Host     HostID            `json:"host_id"`
	Category string            `json:"executor_category"` // derived from the host family, e.g. "linux"
	Action   string            `json:"action"`            // dotted verb, e.g. "linux.discover"
	Params   map[string]string `json:"params,omitempty"`
}

// ResultEvent is the single outcome record produced for a consumed Task.
type ResultEvent struct {
	TaskID    TaskID         `json:"task_id"`
	Mission   MissionID      `json:"mission_id"`
	Host      HostID         `json:"host_id"`
	Category  string         `json:"executor_category"`
	Action    string         `json:"action"`
	Status    ResultStatus   `json:"status"`
	Summary   string         `json:"summary,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Retriable bool           `json:"retriable"`
	ErrorCode string         `json:"error_code,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// HostState tracks one host's progress within one mission.
type HostState struct {
	ID           HostID         `json:"host_id"`
	Family       string         `json:"family"`
	Address      string         `json:"address"`
	LastStatus   HostStatus     `json:"last_status"`
	FailureCount int            `json:"failure_count"` // consecutive errors, reset on any success
	MaxFailures  int            `json:"max_failures"`
	Locked       bool           `json:"locked"`
	Facts        map[string]any `json:"facts,omitempty"`
	TaskHistory  []TaskID       `json:"task_history,omitempty"`
}

// NewHostState builds the initial state for a host entering a mission.
func NewHostState(id HostID, family, address string) *HostState {
	return &HostState{
		ID:          id,
		Family:      family,
		Address:     address,
		LastStatus:  HostUnknown,
		MaxFailures: DefaultMaxFailures,
		Facts:       make(map[string]any),
	}
}

// MergeFacts merges discovered data into the host's accumulated facts.
// Keys present in data overwrite; keys absent from data are kept.
func (h *HostState) MergeFacts(data map[string]any) {
	if len(data) == 0 {
		return
	}
	if h.Facts == nil {
		h.Facts = make(map[string]any, len(data))
	}
	for k, v := range data {
		h.Facts[k] = v
	}
}

// MissionState is the aggregate root for one mission. It is mutated only by
// the mission's owning engine and persisted after every mutation.
type MissionState struct {
	ID          MissionID             `json:"mission_id"`
	Type        string                `json:"mission_type"`
	Hosts       map[HostID]*HostState `json:"hosts"`
	PendingTask map[TaskID]struct{}   `json:"pending_task_ids"`
	DoneTask    map[TaskID]struct{}   `json:"completed_task_ids"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// NewMissionState builds a mission over an immutable host set.
func NewMissionState(id MissionID, missionType string, hosts []*HostState) *MissionState {
	m := &MissionState{
		ID:          id,
		Type:        missionType,
		Hosts:       make(map[HostID]*HostState, len(hosts)),
		PendingTask: make(map[TaskID]struct{}),
		DoneTask:    make(map[TaskID]struct{}),
		CreatedAt:   time.Now(),
	}
	m.UpdatedAt = m.CreatedAt
	for _, h := range hosts {
		m.Hosts[h.ID] = h
	}
	return m
}

// IsPending reports whether a task id is dispatched but unresolved.
func (m *MissionState) IsPending(id TaskID) bool {
	_, ok := m.PendingTask[id]
	return ok
}

// MarkPending records a freshly scheduled task against its host.
func (m *MissionState) MarkPending(t Task) {
	m.PendingTask[t.ID] = struct{}{}
	if h, ok := m.Hosts[t.Host]; ok {
		h.TaskHistory = append(h.TaskHistory, t.ID)
	}
}

// MarkCompleted moves a task id from the pending set to the completed set.
// The two sets stay disjoint: a task id lives in exactly one of them.
func (m *MissionState) MarkCompleted(id TaskID) {
	delete(m.PendingTask, id)
	m.DoneTask[id] = struct{}{}
}

// Touch advances the modification timestamp, never backwards.
func (m *MissionState) Touch() {
	if now := time.Now(); now.After(m.UpdatedAt) {
		m.UpdatedAt = now
	}
}

// Clone deep-copies the mission state. Status queries operate on clones so
// the engine's working copy is never aliased outside its goroutine.
func (m *MissionState) Clone() *MissionState {
	c := &MissionState{
		ID:          m.ID,
		Type:        m.Type,
		Hosts:       make(map[HostID]*HostState, len(m.Hosts)),
		PendingTask: make(map[TaskID]struct{}, len(m.PendingTask)),
		DoneTask:    make(map[TaskID]struct{}, len(m.DoneTask)),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	for id, h := range m.Hosts {
		hc := *h
		hc.Facts = make(map[string]any, len(h.Facts))
		for k, v := range h.Facts {
			hc.Facts[k] = v
		}
		hc.TaskHistory = append([]TaskID(nil), h.TaskHistory...)
		c.Hosts[id] = &hc
	}
	for id := range m.PendingTask {
		c.PendingTask[id] = struct{}{}
	}
	for id := range m.DoneTask {
		c.DoneTask[id] = struct{}{}
	}
	return c
}
