package types

import (
	"regexp"
	"testing"
	"time"
)

func newTestMission(id string, hosts ...*HostState) *MissionState {
	return NewMissionState(MissionID(id), "default", hosts)
}

func newTestTask(mission *MissionState, host HostID) Task {
	return Task{
		ID:       NewTaskID(),
		Mission:  mission.ID,
		Host:     host,
		Category: "linux",
		Action:   "linux.discover",
	}
}

func TestNewTaskIDShape(t *testing.T) {
	pattern := regexp.MustCompile(`^t-\d+-[0-9a-f]+$`)
	seen := make(map[TaskID]struct{})
	for i := 0; i < 100; i++ {
		id := NewTaskID()
		if !pattern.MatchString(string(id)) {
			t.Fatalf("task id %q does not match expected shape", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate task id %q", id)
		}
		seen[id] = struct{}{}
	}
}

func TestNewHostState(t *testing.T) {
	h := NewHostState("h1", "linux", "10.0.0.1")

	if h.LastStatus != HostUnknown {
		t.Errorf("initial status: got %s, want %s", h.LastStatus, HostUnknown)
	}
	if h.MaxFailures != DefaultMaxFailures {
		t.Errorf("max failures: got %d, want %d", h.MaxFailures, DefaultMaxFailures)
	}
	if h.Locked {
		t.Error("fresh host should not be locked")
	}
	if h.Facts == nil {
		t.Error("facts map not initialized")
	}
}

func TestMergeFacts(t *testing.T) {
	h := NewHostState("h1", "linux", "10.0.0.1")
	h.MergeFacts(map[string]any{"os": "linux", "open_ports": []int{22}})
	h.MergeFacts(map[string]any{"open_ports": []int{22, 80}, "kernel": "6.8"})

	if h.Facts["os"] != "linux" {
		t.Errorf("absent keys must be kept, got %v", h.Facts["os"])
	}
	if h.Facts["kernel"] != "6.8" {
		t.Errorf("new keys must be added, got %v", h.Facts["kernel"])
	}
	ports, ok := h.Facts["open_ports"].([]int)
	if !ok || len(ports) != 2 {
		t.Errorf("present keys must be overwritten, got %v", h.Facts["open_ports"])
	}
}

func TestMarkPendingAndCompleted(t *testing.T) {
	h := NewHostState("h1", "linux", "10.0.0.1")
	m := newTestMission("m1", h)
	task := newTestTask(m, h.ID)

	m.MarkPending(task)
	if !m.IsPending(task.ID) {
		t.Fatalf("task %s should be pending", task.ID)
	}
	if len(h.TaskHistory) != 1 || h.TaskHistory[0] != task.ID {
		t.Errorf("task history not recorded: %v", h.TaskHistory)
	}

	m.MarkCompleted(task.ID)
	if m.IsPending(task.ID) {
		t.Error("completed task still pending")
	}
	if _, done := m.DoneTask[task.ID]; !done {
		t.Error("completed task missing from completed set")
	}

	// pending and completed are disjoint at every point
	for id := range m.PendingTask {
		if _, both := m.DoneTask[id]; both {
			t.Errorf("task %s in both pending and completed sets", id)
		}
	}
}

func TestTouchIsMonotonic(t *testing.T) {
	m := newTestMission("m1")
	m.UpdatedAt = time.Now().Add(time.Hour)
	before := m.UpdatedAt

	m.Touch()
	if m.UpdatedAt.Before(before) {
		t.Errorf("UpdatedAt moved backwards: %v -> %v", before, m.UpdatedAt)
	}
}

func TestCloneIsDeep(t *testing.T) {
	h := NewHostState("h1", "linux", "10.0.0.1")
	h.MergeFacts(map[string]any{"os": "linux"})
	m := newTestMission("m1", h)
	task := newTestTask(m, h.ID)
	m.MarkPending(task)

	c := m.Clone()
	c.Hosts["h1"].Facts["os"] = "windows"
	c.Hosts["h1"].TaskHistory = append(c.Hosts["h1"].TaskHistory, "t-x")
	c.MarkCompleted(task.ID)

	if m.Hosts["h1"].Facts["os"] != "linux" {
		t.Error("clone shares facts map with original")
	}
	if len(m.Hosts["h1"].TaskHistory) != 1 {
		t.Error("clone shares task history with original")
	}
	if !m.IsPending(task.ID) {
		t.Error("clone shares pending set with original")
	}
}
