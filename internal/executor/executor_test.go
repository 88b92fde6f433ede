package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rangeops/missiond/internal/bus"
	"github.com/rangeops/missiond/internal/queue"
	"github.com/rangeops/missiond/internal/remoteexec"
	"github.com/rangeops/missiond/pkg/types"
)

func newTestTask(action string, params map[string]string) types.Task {
	merged := map[string]string{AddressParam: "10.0.0.1"}
	for k, v := range params {
		merged[k] = v
	}
	return types.Task{
		ID:       types.NewTaskID(),
		Mission:  "m1",
		Host:     "h1",
		Category: "linux",
		Action:   action,
		Params:   merged,
	}
}

func TestHandleTaskSuccess(t *testing.T) {
	runner := remoteexec.NewStaticRunner()
	runner.SetOutcome("10.0.0.1", "linux.discover", remoteexec.Outcome{
		Success: true,
		Facts:   map[string]any{"os": "linux"},
		Stdout:  "probing 10.0.0.1\nextra line",
	})
	e := New("linux", runner)

	task := newTestTask("linux.discover", nil)
	result := e.HandleTask(context.Background(), task)

	assert.Equal(t, task.ID, result.TaskID)
	assert.Equal(t, types.ResultSuccess, result.Status)
	assert.Equal(t, "linux", result.Data["os"])
	assert.Equal(t, "probing 10.0.0.1", result.Summary)
	assert.Empty(t, result.ErrorCode)
}

func TestHandleTaskHostFailure(t *testing.T) {
	runner := remoteexec.NewStaticRunner()
	runner.SetOutcome("10.0.0.1", "linux.baseline", remoteexec.Outcome{
		Success: false,
		Stderr:  "permission denied",
	})
	e := New("linux", runner)

	result := e.HandleTask(context.Background(), newTestTask("linux.baseline", nil))

	assert.Equal(t, types.ResultError, result.Status)
	assert.True(t, result.Retriable, "a host-level failure is retriable")
	assert.Equal(t, "permission denied", result.Summary)
}

func TestHandleTaskUnknownAction(t *testing.T) {
	e := New("linux", remoteexec.NewStaticRunner())

	tests := []struct {
		name   string
		action string
	}{
		{"unknown verb", "linux.exfiltrate"},
		{"category mismatch", "windows.discover"},
		{"no category prefix", "discover"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := e.HandleTask(context.Background(), newTestTask(tt.action, nil))

			assert.Equal(t, types.ResultError, result.Status)
			assert.Equal(t, types.ErrorCodeUnknownAction, result.ErrorCode)
			assert.False(t, result.Retriable, "an unmappable action never becomes runnable")
		})
	}
}

func TestHandleTaskInvalidParams(t *testing.T) {
	e := New("linux", remoteexec.NewStaticRunner())

	// inject_vuln requires the vuln param
	result := e.HandleTask(context.Background(), newTestTask("linux.inject_vuln", nil))
	assert.Equal(t, ErrorCodeInvalidParams, result.ErrorCode)
	assert.False(t, result.Retriable)

	// every action requires the address param
	task := newTestTask("linux.discover", nil)
	delete(task.Params, AddressParam)
	result = e.HandleTask(context.Background(), task)
	assert.Equal(t, ErrorCodeInvalidParams, result.ErrorCode)
}

func TestHandleTaskCapabilityError(t *testing.T) {
	runner := remoteexec.NewStaticRunner()
	runner.SetError("10.0.0.1", "linux.discover", errors.New("connection refused"))
	e := New("linux", runner)

	result := e.HandleTask(context.Background(), newTestTask("linux.discover", nil))

	assert.Equal(t, types.ResultError, result.Status)
	assert.Equal(t, ErrorCodeCapabilityError, result.ErrorCode)
	assert.True(t, result.Retriable, "capability faults are transient")
	assert.Contains(t, result.Summary, "connection refused")
}

func TestPoolDeliversExactlyOneResultPerTask(t *testing.T) {
	q := queue.NewMemoryQueue()
	defer q.Close()
	b := bus.NewMemoryBus()
	defer b.Close()

	events, err := b.SubscribeResults(context.Background(), "m1")
	require.NoError(t, err)

	pool := NewPool(New("linux", remoteexec.NewStaticRunner()), q, b)
	require.NoError(t, pool.Start(context.Background(), 3))
	defer pool.Stop()

	const taskCount = 20
	published := make(map[types.TaskID]struct{}, taskCount)
	for i := 0; i < taskCount; i++ {
		task := newTestTask("linux.discover", nil)
		published[task.ID] = struct{}{}
		require.NoError(t, q.Publish(task))
	}

	seen := make(map[types.TaskID]int)
	deadline := time.After(5 * time.Second)
	for len(seen) < taskCount {
		select {
		case ev := <-events:
			seen[ev.TaskID]++
		case <-deadline:
			t.Fatalf("only %d/%d results arrived", len(seen), taskCount)
		}
	}

	for id := range published {
		assert.Equal(t, 1, seen[id], "task %s", id)
	}
	// no stragglers
	select {
	case ev := <-events:
		t.Errorf("extra result for %s", ev.TaskID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPoolSurvivesMissingSubscriber(t *testing.T) {
	q := queue.NewMemoryQueue()
	defer q.Close()
	b := bus.NewMemoryBus()
	defer b.Close()

	pool := NewPool(New("linux", remoteexec.NewStaticRunner()), q, b)
	require.NoError(t, pool.Start(context.Background(), 1))
	defer pool.Stop()

	// no subscriber for this mission: the result is discarded, the worker
	// moves on and still serves later missions
	orphan := newTestTask("linux.discover", nil)
	orphan.Mission = "m-cancelled"
	require.NoError(t, q.Publish(orphan))

	events, err := b.SubscribeResults(context.Background(), "m1")
	require.NoError(t, err)
	require.NoError(t, q.Publish(newTestTask("linux.discover", nil)))

	select {
	case ev := <-events:
		assert.Equal(t, types.MissionID("m1"), ev.Mission)
	case <-time.After(2 * time.Second):
		t.Fatal("worker stopped after orphaned result")
	}
}

func TestPoolStartTwice(t *testing.T) {
	q := queue.NewMemoryQueue()
	defer q.Close()
	b := bus.NewMemoryBus()
	defer b.Close()

	pool := NewPool(New("linux", remoteexec.NewStaticRunner()), q, b)
	require.NoError(t, pool.Start(context.Background(), 1))
	defer pool.Stop()

	assert.Error(t, pool.Start(context.Background(), 1))
}
