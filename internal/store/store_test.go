package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rangeops/missiond/pkg/types"
)

func newTestState(id types.MissionID) *types.MissionState {
	h1 := types.NewHostState("h1", "linux", "10.0.0.1")
	h1.MergeFacts(map[string]any{"os": "linux", "open_ports": []any{22.0, 80.0}})
	state := types.NewMissionState(id, "default", []*types.HostState{h1})
	state.MarkPending(types.Task{ID: "t-1", Mission: id, Host: "h1"})
	state.MarkPending(types.Task{ID: "t-2", Mission: id, Host: "h1"})
	state.MarkCompleted("t-1")
	return state
}

// every backend honors the same contract
func openBackends(t *testing.T) map[string]MissionStore {
	t.Helper()
	fileStore, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	sqliteStore, err := NewSQLiteStore(filepath.Join(t.TempDir(), "missions.db"))
	require.NoError(t, err)
	return map[string]MissionStore{
		"memory": NewMemoryStore(),
		"file":   fileStore,
		"sqlite": sqliteStore,
	}
}

func TestSaveAndLoadRoundtrip(t *testing.T) {
	for name, s := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()

			original := newTestState("m1")
			require.NoError(t, s.Save(original))

			loaded, err := s.Load("m1")
			require.NoError(t, err)

			assert.Equal(t, original.ID, loaded.ID)
			assert.Equal(t, original.Type, loaded.Type)
			assert.Len(t, loaded.Hosts, 1)
			assert.Equal(t, original.Hosts["h1"].Address, loaded.Hosts["h1"].Address)
			assert.True(t, loaded.IsPending("t-2"))
			assert.False(t, loaded.IsPending("t-1"))
			assert.Contains(t, loaded.DoneTask, types.TaskID("t-1"))
			assert.Equal(t, []types.TaskID{"t-1", "t-2"}, loaded.Hosts["h1"].TaskHistory)
		})
	}
}

func TestSaveOverwritesWholeRecord(t *testing.T) {
	for name, s := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()

			state := newTestState("m1")
			require.NoError(t, s.Save(state))

			state.MarkCompleted("t-2")
			state.Hosts["h1"].FailureCount = 2
			state.Touch()
			require.NoError(t, s.Save(state))

			loaded, err := s.Load("m1")
			require.NoError(t, err)
			assert.False(t, loaded.IsPending("t-2"))
			assert.Equal(t, 2, loaded.Hosts["h1"].FailureCount)
		})
	}
}

func TestLoadUnknownMission(t *testing.T) {
	for name, s := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()

			_, err := s.Load("m-missing")
			assert.ErrorIs(t, err, ErrMissionNotFound)
		})
	}
}

func TestList(t *testing.T) {
	for name, s := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()

			require.NoError(t, s.Save(newTestState("m-b")))
			require.NoError(t, s.Save(newTestState("m-a")))

			ids, err := s.List()
			require.NoError(t, err)
			assert.ElementsMatch(t, []types.MissionID{"m-a", "m-b"}, ids)
		})
	}
}

func TestMemoryStoreIsolatesCallers(t *testing.T) {
	s := NewMemoryStore()
	state := newTestState("m1")
	require.NoError(t, s.Save(state))

	// mutating what we saved or loaded must not leak into the store
	state.Hosts["h1"].FailureCount = 99
	loaded, err := s.Load("m1")
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Hosts["h1"].FailureCount)

	loaded.Hosts["h1"].Facts["os"] = "windows"
	again, err := s.Load("m1")
	require.NoError(t, err)
	assert.Equal(t, "linux", again.Hosts["h1"].Facts["os"])
}

func TestFileStoreCorruptedRecord(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "m-bad.json"), []byte("{not json"), 0o644))

	_, err = s.Load("m-bad")
	assert.ErrorIs(t, err, ErrCorruptedRecord)
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save(newTestState("m1")))
	require.NoError(t, s.Close())

	reopened, err := NewFileStore(dir)
	require.NoError(t, err)
	loaded, err := reopened.Load("m1")
	require.NoError(t, err)
	assert.Equal(t, types.MissionID("m1"), loaded.ID)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missions.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	state := newTestState("m1")
	state.UpdatedAt = time.Now()
	require.NoError(t, s.Save(state))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()
	loaded, err := reopened.Load("m1")
	require.NoError(t, err)
	assert.True(t, loaded.IsPending("t-2"))
}

func TestOpenBackendSelection(t *testing.T) {
	s, err := Open("memory", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open("file", t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	_, err = Open("etcd", "")
	assert.Error(t, err)
}
