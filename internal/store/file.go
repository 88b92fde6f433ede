package store

// ============================================================================
// File-backed MissionStore
// Responsibilities:
// 1. One JSON document per mission under the store directory
// 2. Atomic writes (temp file + rename) so a crash never leaves a torn record
// 3. Whole-record overwrite on every Save, matching the snapshot contract
// ============================================================================

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rangeops/missiond/pkg/types"
)

var (
	// ErrCorruptedRecord is returned when a stored mission fails to parse.
	ErrCorruptedRecord = errors.New("mission record is corrupted")
)

// FileStore keeps each mission as <dir>/<mission_id>.json.
type FileStore struct {
	dir string
	mu  sync.Mutex // serializes the temp-file dance per process
}

// NewFileStore creates the store directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(id types.MissionID) string {
	return filepath.Join(s.dir, string(id)+".json")
}

func (s *FileStore) Load(id types.MissionID) (*types.MissionState, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrMissionNotFound
		}
		return nil, fmt.Errorf("read mission record: %w", err)
	}
	var state types.MissionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCorruptedRecord, id)
	}
	return &state, nil
}

func (s *FileStore) Save(state *types.MissionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal mission record: %w", err)
	}

	// Atomic write: temp file first, then rename over the live record.
	target := s.path(state.ID)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp mission record: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename mission record: %w", err)
	}
	return nil
}

func (s *FileStore) List() ([]types.MissionID, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read store dir: %w", err)
	}
	var ids []types.MissionID
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, types.MissionID(strings.TrimSuffix(name, ".json")))
	}
	return ids, nil
}

func (s *FileStore) Close() error { return nil }
