package store

import (
	"sort"
	"sync"

	"github.com/rangeops/missiond/pkg/types"
)

// MemoryStore is a simple in-memory MissionStore, intended for dev and
// tests. Records are deep-copied on both Save and Load so callers never
// share state with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	missions map[types.MissionID]*types.MissionState
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{missions: make(map[types.MissionID]*types.MissionState)}
}

func (s *MemoryStore) Load(id types.MissionID) (*types.MissionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.missions[id]
	if !ok {
		return nil, ErrMissionNotFound
	}
	return m.Clone(), nil
}

func (s *MemoryStore) Save(state *types.MissionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.missions[state.ID] = state.Clone()
	return nil
}

func (s *MemoryStore) List() ([]types.MissionID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]types.MissionID, 0, len(s.missions))
	for id := range s.missions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *MemoryStore) Close() error { return nil }
