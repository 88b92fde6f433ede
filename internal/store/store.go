// Package store persists mission state. Every engine transition saves the
// whole MissionState snapshot; there are no field-level writes. The store
// is shared across engines but partitioned by mission id, so concurrent
// saves never touch the same record.
package store

import (
	"errors"

	"github.com/rangeops/missiond/pkg/types"
)

var (
	// ErrMissionNotFound is returned by Load for an unknown mission id.
	ErrMissionNotFound = errors.New("mission not found")
)

// MissionStore is the durable key-value persistence for mission state.
// Start with the in-memory implementation for dev/tests; the file, sqlite
// and consul backends persist across restarts.
type MissionStore interface {
	// Load returns the stored state for the mission, or ErrMissionNotFound.
	Load(id types.MissionID) (*types.MissionState, error)

	// Save persists the full state, overwriting any prior record. Callers
	// must not treat an in-memory mutation as committed until Save returns
	// nil.
	Save(state *types.MissionState) error

	// List returns the ids of all stored missions.
	List() ([]types.MissionID, error)

	// Close releases backend resources.
	Close() error
}
