package store

import (
	"fmt"
)

// Open constructs the MissionStore selected by the config's store.backend.
// path carries the directory (file), database path (sqlite) or agent
// address (consul); memory ignores it.
func Open(backend, path string) (MissionStore, error) {
	switch backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "file":
		return NewFileStore(path)
	case "sqlite":
		return NewSQLiteStore(path)
	case "consul":
		return openConsul(path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
