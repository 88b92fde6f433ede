package planner

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps mission types to planner strategies. Mission type is the
// only planner selector; resolution happens once, at mission creation.
type Registry struct {
	mu       sync.RWMutex
	planners map[string]Planner
}

// NewRegistry returns a registry preloaded with the built-in mission types.
func NewRegistry() *Registry {
	r := &Registry{planners: make(map[string]Planner)}
	r.Register("default", NewDefaultPlanner())
	r.Register("recon", NewReconPlanner())
	return r
}

// Register installs (or replaces) the planner for a mission type.
func (r *Registry) Register(missionType string, p Planner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.planners[missionType] = p
}

// Resolve returns the planner for a mission type. Unknown types are
// rejected; mission creation is the validation boundary, there is no
// silent fallback.
func (r *Registry) Resolve(missionType string) (Planner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.planners[missionType]
	if !ok {
		return nil, fmt.Errorf("unknown mission type %q", missionType)
	}
	return p, nil
}

// Types lists the registered mission types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.planners))
	for t := range r.planners {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
