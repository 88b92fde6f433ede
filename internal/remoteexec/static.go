package remoteexec

import (
	"context"
	"fmt"
	"sync"
)

// StaticRunner serves scripted outcomes keyed by "<address>/<action>",
// recording every invocation. For tests and demos.
type StaticRunner struct {
	mu       sync.Mutex
	outcomes map[string]Outcome
	errs     map[string]error
	calls    []string
}

// NewStaticRunner creates an empty scripted runner. Actions without a
// scripted outcome succeed with no facts.
func NewStaticRunner() *StaticRunner {
	return &StaticRunner{
		outcomes: make(map[string]Outcome),
		errs:     make(map[string]error),
	}
}

func key(address, action string) string { return address + "/" + action }

// SetOutcome scripts the outcome for an (address, action) pair.
func (r *StaticRunner) SetOutcome(address, action string, out Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[key(address, action)] = out
}

// SetError scripts a capability-level failure for an (address, action) pair.
func (r *StaticRunner) SetError(address, action string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[key(address, action)] = err
}

func (r *StaticRunner) Run(ctx context.Context, address, action string, params map[string]string) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(address, action)
	r.calls = append(r.calls, k)
	if err, ok := r.errs[k]; ok {
		return Outcome{}, fmt.Errorf("scripted failure for %s: %w", k, err)
	}
	if out, ok := r.outcomes[k]; ok {
		return out, nil
	}
	return Outcome{Success: true}, nil
}

// Calls returns the "<address>/<action>" keys seen so far, in order.
func (r *StaticRunner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}
