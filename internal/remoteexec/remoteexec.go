// Package remoteexec is the boundary to the external remote-execution
// capability: given a host address, an action and parameters, it performs
// the action and reports the raw outcome. Implementations are expected to
// be idempotent per action; the engine relies on that for best-effort
// cancellation and external retries.
package remoteexec

import (
	"context"
)

// MaxExcerpt caps the stdout/stderr excerpts carried in an Outcome.
const MaxExcerpt = 4 * 1024

// Outcome is the raw result of executing one action against one host.
type Outcome struct {
	Success bool
	Facts   map[string]any
	Stdout  string
	Stderr  string
}

// Runner executes named actions against remote hosts. A returned error
// means the capability itself could not perform the action (connectivity,
// missing procedure); an unsuccessful Outcome with a nil error means the
// action ran and failed on the host.
type Runner interface {
	Run(ctx context.Context, address, action string, params map[string]string) (Outcome, error)
}

// Truncate clips an excerpt to MaxExcerpt bytes.
func Truncate(s string) string {
	if len(s) <= MaxExcerpt {
		return s
	}
	return s[:MaxExcerpt]
}
