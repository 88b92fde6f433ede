// ============================================================================
// Missiond Planner - pluggable mission decision strategy
// ============================================================================
//
// Package: internal/planner
// Purpose: Pure decision functions picking follow-up tasks from current
// mission state and the latest outcome. The engine never contains rule
// logic; it hands state to the planner resolved for the mission's type and
// publishes whatever comes back (minus tasks for locked hosts).
//
// The default strategy is an ordered declarative rule table. Each rule
// matches on (action suffix, result status, optional fact predicate); the
// first matching rule for a host fires and the rest are skipped. A rule
// that would fire for a locked host is suppressed unconditionally.
//
// Other strategies (for example one consulting an external reasoning
// service) plug in behind the same interface, selected by mission type at
// mission-creation time.
//
// ============================================================================

package planner

import (
	"fmt"
	"strings"

	"github.com/rangeops/missiond/pkg/types"
)

// Planner decides what work a mission dispatches next. Implementations
// must be stateless and must not mutate the state they are handed.
type Planner interface {
	// InitialTasks produces the seed tasks for a freshly created mission:
	// by default one discovery task per non-locked host.
	InitialTasks(state *types.MissionState) []types.Task

	// NextTasks is invoked once per processed result event and returns the
	// follow-up tasks it implies, possibly none.
	NextTasks(state *types.MissionState, last types.ResultEvent) []types.Task
}

// Rule is one row of a declarative rule table.
type Rule struct {
	Name         string
	ActionSuffix string                          // matches the part after the final dot
	Status       types.ResultStatus              // required result status
	FactMatch    func(facts map[string]any) bool // optional predicate over accumulated host facts
	Emit         func(mission types.MissionID, host *types.HostState) []types.Task
}

// RulePlanner evaluates an ordered rule table, first match per host wins.
type RulePlanner struct {
	rules []Rule
}

// NewRulePlanner builds a planner over the given rule table.
func NewRulePlanner(rules []Rule) *RulePlanner {
	return &RulePlanner{rules: rules}
}

// InitialTasks seeds one discovery task per non-locked host.
func (p *RulePlanner) InitialTasks(state *types.MissionState) []types.Task {
	var tasks []types.Task
	for _, host := range state.Hosts {
		if host.Locked {
			continue
		}
		tasks = append(tasks, NewTask(state.ID, host, actionFor(host, "discover"), nil))
	}
	return tasks
}

// NextTasks applies the rule table to the event's host.
func (p *RulePlanner) NextTasks(state *types.MissionState, last types.ResultEvent) []types.Task {
	host, ok := state.Hosts[last.Host]
	if !ok || host.Locked {
		return nil
	}
	for _, rule := range p.rules {
		if !matches(rule, host, last) {
			continue
		}
		return rule.Emit(state.ID, host)
	}
	return nil
}

func matches(rule Rule, host *types.HostState, last types.ResultEvent) bool {
	if rule.Status != last.Status {
		return false
	}
	if rule.ActionSuffix != "" && ActionSuffix(last.Action) != rule.ActionSuffix {
		return false
	}
	if rule.FactMatch != nil && !rule.FactMatch(host.Facts) {
		return false
	}
	return true
}

// NewTask builds a task addressed to the host, categorized by its family.
// The host address rides along in the reserved "address" param so
// executors never need mission state.
func NewTask(mission types.MissionID, host *types.HostState, action string, params map[string]string) types.Task {
	merged := make(map[string]string, len(params)+1)
	for k, v := range params {
		merged[k] = v
	}
	merged["address"] = host.Address
	return types.Task{
		ID:       types.NewTaskID(),
		Mission:  mission,
		Host:     host.ID,
		Category: host.Family,
		Action:   action,
		Params:   merged,
	}
}

// ActionSuffix extracts the verb from a dotted action name:
// "linux.discover" -> "discover".
func ActionSuffix(action string) string {
	if i := strings.LastIndex(action, "."); i >= 0 {
		return action[i+1:]
	}
	return action
}

func actionFor(host *types.HostState, verb string) string {
	return fmt.Sprintf("%s.%s", host.Family, verb)
}
