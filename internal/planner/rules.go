package planner

import (
	"encoding/json"

	"github.com/rangeops/missiond/pkg/types"
)

// Canonical default rule set:
//  1. successful discovery schedules the host's baseline configuration
//  2. successful baseline on a host whose facts show a listening web
//     service schedules a web vulnerability injection
//  3. anything else yields no new tasks (rule table falls through)
func defaultRules() []Rule {
	return []Rule{
		{
			Name:         "discover-to-baseline",
			ActionSuffix: "discover",
			Status:       types.ResultSuccess,
			Emit: func(mission types.MissionID, host *types.HostState) []types.Task {
				return []types.Task{NewTask(mission, host, actionFor(host, "baseline"), nil)}
			},
		},
		{
			Name:         "baseline-to-web-vuln",
			ActionSuffix: "baseline",
			Status:       types.ResultSuccess,
			FactMatch:    HasWebService,
			Emit: func(mission types.MissionID, host *types.HostState) []types.Task {
				return []types.Task{NewTask(mission, host, actionFor(host, "inject_vuln"), map[string]string{
					"vuln":    "sql_injection",
					"service": "http",
				})}
			},
		},
	}
}

// NewDefaultPlanner returns the canonical rule planner.
func NewDefaultPlanner() Planner {
	return NewRulePlanner(defaultRules())
}

// NewReconPlanner only seeds discovery; discovered hosts get no follow-ups.
func NewReconPlanner() Planner {
	return NewRulePlanner(nil)
}

// webPorts are treated as evidence of a listening web service.
var webPorts = map[int]struct{}{80: {}, 443: {}, 8080: {}, 8443: {}}

// HasWebService reports whether accumulated facts indicate a web service:
// either an "open_ports" list containing a web port, or a "services" list
// naming http/https.
func HasWebService(facts map[string]any) bool {
	if ports, ok := facts["open_ports"]; ok {
		for _, p := range toInts(ports) {
			if _, web := webPorts[p]; web {
				return true
			}
		}
	}
	if services, ok := facts["services"].([]any); ok {
		for _, s := range services {
			if name, ok := s.(string); ok && (name == "http" || name == "https") {
				return true
			}
		}
	}
	return false
}

// toInts normalizes the port list across in-memory ints and the
// json.Number/float64 shapes a store round-trip produces.
func toInts(v any) []int {
	var out []int
	switch list := v.(type) {
	case []int:
		out = list
	case []any:
		for _, item := range list {
			switch n := item.(type) {
			case int:
				out = append(out, n)
			case float64:
				out = append(out, int(n))
			case json.Number:
				if i, err := n.Int64(); err == nil {
					out = append(out, int(i))
				}
			}
		}
	}
	return out
}
