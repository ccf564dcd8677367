package core

import (
	"sort"

	"appletcore/pkg/domain"
)

type (
	Rule        = domain.Rule
	RulesEngine = domain.RulesEngine
	Result      = domain.Result
	Violation   = domain.Violation
	Change      = domain.Change
)

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in integrity rules.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewFlowItemClosureRule())
	engine.Register(NewHistoryParityRule())
	return engine
}

// touchedApplets returns the sorted applet ids whose tree or history rows
// changed. Event link changes alone do not touch an applet.
func touchedApplets(changes []Change) []string {
	seen := map[string]struct{}{}
	for _, c := range changes {
		if c.AppletID == "" || c.Entity == domain.EntityEventLink {
			continue
		}
		seen[c.AppletID] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
