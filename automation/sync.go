package automation

import "github.com/skovalik/cognograph/types/rule"

// SyncRules rebuilds the rule registry from the graph store. Full-table
// rebuild, safe to call repeatedly: disabled, deleted, and invalid rules
// drop out; new enabled rules register. Debounce timers for rules that
// dropped out are cancelled so a pending execution cannot resurrect an
// unregistered rule.
func (e *Engine) SyncRules() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}

	fresh := make(map[string]rule.Rule)
	for _, r := range e.graph.Rules() {
		if !r.Enabled {
			continue
		}
		if err := r.Validate(); err != nil {
			e.logger.Warn("Skipping invalid rule during sync", "rule_id", r.ID, "error", err)
			continue
		}
		fresh[r.ID] = r
	}

	for key, timer := range e.timers {
		if _, stillRegistered := fresh[key.ruleID]; !stillRegistered {
			timer.Stop()
			delete(e.timers, key)
		}
	}
	for key := range e.proximity {
		if _, stillRegistered := fresh[key.ruleID]; !stillRegistered {
			delete(e.proximity, key)
		}
	}

	e.rules = fresh
	if e.metrics != nil {
		e.metrics.updateRuleCount(len(fresh))
		e.metrics.updatePendingTimers(len(e.timers))
	}

	e.logger.Debug("Rule registry synced", "rule_count", len(fresh))
}
