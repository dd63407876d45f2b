package automation

import (
	"github.com/skovalik/cognograph/automation/expression"
	"github.com/skovalik/cognograph/types/graph"
	"github.com/skovalik/cognograph/types/rule"
)

// evaluateConditions checks a rule's guard conditions against the current
// snapshot. AND semantics with short-circuit; an empty list passes. Every
// failure path is closed: an unresolvable target node, a missing field with
// a value-expecting operator, or an operator error all evaluate false rather
// than erroring, so one bad rule cannot abort evaluation of others.
func (e *Engine) evaluateConditions(r *rule.Rule, event rule.Event, snap *graph.Snapshot) bool {
	for i := range r.Conditions {
		cond := &r.Conditions[i]

		node := e.resolveConditionTarget(cond, r.ID, event, snap)
		if node == nil {
			e.logger.Debug("Condition target not found",
				"rule_id", r.ID, "target", cond.Target, "specific_node_id", cond.SpecificNodeID)
			return false
		}

		fieldValue, _ := expression.FieldValue(node.Data, cond.Field)

		passed, err := e.eval.Evaluate(cond.Operator, fieldValue, cond.Value)
		if err != nil {
			e.logger.Debug("Condition evaluation failed",
				"rule_id", r.ID, "field", cond.Field, "operator", cond.Operator, "error", err)
			return false
		}
		if !passed {
			return false
		}
	}
	return true
}

func (e *Engine) resolveConditionTarget(cond *rule.Condition, ruleID string, event rule.Event, snap *graph.Snapshot) *graph.Node {
	switch cond.Target {
	case rule.TargetTriggerNode:
		return snap.Node(event.SourceNodeID)
	case rule.TargetRuleNode:
		return snap.Node(ruleID)
	case rule.TargetSpecificNode:
		return snap.Node(cond.SpecificNodeID)
	default:
		return nil
	}
}
