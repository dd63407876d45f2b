package automation

import (
	"github.com/skovalik/cognograph/automation/expression"
	"github.com/skovalik/cognograph/geo"
	"github.com/skovalik/cognograph/types/graph"
	"github.com/skovalik/cognograph/types/rule"
)

// matches decides whether a rule's trigger fires for an event. Called with
// e.mu held: the proximity variant records its per-(rule, moving node)
// observation on every call, matched or not.
func (e *Engine) matches(r *rule.Rule, event rule.Event, snap *graph.Snapshot) bool {
	t := &r.Trigger

	switch t.Type {
	case rule.TriggerManual:
		// Manual triggers bypass matching entirely.
		return false

	case rule.TriggerPropertyChange:
		if event.Type != rule.EventPropertyChange || event.Property == nil {
			return false
		}
		if t.Property != "" && t.Property != event.Property.Name {
			return false
		}
		if t.OldValue != nil && !e.looseEqual(event.Property.OldValue, t.OldValue) {
			return false
		}
		if t.NewValue != nil && !e.looseEqual(event.Property.NewValue, t.NewValue) {
			return false
		}
		if t.NodeType != "" {
			node := snap.Node(event.SourceNodeID)
			if node == nil || node.Type != t.NodeType {
				return false
			}
		}
		return true

	case rule.TriggerNodeCreated:
		if event.Type != rule.EventNodeCreated {
			return false
		}
		if t.NodeType != "" {
			node := snap.Node(event.SourceNodeID)
			if node == nil || node.Type != t.NodeType {
				return false
			}
		}
		return true

	case rule.TriggerConnectionMade:
		if event.Type != rule.EventConnectionMade || event.Connection == nil {
			return false
		}
		if t.Direction != "" && t.Direction != graph.DirectionAny &&
			t.Direction != event.Connection.Direction {
			return false
		}
		if t.PeerType != "" && t.PeerType != event.Connection.PeerType {
			return false
		}
		return true

	case rule.TriggerConnectionCount:
		if event.Type != rule.EventConnectionMade && event.Type != rule.EventConnectionRemoved {
			return false
		}
		// Count live edges at match time rather than from the event
		// payload. Multiple edge changes inside one debounce window are
		// therefore observed at their final count.
		count := snap.ConnectionCount(event.SourceNodeID, t.Direction)
		return t.Comparison.Apply(count, t.Threshold)

	case rule.TriggerIsolation:
		if event.Type != rule.EventConnectionRemoved {
			return false
		}
		return snap.ConnectionCount(event.SourceNodeID, graph.DirectionAny) == 0

	case rule.TriggerChildrenComplete:
		if event.Type != rule.EventPropertyChange || event.Property == nil {
			return false
		}
		if t.Property != event.Property.Name {
			return false
		}
		return e.childrenComplete(r.ID, t, snap)

	case rule.TriggerAncestorChange:
		if event.Type != rule.EventPropertyChange || event.Property == nil {
			return false
		}
		if t.Property != event.Property.Name {
			return false
		}
		return snap.HasDescendants(event.SourceNodeID)

	case rule.TriggerRegionEnter:
		return event.Type == rule.EventNodePositionChange &&
			event.Position != nil &&
			event.Position.EnteredRegionID == t.RegionID

	case rule.TriggerRegionExit:
		return event.Type == rule.EventNodePositionChange &&
			event.Position != nil &&
			event.Position.ExitedRegionID == t.RegionID

	case rule.TriggerClusterSize:
		if event.Type != rule.EventNodePositionChange || event.Position == nil {
			return false
		}
		if event.Position.EnteredRegionID != t.RegionID &&
			event.Position.ExitedRegionID != t.RegionID {
			return false
		}
		count := e.regions.MembershipCount(t.RegionID)
		return t.Comparison.Apply(count, t.Threshold)

	case rule.TriggerProximity:
		if event.Type != rule.EventNodePositionChange {
			return false
		}
		return e.proximityCrossed(r.ID, t, event.SourceNodeID, snap)

	case rule.TriggerSchedule:
		return event.Type == rule.EventScheduleTick

	default:
		// Unreachable: Validate rejects unknown trigger types at sync time.
		e.logger.Error("Unknown trigger type in matcher", "trigger_type", t.Type, "rule_id", r.ID)
		return false
	}
}

// childrenComplete reports whether all (or any) nodes one outgoing edge away
// from the rule's node carry the target property value. Zero children never
// fires.
func (e *Engine) childrenComplete(ruleID string, t *rule.Trigger, snap *graph.Snapshot) bool {
	children := snap.Children(ruleID)
	if len(children) == 0 {
		return false
	}

	for _, child := range children {
		value, _ := expression.FieldValue(child.Data, t.Property)
		match := e.looseEqual(value, t.TargetValue)
		if t.RequireAll && !match {
			return false
		}
		if !t.RequireAll && match {
			return true
		}
	}
	return t.RequireAll
}

// proximityCrossed compares the moving node's current within-threshold state
// against the remembered state for this (rule, moving node) pair, firing
// only on a crossing in the configured direction. The first observation for
// a pair records state without firing. The memory is updated on every call.
func (e *Engine) proximityCrossed(ruleID string, t *rule.Trigger, movingNodeID string, snap *graph.Snapshot) bool {
	moving := snap.Node(movingNodeID)
	target := snap.Node(t.TargetNodeID)
	if moving == nil || target == nil || movingNodeID == t.TargetNodeID {
		return false
	}

	dist := geo.Distance(
		moving.Bounds(e.config.DefaultNodeWidth, e.config.DefaultNodeHeight),
		target.Bounds(e.config.DefaultNodeWidth, e.config.DefaultNodeHeight),
	)
	within := dist <= t.Distance

	key := proximityKey{ruleID: ruleID, movingNodeID: movingNodeID}
	previous, seen := e.proximity[key]
	e.proximity[key] = within

	if !seen {
		return false
	}

	switch t.ProximityDirection {
	case rule.ProximityEntering:
		return !previous && within
	case rule.ProximityExiting:
		return previous && !within
	default:
		return false
	}
}

// looseEqual compares two values with numeric and string coercion, matching
// how condition equality behaves.
func (e *Engine) looseEqual(a, b any) bool {
	equal, err := e.eval.Evaluate(rule.OpEquals, a, b)
	return err == nil && equal
}
