package rule

import (
	"fmt"

	"github.com/skovalik/cognograph/errors"
	"github.com/skovalik/cognograph/types/graph"
)

// TriggerType identifies one of the closed set of trigger variants. The
// matcher switches exhaustively over these; Validate keeps unknown values
// out of the registry so the matcher's default arm is unreachable in
// practice.
type TriggerType string

const (
	// TriggerManual fires only via explicit invocation, never via matching.
	TriggerManual TriggerType = "manual"
	// TriggerPropertyChange fires on a node data property change, with
	// optional property/old/new/node-type filters.
	TriggerPropertyChange TriggerType = "property-change"
	// TriggerNodeCreated fires when a node is added, with an optional
	// node-type filter.
	TriggerNodeCreated TriggerType = "node-created"
	// TriggerConnectionMade fires when an edge touching the node is created,
	// with optional direction and peer-type filters.
	TriggerConnectionMade TriggerType = "connection-made"
	// TriggerConnectionCount fires when an edge change brings the node's
	// live connection count across a threshold.
	TriggerConnectionCount TriggerType = "connection-count"
	// TriggerIsolation fires when an edge removal leaves the node with zero
	// connections.
	TriggerIsolation TriggerType = "isolation"
	// TriggerChildrenComplete fires when all (or any) direct children of the
	// rule's node reach a target property value.
	TriggerChildrenComplete TriggerType = "children-complete"
	// TriggerAncestorChange fires when a node that has descendants changes
	// the configured property.
	TriggerAncestorChange TriggerType = "ancestor-change"
	// TriggerRegionEnter fires when a node enters the configured region.
	TriggerRegionEnter TriggerType = "region-enter"
	// TriggerRegionExit fires when a node exits the configured region.
	TriggerRegionExit TriggerType = "region-exit"
	// TriggerClusterSize fires when a region's membership count crosses a
	// threshold as a node enters or exits it.
	TriggerClusterSize TriggerType = "cluster-size"
	// TriggerProximity fires when a moving node crosses a distance threshold
	// around a target node, in the configured direction.
	TriggerProximity TriggerType = "proximity"
	// TriggerSchedule fires on schedule ticks.
	TriggerSchedule TriggerType = "schedule"
)

// IsValid checks if the TriggerType is one of the defined constants.
func (t TriggerType) IsValid() bool {
	switch t {
	case TriggerManual, TriggerPropertyChange, TriggerNodeCreated,
		TriggerConnectionMade, TriggerConnectionCount, TriggerIsolation,
		TriggerChildrenComplete, TriggerAncestorChange,
		TriggerRegionEnter, TriggerRegionExit, TriggerClusterSize,
		TriggerProximity, TriggerSchedule:
		return true
	default:
		return false
	}
}

// Comparison selects how a computed count is compared to a threshold.
type Comparison string

const (
	// CompareGTE passes when count >= threshold.
	CompareGTE Comparison = "gte"
	// CompareLTE passes when count <= threshold.
	CompareLTE Comparison = "lte"
	// CompareEQ passes when count == threshold.
	CompareEQ Comparison = "eq"
)

// Apply evaluates the comparison. An empty comparison defaults to gte.
func (c Comparison) Apply(count, threshold int) bool {
	switch c {
	case CompareLTE:
		return count <= threshold
	case CompareEQ:
		return count == threshold
	default:
		return count >= threshold
	}
}

// IsValid checks if the Comparison is one of the defined constants.
// Empty is valid and defaults to gte.
func (c Comparison) IsValid() bool {
	switch c {
	case CompareGTE, CompareLTE, CompareEQ, "":
		return true
	default:
		return false
	}
}

// ProximityDirection selects which threshold crossing a proximity trigger
// reacts to.
type ProximityDirection string

const (
	// ProximityEntering fires on an outside-to-inside crossing.
	ProximityEntering ProximityDirection = "entering"
	// ProximityExiting fires on an inside-to-outside crossing.
	ProximityExiting ProximityDirection = "exiting"
)

// Trigger is the declarative condition under which a rule becomes eligible
// to run. Type discriminates the variant; the remaining fields are
// variant-specific configuration and are ignored by variants that do not
// use them. Filter fields left empty match anything.
type Trigger struct {
	Type TriggerType `json:"type"`

	// property-change, children-complete, ancestor-change
	Property string `json:"property,omitempty"`
	OldValue any    `json:"old_value,omitempty"`
	NewValue any    `json:"new_value,omitempty"`

	// property-change, node-created
	NodeType string `json:"node_type,omitempty"`

	// connection-made, connection-count
	Direction graph.Direction `json:"direction,omitempty"`
	PeerType  string          `json:"peer_type,omitempty"`

	// connection-count, cluster-size
	Comparison Comparison `json:"comparison,omitempty"`
	Threshold  int        `json:"threshold,omitempty"`

	// children-complete
	TargetValue any  `json:"target_value,omitempty"`
	RequireAll  bool `json:"require_all,omitempty"`

	// region-enter, region-exit, cluster-size
	RegionID string `json:"region_id,omitempty"`

	// proximity
	TargetNodeID       string             `json:"target_node_id,omitempty"`
	Distance           float64            `json:"distance,omitempty"`
	ProximityDirection ProximityDirection `json:"proximity_direction,omitempty"`
}

// Validate checks the trigger's variant-specific configuration. Rules with
// invalid triggers are rejected at registration time rather than silently
// never firing.
func (t *Trigger) Validate() error {
	if !t.Type.IsValid() {
		return errors.WrapInvalid(errors.ErrInvalidData, "Trigger", "Validate",
			fmt.Sprintf("unknown trigger type %q", t.Type))
	}

	switch t.Type {
	case TriggerConnectionMade:
		if !t.Direction.IsValid() {
			return errors.WrapInvalid(errors.ErrInvalidData, "Trigger", "Validate",
				fmt.Sprintf("unknown direction %q", t.Direction))
		}

	case TriggerConnectionCount:
		if !t.Direction.IsValid() {
			return errors.WrapInvalid(errors.ErrInvalidData, "Trigger", "Validate",
				fmt.Sprintf("unknown direction %q", t.Direction))
		}
		if !t.Comparison.IsValid() {
			return errors.WrapInvalid(errors.ErrInvalidData, "Trigger", "Validate",
				fmt.Sprintf("unknown comparison %q", t.Comparison))
		}
		if t.Threshold < 0 {
			return errors.WrapInvalid(errors.ErrInvalidData, "Trigger", "Validate",
				"threshold cannot be negative")
		}

	case TriggerChildrenComplete, TriggerAncestorChange:
		if t.Property == "" {
			return errors.WrapInvalid(errors.ErrInvalidData, "Trigger", "Validate",
				fmt.Sprintf("%s trigger requires a property name", t.Type))
		}

	case TriggerRegionEnter, TriggerRegionExit:
		if t.RegionID == "" {
			return errors.WrapInvalid(errors.ErrInvalidData, "Trigger", "Validate",
				fmt.Sprintf("%s trigger requires a region id", t.Type))
		}

	case TriggerClusterSize:
		if t.RegionID == "" {
			return errors.WrapInvalid(errors.ErrInvalidData, "Trigger", "Validate",
				"cluster-size trigger requires a region id")
		}
		if !t.Comparison.IsValid() {
			return errors.WrapInvalid(errors.ErrInvalidData, "Trigger", "Validate",
				fmt.Sprintf("unknown comparison %q", t.Comparison))
		}
		if t.Threshold < 0 {
			return errors.WrapInvalid(errors.ErrInvalidData, "Trigger", "Validate",
				"threshold cannot be negative")
		}

	case TriggerProximity:
		if t.TargetNodeID == "" {
			return errors.WrapInvalid(errors.ErrInvalidData, "Trigger", "Validate",
				"proximity trigger requires a target node id")
		}
		if t.Distance <= 0 {
			return errors.WrapInvalid(errors.ErrInvalidData, "Trigger", "Validate",
				"proximity distance must be positive")
		}
		if t.ProximityDirection != ProximityEntering && t.ProximityDirection != ProximityExiting {
			return errors.WrapInvalid(errors.ErrInvalidData, "Trigger", "Validate",
				fmt.Sprintf("unknown proximity direction %q", t.ProximityDirection))
		}
	}

	return nil
}
