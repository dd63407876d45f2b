// Package rule defines the automation rule model: triggers, conditions,
// opaque action steps and run statistics, plus the events the engine
// consumes and the collaborator interfaces it depends on.
package rule

import (
	"fmt"

	"github.com/skovalik/cognograph/errors"
)

// ConditionTarget selects which node a condition reads its field from.
type ConditionTarget string

const (
	// TargetTriggerNode reads from the event's source node.
	TargetTriggerNode ConditionTarget = "trigger-node"
	// TargetRuleNode reads from the rule's own node.
	TargetRuleNode ConditionTarget = "rule-node"
	// TargetSpecificNode reads from an explicitly named node.
	TargetSpecificNode ConditionTarget = "specific-node"
)

// Operator constants for condition evaluation.
const (
	OpEquals      = "eq"
	OpNotEquals   = "ne"
	OpContains    = "contains"
	OpNotContains = "not_contains"
	OpGreaterThan = "gt"
	OpLessThan    = "lt"
	OpIsEmpty     = "is_empty"
	OpIsNotEmpty  = "is_not_empty"
	OpRegex       = "regex"
)

// knownOperators is the closed set accepted by Condition.Validate.
var knownOperators = map[string]bool{
	OpEquals:      true,
	OpNotEquals:   true,
	OpContains:    true,
	OpNotContains: true,
	OpGreaterThan: true,
	OpLessThan:    true,
	OpIsEmpty:     true,
	OpIsNotEmpty:  true,
	OpRegex:       true,
}

// Condition is a single guard: a dot-path field on a target node compared
// against a literal. A rule's condition list is AND-ed; an empty list
// always passes.
type Condition struct {
	Target         ConditionTarget `json:"target"`
	SpecificNodeID string          `json:"specific_node_id,omitempty"`
	Field          string          `json:"field"`
	Operator       string          `json:"operator"`
	Value          any             `json:"value,omitempty"`
}

// Validate checks the condition's shape at registration time.
func (c *Condition) Validate() error {
	switch c.Target {
	case TargetTriggerNode, TargetRuleNode:
	case TargetSpecificNode:
		if c.SpecificNodeID == "" {
			return errors.WrapInvalid(errors.ErrInvalidData, "Condition", "Validate",
				"specific-node target requires a node id")
		}
	default:
		return errors.WrapInvalid(errors.ErrInvalidData, "Condition", "Validate",
			fmt.Sprintf("unknown condition target %q", c.Target))
	}

	if c.Field == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "Condition", "Validate",
			"condition field is required")
	}
	if !knownOperators[c.Operator] {
		return errors.WrapInvalid(errors.ErrInvalidData, "Condition", "Validate",
			fmt.Sprintf("unknown operator %q", c.Operator))
	}
	return nil
}

// Step is one opaque action step. The engine hands steps to the external
// StepExecutor without interpreting them.
type Step map[string]any

// RunStats are the only rule fields the engine ever writes back.
type RunStats struct {
	RunCount   int    `json:"run_count"`
	ErrorCount int    `json:"error_count"`
	LastRun    int64  `json:"last_run,omitempty"` // unix milliseconds, 0 = never
	LastError  string `json:"last_error,omitempty"`
}

// Rule is one automation rule, attached to one graph node (Rule.ID is that
// node's id). The engine treats Trigger, Conditions and Steps as read-only.
type Rule struct {
	ID         string      `json:"id"`
	Trigger    Trigger     `json:"trigger"`
	Conditions []Condition `json:"conditions,omitempty"`
	Steps      []Step      `json:"steps,omitempty"`
	Enabled    bool        `json:"enabled"`
	Stats      RunStats    `json:"stats"`
}

// Validate checks the rule definition. Invalid rules are skipped during
// registry sync with a warning rather than failing the whole sync.
func (r *Rule) Validate() error {
	if r.ID == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "Rule", "Validate",
			"rule id is required")
	}
	if err := r.Trigger.Validate(); err != nil {
		return errors.Wrap(err, "Rule", "Validate", fmt.Sprintf("trigger for rule %s", r.ID))
	}
	for i := range r.Conditions {
		if err := r.Conditions[i].Validate(); err != nil {
			return errors.Wrap(err, "Rule", "Validate",
				fmt.Sprintf("condition %d for rule %s", i, r.ID))
		}
	}
	return nil
}
