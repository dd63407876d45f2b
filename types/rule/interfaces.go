package rule

import (
	"context"

	"github.com/skovalik/cognograph/types/graph"
)

// GraphStore is the engine's read/write surface on the external graph data
// store. Snapshot and Rule reads happen at match and execution time (the
// engine re-fetches rather than caching rule definitions across the debounce
// window); UpdateRuleStats is the only write the engine performs.
type GraphStore interface {
	// Snapshot returns the current graph state. The engine treats the
	// returned value as immutable.
	Snapshot() *graph.Snapshot

	// Rules returns all rule definitions currently embedded in the graph,
	// enabled or not.
	Rules() []Rule

	// Rule returns the live definition of one rule, if present.
	Rule(id string) (Rule, bool)

	// UpdateRuleStats writes run statistics back onto the rule's node.
	UpdateRuleStats(id string, stats RunStats) error
}

// ExecutionContext carries per-execution state into the step executor.
// Variables is a scratch bag shared by the steps of one execution.
type ExecutionContext struct {
	ExecutionID   string         `json:"execution_id"`
	RuleID        string         `json:"rule_id"`
	TriggerNodeID string         `json:"trigger_node_id"`
	Event         Event          `json:"event"`
	Variables     map[string]any `json:"variables"`
	StartedAt     int64          `json:"started_at"` // unix milliseconds
}

// Result is the outcome of one step-executor run.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// StepExecutor interprets a rule's action steps. Implementations report
// failures via Result; a panic is recovered at the call site and recorded
// as a failed run.
type StepExecutor interface {
	Execute(ctx context.Context, steps []Step, execCtx *ExecutionContext, snapshot *graph.Snapshot) Result
}
