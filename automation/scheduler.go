package automation

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/skovalik/cognograph/errors"
	"github.com/skovalik/cognograph/geo"
	"github.com/skovalik/cognograph/pkg/timestamp"
	"github.com/skovalik/cognograph/types/graph"
	"github.com/skovalik/cognograph/types/rule"
)

// HandleEvent matches an event against every registered rule and arms a
// debounce timer for each match. A pending timer for the same
// (rule, source node) pair is cancelled and replaced, so rapid repeated
// events coalesce into one execution after the quiet period.
func (e *Engine) HandleEvent(event rule.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	if e.metrics != nil {
		e.metrics.recordEvent(string(event.Type))
	}

	snap := e.graph.Snapshot()
	for id := range e.rules {
		r := e.rules[id]
		if !e.matches(&r, event, snap) {
			continue
		}
		if e.metrics != nil {
			e.metrics.recordMatch()
		}
		e.armDebounce(r.ID, event)
	}
}

// armDebounce cancels any pending timer for the pair and starts a new one.
// Called with e.mu held.
func (e *Engine) armDebounce(ruleID string, event rule.Event) {
	key := debounceKey{ruleID: ruleID, sourceNodeID: event.SourceNodeID}

	if pending, exists := e.timers[key]; exists {
		pending.Stop()
		if e.metrics != nil {
			e.metrics.recordCoalesced()
		}
	}

	e.timers[key] = e.clk.AfterFunc(e.config.DebounceInterval, func() {
		e.mu.Lock()
		delete(e.timers, key)
		_, registered := e.rules[key.ruleID]
		closed := e.closed
		e.mu.Unlock()

		// The rule may have been unregistered while the timer was pending.
		if closed || !registered {
			return
		}
		e.executeRule(key.ruleID, event)
	})
	if e.metrics != nil {
		e.metrics.updatePendingTimers(len(e.timers))
	}
}

// HandleNodeMoved is the position-change entry point. It updates region
// membership first, then feeds the derived enter/exit events plus a plain
// position event (for proximity triggers) through matching, and finally
// auto-grows any region the node is still a member of.
func (e *Engine) HandleNodeMoved(nodeID string, box geo.Rect) {
	entered, exited := e.regions.CheckNodePosition(nodeID, box)

	for _, regionID := range entered {
		e.HandleEvent(rule.NewRegionEnterEvent(nodeID, regionID))
	}
	for _, regionID := range exited {
		e.HandleEvent(rule.NewRegionExitEvent(nodeID, regionID))
	}
	e.HandleEvent(rule.NewPositionChangeEvent(nodeID))

	for _, regionID := range e.regions.RegionsForNode(nodeID) {
		if _, err := e.regions.AutoGrow(regionID, box); err != nil {
			e.logger.Warn("Region auto-grow failed", "region_id", regionID, "error", err)
		}
	}
}

// HandleNodeRemoved purges a deleted node's derived runtime state.
func (e *Engine) HandleNodeRemoved(nodeID string) {
	e.regions.RemoveNode(nodeID)

	e.mu.Lock()
	defer e.mu.Unlock()
	for key, timer := range e.timers {
		if key.sourceNodeID == nodeID {
			timer.Stop()
			delete(e.timers, key)
		}
	}
	for key := range e.proximity {
		if key.movingNodeID == nodeID {
			delete(e.proximity, key)
		}
	}
}

// TriggerManual executes a rule immediately, bypassing matching and
// debounce. The stack and depth guards still apply.
func (e *Engine) TriggerManual(ruleID string) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return errors.Wrap(errors.ErrShuttingDown, "Engine", "TriggerManual", "engine closed")
	}
	e.mu.Unlock()

	live, found := e.graph.Rule(ruleID)
	if !found {
		return errors.WrapInvalid(errors.ErrRuleNotFound, "Engine", "TriggerManual",
			fmt.Sprintf("lookup rule %s", ruleID))
	}
	if !live.Enabled {
		return errors.WrapInvalid(errors.ErrRuleDisabled, "Engine", "TriggerManual",
			fmt.Sprintf("rule %s", ruleID))
	}

	e.executeRule(ruleID, rule.NewManualEvent(ruleID))
	return nil
}

// Tick drives schedule triggers. The caller owns the cadence (a cron
// runner, a ticker goroutine); each call emits one schedule-tick per
// registered schedule rule, which then debounces like any other event.
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	for id := range e.rules {
		if e.rules[id].Trigger.Type == rule.TriggerSchedule {
			e.armDebounce(id, rule.NewScheduleTickEvent(id))
		}
	}
}

// executeRule runs the full validation-and-execution pipeline for one rule.
// Safety checks run first, against live engine state; the rule definition is
// re-fetched from the graph because it may have been edited or disabled
// since the event was queued.
func (e *Engine) executeRule(ruleID string, event rule.Event) {
	e.mu.Lock()

	if e.closed {
		e.mu.Unlock()
		return
	}

	// Cycle guard: a rule already on the live stack triggered itself,
	// directly or through a chain. Not recorded as a rule error.
	for _, active := range e.execStack {
		if active == ruleID {
			e.mu.Unlock()
			e.logger.Warn("Execution cycle detected, skipping rule",
				"rule_id", ruleID, "stack_depth", len(e.execStack))
			if e.metrics != nil {
				e.metrics.recordRejection("cycle")
			}
			return
		}
	}

	// Depth guard: bounds fan-out from chains regardless of cycle shape.
	if len(e.execStack) >= e.config.MaxStackDepth {
		depth := len(e.execStack)
		e.mu.Unlock()
		e.logger.Warn("Execution stack depth limit reached, skipping rule",
			"rule_id", ruleID, "stack_depth", depth, "max_depth", e.config.MaxStackDepth)
		if e.metrics != nil {
			e.metrics.recordRejection("max_depth")
		}
		return
	}

	live, found := e.graph.Rule(ruleID)
	if !found || !live.Enabled {
		e.mu.Unlock()
		e.logger.Debug("Rule gone or disabled at execution time, skipping", "rule_id", ruleID)
		return
	}

	snap := e.graph.Snapshot()
	if !e.evaluateConditions(&live, event, snap) {
		e.mu.Unlock()
		e.logger.Debug("Rule conditions not met, skipping", "rule_id", ruleID)
		return
	}

	e.execStack = append(e.execStack, ruleID)
	e.executing[ruleID] = struct{}{}
	if e.metrics != nil {
		e.metrics.updateStackDepth(len(e.execStack))
	}

	execCtx := &rule.ExecutionContext{
		ExecutionID:   uuid.NewString(),
		RuleID:        ruleID,
		TriggerNodeID: event.SourceNodeID,
		Event:         event,
		Variables:     make(map[string]any),
		StartedAt:     timestamp.Now(),
	}

	// Release the lock around the executor call: action steps may emit
	// events or trigger other rules synchronously, and those re-entrant
	// paths must be able to take the lock. The shared execution stack
	// still bounds them.
	e.mu.Unlock()

	result := e.safeExecute(live.Steps, execCtx, snap)

	e.mu.Lock()
	e.popStack(ruleID)
	delete(e.executing, ruleID)
	if e.metrics != nil {
		e.metrics.updateStackDepth(len(e.execStack))
	}

	stats := live.Stats
	stats.RunCount++
	stats.LastRun = execCtx.StartedAt
	if result.Success {
		stats.LastError = ""
	} else {
		stats.ErrorCount++
		stats.LastError = result.Error
		e.logger.Warn("Rule execution failed", "rule_id", ruleID, "error", result.Error)
	}
	if cached, exists := e.rules[ruleID]; exists {
		cached.Stats = stats
		e.rules[ruleID] = cached
	}
	if e.metrics != nil {
		e.metrics.recordExecution(result.Success, timestamp.Since(execCtx.StartedAt))
	}
	hook := e.runHook
	e.mu.Unlock()

	if err := e.graph.UpdateRuleStats(ruleID, stats); err != nil {
		e.logger.Error("Failed to write rule stats", "rule_id", ruleID, "error", err)
	}
	if hook != nil {
		hook(ruleID, result)
	}
}

// safeExecute calls the step executor with panic recovery so a misbehaving
// executor cannot leak a stack entry.
func (e *Engine) safeExecute(steps []rule.Step, execCtx *rule.ExecutionContext, snap *graph.Snapshot) (result rule.Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Step executor panicked",
				"rule_id", execCtx.RuleID, "panic", r)
			result = rule.Result{Success: false, Error: fmt.Sprintf("executor panic: %v", r)}
		}
	}()
	return e.executor.Execute(context.Background(), steps, execCtx, snap)
}

// popStack removes the most recent occurrence of ruleID from the execution
// stack. Called with e.mu held.
func (e *Engine) popStack(ruleID string) {
	for i := len(e.execStack) - 1; i >= 0; i-- {
		if e.execStack[i] == ruleID {
			e.execStack = append(e.execStack[:i], e.execStack[i+1:]...)
			return
		}
	}
}
