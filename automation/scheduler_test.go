package automation

import (
	"fmt"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skovalik/cognograph/geo"
	"github.com/skovalik/cognograph/region"
	"github.com/skovalik/cognograph/types/graph"
	"github.com/skovalik/cognograph/types/rule"
)

func propertyChangeRule(id string) rule.Rule {
	return rule.Rule{
		ID:      id,
		Trigger: rule.Trigger{Type: rule.TriggerPropertyChange},
		Enabled: true,
	}
}

func TestDebounceCoalescing(t *testing.T) {
	g := newFakeGraph()
	g.addRule(propertyChangeRule("r1"))

	mock := clock.NewMock()
	e, exec := newTestEngine(t, g, WithClock(mock))
	e.SyncRules()

	// 10 rapid edits to the same property on the same node.
	for i := 0; i < 10; i++ {
		e.HandleEvent(rule.NewPropertyChangeEvent("n1", "status", i, i+1))
	}

	assert.Equal(t, 0, exec.callCount(), "nothing executes inside the quiet window")

	mock.Add(400 * time.Millisecond)
	require.Eventually(t, func() bool {
		return exec.callCount() == 1
	}, time.Second, 5*time.Millisecond, "10 coalesced events produce exactly 1 execution")

	// No stragglers.
	mock.Add(time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, exec.callCount())
	assert.Equal(t, 1, g.stats("r1").RunCount)
}

func TestDebouncePerSourceNode(t *testing.T) {
	g := newFakeGraph()
	g.addRule(propertyChangeRule("r1"))

	mock := clock.NewMock()
	e, exec := newTestEngine(t, g, WithClock(mock))
	e.SyncRules()

	// Two different source nodes debounce independently.
	e.HandleEvent(rule.NewPropertyChangeEvent("n1", "status", "a", "b"))
	e.HandleEvent(rule.NewPropertyChangeEvent("n2", "status", "a", "b"))

	mock.Add(400 * time.Millisecond)
	require.Eventually(t, func() bool {
		return exec.callCount() == 2
	}, time.Second, 5*time.Millisecond, "each source node executes once")
}

func TestDebounceRetriggerResetsTimer(t *testing.T) {
	g := newFakeGraph()
	g.addRule(propertyChangeRule("r1"))

	mock := clock.NewMock()
	e, exec := newTestEngine(t, g, WithClock(mock))
	e.SyncRules()

	e.HandleEvent(rule.NewPropertyChangeEvent("n1", "status", "a", "b"))
	mock.Add(200 * time.Millisecond)
	// Retrigger inside the window replaces the timer.
	e.HandleEvent(rule.NewPropertyChangeEvent("n1", "status", "b", "c"))
	mock.Add(200 * time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, exec.callCount(), "old timer cancelled, new one not yet elapsed")

	mock.Add(200 * time.Millisecond)
	require.Eventually(t, func() bool {
		return exec.callCount() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestManualTriggerBypassesDebounce(t *testing.T) {
	g := newFakeGraph()
	g.addRule(rule.Rule{ID: "r1", Trigger: rule.Trigger{Type: rule.TriggerManual}, Enabled: true})

	e, exec := newTestEngine(t, g)
	e.SyncRules()

	require.NoError(t, e.TriggerManual("r1"))
	assert.Equal(t, 1, exec.callCount(), "manual trigger executes synchronously")
	assert.Equal(t, 1, g.stats("r1").RunCount)
}

func TestManualTriggerErrors(t *testing.T) {
	g := newFakeGraph()
	disabled := rule.Rule{ID: "off", Trigger: rule.Trigger{Type: rule.TriggerManual}, Enabled: false}
	g.addRule(disabled)

	e, exec := newTestEngine(t, g)
	e.SyncRules()

	assert.Error(t, e.TriggerManual("missing"))
	assert.Error(t, e.TriggerManual("off"))
	assert.Equal(t, 0, exec.callCount())
}

func TestExecutionChainDepthLimit(t *testing.T) {
	g := newFakeGraph()
	for i := 1; i <= 6; i++ {
		g.addRule(rule.Rule{
			ID:      fmt.Sprintf("chain-%d", i),
			Trigger: rule.Trigger{Type: rule.TriggerManual},
			Enabled: true,
		})
	}

	var e *Engine
	exec := &fakeExecutor{}
	exec.fn = func(execCtx *rule.ExecutionContext) rule.Result {
		// Each rule triggers the next in the chain, synchronously.
		var n int
		_, _ = fmt.Sscanf(execCtx.RuleID, "chain-%d", &n)
		if n < 6 {
			// The depth guard, not an error, stops the chain.
			_ = e.TriggerManual(fmt.Sprintf("chain-%d", n+1))
		}
		return rule.Result{Success: true}
	}

	var err error
	e, err = New(g, exec, region.NewStore())
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	e.SyncRules()

	require.NoError(t, e.TriggerManual("chain-1"))

	assert.Equal(t, 5, exec.callCount(), "max stack depth 5 caps a 6-rule chain at 5 executions")
	assert.Equal(t, 1, g.stats("chain-5").RunCount)
	assert.Equal(t, 0, g.stats("chain-6").RunCount, "sixth rule rejected by depth guard")
	assert.Equal(t, 0, g.stats("chain-6").ErrorCount, "rejection is not a rule error")
}

func TestExecutionCycleDetection(t *testing.T) {
	g := newFakeGraph()
	g.addRule(rule.Rule{ID: "self", Trigger: rule.Trigger{Type: rule.TriggerManual}, Enabled: true})

	var e *Engine
	exec := &fakeExecutor{}
	exec.fn = func(execCtx *rule.ExecutionContext) rule.Result {
		if exec.callCount() == 1 {
			// Rule retriggers itself while still on the stack.
			_ = e.TriggerManual("self")
		}
		return rule.Result{Success: true}
	}

	var err error
	e, err = New(g, exec, region.NewStore())
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	e.SyncRules()

	require.NoError(t, e.TriggerManual("self"))

	assert.Equal(t, 1, exec.callCount(), "re-entrant invocation skipped")
	stats := g.stats("self")
	assert.Equal(t, 1, stats.RunCount, "cycle skip does not increment run count")
	assert.Equal(t, 0, stats.ErrorCount, "cycle skip is not a rule error")
}

func TestExecutionFailureRecordsStats(t *testing.T) {
	g := newFakeGraph()
	g.addRule(rule.Rule{ID: "r1", Trigger: rule.Trigger{Type: rule.TriggerManual}, Enabled: true})

	exec := &fakeExecutor{}
	exec.fn = func(*rule.ExecutionContext) rule.Result {
		return rule.Result{Success: false, Error: "step 2 failed"}
	}
	e, err := New(g, exec, region.NewStore())
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	e.SyncRules()

	require.NoError(t, e.TriggerManual("r1"))

	stats := g.stats("r1")
	assert.Equal(t, 1, stats.RunCount)
	assert.Equal(t, 1, stats.ErrorCount)
	assert.Equal(t, "step 2 failed", stats.LastError)
	assert.NotZero(t, stats.LastRun)

	// A later success clears the error message.
	exec.fn = nil
	require.NoError(t, e.TriggerManual("r1"))
	stats = g.stats("r1")
	assert.Equal(t, 2, stats.RunCount)
	assert.Equal(t, 1, stats.ErrorCount)
	assert.Empty(t, stats.LastError)
}

func TestExecutorPanicDoesNotLeakStack(t *testing.T) {
	g := newFakeGraph()
	g.addRule(rule.Rule{ID: "r1", Trigger: rule.Trigger{Type: rule.TriggerManual}, Enabled: true})

	exec := &fakeExecutor{}
	exec.fn = func(*rule.ExecutionContext) rule.Result {
		panic("executor went sideways")
	}
	e, err := New(g, exec, region.NewStore())
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	e.SyncRules()

	require.NoError(t, e.TriggerManual("r1"))

	stats := g.stats("r1")
	assert.Equal(t, 1, stats.ErrorCount, "panic recorded as execution failure")
	assert.Contains(t, stats.LastError, "panic")

	// The stack entry was popped: the rule can execute again.
	exec.fn = nil
	require.NoError(t, e.TriggerManual("r1"))
	assert.Equal(t, 2, g.stats("r1").RunCount)
}

func TestConditionsGateExecution(t *testing.T) {
	g := newFakeGraph()
	g.addNode(&graph.Node{ID: "n1", Data: map[string]any{"status": "open"}})
	g.addRule(rule.Rule{
		ID:      "r1",
		Trigger: rule.Trigger{Type: rule.TriggerManual},
		Conditions: []rule.Condition{
			{Target: rule.TargetSpecificNode, SpecificNodeID: "n1", Field: "status", Operator: rule.OpEquals, Value: "done"},
		},
		Enabled: true,
	})

	e, exec := newTestEngine(t, g)
	e.SyncRules()

	require.NoError(t, e.TriggerManual("r1"))
	assert.Equal(t, 0, exec.callCount(), "failing condition blocks execution silently")
	assert.Equal(t, 0, g.stats("r1").RunCount)
}

func TestConditionsFailClosedOnMissingTarget(t *testing.T) {
	g := newFakeGraph()
	g.addRule(rule.Rule{
		ID:      "r1",
		Trigger: rule.Trigger{Type: rule.TriggerManual},
		Conditions: []rule.Condition{
			{Target: rule.TargetSpecificNode, SpecificNodeID: "no-such-node", Field: "x", Operator: rule.OpIsEmpty},
		},
		Enabled: true,
	})

	e, exec := newTestEngine(t, g)
	e.SyncRules()

	require.NoError(t, e.TriggerManual("r1"))
	assert.Equal(t, 0, exec.callCount(), "unresolvable condition target fails closed")
}

func TestRuleDisabledBetweenEventAndExecution(t *testing.T) {
	g := newFakeGraph()
	g.addRule(propertyChangeRule("r1"))

	mock := clock.NewMock()
	e, exec := newTestEngine(t, g, WithClock(mock))
	e.SyncRules()

	e.HandleEvent(rule.NewPropertyChangeEvent("n1", "status", "a", "b"))

	// Disable the live definition while the timer is pending.
	r, _ := g.Rule("r1")
	r.Enabled = false
	g.addRule(r)

	mock.Add(400 * time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, exec.callCount(), "stale event does not execute a disabled rule")
}

func TestProximityTriggerFiresOnCrossing(t *testing.T) {
	g := newFakeGraph()
	g.addNode(&graph.Node{ID: "target", X: 0, Y: 0, Width: 100, Height: 100})
	g.addNode(&graph.Node{ID: "mover", X: 1000, Y: 0, Width: 100, Height: 100})
	e, _ := newTestEngine(t, g)

	r := rule.Rule{ID: "r1", Trigger: rule.Trigger{
		Type:               rule.TriggerProximity,
		TargetNodeID:       "target",
		Distance:           200,
		ProximityDirection: rule.ProximityEntering,
	}, Enabled: true}

	event := rule.NewPositionChangeEvent("mover")

	// First observation records state without firing.
	assert.False(t, e.matches(&r, event, g.Snapshot()))

	// Still outside: no crossing.
	g.nodes[1].X = 900
	assert.False(t, e.matches(&r, event, g.Snapshot()))

	// Crosses inside: fires once.
	g.nodes[1].X = 100
	assert.True(t, e.matches(&r, event, g.Snapshot()))

	// Stays inside: no refire.
	g.nodes[1].X = 80
	assert.False(t, e.matches(&r, event, g.Snapshot()))

	// Leaves and re-enters: fires again.
	g.nodes[1].X = 1000
	assert.False(t, e.matches(&r, event, g.Snapshot()), "exiting does not match an entering trigger")
	g.nodes[1].X = 50
	assert.True(t, e.matches(&r, event, g.Snapshot()))
}

func TestProximityStartsInsideNeverFires(t *testing.T) {
	g := newFakeGraph()
	g.addNode(&graph.Node{ID: "target", X: 0, Y: 0, Width: 100, Height: 100})
	g.addNode(&graph.Node{ID: "mover", X: 50, Y: 0, Width: 100, Height: 100})
	e, _ := newTestEngine(t, g)

	r := rule.Rule{ID: "r1", Trigger: rule.Trigger{
		Type:               rule.TriggerProximity,
		TargetNodeID:       "target",
		Distance:           200,
		ProximityDirection: rule.ProximityEntering,
	}, Enabled: true}
	event := rule.NewPositionChangeEvent("mover")

	// Node starts inside and stays inside across several moves.
	for _, x := range []float64{50, 60, 40, 70} {
		g.nodes[1].X = x
		assert.False(t, e.matches(&r, event, g.Snapshot()))
	}
}

func TestProximityExitingDirection(t *testing.T) {
	g := newFakeGraph()
	g.addNode(&graph.Node{ID: "target", X: 0, Y: 0, Width: 100, Height: 100})
	g.addNode(&graph.Node{ID: "mover", X: 50, Y: 0, Width: 100, Height: 100})
	e, _ := newTestEngine(t, g)

	r := rule.Rule{ID: "r1", Trigger: rule.Trigger{
		Type:               rule.TriggerProximity,
		TargetNodeID:       "target",
		Distance:           200,
		ProximityDirection: rule.ProximityExiting,
	}, Enabled: true}
	event := rule.NewPositionChangeEvent("mover")

	assert.False(t, e.matches(&r, event, g.Snapshot()), "first observation records only")

	g.nodes[1].X = 1000
	assert.True(t, e.matches(&r, event, g.Snapshot()), "inside to outside fires exiting")
}

func TestHandleNodeMovedEmitsRegionEvents(t *testing.T) {
	g := newFakeGraph()
	g.addNode(&graph.Node{ID: "n1", X: 500, Y: 500, Width: 50, Height: 50})
	g.addRule(rule.Rule{
		ID:      "enter-rule",
		Trigger: rule.Trigger{Type: rule.TriggerRegionEnter, RegionID: "reg1"},
		Enabled: true,
	})
	g.addRule(rule.Rule{
		ID:      "exit-rule",
		Trigger: rule.Trigger{Type: rule.TriggerRegionExit, RegionID: "reg1"},
		Enabled: true,
	})

	mock := clock.NewMock()
	e, exec := newTestEngine(t, g, WithClock(mock))
	_, err := e.Regions().AddRegion(region.Region{
		ID:     "reg1",
		Bounds: geo.Rect{X: 0, Y: 0, Width: 100, Height: 100},
	})
	require.NoError(t, err)
	e.SyncRules()

	// Move into the region.
	e.HandleNodeMoved("n1", geo.Rect{X: 10, Y: 10, Width: 50, Height: 50})
	mock.Add(400 * time.Millisecond)
	require.Eventually(t, func() bool {
		return exec.callsFor("enter-rule") == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, exec.callsFor("exit-rule"))

	// Move out again.
	e.HandleNodeMoved("n1", geo.Rect{X: 500, Y: 500, Width: 50, Height: 50})
	mock.Add(400 * time.Millisecond)
	require.Eventually(t, func() bool {
		return exec.callsFor("exit-rule") == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, exec.callsFor("enter-rule"))
}

func TestHandleNodeMovedAutoGrowsMemberRegions(t *testing.T) {
	g := newFakeGraph()
	e, _ := newTestEngine(t, g)

	_, err := e.Regions().AddRegion(region.Region{
		ID:     "reg1",
		Bounds: geo.Rect{X: 100, Y: 100, Width: 400, Height: 300},
	})
	require.NoError(t, err)

	// Node overlaps the region but sticks out past its right edge.
	e.HandleNodeMoved("n1", geo.Rect{X: 400, Y: 200, Width: 150, Height: 100})

	r, ok := e.Regions().Region("reg1")
	require.True(t, ok)
	assert.Equal(t, 100.0, r.Bounds.X)
	assert.Equal(t, 100.0, r.Bounds.Y)
	assert.GreaterOrEqual(t, r.Bounds.X+r.Bounds.Width, 570.0, "right edge reaches padded node edge")
}

func TestClusterSizeTrigger(t *testing.T) {
	g := newFakeGraph()
	g.addNode(&graph.Node{ID: "n1"})
	g.addNode(&graph.Node{ID: "n2"})
	e, _ := newTestEngine(t, g)

	_, err := e.Regions().AddRegion(region.Region{
		ID:     "reg1",
		Bounds: geo.Rect{X: 0, Y: 0, Width: 100, Height: 100},
	})
	require.NoError(t, err)

	r := rule.Rule{ID: "r1", Trigger: rule.Trigger{
		Type:       rule.TriggerClusterSize,
		RegionID:   "reg1",
		Comparison: rule.CompareGTE,
		Threshold:  2,
	}, Enabled: true}

	// One member: below threshold.
	e.Regions().CheckNodePosition("n1", geo.Rect{X: 10, Y: 10, Width: 10, Height: 10})
	assert.False(t, e.matches(&r, rule.NewRegionEnterEvent("n1", "reg1"), g.Snapshot()))

	// Second member reaches the threshold.
	e.Regions().CheckNodePosition("n2", geo.Rect{X: 20, Y: 20, Width: 10, Height: 10})
	assert.True(t, e.matches(&r, rule.NewRegionEnterEvent("n2", "reg1"), g.Snapshot()))

	// An event for a different region never matches.
	assert.False(t, e.matches(&r, rule.NewRegionEnterEvent("n2", "other"), g.Snapshot()))
}

func TestTickFiresScheduleRules(t *testing.T) {
	g := newFakeGraph()
	g.addRule(rule.Rule{ID: "cron", Trigger: rule.Trigger{Type: rule.TriggerSchedule}, Enabled: true})
	g.addRule(propertyChangeRule("other"))

	mock := clock.NewMock()
	e, exec := newTestEngine(t, g, WithClock(mock))
	e.SyncRules()

	e.Tick()
	mock.Add(400 * time.Millisecond)
	require.Eventually(t, func() bool {
		return exec.callsFor("cron") == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, exec.callsFor("other"))
}

func TestSyncRulesIdempotentAndPruning(t *testing.T) {
	g := newFakeGraph()
	g.addRule(propertyChangeRule("r1"))
	g.addRule(rule.Rule{ID: "bad", Trigger: rule.Trigger{Type: "bogus"}, Enabled: true})
	g.addRule(rule.Rule{ID: "off", Trigger: rule.Trigger{Type: rule.TriggerPropertyChange}, Enabled: false})

	e, _ := newTestEngine(t, g)

	e.SyncRules()
	assert.Equal(t, 1, e.RuleCount(), "invalid and disabled rules are skipped")

	e.SyncRules()
	assert.Equal(t, 1, e.RuleCount(), "repeated sync is idempotent")

	// Removing the rule from the graph drops it on the next sync.
	g.mu.Lock()
	delete(g.rules, "r1")
	g.mu.Unlock()
	e.SyncRules()
	assert.Equal(t, 0, e.RuleCount())
}

func TestCloseCancelsTimersAndRejectsEvents(t *testing.T) {
	g := newFakeGraph()
	g.addRule(propertyChangeRule("r1"))

	mock := clock.NewMock()
	e, exec := newTestEngine(t, g, WithClock(mock))
	e.SyncRules()

	e.HandleEvent(rule.NewPropertyChangeEvent("n1", "status", "a", "b"))
	require.NoError(t, e.Close())

	mock.Add(time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, exec.callCount(), "pending timer cancelled on close")

	e.HandleEvent(rule.NewPropertyChangeEvent("n1", "status", "b", "c"))
	assert.Error(t, e.TriggerManual("r1"))
}

func TestNewValidatesInputs(t *testing.T) {
	g := newFakeGraph()
	exec := &fakeExecutor{}

	_, err := New(nil, exec, region.NewStore())
	assert.Error(t, err)
	_, err = New(g, nil, region.NewStore())
	assert.Error(t, err)
	_, err = New(g, exec, nil)
	assert.Error(t, err)

	bad := DefaultConfig()
	bad.MaxStackDepth = 0
	_, err = New(g, exec, region.NewStore(), WithConfig(bad))
	assert.Error(t, err)
}
