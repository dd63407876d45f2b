package automation

import (
	"context"
	"sync"

	"github.com/skovalik/cognograph/types/graph"
	"github.com/skovalik/cognograph/types/rule"
)

// fakeGraph is an in-memory GraphStore for tests.
type fakeGraph struct {
	mu    sync.Mutex
	nodes []*graph.Node
	edges []graph.Edge
	rules map[string]rule.Rule
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{rules: make(map[string]rule.Rule)}
}

func (f *fakeGraph) addNode(n *graph.Node) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes = append(f.nodes, n)
}

func (f *fakeGraph) addEdge(e graph.Edge) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edges = append(f.edges, e)
}

func (f *fakeGraph) addRule(r rule.Rule) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules[r.ID] = r
	f.nodes = append(f.nodes, &graph.Node{ID: r.ID, Type: "rule"})
}

func (f *fakeGraph) Snapshot() *graph.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return graph.NewSnapshot(f.nodes, f.edges)
}

func (f *fakeGraph) Rules() []rule.Rule {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]rule.Rule, 0, len(f.rules))
	for _, r := range f.rules {
		out = append(out, r)
	}
	return out
}

func (f *fakeGraph) Rule(id string) (rule.Rule, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rules[id]
	return r, ok
}

func (f *fakeGraph) UpdateRuleStats(id string, stats rule.RunStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rules[id]; ok {
		r.Stats = stats
		f.rules[id] = r
	}
	return nil
}

func (f *fakeGraph) stats(id string) rule.RunStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rules[id].Stats
}

// fakeExecutor records executions and optionally delegates to a callback.
type fakeExecutor struct {
	mu    sync.Mutex
	calls []string
	fn    func(execCtx *rule.ExecutionContext) rule.Result
}

func (f *fakeExecutor) Execute(_ context.Context, _ []rule.Step, execCtx *rule.ExecutionContext, _ *graph.Snapshot) rule.Result {
	f.mu.Lock()
	f.calls = append(f.calls, execCtx.RuleID)
	fn := f.fn
	f.mu.Unlock()

	if fn != nil {
		return fn(execCtx)
	}
	return rule.Result{Success: true}
}

func (f *fakeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeExecutor) callsFor(ruleID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, id := range f.calls {
		if id == ruleID {
			n++
		}
	}
	return n
}
