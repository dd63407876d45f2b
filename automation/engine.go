package automation

import (
	"log/slog"
	"sync"

	"github.com/facebookgo/clock"

	"github.com/skovalik/cognograph/automation/expression"
	"github.com/skovalik/cognograph/errors"
	"github.com/skovalik/cognograph/metric"
	"github.com/skovalik/cognograph/region"
	"github.com/skovalik/cognograph/types/rule"
)

// debounceKey coalesces repeated events per (rule, originating node) pair.
type debounceKey struct {
	ruleID       string
	sourceNodeID string
}

// proximityKey remembers the last within-threshold observation per
// (rule, moving node) pair.
type proximityKey struct {
	ruleID       string
	movingNodeID string
}

// Engine is the automation rule engine. Construct with New; all methods are
// safe for concurrent use.
type Engine struct {
	config   Config
	clk      clock.Clock
	logger   *slog.Logger
	metrics  *engineMetrics
	graph    rule.GraphStore
	executor rule.StepExecutor
	regions  *region.Store
	eval     *expression.Evaluator

	mu        sync.Mutex
	rules     map[string]rule.Rule // registered enabled rules, rebuilt by SyncRules
	timers    map[debounceKey]*clock.Timer
	execStack []string
	executing map[string]struct{}
	proximity map[proximityKey]bool
	closed    bool

	// runHook, when set, observes every execution outcome. Test seam.
	runHook func(ruleID string, result rule.Result)
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig overrides the default configuration.
func WithConfig(config Config) Option {
	return func(e *Engine) {
		e.config = config
	}
}

// WithClock injects a clock, letting tests drive debounce timers with a
// mock instead of wall time.
func WithClock(clk clock.Clock) Option {
	return func(e *Engine) {
		if clk != nil {
			e.clk = clk
		}
	}
}

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics enables Prometheus metrics. A nil registry disables metrics.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(e *Engine) {
		e.metrics = newEngineMetrics(registry)
	}
}

// WithRunHook registers a callback invoked after every execution with the
// rule id and the executor's result.
func WithRunHook(hook func(ruleID string, result rule.Result)) Option {
	return func(e *Engine) {
		e.runHook = hook
	}
}

// New creates an engine wired to its two collaborators and a region store.
func New(graphStore rule.GraphStore, executor rule.StepExecutor, regions *region.Store, opts ...Option) (*Engine, error) {
	if graphStore == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Engine", "New", "graph store is required")
	}
	if executor == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Engine", "New", "step executor is required")
	}
	if regions == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Engine", "New", "region store is required")
	}

	e := &Engine{
		config:    DefaultConfig(),
		clk:       clock.New(),
		logger:    slog.Default().With("component", "automation-engine"),
		graph:     graphStore,
		executor:  executor,
		regions:   regions,
		eval:      expression.NewEvaluator(),
		rules:     make(map[string]rule.Rule),
		timers:    make(map[debounceKey]*clock.Timer),
		executing: make(map[string]struct{}),
		proximity: make(map[proximityKey]bool),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}

	if err := e.config.Validate(); err != nil {
		return nil, errors.Wrap(err, "Engine", "New", "validate config")
	}

	return e, nil
}

// Regions returns the engine's region store.
func (e *Engine) Regions() *region.Store {
	return e.regions
}

// RuleCount returns how many rules are currently registered.
func (e *Engine) RuleCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.rules)
}

// Close cancels all pending debounce timers and stops accepting events.
// In-flight executions complete normally.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	for key, timer := range e.timers {
		timer.Stop()
		delete(e.timers, key)
	}

	e.logger.Info("Engine closed")
	return nil
}
