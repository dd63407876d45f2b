// Package main runs the cognograph automation daemon: it mirrors graph
// deltas from NATS into an in-memory graph store, feeds them to the rule
// engine, and publishes a run record for every rule execution.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/skovalik/cognograph/automation"
	"github.com/skovalik/cognograph/automation/expression"
	"github.com/skovalik/cognograph/graphstore"
	"github.com/skovalik/cognograph/metric"
	"github.com/skovalik/cognograph/natsbridge"
	"github.com/skovalik/cognograph/pkg/timestamp"
	"github.com/skovalik/cognograph/region"
	"github.com/skovalik/cognograph/types/graph"
	"github.com/skovalik/cognograph/types/rule"
)

const (
	Version = "0.1.0"
	appName = "cognograph"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Daemon failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := parseFlags()
	if cfg.ShowVersion {
		fmt.Printf("%s %s\n", appName, Version)
		return nil
	}
	if err := validateFlags(cfg); err != nil {
		return err
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	registry := metric.NewMetricsRegistry()
	if err := expression.EnableRegexCacheMetrics(registry); err != nil {
		logger.Warn("Regex cache metrics unavailable", "error", err)
	}
	metricsServer := metric.NewServer(cfg.MetricsPort, "/metrics", registry)
	if err := metricsServer.Start(); err != nil {
		return fmt.Errorf("start metrics server: %w", err)
	}
	defer func() { _ = metricsServer.Stop(5 * time.Second) }()

	store := graphstore.NewStore()
	regions := region.NewStore(region.WithMetrics(registry))

	bridgeCfg := natsbridge.DefaultConfig()
	bridgeCfg.URL = cfg.NATSURL
	bridgeCfg.SubjectPrefix = cfg.SubjectPrefix
	bridge, err := natsbridge.New(bridgeCfg)
	if err != nil {
		return fmt.Errorf("create bridge: %w", err)
	}

	engineCfg := automation.DefaultConfig()
	engineCfg.DebounceInterval = cfg.DebounceInterval
	engine, err := automation.New(store, &loggingExecutor{logger: logger}, regions,
		automation.WithConfig(engineCfg),
		automation.WithMetrics(registry),
		automation.WithRunHook(bridge.PublishRunRecord),
	)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	defer func() { _ = engine.Close() }()

	bridge.Bind(engine)
	bridge.BindApplier(&storeApplier{store: store, engine: engine, logger: logger})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("start bridge: %w", err)
	}
	defer func() { _ = bridge.Stop() }()

	engine.SyncRules()

	if cfg.TickInterval > 0 {
		ticker := time.NewTicker(cfg.TickInterval)
		defer ticker.Stop()
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					engine.Tick()
				}
			}
		}()
	}

	logger.Info("Daemon started",
		"version", Version,
		"nats_url", cfg.NATSURL,
		"subject_prefix", cfg.SubjectPrefix,
		"metrics_port", cfg.MetricsPort,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("Shutting down", "signal", sig.String())
	return nil
}

// storeApplier mirrors deltas into the graph store and re-syncs the rule
// registry when a rule node changes.
type storeApplier struct {
	store  *graphstore.Store
	engine *automation.Engine
	logger *slog.Logger
}

func (a *storeApplier) ApplyNodeCreated(msg natsbridge.NodeCreatedMessage) {
	a.store.UpsertNode(graph.Node{ID: msg.NodeID, Type: msg.NodeType})
	if msg.NodeType == graphstore.RuleNodeType {
		a.engine.SyncRules()
	}
}

func (a *storeApplier) ApplyPropertyChanged(msg natsbridge.PropertyChangedMessage) {
	if err := a.store.SetProperty(msg.NodeID, msg.Property, msg.NewValue); err != nil {
		a.logger.Warn("Dropped property delta", "node_id", msg.NodeID, "error", err)
		return
	}
	if _, isRule := a.store.Rule(msg.NodeID); isRule {
		a.engine.SyncRules()
	}
}

func (a *storeApplier) ApplyNodeMoved(msg natsbridge.NodeMovedMessage) {
	if err := a.store.MoveNode(msg.NodeID, msg.Bounds); err != nil {
		a.logger.Warn("Dropped move delta", "node_id", msg.NodeID, "error", err)
	}
}

func (a *storeApplier) ApplyNodeRemoved(msg natsbridge.NodeRemovedMessage) {
	a.store.RemoveNode(msg.NodeID)
	a.engine.SyncRules()
}

func (a *storeApplier) ApplyEdgeCreated(msg natsbridge.EdgeMessage) {
	a.store.UpsertEdge(graph.Edge{ID: msg.EdgeID, SourceID: msg.SourceID, TargetID: msg.TargetID})
}

func (a *storeApplier) ApplyEdgeRemoved(msg natsbridge.EdgeMessage) {
	a.store.RemoveEdge(msg.EdgeID)
}

// loggingExecutor stands in for the external step interpreter: it logs each
// step and reports success. Real deployments swap in their own
// rule.StepExecutor.
type loggingExecutor struct {
	logger *slog.Logger
}

func (l *loggingExecutor) Execute(_ context.Context, steps []rule.Step, execCtx *rule.ExecutionContext, _ *graph.Snapshot) rule.Result {
	for i, step := range steps {
		l.logger.Info("Executing step",
			"rule_id", execCtx.RuleID,
			"execution_id", execCtx.ExecutionID,
			"started_at", timestamp.Format(execCtx.StartedAt),
			"step", i,
			"kind", step["kind"],
		)
	}
	return rule.Result{Success: true}
}
