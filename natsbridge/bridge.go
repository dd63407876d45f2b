// Package natsbridge connects the automation engine to NATS. It subscribes
// to graph delta subjects published by the canvas backend, decodes them into
// engine events, and publishes a run record for every rule execution.
package natsbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/skovalik/cognograph/errors"
	"github.com/skovalik/cognograph/geo"
	"github.com/skovalik/cognograph/pkg/timestamp"
	"github.com/skovalik/cognograph/types/graph"
	"github.com/skovalik/cognograph/types/rule"
)

// EventSink is the engine surface the bridge drives. *automation.Engine
// satisfies it.
type EventSink interface {
	HandleEvent(event rule.Event)
	HandleNodeMoved(nodeID string, box geo.Rect)
	HandleNodeRemoved(nodeID string)
	SyncRules()
	TriggerManual(ruleID string) error
	Tick()
}

// GraphApplier mirrors raw deltas into a local graph store. When bound, the
// bridge applies each delta to it before handing the derived event to the
// sink, so engine snapshots already reflect the mutation being matched.
type GraphApplier interface {
	ApplyNodeCreated(msg NodeCreatedMessage)
	ApplyPropertyChanged(msg PropertyChangedMessage)
	ApplyNodeMoved(msg NodeMovedMessage)
	ApplyNodeRemoved(msg NodeRemovedMessage)
	ApplyEdgeCreated(msg EdgeMessage)
	ApplyEdgeRemoved(msg EdgeMessage)
}

// Bridge owns the NATS connection and the delta subscriptions.
type Bridge struct {
	config Config
	logger *slog.Logger

	mu      sync.Mutex
	conn    *nats.Conn
	subs    []*nats.Subscription
	sink    EventSink
	applier GraphApplier
	started bool
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the bridge's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithConn injects an existing NATS connection. The bridge will not manage
// its lifecycle (no connect on Start, no close on Stop).
func WithConn(conn *nats.Conn) Option {
	return func(b *Bridge) {
		b.conn = conn
	}
}

// New creates a bridge. Bind an engine before Start.
func New(config Config, opts ...Option) (*Bridge, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "Bridge", "New", "validate config")
	}

	b := &Bridge{
		config: config,
		logger: slog.Default().With("component", "natsbridge"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b, nil
}

// Bind attaches the engine the bridge feeds events to.
func (b *Bridge) Bind(sink EventSink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sink = sink
}

// BindApplier attaches an optional local graph mirror.
func (b *Bridge) BindApplier(applier GraphApplier) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.applier = applier
}

// Start connects (unless a connection was injected) and subscribes to the
// graph delta subjects.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return errors.Wrap(errors.ErrAlreadyStarted, "Bridge", "Start", "bridge already started")
	}
	if b.sink == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Bridge", "Start", "no engine bound")
	}

	if b.conn == nil {
		conn, err := nats.Connect(b.config.URL,
			nats.Name(b.config.ClientName),
			nats.MaxReconnects(b.config.MaxReconnects),
			nats.ReconnectWait(b.config.ReconnectWait),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				if err == nil {
					err = errors.ErrConnectionLost
				}
				b.logger.Warn("NATS disconnected", "error", err)
			}),
			nats.ReconnectHandler(func(conn *nats.Conn) {
				b.logger.Info("NATS reconnected", "url", conn.ConnectedUrl())
			}),
		)
		if err != nil {
			return errors.WrapTransient(err, "Bridge", "Start",
				fmt.Sprintf("connect to %s", b.config.URL))
		}
		b.conn = conn
	}

	subjects := map[string]func(context.Context, []byte){
		b.subject("graph.node.created"):  b.handleNodeCreated,
		b.subject("graph.node.property"): b.handlePropertyChanged,
		b.subject("graph.node.moved"):    b.handleNodeMoved,
		b.subject("graph.node.removed"):  b.handleNodeRemoved,
		b.subject("graph.edge.created"):  b.handleEdgeCreated,
		b.subject("graph.edge.removed"):  b.handleEdgeRemoved,
		b.subject("rules.sync"):          b.handleRulesSync,
		b.subject("rules.manual"):        b.handleManualTrigger,
		b.subject("rules.tick"):          b.handleTick,
	}
	for subj, handler := range subjects {
		handler := handler
		sub, err := b.conn.Subscribe(subj, func(msg *nats.Msg) {
			handler(ctx, msg.Data)
		})
		if err != nil {
			b.unsubscribeLocked()
			return errors.WrapTransient(err, "Bridge", "Start",
				fmt.Sprintf("subscribe to %s", subj))
		}
		b.subs = append(b.subs, sub)
	}

	b.started = true
	b.logger.Info("Bridge started", "subjects", len(subjects), "prefix", b.config.SubjectPrefix)
	return nil
}

// Stop drains the subscriptions and, if the bridge owns the connection,
// closes it.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		return errors.Wrap(errors.ErrNotStarted, "Bridge", "Stop", "bridge not started")
	}
	b.unsubscribeLocked()
	b.started = false
	b.logger.Info("Bridge stopped")
	return nil
}

func (b *Bridge) unsubscribeLocked() {
	for _, sub := range b.subs {
		if err := sub.Drain(); err != nil {
			b.logger.Warn("Failed to drain subscription", "subject", sub.Subject, "error", err)
		}
	}
	b.subs = nil
}

// PublishRunRecord publishes one execution outcome. Wire it into the engine
// via automation.WithRunHook.
func (b *Bridge) PublishRunRecord(ruleID string, result rule.Result) {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()

	if conn == nil {
		b.logger.Debug("Run record dropped", "rule_id", ruleID, "error", errors.ErrNoConnection)
		return
	}

	record := RunRecord{
		RuleID:    ruleID,
		Success:   result.Success,
		Error:     result.Error,
		Timestamp: timestamp.Now(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		b.logger.Error("Failed to marshal run record", "rule_id", ruleID, "error", err)
		return
	}
	if err := conn.Publish(b.subject("runs"), data); err != nil {
		b.logger.Warn("Failed to publish run record", "rule_id", ruleID, "error", err)
	}
}

func (b *Bridge) subject(suffix string) string {
	return b.config.SubjectPrefix + "." + suffix
}

// Delta handlers. Each decodes one payload shape and forwards to the engine;
// malformed payloads are logged and dropped so one bad publisher cannot
// wedge the stream.

func (b *Bridge) handleNodeCreated(_ context.Context, data []byte) {
	var msg NodeCreatedMessage
	if err := b.decode(data, &msg, "node created"); err != nil {
		return
	}
	if b.applier != nil {
		b.applier.ApplyNodeCreated(msg)
	}
	b.sink.HandleEvent(rule.NewNodeCreatedEvent(msg.NodeID))
}

func (b *Bridge) handlePropertyChanged(_ context.Context, data []byte) {
	var msg PropertyChangedMessage
	if err := b.decode(data, &msg, "property changed"); err != nil {
		return
	}
	if b.applier != nil {
		b.applier.ApplyPropertyChanged(msg)
	}
	b.sink.HandleEvent(rule.NewPropertyChangeEvent(msg.NodeID, msg.Property, msg.OldValue, msg.NewValue))
}

func (b *Bridge) handleNodeMoved(_ context.Context, data []byte) {
	var msg NodeMovedMessage
	if err := b.decode(data, &msg, "node moved"); err != nil {
		return
	}
	if b.applier != nil {
		b.applier.ApplyNodeMoved(msg)
	}
	b.sink.HandleNodeMoved(msg.NodeID, msg.Bounds)
}

func (b *Bridge) handleNodeRemoved(_ context.Context, data []byte) {
	var msg NodeRemovedMessage
	if err := b.decode(data, &msg, "node removed"); err != nil {
		return
	}
	if b.applier != nil {
		b.applier.ApplyNodeRemoved(msg)
	}
	b.sink.HandleNodeRemoved(msg.NodeID)
}

// handleEdgeCreated fans one edge delta out to both endpoints: the source
// sees an outgoing connection, the target an incoming one.
func (b *Bridge) handleEdgeCreated(_ context.Context, data []byte) {
	b.handleEdgeChange(data, rule.EventConnectionMade, "edge created")
}

func (b *Bridge) handleEdgeRemoved(_ context.Context, data []byte) {
	b.handleEdgeChange(data, rule.EventConnectionRemoved, "edge removed")
}

func (b *Bridge) handleEdgeChange(data []byte, eventType rule.EventType, what string) {
	var msg EdgeMessage
	if err := b.decode(data, &msg, what); err != nil {
		return
	}
	if b.applier != nil {
		if eventType == rule.EventConnectionMade {
			b.applier.ApplyEdgeCreated(msg)
		} else {
			b.applier.ApplyEdgeRemoved(msg)
		}
	}
	b.sink.HandleEvent(rule.NewConnectionEvent(
		eventType, msg.SourceID, graph.DirectionOutgoing, msg.TargetID, msg.TargetType))
	b.sink.HandleEvent(rule.NewConnectionEvent(
		eventType, msg.TargetID, graph.DirectionIncoming, msg.SourceID, msg.SourceType))
}

func (b *Bridge) handleRulesSync(_ context.Context, _ []byte) {
	b.sink.SyncRules()
}

func (b *Bridge) handleManualTrigger(_ context.Context, data []byte) {
	var msg ManualTriggerMessage
	if err := b.decode(data, &msg, "manual trigger"); err != nil {
		return
	}
	if err := b.sink.TriggerManual(msg.RuleID); err != nil {
		b.logger.Warn("Manual trigger failed", "rule_id", msg.RuleID, "error", err)
	}
}

func (b *Bridge) handleTick(_ context.Context, _ []byte) {
	b.sink.Tick()
}

func (b *Bridge) decode(data []byte, v any, what string) error {
	if err := json.Unmarshal(data, v); err != nil {
		b.logger.Warn("Dropping malformed delta payload", "kind", what, "error", err)
		return errors.WrapInvalid(err, "Bridge", "decode", what)
	}
	return nil
}
