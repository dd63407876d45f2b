package natsbridge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skovalik/cognograph/errors"
	"github.com/skovalik/cognograph/geo"
	"github.com/skovalik/cognograph/types/graph"
	"github.com/skovalik/cognograph/types/rule"
)

// recordingSink captures everything the bridge forwards to the engine.
type recordingSink struct {
	events    []rule.Event
	moved     []string
	removed   []string
	syncs     int
	manual    []string
	manualErr error
	ticks     int
}

func (s *recordingSink) HandleEvent(event rule.Event)          { s.events = append(s.events, event) }
func (s *recordingSink) HandleNodeMoved(id string, _ geo.Rect) { s.moved = append(s.moved, id) }
func (s *recordingSink) HandleNodeRemoved(id string)           { s.removed = append(s.removed, id) }
func (s *recordingSink) SyncRules()                            { s.syncs++ }
func (s *recordingSink) Tick()                                 { s.ticks++ }
func (s *recordingSink) TriggerManual(id string) error {
	s.manual = append(s.manual, id)
	return s.manualErr
}

func newTestBridge(t *testing.T) (*Bridge, *recordingSink) {
	t.Helper()
	b, err := New(DefaultConfig())
	require.NoError(t, err)
	sink := &recordingSink{}
	b.Bind(sink)
	return b, sink
}

func TestHandlePropertyChanged(t *testing.T) {
	b, sink := newTestBridge(t)

	b.handlePropertyChanged(context.Background(),
		[]byte(`{"node_id":"n1","property":"status","old_value":"open","new_value":"done"}`))

	require.Len(t, sink.events, 1)
	event := sink.events[0]
	assert.Equal(t, rule.EventPropertyChange, event.Type)
	assert.Equal(t, "n1", event.SourceNodeID)
	require.NotNil(t, event.Property)
	assert.Equal(t, "status", event.Property.Name)
	assert.Equal(t, "open", event.Property.OldValue)
	assert.Equal(t, "done", event.Property.NewValue)
}

func TestHandleNodeCreated(t *testing.T) {
	b, sink := newTestBridge(t)

	b.handleNodeCreated(context.Background(), []byte(`{"node_id":"n1","node_type":"task"}`))

	require.Len(t, sink.events, 1)
	assert.Equal(t, rule.EventNodeCreated, sink.events[0].Type)
	assert.Equal(t, "n1", sink.events[0].SourceNodeID)
}

func TestHandleNodeMoved(t *testing.T) {
	b, sink := newTestBridge(t)

	b.handleNodeMoved(context.Background(),
		[]byte(`{"node_id":"n1","bounds":{"x":10,"y":20,"width":100,"height":50}}`))

	assert.Equal(t, []string{"n1"}, sink.moved)
}

func TestHandleNodeRemoved(t *testing.T) {
	b, sink := newTestBridge(t)

	b.handleNodeRemoved(context.Background(), []byte(`{"node_id":"gone"}`))

	assert.Equal(t, []string{"gone"}, sink.removed)
}

func TestHandleEdgeCreatedFansOutToBothEndpoints(t *testing.T) {
	b, sink := newTestBridge(t)

	b.handleEdgeCreated(context.Background(),
		[]byte(`{"source_id":"a","source_type":"task","target_id":"b","target_type":"note"}`))

	require.Len(t, sink.events, 2)

	outgoing := sink.events[0]
	assert.Equal(t, rule.EventConnectionMade, outgoing.Type)
	assert.Equal(t, "a", outgoing.SourceNodeID)
	require.NotNil(t, outgoing.Connection)
	assert.Equal(t, graph.DirectionOutgoing, outgoing.Connection.Direction)
	assert.Equal(t, "b", outgoing.Connection.PeerNodeID)
	assert.Equal(t, "note", outgoing.Connection.PeerType)

	incoming := sink.events[1]
	assert.Equal(t, "b", incoming.SourceNodeID)
	assert.Equal(t, graph.DirectionIncoming, incoming.Connection.Direction)
	assert.Equal(t, "a", incoming.Connection.PeerNodeID)
	assert.Equal(t, "task", incoming.Connection.PeerType)
}

func TestHandleEdgeRemoved(t *testing.T) {
	b, sink := newTestBridge(t)

	b.handleEdgeRemoved(context.Background(), []byte(`{"source_id":"a","target_id":"b"}`))

	require.Len(t, sink.events, 2)
	assert.Equal(t, rule.EventConnectionRemoved, sink.events[0].Type)
	assert.Equal(t, rule.EventConnectionRemoved, sink.events[1].Type)
}

func TestHandleRulesSyncAndTick(t *testing.T) {
	b, sink := newTestBridge(t)

	b.handleRulesSync(context.Background(), nil)
	b.handleRulesSync(context.Background(), nil)
	b.handleTick(context.Background(), nil)

	assert.Equal(t, 2, sink.syncs)
	assert.Equal(t, 1, sink.ticks)
}

func TestHandleManualTrigger(t *testing.T) {
	b, sink := newTestBridge(t)

	b.handleManualTrigger(context.Background(), []byte(`{"rule_id":"r1"}`))

	assert.Equal(t, []string{"r1"}, sink.manual)
}

func TestMalformedPayloadsDropped(t *testing.T) {
	b, sink := newTestBridge(t)

	b.handlePropertyChanged(context.Background(), []byte(`not json`))
	b.handleNodeMoved(context.Background(), []byte(`{`))
	b.handleEdgeCreated(context.Background(), []byte(`[]`))

	assert.Empty(t, sink.events)
	assert.Empty(t, sink.moved)
}

// recordingApplier tags each delta so ordering against the sink is visible.
type recordingApplier struct {
	log *[]string
}

func (a *recordingApplier) ApplyNodeCreated(NodeCreatedMessage) { *a.log = append(*a.log, "apply") }
func (a *recordingApplier) ApplyPropertyChanged(PropertyChangedMessage) {
	*a.log = append(*a.log, "apply")
}
func (a *recordingApplier) ApplyNodeMoved(NodeMovedMessage)     { *a.log = append(*a.log, "apply") }
func (a *recordingApplier) ApplyNodeRemoved(NodeRemovedMessage) { *a.log = append(*a.log, "apply") }
func (a *recordingApplier) ApplyEdgeCreated(EdgeMessage)        { *a.log = append(*a.log, "apply") }
func (a *recordingApplier) ApplyEdgeRemoved(EdgeMessage)        { *a.log = append(*a.log, "apply") }

// orderingSink appends to the same log as the applier.
type orderingSink struct {
	recordingSink
	log *[]string
}

func (s *orderingSink) HandleEvent(event rule.Event) {
	*s.log = append(*s.log, "sink")
	s.recordingSink.HandleEvent(event)
}

func TestApplierRunsBeforeSink(t *testing.T) {
	b, err := New(DefaultConfig())
	require.NoError(t, err)

	var log []string
	sink := &orderingSink{log: &log}
	b.Bind(sink)
	b.BindApplier(&recordingApplier{log: &log})

	b.handlePropertyChanged(context.Background(),
		[]byte(`{"node_id":"n1","property":"status","new_value":"done"}`))

	assert.Equal(t, []string{"apply", "sink"},
		log, "store mirror updated before the engine sees the event")
}

func TestStartRequiresBoundEngine(t *testing.T) {
	b, err := New(DefaultConfig())
	require.NoError(t, err)

	err = b.Start(context.Background())
	assert.Error(t, err)
}

func TestStopBeforeStart(t *testing.T) {
	b, err := New(DefaultConfig())
	require.NoError(t, err)

	err = b.Stop()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotStarted)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	noURL := cfg
	noURL.URL = ""
	assert.Error(t, noURL.Validate())

	noPrefix := cfg
	noPrefix.SubjectPrefix = ""
	assert.Error(t, noPrefix.Validate())
}

func TestSubjectNamespacing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SubjectPrefix = "workspace42"
	b, err := New(cfg)
	require.NoError(t, err)

	assert.Equal(t, "workspace42.graph.node.moved", b.subject("graph.node.moved"))
	assert.Equal(t, "workspace42.runs", b.subject("runs"))
}
