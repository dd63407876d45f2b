// Package graphstore is an in-memory implementation of the engine's graph
// collaborator. The canvas backend owns the authoritative graph; this store
// mirrors it from the same delta stream the engine consumes, so snapshots,
// rule definitions, and run statistics are available in-process.
package graphstore

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/skovalik/cognograph/errors"
	"github.com/skovalik/cognograph/geo"
	"github.com/skovalik/cognograph/pkg/timestamp"
	"github.com/skovalik/cognograph/types/graph"
	"github.com/skovalik/cognograph/types/rule"
)

// RuleNodeType marks nodes that embed an automation rule in their data.
const RuleNodeType = "automation"

// Store is a thread-safe in-memory node/edge mirror. It implements
// rule.GraphStore.
type Store struct {
	mu     sync.RWMutex
	nodes  map[string]*graph.Node
	edges  map[string]graph.Edge
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		nodes:  make(map[string]*graph.Node),
		edges:  make(map[string]graph.Edge),
		logger: slog.Default().With("component", "graphstore"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Load replaces the whole graph, used when a persisted canvas is opened.
func (s *Store) Load(nodes []*graph.Node, edges []graph.Edge) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes = make(map[string]*graph.Node, len(nodes))
	for _, n := range nodes {
		if n != nil && n.ID != "" {
			copied := *n
			s.nodes[n.ID] = &copied
		}
	}
	s.edges = make(map[string]graph.Edge, len(edges))
	for _, e := range edges {
		if e.ID != "" {
			s.edges[e.ID] = e
		}
	}

	s.logger.Info("Graph loaded", "node_count", len(s.nodes), "edge_count", len(s.edges))
}

// UpsertNode adds or replaces a node.
func (s *Store) UpsertNode(n graph.Node) {
	if n.ID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[n.ID] = &n
}

// SetProperty writes one key of a node's data map.
func (s *Store) SetProperty(nodeID, property string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, exists := s.nodes[nodeID]
	if !exists {
		return errors.WrapInvalid(errors.ErrNodeNotFound, "Store", "SetProperty", "lookup "+nodeID)
	}
	if n.Data == nil {
		n.Data = make(map[string]any)
	}
	n.Data[property] = value
	return nil
}

// MoveNode updates a node's bounding box.
func (s *Store) MoveNode(nodeID string, box geo.Rect) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, exists := s.nodes[nodeID]
	if !exists {
		return errors.WrapInvalid(errors.ErrNodeNotFound, "Store", "MoveNode", "lookup "+nodeID)
	}
	n.X, n.Y = box.X, box.Y
	n.Width, n.Height = box.Width, box.Height
	return nil
}

// RemoveNode deletes a node and every edge touching it.
func (s *Store) RemoveNode(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.nodes, nodeID)
	for id, e := range s.edges {
		if e.SourceID == nodeID || e.TargetID == nodeID {
			delete(s.edges, id)
		}
	}
}

// UpsertEdge adds or replaces an edge.
func (s *Store) UpsertEdge(e graph.Edge) {
	if e.ID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edges[e.ID] = e
}

// RemoveEdge deletes an edge.
func (s *Store) RemoveEdge(edgeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.edges, edgeID)
}

// Snapshot returns an immutable view of the current graph. Node structs are
// copied; data maps are shared and must be treated as read-only.
func (s *Store) Snapshot() *graph.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]*graph.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		copied := *n
		nodes = append(nodes, &copied)
	}
	edges := make([]graph.Edge, 0, len(s.edges))
	for _, e := range s.edges {
		edges = append(edges, e)
	}
	return graph.NewSnapshot(nodes, edges)
}

// Rules decodes every automation node into a rule definition. Nodes whose
// embedded rule does not decode are skipped with a warning.
func (s *Store) Rules() []rule.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []rule.Rule
	for _, n := range s.nodes {
		if n.Type != RuleNodeType {
			continue
		}
		r, err := decodeRule(n)
		if err != nil {
			s.logger.Warn("Skipping undecodable rule node", "node_id", n.ID, "error", err)
			continue
		}
		out = append(out, r)
	}
	return out
}

// Rule returns the live definition of one rule.
func (s *Store) Rule(id string) (rule.Rule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, exists := s.nodes[id]
	if !exists || n.Type != RuleNodeType {
		return rule.Rule{}, false
	}
	r, err := decodeRule(n)
	if err != nil {
		return rule.Rule{}, false
	}
	return r, true
}

// UpdateRuleStats writes run statistics back onto the rule node's data.
func (s *Store) UpdateRuleStats(id string, stats rule.RunStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, exists := s.nodes[id]
	if !exists || n.Type != RuleNodeType {
		return errors.WrapInvalid(errors.ErrRuleNotFound, "Store", "UpdateRuleStats", "lookup "+id)
	}

	if n.Data == nil {
		n.Data = make(map[string]any)
	}
	statsMap := map[string]any{
		"run_count":   stats.RunCount,
		"error_count": stats.ErrorCount,
		"last_error":  stats.LastError,
	}
	if !timestamp.IsZero(stats.LastRun) {
		statsMap["last_run"] = stats.LastRun
	}
	n.Data["stats"] = statsMap
	return nil
}

// decodeRule extracts the rule embedded in an automation node's data map.
// The data map uses the same JSON field names as rule.Rule, minus the id,
// which is the node's own id. Editors store last_run in whatever format
// they like (RFC3339, epoch seconds), so it is normalized to unix
// milliseconds before decoding.
func decodeRule(n *graph.Node) (rule.Rule, error) {
	data := n.Data
	if rawStats, ok := data["stats"].(map[string]any); ok {
		if lastRun, exists := rawStats["last_run"]; exists {
			statsCopy := make(map[string]any, len(rawStats))
			for k, v := range rawStats {
				statsCopy[k] = v
			}
			statsCopy["last_run"] = timestamp.Parse(lastRun)

			data = make(map[string]any, len(n.Data))
			for k, v := range n.Data {
				data[k] = v
			}
			data["stats"] = statsCopy
		}
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return rule.Rule{}, errors.WrapInvalid(err, "Store", "decodeRule", "marshal node data")
	}
	var r rule.Rule
	if err := json.Unmarshal(raw, &r); err != nil {
		return rule.Rule{}, errors.WrapInvalid(err, "Store", "decodeRule", "unmarshal rule")
	}
	r.ID = n.ID
	return r, nil
}
