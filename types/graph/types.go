// Package graph provides the node/edge snapshot types the automation engine
// reads, plus directed traversal helpers used by trigger matching. The graph
// itself (CRUD, persistence, undo/redo) is owned by an external store; the
// engine only ever sees immutable snapshots of it.
package graph

import (
	"encoding/json"

	"github.com/skovalik/cognograph/geo"
)

// Direction selects which edges touching a node are considered.
type Direction string

const (
	// DirectionIncoming counts edges where the node is the target.
	DirectionIncoming Direction = "incoming"
	// DirectionOutgoing counts edges where the node is the source.
	DirectionOutgoing Direction = "outgoing"
	// DirectionAny counts both.
	DirectionAny Direction = "any"
)

// IsValid checks if the Direction is one of the defined constants.
// An empty direction is treated as DirectionAny by consumers.
func (d Direction) IsValid() bool {
	switch d {
	case DirectionIncoming, DirectionOutgoing, DirectionAny, "":
		return true
	default:
		return false
	}
}

// Node is a canvas node as seen by the automation engine: identity, type,
// free-form data (the target of condition field paths), and placement.
// Width/Height of 0 mean the node has not been measured yet.
type Node struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Data   map[string]any `json:"data,omitempty"`
	X      float64        `json:"x"`
	Y      float64        `json:"y"`
	Width  float64        `json:"width,omitempty"`
	Height float64        `json:"height,omitempty"`
}

// Bounds returns the node's bounding box, substituting the given defaults
// for unmeasured dimensions.
func (n *Node) Bounds(defaultWidth, defaultHeight float64) geo.Rect {
	w, h := n.Width, n.Height
	if w <= 0 {
		w = defaultWidth
	}
	if h <= 0 {
		h = defaultHeight
	}
	return geo.Rect{X: n.X, Y: n.Y, Width: w, Height: h}
}

// Edge is a directed connection between two nodes.
type Edge struct {
	ID       string `json:"id"`
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
}

// Snapshot is a point-in-time view of the graph. It is read-only from the
// engine's perspective; traversal helpers never mutate it.
type Snapshot struct {
	Nodes map[string]*Node `json:"nodes"`
	Edges []Edge           `json:"edges"`
}

// NewSnapshot builds a snapshot from a node list and edge list.
func NewSnapshot(nodes []*Node, edges []Edge) *Snapshot {
	s := &Snapshot{
		Nodes: make(map[string]*Node, len(nodes)),
		Edges: edges,
	}
	for _, n := range nodes {
		if n != nil && n.ID != "" {
			s.Nodes[n.ID] = n
		}
	}
	return s
}

// Node returns the node with the given id, or nil if absent.
func (s *Snapshot) Node(id string) *Node {
	if s == nil || s.Nodes == nil {
		return nil
	}
	return s.Nodes[id]
}

// Clone returns a deep copy of the snapshot via JSON round-trip. Used by
// test fixtures; the engine itself never copies snapshots.
func (s *Snapshot) Clone() (*Snapshot, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var out Snapshot
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
