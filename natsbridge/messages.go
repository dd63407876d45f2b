package natsbridge

import "github.com/skovalik/cognograph/geo"

// Wire payloads for the graph delta subjects. The canvas backend publishes
// these; field names are part of the wire contract.

// NodeCreatedMessage announces a new node.
type NodeCreatedMessage struct {
	NodeID   string `json:"node_id"`
	NodeType string `json:"node_type,omitempty"`
}

// PropertyChangedMessage carries one data key diff on a node.
type PropertyChangedMessage struct {
	NodeID   string `json:"node_id"`
	Property string `json:"property"`
	OldValue any    `json:"old_value,omitempty"`
	NewValue any    `json:"new_value,omitempty"`
}

// NodeMovedMessage carries a node's new bounding box.
type NodeMovedMessage struct {
	NodeID string   `json:"node_id"`
	Bounds geo.Rect `json:"bounds"`
}

// NodeRemovedMessage announces a node deletion.
type NodeRemovedMessage struct {
	NodeID string `json:"node_id"`
}

// EdgeMessage describes an edge creation or removal. Node types ride along
// so peer-type trigger filters need no extra lookup.
type EdgeMessage struct {
	EdgeID     string `json:"edge_id,omitempty"`
	SourceID   string `json:"source_id"`
	SourceType string `json:"source_type,omitempty"`
	TargetID   string `json:"target_id"`
	TargetType string `json:"target_type,omitempty"`
}

// ManualTriggerMessage requests an immediate rule execution.
type ManualTriggerMessage struct {
	RuleID string `json:"rule_id"`
}

// RunRecord is published after every rule execution.
type RunRecord struct {
	RuleID    string `json:"rule_id"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}
