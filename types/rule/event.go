package rule

import (
	"github.com/skovalik/cognograph/pkg/timestamp"
	"github.com/skovalik/cognograph/types/graph"
)

// EventType identifies the kind of graph mutation an Event describes.
type EventType string

const (
	// EventPropertyChange is a change to one key of a node's data.
	EventPropertyChange EventType = "property-change"
	// EventNodeCreated is the appearance of a new node.
	EventNodeCreated EventType = "node-created"
	// EventConnectionMade is the creation of an edge touching the node.
	EventConnectionMade EventType = "connection-made"
	// EventConnectionRemoved is the removal of an edge touching the node.
	EventConnectionRemoved EventType = "connection-removed"
	// EventNodePositionChange is a node movement that entered or exited a
	// region. One event is emitted per region crossed.
	EventNodePositionChange EventType = "node-position-change"
	// EventManual is a synthesized event for explicit rule invocation.
	EventManual EventType = "manual"
	// EventScheduleTick is a periodic tick for schedule triggers.
	EventScheduleTick EventType = "schedule-tick"
)

// PropertyChange is the payload of a property-change event.
type PropertyChange struct {
	Name     string `json:"name"`
	OldValue any    `json:"old_value,omitempty"`
	NewValue any    `json:"new_value,omitempty"`
}

// Connection is the payload of connection-made/connection-removed events.
// Direction is relative to the event's source node.
type Connection struct {
	Direction  graph.Direction `json:"direction"`
	PeerNodeID string          `json:"peer_node_id"`
	PeerType   string          `json:"peer_type,omitempty"`
}

// Position is the payload of a node-position-change event. Exactly one of
// EnteredRegionID/ExitedRegionID is set per event; a move crossing several
// regions produces several events.
type Position struct {
	EnteredRegionID string `json:"entered_region_id,omitempty"`
	ExitedRegionID  string `json:"exited_region_id,omitempty"`
}

// Event is a single graph mutation as delivered to the engine. Events are
// ephemeral: produced by the graph mutation layer (or the natsbridge),
// consumed by trigger matching, never persisted.
type Event struct {
	Type         EventType `json:"type"`
	SourceNodeID string    `json:"source_node_id"`
	Timestamp    int64     `json:"timestamp"` // unix milliseconds

	Property   *PropertyChange `json:"property,omitempty"`
	Connection *Connection     `json:"connection,omitempty"`
	Position   *Position       `json:"position,omitempty"`
}

// NewPropertyChangeEvent creates a property-change event for one data key.
func NewPropertyChangeEvent(nodeID, property string, oldValue, newValue any) Event {
	return Event{
		Type:         EventPropertyChange,
		SourceNodeID: nodeID,
		Timestamp:    timestamp.Now(),
		Property:     &PropertyChange{Name: property, OldValue: oldValue, NewValue: newValue},
	}
}

// NewNodeCreatedEvent creates a node-created event.
func NewNodeCreatedEvent(nodeID string) Event {
	return Event{
		Type:         EventNodeCreated,
		SourceNodeID: nodeID,
		Timestamp:    timestamp.Now(),
	}
}

// NewConnectionEvent creates a connection-made or connection-removed event.
// direction is relative to nodeID.
func NewConnectionEvent(eventType EventType, nodeID string, direction graph.Direction, peerID, peerType string) Event {
	return Event{
		Type:         eventType,
		SourceNodeID: nodeID,
		Timestamp:    timestamp.Now(),
		Connection:   &Connection{Direction: direction, PeerNodeID: peerID, PeerType: peerType},
	}
}

// NewRegionEnterEvent creates a position event for a region entry.
func NewRegionEnterEvent(nodeID, regionID string) Event {
	return Event{
		Type:         EventNodePositionChange,
		SourceNodeID: nodeID,
		Timestamp:    timestamp.Now(),
		Position:     &Position{EnteredRegionID: regionID},
	}
}

// NewRegionExitEvent creates a position event for a region exit.
func NewRegionExitEvent(nodeID, regionID string) Event {
	return Event{
		Type:         EventNodePositionChange,
		SourceNodeID: nodeID,
		Timestamp:    timestamp.Now(),
		Position:     &Position{ExitedRegionID: regionID},
	}
}

// NewPositionChangeEvent creates a position event with no region crossing,
// used for proximity evaluation of plain moves.
func NewPositionChangeEvent(nodeID string) Event {
	return Event{
		Type:         EventNodePositionChange,
		SourceNodeID: nodeID,
		Timestamp:    timestamp.Now(),
		Position:     &Position{},
	}
}

// NewManualEvent creates the synthetic event used for explicit invocation.
func NewManualEvent(nodeID string) Event {
	return Event{
		Type:         EventManual,
		SourceNodeID: nodeID,
		Timestamp:    timestamp.Now(),
	}
}

// NewScheduleTickEvent creates a schedule tick addressed to one rule node.
func NewScheduleTickEvent(nodeID string) Event {
	return Event{
		Type:         EventScheduleTick,
		SourceNodeID: nodeID,
		Timestamp:    timestamp.Now(),
	}
}
