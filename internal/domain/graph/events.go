package graph

import (
	"time"

	"github.com/google/uuid"
)

// Event types published by the graph service.
const (
	EventGraphCreated  = "graph.created"
	EventGraphExpanded = "graph.expanded"
	EventGraphDeleted  = "graph.deleted"
)

// Event is a domain event about one graph.
type Event struct {
	ID         string         `json:"eventId"`
	Type       string         `json:"eventType"`
	GraphID    string         `json:"graphId"`
	OccurredAt time.Time      `json:"occurredAt"`
	Details    map[string]any `json:"details,omitempty"`
}

// NewEvent stamps a new event with a random id.
func NewEvent(eventType, graphID string, at time.Time, details map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		GraphID:    graphID,
		OccurredAt: at.UTC(),
		Details:    details,
	}
}
