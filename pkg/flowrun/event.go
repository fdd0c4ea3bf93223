package flowrun

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a log-affecting moment in a run.
type EventType string

// Event types, in the order a run can emit them.
const (
	EventRunStarted    EventType = "run_started"
	EventNodeStart     EventType = "node_start"
	EventNodeEnd       EventType = "node_end"
	EventMissingNode   EventType = "missing_node"
	EventNodeException EventType = "node_exception"
	EventRunFinished   EventType = "run_finished"
)

// Event is an immutable notification emitted after each log-affecting phase
// of a run. State is a deep snapshot taken at emission time.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"event"`
	RunID     string    `json:"run_id"`
	GraphID   string    `json:"graph_id,omitempty"`
	Node      string    `json:"node,omitempty"`
	Step      int       `json:"step,omitempty"`
	State     State     `json:"state,omitempty"`
	Error     string    `json:"error,omitempty"`
	Message   string    `json:"message,omitempty"`
	Outcome   Outcome   `json:"outcome,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// newEvent stamps a new event for a run.
func newEvent(typ EventType, r *run) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      typ,
		RunID:     r.id,
		GraphID:   r.graphID,
		Timestamp: time.Now().UTC(),
	}
}

// Terminal reports whether the event is the last one a run emits.
func (e Event) Terminal() bool {
	return e.Type == EventRunFinished
}
