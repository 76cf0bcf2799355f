// Package trace provides domain types for execution-trace persistence.
package trace

import (
	"encoding/json"
	"sort"
	"time"
)

// Event is the append-only unit of data in the event store.
// Events are immutable once written.
type Event struct {
	// TimestampMs is the event time in Unix milliseconds.
	TimestampMs int64 `json:"timestamp_ms"`

	// Type classifies the event.
	Type EventType `json:"event_type"`

	// ExecutionID identifies the execution this event belongs to, if known.
	ExecutionID string `json:"execution_id,omitempty"`

	// ParentExecutionID is the execution id of the parent graph for
	// subgraph executions.
	ParentExecutionID string `json:"parent_execution_id,omitempty"`

	// RootExecutionID is the execution id of the top-level graph for
	// nested subgraph executions.
	RootExecutionID string `json:"root_execution_id,omitempty"`

	// Depth is the subgraph depth: 0 for top-level graphs, 1 for direct
	// subgraphs, 2+ for nested.
	Depth *uint32 `json:"depth,omitempty"`

	// Payload contains the event-specific data.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent creates an event of the given type with a marshaled payload.
func NewEvent(eventType EventType, executionID string, payload any) (Event, error) {
	if !eventType.Valid() {
		_, err := ParseEventType(string(eventType))
		return Event{}, err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{
		TimestampMs: time.Now().UnixMilli(),
		Type:        eventType,
		ExecutionID: executionID,
		Payload:     data,
	}, nil
}

// UnmarshalPayload decodes the event payload into the given value.
func (e *Event) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// SortEventsByTimestamp orders events ascending by TimestampMs in place.
// The sort is stable so events carrying equal timestamps keep their
// original relative order.
func SortEventsByTimestamp(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].TimestampMs < events[j].TimestampMs
	})
}
