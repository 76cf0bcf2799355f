package trace

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// EventType classifies execution-trace events.
//
// The set is closed: an EventType must round-trip to and from its string
// form exactly, and an unrecognized string is a hard parse error, never
// silently coerced to a default.
type EventType string

// Event types emitted by the workflow execution engine.
const (
	// Execution lifecycle events
	EventExecutionStart EventType = "execution_start"
	EventExecutionEnd   EventType = "execution_end"

	// Node lifecycle events
	EventNodeStart EventType = "node_start"
	EventNodeEnd   EventType = "node_end"

	// Graph traversal events
	EventEdgeEvaluated EventType = "edge_evaluated"
	EventStateChanged  EventType = "state_changed"

	// Introspection events
	EventDecisionMade    EventType = "decision_made"
	EventOutcomeObserved EventType = "outcome_observed"

	// EventExecutionTrace carries a full serialized ExecutionTrace document.
	EventExecutionTrace EventType = "execution_trace"
)

// validEventTypes is the closed set accepted by ParseEventType.
var validEventTypes = map[EventType]struct{}{
	EventExecutionStart:  {},
	EventExecutionEnd:    {},
	EventNodeStart:       {},
	EventNodeEnd:         {},
	EventEdgeEvaluated:   {},
	EventStateChanged:    {},
	EventDecisionMade:    {},
	EventOutcomeObserved: {},
	EventExecutionTrace:  {},
}

// ParseEventType validates s against the closed event type set.
// Unknown strings fail with an error naming the offending value and
// enumerating the valid set, wrapped in ErrUnknownEventType.
func ParseEventType(s string) (EventType, error) {
	t := EventType(s)
	if _, ok := validEventTypes[t]; !ok {
		return "", fmt.Errorf("%w: %q (valid: %s)", ErrUnknownEventType, s, validEventTypeList())
	}
	return t, nil
}

// Valid reports whether t is a member of the closed event type set.
func (t EventType) Valid() bool {
	_, ok := validEventTypes[t]
	return ok
}

// String returns the wire form of the event type.
func (t EventType) String() string {
	return string(t)
}

// MarshalJSON encodes the event type as its string form.
func (t EventType) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %q (valid: %s)", ErrUnknownEventType, string(t), validEventTypeList())
	}
	return json.Marshal(string(t))
}

// UnmarshalJSON decodes and validates the event type string.
func (t *EventType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	parsed, err := ParseEventType(s)
	if err != nil {
		return err
	}

	*t = parsed
	return nil
}

func validEventTypeList() string {
	names := make([]string, 0, len(validEventTypes))
	for t := range validEventTypes {
		names = append(names, string(t))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
