package trace_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/felixgeelhaar/tracewal/domain/trace"
)

func TestParseEventType_Valid(t *testing.T) {
	valid := []string{
		"execution_start",
		"execution_end",
		"node_start",
		"node_end",
		"edge_evaluated",
		"state_changed",
		"decision_made",
		"outcome_observed",
		"execution_trace",
	}

	for _, s := range valid {
		parsed, err := trace.ParseEventType(s)
		if err != nil {
			t.Errorf("ParseEventType(%q) failed: %v", s, err)
		}
		if string(parsed) != s {
			t.Errorf("ParseEventType(%q) = %q, want exact round-trip", s, parsed)
		}
	}
}

func TestParseEventType_Unknown(t *testing.T) {
	_, err := trace.ParseEventType("graph_teleported")
	if err == nil {
		t.Fatal("expected error for unknown event type")
	}

	if !errors.Is(err, trace.ErrUnknownEventType) {
		t.Errorf("expected ErrUnknownEventType, got %v", err)
	}

	// The error must name the offending string and enumerate the valid set.
	msg := err.Error()
	if !strings.Contains(msg, "graph_teleported") {
		t.Errorf("error should name the offending string, got: %s", msg)
	}
	if !strings.Contains(msg, "execution_start") || !strings.Contains(msg, "node_end") {
		t.Errorf("error should enumerate the valid set, got: %s", msg)
	}
}

func TestEventType_UnmarshalJSON_Unknown(t *testing.T) {
	var e trace.Event
	err := json.Unmarshal([]byte(`{"timestamp_ms":1,"event_type":"bogus"}`), &e)
	if err == nil {
		t.Fatal("expected hard parse error for unknown event type")
	}
	if !errors.Is(err, trace.ErrUnknownEventType) {
		t.Errorf("expected ErrUnknownEventType, got %v", err)
	}
}

func TestEventType_JSONRoundTrip(t *testing.T) {
	e := trace.Event{
		TimestampMs: 1700000000000,
		Type:        trace.EventNodeEnd,
		ExecutionID: "exec-1",
		Payload:     json.RawMessage(`{"node":"plan"}`),
	}

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded trace.Event
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if decoded.Type != trace.EventNodeEnd {
		t.Errorf("event type = %q, want %q", decoded.Type, trace.EventNodeEnd)
	}
	if decoded.ExecutionID != "exec-1" {
		t.Errorf("execution id = %q, want exec-1", decoded.ExecutionID)
	}
}

func TestEventType_MarshalJSON_Invalid(t *testing.T) {
	e := trace.Event{TimestampMs: 1, Type: trace.EventType("nope")}
	if _, err := json.Marshal(e); err == nil {
		t.Fatal("expected marshal of invalid event type to fail")
	}
}
