package wal_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/tracewal/domain/trace"
	"github.com/felixgeelhaar/tracewal/infrastructure/wal"
)

func TestReadSegment_SkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mixed.wal")

	content := `{"timestamp_ms":1,"event_type":"execution_start","execution_id":"a"}
this is not json
{"timestamp_ms":2,"event_type":"unknown_kind","execution_id":"a"}
{"timestamp_ms":3,"event_type":"execution_end","execution_id":"a"}
`
	if err := os.WriteFile(path, []byte(content), 0640); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	events, err := wal.ReadSegment(path)
	if err != nil {
		t.Fatalf("ReadSegment failed: %v", err)
	}

	// The garbage line and the unknown-event-type line are skipped; the
	// two well-formed records survive.
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != trace.EventExecutionStart || events[1].Type != trace.EventExecutionEnd {
		t.Errorf("unexpected surviving events: %v, %v", events[0].Type, events[1].Type)
	}
}

func TestReadSegment_NotFound(t *testing.T) {
	_, err := wal.ReadSegment(filepath.Join(t.TempDir(), "missing.wal"))
	if !errors.Is(err, trace.ErrSegmentNotFound) {
		t.Fatalf("expected ErrSegmentNotFound, got %v", err)
	}
}

func TestFilterSegment(t *testing.T) {
	w, _ := newTestWriter(t, 1<<20)

	for _, id := range []string{"a", "b", "a", "c", "a"} {
		if err := w.Write(testEvent(id, 1)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	events, err := wal.FilterSegment(w.CurrentSegmentPath(), "a")
	if err != nil {
		t.Fatalf("FilterSegment failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events for execution a, got %d", len(events))
	}
	for _, e := range events {
		if e.ExecutionID != "a" {
			t.Errorf("cross-contamination: got execution id %q", e.ExecutionID)
		}
	}
}
