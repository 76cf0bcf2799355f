package columnar_test

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/tracewal/domain/trace"
	"github.com/felixgeelhaar/tracewal/infrastructure/columnar"
)

func testEvents(n int, executionID string) []trace.Event {
	depth := uint32(1)
	events := make([]trace.Event, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, trace.Event{
			TimestampMs:     int64(1000 + i),
			Type:            trace.EventNodeEnd,
			ExecutionID:     executionID,
			RootExecutionID: "root-1",
			Depth:           &depth,
			Payload:         json.RawMessage(`{"node":"step"}`),
		})
	}
	return events
}

func TestWriteAndReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segment.parquet")

	events := testEvents(10, "exec-1")
	if err := columnar.WriteFile(path, events, 4); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	read, err := columnar.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(read) != 10 {
		t.Fatalf("expected 10 events, got %d", len(read))
	}

	for i, e := range read {
		if e.TimestampMs != int64(1000+i) {
			t.Errorf("event %d timestamp = %d, want %d", i, e.TimestampMs, 1000+i)
		}
		if e.Type != trace.EventNodeEnd {
			t.Errorf("event %d type = %q, want node_end", i, e.Type)
		}
		if e.Depth == nil || *e.Depth != 1 {
			t.Errorf("event %d depth not preserved", i)
		}
		if string(e.Payload) != `{"node":"step"}` {
			t.Errorf("event %d payload = %s", i, e.Payload)
		}
	}
}

func TestWriteFile_NoPartialFileOnDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "segment.parquet")

	if err := columnar.WriteFile(path, testEvents(3, "a"), 0); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	// Only the published file remains, no temporary sibling.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "segment.parquet" {
		t.Errorf("unexpected directory contents: %v", entries)
	}
}

func TestReadFile_NotFound(t *testing.T) {
	_, err := columnar.ReadFile(filepath.Join(t.TempDir(), "missing.parquet"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestReadFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.parquet")
	if err := os.WriteFile(path, []byte("not a parquet file"), 0640); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	_, err := columnar.ReadFile(path)
	if !errors.Is(err, trace.ErrColumnarFormat) {
		t.Fatalf("expected ErrColumnarFormat, got %v", err)
	}
}

func TestFilterExecution(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mixed.parquet")

	events := append(testEvents(3, "a"), testEvents(2, "b")...)
	if err := columnar.WriteFile(path, events, 0); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	filtered, err := columnar.FilterExecution(path, "b")
	if err != nil {
		t.Fatalf("FilterExecution failed: %v", err)
	}
	if len(filtered) != 2 {
		t.Fatalf("expected 2 events for execution b, got %d", len(filtered))
	}
	for _, e := range filtered {
		if e.ExecutionID != "b" {
			t.Errorf("cross-contamination: %q", e.ExecutionID)
		}
	}
}

func TestListFiles(t *testing.T) {
	dir := t.TempDir()

	if err := columnar.WriteFile(filepath.Join(dir, "b.parquet"), testEvents(1, "x"), 0); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := columnar.WriteFile(filepath.Join(dir, "a.parquet"), testEvents(1, "y"), 0); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0640); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	files, err := columnar.ListFiles(dir)
	if err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 parquet files, got %v", files)
	}
	if filepath.Base(files[0]) != "a.parquet" {
		t.Errorf("expected sorted listing, got %v", files)
	}
}

func TestListFiles_MissingDirIsEmpty(t *testing.T) {
	files, err := columnar.ListFiles(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}
	if files != nil {
		t.Errorf("expected nil for missing dir, got %v", files)
	}
}
