// Package columnar provides the immutable Parquet tier of the event
// store. Files are created only by compaction, one per source WAL
// segment, and are never mutated afterwards.
package columnar

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/parquet-go/parquet-go"

	"github.com/felixgeelhaar/tracewal/domain/trace"
)

// FileExtension is the suffix of columnar files.
const FileExtension = ".parquet"

// DefaultBatchRows is the row group size used when none is configured.
const DefaultBatchRows = 4096

// row is the columnar schema for one event record.
type row struct {
	TimestampMs       int64   `parquet:"timestamp_ms"`
	EventType         string  `parquet:"event_type"`
	ExecutionID       string  `parquet:"execution_id,optional"`
	ParentExecutionID string  `parquet:"parent_execution_id,optional"`
	RootExecutionID   string  `parquet:"root_execution_id,optional"`
	Depth             *uint32 `parquet:"depth,optional"`
	PayloadJSON       string  `parquet:"payload_json,optional"`
}

func toRow(e trace.Event) row {
	return row{
		TimestampMs:       e.TimestampMs,
		EventType:         string(e.Type),
		ExecutionID:       e.ExecutionID,
		ParentExecutionID: e.ParentExecutionID,
		RootExecutionID:   e.RootExecutionID,
		Depth:             e.Depth,
		PayloadJSON:       string(e.Payload),
	}
}

func (r row) toEvent() (trace.Event, error) {
	eventType, err := trace.ParseEventType(r.EventType)
	if err != nil {
		return trace.Event{}, errors.Join(trace.ErrColumnarFormat, err)
	}

	e := trace.Event{
		TimestampMs:       r.TimestampMs,
		Type:              eventType,
		ExecutionID:       r.ExecutionID,
		ParentExecutionID: r.ParentExecutionID,
		RootExecutionID:   r.RootExecutionID,
		Depth:             r.Depth,
	}
	if r.PayloadJSON != "" {
		e.Payload = []byte(r.PayloadJSON)
	}
	return e, nil
}

// WriteFile writes events to a columnar file in row groups of up to
// batchRows rows. The file is written to a temporary sibling, synced,
// and renamed into place, so a crash never leaves a partially written
// file at the destination path.
func WriteFile(path string, events []trace.Event, batchRows int) error {
	if batchRows <= 0 {
		batchRows = DefaultBatchRows
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create columnar directory: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0640)
	if err != nil {
		return fmt.Errorf("failed to create columnar file: %w", err)
	}

	w := parquet.NewGenericWriter[row](f)

	rows := make([]row, 0, batchRows)
	for i, e := range events {
		rows = append(rows, toRow(e))
		if len(rows) == batchRows || i == len(events)-1 {
			if _, err := w.Write(rows); err != nil {
				_ = f.Close()
				_ = os.Remove(tmp)
				return fmt.Errorf("failed to write columnar rows: %w", err)
			}
			if err := w.Flush(); err != nil {
				_ = f.Close()
				_ = os.Remove(tmp)
				return fmt.Errorf("failed to flush row group: %w", err)
			}
			rows = rows[:0]
		}
	}

	if err := w.Close(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to close columnar writer: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to sync columnar file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to close columnar file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to publish columnar file: %w", err)
	}
	return nil
}

// ReadFile reads every event from a columnar file.
func ReadFile(path string) ([]trace.Event, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, errors.Join(trace.ErrColumnarFormat, err)
	}

	rows, err := parquet.ReadFile[row](path)
	if err != nil {
		return nil, errors.Join(trace.ErrColumnarFormat, err)
	}

	events := make([]trace.Event, 0, len(rows))
	for _, r := range rows {
		e, err := r.toEvent()
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

// FilterExecution reads a columnar file and keeps only events tagged
// with the given execution id.
func FilterExecution(path, executionID string) ([]trace.Event, error) {
	events, err := ReadFile(path)
	if err != nil {
		return nil, err
	}

	filtered := events[:0]
	for _, e := range events {
		if e.ExecutionID == executionID {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

// ListFiles enumerates the columnar files in dir, sorted ascending.
// A missing directory is treated as empty: compaction may simply not
// have run yet.
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != FileExtension {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}
