package wal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/felixgeelhaar/tracewal/domain/trace"
	"github.com/felixgeelhaar/tracewal/infrastructure/logging"
)

// maxRecordBytes bounds a single serialized record during reads.
const maxRecordBytes = 16 * 1024 * 1024

// ReadSegment decodes every well-formed record in a segment file.
//
// Malformed lines are skipped, not fatal: one corrupt line must not
// make the entire segment unreadable. This is the explicit, documented
// exception to the store's no-silent-swallowing policy; skips are
// logged at debug level.
func ReadSegment(path string) ([]trace.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", trace.ErrSegmentNotFound, path)
		}
		return nil, errors.Join(ErrWAL, err)
	}
	defer func() { _ = f.Close() }()

	var events []trace.Event

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxRecordBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var e trace.Event
		if err := json.Unmarshal(line, &e); err != nil {
			logging.Debug().
				Add(logging.Segment(path)).
				Add(logging.ErrorField(err)).
				Msg("skipping malformed wal record")
			continue
		}
		events = append(events, e)
	}

	if err := scanner.Err(); err != nil {
		return events, errors.Join(ErrWAL, err)
	}
	return events, nil
}

// FilterSegment reads a segment and keeps only records tagged with the
// given execution id.
func FilterSegment(path, executionID string) ([]trace.Event, error) {
	events, err := ReadSegment(path)
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
