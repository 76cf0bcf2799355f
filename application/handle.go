package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/tracewal/domain/trace"
	"github.com/felixgeelhaar/tracewal/infrastructure/columnar"
	"github.com/felixgeelhaar/tracewal/infrastructure/compaction"
	"github.com/felixgeelhaar/tracewal/infrastructure/storage/sqlite"
	"github.com/felixgeelhaar/tracewal/infrastructure/wal"
)

// Handle is the cheap, shareable surface of the event store: the WAL
// writer and metadata index, both internally synchronized. Handles may
// be passed to any number of goroutines. A Handle never owns the
// compaction worker; only the originating Store controls its lifecycle.
type Handle struct {
	writer    *wal.Writer
	index     *sqlite.Index
	compactor *compaction.Compactor
	cfg       StoreConfig
}

// WriteTrace serializes the trace into event records, appends them to
// the WAL, and upserts the index summary with the post-write active
// segment path. Reading the path after the write captures the effect of
// any rotation the write itself triggered, so the index never points at
// a segment that preceded the write.
func (h *Handle) WriteTrace(ctx context.Context, t *trace.ExecutionTrace) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if t.ExecutionID == "" {
		t.ExecutionID = uuid.New().String()
	}

	events, err := traceEvents(t)
	if err != nil {
		return err
	}

	for _, e := range events {
		if err := h.writer.Write(e); err != nil {
			return err
		}
	}

	segmentPath := h.writer.CurrentSegmentPath()
	return h.index.UpsertExecution(ctx, t, segmentPath)
}

// Flush forces buffered WAL bytes to durable storage.
func (h *Handle) Flush() error {
	return h.writer.Flush()
}

// ExecutionEvents returns every stored event for one execution, merged
// across storage tiers and sorted ascending by timestamp.
//
// The indexed segment path is only a hint: an execution's events may be
// split across an old (now-compacted) segment and a newer active one if
// it straddled a rotation, and the pointer may be stale. The read path
// therefore unions the hint with every columnar file and every WAL
// segment not superseded by a columnar file, skipping sources that no
// longer exist.
func (h *Handle) ExecutionEvents(ctx context.Context, executionID string) ([]trace.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summary, err := h.index.ExecutionByID(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		return nil, fmt.Errorf("%w: %s", trace.ErrExecutionNotFound, executionID)
	}

	files, err := columnar.ListFiles(h.cfg.Compaction.ParquetDir)
	if err != nil {
		return nil, err
	}
	segments, err := h.writer.ListSegments()
	if err != nil {
		return nil, err
	}

	// A columnar file shares its stem with the WAL segment it replaced.
	// A segment whose stem already has a columnar file has been
	// superseded; reading it too would double every event when the
	// source segment was kept after compaction.
	compacted := make(map[string]struct{}, len(files))
	for _, f := range files {
		compacted[sourceStem(f)] = struct{}{}
	}

	sources := make([]string, 0, len(files)+len(segments)+1)
	seen := make(map[string]struct{})
	add := func(path string) {
		if path == "" {
			return
		}
		if _, ok := seen[path]; ok {
			return
		}
		if filepath.Ext(path) != columnar.FileExtension {
			if _, ok := compacted[sourceStem(path)]; ok {
				return
			}
		}
		seen[path] = struct{}{}
		sources = append(sources, path)
	}

	// Columnar files hold the oldest events, live segments the newest;
	// both listings are stem-sorted, so visiting them in this order
	// keeps equal-timestamp events in write order. The indexed pointer
	// goes last: it names a path already covered above whenever it is
	// current, and only fills in when both listings raced a rename.
	for _, f := range files {
		add(f)
	}
	for _, s := range segments {
		add(s)
	}
	add(summary.SegmentPath)

	var events []trace.Event
	for _, source := range sources {
		var matched []trace.Event
		var err error
		if filepath.Ext(source) == columnar.FileExtension {
			matched, err = columnar.FilterExecution(source, executionID)
		} else {
			matched, err = wal.FilterSegment(source, executionID)
		}
		if err != nil {
			// A source deleted between listing and reading, or a stale
			// index pointer, is expected during compaction.
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, trace.ErrSegmentNotFound) {
				continue
			}
			return nil, err
		}
		events = append(events, matched...)
	}

	trace.SortEventsByTimestamp(events)
	return events, nil
}

// RecentExecutions returns up to limit execution summaries ordered by
// start time, descending.
func (h *Handle) RecentExecutions(ctx context.Context, limit int) ([]trace.ExecutionSummary, error) {
	return h.index.RecentExecutions(ctx, limit)
}

// ExecutionByID returns one execution's summary, or nil when unknown.
func (h *Handle) ExecutionByID(ctx context.Context, executionID string) (*trace.ExecutionSummary, error) {
	return h.index.ExecutionByID(ctx, executionID)
}

// ExecutionsByThread returns up to limit summaries for one thread.
func (h *Handle) ExecutionsByThread(ctx context.Context, threadID string, limit int) ([]trace.ExecutionSummary, error) {
	return h.index.ExecutionsByThread(ctx, threadID, limit)
}

// Count returns the number of indexed executions.
func (h *Handle) Count(ctx context.Context) (int64, error) {
	return h.index.Count(ctx)
}

// CompactOnce runs a single synchronous compaction pass.
func (h *Handle) CompactOnce(ctx context.Context) error {
	return h.compactor.CompactOnce(ctx)
}

// traceEvents expands an execution trace into its event records:
// execution_start, node_start/node_end per node execution,
// execution_end, and a final execution_trace record carrying the full
// document.
func traceEvents(t *trace.ExecutionTrace) ([]trace.Event, error) {
	startMs := t.StartedAtMs()
	if startMs == 0 {
		startMs = time.Now().UnixMilli()
	}
	endMs := t.EndedAtMs()

	events := make([]trace.Event, 0, 2*len(t.NodesExecuted)+3)

	startPayload, err := json.Marshal(map[string]any{
		"thread_id": t.ThreadID,
		"metadata":  t.Metadata,
	})
	if err != nil {
		return nil, err
	}
	events = append(events, stamped(t, startMs, trace.EventExecutionStart, startPayload))

	// Node timestamps are derived from the start time and cumulative
	// durations when the engine did not record them.
	cursor := startMs
	for _, node := range t.NodesExecuted {
		nodeStart := cursor
		if ms := nodeStartMs(node); ms > 0 {
			nodeStart = ms
		}

		startPayload, err := json.Marshal(map[string]any{"node": node.Node, "index": node.Index})
		if err != nil {
			return nil, err
		}
		events = append(events, stamped(t, nodeStart, trace.EventNodeStart, startPayload))

		endPayload, err := json.Marshal(map[string]any{
			"node":        node.Node,
			"index":       node.Index,
			"duration_ms": node.DurationMs,
			"tokens_used": node.TokensUsed,
			"success":     node.Success,
		})
		if err != nil {
			return nil, err
		}
		cursor = nodeStart + node.DurationMs
		events = append(events, stamped(t, cursor, trace.EventNodeEnd, endPayload))
	}

	if endMs < cursor {
		endMs = cursor
	}
	endPayload, err := json.Marshal(map[string]any{
		"duration_ms":  t.TotalDurationMs,
		"total_tokens": t.TotalTokens,
		"completed":    t.Completed,
	})
	if err != nil {
		return nil, err
	}
	events = append(events, stamped(t, endMs, trace.EventExecutionEnd, endPayload))

	tracePayload, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	events = append(events, stamped(t, endMs, trace.EventExecutionTrace, tracePayload))

	return events, nil
}

func stamped(t *trace.ExecutionTrace, ts int64, eventType trace.EventType, payload json.RawMessage) trace.Event {
	return trace.Event{
		TimestampMs:       ts,
		Type:              eventType,
		ExecutionID:       t.ExecutionID,
		ParentExecutionID: t.ParentExecutionID,
		RootExecutionID:   t.RootExecutionID,
		Depth:             t.Depth,
		Payload:           payload,
	}
}

// sourceStem is the file name without its extension; WAL segments and
// their columnar replacements share it.
func sourceStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func nodeStartMs(node trace.NodeExecution) int64 {
	if node.StartedAt == "" {
		return 0
	}
	ts, err := time.Parse(time.RFC3339Nano, node.StartedAt)
	if err != nil {
		return 0
	}
	return ts.UnixMilli()
}
