package compaction

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/felixgeelhaar/tracewal/infrastructure/columnar"
	"github.com/felixgeelhaar/tracewal/infrastructure/logging"
	"github.com/felixgeelhaar/tracewal/infrastructure/storage/sqlite"
	"github.com/felixgeelhaar/tracewal/infrastructure/wal"
)

// Compactor rewrites closed WAL segments into columnar files, repoints
// the metadata index, and applies retention.
//
// The write-columnar → repoint-index → delete-source ordering is an
// internal invariant of CompactOnce, never caller discipline: a source
// segment is only ever deleted after its replacement is durably visible
// and the index rows point at it.
type Compactor struct {
	writer *wal.Writer
	index  *sqlite.Index
	cfg    Config
}

// NewCompactor creates a compactor over the given writer and index.
func NewCompactor(writer *wal.Writer, index *sqlite.Index, cfg Config, opts ...Option) (*Compactor, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.ParquetDir == "" {
		return nil, fmt.Errorf("%w: parquet dir is required", ErrCompaction)
	}
	if cfg.BatchRows <= 0 {
		cfg.BatchRows = DefaultConfig().BatchRows
	}

	return &Compactor{writer: writer, index: index, cfg: cfg}, nil
}

// CompactOnce runs a single compaction pass: eligible closed segments
// are rewritten into columnar files, then the retention horizon is
// applied. A failure on one segment does not stop the remaining
// segments; all failures are joined into the returned error.
//
// The pass is idempotent: an already-compacted segment no longer exists
// on disk, so re-running is a no-op.
func (c *Compactor) CompactOnce(ctx context.Context) error {
	segments, err := c.writer.ListSegments()
	if err != nil {
		return errors.Join(ErrCompaction, err)
	}
	active := c.writer.CurrentSegmentPath()

	var errs []error
	for _, segment := range segments {
		if segment == active {
			continue
		}
		if !c.oldEnough(segment) {
			continue
		}
		if err := c.compactSegment(ctx, segment); err != nil {
			errs = append(errs, fmt.Errorf("segment %s: %w", segment, err))
		}
	}

	if err := c.applyRetention(ctx); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{ErrCompaction}, errs...)...)
	}
	return nil
}

// oldEnough debounces segments that just rotated.
func (c *Compactor) oldEnough(segment string) bool {
	if c.cfg.MinSegmentAge <= 0 {
		return true
	}
	info, err := os.Stat(segment)
	if err != nil {
		// Gone already; nothing to compact.
		return false
	}
	return time.Since(info.ModTime()) >= c.cfg.MinSegmentAge
}

// compactSegment rewrites one closed segment into exactly one columnar
// file and repoints every execution observed in it.
func (c *Compactor) compactSegment(ctx context.Context, segment string) error {
	events, err := wal.ReadSegment(segment)
	if err != nil {
		return err
	}

	if len(events) == 0 {
		// Nothing worth a columnar file; an all-malformed or empty
		// segment is dropped directly when deletion is enabled.
		if c.cfg.DeleteWALAfterCompaction {
			if err := os.Remove(segment); err != nil {
				return err
			}
		}
		return nil
	}

	dst := filepath.Join(c.cfg.ParquetDir, segmentStem(segment)+columnar.FileExtension)
	if err := columnar.WriteFile(dst, events, c.cfg.BatchRows); err != nil {
		return err
	}

	executionIDs := make(map[string]struct{})
	for _, e := range events {
		if e.ExecutionID != "" {
			executionIDs[e.ExecutionID] = struct{}{}
		}
	}
	for id := range executionIDs {
		if err := c.index.RepointSegment(ctx, id, dst); err != nil {
			return err
		}
	}

	if c.cfg.DeleteWALAfterCompaction {
		if err := os.Remove(segment); err != nil {
			return err
		}
	}

	logging.Info().
		Add(logging.Component("compactor")).
		Add(logging.Segment(segment)).
		Add(logging.File(dst)).
		Add(logging.Events(len(events))).
		Msg("segment compacted")
	return nil
}

// applyRetention deletes data past the retention horizon. An execution
// whose activity ended before now-Retention loses its backing columnar
// file (only once no execution inside the horizon still references it)
// and its index row. Pruning the row together with the data means no
// summary is ever left pointing at nothing.
func (c *Compactor) applyRetention(ctx context.Context) error {
	if c.cfg.Retention <= 0 {
		return nil
	}
	cutoffMs := time.Now().Add(-c.cfg.Retention).UnixMilli()

	expired, err := c.index.ExpiredExecutions(ctx, cutoffMs)
	if err != nil {
		return err
	}
	if len(expired) == 0 {
		return nil
	}

	removed := 0
	candidates := make(map[string]struct{})
	ids := make([]string, 0, len(expired))
	for _, s := range expired {
		ids = append(ids, s.ExecutionID)
		if s.SegmentPath != "" && strings.HasSuffix(s.SegmentPath, columnar.FileExtension) {
			candidates[s.SegmentPath] = struct{}{}
		}
	}

	for path := range candidates {
		refs, err := c.index.CountActiveReferences(ctx, path, cutoffMs)
		if err != nil {
			return err
		}
		if refs > 0 {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		removed++
	}

	if err := c.index.DeleteExecutions(ctx, ids); err != nil {
		return err
	}

	logging.Info().
		Add(logging.Component("compactor")).
		Add(logging.Deleted(len(ids))).
		Add(logging.Files(removed)).
		Msg("retention applied")
	return nil
}

// segmentStem derives the columnar file name from the segment's
// identity: both share the same stem.
func segmentStem(segment string) string {
	base := filepath.Base(segment)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
