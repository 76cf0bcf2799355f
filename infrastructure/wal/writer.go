package wal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/tracewal/domain/trace"
)

// Writer appends serialized event records to size-bounded segment files.
//
// Exactly one segment is active (writable) at a time; all others are
// closed. Rotation makes the previous segment immutable the instant it
// occurs. Writer is safe for concurrent use.
type Writer struct {
	cfg Config

	mu      sync.Mutex
	file    *os.File
	path    string
	size    int64
	closed  bool
	lastSeg time.Time
}

// NewWriter opens a WAL writer over cfg.Dir, creating the directory if
// needed. If the latest existing segment is still below the rotation
// threshold it is reopened for append; otherwise a fresh segment is
// created.
func NewWriter(cfg Config, opts ...Option) (*Writer, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.Dir == "" {
		return nil, fmt.Errorf("%w: wal dir is required", ErrConfig)
	}
	if cfg.MaxSegmentBytes <= 0 {
		cfg.MaxSegmentBytes = DefaultConfig().MaxSegmentBytes
	}
	if cfg.SegmentExtension == "" {
		cfg.SegmentExtension = DefaultSegmentExtension
	}
	if !strings.HasPrefix(cfg.SegmentExtension, ".") {
		return nil, fmt.Errorf("%w: segment extension %q must start with a dot", ErrConfig, cfg.SegmentExtension)
	}

	if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
		return nil, errors.Join(ErrWAL, err)
	}

	w := &Writer{cfg: cfg}

	// Reopen the latest segment when it still has room, so restarts do
	// not leak a tail of tiny segments.
	segments, err := listSegmentFiles(cfg.Dir, cfg.SegmentExtension)
	if err != nil {
		return nil, err
	}
	if len(segments) > 0 {
		latest := segments[len(segments)-1]
		info, err := os.Stat(latest)
		if err == nil && info.Size() < cfg.MaxSegmentBytes {
			f, err := os.OpenFile(latest, os.O_WRONLY|os.O_APPEND, 0640)
			if err != nil {
				return nil, errors.Join(ErrWAL, err)
			}
			w.file = f
			w.path = latest
			w.size = info.Size()
			return w, nil
		}
	}

	if err := w.openNewSegmentLocked(); err != nil {
		return nil, err
	}
	return w, nil
}

// Write appends one serialized record to the active segment, rotating
// first when the record would push the segment past MaxSegmentBytes.
// The append is visible to concurrent readers immediately; durability
// beyond OS write buffering requires FsyncOnWrite or Flush.
func (w *Writer) Write(event trace.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Join(ErrWAL, err)
	}
	line := append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}

	if w.size+int64(len(line)) > w.cfg.MaxSegmentBytes && w.size > 0 {
		if err := w.rotateLocked(); err != nil {
			return err
		}
	}

	n, err := w.file.Write(line)
	w.size += int64(n)
	if err != nil {
		return errors.Join(ErrWAL, err)
	}

	if w.cfg.FsyncOnWrite {
		if err := w.file.Sync(); err != nil {
			return errors.Join(ErrWAL, err)
		}
	}

	return nil
}

// CurrentSegmentPath returns the active segment's path at the moment of
// the call. Callers recording a write-time pointer should call this
// after the write so the pointer reflects any rotation the write itself
// triggered.
func (w *Writer) CurrentSegmentPath() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.path
}

// ListSegments enumerates all segment files (active and closed) in the
// WAL directory, sorted ascending; the active segment is last.
func (w *Writer) ListSegments() ([]string, error) {
	return listSegmentFiles(w.cfg.Dir, w.cfg.SegmentExtension)
}

// Flush forces buffered bytes to durable storage.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if err := w.file.Sync(); err != nil {
		return errors.Join(ErrWAL, err)
	}
	return nil
}

// Close flushes and closes the active segment. The writer cannot be
// reused afterwards.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		return errors.Join(ErrWAL, err)
	}
	return w.file.Close()
}

// rotateLocked closes the active segment and opens a fresh one.
// The caller must hold w.mu.
func (w *Writer) rotateLocked() error {
	if err := w.file.Sync(); err != nil {
		return errors.Join(ErrWAL, err)
	}
	if err := w.file.Close(); err != nil {
		return errors.Join(ErrWAL, err)
	}
	return w.openNewSegmentLocked()
}

// openNewSegmentLocked creates a new active segment. The caller must
// hold w.mu (or be the constructor).
func (w *Writer) openNewSegmentLocked() error {
	now := time.Now()
	if !now.After(w.lastSeg) {
		// Same-nanosecond rotation; bump so the new name sorts after.
		now = w.lastSeg.Add(time.Nanosecond)
	}
	w.lastSeg = now

	path := filepath.Join(w.cfg.Dir, segmentName(w.cfg.SegmentExtension, now))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0640)
	if err != nil {
		return errors.Join(ErrWAL, err)
	}

	w.file = f
	w.path = path
	w.size = 0
	return nil
}

// formatSegmentStamp renders a creation time so that lexicographic
// order of segment names equals chronological order.
func formatSegmentStamp(t time.Time) string {
	return fmt.Sprintf("%020d", t.UnixNano())
}

func listSegmentFiles(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Join(ErrWAL, err)
	}

	var segments []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ext) {
			continue
		}
		segments = append(segments, filepath.Join(dir, entry.Name()))
	}

	sort.Strings(segments)
	return segments, nil
}
