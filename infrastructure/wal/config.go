// Package wal provides the write-ahead log of execution-trace events.
package wal

import (
	"errors"
	"time"
)

// DefaultSegmentExtension is the file suffix for raw log segments.
const DefaultSegmentExtension = ".wal"

// Config configures the WAL writer.
type Config struct {
	// Dir is the directory holding the segment files.
	Dir string `yaml:"dir" json:"dir"`

	// MaxSegmentBytes is the segment rotation threshold. A write that
	// would push the active segment past this size triggers rotation.
	MaxSegmentBytes int64 `yaml:"max_segment_bytes" json:"max_segment_bytes"`

	// FsyncOnWrite syncs the file descriptor after every append.
	FsyncOnWrite bool `yaml:"fsync_on_write" json:"fsync_on_write"`

	// SegmentExtension is the segment file suffix.
	SegmentExtension string `yaml:"segment_extension" json:"segment_extension"`
}

// Option configures the WAL writer.
type Option func(*Config)

// WithDir sets the WAL directory.
func WithDir(dir string) Option {
	return func(c *Config) {
		c.Dir = dir
	}
}

// WithMaxSegmentBytes sets the segment rotation threshold.
func WithMaxSegmentBytes(n int64) Option {
	return func(c *Config) {
		c.MaxSegmentBytes = n
	}
}

// WithFsyncOnWrite enables fsync after every append.
func WithFsyncOnWrite() Option {
	return func(c *Config) {
		c.FsyncOnWrite = true
	}
}

// WithSegmentExtension sets the segment file suffix.
func WithSegmentExtension(ext string) Option {
	return func(c *Config) {
		c.SegmentExtension = ext
	}
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		MaxSegmentBytes:  16 * 1024 * 1024,
		FsyncOnWrite:     false,
		SegmentExtension: DefaultSegmentExtension,
	}
}

// Errors
var (
	ErrWAL    = errors.New("wal: i/o failure")
	ErrConfig = errors.New("wal: invalid configuration")
	ErrClosed = errors.New("wal: writer closed")
)

// segmentName returns a new segment file name. Names are ordered by
// creation time so that lexicographic order equals chronological order
// and the active segment is always the latest.
func segmentName(ext string, now time.Time) string {
	return formatSegmentStamp(now) + ext
}
