// Package compaction converts closed WAL segments into columnar files
// and applies the retention policy.
package compaction

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/felixgeelhaar/tracewal/infrastructure/config"
)

// Config configures the compactor and its background worker.
type Config struct {
	// ParquetDir is the columnar output directory.
	ParquetDir string `yaml:"parquet_dir" json:"parquet_dir"`

	// Retention is the age past which compacted data is deleted.
	// Zero disables retention.
	Retention time.Duration `yaml:"retention" json:"retention"`

	// Interval is the background worker cadence.
	Interval time.Duration `yaml:"interval" json:"interval"`

	// MinSegmentAge debounces segments that just rotated: a closed
	// segment is only compacted once its last modification is at least
	// this old.
	MinSegmentAge time.Duration `yaml:"min_segment_age" json:"min_segment_age"`

	// DeleteWALAfterCompaction removes the source segment once its
	// columnar replacement is durably written and the index updated.
	DeleteWALAfterCompaction bool `yaml:"delete_wal_after_compaction" json:"delete_wal_after_compaction"`

	// BatchRows is the columnar row group size.
	BatchRows int `yaml:"batch_rows" json:"batch_rows"`
}

// configFile mirrors Config with string-form durations for files.
type configFile struct {
	ParquetDir               *string          `yaml:"parquet_dir" json:"parquet_dir"`
	Retention                *config.Duration `yaml:"retention" json:"retention"`
	Interval                 *config.Duration `yaml:"interval" json:"interval"`
	MinSegmentAge            *config.Duration `yaml:"min_segment_age" json:"min_segment_age"`
	DeleteWALAfterCompaction *bool            `yaml:"delete_wal_after_compaction" json:"delete_wal_after_compaction"`
	BatchRows                *int             `yaml:"batch_rows" json:"batch_rows"`
}

// apply merges file values over the receiver, leaving absent fields at
// their current values.
func (c *Config) apply(f configFile) {
	if f.ParquetDir != nil {
		c.ParquetDir = *f.ParquetDir
	}
	if f.Retention != nil {
		c.Retention = f.Retention.Duration()
	}
	if f.Interval != nil {
		c.Interval = f.Interval.Duration()
	}
	if f.MinSegmentAge != nil {
		c.MinSegmentAge = f.MinSegmentAge.Duration()
	}
	if f.DeleteWALAfterCompaction != nil {
		c.DeleteWALAfterCompaction = *f.DeleteWALAfterCompaction
	}
	if f.BatchRows != nil {
		c.BatchRows = *f.BatchRows
	}
}

// UnmarshalYAML implements yaml.Unmarshaler, accepting durations as
// strings like "48h".
func (c *Config) UnmarshalYAML(unmarshal func(any) error) error {
	var f configFile
	if err := unmarshal(&f); err != nil {
		return err
	}
	c.apply(f)
	return nil
}

// UnmarshalJSON implements json.Unmarshaler, accepting durations as
// strings like "48h".
func (c *Config) UnmarshalJSON(b []byte) error {
	var f configFile
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	c.apply(f)
	return nil
}

// Option configures compaction.
type Option func(*Config)

// WithParquetDir sets the columnar output directory.
func WithParquetDir(dir string) Option {
	return func(c *Config) {
		c.ParquetDir = dir
	}
}

// WithRetention sets the retention horizon.
func WithRetention(d time.Duration) Option {
	return func(c *Config) {
		c.Retention = d
	}
}

// WithInterval sets the worker cadence.
func WithInterval(d time.Duration) Option {
	return func(c *Config) {
		c.Interval = d
	}
}

// WithMinSegmentAge sets the rotation debounce.
func WithMinSegmentAge(d time.Duration) Option {
	return func(c *Config) {
		c.MinSegmentAge = d
	}
}

// WithDeleteWALAfterCompaction enables source segment deletion.
func WithDeleteWALAfterCompaction() Option {
	return func(c *Config) {
		c.DeleteWALAfterCompaction = true
	}
}

// WithBatchRows sets the columnar row group size.
func WithBatchRows(n int) Option {
	return func(c *Config) {
		c.BatchRows = n
	}
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Retention:                30 * 24 * time.Hour,
		Interval:                 5 * time.Minute,
		MinSegmentAge:            30 * time.Second,
		DeleteWALAfterCompaction: true,
		BatchRows:                4096,
	}
}

// ErrCompaction wraps failures during a compaction pass.
var ErrCompaction = errors.New("compaction failed")
