// Package application composes the WAL writer, metadata index, and
// compaction worker into the event store facade.
package application

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/tracewal/infrastructure/compaction"
	"github.com/felixgeelhaar/tracewal/infrastructure/config"
	"github.com/felixgeelhaar/tracewal/infrastructure/wal"
)

// Environment variables recognized by StoreConfigFromEnv.
const (
	EnvWALDir         = "TRACEWAL_WAL_DIR"
	EnvIndexPath      = "TRACEWAL_INDEX_PATH"
	EnvParquetDir     = "TRACEWAL_PARQUET_DIR"
	EnvAutoCompaction = "TRACEWAL_AUTO_COMPACTION"
	EnvRetention      = "TRACEWAL_RETENTION"
	EnvInterval       = "TRACEWAL_COMPACTION_INTERVAL"
	EnvMaxSegment     = "TRACEWAL_MAX_SEGMENT_BYTES"
	EnvFsync          = "TRACEWAL_FSYNC"
)

// StoreConfig configures the event store facade.
type StoreConfig struct {
	// WAL configures the write-ahead log.
	WAL wal.Config `yaml:"wal" json:"wal"`

	// IndexPath is the metadata index file path.
	IndexPath string `yaml:"index_path" json:"index_path"`

	// AutoCompaction spawns the background compaction worker on
	// construction.
	AutoCompaction bool `yaml:"auto_compaction" json:"auto_compaction"`

	// Compaction configures the compactor and worker.
	Compaction compaction.Config `yaml:"compaction" json:"compaction"`
}

// DefaultStoreConfig returns a configuration rooted at baseDir:
// WAL segments in baseDir/wal, columnar files in baseDir/parquet, the
// index at baseDir/index.db.
func DefaultStoreConfig(baseDir string) StoreConfig {
	walCfg := wal.DefaultConfig()
	walCfg.Dir = filepath.Join(baseDir, "wal")

	compactionCfg := compaction.DefaultConfig()
	compactionCfg.ParquetDir = filepath.Join(baseDir, "parquet")

	return StoreConfig{
		WAL:            walCfg,
		IndexPath:      filepath.Join(baseDir, "index.db"),
		AutoCompaction: true,
		Compaction:     compactionCfg,
	}
}

// StoreConfigFromEnv builds a configuration from the environment,
// starting from DefaultStoreConfig rooted at dir (typically the user's
// home store directory). Individual variables override their defaults;
// the columnar directory is independently configurable so it can live
// on different storage than the WAL.
func StoreConfigFromEnv(dir string) StoreConfig {
	cfg := DefaultStoreConfig(dir)

	if v := os.Getenv(EnvWALDir); v != "" {
		cfg.WAL.Dir = v
	}
	if v := os.Getenv(EnvIndexPath); v != "" {
		cfg.IndexPath = v
	}
	if v := os.Getenv(EnvParquetDir); v != "" {
		cfg.Compaction.ParquetDir = v
	}
	cfg.AutoCompaction = config.EnvBool(EnvAutoCompaction, cfg.AutoCompaction)
	cfg.WAL.FsyncOnWrite = config.EnvBool(EnvFsync, cfg.WAL.FsyncOnWrite)
	cfg.Compaction.Retention = config.EnvDuration(EnvRetention, cfg.Compaction.Retention)
	cfg.Compaction.Interval = config.EnvDuration(EnvInterval, cfg.Compaction.Interval)
	cfg.WAL.MaxSegmentBytes = config.EnvInt64(EnvMaxSegment, cfg.WAL.MaxSegmentBytes)

	return cfg
}

// LoadStoreConfig reads a StoreConfig from a YAML or JSON file,
// layered over DefaultStoreConfig rooted at the file's directory.
func LoadStoreConfig(path string) (StoreConfig, error) {
	cfg := DefaultStoreConfig(filepath.Dir(path))

	data, err := os.ReadFile(path)
	if err != nil {
		return StoreConfig{}, fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return StoreConfig{}, fmt.Errorf("failed to parse yaml config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return StoreConfig{}, fmt.Errorf("failed to parse json config: %w", err)
		}
	default:
		return StoreConfig{}, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
	}

	return cfg, nil
}
