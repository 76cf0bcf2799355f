package application

import (
	"errors"

	"github.com/felixgeelhaar/tracewal/infrastructure/compaction"
	"github.com/felixgeelhaar/tracewal/infrastructure/logging"
	"github.com/felixgeelhaar/tracewal/infrastructure/storage/sqlite"
	"github.com/felixgeelhaar/tracewal/infrastructure/wal"
)

// Store owns the event store's resources: the WAL writer, the metadata
// index, and the optional background compaction worker. Exactly one
// Store exists per store directory; share access by handing out its
// Handle, which carries everything except worker ownership.
type Store struct {
	handle *Handle
	worker *compaction.Worker
}

// NewStore opens (or creates) an event store described by cfg. When
// auto compaction is enabled a background worker starts immediately.
func NewStore(cfg StoreConfig) (*Store, error) {
	writer, err := wal.NewWriter(cfg.WAL)
	if err != nil {
		return nil, err
	}

	indexCfg := sqlite.DefaultConfig()
	indexCfg.Path = cfg.IndexPath
	index, err := sqlite.NewIndex(indexCfg)
	if err != nil {
		return nil, errors.Join(err, writer.Close())
	}

	compactor, err := compaction.NewCompactor(writer, index, cfg.Compaction)
	if err != nil {
		return nil, errors.Join(err, writer.Close(), index.Close())
	}

	s := &Store{
		handle: &Handle{
			writer:    writer,
			index:     index,
			compactor: compactor,
			cfg:       cfg,
		},
	}

	if cfg.AutoCompaction {
		s.SpawnCompactionWorker()
	}

	logging.Info().
		Add(logging.Component("store")).
		Add(logging.Str("wal_dir", cfg.WAL.Dir)).
		Add(logging.Str("index_path", cfg.IndexPath)).
		Msg("event store opened")
	return s, nil
}

// Handle returns the shareable store surface. Handles remain valid
// until Close.
func (s *Store) Handle() *Handle {
	return s.handle
}

// SpawnCompactionWorker starts the background compaction loop. The
// worker is owned by this Store and stopped by Close; calling this
// while a worker is already running returns the running worker.
func (s *Store) SpawnCompactionWorker() *compaction.Worker {
	if s.worker != nil {
		return s.worker
	}
	s.worker = compaction.NewWorker(s.handle.compactor, s.handle.cfg.Compaction.Interval)
	s.worker.Start()
	return s.worker
}

// Close stops the compaction worker, waits for any in-flight pass, and
// closes the writer and index.
func (s *Store) Close() error {
	if s.worker != nil {
		s.worker.StopAndJoin()
		s.worker = nil
	}
	return errors.Join(s.handle.writer.Close(), s.handle.index.Close())
}
