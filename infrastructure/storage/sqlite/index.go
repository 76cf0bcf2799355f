package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/felixgeelhaar/tracewal/domain/trace"
)

// Index is the SQLite-backed metadata index mapping execution ids to
// summaries. It is the only fast path for "which executions exist /
// when": answering those queries never requires scanning WAL or
// columnar storage.
type Index struct {
	db *sql.DB
}

// NewIndex opens (and optionally migrates) the metadata index.
func NewIndex(cfg Config, opts ...Option) (*Index, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.Path == "" {
		return nil, errors.Join(ErrConnectionFailed, errors.New("index path is required"))
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	idx := &Index{db: db}

	if cfg.AutoMigrate {
		if err := idx.migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return idx, nil
}

// migrate creates the executions table and its derived query indexes.
func (i *Index) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS executions (
			execution_id TEXT PRIMARY KEY,
			thread_id TEXT,
			started_at_ms INTEGER NOT NULL DEFAULT 0,
			ended_at_ms INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			total_tokens INTEGER NOT NULL DEFAULT 0,
			completed INTEGER NOT NULL DEFAULT 0,
			segment_path TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_executions_thread_id ON executions(thread_id);
		CREATE INDEX IF NOT EXISTS idx_executions_started_at ON executions(started_at_ms);
		CREATE INDEX IF NOT EXISTS idx_executions_segment_path ON executions(segment_path);
	`

	_, err := i.db.Exec(schema)
	if err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}

	return nil
}

// UpsertExecution inserts or updates the summary row keyed by the
// trace's execution id, setting the latest known segment path.
func (i *Index) UpsertExecution(ctx context.Context, t *trace.ExecutionTrace, segmentPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.ExecutionID == "" {
		return errors.Join(ErrIndex, errors.New("trace has no execution id"))
	}

	_, err := i.db.ExecContext(ctx, `
		INSERT INTO executions
			(execution_id, thread_id, started_at_ms, ended_at_ms, duration_ms, total_tokens, completed, segment_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(execution_id) DO UPDATE SET
			thread_id = excluded.thread_id,
			started_at_ms = excluded.started_at_ms,
			ended_at_ms = excluded.ended_at_ms,
			duration_ms = excluded.duration_ms,
			total_tokens = excluded.total_tokens,
			completed = excluded.completed,
			segment_path = excluded.segment_path`,
		t.ExecutionID, t.ThreadID, t.StartedAtMs(), t.EndedAtMs(),
		t.TotalDurationMs, t.TotalTokens, boolInt(t.Completed), segmentPath,
	)
	if err != nil {
		return errors.Join(ErrIndex, err)
	}
	return nil
}

// ExecutionByID returns the summary for one execution, or (nil, nil)
// when no row exists.
func (i *Index) ExecutionByID(ctx context.Context, executionID string) (*trace.ExecutionSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	row := i.db.QueryRowContext(ctx,
		selectSummary+" WHERE execution_id = ?", executionID)

	s, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Join(ErrIndex, err)
	}
	return s, nil
}

// RecentExecutions returns up to limit summaries ordered by start time,
// descending.
func (i *Index) RecentExecutions(ctx context.Context, limit int) ([]trace.ExecutionSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := i.db.QueryContext(ctx,
		selectSummary+" ORDER BY started_at_ms DESC, execution_id LIMIT ?", limit)
	if err != nil {
		return nil, errors.Join(ErrIndex, err)
	}
	defer func() { _ = rows.Close() }()

	return collectSummaries(rows)
}

// ExecutionsByThread returns up to limit summaries for one thread,
// ordered by start time, descending.
func (i *Index) ExecutionsByThread(ctx context.Context, threadID string, limit int) ([]trace.ExecutionSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := i.db.QueryContext(ctx,
		selectSummary+" WHERE thread_id = ? ORDER BY started_at_ms DESC, execution_id LIMIT ?", threadID, limit)
	if err != nil {
		return nil, errors.Join(ErrIndex, err)
	}
	defer func() { _ = rows.Close() }()

	return collectSummaries(rows)
}

// Count returns the number of indexed executions.
func (i *Index) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var count int64
	err := i.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM executions").Scan(&count)
	if err != nil {
		return 0, errors.Join(ErrIndex, err)
	}
	return count, nil
}

// RepointSegment updates one execution's last-known storage location.
// Missing rows are not an error: the compactor may observe execution
// ids whose rows were already pruned by retention.
func (i *Index) RepointSegment(ctx context.Context, executionID, segmentPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := i.db.ExecContext(ctx,
		"UPDATE executions SET segment_path = ? WHERE execution_id = ?",
		segmentPath, executionID)
	if err != nil {
		return errors.Join(ErrIndex, err)
	}
	return nil
}

// ExpiredExecutions returns summaries whose activity ended before
// cutoffMs, i.e. candidates for retention deletion.
func (i *Index) ExpiredExecutions(ctx context.Context, cutoffMs int64) ([]trace.ExecutionSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := i.db.QueryContext(ctx,
		selectSummary+" WHERE ended_at_ms > 0 AND ended_at_ms < ?", cutoffMs)
	if err != nil {
		return nil, errors.Join(ErrIndex, err)
	}
	defer func() { _ = rows.Close() }()

	return collectSummaries(rows)
}

// CountActiveReferences counts executions still inside the retention
// horizon that point at segmentPath. Retention may delete a backing
// file only when this reaches zero, because one columnar file can hold
// events of several executions.
func (i *Index) CountActiveReferences(ctx context.Context, segmentPath string, cutoffMs int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var count int64
	err := i.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM executions WHERE segment_path = ? AND (ended_at_ms = 0 OR ended_at_ms >= ?)",
		segmentPath, cutoffMs).Scan(&count)
	if err != nil {
		return 0, errors.Join(ErrIndex, err)
	}
	return count, nil
}

// DeleteExecutions removes index rows. Retention prunes the row
// together with the backing data so no summary is left pointing at
// nothing.
func (i *Index) DeleteExecutions(ctx context.Context, executionIDs []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(executionIDs) == 0 {
		return nil
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Join(ErrIndex, err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, "DELETE FROM executions WHERE execution_id = ?")
	if err != nil {
		return errors.Join(ErrIndex, err)
	}
	defer func() { _ = stmt.Close() }()

	for _, id := range executionIDs {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return errors.Join(ErrIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Join(ErrIndex, err)
	}
	return nil
}

// Close closes the database connection.
func (i *Index) Close() error {
	return i.db.Close()
}

// DB returns the underlying database connection.
func (i *Index) DB() *sql.DB {
	return i.db
}

const selectSummary = `
	SELECT execution_id, thread_id, started_at_ms, ended_at_ms,
	       duration_ms, total_tokens, completed, segment_path
	FROM executions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (*trace.ExecutionSummary, error) {
	var (
		s           trace.ExecutionSummary
		threadID    sql.NullString
		segmentPath sql.NullString
		completed   int
	)

	err := row.Scan(&s.ExecutionID, &threadID, &s.StartedAtMs, &s.EndedAtMs,
		&s.DurationMs, &s.TotalTokens, &completed, &segmentPath)
	if err != nil {
		return nil, err
	}

	s.ThreadID = threadID.String
	s.SegmentPath = segmentPath.String
	s.Completed = completed != 0
	return &s, nil
}

func collectSummaries(rows *sql.Rows) ([]trace.ExecutionSummary, error) {
	var summaries []trace.ExecutionSummary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, errors.Join(ErrIndex, err)
		}
		summaries = append(summaries, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrIndex, err)
	}
	return summaries, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
