// Package postgres provides Postgres-backed persistence for article
// records and run completion markers.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paperchase/paperchase/internal/retrieval"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// RecordStoreConfig controls the Postgres connection pool used for article
// rows.
type RecordStoreConfig struct {
	DSN             string
	ArticlesTable   string
	RunsTable       string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// RecordStore writes article rows and run completion markers into Postgres.
// It implements the record repository consumed by the persistence sink.
type RecordStore struct {
	pool          execCloser
	articlesTable string
	runsTable     string
}

// NewRecordStore creates a Postgres-backed RecordStore using the provided
// config.
func NewRecordStore(ctx context.Context, cfg RecordStoreConfig) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return newRecordStore(pool, cfg.ArticlesTable, cfg.RunsTable)
}

// NewRecordStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewRecordStoreWithPool(pool execCloser, articlesTable, runsTable string) (*RecordStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return newRecordStore(pool, articlesTable, runsTable)
}

func newRecordStore(pool execCloser, articlesTable, runsTable string) (*RecordStore, error) {
	if articlesTable == "" {
		articlesTable = "articles"
	}
	if runsTable == "" {
		runsTable = "runs"
	}
	for _, table := range []string{articlesTable, runsTable} {
		if !validTableName.MatchString(table) {
			return nil, fmt.Errorf("invalid table name %q", table)
		}
	}
	return &RecordStore{pool: pool, articlesTable: articlesTable, runsTable: runsTable}, nil
}

// Close releases the underlying pool resources.
func (s *RecordStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// InsertArticles inserts one row per record for the given run. A record's
// match count is stored as NULL when the hit lookup never resolved.
func (s *RecordStore) InsertArticles(ctx context.Context, runID uuid.UUID, records []retrieval.EnrichedRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("record store is not configured")
	}
	if runID == uuid.Nil {
		return fmt.Errorf("run id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	publication,
	page_id,
	page_number,
	published_date,
	location,
	match_count,
	viewer_url
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8
)`, s.articlesTable)

	for _, rec := range records {
		var matchCount *int
		if rec.MatchCount.Resolved() {
			count := int(rec.MatchCount)
			matchCount = &count
		}
		args := []any{
			runID,
			rec.PublicationName,
			rec.PageID,
			rec.PageNumber,
			rec.Date,
			rec.Location,
			matchCount,
			rec.ViewerURL,
		}
		if _, err := s.pool.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("insert article: %w", err)
		}
	}
	return nil
}

// MarkRunComplete upserts the run's completion row.
func (s *RecordStore) MarkRunComplete(ctx context.Context, runID uuid.UUID, summary retrieval.Summary, at time.Time) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("record store is not configured")
	}
	if runID == uuid.Nil {
		return fmt.Errorf("run id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (run_id, completed_at, elapsed_ms, batches)
VALUES ($1,$2,$3,$4)
ON CONFLICT (run_id) DO UPDATE SET
	completed_at = EXCLUDED.completed_at,
	elapsed_ms = EXCLUDED.elapsed_ms,
	batches = EXCLUDED.batches`, s.runsTable)

	args := []any{
		runID,
		at,
		summary.TimeElapsed.Milliseconds(),
		len(summary.PerBatchDurations),
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("mark run complete: %w", err)
	}
	return nil
}
