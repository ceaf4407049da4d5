package sinks

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"

	_ "github.com/marcboeker/go-duckdb"

	ferrors "github.com/filereduce/filereduce/pkg/errors"
)

// DuckDBSink stores documents in a DuckDB table, one transaction per batch.
type DuckDBSink struct {
	cfg  Config
	db   *sql.DB
	stmt *sql.Stmt

	mu     sync.Mutex
	batch  []Item
	stats  Stats
	closed bool
}

// NewDuckDBSink opens cfg.ConnectionString ("" is in-memory) and creates the
// target table if needed.
func NewDuckDBSink(cfg Config) (*DuckDBSink, error) {
	if cfg.Table == "" {
		cfg.Table = "documents"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}

	db, err := sql.Open("duckdb", cfg.ConnectionString)
	if err != nil {
		return nil, ferrors.Wrap(err, ferrors.CodeSinkFailed, "failed to open duckdb")
	}

	table := quoteIdent(cfg.Table)
	_, err = db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			document_number VARCHAR,
			doc_type VARCHAR,
			payload JSON NOT NULL
		)
	`, table))
	if err != nil {
		db.Close()
		return nil, ferrors.Wrap(err, ferrors.CodeSinkFailed, "failed to create table")
	}

	stmt, err := db.Prepare(fmt.Sprintf(
		`INSERT INTO %s (document_number, doc_type, payload) VALUES (?, ?, ?)`, table))
	if err != nil {
		db.Close()
		return nil, ferrors.Wrap(err, ferrors.CodeSinkFailed, "failed to prepare insert")
	}

	return &DuckDBSink{
		cfg:   cfg,
		db:    db,
		stmt:  stmt,
		batch: make([]Item, 0, cfg.BatchSize),
	}, nil
}

// Send buffers item and writes the batch once it is full.
func (s *DuckDBSink) Send(ctx context.Context, item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batch = append(s.batch, item)
	if len(s.batch) >= s.cfg.BatchSize {
		return s.flushBatch(ctx)
	}
	return nil
}

// flushBatch inserts the buffered items in one transaction. Caller holds mu.
func (s *DuckDBSink) flushBatch(ctx context.Context) error {
	if len(s.batch) == 0 {
		return nil
	}
	n := int64(len(s.batch))

	if err := s.insert(ctx); err != nil {
		s.stats.Failed += n
		s.batch = s.batch[:0]
		log.Printf("[sink] duckdb batch of %d failed: %v", n, err)
		return ferrors.SinkFailed("duckdb", err)
	}

	s.stats.Success += n
	s.batch = s.batch[:0]
	return nil
}

func (s *DuckDBSink) insert(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt := tx.StmtContext(ctx, s.stmt)
	for _, item := range s.batch {
		payload, err := json.Marshal(item)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to encode item: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, item.Key(), item.Kind(), string(payload)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Flush writes any buffered items and logs the running totals.
func (s *DuckDBSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.flushBatch(ctx)
	log.Printf("[sink] duckdb ingest: %s", s.stats)
	return err
}

// Close flushes, optionally exports the table to Parquet, and closes the
// database.
func (s *DuckDBSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.flushBatch(context.Background()); err != nil {
		s.stmt.Close()
		s.db.Close()
		return err
	}

	if s.cfg.ExportParquet != "" {
		query := fmt.Sprintf(`COPY %s TO '%s' (FORMAT PARQUET, COMPRESSION 'zstd')`,
			quoteIdent(s.cfg.Table), strings.ReplaceAll(s.cfg.ExportParquet, "'", "''"))
		if _, err := s.db.Exec(query); err != nil {
			s.stmt.Close()
			s.db.Close()
			return ferrors.Wrap(err, ferrors.CodeExportFailed, "failed to export parquet").
				WithContext("path", s.cfg.ExportParquet)
		}
	}

	s.stmt.Close()
	return s.db.Close()
}

// Stats returns delivery counters.
func (s *DuckDBSink) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Count returns the number of rows in the target table.
func (s *DuckDBSink) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, quoteIdent(s.cfg.Table))).Scan(&n)
	return n, err
}

// DB exposes the underlying connection for queries over stored documents.
func (s *DuckDBSink) DB() *sql.DB {
	return s.db
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
