package sinks

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	ferrors "github.com/filereduce/filereduce/pkg/errors"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// PostgresSink hands batches of documents to a stored procedure as one JSON
// array argument.
type PostgresSink struct {
	cfg  Config
	pool *pgxpool.Pool
	call string

	mu    sync.Mutex
	batch []Item
	stats Stats
}

// NewPostgresSink connects to cfg.ConnectionString with at most 10 pooled
// connections.
func NewPostgresSink(ctx context.Context, cfg Config) (*PostgresSink, error) {
	call, err := procedureCall(cfg.ProcedureName, cfg.JSONParam)
	if err != nil {
		return nil, err
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}

	config, err := pgxpool.ParseConfig(cfg.ConnectionString)
	if err != nil {
		return nil, ferrors.Wrap(err, ferrors.CodeConfigInvalid, "failed to parse connection string")
	}
	config.MaxConns = 10

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, ferrors.Wrap(err, ferrors.CodeSinkFailed, "failed to create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, ferrors.Wrap(err, ferrors.CodeSinkFailed, "failed to ping database")
	}

	return &PostgresSink{
		cfg:   cfg,
		pool:  pool,
		call:  call,
		batch: make([]Item, 0, cfg.BatchSize),
	}, nil
}

// procedureCall builds the CALL statement with a named JSON argument.
func procedureCall(procedure, param string) (string, error) {
	if !identPattern.MatchString(procedure) {
		return "", ferrors.New(ferrors.CodeConfigInvalid, "invalid procedure name").
			WithContext("procedure", procedure)
	}
	if param == "" {
		return fmt.Sprintf("CALL %s($1::jsonb)", procedure), nil
	}
	if !identPattern.MatchString(param) {
		return "", ferrors.New(ferrors.CodeConfigInvalid, "invalid procedure parameter").
			WithContext("param", param)
	}
	return fmt.Sprintf("CALL %s(%s => $1::jsonb)", procedure, param), nil
}

// Send buffers item and calls the procedure once the batch is full.
func (s *PostgresSink) Send(ctx context.Context, item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batch = append(s.batch, item)
	if len(s.batch) >= s.cfg.BatchSize {
		return s.flushBatch(ctx)
	}
	return nil
}

// flushBatch sends the buffered items. Caller holds mu.
func (s *PostgresSink) flushBatch(ctx context.Context) error {
	if len(s.batch) == 0 {
		return nil
	}
	n := int64(len(s.batch))
	defer func() { s.batch = s.batch[:0] }()

	payload, err := encodeBatch(s.batch)
	if err != nil {
		s.stats.Failed += n
		return ferrors.SinkFailed("postgres", err)
	}

	if _, err := s.pool.Exec(ctx, s.call, string(payload)); err != nil {
		s.stats.Failed += n
		log.Printf("[sink] postgres batch of %d failed: %v", n, err)
		return ferrors.SinkFailed("postgres", err).WithContext("procedure", s.cfg.ProcedureName)
	}

	s.stats.Success += n
	return nil
}

// Flush sends any buffered items and logs the running totals.
func (s *PostgresSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.flushBatch(ctx)
	log.Printf("[sink] postgres ingest: %s", s.stats)
	return err
}

// Close releases the pool. Buffered items are not sent; call Flush first.
func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}

// Stats returns delivery counters.
func (s *PostgresSink) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
