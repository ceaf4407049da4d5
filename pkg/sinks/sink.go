// Package sinks delivers processed documents and records to their
// destination: a JSON lines stream, DuckDB or a Postgres ingest procedure.
package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/filereduce/filereduce/internal/model"
	ferrors "github.com/filereduce/filereduce/pkg/errors"
)

// Sink receives items one at a time. Flush marks the end of the stream and
// must deliver everything buffered so far.
type Sink interface {
	Send(ctx context.Context, item Item) error
	Flush(ctx context.Context) error
	Close() error
}

// Item is either a completed document or a raw JSON record. It serializes as
// the value it holds, without a wrapper.
type Item struct {
	Document *model.Document
	Raw      json.RawMessage
}

// DocumentItem wraps a document.
func DocumentItem(doc *model.Document) Item {
	return Item{Document: doc}
}

// RawItem wraps an already encoded JSON value.
func RawItem(raw json.RawMessage) Item {
	return Item{Raw: raw}
}

// MarshalJSON implements json.Marshaler.
func (i Item) MarshalJSON() ([]byte, error) {
	if i.Document != nil {
		return json.Marshal(i.Document)
	}
	if i.Raw != nil {
		return i.Raw, nil
	}
	return []byte("null"), nil
}

// Key returns the document number, or "" for raw records.
func (i Item) Key() string {
	if i.Document != nil {
		return i.Document.DocumentNumber
	}
	return ""
}

// Kind returns the document type, or "RAW" for raw records.
func (i Item) Kind() string {
	if i.Document != nil {
		return i.Document.DocType
	}
	return "RAW"
}

// Config holds the settings shared by the database sinks.
type Config struct {
	// Driver is "postgres" or "duckdb".
	Driver string

	ConnectionString string

	// ProcedureName and JSONParam name the Postgres ingest procedure and its
	// JSON parameter.
	ProcedureName string
	JSONParam     string

	// BatchSize is the number of items per database round trip.
	BatchSize int

	// Table is the DuckDB target table.
	Table string

	// ExportParquet, when set, is where the DuckDB table is copied on Close.
	ExportParquet string
}

// DefaultConfig returns a Config with the default batch size.
func DefaultConfig() Config {
	return Config{
		Driver:        "postgres",
		ProcedureName: "ingest_documents",
		JSONParam:     "payload",
		BatchSize:     1000,
		Table:         "documents",
	}
}

// Open creates the database sink named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Sink, error) {
	switch strings.ToLower(cfg.Driver) {
	case "duckdb":
		s, err := NewDuckDBSink(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres", "postgresql", "":
		s, err := NewPostgresSink(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, ferrors.New(ferrors.CodeConfigInvalid, "unknown sink driver").
		WithContext("driver", cfg.Driver)
}

// Stats counts delivered and failed items.
type Stats struct {
	Success int64
	Failed  int64
}

func (s Stats) String() string {
	return fmt.Sprintf("success=%d failed=%d", s.Success, s.Failed)
}

func encodeBatch(batch []Item) ([]byte, error) {
	return json.Marshal(batch)
}
