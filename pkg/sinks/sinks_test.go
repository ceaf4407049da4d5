package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/filereduce/filereduce/internal/model"
	ferrors "github.com/filereduce/filereduce/pkg/errors"
)

func testDocument(number string) *model.Document {
	doc := model.NewDocument("IC1", "SENDER", "RECEIVER")
	doc.DocType = "ORDERS"
	doc.DocumentNumber = number
	qty := 5.0
	doc.Lines = append(doc.Lines, model.Line{LineNo: 1, SKU: "A", Qty: &qty})
	return doc
}

func TestItem_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(DocumentItem(testDocument("PO1")))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded["document_number"] != "PO1" {
		t.Errorf("Expected untagged document, got %s", data)
	}
	if _, ok := decoded["buyer"]; !ok {
		t.Error("Expected unset attributes serialized as null")
	}

	raw, err := json.Marshal(RawItem(json.RawMessage(`{"sku":"A"}`)))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(raw) != `{"sku":"A"}` {
		t.Errorf("Expected raw value verbatim, got %s", raw)
	}
}

func TestFileSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewFileSink(&buf)
	ctx := context.Background()

	if err := s.Send(ctx, DocumentItem(testDocument("PO1"))); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if err := s.Send(ctx, RawItem(json.RawMessage(`{"a":1}`))); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	if lines[1] != `{"a":1}` {
		t.Errorf("Unexpected second line %q", lines[1])
	}
	if s.Written() != 2 {
		t.Errorf("Expected 2 written, got %d", s.Written())
	}
}

func TestFileSink_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewFileSink(&bytes.Buffer{})
	if err := s.Send(ctx, RawItem(json.RawMessage(`1`))); err == nil {
		t.Error("Expected error on canceled context")
	}
}

func TestDuckDBSink(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Driver = "duckdb"
	cfg.BatchSize = 2
	cfg.ExportParquet = filepath.Join(dir, "documents.parquet")

	s, err := NewDuckDBSink(cfg)
	if err != nil {
		t.Fatalf("NewDuckDBSink failed: %v", err)
	}
	ctx := context.Background()

	for _, n := range []string{"PO1", "PO2", "PO3"} {
		if err := s.Send(ctx, DocumentItem(testDocument(n))); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
	}
	if got := s.Stats().Success; got != 2 {
		t.Errorf("Expected first batch of 2 delivered, got %d", got)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 rows, got %d", count)
	}

	var docType string
	if err := s.DB().QueryRowContext(ctx,
		`SELECT doc_type FROM documents WHERE document_number = 'PO2'`).Scan(&docType); err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if docType != "ORDERS" {
		t.Errorf("Expected ORDERS, got %q", docType)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Second Close should be a no-op: %v", err)
	}
}

func TestProcedureCall(t *testing.T) {
	tests := []struct {
		procedure, param string
		want             string
		wantErr          bool
	}{
		{"ingest_documents", "payload", "CALL ingest_documents(payload => $1::jsonb)", false},
		{"edi.ingest", "", "CALL edi.ingest($1::jsonb)", false},
		{"drop table x;", "payload", "", true},
		{"ingest", "p; --", "", true},
	}

	for _, tt := range tests {
		got, err := procedureCall(tt.procedure, tt.param)
		if tt.wantErr {
			if !ferrors.IsCode(err, ferrors.CodeConfigInvalid) {
				t.Errorf("procedureCall(%q, %q): expected config error, got %v", tt.procedure, tt.param, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("procedureCall(%q, %q) = %q, %v", tt.procedure, tt.param, got, err)
		}
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), Config{Driver: "oracle"}); err == nil {
		t.Error("Expected error for unknown driver")
	}
}
