package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	ferrors "github.com/filereduce/filereduce/pkg/errors"
	"github.com/filereduce/filereduce/pkg/storage/s3"
)

const payload = "UNH+1+ORDERS:D:96A:UN'\nBGM+220+PO1'\nUNT+3+1'\n"

func readAll(t *testing.T, path string) string {
	t.Helper()
	in, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open(%s) failed: %v", path, err)
	}
	defer in.Close()
	data, err := io.ReadAll(in)
	if err != nil {
		t.Fatalf("read %s failed: %v", path, err)
	}
	return string(data)
}

func TestOpen_Plain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.edi")
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := readAll(t, path); got != payload {
		t.Errorf("Expected %q, got %q", payload, got)
	}
}

func TestOpen_Decompresses(t *testing.T) {
	dir := t.TempDir()

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	gw.Write([]byte(payload))
	gw.Close()

	var zs bytes.Buffer
	zw, err := zstd.NewWriter(&zs)
	if err != nil {
		t.Fatal(err)
	}
	zw.Write([]byte(payload))
	zw.Close()

	files := map[string][]byte{
		"orders.edi.gz":  gz.Bytes(),
		"orders.edi.zst": zs.Bytes(),
	}
	for name, data := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatal(err)
		}
		if got := readAll(t, path); got != payload {
			t.Errorf("%s: expected %q, got %q", name, payload, got)
		}
	}
}

func TestOpen_Progress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.edi")
	os.WriteFile(path, []byte(payload), 0o644)

	var (
		seen  bytes.Buffer
		total int64
	)
	in, err := Open(context.Background(), path, WithProgress(func(size int64) io.Writer {
		total = size
		return &seen
	}))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	io.Copy(io.Discard, in)
	in.Close()

	if total != int64(len(payload)) || seen.Len() != len(payload) {
		t.Errorf("Expected size and progress %d, got %d and %d", len(payload), total, seen.Len())
	}
}

func TestOpen_NotFound(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing.edi"))
	if !ferrors.IsCode(err, ferrors.CodeFileNotFound) {
		t.Errorf("Expected file not found, got %v", err)
	}
}

func TestCreate_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"out/plain.jsonl", "out/packed.jsonl.gz", "out/packed.jsonl.zst"} {
		path := filepath.Join(dir, name)
		w, err := Create(context.Background(), path)
		if err != nil {
			t.Fatalf("Create(%s) failed: %v", name, err)
		}
		if _, err := io.WriteString(w, payload); err != nil {
			t.Fatal(err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close(%s) failed: %v", name, err)
		}
		if got := readAll(t, path); got != payload {
			t.Errorf("%s: expected %q, got %q", name, payload, got)
		}
	}
}

func TestList_Local(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.edi", "a.edi", "c.json"} {
		os.WriteFile(filepath.Join(dir, name), nil, 0o644)
	}

	got, err := New(s3.DefaultConfig()).List(context.Background(), filepath.Join(dir, "*.edi"))
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 2 || filepath.Base(got[0]) != "a.edi" || filepath.Base(got[1]) != "b.edi" {
		t.Errorf("Unexpected matches %v", got)
	}
}

func TestFormatHelpers(t *testing.T) {
	tests := []struct {
		name, compression, stripped, base string
	}{
		{"orders.edi", "", "orders.edi", ".edi"},
		{"orders.EDI.GZ", ".gz", "orders.EDI", ".edi"},
		{"records.jsonl.zst", ".zst", "records.jsonl", ".jsonl"},
		{"noext", "", "noext", ""},
	}
	for _, tt := range tests {
		if got := Compression(tt.name); got != tt.compression {
			t.Errorf("Compression(%s) = %q, want %q", tt.name, got, tt.compression)
		}
		if got := StripCompression(tt.name); got != tt.stripped {
			t.Errorf("StripCompression(%s) = %q, want %q", tt.name, got, tt.stripped)
		}
		if got := BaseFormat(tt.name); got != tt.base {
			t.Errorf("BaseFormat(%s) = %q, want %q", tt.name, got, tt.base)
		}
	}
}
