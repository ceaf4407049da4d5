package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/filereduce/filereduce/pkg/compress"
	ferrors "github.com/filereduce/filereduce/pkg/errors"
)

func writeYAML(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config invalid: %v", err)
	}
	if cfg.Ingest.Driver != "postgres" || cfg.Ingest.BatchSize != 1000 || cfg.Ingest.Table != "documents" {
		t.Errorf("Unexpected ingest defaults %+v", cfg.Ingest)
	}
	if cfg.Codec() != compress.CodecNone {
		t.Errorf("Expected no compression by default, got %v", cfg.Codec())
	}
	if cfg.Batch.Workers <= 0 {
		t.Errorf("Expected positive worker default, got %d", cfg.Batch.Workers)
	}
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	user := writeYAML(t, dir, "user.yaml", `
ingest:
  driver: duckdb
  connection_string: user.db
  batch_size: 50
output:
  compression: gzip
`)
	project := writeYAML(t, dir, "project.yaml", `
ingest:
  connection_string: project.db
checkpoint:
  ttl: 2h
`)
	explicit := writeYAML(t, dir, "explicit.yaml", `
output:
  compression: zstd
storage:
  s3:
    region: eu-west-1
    use_path_style: true
`)

	t.Setenv("FILEREDUCE_DB_CONNECTION", "env.db")
	t.Setenv("FILEREDUCE_OTLP_ENDPOINT", "collector:4317")

	m := NewManagerWithPaths(user, filepath.Join(dir, "missing.yaml"), project)
	if err := m.Load(explicit); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cfg := m.Get()

	if cfg.Ingest.Driver != "duckdb" || cfg.Ingest.BatchSize != 50 {
		t.Errorf("Expected user values to survive, got %+v", cfg.Ingest)
	}
	if cfg.Ingest.ConnectionString != "env.db" {
		t.Errorf("Expected env to win, got %s", cfg.Ingest.ConnectionString)
	}
	if cfg.Codec() != compress.CodecZstd {
		t.Errorf("Expected explicit file to win, got %v", cfg.Codec())
	}
	if cfg.Checkpoint.TTL != 2*time.Hour {
		t.Errorf("Expected ttl 2h, got %v", cfg.Checkpoint.TTL)
	}
	if s3 := cfg.S3(); s3.Region != "eu-west-1" || !s3.UsePathStyle || s3.PartSize == 0 {
		t.Errorf("Unexpected s3 config %+v", s3)
	}
	if tr := cfg.Tracing(); !tr.Enabled || tr.Endpoint != "collector:4317" {
		t.Errorf("Expected tracing enabled by env, got %+v", tr)
	}
	if sink := cfg.Sink(); sink.Driver != "duckdb" || sink.Table != "documents" {
		t.Errorf("Unexpected sink config %+v", sink)
	}
	if got := len(m.GetPaths()); got != 3 {
		t.Errorf("Expected 3 loaded paths, got %d", got)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		explicit string
		code     ferrors.Code
	}{
		{"missing explicit", filepath.Join(dir, "nope.yaml"), ferrors.CodeFileNotFound},
		{"bad yaml", writeYAML(t, dir, "bad.yaml", "ingest: [unclosed"), ferrors.CodeConfigInvalid},
		{"bad driver", writeYAML(t, dir, "driver.yaml", "ingest:\n  driver: oracle\n"), ferrors.CodeConfigInvalid},
		{"bad codec", writeYAML(t, dir, "codec.yaml", "output:\n  compression: lz4\n"), ferrors.CodeConfigInvalid},
		{"bad ratio", writeYAML(t, dir, "ratio.yaml", "telemetry:\n  sampling_ratio: 2\n"), ferrors.CodeConfigInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewManagerWithPaths().Load(tt.explicit)
			if !ferrors.IsCode(err, tt.code) {
				t.Errorf("Expected %s, got %v", tt.code, err)
			}
		})
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	m := NewManagerWithPaths()
	if err := m.Load(""); err != nil {
		t.Fatal(err)
	}
	m.Get().Ingest.Driver = "duckdb"

	path := filepath.Join(dir, "nested", "config.yaml")
	if err := m.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded := NewManagerWithPaths(path)
	if err := reloaded.Load(""); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if reloaded.Get().Ingest.Driver != "duckdb" {
		t.Errorf("Expected saved driver, got %s", reloaded.Get().Ingest.Driver)
	}
}
