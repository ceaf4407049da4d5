// Package config provides hierarchical configuration management.
// Priority: defaults < system < user < project < explicit file < env
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/filereduce/filereduce/pkg/checkpoint"
	"github.com/filereduce/filereduce/pkg/compress"
	ferrors "github.com/filereduce/filereduce/pkg/errors"
	"github.com/filereduce/filereduce/pkg/sinks"
	"github.com/filereduce/filereduce/pkg/storage/s3"
	"github.com/filereduce/filereduce/pkg/telemetry"
)

// Config holds all filereduce configuration.
type Config struct {
	Version int `yaml:"version"`

	Ingest     IngestConfig     `yaml:"ingest"`
	Output     OutputConfig     `yaml:"output"`
	Storage    StorageConfig    `yaml:"storage"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Batch      BatchConfig      `yaml:"batch"`
}

// IngestConfig selects the database sink.
type IngestConfig struct {
	Driver           string `yaml:"driver"` // postgres | duckdb
	ConnectionString string `yaml:"connection_string"`
	ProcedureName    string `yaml:"procedure_name"`
	JSONParam        string `yaml:"json_param"`
	BatchSize        int    `yaml:"batch_size"`
	Table            string `yaml:"table"`          // duckdb
	ExportParquet    string `yaml:"export_parquet"` // duckdb
}

// OutputConfig controls file outputs.
type OutputConfig struct {
	Compression string `yaml:"compression"` // none | zstd | gzip
	BufferSize  int    `yaml:"buffer_size"`
}

// StorageConfig holds object store settings.
type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

// S3Config for s3:// inputs and outputs.
type S3Config struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	UsePathStyle    bool   `yaml:"use_path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PartSize        int64  `yaml:"part_size"`
}

// CheckpointConfig for batch resume.
type CheckpointConfig struct {
	Dir          string        `yaml:"dir"`
	RedisAddress string        `yaml:"redis_address"`
	RedisPrefix  string        `yaml:"redis_prefix"`
	TTL          time.Duration `yaml:"ttl"`
}

// TelemetryConfig for trace export.
type TelemetryConfig struct {
	Enabled       bool    `yaml:"enabled"`
	Endpoint      string  `yaml:"endpoint"`
	ServiceName   string  `yaml:"service_name"`
	SamplingRatio float64 `yaml:"sampling_ratio"`
}

// BatchConfig for parallel runs.
type BatchConfig struct {
	Workers  int  `yaml:"workers"`
	FailFast bool `yaml:"fail_fast"`
}

// Default returns the default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	sink := sinks.DefaultConfig()
	tel := telemetry.DefaultConfig()

	return &Config{
		Version: 1,
		Ingest: IngestConfig{
			Driver:        sink.Driver,
			ProcedureName: sink.ProcedureName,
			JSONParam:     sink.JSONParam,
			BatchSize:     sink.BatchSize,
			Table:         sink.Table,
		},
		Output: OutputConfig{
			Compression: "none",
			BufferSize:  256 * 1024,
		},
		Storage: StorageConfig{
			S3: S3Config{PartSize: s3.DefaultConfig().PartSize},
		},
		Checkpoint: CheckpointConfig{
			Dir:         filepath.Join(homeDir, ".filereduce", "checkpoints"),
			RedisPrefix: "filereduce:checkpoints:",
			TTL:         24 * time.Hour,
		},
		Telemetry: TelemetryConfig{
			Endpoint:      tel.Endpoint,
			ServiceName:   tel.ServiceName,
			SamplingRatio: tel.SamplingRatio,
		},
		Batch: BatchConfig{
			Workers: runtime.NumCPU(),
		},
	}
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	switch c.Ingest.Driver {
	case "postgres", "duckdb":
	default:
		return ferrors.New(ferrors.CodeConfigInvalid, "unknown ingest driver").WithContext("driver", c.Ingest.Driver)
	}
	if c.Ingest.BatchSize <= 0 {
		return ferrors.New(ferrors.CodeConfigInvalid, "ingest.batch_size must be positive").WithContext("batch_size", c.Ingest.BatchSize)
	}
	if _, err := compress.ParseCodec(c.Output.Compression); err != nil {
		return err
	}
	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return ferrors.New(ferrors.CodeConfigInvalid, "telemetry.sampling_ratio must be within [0, 1]").
			WithContext("sampling_ratio", c.Telemetry.SamplingRatio)
	}
	if c.Batch.Workers < 0 {
		return ferrors.New(ferrors.CodeConfigInvalid, "batch.workers must not be negative").WithContext("workers", c.Batch.Workers)
	}
	return nil
}

// Sink returns the database sink configuration.
func (c *Config) Sink() sinks.Config {
	return sinks.Config{
		Driver:           c.Ingest.Driver,
		ConnectionString: c.Ingest.ConnectionString,
		ProcedureName:    c.Ingest.ProcedureName,
		JSONParam:        c.Ingest.JSONParam,
		BatchSize:        c.Ingest.BatchSize,
		Table:            c.Ingest.Table,
		ExportParquet:    c.Ingest.ExportParquet,
	}
}

// S3 returns the S3 client configuration.
func (c *Config) S3() s3.Config {
	cfg := s3.DefaultConfig()
	cfg.Region = c.Storage.S3.Region
	cfg.Endpoint = c.Storage.S3.Endpoint
	cfg.UsePathStyle = c.Storage.S3.UsePathStyle
	cfg.AccessKeyID = c.Storage.S3.AccessKeyID
	cfg.SecretAccessKey = c.Storage.S3.SecretAccessKey
	if c.Storage.S3.PartSize > 0 {
		cfg.PartSize = c.Storage.S3.PartSize
	}
	return cfg
}

// Checkpoints returns the checkpoint store configuration.
func (c *Config) Checkpoints() checkpoint.Config {
	return checkpoint.Config{
		Dir:          c.Checkpoint.Dir,
		RedisAddress: c.Checkpoint.RedisAddress,
		RedisPrefix:  c.Checkpoint.RedisPrefix,
		TTL:          c.Checkpoint.TTL,
	}
}

// Tracing returns the telemetry configuration.
func (c *Config) Tracing() telemetry.Config {
	cfg := telemetry.DefaultConfig()
	cfg.Enabled = c.Telemetry.Enabled
	if c.Telemetry.Endpoint != "" {
		cfg.Endpoint = c.Telemetry.Endpoint
	}
	if c.Telemetry.ServiceName != "" {
		cfg.ServiceName = c.Telemetry.ServiceName
	}
	cfg.SamplingRatio = c.Telemetry.SamplingRatio
	return cfg
}

// Codec returns the output compression codec.
func (c *Config) Codec() compress.Codec {
	codec, _ := compress.ParseCodec(c.Output.Compression)
	return codec
}

// Manager handles configuration loading and merging.
type Manager struct {
	mu     sync.RWMutex
	config *Config
	search []string
	paths  []string // Paths that were loaded
}

// NewManager creates a manager that searches the system, user and project
// locations.
func NewManager() *Manager {
	return &Manager{
		config: Default(),
		search: defaultPaths(),
	}
}

// NewManagerWithPaths creates a manager that searches only paths.
func NewManagerWithPaths(paths ...string) *Manager {
	return &Manager{
		config: Default(),
		search: paths,
	}
}

// defaultPaths returns config file paths in priority order.
func defaultPaths() []string {
	var paths []string

	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/filereduce/config.yaml")
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".filereduce", "config.yaml"))
	}
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".filereduce.yaml"))
	}
	return paths
}

// Load rebuilds the configuration from defaults, the search paths, the
// explicit file (if any) and the environment, then validates it. A missing
// explicit file is an error; missing search paths are skipped.
func (m *Manager) Load(explicit string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.config = Default()
	m.paths = nil

	for _, path := range m.search {
		err := m.loadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return err
		}
		m.paths = append(m.paths, path)
	}

	if explicit != "" {
		if err := m.loadFile(explicit); err != nil {
			if os.IsNotExist(err) {
				return ferrors.FileNotFound(explicit)
			}
			return err
		}
		m.paths = append(m.paths, explicit)
	}

	m.loadEnv()
	return m.config.Validate()
}

// loadFile decodes path over the current config. Keys absent from the file
// keep their current values.
func (m *Manager) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, m.config); err != nil {
		return ferrors.Wrap(err, ferrors.CodeConfigInvalid, "invalid config file").WithContext("path", path)
	}
	return nil
}

// loadEnv loads configuration from environment variables.
func (m *Manager) loadEnv() {
	if v := os.Getenv("FILEREDUCE_DB_DRIVER"); v != "" {
		m.config.Ingest.Driver = v
	}
	if v := os.Getenv("FILEREDUCE_DB_CONNECTION"); v != "" {
		m.config.Ingest.ConnectionString = v
	}
	if v := os.Getenv("FILEREDUCE_COMPRESSION"); v != "" {
		m.config.Output.Compression = v
	}
	if v := os.Getenv("FILEREDUCE_REDIS_ADDRESS"); v != "" {
		m.config.Checkpoint.RedisAddress = v
	}
	// Setting an endpoint turns tracing on.
	if v := os.Getenv("FILEREDUCE_OTLP_ENDPOINT"); v != "" {
		m.config.Telemetry.Endpoint = v
		m.config.Telemetry.Enabled = true
	}
	if v := os.Getenv("FILEREDUCE_BATCH_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			m.config.Batch.Workers = n
		}
	}
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetPaths returns the paths that were loaded.
func (m *Manager) GetPaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paths
}

// Save writes the current config to path.
func (m *Manager) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ferrors.Wrap(err, ferrors.CodeWriteFailed, "create config directory").WithContext("path", path)
	}
	data, err := yaml.Marshal(m.config)
	if err != nil {
		return ferrors.Wrap(err, ferrors.CodeConfigInvalid, "encode config")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ferrors.Wrap(err, ferrors.CodeWriteFailed, "write config").WithContext("path", path)
	}
	return nil
}
