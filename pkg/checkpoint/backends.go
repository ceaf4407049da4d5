package checkpoint

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	ferrors "github.com/filereduce/filereduce/pkg/errors"
)

// Store persists checkpoints keyed by input URI.
type Store interface {
	// Save writes cp, replacing any earlier checkpoint for cp.Input.
	Save(ctx context.Context, cp *Checkpoint) error

	// Load returns the checkpoint for input, or ErrNotFound.
	Load(ctx context.Context, input string) (*Checkpoint, error)

	// Delete removes the checkpoint for input. Missing entries are not an error.
	Delete(ctx context.Context, input string) error

	// Name returns the backend name for logging.
	Name() string
}

// Config selects and configures a Store.
type Config struct {
	Dir          string
	RedisAddress string
	RedisPrefix  string
	TTL          time.Duration
}

// Open returns a RedisStore when a Redis address is configured, otherwise a
// FileStore in Dir.
func Open(cfg Config) (Store, error) {
	if cfg.RedisAddress != "" {
		rc := DefaultRedisConfig(cfg.RedisAddress)
		if cfg.RedisPrefix != "" {
			rc.Prefix = cfg.RedisPrefix
		}
		rc.TTL = cfg.TTL
		store, err := NewRedisStore(rc)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	if cfg.Dir == "" {
		return nil, ferrors.New(ferrors.CodeConfigInvalid, "checkpoint store needs a directory or redis address")
	}
	store, err := NewFileStore(cfg.Dir)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// FileStore keeps one JSON file per input in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, ferrors.Wrap(err, ferrors.CodeCheckpointFailed, "create checkpoint directory").WithContext("dir", dir)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Name() string { return "file" }

func (s *FileStore) path(input string) string {
	return filepath.Join(s.dir, sanitizeKey(input)+".checkpoint")
}

// Save writes to a temp file and renames it into place.
func (s *FileStore) Save(ctx context.Context, cp *Checkpoint) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return ferrors.Wrap(err, ferrors.CodeCheckpointFailed, "encode checkpoint")
	}

	path := s.path(cp.Input)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return ferrors.Wrap(err, ferrors.CodeCheckpointFailed, "write checkpoint").WithContext("path", tempPath)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return ferrors.Wrap(err, ferrors.CodeCheckpointFailed, "write checkpoint").WithContext("path", path)
	}
	return nil
}

func (s *FileStore) Load(ctx context.Context, input string) (*Checkpoint, error) {
	data, err := os.ReadFile(s.path(input))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, ferrors.Wrap(err, ferrors.CodeCheckpointFailed, "read checkpoint").WithContext("input", input)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, ferrors.Wrap(err, ferrors.CodeCheckpointFailed, "decode checkpoint").WithContext("input", input)
	}
	return &cp, nil
}

func (s *FileStore) Delete(ctx context.Context, input string) error {
	err := os.Remove(s.path(input))
	if err != nil && !os.IsNotExist(err) {
		return ferrors.Wrap(err, ferrors.CodeCheckpointFailed, "delete checkpoint").WithContext("input", input)
	}
	return nil
}
