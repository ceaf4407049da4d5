package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	ferrors "github.com/filereduce/filereduce/pkg/errors"
)

// RedisConfig configures the Redis checkpoint store.
type RedisConfig struct {
	// Address is the Redis server address (e.g., "localhost:6379")
	Address  string
	Password string
	Database int

	// Prefix is prepended to every key (e.g., "filereduce:checkpoints:")
	Prefix string

	// TTL is the time-to-live for checkpoint keys (0 = no expiration)
	TTL time.Duration

	Timeout  time.Duration
	PoolSize int
}

// DefaultRedisConfig returns defaults for address.
func DefaultRedisConfig(address string) RedisConfig {
	return RedisConfig{
		Address:  address,
		Prefix:   "filereduce:checkpoints:",
		TTL:      24 * time.Hour,
		Timeout:  5 * time.Second,
		PoolSize: 10,
	}
}

// RedisStore keeps checkpoints in Redis, shared by every worker that points
// at the same server.
type RedisStore struct {
	cfg    RedisConfig
	client *redis.Client
}

// NewRedisStore connects and pings the server.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.Database,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, ferrors.Wrap(err, ferrors.CodeCheckpointFailed, "connect to redis").WithContext("address", cfg.Address)
	}
	return &RedisStore{cfg: cfg, client: client}, nil
}

func (s *RedisStore) Name() string { return "redis" }

func (s *RedisStore) key(input string) string {
	return s.cfg.Prefix + sanitizeKey(input)
}

func (s *RedisStore) Save(ctx context.Context, cp *Checkpoint) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	data, err := json.Marshal(cp)
	if err != nil {
		return ferrors.Wrap(err, ferrors.CodeCheckpointFailed, "encode checkpoint")
	}
	if err := s.client.Set(ctx, s.key(cp.Input), data, s.cfg.TTL).Err(); err != nil {
		return ferrors.Wrap(err, ferrors.CodeCheckpointFailed, "save checkpoint").WithContext("input", cp.Input)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, input string) (*Checkpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	data, err := s.client.Get(ctx, s.key(input)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, ferrors.Wrap(err, ferrors.CodeCheckpointFailed, "load checkpoint").WithContext("input", input)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, ferrors.Wrap(err, ferrors.CodeCheckpointFailed, "decode checkpoint").WithContext("input", input)
	}
	return &cp, nil
}

func (s *RedisStore) Delete(ctx context.Context, input string) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.client.Del(ctx, s.key(input)).Err(); err != nil {
		return ferrors.Wrap(err, ferrors.CodeCheckpointFailed, "delete checkpoint").WithContext("input", input)
	}
	return nil
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
