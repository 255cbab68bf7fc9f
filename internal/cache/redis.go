package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// KeyPrefix namespaces WavePipe keys in a shared Redis
const KeyPrefix = "wavepipe:"

// PingTimeout bounds the connectivity check in New
const PingTimeout = 3 * time.Second

// RedisOptions configures the Redis connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore stores entries in Redis
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing client
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get implements Store
func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, KeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return value, nil
}

// Set implements Store. A non-positive ttl is ignored.
func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, KeyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close implements Store
func (r *RedisStore) Close() error {
	return r.client.Close()
}

// New returns a RedisStore when opts.Addr is set and the server answers a
// ping, and a MemoryStore otherwise.
func New(ctx context.Context, opts RedisOptions, logger zerolog.Logger) Store {
	if opts.Addr == "" {
		logger.Debug().Msg("using in-memory metadata cache")
		return NewMemoryStore()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, PingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", opts.Addr).Msg("redis unavailable, falling back to in-memory cache")
		_ = client.Close()
		return NewMemoryStore()
	}

	logger.Info().Str("addr", opts.Addr).Msg("using redis metadata cache")
	return NewRedisStore(client)
}
