// Package cache stores captured images in redis so repeated captures of the same
// page can skip the browser entirely.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xkilldash9x/capture-cli/internal/config"
)

var ErrCacheMiss = errors.New("cache miss")

const opTimeout = 5 * time.Second

// RedisStore is an artifact cache backed by a redis client.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
	prefix string
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, logger *zap.Logger, ttl time.Duration, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		logger: logger.Named("cache"),
		ttl:    ttl,
		prefix: prefix,
	}
}

// Open dials redis using the cache configuration, instruments the client for
// tracing and verifies the connection with a PING.
func Open(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := redisotel.InstrumentTracing(client); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to instrument redis client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	logger.Debug("Connected to capture cache.", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return NewRedisStore(client, logger, cfg.TTL, cfg.Prefix), nil
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return val, err
}

func (s *RedisStore) Set(ctx context.Context, key string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return s.client.Set(ctx, s.key(key), data, s.ttl).Err()
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
