// Package cache stores ExtractionResults keyed by image digest, in process or
// in a Redis-compatible backend.
package cache

import (
	"context"
	"time"

	"github.com/gofiber/storage/memory/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Store is a byte-oriented key/value backend with per-entry expiry.
type Store interface {
	// Get returns nil and no error for a missing or expired key.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// MemoryStore keeps entries in process using fiber's memory storage.
type MemoryStore struct {
	storage *memory.Storage
}

// NewMemoryStore creates an in-process store. Expired entries are swept
// every gcInterval.
func NewMemoryStore(gcInterval time.Duration) *MemoryStore {
	return &MemoryStore{
		storage: memory.New(memory.Config{
			GCInterval: gcInterval,
		}),
	}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	return s.storage.Get(key)
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	return s.storage.Set(key, value, ttl)
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	return s.storage.Delete(key)
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return s.storage.Close()
}

// RedisStore keeps entries in Redis or a compatible server (Dragonfly,
// Valkey, KeyDB).
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to url and verifies the connection.
// url should be in the format: redis://[password@]host:port[/db]
func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	log.Info().Str("addr", opts.Addr).Msg("Connected to Redis-compatible backend for result cache")

	return &RedisStore{client: client}, nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return value, err
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
