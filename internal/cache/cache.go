package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ironsheep/chatscan/internal/extract"
	"github.com/ironsheep/chatscan/internal/faults"
	"github.com/ironsheep/chatscan/internal/observability"
)

// Providers accepted by Config.Provider.
const (
	ProviderMemory = "memory"
	ProviderRedis  = "redis"
	ProviderNone   = "none"
)

// Defaults for Config.
const (
	DefaultTTL    = time.Hour
	DefaultPrefix = "chatscan:"
)

// Config selects and tunes the cache backend.
type Config struct {
	Provider string        `json:"provider" mapstructure:"provider"`
	RedisURL string        `json:"redis_url" mapstructure:"redis_url"`
	TTL      time.Duration `json:"ttl" mapstructure:"ttl"`
	Prefix   string        `json:"prefix" mapstructure:"prefix"`
}

// DefaultConfig returns an in-memory cache keeping entries for an hour.
func DefaultConfig() Config {
	return Config{
		Provider: ProviderMemory,
		TTL:      DefaultTTL,
		Prefix:   DefaultPrefix,
	}
}

// Validate rejects unknown providers and incomplete Redis settings.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderMemory, ProviderNone, "":
	case ProviderRedis:
		if c.RedisURL == "" {
			return faults.InvalidConfiguration("cache.redis_url is required for the redis provider")
		}
	default:
		return faults.InvalidConfiguration("unknown cache provider %q (valid options: memory, redis, none)", c.Provider)
	}
	if c.TTL < 0 {
		return faults.InvalidConfiguration("cache.ttl must not be negative, got %v", c.TTL)
	}
	return nil
}

// ResultCache stores ExtractionResults as JSON. A nil *ResultCache is a
// disabled cache: lookups miss and stores are dropped.
type ResultCache struct {
	store   Store
	prefix  string
	ttl     time.Duration
	metrics *observability.Metrics
}

// New builds the cache cfg describes. It returns nil, nil for the "none"
// provider.
func New(cfg Config, metrics *observability.Metrics) (*ResultCache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var store Store
	switch cfg.Provider {
	case ProviderNone:
		log.Info().Msg("Result cache disabled")
		return nil, nil
	case ProviderRedis:
		s, err := NewRedisStore(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		log.Info().Msg("Using Redis-compatible result cache")
		store = s
	default:
		log.Info().Msg("Using in-memory result cache")
		store = NewMemoryStore(10 * time.Minute)
	}
	return NewResultCache(store, cfg.Prefix, cfg.TTL, metrics), nil
}

// NewResultCache wraps store. A ttl of 0 keeps entries until evicted.
func NewResultCache(store Store, prefix string, ttl time.Duration, metrics *observability.Metrics) *ResultCache {
	return &ResultCache{store: store, prefix: prefix, ttl: ttl, metrics: metrics}
}

// Key derives the cache key for an image body extracted by an Extractor with
// the given fingerprint (see extract.Extractor.Fingerprint). A change to the
// engine, language hints, preprocessing, detection or field patterns yields
// a new key, so results from older settings are never served.
func Key(data []byte, fingerprint string) string {
	h := sha256.New()
	h.Write(data)
	h.Write([]byte{0})
	h.Write([]byte(fingerprint))
	return "v" + extract.PatternVersion + ":" + hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached result for key. Backend and decoding failures are
// reported as misses with an error so callers can log them and carry on.
func (c *ResultCache) Get(ctx context.Context, key string) (*extract.Result, bool, error) {
	if c == nil {
		return nil, false, nil
	}

	data, err := c.store.Get(ctx, c.prefix+key)
	if err != nil {
		c.metrics.RecordCacheLookup(observability.CacheError)
		return nil, false, fmt.Errorf("cache lookup failed: %w", err)
	}
	if data == nil {
		c.metrics.RecordCacheLookup(observability.CacheMiss)
		return nil, false, nil
	}

	var result extract.Result
	if err := json.Unmarshal(data, &result); err != nil {
		c.metrics.RecordCacheLookup(observability.CacheError)
		return nil, false, fmt.Errorf("failed to decode cached result: %w", err)
	}
	c.metrics.RecordCacheLookup(observability.CacheHit)
	return &result, true, nil
}

// Set stores result under key.
func (c *ResultCache) Set(ctx context.Context, key string, result *extract.Result) error {
	if c == nil || result == nil {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := c.store.Set(ctx, c.prefix+key, data, c.ttl); err != nil {
		return fmt.Errorf("cache store failed: %w", err)
	}
	return nil
}

// Delete removes key.
func (c *ResultCache) Delete(ctx context.Context, key string) error {
	if c == nil {
		return nil
	}
	return c.store.Delete(ctx, c.prefix+key)
}

// Close releases the backend.
func (c *ResultCache) Close() error {
	if c == nil {
		return nil
	}
	return c.store.Close()
}
