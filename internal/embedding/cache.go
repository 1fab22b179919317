package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"webqa/internal/domain"
)

// Cache stores embeddings by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]float64, bool, error)
	Set(ctx context.Context, key string, vec []float64) error
}

// Cached wraps an embedder with a cache keyed by the embedder name and text,
// so vectors from different models never mix.
type Cached struct {
	next  domain.Embedder
	cache Cache
	log   *slog.Logger
}

// NewCached decorates next with cache.
func NewCached(next domain.Embedder, cache Cache, log *slog.Logger) *Cached {
	if log == nil {
		log = slog.Default()
	}
	return &Cached{next: next, cache: cache, log: log}
}

// Name returns the wrapped embedder's name.
func (c *Cached) Name() string { return c.next.Name() }

// Embed returns the cached vector for text or computes and stores it.
// Cache failures are logged and never fail the call.
func (c *Cached) Embed(ctx context.Context, text string) ([]float64, error) {
	key := CacheKey(c.next.Name(), text)
	if vec, ok, err := c.cache.Get(ctx, key); err != nil {
		c.log.Warn("embedding cache get failed", "error", err)
	} else if ok {
		return vec, nil
	}
	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, vec); err != nil {
		c.log.Warn("embedding cache set failed", "error", err)
	}
	return vec, nil
}

// CacheKey derives the cache key for text embedded by the named embedder.
func CacheKey(embedder, text string) string {
	h := sha256.New()
	h.Write([]byte(embedder))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// MemoryCache is a bounded in-process cache. When full, it is reset.
type MemoryCache struct {
	mu      sync.RWMutex
	max     int
	entries map[string][]float64
}

// NewMemoryCache creates a cache holding up to max vectors.
func NewMemoryCache(max int) *MemoryCache {
	if max <= 0 {
		max = 10000
	}
	return &MemoryCache{max: max, entries: make(map[string][]float64)}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]float64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	return append([]float64(nil), v...), true, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, vec []float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) >= m.max {
		m.entries = make(map[string][]float64)
	}
	m.entries[key] = append([]float64(nil), vec...)
	return nil
}

// Len reports the number of cached vectors.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// RedisConfig configures the Redis embedding cache.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	TTL       time.Duration
	KeyPrefix string
}

// RedisCache stores vectors in Redis as little-endian float64 bytes.
type RedisCache struct {
	client *goredis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "webqa:emb:"
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return &RedisCache{client: client, ttl: cfg.TTL, prefix: cfg.KeyPrefix}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]float64, bool, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	vec, err := DecodeVector(data)
	if err != nil {
		_ = r.client.Del(ctx, r.prefix+key).Err()
		return nil, false, err
	}
	return vec, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, vec []float64) error {
	return r.client.Set(ctx, r.prefix+key, EncodeVector(vec), r.ttl).Err()
}

// Close releases the Redis connection pool.
func (r *RedisCache) Close() error { return r.client.Close() }

// EncodeVector serializes vec as little-endian float64 values.
func EncodeVector(vec []float64) []byte {
	buf := make([]byte, 8*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// DecodeVector is the inverse of EncodeVector.
func DecodeVector(data []byte) ([]float64, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 8", len(data))
	}
	vec := make([]float64, len(data)/8)
	for i := range vec {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return vec, nil
}
