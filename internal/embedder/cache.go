package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/54b3r/pressqa-go/internal/logging"
	"github.com/54b3r/pressqa-go/internal/rag"
)

// Cache stores query embeddings keyed by model identity and text.
type Cache interface {
	// Get returns the cached vector and true, or false when absent.
	Get(ctx context.Context, key string) ([]float32, bool, error)
	// Set stores vec under key.
	Set(ctx context.Context, key string, vec []float32) error
}

// Cached wraps an Embedder so single-text calls (user queries) are served
// from a Cache when possible. Batch calls, which only happen at ingestion,
// bypass the cache. Cache failures are logged and never fail the call.
type Cached struct {
	inner rag.Embedder
	cache Cache
}

// NewCached wraps inner with cache.
func NewCached(inner rag.Embedder, cache Cache) *Cached {
	return &Cached{inner: inner, cache: cache}
}

// Dimensions delegates to the wrapped embedder.
func (c *Cached) Dimensions() int { return c.inner.Dimensions() }

// Model delegates to the wrapped embedder.
func (c *Cached) Model() string { return c.inner.Model() }

// EmbedBatch delegates to the wrapped embedder.
func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return c.inner.EmbedBatch(ctx, texts)
}

// Embed returns the cached vector for text, computing and storing it on a miss.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	log := logging.FromContext(ctx)
	key := cacheKey(c.inner.Model(), text)

	if vec, ok, err := c.cache.Get(ctx, key); err != nil {
		log.Warn("embedder: cache get failed", slog.String("error", err.Error()))
	} else if ok && len(vec) == c.inner.Dimensions() {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, vec); err != nil {
		log.Warn("embedder: cache set failed", slog.String("error", err.Error()))
	}
	return vec, nil
}

// Ping checks the cache backend when it supports probing (Redis does, the
// in-process cache does not and always reports healthy).
func (c *Cached) Ping(ctx context.Context) error {
	if p, ok := c.cache.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close releases the cache backend when it holds resources (the Redis
// connection pool). The wrapped embedder stays usable without a cache.
func (c *Cached) Close() error {
	if cl, ok := c.cache.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}

func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return "pressqa:emb:" + model + ":" + hex.EncodeToString(sum[:])
}

// MemoryCache is an unbounded in-process Cache.
type MemoryCache struct {
	mu sync.RWMutex
	m  map[string][]float32
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{m: make(map[string][]float32)}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) ([]float32, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[key]
	return v, ok, nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, key string, vec []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = append([]float32(nil), vec...)
	return nil
}

// RedisCache is a Cache backed by Redis. Vectors are stored as packed
// little-endian float32 values with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisOptions configures a RedisCache.
type RedisOptions struct {
	// Address is the Redis server address (host:port).
	Address string
	// Password is the optional AUTH password.
	Password string
	// DB selects the logical database.
	DB int
	// TTL is how long entries live. Zero means no expiry.
	TTL time.Duration
}

// NewRedisCache opens a client for opts. The connection is established
// lazily by go-redis; call Ping to check reachability.
func NewRedisCache(opts RedisOptions) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     opts.Address,
			Password: opts.Password,
			DB:       opts.DB,
		}),
		ttl: opts.TTL,
	}
}

// Ping checks that Redis is reachable.
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("embedder: redis ping: %w", err)
	}
	return nil
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("embedder: redis get: %w", err)
	}
	vec, err := decodeVector(b)
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key string, vec []float32) error {
	if err := c.client.Set(ctx, key, encodeVector(vec), c.ttl).Err(); err != nil {
		return fmt.Errorf("embedder: redis set: %w", err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (c *RedisCache) Close() error { return c.client.Close() }

func encodeVector(vec []float32) []byte {
	b := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(v))
	}
	return b
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedder: cached vector has %d bytes, not a multiple of 4", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return vec, nil
}
