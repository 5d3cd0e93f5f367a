package osm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/citymapgen/citymap/pkg/monitoring"
	"github.com/citymapgen/citymap/pkg/tracing"
)

const (
	// Default number of responses kept in memory
	defaultMemoryCacheSize = 64
)

// cacheEntry is the on-disk envelope for a cached response
type cacheEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Key       string    `json:"key"`
	Body      []byte    `json:"body"`
}

// FetchFunc produces a response body for a cache miss
type FetchFunc func(ctx context.Context) ([]byte, error)

// QueryCache is a two-tier cache for raw service responses: an LRU layer
// in memory over a file store keyed by request hash. A zero TTL disables
// expiry. Concurrent fetches for the same key are collapsed into one.
type QueryCache struct {
	dir    string
	ttl    time.Duration
	mem    *lru.Cache[string, []byte]
	group  singleflight.Group
	logger *slog.Logger
}

// NewQueryCache creates a query cache rooted at dir. The directory is
// created if it does not exist.
func NewQueryCache(dir string, ttl time.Duration) (*QueryCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory %s: %w", dir, err)
	}

	mem, err := lru.New[string, []byte](defaultMemoryCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating memory cache: %w", err)
	}

	return &QueryCache{
		dir:    dir,
		ttl:    ttl,
		mem:    mem,
		logger: slog.Default().With("component", "query_cache"),
	}, nil
}

// Key derives the cache key for a request payload
func Key(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// GetOrFetch returns the cached response for key, fetching and storing it
// on a miss. Concurrent callers for the same key share one fetch.
func (c *QueryCache) GetOrFetch(ctx context.Context, key string, fetch FetchFunc) ([]byte, error) {
	if body, ok := c.get(ctx, key); ok {
		return body, nil
	}

	body, err, _ := c.group.Do(key, func() (any, error) {
		// Re-check: another caller may have populated the key while
		// this one waited on the flight group.
		if body, ok := c.get(ctx, key); ok {
			return body, nil
		}

		body, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.put(key, body)
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return body.([]byte), nil
}

// get checks the memory layer first, then the file store
func (c *QueryCache) get(ctx context.Context, key string) ([]byte, bool) {
	if body, ok := c.mem.Get(key); ok {
		monitoring.RecordCacheHit(tracing.CacheTypeMemory)
		return body, true
	}
	monitoring.RecordCacheMiss(tracing.CacheTypeMemory)

	entry, ok := c.readFile(key)
	if !ok {
		monitoring.RecordCacheMiss(tracing.CacheTypeFile)
		return nil, false
	}

	if c.ttl > 0 && time.Since(entry.Timestamp) > c.ttl {
		c.logger.Debug("cache entry expired", "key", key, "age", time.Since(entry.Timestamp))
		if err := os.Remove(c.path(key)); err != nil && !os.IsNotExist(err) {
			c.logger.Warn("failed to remove expired cache file", "key", key, "error", err)
		}
		monitoring.RecordCacheMiss(tracing.CacheTypeFile)
		return nil, false
	}

	monitoring.RecordCacheHit(tracing.CacheTypeFile)
	c.mem.Add(key, entry.Body)
	monitoring.UpdateCacheSize(tracing.CacheTypeMemory, c.mem.Len())
	return entry.Body, true
}

// put stores a response in both layers. File writes go to a temp file in
// the cache directory and are renamed into place, so a reader never sees
// a partially written entry even with concurrent writers on the same key.
func (c *QueryCache) put(key string, body []byte) {
	c.mem.Add(key, body)
	monitoring.UpdateCacheSize(tracing.CacheTypeMemory, c.mem.Len())

	entry := cacheEntry{
		Timestamp: time.Now().UTC(),
		Key:       key,
		Body:      body,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.Warn("failed to encode cache entry", "key", key, "error", err)
		return
	}

	tmp, err := os.CreateTemp(c.dir, key+".tmp-*")
	if err != nil {
		c.logger.Warn("failed to create cache temp file", "key", key, "error", err)
		return
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		c.logger.Warn("failed to write cache file", "key", key, "error", err)
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		c.logger.Warn("failed to close cache file", "key", key, "error", err)
		return
	}

	if err := os.Rename(tmpName, c.path(key)); err != nil {
		os.Remove(tmpName)
		c.logger.Warn("failed to publish cache file", "key", key, "error", err)
	}
}

// readFile loads an entry from the file store. Unreadable or corrupt
// files are treated as misses.
func (c *QueryCache) readFile(key string) (cacheEntry, bool) {
	var entry cacheEntry

	data, err := os.ReadFile(c.path(key))
	if err != nil {
		return entry, false
	}

	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn("corrupt cache entry, discarding", "key", key, "error", err)
		os.Remove(c.path(key))
		return entry, false
	}
	return entry, true
}

func (c *QueryCache) path(key string) string {
	return filepath.Join(c.dir, key+".json")
}
