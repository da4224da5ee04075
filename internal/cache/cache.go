// Package cache wraps go-cache with typed keys and values.
package cache

import (
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const DefaultTTL = 5 * time.Minute

type CacheConfig struct {
	TTL time.Duration
}

// Cache stores values of type V under keys of type K, flattened to strings
// by keyFn. Loads for the same key are collapsed so a cold entry is built
// once.
type Cache[K comparable, V any] struct {
	store *gocache.Cache
	keyFn func(K) string

	// generation moves on every invalidation; a load that started before
	// one does not store its result.
	generation atomic.Uint64

	loadMu  sync.Mutex
	loading map[string]*sync.Mutex
}

func NewCache[K comparable, V any](config CacheConfig, keyFn func(K) string) *Cache[K, V] {
	ttl := config.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	slog.Debug("Cache initialized", "ttl", ttl)
	return &Cache[K, V]{
		store:   gocache.New(ttl, ttl/2),
		keyFn:   keyFn,
		loading: make(map[string]*sync.Mutex),
	}
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	return c.get(c.keyFn(key))
}

func (c *Cache[K, V]) get(k string) (V, bool) {
	if raw, ok := c.store.Get(k); ok {
		if v, ok := raw.(V); ok {
			return v, true
		}
	}
	var zero V
	return zero, false
}

func (c *Cache[K, V]) Set(key K, value V) {
	c.store.SetDefault(c.keyFn(key), value)
}

// GetOrLoad returns the cached value for key or stores what load returns.
// Errors are not cached.
func (c *Cache[K, V]) GetOrLoad(key K, load func() (V, error)) (V, error) {
	k := c.keyFn(key)
	if v, ok := c.get(k); ok {
		return v, nil
	}

	mu := c.keyLock(k)
	mu.Lock()
	defer mu.Unlock()

	if v, ok := c.get(k); ok {
		return v, nil
	}

	gen := c.generation.Load()
	v, err := load()
	if err != nil {
		return v, err
	}
	if c.generation.Load() == gen {
		c.store.SetDefault(k, v)
	}
	return v, nil
}

func (c *Cache[K, V]) keyLock(k string) *sync.Mutex {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	mu, ok := c.loading[k]
	if !ok {
		mu = &sync.Mutex{}
		c.loading[k] = mu
	}
	return mu
}

// InvalidatePrefix drops every entry whose flattened key starts with prefix
// and returns how many were removed.
func (c *Cache[K, V]) InvalidatePrefix(prefix string) int {
	c.generation.Add(1)
	removed := 0
	for k := range c.store.Items() {
		if strings.HasPrefix(k, prefix) {
			c.store.Delete(k)
			removed++
		}
	}
	slog.Debug("Cache invalidated", "prefix", prefix, "removed", removed)
	return removed
}

func (c *Cache[K, V]) Len() int {
	return c.store.ItemCount()
}
