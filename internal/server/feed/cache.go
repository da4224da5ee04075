package feed

import (
	"pigeon/internal/cache"
)

const (
	TypeRSS  = "rss"
	TypeAtom = "atom"
	TypeJSON = "json"
)

// CacheKey identifies one rendered feed body. Keys of the same server share
// the "<name>:" prefix so they can be dropped together.
type CacheKey struct {
	Name string
	Type string
}

func NewCacheKey(name, feedType string) CacheKey {
	return CacheKey{Name: name, Type: feedType}
}

func (k CacheKey) String() string {
	return k.Name + ":" + k.Type
}

func NewCache(config cache.CacheConfig) *cache.Cache[CacheKey, string] {
	return cache.NewCache[CacheKey, string](config, CacheKey.String)
}
