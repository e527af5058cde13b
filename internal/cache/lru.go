package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LRUCache is a bounded in-memory cache whose entries expire after a fixed TTL
type LRUCache[V any] struct {
	name  string
	cache *expirable.LRU[string, V]
}

// NewLRUCache creates a cache holding at most size entries for ttl each.
// Non-positive arguments fall back to the defaults.
func NewLRUCache[V any](name string, size int, ttl time.Duration) *LRUCache[V] {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultExpiration
	}
	return &LRUCache[V]{
		name:  name,
		cache: expirable.NewLRU[string, V](size, nil, ttl),
	}
}

func (c *LRUCache[V]) Get(ctx context.Context, key string) (V, bool) {
	span := startSpan(ctx, c.name, "get", key)
	value, ok := c.cache.Get(key)
	finishLookup(span, ok)
	return value, ok
}

func (c *LRUCache[V]) Set(ctx context.Context, key string, value V) {
	c.cache.Add(key, value)
}

func (c *LRUCache[V]) Delete(ctx context.Context, key string) {
	c.cache.Remove(key)
}

func (c *LRUCache[V]) Flush(ctx context.Context) {
	c.cache.Purge()
}

// Len reports the number of live entries
func (c *LRUCache[V]) Len() int {
	return c.cache.Len()
}
