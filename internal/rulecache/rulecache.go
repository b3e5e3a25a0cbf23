// Package rulecache is the process-wide cache of loaded rule sets. Entries
// expire after a TTL and are dropped by Purge whenever rules change.
package rulecache

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultSize = 512
	DefaultTTL  = 5 * time.Minute
)

// Loader produces the value for a key on a miss.
type Loader[V any] func(ctx context.Context) (V, error)

// Cache deduplicates concurrent loads of the same key within one generation.
// A load that started before a Purge is returned only to the callers that
// joined it before the Purge, and is not stored.
type Cache[V any] struct {
	entries    *lru.LRU[string, V]
	group      singleflight.Group
	generation atomic.Uint64

	hits   atomic.Int64
	misses atomic.Int64
}

type Stats struct {
	Hits    int64
	Misses  int64
	Entries int
}

// New creates a cache holding at most size entries for ttl each.
func New[V any](size int, ttl time.Duration) *Cache[V] {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache[V]{entries: lru.NewLRU[string, V](size, nil, ttl)}
}

// Get returns the cached value for key, calling load on a miss. hit reports
// whether the value came from the cache.
func (c *Cache[V]) Get(ctx context.Context, key string, load Loader[V]) (v V, hit bool, err error) {
	if v, ok := c.entries.Get(key); ok {
		c.hits.Add(1)
		return v, true, nil
	}
	c.misses.Add(1)

	gen := c.generation.Load()
	res, err, _ := c.group.Do(key+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
		v, err := load(ctx)
		if err != nil {
			return v, err
		}
		if c.generation.Load() == gen {
			c.entries.Add(key, v)
		}
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	return res.(V), false, nil
}

// Remove drops one key. Loads already in flight are not joined afterwards.
func (c *Cache[V]) Remove(key string) {
	c.generation.Add(1)
	c.entries.Remove(key)
}

// Purge drops every entry. Loads already in flight are not joined afterwards.
func (c *Cache[V]) Purge() {
	c.generation.Add(1)
	c.entries.Purge()
}

func (c *Cache[V]) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.entries.Len(),
	}
}
