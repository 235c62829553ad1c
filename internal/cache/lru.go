package cache

import (
	"errors"
	"time"

	"github.com/dgraph-io/ristretto"
)

// LRUCache is a cost-bounded cache backed by ristretto. Cost is the byte length
// of the stored value.
type LRUCache struct {
	cache      *ristretto.Cache
	defaultTTL time.Duration
}

type entry struct {
	data      []byte
	expiresAt time.Time
}

// NewLRU builds a cache holding at most maxSizeMB megabytes. maxEntries sizes
// the admission counters (ristretto wants about ten per expected entry).
func NewLRU(maxSizeMB, maxEntries int64, defaultTTL time.Duration) (*LRUCache, error) {
	if maxSizeMB <= 0 {
		return nil, errors.New("cache: max size must be positive")
	}
	if defaultTTL <= 0 {
		return nil, errors.New("cache: default ttl must be positive")
	}

	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: max(maxEntries*10, 1000),
		MaxCost:     maxSizeMB << 20,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}
	return &LRUCache{cache: c, defaultTTL: defaultTTL}, nil
}

func (c *LRUCache) Get(key string) ([]byte, bool) {
	v, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	e, ok := v.(*entry)
	if !ok || time.Now().After(e.expiresAt) {
		c.del(key)
		return nil, false
	}
	return e.data, true
}

// Set admits value if ristretto's policy accepts it. Rejected values are
// silently dropped.
func (c *LRUCache) Set(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.cache.Set(key, &entry{data: value, expiresAt: time.Now().Add(ttl)}, int64(len(value)))
	c.cache.Wait()
}

func (c *LRUCache) Delete(key string) { c.del(key) }

// del waits for ristretto to apply the removal so Stats reflects it on return.
func (c *LRUCache) del(key string) {
	c.cache.Del(key)
	c.cache.Wait()
}

func (c *LRUCache) Clear() { c.cache.Clear() }

func (c *LRUCache) Stats() Stats {
	m := c.cache.Metrics
	return Stats{
		Hits:      m.Hits(),
		Misses:    m.Misses(),
		KeysAdded: m.KeysAdded(),
		Evictions: m.KeysEvicted(),
		Size:      int64(m.CostAdded() - m.CostEvicted()),
		Items:     int64(m.KeysAdded() - m.KeysEvicted()),
	}
}

// Close stops ristretto's background goroutines.
func (c *LRUCache) Close() { c.cache.Close() }
