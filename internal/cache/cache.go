// Package cache provides the per-scan resource cache. Its job is call
// deduplication within a single run: when several checks or scanners need
// the same resource, the underlying discovery call happens at most once.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// FetchFunc discovers a single resource on a cache miss.
type FetchFunc func(ctx context.Context) (*models.Resource, error)

// ListFetchFunc discovers a set of resources on a cache miss, e.g. the
// result of a List/Describe call for one service in one region.
type ListFetchFunc func(ctx context.Context) ([]*models.Resource, error)

// Stats tracks cache effectiveness for one scan run.
type Stats struct {
	Hits      int64
	Misses    int64
	Fetches   int64
	Evictions int64
}

type entry struct {
	value      any
	expiresAt  time.Time
	accessedAt time.Time
}

// ResourceCache is a TTL-keyed store of already-fetched cloud resources,
// scoped to one scan run. Concurrent callers for the same uncached key
// coalesce into a single fetch; all of them receive the same value or the
// same error. Safe for concurrent use.
type ResourceCache struct {
	mu      sync.Mutex
	entries map[string]*entry
	ttl     time.Duration
	maxSize int
	group   singleflight.Group
	stats   Stats
}

// New creates a ResourceCache. ttl should comfortably exceed the expected
// scan duration; maxSize <= 0 disables eviction. Eviction only ever costs a
// refetch, it can never make a finding incorrect: entries are immutable
// snapshots and a re-fetch observes the same or newer account state.
func New(ttl time.Duration, maxSize int) *ResourceCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &ResourceCache{
		entries: make(map[string]*entry),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// GetOrFetch returns the cached resource for (kind, key), or invokes fetch
// exactly once across concurrent callers and caches the result. Errors are
// not cached; a later caller retries the fetch.
func (c *ResourceCache) GetOrFetch(ctx context.Context, kind models.ResourceKind, key string, fetch FetchFunc) (*models.Resource, error) {
	v, err := c.getOrDo(ctx, cacheKey(kind, key), func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Resource), nil
}

// GetOrFetchList is GetOrFetch for list-valued discovery results. The
// returned slice is shared between callers and must be treated as read-only.
func (c *ResourceCache) GetOrFetchList(ctx context.Context, kind models.ResourceKind, key string, fetch ListFetchFunc) ([]*models.Resource, error) {
	v, err := c.getOrDo(ctx, cacheKey(kind, key), func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]*models.Resource), nil
}

// Stats returns a snapshot of the cache counters.
func (c *ResourceCache) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Len returns the number of live entries.
func (c *ResourceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ResourceCache) getOrDo(ctx context.Context, key string, fetch func(context.Context) (any, error)) (any, error) {
	if v, ok := c.lookup(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// Double-check under single-flight: another caller may have
		// populated the entry between lookup and Do.
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		c.count(func(s *Stats) { s.Fetches++ })
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.store(key, v)
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (c *ResourceCache) lookup(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		c.stats.Misses++
		return nil, false
	}
	e.accessedAt = time.Now()
	c.stats.Hits++
	return e.value, true
}

func (c *ResourceCache) store(key string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	now := time.Now()
	c.entries[key] = &entry{value: v, expiresAt: now.Add(c.ttl), accessedAt: now}
}

// evictOldest removes the least recently accessed entry. Caller holds mu.
func (c *ResourceCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	for key, e := range c.entries {
		if oldestKey == "" || e.accessedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = e.accessedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
		c.stats.Evictions++
	}
}

func (c *ResourceCache) count(fn func(*Stats)) {
	c.mu.Lock()
	fn(&c.stats)
	c.mu.Unlock()
}

func cacheKey(kind models.ResourceKind, key string) string {
	return string(kind) + ":" + key
}
