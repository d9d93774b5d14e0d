// Package resultcache keeps recently read analysis results in memory in front
// of a result store.
package resultcache

import (
	"container/list"
	"context"
	"slices"
	"sync"

	"github.com/couchcryptid/dendroclim/internal/domain"
	"github.com/couchcryptid/dendroclim/internal/observability"
)

// Store is a result sink that can read its results back by ID.
type Store interface {
	LoadBatch(ctx context.Context, events []domain.OutputEvent) error
	Result(ctx context.Context, id string) ([]byte, error)
	Close() error
}

// CachedStore wraps a Store with an in-memory LRU cache of result JSON.
// Writes go through to the inner store and refresh entries already cached.
type CachedStore struct {
	inner   Store
	cache   *lruCache
	metrics *observability.Metrics
}

// New creates a cache decorator around a store.
func New(inner Store, maxEntries int, metrics *observability.Metrics) *CachedStore {
	return &CachedStore{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedStore) Result(ctx context.Context, id string) ([]byte, error) {
	if data, ok := c.cache.get(id); ok {
		c.metrics.ResultCacheLookups.WithLabelValues("hit").Inc()
		return data, nil
	}
	c.metrics.ResultCacheLookups.WithLabelValues("miss").Inc()
	data, err := c.inner.Result(ctx, id)
	if err != nil {
		// Not-found is not cached so results stored later become visible.
		return nil, err
	}
	c.cache.put(id, data)
	return data, nil
}

func (c *CachedStore) LoadBatch(ctx context.Context, events []domain.OutputEvent) error {
	if err := c.inner.LoadBatch(ctx, events); err != nil {
		return err
	}
	for _, e := range events {
		c.cache.replace(string(e.Key), e.Value)
	}
	return nil
}

func (c *CachedStore) Close() error {
	return c.inner.Close()
}

// lruCache is a thread-safe LRU cache of result payloads. The front of order
// is the most recently used entry.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List
}

type entry struct {
	key   string
	value []byte
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
	}
}

func (c *lruCache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry).value, true
}

func (c *lruCache) put(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*entry).value = slices.Clone(value)
		c.order.MoveToFront(el)
		return
	}
	c.entries[key] = c.order.PushFront(&entry{key: key, value: slices.Clone(value)})
	if c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).key)
	}
}

// replace updates key only when it is already cached, without touching its
// recency.
func (c *lruCache) replace(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*entry).value = slices.Clone(value)
	}
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
