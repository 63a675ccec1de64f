package zonal

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/catchment-stats/internal/observability"
)

// CachedShapeLoader wraps a ShapeLoader with an in-memory LRU cache. Every
// catchment is used once per raster, so a batch decodes each shapefile once
// as long as the cache holds all shapes. Concurrent loads of the same path
// share one decode.
type CachedShapeLoader struct {
	inner   ShapeLoader
	cache   *lruCache[*Catchment]
	group   singleflight.Group
	metrics *observability.Metrics
}

// NewCachedShapeLoader creates a cache decorator around a shape loader.
// metrics may be nil.
func NewCachedShapeLoader(inner ShapeLoader, maxEntries int, metrics *observability.Metrics) *CachedShapeLoader {
	return &CachedShapeLoader{
		inner:   inner,
		cache:   newLRUCache[*Catchment](maxEntries),
		metrics: metrics,
	}
}

func (c *CachedShapeLoader) Load(ctx context.Context, path string) (*Catchment, error) {
	if v, ok := c.cache.get(path); ok {
		c.observe("hit")
		return v, nil
	}
	c.observe("miss")

	// The shared decode must not fail for every waiter because the caller
	// that started it gave up.
	ch := c.group.DoChan(path, func() (any, error) {
		catchment, err := c.inner.Load(context.WithoutCancel(ctx), path)
		if err != nil {
			return nil, err
		}
		c.cache.put(path, catchment)
		return catchment, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Catchment), nil
	}
}

func (c *CachedShapeLoader) observe(result string) {
	if c.metrics != nil {
		c.metrics.ShapeCache.WithLabelValues(result).Inc()
	}
}

// lruCache is a simple thread-safe LRU cache.
type lruCache[V any] struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry[V]
	head       *entry[V] // most recently used
	tail       *entry[V] // least recently used
}

type entry[V any] struct {
	key   string
	value V
	prev  *entry[V]
	next  *entry[V]
}

func newLRUCache[V any](maxEntries int) *lruCache[V] {
	return &lruCache[V]{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry[V]),
	}
}

func (c *lruCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache[V]) put(key string, value V) {
	if c.maxEntries <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry[V]{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache[V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache[V]) moveToFront(e *entry[V]) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache[V]) addToFront(e *entry[V]) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache[V]) remove(e *entry[V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache[V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
