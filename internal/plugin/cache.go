package plugin

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/geocoder-bundle/internal/domain"
	"github.com/couchcryptid/geocoder-bundle/internal/observability"
)

// Cache keeps up to size non-empty results in memory for lifetime. A zero
// lifetime keeps entries until they are evicted.
func Cache(size int, lifetime time.Duration, clock clockwork.Clock, metrics *observability.Metrics) Plugin {
	return func(inner domain.Provider) domain.Provider {
		return &cachedProvider{
			wrapped:  wrapped{inner: inner},
			cache:    newLRUCache(size),
			lifetime: lifetime,
			clock:    clock,
			metrics:  metrics,
		}
	}
}

type cachedProvider struct {
	wrapped
	cache    *lruCache
	lifetime time.Duration
	clock    clockwork.Clock
	metrics  *observability.Metrics
}

func (c *cachedProvider) Geocode(ctx context.Context, q domain.GeocodeQuery) (domain.Collection, error) {
	key := cacheKey(c.inner.Name(), q)
	if res, ok := c.cache.get(key, c.clock.Now()); ok {
		c.metrics.GeocodeCache.WithLabelValues("memory", "hit").Inc()
		return res, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("memory", "miss").Inc()

	res, err := c.inner.Geocode(ctx, q)
	if err != nil {
		return nil, err
	}
	// Only cache non-empty results so transient "not found" responses can be retried.
	if !res.IsEmpty() {
		var expires time.Time
		if c.lifetime > 0 {
			expires = c.clock.Now().Add(c.lifetime)
		}
		c.cache.put(key, res, expires)
	}
	return res, nil
}

// lruCache is a thread-safe LRU cache of provider results.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key     string
	value   domain.Collection
	expires time.Time // zero means never
	prev    *entry
	next    *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string, now time.Time) (domain.Collection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expires.IsZero() && !now.Before(e.expires) {
		delete(c.entries, key)
		c.remove(e)
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value domain.Collection, expires time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expires = expires
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value, expires: expires}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
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

func (c *lruCache) remove(e *entry) {
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

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
