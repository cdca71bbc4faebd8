package fact

import (
	"container/list"
	"sync"

	"github.com/starkware-libs/starkex-data-availability-committee/crypto"
	"github.com/starkware-libs/starkex-data-availability-committee/metrics"
)

// Cache is a bounded LRU cache of fact content keyed by hash. Facts are
// immutable once written, so cached entries never need invalidation --
// eviction is purely a capacity decision. A zero-capacity Cache is a no-op
// that never stores anything.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[crypto.Hash]*list.Element
}

type cacheEntry struct {
	hash    crypto.Hash
	content []byte
}

// NewCache creates a Cache holding at most capacity entries. capacity <= 0
// disables caching entirely.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		return &Cache{capacity: 0}
	}
	return &Cache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[crypto.Hash]*list.Element, capacity),
	}
}

// Get returns the cached content for hash, if present, and moves it to the
// front of the recency list.
func (c *Cache) Get(hash crypto.Hash) ([]byte, bool) {
	if c.capacity == 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[hash]
	if !ok {
		metrics.FactCacheMisses.Inc()
		return nil, false
	}
	c.ll.MoveToFront(el)
	metrics.FactCacheHits.Inc()
	return el.Value.(*cacheEntry).content, true
}

// Add inserts or refreshes the cached content for hash, evicting the least
// recently used entry if the cache is at capacity.
func (c *Cache) Add(hash crypto.Hash, content []byte) {
	if c.capacity == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[hash]; ok {
		el.Value.(*cacheEntry).content = content
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&cacheEntry{hash: hash, content: content})
	c.items[hash] = el

	if c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.items, oldest.Value.(*cacheEntry).hash)
		}
	}
}

// Len returns the current number of cached entries.
func (c *Cache) Len() int {
	if c.capacity == 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
