package store

import (
	"container/list"
	"sync"

	"github.com/jeffboody/osmdb-sub000/internal/blob"
)

// cacheKey identifies a cached record.
type cacheKey struct {
	kind blob.Kind
	id   int64
}

// entry is one resident record. refcnt > 0 pins it against eviction.
type entry struct {
	key    cacheKey
	rec    blob.Record
	cost   int64
	refcnt int
	elem   *list.Element
}

// cache is a byte-budgeted LRU over decoded records. It is guarded by a
// single lock; the hot path (hit + pin) holds it only long enough to
// bump the refcount and the recency list.
type cache struct {
	mu     sync.Mutex
	budget int64
	used   int64
	lru    *list.List // front = most recently used
	items  map[cacheKey]*entry
}

func newCache(budget int64) *cache {
	return &cache{
		budget: budget,
		lru:    list.New(),
		items:  make(map[cacheKey]*entry),
	}
}

// acquire pins an existing record and returns it, or nil on miss.
func (c *cache) acquire(key cacheKey) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return nil
	}
	e.refcnt++
	c.lru.MoveToFront(e.elem)
	return e
}

// insert adds a freshly materialized record already pinned by the
// caller. A concurrent insert of the same key returns the winner.
func (c *cache) insert(key cacheKey, rec blob.Record) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		e.refcnt++
		c.lru.MoveToFront(e.elem)
		return e
	}

	e := &entry{key: key, rec: rec, cost: rec.Cost(), refcnt: 1}
	e.elem = c.lru.PushFront(e)
	c.items[key] = e
	c.used += e.cost

	c.evictLocked()
	return e
}

// release unpins an entry; at refcount zero it becomes evictable.
func (c *cache) release(e *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e.refcnt > 0 {
		e.refcnt--
	}
	c.evictLocked()
}

// evictLocked walks the cold end of the LRU, skipping pinned entries,
// until the byte budget is met.
func (c *cache) evictLocked() {
	for c.used > c.budget {
		evicted := false
		for elem := c.lru.Back(); elem != nil; elem = elem.Prev() {
			e := elem.Value.(*entry)
			if e.refcnt > 0 {
				continue
			}
			c.lru.Remove(elem)
			delete(c.items, e.key)
			c.used -= e.cost
			evicted = true
			break
		}
		if !evicted {
			// Everything left is pinned; over budget until releases.
			return
		}
	}
}

// stats returns resident bytes and entry count.
func (c *cache) stats() (used int64, count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used, len(c.items)
}
