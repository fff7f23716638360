package cache

import (
	"container/list"
	"context"
	"sync"

	"github.com/hupe1980/graphd/internal/resource"
)

// LRUBlockCache is a byte-bounded LRU implementation of BlockCache.
//
// When a resource.Controller is attached, every cached byte is also
// charged against the process-wide memory budget; a Set that the
// controller denies is silently skipped, never blocked on.
type LRUBlockCache struct {
	mu       sync.Mutex
	capacity int64
	size     int64
	items    map[CacheKey]*list.Element
	lru      *list.List // front = most recent
	rc       *resource.Controller

	hits   int64
	misses int64
}

type lruEntry struct {
	key   CacheKey
	block []byte
}

// NewLRUBlockCache creates a cache holding up to capacity bytes. rc may
// be nil.
func NewLRUBlockCache(capacity int64, rc *resource.Controller) *LRUBlockCache {
	return &LRUBlockCache{
		capacity: capacity,
		items:    make(map[CacheKey]*list.Element),
		lru:      list.New(),
		rc:       rc,
	}
}

func (c *LRUBlockCache) Get(_ context.Context, key CacheKey) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.lru.MoveToFront(elem)
	return elem.Value.(*lruEntry).block, true
}

func (c *LRUBlockCache) Set(_ context.Context, key CacheKey, block []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.update(elem, block)
		return
	}

	need := int64(len(block))
	// A block larger than the whole cache is never admitted.
	if need > c.capacity {
		return
	}

	// Evict before charging the controller, so freed bytes are returned
	// to the global budget before we ask for more.
	c.evictDownTo(c.capacity - need)
	if !c.charge(need) {
		return
	}

	c.items[key] = c.lru.PushFront(&lruEntry{key: key, block: block})
	c.size += need
}

// update replaces an existing entry's block in place.
func (c *LRUBlockCache) update(elem *list.Element, block []byte) {
	c.lru.MoveToFront(elem)

	ent := elem.Value.(*lruEntry)
	oldSize := int64(len(ent.block))
	newSize := int64(len(block))

	if newSize > oldSize {
		if !c.charge(newSize - oldSize) {
			return // keep the old value
		}
	} else if newSize < oldSize {
		c.release(oldSize - newSize)
	}

	ent.block = block
	c.size += newSize - oldSize
	c.evictDownTo(c.capacity)
}

// Invalidate removes all entries matching the predicate.
func (c *LRUBlockCache) Invalidate(predicate func(key CacheKey) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// remove mutates the list, so collect first.
	var doomed []*list.Element
	for key, elem := range c.items {
		if predicate(key) {
			doomed = append(doomed, elem)
		}
	}
	for _, elem := range doomed {
		c.remove(elem)
	}
}

func (c *LRUBlockCache) Close() error {
	return nil
}

// Stats returns hit and miss counts since creation.
func (c *LRUBlockCache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Size returns the cached bytes.
func (c *LRUBlockCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// evictDownTo drops least-recently-used entries until size <= target.
func (c *LRUBlockCache) evictDownTo(target int64) {
	for c.size > target {
		elem := c.lru.Back()
		if elem == nil {
			return
		}
		c.remove(elem)
	}
}

func (c *LRUBlockCache) remove(elem *list.Element) {
	c.lru.Remove(elem)
	ent := elem.Value.(*lruEntry)
	delete(c.items, ent.key)
	c.size -= int64(len(ent.block))
	c.release(int64(len(ent.block)))
}

// charge reserves n bytes with the controller; true when admitted.
func (c *LRUBlockCache) charge(n int64) bool {
	if c.rc == nil {
		return true
	}
	return c.rc.AcquireMemory(n) == nil
}

func (c *LRUBlockCache) release(n int64) {
	if c.rc != nil {
		c.rc.ReleaseMemory(n)
	}
}
