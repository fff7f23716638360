package cache

import (
	"context"
	"testing"

	"github.com/hupe1980/graphd/internal/resource"
	"github.com/stretchr/testify/assert"
)

func TestLRU_EdgeCases(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 100})
	c := NewLRUBlockCache(50, rc)
	ctx := context.Background()
	k := CacheKey{Kind: CacheKindBlob, Path: "snap/a.gmap", Offset: 1}

	// Item larger than capacity is never admitted.
	big := make([]byte, 60)
	c.Set(ctx, k, big)
	_, ok := c.Get(ctx, k)
	assert.False(t, ok, "item > capacity should not be cached")

	// Update existing item, growing and shrinking.
	v1 := make([]byte, 10)
	c.Set(ctx, k, v1)
	assert.Equal(t, int64(10), c.Size())

	v2 := make([]byte, 20)
	c.Set(ctx, k, v2)
	assert.Equal(t, int64(20), c.Size())

	v3 := make([]byte, 5)
	c.Set(ctx, k, v3)
	assert.Equal(t, int64(5), c.Size())

	// Update rejected when the controller's global limit would be exceeded.
	rc2 := resource.NewController(resource.Config{MemoryLimitBytes: 10})
	c2 := NewLRUBlockCache(50, rc2)
	c2.Set(ctx, k, make([]byte, 8))

	c2.Set(ctx, k, make([]byte, 12)) // needs +4, limit allows +2

	val, ok := c2.Get(ctx, k)
	assert.True(t, ok)
	assert.Len(t, val, 8, "update should have been rejected by the controller")
}

func TestLRU_Stats(t *testing.T) {
	c := NewLRUBlockCache(100, nil)
	ctx := context.Background()
	k := CacheKey{Kind: CacheKindBlob, Path: "snap/a.gmap", Offset: 1}
	c.Set(ctx, k, []byte{1})
	c.Get(ctx, k)
	c.Get(ctx, CacheKey{Kind: CacheKindBlob, Path: "snap/b.gmap", Offset: 2})

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestLRU_Invalidate(t *testing.T) {
	c := NewLRUBlockCache(100, nil)
	ctx := context.Background()
	c.Set(ctx, CacheKey{Kind: CacheKindBlob, Path: "a", Offset: 1}, []byte("a"))
	c.Set(ctx, CacheKey{Kind: CacheKindBlob, Path: "a", Offset: 2}, []byte("b"))
	c.Set(ctx, CacheKey{Kind: CacheKindBlob, Path: "b", Offset: 1}, []byte("c"))

	c.Invalidate(func(k CacheKey) bool {
		return k.Path == "a"
	})

	_, ok := c.Get(ctx, CacheKey{Kind: CacheKindBlob, Path: "a", Offset: 1})
	assert.False(t, ok)
	_, ok = c.Get(ctx, CacheKey{Kind: CacheKindBlob, Path: "b", Offset: 1})
	assert.True(t, ok)
}
