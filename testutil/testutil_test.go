package testutil

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortedIDs(t *testing.T) {
	rng := NewRNG(4711)

	ids := rng.SortedIDs(1000, 1<<20)

	require.Len(t, ids, 1000)
	assert.True(t, sort.SliceIsSorted(ids, func(i, j int) bool { return ids[i] < ids[j] }))

	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		assert.Greater(t, id, uint64(0))
		assert.LessOrEqual(t, id, uint64(1<<20))
		_, dup := seen[id]
		assert.False(t, dup, "duplicate id %d", id)
		seen[id] = struct{}{}
	}
}

func TestUnsortedIDs(t *testing.T) {
	rng := NewRNG(4711)

	ids := rng.UnsortedIDs(1000, 1<<20)
	require.Len(t, ids, 1000)

	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 1000)

	// A shuffle of 1000 elements staying fully sorted is not plausible.
	assert.False(t, sort.SliceIsSorted(ids, func(i, j int) bool { return ids[i] < ids[j] }))
}

func TestClusteredIDs(t *testing.T) {
	rng := NewRNG(4711)

	ids := rng.ClusteredIDs(100, 8, 64)

	require.Len(t, ids, 100)
	assert.True(t, sort.SliceIsSorted(ids, func(i, j int) bool { return ids[i] < ids[j] }))

	// Runs of consecutive IDs must exist.
	consecutive := 0
	for i := 1; i < len(ids); i++ {
		if ids[i] == ids[i-1]+1 {
			consecutive++
		}
	}
	assert.Greater(t, consecutive, 50)
}

func TestReset(t *testing.T) {
	rng := NewRNG(4711)
	v1 := rng.SortedIDs(100, 1<<16)

	rng.Reset()
	v2 := rng.SortedIDs(100, 1<<16)

	assert.Equal(t, v1, v2)
}

func TestZipf(t *testing.T) {
	rng := NewRNG(42)

	counts := make([]int, 10)
	for i := 0; i < 10000; i++ {
		k := rng.Zipf(10, 1.0)
		require.GreaterOrEqual(t, k, 0)
		require.Less(t, k, 10)
		counts[k]++
	}

	// Rank 0 dominates under Zipf.
	assert.Greater(t, counts[0], counts[1])
	assert.Greater(t, counts[0], counts[9]*3)
}

func TestZipfBuckets(t *testing.T) {
	rng := NewRNG(42)

	buckets := rng.ZipfBuckets(10000, 100, 1.5)
	require.Len(t, buckets, 10000)

	counts := make(map[int64]int)
	for _, b := range buckets {
		require.GreaterOrEqual(t, b, int64(0))
		require.Less(t, b, int64(100))
		counts[b]++
	}

	// Heavy tail: the top bucket holds far more than its fair share.
	var maxCount int
	for _, c := range counts {
		if c > maxCount {
			maxCount = c
		}
	}
	assert.Greater(t, maxCount, 1000)
}

func TestMergeSorted(t *testing.T) {
	a := []uint64{1, 3, 5, 9}
	b := []uint64{2, 3, 6}
	c := []uint64{5, 9, 10}

	got := MergeSorted(a, b, c)
	assert.Equal(t, []uint64{1, 2, 3, 5, 6, 9, 10}, got)
}

func TestReverse(t *testing.T) {
	assert.Equal(t, []uint64{3, 2, 1}, Reverse([]uint64{1, 2, 3}))
	assert.Empty(t, Reverse(nil))
}
