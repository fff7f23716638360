package testutil

import (
	"math"
	"math/rand"
	"sort"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Float32 returns, as a float32, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// Float64 returns, as a float64, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// Shuffle pseudo-randomizes the order of n elements using swap.
func (r *RNG) Shuffle(n int, swap func(i, j int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Shuffle(n, swap)
}

// SortedIDs generates n unique pseudo-random IDs in [1, maxID], sorted
// ascending. Locks only once per call.
func (r *RNG) SortedIDs(n int, maxID uint64) []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[uint64]struct{}, n)
	ids := make([]uint64, 0, n)
	for len(ids) < n {
		id := uint64(r.rand.Int63n(int64(maxID))) + 1
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// UnsortedIDs generates n unique pseudo-random IDs in [1, maxID] in
// arbitrary order.
func (r *RNG) UnsortedIDs(n int, maxID uint64) []uint64 {
	ids := r.SortedIDs(n, maxID)
	r.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	return ids
}

// ClusteredIDs generates sorted IDs arranged in runs of consecutive
// values separated by random gaps. Mirrors how allocators hand out
// primitive IDs, so merge paths see realistic adjacency.
func (r *RNG) ClusteredIDs(n, runLen int, maxGap uint64) []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if runLen < 1 {
		runLen = 1
	}
	ids := make([]uint64, 0, n)
	next := uint64(1)
	for len(ids) < n {
		run := runLen
		if remaining := n - len(ids); run > remaining {
			run = remaining
		}
		for i := 0; i < run; i++ {
			ids = append(ids, next)
			next++
		}
		next += uint64(r.rand.Int63n(int64(maxGap))) + 1
	}
	return ids
}

// Zipf returns a Zipfian-distributed value in [0, n).
// Uses Zipf's law: P(k) ~ 1/k^s where s is the skew parameter.
// s=1.0 gives standard Zipf, s=1.5 gives heavy-tail (80/20 rule).
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zipfLocked(n, s)
}

// zipfLocked is the internal implementation (caller must hold lock).
func (r *RNG) zipfLocked(n int, s float64) int {
	if n <= 1 {
		return 0
	}

	var hns float64
	for i := 1; i <= n; i++ {
		hns += 1.0 / math.Pow(float64(i), s)
	}

	u := r.rand.Float64() * hns
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		if u <= cumulative {
			return k - 1
		}
	}

	return n - 1
}

// ZipfBuckets generates n bucket assignments with Zipfian distribution.
// Returns a slice where ~20% of buckets contain ~80% of values (when s=1.5).
// Useful for skewing IDs across sources the way real link data skews.
func (r *RNG) ZipfBuckets(n, bucketCount int, s float64) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	buckets := make([]int64, n)
	for i := range buckets {
		buckets[i] = int64(r.zipfLocked(bucketCount, s))
	}

	return buckets
}

// MergeSorted returns the sorted union of the given sorted, unique ID
// slices. Used as ground truth for merge iterators.
func MergeSorted(streams ...[]uint64) []uint64 {
	seen := make(map[uint64]struct{})
	var out []uint64
	for _, s := range streams {
		for _, id := range s {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Reverse returns a reversed copy of ids.
func Reverse(ids []uint64) []uint64 {
	out := make([]uint64, len(ids))
	for i, id := range ids {
		out[len(ids)-1-i] = id
	}
	return out
}
