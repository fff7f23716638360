package cache

import (
	"context"
	"encoding/binary"
	"hash/maphash"
	"sync"

	"github.com/hupe1980/graphd/internal/resource"
)

const shardCount = 64

// ShardedLRUBlockCache spreads entries over 64 independent LRU shards so
// concurrent iterators reading different source files do not serialize
// on one cache lock. Eviction is per shard, which is close enough to
// global LRU for block workloads.
type ShardedLRUBlockCache struct {
	shards [shardCount]*LRUBlockCache
	seed   maphash.Seed
}

// NewShardedLRUBlockCache splits capacity evenly across the shards.
func NewShardedLRUBlockCache(capacity int64, rc *resource.Controller) *ShardedLRUBlockCache {
	perShard := max(capacity/shardCount, 1)

	s := &ShardedLRUBlockCache{seed: maphash.MakeSeed()}
	for i := range s.shards {
		s.shards[i] = NewLRUBlockCache(perShard, rc)
	}
	return s
}

func (s *ShardedLRUBlockCache) shard(key CacheKey) *LRUBlockCache {
	var h maphash.Hash
	h.SetSeed(s.seed)
	_, _ = h.WriteString(key.Path)
	var tail [9]byte
	tail[0] = byte(key.Kind)
	binary.LittleEndian.PutUint64(tail[1:], key.Offset)
	_, _ = h.Write(tail[:])
	return s.shards[h.Sum64()%shardCount]
}

func (s *ShardedLRUBlockCache) Get(ctx context.Context, key CacheKey) ([]byte, bool) {
	return s.shard(key).Get(ctx, key)
}

func (s *ShardedLRUBlockCache) Set(ctx context.Context, key CacheKey, block []byte) {
	s.shard(key).Set(ctx, key, block)
}

// Invalidate runs the predicate over every shard in parallel. Rare, only
// hit when a blob is overwritten or deleted.
func (s *ShardedLRUBlockCache) Invalidate(predicate func(key CacheKey) bool) {
	var wg sync.WaitGroup
	wg.Add(shardCount)
	for _, shard := range s.shards {
		shard := shard
		go func() {
			defer wg.Done()
			shard.Invalidate(predicate)
		}()
	}
	wg.Wait()
}

func (s *ShardedLRUBlockCache) Close() error {
	for _, shard := range s.shards {
		if err := shard.Close(); err != nil {
			return err
		}
	}
	return nil
}

// Stats sums hit and miss counts over all shards.
func (s *ShardedLRUBlockCache) Stats() (hits, misses int64) {
	for _, shard := range s.shards {
		h, m := shard.Stats()
		hits += h
		misses += m
	}
	return hits, misses
}

// Size sums cached bytes over all shards.
func (s *ShardedLRUBlockCache) Size() int64 {
	var total int64
	for _, shard := range s.shards {
		total += shard.Size()
	}
	return total
}
