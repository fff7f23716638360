// Package cache provides LRU caching for block data.
//
// The ShardedLRUBlockCache stores recently accessed blocks from snapshot
// blobs and id source files. It uses 64-way sharding so concurrent readers
// rarely contend on the same lock.
//
// Key features:
//   - maphash-based shard selection
//   - Per-shard mutex for minimal contention
//   - Integrated with resource.Controller for global memory limits
package cache
