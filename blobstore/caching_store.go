package blobstore

import (
	"context"
	"errors"
	"io"

	"github.com/hupe1980/graphd/internal/cache"
	"golang.org/x/sync/errgroup"
)

// fetchFanout bounds concurrent backend fetches per read, so a large
// restore cannot exhaust FDs or trip the backend's rate limits.
const fetchFanout = 16

// CachingStore wraps a BlobStore and adds block-level read caching.
// Remote snapshot restores hit the same manifest and source blocks
// repeatedly; the cache turns those into memory reads.
type CachingStore struct {
	inner     BlobStore
	cache     cache.BlockCache
	blockSize int64
}

// NewCachingStore wraps inner with a block cache. blockSize defaults to
// 4KB when <= 0.
func NewCachingStore(inner BlobStore, cache cache.BlockCache, blockSize int64) *CachingStore {
	if blockSize <= 0 {
		blockSize = 4096
	}
	return &CachingStore{
		inner:     inner,
		cache:     cache,
		blockSize: blockSize,
	}
}

func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &CachingBlob{
		inner:     b,
		cache:     s.cache,
		name:      name,
		blockSize: s.blockSize,
	}, nil
}

// Create passes through: only reads are cached. Snapshot blobs are
// immutable once written, so there is nothing to invalidate on create.
func (s *CachingStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	return s.inner.Create(ctx, name)
}

func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.dropBlocks(name)
	return s.inner.Put(ctx, name, data)
}

func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.dropBlocks(name)
	return s.inner.Delete(ctx, name)
}

func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

func (s *CachingStore) dropBlocks(name string) {
	s.cache.Invalidate(func(key cache.CacheKey) bool {
		return key.Kind == cache.CacheKindBlob && key.Path == name
	})
}

// CachingBlob wraps a Blob and serves reads from the block cache.
type CachingBlob struct {
	inner     Blob
	cache     cache.BlockCache
	name      string
	blockSize int64
}

func (b *CachingBlob) Close() error {
	return b.inner.Close()
}

func (b *CachingBlob) Size() int64 {
	return b.inner.Size()
}

func (b *CachingBlob) key(blk int64) cache.CacheKey {
	return cache.CacheKey{
		Kind:   cache.CacheKindBlob,
		Path:   b.name,
		Offset: uint64(blk),
	}
}

func (b *CachingBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	first := off / b.blockSize
	last := (off + int64(len(p)) - 1) / b.blockSize

	// Pull all missing blocks in before copying, so runs of misses
	// coalesce into single backend range reads.
	if err := b.fill(ctx, first, last); err != nil {
		return 0, err
	}

	total := 0
	for blk := first; blk <= last; blk++ {
		blkStart := blk * b.blockSize

		// Intersection of this block with the requested range.
		lo := max(blkStart, off)
		hi := min(blkStart+b.blockSize, off+int64(len(p)))
		if hi <= lo {
			continue
		}

		block, err := b.block(ctx, blk)
		if err != nil {
			return total, err
		}

		src := lo - blkStart
		want := hi - lo
		if src+want > int64(len(block)) {
			// Last block of a blob whose size is not a block multiple.
			want = int64(len(block)) - src
		}
		if want > 0 {
			total += copy(p[lo-off:], block[src:src+want])
		}
	}
	return total, nil
}

// blockRun is a contiguous range of cache-missed blocks.
type blockRun struct {
	start, count int64
}

// fill loads every missing block in [first, last] into the cache, one
// backend range read per run of consecutive misses.
func (b *CachingBlob) fill(ctx context.Context, first, last int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var runs []blockRun
	var cur *blockRun
	for blk := first; blk <= last; blk++ {
		if _, ok := b.cache.Get(ctx, b.key(blk)); ok {
			cur = nil
			continue
		}
		if cur == nil {
			runs = append(runs, blockRun{start: blk, count: 1})
			cur = &runs[len(runs)-1]
		} else {
			cur.count++
		}
	}
	if len(runs) == 0 {
		return nil
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(fetchFanout)
	for _, run := range runs {
		run := run
		g.Go(func() error { return b.fetchRun(ctx, run) })
	}
	return g.Wait()
}

// fetchRun reads the run's bytes from the backend and caches them block
// by block.
func (b *CachingBlob) fetchRun(ctx context.Context, run blockRun) error {
	start := run.start * b.blockSize
	size := run.count * b.blockSize

	total := b.Size()
	if start >= total {
		return nil
	}
	if start+size > total {
		size = total - start
	}

	buf := make([]byte, size)
	n, err := b.inner.ReadAt(ctx, buf, start)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	buf = buf[:n]

	for i := int64(0); i < run.count; i++ {
		lo := i * b.blockSize
		if lo >= int64(len(buf)) {
			break
		}
		hi := min(lo+b.blockSize, int64(len(buf)))

		// Copy out so a single cached block does not pin the run buffer.
		block := make([]byte, hi-lo)
		copy(block, buf[lo:hi])
		b.cache.Set(ctx, b.key(run.start+i), block)
	}
	return nil
}

// block returns one block's bytes, reading through on a miss.
func (b *CachingBlob) block(ctx context.Context, blk int64) ([]byte, error) {
	if data, ok := b.cache.Get(ctx, b.key(blk)); ok {
		return data, nil
	}

	buf := make([]byte, b.blockSize)
	n, err := b.inner.ReadAt(ctx, buf, blk*b.blockSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if n > 0 {
		b.cache.Set(ctx, b.key(blk), buf[:n])
	}
	return buf[:n], nil
}

func (b *CachingBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	return NopReadCloser(&cachedSectionReader{blob: b, ctx: ctx, off: off, limit: off + length}), nil
}

// cachedSectionReader adapts CachingBlob's ReadAt to an io.Reader.
type cachedSectionReader struct {
	blob  *CachingBlob
	ctx   context.Context
	off   int64
	limit int64
}

func (r *cachedSectionReader) Read(p []byte) (n int, err error) {
	if r.off >= r.limit {
		return 0, io.EOF
	}
	if remaining := r.limit - r.off; int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err = r.blob.ReadAt(r.ctx, p, r.off)
	r.off += int64(n)
	if n == 0 && err == nil {
		err = io.EOF
	}
	return
}
