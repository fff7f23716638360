// Package resource enforces global limits on memory, background
// concurrency and IO throughput.
//
// Three concerns share one Controller:
//
//   - Memory: the block cache reserves bytes before admitting entries
//     (non-blocking, fail-fast so the cache can evict and retry)
//   - Concurrency: snapshot uploads and downloads take worker slots from
//     a weighted semaphore
//   - IO: snapshot transfers go through a token-bucket rate limit so they
//     do not starve foreground iteration
//
// # Memory
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 1 << 30,
//	})
//
//	if err := rc.AcquireMemory(blockSize); err != nil {
//	    // ErrMemoryLimitExceeded: evict, then retry
//	}
//	defer rc.ReleaseMemory(blockSize)
//
// # Background workers
//
//	rc := resource.NewController(resource.Config{
//	    MaxBackgroundWorkers: 4,
//	})
//
//	if err := rc.AcquireBackground(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseBackground()
//
// # IO throttling
//
//	rc := resource.NewController(resource.Config{
//	    IOLimitBytesPerSec: 100 * 1024 * 1024,
//	})
//
//	w := resource.NewRateLimitedWriter(ctx, blob, rc)
//	r := resource.NewRateLimitedReader(ctx, body, rc)
//
// # Nil safety
//
// Every method is a no-op on a nil Controller, so optional limiting needs
// no nil checks at call sites. All methods are safe for concurrent use.
package resource
