// Package graphd provides an embedded primitive-ID index with composite,
// resumable iterators.
//
// A database maps sources (typed linkage keys) to sorted streams of 34-bit
// primitive IDs. Queries build union iterators over any number of sources
// and walk them under an execution budget; a partially consumed iterator
// can be frozen to a cursor string and thawed later, on another process,
// to resume exactly where it left off.
//
// # Quick Start
//
// In-memory:
//
//	db := graphd.New()
//	db.Add(src, 42)
//
// Disk-backed:
//
//	db, _ := graphd.Open("./data")
//	defer db.Close()
//	db.Flush(ctx) // persist sources as mmap-ready files
//
// # Queries
//
// Build a union over several sources and iterate under a budget:
//
//	a, _ := db.SourceIterator(srcA, 0, model.IDMax, true)
//	b, _ := db.SourceIterator(srcB, 0, model.IDMax, true)
//	it, _ := db.Or(true, a, b)
//	defer it.Close()
//
//	budget := db.NewBudget(10000)
//	for {
//	    id, err := it.Next(budget)
//	    if err == iterator.Done {
//	        break
//	    }
//	    if err == iterator.ErrMore {
//	        // budget exhausted; freeze and come back later
//	        cursor, _ := db.Freeze(it)
//	        _ = cursor
//	        break
//	    }
//	    _ = id
//	}
//
// # Cursors
//
// Freeze renders an iterator to a printable cursor string; Thaw
// reconstructs it against any database holding the same sources:
//
//	cursor, _ := db.Freeze(it)
//	it2, _ := db.Thaw(ctx, cursor)
//
// Cursors survive process restarts and may be handed to clients as opaque
// continuation tokens.
//
// # Snapshots
//
// A flushed database can be archived to any BlobStore (local directory,
// S3, MinIO) and restored elsewhere:
//
//	store, _ := blobstore.NewLocalStore("/backup")
//	db.Snapshot(ctx, store, "snap-001")
//
//	db2, _ := graphd.Open("./replica")
//	db2.Restore(ctx, store, "snap-001")
//
// Snapshot integrity is verified with CRC32C checksums recorded in a
// manifest; the manifest is written last, so its presence marks a complete
// snapshot.
//
// # Observability
//
// Plug in a MetricsCollector and a structured logger:
//
//	db := graphd.New(
//	    graphd.WithLogger(graphd.NewJSONLogger(slog.LevelInfo)),
//	    graphd.WithMetricsCollector(&graphd.BasicMetricsCollector{}),
//	)
package graphd
