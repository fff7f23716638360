package graphd

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/hupe1980/graphd/codec"
	"github.com/hupe1980/graphd/idstore"
	"github.com/hupe1980/graphd/internal/fs"
	"github.com/hupe1980/graphd/internal/resource"
	"github.com/hupe1980/graphd/iterator"
	"github.com/hupe1980/graphd/model"
)

// DB bundles an ID store with the ambient concerns around it: structured
// logging, metrics, budget policy, snapshot archival. Iterators built
// through a DB are metered through its MetricsCollector.
type DB struct {
	mu     sync.RWMutex
	closed bool

	dir   string // empty for in-memory databases
	store *idstore.Store

	logger      *Logger
	metrics     MetricsCollector
	codec       codec.Codec
	compression idstore.Compression
	policy      iterator.BudgetPolicy
	rc          *resource.Controller
	fsys        fs.FileSystem
	thawTimeout time.Duration
}

// New creates an in-memory database. Flush and Snapshot require a backing
// directory; use Open for those.
func New(opts ...Option) *DB {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return newDB("", o)
}

// Open creates a database backed by dir, loading every source file found
// there. A missing directory is not an error; it is created on first
// Flush.
func Open(dir string, opts ...Option) (*DB, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	db := newDB(dir, o)

	err := db.store.LoadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		err = nil
	}
	db.logger.LogLoad(context.Background(), dir, len(db.store.Sources()), err)
	if err != nil {
		_ = db.store.Close()
		return nil, err
	}
	return db, nil
}

func newDB(dir string, o options) *DB {
	store := idstore.NewStore(
		idstore.WithLogger(o.logger.Logger),
		idstore.WithFileSystem(o.fs),
	)
	return &DB{
		dir:         dir,
		store:       store,
		logger:      o.logger,
		metrics:     o.metricsCollector,
		codec:       o.codec,
		compression: o.compression,
		policy:      o.policy,
		rc:          resource.NewController(o.resourceConfig),
		fsys:        o.fs,
		thawTimeout: o.thawTimeout,
	}
}

// Store exposes the underlying ID store for direct, unmetered access.
func (db *DB) Store() *idstore.Store {
	return db.store
}

// Add appends id to the given source. IDs arrive in increasing order per
// source; anything else is a caller error.
func (db *DB) Add(src idstore.Source, id model.ID) error {
	if err := db.check(); err != nil {
		return err
	}
	return db.store.Add(src, id)
}

// AddPrimitive indexes a primitive under all four of its linkage sources.
func (db *DB) AddPrimitive(id model.ID, guids [model.LinkageCount]model.GUID) error {
	if err := db.check(); err != nil {
		return err
	}
	return db.store.AddPrimitive(id, guids)
}

// Empty reports whether the database holds no IDs at all.
func (db *DB) Empty() bool {
	return db.store.Empty()
}

// Sources lists the sources present in the database.
func (db *DB) Sources() []idstore.Source {
	return db.store.Sources()
}

// Compact promotes large dense sources to bitmap backing.
func (db *DB) Compact() {
	db.store.Compact()
}

// NewBudget creates an execution budget of n units, honoring the DB's
// configured BudgetPolicy.
func (db *DB) NewBudget(n int64) *iterator.Budget {
	if db.policy != nil {
		return iterator.NewBudgetWithPolicy(n, db.policy)
	}
	return iterator.NewBudget(n)
}

// SourceIterator returns a metered iterator over one source, windowed to
// [low, high).
func (db *DB) SourceIterator(src idstore.Source, low, high model.ID, forward bool) (iterator.Iterator, error) {
	if err := db.check(); err != nil {
		return nil, err
	}
	it, err := db.store.Iterator(src, low, high, forward)
	if err != nil {
		return nil, err
	}
	return db.meter(it), nil
}

// Or builds a union over the given sub-iterators, applying create-time
// optimizations. On an empty database every union is empty, so the subs
// are released and a Null iterator is returned without building anything.
// The returned iterator may not be an *iterator.Or: commit substitutes
// cheaper shapes when the structure allows it.
func (db *DB) Or(forward bool, subs ...iterator.Iterator) (iterator.Iterator, error) {
	if err := db.check(); err != nil {
		return nil, err
	}

	if db.store.Empty() {
		for _, sub := range subs {
			_ = sub.Close()
		}
		return db.meter(iterator.NewNull(forward)), nil
	}

	or := iterator.New(len(subs), forward)
	for _, sub := range subs {
		if err := or.AddSubcondition(unmeter(sub)); err != nil {
			_ = or.Close()
			return nil, err
		}
	}
	it, err := or.CreateCommit()
	if err != nil {
		return nil, err
	}
	return db.meter(it), nil
}

// Thaw reconstructs an iterator from a frozen cursor, resolving
// storage-backed components against this database.
func (db *DB) Thaw(ctx context.Context, cursor string) (iterator.Iterator, error) {
	if err := db.check(); err != nil {
		return nil, err
	}

	tc := &iterator.ThawContext{Source: db.store}
	if db.thawTimeout > 0 {
		tc.Deadline = time.Now().Add(db.thawTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (tc.Deadline.IsZero() || d.Before(tc.Deadline)) {
		tc.Deadline = d
	}

	start := time.Now()
	it, err := iterator.Thaw(cursor, tc)
	db.metrics.RecordThaw(time.Since(start), err)
	db.logger.LogThaw(ctx, len(cursor), err)
	if err != nil {
		return nil, err
	}
	return db.meter(it), nil
}

// Freeze renders a complete, restorable cursor for the iterator.
func (db *DB) Freeze(it iterator.Iterator) (string, error) {
	s, err := iterator.FreezeString(unmeter(it))
	db.logger.LogFreeze(context.Background(), it.String(), len(s), err)
	return s, err
}

// Flush writes every source to the backing directory using the configured
// compression.
func (db *DB) Flush(ctx context.Context) error {
	if err := db.check(); err != nil {
		return err
	}
	if db.dir == "" {
		return ErrNoDirectory
	}
	err := db.store.WriteAll(db.dir, db.compression)
	db.logger.LogFlush(ctx, db.dir, len(db.store.Sources()), err)
	return err
}

// Close releases the store and all mapped files. Iterators created before
// Close must be closed by their owners first.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true
	return db.store.Close()
}

func (db *DB) check() error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return ErrClosed
	}
	return nil
}

// meter wraps it with per-operation metrics unless collection is off.
func (db *DB) meter(it iterator.Iterator) iterator.Iterator {
	if _, noop := db.metrics.(NoopMetricsCollector); noop {
		return it
	}
	return &meteredIterator{inner: it, m: db.metrics}
}

// unmeter returns the raw iterator beneath a metering wrapper, if any.
func unmeter(it iterator.Iterator) iterator.Iterator {
	if m, ok := it.(*meteredIterator); ok {
		return m.inner
	}
	return it
}
