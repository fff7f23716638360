package idstore

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/hupe1980/graphd/internal/fs"
	"github.com/hupe1980/graphd/internal/mmap"
	"github.com/hupe1980/graphd/model"
)

// Tuning knobs for the slice-to-bitmap promotion done by Compact. A source
// is promoted once it is both large and dense enough that the bitmap's
// container overhead pays for itself.
var (
	BitmapMinCount   uint64 = 4096
	BitmapMinDensity        = 1.0 / 64.0
)

// Store maps sources to their ID arrays.
//
// Writes (Add, Compact, attachment of loaded files) take the write lock;
// iterators hold a reference to the backing array they were created over
// and never observe later appends. A slice backing may be shared between a
// live iterator and the store because appends only extend it past the
// iterator's recorded end.
type Store struct {
	mu       sync.RWMutex
	arrays   map[Source]array
	mappings map[Source]*mmap.Mapping
	added    uint64
	logger   *slog.Logger
	fs       fs.FileSystem
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithFileSystem swaps the file system used for persistence. Tests inject
// a faulty one to exercise write-error paths.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(s *Store) { s.fs = fsys }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		arrays:   make(map[Source]array),
		mappings: make(map[Source]*mmap.Mapping),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		fs:       fs.Default,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add appends id to the source's array, creating it on first use. IDs are
// assigned in write order, so each append must exceed the source's current
// maximum; anything else is a corrupted write sequence.
func (s *Store) Add(src Source, id model.ID) error {
	if !id.Valid() {
		return fmt.Errorf("idstore: invalid id %d", uint64(id))
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	arr, ok := s.arrays[src]
	if !ok {
		arr = &memArray{}
		s.arrays[src] = arr
	}
	app, ok := arr.(appender)
	if !ok {
		return fmt.Errorf("idstore: source %s is file-backed and frozen", src)
	}
	if err := app.appendID(id); err != nil {
		return err
	}
	s.added++
	return nil
}

// AddPrimitive indexes one primitive under every linkage it carries.
func (s *Store) AddPrimitive(id model.ID, guids [model.LinkageCount]model.GUID) error {
	for l := model.Linkage(0); l < model.LinkageCount; l++ {
		if guids[l].IsNil() {
			continue
		}
		if err := s.Add(Source{Linkage: l, GUID: guids[l]}, id); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of IDs held for a source.
func (s *Store) Len(src Source) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr, ok := s.arrays[src]
	if !ok {
		return 0
	}
	return arr.len()
}

// Empty reports whether the store holds no IDs at all.
func (s *Store) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, arr := range s.arrays {
		if arr.len() > 0 {
			return false
		}
	}
	return true
}

// Sources returns all sources present, in no particular order.
func (s *Store) Sources() []Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Source, 0, len(s.arrays))
	for src := range s.arrays {
		out = append(out, src)
	}
	return out
}

// Contains tests membership without building an iterator.
func (s *Store) Contains(src Source, id model.ID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr, ok := s.arrays[src]
	return ok && arr.contains(id)
}

// Compact promotes slice-backed sources that have grown large and dense to
// roaring bitmaps. Safe to run at any time; iterators created earlier keep
// their original backing.
func (s *Store) Compact() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for src, arr := range s.arrays {
		mem, ok := arr.(*memArray)
		if !ok {
			continue
		}
		n := mem.len()
		if n < BitmapMinCount {
			continue
		}
		span := uint64(mem.ids[n-1]-mem.ids[0]) + 1
		if float64(n)/float64(span) < BitmapMinDensity {
			continue
		}
		s.arrays[src] = bitmapFromMem(mem)
		s.logger.Debug("promoted source to bitmap", "source", src.String(), "count", n)
	}
}

// snapshot returns the source's current backing and length under the read
// lock. Iterators are built against this stable view.
func (s *Store) snapshot(src Source) (array, uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr, ok := s.arrays[src]
	if !ok {
		return nil, 0, false
	}
	return arr, arr.len(), true
}

// attach installs a loaded array, replacing any in-memory data for the
// source.
func (s *Store) attach(src Source, arr array) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.arrays[src] = arr
}

// trackMapping records the mmap backing a source so Close can release it.
func (s *Store) trackMapping(src Source, m *mmap.Mapping) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.mappings[src]; ok {
		old.Close()
	}
	s.mappings[src] = m
}
