package graphd

import (
	"errors"
	"fmt"

	"github.com/hupe1980/graphd/iterator"
)

var (
	// ErrClosed is returned by operations on a closed DB.
	ErrClosed = errors.New("database is closed")

	// ErrNotFound indicates a missing source, snapshot or blob.
	ErrNotFound = errors.New("not found")

	// ErrNoDirectory is returned by Flush and Snapshot when the DB was
	// created without a backing directory.
	ErrNoDirectory = errors.New("database has no backing directory")

	// ErrBadCursor re-exports the iterator package's cursor parse error
	// so callers can test for it without importing iterator.
	ErrBadCursor = iterator.ErrBadCursor
)

// ErrSnapshotCorrupt indicates a snapshot file whose checksum did not
// match its manifest entry.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrSnapshotCorrupt struct {
	File     string
	Expected uint32
	Actual   uint32
	cause    error
}

func (e *ErrSnapshotCorrupt) Error() string {
	return fmt.Sprintf("snapshot file %q corrupt: crc32c %08x, want %08x", e.File, e.Actual, e.Expected)
}

func (e *ErrSnapshotCorrupt) Unwrap() error { return e.cause }

// ErrUnknownCodec indicates a snapshot manifest encoded with a codec this
// build does not know.
type ErrUnknownCodec struct {
	Name string
}

func (e *ErrUnknownCodec) Error() string {
	return fmt.Sprintf("unknown codec %q in snapshot manifest", e.Name)
}
