package iterator

import (
	"errors"

	"github.com/hupe1980/graphd/cursor"
	"github.com/hupe1980/graphd/model"
)

var (
	// Done signals exhaustion: the iterator has no further IDs in the
	// requested direction. It is expected and frequent, like io.EOF.
	Done = errors.New("iterator exhausted")

	// ErrMore is the suspend-for-budget signal: the operation ran out of
	// budget before completing. Call again with more budget and the same
	// arguments; the iterator resumes where it stopped.
	ErrMore = errors.New("budget exhausted; call again")

	// ErrBadCursor indicates a cursor that cannot be parsed back into an
	// iterator. The partially built iterator is destroyed.
	ErrBadCursor = errors.New("malformed cursor")

	// ErrNoEstimate is returned by RangeEstimate when no usable bound
	// exists.
	ErrNoEstimate = errors.New("no range estimate available")

	// ErrUnchanged is returned by Restrict when the restriction would not
	// remove anything; the caller keeps using the original iterator.
	ErrUnchanged = errors.New("restriction changes nothing")

	// ErrNullRestriction is returned by Restrict when nothing can satisfy
	// the restriction; the caller substitutes a Null iterator.
	ErrNullRestriction = errors.New("restriction excludes everything")
)

// Statistics describes what an iterator knows about its own output. Costs
// are in budget units. Fields are only meaningful when the corresponding
// valid flag is set; knowledge accrues as Statistics computation proceeds.
type Statistics struct {
	// N is the number of IDs the iterator will produce, assuming no
	// overlap between composite members (a documented approximation).
	N      uint64
	NValid bool

	// NextCost is the average budget cost of producing one ID.
	// CheckCost is the cost of one membership test, FindCost of one
	// repositioning.
	NextCost  int64
	CheckCost int64
	FindCost  int64
	CostValid bool

	// Sorted reports whether IDs are produced in the iteration direction's
	// monotonic order. Find requires a sorted iterator.
	Sorted      bool
	SortedValid bool
}

// Parts selects which cursor components Freeze renders.
type Parts uint8

const (
	// Set renders the identity component: which iterator this is.
	Set Parts = 1 << iota
	// Position renders where iteration currently stands.
	Position
	// State renders per-variant resumption detail.
	State
	// NoMasquerade suppresses an installed masquerade so that the literal
	// structure is rendered instead.
	NoMasquerade
)

// All renders a complete, restorable cursor.
const All = Set | Position | State

// Iterator is the polymorphic capability set every variant implements.
//
// Next, Find, Check and Statistics are budget-metered and resumable: they
// return ErrMore when the budget runs out, and a repeated call with the
// same arguments continues the suspended operation. Exhaustion is signaled
// with Done, never with a hard error.
type Iterator interface {
	// Next produces the next ID in the iteration direction.
	Next(b *Budget) (model.ID, error)

	// Find repositions to the first ID at-or-after id (at-or-before when
	// iterating backward) and returns it. The iterator must be sorted;
	// calling Find on an unsorted iterator is a programmer error and
	// panics. A subsequent Next continues after the returned ID.
	Find(id model.ID, b *Budget) (model.ID, error)

	// Check tests membership of id in the iterator's output set,
	// independent of the current position.
	Check(id model.ID, b *Budget) (bool, error)

	// Statistics computes the iterator's statistics, suspending on budget
	// exhaustion. Once complete, results are cached.
	Statistics(b *Budget) (Statistics, error)

	// Stats returns current statistics knowledge without doing work.
	Stats() Statistics

	// Clone returns an independent iterator at the same logical position.
	// Clones share no mutable state with the original.
	Clone() (Iterator, error)

	// Reset rewinds to the start.
	Reset() error

	// Freeze renders the requested cursor components into buf.
	Freeze(buf *cursor.Buffer, parts Parts) error

	// PrimitiveSummary reports linkage constraints all produced primitives
	// satisfy, if known.
	PrimitiveSummary() (model.Summary, bool)

	// RangeEstimate bounds the iterator's output window and cardinality.
	RangeEstimate() (model.RangeEstimate, error)

	// Restrict derives an iterator producing only IDs compatible with an
	// externally imposed summary. It returns ErrUnchanged when nothing
	// would be removed and ErrNullRestriction when nothing would remain.
	Restrict(sum *model.Summary) (Iterator, error)

	// Range returns the static [low, high) window of possible IDs.
	Range() (low, high model.ID)

	// Forward reports the iteration direction.
	Forward() bool

	// String returns a short human-readable description for logs.
	String() string

	// Close releases all owned resources, including sub-iterators.
	Close() error
}

// base carries the fields shared by every variant in this package.
type base struct {
	forward bool
	low     model.ID
	high    model.ID
	stats   Statistics
}

func (b *base) Forward() bool               { return b.forward }
func (b *base) Range() (model.ID, model.ID) { return b.low, b.high }
func (b *base) Stats() Statistics           { return b.stats }

// directionTag renders the backward marker used by all cursor SET
// components.
func (b *base) directionTag() string {
	if b.forward {
		return ""
	}
	return "~"
}

// inOrder reports whether a precedes b in the iteration direction.
func inOrder(forward bool, a, b model.ID) bool {
	if forward {
		return a < b
	}
	return a > b
}

// atOrPast reports whether a is at or beyond b in the iteration direction.
func atOrPast(forward bool, a, b model.ID) bool {
	return a == b || inOrder(forward, b, a)
}
