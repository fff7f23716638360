package idstore

import (
	"fmt"
	"strings"

	"github.com/hupe1980/graphd/cursor"
	"github.com/hupe1980/graphd/iterator"
	"github.com/hupe1980/graphd/model"
)

func init() {
	iterator.RegisterType("gmap", thawGmap)
}

// SourceIterator walks one source's ID array over a [low, high) window.
// It is always sorted, its statistics are exact, and its cursor position
// is the last produced ID, which survives appends to the source between
// freeze and thaw.
type SourceIterator struct {
	source  Source
	arr     array
	forward bool

	low  model.ID
	high model.ID

	// start and end bound the window as indexes into arr, fixed at
	// creation time.
	start uint64
	end   uint64

	// produced counts IDs already emitted in the direction.
	produced uint64

	stats iterator.Statistics
}

// Iterator creates an iterator over the source's IDs within [low, high).
// A missing source or an empty window yields a Null iterator.
func (s *Store) Iterator(src Source, low, high model.ID, forward bool) (iterator.Iterator, error) {
	if high > model.IDMax {
		high = model.IDMax
	}
	if low >= high {
		return iterator.NewNull(forward), nil
	}
	arr, n, ok := s.snapshot(src)
	if !ok || n == 0 {
		return iterator.NewNull(forward), nil
	}
	start := arr.search(low)
	end := arr.search(high)
	if start >= end {
		return iterator.NewNull(forward), nil
	}
	it := &SourceIterator{
		source:  src,
		arr:     arr,
		forward: forward,
		low:     low,
		high:    high,
		start:   start,
		end:     end,
	}
	it.stats = iterator.Statistics{
		N:           end - start,
		NValid:      true,
		NextCost:    arr.stepCost(),
		CheckCost:   arr.searchCost(),
		FindCost:    arr.searchCost(),
		CostValid:   true,
		Sorted:      true,
		SortedValid: true,
	}
	return it, nil
}

// n returns the window cardinality.
func (it *SourceIterator) n() uint64 { return it.end - it.start }

// index returns the array index of the k-th produced ID.
func (it *SourceIterator) index(k uint64) uint64 {
	if it.forward {
		return it.start + k
	}
	return it.end - 1 - k
}

// Next produces the next ID in direction order, charging one array step.
func (it *SourceIterator) Next(b *iterator.Budget) (model.ID, error) {
	if b.Exhausted() {
		return model.IDNone, iterator.ErrMore
	}
	b.Charge(iterator.CostCall + it.arr.stepCost())
	if it.produced >= it.n() {
		return model.IDNone, iterator.Done
	}
	id := it.arr.at(it.index(it.produced))
	it.produced++
	return id, nil
}

// Find repositions to the first ID at-or-past id in the direction.
func (it *SourceIterator) Find(id model.ID, b *iterator.Budget) (model.ID, error) {
	if b.Exhausted() {
		return model.IDNone, iterator.ErrMore
	}
	b.Charge(iterator.CostCall + it.arr.searchCost())
	if it.forward {
		if id < it.low {
			id = it.low
		}
		i := it.arr.search(id)
		if i >= it.end {
			it.produced = it.n()
			return model.IDNone, iterator.Done
		}
		if i < it.start {
			i = it.start
		}
		it.produced = i - it.start + 1
		return it.arr.at(i), nil
	}
	if id >= it.high {
		id = it.high - 1
	}
	// Largest member <= id: one past it is the first member > id.
	i := it.arr.search(id + 1)
	if i <= it.start {
		it.produced = it.n()
		return model.IDNone, iterator.Done
	}
	if i > it.end {
		i = it.end
	}
	it.produced = it.end - (i - 1)
	return it.arr.at(i - 1), nil
}

// Check tests window membership, independent of position.
func (it *SourceIterator) Check(id model.ID, b *iterator.Budget) (bool, error) {
	if b.Exhausted() {
		return false, iterator.ErrMore
	}
	b.Charge(iterator.CostCall + it.arr.searchCost())
	return id >= it.low && id < it.high && it.arr.contains(id), nil
}

// Statistics is exact from creation.
func (it *SourceIterator) Statistics(b *iterator.Budget) (iterator.Statistics, error) {
	b.Charge(iterator.CostCall)
	return it.stats, nil
}

// Stats returns the same exact figures without charging anything.
func (it *SourceIterator) Stats() iterator.Statistics { return it.stats }

// Clone shares the immutable backing view and copies the position.
func (it *SourceIterator) Clone() (iterator.Iterator, error) {
	ni := *it
	return &ni, nil
}

// Reset rewinds to the start of the window.
func (it *SourceIterator) Reset() error {
	it.produced = 0
	return nil
}

// Freeze renders "gmap:[~]linkage:guid:low:high/POSITION/". POSITION is
// "-" before the first ID, "$" after the last, otherwise the last
// produced ID.
func (it *SourceIterator) Freeze(buf *cursor.Buffer, parts iterator.Parts) error {
	first := true
	sep := func() {
		if !first {
			buf.WriteChar('/')
		}
		first = false
	}
	if parts&iterator.Set != 0 {
		sep()
		buf.WriteString("gmap:")
		if !it.forward {
			buf.WriteChar('~')
		}
		buf.WriteString(it.source.Linkage.String())
		buf.WriteChar(':')
		buf.WriteString(it.source.GUID.String())
		buf.WriteChar(':')
		buf.WriteUint(uint64(it.low))
		buf.WriteChar(':')
		buf.WriteUint(uint64(it.high))
	}
	if parts&iterator.Position != 0 {
		sep()
		switch {
		case it.produced == 0:
			buf.WriteChar('-')
		case it.produced >= it.n():
			buf.WriteChar('$')
		default:
			buf.WriteID(it.arr.at(it.index(it.produced - 1)))
		}
	}
	if parts&iterator.State != 0 {
		sep()
	}
	return nil
}

// PrimitiveSummary locks the source's linkage; the store holds every
// primitive carrying it, so the set is complete.
func (it *SourceIterator) PrimitiveSummary() (model.Summary, bool) {
	var sum model.Summary
	sum.Lock(it.source.Linkage, it.source.GUID)
	sum.Complete = true
	return sum, true
}

// RangeEstimate is tight: the window's actual first and last members.
func (it *SourceIterator) RangeEstimate() (model.RangeEstimate, error) {
	return model.RangeEstimate{
		Low:  it.arr.at(it.start),
		High: it.arr.at(it.end-1) + 1,
		NMax: it.n(),
	}, nil
}

// Restrict rejects summaries that pin the iterator's own linkage to a
// different GUID; everything else removes nothing.
func (it *SourceIterator) Restrict(sum *model.Summary) (iterator.Iterator, error) {
	if sum.IsLocked(it.source.Linkage) && sum.GUIDs[it.source.Linkage] != it.source.GUID {
		return nil, iterator.ErrNullRestriction
	}
	return nil, iterator.ErrUnchanged
}

// Range returns the static window.
func (it *SourceIterator) Range() (model.ID, model.ID) { return it.low, it.high }

// Forward reports the iteration direction.
func (it *SourceIterator) Forward() bool { return it.forward }

// TypeGUID marks type-linkage iterators as typed lookups.
func (it *SourceIterator) TypeGUID() (model.GUID, bool) {
	if it.source.Linkage == model.LinkageTypeGUID {
		return it.source.GUID, true
	}
	return model.GUID{}, false
}

// String describes the iterator for logs.
func (it *SourceIterator) String() string {
	return fmt.Sprintf("gmap[%s n=%d forward=%t]", it.source, it.n(), it.forward)
}

// Close releases nothing; the store owns the backing.
func (it *SourceIterator) Close() error { return nil }

// thawGmap reconstructs a source iterator against the thaw context's
// store. The position is re-found by value, so IDs appended to the source
// since the freeze do not shift it.
func thawGmap(set, pos, state string, tc *iterator.ThawContext) (iterator.Iterator, error) {
	store, ok := tc.Source.(*Store)
	if !ok {
		return nil, fmt.Errorf("%w: gmap cursor without id store", iterator.ErrBadCursor)
	}
	forward := true
	if strings.HasPrefix(set, "~") {
		forward = false
		set = set[1:]
	}
	parts := strings.Split(set, ":")
	if len(parts) != 4 {
		return nil, fmt.Errorf("%w: gmap set %q", iterator.ErrBadCursor, set)
	}
	src, err := ParseSource(parts[0], parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", iterator.ErrBadCursor, err)
	}
	sc := cursor.NewScanner(parts[2] + ":" + parts[3])
	low, err := sc.ReadUint()
	if err != nil {
		return nil, fmt.Errorf("%w: gmap window: %v", iterator.ErrBadCursor, err)
	}
	if err := sc.Expect(":"); err != nil {
		return nil, fmt.Errorf("%w: %v", iterator.ErrBadCursor, err)
	}
	high, err := sc.ReadUint()
	if err != nil || !sc.EOF() {
		return nil, fmt.Errorf("%w: gmap window %q:%q", iterator.ErrBadCursor, parts[2], parts[3])
	}
	it, err := store.Iterator(src, model.ID(low), model.ID(high), forward)
	if err != nil {
		return nil, err
	}
	if pos == "" || pos == "-" {
		return it, nil
	}
	si, ok := it.(*SourceIterator)
	if !ok {
		// The source vanished or emptied; only rewound and exhausted
		// positions are restorable against a null iterator.
		if pos == "$" {
			return it, nil
		}
		return nil, fmt.Errorf("%w: gmap source %s no longer present", iterator.ErrBadCursor, src)
	}
	if pos == "$" {
		si.produced = si.n()
		return si, nil
	}
	psc := cursor.NewScanner(pos)
	last, err := psc.ReadID()
	if err != nil || !psc.EOF() {
		return nil, fmt.Errorf("%w: gmap position %q", iterator.ErrBadCursor, pos)
	}
	if _, err := si.Find(last, nil); err != nil && err != iterator.Done {
		return nil, err
	}
	return si, nil
}
