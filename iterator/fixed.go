package iterator

import (
	"fmt"
	"sort"

	"github.com/hupe1980/graphd/cursor"
	"github.com/hupe1980/graphd/model"
)

// Fixed is a materialized small-set iterator: all IDs live in one sorted
// array. It is the target of the Or engine's small-set folding and the
// cheapest shape the planner can be handed.
//
// Build phase: NewFixed, then Add in any order, then CreateCommit (which
// sorts and deduplicates). The ID array is immutable after commit; clones
// share it.
type Fixed struct {
	base

	ids       []model.ID
	offset    int // number of IDs already produced in the direction
	committed bool
}

// NewFixed creates an empty fixed iterator with room for capacity IDs.
func NewFixed(capacity int, forward bool) *Fixed {
	return &Fixed{
		base: base{forward: forward, low: model.IDMax, high: 0},
		ids:  make([]model.ID, 0, capacity),
	}
}

// NewFixedIDs creates a committed fixed iterator over the given IDs.
// The slice is taken over and sorted.
func NewFixedIDs(ids []model.ID, forward bool) *Fixed {
	f := NewFixed(len(ids), forward)
	f.ids = ids
	f.CreateCommit()
	return f
}

// Add appends an ID during the build phase.
func (f *Fixed) Add(id model.ID) error {
	if f.committed {
		return fmt.Errorf("fixed: Add after CreateCommit")
	}
	if !id.Valid() {
		return fmt.Errorf("fixed: invalid id %d", uint64(id))
	}
	f.ids = append(f.ids, id)
	return nil
}

// Len returns the number of IDs held, deduplicated only after commit.
func (f *Fixed) Len() int { return len(f.ids) }

// CreateCommit sorts, deduplicates, and finalizes statistics. It is
// idempotent.
func (f *Fixed) CreateCommit() {
	if f.committed {
		return
	}
	sort.Slice(f.ids, func(i, j int) bool { return f.ids[i] < f.ids[j] })
	out := f.ids[:0]
	for i, id := range f.ids {
		if i > 0 && id == f.ids[i-1] {
			continue
		}
		out = append(out, id)
	}
	f.ids = out
	if len(f.ids) > 0 {
		f.low = f.ids[0]
		f.high = f.ids[len(f.ids)-1] + 1
	} else {
		f.low, f.high = 0, 0
	}
	f.stats = Statistics{
		N:           uint64(len(f.ids)),
		NValid:      true,
		NextCost:    CostMemoryStep,
		CheckCost:   CostBinarySearch,
		FindCost:    CostBinarySearch,
		CostValid:   true,
		Sorted:      true,
		SortedValid: true,
	}
	f.committed = true
}

// at returns the index into ids for the k-th produced ID.
func (f *Fixed) at(k int) int {
	if f.forward {
		return k
	}
	return len(f.ids) - 1 - k
}

// Next produces the next ID in direction order.
func (f *Fixed) Next(b *Budget) (model.ID, error) {
	b.Charge(CostCall + CostMemoryStep)
	if f.offset >= len(f.ids) {
		return model.IDNone, Done
	}
	id := f.ids[f.at(f.offset)]
	f.offset++
	return id, nil
}

// Find repositions to the first ID at-or-past id and returns it.
func (f *Fixed) Find(id model.ID, b *Budget) (model.ID, error) {
	b.Charge(CostCall + CostBinarySearch)
	if f.forward {
		i := sort.Search(len(f.ids), func(k int) bool { return f.ids[k] >= id })
		if i == len(f.ids) {
			f.offset = len(f.ids)
			return model.IDNone, Done
		}
		f.offset = i + 1
		return f.ids[i], nil
	}
	// Backward: largest element <= id.
	i := sort.Search(len(f.ids), func(k int) bool { return f.ids[k] > id })
	if i == 0 {
		f.offset = len(f.ids)
		return model.IDNone, Done
	}
	f.offset = len(f.ids) - i + 1
	return f.ids[i-1], nil
}

// Check is a binary-search membership test.
func (f *Fixed) Check(id model.ID, b *Budget) (bool, error) {
	b.Charge(CostCall + CostBinarySearch)
	i := sort.Search(len(f.ids), func(k int) bool { return f.ids[k] >= id })
	return i < len(f.ids) && f.ids[i] == id, nil
}

// Statistics is complete at commit time.
func (f *Fixed) Statistics(b *Budget) (Statistics, error) {
	b.Charge(CostCall)
	return f.stats, nil
}

// Clone shares the immutable ID array and copies the position.
func (f *Fixed) Clone() (Iterator, error) {
	nf := *f
	return &nf, nil
}

// Reset rewinds to the start.
func (f *Fixed) Reset() error {
	f.offset = 0
	return nil
}

// Freeze renders "fixed:[~]N:id,id,.../POSITION/STATE". POSITION is the
// production offset, "$" once exhausted; STATE is empty.
func (f *Fixed) Freeze(buf *cursor.Buffer, parts Parts) error {
	first := true
	sep := func() {
		if !first {
			buf.WriteChar('/')
		}
		first = false
	}
	if parts&Set != 0 {
		sep()
		buf.WriteString("fixed:")
		buf.WriteString(f.directionTag())
		buf.WriteUint(uint64(len(f.ids)))
		buf.WriteChar(':')
		for i, id := range f.ids {
			if i > 0 {
				buf.WriteChar(',')
			}
			buf.WriteID(id)
		}
	}
	if parts&Position != 0 {
		sep()
		if f.offset >= len(f.ids) {
			buf.WriteChar('$')
		} else {
			buf.WriteUint(uint64(f.offset))
		}
	}
	if parts&State != 0 {
		sep()
	}
	return nil
}

// PrimitiveSummary knows nothing about its members' linkages.
func (f *Fixed) PrimitiveSummary() (model.Summary, bool) {
	return model.Summary{}, false
}

// RangeEstimate is exact.
func (f *Fixed) RangeEstimate() (model.RangeEstimate, error) {
	return model.RangeEstimate{
		Low:  f.low,
		High: f.high,
		NMax: uint64(len(f.ids)),
	}, nil
}

// Restrict cannot exclude anything without linkage knowledge.
func (f *Fixed) Restrict(sum *model.Summary) (Iterator, error) {
	return nil, ErrUnchanged
}

// String describes the iterator for logs.
func (f *Fixed) String() string {
	return fmt.Sprintf("fixed[n=%d forward=%t]", len(f.ids), f.forward)
}

// Close releases nothing; the ID array may be shared with clones.
func (f *Fixed) Close() error { return nil }

func thawFixed(set, pos, state string, tc *ThawContext) (Iterator, error) {
	sc := cursor.NewScanner(set)
	forward := !sc.Accept("~")
	n, err := sc.ReadUint()
	if err != nil {
		return nil, fmt.Errorf("%w: fixed count: %v", ErrBadCursor, err)
	}
	if err := sc.Expect(":"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCursor, err)
	}
	f := NewFixed(int(n), forward)
	for i := uint64(0); i < n; i++ {
		if i > 0 {
			if err := sc.Expect(","); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrBadCursor, err)
			}
		}
		id, err := sc.ReadID()
		if err != nil {
			return nil, fmt.Errorf("%w: fixed id: %v", ErrBadCursor, err)
		}
		if err := f.Add(id); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadCursor, err)
		}
	}
	if !sc.EOF() {
		return nil, fmt.Errorf("%w: trailing text in fixed set %q", ErrBadCursor, set)
	}
	f.CreateCommit()
	if uint64(len(f.ids)) != n {
		return nil, fmt.Errorf("%w: fixed set holds duplicates", ErrBadCursor)
	}
	if pos != "" {
		psc := cursor.NewScanner(pos)
		if psc.Accept("$") {
			f.offset = len(f.ids)
		} else {
			off, err := psc.ReadUint()
			if err != nil || off > uint64(len(f.ids)) {
				return nil, fmt.Errorf("%w: fixed position %q", ErrBadCursor, pos)
			}
			f.offset = int(off)
		}
	}
	return f, nil
}
