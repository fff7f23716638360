package iterator

import (
	"fmt"

	"github.com/hupe1980/graphd/cursor"
	"github.com/hupe1980/graphd/model"
)

// Null is the universal empty iterator: Next is always Done, Check always
// false. It is what an Or collapses to when it has no subconditions.
type Null struct {
	base
}

// NewNull creates an empty iterator with the given direction.
func NewNull(forward bool) *Null {
	n := &Null{base: base{forward: forward}}
	n.stats = Statistics{
		NValid:      true,
		CostValid:   true,
		Sorted:      true,
		SortedValid: true,
	}
	return n
}

// Next always reports exhaustion.
func (n *Null) Next(b *Budget) (model.ID, error) {
	b.Charge(CostCall)
	return model.IDNone, Done
}

// Find never finds anything.
func (n *Null) Find(id model.ID, b *Budget) (model.ID, error) {
	b.Charge(CostCall)
	return model.IDNone, Done
}

// Check reports nothing as a member.
func (n *Null) Check(id model.ID, b *Budget) (bool, error) {
	b.Charge(CostCall)
	return false, nil
}

// Statistics is immediately complete.
func (n *Null) Statistics(b *Budget) (Statistics, error) {
	b.Charge(CostCall)
	return n.stats, nil
}

// Clone returns another empty iterator.
func (n *Null) Clone() (Iterator, error) {
	return NewNull(n.forward), nil
}

// Reset is a no-op.
func (n *Null) Reset() error { return nil }

// Freeze renders "null:[~]//".
func (n *Null) Freeze(buf *cursor.Buffer, parts Parts) error {
	first := true
	sep := func() {
		if !first {
			buf.WriteChar('/')
		}
		first = false
	}
	if parts&Set != 0 {
		sep()
		buf.WriteString("null:")
		buf.WriteString(n.directionTag())
	}
	if parts&Position != 0 {
		sep()
		buf.WriteChar('$')
	}
	if parts&State != 0 {
		sep()
	}
	return nil
}

// PrimitiveSummary has nothing to summarize.
func (n *Null) PrimitiveSummary() (model.Summary, bool) {
	return model.Summary{}, false
}

// RangeEstimate is the empty window.
func (n *Null) RangeEstimate() (model.RangeEstimate, error) {
	return model.RangeEstimate{NMax: 0}, nil
}

// Restrict of nothing is still nothing.
func (n *Null) Restrict(sum *model.Summary) (Iterator, error) {
	return nil, ErrUnchanged
}

// String describes the iterator for logs.
func (n *Null) String() string {
	return fmt.Sprintf("null[forward=%t]", n.forward)
}

// Close releases nothing.
func (n *Null) Close() error { return nil }

func thawNull(set, pos, state string, tc *ThawContext) (Iterator, error) {
	sc := cursor.NewScanner(set)
	forward := !sc.Accept("~")
	if !sc.EOF() {
		return nil, fmt.Errorf("%w: trailing text in null set %q", ErrBadCursor, set)
	}
	return NewNull(forward), nil
}
