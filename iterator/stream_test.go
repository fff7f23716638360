package iterator

import (
	"fmt"

	"github.com/hupe1980/graphd/cursor"
	"github.com/hupe1980/graphd/model"
)

func init() {
	RegisterType("tstream", thawTstream)
}

// stream is a scriptable iterator for union tests: a literal ID sequence
// in production order, with hand-set statistics, budget suspension, and
// configurable summary/restriction behavior. Costs default high enough
// that the create-time folding optimizations leave it alone.
type stream struct {
	base

	ids []model.ID
	pos int

	sum       model.Summary
	sumOK     bool
	typeG     model.GUID
	typed     bool
	noEst     bool
	resErr    error
	lazyStats bool

	closed bool
}

func newStream(forward bool, ids ...uint64) *stream {
	s := &stream{
		base:   base{forward: forward, low: model.IDMax, high: 0},
		resErr: ErrUnchanged,
	}
	for _, id := range ids {
		s.ids = append(s.ids, model.ID(id))
		if model.ID(id) < s.low {
			s.low = model.ID(id)
		}
		if model.ID(id) >= s.high {
			s.high = model.ID(id) + 1
		}
	}
	s.stats = Statistics{
		N:           uint64(len(s.ids)),
		NValid:      true,
		NextCost:    10000,
		CheckCost:   50,
		FindCost:    70,
		CostValid:   true,
		Sorted:      true,
		SortedValid: true,
	}
	return s
}

func (s *stream) unsorted() *stream {
	s.stats.Sorted = false
	return s
}

func (s *stream) withoutStats() *stream {
	s.stats.NValid = false
	s.stats.CostValid = false
	return s
}

func (s *stream) withNextCost(c int64) *stream {
	s.stats.NextCost = c
	return s
}

// lazy hides the statistics until Statistics is driven, modeling members
// that must do work before they know their own shape.
func (s *stream) lazy() *stream {
	s.lazyStats = true
	return s
}

func (s *stream) Stats() Statistics {
	if s.lazyStats {
		return Statistics{}
	}
	return s.stats
}

func (s *stream) withSummary(l model.Linkage, g model.GUID) *stream {
	s.sum.Lock(l, g)
	s.sum.Complete = true
	s.sumOK = true
	return s
}

func (s *stream) withType(g model.GUID) *stream {
	s.typeG = g
	s.typed = true
	return s.withSummary(model.LinkageTypeGUID, g)
}

func (s *stream) withoutEstimate() *stream {
	s.noEst = true
	return s
}

func (s *stream) restrictTo(err error) *stream {
	s.resErr = err
	return s
}

func (s *stream) Next(b *Budget) (model.ID, error) {
	if b.Exhausted() {
		return model.IDNone, ErrMore
	}
	b.Charge(CostCall + s.stats.NextCost)
	if s.pos >= len(s.ids) {
		return model.IDNone, Done
	}
	id := s.ids[s.pos]
	s.pos++
	return id, nil
}

func (s *stream) Find(id model.ID, b *Budget) (model.ID, error) {
	if !s.stats.Sorted {
		panic("stream: Find on unsorted stream")
	}
	if b.Exhausted() {
		return model.IDNone, ErrMore
	}
	b.Charge(CostCall + s.stats.FindCost)
	for k, v := range s.ids {
		if atOrPast(s.forward, v, id) {
			s.pos = k + 1
			return v, nil
		}
	}
	s.pos = len(s.ids)
	return model.IDNone, Done
}

func (s *stream) Check(id model.ID, b *Budget) (bool, error) {
	if b.Exhausted() {
		return false, ErrMore
	}
	b.Charge(CostCall + s.stats.CheckCost)
	for _, v := range s.ids {
		if v == id {
			return true, nil
		}
	}
	return false, nil
}

func (s *stream) Statistics(b *Budget) (Statistics, error) {
	if b.Exhausted() {
		return s.Stats(), ErrMore
	}
	b.Charge(CostCall)
	s.lazyStats = false
	return s.stats, nil
}

func (s *stream) Clone() (Iterator, error) {
	ns := *s
	ns.ids = append([]model.ID(nil), s.ids...)
	return &ns, nil
}

func (s *stream) Reset() error {
	s.pos = 0
	return nil
}

func (s *stream) Freeze(buf *cursor.Buffer, parts Parts) error {
	first := true
	sep := func() {
		if !first {
			buf.WriteChar('/')
		}
		first = false
	}
	if parts&Set != 0 {
		sep()
		buf.WriteString("tstream:")
		buf.WriteString(s.directionTag())
		if !s.stats.Sorted {
			buf.WriteChar('u')
		}
		buf.WriteUint(uint64(len(s.ids)))
		buf.WriteChar(':')
		for i, id := range s.ids {
			if i > 0 {
				buf.WriteChar(',')
			}
			buf.WriteID(id)
		}
	}
	if parts&Position != 0 {
		sep()
		if s.pos >= len(s.ids) {
			buf.WriteChar('$')
		} else {
			buf.WriteUint(uint64(s.pos))
		}
	}
	if parts&State != 0 {
		sep()
	}
	return nil
}

func (s *stream) PrimitiveSummary() (model.Summary, bool) {
	return s.sum, s.sumOK
}

func (s *stream) RangeEstimate() (model.RangeEstimate, error) {
	if s.noEst {
		return model.RangeEstimate{}, ErrNoEstimate
	}
	return model.RangeEstimate{Low: s.low, High: s.high, NMax: uint64(len(s.ids))}, nil
}

func (s *stream) Restrict(sum *model.Summary) (Iterator, error) {
	return nil, s.resErr
}

func (s *stream) TypeGUID() (model.GUID, bool) {
	return s.typeG, s.typed
}

func (s *stream) String() string {
	return fmt.Sprintf("tstream[n=%d forward=%t]", len(s.ids), s.forward)
}

func (s *stream) Close() error {
	s.closed = true
	return nil
}

func thawTstream(set, pos, state string, tc *ThawContext) (Iterator, error) {
	sc := cursor.NewScanner(set)
	forward := !sc.Accept("~")
	sorted := !sc.Accept("u")
	n, err := sc.ReadUint()
	if err != nil {
		return nil, fmt.Errorf("%w: tstream count: %v", ErrBadCursor, err)
	}
	if err := sc.Expect(":"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCursor, err)
	}
	s := newStream(forward)
	for i := uint64(0); i < n; i++ {
		if i > 0 {
			if err := sc.Expect(","); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrBadCursor, err)
			}
		}
		id, err := sc.ReadID()
		if err != nil {
			return nil, fmt.Errorf("%w: tstream id: %v", ErrBadCursor, err)
		}
		s.ids = append(s.ids, id)
		if id < s.low {
			s.low = id
		}
		if id >= s.high {
			s.high = id + 1
		}
	}
	s.stats.N = uint64(len(s.ids))
	s.stats.Sorted = sorted
	if pos != "" {
		psc := cursor.NewScanner(pos)
		if psc.Accept("$") {
			s.pos = len(s.ids)
		} else {
			off, err := psc.ReadUint()
			if err != nil || off > uint64(len(s.ids)) {
				return nil, fmt.Errorf("%w: tstream position %q", ErrBadCursor, pos)
			}
			s.pos = int(off)
		}
	}
	return s, nil
}
