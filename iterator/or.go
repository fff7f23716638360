package iterator

import (
	"errors"
	"fmt"

	"github.com/hupe1980/graphd/model"
)

// Tuning knobs for the Or engine's create-time optimizations. They bound
// when a subcondition is folded into the shared fixed accumulator and when
// the whole Or materializes into a fixed small set.
var (
	// MergeMaxCount is the largest subcondition (by item count) that
	// AddSubcondition folds into the fixed accumulator.
	MergeMaxCount uint64 = 20

	// MergeMaxCost bounds count*production-cost for folding.
	MergeMaxCost int64 = 200

	// SmallSetMaxCount is the largest total cardinality an Or may
	// materialize into a Fixed iterator.
	SmallSetMaxCount uint64 = 2048

	// SmallSetMaxCost bounds the summed count*production-cost of
	// materializing all subconditions.
	SmallSetMaxCost int64 = 10240
)

// subGrowth is the subcondition array growth increment.
const subGrowth = 16

// callState is the resumption token of a suspended budgeted operation.
// A suspended Or re-enters at the recorded state instead of restarting.
type callState uint8

const (
	stateInitial callState = iota
	// sorted next: advancing subcondition resumeSub
	stateNextSub
	// thaw fallback: fast-forwarding past resumeID
	stateNextCatchUp
	// find: positioning subcondition resumeSub
	stateFindSub
	// check: consulting subcondition resumeSub
	stateCheckSub
	// check: consulting the check delegate
	stateCheckDelegate
	// statistics: computing subcondition resumeSub
	stateStatsSub
	// unsorted next: pulling from subcondition thisOC
	stateUnsortedNext
	// unsorted next: duplicate-checking candidate
	stateUnsortedDup
)

// Or is the composite union iterator: it merges the ID streams of N
// sub-iterators into one deduplicated stream in the iteration direction.
//
// Lifecycle: New, AddSubcondition repeatedly, then CreateCommit, which runs
// the create-time optimizations and may substitute a simpler iterator
// (Null for N==0, the sole child for N==1, a Fixed small set when
// materializing everything is cheap). After a substitution the *Or keeps
// forwarding to its replacement, so handles stay valid; CreateCommit also
// returns the replacement for planners that want the simpler shape.
type Or struct {
	base

	sub    []subcond
	staged []int

	activeHead, activeTail int
	eofHead, eofTail       int

	lastID   model.ID
	resumeID model.ID
	eof      bool

	state      callState
	resumeSub  int      // loop cursor for next/find/check/statistics
	findTarget model.ID
	thisOC     int      // unsorted algorithm: subcondition being drained
	candidate  model.ID // unsorted algorithm: ID being duplicate-checked
	dupCheck   int      // unsorted algorithm: EOF-list cursor

	useSorted bool
	statsDone bool

	masquerade string
	checkIt    Iterator

	psum     model.Summary
	psumOK   bool
	psumDone bool

	fixedAcc   *Fixed
	committed  bool
	thawing    bool
	substitute Iterator
}

// New creates an Or shell with room for nHint subconditions.
func New(nHint int, forward bool) *Or {
	if nHint < 0 {
		nHint = 0
	}
	return &Or{
		base:       base{forward: forward, low: model.IDMax, high: 0},
		sub:        make([]subcond, 0, nHint),
		activeHead: nilIdx, activeTail: nilIdx,
		eofHead: nilIdx, eofTail: nilIdx,
		lastID:   model.IDNone,
		resumeID: model.IDNone,
	}
}

// N returns the number of live subconditions.
func (o *Or) N() int { return len(o.sub) }

// AsOr reports whether it is a genuine, unsubstituted Or and returns it.
func AsOr(it Iterator) (*Or, bool) {
	o, ok := it.(*Or)
	if !ok || o.substitute != nil {
		return nil, false
	}
	return o, true
}

// Subcondition returns the i-th sub-iterator. The Or retains ownership.
func (o *Or) Subcondition(i int) Iterator {
	return o.sub[i].it
}

// SetMasquerade installs an alternate frozen SET rendering. The Or then
// serializes as the given cursor text instead of its literal structure;
// Freeze with NoMasquerade suppresses it.
func (o *Or) SetMasquerade(s string) {
	o.masquerade = s
}

// SetCheckDelegate installs an iterator that answers Check faster than a
// linear scan over the subconditions. The Or takes ownership.
func (o *Or) SetCheckDelegate(it Iterator) {
	if o.checkIt != nil {
		_ = o.checkIt.Close()
	}
	o.checkIt = it
}

// TypedLookup is implemented by iterators whose whole output carries one
// type GUID (high-fan-in typed lookups). When every subcondition of an Or
// is such a lookup with the same type, the planner can drop a redundant
// type filter.
type TypedLookup interface {
	TypeGUID() (model.GUID, bool)
}

// VIPType reports the single type GUID shared by all subconditions, if
// every one of them is a typed lookup of the same type.
func (o *Or) VIPType() (model.GUID, bool) {
	if o.substitute != nil || len(o.sub) == 0 {
		return model.GUID{}, false
	}
	var typ model.GUID
	for i := range o.sub {
		tl, ok := o.sub[i].it.(TypedLookup)
		if !ok {
			return model.GUID{}, false
		}
		g, ok := tl.TypeGUID()
		if !ok {
			return model.GUID{}, false
		}
		if i == 0 {
			typ = g
		} else if g != typ {
			return model.GUID{}, false
		}
	}
	return typ, true
}

// widen grows the Or's value window to include a new member's range.
func (o *Or) widen(it Iterator) {
	lo, hi := it.Range()
	if lo < o.low {
		o.low = lo
	}
	if hi > o.high {
		o.high = hi
	}
}

// appendLive adds a subcondition slot, growing the arena in fixed
// increments. Indices stay stable across growth.
func (o *Or) appendLive(it Iterator) {
	if len(o.sub) == cap(o.sub) {
		ns := make([]subcond, len(o.sub), len(o.sub)+subGrowth)
		copy(ns, o.sub)
		o.sub = ns
	}
	o.sub = append(o.sub, subcond{
		it:      it,
		pending: model.IDNone,
		prev:    nilIdx,
		next:    nilIdx,
	})
	o.widen(it)
}

// foldSmall drains a small, cheap sub-iterator into the shared fixed
// accumulator instead of keeping it live, bounding fan-out from many
// point lookups.
func (o *Or) foldSmall(it Iterator) error {
	if o.fixedAcc == nil {
		o.fixedAcc = NewFixed(int(MergeMaxCount), o.forward)
	}
	if err := it.Reset(); err != nil {
		return err
	}
	for {
		id, err := it.Next(nil)
		if errors.Is(err, Done) {
			break
		}
		if err != nil {
			return err
		}
		if err := o.fixedAcc.Add(id); err != nil {
			return err
		}
	}
	o.widen(it)
	return it.Close()
}

// AddSubcondition adds one member to the union. The Or takes ownership of
// sub, even on error.
//
// Nested Ors are spliced in flat, null members are dropped, and members
// whose full output is known to be small and cheap are folded into a
// shared fixed accumulator rather than kept live.
func (o *Or) AddSubcondition(sub Iterator) error {
	if o.committed {
		panic("or: AddSubcondition after CreateCommit")
	}
	switch s := sub.(type) {
	case *Or:
		if s.forward != o.forward {
			return fmt.Errorf("or: direction mismatch splicing %s into %s", s, o)
		}
		if s.substitute != nil {
			return o.AddSubcondition(s.detachSubstitute())
		}
		for i := range s.sub {
			if err := o.AddSubcondition(s.sub[i].it); err != nil {
				s.sub = s.sub[i+1:]
				_ = s.Close()
				return err
			}
		}
		s.sub = nil
		if s.fixedAcc != nil {
			acc := s.fixedAcc
			s.fixedAcc = nil
			_ = s.Close()
			return o.AddSubcondition(acc)
		}
		return s.Close()
	case *Null:
		return s.Close()
	}

	if !o.thawing {
		st := sub.Stats()
		if st.NValid && st.CostValid &&
			st.N <= MergeMaxCount && int64(st.N)*st.NextCost < MergeMaxCost {
			return o.foldSmall(sub)
		}
	}
	o.appendLive(sub)
	return nil
}

// detachSubstitute hands the replacement iterator over to the caller,
// leaving the shell empty.
func (o *Or) detachSubstitute() Iterator {
	s := o.substitute
	o.substitute = nil
	return s
}

// CreateCommit finalizes construction: the fixed accumulator is merged as
// one last subcondition, degenerate shapes collapse (N==0 becomes Null,
// N==1 becomes the sole child), a cheap-enough Or materializes into a
// Fixed small set, and aggregate statistics are inferred when all children
// already have theirs.
//
// The returned iterator is the Or itself, or its substitute after an
// optimization applied; the *Or handle keeps working either way.
func (o *Or) CreateCommit() (Iterator, error) {
	return o.commit(false)
}

func (o *Or) commit(thawing bool) (Iterator, error) {
	if o.committed {
		if o.substitute != nil {
			return o.substitute, nil
		}
		return o, nil
	}
	o.committed = true
	o.thawing = thawing

	if o.fixedAcc != nil {
		acc := o.fixedAcc
		o.fixedAcc = nil
		acc.CreateCommit()
		if acc.Len() > 0 {
			o.appendLive(acc)
		} else {
			_ = acc.Close()
		}
	}

	switch len(o.sub) {
	case 0:
		o.substitute = NewNull(o.forward)
		return o.substitute, nil
	case 1:
		o.substitute = o.sub[0].it
		o.sub = nil
		return o.substitute, nil
	}

	if !thawing {
		if err := o.tryBecomeSmallSet(); err != nil {
			return nil, err
		}
		if o.substitute != nil {
			return o.substitute, nil
		}
	}

	o.computeUseSorted()
	o.inferStatistics()
	if thawing {
		o.refileAll()
	} else {
		o.activateAll()
	}
	if thawing && !o.useSorted && o.resumeID != model.IDNone {
		return nil, fmt.Errorf("%w: unsorted union cannot catch up to a position-only cursor", ErrBadCursor)
	}
	return o, nil
}

// computeUseSorted picks the merge algorithm: the sorted merge requires
// every child to be known sorted; anything less runs the sequential drain
// with duplicate rejection, which is safe either way.
func (o *Or) computeUseSorted() {
	if o.statsDone {
		o.useSorted = o.stats.Sorted
		return
	}
	for i := range o.sub {
		st := o.sub[i].it.Stats()
		if !st.SortedValid || !st.Sorted {
			o.useSorted = false
			return
		}
	}
	o.useSorted = true
}

// inferStatistics aggregates child statistics once every child has a
// complete set. The cardinality sum assumes no overlap between children (a
// documented approximation); the check cost heuristic assumes a membership
// test succeeds halfway down the member list on average.
func (o *Or) inferStatistics() {
	if o.statsDone {
		return
	}
	var (
		n        uint64
		weighted int64
		checkSum int64
		findSum  int64
		costSum  int64
		sorted   = true
	)
	for i := range o.sub {
		st := o.sub[i].it.Stats()
		if !st.NValid || !st.CostValid || !st.SortedValid {
			return
		}
		n += st.N
		weighted += int64(st.N) * st.NextCost
		costSum += st.NextCost
		checkSum += st.CheckCost
		findSum += st.FindCost
		sorted = sorted && st.Sorted
	}

	nextCost := costSum / int64(len(o.sub))
	if n > 0 {
		nextCost = weighted / int64(n)
	}
	checkCost := checkSum / 2
	if o.checkIt != nil {
		if dst := o.checkIt.Stats(); dst.CostValid {
			checkCost = dst.CheckCost
		}
	}

	o.stats = Statistics{
		N:           n,
		NValid:      true,
		NextCost:    nextCost,
		CheckCost:   checkCost,
		FindCost:    findSum,
		CostValid:   true,
		Sorted:      sorted,
		SortedValid: true,
	}
	o.statsDone = true
	if o.lastID == model.IDNone {
		o.useSorted = sorted
	}
}

// tryBecomeSmallSet materializes every subcondition into one Fixed
// iterator when the total work is below the small-set ceilings. Failing
// the ceilings (or missing statistics) is not an error; the Or simply
// stays lazy.
func (o *Or) tryBecomeSmallSet() error {
	var (
		total uint64
		work  int64
	)
	for i := range o.sub {
		st := o.sub[i].it.Stats()
		if !st.NValid || !st.CostValid {
			return nil
		}
		total += st.N
		work += int64(st.N) * st.NextCost
	}
	if total > SmallSetMaxCount || work > SmallSetMaxCost {
		return nil
	}

	f := NewFixed(int(total), o.forward)
	for i := range o.sub {
		it := o.sub[i].it
		if err := it.Reset(); err != nil {
			return err
		}
		for {
			id, err := it.Next(nil)
			if errors.Is(err, Done) {
				break
			}
			if err != nil {
				return err
			}
			if err := f.Add(id); err != nil {
				return err
			}
		}
	}
	f.CreateCommit()

	for i := range o.sub {
		_ = o.sub[i].it.Close()
	}
	o.sub = nil
	o.substitute = f
	return nil
}

// Clone deep-copies the Or at its current logical position. Sub-iterators
// are cloned one by one; a failure tears down every clone made so far. The
// list structure is rebuilt from the copied flags rather than copied
// link-for-link. The check delegate and masquerade belong to the original
// and are deliberately not cloned.
func (o *Or) Clone() (Iterator, error) {
	if o.substitute != nil {
		return o.substitute.Clone()
	}
	if !o.committed {
		return nil, fmt.Errorf("or: Clone before CreateCommit")
	}

	nc := &Or{
		base:       o.base,
		activeHead: nilIdx, activeTail: nilIdx,
		eofHead: nilIdx, eofTail: nilIdx,
		lastID:    o.lastID,
		resumeID:  o.resumeID,
		eof:       o.eof,
		thisOC:    o.thisOC,
		useSorted: o.useSorted,
		statsDone: o.statsDone,
		committed: true,
		psum:      o.psum,
		psumOK:    o.psumOK,
		psumDone:  o.psumDone,
	}
	nc.sub = make([]subcond, len(o.sub))
	for i := range o.sub {
		cit, err := o.sub[i].it.Clone()
		if err != nil {
			for k := 0; k < i; k++ {
				_ = nc.sub[k].it.Close()
			}
			return nil, err
		}
		nc.sub[i] = subcond{
			it:      cit,
			pending: o.sub[i].pending,
			eof:     o.sub[i].eof,
			prev:    nilIdx,
			next:    nilIdx,
		}
	}
	nc.refileAll()
	return nc, nil
}

// Reset rewinds the union and every subcondition to the start.
func (o *Or) Reset() error {
	if o.substitute != nil {
		return o.substitute.Reset()
	}
	for i := range o.sub {
		if err := o.sub[i].it.Reset(); err != nil {
			return err
		}
	}
	o.lastID = model.IDNone
	o.resumeID = model.IDNone
	o.eof = false
	o.state = stateInitial
	o.thisOC = 0
	o.candidate = model.IDNone
	o.activateAll()
	return nil
}

// PrimitiveSummary intersects the subconditions' summaries: a linkage
// stays locked only if every member locks it to the same GUID. The result,
// success or failure, is cached.
func (o *Or) PrimitiveSummary() (model.Summary, bool) {
	if o.substitute != nil {
		return o.substitute.PrimitiveSummary()
	}
	if o.psumDone {
		return o.psum, o.psumOK
	}
	o.psumDone = true
	if len(o.sub) == 0 {
		return model.Summary{}, false
	}
	var acc model.Summary
	for i := range o.sub {
		s, ok := o.sub[i].it.PrimitiveSummary()
		if !ok {
			return model.Summary{}, false
		}
		if i == 0 {
			acc = s
		} else {
			acc.Intersect(&s)
		}
	}
	if acc.Locked == 0 {
		return model.Summary{}, false
	}
	o.psum = acc
	o.psumOK = true
	return o.psum, true
}

// RangeEstimate unions the members' windows and sums their bounds. A
// member without an estimate makes the total unbounded but still widens
// the window by its static range.
func (o *Or) RangeEstimate() (model.RangeEstimate, error) {
	if o.substitute != nil {
		return o.substitute.RangeEstimate()
	}
	est := model.RangeEstimate{Low: o.low, High: o.high}
	for i := range o.sub {
		re, err := o.sub[i].it.RangeEstimate()
		if errors.Is(err, ErrNoEstimate) {
			est.Unbounded = true
			lo, hi := o.sub[i].it.Range()
			est.Union(model.RangeEstimate{Low: lo, High: hi, Unbounded: true})
			continue
		}
		if err != nil {
			return model.RangeEstimate{}, err
		}
		est.Union(re)
	}
	return est, nil
}

// Restrict builds an iterator over only the subconditions compatible with
// an externally imposed summary. The original Or is left untouched;
// compatible members contribute position-fresh clones.
func (o *Or) Restrict(sum *model.Summary) (Iterator, error) {
	if o.substitute != nil {
		return o.substitute.Restrict(sum)
	}
	if sum == nil {
		return nil, ErrUnchanged
	}

	var kept []Iterator
	teardown := func() {
		for _, it := range kept {
			_ = it.Close()
		}
	}
	changed := false
	for i := range o.sub {
		rit, err := o.sub[i].it.Restrict(sum)
		switch {
		case err == nil:
			kept = append(kept, rit)
			changed = true
		case errors.Is(err, ErrUnchanged):
			cl, cerr := o.sub[i].it.Clone()
			if cerr != nil {
				teardown()
				return nil, cerr
			}
			if rerr := cl.Reset(); rerr != nil {
				_ = cl.Close()
				teardown()
				return nil, rerr
			}
			kept = append(kept, cl)
		case errors.Is(err, ErrNullRestriction):
			changed = true
		default:
			teardown()
			return nil, err
		}
	}

	if !changed {
		teardown()
		return nil, ErrUnchanged
	}
	if len(kept) == 0 {
		return nil, ErrNullRestriction
	}
	if len(kept) == 1 {
		return kept[0], nil
	}

	no := New(len(kept), o.forward)
	for _, it := range kept {
		if err := no.AddSubcondition(it); err != nil {
			_ = no.Close()
			return nil, err
		}
	}
	res, err := no.CreateCommit()
	if err != nil {
		_ = no.Close()
		return nil, err
	}
	return res, nil
}

// String describes the union for logs.
func (o *Or) String() string {
	if o.substitute != nil {
		return fmt.Sprintf("or[->%s]", o.substitute)
	}
	return fmt.Sprintf("or[n=%d sorted=%t forward=%t]", len(o.sub), o.useSorted, o.forward)
}

// Close releases every owned sub-iterator, the check delegate, the fixed
// accumulator, and any substitute.
func (o *Or) Close() error {
	var first error
	keep := func(err error) {
		if first == nil && err != nil {
			first = err
		}
	}
	for i := range o.sub {
		keep(o.sub[i].it.Close())
	}
	o.sub = nil
	if o.checkIt != nil {
		keep(o.checkIt.Close())
		o.checkIt = nil
	}
	if o.fixedAcc != nil {
		keep(o.fixedAcc.Close())
		o.fixedAcc = nil
	}
	if o.substitute != nil {
		keep(o.substitute.Close())
		o.substitute = nil
	}
	return first
}
