package iterator

import (
	"errors"
	"fmt"

	"github.com/hupe1980/graphd/model"
)

// Next produces the next ID of the union in direction order. Equal IDs
// held by several subconditions are returned once; all holders advance
// past them in the same step.
func (o *Or) Next(b *Budget) (model.ID, error) {
	if o.substitute != nil {
		return o.substitute.Next(b)
	}
	if !o.committed {
		panic("or: Next before CreateCommit")
	}
	b.Charge(CostCall)
	if o.eof {
		return model.IDNone, Done
	}
	if o.useSorted {
		return o.nextSorted(b)
	}
	return o.nextUnsorted(b)
}

// advanceSub pulls one ID from an empty subcondition and stages or retires
// it. On suspension the staging buffer is flushed first so the active list
// stays consistent across the budget boundary.
func (o *Or) advanceSub(i int, b *Budget) error {
	id, err := o.sub[i].it.Next(b)
	switch {
	case err == nil:
		o.stagePending(i, id)
	case errors.Is(err, Done):
		o.retire(i)
	case errors.Is(err, ErrMore):
		o.state = stateNextSub
		o.resumeSub = i
		o.sortAndRefile()
		return ErrMore
	default:
		o.state = stateInitial
		return err
	}
	return nil
}

func (o *Or) nextSorted(b *Budget) (model.ID, error) {
	switch o.state {
	case stateInitial:
		if o.resumeID != model.IDNone {
			o.state = stateNextCatchUp
			o.resumeSub = 0
			if err := o.catchUp(b); err != nil {
				return model.IDNone, err
			}
		}
	case stateNextCatchUp:
		if err := o.catchUp(b); err != nil {
			return model.IDNone, err
		}
	case stateNextSub:
		i := o.resumeSub
		o.state = stateInitial
		if err := o.advanceSub(i, b); err != nil {
			return model.IDNone, err
		}
	default:
		panic(fmt.Sprintf("or: Next resumed in call state %d", o.state))
	}

	for {
		o.sortAndRefile()
		h := o.activeHead
		if h == nilIdx {
			o.eof = true
			return model.IDNone, Done
		}
		if o.sub[h].pending == model.IDNone {
			if b.Exhausted() {
				// Lists are already consistent; plain re-entry.
				return model.IDNone, ErrMore
			}
			if err := o.advanceSub(h, b); err != nil {
				return model.IDNone, err
			}
			continue
		}
		id := o.sub[h].pending
		for h != nilIdx && o.sub[h].pending == id {
			o.sub[h].pending = model.IDNone
			h = o.sub[h].next
		}
		o.lastID = id
		return id, nil
	}
}

// catchUp fast-forwards every subcondition past resumeID. This is the
// thaw-without-full-state fallback: a cursor that carried only a position
// is caught up to on the first Next after thawing.
func (o *Or) catchUp(b *Budget) error {
	for ; o.resumeSub < len(o.sub); o.resumeSub++ {
		sc := &o.sub[o.resumeSub]
		if sc.eof || sc.pending != model.IDNone {
			continue
		}
		id, err := sc.it.Find(o.resumeID, b)
		switch {
		case err == nil:
			if id != o.resumeID {
				o.stagePending(o.resumeSub, id)
			}
			// An exact hit was already returned before the freeze; the
			// subcondition stays empty and advances past it normally.
		case errors.Is(err, Done):
			o.retire(o.resumeSub)
		case errors.Is(err, ErrMore):
			o.sortAndRefile()
			return ErrMore
		default:
			o.state = stateInitial
			return err
		}
	}
	o.lastID = o.resumeID
	o.resumeID = model.IDNone
	o.state = stateInitial
	return nil
}

// nextUnsorted drains subconditions one at a time. Every candidate ID is
// checked against the already-exhausted subconditions: a hit means the ID
// was produced while that member was being drained, so the candidate is
// rejected and the pull continues. The quadratic look is bounded because
// each member joins the EOF list exactly once.
func (o *Or) nextUnsorted(b *Budget) (model.ID, error) {
	switch o.state {
	case stateInitial, stateUnsortedNext, stateUnsortedDup:
	default:
		panic(fmt.Sprintf("or: Next resumed in call state %d", o.state))
	}
	for {
		if o.state != stateUnsortedDup {
			if o.thisOC >= len(o.sub) {
				o.state = stateInitial
				o.eof = true
				return model.IDNone, Done
			}
			if o.sub[o.thisOC].eof {
				o.thisOC++
				continue
			}
			id, err := o.sub[o.thisOC].it.Next(b)
			switch {
			case errors.Is(err, Done):
				o.retire(o.thisOC)
				o.thisOC++
				o.state = stateInitial
				continue
			case errors.Is(err, ErrMore):
				o.state = stateUnsortedNext
				return model.IDNone, ErrMore
			case err != nil:
				o.state = stateInitial
				return model.IDNone, err
			}
			o.candidate = id
			o.dupCheck = o.eofHead
			o.state = stateUnsortedDup
		}

		rejected := false
		for o.dupCheck != nilIdx {
			dup, err := o.sub[o.dupCheck].it.Check(o.candidate, b)
			if errors.Is(err, ErrMore) {
				return model.IDNone, ErrMore
			}
			if err != nil {
				o.state = stateInitial
				return model.IDNone, err
			}
			if dup {
				rejected = true
				break
			}
			o.dupCheck = o.sub[o.dupCheck].next
		}
		o.state = stateInitial
		if rejected {
			continue
		}
		o.lastID = o.candidate
		return o.candidate, nil
	}
}

// Find repositions the union to the first ID at-or-past id. Precondition:
// the union is statistically known to be sorted; Find on an unsorted
// union is a programmer error.
func (o *Or) Find(id model.ID, b *Budget) (model.ID, error) {
	if o.substitute != nil {
		return o.substitute.Find(id, b)
	}
	if !o.committed {
		panic("or: Find before CreateCommit")
	}
	if !o.useSorted {
		panic("or: Find on an unsorted union")
	}
	b.Charge(CostCall)

	switch o.state {
	case stateFindSub:
		if id != o.findTarget {
			panic("or: Find resumed with a different id")
		}
	case stateInitial:
		if o.lastID == model.IDNone || o.resumeID != model.IDNone ||
			atOrPast(o.forward, o.lastID, id) {
			// Position unknown or already past the target: start over.
			o.lastID = model.IDNone
			o.resumeID = model.IDNone
			o.eof = false
			o.activateAll()
		}
		o.findTarget = id
		o.resumeSub = 0
		o.state = stateFindSub
	default:
		panic(fmt.Sprintf("or: Find entered in call state %d", o.state))
	}

	for ; o.resumeSub < len(o.sub); o.resumeSub++ {
		sc := &o.sub[o.resumeSub]
		if sc.eof {
			continue
		}
		if sc.pending != model.IDNone && atOrPast(o.forward, sc.pending, id) {
			continue
		}
		fid, err := sc.it.Find(id, b)
		switch {
		case err == nil:
			o.stagePending(o.resumeSub, fid)
		case errors.Is(err, Done):
			o.retire(o.resumeSub)
		case errors.Is(err, ErrMore):
			o.sortAndRefile()
			return model.IDNone, ErrMore
		default:
			o.state = stateInitial
			return model.IDNone, err
		}
	}

	o.state = stateInitial
	o.sortAndRefile()
	h := o.activeHead
	if h == nilIdx {
		o.eof = true
		return model.IDNone, Done
	}
	res := o.sub[h].pending
	for h != nilIdx && o.sub[h].pending == res {
		o.sub[h].pending = model.IDNone
		h = o.sub[h].next
	}
	o.lastID = res
	return res, nil
}

// Check tests membership. An installed check delegate answers alone;
// otherwise the subconditions are consulted in order, succeeding on the
// first yes.
func (o *Or) Check(id model.ID, b *Budget) (bool, error) {
	if o.substitute != nil {
		return o.substitute.Check(id, b)
	}
	if !o.committed {
		panic("or: Check before CreateCommit")
	}
	b.Charge(CostCall)

	switch o.state {
	case stateInitial:
		if id < o.low || id >= o.high {
			return false, nil
		}
		if o.checkIt != nil {
			o.state = stateCheckDelegate
		} else {
			o.state = stateCheckSub
			o.resumeSub = 0
		}
	case stateCheckSub, stateCheckDelegate:
	default:
		panic(fmt.Sprintf("or: Check entered in call state %d", o.state))
	}

	if o.state == stateCheckDelegate {
		ok, err := o.checkIt.Check(id, b)
		if errors.Is(err, ErrMore) {
			return false, ErrMore
		}
		o.state = stateInitial
		return ok, err
	}

	for ; o.resumeSub < len(o.sub); o.resumeSub++ {
		ok, err := o.sub[o.resumeSub].it.Check(id, b)
		if errors.Is(err, ErrMore) {
			return false, ErrMore
		}
		if err != nil {
			o.state = stateInitial
			return false, err
		}
		if ok {
			o.state = stateInitial
			return true, nil
		}
	}
	o.state = stateInitial
	return false, nil
}

// Statistics drives every subcondition's statistics to completion, then
// infers the union's own aggregate. Before iteration has started, a union
// that turns out to be cheap enough materializes itself into a fixed small
// set on the spot.
func (o *Or) Statistics(b *Budget) (Statistics, error) {
	if o.substitute != nil {
		return o.substitute.Statistics(b)
	}
	if !o.committed {
		panic("or: Statistics before CreateCommit")
	}
	b.Charge(CostCall)
	if o.statsDone {
		return o.stats, nil
	}

	switch o.state {
	case stateStatsSub:
	case stateInitial:
		o.state = stateStatsSub
		o.resumeSub = 0
	default:
		panic(fmt.Sprintf("or: Statistics entered in call state %d", o.state))
	}

	for ; o.resumeSub < len(o.sub); o.resumeSub++ {
		_, err := o.sub[o.resumeSub].it.Statistics(b)
		if errors.Is(err, ErrMore) {
			return o.stats, ErrMore
		}
		if err != nil {
			o.state = stateInitial
			return o.stats, err
		}
	}
	o.state = stateInitial
	o.inferStatistics()

	if !o.thawing && o.lastID == model.IDNone && o.resumeID == model.IDNone {
		if err := o.tryBecomeSmallSet(); err != nil {
			return o.stats, err
		}
		if o.substitute != nil {
			return o.substitute.Statistics(b)
		}
	}
	return o.stats, nil
}
