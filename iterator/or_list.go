package iterator

import (
	"sort"

	"github.com/hupe1980/graphd/model"
)

// nilIdx terminates the intrusive subcondition lists.
const nilIdx = -1

// whereList records which list a subcondition currently sits in. Every
// subcondition is in exactly one of active, eof or staged at all times
// once the Or is committed.
type whereList uint8

const (
	inNone whereList = iota
	inActive
	inEOF
	inStaged
)

// subcond is one sub-iterator slot. List membership is expressed with
// indices into the owning Or's sub slice, never pointers, so the slice can
// be reallocated and clones can copy-then-relink without fixups.
type subcond struct {
	it      Iterator
	pending model.ID // produced but not yet consumed; IDNone if none
	eof     bool
	prev    int
	next    int
	where   whereList
}

// subLess orders subconditions for the active list: subconditions without
// a pending ID sort to the front, the rest ascend (descend, backward) by
// pending ID. Equal keys tie-break on index for stability.
func (o *Or) subLess(a, b int) bool {
	pa, pb := o.sub[a].pending, o.sub[b].pending
	switch {
	case pa == model.IDNone && pb == model.IDNone:
		return a < b
	case pa == model.IDNone:
		return true
	case pb == model.IDNone:
		return false
	case pa == pb:
		return a < b
	default:
		return inOrder(o.forward, pa, pb)
	}
}

func (o *Or) activeAppend(i int) {
	sc := &o.sub[i]
	sc.where = inActive
	sc.next = nilIdx
	sc.prev = o.activeTail
	if o.activeTail != nilIdx {
		o.sub[o.activeTail].next = i
	} else {
		o.activeHead = i
	}
	o.activeTail = i
}

// activeInsertBefore links i in front of j, which must be active.
func (o *Or) activeInsertBefore(i, j int) {
	sc := &o.sub[i]
	sc.where = inActive
	sc.next = j
	sc.prev = o.sub[j].prev
	if sc.prev != nilIdx {
		o.sub[sc.prev].next = i
	} else {
		o.activeHead = i
	}
	o.sub[j].prev = i
}

func (o *Or) activeRemove(i int) {
	sc := &o.sub[i]
	if sc.prev != nilIdx {
		o.sub[sc.prev].next = sc.next
	} else {
		o.activeHead = sc.next
	}
	if sc.next != nilIdx {
		o.sub[sc.next].prev = sc.prev
	} else {
		o.activeTail = sc.prev
	}
	sc.prev, sc.next = nilIdx, nilIdx
	sc.where = inNone
}

func (o *Or) eofAppend(i int) {
	sc := &o.sub[i]
	sc.where = inEOF
	sc.next = nilIdx
	sc.prev = o.eofTail
	if o.eofTail != nilIdx {
		o.sub[o.eofTail].next = i
	} else {
		o.eofHead = i
	}
	o.eofTail = i
}

// unstage drops i from the staging buffer.
func (o *Or) unstage(i int) {
	for k, s := range o.staged {
		if s == i {
			o.staged = append(o.staged[:k], o.staged[k+1:]...)
			return
		}
	}
}

// retire moves a subcondition to the EOF list. O(1) from the active list.
func (o *Or) retire(i int) {
	sc := &o.sub[i]
	switch sc.where {
	case inActive:
		o.activeRemove(i)
	case inStaged:
		o.unstage(i)
	case inEOF:
		return
	}
	sc.eof = true
	sc.pending = model.IDNone
	o.eofAppend(i)
}

// stagePending records a freshly produced ID and parks the subcondition in
// the staging buffer. Reinsertion into the active list is deferred so that
// several updates can be refiled in one sorted pass.
func (o *Or) stagePending(i int, id model.ID) {
	sc := &o.sub[i]
	if sc.where == inStaged {
		sc.pending = id
		return
	}
	if sc.where == inActive {
		o.activeRemove(i)
	}
	sc.pending = id
	sc.where = inStaged
	if o.staged == nil {
		o.staged = make([]int, 0, len(o.sub))
	}
	o.staged = append(o.staged, i)
}

// sortAndRefile merges the staged subconditions back into the active
// chain. Staged entries are sorted first; insertions cluster near the
// chain's ends after a partial sweep, so elements at-or-past the current
// tail append in O(1) and the rest merge in a single forward scan that
// never restarts.
//
// Every suspend point flushes through here first: the active list is
// always consistent when a budget signal escapes.
func (o *Or) sortAndRefile() {
	if len(o.staged) == 0 {
		return
	}
	sort.Slice(o.staged, func(x, y int) bool {
		return o.subLess(o.staged[x], o.staged[y])
	})
	finger := o.activeHead
	for _, i := range o.staged {
		o.sub[i].where = inNone
		if o.activeTail == nilIdx || !o.subLess(i, o.activeTail) {
			o.activeAppend(i)
			continue
		}
		for finger != nilIdx && o.subLess(finger, i) {
			finger = o.sub[finger].next
		}
		// finger is valid here: i sorts before the tail, so some active
		// element is not less than i.
		o.activeInsertBefore(i, finger)
	}
	o.staged = o.staged[:0]
}

// activateAll rebuilds the active list with every subcondition empty and
// live, in array order. Used on reset and on first commit.
func (o *Or) activateAll() {
	o.activeHead, o.activeTail = nilIdx, nilIdx
	o.eofHead, o.eofTail = nilIdx, nilIdx
	o.staged = o.staged[:0]
	for i := range o.sub {
		sc := &o.sub[i]
		sc.pending = model.IDNone
		sc.eof = false
		sc.prev, sc.next = nilIdx, nilIdx
		sc.where = inNone
	}
	for i := range o.sub {
		o.activeAppend(i)
	}
}

// refileAll rebuilds both lists from the subconditions' recorded pending
// and eof flags. Used after clone and thaw, where the flags are correct
// but the link structure is not.
func (o *Or) refileAll() {
	o.activeHead, o.activeTail = nilIdx, nilIdx
	o.eofHead, o.eofTail = nilIdx, nilIdx
	o.staged = o.staged[:0]
	for i := range o.sub {
		sc := &o.sub[i]
		sc.prev, sc.next = nilIdx, nilIdx
		sc.where = inNone
	}
	for i := range o.sub {
		if o.sub[i].eof {
			o.eofAppend(i)
		} else {
			o.stagePending(i, o.sub[i].pending)
		}
	}
	o.sortAndRefile()
}
