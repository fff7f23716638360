package iterator

import (
	"fmt"
	"strings"

	"github.com/hupe1980/graphd/cursor"
	"github.com/hupe1980/graphd/model"
)

// Freeze renders the union's cursor.
//
//	SET       or:[~]N:(sub-set)(sub-set)...  |  or:(masquerade)
//	POSITION  -  |  $  |  last-id[;resume-id]
//	STATE     (mark.sub-pos/sub-state)...:thisOC[:chk:nxt+fnd:n]
//
// mark is "$" for an exhausted subcondition, "-" for an empty one, and the
// pending ID otherwise. A deadline on buf aborts long renderings with
// cursor.ErrDeadline; the caller retries later.
func (o *Or) Freeze(buf *cursor.Buffer, parts Parts) error {
	if o.substitute != nil {
		return o.substitute.Freeze(buf, parts)
	}
	first := true
	sep := func() {
		if !first {
			buf.WriteChar('/')
		}
		first = false
	}

	if parts&Set != 0 {
		sep()
		buf.WriteString("or:")
		if o.masquerade != "" && parts&NoMasquerade == 0 {
			buf.WriteChar('(')
			buf.WriteString(o.masquerade)
			buf.WriteChar(')')
		} else {
			buf.WriteString(o.directionTag())
			buf.WriteUint(uint64(len(o.sub)))
			buf.WriteChar(':')
			for i := range o.sub {
				if buf.Expired() {
					return cursor.ErrDeadline
				}
				buf.WriteChar('(')
				if err := o.sub[i].it.Freeze(buf, Set); err != nil {
					return err
				}
				buf.WriteChar(')')
			}
		}
	}

	if parts&Position != 0 {
		sep()
		switch {
		case o.eof:
			buf.WriteChar('$')
		default:
			buf.WriteID(o.lastID)
			if o.resumeID != model.IDNone {
				buf.WriteChar(';')
				buf.WriteID(o.resumeID)
			}
		}
	}

	if parts&State != 0 {
		sep()
		for i := range o.sub {
			if buf.Expired() {
				return cursor.ErrDeadline
			}
			sc := &o.sub[i]
			buf.WriteChar('(')
			if sc.eof {
				buf.WriteChar('$')
			} else {
				buf.WriteID(sc.pending)
			}
			buf.WriteChar('.')
			if err := sc.it.Freeze(buf, Position|State); err != nil {
				return err
			}
			buf.WriteChar(')')
		}
		buf.WriteChar(':')
		buf.WriteInt(int64(o.thisOC))
		if o.statsDone {
			buf.WriteChar(':')
			buf.WriteInt(o.stats.CheckCost)
			buf.WriteChar(':')
			buf.WriteInt(o.stats.NextCost)
			buf.WriteChar('+')
			buf.WriteInt(o.stats.FindCost)
			buf.WriteChar(':')
			buf.WriteUint(o.stats.N)
		}
	}
	return nil
}

// orSubState is one parsed "(mark.sub-pos/sub-state)" tuple.
type orSubState struct {
	eof     bool
	pending model.ID
	pos     string
	state   string
}

func thawOr(set, pos, state string, tc *ThawContext) (Iterator, error) {
	sc := cursor.NewScanner(set)

	// A masquerade renders the whole SET as somebody else's cursor; hand
	// the outer position and state through to that form's own thaw.
	if sc.Peek() == '(' {
		masq, err := sc.ReadParen()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadCursor, err)
		}
		if !sc.EOF() {
			return nil, fmt.Errorf("%w: trailing text after masquerade in %q", ErrBadCursor, set)
		}
		full := masq
		if pos != "" || state != "" {
			full += "/" + pos
		}
		if state != "" {
			full += "/" + state
		}
		return Thaw(full, tc)
	}

	forward := !sc.Accept("~")
	n, err := sc.ReadUint()
	if err != nil {
		return nil, fmt.Errorf("%w: subcondition count: %v", ErrBadCursor, err)
	}
	if err := sc.Expect(":"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCursor, err)
	}
	subsets := make([]string, 0, n)
	for sc.Peek() == '(' {
		body, err := sc.ReadParen()
		if err != nil {
			return nil, fmt.Errorf("%w: subcondition set: %v", ErrBadCursor, err)
		}
		subsets = append(subsets, body)
	}
	if !sc.EOF() {
		return nil, fmt.Errorf("%w: trailing text in or set %q", ErrBadCursor, set)
	}
	if uint64(len(subsets)) != n {
		return nil, fmt.Errorf("%w: expected %d subconditions, found %d", ErrBadCursor, n, len(subsets))
	}

	subStates, thisOC, stats, err := parseOrState(state, n)
	if err != nil {
		return nil, err
	}

	o := New(int(n), forward)
	destroy := func() { _ = o.Close() }

	for i, subset := range subsets {
		if tc.Expired() {
			destroy()
			return nil, cursor.ErrDeadline
		}
		var subPos, subState string
		if subStates != nil {
			subPos, subState = subStates[i].pos, subStates[i].state
		}
		tag, rest := cursor.TypeTag(subset)
		it, err := thawTagged(tag, rest, subPos, subState, tc)
		if err != nil {
			destroy()
			return nil, err
		}
		// Thawing bypasses the folding optimizations: the frozen state
		// encodes exact per-subcondition progress that folding would
		// discard, and member order must survive round trips.
		o.appendLive(it)
		if subStates != nil {
			o.sub[i].eof = subStates[i].eof
			o.sub[i].pending = subStates[i].pending
		}
	}

	if pos != "" {
		psc := cursor.NewScanner(pos)
		if psc.Accept("$") {
			o.eof = true
		} else {
			last, err := psc.ReadID()
			if err != nil {
				destroy()
				return nil, fmt.Errorf("%w: position: %v", ErrBadCursor, err)
			}
			o.lastID = last
			if psc.Accept(";") {
				res, err := psc.ReadID()
				if err != nil {
					destroy()
					return nil, fmt.Errorf("%w: resume id: %v", ErrBadCursor, err)
				}
				o.resumeID = res
			}
		}
		if !psc.EOF() {
			destroy()
			return nil, fmt.Errorf("%w: trailing text in position %q", ErrBadCursor, pos)
		}
	}

	if subStates != nil {
		o.thisOC = thisOC
		if stats != nil {
			// Sortedness is not part of the cursor; it is re-derived
			// from the reconstructed members.
			sorted := true
			for i := range o.sub {
				cst := o.sub[i].it.Stats()
				sorted = sorted && cst.SortedValid && cst.Sorted
			}
			stats.Sorted = sorted
			o.stats = *stats
			o.statsDone = true
		}
	} else if o.lastID != model.IDNone && !o.eof {
		// Position survived but per-subcondition state did not (an older,
		// shorter cursor): catch up past the last returned ID on the
		// first Next.
		o.resumeID = o.lastID
		o.lastID = model.IDNone
	}

	res, err := o.commit(true)
	if err != nil {
		destroy()
		return nil, err
	}
	return res, nil
}

// parseOrState parses the STATE component. A missing component is
// tolerated (cursors may carry SET and POSITION only); anything present
// must parse completely.
func parseOrState(state string, n uint64) ([]orSubState, int, *Statistics, error) {
	if state == "" {
		return nil, 0, nil, nil
	}
	subStates := make([]orSubState, 0, n)
	sc := cursor.NewScanner(state)
	for sc.Peek() == '(' {
		body, err := sc.ReadParen()
		if err != nil {
			return nil, 0, nil, fmt.Errorf("%w: subcondition state: %v", ErrBadCursor, err)
		}
		dot := strings.IndexByte(body, '.')
		if dot < 0 {
			return nil, 0, nil, fmt.Errorf("%w: subcondition state %q lacks a mark", ErrBadCursor, body)
		}
		var ss orSubState
		mark, rest := body[:dot], body[dot+1:]
		switch mark {
		case "$":
			ss.eof = true
			ss.pending = model.IDNone
		case "-":
			ss.pending = model.IDNone
		default:
			msc := cursor.NewScanner(mark)
			id, err := msc.ReadID()
			if err != nil || !msc.EOF() {
				return nil, 0, nil, fmt.Errorf("%w: subcondition mark %q", ErrBadCursor, mark)
			}
			ss.pending = id
		}
		comps := cursor.SplitComponents(rest)
		ss.pos = comps[0]
		if len(comps) > 1 {
			ss.state = comps[1]
		}
		if len(comps) > 2 {
			return nil, 0, nil, fmt.Errorf("%w: subcondition state %q has %d components", ErrBadCursor, body, len(comps))
		}
		subStates = append(subStates, ss)
	}
	if uint64(len(subStates)) != n {
		return nil, 0, nil, fmt.Errorf("%w: expected %d subcondition states, found %d", ErrBadCursor, n, len(subStates))
	}

	if err := sc.Expect(":"); err != nil {
		return nil, 0, nil, fmt.Errorf("%w: %v", ErrBadCursor, err)
	}
	oc, err := sc.ReadUint()
	if err != nil || oc > n {
		return nil, 0, nil, fmt.Errorf("%w: round-robin cursor in %q", ErrBadCursor, state)
	}

	var stats *Statistics
	if sc.Accept(":") {
		var st Statistics
		chk, err := sc.ReadUint()
		if err != nil {
			return nil, 0, nil, fmt.Errorf("%w: check cost: %v", ErrBadCursor, err)
		}
		if err := sc.Expect(":"); err != nil {
			return nil, 0, nil, fmt.Errorf("%w: %v", ErrBadCursor, err)
		}
		nxt, err := sc.ReadUint()
		if err != nil {
			return nil, 0, nil, fmt.Errorf("%w: next cost: %v", ErrBadCursor, err)
		}
		if sc.Accept("+") {
			fnd, err := sc.ReadUint()
			if err != nil {
				return nil, 0, nil, fmt.Errorf("%w: find cost: %v", ErrBadCursor, err)
			}
			st.FindCost = int64(fnd)
		}
		if err := sc.Expect(":"); err != nil {
			return nil, 0, nil, fmt.Errorf("%w: %v", ErrBadCursor, err)
		}
		cnt, err := sc.ReadUint()
		if err != nil {
			return nil, 0, nil, fmt.Errorf("%w: cardinality: %v", ErrBadCursor, err)
		}
		st.CheckCost = int64(chk)
		st.NextCost = int64(nxt)
		st.N = cnt
		st.NValid = true
		st.CostValid = true
		st.SortedValid = true
		stats = &st
	}
	if !sc.EOF() {
		return nil, 0, nil, fmt.Errorf("%w: trailing text in state %q", ErrBadCursor, state)
	}
	return subStates, int(oc), stats, nil
}
