package model

import (
	"fmt"
	"math/bits"
	"strconv"
)

// ID is the local identifier of a primitive within a database.
// It is dense, assigned in write order, and limited to 34 bits so that
// five-byte on-disk encodings stay possible.
type ID uint64

const (
	// IDBits is the number of significant bits in an ID.
	IDBits = 34

	// IDMax is the exclusive upper bound for valid IDs. It is also used as
	// the "high" end of an unbounded ID range.
	IDMax ID = 1 << IDBits

	// IDNone is the distinguished non-ID. Iterator positions use it to mean
	// "no pending value"; cursors encode it as "-".
	IDNone ID = ^ID(0)
)

// Valid reports whether the ID is a real primitive ID.
func (id ID) Valid() bool {
	return id < IDMax
}

// String formats the ID, rendering IDNone as "-".
func (id ID) String() string {
	if id == IDNone {
		return "-"
	}
	return fmt.Sprintf("%d", uint64(id))
}

// GUID is the global identifier of a primitive version.
type GUID struct {
	Hi uint64
	Lo uint64
}

// GUIDNil is the zero GUID, meaning "link not set".
var GUIDNil = GUID{}

// IsNil reports whether the GUID is unset.
func (g GUID) IsNil() bool {
	return g.Hi == 0 && g.Lo == 0
}

// String returns the canonical 32-digit hex form.
func (g GUID) String() string {
	return fmt.Sprintf("%016x%016x", g.Hi, g.Lo)
}

// ParseGUID parses the canonical 32-digit hex form.
func ParseGUID(s string) (GUID, error) {
	if len(s) != 32 {
		return GUID{}, fmt.Errorf("model: guid %q: want 32 hex digits, have %d", s, len(s))
	}
	hi, err := strconv.ParseUint(s[:16], 16, 64)
	if err != nil {
		return GUID{}, fmt.Errorf("model: guid %q: %w", s, err)
	}
	lo, err := strconv.ParseUint(s[16:], 16, 64)
	if err != nil {
		return GUID{}, fmt.Errorf("model: guid %q: %w", s, err)
	}
	return GUID{Hi: hi, Lo: lo}, nil
}

// Compare orders GUIDs lexicographically on (Hi, Lo).
func (g GUID) Compare(other GUID) int {
	switch {
	case g.Hi < other.Hi:
		return -1
	case g.Hi > other.Hi:
		return 1
	case g.Lo < other.Lo:
		return -1
	case g.Lo > other.Lo:
		return 1
	default:
		return 0
	}
}

// Linkage identifies one of the four link slots of a primitive.
type Linkage uint8

const (
	// LinkageTypeGUID is the type link.
	LinkageTypeGUID Linkage = iota
	// LinkageRight is the right endpoint link.
	LinkageRight
	// LinkageLeft is the left endpoint link.
	LinkageLeft
	// LinkageScope is the scope (creator) link.
	LinkageScope

	// LinkageCount is the number of linkages.
	LinkageCount
)

var linkageNames = [LinkageCount]string{"typeguid", "right", "left", "scope"}

// String returns the linkage name used in logs and cursor renderings.
func (l Linkage) String() string {
	if l < LinkageCount {
		return linkageNames[l]
	}
	return fmt.Sprintf("linkage(%d)", uint8(l))
}

// ParseLinkage is the inverse of Linkage.String.
func ParseLinkage(s string) (Linkage, error) {
	for l, name := range linkageNames {
		if s == name {
			return Linkage(l), nil
		}
	}
	return 0, fmt.Errorf("model: unknown linkage %q", s)
}

// Summary describes linkage constraints that all primitives produced by an
// iterator are known to satisfy. A linkage is "locked" when every produced
// primitive carries exactly the recorded GUID in that slot.
//
// Summaries flow from iterators to the query planner, which uses them to
// drop redundant filters (e.g. a type check when every candidate already is
// of that type).
type Summary struct {
	// GUIDs holds the locked value per linkage. Only meaningful for
	// linkages whose bit is set in Locked.
	GUIDs [LinkageCount]GUID

	// Locked is a bitmask over linkages; bit l set means GUIDs[l] is
	// guaranteed.
	Locked uint8

	// Complete indicates the producing iterator returns all primitives
	// matching the locked linkages, not merely a subset.
	Complete bool
}

// IsLocked reports whether the given linkage is constrained.
func (s *Summary) IsLocked(l Linkage) bool {
	return s.Locked&(1<<l) != 0
}

// Lock constrains a linkage to the given GUID.
func (s *Summary) Lock(l Linkage, g GUID) {
	s.GUIDs[l] = g
	s.Locked |= 1 << l
}

// Unlock removes the constraint on a linkage.
func (s *Summary) Unlock(l Linkage) {
	s.Locked &^= 1 << l
	s.GUIDs[l] = GUIDNil
}

// LockedCount returns the number of constrained linkages.
func (s *Summary) LockedCount() int {
	return bits.OnesCount8(s.Locked)
}

// Compatible reports whether a primitive set satisfying s could also satisfy
// the externally imposed constraint other: every linkage locked in both must
// carry the same GUID.
func (s *Summary) Compatible(other *Summary) bool {
	common := s.Locked & other.Locked
	for l := Linkage(0); l < LinkageCount; l++ {
		if common&(1<<l) == 0 {
			continue
		}
		if s.GUIDs[l] != other.GUIDs[l] {
			return false
		}
	}
	return true
}

// Intersect merges another producer's summary into s, unlocking every
// linkage the two disagree on. The result constrains the union of the two
// primitive sets.
func (s *Summary) Intersect(other *Summary) {
	for l := Linkage(0); l < LinkageCount; l++ {
		if !s.IsLocked(l) {
			continue
		}
		if !other.IsLocked(l) || s.GUIDs[l] != other.GUIDs[l] {
			s.Unlock(l)
		}
	}
	s.Complete = s.Complete && other.Complete
}

// String renders the locked linkages, e.g. "typeguid=00..42 left=00..17".
func (s *Summary) String() string {
	if s.Locked == 0 {
		return "(unconstrained)"
	}
	out := ""
	for l := Linkage(0); l < LinkageCount; l++ {
		if !s.IsLocked(l) {
			continue
		}
		if out != "" {
			out += " "
		}
		out += fmt.Sprintf("%s=%s", l, s.GUIDs[l])
	}
	return out
}

// RangeEstimate bounds the output of an iterator: all produced IDs fall in
// [Low, High), and at most NMax are produced unless Unbounded is set.
type RangeEstimate struct {
	Low  ID
	High ID

	// NMax is an upper bound on the number of produced IDs. Only
	// meaningful when Unbounded is false.
	NMax uint64

	// Unbounded indicates no usable cardinality bound is known.
	Unbounded bool
}

// Union widens the estimate to cover another producer's output.
func (r *RangeEstimate) Union(other RangeEstimate) {
	if other.Low < r.Low {
		r.Low = other.Low
	}
	if other.High > r.High {
		r.High = other.High
	}
	if other.Unbounded {
		r.Unbounded = true
	}
	if !r.Unbounded {
		r.NMax += other.NMax
	}
}
