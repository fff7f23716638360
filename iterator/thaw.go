package iterator

import (
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/graphd/cursor"
)

// ThawContext carries the environment a thaw runs in.
type ThawContext struct {
	// Source is the storage handle storage-backed variants resolve
	// against. Its concrete type belongs to the registering package
	// (e.g. *idstore.Store for "gmap" cursors).
	Source any

	// Deadline bounds how long the thaw may run; zero means no deadline.
	Deadline time.Time
}

// Expired reports whether the thaw deadline has passed.
func (tc *ThawContext) Expired() bool {
	return tc != nil && !tc.Deadline.IsZero() && time.Now().After(tc.Deadline)
}

// ThawFunc reconstructs an iterator of one type from its cursor
// components. set has the type tag already stripped; pos and state may be
// empty when the cursor carried only the SET component.
type ThawFunc func(set, pos, state string, tc *ThawContext) (Iterator, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]ThawFunc{}
)

// RegisterType installs a thaw function for a cursor type tag. Built-in
// tags are "null", "fixed" and "or"; the idstore package registers "gmap".
// Registering an already-registered tag panics: tags are a persistent
// format namespace, silent replacement would mask a collision.
func RegisterType(tag string, fn ThawFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[tag]; dup {
		panic(fmt.Sprintf("iterator: duplicate cursor type tag %q", tag))
	}
	registry[tag] = fn
}

func init() {
	RegisterType("null", thawNull)
	RegisterType("fixed", thawFixed)
	RegisterType("or", thawOr)
}

// Thaw reconstructs an iterator from a frozen cursor. The cursor must
// carry at least the SET component; POSITION and STATE are restored when
// present. Any parse failure destroys partial work and returns an error
// satisfying errors.Is(err, ErrBadCursor).
func Thaw(s string, tc *ThawContext) (Iterator, error) {
	if tc.Expired() {
		return nil, cursor.ErrDeadline
	}
	comps := cursor.SplitComponents(s)
	if len(comps) > 3 {
		return nil, fmt.Errorf("%w: %d components in %q", ErrBadCursor, len(comps), s)
	}
	var set, pos, state string
	set = comps[0]
	if len(comps) > 1 {
		pos = comps[1]
	}
	if len(comps) > 2 {
		state = comps[2]
	}

	tag, rest := cursor.TypeTag(set)
	if tag == "" {
		return nil, fmt.Errorf("%w: missing type tag in %q", ErrBadCursor, s)
	}
	return thawTagged(tag, rest, pos, state, tc)
}

// thawTagged dispatches one already-split cursor to its type's thaw
// function. The or engine uses it for nested subcondition cursors.
func thawTagged(tag, set, pos, state string, tc *ThawContext) (Iterator, error) {
	registryMu.RLock()
	fn, ok := registry[tag]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown iterator type %q", ErrBadCursor, tag)
	}
	it, err := fn(set, pos, state, tc)
	if err != nil {
		return nil, fmt.Errorf("thaw %q: %w", tag, err)
	}
	return it, nil
}

// FreezeString renders a complete cursor for an iterator.
func FreezeString(it Iterator) (string, error) {
	var buf cursor.Buffer
	if err := it.Freeze(&buf, All); err != nil {
		return "", err
	}
	return buf.String(), nil
}
