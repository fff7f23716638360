package idstore

import (
	"fmt"

	"github.com/hupe1980/graphd/model"
)

// Source names one ID array in the store: the set of primitives that carry
// GUID in the given linkage slot.
type Source struct {
	Linkage model.Linkage
	GUID    model.GUID
}

// String renders the source the way cursors and file names do,
// e.g. "left-00000000000000000000000000000017".
func (s Source) String() string {
	return fmt.Sprintf("%s-%s", s.Linkage, s.GUID)
}

// ParseSource parses the "linkage:guidhex" form used inside cursors.
func ParseSource(linkage, guid string) (Source, error) {
	l, err := model.ParseLinkage(linkage)
	if err != nil {
		return Source{}, err
	}
	g, err := model.ParseGUID(guid)
	if err != nil {
		return Source{}, err
	}
	return Source{Linkage: l, GUID: g}, nil
}
