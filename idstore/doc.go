// Package idstore holds the per-linkage ID arrays a graph database keeps
// for each GUID it has seen: "all primitives whose left is G", "all
// primitives of type T", and so on. Each (linkage, GUID) pair is a source:
// an ascending array of primitive IDs, appended in write order.
//
// Sources are served to the query layer as iterators. A source iterator is
// sorted, supports cheap positioning, knows its exact cardinality, and
// freezes to a "gmap:" cursor that a later request thaws against the same
// store.
//
// Three backings cover the size spectrum: a plain slice for small sources,
// a roaring bitmap for large dense ones, and a memory-mapped file for
// sources persisted to disk.
package idstore
