// Package iterator implements graphd's lazy ID-stream iterators.
//
// An Iterator produces primitive IDs under a cooperative, budget-metered
// execution model: every operation takes a *Budget, and when the budget
// runs out mid-operation the iterator saves its position and returns
// ErrMore. Calling again with a fresh budget resumes exactly where the
// previous call stopped.
//
// # Variants
//
//   - Null: the always-empty iterator
//   - Fixed: a materialized, pre-sorted small set of IDs
//   - Or: the composite union engine. It merges N sub-iterators into one
//     deduplicated stream (sorted merge when all children are sorted,
//     sequential drain with duplicate rejection otherwise)
//
// Storage-backed variants (the "gmap" source iterator) live in the idstore
// package and register themselves with this package's thaw registry.
//
// # Freeze / Thaw
//
// Any iterator can serialize its identity, position and resumption state
// into a textual cursor (Freeze) and be reconstructed from it later (Thaw),
// including across process restarts. See the cursor package for the
// component grammar.
package iterator
