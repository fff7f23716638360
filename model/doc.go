// Package model defines core types used throughout graphd.
//
// # Identity Types
//
//   - ID: Local, dense identifier of a primitive (34-bit, uint64-backed)
//   - GUID: Globally unique identifier of a primitive version
//   - Linkage: One of the four link slots of a primitive (typeguid,
//     left, right, scope)
//
// # Planner Types
//
//   - Summary: Per-linkage GUID constraints shared by a set of primitives
//   - RangeEstimate: A [Low, High) window plus an upper bound on cardinality
//
// IDs are dense and strictly increasing in write order; the highest
// representable value, IDMax, doubles as the exclusive upper bound of every
// ID range. IDNone is the distinguished "no ID" marker used by iterator
// positions and cursor encodings.
package model
