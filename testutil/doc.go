// Package testutil provides testing utilities for graphd.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded, thread-safe RNG plus helpers for generating
// primitive-ID streams and computing ground-truth merge results.
//
// # ID Stream Generation
//
//	rng := testutil.NewRNG(seed)
//	ids := rng.SortedIDs(1000, 1<<20)        // unique, ascending
//	runs := rng.ClusteredIDs(1000, 16, 256)  // consecutive runs with gaps
//
// # Ground Truth
//
//	want := testutil.MergeSorted(a, b, c)
package testutil
