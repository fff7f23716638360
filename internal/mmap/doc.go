// Package mmap provides read-only memory-mapped file access.
//
// # Overview
//
// Memory mapping gives zero-copy access to file contents: source files
// holding millions of IDs are served straight from the page cache, and a
// loaded store costs no heap beyond the mapping bookkeeping.
//
// # Usage
//
//	m, err := mmap.Open("source.gmap")
//	if err != nil { ... }
//	defer m.Close()
//
//	data := m.Bytes()                  // zero-copy view of the file
//	region, _ := m.Region(off, size)   // bounded sub-view
//	m.Advise(mmap.AccessRandom)        // kernel access hint
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2), access hints via madvise(2)
//   - Windows: CreateFileMapping/MapViewOfFile; Advise is a no-op
//
// # Thread Safety
//
// Mapping and Region are safe for concurrent reads. Close is idempotent.
// Callers must not touch a Bytes() slice after Close returns.
package mmap
