// Package fs provides the filesystem seam for source directories.
//
// Two interfaces:
//
//   - [File]: an open file with read/write/sync capabilities
//   - [FileSystem]: filesystem operations (open, remove, rename, ...)
//
// # Implementations
//
//   - [LocalFS]: production implementation over the os package
//   - [FaultyFS]: fault injection for flush and snapshot failure tests
//
// # Usage
//
// Production code uses fs.Default (which is [LocalFS]):
//
//	file, err := fs.Default.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
//
// Tests inject [FaultyFS] to make a specific source file fail mid-write:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule(".gmap", fs.Fault{FailAfterBytes: 1024})
//	// inject ffs via graphd.WithFileSystem / idstore.WithFileSystem
//
// # Design Notes
//
// This package intentionally does NOT take context.Context. Local
// filesystem operations are fast and non-interruptible at the syscall
// level; cancellation lives one layer up. Slow remote storage goes
// through [blobstore.Blob], which is context-aware.
package fs
