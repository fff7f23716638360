// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	client := s3.NewFromConfig(cfg)
//	store := s3blob.NewStore(client, "my-bucket", "snapshots/")
//
//	err := db.Snapshot(ctx, store, "snap-001")
//
// # Features
//
//   - Range reads for efficient partial fetches
//   - Multipart uploads with CRC32C checksums for large snapshot archives
//   - Conditional writes (PutIfNotExists) to guard manifests against
//     concurrent writers
//   - DynamoDB-backed commit log (DDBCommitStore) for atomic LATEST
//     snapshot pointer updates
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
