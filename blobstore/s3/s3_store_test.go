package s3

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hupe1980/graphd/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIntegrationS3Store runs against a real bucket named in S3_BUCKET.
// Each run writes under its own timestamped prefix so parallel CI jobs
// cannot collide.
func TestIntegrationS3Store(t *testing.T) {
	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		t.Skip("S3_BUCKET not set")
	}

	ctx := context.Background()
	cfg, err := config.LoadDefaultConfig(ctx)
	require.NoError(t, err)

	prefix := fmt.Sprintf("graphd-test-%d/", time.Now().UnixNano())
	store := NewStore(s3.NewFromConfig(cfg), bucket, prefix)

	// Roughly the size of a flushed source file with a few hundred
	// thousand IDs; big enough to exercise the streaming path, small
	// enough to stay a single-part upload.
	payload := make([]byte, 1<<20)
	_, err = rand.Read(payload)
	require.NoError(t, err)

	t.Run("streaming roundtrip", func(t *testing.T) {
		wb, err := store.Create(ctx, "snap-001/source.gmap")
		require.NoError(t, err)
		n, err := wb.Write(payload)
		require.NoError(t, err)
		require.Equal(t, len(payload), n)
		require.NoError(t, wb.Close())

		blob, err := store.Open(ctx, "snap-001/source.gmap")
		require.NoError(t, err)
		defer blob.Close()
		assert.Equal(t, int64(len(payload)), blob.Size())

		// Restore reads in ranges, never the whole object at once.
		buf := make([]byte, 4096)
		_, err = blob.ReadAt(ctx, buf, 0)
		require.NoError(t, err)
		assert.Equal(t, payload[:4096], buf)

		_, err = blob.ReadAt(ctx, buf, 512*1024)
		require.NoError(t, err)
		assert.Equal(t, payload[512*1024:512*1024+4096], buf)

		rc, err := blob.ReadRange(ctx, int64(len(payload))-100, 100)
		require.NoError(t, err)
		tail, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, payload[len(payload)-100:], tail)
		require.NoError(t, rc.Close())
	})

	t.Run("list and delete", func(t *testing.T) {
		names, err := store.List(ctx, "snap-001/")
		require.NoError(t, err)
		assert.Contains(t, names, "snap-001/source.gmap")

		require.NoError(t, store.Delete(ctx, "snap-001/source.gmap"))
		_, err = store.Open(ctx, "snap-001/source.gmap")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("conditional manifest put", func(t *testing.T) {
		manifest := []byte(`{"version":1,"files":[]}`)
		require.NoError(t, store.PutIfNotExists(ctx, "snap-002/MANIFEST", manifest))

		err := store.PutIfNotExists(ctx, "snap-002/MANIFEST", manifest)
		assert.ErrorIs(t, err, ErrConflict)

		require.NoError(t, store.Delete(ctx, "snap-002/MANIFEST"))
	})
}
