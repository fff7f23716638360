package graphd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/graphd/blobstore"
	"github.com/hupe1980/graphd/codec"
	"github.com/hupe1980/graphd/internal/hash"
	"github.com/hupe1980/graphd/internal/resource"
)

const (
	manifestVersion = 1

	// manifestName is the blob name of the snapshot manifest, relative to
	// the snapshot prefix.
	manifestName = "MANIFEST"

	sourceFileSuffix = ".gmap"
)

// snapshotManifest describes the contents of one snapshot. It is the last
// blob written, so a snapshot with a manifest is complete by construction.
type snapshotManifest struct {
	Version   int            `json:"version"`
	Codec     string         `json:"codec"`
	CreatedAt time.Time      `json:"created_at"`
	Files     []snapshotFile `json:"files"`
}

// snapshotFile is one archived source file with its integrity checksum.
type snapshotFile struct {
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	CRC32C uint32 `json:"crc32c"`
}

// Snapshot flushes the database and archives every source file to the blob
// store under the given snapshot name. Files are uploaded concurrently,
// gated by the resource controller's background worker and IO limits. The
// manifest is written last; a reader that finds the manifest can trust the
// snapshot is complete.
func (db *DB) Snapshot(ctx context.Context, bs blobstore.BlobStore, name string) error {
	if err := db.check(); err != nil {
		return err
	}
	if db.dir == "" {
		return ErrNoDirectory
	}

	start := time.Now()
	files, totalBytes, err := db.snapshot(ctx, bs, name)
	db.metrics.RecordSnapshot(len(files), totalBytes, time.Since(start), err)
	db.logger.LogSnapshot(ctx, name, len(files), totalBytes, time.Since(start), err)
	return err
}

func (db *DB) snapshot(ctx context.Context, bs blobstore.BlobStore, name string) ([]snapshotFile, int64, error) {
	if err := db.store.WriteAll(db.dir, db.compression); err != nil {
		return nil, 0, fmt.Errorf("flush before snapshot: %w", err)
	}

	entries, err := db.fsys.ReadDir(db.dir)
	if err != nil {
		return nil, 0, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), sourceFileSuffix) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var (
		mu    sync.Mutex
		files = make([]snapshotFile, 0, len(names))
		total int64
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, fname := range names {
		fname := fname
		g.Go(func() error {
			if err := db.rc.AcquireBackground(gctx); err != nil {
				return err
			}
			defer db.rc.ReleaseBackground()

			sf, err := db.uploadFile(gctx, bs, name, fname)
			if err != nil {
				return fmt.Errorf("upload %s: %w", fname, err)
			}

			mu.Lock()
			files = append(files, sf)
			total += sf.Size
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	manifest := snapshotManifest{
		Version:   manifestVersion,
		Codec:     db.codec.Name(),
		CreatedAt: time.Now().UTC(),
		Files:     files,
	}
	data, err := db.codec.Marshal(manifest)
	if err != nil {
		return nil, 0, fmt.Errorf("encode manifest: %w", err)
	}
	if err := bs.Put(ctx, path.Join(name, manifestName), data); err != nil {
		return nil, 0, fmt.Errorf("write manifest: %w", err)
	}
	return files, total, nil
}

func (db *DB) uploadFile(ctx context.Context, bs blobstore.BlobStore, name, fname string) (snapshotFile, error) {
	f, err := db.fsys.OpenFile(filepath.Join(db.dir, fname), os.O_RDONLY, 0)
	if err != nil {
		return snapshotFile{}, err
	}
	defer f.Close()

	wb, err := bs.Create(ctx, path.Join(name, fname))
	if err != nil {
		return snapshotFile{}, err
	}

	hasher := hash.NewCRC32C()
	w := resource.NewRateLimitedWriter(ctx, io.MultiWriter(wb, hasher), db.rc)

	n, err := io.Copy(w, f)
	if err != nil {
		_ = wb.Close()
		return snapshotFile{}, err
	}
	if err := wb.Close(); err != nil {
		return snapshotFile{}, err
	}

	return snapshotFile{Name: fname, Size: n, CRC32C: hasher.Sum32()}, nil
}

// Restore downloads the named snapshot into the backing directory and loads
// it. Every file's checksum is verified against the manifest; a mismatch
// aborts the restore with ErrSnapshotCorrupt before anything is loaded.
func (db *DB) Restore(ctx context.Context, bs blobstore.BlobStore, name string) error {
	if err := db.check(); err != nil {
		return err
	}
	if db.dir == "" {
		return ErrNoDirectory
	}

	start := time.Now()
	files, totalBytes, err := db.restore(ctx, bs, name)
	db.metrics.RecordSnapshot(files, totalBytes, time.Since(start), err)
	db.logger.LogRestore(ctx, name, files, time.Since(start), err)
	return err
}

func (db *DB) restore(ctx context.Context, bs blobstore.BlobStore, name string) (int, int64, error) {
	manifest, err := db.readManifest(ctx, bs, name)
	if err != nil {
		return 0, 0, err
	}

	if err := db.fsys.MkdirAll(db.dir, 0o755); err != nil {
		return 0, 0, err
	}

	var total int64
	g, gctx := errgroup.WithContext(ctx)
	for _, sf := range manifest.Files {
		sf := sf
		total += sf.Size
		g.Go(func() error {
			if err := db.rc.AcquireBackground(gctx); err != nil {
				return err
			}
			defer db.rc.ReleaseBackground()

			if err := db.downloadFile(gctx, bs, name, sf); err != nil {
				return fmt.Errorf("download %s: %w", sf.Name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, err
	}

	if err := db.store.LoadDir(db.dir); err != nil {
		return 0, 0, err
	}
	return len(manifest.Files), total, nil
}

func (db *DB) readManifest(ctx context.Context, bs blobstore.BlobStore, name string) (*snapshotManifest, error) {
	b, err := bs.Open(ctx, path.Join(name, manifestName))
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer b.Close()

	rc, err := b.ReadRange(ctx, 0, b.Size())
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}

	var manifest snapshotManifest
	if err := db.codec.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if manifest.Version != manifestVersion {
		return nil, fmt.Errorf("unsupported snapshot manifest version %d", manifest.Version)
	}
	if _, ok := codec.ByName(manifest.Codec); !ok {
		return nil, &ErrUnknownCodec{Name: manifest.Codec}
	}
	return &manifest, nil
}

func (db *DB) downloadFile(ctx context.Context, bs blobstore.BlobStore, name string, sf snapshotFile) error {
	b, err := bs.Open(ctx, path.Join(name, sf.Name))
	if err != nil {
		return err
	}
	defer b.Close()

	rc, err := b.ReadRange(ctx, 0, b.Size())
	if err != nil {
		return err
	}
	defer rc.Close()

	hasher := hash.NewCRC32C()
	r := resource.NewRateLimitedReader(ctx, io.TeeReader(rc, hasher), db.rc)

	// Write through a temp file so a failed download never leaves a
	// half-written source file with the real name.
	dst := filepath.Join(db.dir, sf.Name)
	tmp := dst + ".tmp"
	f, err := db.fsys.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = db.fsys.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = db.fsys.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = db.fsys.Remove(tmp)
		return err
	}

	if got := hasher.Sum32(); got != sf.CRC32C {
		_ = db.fsys.Remove(tmp)
		return &ErrSnapshotCorrupt{File: sf.Name, Expected: sf.CRC32C, Actual: got}
	}
	return db.fsys.Rename(tmp, dst)
}
