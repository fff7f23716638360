package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFS(t *testing.T) {
	tmp := t.TempDir()
	lfs := LocalFS{}

	dir := filepath.Join(tmp, "sources")
	require.NoError(t, lfs.MkdirAll(dir, 0o755))

	fpath := filepath.Join(dir, "left-00000000000000000000000000000001.gmap")
	f, err := lfs.OpenFile(fpath, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)

	_, err = f.Write([]byte("GRAH!"))
	assert.NoError(t, err)
	assert.NoError(t, f.Sync())

	info, err := f.Stat()
	assert.NoError(t, err)
	assert.Equal(t, int64(5), info.Size())
	assert.NoError(t, f.Close())

	info2, err := lfs.Stat(fpath)
	assert.NoError(t, err)
	assert.Equal(t, int64(5), info2.Size())

	entries, err := lfs.ReadDir(dir)
	assert.NoError(t, err)
	assert.Len(t, entries, 1)

	// tmp-then-rename is the commit primitive for source files.
	committed := filepath.Join(dir, "committed.gmap")
	assert.NoError(t, lfs.Rename(fpath, committed))

	assert.NoError(t, lfs.Truncate(committed, 3))
	info3, err := lfs.Stat(committed)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), info3.Size())

	assert.NoError(t, lfs.Remove(committed))
	_, err = lfs.Stat(committed)
	assert.True(t, os.IsNotExist(err))
}

func TestFaultyFSWriteLimit(t *testing.T) {
	tmp := t.TempDir()
	ffs := NewFaultyFS(LocalFS{})
	ffs.AddRule(".gmap", Fault{FailAfterBytes: 5})

	fpath := filepath.Join(tmp, "source.gmap")
	f, err := ffs.OpenFile(fpath, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	defer f.Close()

	n, err := f.Write([]byte("hello"))
	assert.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = f.Write([]byte("!"))
	assert.ErrorIs(t, err, ErrInjected)
	assert.Equal(t, 0, n)
}

func TestFaultyFSSyncAndClose(t *testing.T) {
	tmp := t.TempDir()
	ffs := NewFaultyFS(nil)
	ffs.AddRule("sync-fails", Fault{FailOnSync: true})
	ffs.AddRule("close-fails", Fault{FailOnClose: true})

	f, err := ffs.OpenFile(filepath.Join(tmp, "sync-fails.gmap"), os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	assert.ErrorIs(t, f.Sync(), ErrInjected)
	assert.NoError(t, f.Close())

	f, err = ffs.OpenFile(filepath.Join(tmp, "close-fails.gmap"), os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	assert.ErrorIs(t, f.Close(), ErrInjected)
}

func TestFaultyFSTransparentWithoutRules(t *testing.T) {
	tmp := t.TempDir()
	ffs := NewFaultyFS(LocalFS{})

	dir := filepath.Join(tmp, "subdir")
	assert.NoError(t, ffs.MkdirAll(dir, 0o755))

	fpath := filepath.Join(dir, "clean.gmap")
	f, err := ffs.OpenFile(fpath, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte("payload"))
	assert.NoError(t, err)
	assert.NoError(t, f.Sync())
	assert.NoError(t, f.Close())

	assert.NoError(t, ffs.Truncate(fpath, 3))
	assert.NoError(t, ffs.Rename(fpath, fpath+".renamed"))
	assert.NoError(t, ffs.Remove(fpath+".renamed"))

	entries, err := ffs.ReadDir(dir)
	assert.NoError(t, err)
	assert.Empty(t, entries)
}
