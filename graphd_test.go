package graphd

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/graphd/idstore"
	"github.com/hupe1980/graphd/iterator"
	"github.com/hupe1980/graphd/model"
)

func testSource(l model.Linkage, lo uint64) idstore.Source {
	return idstore.Source{Linkage: l, GUID: model.GUID{Hi: 0xfeed, Lo: lo}}
}

func addAll(t *testing.T, db *DB, src idstore.Source, ids ...uint64) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, db.Add(src, model.ID(id)))
	}
}

func drain(t *testing.T, it iterator.Iterator) []uint64 {
	t.Helper()
	var out []uint64
	for {
		id, err := it.Next(nil)
		if err == iterator.Done {
			return out
		}
		require.NoError(t, err)
		out = append(out, uint64(id))
	}
}

func TestDBAdd(t *testing.T) {
	db := New()
	defer db.Close()

	src := testSource(model.LinkageLeft, 1)
	addAll(t, db, src, 2, 5, 9)

	assert.False(t, db.Empty())
	assert.Len(t, db.Sources(), 1)
}

func TestDBClosed(t *testing.T) {
	db := New()
	src := testSource(model.LinkageLeft, 1)
	addAll(t, db, src, 1)
	require.NoError(t, db.Close())
	require.NoError(t, db.Close()) // idempotent

	assert.ErrorIs(t, db.Add(src, 2), ErrClosed)

	_, err := db.SourceIterator(src, 0, model.IDMax, true)
	assert.ErrorIs(t, err, ErrClosed)

	_, err = db.Or(true)
	assert.ErrorIs(t, err, ErrClosed)

	_, err = db.Thaw(context.Background(), "null:")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDBOr(t *testing.T) {
	db := New()
	defer db.Close()

	left := testSource(model.LinkageLeft, 1)
	right := testSource(model.LinkageRight, 2)
	addAll(t, db, left, 2, 5, 9)
	addAll(t, db, right, 3, 5, 12)

	a, err := db.SourceIterator(left, 0, model.IDMax, true)
	require.NoError(t, err)
	b, err := db.SourceIterator(right, 0, model.IDMax, true)
	require.NoError(t, err)

	it, err := db.Or(true, a, b)
	require.NoError(t, err)
	defer it.Close()

	assert.Equal(t, []uint64{2, 3, 5, 9, 12}, drain(t, it))
}

func TestDBOrEmptyDatabase(t *testing.T) {
	db := New()
	defer db.Close()

	it, err := db.Or(true, iterator.NewFixedIDs([]model.ID{1, 2, 3}, true))
	require.NoError(t, err)
	defer it.Close()

	_, err = it.Next(nil)
	assert.Equal(t, iterator.Done, err)
}

func TestDBFreezeThaw(t *testing.T) {
	db := New()
	defer db.Close()

	left := testSource(model.LinkageLeft, 1)
	right := testSource(model.LinkageRight, 2)
	addAll(t, db, left, 2, 5, 9, 20)
	addAll(t, db, right, 3, 5, 12)

	a, err := db.SourceIterator(left, 0, model.IDMax, true)
	require.NoError(t, err)
	b, err := db.SourceIterator(right, 0, model.IDMax, true)
	require.NoError(t, err)

	it, err := db.Or(true, a, b)
	require.NoError(t, err)
	defer it.Close()

	// Consume two IDs, freeze, and resume from the cursor.
	id, err := it.Next(nil)
	require.NoError(t, err)
	assert.Equal(t, model.ID(2), id)
	id, err = it.Next(nil)
	require.NoError(t, err)
	assert.Equal(t, model.ID(3), id)

	cur, err := db.Freeze(it)
	require.NoError(t, err)
	require.NotEmpty(t, cur)

	resumed, err := db.Thaw(context.Background(), cur)
	require.NoError(t, err)
	defer resumed.Close()

	assert.Equal(t, []uint64{5, 9, 12, 20}, drain(t, resumed))
}

func TestDBThawBadCursor(t *testing.T) {
	db := New()
	defer db.Close()

	_, err := db.Thaw(context.Background(), "not a cursor")
	assert.ErrorIs(t, err, ErrBadCursor)
}

type alwaysExhausted struct{}

func (alwaysExhausted) Exhausted(int64) bool { return true }

func TestDBBudgetPolicy(t *testing.T) {
	db := New(WithBudgetPolicy(alwaysExhausted{}))
	defer db.Close()

	src := testSource(model.LinkageLeft, 1)
	addAll(t, db, src, 1, 2, 3)

	it, err := db.SourceIterator(src, 0, model.IDMax, true)
	require.NoError(t, err)
	defer it.Close()

	_, err = it.Next(db.NewBudget(1000))
	assert.Equal(t, iterator.ErrMore, err)
}

func TestDBMetrics(t *testing.T) {
	metrics := &BasicMetricsCollector{}
	db := New(WithMetricsCollector(metrics))
	defer db.Close()

	src := testSource(model.LinkageLeft, 1)
	addAll(t, db, src, 1, 2, 3)

	it, err := db.SourceIterator(src, 0, model.IDMax, true)
	require.NoError(t, err)
	defer it.Close()

	drain(t, it) // 3 IDs + 1 Done

	ok, err := it.Check(2, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	cur, err := db.Freeze(it)
	require.NoError(t, err)
	resumed, err := db.Thaw(context.Background(), cur)
	require.NoError(t, err)
	defer resumed.Close()

	assert.Equal(t, int64(4), metrics.NextCount.Load())
	assert.Equal(t, int64(0), metrics.NextErrors.Load()) // Done is not an error
	assert.Equal(t, int64(1), metrics.CheckCount.Load())
	assert.Equal(t, int64(1), metrics.ThawCount.Load())
	assert.Equal(t, int64(0), metrics.ThawErrors.Load())
}

func TestDBFlushReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	db, err := Open(dir)
	require.NoError(t, err)

	left := testSource(model.LinkageLeft, 1)
	right := testSource(model.LinkageRight, 2)
	addAll(t, db, left, 2, 5, 9)
	addAll(t, db, right, 3, 5, 12)

	require.NoError(t, db.Flush(ctx))
	require.NoError(t, db.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Len(t, reopened.Sources(), 2)

	it, err := reopened.SourceIterator(left, 0, model.IDMax, true)
	require.NoError(t, err)
	defer it.Close()
	assert.Equal(t, []uint64{2, 5, 9}, drain(t, it))
}

func TestDBFlushNoDirectory(t *testing.T) {
	db := New()
	defer db.Close()

	assert.ErrorIs(t, db.Flush(context.Background()), ErrNoDirectory)
}

func TestDBOpenMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "does-not-exist-yet")

	db, err := Open(dir)
	require.NoError(t, err)
	defer db.Close()

	assert.True(t, db.Empty())

	src := testSource(model.LinkageLeft, 1)
	addAll(t, db, src, 7)
	require.NoError(t, db.Flush(context.Background()))
}
