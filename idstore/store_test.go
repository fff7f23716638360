package idstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/graphd/iterator"
	"github.com/hupe1980/graphd/model"
)

func testSource(l model.Linkage, lo uint64) Source {
	return Source{Linkage: l, GUID: model.GUID{Hi: 0xfeed, Lo: lo}}
}

func addAll(t *testing.T, s *Store, src Source, ids ...uint64) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, s.Add(src, model.ID(id)))
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

func TestStoreAdd(t *testing.T) {
	s := NewStore()
	src := testSource(model.LinkageLeft, 1)

	addAll(t, s, src, 2, 5, 9)
	assert.Equal(t, uint64(3), s.Len(src))
	assert.False(t, s.Empty())

	t.Run("rejects out-of-order append", func(t *testing.T) {
		err := s.Add(src, 5)
		require.Error(t, err)
	})

	t.Run("rejects duplicate append", func(t *testing.T) {
		err := s.Add(src, 9)
		require.Error(t, err)
	})

	t.Run("rejects invalid id", func(t *testing.T) {
		err := s.Add(src, model.IDMax)
		require.Error(t, err)
	})
}

func TestStoreAddPrimitive(t *testing.T) {
	s := NewStore()

	var guids [model.LinkageCount]model.GUID
	guids[model.LinkageTypeGUID] = model.GUID{Lo: 1}
	guids[model.LinkageLeft] = model.GUID{Lo: 2}

	require.NoError(t, s.AddPrimitive(7, guids))

	assert.Equal(t, uint64(1), s.Len(Source{Linkage: model.LinkageTypeGUID, GUID: guids[model.LinkageTypeGUID]}))
	assert.Equal(t, uint64(1), s.Len(Source{Linkage: model.LinkageLeft, GUID: guids[model.LinkageLeft]}))
	// Nil GUIDs create no source.
	assert.Len(t, s.Sources(), 2)
}

func TestStoreContains(t *testing.T) {
	s := NewStore()
	src := testSource(model.LinkageRight, 2)
	addAll(t, s, src, 3, 7, 11)

	assert.True(t, s.Contains(src, 7))
	assert.False(t, s.Contains(src, 8))
	assert.False(t, s.Contains(testSource(model.LinkageRight, 99), 7))
}

func TestStoreCompact(t *testing.T) {
	oldCount, oldDensity := BitmapMinCount, BitmapMinDensity
	BitmapMinCount, BitmapMinDensity = 4, 0.5
	defer func() { BitmapMinCount, BitmapMinDensity = oldCount, oldDensity }()

	s := NewStore()
	dense := testSource(model.LinkageTypeGUID, 1)
	sparse := testSource(model.LinkageTypeGUID, 2)
	addAll(t, s, dense, 10, 11, 12, 13, 14, 15)
	addAll(t, s, sparse, 10, 1000, 100000, 10000000, 100000000, 1000000000)

	s.Compact()

	s.mu.RLock()
	_, denseIsBitmap := s.arrays[dense].(*bitmapArray)
	_, sparseIsMem := s.arrays[sparse].(*memArray)
	s.mu.RUnlock()
	assert.True(t, denseIsBitmap, "dense source should be promoted")
	assert.True(t, sparseIsMem, "sparse source should stay a slice")

	// Promotion preserves contents and order.
	it, err := s.Iterator(dense, 0, model.IDMax, true)
	require.NoError(t, err)
	assert.Equal(t, []uint64{10, 11, 12, 13, 14, 15}, drain(t, it))

	// Bitmap backing still accepts ascending appends.
	require.NoError(t, s.Add(dense, 20))
	assert.Equal(t, uint64(7), s.Len(dense))
	require.Error(t, s.Add(dense, 15))
}

func TestBitmapArrayRandomAccess(t *testing.T) {
	b := newBitmapArray()
	for _, id := range []uint64{2, 5, 9, 1 << 33} {
		require.NoError(t, b.appendID(model.ID(id)))
	}

	assert.Equal(t, uint64(4), b.len())
	assert.Equal(t, model.ID(2), b.at(0))
	assert.Equal(t, model.ID(1<<33), b.at(3))

	assert.Equal(t, uint64(0), b.search(0))
	assert.Equal(t, uint64(0), b.search(2))
	assert.Equal(t, uint64(1), b.search(3))
	assert.Equal(t, uint64(2), b.search(6))
	assert.Equal(t, uint64(4), b.search(model.ID(1<<33)+1))

	assert.True(t, b.contains(5))
	assert.False(t, b.contains(6))
}
