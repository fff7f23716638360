package iterator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/graphd/model"
)

func TestFixed(t *testing.T) {
	t.Run("commit sorts and deduplicates", func(t *testing.T) {
		f := NewFixedIDs([]model.ID{9, 2, 5, 2}, true)
		assert.Equal(t, 3, f.Len())
		assert.Equal(t, []uint64{2, 5, 9}, drainIt(t, f))
	})

	t.Run("backward", func(t *testing.T) {
		f := NewFixedIDs([]model.ID{9, 2, 5}, false)
		assert.Equal(t, []uint64{9, 5, 2}, drainIt(t, f))
	})

	t.Run("add after commit fails", func(t *testing.T) {
		f := NewFixedIDs([]model.ID{1}, true)
		require.Error(t, f.Add(2))
	})

	t.Run("invalid id rejected", func(t *testing.T) {
		f := NewFixed(1, true)
		require.Error(t, f.Add(model.IDNone))
	})
}

func TestFixedFind(t *testing.T) {
	t.Run("forward", func(t *testing.T) {
		f := NewFixedIDs([]model.ID{2, 5, 9}, true)

		id, err := f.Find(4, nil)
		require.NoError(t, err)
		assert.Equal(t, model.ID(5), id)

		id, err = f.Next(nil)
		require.NoError(t, err)
		assert.Equal(t, model.ID(9), id)

		_, err = f.Find(10, nil)
		assert.Equal(t, Done, err)
	})

	t.Run("backward picks the largest at-or-before", func(t *testing.T) {
		f := NewFixedIDs([]model.ID{2, 5, 9}, false)

		id, err := f.Find(8, nil)
		require.NoError(t, err)
		assert.Equal(t, model.ID(5), id)

		id, err = f.Next(nil)
		require.NoError(t, err)
		assert.Equal(t, model.ID(2), id)

		_, err = f.Find(1, nil)
		assert.Equal(t, Done, err)
	})
}

func TestFixedCheck(t *testing.T) {
	f := NewFixedIDs([]model.ID{2, 5, 9}, true)
	for id, want := range map[model.ID]bool{2: true, 5: true, 9: true, 4: false, 10: false} {
		ok, err := f.Check(id, nil)
		require.NoError(t, err)
		assert.Equal(t, want, ok, "check %d", uint64(id))
	}
}

func TestFixedStatistics(t *testing.T) {
	f := NewFixedIDs([]model.ID{2, 5, 9}, true)

	st := f.Stats()
	assert.True(t, st.NValid)
	assert.Equal(t, uint64(3), st.N)
	assert.True(t, st.Sorted)

	re, err := f.RangeEstimate()
	require.NoError(t, err)
	assert.Equal(t, model.RangeEstimate{Low: 2, High: 10, NMax: 3}, re)
}

func TestFixedCloneSharesIDs(t *testing.T) {
	f := NewFixedIDs([]model.ID{2, 5, 9}, true)
	_, err := f.Next(nil)
	require.NoError(t, err)

	cl, err := f.Clone()
	require.NoError(t, err)
	assert.Equal(t, []uint64{5, 9}, drainIt(t, cl))
	assert.Equal(t, []uint64{5, 9}, drainIt(t, f))
}

func TestFixedFreezeThaw(t *testing.T) {
	f := NewFixedIDs([]model.ID{2, 5, 9}, true)
	_, err := f.Next(nil)
	require.NoError(t, err)

	frozen, err := FreezeString(f)
	require.NoError(t, err)
	assert.Equal(t, "fixed:3:2,5,9/1/", frozen)

	th, err := Thaw(frozen, &ThawContext{})
	require.NoError(t, err)
	assert.Equal(t, []uint64{5, 9}, drainIt(t, th))

	t.Run("exhausted", func(t *testing.T) {
		drainIt(t, f)
		frozen, err := FreezeString(f)
		require.NoError(t, err)
		assert.Equal(t, "fixed:3:2,5,9/$/", frozen)

		th, err := Thaw(frozen, &ThawContext{})
		require.NoError(t, err)
		_, err = th.Next(nil)
		assert.Equal(t, Done, err)
	})

	t.Run("duplicate ids rejected", func(t *testing.T) {
		_, err := Thaw("fixed:2:5,5/0/", &ThawContext{})
		assert.ErrorIs(t, err, ErrBadCursor)
	})

	t.Run("offset past the end rejected", func(t *testing.T) {
		_, err := Thaw("fixed:1:5/9/", &ThawContext{})
		assert.ErrorIs(t, err, ErrBadCursor)
	})
}

func TestNull(t *testing.T) {
	n := NewNull(true)

	_, err := n.Next(nil)
	assert.Equal(t, Done, err)

	ok, err := n.Check(5, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	st := n.Stats()
	assert.True(t, st.NValid)
	assert.Equal(t, uint64(0), st.N)

	frozen, err := FreezeString(n)
	require.NoError(t, err)
	assert.Equal(t, "null:/$/", frozen)

	th, err := Thaw(frozen, &ThawContext{})
	require.NoError(t, err)
	_, ok2 := th.(*Null)
	assert.True(t, ok2)

	t.Run("backward round trip keeps direction", func(t *testing.T) {
		frozen, err := FreezeString(NewNull(false))
		require.NoError(t, err)
		assert.Equal(t, "null:~/$/", frozen)
		th, err := Thaw(frozen, &ThawContext{})
		require.NoError(t, err)
		assert.False(t, th.Forward())
	})
}

func TestBudget(t *testing.T) {
	b := NewBudget(10)
	assert.Equal(t, int64(10), b.Remaining())
	assert.False(t, b.Exhausted())

	b.Charge(10)
	assert.True(t, b.Exhausted())

	// Overdraft is visible.
	b.Charge(5)
	assert.Equal(t, int64(-5), b.Remaining())

	b.Refill(20)
	assert.False(t, b.Exhausted())
	assert.Equal(t, int64(15), b.Remaining())

	t.Run("nil budget is unlimited", func(t *testing.T) {
		var nb *Budget
		nb.Charge(1 << 40)
		assert.False(t, nb.Exhausted())
	})

	t.Run("policy overrides the balance", func(t *testing.T) {
		b := NewBudgetWithPolicy(1<<40, &pulsePolicy{every: 1})
		assert.True(t, b.Exhausted())
	})
}

func TestThawRejectsUnknown(t *testing.T) {
	_, err := Thaw("wat:1:2/-/", &ThawContext{})
	assert.ErrorIs(t, err, ErrBadCursor)

	_, err = Thaw("null:/$/junk/extra", &ThawContext{})
	assert.ErrorIs(t, err, ErrBadCursor)
}

func TestRegisterTypeDuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		RegisterType("null", thawNull)
	})
}
