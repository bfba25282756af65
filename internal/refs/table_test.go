package refs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type point struct{ X, Y int }

func TestIdentityTable_EqualButDistinct(t *testing.T) {
	tbl := NewIdentityTable(8)

	a := &point{1, 2}
	b := &point{1, 2}
	require.Equal(t, *a, *b)

	id, found := tbl.PutOrGet(KeyOfPointer(a), 0)
	require.False(t, found)
	require.Equal(t, int32(0), id)

	// same reference -> original id
	id, found = tbl.PutOrGet(KeyOfPointer(a), 1)
	require.True(t, found)
	require.Equal(t, int32(0), id)

	// equal value, different instance -> new
	id, found = tbl.PutOrGet(KeyOfPointer(b), 1)
	require.False(t, found)
	require.Equal(t, int32(1), id)

	require.Equal(t, 2, tbl.Size())

	got, ok := tbl.Get(KeyOfPointer(b))
	require.True(t, ok)
	require.Equal(t, int32(1), got)

	_, ok = tbl.Get(KeyOfPointer(&point{1, 2}))
	require.False(t, ok)
}

func TestIdentityTable_ResizeDurability(t *testing.T) {
	objs := make([]int64, 20000)
	tbl := NewIdentityTable(2)

	for i := range objs {
		_, found := tbl.PutOrGet(KeyOfPointer(&objs[i]), int32(i))
		require.False(t, found)
	}
	require.Equal(t, len(objs), tbl.Size())

	for i := range objs {
		id, ok := tbl.Get(KeyOfPointer(&objs[i]))
		require.True(t, ok, "entry %d lost", i)
		require.Equal(t, int32(i), id)
	}
}

func TestIdentityTable_ForcedChaining(t *testing.T) {
	objs := make([]int64, 3000)
	// only 7 distinct hashes: buckets overflow into child levels
	tbl := NewIdentityTable(4, WithHasher(func(k Key) uint32 {
		return uint32(uintptr(k.ptr)>>3) % 7
	}))

	for i := range objs {
		tbl.Put(KeyOfPointer(&objs[i]), int32(i))
	}
	st := tbl.Stats()
	require.Greater(t, st.Levels, 1)

	for i := range objs {
		id, found := tbl.PutOrGet(KeyOfPointer(&objs[i]), -1)
		require.True(t, found)
		require.Equal(t, int32(i), id)
	}
	require.Equal(t, len(objs), tbl.Size())
}

func TestIdentityTable_CollidingIdentitiesFallBackToLinearScan(t *testing.T) {
	const n = 10000
	objs := make([]int64, n)
	tbl := NewIdentityTable(16, WithHasher(func(Key) uint32 { return 42 }))

	for i := range objs {
		_, found := tbl.PutOrGet(KeyOfPointer(&objs[i]), int32(i))
		require.False(t, found)
	}

	st := tbl.Stats()
	require.Equal(t, maxDepth+2, st.Levels)
	require.Equal(t, n-(maxDepth+1)*bucketSlots, st.LinearEntries)

	for i := range objs {
		id, ok := tbl.Get(KeyOfPointer(&objs[i]))
		require.True(t, ok)
		require.Equal(t, int32(i), id)
	}
	require.Equal(t, n, tbl.Size())
}

func TestIdentityTable_DepthSurvivesResize(t *testing.T) {
	objs := make([]int64, 20000)
	// two hashes: child levels fill and resize repeatedly
	tbl := NewIdentityTable(2, WithHasher(func(k Key) uint32 {
		return uint32(uintptr(k.ptr)>>3) & 1
	}))

	for i := range objs {
		tbl.Put(KeyOfPointer(&objs[i]), int32(i))
	}
	require.LessOrEqual(t, tbl.Stats().Levels, maxDepth+2)

	d := 0
	for l := tbl; l != nil; l = l.next {
		require.Equal(t, d, l.depth)
		d++
	}
	for i := range objs {
		id, ok := tbl.Get(KeyOfPointer(&objs[i]))
		require.True(t, ok)
		require.Equal(t, int32(i), id)
	}
	require.Equal(t, len(objs), tbl.Size())
}

func TestIdentityTable_Put(t *testing.T) {
	tbl := NewIdentityTable(4)
	p := &point{}

	tbl.Put(KeyOfPointer(p), 3)
	tbl.Put(KeyOfPointer(p), 9)

	id, ok := tbl.Get(KeyOfPointer(p))
	require.True(t, ok)
	require.Equal(t, int32(9), id)
	require.Equal(t, 1, tbl.Size())
}

func TestIdentityTable_Clear(t *testing.T) {
	objs := make([]int64, 500)
	tbl := NewIdentityTable(4, WithHasher(func(Key) uint32 { return 1 }))
	for i := range objs {
		tbl.Put(KeyOfPointer(&objs[i]), int32(i))
	}
	require.Positive(t, tbl.Stats().LinearEntries)

	tbl.Clear()
	require.Equal(t, 0, tbl.Size())
	require.Zero(t, tbl.Stats().LinearEntries)
	for i := range objs {
		_, ok := tbl.Get(KeyOfPointer(&objs[i]))
		require.False(t, ok)
	}

	// reusable after clear
	id, found := tbl.PutOrGet(KeyOfPointer(&objs[7]), 0)
	require.False(t, found)
	require.Equal(t, int32(0), id)
	require.Equal(t, 1, tbl.Size())
}

func TestIdentityTable_ClearLargerThanScratch(t *testing.T) {
	objs := make([]int64, 3*scratchLen)
	tbl := NewIdentityTable(2)
	for i := range objs {
		tbl.Put(KeyOfPointer(&objs[i]), int32(i))
	}
	require.Greater(t, tbl.Stats().Capacity, scratchLen)

	tbl.Clear()
	require.Equal(t, 0, tbl.Size())
	for _, k := range tbl.keys {
		require.True(t, k.IsZero())
	}
}

func TestAdjustSize(t *testing.T) {
	require.Equal(t, 5+reserve, adjustSize(4))
	require.Equal(t, 37+reserve, adjustSize(32))
	require.Equal(t, 20000000+reserve, adjustSize(20000000))
}
