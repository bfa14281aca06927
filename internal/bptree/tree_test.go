package bptree

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInsertAndExactLookup(t *testing.T) {
	tr := New(newMemAllocator(), "")
	require.NoError(t, tr.Init())

	require.NoError(t, tr.Insert(float64(10), []byte("doc-a")))
	require.NoError(t, tr.Insert(float64(20), []byte("doc-b")))

	got, err := tr.Keys(EqualCondition(float64(10)), nil)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"doc-a"}, got.Slice())
}

func TestInsertTriggersSplitAndPromote(t *testing.T) {
	tr := New(newMemAllocator(), "")
	require.NoError(t, tr.Init())

	// order is 32: inserting well beyond that forces leaf splits and at
	// least one promotion into an internal root.
	for i := 0; i < 200; i++ {
		require.NoError(t, tr.Insert(float64(i), []byte(fmt.Sprintf("doc-%d", i))))
	}

	got, err := tr.Keys(Condition{GTE: float64(150), HasGTE: true, LT: float64(160), HasLT: true}, nil)
	require.NoError(t, err)
	require.Len(t, got, 10)
}

func TestRangeScanAcrossLeaves(t *testing.T) {
	tr := New(newMemAllocator(), "")
	require.NoError(t, tr.Init())
	for i := 0; i < 100; i++ {
		require.NoError(t, tr.Insert(float64(i), []byte(fmt.Sprintf("doc-%d", i))))
	}

	got, err := tr.Keys(Condition{GT: float64(90), HasGT: true}, nil)
	require.NoError(t, err)
	require.Len(t, got, 9) // 91..99
}

func TestDeleteRemovesEntry(t *testing.T) {
	tr := New(newMemAllocator(), "")
	require.NoError(t, tr.Init())
	require.NoError(t, tr.Insert(float64(1), []byte("doc-a")))
	require.NoError(t, tr.Insert(float64(1), []byte("doc-b")))

	require.NoError(t, tr.Delete(float64(1), []byte("doc-a")))

	got, err := tr.Keys(EqualCondition(float64(1)), nil)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"doc-b"}, got.Slice())
}

func TestDeleteOfAbsentPairIsNoOp(t *testing.T) {
	tr := New(newMemAllocator(), "")
	require.NoError(t, tr.Init())
	require.NoError(t, tr.Insert(float64(1), []byte("doc-a")))
	require.NoError(t, tr.Delete(float64(999), []byte("nope")))

	got, err := tr.Keys(EqualCondition(float64(1)), nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestKeysIntersectsWithPrior(t *testing.T) {
	tr := New(newMemAllocator(), "")
	require.NoError(t, tr.Init())
	require.NoError(t, tr.Insert(float64(1), []byte("doc-a")))
	require.NoError(t, tr.Insert(float64(1), []byte("doc-b")))

	prior := NewSet("doc-a")
	got, err := tr.Keys(EqualCondition(float64(1)), prior)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"doc-a"}, got.Slice())
}

func TestRootIDChangesWhenSplitPromotesNewRoot(t *testing.T) {
	rooted := New(newMemAllocator(), "")
	require.NoError(t, rooted.Init())
	tr, ok := rooted.(interface{ RootID() string })
	require.True(t, ok)

	initialRoot := tr.RootID()
	for i := 0; i < 200; i++ {
		require.NoError(t, rooted.Insert(float64(i), []byte(fmt.Sprintf("doc-%d", i))))
	}
	require.NotEqual(t, initialRoot, tr.RootID(), "a promoted internal root must replace the original leaf root")
}
