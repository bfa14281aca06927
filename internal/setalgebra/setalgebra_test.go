package setalgebra

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/klaf-go/klaf/internal/bptree"
)

func TestIntersect(t *testing.T) {
	a := bptree.NewSet("1", "2", "3")
	b := bptree.NewSet("2", "3", "4")
	c := bptree.NewSet("2", "5")

	got := Intersect(a, b, c)
	require.ElementsMatch(t, []string{"2"}, got.Slice())
}

func TestIntersectOfNoSetsIsEmpty(t *testing.T) {
	got := Intersect()
	require.Empty(t, got)
}

func TestUnion(t *testing.T) {
	a := bptree.NewSet("1", "2")
	b := bptree.NewSet("2", "3")

	got := Union(a, b)
	require.ElementsMatch(t, []string{"1", "2", "3"}, got.Slice())
}

func TestUnionOfNoSetsIsEmpty(t *testing.T) {
	got := Union()
	require.Empty(t, got)
}
