package bptree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompareOrdering(t *testing.T) {
	tests := []struct {
		name string
		a, b Key
		want int
	}{
		{name: "null less than true", a: nil, b: true, want: -1},
		{name: "false equals null", a: false, b: nil, want: 0},
		{name: "numeric ascending", a: float64(1), b: float64(2), want: -1},
		{name: "numeric descending", a: float64(5), b: float64(2), want: 1},
		{name: "numeric equal", a: float64(3), b: float64(3), want: 0},
		{name: "string lexicographic", a: "apple", b: "banana", want: -1},
		{name: "string equal", a: "same", b: "same", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Compare(tt.a, tt.b))
		})
	}
}

func TestEqual(t *testing.T) {
	require.True(t, Equal(nil, false))
	require.True(t, Equal(float64(2), float64(2)))
	require.False(t, Equal("a", "b"))
}
