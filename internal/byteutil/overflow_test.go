package byteutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSafeAdd(t *testing.T) {
	tests := []struct {
		name    string
		a, b    int
		want    int
		wantErr bool
	}{
		{name: "ordinary sum", a: 40, b: 4096, want: 4136},
		{name: "zero plus zero", a: 0, b: 0, want: 0},
		{name: "overflow near max int", a: math.MaxInt - 1, b: 2, wantErr: true},
		{name: "negative operand never overflows", a: -10, b: 5, want: -5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SafeAdd(tt.a, tt.b)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestCeilDiv(t *testing.T) {
	tests := []struct {
		name string
		a, b int
		want int
	}{
		{name: "exact division", a: 100, b: 10, want: 10},
		{name: "remainder rounds up", a: 101, b: 10, want: 11},
		{name: "single byte spans one chunk", a: 1, b: 4056, want: 1},
		{name: "zero divisor guarded", a: 10, b: 0, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, CeilDiv(tt.a, tt.b))
		})
	}
}
