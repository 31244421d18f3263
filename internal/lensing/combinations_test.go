package lensing_test

import (
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/lensfind/internal/lensing"
)

func TestCombinations(t *testing.T) {
	t.Parallel()

	t.Run("yields subsets in lexicographic order", func(t *testing.T) {
		t.Parallel()

		var got [][]int
		for idx := range lensing.Combinations(5, 3) {
			got = append(got, slices.Clone(idx))
		}
		want := [][]int{
			{0, 1, 2}, {0, 1, 3}, {0, 1, 4}, {0, 2, 3}, {0, 2, 4},
			{0, 3, 4}, {1, 2, 3}, {1, 2, 4}, {1, 3, 4}, {2, 3, 4},
		}
		assert.Equal(t, want, got)
	})

	t.Run("count matches the binomial coefficient", func(t *testing.T) {
		t.Parallel()

		for n := 0; n <= 12; n++ {
			for k := 1; k <= n; k++ {
				var count uint64
				for range lensing.Combinations(n, k) {
					count++
				}
				require.Equal(t, lensing.Binomial(n, k), count, "C(%d,%d)", n, k)
			}
		}
	})

	t.Run("yields nothing for out of range k", func(t *testing.T) {
		t.Parallel()

		for _, tc := range [][2]int{{3, 4}, {3, 0}, {0, 1}, {5, -1}} {
			for range lensing.Combinations(tc[0], tc[1]) {
				t.Fatalf("unexpected subset for n=%d k=%d", tc[0], tc[1])
			}
		}
	})

	t.Run("full subset is yielded once", func(t *testing.T) {
		t.Parallel()

		var got [][]int
		for idx := range lensing.Combinations(4, 4) {
			got = append(got, slices.Clone(idx))
		}
		assert.Equal(t, [][]int{{0, 1, 2, 3}}, got)
	})

	t.Run("stops when the consumer breaks", func(t *testing.T) {
		t.Parallel()

		seen := 0
		for range lensing.Combinations(30, 5) {
			seen++
			if seen == 3 {
				break
			}
		}
		assert.Equal(t, 3, seen)
	})
}

func TestBinomial(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n, k int
		want uint64
	}{
		{0, 0, 1},
		{5, 0, 1},
		{5, 5, 1},
		{10, 4, 210},
		{10, 5, 252},
		{49, 4, 211876},
		{49, 5, 1906884},
		{60, 30, 118264581564861424},
		{3, 4, 0},
		{3, -1, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, lensing.Binomial(tt.n, tt.k), "C(%d,%d)", tt.n, tt.k)
	}

	t.Run("saturates instead of overflowing", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, uint64(math.MaxUint64), lensing.Binomial(200, 100))
	})
}
