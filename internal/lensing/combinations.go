package lensing

import (
	"iter"
	"math"
)

// Combinations yields every k-element subset of {0, …, n-1} as a sorted
// index slice, in lexicographic order. Nothing is materialized up front.
//
// The yielded slice is reused between iterations; callers that keep a
// subset must copy it. If k <= 0 or k > n nothing is yielded.
//
// Complexity: C(n,k) iterations, O(k) memory.
func Combinations(n, k int) iter.Seq[[]int] {
	return func(yield func([]int) bool) {
		if k <= 0 || k > n {
			return
		}
		idx := make([]int, k)
		for i := range idx {
			idx[i] = i
		}
		for {
			if !yield(idx) {
				return
			}
			// Find the rightmost position that can still advance.
			i := k - 1
			for i >= 0 && idx[i] == n-k+i {
				i--
			}
			if i < 0 {
				return
			}
			idx[i]++
			for j := i + 1; j < k; j++ {
				idx[j] = idx[j-1] + 1
			}
		}
	}
}

// Binomial returns C(n, k), saturating at math.MaxUint64.
func Binomial(n, k int) uint64 {
	if k < 0 || n < 0 || k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}
	var c uint64 = 1
	for i := 1; i <= k; i++ {
		num := uint64(n - k + i)
		// c*num/i is exact at every step; check for overflow before multiplying.
		if c > math.MaxUint64/num {
			return math.MaxUint64
		}
		c = c * num / uint64(i)
	}
	return c
}
