package opt

import (
	"math"

	"routeplanner/internal/geo"
)

// heldKarp returns an optimal closed tour rooted at depot.
//
// dp[mask*n+j] is the minimum cost of a path that starts at depot, visits
// exactly the nodes in mask (which always contains depot) and ends at j.
// Predecessors are scanned in ascending index order and only a strictly
// smaller cost replaces the incumbent, so the first minimum wins ties.
//
// Time O(2^n·n²), memory O(2^n·n). Callers bound n by HardExactMaxN.
func heldKarp(m geo.DistanceMatrix, depot int) []int {
	n := m.Size()
	size := 1 << n
	full := size - 1
	start := 1 << depot

	dp := make([]float64, size*n)
	parent := make([]int8, size*n)
	for i := range dp {
		dp[i] = math.Inf(1)
		parent[i] = -1
	}
	dp[start*n+depot] = 0

	for mask := 0; mask < size; mask++ {
		if mask&start == 0 || mask == start {
			continue
		}
		for j := 0; j < n; j++ {
			if j == depot || mask&(1<<j) == 0 {
				continue
			}
			prev := mask ^ (1 << j)
			best := math.Inf(1)
			from := -1
			for k := 0; k < n; k++ {
				if prev&(1<<k) == 0 {
					continue
				}
				c := dp[prev*n+k]
				if math.IsInf(c, 1) {
					continue
				}
				if cand := c + m[k][j]; cand < best {
					best = cand
					from = k
				}
			}
			dp[mask*n+j] = best
			parent[mask*n+j] = int8(from)
		}
	}

	best := math.Inf(1)
	last := -1
	for i := 0; i < n; i++ {
		if i == depot {
			continue
		}
		if total := dp[full*n+i] + m[i][depot]; total < best {
			best = total
			last = i
		}
	}

	order := make([]int, n+1)
	order[0], order[n] = depot, depot
	mask := full
	for pos := n - 1; pos >= 1; pos-- {
		order[pos] = last
		p := int(parent[mask*n+last])
		mask ^= 1 << last
		last = p
	}
	return order
}
