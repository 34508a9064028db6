package opt

import "routeplanner/internal/geo"

// nearestNeighbor builds a closed tour from depot by always moving to the
// closest unvisited point. Ties go to the lowest index.
func nearestNeighbor(m geo.DistanceMatrix, depot int) []int {
	n := m.Size()
	visited := make([]bool, n)
	visited[depot] = true
	order := make([]int, 0, n+1)
	order = append(order, depot)
	cur := depot
	for len(order) < n {
		next := -1
		for j := 0; j < n; j++ {
			if visited[j] {
				continue
			}
			if next < 0 || m[cur][j] < m[cur][next] {
				next = j
			}
		}
		visited[next] = true
		order = append(order, next)
		cur = next
	}
	return append(order, depot)
}

// twoOpt applies first-improvement 2-opt to a closed tour: reversing the
// segment order[i..k] replaces arcs (a,b),(c,d) with (a,c),(b,d). The depot
// at both ends never moves. It stops after a pass with no improving move or
// after maxPasses passes and returns the tour and the passes run.
//
// On asymmetric matrices the reversed segment is traversed backwards, so its
// internal arcs are part of the move's delta.
func twoOpt(m geo.DistanceMatrix, tour []int, maxPasses int) ([]int, int) {
	best := append([]int(nil), tour...)
	n := len(best) - 1
	symmetric := m.Symmetric(0)
	passes := 0
	for passes < maxPasses {
		passes++
		improved := false
		for i := 1; i < n-1; i++ {
			for k := i + 1; k < n; k++ {
				a, b, c, d := best[i-1], best[i], best[k], best[k+1]
				delta := m[a][c] + m[b][d] - m[a][b] - m[c][d]
				if !symmetric {
					delta += reversalDelta(m, best, i, k)
				}
				if delta < -improveEps {
					reverse(best, i, k)
					improved = true
				}
			}
		}
		if !improved {
			break
		}
	}
	return best, passes
}

// reversalDelta is the change in cost of walking order[i..k] backwards.
func reversalDelta(m geo.DistanceMatrix, order []int, i, k int) float64 {
	d := 0.0
	for p := i; p < k; p++ {
		u, v := order[p], order[p+1]
		d += m[v][u] - m[u][v]
	}
	return d
}

func reverse(order []int, i, k int) {
	for i < k {
		order[i], order[k] = order[k], order[i]
		i++
		k--
	}
}
