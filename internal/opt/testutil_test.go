package opt_test

import (
	"math"
	"math/rand"

	"routeplanner/internal/geo"
	"routeplanner/internal/opt"
)

// randomPoints returns n deterministic points in a small box around Antipolo.
func randomPoints(seed int64, n int) []geo.Point {
	rng := rand.New(rand.NewSource(seed))
	pts := make([]geo.Point, n)
	for i := range pts {
		pts[i] = geo.Point{ID: i, Lat: 14.5 + rng.Float64()*0.3, Lng: 121.0 + rng.Float64()*0.3}
	}
	return pts
}

// randomAsymmetric returns an n×n matrix with independent entries per direction.
func randomAsymmetric(seed int64, n int) geo.DistanceMatrix {
	rng := rand.New(rand.NewSource(seed))
	m := make(geo.DistanceMatrix, n)
	for i := range m {
		m[i] = make([]float64, n)
		for j := range m[i] {
			if i != j {
				m[i][j] = 1 + rng.Float64()*99
			}
		}
	}
	return m
}

func mustMatrix(pts []geo.Point) geo.DistanceMatrix {
	m, err := geo.BuildMatrix(pts)
	if err != nil {
		panic(err)
	}
	return m
}

// bruteForce enumerates every tour rooted at depot and returns the best cost.
func bruteForce(m geo.DistanceMatrix, depot int) float64 {
	n := m.Size()
	rest := make([]int, 0, n-1)
	for i := 0; i < n; i++ {
		if i != depot {
			rest = append(rest, i)
		}
	}
	best := math.Inf(1)
	permute(rest, 0, func(p []int) {
		order := append(append([]int{depot}, p...), depot)
		if c := opt.TourCost(m, order); c < best {
			best = c
		}
	})
	return best
}

func permute(a []int, k int, visit func([]int)) {
	if k == len(a) {
		visit(a)
		return
	}
	for i := k; i < len(a); i++ {
		a[k], a[i] = a[i], a[k]
		permute(a, k+1, visit)
		a[k], a[i] = a[i], a[k]
	}
}
