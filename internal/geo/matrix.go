package geo

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidMatrix is returned by DistanceMatrix.Validate.
var ErrInvalidMatrix = errors.New("invalid distance matrix")

// DistanceMatrix maps the ordered pair (i, j) to the distance from point i
// to point j in kilometers. It is built once per request and never mutated.
// Only great-circle matrices are guaranteed symmetric.
type DistanceMatrix [][]float64

// BuildMatrix computes the pairwise haversine matrix for points.
func BuildMatrix(points []Point) (DistanceMatrix, error) {
	for i, p := range points {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
	}
	n := len(points)
	m := make(DistanceMatrix, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := Haversine(points[i], points[j])
			m[i][j] = d
			m[j][i] = d
		}
	}
	return m, nil
}

// Size returns the number of points the matrix covers.
func (m DistanceMatrix) Size() int { return len(m) }

// At returns the distance from i to j.
func (m DistanceMatrix) At(i, j int) float64 { return m[i][j] }

// Validate checks shape and values: square, zero diagonal, finite and
// non-negative entries.
func (m DistanceMatrix) Validate() error {
	n := len(m)
	for i := 0; i < n; i++ {
		if len(m[i]) != n {
			return fmt.Errorf("%w: row %d has length %d, want %d", ErrInvalidMatrix, i, len(m[i]), n)
		}
		for j := 0; j < n; j++ {
			d := m[i][j]
			if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
				return fmt.Errorf("%w: entry [%d][%d]=%v", ErrInvalidMatrix, i, j, d)
			}
		}
		if m[i][i] != 0 {
			return fmt.Errorf("%w: diagonal [%d][%d]=%v", ErrInvalidMatrix, i, i, m[i][i])
		}
	}
	return nil
}

// Symmetric reports whether m[i][j] and m[j][i] differ by at most tol for all pairs.
func (m DistanceMatrix) Symmetric(tol float64) bool {
	n := len(m)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if math.Abs(m[i][j]-m[j][i]) > tol {
				return false
			}
		}
	}
	return true
}
