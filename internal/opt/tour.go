package opt

import (
	"fmt"

	"routeplanner/internal/geo"
)

// TourCost sums m[order[i]][order[i+1]] left to right.
func TourCost(m geo.DistanceMatrix, order []int) float64 {
	total := 0.0
	for i := 0; i+1 < len(order); i++ {
		total += m[order[i]][order[i+1]]
	}
	return total
}

// ValidateTour checks that order is a closed tour over n points rooted at depot.
func ValidateTour(order []int, n, depot int) error {
	if len(order) != n+1 {
		return fmt.Errorf("%w: length %d, want %d", ErrInvalidTour, len(order), n+1)
	}
	if order[0] != depot || order[n] != depot {
		return fmt.Errorf("%w: must start and end at depot %d", ErrInvalidTour, depot)
	}
	seen := make([]bool, n)
	seen[depot] = true
	for _, v := range order[1:n] {
		if v < 0 || v >= n {
			return fmt.Errorf("%w: index %d out of range", ErrInvalidTour, v)
		}
		if seen[v] {
			return fmt.Errorf("%w: index %d visited twice", ErrInvalidTour, v)
		}
		seen[v] = true
	}
	return nil
}
