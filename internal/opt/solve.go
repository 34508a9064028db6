package opt

import (
	"fmt"

	"routeplanner/internal/geo"
)

// Solve computes a minimum-length closed tour through every point of m,
// starting and ending at depot, with default options.
func Solve(m geo.DistanceMatrix, depot int) (Result, error) {
	return SolveWith(m, depot, DefaultOptions())
}

// SolveWith is Solve with explicit options.
func SolveWith(m geo.DistanceMatrix, depot int, opts Options) (Result, error) {
	n := m.Size()
	if n < 2 {
		return Result{}, ErrNoFeasibleTour
	}
	if depot < 0 || depot >= n {
		return Result{}, fmt.Errorf("%w: %d not in [0, %d)", ErrDepotOutOfRange, depot, n)
	}
	if err := m.Validate(); err != nil {
		return Result{}, err
	}
	opts = opts.normalized()

	if useExact(n, opts) {
		order := heldKarp(m, depot)
		return Result{Order: order, TotalDistance: TourCost(m, order), Optimal: true, Algorithm: AlgoHeldKarp}, nil
	}
	order := nearestNeighbor(m, depot)
	order, passes := twoOpt(m, order, opts.MaxTwoOptPasses)
	return Result{Order: order, TotalDistance: TourCost(m, order), Algorithm: AlgoTwoOpt, Passes: passes}, nil
}

func useExact(n int, opts Options) bool {
	switch opts.Mode {
	case ModeHeuristic:
		return false
	case ModeExact:
		return n <= HardExactMaxN
	default:
		return n <= opts.ExactMaxN
	}
}

// Optimize builds the haversine matrix for points and solves it.
func Optimize(points []geo.Point, depot int, opts Options) (Result, error) {
	if len(points) < 2 {
		return Result{}, ErrNoFeasibleTour
	}
	m, err := geo.BuildMatrix(points)
	if err != nil {
		return Result{}, err
	}
	return SolveWith(m, depot, opts)
}
