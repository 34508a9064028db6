package opt_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"routeplanner/internal/geo"
	"routeplanner/internal/opt"
)

func requireClosedTour(t *testing.T, res opt.Result, n, depot int) {
	t.Helper()
	require.NoError(t, opt.ValidateTour(res.Order, n, depot))
}

func TestSolve_AntipoloScenario(t *testing.T) {
	pts := []geo.Point{
		{ID: 0, Lat: 14.7104, Lng: 121.1213},
		{ID: 1, Lat: 14.5764, Lng: 121.1323},
		{ID: 2, Lat: 14.6211, Lng: 121.1233},
		{ID: 3, Lat: 14.5869, Lng: 121.1755},
	}
	m := mustMatrix(pts)
	res, err := opt.Solve(m, 0)
	require.NoError(t, err)
	require.Len(t, res.Order, 5)
	requireClosedTour(t, res, 4, 0)
	require.True(t, res.Optimal)
	require.Equal(t, opt.AlgoHeldKarp, res.Algorithm)

	sum := 0.0
	for i := 0; i+1 < len(res.Order); i++ {
		sum += geo.Haversine(pts[res.Order[i]], pts[res.Order[i+1]])
	}
	require.InDelta(t, sum, res.TotalDistance, 1e-12)
	require.InDelta(t, bruteForce(m, 0), res.TotalDistance, 1e-9)

	again, err := opt.Solve(m, 0)
	require.NoError(t, err)
	require.Equal(t, res, again)
}

func TestSolve_ExactMatchesBruteForce(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		pts := randomPoints(seed, 5)
		m := mustMatrix(pts)
		for depot := 0; depot < 5; depot++ {
			res, err := opt.Solve(m, depot)
			require.NoError(t, err)
			requireClosedTour(t, res, 5, depot)
			require.LessOrEqual(t, res.TotalDistance, bruteForce(m, depot)+1e-9)
		}
	}
}

func TestSolve_ExactAsymmetricMatchesBruteForce(t *testing.T) {
	for seed := int64(1); seed <= 10; seed++ {
		m := randomAsymmetric(seed, 7)
		res, err := opt.Solve(m, 2)
		require.NoError(t, err)
		requireClosedTour(t, res, 7, 2)
		require.InDelta(t, bruteForce(m, 2), res.TotalDistance, 1e-9)
	}
}

func TestSolve_HeuristicNeverBeatsExact(t *testing.T) {
	for seed := int64(1); seed <= 10; seed++ {
		m := mustMatrix(randomPoints(seed, 10))
		exact, err := opt.SolveWith(m, 0, opt.Options{Mode: opt.ModeExact})
		require.NoError(t, err)
		heur, err := opt.SolveWith(m, 0, opt.Options{Mode: opt.ModeHeuristic})
		require.NoError(t, err)

		require.True(t, exact.Optimal)
		require.False(t, heur.Optimal)
		require.Equal(t, opt.AlgoTwoOpt, heur.Algorithm)
		requireClosedTour(t, heur, 10, 0)
		require.GreaterOrEqual(t, heur.TotalDistance, exact.TotalDistance-1e-9)
		require.InDelta(t, opt.TourCost(m, heur.Order), heur.TotalDistance, 0)
	}
}

func TestSolve_HeuristicAsymmetric(t *testing.T) {
	m := randomAsymmetric(7, 9)
	exact, err := opt.Solve(m, 4)
	require.NoError(t, err)
	heur, err := opt.SolveWith(m, 4, opt.Options{Mode: opt.ModeHeuristic})
	require.NoError(t, err)
	requireClosedTour(t, heur, 9, 4)
	require.GreaterOrEqual(t, heur.TotalDistance, exact.TotalDistance-1e-9)
	require.Equal(t, opt.TourCost(m, heur.Order), heur.TotalDistance)
}

func TestSolve_SizePolicy(t *testing.T) {
	m12 := mustMatrix(randomPoints(3, 12))
	res, err := opt.Solve(m12, 0)
	require.NoError(t, err)
	require.True(t, res.Optimal)

	m13 := mustMatrix(randomPoints(3, 13))
	res, err = opt.Solve(m13, 0)
	require.NoError(t, err)
	require.False(t, res.Optimal)
	requireClosedTour(t, res, 13, 0)

	// Explicit exact mode above the hard cap falls back to the heuristic.
	m17 := mustMatrix(randomPoints(3, 17))
	res, err = opt.SolveWith(m17, 5, opt.Options{Mode: opt.ModeExact})
	require.NoError(t, err)
	require.False(t, res.Optimal)
	requireClosedTour(t, res, 17, 5)

	// ExactMaxN above the hard cap is clamped.
	res, err = opt.SolveWith(m17, 0, opt.Options{ExactMaxN: 40})
	require.NoError(t, err)
	require.False(t, res.Optimal)
}

func TestSolve_LargeHeuristicDeterministic(t *testing.T) {
	m := mustMatrix(randomPoints(11, 40))
	a, err := opt.Solve(m, 3)
	require.NoError(t, err)
	b, err := opt.Solve(m, 3)
	require.NoError(t, err)
	require.Equal(t, a, b)
	requireClosedTour(t, a, 40, 3)
	require.Greater(t, a.Passes, 0)
	require.LessOrEqual(t, a.Passes, opt.DefaultMaxTwoOptPasses)
}

func TestSolve_TwoOptPassBudget(t *testing.T) {
	m := mustMatrix(randomPoints(5, 30))
	res, err := opt.SolveWith(m, 0, opt.Options{Mode: opt.ModeHeuristic, MaxTwoOptPasses: 1})
	require.NoError(t, err)
	require.Equal(t, 1, res.Passes)
	requireClosedTour(t, res, 30, 0)
}

// requireTwoOptLocalOptimum checks that no segment reversal between the
// depot ends shortens the tour.
func requireTwoOptLocalOptimum(t *testing.T, m geo.DistanceMatrix, res opt.Result) {
	t.Helper()
	cost := opt.TourCost(m, res.Order)
	require.InDelta(t, res.TotalDistance, cost, 1e-9)
	last := len(res.Order) - 2
	for i := 1; i < last; i++ {
		for k := i + 1; k <= last; k++ {
			cand := append([]int(nil), res.Order...)
			for a, b := i, k; a < b; a, b = a+1, b-1 {
				cand[a], cand[b] = cand[b], cand[a]
			}
			require.GreaterOrEqual(t, opt.TourCost(m, cand), cost-1e-9, "reversing [%d..%d] improves the tour", i, k)
		}
	}
}

func TestSolve_HeuristicEndsAtTwoOptLocalOptimum(t *testing.T) {
	for _, seed := range []int64{1, 7, 42} {
		m := mustMatrix(randomPoints(seed, 35))
		res, err := opt.SolveWith(m, 0, opt.Options{Mode: opt.ModeHeuristic})
		require.NoError(t, err)
		require.Less(t, res.Passes, opt.DefaultMaxTwoOptPasses)
		requireTwoOptLocalOptimum(t, m, res)
	}

	am := randomAsymmetric(9, 20)
	res, err := opt.SolveWith(am, 4, opt.Options{Mode: opt.ModeHeuristic})
	require.NoError(t, err)
	require.Less(t, res.Passes, opt.DefaultMaxTwoOptPasses)
	requireTwoOptLocalOptimum(t, am, res)
}

func TestSolve_CoincidentPoints(t *testing.T) {
	m := mustMatrix([]geo.Point{{Lat: 14.6, Lng: 121.1}, {Lat: 14.6, Lng: 121.1}})
	res, err := opt.Solve(m, 0)
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 0}, res.Order)
	require.Equal(t, 0.0, res.TotalDistance)

	res, err = opt.Solve(m, 1)
	require.NoError(t, err)
	require.Equal(t, []int{1, 0, 1}, res.Order)
	require.Equal(t, 0.0, res.TotalDistance)
}

func TestSolve_ManyCoincidentPointsTerminates(t *testing.T) {
	pts := make([]geo.Point, 25)
	for i := range pts {
		pts[i] = geo.Point{ID: i, Lat: 1, Lng: 1}
	}
	res, err := opt.Solve(mustMatrix(pts), 0)
	require.NoError(t, err)
	require.Equal(t, 0.0, res.TotalDistance)
	requireClosedTour(t, res, 25, 0)
	// Nearest neighbor picks the lowest index on ties.
	for i := 0; i < 25; i++ {
		require.Equal(t, i, res.Order[i])
	}
}

func TestSolve_TieBreakLowestIndex(t *testing.T) {
	// Every tour has the same cost; the first minimum in ascending order wins.
	m := geo.DistanceMatrix{
		{0, 1, 1, 1},
		{1, 0, 1, 1},
		{1, 1, 0, 1},
		{1, 1, 1, 0},
	}
	res, err := opt.Solve(m, 0)
	require.NoError(t, err)
	require.Equal(t, 4.0, res.TotalDistance)
	again, err := opt.Solve(m, 0)
	require.NoError(t, err)
	require.Equal(t, res.Order, again.Order)
}

func TestSolve_Errors(t *testing.T) {
	_, err := opt.Solve(geo.DistanceMatrix{}, 0)
	require.ErrorIs(t, err, opt.ErrNoFeasibleTour)
	_, err = opt.Solve(geo.DistanceMatrix{{0}}, 0)
	require.ErrorIs(t, err, opt.ErrNoFeasibleTour)

	m := geo.DistanceMatrix{{0, 1}, {1, 0}}
	_, err = opt.Solve(m, 2)
	require.ErrorIs(t, err, opt.ErrDepotOutOfRange)
	_, err = opt.Solve(m, -1)
	require.ErrorIs(t, err, opt.ErrDepotOutOfRange)

	_, err = opt.Solve(geo.DistanceMatrix{{0, 1}, {1, 5}}, 0)
	require.ErrorIs(t, err, geo.ErrInvalidMatrix)
}

func TestOptimize(t *testing.T) {
	_, err := opt.Optimize([]geo.Point{{Lat: 1, Lng: 1}}, 0, opt.Options{})
	require.ErrorIs(t, err, opt.ErrNoFeasibleTour)

	_, err = opt.Optimize([]geo.Point{{Lat: 1, Lng: 1}, {Lat: 95, Lng: 1}}, 0, opt.Options{})
	require.ErrorIs(t, err, geo.ErrInvalidCoordinate)

	res, err := opt.Optimize(randomPoints(9, 6), 1, opt.Options{})
	require.NoError(t, err)
	requireClosedTour(t, res, 6, 1)
}

func TestValidateTour(t *testing.T) {
	require.NoError(t, opt.ValidateTour([]int{1, 0, 2, 1}, 3, 1))
	require.ErrorIs(t, opt.ValidateTour([]int{1, 0, 1}, 3, 1), opt.ErrInvalidTour)
	require.ErrorIs(t, opt.ValidateTour([]int{0, 1, 2, 1}, 3, 1), opt.ErrInvalidTour)
	require.ErrorIs(t, opt.ValidateTour([]int{1, 0, 0, 1}, 3, 1), opt.ErrInvalidTour)
	require.ErrorIs(t, opt.ValidateTour([]int{1, 0, 5, 1}, 3, 1), opt.ErrInvalidTour)
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"", "auto", "exact", "heuristic"} {
		m, ok := opt.ParseMode(s)
		require.True(t, ok)
		if s != "" {
			require.Equal(t, s, m.String())
		}
	}
	_, ok := opt.ParseMode("greedy")
	require.False(t, ok)
}
