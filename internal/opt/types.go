// Package opt solves the single-vehicle closed tour (travelling salesman with
// a fixed depot) over a distance matrix.
//
// Small instances are solved exactly with the Held–Karp subset DP; larger ones
// use nearest-neighbor construction followed by 2-opt local search, which is a
// heuristic and carries Optimal=false in the Result.
//
// All functions are pure and deterministic: identical inputs produce identical
// tours, tie-breaks included. They are safe for concurrent use.
package opt

import "errors"

var (
	// ErrNoFeasibleTour is returned when fewer than two points are given.
	ErrNoFeasibleTour = errors.New("no feasible tour: need at least 2 points")
	// ErrDepotOutOfRange is returned when the depot index is not in [0, N).
	ErrDepotOutOfRange = errors.New("depot index out of range")
	// ErrInvalidTour is returned by ValidateTour.
	ErrInvalidTour = errors.New("invalid tour")
)

const (
	// DefaultExactMaxN is the largest N solved with Held–Karp by default.
	DefaultExactMaxN = 12
	// HardExactMaxN caps the exact solver; the DP table is O(2^N·N).
	HardExactMaxN = 16
	// DefaultMaxTwoOptPasses bounds 2-opt so degenerate inputs still terminate.
	DefaultMaxTwoOptPasses = 1000

	// improveEps is the minimum gain for a 2-opt move to be accepted.
	improveEps = 1e-10
)

// Algorithm names reported in Result.
const (
	AlgoHeldKarp = "held-karp"
	AlgoTwoOpt   = "nearest-neighbor+2opt"
)

// Mode selects the solving strategy.
type Mode int

const (
	// ModeAuto solves exactly up to ExactMaxN and heuristically above it.
	ModeAuto Mode = iota
	// ModeExact always uses Held–Karp, except above HardExactMaxN where it
	// falls back to the heuristic.
	ModeExact
	// ModeHeuristic always uses nearest-neighbor + 2-opt.
	ModeHeuristic
)

// ParseMode maps "auto", "exact" and "heuristic" to a Mode. The empty string is auto.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "", "auto":
		return ModeAuto, true
	case "exact":
		return ModeExact, true
	case "heuristic":
		return ModeHeuristic, true
	}
	return ModeAuto, false
}

func (m Mode) String() string {
	switch m {
	case ModeExact:
		return "exact"
	case ModeHeuristic:
		return "heuristic"
	default:
		return "auto"
	}
}

// Options tunes the solver. The zero value means defaults.
type Options struct {
	Mode            Mode
	ExactMaxN       int // 0 => DefaultExactMaxN; clamped to HardExactMaxN
	MaxTwoOptPasses int // 0 => DefaultMaxTwoOptPasses
}

// DefaultOptions returns the solver defaults.
func DefaultOptions() Options {
	return Options{Mode: ModeAuto, ExactMaxN: DefaultExactMaxN, MaxTwoOptPasses: DefaultMaxTwoOptPasses}
}

func (o Options) normalized() Options {
	if o.ExactMaxN <= 0 {
		o.ExactMaxN = DefaultExactMaxN
	}
	if o.ExactMaxN > HardExactMaxN {
		o.ExactMaxN = HardExactMaxN
	}
	if o.MaxTwoOptPasses <= 0 {
		o.MaxTwoOptPasses = DefaultMaxTwoOptPasses
	}
	return o
}

// Result is a closed tour rooted at the depot.
type Result struct {
	// Order has length N+1, starts and ends with the depot and holds every
	// other index exactly once.
	Order []int `json:"order"`
	// TotalDistance is the sum of consecutive-pair distances along Order, in km.
	TotalDistance float64 `json:"totalDistanceKm"`
	// Optimal is true only for Held–Karp tours.
	Optimal   bool   `json:"optimal"`
	Algorithm string `json:"algorithm"`
	// Passes is the number of 2-opt passes run (0 for exact tours).
	Passes int `json:"passes,omitempty"`
}
