// Package multi computes joint finishing probabilities for a vector of
// runner/rank-bound selections — a "same-race multi": a bet that wins only
// if every selection's runner finishes within its rank bound in the same
// running of the race. The default computation tallies the podiums the
// Monte Carlo engine already produces; an exact analytic cross-check
// (Harville's conditional-product form) is available when the selections'
// rank bounds form a gapless run starting at 1, ported from the reference
// harville() function.
package multi

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/obsidiandynamics/brumby/internal/matrix"
	"github.com/obsidiandynamics/brumby/internal/podium"
	"github.com/obsidiandynamics/brumby/internal/xorshift"
)

// ErrInvalidSelection signals a duplicate runner or rank bound, or an
// out-of-range one, in a selection vector.
var ErrInvalidSelection = errors.New("multi: invalid selection")

// ErrHarvilleUnsupported signals that Harville's exact form doesn't apply
// to this selection vector (its rank bounds aren't a gapless run from 1).
var ErrHarvilleUnsupported = errors.New("multi: selections do not support the Harville analytic form")

// Selection names a runner and the rank it must finish within: Rank 1 means
// the runner must win outright; Rank 3 means top-3.
type Selection struct {
	Runner int
	Rank   int
}

// Validate checks the structural constraints a selection vector must
// satisfy regardless of how the joint probability is computed: distinct
// runners, distinct rank bounds, all in range.
func Validate(selections []Selection, runners int) error {
	if len(selections) == 0 {
		return fmt.Errorf("%w: empty selection vector", ErrInvalidSelection)
	}
	seenRunner := make(map[int]bool, len(selections))
	seenRank := make(map[int]bool, len(selections))
	for _, s := range selections {
		if s.Runner < 0 || s.Runner >= runners {
			return fmt.Errorf("%w: runner %d out of range [0,%d)", ErrInvalidSelection, s.Runner, runners)
		}
		if s.Rank < 1 {
			return fmt.Errorf("%w: rank %d is less than 1", ErrInvalidSelection, s.Rank)
		}
		if seenRunner[s.Runner] {
			return fmt.Errorf("%w: duplicate runner %d", ErrInvalidSelection, s.Runner)
		}
		if seenRank[s.Rank] {
			return fmt.Errorf("%w: duplicate rank %d", ErrInvalidSelection, s.Rank)
		}
		seenRunner[s.Runner] = true
		seenRank[s.Rank] = true
	}
	return nil
}

func matches(order []int, s Selection) bool {
	bound := s.Rank
	if bound > len(order) {
		bound = len(order)
	}
	for r := 0; r < bound; r++ {
		if order[r] == s.Runner {
			return true
		}
	}
	return false
}

func allMatch(order []int, selections []Selection) bool {
	for _, s := range selections {
		if !matches(order, s) {
			return false
		}
	}
	return true
}

// Result is a joint finishing probability and the price it implies.
type Result struct {
	Probability float64
	Price       float64
}

func toResult(prob float64) Result {
	price := math.Inf(1)
	if prob > 0 {
		price = 1.0 / prob
	}
	return Result{Probability: prob, Price: price}
}

// DeriveMulti computes the joint probability of selections via the Monte
// Carlo engine: it re-runs trials simulations of w and counts the fraction
// whose podium satisfies every selection. This is the spec-mandated
// authoritative form.
func DeriveMulti(engine *podium.Engine, w *matrix.Flat, selections []Selection, trials uint64, rng *xorshift.Rand) (Result, error) {
	if err := Validate(selections, w.Cols()); err != nil {
		return Result{}, err
	}
	var matching uint64
	stats, err := engine.SimulateTrials(w, trials, rng, func(order []int) {
		if allMatch(order, selections) {
			matching++
		}
	})
	if err != nil {
		return Result{}, err
	}
	return toResult(float64(matching) / float64(stats.Trials)), nil
}

// DeriveMultiAnalytic computes the joint probability using the Harville
// conditional-product form instead of simulation. It requires the
// selections' rank bounds to form a gapless run starting at 1 (so that
// "finishes within rank k" is equivalent, under the distinct-runner
// constraint, to occupying position k exactly).
func DeriveMultiAnalytic(winProbs []float64, selections []Selection) (Result, error) {
	if err := Validate(selections, len(winProbs)); err != nil {
		return Result{}, err
	}
	ordered := append([]Selection(nil), selections...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Rank < ordered[j].Rank })
	for i, s := range ordered {
		if s.Rank != i+1 {
			return Result{}, fmt.Errorf("%w: rank bounds are not a gapless run from 1", ErrHarvilleUnsupported)
		}
	}

	combined := 1.0
	remaining := 1.0
	for _, s := range ordered {
		p := winProbs[s.Runner]
		if remaining <= 0 {
			return Result{}, fmt.Errorf("%w: exhausted remaining probability mass", ErrHarvilleUnsupported)
		}
		combined *= p / remaining
		remaining -= p
	}
	return toResult(combined), nil
}
