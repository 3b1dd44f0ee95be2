// Package fitter implements the online weight-fitting loop: it nudges a
// weight matrix W so that the Monte Carlo engine's Top-X column matches an
// observed Place market within tolerance, with a controllable open-loop
// coupling to the other ranks. The inner loop is grounded on the reference
// fit_individual simulate/compare/adjust/renormalise cycle; the closed/open
// loop split and the row-1 pin are specified directly by this package's
// caller contract.
package fitter

import (
	"errors"
	"fmt"
	"math"

	"github.com/obsidiandynamics/brumby/internal/diagnostics"
	"github.com/obsidiandynamics/brumby/internal/matrix"
	"github.com/obsidiandynamics/brumby/internal/metrics"
	"github.com/obsidiandynamics/brumby/internal/podium"
	"github.com/obsidiandynamics/brumby/internal/xorshift"
)

// ErrConvergenceExceeded signals the fitter reached its iteration budget
// without meeting TargetMSRE. The best W seen (lowest MSRE, not the last) is
// still returned alongside this error.
var ErrConvergenceExceeded = errors.New("fitter: convergence budget exceeded")

// DefaultTargetMSRE is the default online fit target MSRE (spec §6).
const DefaultTargetMSRE = 1e-6

// FastTargetMSRE is the "fast preset" online fit target MSRE (spec §6).
const FastTargetMSRE = 1e-3

const defaultMaxIterations = 100

// Options configures one fit run.
type Options struct {
	MaxIterations uint64
	TargetMSRE    float64
	// OpenLoopExponent is t in [0,1]. 0 adjusts only the Place rank; 1
	// applies the same adjustment to every rank.
	OpenLoopExponent float64
	Trials           uint64
}

// Outcome reports how a fit run ended.
type Outcome struct {
	Iterations uint64
	MSRE       float64
	Converged  bool
}

// Fit returns a new weight matrix (the input w is read but not mutated)
// whose rows have been adjusted so that the
// podium engine's Top-X column matches placeProbs. winProbs is row 1 of w
// and is re-pinned bit-exact after every iteration. placesPaying selects
// which 1-based rank is the Place rank being fitted against (X); rowX is
// placesPaying-1 in the zero-based matrix.
func Fit(w *matrix.Flat, winProbs, placeProbs []float64, placesPaying int, opts Options, engine *podium.Engine, rng *xorshift.Rand) (*matrix.Flat, Outcome, error) {
	if placesPaying < 1 || placesPaying > w.Rows() {
		return nil, Outcome{}, fmt.Errorf("fitter: placesPaying %d out of range for %d rows", placesPaying, w.Rows())
	}
	if opts.MaxIterations == 0 {
		opts.MaxIterations = defaultMaxIterations
	}
	if opts.TargetMSRE == 0 {
		opts.TargetMSRE = DefaultTargetMSRE
	}
	rowX := placesPaying - 1
	runners := w.Cols()

	active := make([]int, 0, runners)
	for j, p := range winProbs {
		if p > 0 {
			active = append(active, j)
		}
	}

	current := matrix.New(w.Rows(), w.Cols())
	copy(current.Flatten(), w.Flatten())

	var best *matrix.Flat
	bestMSRE := math.MaxFloat64

	var iter uint64
	for iter = 1; iter <= opts.MaxIterations; iter++ {
		cumulative, _, err := engine.Simulate(current, opts.Trials, rng)
		if err != nil {
			return nil, Outcome{}, fmt.Errorf("fitter: simulate: %w", err)
		}
		topX := cumulative.Row(rowX)

		msre := 0.0
		adjustment := make([]float64, runners)
		for _, j := range active {
			modelProb := topX[j]
			if modelProb <= 0 {
				adjustment[j] = 1.0
				continue
			}
			modelFairPrice := 1.0 / modelProb
			observedFairPrice := 1.0 / placeProbs[j]
			adjustment[j] = observedFairPrice / modelFairPrice
			relErr := (observedFairPrice - modelFairPrice) / observedFairPrice
			msre += relErr * relErr
		}
		msre /= float64(len(active))

		if msre < bestMSRE {
			bestMSRE = msre
			best = matrix.New(current.Rows(), current.Cols())
			copy(best.Flatten(), current.Flatten())
		}

		metrics.FitIterations.Observe(float64(iter))
		if msre <= opts.TargetMSRE {
			metrics.FitConvergenceTotal.WithLabelValues("converged").Inc()
			return current, Outcome{Iterations: iter, MSRE: msre, Converged: true}, nil
		}

		for row := 0; row < current.Rows(); row++ {
			for _, j := range active {
				exponent := opts.OpenLoopExponent
				if row == rowX {
					exponent = 1.0
				}
				factor := math.Pow(adjustment[j], exponent)
				current.Set(row, j, current.At(row, j)*factor)
			}
			current.NormaliseRow(row, active, 1.0)
		}
		copy(current.Row(0), winProbs)
	}

	metrics.FitConvergenceTotal.WithLabelValues("exceeded").Inc()
	diagnostics.ConvergenceExceeded("online_weight_fit", iter-1, 0, bestMSRE)
	if best == nil {
		best = current
	}
	return best, Outcome{Iterations: iter - 1, MSRE: bestMSRE, Converged: false}, fmt.Errorf("%w: after %d iterations, msre=%v", ErrConvergenceExceeded, iter-1, bestMSRE)
}
