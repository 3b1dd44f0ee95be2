// Package primer implements the offline regression primer's runtime half:
// it seeds weight-matrix rows 2..N from the Win probability vector using
// coefficients an external training job already fitted, giving the online
// weight fitter a starting point better than a uniform or Win-cloned row.
// Training (dataset extraction, regression fitting, evaluation) is out of
// scope here — this package is a pure forward predictor, grounded on
// init_weighted_probs in the reference implementation's model/fit.rs.
package primer

import (
	"fmt"
	"math"

	"github.com/obsidiandynamics/brumby/internal/matrix"
	"github.com/obsidiandynamics/brumby/internal/regression"
)

// Input feature names a formula may reference, matching the factors the
// offline trainer observed: the runner's Win probability, the index of the
// rank being seeded (2, 3, ...), the count of active (non-scratched)
// runners in the field, and the standard deviation of the Win vector.
const (
	FeatureWinProb       = "win_prob"
	FeaturePlacesPaying  = "places_paying"
	FeatureActiveRunners = "active_runners"
	FeatureStdev         = "stdev"
)

func stdev(winProbs []float64, active []int) float64 {
	if len(active) == 0 {
		return 0
	}
	mean := 0.0
	for _, j := range active {
		mean += winProbs[j]
	}
	mean /= float64(len(active))
	variance := 0.0
	for _, j := range active {
		d := winProbs[j] - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(active)))
}

// Seed populates rows 1..len(perRank) of w (row 0 is the Win row; the
// caller has already copied winProbs into it and Seed never touches it)
// using one regression.Predictor per non-winning rank. perRank[0] seeds row
// 1 (rank bound 2), perRank[1] seeds row 2 (rank bound 3), and so on.
// Negative predictions are clamped to 0 (a fitted formula can overshoot for
// an extreme win probability) before each row is renormalised to sum to 1
// over the active columns.
func Seed(w *matrix.Flat, winProbs []float64, perRank []regression.Coefficients) error {
	if len(winProbs) != w.Cols() {
		return fmt.Errorf("primer: winProbs length %d does not match %d columns", len(winProbs), w.Cols())
	}
	if len(perRank) > w.Rows()-1 {
		return fmt.Errorf("primer: %d coefficient sets exceed %d non-winning rows", len(perRank), w.Rows()-1)
	}

	active := make([]int, 0, len(winProbs))
	for j, p := range winProbs {
		if p > 0 {
			active = append(active, j)
		}
	}
	activeCount := float64(len(active))
	sd := stdev(winProbs, active)

	for rankIdx, coeffs := range perRank {
		row := rankIdx + 1
		predictor, err := regression.NewPredictor(coeffs)
		if err != nil {
			return fmt.Errorf("primer: rank %d: %w", row+1, err)
		}
		for _, j := range active {
			inputs := map[string]float64{
				FeatureWinProb:       winProbs[j],
				FeaturePlacesPaying:  float64(row + 1),
				FeatureActiveRunners: activeCount,
				FeatureStdev:         sd,
			}
			v, err := predictor.Predict(inputs)
			if err != nil {
				return fmt.Errorf("primer: rank %d runner %d: %w", row+1, j, err)
			}
			if v < 0 {
				v = 0
			}
			w.Set(row, j, v)
		}
		w.NormaliseRow(row, active, 1.0)
	}
	return nil
}
