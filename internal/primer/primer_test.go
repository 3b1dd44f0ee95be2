package primer

import (
	"errors"
	"math"
	"testing"

	"github.com/obsidiandynamics/brumby/internal/matrix"
	"github.com/obsidiandynamics/brumby/internal/regression"
)

func scaledByWinProb(scale float64) regression.Coefficients {
	return regression.Coefficients{
		Terms:        []regression.Term{regression.Variable{Name: FeatureWinProb}},
		Coefficients: []float64{scale},
	}
}

func TestSeedNormalisesEachRowToOne(t *testing.T) {
	winProbs := []float64{0.5, 0.3, 0.2}
	w := matrix.New(3, 3)
	copy(w.Row(0), winProbs)

	err := Seed(w, winProbs, []regression.Coefficients{scaledByWinProb(1.0), scaledByWinProb(2.0)})
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	for row := 1; row < 3; row++ {
		sum := w.RowSum(row)
		if math.Abs(sum-1.0) > 1e-9 {
			t.Fatalf("row %d sums to %v, want 1.0", row, sum)
		}
	}
}

func TestSeedLeavesScratchedColumnsZero(t *testing.T) {
	winProbs := []float64{0.6, 0.0, 0.4}
	w := matrix.New(2, 3)
	copy(w.Row(0), winProbs)

	if err := Seed(w, winProbs, []regression.Coefficients{scaledByWinProb(1.0)}); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if w.At(1, 1) != 0 {
		t.Fatalf("scratched column = %v, want 0", w.At(1, 1))
	}
}

func TestSeedClampsNegativePredictions(t *testing.T) {
	winProbs := []float64{0.5, 0.5}
	w := matrix.New(2, 2)
	copy(w.Row(0), winProbs)

	// A negative coefficient can overshoot into negative territory for a
	// well-formed, positive win probability; Seed must clamp rather than
	// propagate a negative weight into the matrix.
	err := Seed(w, winProbs, []regression.Coefficients{scaledByWinProb(-1.0)})
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	for j := 0; j < 2; j++ {
		if w.At(1, j) < 0 {
			t.Fatalf("col %d = %v, want >= 0", j, w.At(1, j))
		}
	}
}

func TestSeedRejectsMismatchedWinProbLength(t *testing.T) {
	w := matrix.New(2, 3)
	err := Seed(w, []float64{0.5, 0.5}, []regression.Coefficients{scaledByWinProb(1.0)})
	if err == nil {
		t.Fatal("expected an error for mismatched winProbs length")
	}
}

func TestSeedRejectsTooManyCoefficientSets(t *testing.T) {
	w := matrix.New(2, 2)
	err := Seed(w, []float64{0.5, 0.5}, []regression.Coefficients{scaledByWinProb(1.0), scaledByWinProb(1.0)})
	if err == nil {
		t.Fatal("expected an error: more coefficient sets than non-winning rows")
	}
}

func TestSeedPropagatesEvalError(t *testing.T) {
	w := matrix.New(2, 2)
	winProbs := []float64{0.5, 0.5}
	missing := regression.Coefficients{
		Terms:        []regression.Term{regression.Variable{Name: "nonexistent"}},
		Coefficients: []float64{1.0},
	}
	err := Seed(w, winProbs, []regression.Coefficients{missing})
	if !errors.Is(err, regression.ErrEval) {
		t.Fatalf("err = %v, want ErrEval", err)
	}
}
