package multi

import (
	"errors"
	"math"
	"testing"

	"github.com/obsidiandynamics/brumby/internal/matrix"
	"github.com/obsidiandynamics/brumby/internal/podium"
	"github.com/obsidiandynamics/brumby/internal/xorshift"
)

func TestValidateRejectsDuplicateRunner(t *testing.T) {
	err := Validate([]Selection{{Runner: 0, Rank: 1}, {Runner: 0, Rank: 2}}, 4)
	if !errors.Is(err, ErrInvalidSelection) {
		t.Fatalf("err = %v, want ErrInvalidSelection", err)
	}
}

func TestValidateRejectsDuplicateRank(t *testing.T) {
	err := Validate([]Selection{{Runner: 0, Rank: 1}, {Runner: 1, Rank: 1}}, 4)
	if !errors.Is(err, ErrInvalidSelection) {
		t.Fatalf("err = %v, want ErrInvalidSelection", err)
	}
}

func TestValidateRejectsOutOfRangeRunner(t *testing.T) {
	err := Validate([]Selection{{Runner: 9, Rank: 1}}, 4)
	if !errors.Is(err, ErrInvalidSelection) {
		t.Fatalf("err = %v, want ErrInvalidSelection", err)
	}
}

func TestDeriveMultiSingleSelectionMatchesMarginal(t *testing.T) {
	winProbs := []float64{0.5, 0.3, 0.2}
	w := matrix.New(1, 3)
	copy(w.Row(0), winProbs)

	result, err := DeriveMulti(podium.NewEngine(), w, []Selection{{Runner: 0, Rank: 1}}, 300_000, xorshift.New(7))
	if err != nil {
		t.Fatalf("DeriveMulti: %v", err)
	}
	if math.Abs(result.Probability-0.5) > 0.01 {
		t.Fatalf("Probability = %v, want close to 0.5", result.Probability)
	}
	if math.Abs(result.Price-1.0/result.Probability) > 1e-9 {
		t.Fatalf("Price does not match 1/Probability")
	}
}

func TestDeriveMultiAnalyticMatchesMonteCarlo(t *testing.T) {
	winProbs := []float64{0.4, 0.3, 0.2, 0.1}
	w := matrix.New(2, 4)
	copy(w.Row(0), winProbs)
	copy(w.Row(1), winProbs)

	selections := []Selection{{Runner: 0, Rank: 1}, {Runner: 1, Rank: 2}}

	analytic, err := DeriveMultiAnalytic(winProbs, selections)
	if err != nil {
		t.Fatalf("DeriveMultiAnalytic: %v", err)
	}

	mc, err := DeriveMulti(podium.NewEngine(), w, selections, 1_000_000, xorshift.New(42))
	if err != nil {
		t.Fatalf("DeriveMulti: %v", err)
	}

	if math.Abs(analytic.Probability-mc.Probability) > 0.01 {
		t.Fatalf("analytic = %v, mc = %v, diverge by more than 0.01", analytic.Probability, mc.Probability)
	}
}

func TestDeriveMultiAnalyticRejectsGapInRanks(t *testing.T) {
	winProbs := []float64{0.4, 0.3, 0.2, 0.1}
	_, err := DeriveMultiAnalytic(winProbs, []Selection{{Runner: 0, Rank: 1}, {Runner: 1, Rank: 3}})
	if !errors.Is(err, ErrHarvilleUnsupported) {
		t.Fatalf("err = %v, want ErrHarvilleUnsupported", err)
	}
}

func TestDeriveMultiRejectsInvalidSelection(t *testing.T) {
	w := matrix.New(1, 3)
	copy(w.Row(0), []float64{0.5, 0.3, 0.2})
	_, err := DeriveMulti(podium.NewEngine(), w, []Selection{{Runner: 0, Rank: 1}, {Runner: 0, Rank: 2}}, 1000, xorshift.New(1))
	if !errors.Is(err, ErrInvalidSelection) {
		t.Fatalf("err = %v, want ErrInvalidSelection", err)
	}
}
