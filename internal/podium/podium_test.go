package podium

import (
	"math"
	"testing"

	"github.com/obsidiandynamics/brumby/internal/matrix"
	"github.com/obsidiandynamics/brumby/internal/xorshift"
)

func uniformWeights(ranks, runners int) *matrix.Flat {
	w := matrix.New(ranks, runners)
	for r := 0; r < ranks; r++ {
		for c := 0; c < runners; c++ {
			w.Set(r, c, 1.0/float64(runners))
		}
	}
	return w
}

func TestSimulateRowSumsEqualRankBound(t *testing.T) {
	w := uniformWeights(3, 5)
	e := NewEngine()
	rng := xorshift.New(7)
	m, stats, err := e.Simulate(w, 200_000, rng)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if stats.Skipped != 0 {
		t.Fatalf("unexpected skips: %+v", stats)
	}
	for row := 0; row < m.Rows(); row++ {
		want := float64(row + 1)
		got := m.RowSum(row)
		if math.Abs(got-want) > 0.02 {
			t.Fatalf("row %d sums to %v, want close to %v", row, got, want)
		}
	}
}

func TestSimulateMonotoneAcrossRanks(t *testing.T) {
	w := matrix.New(3, 4)
	w.Row(0)[0], w.Row(0)[1], w.Row(0)[2], w.Row(0)[3] = 0.4, 0.3, 0.2, 0.1
	copy(w.Row(1), w.Row(0))
	copy(w.Row(2), w.Row(0))

	e := NewEngine()
	rng := xorshift.New(123)
	m, _, err := e.Simulate(w, 200_000, rng)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	for col := 0; col < m.Cols(); col++ {
		for row := 0; row < m.Rows()-1; row++ {
			if m.At(row, col) > m.At(row+1, col)+1e-9 {
				t.Fatalf("col %d: P(top-%d)=%v > P(top-%d)=%v", col, row+1, m.At(row, col), row+2, m.At(row+1, col))
			}
		}
	}
}

func TestSimulateWinRowMatchesRowOneDirectly(t *testing.T) {
	w := matrix.New(2, 3)
	copy(w.Row(0), []float64{0.6, 0.3, 0.1})
	copy(w.Row(1), []float64{0.6, 0.3, 0.1})

	e := NewEngine()
	rng := xorshift.New(99)
	m, _, err := e.Simulate(w, 500_000, rng)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	for col, want := range []float64{0.6, 0.3, 0.1} {
		if math.Abs(m.At(0, col)-want) > 0.01 {
			t.Fatalf("Win prob col %d = %v, want close to %v", col, m.At(0, col), want)
		}
	}
}

func TestSimulateSkipsDegenerateRank(t *testing.T) {
	// Rank 2's weights are all zero once rank 1 always takes runner 0: the
	// second rank has zero active mass every trial.
	w := matrix.New(2, 2)
	copy(w.Row(0), []float64{1.0, 0.0})
	copy(w.Row(1), []float64{1.0, 0.0})

	e := NewEngine()
	rng := xorshift.New(5)
	_, stats, err := e.Simulate(w, 1000, rng)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if stats.Skipped == 0 {
		t.Fatal("expected every trial to skip at rank 2")
	}
	if stats.SkippedFraction < 0.99 {
		t.Fatalf("SkippedFraction = %v, want close to 1.0", stats.SkippedFraction)
	}
}

func TestSimulateDeterministicForSameSeed(t *testing.T) {
	w := uniformWeights(2, 6)
	a, _, err := NewEngine().Simulate(w, 5000, xorshift.New(42))
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	b, _, err := NewEngine().Simulate(w, 5000, xorshift.New(42))
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	for i, v := range a.Flatten() {
		if v != b.Flatten()[i] {
			t.Fatalf("entry %d diverged: %v vs %v", i, v, b.Flatten()[i])
		}
	}
}

func TestSimulateRejectsEmptyMatrix(t *testing.T) {
	_, _, err := NewEngine().Simulate(matrix.New(0, 0), 100, xorshift.New(1))
	if err == nil {
		t.Fatal("expected an error for an empty weight matrix")
	}
}
