// Package podium implements the weighted Monte Carlo podium simulator: given
// a rank-indexed relative-probability matrix it produces an unbiased
// estimate of each runner's probability of finishing within the top-i, for
// every rank i. The per-trial algorithm and its pooled-buffer ownership
// follow the reference engine's run_once/simulate shape; the PRNG and its
// "fast range" draw come from internal/xorshift.
package podium

import (
	"fmt"

	"github.com/obsidiandynamics/brumby/internal/diagnostics"
	"github.com/obsidiandynamics/brumby/internal/matrix"
	"github.com/obsidiandynamics/brumby/internal/metrics"
	"github.com/obsidiandynamics/brumby/internal/xorshift"
)

// DefaultTrials is the default number of trials per simulation run (spec §6).
const DefaultTrials = 100_000

// skippedTrialWarnThreshold is the fraction of skipped trials above which a
// warning is surfaced (spec §7); the run itself never errors on this.
const skippedTrialWarnThreshold = 0.01

// Stats reports how many of the requested trials were skipped because an
// active rank's weight mass collapsed to zero at draw time — the only
// legitimate failure mode for an otherwise well-formed W.
type Stats struct {
	Trials          uint64
	Skipped         uint64
	SkippedFraction float64
}

// Engine owns the pooled scratch buffers a simulation run needs: a taken
// bitset, a running per-rank weight total, a podium array, and the N x M
// tally matrix. All buffers grow to the largest N x M seen and are never
// shrunk, so a warmed-up engine allocates nothing per trial. The cumulative
// matrix Simulate returns is allocated fresh on each call and owned by the
// caller.
type Engine struct {
	taken   []bool
	totals  []float64
	podium  []int
	rowSums []float64
	tally   *matrix.Flat
}

// NewEngine returns an unwarmed engine; its buffers grow on first Simulate.
func NewEngine() *Engine {
	return &Engine{tally: matrix.New(0, 0)}
}

func (e *Engine) ensureSize(ranks, runners int) {
	if cap(e.taken) < runners {
		e.taken = make([]bool, runners)
	} else {
		e.taken = e.taken[:runners]
	}
	if cap(e.totals) < ranks {
		e.totals = make([]float64, ranks)
	} else {
		e.totals = e.totals[:ranks]
	}
	if cap(e.podium) < ranks {
		e.podium = make([]int, ranks)
	} else {
		e.podium = e.podium[:ranks]
	}
	if cap(e.rowSums) < ranks {
		e.rowSums = make([]float64, ranks)
	} else {
		e.rowSums = e.rowSums[:ranks]
	}
	e.tally.EnsureSize(ranks, runners)
}

// Simulate runs trials simulations of w (N ranks x M runners, row 1
// normalised, rows 2..N non-negative) and returns the cumulative top-i price
// matrix: entry (i, j) is P(runner j finishes within the top (i+1)), so row
// 0 is the Win market directly. Row i sums to i+1 over runner columns, up to
// Monte Carlo noise.
func (e *Engine) Simulate(w *matrix.Flat, trials uint64, rng *xorshift.Rand) (*matrix.Flat, Stats, error) {
	ranks, runners := w.Rows(), w.Cols()
	if ranks == 0 || runners == 0 {
		return nil, Stats{}, fmt.Errorf("podium: weight matrix is empty")
	}
	e.ensureSize(ranks, runners)
	e.tally.Reset()

	stats, err := e.SimulateTrials(w, trials, rng, func(podium []int) {
		for rank, runner := range podium {
			e.tally.Add(rank, runner, 1)
		}
	})
	if err != nil {
		return nil, Stats{}, err
	}

	cumulative := matrix.New(ranks, runners)
	for col := 0; col < runners; col++ {
		running := 0.0
		for row := 0; row < ranks; row++ {
			running += e.tally.At(row, col)
			cumulative.Set(row, col, running/float64(stats.Trials))
		}
	}
	return cumulative, stats, nil
}

// SimulateTrials runs trials simulations of w and invokes onTrial with the
// winning podium for every trial that didn't abort. The slice passed to
// onTrial is owned by the engine and reused across calls — callers must not
// retain it past the callback. This is the shared primitive behind Simulate
// (which tallies into a price matrix) and the multi deriver (which tallies
// only the trials that satisfy a queried selection vector) — the spec's "no
// re-simulation needed if podium positions are retained" escape hatch is
// realised by calling this directly instead of going through Simulate.
func (e *Engine) SimulateTrials(w *matrix.Flat, trials uint64, rng *xorshift.Rand, onTrial func(podium []int)) (Stats, error) {
	ranks, runners := w.Rows(), w.Cols()
	if ranks == 0 || runners == 0 {
		return Stats{}, fmt.Errorf("podium: weight matrix is empty")
	}
	if trials == 0 {
		trials = DefaultTrials
	}
	e.ensureSize(ranks, runners)
	for i := 0; i < ranks; i++ {
		e.rowSums[i] = w.RowSum(i)
	}

	var skipped uint64
	for t := uint64(0); t < trials; t++ {
		if !e.runOnce(w, rng) {
			skipped++
			continue
		}
		onTrial(e.podium)
	}

	stats := Stats{Trials: trials, Skipped: skipped}
	if trials > 0 {
		stats.SkippedFraction = float64(skipped) / float64(trials)
	}
	metrics.SkippedTrialRatio.Set(stats.SkippedFraction)
	if stats.SkippedFraction > skippedTrialWarnThreshold {
		diagnostics.SkippedTrials(skipped, trials, stats.SkippedFraction)
	}
	return stats, nil
}

// runOnce draws a single podium. It returns false if the trial aborted
// because an active rank's weight mass was <= 0 — the caller must not
// record the (partial) podium in that case.
func (e *Engine) runOnce(w *matrix.Flat, rng *xorshift.Rand) bool {
	for i := range e.taken {
		e.taken[i] = false
	}
	copy(e.totals, e.rowSums)

	runners := w.Cols()
	for rank := range e.podium {
		s := e.totals[rank]
		if s <= 0 {
			return false
		}
		u := rng.UniformRange(s)

		row := w.Row(rank)
		cumulative := 0.0
		chosen := -1
		for runner := 0; runner < runners; runner++ {
			if e.taken[runner] {
				continue
			}
			cumulative += row[runner]
			if cumulative >= u {
				chosen = runner
				break
			}
		}
		if chosen == -1 {
			// Floating-point edge case: rounding left the running sum a
			// hair under u. Fall back to the last active runner scanned.
			for runner := runners - 1; runner >= 0; runner-- {
				if !e.taken[runner] {
					chosen = runner
					break
				}
			}
		}

		e.taken[chosen] = true
		e.podium[rank] = chosen
		for future := rank + 1; future < len(e.podium); future++ {
			e.totals[future] -= w.At(future, chosen)
		}
	}
	return true
}
