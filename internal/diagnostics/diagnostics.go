// Package diagnostics emits the structured warnings the error-handling
// design names as "locally recovered, but surfaced": conditions that don't
// fail the calling operation outright but that an operator should be able
// to see. Logger setup (level, output, format) is deliberately out of
// scope — callers configure zerolog's global logger however they like;
// this package only decides what gets logged and with which fields.
package diagnostics

import "github.com/rs/zerolog/log"

// SkippedTrials warns that a Monte Carlo run skipped more than the 1%
// threshold of its trials because an active rank's weight mass collapsed
// to zero at draw time.
func SkippedTrials(skipped, trials uint64, fraction float64) {
	log.Warn().
		Uint64("skipped", skipped).
		Uint64("trials", trials).
		Float64("fraction", fraction).
		Msg("monte carlo run skipped more than 1% of trials")
}

// ConvergenceExceeded warns that the online weight fitter or an overround
// descent search exhausted its iteration/reversal budget before reaching
// its residual target, and that the best-effort value in use is returned
// instead of a converged one.
func ConvergenceExceeded(stage string, iterations, reversals uint64, residual float64) {
	log.Warn().
		Str("stage", stage).
		Uint64("iterations", iterations).
		Uint64("reversals", reversals).
		Float64("residual", residual).
		Msg("convergence budget exceeded, returning best-effort value")
}

// OptimiserReversalsExhausted warns that a univariate descent search
// returned without reaching its target residual because it exhausted its
// reversal budget rather than its step budget.
func OptimiserReversalsExhausted(steps, reversals uint64, residual float64) {
	log.Warn().
		Uint64("steps", steps).
		Uint64("reversals", reversals).
		Float64("residual", residual).
		Msg("optimiser exhausted its reversal budget")
}
