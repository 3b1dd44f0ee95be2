// Package metrics provides Prometheus instrumentation for the pricing
// engine. There is no networked RPC surface in scope, so nothing here
// serves an HTTP handler — collectors are registered against the default
// registry purely so an embedding process can scrape them its own way.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SkippedTrialRatio tracks, per simulated market, the fraction of Monte
	// Carlo trials aborted because an active rank's weight mass collapsed
	// to zero.
	SkippedTrialRatio = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "brumby_mc_skipped_trials_ratio",
		Help: "Fraction of Monte Carlo trials skipped due to zero active weight mass",
	})

	// FitIterations records how many iterations the online weight fitter
	// needed to converge (or to give up).
	FitIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "brumby_fit_iterations",
		Help:    "Iterations taken by the online weight fitter",
		Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34, 55, 89},
	})

	// FitConvergenceTotal counts fit outcomes by whether they converged
	// within the configured MSRE target before exhausting iterations.
	FitConvergenceTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brumby_fit_convergence_total",
		Help: "Online weight fit outcomes",
	}, []string{"outcome"})

	// OptimiserReversals records the reversal count a univariate descent
	// search consumed before returning.
	OptimiserReversals = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "brumby_optimiser_reversals",
		Help:    "Reversals consumed by a univariate descent search",
		Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
	})
)
