// Package coeffstore gives the "external collaborator" described by the
// regression primer a concrete consumer-side shape: a startup-time lookup of
// offline-fitted coefficients, one set of terms per non-winning rank, keyed
// by race type. It never sits on the Monte Carlo hot path — a Calibrator
// looks up coefficients once per fit, not once per trial.
package coeffstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/obsidiandynamics/brumby/internal/regression"
)

// ErrNotFound signals that no coefficients are on file for a race type.
var ErrNotFound = errors.New("coeffstore: no coefficients for race type")

// RaceCoefficients bundles the per-rank regression formulas an offline job
// fitted for one race type, plus the fit quality metadata that travelled
// alongside them. PerRank[0] seeds W row 2 (rank bound 2), PerRank[1] seeds
// row 3, and so on — one entry per non-winning rank the store has a formula
// for.
type RaceCoefficients struct {
	RaceType string
	PerRank  []regression.Coefficients
	RSquared float64
}

// Store is a source of startup-time coefficient lookups.
type Store interface {
	Get(ctx context.Context, raceType string) (RaceCoefficients, error)
}

func wrapNotFound(raceType string) error {
	return fmt.Errorf("%w: %q", ErrNotFound, raceType)
}
