// Package racing implements the programmatic surface of the pricing
// engine: a Calibrator that turns published Win/Place decimal prices into a
// FittedModel exposing a full Top-1..N placement-probability matrix and a
// same-race multi pricer. It wires together, in the control-flow order
// spec.md §2 describes, the overround engine, the offline regression
// primer, the Monte Carlo podium engine and the online weight fitter —
// this package owns none of that logic itself, only the sequencing.
package racing

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/obsidiandynamics/brumby/internal/fitter"
	"github.com/obsidiandynamics/brumby/internal/matrix"
	"github.com/obsidiandynamics/brumby/internal/multi"
	"github.com/obsidiandynamics/brumby/internal/podium"
	"github.com/obsidiandynamics/brumby/internal/primer"
	"github.com/obsidiandynamics/brumby/internal/regression"
	"github.com/obsidiandynamics/brumby/internal/xorshift"
	"github.com/obsidiandynamics/brumby/pkg/oddsmath"
)

// Selection re-exports internal/multi's selection type at the programmatic
// surface: a caller pricing a multi never needs the internal package.
type Selection = multi.Selection

// MultiPrice is the fair probability and price for a same-race multi.
type MultiPrice = multi.Result

// FitRequestID uniquely identifies one Calibrator.Fit call. It is stamped
// at the start of Fit and recorded on the returned FittedModel; it is not
// attached to diagnostics warnings or metrics observations.
type FitRequestID = uuid.UUID

// FitOptions configures one calibration run. The zero value is invalid —
// PlacesPaying has no sensible default — but Trials, MaxIterations,
// TargetMSRE and CapFloor fall back to the package defaults when left at 0.
type FitOptions struct {
	// Method selects the overround model applied when fitting the Win and
	// Place markets and when framing the resulting Top-k markets.
	Method oddsmath.OverroundMethod
	// PlacesPaying is the number of places the Place market pays: 2 or 3.
	PlacesPaying int `validate:"required,oneof=2 3"`
	// Trials is the Monte Carlo trial count per simulation run.
	Trials uint64
	// MaxIterations bounds the online weight fitter's iteration budget.
	MaxIterations uint64
	// TargetMSRE is the fitter's convergence target.
	TargetMSRE float64
	// OpenLoopExponent is t in [0,1]: 0 adjusts only the Place rank, 1
	// couples every rank to the same adjustment.
	OpenLoopExponent float64 `validate:"gte=0,lte=1"`
	// CapFloor is the minimum framed price (spec's price-capping floor).
	CapFloor float64
	// Seed seeds the engine's PRNG. 0 is remapped by xorshift.New.
	Seed uint64
}

func (o FitOptions) withDefaults() FitOptions {
	if o.Trials == 0 {
		o.Trials = podium.DefaultTrials
	}
	if o.TargetMSRE == 0 {
		o.TargetMSRE = fitter.DefaultTargetMSRE
	}
	if o.CapFloor <= 0 {
		o.CapFloor = oddsmath.DefaultCapFloor
	}
	return o
}

// WinPlaceMarkets carries the two published markets a calibration run
// needs: Win (Top-1) and Place (Top-X, X = FitOptions.PlacesPaying) decimal
// prices for every runner in the field, sharing one runner order.
type WinPlaceMarkets struct {
	WinPrices   []oddsmath.Price `validate:"required,min=1"`
	PlacePrices []oddsmath.Price `validate:"required,min=1"`
}

// Calibrator turns Win/Place markets into a FittedModel. It is stateless
// and pure aside from the coefficients and options it closes over at
// construction, so one Calibrator can be reused across many independent
// races — each Fit call gets its own engine, PRNG and request ID.
type Calibrator struct {
	perRank  []regression.Coefficients
	opts     FitOptions
	validate *validator.Validate
}

// NewCalibrator builds a Calibrator from the offline-fitted per-rank
// regression coefficients (one set per non-winning rank — perRank[0] seeds
// W row 2, perRank[1] seeds row 3, and so on, as described by
// coeffstore.RaceCoefficients.PerRank) and the options for every Fit call
// this Calibrator makes.
func NewCalibrator(perRank []regression.Coefficients, opts FitOptions) *Calibrator {
	return &Calibrator{perRank: perRank, opts: opts.withDefaults(), validate: validator.New()}
}

// FittedModel owns the final weight matrix and price matrix produced by one
// Fit call, for the lifetime of the enclosing pricing request.
type FittedModel struct {
	RequestID  FitRequestID
	FitOutcome fitter.Outcome

	// Markets holds the framed Top-1..TopMarketCount markets (decimal
	// prices under the overround supplied to Fit), one per rank.
	Markets []oddsmath.Market

	w        *matrix.Flat
	probs    *matrix.Flat
	winProbs []float64
	engine   *podium.Engine
	rng      *xorshift.Rand
	trials   uint64
}

// PriceMatrix returns the cumulative Top-i placement-probability matrix:
// entry (i, j) is P(runner j finishes within the top (i+1)). Row 0 holds
// the fitted Win probabilities exactly; the other rows are Monte Carlo
// estimates. See internal/podium.Engine.Simulate for the indexing
// convention.
func (m *FittedModel) PriceMatrix() *matrix.Flat {
	return m.probs
}

// DeriveMulti computes the joint probability and price of a same-race
// multi by tallying fresh Monte Carlo trials over the fitted weight matrix
// — the spec-mandated authoritative form.
func (m *FittedModel) DeriveMulti(selections []Selection) (MultiPrice, error) {
	return multi.DeriveMulti(m.engine, m.w, selections, m.trials, m.rng)
}

// DeriveMultiAnalytic computes the same joint probability via the Harville
// conditional-product closed form, valid only when the selections' rank
// bounds form a gapless run starting at 1. It never re-simulates; callers
// use it as a fast cross-check against DeriveMulti, not as a substitute.
func (m *FittedModel) DeriveMultiAnalytic(selections []Selection) (MultiPrice, error) {
	return multi.DeriveMultiAnalytic(m.winProbs, selections)
}

// Fit runs the full control flow spec.md §2 describes: fit the Win and
// Place markets to fair probabilities, seed W rows 2..N from the Win row
// via the regression primer, run the online weight fitter (which drives the
// Monte Carlo engine internally), then frame each rank's fitted
// probabilities back into decimal prices under the supplied overrounds.
//
// A ConvergenceExceeded error from the inner fit is returned alongside a
// non-nil, usable model built from the fitter's best-effort weights — per
// the error-handling design, this failure kind is "locally recovered" at
// every layer except the one that ultimately reports it to the caller.
func (c *Calibrator) Fit(ctx context.Context, wp WinPlaceMarkets, overrounds []oddsmath.Overround) (*FittedModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	requestID := uuid.New()

	if err := c.validate.Struct(wp); err != nil {
		return nil, fmt.Errorf("racing: invalid markets: %w", err)
	}
	if err := c.validate.Struct(c.opts); err != nil {
		return nil, fmt.Errorf("racing: invalid fit options: %w", err)
	}
	if len(wp.WinPrices) != len(wp.PlacePrices) {
		return nil, fmt.Errorf("%w: win has %d prices, place has %d", oddsmath.ErrInvalidMarket, len(wp.WinPrices), len(wp.PlacePrices))
	}
	if len(overrounds) != oddsmath.TopMarketCount {
		return nil, fmt.Errorf("%w: expected %d overrounds, got %d", oddsmath.ErrInsufficientInformation, oddsmath.TopMarketCount, len(overrounds))
	}

	winMarket, err := oddsmath.FitMarket(c.opts.Method, wp.WinPrices, 1.0)
	if err != nil {
		return nil, fmt.Errorf("racing: fit win market: %w", err)
	}
	placeMarket, err := oddsmath.FitMarket(c.opts.Method, wp.PlacePrices, float64(c.opts.PlacesPaying))
	if err != nil {
		return nil, fmt.Errorf("racing: fit place market: %w", err)
	}

	runners := len(winMarket.Probs)
	w := matrix.New(oddsmath.TopMarketCount, runners)
	copy(w.Row(0), winMarket.Probs)
	if err := primer.Seed(w, winMarket.Probs, c.perRank); err != nil {
		return nil, fmt.Errorf("racing: seed weights: %w", err)
	}

	engine := podium.NewEngine()
	rng := xorshift.New(c.opts.Seed)

	fitted, outcome, fitErr := fitter.Fit(w, winMarket.Probs, placeMarket.Probs, c.opts.PlacesPaying, fitter.Options{
		MaxIterations:    c.opts.MaxIterations,
		TargetMSRE:       c.opts.TargetMSRE,
		OpenLoopExponent: c.opts.OpenLoopExponent,
		Trials:           c.opts.Trials,
	}, engine, rng)
	if fitErr != nil && !errors.Is(fitErr, fitter.ErrConvergenceExceeded) {
		return nil, fmt.Errorf("racing: fit: %w", fitErr)
	}

	cumulative, _, err := engine.Simulate(fitted, c.opts.Trials, rng)
	if err != nil {
		return nil, fmt.Errorf("racing: final simulate: %w", err)
	}
	// The Top-1 row is pinned to the fitted Win probabilities, like row 0
	// of W, rather than left as their Monte Carlo estimate.
	copy(cumulative.Row(0), winMarket.Probs)

	markets := make([]oddsmath.Market, oddsmath.TopMarketCount)
	for rank := 0; rank < oddsmath.TopMarketCount; rank++ {
		row := append([]float64(nil), cumulative.Row(rank)...)
		framed, err := oddsmath.Frame(c.opts.Method, row, overrounds[rank].Value, c.opts.CapFloor)
		if err != nil {
			return nil, fmt.Errorf("racing: frame top-%d market: %w", rank+1, err)
		}
		markets[rank] = framed
	}

	model := &FittedModel{
		RequestID:  requestID,
		FitOutcome: outcome,
		Markets:    markets,
		w:          fitted,
		probs:      cumulative,
		winProbs:   append([]float64(nil), winMarket.Probs...),
		engine:     engine,
		rng:        rng,
		trials:     c.opts.Trials,
	}
	return model, fitErr
}
