package oddsmath

import (
	"fmt"
	"math"

	"github.com/obsidiandynamics/brumby/internal/diagnostics"
	"github.com/obsidiandynamics/brumby/internal/metrics"
	"github.com/obsidiandynamics/brumby/internal/optimize"
)

// warnIfNotConverged surfaces a warning for a descent search that exhausted
// its step or reversal budget, and records the reversal count it consumed
// either way. The caller still uses the search's best-effort value; per the
// error-handling design this is surfaced at the top-level fit, not failed
// here.
func warnIfNotConverged(stage string, out optimize.Outcome) {
	metrics.OptimiserReversals.Observe(float64(out.Reversals))
	if out.Converged {
		return
	}
	if out.Reversals > defaultMaxReversals {
		diagnostics.OptimiserReversalsExhausted(out.Steps, out.Reversals, out.Residual)
		return
	}
	diagnostics.ConvergenceExceeded(stage, out.Steps, out.Reversals, out.Residual)
}

// MaxPrice is the highest allowed framed price, mirroring the ceiling the
// reference implementation applies alongside the capped floor.
const MaxPrice = 10001.0

// DefaultFitTolerance is the overround fit residual tolerance named in the
// spec's numerical-tolerances table.
const DefaultFitTolerance = 1e-6

const (
	defaultMaxSteps     = 100_000
	defaultMaxReversals = 60
)

func cap(value, min, max float64) float64 {
	return math.Min(math.Max(min, value), max)
}

// capPrice caps a finite price into [capFloor, MaxPrice], leaving a
// non-finite (scratched) price untouched. Capping at the floor is
// documented to reduce — not redistribute — the margin collected on the
// capped runner: the mass removed by clamping up to capFloor is simply
// dropped from that runner's implied margin contribution, never handed to
// another runner.
func capPrice(value, capFloor float64) Price {
	if !math.IsInf(value, 0) && !math.IsNaN(value) {
		return Price(cap(value, capFloor, MaxPrice))
	}
	return Price(value)
}

// FitMarket removes the bookmaker margin from a set of published prices,
// returning the fair probabilities and the overround discovered in the
// process. expectedOverround carries the same role as "fair_sum" in the
// frame/fit formulas below: the total probability mass the fitted
// probabilities are normalised to (1.0 for a whole-field fit; the external
// interface names it "expected overround" because for a well-formed,
// complete market it is the sum the fitted probabilities converge to).
func FitMarket(method OverroundMethod, prices []Price, expectedOverround float64) (Market, error) {
	if expectedOverround <= 0 {
		expectedOverround = 1.0
	}
	if len(prices) == 0 {
		return Market{}, fmt.Errorf("%w: empty price list", ErrInvalidMarket)
	}
	for _, p := range prices {
		if !p.IsScratched() && (math.IsNaN(float64(p)) || float64(p) < 1.0) {
			return Market{}, fmt.Errorf("%w: price %v is not scratched and is below 1.0", ErrInvalidMarket, float64(p))
		}
	}

	switch method {
	case Multiplicative, Fractional:
		return fitMultiplicative(prices, expectedOverround, method)
	case Power:
		return fitPower(prices, expectedOverround)
	case OddsRatio:
		return fitOddsRatio(prices, expectedOverround)
	default:
		return Market{}, fmt.Errorf("%w: unknown overround method %v", ErrInvalidMarket, method)
	}
}

// Frame applies a margin to a set of fair probabilities, producing the
// market prices a bookmaker would publish. capFloor is the minimum allowed
// framed price (DefaultCapFloor if <= 0).
func Frame(method OverroundMethod, probs []float64, overround float64, capFloor float64) (Market, error) {
	if overround < 1.0 {
		return Market{}, fmt.Errorf("%w: overround %v is less than 1.0", ErrOverroundUnsatisfiable, overround)
	}
	if capFloor <= 0 {
		capFloor = DefaultCapFloor
	}
	switch method {
	case Multiplicative, Fractional:
		return frameMultiplicative(probs, overround, capFloor, method), nil
	case Power:
		return framePower(probs, overround, capFloor), nil
	case OddsRatio:
		return frameOddsRatio(probs, overround, capFloor), nil
	default:
		return Market{}, fmt.Errorf("%w: unknown overround method %v", ErrInvalidMarket, method)
	}
}

// fitMultiplicative implements the degenerate single-subset case of
// Fractional as well as Multiplicative proper: both compute the same
// uniform probability scaling, differing only in the method tag carried on
// the returned Market. Per-subset partitioning for a genuinely fractional
// field is out of scope (no CLI surface consumes it), but a caller treating
// the whole field as one subset gets the documented Multiplicative formula
// either way.
func fitMultiplicative(prices []Price, fairSum float64, method OverroundMethod) (Market, error) {
	probs := make([]float64, len(prices))
	sum := 0.0
	for i, p := range prices {
		if p.IsScratched() {
			continue
		}
		probs[i] = 1.0 / float64(p)
		sum += probs[i]
	}
	if sum <= 0 {
		return Market{}, fmt.Errorf("%w: no active runners", ErrInvalidMarket)
	}
	overround := sum / fairSum
	factor := fairSum / sum
	for i := range probs {
		probs[i] *= factor
	}
	return Market{
		Probs:     probs,
		Prices:    prices,
		Overround: Overround{Method: method, Value: overround},
	}, nil
}

func frameMultiplicative(probs []float64, overround, capFloor float64, method OverroundMethod) Market {
	prices := make([]Price, len(probs))
	for i, prob := range probs {
		if prob <= 0 {
			prices[i] = Scratched
			continue
		}
		prices[i] = capPrice(1.0/prob/overround, capFloor)
	}
	return Market{
		Probs:     append([]float64(nil), probs...),
		Prices:    prices,
		Overround: Overround{Method: method, Value: overround},
	}
}

func fitPower(prices []Price, fairSum float64) (Market, error) {
	active := activeIndices(prices)
	if len(active) == 0 {
		return Market{}, fmt.Errorf("%w: no active runners", ErrInvalidMarket)
	}
	rawSum := 0.0
	for _, i := range active {
		rawSum += 1.0 / float64(prices[i])
	}
	overround := rawSum / fairSum
	estRTP := 1.0 / overround
	initialK := 1.0 + math.Log(estRTP)/math.Log(float64(len(active)))

	residual := func(k float64) float64 {
		sum := 0.0
		for _, i := range active {
			scaled := math.Pow(float64(prices[i])*fairSum, k)
			sum += 1.0 / scaled
		}
		return math.Abs(sum - 1.0)
	}
	out := optimize.Descend(optimize.Config{
		InitValue:      initialK,
		InitStep:       0.01,
		InitDirection:  optimize.Decreasing,
		MaxSteps:       defaultMaxSteps,
		MaxReversals:   defaultMaxReversals,
		TargetResidual: DefaultFitTolerance,
	}, residual)
	warnIfNotConverged("overround_fit_power", out)

	probs := make([]float64, len(prices))
	for _, i := range active {
		scaled := math.Pow(float64(prices[i])*fairSum, out.Value)
		probs[i] = fairSum / scaled
	}
	return Market{
		Probs:     probs,
		Prices:    prices,
		Overround: Overround{Method: Power, Value: overround},
	}, nil
}

func framePower(probs []float64, overround, capFloor float64) Market {
	fairSum := 0.0
	activeCount := 0
	for _, p := range probs {
		if p > 0 {
			fairSum += p
			activeCount++
		}
	}
	rtp := 1.0 / overround
	initialK := 1.0 + math.Log(rtp)/math.Log(float64(activeCount))
	minScaled := 1.0 + (capFloor-1.0)/fairSum
	maxScaled := 1.0 + (MaxPrice-1.0)/fairSum

	residual := func(k float64) float64 {
		sum := 0.0
		for _, p := range probs {
			if p <= 0 {
				continue
			}
			uncapped := math.Pow(fairSum/p, k)
			capped := cap(uncapped, minScaled, maxScaled)
			sum += 1.0 / capped
		}
		return math.Abs(sum - overround)
	}
	out := optimize.Descend(optimize.Config{
		InitValue:      initialK,
		InitStep:       0.01,
		InitDirection:  optimize.Decreasing,
		MaxSteps:       defaultMaxSteps,
		MaxReversals:   defaultMaxReversals,
		TargetResidual: DefaultFitTolerance,
	}, residual)
	warnIfNotConverged("overround_frame_power", out)

	prices := make([]Price, len(probs))
	for i, p := range probs {
		if p <= 0 {
			prices[i] = Scratched
			continue
		}
		uncapped := math.Pow(fairSum/p, out.Value) / fairSum
		prices[i] = capPrice(uncapped, capFloor)
	}
	return Market{
		Probs:     append([]float64(nil), probs...),
		Prices:    prices,
		Overround: Overround{Method: Power, Value: overround},
	}
}

func fitOddsRatio(prices []Price, fairSum float64) (Market, error) {
	active := activeIndices(prices)
	if len(active) == 0 {
		return Market{}, fmt.Errorf("%w: no active runners", ErrInvalidMarket)
	}
	rawSum := 0.0
	for _, i := range active {
		rawSum += 1.0 / float64(prices[i])
	}
	overround := rawSum / fairSum
	initialD := overround

	residual := func(d float64) float64 {
		sum := 0.0
		for _, i := range active {
			uncapped := 1.0 + (float64(prices[i])-1.0)/d
			capped := cap(uncapped, DefaultCapFloor, MaxPrice)
			sum += 1.0 / capped
		}
		return math.Abs(sum - fairSum)
	}
	out := optimize.Descend(optimize.Config{
		InitValue:      initialD,
		InitStep:       0.1,
		InitDirection:  optimize.Increasing,
		MaxSteps:       defaultMaxSteps,
		MaxReversals:   defaultMaxReversals,
		TargetResidual: DefaultFitTolerance,
	}, residual)
	warnIfNotConverged("overround_fit_odds_ratio", out)

	probs := make([]float64, len(prices))
	for _, i := range active {
		scaled := 1.0 + (float64(prices[i])-1.0)/out.Value
		probs[i] = 1.0 / scaled
	}
	return Market{
		Probs:     probs,
		Prices:    prices,
		Overround: Overround{Method: OddsRatio, Value: overround},
	}, nil
}

func frameOddsRatio(probs []float64, overround, capFloor float64) Market {
	fairSum := 0.0
	for _, p := range probs {
		if p > 0 {
			fairSum += p
		}
	}
	overroundSum := fairSum * overround
	initialD := overround

	residual := func(d float64) float64 {
		sum := 0.0
		for _, p := range probs {
			if p <= 0 {
				continue
			}
			price := 1.0 / p
			uncapped := 1.0 + (price-1.0)/d
			capped := cap(uncapped, capFloor, MaxPrice)
			sum += 1.0 / capped
		}
		return math.Abs(sum - overroundSum)
	}
	out := optimize.Descend(optimize.Config{
		InitValue:      initialD,
		InitStep:       0.1,
		InitDirection:  optimize.Increasing,
		MaxSteps:       defaultMaxSteps,
		MaxReversals:   defaultMaxReversals,
		TargetResidual: DefaultFitTolerance,
	}, residual)
	warnIfNotConverged("overround_frame_odds_ratio", out)

	prices := make([]Price, len(probs))
	for i, p := range probs {
		if p <= 0 {
			prices[i] = Scratched
			continue
		}
		price := 1.0 / p
		uncapped := 1.0 + (price-1.0)/out.Value
		prices[i] = capPrice(uncapped, capFloor)
	}
	return Market{
		Probs:     append([]float64(nil), probs...),
		Prices:    prices,
		Overround: Overround{Method: OddsRatio, Value: overround},
	}
}
