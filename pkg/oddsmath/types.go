// Package oddsmath converts between published decimal prices and fair
// probabilities under several bookmaker margin ("overround") models, and
// extrapolates margins across related same-race markets (Win, Place,
// Top-2..Top-N).
package oddsmath

import (
	"errors"
	"math"
)

// Sentinel errors, one per failure kind named in the spec's error-handling
// table. Callers discriminate with errors.Is; every returned error wraps one
// of these with fmt.Errorf("...: %w", ...) for context.
var (
	// ErrInvalidMarket signals a non-finite price below 1, or a price count
	// that doesn't match the probability vector.
	ErrInvalidMarket = errors.New("oddsmath: invalid market")
	// ErrOverroundUnsatisfiable signals a requested overround below 1, or a
	// margin that cannot be framed under price capping.
	ErrOverroundUnsatisfiable = errors.New("oddsmath: overround unsatisfiable")
	// ErrInsufficientInformation signals missing preconditions for
	// extrapolation (bad places-paying count, empty field).
	ErrInsufficientInformation = errors.New("oddsmath: insufficient information")
)

// Price is a published decimal price: a positive real >= 1.0, or +Inf to
// denote a scratched (withdrawn) runner.
type Price float64

// Scratched is the canonical scratched-runner price.
var Scratched Price = Price(math.Inf(1))

// IsScratched reports whether p denotes a withdrawn runner.
func (p Price) IsScratched() bool {
	return math.IsInf(float64(p), 1)
}

// DefaultCapFloor is the default minimum framed price (spec §6).
const DefaultCapFloor = 1.04

// OverroundMethod selects how probabilities and prices relate given a
// margin value v.
type OverroundMethod int

const (
	// Multiplicative scales each fair price down by the overround uniformly:
	// m_j = 1/(p_j * v).
	Multiplicative OverroundMethod = iota
	// Power raises each fair probability to a fitted exponent before
	// inverting to a price.
	Power
	// OddsRatio blends margin via Shin's odds-ratio construction.
	OddsRatio
	// Fractional is fitted and framed exactly as Multiplicative, treating
	// the whole field as a single subset; the field is not partitioned into
	// disjoint subsets. Markets carry the Fractional method tag.
	Fractional
)

// String renders the method name for logging.
func (m OverroundMethod) String() string {
	switch m {
	case Multiplicative:
		return "multiplicative"
	case Power:
		return "power"
	case OddsRatio:
		return "odds_ratio"
	case Fractional:
		return "fractional"
	default:
		return "unknown"
	}
}

// Overround is the bookmaker margin for one market: value >= 1.0 (1.0 is
// fair), under a given method.
type Overround struct {
	Method OverroundMethod
	Value  float64
}

// Market pairs a probability vector with the overround that frames it into
// the observed prices. Invariant: Frame(Fit(prices)) reproduces prices to
// within tolerance, and the sum of 1/price over active runners equals
// Overround.Value times the total of the probabilities (1 for a Win
// market, k for a Top-k market).
type Market struct {
	Probs     []float64
	Prices    []Price
	Overround Overround
}

// activeIndices returns the indices of non-scratched prices/probabilities.
func activeIndices(prices []Price) []int {
	idx := make([]int, 0, len(prices))
	for i, p := range prices {
		if !p.IsScratched() {
			idx = append(idx, i)
		}
	}
	return idx
}
