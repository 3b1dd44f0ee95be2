package oddsmath

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// scratchedTokens are the textual spellings a price feed uses to denote a
// withdrawn runner, in place of a numeric price.
var scratchedTokens = map[string]bool{
	"SCR":       true,
	"SCRATCHED": true,
	"WD":        true,
	"":          true,
}

// ParsePrice converts a textual decimal price into a Price. Parsing goes
// through shopspring/decimal rather than strconv.ParseFloat so that the
// boundary check against 1.0 isn't subject to binary float rounding on
// values typed by a human or re-serialised by an upstream feed (e.g. a
// literal "1.00" must not parse a hair under 1 due to float imprecision).
func ParsePrice(raw string) (Price, error) {
	token := strings.ToUpper(strings.TrimSpace(raw))
	if scratchedTokens[token] {
		return Scratched, nil
	}

	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a valid price: %v", ErrInvalidMarket, raw, err)
	}
	if d.LessThan(decimal.NewFromInt(1)) {
		return 0, fmt.Errorf("%w: price %q is below 1.0", ErrInvalidMarket, raw)
	}
	f, _ := d.Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("%w: price %q is not finite", ErrInvalidMarket, raw)
	}
	return Price(f), nil
}
