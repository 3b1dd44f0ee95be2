// Package regression evaluates a small formula-tree language against named
// inputs and combines the results with offline-fitted coefficients into a
// scalar prediction. The term tree and its JSON wire format are ported from
// the tagged Regressor enum this spec was distilled from, renamed to the
// vocabulary this package uses (Ordinal -> Variable, ZeroIntercept ->
// Origin).
package regression

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEval signals a formula referencing a variable absent from the input
// map at evaluation time.
var ErrEval = errors.New("regression: evaluation error")

// Term is a node in a regression formula tree.
type Term interface {
	// Resolve evaluates the term against a named set of input values.
	Resolve(inputs map[string]float64) (float64, error)
	isTerm()
}

// Variable looks up a real-valued input by name.
type Variable struct {
	Name string
}

func (Variable) isTerm() {}

// Resolve implements Term.
func (v Variable) Resolve(inputs map[string]float64) (float64, error) {
	val, ok := inputs[v.Name]
	if !ok {
		return 0, fmt.Errorf("%w: variable %q not present in inputs", ErrEval, v.Name)
	}
	return val, nil
}

// Exp evaluates Inner and raises it to the integer power K (K >= 0).
type Exp struct {
	Inner Term
	K     int
}

func (Exp) isTerm() {}

// Resolve implements Term.
func (e Exp) Resolve(inputs map[string]float64) (float64, error) {
	base, err := e.Inner.Resolve(inputs)
	if err != nil {
		return 0, err
	}
	result := 1.0
	for i := 0; i < e.K; i++ {
		result *= base
	}
	return result, nil
}

// Product evaluates every factor and multiplies the results.
type Product struct {
	Factors []Term
}

func (Product) isTerm() {}

// Resolve implements Term.
func (p Product) Resolve(inputs map[string]float64) (float64, error) {
	result := 1.0
	for _, f := range p.Factors {
		v, err := f.Resolve(inputs)
		if err != nil {
			return 0, err
		}
		result *= v
	}
	return result, nil
}

// Intercept is the constant term 1.
type Intercept struct{}

func (Intercept) isTerm() {}

// Resolve implements Term.
func (Intercept) Resolve(map[string]float64) (float64, error) { return 1.0, nil }

// Origin is the constant term 0, present so a formula can assert no
// intercept explicitly rather than by omission.
type Origin struct{}

func (Origin) isTerm() {}

// Resolve implements Term.
func (Origin) Resolve(map[string]float64) (float64, error) { return 0.0, nil }

// Coefficients pairs each top-level term of a formula with its
// offline-fitted weight.
type Coefficients struct {
	Terms        []Term
	Coefficients []float64
}

// Predictor evaluates a linear combination of terms against named inputs:
// prediction = Sum(coefficient_i * term_i.Resolve(inputs)).
type Predictor struct {
	coeffs Coefficients
}

// NewPredictor validates that terms and coefficients are paired
// one-to-one and returns a ready-to-evaluate Predictor.
func NewPredictor(c Coefficients) (*Predictor, error) {
	if len(c.Terms) != len(c.Coefficients) {
		return nil, fmt.Errorf("regression: %d terms but %d coefficients", len(c.Terms), len(c.Coefficients))
	}
	return &Predictor{coeffs: c}, nil
}

// Predict evaluates the formula against inputs.
func (p *Predictor) Predict(inputs map[string]float64) (float64, error) {
	sum := 0.0
	for i, term := range p.coeffs.Terms {
		v, err := term.Resolve(inputs)
		if err != nil {
			return 0, err
		}
		sum += p.coeffs.Coefficients[i] * v
	}
	return sum, nil
}

// --- JSON wire format -------------------------------------------------
//
// Variable(name)      -> {"Variable": "name"}
// Exp(inner, k)        -> {"Exp": [<inner>, k]}
// Product(a, b, ...)   -> {"Product": [<a>, <b>, ...]}
// Intercept            -> "Intercept"
// Origin                -> "Origin"
//
// Coefficients          -> {"terms": [<term>, ...], "coefficients": [<float>, ...]}
//                          two parallel arrays of equal length, not a single
//                          array of paired objects.

// MarshalJSON implements json.Marshaler for Variable.
func (v Variable) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"Variable": v.Name})
}

// MarshalJSON implements json.Marshaler for Exp.
func (e Exp) MarshalJSON() ([]byte, error) {
	innerJSON, err := MarshalTerm(e.Inner)
	if err != nil {
		return nil, err
	}
	pair := []json.RawMessage{innerJSON, json.RawMessage(fmt.Sprintf("%d", e.K))}
	body, err := json.Marshal(pair)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]json.RawMessage{"Exp": body})
}

// MarshalJSON implements json.Marshaler for Product.
func (p Product) MarshalJSON() ([]byte, error) {
	factors := make([]json.RawMessage, len(p.Factors))
	for i, f := range p.Factors {
		raw, err := MarshalTerm(f)
		if err != nil {
			return nil, err
		}
		factors[i] = raw
	}
	body, err := json.Marshal(factors)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]json.RawMessage{"Product": body})
}

// MarshalJSON implements json.Marshaler for Intercept.
func (Intercept) MarshalJSON() ([]byte, error) { return json.Marshal("Intercept") }

// MarshalJSON implements json.Marshaler for Origin.
func (Origin) MarshalJSON() ([]byte, error) { return json.Marshal("Origin") }

// MarshalTerm marshals any Term to its tagged wire representation.
func MarshalTerm(t Term) (json.RawMessage, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}

// UnmarshalTerm parses a tagged Term from its wire representation.
func UnmarshalTerm(data []byte) (Term, error) {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		switch bare {
		case "Intercept":
			return Intercept{}, nil
		case "Origin":
			return Origin{}, nil
		default:
			return nil, fmt.Errorf("regression: unknown constant term %q", bare)
		}
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return nil, fmt.Errorf("regression: malformed term: %w", err)
	}
	if raw, ok := tagged["Variable"]; ok {
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			return nil, fmt.Errorf("regression: malformed Variable term: %w", err)
		}
		return Variable{Name: name}, nil
	}
	if raw, ok := tagged["Exp"]; ok {
		var pair []json.RawMessage
		if err := json.Unmarshal(raw, &pair); err != nil || len(pair) != 2 {
			return nil, fmt.Errorf("regression: malformed Exp term")
		}
		inner, err := UnmarshalTerm(pair[0])
		if err != nil {
			return nil, err
		}
		var k int
		if err := json.Unmarshal(pair[1], &k); err != nil {
			return nil, fmt.Errorf("regression: malformed Exp power: %w", err)
		}
		return Exp{Inner: inner, K: k}, nil
	}
	if raw, ok := tagged["Product"]; ok {
		var rawFactors []json.RawMessage
		if err := json.Unmarshal(raw, &rawFactors); err != nil {
			return nil, fmt.Errorf("regression: malformed Product term: %w", err)
		}
		factors := make([]Term, len(rawFactors))
		for i, rf := range rawFactors {
			f, err := UnmarshalTerm(rf)
			if err != nil {
				return nil, err
			}
			factors[i] = f
		}
		return Product{Factors: factors}, nil
	}
	return nil, fmt.Errorf("regression: unrecognised term tag in %s", string(data))
}

// MarshalJSON implements json.Marshaler for Coefficients. The wire format is
// two parallel arrays of equal length — a list of tagged term nodes and a
// list of coefficient reals — rather than a single array of paired objects,
// matching the external interface's documented shape exactly.
func (c Coefficients) MarshalJSON() ([]byte, error) {
	terms := make([]json.RawMessage, len(c.Terms))
	for i, t := range c.Terms {
		raw, err := MarshalTerm(t)
		if err != nil {
			return nil, err
		}
		terms[i] = raw
	}
	return json.Marshal(struct {
		Terms        []json.RawMessage `json:"terms"`
		Coefficients []float64         `json:"coefficients"`
	}{Terms: terms, Coefficients: c.Coefficients})
}

// UnmarshalJSON implements json.Unmarshaler for Coefficients.
func (c *Coefficients) UnmarshalJSON(data []byte) error {
	var wire struct {
		Terms        []json.RawMessage `json:"terms"`
		Coefficients []float64         `json:"coefficients"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("regression: malformed coefficients: %w", err)
	}
	if len(wire.Terms) != len(wire.Coefficients) {
		return fmt.Errorf("regression: %d terms but %d coefficients", len(wire.Terms), len(wire.Coefficients))
	}
	terms := make([]Term, len(wire.Terms))
	for i, raw := range wire.Terms {
		t, err := UnmarshalTerm(raw)
		if err != nil {
			return err
		}
		terms[i] = t
	}
	c.Terms = terms
	c.Coefficients = wire.Coefficients
	return nil
}
