package oddsmath

import (
	"errors"
	"testing"
)

func TestParsePriceValid(t *testing.T) {
	cases := map[string]float64{
		"1.50":  1.50,
		" 3.0 ": 3.0,
		"1.00":  1.0,
		"100":   100.0,
	}
	for raw, want := range cases {
		got, err := ParsePrice(raw)
		if err != nil {
			t.Fatalf("ParsePrice(%q): %v", raw, err)
		}
		if float64(got) != want {
			t.Fatalf("ParsePrice(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestParsePriceScratched(t *testing.T) {
	for _, raw := range []string{"SCR", "scr", "WD", "", "  "} {
		got, err := ParsePrice(raw)
		if err != nil {
			t.Fatalf("ParsePrice(%q): %v", raw, err)
		}
		if !got.IsScratched() {
			t.Fatalf("ParsePrice(%q) = %v, want scratched", raw, got)
		}
	}
}

func TestParsePriceRejectsBelowOne(t *testing.T) {
	_, err := ParsePrice("0.99")
	if !errors.Is(err, ErrInvalidMarket) {
		t.Fatalf("err = %v, want ErrInvalidMarket", err)
	}
}

func TestParsePriceRejectsGarbage(t *testing.T) {
	_, err := ParsePrice("not-a-number")
	if !errors.Is(err, ErrInvalidMarket) {
		t.Fatalf("err = %v, want ErrInvalidMarket", err)
	}
}
