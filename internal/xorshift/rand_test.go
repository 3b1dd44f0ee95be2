package xorshift

import "testing"

func TestDeterministic(t *testing.T) {
	a := New(42)
	b := New(42)
	for i := 0; i < 1000; i++ {
		if a.Uint64() != b.Uint64() {
			t.Fatalf("draw %d diverged for identical seeds", i)
		}
	}
}

func TestZeroSeedRemapped(t *testing.T) {
	r := New(0)
	if r.state == 0 {
		t.Fatal("zero seed was not remapped")
	}
}

func TestFloat64Range(t *testing.T) {
	r := New(7)
	for i := 0; i < 10000; i++ {
		v := r.Float64()
		if v < 0 || v >= 1 {
			t.Fatalf("Float64() = %v, want [0,1)", v)
		}
	}
}

func TestUniformRangeBounds(t *testing.T) {
	r := New(99)
	const bound = 12.5
	for i := 0; i < 10000; i++ {
		v := r.UniformRange(bound)
		if v < 0 || v >= bound {
			t.Fatalf("UniformRange(%v) = %v, out of bounds", bound, v)
		}
	}
}

func TestUniformRangeMeanIsPlausible(t *testing.T) {
	r := New(123)
	const bound = 10.0
	const n = 200000
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += r.UniformRange(bound)
	}
	mean := sum / n
	if mean < 4.8 || mean > 5.2 {
		t.Fatalf("mean = %v, want close to %v", mean, bound/2)
	}
}
