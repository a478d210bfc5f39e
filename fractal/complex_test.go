package fractal

import (
	"math"
	"testing"
)

func TestComplexSquare(t *testing.T) {
	tests := []struct {
		in   Complex
		want Complex
	}{
		{Complex{0, 0}, Complex{0, 0}},
		{Complex{2, 0}, Complex{4, 0}},
		{Complex{0, 1}, Complex{-1, 0}},
		{Complex{1, 2}, Complex{-3, 4}},
		{Complex{-1.5, 0.5}, Complex{2, -1.5}},
	}
	for _, tt := range tests {
		if got := tt.in.Square(); got != tt.want {
			t.Errorf("%v.Square() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestComplexModulus(t *testing.T) {
	c := Complex{3, 4}
	if got := c.ModulusSquared(); got != 25 {
		t.Errorf("ModulusSquared() = %g, want 25", got)
	}
	if got := c.Modulus(); got != 5 {
		t.Errorf("Modulus() = %g, want 5", got)
	}
}

func TestComplexAdd(t *testing.T) {
	a := Complex{1, -2}
	b := Complex{0.5, 3}
	if got := a.Add(b); got != (Complex{1.5, 1}) {
		t.Errorf("Add() = %v, want (1.5, 1)", got)
	}
	if a != (Complex{1, -2}) {
		t.Errorf("Add() modified its receiver: %v", a)
	}
}

func TestComplexString(t *testing.T) {
	tests := []struct {
		in   Complex
		want string
	}{
		{Complex{1.4, -1}, "1.40 - 1.00i"},
		{Complex{-0.5, 0.5}, "-0.50 + 0.50i"},
		{Complex{0, 0}, "0.00 + 0.00i"},
		{Complex{0.123, math.Copysign(0, -1)}, "0.12 + 0.00i"},
		{Complex{-0.7269, 0.1889}, "-0.73 + 0.19i"},
	}
	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestComplexIsFinite(t *testing.T) {
	if !(Complex{1, 2}).IsFinite() {
		t.Error("IsFinite() = false for a finite value")
	}
	for _, c := range []Complex{{math.NaN(), 0}, {0, math.Inf(1)}, {math.Inf(-1), 1}} {
		if c.IsFinite() {
			t.Errorf("%v.IsFinite() = true, want false", c)
		}
	}
}
