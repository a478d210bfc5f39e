package fractal

import (
	"fmt"
	"math"
)

// Complex is a point on the complex plane. Methods never modify the receiver.
type Complex struct {
	Real float64
	Imag float64
}

func NewComplex(re float64, im float64) Complex {
	return Complex{Real: re, Imag: im}
}

func (c Complex) Add(other Complex) Complex {
	return Complex{Real: c.Real + other.Real, Imag: c.Imag + other.Imag}
}

// Square
// Computed from the components directly rather than through a generic power function
func (c Complex) Square() Complex {
	return Complex{
		Real: c.Real*c.Real - c.Imag*c.Imag,
		Imag: c.Real*c.Imag + c.Imag*c.Real,
	}
}

func (c Complex) ModulusSquared() float64 {
	return c.Real*c.Real + c.Imag*c.Imag
}

// Modulus is only needed for coloring. The escape test uses ModulusSquared.
func (c Complex) Modulus() float64 {
	return math.Sqrt(c.ModulusSquared())
}

func (c Complex) IsImagNegative() bool {
	return c.Imag < 0
}

func (c Complex) IsFinite() bool {
	return !math.IsNaN(c.Real) && !math.IsInf(c.Real, 0) && !math.IsNaN(c.Imag) && !math.IsInf(c.Imag, 0)
}

func (c Complex) String() string {
	if c.IsImagNegative() {
		return fmt.Sprintf("%.2f - %.2fi", c.Real, -c.Imag)
	}
	return fmt.Sprintf("%.2f + %.2fi", c.Real, math.Abs(c.Imag))
}
