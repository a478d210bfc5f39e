package fractal

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

const (
	HueScale   = 1.9
	Saturation = 0.9
	Brightness = 0.9
)

var BoundedColor = color.RGBA{R: 0, G: 0, B: 0, A: 255}

type ColorMapper struct {
	hueOffset float64
	mathLog2  float64
}

func NewColorMapper(mode Mode) ColorMapper {
	return NewColorMapperWithOffset(mode.HueOffset())
}

func NewColorMapperWithOffset(hueOffset float64) ColorMapper {
	return ColorMapper{
		hueOffset: hueOffset,
		mathLog2:  math.Log(2),
	}
}

// SmoothIteration
// https://en.wikipedia.org/wiki/Plotting_algorithms_for_the_Mandelbrot_set#Continuous_(smooth)_coloring
func (cm *ColorMapper) SmoothIteration(result Result) float64 {
	return float64(result.Iterations) + 1 - math.Log(math.Log(result.Z.Modulus()))/cm.mathLog2
}

// Hue returns the wrapped hue in [0, 1) for an escaped result
func (cm *ColorMapper) Hue(result Result, maxIterations int) float64 {
	normalized := cm.SmoothIteration(result) / float64(maxIterations)
	hue := cm.hueOffset + HueScale*normalized
	if math.IsNaN(hue) || math.IsInf(hue, 0) {
		// the orbit overflowed on its first step
		hue = cm.hueOffset
	}
	return hue - math.Floor(hue)
}

func (cm *ColorMapper) Color(result Result, maxIterations int) color.RGBA {
	if result.Iterations == maxIterations {
		return BoundedColor
	}
	degrees := cm.Hue(result, maxIterations) * 360
	if degrees >= 360 {
		degrees = 0
	}
	r, g, b := colorful.Hsv(degrees, Saturation, Brightness).RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
