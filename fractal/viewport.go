package fractal

import (
	"fmt"
	"image"
	"math"
)

// Viewport is the region of the complex plane mapped onto a Width x Height pixel grid. Pixel (0, 0) is the top
// left corner and maps to (RealStart, ImagEnd). Points are computed at pixel edges, not centers.
type Viewport struct {
	RealStart float64
	RealEnd   float64
	ImagStart float64
	ImagEnd   float64
	Width     int
	Height    int
}

func NewViewport(realStart float64, realEnd float64, imagStart float64, imagEnd float64, width int, height int) (Viewport, error) {
	v := Viewport{
		RealStart: realStart,
		RealEnd:   realEnd,
		ImagStart: imagStart,
		ImagEnd:   imagEnd,
		Width:     width,
		Height:    height,
	}
	return v, v.Validate()
}

func (v Viewport) String() string {
	return fmt.Sprintf("{Viewport Real: [%g, %g] Imag: [%g, %g] Size: %dx%d}", v.RealStart, v.RealEnd, v.ImagStart, v.ImagEnd, v.Width, v.Height)
}

func (v Viewport) Validate() error {
	for _, bound := range []float64{v.RealStart, v.RealEnd, v.ImagStart, v.ImagEnd} {
		if math.IsNaN(bound) || math.IsInf(bound, 0) {
			return fmt.Errorf("%w: non-finite bound in %s", ErrInvalidViewport, v)
		}
	}
	if v.RealStart >= v.RealEnd {
		return fmt.Errorf("%w: real start %g must be less than real end %g", ErrInvalidViewport, v.RealStart, v.RealEnd)
	}
	if v.ImagStart >= v.ImagEnd {
		return fmt.Errorf("%w: imaginary start %g must be less than imaginary end %g", ErrInvalidViewport, v.ImagStart, v.ImagEnd)
	}
	if v.Width <= 0 || v.Height <= 0 {
		return fmt.Errorf("%w: pixel size %dx%d must be positive", ErrInvalidViewport, v.Width, v.Height)
	}
	return nil
}

func (v Viewport) Bounds() image.Rectangle {
	return image.Rect(0, 0, v.Width, v.Height)
}

func (v Viewport) XToReal(x float64) float64 {
	return (v.RealEnd-v.RealStart)/float64(v.Width)*x + v.RealStart
}

// YToImag inverts the axis so row 0 is the top of the image (positive imaginary)
func (v Viewport) YToImag(y float64) float64 {
	return (v.ImagStart-v.ImagEnd)/float64(v.Height)*y + v.ImagEnd
}

func (v Viewport) PointAt(x int, y int) Complex {
	return Complex{Real: v.XToReal(float64(x)), Imag: v.YToImag(float64(y))}
}

// Zoom
// Returns the viewport covering the selected pixel rectangle, keeping the pixel size. The rectangle corners may be
// given in any order.
func (v Viewport) Zoom(selection image.Rectangle) (Viewport, error) {
	selection = selection.Canon()
	zoomed := Viewport{
		RealStart: v.XToReal(float64(selection.Min.X)),
		RealEnd:   v.XToReal(float64(selection.Max.X)),
		ImagStart: v.YToImag(float64(selection.Max.Y)),
		ImagEnd:   v.YToImag(float64(selection.Min.Y)),
		Width:     v.Width,
		Height:    v.Height,
	}
	if err := zoomed.Validate(); err != nil {
		return v, err
	}
	return zoomed, nil
}

// Resize keeps the plane region and changes the pixel grid
func (v Viewport) Resize(width int, height int) (Viewport, error) {
	resized := v
	resized.Width = width
	resized.Height = height
	if err := resized.Validate(); err != nil {
		return v, err
	}
	return resized, nil
}
