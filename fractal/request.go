package fractal

import (
	"fmt"
)

// RenderRequest is the complete input of one image computation. Requests are values; callers replace them instead
// of mutating one that is being rendered.
type RenderRequest struct {
	Viewport      Viewport
	MaxIterations int
	Mode          Mode
	Constant      Complex
}

func NewMandelbrotRequest(viewport Viewport, maxIterations int) (RenderRequest, error) {
	r := RenderRequest{
		Viewport:      viewport,
		MaxIterations: maxIterations,
		Mode:          Mandelbrot,
	}
	return r, r.Validate()
}

func NewJuliaRequest(viewport Viewport, maxIterations int, constant Complex) (RenderRequest, error) {
	r := RenderRequest{
		Viewport:      viewport,
		MaxIterations: maxIterations,
		Mode:          Julia,
		Constant:      constant,
	}
	return r, r.Validate()
}

func (r RenderRequest) String() string {
	output := "{RenderRequest "
	output += fmt.Sprintf("Mode: %s ", r.Mode)
	if r.Mode == Julia {
		output += fmt.Sprintf("Constant: %s ", r.Constant)
	}
	output += fmt.Sprintf("Max Iterations: %d ", r.MaxIterations)
	output += fmt.Sprintf("Viewport: %s}", r.Viewport)
	return output
}

// Validate only requires a positive iteration cap. Upper limits belong to whoever builds the request.
func (r RenderRequest) Validate() error {
	if err := r.Viewport.Validate(); err != nil {
		return err
	}
	if r.MaxIterations <= 0 {
		return fmt.Errorf("%w: %d must be positive", ErrInvalidIterationCount, r.MaxIterations)
	}
	if r.Mode != Mandelbrot && r.Mode != Julia {
		return fmt.Errorf("unknown mode: %d", int(r.Mode))
	}
	if r.Mode == Julia && !r.Constant.IsFinite() {
		return fmt.Errorf("%w: %v", ErrInvalidConstant, r.Constant)
	}
	return nil
}

func (r RenderRequest) Engine() Engine {
	return NewEngine(r.Mode, r.Constant, r.MaxIterations)
}

func (r RenderRequest) ColorMapper() ColorMapper {
	return NewColorMapper(r.Mode)
}
