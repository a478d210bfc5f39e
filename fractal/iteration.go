package fractal

import (
	"fmt"
	"strings"
)

const (
	Mandelbrot Mode = iota
	Julia
)

// Iteration counts start at a different value per mode. Julia renders have always started one step ahead,
// so their escape counts are shifted by one compared to Mandelbrot renders.
const (
	MandelbrotStartIteration = 0
	JuliaStartIteration      = 1
)

// EscapeRadiusSquared is the divergence threshold on |z|², the square of an escape radius of 2
const EscapeRadiusSquared = 4.0

type Mode int

func (m Mode) String() string {
	switch m {
	case Mandelbrot:
		return "Mandelbrot"
	case Julia:
		return "Julia"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "mandelbrot", "m":
		return Mandelbrot, nil
	case "julia", "j":
		return Julia, nil
	}
	return Mandelbrot, fmt.Errorf("unknown mode: %q", s)
}

func (m Mode) StartIteration() int {
	if m == Julia {
		return JuliaStartIteration
	}
	return MandelbrotStartIteration
}

// HueOffset shifts the palette so the two panels are easy to tell apart
func (m Mode) HueOffset() float64 {
	if m == Julia {
		return 0.49
	}
	return 0.99
}

const (
	Running Status = iota
	Escaped
	Bounded
)

type Status int

func (s Status) String() string {
	switch s {
	case Running:
		return "Running"
	case Escaped:
		return "Escaped"
	case Bounded:
		return "Bounded"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

type IterationState struct {
	Z             Complex
	C             Complex
	Iteration     int
	MaxIterations int
}

// NewIterationState
// Builds the starting state for one point. In Mandelbrot mode the point is the additive constant and z starts at
// the origin, in Julia mode the point is the starting z and the constant is fixed for the whole image
func NewIterationState(mode Mode, point Complex, constant Complex, maxIterations int) IterationState {
	if mode == Julia {
		return IterationState{
			Z:             point,
			C:             constant,
			Iteration:     JuliaStartIteration,
			MaxIterations: maxIterations,
		}
	}
	return IterationState{
		C:             point,
		Iteration:     MandelbrotStartIteration,
		MaxIterations: maxIterations,
	}
}

// Step applies one transition. A terminal status returns the state unchanged.
func Step(s IterationState) (IterationState, Status) {
	if s.Iteration >= s.MaxIterations {
		return s, Bounded
	}
	if s.Z.ModulusSquared() > EscapeRadiusSquared {
		return s, Escaped
	}
	s.Z = s.Z.Square().Add(s.C)
	s.Iteration++
	return s, Running
}

type Result struct {
	Iterations int
	Z          Complex
	Status     Status
}

// Engine runs the escape time recurrence for single points of one render. An Engine is not shared between
// goroutines; every worker builds its own.
type Engine struct {
	constant      Complex
	maxIterations int
	mode          Mode
}

func NewEngine(mode Mode, constant Complex, maxIterations int) Engine {
	return Engine{
		constant:      constant,
		maxIterations: maxIterations,
		mode:          mode,
	}
}

func (e *Engine) Mode() Mode {
	return e.mode
}

func (e *Engine) MaxIterations() int {
	return e.maxIterations
}

// Iterate runs a fresh state for the point until it escapes or reaches the iteration cap
func (e *Engine) Iterate(point Complex) Result {
	state := NewIterationState(e.mode, point, e.constant, e.maxIterations)
	status := Running
	for status == Running {
		state, status = Step(state)
	}
	return Result{
		Iterations: state.Iteration,
		Z:          state.Z,
		Status:     status,
	}
}
