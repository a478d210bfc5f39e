package fractal

import "errors"

var (
	ErrInvalidViewport       = errors.New("invalid viewport")
	ErrInvalidIterationCount = errors.New("invalid iteration count")
	ErrInvalidConstant       = errors.New("invalid julia constant")
)
