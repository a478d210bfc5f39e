package explorer

import (
	"errors"
	"math"

	"fractalexplorer/fractal"
	"fractalexplorer/misc"
)

// Transition
// Returns frames viewports moving from one viewport to another. The center eases out exponentially while the size
// changes geometrically so every frame zooms by the same factor. The last frame is the target.
func Transition(from fractal.Viewport, to fractal.Viewport, frames int) ([]fractal.Viewport, error) {
	if err := from.Validate(); err != nil {
		return nil, err
	}
	if err := to.Validate(); err != nil {
		return nil, err
	}
	if frames < 1 {
		return nil, errors.New("a transition needs at least one frame")
	}

	startX, startY := center(from)
	endX, endY := center(to)
	startWidth, endWidth := from.RealEnd-from.RealStart, to.RealEnd-to.RealStart
	startHeight, endHeight := from.ImagEnd-from.ImagStart, to.ImagEnd-to.ImagStart

	viewports := make([]fractal.Viewport, 0, frames)
	for currentFrame := 1; currentFrame < frames; currentFrame++ {
		// Lerp through the coordinates in the transition
		t := float64(currentFrame) / float64(frames)
		currentX := misc.LerpFloat64(startX, endX, misc.EaseOutExpo(t))
		currentY := misc.LerpFloat64(startY, endY, misc.EaseOutExpo(t))
		width := math.Exp(misc.LerpFloat64(math.Log(startWidth), math.Log(endWidth), t))
		height := math.Exp(misc.LerpFloat64(math.Log(startHeight), math.Log(endHeight), t))

		viewports = append(viewports, fractal.Viewport{
			RealStart: currentX - width/2,
			RealEnd:   currentX + width/2,
			ImagStart: currentY - height/2,
			ImagEnd:   currentY + height/2,
			Width:     to.Width,
			Height:    to.Height,
		})
	}
	return append(viewports, to), nil
}

func center(v fractal.Viewport) (float64, float64) {
	return (v.RealStart + v.RealEnd) / 2, (v.ImagStart + v.ImagEnd) / 2
}
