package task

import (
	"errors"
	"fmt"
	"image"

	"fractalexplorer/fractal"
)

var ErrNoMorePixels = errors.New("no more pixels")

// Task is a disjoint block of pixels of one render. Stream and Token identify the render so results of a request
// that has since been replaced can be recognised and dropped.
type Task struct {
	Bounds        image.Rectangle
	ID            uint
	Request       fractal.RenderRequest
	Results       []Pixel
	Stream        string
	Token         uint64
	WorkerAddress string
}

func NewTask(id uint, stream string, token uint64, request fractal.RenderRequest, bounds image.Rectangle) Task {
	return Task{
		Bounds:  bounds,
		ID:      id,
		Request: request,
		Stream:  stream,
		Token:   token,
	}
}

func (t *Task) String() string {
	output := "{Task "
	output += fmt.Sprintf("ID: %d ", t.ID)
	output += fmt.Sprintf("Stream: %s ", t.Stream)
	output += fmt.Sprintf("Token: %d ", t.Token)
	output += fmt.Sprintf("Bounds: %v ", t.Bounds)
	output += fmt.Sprintf("Result Count: %d}", len(t.Results))
	return output
}

func (t *Task) PixelCount() int {
	return t.Bounds.Dx() * t.Bounds.Dy()
}

func (t *Task) Done() bool {
	return len(t.Results) >= t.PixelCount()
}

// GetNextTask
// Returns the next pixel to be processed, walking the bounds row by row. Make sure to return the result to the
// AddResult method before calling this method again
func (t *Task) GetNextTask() (image.Point, error) {
	if t.Done() || t.Bounds.Empty() {
		return image.Point{}, ErrNoMorePixels
	}
	i := len(t.Results)
	return image.Point{
		X: t.Bounds.Min.X + i%t.Bounds.Dx(),
		Y: t.Bounds.Min.Y + i/t.Bounds.Dx(),
	}, nil
}

// AddResult
// Records the pixel so the next call to the GetNextTask method moves on to the following pixel
func (t *Task) AddResult(pixel Pixel) {
	t.Results = append(t.Results, pixel)
}

// Reset drops partial results so the task can be handed out again
func (t *Task) Reset() {
	t.Results = nil
	t.WorkerAddress = ""
}
