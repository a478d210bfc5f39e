package worker

import (
	"image"
	"testing"

	"fractalexplorer/fractal"
	"fractalexplorer/task"
)

func TestProcess(t *testing.T) {
	v, err := fractal.NewViewport(-2, 2, -1.6, 1.6, 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	request, err := fractal.NewMandelbrotRequest(v, 20)
	if err != nil {
		t.Fatal(err)
	}

	// the bottom right quarter of the image
	tk := task.NewTask(7, "m", 1, request, image.Rect(2, 2, 4, 4))
	p := NewProcessor()
	p.Process(&tk)

	if !tk.Done() || len(tk.Results) != 4 {
		t.Fatalf("Process() left %d of 4 results", len(tk.Results))
	}
	want := []image.Point{{X: 2, Y: 2}, {X: 3, Y: 2}, {X: 2, Y: 3}, {X: 3, Y: 3}}
	for i, pixel := range tk.Results {
		if pixel.Column != want[i].X || pixel.Row != want[i].Y {
			t.Errorf("result %d at (%d, %d), want %v", i, pixel.Column, pixel.Row, want[i])
		}
	}
	// (2, 2) is the origin
	if tk.Results[0].Color != fractal.BoundedColor {
		t.Errorf("origin color = %v, want black", tk.Results[0].Color)
	}
	if p.TasksCompleted() != 1 {
		t.Errorf("TasksCompleted() = %d, want 1", p.TasksCompleted())
	}
}

func TestProcessReconfigures(t *testing.T) {
	v, err := fractal.NewViewport(-2, 2, -2, 2, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	// the single pixel maps to -2+2i which escapes immediately in both modes
	mandelbrot, err := fractal.NewMandelbrotRequest(v, 10)
	if err != nil {
		t.Fatal(err)
	}
	julia, err := fractal.NewJuliaRequest(v, 10, fractal.Complex{Real: 0.3, Imag: 0.1})
	if err != nil {
		t.Fatal(err)
	}

	p := NewProcessor()
	first := task.NewTask(1, "a", 1, mandelbrot, v.Bounds())
	second := task.NewTask(2, "b", 1, julia, v.Bounds())
	p.Process(&first)
	p.Process(&second)

	engine := julia.Engine()
	colors := julia.ColorMapper()
	want := colors.Color(engine.Iterate(v.PointAt(0, 0)), julia.MaxIterations)
	if got := second.Results[0].Color; got != want {
		t.Errorf("julia pixel = %v, want %v", got, want)
	}
	if first.Results[0].Color == second.Results[0].Color {
		t.Errorf("mandelbrot and julia pixels share color %v, want the hue offsets to differ", first.Results[0].Color)
	}
	if p.TasksCompleted() != 2 {
		t.Errorf("TasksCompleted() = %d, want 2", p.TasksCompleted())
	}
}
