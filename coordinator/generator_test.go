package coordinator

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"fractalexplorer/fractal"
	"fractalexplorer/task"
	"fractalexplorer/worker"
)

func testGenerator(t *testing.T, workers int, generation task.Generation) *Generator {
	t.Helper()
	g := NewGenerator(Settings{Workers: workers, TaskGeneration: generation, TileSize: 8})
	t.Cleanup(g.Close)
	return g
}

func testRequest(t *testing.T, mode fractal.Mode, width int, height int, max int) fractal.RenderRequest {
	t.Helper()
	v, err := fractal.NewViewport(-2, 2, -1.6, 1.6, width, height)
	if err != nil {
		t.Fatal(err)
	}
	r := fractal.RenderRequest{Viewport: v, MaxIterations: max, Mode: mode, Constant: fractal.Complex{Real: -0.5, Imag: 0.5}}
	if err := r.Validate(); err != nil {
		t.Fatal(err)
	}
	return r
}

// referenceRender computes the image pixel by pixel on the calling goroutine
func referenceRender(r fractal.RenderRequest) *image.RGBA {
	img := image.NewRGBA(r.Viewport.Bounds())
	engine := r.Engine()
	colors := r.ColorMapper()
	for y := 0; y < r.Viewport.Height; y++ {
		for x := 0; x < r.Viewport.Width; x++ {
			result := engine.Iterate(r.Viewport.PointAt(x, y))
			img.SetRGBA(x, y, colors.Color(result, r.MaxIterations))
		}
	}
	return img
}

func assertSameImage(t *testing.T, got *image.RGBA, want *image.RGBA) {
	t.Helper()
	if got.Bounds() != want.Bounds() {
		t.Fatalf("Bounds() = %v, want %v", got.Bounds(), want.Bounds())
	}
	for y := want.Bounds().Min.Y; y < want.Bounds().Max.Y; y++ {
		for x := want.Bounds().Min.X; x < want.Bounds().Max.X; x++ {
			if got.RGBAAt(x, y) != want.RGBAAt(x, y) {
				t.Fatalf("pixel (%d, %d) = %v, want %v", x, y, got.RGBAAt(x, y), want.RGBAAt(x, y))
			}
		}
	}
}

func TestRenderSmallMandelbrot(t *testing.T) {
	g := testGenerator(t, 2, task.Row)
	r := testRequest(t, fractal.Mandelbrot, 4, 4, 10)

	img, err := g.Render(context.Background(), "mandelbrot", r)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 4, 4) {
		t.Fatalf("Bounds() = %v, want 4x4", img.Bounds())
	}

	// (2, 2) maps to the origin
	if got := img.RGBAAt(2, 2); got != fractal.BoundedColor {
		t.Errorf("pixel (2, 2) = %v, want black", got)
	}
	// The pixel grid has no pixel at 2+0i, the nearest, (3, 2) = 1+0i, escapes after 3 iterations. The escape
	// within 2 iterations is checked on (3, 0) = 1+1.6i instead.
	engine := r.Engine()
	if result := engine.Iterate(r.Viewport.PointAt(3, 0)); result.Status != fractal.Escaped || result.Iterations > 2 {
		t.Errorf("Iterate(pixel (3, 0)) = %d %s, want escape within 2", result.Iterations, result.Status)
	}
	if got := img.RGBAAt(3, 0); got == fractal.BoundedColor {
		t.Errorf("pixel (3, 0) = %v, want a non black color", got)
	}
	if result := engine.Iterate(r.Viewport.PointAt(3, 2)); result.Status != fractal.Escaped || result.Iterations != 3 {
		t.Errorf("Iterate(pixel (3, 2)) = %d %s, want escape at 3", result.Iterations, result.Status)
	}
	if got := img.RGBAAt(3, 2); got == fractal.BoundedColor {
		t.Errorf("pixel (3, 2) = %v, want a non black color", got)
	}
	assertSameImage(t, img, referenceRender(r))
}

func TestRenderMatchesReference(t *testing.T) {
	for _, generation := range []task.Generation{task.Row, task.Column, task.Tile, task.Image} {
		g := testGenerator(t, 4, generation)
		for _, mode := range []fractal.Mode{fractal.Mandelbrot, fractal.Julia} {
			r := testRequest(t, mode, 37, 23, 64)
			img, err := g.Render(context.Background(), mode.String(), r)
			if err != nil {
				t.Fatalf("%s %s Render() error = %v", generation, mode, err)
			}
			assertSameImage(t, img, referenceRender(r))
		}
	}
}

func TestRenderInvalidRequest(t *testing.T) {
	g := testGenerator(t, 1, task.Row)
	r := testRequest(t, fractal.Mandelbrot, 4, 4, 10)
	r.MaxIterations = 0
	if _, err := g.Render(context.Background(), "m", r); !errors.Is(err, fractal.ErrInvalidIterationCount) {
		t.Errorf("Render() error = %v, want ErrInvalidIterationCount", err)
	}
	r = testRequest(t, fractal.Mandelbrot, 4, 4, 10)
	r.Viewport.ImagEnd = -5
	if _, err := g.Render(context.Background(), "m", r); !errors.Is(err, fractal.ErrInvalidViewport) {
		t.Errorf("Render() error = %v, want ErrInvalidViewport", err)
	}
}

func TestSubmitSupersedes(t *testing.T) {
	// no local workers, nothing completes until tasks are processed by hand
	g := testGenerator(t, -1, task.Row)

	big, err := g.Submit("mandelbrot", testRequest(t, fractal.Mandelbrot, 2000, 2000, 512))
	if err != nil {
		t.Fatal(err)
	}
	small, err := g.Submit("mandelbrot", testRequest(t, fractal.Mandelbrot, 2, 2, 10))
	if err != nil {
		t.Fatal(err)
	}
	if small.Token() <= big.Token() {
		t.Errorf("Token() = %d after %d, want it to increase", small.Token(), big.Token())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := big.Wait(ctx); !errors.Is(err, ErrSuperseded) {
		t.Fatalf("superseded Wait() error = %v, want ErrSuperseded", err)
	}

	// stale tasks of the big render are skipped
	processor := worker.NewProcessor()
	for i := 0; i < 2; i++ {
		tk, err := g.nextTask("hand", 5*time.Second)
		if err != nil {
			t.Fatalf("nextTask() error = %v", err)
		}
		if tk.Token != small.Token() {
			t.Fatalf("nextTask() token = %d, want %d", tk.Token, small.Token())
		}
		processor.Process(&tk)
		g.ingest(tk)
	}

	img, err := small.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	assertSameImage(t, img, referenceRender(small.Request()))
	if stats := g.Stats(); stats.Stale == 0 || stats.ImagesCompleted != 1 {
		t.Errorf("Stats() = %+v, want stale tasks and one completed image", stats)
	}
}

func TestStaleResultsDropped(t *testing.T) {
	g := testGenerator(t, -1, task.Image)
	first, err := g.Submit("julia", testRequest(t, fractal.Julia, 3, 3, 10))
	if err != nil {
		t.Fatal(err)
	}
	stale, err := g.nextTask("hand", 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	second, err := g.Submit("julia", testRequest(t, fractal.Julia, 3, 3, 20))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := first.Wait(context.Background()); !errors.Is(err, ErrSuperseded) {
		t.Fatalf("Wait() error = %v, want ErrSuperseded", err)
	}

	// the old result comes back late and must not complete the new render
	processor := worker.NewProcessor()
	processor.Process(&stale)
	g.ingest(stale)
	if stats := g.Stats(); stats.ImagesCompleted != 0 || stats.ImagesInFlight != 1 {
		t.Fatalf("Stats() = %+v, want the new render still in flight", stats)
	}

	current, err := g.nextTask("hand", 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	processor.Process(&current)
	g.ingest(current)
	// a duplicate return is ignored
	g.ingest(current)

	img, err := second.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	assertSameImage(t, img, referenceRender(second.Request()))
}

func TestWaitContextCancelled(t *testing.T) {
	g := testGenerator(t, -1, task.Row)
	h, err := g.Submit("m", testRequest(t, fractal.Mandelbrot, 100, 100, 100))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
	if stats := g.Stats(); stats.ImagesInFlight != 0 {
		t.Errorf("Stats().ImagesInFlight = %d after cancel, want 0", stats.ImagesInFlight)
	}
}

func TestStreamsAreIndependent(t *testing.T) {
	g := testGenerator(t, 2, task.Tile)
	m, err := g.Submit("mandelbrot", testRequest(t, fractal.Mandelbrot, 16, 16, 50))
	if err != nil {
		t.Fatal(err)
	}
	j, err := g.Submit("julia", testRequest(t, fractal.Julia, 16, 16, 50))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := m.Wait(ctx); err != nil {
		t.Errorf("mandelbrot Wait() error = %v", err)
	}
	if _, err := j.Wait(ctx); err != nil {
		t.Errorf("julia Wait() error = %v", err)
	}
}

func TestCloseAbandonsRenders(t *testing.T) {
	g := NewGenerator(Settings{Workers: -1})
	h, err := g.Submit("m", testRequest(t, fractal.Mandelbrot, 50, 50, 100))
	if err != nil {
		t.Fatal(err)
	}
	g.Close()
	if _, err := h.Wait(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Wait() error = %v, want ErrClosed", err)
	}
	if _, err := g.Submit("m", testRequest(t, fractal.Mandelbrot, 4, 4, 10)); !errors.Is(err, ErrClosed) {
		t.Errorf("Submit() after Close error = %v, want ErrClosed", err)
	}
	// closing twice is fine
	g.Close()
}

func TestRequeue(t *testing.T) {
	g := testGenerator(t, -1, task.Row)
	h, err := g.Submit("m", testRequest(t, fractal.Mandelbrot, 4, 2, 10))
	if err != nil {
		t.Fatal(err)
	}

	lost, err := g.nextTask("flaky", 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if stats := g.Stats(); stats.TasksHandedOut != 1 {
		t.Errorf("Stats().TasksHandedOut = %d, want 1", stats.TasksHandedOut)
	}
	if n := g.requeue("flaky"); n != 1 {
		t.Fatalf("requeue() = %d, want 1", n)
	}

	processor := worker.NewProcessor()
	seen := make(map[uint]bool)
	for len(seen) < 2 {
		tk, err := g.nextTask("steady", 5*time.Second)
		if err != nil {
			t.Fatalf("nextTask() error = %v", err)
		}
		seen[tk.ID] = true
		processor.Process(&tk)
		g.ingest(tk)
	}
	if !seen[lost.ID] {
		t.Errorf("requeued task %d was not handed out again", lost.ID)
	}
	if _, err := h.Wait(context.Background()); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
}

func TestIncompleteResultRequeued(t *testing.T) {
	g := testGenerator(t, -1, task.Image)
	h, err := g.Submit("m", testRequest(t, fractal.Mandelbrot, 4, 4, 10))
	if err != nil {
		t.Fatal(err)
	}

	short, err := g.nextTask("flaky", 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	processor := worker.NewProcessor()
	processor.Process(&short)
	short.Results = short.Results[:len(short.Results)-1]
	g.ingest(short)

	again, err := g.nextTask("steady", 5*time.Second)
	if err != nil {
		t.Fatalf("nextTask() after an incomplete result error = %v", err)
	}
	if again.ID != short.ID || len(again.Results) != 0 {
		t.Fatalf("nextTask() = %s, want task %d again with no results", again.String(), short.ID)
	}
	processor.Process(&again)
	g.ingest(again)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	img, err := h.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	assertSameImage(t, img, referenceRender(h.Request()))
	if stats := g.Stats(); stats.TasksHandedOut != 0 || stats.ImagesCompleted != 1 {
		t.Errorf("Stats() = %+v, want nothing handed out and one completed image", stats)
	}
}

func TestNextTaskIdle(t *testing.T) {
	g := testGenerator(t, -1, task.Row)
	if _, err := g.nextTask("idle", 10*time.Millisecond); !errors.Is(err, ErrNoTask) {
		t.Errorf("nextTask() error = %v, want ErrNoTask", err)
	}
}
