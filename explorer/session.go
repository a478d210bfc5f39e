// Package explorer holds the interactive state of one viewer: a Mandelbrot panel that can be zoomed and a Julia
// panel whose constant is picked from it.
package explorer

import (
	"context"
	"fmt"
	"image"
	"sync"

	"fractalexplorer/coordinator"
	"fractalexplorer/export"
	"fractalexplorer/favourites"
	"fractalexplorer/fractal"

	"github.com/BrugadaSyndrome/bslogger"
)

// Session
// Owns the current Mandelbrot and Julia requests. Every interaction replaces a request wholesale, a render in flight
// keeps the request it was started with and is superseded by the next render of the same panel
type Session struct {
	defaults         fractal.RenderRequest
	favourites       *favourites.Store
	generator        *coordinator.Generator
	julia            fractal.RenderRequest
	lastJulia        *image.RGBA
	lastJuliaRequest fractal.RenderRequest
	liveUpdates      bool
	logger           bslogger.Logger
	mandelbrot       fractal.RenderRequest
	mutex            sync.Mutex
	name             string
	settings         Settings
}

func NewSession(name string, settings Settings, generator *coordinator.Generator, store *favourites.Store) (*Session, error) {
	if err := settings.Verify(); err != nil {
		return nil, err
	}
	viewport, err := settings.Viewport()
	if err != nil {
		return nil, err
	}
	constant, err := settings.Constant()
	if err != nil {
		return nil, err
	}
	mandelbrot, err := fractal.NewMandelbrotRequest(viewport, settings.MaxIterations)
	if err != nil {
		return nil, err
	}
	julia, err := fractal.NewJuliaRequest(viewport, settings.MaxIterations, constant)
	if err != nil {
		return nil, err
	}
	if store == nil {
		if store, err = favourites.Load(settings.FavouritesFile); err != nil {
			return nil, err
		}
	}

	return &Session{
		defaults:   mandelbrot,
		favourites: store,
		generator:  generator,
		julia:      julia,
		logger:     bslogger.NewLogger(fmt.Sprintf("Explorer %s", name), bslogger.Normal, nil),
		mandelbrot: mandelbrot,
		name:       name,
		settings:   settings,
	}, nil
}

func (s *Session) mandelbrotStream() string {
	return s.name + "/mandelbrot"
}

func (s *Session) juliaStream() string {
	return s.name + "/julia"
}

func (s *Session) Mandelbrot() fractal.RenderRequest {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.mandelbrot
}

func (s *Session) Julia() fractal.RenderRequest {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.julia
}

func (s *Session) Constant() fractal.Complex {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.julia.Constant
}

func (s *Session) LiveUpdates() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.liveUpdates
}

// UpdateAxes replaces the Mandelbrot viewport and the iteration count of both panels
func (s *Session) UpdateAxes(realStart float64, realEnd float64, imagStart float64, imagEnd float64, maxIterations int) error {
	if err := checkIterations(maxIterations); err != nil {
		return err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	viewport, err := fractal.NewViewport(realStart, realEnd, imagStart, imagEnd, s.mandelbrot.Viewport.Width, s.mandelbrot.Viewport.Height)
	if err != nil {
		return err
	}
	mandelbrot, err := fractal.NewMandelbrotRequest(viewport, maxIterations)
	if err != nil {
		return err
	}
	s.mandelbrot = mandelbrot
	s.julia.MaxIterations = maxIterations
	s.logger.Debugf("Axes updated: %s", viewport)
	return nil
}

// Zoom narrows the Mandelbrot viewport to a rectangle dragged on its pixels
func (s *Session) Zoom(selection image.Rectangle) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	viewport, err := s.mandelbrot.Viewport.Zoom(selection)
	if err != nil {
		return err
	}
	s.mandelbrot.Viewport = viewport
	s.logger.Debugf("Zoomed to %s", viewport)
	return nil
}

// Reset restores the default axes and iteration count
func (s *Session) Reset() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.mandelbrot = s.defaults
	s.julia.MaxIterations = s.defaults.MaxIterations
}

// Click toggles live updates and picks the Julia constant under the pixel
func (s *Session) Click(x int, y int) fractal.Complex {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.liveUpdates = !s.liveUpdates
	s.julia.Constant = s.mandelbrot.Viewport.PointAt(x, y)
	return s.julia.Constant
}

// Hover follows the pointer with the Julia constant while live updates are on. It reports whether the constant
// changed.
func (s *Session) Hover(x int, y int) (fractal.Complex, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.liveUpdates {
		return s.julia.Constant, false
	}
	point := s.mandelbrot.Viewport.PointAt(x, y)
	changed := point != s.julia.Constant
	s.julia.Constant = point
	return point, changed
}

func (s *Session) SetConstant(c fractal.Complex) error {
	if !c.IsFinite() {
		return fmt.Errorf("%w: %v", fractal.ErrInvalidConstant, c)
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.julia.Constant = c
	return nil
}

func (s *Session) AddFavourite() error {
	return s.favourites.Add(s.Constant())
}

func (s *Session) Favourites() []fractal.Complex {
	return s.favourites.All()
}

// SelectFavourite makes the favourite at index i the Julia constant
func (s *Session) SelectFavourite(i int) (fractal.Complex, error) {
	c, err := s.favourites.Get(i)
	if err != nil {
		return fractal.Complex{}, err
	}
	return c, s.SetConstant(c)
}

func (s *Session) RenderMandelbrot(ctx context.Context) (*image.RGBA, error) {
	return s.generator.Render(ctx, s.mandelbrotStream(), s.Mandelbrot())
}

func (s *Session) RenderJulia(ctx context.Context) (*image.RGBA, error) {
	img, _, err := s.renderJulia(ctx)
	return img, err
}

func (s *Session) renderJulia(ctx context.Context) (*image.RGBA, fractal.RenderRequest, error) {
	request := s.Julia()
	img, err := s.generator.Render(ctx, s.juliaStream(), request)
	if err != nil {
		return nil, request, err
	}
	s.mutex.Lock()
	s.lastJulia = img
	s.lastJuliaRequest = request
	s.mutex.Unlock()
	return img, request, nil
}

// ExportJulia writes the Julia panel named after its constant. The last render is reused when it is still current.
func (s *Session) ExportJulia(ctx context.Context) (string, error) {
	format, err := export.ParseFormat(s.settings.ExportFormat)
	if err != nil {
		return "", err
	}

	s.mutex.Lock()
	request := s.julia
	img := s.lastJulia
	if s.lastJuliaRequest != request {
		img = nil
	}
	s.mutex.Unlock()

	if img == nil {
		img, request, err = s.renderJulia(ctx)
		if err != nil {
			return "", err
		}
	}

	path, err := export.Julia(s.settings.ExportDirectory, request.Constant, format, img)
	if err != nil {
		return "", err
	}
	s.mutex.Lock()
	s.logger.Infof("Saved image to %s", path)
	s.mutex.Unlock()
	return path, nil
}

// ZoomFrames returns the viewports of an animated zoom from the current Mandelbrot viewport to the selection
func (s *Session) ZoomFrames(selection image.Rectangle, frames int) ([]fractal.Viewport, error) {
	s.mutex.Lock()
	from := s.mandelbrot.Viewport
	s.mutex.Unlock()

	to, err := from.Zoom(selection)
	if err != nil {
		return nil, err
	}
	return Transition(from, to, frames)
}
