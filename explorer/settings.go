package explorer

import (
	"encoding/json"
	"fmt"

	"fractalexplorer/export"
	"fractalexplorer/favourites"
	"fractalexplorer/fractal"
	"fractalexplorer/misc"

	"github.com/BrugadaSyndrome/bslogger"
)

// MaxIterationsLimit is the highest iteration count a session accepts
const MaxIterationsLimit = 512

// DefaultMaxPixels caps a single render at 4096x4096
const DefaultMaxPixels = 4096 * 4096

type Settings struct {
	logger bslogger.Logger

	ExportDirectory string
	ExportFormat    string
	FavouritesFile  string
	Height          int
	ImagEnd         float64
	ImagStart       float64
	// JuliaConstant is written the same way as a favourite, "<real>:<imag>"
	JuliaConstant string
	MaxIterations int
	// MaxPixels is the largest width x height a single render may have
	MaxPixels int
	RealEnd       float64
	RealStart     float64
	Width         int
}

func NewSettings(settingsFile string) Settings {
	s := Settings{
		logger: bslogger.NewLogger("ExplorerSettings", bslogger.Normal, nil),
	}
	err, fileBytes := misc.ReadFile(settingsFile)
	misc.CheckError(err, s.logger, misc.Fatal)
	misc.CheckError(json.Unmarshal(fileBytes, &s), s.logger, misc.Fatal)
	misc.CheckError(s.Verify(), s.logger, misc.Fatal)
	s.logger.Debug(s.String())
	return s
}

func DefaultSettings() Settings {
	s := Settings{
		logger: bslogger.NewLogger("ExplorerSettings", bslogger.Normal, nil),
	}
	misc.CheckError(s.Verify(), s.logger, misc.Fatal)
	return s
}

func (s *Settings) String() string {
	output := "\nExplorer settings\n"
	output += fmt.Sprintf("Size: %dx%d\n", s.Width, s.Height)
	output += fmt.Sprintf("Real: [%g, %g]\n", s.RealStart, s.RealEnd)
	output += fmt.Sprintf("Imag: [%g, %g]\n", s.ImagStart, s.ImagEnd)
	output += fmt.Sprintf("Max Iterations: %d\n", s.MaxIterations)
	output += fmt.Sprintf("Max Pixels: %d\n", s.MaxPixels)
	output += fmt.Sprintf("Julia Constant: %s\n", s.JuliaConstant)
	output += fmt.Sprintf("Favourites File: %s\n", s.FavouritesFile)
	return output
}

// Verify fills in defaults. Values that are set but invalid are reported instead of replaced.
func (s *Settings) Verify() error {
	if s.ExportDirectory == "" {
		s.ExportDirectory = "."
	}
	if s.ExportFormat == "" {
		s.ExportFormat = export.PNG.String()
	}
	if _, err := export.ParseFormat(s.ExportFormat); err != nil {
		return err
	}
	if s.FavouritesFile == "" {
		s.FavouritesFile = favourites.DefaultFile
	}
	if s.Width == 0 {
		s.Width = 600
	}
	if s.Height == 0 {
		s.Height = 500
	}
	if s.RealStart == 0 && s.RealEnd == 0 {
		s.RealStart = -2
		s.RealEnd = 2
	}
	if s.ImagStart == 0 && s.ImagEnd == 0 {
		s.ImagStart = -1.6
		s.ImagEnd = 1.6
	}
	if s.MaxIterations == 0 {
		s.MaxIterations = 100
	}
	if s.MaxPixels <= 0 {
		s.MaxPixels = DefaultMaxPixels
	}
	if s.JuliaConstant == "" {
		s.JuliaConstant = "-0.5:0.5"
	}

	if _, err := s.Viewport(); err != nil {
		return err
	}
	if err := s.CheckSize(s.Width, s.Height); err != nil {
		return err
	}
	if err := checkIterations(s.MaxIterations); err != nil {
		return err
	}
	if _, err := s.Constant(); err != nil {
		return err
	}
	return nil
}

func (s *Settings) Viewport() (fractal.Viewport, error) {
	return fractal.NewViewport(s.RealStart, s.RealEnd, s.ImagStart, s.ImagEnd, s.Width, s.Height)
}

func (s *Settings) Constant() (fractal.Complex, error) {
	c, err := favourites.ParseLine(s.JuliaConstant)
	if err != nil {
		return fractal.Complex{}, fmt.Errorf("%w: %v", fractal.ErrInvalidConstant, err)
	}
	return c, nil
}

// CheckSize rejects renders larger than MaxPixels
func (s *Settings) CheckSize(width int, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: pixel size %dx%d must be positive", fractal.ErrInvalidViewport, width, height)
	}
	if width > s.MaxPixels/height {
		return fmt.Errorf("%w: pixel size %dx%d is above %d pixels", fractal.ErrInvalidViewport, width, height, s.MaxPixels)
	}
	return nil
}

func checkIterations(maxIterations int) error {
	if maxIterations < 1 || maxIterations > MaxIterationsLimit {
		return fmt.Errorf("%w: %d must be between 1 and %d", fractal.ErrInvalidIterationCount, maxIterations, MaxIterationsLimit)
	}
	return nil
}
