package server

import (
	"fmt"
	"image"

	"fractalexplorer/fractal"
)

// Command is a message from a viewer
type Command struct {
	Type string `json:"type"`

	// Pixel positions for click, hover and zoom. Zoom uses both corners.
	X  int `json:"x,omitempty"`
	Y  int `json:"y,omitempty"`
	X2 int `json:"x2,omitempty"`
	Y2 int `json:"y2,omitempty"`

	RealStart     float64 `json:"realStart,omitempty"`
	RealEnd       float64 `json:"realEnd,omitempty"`
	ImagStart     float64 `json:"imagStart,omitempty"`
	ImagEnd       float64 `json:"imagEnd,omitempty"`
	MaxIterations int     `json:"maxIterations,omitempty"`

	Real float64 `json:"real,omitempty"`
	Imag float64 `json:"imag,omitempty"`

	Index int `json:"index,omitempty"`
}

func (c Command) Selection() image.Rectangle {
	return image.Rect(c.X, c.Y, c.X2, c.Y2)
}

const (
	ReplyImage      = "image"
	ReplyState      = "state"
	ReplyFavourites = "favourites"
	ReplyExported   = "exported"
	ReplyError      = "error"

	PanelMandelbrot = "mandelbrot"
	PanelJulia      = "julia"
)

// Reply is a message to a viewer. Image holds PNG bytes, base64 encoded on the wire.
type Reply struct {
	Type string `json:"type"`

	Panel   string `json:"panel,omitempty"`
	Image   []byte `json:"image,omitempty"`
	Request string `json:"request,omitempty"`

	Constant      string   `json:"constant,omitempty"`
	LiveUpdates   bool     `json:"liveUpdates"`
	MaxIterations int      `json:"maxIterations,omitempty"`
	Favourites    []string `json:"favourites,omitempty"`
	Path          string   `json:"path,omitempty"`

	Error string `json:"error,omitempty"`
}

func errorReply(command string, err error) Reply {
	return Reply{Type: ReplyError, Error: fmt.Sprintf("%s: %s", command, err)}
}

func constantStrings(constants []fractal.Complex) []string {
	out := make([]string, len(constants))
	for i, c := range constants {
		out[i] = c.String()
	}
	return out
}
