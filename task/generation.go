package task

import (
	"fmt"
	"image"
	"strings"
)

const (
	Row Generation = iota
	Column
	Tile
	Image
)

// Generation decides how an image is split into tasks
type Generation int

func (g Generation) String() string {
	switch g {
	case Row:
		return "Row"
	case Column:
		return "Column"
	case Tile:
		return "Tile"
	case Image:
		return "Image"
	}
	return fmt.Sprintf("Generation(%d)", int(g))
}

func ParseGeneration(s string) (Generation, error) {
	switch strings.ToLower(s) {
	case "row":
		return Row, nil
	case "column":
		return Column, nil
	case "tile":
		return Tile, nil
	case "image":
		return Image, nil
	}
	return Row, fmt.Errorf("unknown task generation: %q", s)
}

func (g Generation) Valid() bool {
	return g >= Row && g <= Image
}

// Split returns disjoint rectangles covering bounds. tileSize is only used by Tile generation.
func (g Generation) Split(bounds image.Rectangle, tileSize int) []image.Rectangle {
	switch g {
	case Column:
		return SplitTiles(bounds, 1, bounds.Dy())
	case Tile:
		return SplitTiles(bounds, tileSize, tileSize)
	case Image:
		if bounds.Empty() {
			return nil
		}
		return []image.Rectangle{bounds}
	default:
		return SplitTiles(bounds, bounds.Dx(), 1)
	}
}

// SplitTiles splits r into tiles of tileWidth x tileHeight. Tiles on the right and bottom edges are smaller when r
// does not divide evenly.
func SplitTiles(r image.Rectangle, tileWidth int, tileHeight int) []image.Rectangle {
	if r.Empty() {
		return nil
	}
	if tileWidth <= 0 {
		tileWidth = r.Dx()
	}
	if tileHeight <= 0 {
		tileHeight = r.Dy()
	}

	var tiles []image.Rectangle
	for y := r.Min.Y; y < r.Max.Y; y += tileHeight {
		for x := r.Min.X; x < r.Max.X; x += tileWidth {
			tile := image.Rect(x, y, x+tileWidth, y+tileHeight).Intersect(r)
			tiles = append(tiles, tile)
		}
	}
	return tiles
}
