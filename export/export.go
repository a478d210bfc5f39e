// Package export writes rendered images to disk.
package export

import (
	"bufio"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"fractalexplorer/fractal"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

const (
	PNG Format = iota
	BMP
	TIFF
)

type Format int

func (f Format) String() string {
	switch f {
	case PNG:
		return "png"
	case BMP:
		return "bmp"
	case TIFF:
		return "tiff"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

func (f Format) Extension() string {
	return "." + f.String()
}

func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(s), ".") {
	case "", "png":
		return PNG, nil
	case "bmp":
		return BMP, nil
	case "tif", "tiff":
		return TIFF, nil
	}
	return PNG, fmt.Errorf("unsupported image format: %q", s)
}

// FormatOf picks the format from a file name's extension
func FormatOf(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// FileName names an export after the Julia constant, e.g. "1.40 - 1.00i.png"
func FileName(constant fractal.Complex, format Format) string {
	return constant.String() + format.Extension()
}

func Encode(w io.Writer, img image.Image, format Format) error {
	switch format {
	case BMP:
		return bmp.Encode(w, img)
	case TIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	default:
		return png.Encode(w, img)
	}
}

// WriteFile encodes the image in the format matching the path's extension
func WriteFile(path string, img image.Image) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create image %s - %w", path, err)
	}
	w := bufio.NewWriter(f)
	if err := Encode(w, img, format); err != nil {
		_ = f.Close()
		return fmt.Errorf("unable to encode image %s - %w", path, err)
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("unable to write image %s - %w", path, err)
	}
	return f.Close()
}

// Julia writes a Julia render into dir named after its constant and returns the path
func Julia(dir string, constant fractal.Complex, format Format, img image.Image) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("unable to create folder %s - %w", dir, err)
	}
	path := filepath.Join(dir, FileName(constant, format))
	return path, WriteFile(path, img)
}
