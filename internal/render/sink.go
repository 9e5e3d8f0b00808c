// Package render writes pixel buffers to image files.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// PixelFunc produces the color of the pixel at column x, row y.
type PixelFunc func(x, y int) color.Color

// Sink persists a width x height pixel buffer under name and returns the
// location it was written to.
type Sink interface {
	Write(name string, width, height int, px PixelFunc) (string, error)
}

// RenderError reports that a single output could not be written.
type RenderError struct {
	Err    error
	Output string
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render failed for output %s: %v", e.Output, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// ImagePixels adapts an image to a PixelFunc with origin at the image's Min point.
func ImagePixels(img image.Image) PixelFunc {
	b := img.Bounds()
	return func(x, y int) color.Color {
		return img.At(b.Min.X+x, b.Min.Y+y)
	}
}

// Buffer materializes px into an image. The result is an *image.Gray when
// every pixel is a color.Gray, otherwise an *image.NRGBA.
func Buffer(width, height int, px PixelFunc) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", width, height)
	}
	if px == nil {
		return nil, errors.New("pixel function is required")
	}

	bounds := image.Rect(0, 0, width, height)
	gray := image.NewGray(bounds)
	var rgb *image.NRGBA
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := px(x, y)
			if rgb == nil {
				if g, ok := c.(color.Gray); ok {
					gray.SetGray(x, y, g)
					continue
				}
				// First non-gray pixel: carry what was written so far over.
				rgb = image.NewNRGBA(bounds)
				draw.Draw(rgb, bounds, gray, image.Point{}, draw.Src)
			}
			rgb.Set(x, y, c)
		}
	}

	if rgb != nil {
		return rgb, nil
	}
	return gray, nil
}
