package render

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/terrasine/internal/grid"
	"github.com/mrjoshuak/go-openexr/exr"
)

// HeightmapImage copies normalized samples into a float image with the
// height in R, G and B and full alpha.
func HeightmapImage(g *grid.Grid) *exr.RGBAImage {
	img := exr.NewRGBAImage(image.Rect(0, 0, g.Width, g.Height))
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			v := float32(g.At(x, y))
			img.SetRGBA(x, y, v, v, v, 1)
		}
	}
	return img
}

// WriteHeightmapEXR stores the normalized grid as an OpenEXR file. The
// samples are kept as floats instead of being quantized to 8 bits.
func WriteHeightmapEXR(path string, g *grid.Grid) error {
	if g == nil {
		return &RenderError{Output: path, Err: fmt.Errorf("grid is required")}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &RenderError{Output: path, Err: fmt.Errorf("failed to create output dir: %w", err)}
		}
	}
	if err := exr.EncodeFile(path, HeightmapImage(g)); err != nil {
		return &RenderError{Output: path, Err: fmt.Errorf("failed to encode exr: %w", err)}
	}
	return nil
}
