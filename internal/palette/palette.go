// Package palette maps normalized height values to pixel colors.
package palette

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/MeKo-Tech/terrasine/internal/grid"
)

// ColorMap maps a value in [0,1] to a color.
type ColorMap interface {
	Name() string
	Color(v float64) color.Color
}

// Band is one entry of the terrain palette. A value v falls into the first
// band whose Below is strictly greater than v.
type Band struct {
	Name  string
	Color color.RGBA
	Below float64
}

var terraBands = []Band{
	{Name: "ocean", Below: 0.50, Color: color.RGBA{R: 0x20, G: 0x20, B: 0xFF, A: 0xFF}},
	{Name: "shallow water", Below: 0.55, Color: color.RGBA{R: 0x40, G: 0x40, B: 0xFF, A: 0xFF}},
	{Name: "plains", Below: 0.60, Color: color.RGBA{R: 0x40, G: 0xA0, B: 0x40, A: 0xFF}},
	{Name: "forest", Below: 0.80, Color: color.RGBA{R: 0x30, G: 0x80, B: 0x30, A: 0xFF}},
	{Name: "mountain", Below: 0.85, Color: color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xFF}},
	{Name: "tall mountain", Below: 0.90, Color: color.RGBA{R: 0x60, G: 0x60, B: 0x60, A: 0xFF}},
}

var snowBand = Band{Name: "snow", Below: math.Inf(1), Color: color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}}

// Grayscale maps v to a single channel floor(v*256) clamped to [0,255].
type Grayscale struct{}

// Name implements ColorMap.
func (Grayscale) Name() string { return "grayscale" }

// Color implements ColorMap.
func (g Grayscale) Color(v float64) color.Color { return g.Gray(v) }

// Gray returns the concrete gray value for v.
func (Grayscale) Gray(v float64) color.Gray {
	c := math.Floor(v * 256)
	// NaN fails both comparisons and ends up as 0.
	if !(c >= 0) {
		c = 0
	}
	if c > 255 {
		c = 255
	}
	return color.Gray{Y: uint8(c)}
}

// Terracolor maps v through the banded terrain palette.
type Terracolor struct{}

// Name implements ColorMap.
func (Terracolor) Name() string { return "terracolor" }

// Color implements ColorMap.
func (t Terracolor) Color(v float64) color.Color { return t.Band(v).Color }

// RGBA returns the concrete color for v.
func (t Terracolor) RGBA(v float64) color.RGBA { return t.Band(v).Color }

// Band returns the palette band v falls into.
func (Terracolor) Band(v float64) Band {
	for _, b := range terraBands {
		if v < b.Below {
			return b
		}
	}
	return snowBand
}

// Bands returns a copy of the palette table, snow last.
func Bands() []Band {
	out := make([]Band, 0, len(terraBands)+1)
	out = append(out, terraBands...)
	return append(out, snowBand)
}

var byName = map[string]ColorMap{
	Grayscale{}.Name():  Grayscale{},
	Terracolor{}.Name(): Terracolor{},
}

// ByName looks up a color map by its configuration name.
func ByName(name string) (ColorMap, error) {
	cm, ok := byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown color map %q (available: %v)", name, Names())
	}
	return cm, nil
}

// Names lists the registered color maps.
func Names() []string {
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply maps every grid cell through cm. Grayscale produces an *image.Gray,
// Terracolor an *image.RGBA, any other ColorMap an *image.NRGBA.
func Apply(g *grid.Grid, cm ColorMap) image.Image {
	bounds := image.Rect(0, 0, g.Width, g.Height)

	switch m := cm.(type) {
	case Grayscale:
		img := image.NewGray(bounds)
		for y := 0; y < g.Height; y++ {
			for x := 0; x < g.Width; x++ {
				img.SetGray(x, y, m.Gray(g.At(x, y)))
			}
		}
		return img
	case Terracolor:
		img := image.NewRGBA(bounds)
		for y := 0; y < g.Height; y++ {
			for x := 0; x < g.Width; x++ {
				img.SetRGBA(x, y, m.RGBA(g.At(x, y)))
			}
		}
		return img
	default:
		img := image.NewNRGBA(bounds)
		for y := 0; y < g.Height; y++ {
			for x := 0; x < g.Width; x++ {
				img.Set(x, y, cm.Color(g.At(x, y)))
			}
		}
		return img
	}
}
