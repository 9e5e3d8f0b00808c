// Package grid samples a field over a pixel lattice and normalizes the samples to [0,1].
package grid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/MeKo-Tech/terrasine/internal/field"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrInvalidSize is returned when width or height is below 1.
	ErrInvalidSize = errors.New("grid dimensions must be positive")
	// ErrNonFinite is returned when the field produces NaN or Inf.
	ErrNonFinite = errors.New("field produced a non-finite sample")
)

// Grid is a row-major height x width array of samples.
type Grid struct {
	Values []float64
	Width  int
	Height int
}

// New allocates a zeroed grid.
func New(width, height int) (*Grid, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	return &Grid{
		Values: make([]float64, width*height),
		Width:  width,
		Height: height,
	}, nil
}

func (g *Grid) idx(x, y int) int { return y*g.Width + x }

// At returns the sample at column x, row y.
func (g *Grid) At(x, y int) float64 { return g.Values[g.idx(x, y)] }

// Set stores v at column x, row y.
func (g *Grid) Set(x, y int, v float64) { g.Values[g.idx(x, y)] = v }

// Row returns row y as a slice sharing the grid's storage.
func (g *Grid) Row(y int) []float64 {
	start := g.idx(0, y)
	return g.Values[start : start+g.Width]
}

// Stats describes the samples before normalization.
type Stats struct {
	Min float64
	Max float64
	// Degenerate is set when Min == Max; every cell is then normalized to 0.
	Degenerate bool
}

// Options configures sampling.
type Options struct {
	Logger *slog.Logger
	// Workers is the number of rows sampled concurrently; values <= 1 sample serially.
	Workers int
}

func (o Options) log() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Sample evaluates f at (x/width - 0.5, y/height - 0.5) for every cell, mapping
// the lattice onto a centered unit square regardless of aspect ratio.
func Sample(ctx context.Context, f field.Field, width, height int, opts Options) (*Grid, error) {
	if f == nil {
		return nil, errors.New("field is required")
	}
	g, err := New(width, height)
	if err != nil {
		return nil, err
	}

	sampleRow := func(y int) error {
		fy := float64(y)/float64(height) - 0.5
		row := g.Row(y)
		for x := range row {
			v := f.Eval(float64(x)/float64(width)-0.5, fy)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w at (%d,%d): %v", ErrNonFinite, x, y, v)
			}
			row[x] = v
		}
		return nil
	}

	if opts.Workers <= 1 {
		for y := 0; y < height; y++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := sampleRow(y); err != nil {
				return nil, err
			}
		}
		return g, nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(opts.Workers)
	for y := 0; y < height; y++ {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			return sampleRow(y)
		})
	}
	// Barrier: min/max reduction only runs once every row is in.
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return g, nil
}

// Normalize rescales g in place via (v-min)/(max-min), clamped to [0,1].
// A constant grid is mapped entirely to 0.
func Normalize(g *Grid) Stats {
	if len(g.Values) == 0 {
		return Stats{Degenerate: true}
	}

	minV, maxV := g.Values[0], g.Values[0]
	for _, v := range g.Values[1:] {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}

	stats := Stats{Min: minV, Max: maxV}
	if maxV == minV {
		stats.Degenerate = true
		for i := range g.Values {
			g.Values[i] = 0
		}
		return stats
	}

	span := maxV - minV
	for i, v := range g.Values {
		g.Values[i] = clamp01((v - minV) / span)
	}
	return stats
}

// SampleAndNormalize samples f over a width x height lattice and normalizes the result.
func SampleAndNormalize(ctx context.Context, f field.Field, width, height int, opts Options) (*Grid, Stats, error) {
	g, err := Sample(ctx, f, width, height, opts)
	if err != nil {
		return nil, Stats{}, err
	}

	stats := Normalize(g)
	opts.log().Info("Sampled field",
		"width", width,
		"height", height,
		"min", stats.Min,
		"max", stats.Max,
		"degenerate", stats.Degenerate,
	)
	return g, stats, nil
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
