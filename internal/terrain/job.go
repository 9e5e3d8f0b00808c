// Package terrain composes fields, sampling, color mapping and output into render runs.
package terrain

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/MeKo-Tech/terrasine/internal/field"
	"github.com/MeKo-Tech/terrasine/internal/palette"
)

// Kind selects how a job builds its field.
type Kind string

const (
	// KindPlain is a single sine field wrapped in Scale.
	KindPlain Kind = "plain"
	// KindFractal is a sum of randomized, geometrically scaled sine octaves.
	KindFractal Kind = "fractal"
)

// Reference run constants.
const (
	ReferenceSize    = 200
	ReferenceOctaves = 200
	ReferenceFallOff = 0.98
	ReferenceScale   = 0.05
)

// Job describes one output image.
type Job struct {
	Name     string
	Kind     Kind
	ColorMap string
	// Plain jobs: SineField(Alpha, Offset) scaled by Scale.
	Alpha  float64
	Offset float64
	Scale  float64
	// Fractal jobs.
	Octaves int
	FallOff float64
	Seed    int64
	Width   int
	Height  int
}

// Validate checks the job before any sampling happens.
func (j Job) Validate() error {
	if j.Name == "" {
		return errors.New("job name is required")
	}
	if j.Width < 1 || j.Height < 1 {
		return fmt.Errorf("job %s: size must be positive, got %dx%d", j.Name, j.Width, j.Height)
	}
	if _, err := palette.ByName(j.ColorMap); err != nil {
		return fmt.Errorf("job %s: %w", j.Name, err)
	}

	switch j.Kind {
	case KindPlain:
		if j.Scale == 0 || math.IsNaN(j.Scale) || math.IsInf(j.Scale, 0) {
			return fmt.Errorf("job %s: %w", j.Name, field.ErrZeroScale)
		}
	case KindFractal:
		if j.Octaves < 0 {
			return fmt.Errorf("job %s: %w", j.Name, field.ErrNegativeOctaves)
		}
		if j.Octaves > 0 && !(j.FallOff > 0 && j.FallOff < 1) {
			return fmt.Errorf("job %s: %w", j.Name, field.ErrFallOff)
		}
	default:
		return fmt.Errorf("job %s: unknown kind %q", j.Name, j.Kind)
	}
	return nil
}

// Field builds the job's field. Fractal octaves draw from a source seeded with Seed.
func (j Job) Field() (field.Field, error) {
	if err := j.Validate(); err != nil {
		return nil, err
	}

	if j.Kind == KindPlain {
		scaled, err := field.ScaleChecked(field.SineField(j.Alpha, j.Offset), j.Scale)
		if err != nil {
			return nil, err
		}
		return scaled, nil
	}

	sum, err := field.Fractal(rand.New(rand.NewSource(j.Seed)), j.Octaves, j.FallOff)
	if err != nil {
		return nil, err
	}
	return sum, nil
}

// ReferenceJobs returns the four reference runs: a grayscale scaled sine
// ("test.png") and three terracolor fractal terrains. The fractal jobs get
// distinct seeds derived from seed.
func ReferenceJobs(seed int64) []Job {
	jobs := []Job{{
		Name:     "test.png",
		Kind:     KindPlain,
		ColorMap: palette.Grayscale{}.Name(),
		Scale:    ReferenceScale,
		Width:    ReferenceSize,
		Height:   ReferenceSize,
	}}

	for i, name := range []string{"terraina.png", "terrainb.png", "terrainc.png"} {
		jobs = append(jobs, Job{
			Name:     name,
			Kind:     KindFractal,
			ColorMap: palette.Terracolor{}.Name(),
			Octaves:  ReferenceOctaves,
			FallOff:  ReferenceFallOff,
			Seed:     seed + int64(i)*1000,
			Width:    ReferenceSize,
			Height:   ReferenceSize,
		})
	}
	return jobs
}
