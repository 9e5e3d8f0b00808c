// Package field provides composable 2D scalar fields built from sine ridges.
package field

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

var (
	// ErrZeroScale is returned when a scale factor is zero or not finite.
	ErrZeroScale = errors.New("scale factor must be non-zero and finite")
	// ErrNegativeOctaves is returned for a negative octave count.
	ErrNegativeOctaves = errors.New("octave count must be non-negative")
	// ErrFallOff is returned when the fall-off ratio is outside (0,1).
	ErrFallOff = errors.New("fall-off must be within (0,1)")
)

// Field is a deterministic function from 2D coordinates to a real value.
// The concrete kinds are Sine, Scaled and Sum.
type Field interface {
	Eval(x, y float64) float64
	kind() string
}

// Sine is a single ridge pattern oriented by Alpha and shifted by Offset (radians).
type Sine struct {
	Alpha  float64
	Offset float64
}

// Eval returns sin(cos(Alpha)*x + sin(Alpha)*y + Offset).
func (s Sine) Eval(x, y float64) float64 {
	p := math.Cos(s.Alpha)*x + math.Sin(s.Alpha)*y
	return math.Sin(p + s.Offset)
}

func (Sine) kind() string { return kindSine }

// Scaled stretches Inner spatially and in amplitude by Factor.
type Scaled struct {
	Inner  Field
	Factor float64
}

// Eval returns Inner(x/Factor, y/Factor) * Factor.
func (s Scaled) Eval(x, y float64) float64 {
	return s.Inner.Eval(x/s.Factor, y/s.Factor) * s.Factor
}

func (Scaled) kind() string { return kindScaled }

// Sum adds its terms pointwise. An empty Sum is the zero field.
type Sum struct {
	Terms []Field
}

// Eval returns the sum of all terms at (x, y).
func (s Sum) Eval(x, y float64) float64 {
	v := 0.0
	for _, t := range s.Terms {
		v += t.Eval(x, y)
	}
	return v
}

func (Sum) kind() string { return kindSum }

// SineField returns a sine ridge field with direction alpha and phase offset.
func SineField(alpha, offset float64) Sine {
	return Sine{Alpha: alpha, Offset: offset}
}

// Scale wraps f so both its period and amplitude are multiplied by factor.
// A zero factor is not checked and yields non-finite values.
func Scale(f Field, factor float64) Scaled {
	return Scaled{Inner: f, Factor: factor}
}

// ScaleChecked is Scale with validation of the factor.
func ScaleChecked(f Field, factor float64) (Scaled, error) {
	if factor == 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return Scaled{}, fmt.Errorf("%w: got %v", ErrZeroScale, factor)
	}
	return Scale(f, factor), nil
}

// Fractal sums octaves sine fields with independently drawn orientation and
// phase, octave i scaled by fallOff^i. Alpha is drawn before offset for each
// octave, both uniform over [0, 2π). Zero octaves yields the zero field
// whatever fallOff is.
func Fractal(rng *rand.Rand, octaves int, fallOff float64) (Sum, error) {
	if octaves < 0 {
		return Sum{}, fmt.Errorf("%w: got %d", ErrNegativeOctaves, octaves)
	}
	if octaves == 0 {
		return Sum{}, nil
	}
	if !(fallOff > 0 && fallOff < 1) {
		return Sum{}, fmt.Errorf("%w: got %v", ErrFallOff, fallOff)
	}
	if rng == nil {
		return Sum{}, errors.New("random source is required")
	}

	terms := make([]Field, 0, octaves)
	for i := 0; i < octaves; i++ {
		alpha := rng.Float64() * 2 * math.Pi
		offset := rng.Float64() * 2 * math.Pi
		terms = append(terms, Scale(SineField(alpha, offset), math.Pow(fallOff, float64(i))))
	}
	return Sum{Terms: terms}, nil
}

// Octaves counts the Sine leaves reachable from f.
func Octaves(f Field) int {
	switch v := f.(type) {
	case Sine:
		return 1
	case Scaled:
		return Octaves(v.Inner)
	case Sum:
		n := 0
		for _, t := range v.Terms {
			n += Octaves(t)
		}
		return n
	default:
		return 0
	}
}
