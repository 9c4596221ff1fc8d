// Package noise defines the generator capability behind every named noise
// source: the Generator interface, the built-in variants, the tag-keyed
// Dictionary and the kind Registry used to decode generators from data.
package noise

import (
	"errors"
	"fmt"
	"math"

	"github.com/MeKo-Tech/noisemix/internal/field"
)

// ErrInvalidParameter is wrapped by every parameter validation failure.
var ErrInvalidParameter = errors.New("invalid generator parameter")

// Generator produces a flat, row-major scalar field of width*height samples
// for the region starting at (xOffset, yOffset). Implementations must be pure:
// the same arguments always yield the same values, and no shared state is
// written, so Field may be called concurrently.
type Generator interface {
	Field(xOffset, yOffset float32, width, height int) ([]float32, error)
}

// Validator is implemented by generators whose parameters can be checked
// before any field is produced.
type Validator interface {
	Validate() error
}

// Validate checks g when it implements Validator.
func Validate(g Generator) error {
	if v, ok := g.(Validator); ok {
		return v.Validate()
	}
	return nil
}

// GeneratorError reports a generator that failed to produce its field.
type GeneratorError struct {
	Tag  Tag
	Kind string
	Err  error
}

func (e *GeneratorError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("generator %q failed: %v", e.Tag, e.Err)
	}
	return fmt.Sprintf("generator %q (%s) failed: %v", e.Tag, e.Kind, e.Err)
}

func (e *GeneratorError) Unwrap() error { return e.Err }

func checkSize(width, height int) error {
	if width < 0 || height < 0 {
		return fmt.Errorf("%w: region %dx%d", ErrInvalidParameter, width, height)
	}
	return nil
}

func checkFreq(freq float32) error {
	f := float64(freq)
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return fmt.Errorf("%w: freq must be positive and finite, got %v", ErrInvalidParameter, freq)
	}
	return nil
}

func checkOctaves(octaves uint8, lacunarity float32) error {
	if octaves == 0 {
		return fmt.Errorf("%w: octaves must be at least 1", ErrInvalidParameter)
	}
	l := float64(lacunarity)
	if math.IsNaN(l) || math.IsInf(l, 0) || l <= 0 {
		return fmt.Errorf("%w: lacunarity must be positive and finite, got %v", ErrInvalidParameter, lacunarity)
	}
	return nil
}

// sample evaluates fn over the region at the given frequency and rescales the
// result onto [0,1] across the region.
func sample(xOffset, yOffset float32, width, height int, freq float32, fn func(x, y float64) float64) []float32 {
	out := make([]float32, width*height)
	f := float64(freq)
	for row := 0; row < height; row++ {
		y := (float64(yOffset) + float64(row)) * f
		base := row * width
		for col := 0; col < width; col++ {
			x := (float64(xOffset) + float64(col)) * f
			out[base+col] = float32(fn(x, y))
		}
	}
	field.Normalize(out)
	return out
}
