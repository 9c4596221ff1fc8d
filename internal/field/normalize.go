// Package field holds the flat scalar-field primitives shared by generators,
// operators and the compositor: min-max normalization and parallel
// elementwise kernels over row-major float32 slices.
package field

import (
	"fmt"
	"math"
)

// Range is the value span of a field before normalization.
type Range struct {
	Min float32
	Max float32
}

// Degenerate reports whether the range is empty or constant, in which case
// min-max rescaling is undefined.
func (r Range) Degenerate() bool {
	return r.Max == r.Min
}

// Span returns Max - Min.
func (r Range) Span() float32 { return r.Max - r.Min }

// Bounds computes the minimum and maximum of values in a single pass.
// An empty slice yields the zero Range.
func Bounds(values []float32) Range {
	if len(values) == 0 {
		return Range{}
	}
	r := Range{Min: values[0], Max: values[0]}
	for _, v := range values[1:] {
		if v < r.Min {
			r.Min = v
		}
		if v > r.Max {
			r.Max = v
		}
	}
	return r
}

// NonFiniteError reports a NaN or infinite sample in a field that is about to
// be normalized.
type NonFiniteError struct {
	Index int
	Value float32
}

func (e *NonFiniteError) Error() string {
	return fmt.Sprintf("non-finite sample %v at index %d", e.Value, e.Index)
}

// CheckFinite returns a NonFiniteError for the first NaN or infinite sample.
func CheckFinite(values []float32) error {
	for i, v := range values {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return &NonFiniteError{Index: i, Value: v}
		}
	}
	return nil
}

// Normalize rescales values in place so the minimum maps to 0 and the maximum
// to 1, using (v - min) / (max - min). It returns the range observed before
// rescaling. Finite input never produces NaN or Inf.
//
// A constant (or empty) field has no defined rescale. In that case every
// element is set to 0 and the returned Range reports Degenerate.
func Normalize(values []float32) Range {
	r := Bounds(values)
	if r.Degenerate() {
		clear(values)
		return r
	}
	span := r.Span()
	if math.IsInf(float64(span), 0) {
		// max - min overflows float32 for ranges wider than MaxFloat32.
		lo := float64(r.Min)
		wide := float64(r.Max) - lo
		for i, v := range values {
			values[i] = float32((float64(v) - lo) / wide)
		}
		return r
	}
	for i, v := range values {
		values[i] = (v - r.Min) / span
	}
	return r
}
