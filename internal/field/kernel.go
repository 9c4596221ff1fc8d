package field

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// chunkSize is the number of elements a single goroutine processes.
// Fields smaller than one chunk are computed on the calling goroutine.
const chunkSize = 1 << 14

// ShapeMismatchError reports two fields that cannot be combined, or a field
// whose length is not width*height.
type ShapeMismatchError struct {
	Context string
	Want    int
	Got     int
}

func (e *ShapeMismatchError) Error() string {
	if e.Context == "" {
		return fmt.Sprintf("shape mismatch: want %d elements, got %d", e.Want, e.Got)
	}
	return fmt.Sprintf("%s: shape mismatch: want %d elements, got %d", e.Context, e.Want, e.Got)
}

// CheckLen returns a ShapeMismatchError when len(values) != want.
func CheckLen(context string, values []float32, want int) error {
	if len(values) != want {
		return &ShapeMismatchError{Context: context, Want: want, Got: len(values)}
	}
	return nil
}

// Zip applies fn to each index pair of lhs and rhs and returns a new slice.
// The lengths are checked before any element is read.
func Zip(lhs, rhs []float32, fn func(a, b float32) float32) ([]float32, error) {
	if len(lhs) != len(rhs) {
		return nil, &ShapeMismatchError{Context: "zip", Want: len(lhs), Got: len(rhs)}
	}
	out := make([]float32, len(lhs))
	chunks(len(out), func(lo, hi int) {
		a, b, dst := lhs[lo:hi], rhs[lo:hi], out[lo:hi]
		for i := range dst {
			dst[i] = fn(a[i], b[i])
		}
	})
	return out, nil
}

// Map applies fn to every element of src and returns a new slice.
func Map(src []float32, fn func(v float32) float32) []float32 {
	out := make([]float32, len(src))
	chunks(len(out), func(lo, hi int) {
		s, dst := src[lo:hi], out[lo:hi]
		for i := range dst {
			dst[i] = fn(s[i])
		}
	})
	return out
}

// Fold reduces any number of equally sized inputs index by index. The first
// input seeds the accumulator.
func Fold(inputs [][]float32, fn func(acc, v float32) float32) ([]float32, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("fold: no inputs")
	}
	n := len(inputs[0])
	for _, in := range inputs[1:] {
		if len(in) != n {
			return nil, &ShapeMismatchError{Context: "fold", Want: n, Got: len(in)}
		}
	}
	out := make([]float32, n)
	chunks(n, func(lo, hi int) {
		dst := out[lo:hi]
		copy(dst, inputs[0][lo:hi])
		for _, in := range inputs[1:] {
			src := in[lo:hi]
			for i := range dst {
				dst[i] = fn(dst[i], src[i])
			}
		}
	})
	return out, nil
}

// chunks splits [0, n) into contiguous ranges and runs body on each.
// Ranges never overlap, so body may write its own range without locking.
func chunks(n int, body func(lo, hi int)) {
	if n <= chunkSize {
		body(0, n)
		return
	}
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for lo := 0; lo < n; lo += chunkSize {
		hi := min(lo+chunkSize, n)
		g.Go(func() error {
			body(lo, hi)
			return nil
		})
	}
	_ = g.Wait()
}
