package noise

import (
	"fmt"
	"math"
)

// Uniform fills the whole region with a single value. Unlike the noise
// variants its output is not rescaled.
type Uniform struct {
	Val float32 `yaml:"val" json:"val"`
}

func (u Uniform) Validate() error {
	v := float64(u.Val)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: val must be finite, got %v", ErrInvalidParameter, u.Val)
	}
	return nil
}

func (u Uniform) Field(_, _ float32, width, height int) ([]float32, error) {
	if err := checkSize(width, height); err != nil {
		return nil, err
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	out := make([]float32, width*height)
	for i := range out {
		out[i] = u.Val
	}
	return out, nil
}
