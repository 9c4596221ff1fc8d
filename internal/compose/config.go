// Package compose ties a generator dictionary and an expression tree into one
// composition, builds the base fields of a region in parallel, evaluates the
// tree over them and normalizes the result. It also reads and writes
// compositions as data.
package compose

import (
	"fmt"

	"github.com/MeKo-Tech/noisemix/internal/expr"
	"github.com/MeKo-Tech/noisemix/internal/noise"
)

// Config is a complete composition: named generators plus the expression
// that combines them. It is immutable once built.
type Config struct {
	Dictionary *noise.Dictionary
	Expression expr.Expr
}

// New checks that e is well formed and that every tag it references exists
// in dict.
func New(dict *noise.Dictionary, e expr.Expr) (*Config, error) {
	if dict == nil {
		return nil, fmt.Errorf("composition needs a noise dictionary")
	}
	if e == nil {
		return nil, fmt.Errorf("composition needs an expression")
	}
	if err := expr.Validate(e); err != nil {
		return nil, err
	}
	for _, tag := range expr.Tags(e) {
		if _, ok := dict.Resolve(tag); !ok {
			return nil, &expr.UnresolvedTagError{Tag: tag}
		}
	}
	return &Config{Dictionary: dict, Expression: e}, nil
}

// Unused returns the dictionary tags the expression never references. Their
// fields are still generated.
func (c *Config) Unused() []noise.Tag {
	used := make(map[noise.Tag]bool)
	for _, t := range expr.Tags(c.Expression) {
		used[t] = true
	}
	var unused []noise.Tag
	for _, t := range c.Dictionary.Tags() {
		if !used[t] {
			unused = append(unused, t)
		}
	}
	return unused
}

// Region is the rectangle of noise space to generate, starting at (X, Y) and
// spanning Width x Height samples in row-major order.
type Region struct {
	X, Y          float32
	Width, Height int
}

// Len returns the number of samples in the region.
func (r Region) Len() int { return r.Width * r.Height }

func (r Region) validate() error {
	if r.Width < 0 || r.Height < 0 {
		return fmt.Errorf("%w: region %dx%d", noise.ErrInvalidParameter, r.Width, r.Height)
	}
	return nil
}
