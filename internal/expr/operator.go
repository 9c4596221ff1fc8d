package expr

import (
	"fmt"

	"github.com/MeKo-Tech/noisemix/internal/field"
)

// Operator combines the fields of its children. Combine receives one input
// per child, in Children order, and must return a newly allocated slice
// without modifying the inputs: inputs may alias the base field set.
type Operator interface {
	Kind() string
	Children() []Expr
	Combine(inputs [][]float32) ([]float32, error)
}

// Parameterized is implemented by operators with scalar parameters. Params
// returns a struct whose yaml tags name each parameter.
type Parameterized interface {
	Params() any
}

func binary(kind string, inputs [][]float32, fn func(a, b float32) float32) ([]float32, error) {
	if len(inputs) != 2 {
		return nil, fmt.Errorf("%s: expected 2 inputs, got %d", kind, len(inputs))
	}
	return field.Zip(inputs[0], inputs[1], fn)
}

// Add sums two fields.
type Add struct{ LHS, RHS Expr }

func (o *Add) Kind() string { return KindAdd }
func (o *Add) Children() []Expr { return []Expr{o.LHS, o.RHS} }
func (o *Add) Combine(in [][]float32) ([]float32, error) {
	return binary(KindAdd, in, func(a, b float32) float32 { return a + b })
}

// Mult multiplies two fields.
type Mult struct{ LHS, RHS Expr }

func (o *Mult) Kind() string { return KindMult }
func (o *Mult) Children() []Expr { return []Expr{o.LHS, o.RHS} }
func (o *Mult) Combine(in [][]float32) ([]float32, error) {
	return binary(KindMult, in, func(a, b float32) float32 { return a * b })
}

// Sub subtracts RHS from LHS.
type Sub struct{ LHS, RHS Expr }

func (o *Sub) Kind() string { return KindSub }
func (o *Sub) Children() []Expr { return []Expr{o.LHS, o.RHS} }
func (o *Sub) Combine(in [][]float32) ([]float32, error) {
	return binary(KindSub, in, func(a, b float32) float32 { return a - b })
}

// Min keeps the smaller sample at each index.
type Min struct{ LHS, RHS Expr }

func (o *Min) Kind() string { return KindMin }
func (o *Min) Children() []Expr { return []Expr{o.LHS, o.RHS} }
func (o *Min) Combine(in [][]float32) ([]float32, error) {
	return binary(KindMin, in, func(a, b float32) float32 { return min(a, b) })
}

// Max keeps the larger sample at each index.
type Max struct{ LHS, RHS Expr }

func (o *Max) Kind() string { return KindMax }
func (o *Max) Children() []Expr { return []Expr{o.LHS, o.RHS} }
func (o *Max) Combine(in [][]float32) ([]float32, error) {
	return binary(KindMax, in, func(a, b float32) float32 { return max(a, b) })
}

// ClampParams are the bounds of a Clamp.
type ClampParams struct {
	Min float32 `yaml:"min" json:"min"`
	Max float32 `yaml:"max" json:"max"`
}

// Clamp limits every sample of Input to [Lo, Hi].
type Clamp struct {
	Input  Expr
	Lo, Hi float32
}

func (o *Clamp) Kind() string { return KindClamp }
func (o *Clamp) Children() []Expr { return []Expr{o.Input} }
func (o *Clamp) Params() any { return ClampParams{Min: o.Lo, Max: o.Hi} }
func (o *Clamp) Combine(in [][]float32) ([]float32, error) {
	if len(in) != 1 {
		return nil, fmt.Errorf("%s: expected 1 input, got %d", KindClamp, len(in))
	}
	lo, hi := o.Lo, o.Hi
	return field.Map(in[0], func(v float32) float32 { return min(max(v, lo), hi) }), nil
}

// Mean averages any number of fields.
type Mean struct{ Args []Expr }

func (o *Mean) Kind() string { return KindMean }
func (o *Mean) Children() []Expr { return o.Args }
func (o *Mean) Combine(in [][]float32) ([]float32, error) {
	out, err := field.Fold(in, func(acc, v float32) float32 { return acc + v })
	if err != nil {
		return nil, err
	}
	n := float32(len(in))
	for i := range out {
		out[i] /= n
	}
	return out, nil
}
