package expr

import (
	"fmt"
	"slices"

	"github.com/MeKo-Tech/noisemix/internal/noise"
)

// UnresolvedTagError reports a leaf whose tag has no base field.
type UnresolvedTagError struct {
	Tag noise.Tag
}

func (e *UnresolvedTagError) Error() string {
	return fmt.Sprintf("unresolved noise tag %q", e.Tag)
}

// Value is the result of evaluating an expression. A leaf evaluates to a view
// of its base field, shared with the base field set and every other leaf
// naming the same tag; an operator evaluates to a slice it owns. Views are
// only copied when the caller needs to mutate, via Take.
type Value struct {
	data  []float32
	owned bool
}

// Data returns the samples. Callers must not modify them unless Owned.
func (v Value) Data() []float32 { return v.data }

// Owned reports whether the samples were freshly computed.
func (v Value) Owned() bool { return v.owned }

// Len returns the number of samples.
func (v Value) Len() int { return len(v.data) }

// Take returns samples the caller may modify, copying a view.
func (v Value) Take() []float32 {
	if v.owned {
		return v.data
	}
	return slices.Clone(v.data)
}

// Evaluate folds e over the base field set.
func Evaluate(e Expr, base map[noise.Tag][]float32) (Value, error) {
	if leaf, ok := leafOf(e); ok {
		data, found := base[leaf.Tag]
		if !found {
			return Value{}, &UnresolvedTagError{Tag: leaf.Tag}
		}
		return Value{data: data}, nil
	}

	op := operatorOf(e)
	if op == nil {
		return Value{}, fmt.Errorf("invalid expression node %T", e)
	}

	children := op.Children()
	inputs := make([][]float32, len(children))
	for i, c := range children {
		v, err := Evaluate(c, base)
		if err != nil {
			return Value{}, err
		}
		inputs[i] = v.data
	}

	out, err := op.Combine(inputs)
	if err != nil {
		return Value{}, fmt.Errorf("%s: %w", op.Kind(), err)
	}
	return Value{data: out, owned: true}, nil
}
