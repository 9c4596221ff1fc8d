// Package expr implements the expression tree that combines named noise
// fields: leaves reference a tag, operator nodes combine the fields of their
// children elementwise.
package expr

import (
	"fmt"
	"slices"

	"github.com/MeKo-Tech/noisemix/internal/noise"
)

// Expr is one node of an expression tree: either a Leaf or a Node.
type Expr interface {
	isExpr()
}

// Leaf references a base field by tag.
type Leaf struct {
	Tag noise.Tag
}

// Node applies an operator to the fields of its children.
type Node struct {
	Op Operator
}

func (Leaf) isExpr() {}
func (Node) isExpr() {}

// Noise returns a leaf referencing tag.
func Noise(tag noise.Tag) Expr { return Leaf{Tag: tag} }

// Apply returns an operator node.
func Apply(op Operator) Expr { return Node{Op: op} }

// Walk visits e and its descendants depth-first, parents before children.
// Returning false from fn skips the children of that node.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	if op := operatorOf(e); op != nil {
		for _, c := range op.Children() {
			Walk(c, fn)
		}
	}
}

// Tags returns the distinct tags referenced by leaves of e, sorted.
func Tags(e Expr) []noise.Tag {
	var tags []noise.Tag
	Walk(e, func(n Expr) bool {
		if leaf, ok := leafOf(n); ok {
			tags = append(tags, leaf.Tag)
		}
		return true
	})
	slices.Sort(tags)
	return slices.Compact(tags)
}

// Validate checks that e is a well-formed tree: no nil nodes, no operator
// nodes without an operator, and no empty tags.
func Validate(e Expr) error {
	var err error
	var check func(n Expr, path string)
	check = func(n Expr, path string) {
		if err != nil {
			return
		}
		if leaf, ok := leafOf(n); ok {
			if leaf.Tag == "" {
				err = fmt.Errorf("%s: empty noise tag", path)
			}
			return
		}
		op := operatorOf(n)
		if op == nil {
			err = fmt.Errorf("%s: missing expression node", path)
			return
		}
		for i, c := range op.Children() {
			check(c, fmt.Sprintf("%s.%s[%d]", path, op.Kind(), i))
		}
	}
	check(e, "expression")
	return err
}

func leafOf(e Expr) (Leaf, bool) {
	switch n := e.(type) {
	case Leaf:
		return n, true
	case *Leaf:
		if n != nil {
			return *n, true
		}
	}
	return Leaf{}, false
}

func operatorOf(e Expr) Operator {
	switch n := e.(type) {
	case Node:
		return n.Op
	case *Node:
		if n != nil {
			return n.Op
		}
	}
	return nil
}
