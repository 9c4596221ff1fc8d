package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/noisemix/internal/noise"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
	"gopkg.in/yaml.v3"
)

var infixSymbols = map[*hclsyntax.Operation]string{
	hclsyntax.OpAdd:      "+",
	hclsyntax.OpSubtract: "-",
	hclsyntax.OpMultiply: "*",
	hclsyntax.OpDivide:   "/",
	hclsyntax.OpModulo:   "%",
}

// reservedWords parse as literals rather than references.
var reservedWords = map[string]bool{"true": true, "false": true, "null": true}

var infixPrecedence = map[string]int{
	"+": 1,
	"-": 1,
	"*": 2,
	"/": 2,
	"%": 2,
}

// ParseFormula compiles infix text such as "A * C + B" into an expression
// tree. Bare identifiers are tags; operators and function calls resolve
// through reg, e.g. "clamp(A - B, 0, 0.5)" or "mean(A, B, C)". Scalar
// parameters must be numeric constants.
//
// The grammar is HCL's expression syntax, where identifiers may contain
// dashes: "A-B" names a single tag, "A - B" subtracts.
func ParseFormula(src string, reg *Registry) (Expr, error) {
	parsed, diags := hclsyntax.ParseExpression([]byte(src), "formula", hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse formula: %w", diags)
	}
	return compileFormula(parsed, reg)
}

func compileFormula(e hclsyntax.Expression, reg *Registry) (Expr, error) {
	switch n := e.(type) {
	case *hclsyntax.ParenthesesExpr:
		return compileFormula(n.SourceExpr, reg)

	case *hclsyntax.ScopeTraversalExpr:
		if len(n.Traversal) != 1 {
			return nil, fmt.Errorf("%s: tag references cannot use attributes or indexes", n.SrcRange)
		}
		return Noise(noise.Tag(n.Traversal.RootName())), nil

	case *hclsyntax.BinaryOpExpr:
		symbol, ok := infixSymbols[n.Op]
		if !ok {
			return nil, fmt.Errorf("%s: unsupported operator", n.SrcRange)
		}
		def, ok := reg.ByInfix(symbol)
		if !ok {
			return nil, fmt.Errorf("%s: no operator registered for %q", n.SrcRange, symbol)
		}
		lhs, err := compileFormula(n.LHS, reg)
		if err != nil {
			return nil, err
		}
		rhs, err := compileFormula(n.RHS, reg)
		if err != nil {
			return nil, err
		}
		op, err := def.New([]Expr{lhs, rhs}, noParams)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", n.SrcRange, err)
		}
		return Apply(op), nil

	case *hclsyntax.FunctionCallExpr:
		return compileCall(n, reg)

	case *hclsyntax.LiteralValueExpr:
		return nil, fmt.Errorf("%s: constants must be declared as %s entries and referenced by tag", n.SrcRange, noise.KindUniform)

	default:
		return nil, fmt.Errorf("%s: unsupported formula syntax", e.Range())
	}
}

func compileCall(call *hclsyntax.FunctionCallExpr, reg *Registry) (Expr, error) {
	def, ok := reg.ByFunc(call.Name)
	if !ok {
		return nil, fmt.Errorf("%s: unknown function %q", call.NameRange, call.Name)
	}
	if call.ExpandFinal {
		return nil, fmt.Errorf("%s: argument expansion is not supported", call.Range())
	}

	nChildren := len(call.Args) - len(def.Params)
	if def.Variadic == "" && nChildren != len(def.Slots) {
		return nil, fmt.Errorf("%s: %s takes %d arguments, got %d", call.Range(), call.Name, len(def.Slots)+len(def.Params), len(call.Args))
	}
	if err := def.Arity(nChildren); err != nil {
		return nil, fmt.Errorf("%s: %w", call.Range(), err)
	}

	children := make([]Expr, 0, nChildren)
	for _, arg := range call.Args[:nChildren] {
		c, err := compileFormula(arg, reg)
		if err != nil {
			return nil, err
		}
		children = append(children, c)
	}

	params := make(map[string]float64, len(def.Params))
	for i, name := range def.Params {
		arg := call.Args[nChildren+i]
		f, err := constantNumber(arg)
		if err != nil {
			return nil, fmt.Errorf("%s: %s parameter %s: %w", arg.Range(), call.Name, name, err)
		}
		params[name] = f
	}

	op, err := def.New(children, func(into any) error {
		var node yaml.Node
		if err := node.Encode(params); err != nil {
			return err
		}
		return node.Decode(into)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", call.Range(), err)
	}
	return Apply(op), nil
}

// constantNumber evaluates arg without variables and converts it to a float.
func constantNumber(arg hclsyntax.Expression) (float64, error) {
	val, diags := arg.Value(nil)
	if diags.HasErrors() {
		return 0, fmt.Errorf("must be a numeric constant: %w", diags)
	}
	if val.IsNull() || !val.IsKnown() {
		return 0, fmt.Errorf("must be a numeric constant")
	}
	val, err := convert.Convert(val, cty.Number)
	if err != nil {
		return 0, fmt.Errorf("must be a number: %w", err)
	}
	var f float64
	if err := gocty.FromCtyValue(val, &f); err != nil {
		return 0, err
	}
	return f, nil
}

func noParams(any) error { return nil }

// FormatFormula renders e as formula text accepted by ParseFormula. Tags that
// are not valid identifiers cannot be rendered.
func FormatFormula(e Expr, reg *Registry) (string, error) {
	var b strings.Builder
	if err := formatNode(&b, e, reg); err != nil {
		return "", err
	}
	return b.String(), nil
}

func formatNode(b *strings.Builder, e Expr, reg *Registry) error {
	if leaf, ok := leafOf(e); ok {
		if !hclsyntax.ValidIdentifier(string(leaf.Tag)) || reservedWords[string(leaf.Tag)] {
			return fmt.Errorf("tag %q is not a valid formula identifier", leaf.Tag)
		}
		b.WriteString(string(leaf.Tag))
		return nil
	}
	op := operatorOf(e)
	if op == nil {
		return fmt.Errorf("invalid expression node %T", e)
	}
	def, ok := reg.Lookup(op.Kind())
	if !ok {
		return &UnknownKindError{Kind: op.Kind()}
	}
	children := op.Children()
	if err := def.Arity(len(children)); err != nil {
		return err
	}

	if def.Infix != "" {
		prec := infixPrecedence[def.Infix]
		if err := formatOperand(b, children[0], reg, func(p int) bool { return p < prec }); err != nil {
			return err
		}
		b.WriteString(" " + def.Infix + " ")
		return formatOperand(b, children[1], reg, func(p int) bool { return p <= prec })
	}

	if def.Func == "" {
		return fmt.Errorf("operator %s has no formula form", def.Kind)
	}
	b.WriteString(def.Func + "(")
	for i, c := range children {
		if i > 0 {
			b.WriteString(", ")
		}
		if err := formatNode(b, c, reg); err != nil {
			return err
		}
	}
	if len(def.Params) > 0 {
		values, err := paramValues(op)
		if err != nil {
			return err
		}
		for _, name := range def.Params {
			b.WriteString(", ")
			b.WriteString(strconv.FormatFloat(values[name], 'g', -1, 32))
		}
	}
	b.WriteString(")")
	return nil
}

func formatOperand(b *strings.Builder, e Expr, reg *Registry, needParens func(childPrec int) bool) error {
	wrap := false
	if op := operatorOf(e); op != nil {
		if def, ok := reg.Lookup(op.Kind()); ok && def.Infix != "" {
			wrap = needParens(infixPrecedence[def.Infix])
		}
	}
	if wrap {
		b.WriteString("(")
	}
	if err := formatNode(b, e, reg); err != nil {
		return err
	}
	if wrap {
		b.WriteString(")")
	}
	return nil
}

func paramValues(op Operator) (map[string]float64, error) {
	p, ok := op.(Parameterized)
	if !ok {
		return nil, fmt.Errorf("operator %s declares parameters but exposes none", op.Kind())
	}
	var node yaml.Node
	if err := node.Encode(p.Params()); err != nil {
		return nil, err
	}
	values := make(map[string]float64)
	if err := node.Decode(&values); err != nil {
		return nil, err
	}
	return values, nil
}
