package expr

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Kind names of the built-in operators.
const (
	KindAdd   = "Add"
	KindMult  = "Mult"
	KindSub   = "Sub"
	KindMin   = "Min"
	KindMax   = "Max"
	KindClamp = "Clamp"
	KindMean  = "Mean"
)

// ParamDecoder fills a parameter struct from whatever source describes the
// operator (a configuration mapping, formula arguments).
type ParamDecoder func(into any) error

// Def describes how an operator kind is decoded, encoded and written in a
// formula.
type Def struct {
	Kind string
	// Slots names the fixed child positions, in Children order.
	Slots []string
	// Variadic names the key holding an ordered list of children. Operators
	// set either Slots or Variadic.
	Variadic string
	MinArgs  int
	// Params lists scalar parameter keys in the order formula calls pass them.
	Params []string
	// Func is the formula function name.
	Func string
	// Infix is the formula operator symbol, if the kind has one.
	Infix string
	New   func(children []Expr, params ParamDecoder) (Operator, error)
}

// Arity checks that n children fit the definition.
func (d Def) Arity(n int) error {
	if d.Variadic != "" {
		if n < d.MinArgs {
			return fmt.Errorf("%s: expected at least %d operands, got %d", d.Kind, d.MinArgs, n)
		}
		return nil
	}
	if n != len(d.Slots) {
		return fmt.Errorf("%s: expected %d operands, got %d", d.Kind, len(d.Slots), n)
	}
	return nil
}

// UnknownKindError reports an operator kind missing from the registry.
type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown operator kind %q", e.Kind)
}

// Registry holds operator definitions. It is populated once at startup and
// is read-only after Seal.
type Registry struct {
	mu     sync.RWMutex
	defs   map[string]Def
	funcs  map[string]string
	infix  map[string]string
	sealed bool
}

// NewRegistry creates an empty operator registry.
func NewRegistry() *Registry {
	return &Registry{
		defs:  make(map[string]Def),
		funcs: make(map[string]string),
		infix: make(map[string]string),
	}
}

// Register adds an operator definition. Duplicate kinds, function names or
// infix symbols, and registration after Seal, panic.
func (r *Registry) Register(def Def) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		panic(fmt.Sprintf("operator registry is sealed, cannot register '%s'", def.Kind))
	}
	if def.Kind == "" || def.New == nil {
		panic("operator definition needs a kind and a constructor")
	}
	if (len(def.Slots) == 0) == (def.Variadic == "") {
		panic(fmt.Sprintf("operator '%s' must declare either slots or a variadic key", def.Kind))
	}
	if _, exists := r.defs[def.Kind]; exists {
		panic(fmt.Sprintf("operator kind '%s' already registered", def.Kind))
	}
	if def.Func != "" {
		if prev, exists := r.funcs[def.Func]; exists {
			panic(fmt.Sprintf("formula function '%s' already bound to '%s'", def.Func, prev))
		}
		r.funcs[def.Func] = def.Kind
	}
	if def.Infix != "" {
		if len(def.Slots) != 2 {
			panic(fmt.Sprintf("infix operator '%s' must have two slots", def.Kind))
		}
		if prev, exists := r.infix[def.Infix]; exists {
			panic(fmt.Sprintf("infix symbol '%s' already bound to '%s'", def.Infix, prev))
		}
		r.infix[def.Infix] = def.Kind
	}
	slog.Debug("Registering operator kind.", "kind", def.Kind, "func", def.Func, "infix", def.Infix)
	r.defs[def.Kind] = def
}

// Seal makes the registry read-only.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Lookup returns the definition of kind.
func (r *Registry) Lookup(kind string) (Def, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[kind]
	return d, ok
}

// ByFunc returns the definition bound to a formula function name.
func (r *Registry) ByFunc(name string) (Def, bool) {
	r.mu.RLock()
	kind, ok := r.funcs[name]
	r.mu.RUnlock()
	if !ok {
		return Def{}, false
	}
	return r.Lookup(kind)
}

// ByInfix returns the definition bound to an infix symbol.
func (r *Registry) ByInfix(symbol string) (Def, bool) {
	r.mu.RLock()
	kind, ok := r.infix[symbol]
	r.mu.RUnlock()
	if !ok {
		return Def{}, false
	}
	return r.Lookup(kind)
}

// Kinds lists the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.defs))
	for k := range r.defs {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

func binaryDef(kind, fn, infix string, build func(lhs, rhs Expr) Operator) Def {
	return Def{
		Kind:  kind,
		Slots: []string{"lhs", "rhs"},
		Func:  fn,
		Infix: infix,
		New: func(children []Expr, _ ParamDecoder) (Operator, error) {
			return build(children[0], children[1]), nil
		},
	}
}

// RegisterBuiltins installs the built-in operators into r.
func RegisterBuiltins(r *Registry) {
	r.Register(binaryDef(KindAdd, "add", "+", func(l, rh Expr) Operator { return &Add{LHS: l, RHS: rh} }))
	r.Register(binaryDef(KindMult, "mult", "*", func(l, rh Expr) Operator { return &Mult{LHS: l, RHS: rh} }))
	r.Register(binaryDef(KindSub, "sub", "-", func(l, rh Expr) Operator { return &Sub{LHS: l, RHS: rh} }))
	r.Register(binaryDef(KindMin, "min", "", func(l, rh Expr) Operator { return &Min{LHS: l, RHS: rh} }))
	r.Register(binaryDef(KindMax, "max", "", func(l, rh Expr) Operator { return &Max{LHS: l, RHS: rh} }))
	r.Register(Def{
		Kind:   KindClamp,
		Slots:  []string{"input"},
		Params: []string{"min", "max"},
		Func:   "clamp",
		New: func(children []Expr, params ParamDecoder) (Operator, error) {
			var p struct {
				Min *float32 `yaml:"min"`
				Max *float32 `yaml:"max"`
			}
			if err := params(&p); err != nil {
				return nil, fmt.Errorf("%s: %w", KindClamp, err)
			}
			if p.Min == nil || p.Max == nil {
				return nil, fmt.Errorf("%s: both min and max are required", KindClamp)
			}
			if *p.Min > *p.Max {
				return nil, fmt.Errorf("%s: min %v exceeds max %v", KindClamp, *p.Min, *p.Max)
			}
			return &Clamp{Input: children[0], Lo: *p.Min, Hi: *p.Max}, nil
		},
	})
	r.Register(Def{
		Kind:     KindMean,
		Variadic: "args",
		MinArgs:  1,
		Func:     "mean",
		New: func(children []Expr, _ ParamDecoder) (Operator, error) {
			return &Mean{Args: slices.Clone(children)}, nil
		},
	})
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	r := NewRegistry()
	RegisterBuiltins(r)
	r.Seal()
	return r
})

// Default returns the sealed process-wide registry of built-in operators.
func Default() *Registry {
	return defaultRegistry()
}
