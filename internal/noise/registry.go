package noise

import (
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"
)

// Constructor returns a fresh, zero-valued generator of one kind. The result
// must be a pointer so decoders can fill in its parameters.
type Constructor func() Generator

// Registry maps kind names, as they appear in configuration data, to
// generator constructors. It is populated once at startup and is read-only
// after Seal.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
	kinds        map[reflect.Type]string
	sealed       bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[string]Constructor),
		kinds:        make(map[reflect.Type]string),
	}
}

// Register adds a generator kind. Registering the same kind twice, or
// registering into a sealed registry, is a programming error and panics.
func (r *Registry) Register(kind string, newFn Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		panic(fmt.Sprintf("generator registry is sealed, cannot register '%s'", kind))
	}
	if _, exists := r.constructors[kind]; exists {
		panic(fmt.Sprintf("generator kind '%s' already registered", kind))
	}
	t := baseType(newFn())
	if prev, exists := r.kinds[t]; exists {
		panic(fmt.Sprintf("generator type %s already registered as '%s'", t, prev))
	}
	slog.Debug("Registering generator kind.", "kind", kind, "type", t.String())
	r.constructors[kind] = newFn
	r.kinds[t] = kind
}

// Seal makes the registry read-only.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// New returns a zero-valued generator for kind.
func (r *Registry) New(kind string) (Generator, bool) {
	r.mu.RLock()
	newFn, ok := r.constructors[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return newFn(), true
}

// KindOf returns the registered kind name of g.
func (r *Registry) KindOf(g Generator) (string, bool) {
	if g == nil {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	kind, ok := r.kinds[baseType(g)]
	return kind, ok
}

// Kinds lists the registered kind names in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.constructors))
	for k := range r.constructors {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

func baseType(g Generator) reflect.Type {
	t := reflect.TypeOf(g)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// Kind names of the built-in generators. They match the established
// configuration format.
const (
	KindGradient   = "PerlinNoiseConfig"
	KindFBM        = "FBMNoiseConfig"
	KindTurbulence = "TurbNoiseConfig"
	KindSimplex    = "SimplexNoiseConfig"
	KindCellular   = "CellConfig"
	KindUniform    = "UniformNoiseConfig"
)

// RegisterBuiltins installs every built-in generator kind into r.
func RegisterBuiltins(r *Registry) {
	r.Register(KindGradient, func() Generator { return &Gradient{} })
	r.Register(KindFBM, func() Generator { return &FBM{} })
	r.Register(KindTurbulence, func() Generator { return &Turbulence{} })
	r.Register(KindSimplex, func() Generator { return &Simplex{} })
	r.Register(KindCellular, func() Generator { return &Cellular{} })
	r.Register(KindUniform, func() Generator { return &Uniform{} })
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	r := NewRegistry()
	RegisterBuiltins(r)
	r.Seal()
	return r
})

// Default returns the process-wide registry of built-in kinds. It is sealed;
// callers needing extra kinds build their own with NewRegistry and
// RegisterBuiltins.
func Default() *Registry {
	return defaultRegistry()
}
