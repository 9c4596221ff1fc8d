package compose

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/MeKo-Tech/noisemix/internal/expr"
	"github.com/MeKo-Tech/noisemix/internal/noise"
	"gopkg.in/yaml.v3"
)

// Top-level sections of a composition document:
//
//	noise_dictionary:
//	  A:
//	    PerlinNoiseConfig:
//	      freq: 0.001
//	  C:
//	    UniformNoiseConfig:
//	      val: 5
//	generation_expression:
//	  Operator:
//	    Mult:
//	      lhs: {Noise: A}
//	      rhs: {Noise: C}
//
// generation_formula ("A * C") may replace generation_expression.
const (
	keyDictionary = "noise_dictionary"
	keyExpression = "generation_expression"
	keyFormula    = "generation_formula"
)

// ErrNoExpression is returned when a document names neither an expression
// nor a formula.
var ErrNoExpression = errors.New("composition has no " + keyExpression + " or " + keyFormula)

// CodecOption customizes Decode, Encode and Load.
type CodecOption func(*codec)

type codec struct {
	generators *noise.Registry
	operators  *expr.Registry
}

// WithGenerators decodes generator kinds through reg instead of noise.Default().
func WithGenerators(reg *noise.Registry) CodecOption {
	return func(c *codec) { c.generators = reg }
}

// WithOperators decodes operator kinds through reg instead of expr.Default().
func WithOperators(reg *expr.Registry) CodecOption {
	return func(c *codec) { c.operators = reg }
}

func newCodec(opts []CodecOption) *codec {
	c := &codec{generators: noise.Default(), operators: expr.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load reads a composition file. YAML and JSON are both accepted.
func Load(path string, opts ...CodecOption) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read composition: %w", err)
	}
	cfg, err := Decode(data, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode parses a composition document. Every generator is validated and
// every expression tag must resolve in the dictionary.
func Decode(data []byte, opts ...CodecOption) (*Config, error) {
	c := newCodec(opts)

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse composition: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return nil, fmt.Errorf("composition document is empty")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: composition must be a mapping", root.Line)
	}

	var dictNode, exprNode, formulaNode *yaml.Node
	for i := 0; i+1 < len(root.Content); i += 2 {
		k, v := root.Content[i], root.Content[i+1]
		var slot **yaml.Node
		switch k.Value {
		case keyDictionary:
			slot = &dictNode
		case keyExpression:
			slot = &exprNode
		case keyFormula:
			slot = &formulaNode
		default:
			return nil, fmt.Errorf("line %d: unknown section %q", k.Line, k.Value)
		}
		if *slot != nil {
			return nil, fmt.Errorf("line %d: duplicate section %q", k.Line, k.Value)
		}
		*slot = v
	}

	if dictNode == nil {
		return nil, fmt.Errorf("composition has no %s", keyDictionary)
	}
	dict, err := c.decodeDictionary(dictNode)
	if err != nil {
		return nil, err
	}

	var e expr.Expr
	switch {
	case exprNode != nil && formulaNode != nil:
		return nil, fmt.Errorf("composition sets both %s and %s", keyExpression, keyFormula)
	case exprNode != nil:
		if e, err = expr.DecodeYAML(exprNode, c.operators); err != nil {
			return nil, fmt.Errorf("%s: %w", keyExpression, err)
		}
	case formulaNode != nil:
		if formulaNode.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: %s must be a string", formulaNode.Line, keyFormula)
		}
		if e, err = expr.ParseFormula(formulaNode.Value, c.operators); err != nil {
			return nil, fmt.Errorf("%s: %w", keyFormula, err)
		}
	default:
		return nil, ErrNoExpression
	}

	return New(dict, e)
}

func (c *codec) decodeDictionary(node *yaml.Node) (*noise.Dictionary, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: %s must be a mapping", node.Line, keyDictionary)
	}
	entries := make([]noise.Entry, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		tag := noise.Tag(k.Value)
		g, err := c.decodeGenerator(v)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", keyDictionary, tag, err)
		}
		entries = append(entries, noise.Entry{Tag: tag, Generator: g})
	}
	return noise.NewDictionary(entries...)
}

func (c *codec) decodeGenerator(node *yaml.Node) (noise.Generator, error) {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return nil, fmt.Errorf("line %d: generator must be a mapping with exactly one kind", node.Line)
	}
	kindNode, params := node.Content[0], node.Content[1]
	g, ok := c.generators.New(kindNode.Value)
	if !ok {
		return nil, fmt.Errorf("line %d: unknown generator kind %q", kindNode.Line, kindNode.Value)
	}
	if err := params.Decode(g); err != nil {
		return nil, fmt.Errorf("line %d: %s: %w", params.Line, kindNode.Value, err)
	}
	if err := noise.Validate(g); err != nil {
		return nil, fmt.Errorf("%s: %w", kindNode.Value, err)
	}
	return g, nil
}

// Encode writes cfg as a YAML composition document that Decode reads back to
// an equivalent composition.
func Encode(cfg *Config, opts ...CodecOption) ([]byte, error) {
	root, err := newCodec(opts).encode(cfg)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(root)
}

// EncodeJSON writes cfg in the same layout as Encode, as JSON.
func EncodeJSON(cfg *Config, opts ...CodecOption) ([]byte, error) {
	root, err := newCodec(opts).encode(cfg)
	if err != nil {
		return nil, err
	}
	var generic map[string]any
	if err := root.Decode(&generic); err != nil {
		return nil, err
	}
	return json.MarshalIndent(generic, "", "  ")
}

func (c *codec) encode(cfg *Config) (*yaml.Node, error) {
	if cfg == nil || cfg.Dictionary == nil || cfg.Expression == nil {
		return nil, fmt.Errorf("cannot encode an incomplete composition")
	}

	dict := mapping()
	for tag, g := range cfg.Dictionary.All() {
		kind, ok := c.generators.KindOf(g)
		if !ok {
			return nil, fmt.Errorf("generator %q: type %T is not registered", tag, g)
		}
		var params yaml.Node
		if err := params.Encode(g); err != nil {
			return nil, fmt.Errorf("generator %q: %w", tag, err)
		}
		dict.Content = append(dict.Content, scalar(string(tag)), mapping(scalar(kind), &params))
	}

	e, err := expr.EncodeYAML(cfg.Expression, c.operators)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", keyExpression, err)
	}

	return mapping(
		scalar(keyDictionary), dict,
		scalar(keyExpression), e,
	), nil
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func mapping(content ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Content: content}
}
