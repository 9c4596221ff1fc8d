package expr

import (
	"fmt"

	"github.com/MeKo-Tech/noisemix/internal/noise"
	"gopkg.in/yaml.v3"
)

// Keys of the tagged-union node representation:
//
//	Noise: A
//	Operator:
//	  Add:
//	    lhs: {Noise: A}
//	    rhs: {Noise: B}
const (
	keyNoise    = "Noise"
	keyOperator = "Operator"
)

// DecodeYAML decodes an expression tree from its tagged-union YAML node.
func DecodeYAML(node *yaml.Node, reg *Registry) (Expr, error) {
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		node = node.Content[0]
	}
	key, value, err := singleEntry(node, "expression")
	if err != nil {
		return nil, err
	}

	switch key.Value {
	case keyNoise:
		if value.Kind != yaml.ScalarNode || value.Value == "" {
			return nil, fmt.Errorf("line %d: Noise must name a tag", value.Line)
		}
		return Noise(noise.Tag(value.Value)), nil
	case keyOperator:
		return decodeOperator(value, reg)
	default:
		return nil, fmt.Errorf("line %d: unknown expression node %q (want %s or %s)", key.Line, key.Value, keyNoise, keyOperator)
	}
}

func decodeOperator(node *yaml.Node, reg *Registry) (Expr, error) {
	kindNode, body, err := singleEntry(node, "operator")
	if err != nil {
		return nil, err
	}
	def, ok := reg.Lookup(kindNode.Value)
	if !ok {
		return nil, fmt.Errorf("line %d: %w", kindNode.Line, &UnknownKindError{Kind: kindNode.Value})
	}
	if body.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: %s body must be a mapping", body.Line, def.Kind)
	}

	fields := make(map[string]*yaml.Node, len(body.Content)/2)
	params := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	isChild := make(map[string]bool, len(def.Slots)+1)
	for _, s := range def.Slots {
		isChild[s] = true
	}
	if def.Variadic != "" {
		isChild[def.Variadic] = true
	}
	for i := 0; i+1 < len(body.Content); i += 2 {
		k, v := body.Content[i], body.Content[i+1]
		if _, dup := fields[k.Value]; dup {
			return nil, fmt.Errorf("line %d: %s: duplicate key %q", k.Line, def.Kind, k.Value)
		}
		fields[k.Value] = v
		if !isChild[k.Value] {
			params.Content = append(params.Content, k, v)
		}
	}

	var children []Expr
	if def.Variadic != "" {
		list, ok := fields[def.Variadic]
		if !ok || list.Kind != yaml.SequenceNode {
			return nil, fmt.Errorf("line %d: %s: %s must be a list", body.Line, def.Kind, def.Variadic)
		}
		for _, item := range list.Content {
			c, err := DecodeYAML(item, reg)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", def.Kind, def.Variadic, err)
			}
			children = append(children, c)
		}
	} else {
		for _, slot := range def.Slots {
			v, ok := fields[slot]
			if !ok {
				return nil, fmt.Errorf("line %d: %s: missing %s", body.Line, def.Kind, slot)
			}
			c, err := DecodeYAML(v, reg)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", def.Kind, slot, err)
			}
			children = append(children, c)
		}
	}
	if err := def.Arity(len(children)); err != nil {
		return nil, fmt.Errorf("line %d: %w", body.Line, err)
	}

	op, err := def.New(children, params.Decode)
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", body.Line, err)
	}
	return Apply(op), nil
}

// EncodeYAML renders e as a tagged-union YAML node, the inverse of DecodeYAML.
func EncodeYAML(e Expr, reg *Registry) (*yaml.Node, error) {
	if leaf, ok := leafOf(e); ok {
		return mapping(scalar(keyNoise), scalar(string(leaf.Tag))), nil
	}
	op := operatorOf(e)
	if op == nil {
		return nil, fmt.Errorf("invalid expression node %T", e)
	}
	def, ok := reg.Lookup(op.Kind())
	if !ok {
		return nil, &UnknownKindError{Kind: op.Kind()}
	}
	children := op.Children()
	if err := def.Arity(len(children)); err != nil {
		return nil, err
	}

	body := mapping()
	if def.Variadic != "" {
		list := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, c := range children {
			n, err := EncodeYAML(c, reg)
			if err != nil {
				return nil, err
			}
			list.Content = append(list.Content, n)
		}
		body.Content = append(body.Content, scalar(def.Variadic), list)
	} else {
		for i, slot := range def.Slots {
			n, err := EncodeYAML(children[i], reg)
			if err != nil {
				return nil, err
			}
			body.Content = append(body.Content, scalar(slot), n)
		}
	}

	if p, ok := op.(Parameterized); ok {
		var pn yaml.Node
		if err := pn.Encode(p.Params()); err != nil {
			return nil, fmt.Errorf("%s params: %w", def.Kind, err)
		}
		if pn.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%s params must encode to a mapping", def.Kind)
		}
		body.Content = append(body.Content, pn.Content...)
	}

	return mapping(scalar(keyOperator), mapping(scalar(def.Kind), body)), nil
}

func singleEntry(node *yaml.Node, what string) (*yaml.Node, *yaml.Node, error) {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return nil, nil, fmt.Errorf("line %d: %s must be a mapping with exactly one key", node.Line, what)
	}
	return node.Content[0], node.Content[1], nil
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func mapping(content ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Content: content}
}
