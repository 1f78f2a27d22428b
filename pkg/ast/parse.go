package ast

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrUnknownNodeType is returned when the JSON carries a node tag this package does not know.
var ErrUnknownNodeType = errors.New("unknown node type")

// rawNode is the wire shape of every node; which fields are meaningful depends on Type.
type rawNode struct {
	Type  string          `json:"type"`
	Name  string          `json:"name,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
	Body  []rawNode       `json:"body,omitempty"`
	Pos   Position        `json:"pos"`
}

// Parse reads AST JSON from a reader and returns a Program.
func Parse(r io.Reader) (*Program, error) {
	var raw rawNode
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse AST: %w", err)
	}
	return toProgram(&raw)
}

// ParseBytes parses AST JSON from a byte slice.
func ParseBytes(data []byte) (*Program, error) {
	var raw rawNode
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse AST: %w", err)
	}
	return toProgram(&raw)
}

func toProgram(raw *rawNode) (*Program, error) {
	if raw.Type != TypeProgram {
		return nil, fmt.Errorf("failed to parse AST: root is %q, want %q", raw.Type, TypeProgram)
	}
	body, err := toNodes(raw.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse AST: %w", err)
	}
	return &Program{Body: body}, nil
}

func toNodes(raws []rawNode) ([]Node, error) {
	nodes := make([]Node, 0, len(raws))
	for i := range raws {
		n, err := toNode(&raws[i])
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func toNode(raw *rawNode) (Node, error) {
	switch raw.Type {
	case TypeNumber:
		var v int64
		if err := json.Unmarshal(raw.Value, &v); err != nil {
			return nil, fmt.Errorf("number at %s: %w", raw.Pos, err)
		}
		return &Number{Value: v, Pos: raw.Pos}, nil
	case TypeWord:
		if raw.Name == "" {
			return nil, fmt.Errorf("word at %s has no name", raw.Pos)
		}
		return &Word{Name: raw.Name, Pos: raw.Pos}, nil
	case TypeString:
		var s string
		if err := json.Unmarshal(raw.Value, &s); err != nil {
			return nil, fmt.Errorf("string at %s: %w", raw.Pos, err)
		}
		return &String{Value: s, Pos: raw.Pos}, nil
	case TypeDefinition:
		body, err := toNodes(raw.Body)
		if err != nil {
			return nil, fmt.Errorf("definition %s: %w", raw.Name, err)
		}
		return &Definition{Name: raw.Name, Body: body, Pos: raw.Pos}, nil
	default:
		return nil, fmt.Errorf("%w %q at %s", ErrUnknownNodeType, raw.Type, raw.Pos)
	}
}
