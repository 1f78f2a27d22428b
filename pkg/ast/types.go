// Package ast defines the syntax tree handed to the compiler by an external parser.
// Trees are immutable once built; nothing in this module mutates a Node.
package ast

import (
	"strconv"
	"strings"
)

// Position locates a node in the original source text.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
	Offset int `json:"offset"`
}

func (p Position) String() string {
	return strconv.Itoa(p.Line) + ":" + strconv.Itoa(p.Column)
}

// IsZero reports whether the position carries no location.
func (p Position) IsZero() bool {
	return p == Position{}
}

// Node is one element of the syntax tree. The set of node types is closed.
type Node interface {
	Position() Position
	String() string
	astNode()
}

// Number is an integer literal.
type Number struct {
	Value int64
	Pos   Position
}

// Word is a reference to a built-in or user-defined word.
type Word struct {
	Name string
	Pos  Position
}

// Definition is a colon definition: ": NAME body ;".
type Definition struct {
	Name string
	Body []Node
	Pos  Position
}

// String is a string literal (S" ...").
type String struct {
	Value string
	Pos   Position
}

// Program is the root of a tree.
type Program struct {
	Body []Node
}

func (n *Number) Position() Position     { return n.Pos }
func (n *Word) Position() Position       { return n.Pos }
func (n *Definition) Position() Position { return n.Pos }
func (n *String) Position() Position     { return n.Pos }

func (p *Program) Position() Position {
	if len(p.Body) > 0 {
		return p.Body[0].Position()
	}
	return Position{}
}

func (*Number) astNode()     {}
func (*Word) astNode()       {}
func (*Definition) astNode() {}
func (*String) astNode()     {}
func (*Program) astNode()    {}

func (n *Number) String() string { return strconv.FormatInt(n.Value, 10) }
func (n *Word) String() string   { return n.Name }
func (n *String) String() string { return `S" ` + n.Value + `"` }

func (n *Definition) String() string {
	var sb strings.Builder
	sb.WriteString(": ")
	sb.WriteString(n.Name)
	for _, child := range n.Body {
		sb.WriteByte(' ')
		sb.WriteString(child.String())
	}
	sb.WriteString(" ;")
	return sb.String()
}

func (p *Program) String() string {
	parts := make([]string, len(p.Body))
	for i, child := range p.Body {
		parts[i] = child.String()
	}
	return strings.Join(parts, " ")
}

// Kind returns the lowercase tag of a node, as used in the JSON encoding.
func Kind(n Node) string {
	switch n.(type) {
	case *Number:
		return TypeNumber
	case *Word:
		return TypeWord
	case *Definition:
		return TypeDefinition
	case *String:
		return TypeString
	case *Program:
		return TypeProgram
	default:
		return "unknown"
	}
}

// Equal reports whether two nodes are structurally equal. Positions are ignored.
func Equal(a, b Node) bool {
	switch x := a.(type) {
	case *Number:
		y, ok := b.(*Number)
		return ok && x.Value == y.Value
	case *Word:
		y, ok := b.(*Word)
		return ok && x.Name == y.Name
	case *String:
		y, ok := b.(*String)
		return ok && x.Value == y.Value
	case *Definition:
		y, ok := b.(*Definition)
		return ok && x.Name == y.Name && equalSeq(x.Body, y.Body)
	case *Program:
		y, ok := b.(*Program)
		return ok && equalSeq(x.Body, y.Body)
	default:
		return false
	}
}

func equalSeq(a, b []Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Definitions returns the top-level definitions of a program in order.
func (p *Program) Definitions() []*Definition {
	var defs []*Definition
	for _, n := range p.Body {
		if d, ok := n.(*Definition); ok {
			defs = append(defs, d)
		}
	}
	return defs
}

// Node type tags used by the JSON encoding.
const (
	TypeNumber     = "number"
	TypeWord       = "word"
	TypeDefinition = "definition"
	TypeString     = "string"
	TypeProgram    = "program"
)
