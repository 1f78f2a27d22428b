// Package pattern matches descriptive patterns against positions in a syntax
// tree sequence and produces capture bindings.
//
// A match either fails, consuming nothing and binding nothing, or succeeds
// having consumed some number of nodes and produced a fresh Bindings value.
package pattern

import (
	"fmt"
	"strings"

	"github.com/chazu/forthc/pkg/ast"
)

// Pattern describes a shape of consecutive nodes. The set of pattern types is closed.
type Pattern interface {
	match(ctx *Context, nodes []ast.Node, pos int) (int, Bindings, bool)
	String() string
}

// Exact matches a node structurally equal to Node.
type Exact struct{ Node ast.Node }

// AnyNumber matches any number literal.
type AnyNumber struct{}

// AnyWord matches any word.
type AnyWord struct{}

// AnyDefinition matches any colon definition.
type AnyDefinition struct{}

// AnyString matches any string literal.
type AnyString struct{}

// Sequence matches its items one after another.
type Sequence struct{ Items []Pattern }

// Optional matches P or nothing.
type Optional struct{ P Pattern }

// Repeat matches P greedily zero or more times.
type Repeat struct{ P Pattern }

// Named binds Label to whatever P consumed.
type Named struct {
	Label string
	P     Pattern
}

// Guard matches P only when Pred accepts the consumed nodes.
type Guard struct {
	P    Pattern
	Pred Predicate
	Name string
}

// Match tries p at nodes[pos]. ctx may be nil.
func Match(p Pattern, ctx *Context, nodes []ast.Node, pos int) (consumed int, b Bindings, ok bool) {
	return p.match(ctx, nodes, pos)
}

func none() (int, Bindings, bool) { return 0, nil, false }

func one(nodes []ast.Node, pos int, test func(ast.Node) bool) (int, Bindings, bool) {
	if pos >= len(nodes) || !test(nodes[pos]) {
		return none()
	}
	return 1, Bindings{}, true
}

func (p Exact) match(_ *Context, nodes []ast.Node, pos int) (int, Bindings, bool) {
	return one(nodes, pos, func(n ast.Node) bool { return ast.Equal(p.Node, n) })
}

func (AnyNumber) match(_ *Context, nodes []ast.Node, pos int) (int, Bindings, bool) {
	return one(nodes, pos, func(n ast.Node) bool { _, ok := n.(*ast.Number); return ok })
}

func (AnyWord) match(_ *Context, nodes []ast.Node, pos int) (int, Bindings, bool) {
	return one(nodes, pos, func(n ast.Node) bool { _, ok := n.(*ast.Word); return ok })
}

func (AnyDefinition) match(_ *Context, nodes []ast.Node, pos int) (int, Bindings, bool) {
	return one(nodes, pos, func(n ast.Node) bool { _, ok := n.(*ast.Definition); return ok })
}

func (AnyString) match(_ *Context, nodes []ast.Node, pos int) (int, Bindings, bool) {
	return one(nodes, pos, func(n ast.Node) bool { _, ok := n.(*ast.String); return ok })
}

func (p Sequence) match(ctx *Context, nodes []ast.Node, pos int) (int, Bindings, bool) {
	b := Bindings{}
	at := pos
	for _, item := range p.Items {
		n, sub, ok := item.match(ctx, nodes, at)
		if !ok {
			return none()
		}
		b.merge(sub)
		at += n
	}
	return at - pos, b, true
}

func (p Optional) match(ctx *Context, nodes []ast.Node, pos int) (int, Bindings, bool) {
	if n, b, ok := p.P.match(ctx, nodes, pos); ok {
		return n, b, true
	}
	return 0, Bindings{}, true
}

func (p Repeat) match(ctx *Context, nodes []ast.Node, pos int) (int, Bindings, bool) {
	b := Bindings{}
	at := pos
	for {
		n, sub, ok := p.P.match(ctx, nodes, at)
		if !ok || n == 0 {
			break
		}
		b.accumulate(sub)
		at += n
	}
	return at - pos, b, true
}

func (p Named) match(ctx *Context, nodes []ast.Node, pos int) (int, Bindings, bool) {
	n, b, ok := p.P.match(ctx, nodes, pos)
	if !ok {
		return none()
	}
	if n == 1 {
		b[p.Label] = NodeCapture(nodes[pos])
	} else {
		b[p.Label] = SeqCapture(nodes[pos : pos+n])
	}
	return n, b, true
}

func (p Guard) match(ctx *Context, nodes []ast.Node, pos int) (int, Bindings, bool) {
	n, b, ok := p.P.match(ctx, nodes, pos)
	if !ok || !p.Pred(ctx, nodes[pos:pos+n]) {
		return none()
	}
	return n, b, true
}

func (p Exact) String() string       { return "=" + p.Node.String() }
func (AnyNumber) String() string     { return "number" }
func (AnyWord) String() string       { return "word" }
func (AnyDefinition) String() string { return "definition" }
func (AnyString) String() string     { return "string" }
func (p Optional) String() string    { return p.P.String() + "?" }
func (p Repeat) String() string      { return p.P.String() + "*" }
func (p Named) String() string       { return p.Label + ":" + p.P.String() }

func (p Sequence) String() string {
	parts := make([]string, len(p.Items))
	for i, item := range p.Items {
		parts[i] = item.String()
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func (p Guard) String() string {
	name := p.Name
	if name == "" {
		name = "pred"
	}
	return fmt.Sprintf("%s[%s]", p.P, name)
}

// Seq builds a Sequence.
func Seq(items ...Pattern) Sequence { return Sequence{Items: items} }

// Bind builds a Named pattern.
func Bind(label string, p Pattern) Named { return Named{Label: label, P: p} }

// Word matches the word spelled name.
func Word(name string) Exact { return Exact{Node: ast.W(name)} }

// Num matches the number v.
func Num(v int64) Exact { return Exact{Node: ast.Num(v)} }
