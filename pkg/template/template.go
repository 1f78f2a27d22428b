// Package template renders capture bindings into target text.
//
// Templates are immutable data and may be shared by any number of rules. All
// mutable state of one emission pass, the output buffer and the indentation
// level, lives in an Emitter that the caller threads through every render.
package template

import (
	"strings"

	"github.com/chazu/forthc/pkg/ast"
	"github.com/chazu/forthc/pkg/pattern"
)

// Part is one element of a template. The set of part types is closed.
type Part interface {
	render(e *Emitter, b pattern.Bindings)
}

// Template is an ordered list of parts.
type Template []Part

// Literal emits Text verbatim.
type Literal struct{ Text string }

// Variable emits the capture bound to Label, or nothing when it is absent.
type Variable struct{ Label string }

// Block emits Parts only when Label is bound to a non-empty capture.
type Block struct {
	Label string
	Parts []Part
}

// Conditional emits Then when Label is bound to a non-empty capture, Else otherwise.
type Conditional struct {
	Label string
	Then  []Part
	Else  []Part
}

// Loop emits Parts once per element of the capture bound to Label, with the
// element bound to As ("item" when As is empty).
type Loop struct {
	Label string
	As    string
	Parts []Part
}

// Indent raises the emitter's indentation level by one unit.
type Indent struct{}

// Dedent lowers the indentation level by one unit, stopping at zero.
type Dedent struct{}

// NewLine emits a line break followed by the current indentation.
type NewLine struct{}

// Render emits t into e using b.
func (t Template) Render(e *Emitter, b pattern.Bindings) {
	renderParts(e, b, t)
}

func renderParts(e *Emitter, b pattern.Bindings, parts []Part) {
	for _, p := range parts {
		p.render(e, b)
	}
}

func (p Literal) render(e *Emitter, _ pattern.Bindings) { e.Write(p.Text) }

func (p Variable) render(e *Emitter, b pattern.Bindings) {
	c, ok := b.Get(p.Label)
	if !ok {
		return
	}
	e.writeCapture(c)
}

func (p Block) render(e *Emitter, b pattern.Bindings) {
	if c, ok := b.Get(p.Label); ok && !c.Empty() {
		renderParts(e, b, p.Parts)
	}
}

func (p Conditional) render(e *Emitter, b pattern.Bindings) {
	if c, ok := b.Get(p.Label); ok && !c.Empty() {
		renderParts(e, b, p.Then)
		return
	}
	renderParts(e, b, p.Else)
}

func (p Loop) render(e *Emitter, b pattern.Bindings) {
	c, ok := b.Get(p.Label)
	if !ok {
		return
	}
	as := p.As
	if as == "" {
		as = "item"
	}
	for _, el := range c.Elements() {
		renderParts(e, b.With(as, pattern.NodeCapture(el)), p.Parts)
	}
}

func (Indent) render(e *Emitter, _ pattern.Bindings)  { e.Indent() }
func (Dedent) render(e *Emitter, _ pattern.Bindings)  { e.Dedent() }
func (NewLine) render(e *Emitter, _ pattern.Bindings) { e.NewLine() }

// Formatter renders captured nodes in a backend's syntax.
type Formatter interface {
	Number(v int64) string
	Word(name string) string
	String(s string) string
}

// Emitter accumulates output for one emission pass.
type Emitter struct {
	buf   strings.Builder
	level int
	unit  string
	f     Formatter
}

// NewEmitter returns an emitter at indentation level zero. unit is the text
// of one indentation step.
func NewEmitter(f Formatter, unit string) *Emitter {
	return &Emitter{f: f, unit: unit}
}

// Child returns an empty emitter sharing e's formatter and indentation unit.
func (e *Emitter) Child() *Emitter {
	return NewEmitter(e.f, e.unit)
}

func (e *Emitter) String() string { return e.buf.String() }

func (e *Emitter) Level() int { return e.level }

func (e *Emitter) Write(s string) { e.buf.WriteString(s) }

func (e *Emitter) Indent() { e.level++ }

func (e *Emitter) Dedent() {
	if e.level > 0 {
		e.level--
	}
}

func (e *Emitter) NewLine() {
	e.buf.WriteByte('\n')
	e.buf.WriteString(strings.Repeat(e.unit, e.level))
}

// Line starts a new line at the current indentation and writes s.
func (e *Emitter) Line(s string) {
	e.NewLine()
	e.Write(s)
}

func (e *Emitter) writeCapture(c pattern.Capture) {
	switch c.Kind {
	case pattern.CaptureText:
		e.writeText(c.Text)
	case pattern.CaptureNode:
		if c.Node != nil {
			e.Write(e.formatNode(c.Node))
		}
	case pattern.CaptureSeq:
		for i, n := range c.Nodes {
			if i > 0 {
				e.Write(" ")
			}
			e.Write(e.formatNode(n))
		}
	}
}

// writeText re-indents pre-rendered text so its lines sit at the current level.
func (e *Emitter) writeText(text string) {
	prefix := strings.Repeat(e.unit, e.level)
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if i > 0 {
			e.buf.WriteByte('\n')
			if line != "" {
				e.buf.WriteString(prefix)
			}
		}
		e.buf.WriteString(line)
	}
}

func (e *Emitter) formatNode(n ast.Node) string {
	switch n := n.(type) {
	case *ast.Number:
		return e.f.Number(n.Value)
	case *ast.Word:
		return e.f.Word(n.Name)
	case *ast.String:
		return e.f.String(n.Value)
	case *ast.Definition:
		return e.f.Word(n.Name)
	default:
		return n.String()
	}
}
