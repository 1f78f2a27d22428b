package pattern

import "github.com/chazu/forthc/pkg/ast"

// CaptureKind says what a Capture holds.
type CaptureKind int

const (
	CaptureNode CaptureKind = iota
	CaptureSeq
	CaptureText
)

// Capture is the value bound to a label: one node, a node sequence, or
// already-rendered text (used for generated definition bodies).
type Capture struct {
	Kind  CaptureKind
	Node  ast.Node
	Nodes []ast.Node
	Text  string
}

func NodeCapture(n ast.Node) Capture { return Capture{Kind: CaptureNode, Node: n} }

func SeqCapture(ns []ast.Node) Capture {
	cp := make([]ast.Node, len(ns))
	copy(cp, ns)
	return Capture{Kind: CaptureSeq, Nodes: cp}
}

func TextCapture(s string) Capture { return Capture{Kind: CaptureText, Text: s} }

// Empty reports whether the capture holds nothing renderable.
func (c Capture) Empty() bool {
	switch c.Kind {
	case CaptureNode:
		return c.Node == nil
	case CaptureSeq:
		return len(c.Nodes) == 0
	default:
		return c.Text == ""
	}
}

// Elements returns the capture as a node list; a single node is a list of one.
func (c Capture) Elements() []ast.Node {
	switch c.Kind {
	case CaptureNode:
		if c.Node == nil {
			return nil
		}
		return []ast.Node{c.Node}
	case CaptureSeq:
		return c.Nodes
	default:
		return nil
	}
}

// Bindings maps capture labels to captures. A fresh value is built for every
// match attempt and dropped if the attempt fails.
type Bindings map[string]Capture

// Get returns the capture bound to label.
func (b Bindings) Get(label string) (Capture, bool) {
	c, ok := b[label]
	return c, ok
}

// With returns a copy of b with label bound to c. The receiver is not modified.
func (b Bindings) With(label string, c Capture) Bindings {
	out := make(Bindings, len(b)+1)
	for k, v := range b {
		out[k] = v
	}
	out[label] = c
	return out
}

// merge copies src into b. Later bindings for a label replace earlier ones.
func (b Bindings) merge(src Bindings) {
	for k, v := range src {
		b[k] = v
	}
}

// accumulate appends one Repeat iteration's bindings to the running sequences.
func (b Bindings) accumulate(iter Bindings) {
	for k, v := range iter {
		acc, ok := b[k]
		if !ok || acc.Kind != CaptureSeq {
			acc = Capture{Kind: CaptureSeq}
		}
		acc.Nodes = append(acc.Nodes, v.Elements()...)
		b[k] = acc
	}
}
