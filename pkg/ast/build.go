package ast

import "strconv"

// Shorthand constructors, mostly for tests and hand-built trees.

func Num(v int64) *Number { return &Number{Value: v} }

func W(name string) *Word { return &Word{Name: name} }

func Str(s string) *String { return &String{Value: s} }

func Def(name string, body ...Node) *Definition {
	return &Definition{Name: name, Body: body}
}

func Prog(body ...Node) *Program { return &Program{Body: body} }

// Words builds a node sequence from word and number spellings.
// Tokens that parse as integers become Numbers, everything else a Word.
func Words(tokens ...string) []Node {
	nodes := make([]Node, len(tokens))
	for i, tok := range tokens {
		if v, ok := parseInt(tok); ok {
			nodes[i] = Num(v)
		} else {
			nodes[i] = W(tok)
		}
	}
	return nodes
}

func parseInt(s string) (int64, bool) {
	v, err := strconv.ParseInt(s, 10, 64)
	return v, err == nil
}
