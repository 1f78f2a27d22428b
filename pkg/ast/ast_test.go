package ast

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	input := `{"type":"program","body":[
		{"type":"definition","name":"SQUARE","pos":{"line":1,"column":1},
		 "body":[{"type":"word","name":"DUP"},{"type":"word","name":"*"}]},
		{"type":"number","value":-7,"pos":{"line":2,"column":1,"offset":16}},
		{"type":"word","name":"SQUARE"},
		{"type":"string","value":"hi there"}]}`

	prog, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, prog.Body, 4)

	def, ok := prog.Body[0].(*Definition)
	require.True(t, ok, "first node should be a definition")
	assert.Equal(t, "SQUARE", def.Name)
	assert.Equal(t, Position{Line: 1, Column: 1}, def.Position())
	assert.True(t, Equal(def, Def("SQUARE", W("DUP"), W("*"))))

	num := prog.Body[1].(*Number)
	assert.Equal(t, int64(-7), num.Value)
	assert.Equal(t, 16, num.Pos.Offset)

	assert.Equal(t, "hi there", prog.Body[3].(*String).Value)
	assert.Len(t, prog.Definitions(), 1)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"malformed", `{"type":`, "failed to parse AST"},
		{"wrong root", `{"type":"word","name":"DUP"}`, `root is "word"`},
		{"unknown node", `{"type":"program","body":[{"type":"float","value":1.5}]}`, `unknown node type "float"`},
		{"nameless word", `{"type":"program","body":[{"type":"word"}]}`, "has no name"},
		{"bad number", `{"type":"program","body":[{"type":"number","value":"x"}]}`, "number at"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBytes([]byte(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := ParseBytes([]byte(`{"type":"program","body":[{"type":"bogus"}]}`))
	assert.True(t, errors.Is(err, ErrUnknownNodeType))
}

func TestEqualIgnoresPosition(t *testing.T) {
	a := &Word{Name: "DUP", Pos: Position{Line: 3}}
	b := &Word{Name: "DUP", Pos: Position{Line: 9}}
	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, W("DROP")))
	assert.False(t, Equal(Num(1), W("1")))
	assert.False(t, Equal(Def("A", Num(1)), Def("A", Num(1), Num(2))))
	assert.True(t, Equal(Prog(Words("1", "2", "+")...), Prog(Num(1), Num(2), W("+"))))
}

func TestString(t *testing.T) {
	p := Prog(Def("SQ", W("DUP"), W("*")), Num(3), W("SQ"), Str("ok"))
	assert.Equal(t, `: SQ DUP * ; 3 SQ S" ok"`, p.String())
	assert.Equal(t, "definition", Kind(p.Body[0]))
	assert.Equal(t, "12:4", Position{Line: 12, Column: 4}.String())
}
