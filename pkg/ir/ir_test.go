package ir

import (
	"errors"
	"testing"

	"github.com/chazu/forthc/pkg/ast"
	"github.com/chazu/forthc/pkg/diag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lower(t *testing.T, nodes ...ast.Node) *Program {
	t.Helper()
	prog, err := Lower(ast.Prog(nodes...))
	require.NoError(t, err)
	return prog
}

func listing(fn *Function) []string {
	out := make([]string, len(fn.Instructions))
	for i, in := range fn.Instructions {
		out[i] = in.String()
	}
	return out
}

func TestScopeResolve(t *testing.T) {
	parent := RootScope()
	child := NewScope(parent)
	child.Define("square", WordDecl{Name: "SQUARE", Kind: WordUser})

	tests := []struct {
		name     string
		scope    *Scope
		word     string
		wantOK   bool
		wantKind WordKind
	}{
		{"builtin from parent", child, "dup", true, WordBuiltin},
		{"control from parent", child, "?do", true, WordControl},
		{"user from child", child, "SQUARE", true, WordUser},
		{"missing word", child, "FROB", false, 0},
		{"user not in parent", parent, "square", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decl, ok := tt.scope.Resolve(tt.word)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantKind, decl.Kind)
			}
		})
	}
}

func TestScopeShadowing(t *testing.T) {
	parent := RootScope()
	child := NewScope(parent)
	child.Define("DUP", WordDecl{Name: "DUP", Kind: WordUser})

	decl, ok := child.Resolve("dup")
	require.True(t, ok)
	assert.Equal(t, WordUser, decl.Kind, "child scope should shadow the builtin")

	decl, ok = parent.Resolve("dup")
	require.True(t, ok)
	assert.Equal(t, WordBuiltin, decl.Kind)
}

func TestLowerWords(t *testing.T) {
	tests := []struct {
		name  string
		nodes []ast.Node
		want  []string
	}{
		{
			name:  "arithmetic",
			nodes: ast.Words("2", "3", "+", "."),
			want:  []string{"push 2", "push 3", "add", "print"},
		},
		{
			name:  "one instruction per builtin",
			nodes: ast.Words("dup", "drop", "swap", "over", "rot", "negate", "<>", "not", ".s", "emit", "key", "cr", "space", "bl"),
			want:  []string{"dup", "drop", "swap", "over", "rot", "neg", "ne", "not", "print_stack", "emit", "key", "cr", "space", "push 32"},
		},
		{
			name:  "string",
			nodes: []ast.Node{ast.Str("hi"), ast.W("TYPE")},
			want:  []string{"push 104", "push 105", "push 2", "type"},
		},
		{
			name:  "if else then",
			nodes: ast.Words("1", "IF", "2", "ELSE", "3", "THEN"),
			want:  []string{"push 1", "jump_if_not else_0", "push 2", "jump endif_1", "else_0:", "push 3", "endif_1:"},
		},
		{
			name:  "if then",
			nodes: ast.Words("0", "IF", "7", "THEN"),
			want:  []string{"push 0", "jump_if_not else_0", "push 7", "else_0:"},
		},
		{
			name:  "do loop",
			nodes: ast.Words("5", "0", "DO", "I", ".", "LOOP"),
			want:  []string{"push 5", "push 0", "loop_enter", "do_0:", "loop_index 0", "print", "loop_next", "jump_if do_0"},
		},
		{
			name:  "question do",
			nodes: ast.Words("5", "0", "?DO", "J", "LOOP"),
			want: []string{"push 5", "push 0", "loop_enter", "loop_test", "jump_if_not loop_end_1", "do_0:",
				"loop_index 1", "loop_next", "jump_if do_0", "loop_end_1:"},
		},
		{
			name:  "begin until",
			nodes: ast.Words("BEGIN", "1", "UNTIL"),
			want:  []string{"begin_0:", "push 1", "jump_if_not begin_0"},
		},
		{
			name:  "begin again",
			nodes: ast.Words("BEGIN", "AGAIN"),
			want:  []string{"begin_0:", "jump begin_0"},
		},
		{
			name:  "begin while repeat",
			nodes: ast.Words("BEGIN", "DUP", "WHILE", "1", "-", "REPEAT"),
			want:  []string{"begin_0:", "dup", "jump_if_not while_end_1", "push 1", "sub", "jump begin_0", "while_end_1:"},
		},
		{
			name:  "unknown word is a call",
			nodes: ast.Words("frob", "EXIT"),
			want:  []string{"call FROB", "return"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := lower(t, tt.nodes...)
			assert.Equal(t, tt.want, listing(prog.Main))
		})
	}
}

func TestLowerDefinitions(t *testing.T) {
	prog := lower(t,
		ast.Def("square", ast.W("DUP"), ast.W("*")),
		ast.Def("CUBE", ast.W("DUP"), ast.W("square"), ast.W("*")),
		ast.Num(3), ast.W("Cube"), ast.W("."),
	)

	assert.Equal(t, []string{"SQUARE", "CUBE"}, prog.Names())
	assert.Equal(t, []string{"dup", "mul", "return"}, listing(prog.Functions["SQUARE"]))
	assert.Equal(t, []string{"dup", "call SQUARE", "mul", "return"}, listing(prog.Functions["CUBE"]))
	assert.Equal(t, []string{"push 3", "call CUBE", "print"}, listing(prog.Main))
	assert.Equal(t, StackEffect{}, prog.Functions["SQUARE"].Effect)

	assert.Equal(t,
		"function SQUARE (consumes: 0, produces: 0):\n  dup\n  mul\n  return\n",
		prog.Functions["SQUARE"].String())
}

func TestLabelsArePerFunction(t *testing.T) {
	prog := lower(t,
		ast.Num(1), ast.W("IF"),
		ast.Def("F", ast.W("IF"), ast.W("THEN")),
		ast.W("THEN"),
	)
	assert.Equal(t, []string{"jump_if_not else_0", "else_0:", "return"}, listing(prog.Functions["F"]))
	assert.Equal(t, []string{"push 1", "jump_if_not else_0", "else_0:"}, listing(prog.Main))
}

func TestLowerErrors(t *testing.T) {
	at := func(name string, line int) *ast.Word {
		return &ast.Word{Name: name, Pos: ast.Position{Line: line, Column: 1}}
	}

	tests := []struct {
		name    string
		nodes   []ast.Node
		kind    diag.Kind
		message string
	}{
		{"stray then", []ast.Node{at("then", 2)}, diag.UnbalancedControl, "THEN without a matching opener"},
		{"unclosed if", []ast.Node{ast.Num(1), at("IF", 3)}, diag.UnbalancedControl, "IF in main is never closed"},
		{"mismatched closer", []ast.Node{at("BEGIN", 1), at("LOOP", 1), at("AGAIN", 1)}, diag.UnbalancedControl, "LOOP cannot close BEGIN"},
		{"unclosed in definition", []ast.Node{ast.Def("F", at("DO", 4))}, diag.UnbalancedControl, "DO in F is never closed"},
		{"nested definition", []ast.Node{ast.Def("F", ast.Def("G"))}, diag.InvalidInput, "definition of G nested inside F"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Lower(ast.Prog(tt.nodes...))
			require.Error(t, err)
			assert.Equal(t, tt.kind, diag.KindOf(err))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLowerCollectsAllErrors(t *testing.T) {
	_, err := Lower(ast.Prog(ast.Words("THEN", "LOOP", "IF")...))
	require.Error(t, err)
	assert.True(t, errors.Is(err, diag.ErrUnbalancedControl))
	assert.Contains(t, err.Error(), "3 errors")
}

func TestValidate(t *testing.T) {
	prog := lower(t, ast.Def("F", ast.Num(1)), ast.W("F"), ast.W("IF"), ast.W("THEN"))
	assert.NoError(t, Validate(prog))

	prog = lower(t, &ast.Word{Name: "FROB", Pos: ast.Position{Line: 1, Column: 7}})
	err := Validate(prog)
	require.Error(t, err)
	assert.True(t, errors.Is(err, diag.ErrUnresolvedLabel))
	assert.Contains(t, err.Error(), "1:7")
	assert.Contains(t, err.Error(), "call to undefined word FROB")

	prog = NewProgram()
	prog.Main.Emit(Jump(OpJump, "nowhere"), LabelAt("here"), LabelAt("here"))
	err = Validate(prog)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jump to undefined label nowhere in main")
	assert.Contains(t, err.Error(), "label here defined twice")
}

func TestAnalyzeStackEffects(t *testing.T) {
	prog := lower(t,
		ast.Def("SQUARE", ast.Words("DUP", "*")...),
		ast.Def("PAIR", ast.Words("1", "2")...),
		ast.Def("CHOOSE", ast.Words("IF", "1", "ELSE", "2", "THEN")...),
		ast.Def("DOWN", ast.Words("DUP", "IF", "1", "-", "DOWN", "THEN")...),
		ast.Def("TWICE", ast.Words("SQUARE", "SQUARE")...),
		ast.Def("SUM3", ast.Words("+", "+")...),
		ast.Num(5), ast.W("SQUARE"), ast.W("."),
	)
	AnalyzeStackEffects(prog)

	tests := []struct {
		fn   string
		want StackEffect
	}{
		{"SQUARE", StackEffect{1, 1}},
		{"PAIR", StackEffect{0, 2}},
		{"CHOOSE", StackEffect{1, 1}},
		{"DOWN", StackEffect{1, 1}},
		{"TWICE", StackEffect{1, 1}},
		{"SUM3", StackEffect{3, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.fn, func(t *testing.T) {
			assert.Equal(t, tt.want, prog.Functions[tt.fn].Effect)
		})
	}
	assert.Equal(t, StackEffect{}, prog.Main.Effect)
}

func TestProgramClone(t *testing.T) {
	prog := lower(t, ast.Def("F", ast.Num(1)), ast.W("F"))
	cp := prog.Clone()
	cp.Functions["F"].Instructions[0] = Push(2)
	cp.Main.Emit(Simple(OpPrint))

	assert.Equal(t, "push 1", prog.Functions["F"].Instructions[0].String())
	assert.Len(t, prog.Main.Instructions, 1)

	cp.Remove("F")
	assert.Empty(t, cp.Names())
	assert.Equal(t, []string{"F"}, prog.Names())
}

func TestOpMetadata(t *testing.T) {
	ops := AllOps()
	require.Len(t, ops, int(numOps))
	for _, op := range ops {
		assert.NotEqual(t, "unknown", op.String())
		assert.NotEmpty(t, Sample(op).String(), op.String())
	}

	assert.True(t, OpMod.IsBinary())
	assert.True(t, OpOr.IsBinary())
	assert.False(t, OpNeg.IsBinary())
	assert.True(t, OpNot.IsUnary())
	assert.True(t, OpCall.IsBarrier())
	assert.False(t, OpAdd.IsBarrier())
	assert.True(t, OpDup.Pure())
	assert.False(t, OpNop.Pure())
}

func TestInstructionStrings(t *testing.T) {
	assert.Equal(t, "binary_op add(s1, top)", BinaryOp(OpAdd, StackPos(1), StackTop()).String())
	assert.Equal(t, "unary_op not(top)", UnaryOp(OpNot, StackTop()).String())
	assert.Equal(t, "stack_set $x", StackSet(Variable("x")).String())
	assert.Equal(t, "pop %t0", PopInto(Temporary(0)).String())
	assert.Equal(t, "pop", PopInto(Const(0)).String())
	assert.Equal(t, "; hello", Comment("hello").String())

	fn := &Function{Name: "F"}
	assert.Equal(t, Temporary(0), fn.NewTemp())
	assert.Equal(t, Temporary(1), fn.NewTemp())
}
