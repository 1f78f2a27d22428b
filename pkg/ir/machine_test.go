package ir

import (
	"errors"
	"math"
	"testing"

	"github.com/chazu/forthc/pkg/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachineOutput(t *testing.T) {
	tests := []struct {
		name  string
		nodes []ast.Node
		input string
		want  string
	}{
		{"arithmetic", ast.Words("2", "3", "+", ".", "7", "2", "-", ".", "6", "7", "*", "."), "", "5 5 42 "},
		{"division truncates", ast.Words("-7", "2", "/", ".", "-7", "2", "MOD", "."), "", "-3 -1 "},
		{"comparisons", ast.Words("1", "2", "<", ".", "2", "1", "<", ".", "3", "3", "=", "."), "", "-1 0 -1 "},
		{"logic", ast.Words("3", "0", "AND", ".", "3", "0", "OR", ".", "0", "NOT", "."), "", "0 -1 -1 "},
		{"stack words", ast.Words("1", "2", "SWAP", ".", ".", "1", "2", "OVER", ".", ".", ".", "1", "2", "3", "ROT", ".", ".", "."), "", "1 2 1 2 1 1 3 2 "},
		{"print stack", ast.Words("1", "2", ".S"), "", "<2> 1 2 "},
		{"emit and cr", ast.Words("72", "EMIT", "BL", "EMIT", "CR", "SPACE"), "", "H \n "},
		{"type", []ast.Node{ast.Str("hi"), ast.W("TYPE")}, "", "hi"},
		{"key", ast.Words("KEY", ".", "KEY", "."), "A", "65 -1 "},
		{"if else", ast.Words("0", "IF", "1", "ELSE", "2", "THEN", "."), "", "2 "},
		{"do loop", ast.Words("3", "0", "DO", "I", ".", "LOOP"), "", "0 1 2 "},
		{"nested loops", ast.Words("2", "0", "DO", "2", "0", "DO", "J", ".", "LOOP", "LOOP"), "", "0 0 1 1 "},
		{"question do skips empty range", ast.Words("3", "3", "?DO", "I", ".", "LOOP"), "", ""},
		{"do with equal bounds runs once", ast.Words("3", "3", "DO", "I", ".", "LOOP"), "", "3 "},
		{"begin until", ast.Words("0", "BEGIN", "1", "+", "DUP", "3", "=", "UNTIL", "."), "", "3 "},
		{"begin while repeat", ast.Words("0", "BEGIN", "DUP", "3", "<", "WHILE", "1", "+", "REPEAT", "."), "", "3 "},
		{
			name: "recursion",
			nodes: append([]ast.Node{
				ast.Def("FACT", ast.Words("DUP", "1", ">", "IF", "DUP", "1", "-", "FACT", "*", "THEN")...),
			}, ast.Words("5", "FACT", ".")...),
			want: "120 ",
		},
		{
			name:  "exit",
			nodes: []ast.Node{ast.Def("F", ast.Words("1", ".", "EXIT", "2", ".")...), ast.W("F")},
			want:  "1 ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Output(lower(t, tt.nodes...), tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestMachineErrors(t *testing.T) {
	tests := []struct {
		name  string
		nodes []ast.Node
		want  error
	}{
		{"division by zero", ast.Words("1", "0", "/"), ErrDivisionByZero},
		{"modulo by zero", ast.Words("1", "0", "MOD"), ErrDivisionByZero},
		{"underflow", ast.Words("DROP"), ErrStackUnderflow},
		{"type underflow", ast.Words("5", "TYPE"), ErrStackUnderflow},
		{"index outside loop", ast.Words("I"), ErrNoLoop},
		{"unknown word", ast.Words("FROB"), ErrUnknownWord},
		{"runaway recursion", []ast.Node{ast.Def("R", ast.W("R")), ast.W("R")}, ErrCallDepth},
		{"infinite loop", ast.Words("BEGIN", "AGAIN"), ErrStepLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine(nil, nil)
			m.MaxSteps = 10_000
			err := m.Run(lower(t, tt.nodes...))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestMachineErrorPosition(t *testing.T) {
	prog := lower(t, ast.Num(1), ast.Num(0), &ast.Word{Name: "/", Pos: ast.Position{Line: 4, Column: 9}})
	_, err := Output(prog, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "main at 4:9: div")
}

func TestMachineOptimizerForms(t *testing.T) {
	prog := NewProgram()
	prog.Main.Emit(
		Push(3), Push(4),
		BinaryOp(OpAdd, StackPos(1), StackTop()), // 3 4 7
		StackSet(StackPos(1)),                    // 7 4
		UnaryOp(OpNeg, StackTop()),               // 7 4 -4
		PopInto(Variable("x")),                   // 7 4
		StackGet(Variable("x")),                  // 7 4 -4
		StackAlloc(2),                            // 7 4 -4 0 0
		StackFree(1),                             // 7 4 -4 0
		LoadConst(9),                             // 7 4 -4 0 9
		StackSet(Temporary(0)),                   // 7 4 -4 0
		StackGet(Temporary(0)),                   // 7 4 -4 0 9
		PopInto(Const(0)),                        // 7 4 -4 0
		Comment("done"), Simple(OpNop),
	)

	m := NewMachine(nil, nil)
	require.NoError(t, m.Run(prog))
	assert.Equal(t, []int64{7, 4, -4, 0}, m.Stack)
}

func TestEval(t *testing.T) {
	v, err := EvalBinary(OpDiv, math.MinInt64, -1)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), v)

	v, err = EvalBinary(OpAdd, math.MaxInt64, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), v)

	_, err = EvalBinary(OpMod, 1, 0)
	assert.ErrorIs(t, err, ErrDivisionByZero)

	_, err = EvalBinary(OpNeg, 1, 1)
	assert.Error(t, err)

	v, err = EvalUnary(OpNot, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)
}
