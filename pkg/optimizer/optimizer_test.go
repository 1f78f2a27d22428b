package optimizer

import (
	"errors"
	"testing"

	"github.com/chazu/forthc/pkg/ast"
	"github.com/chazu/forthc/pkg/diag"
	"github.com/chazu/forthc/pkg/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lower(t *testing.T, nodes ...ast.Node) *ir.Program {
	t.Helper()
	prog, err := ir.Lower(ast.Prog(nodes...))
	require.NoError(t, err)
	return prog
}

func listing(fn *ir.Function) []string {
	out := []string{}
	for _, in := range fn.Instructions {
		out = append(out, in.String())
	}
	return out
}

func TestDefaultPipeline(t *testing.T) {
	tests := []struct {
		name  string
		words []string
		want  []string
	}{
		{"push dup add", []string{"5", "DUP", "+"}, []string{"push 10"}},
		{"push drop", []string{"42", "DROP"}, []string{}},
		{"chained folding", []string{"10", "20", "+", "30", "*"}, []string{"push 900"}},
		{"swap of constants", []string{"5", "DUP", "+", "10", "SWAP", "-", "."}, []string{"push 0", "print"}},
		{"comparison", []string{"3", "4", "<"}, []string{"push -1"}},
		{"logic", []string{"0", "NOT", "5", "AND"}, []string{"push -1"}},
		{"negate constant", []string{"5", "NEGATE"}, []string{"push -5"}},
		{"over over of constants", []string{"3", "4", "OVER", "OVER", "+"}, []string{"push 3", "push 4", "push 7"}},
		{"division by zero stays", []string{"1", "0", "/"}, []string{"push 1", "push 0", "div"}},
		{"modulo by zero stays", []string{"1", "0", "MOD"}, []string{"push 1", "push 0", "mod"}},
		{"times two", []string{"KEY", "2", "*"}, []string{"key", "dup", "add"}},
		{"times eight", []string{"KEY", "8", "*"}, []string{"key", "dup", "add", "dup", "add", "dup", "add"}},
		{"times one", []string{"KEY", "1", "*"}, []string{"key"}},
		{"divide by one", []string{"KEY", "1", "/"}, []string{"key"}},
		{"plus zero", []string{"KEY", "0", "+"}, []string{"key"}},
		{"minus zero", []string{"KEY", "0", "-"}, []string{"key"}},
		{"divide by minus one", []string{"KEY", "-1", "/"}, []string{"key", "neg"}},
		{"times zero", []string{"KEY", "0", "*"}, []string{"key", "drop", "load_const 0"}},
		{"mod one", []string{"KEY", "1", "MOD"}, []string{"key", "drop", "load_const 0"}},
		{"divide by four stays", []string{"KEY", "4", "/"}, []string{"key", "push 4", "div"}},
		{"dup drop", []string{"KEY", "DUP", "DROP"}, []string{"key"}},
		{"swap swap", []string{"KEY", "KEY", "SWAP", "SWAP"}, []string{"key", "key"}},
		{"negate negate", []string{"KEY", "NEGATE", "NEGATE"}, []string{"key"}},
		{"over over op", []string{"KEY", "KEY", "OVER", "OVER", "*"}, []string{"key", "key", "binary_op mul(s1, top)"}},
		{"dup negate", []string{"KEY", "DUP", "NEGATE"}, []string{"key", "unary_op neg(top)"}},
		{"dup not", []string{"KEY", "DUP", "NOT"}, []string{"key", "unary_op not(top)"}},
		{"no folding across labels", []string{"1", "IF", "2", "THEN", "3", "+"}, []string{"push 1", "jump_if_not else_0", "push 2", "else_0:", "push 3", "add"}},
		{"unreachable after again", []string{"BEGIN", "1", "AGAIN", "2", "."}, []string{"begin_0:", "push 1", "jump begin_0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := lower(t, ast.Words(tt.words...)...)
			report := Optimize(prog)
			assert.True(t, report.Converged)
			assert.Equal(t, tt.want, listing(prog.Main))
		})
	}
}

func TestDeadCode(t *testing.T) {
	tests := []struct {
		name string
		in   []ir.Instruction
		want []string
	}{
		{
			name: "nop",
			in:   []ir.Instruction{ir.Simple(ir.OpKey), ir.Simple(ir.OpNop), ir.Simple(ir.OpPrint)},
			want: []string{"key", "print"},
		},
		{
			name: "pure producers",
			in: []ir.Instruction{
				ir.Simple(ir.OpKey),
				ir.Simple(ir.OpOver), ir.Simple(ir.OpDrop),
				ir.StackGet(ir.StackPos(1)), ir.Simple(ir.OpDrop),
				ir.LoadConst(3), ir.Simple(ir.OpDrop),
				ir.BinaryOp(ir.OpAdd, ir.StackPos(1), ir.StackTop()), ir.Simple(ir.OpDrop),
			},
			want: []string{"key"},
		},
		{
			name: "division keeps its check",
			in:   []ir.Instruction{ir.BinaryOp(ir.OpDiv, ir.StackPos(1), ir.StackTop()), ir.Simple(ir.OpDrop)},
			want: []string{"binary_op div(s1, top)", "drop"},
		},
		{
			name: "jump to next label",
			in:   []ir.Instruction{ir.Jump(ir.OpJump, "a"), ir.LabelAt("a"), ir.Simple(ir.OpKey)},
			want: []string{"key"},
		},
		{
			name: "unreferenced label",
			in:   []ir.Instruction{ir.LabelAt("x"), ir.Simple(ir.OpKey), ir.LabelAt("y"), ir.Jump(ir.OpJump, "y")},
			want: []string{"key", "y:", "jump y"},
		},
		{
			name: "code after return",
			in:   []ir.Instruction{ir.Simple(ir.OpReturn), ir.Simple(ir.OpKey), ir.Simple(ir.OpReturn)},
			want: []string{"return"},
		},
		{
			name: "closing return survives a jump",
			in: []ir.Instruction{
				ir.LabelAt("top"), ir.Simple(ir.OpKey), ir.Jump(ir.OpJump, "top"),
				ir.Simple(ir.OpPrint), ir.Simple(ir.OpReturn),
			},
			want: []string{"top:", "key", "jump top", "return"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := ir.NewProgram()
			prog.Main.Emit(tt.in...)
			NewPipeline(DeadCode{}).Run(prog)
			assert.Equal(t, tt.want, listing(prog.Main))
		})
	}
}

func TestFoldingThroughOptimizerForms(t *testing.T) {
	prog := ir.NewProgram()
	prog.Main.Emit(
		ir.Push(6), ir.Push(7),
		ir.BinaryOp(ir.OpMul, ir.StackPos(1), ir.StackTop()),
		ir.UnaryOp(ir.OpNeg, ir.StackTop()),
		ir.Simple(ir.OpPrint),
	)
	NewPipeline(ConstantFolding{}).Run(prog)
	assert.Equal(t, []string{"push 6", "push 7", "push 42", "push -42", "print"}, listing(prog.Main))
}

func TestNoFoldingOfOverflowingDivision(t *testing.T) {
	prog := ir.NewProgram()
	prog.Main.Emit(ir.Push(-9223372036854775808), ir.Push(-1), ir.Simple(ir.OpDiv))
	NewPipeline(ConstantFolding{}).Run(prog)
	assert.Len(t, prog.Main.Instructions, 3)
}

func TestIdempotence(t *testing.T) {
	prog := lower(t, ast.Words("5", "DUP", "+", "10", "SWAP", "-", ".", "KEY", "2", "*", "0", "+", ".")...)
	first := Optimize(prog)
	require.True(t, first.Converged)
	snapshot := prog.String()

	second := Optimize(prog)
	assert.True(t, second.Converged)
	assert.Equal(t, 1, second.Iterations)
	assert.Empty(t, second.Rewrites)
	assert.Equal(t, snapshot, prog.String())
}

func TestNonConvergence(t *testing.T) {
	prog := lower(t, ast.Words("10", "20", "+", "30", "*")...)
	p := Default()
	p.MaxIterations = 1
	report := p.Run(prog)

	assert.False(t, report.Converged)
	assert.Equal(t, 1, report.Iterations)
	err := report.Warning()
	require.Error(t, err)
	assert.True(t, errors.Is(err, diag.ErrNonConvergence))
	assert.Equal(t, []string{"push 900"}, listing(prog.Main), "the partially optimized program stays usable")
}

func TestReport(t *testing.T) {
	prog := lower(t, ast.Words("10", "20", "+", ".")...)
	report := Optimize(prog)

	require.True(t, report.Converged)
	assert.NoError(t, report.Warning())
	assert.Equal(t, 2, report.Iterations)
	assert.Equal(t, []int{1, 0}, report.PerIteration)
	require.Len(t, report.Rewrites, 1)
	assert.Equal(t, Rewrite{
		Iteration:   1,
		Pass:        "constant_folding",
		Function:    "main",
		Description: "push 10; push 20; add => push 30",
	}, report.Rewrites[0])
	assert.Contains(t, report.String(), "converged after 2 iterations (1 rewrites)")
}

func TestInline(t *testing.T) {
	prog := lower(t,
		ast.Def("SQ", ast.Words("DUP", "*")...),
		ast.Def("DOWN", ast.Words("DUP", "IF", "1", "-", "DOWN", "THEN")...),
		ast.Def("SELF", ast.Words("1", "SELF")...),
		ast.Num(3), ast.W("SQ"), ast.W("."), ast.W("DOWN"), ast.W("SELF"),
	)
	report := WithInlining().Run(prog)
	require.True(t, report.Converged)

	assert.Equal(t, []string{"push 9", "print", "call DOWN", "call SELF"}, listing(prog.Main))
	assert.Equal(t, []string{"dup", "mul", "return"}, listing(prog.Functions["SQ"]))
	assert.Equal(t, "function_inlining", report.Rewrites[0].Pass)
	assert.Equal(t, "call SQ => dup; mul", report.Rewrites[0].Description)
}

func TestInlineSizeLimit(t *testing.T) {
	body := make([]string, 0, 25)
	for i := 0; i < 25; i++ {
		body = append(body, "KEY")
	}
	prog := lower(t, ast.Def("BIG", ast.Words(body...)...), ast.W("BIG"))
	NewPipeline(Inline{}).Run(prog)
	assert.Equal(t, []string{"call BIG"}, listing(prog.Main))

	NewPipeline(Inline{MaxSize: 30}).Run(prog)
	assert.Len(t, prog.Main.Instructions, 25)
}

// Optimized and unoptimized programs must print the same thing.
func TestMachineEquivalence(t *testing.T) {
	programs := map[string][]ast.Node{
		"arithmetic": ast.Words("2", "3", "+", "4", "*", ".", "100", "7", "/", ".", "100", "7", "MOD", ".", "5", "NEGATE", "."),
		"stack":      ast.Words("1", "2", "3", "ROT", ".", ".", ".", "4", "5", "SWAP", ".", ".", "6", "7", "OVER", ".", ".", ".", ".S"),
		"logic":      ast.Words("1", "2", "<", "3", "3", "=", "AND", ".", "0", "NOT", "0", "OR", ".", "7", "7", "<>", "."),
		"strength":   ast.Words("9", "2", "*", "3", "8", "*", "+", "1", "*", "0", "+", "-1", "/", ".", "13", "1", "MOD", "."),
		"loops":      ast.Words("5", "0", "DO", "I", "2", "*", ".", "LOOP", "3", "0", "?DO", "I", "I", "*", ".", "LOOP", "CR"),
		"begin":      ast.Words("10", "BEGIN", "DUP", ".", "1", "-", "DUP", "0", "=", "UNTIL", "DROP", "0", "BEGIN", "DUP", "3", "<", "WHILE", "1", "+", "REPEAT", "."),
		"peephole":   ast.Words("7", "DUP", "DROP", "1", "2", "SWAP", "SWAP", "-", "DUP", "NEGATE", "+", ".", "4", "5", "OVER", "OVER", "*", ".", ".", "."),
		"definitions": append([]ast.Node{
			ast.Def("SQ", ast.Words("DUP", "*")...),
			ast.Def("FACT", ast.Words("DUP", "1", ">", "IF", "DUP", "1", "-", "FACT", "*", "THEN")...),
			ast.Def("EARLY", ast.Words("1", ".", "EXIT", "2", ".")...),
		}, ast.Words("4", "SQ", ".", "6", "FACT", ".", "EARLY", "3", "SQ", "SQ", ".")...),
		"strings": {ast.Str("hello"), ast.W("TYPE"), ast.W("SPACE"), ast.Num(33), ast.W("EMIT")},
	}

	for name, nodes := range programs {
		t.Run(name, func(t *testing.T) {
			want, err := ir.Output(lower(t, nodes...), "")
			require.NoError(t, err)
			require.NotEmpty(t, want)

			for _, p := range []*Pipeline{Default(), WithInlining()} {
				prog := lower(t, nodes...)
				report := p.Run(prog)
				require.True(t, report.Converged)
				require.NoError(t, ir.Validate(prog))

				got, err := ir.Output(prog, "")
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}
		})
	}
}

func TestDivisionByZeroSurvivesOptimization(t *testing.T) {
	prog := lower(t, ast.Words("1", "0", "/", "DROP", "5", "0", "MOD", "DROP")...)
	Optimize(prog)
	_, err := ir.Output(prog, "")
	assert.ErrorIs(t, err, ir.ErrDivisionByZero)
}
