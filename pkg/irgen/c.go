package irgen

import (
	"fmt"
	"strings"

	"github.com/chazu/forthc/pkg/codegen"
	"github.com/chazu/forthc/pkg/ir"
	"github.com/chazu/forthc/pkg/template"
)

var cExpr = map[ir.Op]string{
	ir.OpAdd: "a + b",
	ir.OpSub: "a - b",
	ir.OpMul: "a * b",
	ir.OpDiv: "checked_div(a, b)",
	ir.OpMod: "checked_mod(a, b)",
	ir.OpEq:  "a == b ? -1 : 0",
	ir.OpNe:  "a != b ? -1 : 0",
	ir.OpLt:  "a < b ? -1 : 0",
	ir.OpGt:  "a > b ? -1 : 0",
	ir.OpLe:  "a <= b ? -1 : 0",
	ir.OpGe:  "a >= b ? -1 : 0",
	ir.OpAnd: "a != 0 && b != 0 ? -1 : 0",
	ir.OpOr:  "a != 0 || b != 0 ? -1 : 0",
	ir.OpNeg: "-a",
	ir.OpNot: "a == 0 ? -1 : 0",
}

func cValue(v ir.Value) string {
	switch v.Kind {
	case ir.ValueStackTop, ir.ValueStackPos:
		return fmt.Sprintf("peek(%d)", v.Depth())
	case ir.ValueVariable:
		return template.Identifier("v_", v.Name)
	case ir.ValueTemporary:
		return fmt.Sprintf("t%d", v.ID)
	default:
		return codegen.CFormatter{}.Number(v.Int)
	}
}

func cFunc(name string) string {
	if name == ir.MainName {
		return "forth_main"
	}
	return template.Identifier("w_", name)
}

func cTable() map[ir.Op]textEmitter {
	t := map[ir.Op]textEmitter{
		ir.OpPush: func(_ *textCtx, in ir.Instruction) string { return "push(" + cValue(in.Value) + ");" },
		ir.OpPop: func(_ *textCtx, in ir.Instruction) string {
			if in.Value.Kind == ir.ValueVariable || in.Value.Kind == ir.ValueTemporary {
				return cValue(in.Value) + " = pop();"
			}
			return "(void)pop();"
		},
		ir.OpDup:        fixed("push(peek(0));"),
		ir.OpDrop:       fixed("(void)pop();"),
		ir.OpSwap:       fixed("{ int64_t b = pop(), a = pop(); push(b); push(a); }"),
		ir.OpOver:       fixed("push(peek(1));"),
		ir.OpRot:        fixed("{ int64_t c = pop(), b = pop(), a = pop(); push(b); push(c); push(a); }"),
		ir.OpPrint:      fixed(`printf("%lld ", (long long)pop());`),
		ir.OpPrintStack: fixed("dot_s();"),
		ir.OpEmit:       fixed("putchar((int)pop());"),
		ir.OpType:       fixed("type_str();"),
		ir.OpKey:        fixed("push(read_key());"),
		ir.OpNewline:    fixed(`putchar('\n');`),
		ir.OpSpace:      fixed(`putchar(' ');`),
		ir.OpLabel:      func(_ *textCtx, in ir.Instruction) string { return labelName(in.Label) + ": ;" },
		ir.OpJump:       func(_ *textCtx, in ir.Instruction) string { return "goto " + labelName(in.Label) + ";" },
		ir.OpJumpIf: func(_ *textCtx, in ir.Instruction) string {
			return "if (pop() != 0) goto " + labelName(in.Label) + ";"
		},
		ir.OpJumpIfNot: func(_ *textCtx, in ir.Instruction) string {
			return "if (pop() == 0) goto " + labelName(in.Label) + ";"
		},
		ir.OpCall:      func(_ *textCtx, in ir.Instruction) string { return cFunc(in.Callee) + "();" },
		ir.OpReturn:    fixed("return;"),
		ir.OpLoopEnter: fixed("do_enter();"),
		ir.OpLoopTest:  fixed("push(loop_live() ? -1 : 0);"),
		ir.OpLoopNext:  fixed("push(loop_next() ? -1 : 0);"),
		ir.OpLoopIndex: func(_ *textCtx, in ir.Instruction) string { return fmt.Sprintf("push(loop_index(%d));", in.N) },
		ir.OpComment: func(_ *textCtx, in ir.Instruction) string {
			return "/* " + strings.ReplaceAll(oneLine(in.Text), "*/", "* /") + " */"
		},
		ir.OpNop:       fixed(";"),
		ir.OpLoadConst: func(_ *textCtx, in ir.Instruction) string { return "push(" + cValue(in.Value) + ");" },
		ir.OpBinaryOp: func(_ *textCtx, in ir.Instruction) string {
			return fmt.Sprintf("{ int64_t a = %s, b = %s; push(%s); }", cValue(in.Args[0]), cValue(in.Args[1]), cExpr[in.Kind])
		},
		ir.OpUnaryOp: func(_ *textCtx, in ir.Instruction) string {
			return fmt.Sprintf("{ int64_t a = %s; push(%s); }", cValue(in.Args[0]), cExpr[in.Kind])
		},
		ir.OpStackGet: func(_ *textCtx, in ir.Instruction) string { return "push(" + cValue(in.Value) + ");" },
		ir.OpStackSet: func(_ *textCtx, in ir.Instruction) string {
			if d := in.Value.Depth(); d >= 0 {
				return fmt.Sprintf(`{ int64_t v = pop(); if (%d >= sp) fail("Stack underflow"); stack[sp - 1 - %d] = v; }`, d, d)
			}
			return cValue(in.Value) + " = pop();"
		},
		ir.OpStackAlloc: func(_ *textCtx, in ir.Instruction) string {
			return fmt.Sprintf("for (int i = 0; i < %d; i++) push(0);", in.N)
		},
		ir.OpStackFree: func(_ *textCtx, in ir.Instruction) string {
			return fmt.Sprintf(`{ if (sp < %d) fail("Stack underflow"); sp -= %d; }`, in.N, in.N)
		},
	}
	for _, op := range []ir.Op{ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod, ir.OpEq, ir.OpNe, ir.OpLt, ir.OpGt, ir.OpLe, ir.OpGe, ir.OpAnd, ir.OpOr} {
		t[op] = fixed("{ int64_t b = pop(), a = pop(); push(" + cExpr[op] + "); }")
	}
	for _, op := range []ir.Op{ir.OpNeg, ir.OpNot} {
		t[op] = fixed("{ int64_t a = pop(); push(" + cExpr[op] + "); }")
	}
	return t
}

// C emits C99 with one function per word and goto for every jump.
type C struct {
	table map[ir.Op]textEmitter
}

// NewC builds the c-ir backend.
func NewC() (*C, error) {
	b := &C{table: cTable()}
	if err := check(b.Name(), b.sample); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *C) sample(in ir.Instruction) (string, bool) {
	return renderText(b.table, &textCtx{}, in)
}

func (b *C) Name() string      { return "c-ir" }
func (b *C) Extension() string { return ".c" }

func (b *C) RunCommand(file string) string {
	bin := stem(file)
	return fmt.Sprintf("gcc -O2 -fwrapv -o %s %s && ./%s", bin, file, bin)
}

func (b *C) Generate(prog *ir.Program) (*Result, error) {
	var sb strings.Builder
	sb.WriteString(codegen.CRuntime)

	if vars := variables(prog); len(vars) > 0 {
		sb.WriteByte('\n')
		for _, name := range vars {
			fmt.Fprintf(&sb, "static int64_t %s = 0;\n", template.Identifier("v_", name))
		}
	}

	sb.WriteByte('\n')
	for _, fn := range prog.All() {
		fmt.Fprintf(&sb, "static void %s(void);\n", cFunc(fn.Name))
	}

	for _, fn := range prog.All() {
		fmt.Fprintf(&sb, "\nstatic void %s(void) {\n", cFunc(fn.Name))
		for _, id := range temporaries(fn) {
			fmt.Fprintf(&sb, "    int64_t t%d = 0;\n", id)
		}
		ctx := &textCtx{}
		for _, in := range fn.Instructions {
			text, _ := renderText(b.table, ctx, in)
			writeLines(&sb, "    ", text)
		}
		sb.WriteString("}\n")
	}

	sb.WriteString("\nint main(void) {\n    forth_main();\n    fflush(stdout);\n    return 0;\n}\n")
	return &Result{Code: sb.String(), Warnings: warnings(prog)}, nil
}
