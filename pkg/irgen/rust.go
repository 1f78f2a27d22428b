package irgen

import (
	"fmt"
	"strings"

	"github.com/chazu/forthc/pkg/codegen"
	"github.com/chazu/forthc/pkg/ir"
	"github.com/chazu/forthc/pkg/template"
)

var rustExpr = map[ir.Op]string{
	ir.OpAdd: "a.wrapping_add(b)",
	ir.OpSub: "a.wrapping_sub(b)",
	ir.OpMul: "a.wrapping_mul(b)",
	ir.OpDiv: "self.div(a, b)",
	ir.OpMod: "self.rem(a, b)",
	ir.OpEq:  "if a == b { -1 } else { 0 }",
	ir.OpNe:  "if a != b { -1 } else { 0 }",
	ir.OpLt:  "if a < b { -1 } else { 0 }",
	ir.OpGt:  "if a > b { -1 } else { 0 }",
	ir.OpLe:  "if a <= b { -1 } else { 0 }",
	ir.OpGe:  "if a >= b { -1 } else { 0 }",
	ir.OpAnd: "if a != 0 && b != 0 { -1 } else { 0 }",
	ir.OpOr:  "if a != 0 || b != 0 { -1 } else { 0 }",
	ir.OpNeg: "a.wrapping_neg()",
	ir.OpNot: "if a == 0 { -1 } else { 0 }",
}

func rustVar(name string) string {
	return strings.ToUpper(template.Identifier("v_", name))
}

func rustValue(v ir.Value) string {
	switch v.Kind {
	case ir.ValueStackTop, ir.ValueStackPos:
		return fmt.Sprintf("self.peek(%d)", v.Depth())
	case ir.ValueVariable:
		return rustVar(v.Name) + ".with(|c| c.get())"
	case ir.ValueTemporary:
		return fmt.Sprintf("t%d", v.ID)
	default:
		return codegen.RustFormatter{}.Number(v.Int)
	}
}

// rustStore assigns the local v to a variable or temporary.
func rustStore(dst ir.Value) string {
	if dst.Kind == ir.ValueVariable {
		return rustVar(dst.Name) + ".with(|c| c.set(v));"
	}
	return fmt.Sprintf("t%d = v;", dst.ID)
}

func rustFunc(name string) string {
	if name == ir.MainName {
		return "run"
	}
	return template.Identifier("w_", name)
}

func rustJump(c *textCtx, l ir.Label) string {
	return fmt.Sprintf("pc = %d; continue;", c.blocks[l])
}

func rustTable() map[ir.Op]textEmitter {
	push := func(_ *textCtx, in ir.Instruction) string { return "self.push(" + rustValue(in.Value) + ");" }
	t := map[ir.Op]textEmitter{
		ir.OpPush: push,
		ir.OpPop: func(_ *textCtx, in ir.Instruction) string {
			if in.Value.Kind == ir.ValueVariable || in.Value.Kind == ir.ValueTemporary {
				return "{ let v = self.pop(); " + rustStore(in.Value) + " }"
			}
			return "self.pop();"
		},
		ir.OpDup:        fixed("{ let v = self.peek(0); self.push(v); }"),
		ir.OpDrop:       fixed("self.pop();"),
		ir.OpSwap:       fixed("{ let b = self.pop(); let a = self.pop(); self.push(b); self.push(a); }"),
		ir.OpOver:       fixed("{ let v = self.peek(1); self.push(v); }"),
		ir.OpRot:        fixed("{ let c = self.pop(); let b = self.pop(); let a = self.pop(); self.push(b); self.push(c); self.push(a); }"),
		ir.OpPrint:      fixed(`{ let v = self.pop(); print!("{} ", v); }`),
		ir.OpPrintStack: fixed("self.dot_s();"),
		ir.OpEmit:       fixed("{ let c = self.pop(); self.emit(c); }"),
		ir.OpType:       fixed("self.type_str();"),
		ir.OpKey:        fixed("{ let c = self.read_key(); self.push(c); }"),
		ir.OpNewline:    fixed("println!();"),
		ir.OpSpace:      fixed(`print!(" ");`),
		ir.OpLabel:      func(_ *textCtx, in ir.Instruction) string { return "// " + string(in.Label) },
		ir.OpJump:       func(c *textCtx, in ir.Instruction) string { return rustJump(c, in.Label) },
		ir.OpJumpIf: func(c *textCtx, in ir.Instruction) string {
			return "if self.pop() != 0 { " + rustJump(c, in.Label) + " }"
		},
		ir.OpJumpIfNot: func(c *textCtx, in ir.Instruction) string {
			return "if self.pop() == 0 { " + rustJump(c, in.Label) + " }"
		},
		ir.OpCall:      func(_ *textCtx, in ir.Instruction) string { return "self." + rustFunc(in.Callee) + "();" },
		ir.OpReturn:    fixed("return;"),
		ir.OpLoopEnter: fixed("self.do_enter();"),
		ir.OpLoopTest:  fixed("{ let f = if self.loop_live() { -1 } else { 0 }; self.push(f); }"),
		ir.OpLoopNext:  fixed("{ let f = if self.loop_next() { -1 } else { 0 }; self.push(f); }"),
		ir.OpLoopIndex: func(_ *textCtx, in ir.Instruction) string {
			return fmt.Sprintf("{ let v = self.loop_index(%d); self.push(v); }", in.N)
		},
		ir.OpComment:   func(_ *textCtx, in ir.Instruction) string { return "// " + oneLine(in.Text) },
		ir.OpNop:       fixed("{}"),
		ir.OpLoadConst: push,
		ir.OpBinaryOp: func(_ *textCtx, in ir.Instruction) string {
			return fmt.Sprintf("{ let a = %s; let b = %s; self.push(%s); }", rustValue(in.Args[0]), rustValue(in.Args[1]), rustExpr[in.Kind])
		},
		ir.OpUnaryOp: func(_ *textCtx, in ir.Instruction) string {
			return fmt.Sprintf("{ let a = %s; self.push(%s); }", rustValue(in.Args[0]), rustExpr[in.Kind])
		},
		ir.OpStackGet: func(_ *textCtx, in ir.Instruction) string {
			return "{ let v = " + rustValue(in.Value) + "; self.push(v); }"
		},
		ir.OpStackSet: func(_ *textCtx, in ir.Instruction) string {
			if d := in.Value.Depth(); d >= 0 {
				return fmt.Sprintf(`{ let v = self.pop(); let n = self.stack.len(); if %d >= n { self.fail("Stack underflow"); } self.stack[n - 1 - %d] = v; }`, d, d)
			}
			return "{ let v = self.pop(); " + rustStore(in.Value) + " }"
		},
		ir.OpStackAlloc: func(_ *textCtx, in ir.Instruction) string {
			return fmt.Sprintf("for _ in 0..%d { self.push(0); }", in.N)
		},
		ir.OpStackFree: func(_ *textCtx, in ir.Instruction) string {
			return fmt.Sprintf("for _ in 0..%d { self.pop(); }", in.N)
		},
	}
	for _, op := range []ir.Op{ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod, ir.OpEq, ir.OpNe, ir.OpLt, ir.OpGt, ir.OpLe, ir.OpGe, ir.OpAnd, ir.OpOr} {
		t[op] = fixed("{ let b = self.pop(); let a = self.pop(); self.push(" + rustExpr[op] + "); }")
	}
	for _, op := range []ir.Op{ir.OpNeg, ir.OpNot} {
		t[op] = fixed("{ let a = self.pop(); self.push(" + rustExpr[op] + "); }")
	}
	return t
}

// Rust emits methods on the runtime's Forth struct. Rust has no goto, so a
// function with labels becomes a loop over a match on the current block.
type Rust struct {
	table map[ir.Op]textEmitter
}

// NewRust builds the rust-ir backend.
func NewRust() (*Rust, error) {
	b := &Rust{table: rustTable()}
	if err := check(b.Name(), b.sample); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Rust) sample(in ir.Instruction) (string, bool) {
	return renderText(b.table, &textCtx{blocks: map[ir.Label]int{"sample": 0}}, in)
}

func (b *Rust) Name() string      { return "rust-ir" }
func (b *Rust) Extension() string { return ".rs" }

func (b *Rust) RunCommand(file string) string {
	bin := stem(file)
	return fmt.Sprintf("rustc -O %s -o %s && ./%s", file, bin, bin)
}

func (b *Rust) Generate(prog *ir.Program) (*Result, error) {
	var sb strings.Builder
	sb.WriteString(codegen.RustRuntime)
	sb.WriteByte('\n')

	for _, fn := range prog.All() {
		fmt.Fprintf(&sb, "\n    fn %s(&mut self) {\n", rustFunc(fn.Name))
		for _, id := range temporaries(fn) {
			fmt.Fprintf(&sb, "        let mut t%d: i64 = 0;\n", id)
		}
		b.body(&sb, fn)
		sb.WriteString("    }\n")
	}
	sb.WriteString("}\n")

	if vars := variables(prog); len(vars) > 0 {
		sb.WriteString("\nthread_local! {\n")
		for _, name := range vars {
			fmt.Fprintf(&sb, "    static %s: std::cell::Cell<i64> = std::cell::Cell::new(0);\n", rustVar(name))
		}
		sb.WriteString("}\n")
	}

	sb.WriteString("\nfn main() {\n    let mut forth = Forth::new();\n    forth.run();\n    io::stdout().flush().ok();\n}\n")
	return &Result{Code: sb.String(), Warnings: warnings(prog)}, nil
}

// body writes fn's instructions. Straight-line functions are emitted as is;
// otherwise every label starts a new block of the state machine.
func (b *Rust) body(sb *strings.Builder, fn *ir.Function) {
	var blocks [][]ir.Instruction
	index := make(map[ir.Label]int)
	current := []ir.Instruction{}
	for _, in := range fn.Instructions {
		if in.Op == ir.OpLabel {
			blocks = append(blocks, current)
			index[in.Label] = len(blocks)
			current = nil
		}
		current = append(current, in)
	}
	blocks = append(blocks, current)

	ctx := &textCtx{blocks: index}
	if len(blocks) == 1 {
		for _, in := range blocks[0] {
			text, _ := renderText(b.table, ctx, in)
			writeLines(sb, "        ", text)
		}
		return
	}

	sb.WriteString("        let mut pc: usize = 0;\n")
	sb.WriteString("        loop {\n")
	sb.WriteString("            match pc {\n")
	for i, block := range blocks {
		fmt.Fprintf(sb, "                %d => {\n", i)
		for _, in := range block {
			text, _ := renderText(b.table, ctx, in)
			writeLines(sb, "                    ", text)
		}
		if i+1 < len(blocks) {
			fmt.Fprintf(sb, "                    pc = %d;\n", i+1)
		} else {
			sb.WriteString("                    return;\n")
		}
		sb.WriteString("                }\n")
	}
	sb.WriteString("                _ => return,\n")
	sb.WriteString("            }\n")
	sb.WriteString("        }\n")
}
