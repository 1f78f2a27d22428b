package irgen

import (
	"bytes"
	"fmt"

	"github.com/dave/jennifer/jen"

	"github.com/chazu/forthc/pkg/diag"
	"github.com/chazu/forthc/pkg/ir"
	"github.com/chazu/forthc/pkg/template"
)

// goEmitter builds the statement for one instruction.
type goEmitter func(c *goCtx, in ir.Instruction) jen.Code

type goCtx struct {
	used map[ir.Label]bool // labels some jump targets; Go rejects unused labels
}

func goCall(name string, args ...jen.Code) *jen.Statement { return jen.Id(name).Call(args...) }

func goPop() *jen.Statement { return goCall("pop") }

func goPush(v jen.Code) *jen.Statement { return goCall("push", v) }

func goFixed(codes ...jen.Code) goEmitter {
	return func(*goCtx, ir.Instruction) jen.Code {
		if len(codes) == 1 {
			return codes[0]
		}
		return jen.Block(codes...)
	}
}

func goValue(v ir.Value) *jen.Statement {
	switch v.Kind {
	case ir.ValueStackTop, ir.ValueStackPos:
		return goCall("peek", jen.Lit(v.Depth()))
	case ir.ValueVariable:
		return jen.Id(template.Identifier("v_", v.Name))
	case ir.ValueTemporary:
		return jen.Id(fmt.Sprintf("t%d", v.ID))
	default:
		return jen.Lit(v.Int)
	}
}

func goFunc(name string) string {
	if name == ir.MainName {
		return "forthMain"
	}
	return template.Identifier("w_", name)
}

// goExpr is the result of op over the locals a and b.
func goExpr(op ir.Op) *jen.Statement {
	a, b := jen.Id("a"), jen.Id("b")
	flag := func(c jen.Code) *jen.Statement { return goCall("flag", c) }
	switch op {
	case ir.OpAdd:
		return a.Op("+").Add(b)
	case ir.OpSub:
		return a.Op("-").Add(b)
	case ir.OpMul:
		return a.Op("*").Add(b)
	case ir.OpDiv:
		return goCall("div", a, b)
	case ir.OpMod:
		return goCall("mod", a, b)
	case ir.OpEq:
		return flag(a.Op("==").Add(b))
	case ir.OpNe:
		return flag(a.Op("!=").Add(b))
	case ir.OpLt:
		return flag(a.Op("<").Add(b))
	case ir.OpGt:
		return flag(a.Op(">").Add(b))
	case ir.OpLe:
		return flag(a.Op("<=").Add(b))
	case ir.OpGe:
		return flag(a.Op(">=").Add(b))
	case ir.OpAnd:
		return flag(a.Op("!=").Lit(0).Op("&&").Add(b).Op("!=").Lit(0))
	case ir.OpOr:
		return flag(a.Op("!=").Lit(0).Op("||").Add(b).Op("!=").Lit(0))
	case ir.OpNeg:
		return jen.Op("-").Add(a)
	case ir.OpNot:
		return flag(a.Op("==").Lit(0))
	}
	return nil
}

// goStore assigns a popped value to a variable or temporary.
func goStore(dst ir.Value) jen.Code {
	return goValue(dst).Op("=").Add(goPop())
}

func goTable() map[ir.Op]goEmitter {
	push := func(_ *goCtx, in ir.Instruction) jen.Code { return goPush(goValue(in.Value)) }
	t := map[ir.Op]goEmitter{
		ir.OpPush: push,
		ir.OpPop: func(_ *goCtx, in ir.Instruction) jen.Code {
			if in.Value.Kind == ir.ValueVariable || in.Value.Kind == ir.ValueTemporary {
				return goStore(in.Value)
			}
			return goPop()
		},
		ir.OpDup:  goFixed(goPush(goCall("peek", jen.Lit(0)))),
		ir.OpDrop: goFixed(goPop()),
		ir.OpSwap: goFixed(
			jen.Id("b").Op(":=").Add(goPop()),
			jen.Id("a").Op(":=").Add(goPop()),
			goPush(jen.Id("b")),
			goPush(jen.Id("a")),
		),
		ir.OpOver: goFixed(goPush(goCall("peek", jen.Lit(1)))),
		ir.OpRot: goFixed(
			jen.Id("c").Op(":=").Add(goPop()),
			jen.Id("b").Op(":=").Add(goPop()),
			jen.Id("a").Op(":=").Add(goPop()),
			goPush(jen.Id("b")),
			goPush(jen.Id("c")),
			goPush(jen.Id("a")),
		),
		ir.OpPrint:      goFixed(jen.Qual("fmt", "Fprintf").Call(jen.Id("out"), jen.Lit("%d "), goPop())),
		ir.OpPrintStack: goFixed(goCall("dotS")),
		ir.OpEmit:       goFixed(jen.Id("out").Dot("WriteByte").Call(jen.Byte().Call(goPop()))),
		ir.OpType:       goFixed(goCall("typeStr")),
		ir.OpKey:        goFixed(goPush(goCall("readKey"))),
		ir.OpNewline:    goFixed(jen.Id("out").Dot("WriteByte").Call(jen.LitRune('\n'))),
		ir.OpSpace:      goFixed(jen.Id("out").Dot("WriteByte").Call(jen.LitRune(' '))),
		ir.OpLabel: func(c *goCtx, in ir.Instruction) jen.Code {
			if !c.used[in.Label] {
				return jen.Comment(string(in.Label))
			}
			return jen.Id(labelName(in.Label)).Op(":")
		},
		ir.OpJump: func(_ *goCtx, in ir.Instruction) jen.Code { return jen.Goto().Id(labelName(in.Label)) },
		ir.OpJumpIf: func(_ *goCtx, in ir.Instruction) jen.Code {
			return jen.If(goPop().Op("!=").Lit(0)).Block(jen.Goto().Id(labelName(in.Label)))
		},
		ir.OpJumpIfNot: func(_ *goCtx, in ir.Instruction) jen.Code {
			return jen.If(goPop().Op("==").Lit(0)).Block(jen.Goto().Id(labelName(in.Label)))
		},
		ir.OpCall:      func(_ *goCtx, in ir.Instruction) jen.Code { return goCall(goFunc(in.Callee)) },
		ir.OpReturn:    goFixed(jen.Return()),
		ir.OpLoopEnter: goFixed(goCall("doEnter")),
		ir.OpLoopTest:  goFixed(goPush(goCall("flag", goCall("loopLive")))),
		ir.OpLoopNext:  goFixed(goPush(goCall("flag", goCall("loopNext")))),
		ir.OpLoopIndex: func(_ *goCtx, in ir.Instruction) jen.Code {
			return goPush(goCall("loopIndex", jen.Lit(in.N)))
		},
		ir.OpComment:   func(_ *goCtx, in ir.Instruction) jen.Code { return jen.Comment(oneLine(in.Text)) },
		ir.OpNop:       goFixed(jen.Comment("nop")),
		ir.OpLoadConst: push,
		ir.OpBinaryOp: func(_ *goCtx, in ir.Instruction) jen.Code {
			return jen.Block(
				jen.Id("a").Op(":=").Add(goValue(in.Args[0])),
				jen.Id("b").Op(":=").Add(goValue(in.Args[1])),
				goPush(goExpr(in.Kind)),
			)
		},
		ir.OpUnaryOp: func(_ *goCtx, in ir.Instruction) jen.Code {
			return jen.Block(
				jen.Id("a").Op(":=").Add(goValue(in.Args[0])),
				goPush(goExpr(in.Kind)),
			)
		},
		ir.OpStackGet: func(_ *goCtx, in ir.Instruction) jen.Code { return goPush(goValue(in.Value)) },
		ir.OpStackSet: func(_ *goCtx, in ir.Instruction) jen.Code {
			if d := in.Value.Depth(); d >= 0 {
				return goCall("poke", jen.Lit(d), goPop())
			}
			return goStore(in.Value)
		},
		ir.OpStackAlloc: func(_ *goCtx, in ir.Instruction) jen.Code {
			return jen.For(jen.Id("i").Op(":=").Lit(0), jen.Id("i").Op("<").Lit(in.N), jen.Id("i").Op("++")).Block(
				goPush(jen.Lit(0)),
			)
		},
		ir.OpStackFree: func(_ *goCtx, in ir.Instruction) jen.Code { return goCall("free", jen.Lit(in.N)) },
	}
	for _, op := range []ir.Op{ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod, ir.OpEq, ir.OpNe, ir.OpLt, ir.OpGt, ir.OpLe, ir.OpGe, ir.OpAnd, ir.OpOr} {
		t[op] = goFixed(
			jen.Id("b").Op(":=").Add(goPop()),
			jen.Id("a").Op(":=").Add(goPop()),
			goPush(goExpr(op)),
		)
	}
	for _, op := range []ir.Op{ir.OpNeg, ir.OpNot} {
		t[op] = goFixed(jen.Id("a").Op(":=").Add(goPop()), goPush(goExpr(op)))
	}
	return t
}

// Golang emits a Go main package through jennifer. Labels that no jump
// targets are emitted as comments because Go rejects unused labels.
type Golang struct {
	table map[ir.Op]goEmitter
}

// NewGolang builds the go-ir backend.
func NewGolang() (*Golang, error) {
	b := &Golang{table: goTable()}
	if err := check(b.Name(), b.sample); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Golang) sample(in ir.Instruction) (string, bool) {
	emit, ok := b.table[in.Op]
	if !ok {
		return "", false
	}
	ctx := &goCtx{used: map[ir.Label]bool{"sample": true}}
	return fmt.Sprintf("%#v", jen.Block(emit(ctx, in))), true
}

func (b *Golang) Name() string      { return "go-ir" }
func (b *Golang) Extension() string { return ".go" }

func (b *Golang) RunCommand(file string) string {
	return "go run " + file
}

func (b *Golang) Generate(prog *ir.Program) (*Result, error) {
	f := jen.NewFile("main")
	f.HeaderComment("Code generated by forthc. DO NOT EDIT.")

	goRuntime(f)

	if vars := variables(prog); len(vars) > 0 {
		defs := make([]jen.Code, len(vars))
		for i, name := range vars {
			defs[i] = jen.Id(template.Identifier("v_", name)).Int64()
		}
		f.Var().Defs(defs...)
	}

	for _, fn := range prog.All() {
		var body []jen.Code
		for _, id := range temporaries(fn) {
			t := fmt.Sprintf("t%d", id)
			body = append(body, jen.Var().Id(t).Int64(), jen.Id("_").Op("=").Id(t))
		}
		ctx := &goCtx{used: referenced(fn)}
		for _, in := range fn.Instructions {
			body = append(body, b.table[in.Op](ctx, in))
		}
		// a label must label a statement
		if n := len(fn.Instructions); n > 0 && fn.Instructions[n-1].Op == ir.OpLabel {
			body = append(body, jen.Return())
		}
		f.Line()
		f.Func().Id(goFunc(fn.Name)).Params().Block(body...)
	}

	f.Line()
	f.Func().Id("main").Params().Block(
		goCall("forthMain"),
		jen.Id("out").Dot("Flush").Call(),
	)

	buf := &bytes.Buffer{}
	if err := f.Render(buf); err != nil {
		return nil, diag.Wrap(diag.BackendConstruction, err, "go-ir render")
	}
	return &Result{Code: buf.String(), Warnings: warnings(prog)}, nil
}

// goRuntime declares the stack machine shared by every generated program.
func goRuntime(f *jen.File) {
	stackLen := jen.Len(jen.Id("stack"))
	top := func(depth jen.Code) *jen.Statement {
		return jen.Id("stack").Index(jen.Len(jen.Id("stack")).Op("-").Lit(1).Op("-").Add(depth))
	}
	underflow := func(cond jen.Code) jen.Code {
		return jen.If(cond).Block(goCall("fail", jen.Lit("Stack underflow")))
	}

	f.Const().Defs(
		jen.Id("stackSize").Op("=").Lit(1000),
		jen.Id("loopDepth").Op("=").Lit(64),
	)
	f.Var().Defs(
		jen.Id("stack").Op("=").Make(jen.Index().Int64(), jen.Lit(0), jen.Id("stackSize")),
		jen.Id("loops").Index().Index(jen.Lit(2)).Int64(),
		jen.Id("out").Op("=").Qual("bufio", "NewWriter").Call(jen.Qual("os", "Stdout")),
		jen.Id("in").Op("=").Qual("bufio", "NewReader").Call(jen.Qual("os", "Stdin")),
	)

	f.Func().Id("fail").Params(jen.Id("msg").String()).Block(
		jen.Id("out").Dot("Flush").Call(),
		jen.Qual("fmt", "Fprintln").Call(jen.Qual("os", "Stderr"), jen.Id("msg")),
		jen.Qual("os", "Exit").Call(jen.Lit(1)),
	)

	f.Func().Id("push").Params(jen.Id("v").Int64()).Block(
		jen.If(jen.Len(jen.Id("stack")).Op(">=").Id("stackSize")).Block(goCall("fail", jen.Lit("Stack overflow"))),
		jen.Id("stack").Op("=").Append(jen.Id("stack"), jen.Id("v")),
	)

	f.Func().Id("pop").Params().Int64().Block(
		underflow(stackLen.Clone().Op("==").Lit(0)),
		jen.Id("v").Op(":=").Add(top(jen.Lit(0))),
		jen.Id("stack").Op("=").Id("stack").Index(jen.Empty(), jen.Len(jen.Id("stack")).Op("-").Lit(1)),
		jen.Return(jen.Id("v")),
	)

	f.Func().Id("peek").Params(jen.Id("depth").Int()).Int64().Block(
		underflow(jen.Id("depth").Op(">=").Len(jen.Id("stack"))),
		jen.Return(top(jen.Id("depth"))),
	)

	f.Func().Id("poke").Params(jen.Id("depth").Int(), jen.Id("v").Int64()).Block(
		underflow(jen.Id("depth").Op(">=").Len(jen.Id("stack"))),
		top(jen.Id("depth")).Op("=").Id("v"),
	)

	f.Func().Id("free").Params(jen.Id("n").Int()).Block(
		underflow(jen.Id("n").Op(">").Len(jen.Id("stack"))),
		jen.Id("stack").Op("=").Id("stack").Index(jen.Empty(), jen.Len(jen.Id("stack")).Op("-").Id("n")),
	)

	f.Func().Id("flag").Params(jen.Id("b").Bool()).Int64().Block(
		jen.If(jen.Id("b")).Block(jen.Return(jen.Lit(-1))),
		jen.Return(jen.Lit(0)),
	)

	// Go defines MinInt64 / -1 as MinInt64 and never traps on it.
	for _, op := range []struct{ name, sym string }{{"div", "/"}, {"mod", "%"}} {
		f.Func().Id(op.name).Params(jen.List(jen.Id("a"), jen.Id("b")).Int64()).Int64().Block(
			jen.If(jen.Id("b").Op("==").Lit(0)).Block(goCall("fail", jen.Lit("Division by zero"))),
			jen.Return(jen.Id("a").Op(op.sym).Id("b")),
		)
	}

	f.Func().Id("dotS").Params().Block(
		jen.Qual("fmt", "Fprintf").Call(jen.Id("out"), jen.Lit("<%d> "), jen.Len(jen.Id("stack"))),
		jen.For(jen.List(jen.Id("_"), jen.Id("v")).Op(":=").Range().Id("stack")).Block(
			jen.Qual("fmt", "Fprintf").Call(jen.Id("out"), jen.Lit("%d "), jen.Id("v")),
		),
	)

	f.Func().Id("typeStr").Params().Block(
		jen.Id("n").Op(":=").Add(goPop()),
		underflow(jen.Id("n").Op("<").Lit(0).Op("||").Id("n").Op(">").Int64().Call(jen.Len(jen.Id("stack")))),
		jen.Id("start").Op(":=").Len(jen.Id("stack")).Op("-").Int().Call(jen.Id("n")),
		jen.For(jen.List(jen.Id("_"), jen.Id("c")).Op(":=").Range().Id("stack").Index(jen.Id("start"), jen.Empty())).Block(
			jen.Id("out").Dot("WriteByte").Call(jen.Byte().Call(jen.Id("c"))),
		),
		jen.Id("stack").Op("=").Id("stack").Index(jen.Empty(), jen.Id("start")),
	)

	f.Func().Id("readKey").Params().Int64().Block(
		jen.Id("out").Dot("Flush").Call(),
		jen.List(jen.Id("c"), jen.Err()).Op(":=").Id("in").Dot("ReadByte").Call(),
		jen.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Lit(-1))),
		jen.Return(jen.Int64().Call(jen.Id("c"))),
	)

	f.Func().Id("doEnter").Params().Block(
		jen.Id("index").Op(":=").Add(goPop()),
		jen.Id("limit").Op(":=").Add(goPop()),
		jen.If(jen.Len(jen.Id("loops")).Op(">=").Id("loopDepth")).Block(goCall("fail", jen.Lit("Loop nesting too deep"))),
		jen.Id("loops").Op("=").Append(jen.Id("loops"), jen.Index(jen.Lit(2)).Int64().Values(jen.Id("index"), jen.Id("limit"))),
	)

	innermost := jen.Id("l").Op(":=").Op("&").Id("loops").Index(jen.Len(jen.Id("loops")).Op("-").Lit(1))
	exit := jen.Id("loops").Op("=").Id("loops").Index(jen.Empty(), jen.Len(jen.Id("loops")).Op("-").Lit(1))

	f.Func().Id("loopLive").Params().Bool().Block(
		innermost.Clone(),
		jen.If(jen.Id("l").Index(jen.Lit(0)).Op("!=").Id("l").Index(jen.Lit(1))).Block(jen.Return(jen.True())),
		exit.Clone(),
		jen.Return(jen.False()),
	)

	f.Func().Id("loopNext").Params().Bool().Block(
		innermost.Clone(),
		jen.Id("l").Index(jen.Lit(0)).Op("++"),
		jen.If(jen.Id("l").Index(jen.Lit(0)).Op("<").Id("l").Index(jen.Lit(1))).Block(jen.Return(jen.True())),
		exit.Clone(),
		jen.Return(jen.False()),
	)

	f.Func().Id("loopIndex").Params(jen.Id("depth").Int()).Int64().Block(
		jen.If(jen.Id("depth").Op(">=").Len(jen.Id("loops"))).Block(goCall("fail", jen.Lit("Loop index outside loop"))),
		jen.Return(jen.Id("loops").Index(jen.Len(jen.Id("loops")).Op("-").Lit(1).Op("-").Id("depth")).Index(jen.Lit(0))),
	)
}
