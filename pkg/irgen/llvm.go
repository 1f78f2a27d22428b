package irgen

import (
	"fmt"

	ll "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/chazu/forthc/pkg/diag"
	"github.com/chazu/forthc/pkg/ir"
	"github.com/chazu/forthc/pkg/template"
)

const (
	llvmStackSize = 1000
	llvmLoopDepth = 64
)

func i64(v int64) *constant.Int { return constant.NewInt(types.I64, v) }
func i32(v int64) *constant.Int { return constant.NewInt(types.I32, v) }

var llvmPred = map[ir.Op]enum.IPred{
	ir.OpEq: enum.IPredEQ,
	ir.OpNe: enum.IPredNE,
	ir.OpLt: enum.IPredSLT,
	ir.OpGt: enum.IPredSGT,
	ir.OpLe: enum.IPredSLE,
	ir.OpGe: enum.IPredSGE,
}

// llvmModule is one module under construction: the runtime every program
// carries plus the word functions and variables declared so far.
type llvmModule struct {
	m *ll.Module

	stack, sp, loopIdx, loopLim, lp, stderr *ll.Global

	printf, putchar, getchar, fflush, fputs, exit, donothing *ll.Func

	fail, push, pop, peek, poke, free, div, mod *ll.Func
	dotS, typeStr, readKey                      *ll.Func
	doEnter, loopTest, loopNext, loopIndex      *ll.Func

	strs  map[string]constant.Constant
	vars  map[string]*ll.Global
	funcs map[string]*ll.Func
}

func newLLVMModule() *llvmModule {
	g := &llvmModule{
		m:     ll.NewModule(),
		strs:  make(map[string]constant.Constant),
		vars:  make(map[string]*ll.Global),
		funcs: make(map[string]*ll.Func),
	}
	g.declare()
	g.runtime()
	return g
}

func (g *llvmModule) declare() {
	m := g.m
	g.stack = m.NewGlobalDef("stack", constant.NewZeroInitializer(types.NewArray(llvmStackSize, types.I64)))
	g.sp = m.NewGlobalDef("sp", i64(0))
	g.loopIdx = m.NewGlobalDef("loop_idx", constant.NewZeroInitializer(types.NewArray(llvmLoopDepth, types.I64)))
	g.loopLim = m.NewGlobalDef("loop_lim", constant.NewZeroInitializer(types.NewArray(llvmLoopDepth, types.I64)))
	g.lp = m.NewGlobalDef("lp", i64(0))
	g.stderr = m.NewGlobal("stderr", types.I8Ptr)

	g.printf = m.NewFunc("printf", types.I32, ll.NewParam("format", types.I8Ptr))
	g.printf.Sig.Variadic = true
	g.putchar = m.NewFunc("putchar", types.I32, ll.NewParam("c", types.I32))
	g.getchar = m.NewFunc("getchar", types.I32)
	g.fflush = m.NewFunc("fflush", types.I32, ll.NewParam("stream", types.I8Ptr))
	g.fputs = m.NewFunc("fputs", types.I32, ll.NewParam("s", types.I8Ptr), ll.NewParam("stream", types.I8Ptr))
	g.exit = m.NewFunc("exit", types.Void, ll.NewParam("status", types.I32))
	g.donothing = m.NewFunc("llvm.donothing", types.Void)

	depth := func() *ll.Param { return ll.NewParam("depth", types.I64) }
	g.fail = m.NewFunc("forth_fail", types.Void, ll.NewParam("msg", types.I8Ptr))
	g.push = m.NewFunc("forth_push", types.Void, ll.NewParam("v", types.I64))
	g.pop = m.NewFunc("forth_pop", types.I64)
	g.peek = m.NewFunc("forth_peek", types.I64, depth())
	g.poke = m.NewFunc("forth_poke", types.Void, depth(), ll.NewParam("v", types.I64))
	g.free = m.NewFunc("forth_free", types.Void, ll.NewParam("n", types.I64))
	g.div = m.NewFunc("forth_div", types.I64, ll.NewParam("a", types.I64), ll.NewParam("b", types.I64))
	g.mod = m.NewFunc("forth_mod", types.I64, ll.NewParam("a", types.I64), ll.NewParam("b", types.I64))
	g.dotS = m.NewFunc("forth_dot_s", types.Void)
	g.typeStr = m.NewFunc("forth_type", types.Void)
	g.readKey = m.NewFunc("forth_key", types.I64)
	g.doEnter = m.NewFunc("forth_do_enter", types.Void)
	g.loopTest = m.NewFunc("forth_loop_test", types.I64)
	g.loopNext = m.NewFunc("forth_loop_next", types.I64)
	g.loopIndex = m.NewFunc("forth_loop_index", types.I64, depth())
}

// str returns a pointer to a NUL-terminated copy of s.
func (g *llvmModule) str(s string) constant.Constant {
	if c, ok := g.strs[s]; ok {
		return c
	}
	arr := constant.NewCharArrayFromString(s + "\x00")
	glob := g.m.NewGlobalDef(fmt.Sprintf(".str.%d", len(g.strs)), arr)
	glob.Immutable = true
	c := constant.NewGetElementPtr(glob.ContentType, glob, i64(0), i64(0))
	g.strs[s] = c
	return c
}

func (g *llvmModule) variable(name string) *ll.Global {
	if v, ok := g.vars[name]; ok {
		return v
	}
	v := g.m.NewGlobalDef(template.Identifier("v_", name), i64(0))
	g.vars[name] = v
	return v
}

func slot(b *ll.Block, arr *ll.Global, idx value.Value) value.Value {
	return b.NewGetElementPtr(arr.ContentType, arr, i64(0), idx)
}

// guard branches to a fatal error when cond holds and returns the block
// where execution continues otherwise.
func (g *llvmModule) guard(f *ll.Func, b *ll.Block, cond value.Value, msg string) *ll.Block {
	bad := f.NewBlock("")
	ok := f.NewBlock("")
	b.NewCondBr(cond, bad, ok)
	bad.NewCall(g.fail, g.str(msg+"\n"))
	bad.NewUnreachable()
	return ok
}

func (g *llvmModule) runtime() {
	const underflow = "Stack underflow"

	f := g.fail
	b := f.NewBlock("entry")
	b.NewCall(g.fflush, constant.NewNull(types.I8Ptr))
	b.NewCall(g.fputs, f.Params[0], b.NewLoad(types.I8Ptr, g.stderr))
	b.NewCall(g.exit, i32(1))
	b.NewUnreachable()

	f = g.push
	b = f.NewBlock("entry")
	sp := b.NewLoad(types.I64, g.sp)
	b = g.guard(f, b, b.NewICmp(enum.IPredSGE, sp, i64(llvmStackSize)), "Stack overflow")
	b.NewStore(f.Params[0], slot(b, g.stack, sp))
	b.NewStore(b.NewAdd(sp, i64(1)), g.sp)
	b.NewRet(nil)

	f = g.pop
	b = f.NewBlock("entry")
	sp = b.NewLoad(types.I64, g.sp)
	b = g.guard(f, b, b.NewICmp(enum.IPredSLE, sp, i64(0)), underflow)
	n := b.NewSub(sp, i64(1))
	b.NewStore(n, g.sp)
	b.NewRet(b.NewLoad(types.I64, slot(b, g.stack, n)))

	f = g.peek
	b = f.NewBlock("entry")
	sp = b.NewLoad(types.I64, g.sp)
	b = g.guard(f, b, b.NewICmp(enum.IPredSGE, f.Params[0], sp), underflow)
	b.NewRet(b.NewLoad(types.I64, slot(b, g.stack, b.NewSub(b.NewSub(sp, i64(1)), f.Params[0]))))

	f = g.poke
	b = f.NewBlock("entry")
	sp = b.NewLoad(types.I64, g.sp)
	b = g.guard(f, b, b.NewICmp(enum.IPredSGE, f.Params[0], sp), underflow)
	b.NewStore(f.Params[1], slot(b, g.stack, b.NewSub(b.NewSub(sp, i64(1)), f.Params[0])))
	b.NewRet(nil)

	f = g.free
	b = f.NewBlock("entry")
	sp = b.NewLoad(types.I64, g.sp)
	b = g.guard(f, b, b.NewICmp(enum.IPredSGT, f.Params[0], sp), underflow)
	b.NewStore(b.NewSub(sp, f.Params[0]), g.sp)
	b.NewRet(nil)

	// x / -1 is negation and x mod -1 is 0; sdiv and srem trap on MinInt64 / -1.
	for _, op := range []*ll.Func{g.div, g.mod} {
		f = op
		b = f.NewBlock("entry")
		a, d := f.Params[0], f.Params[1]
		b = g.guard(f, b, b.NewICmp(enum.IPredEQ, d, i64(0)), "Division by zero")
		minus, normal := f.NewBlock(""), f.NewBlock("")
		b.NewCondBr(b.NewICmp(enum.IPredEQ, d, i64(-1)), minus, normal)
		if op == g.div {
			minus.NewRet(minus.NewSub(i64(0), a))
			normal.NewRet(normal.NewSDiv(a, d))
		} else {
			minus.NewRet(i64(0))
			normal.NewRet(normal.NewSRem(a, d))
		}
	}

	f = g.dotS
	b = f.NewBlock("entry")
	i := b.NewAlloca(types.I64)
	sp = b.NewLoad(types.I64, g.sp)
	b.NewCall(g.printf, g.str("<%lld> "), sp)
	b.NewStore(i64(0), i)
	head, body, done := f.NewBlock(""), f.NewBlock(""), f.NewBlock("")
	b.NewBr(head)
	iv := head.NewLoad(types.I64, i)
	head.NewCondBr(head.NewICmp(enum.IPredSLT, iv, sp), body, done)
	body.NewCall(g.printf, g.str("%lld "), body.NewLoad(types.I64, slot(body, g.stack, iv)))
	body.NewStore(body.NewAdd(iv, i64(1)), i)
	body.NewBr(head)
	done.NewRet(nil)

	f = g.typeStr
	b = f.NewBlock("entry")
	i = b.NewAlloca(types.I64)
	cnt := b.NewCall(g.pop)
	sp = b.NewLoad(types.I64, g.sp)
	bad := b.NewOr(b.NewICmp(enum.IPredSLT, cnt, i64(0)), b.NewICmp(enum.IPredSGT, cnt, sp))
	b = g.guard(f, b, bad, underflow)
	start := b.NewSub(sp, cnt)
	b.NewStore(start, i)
	head, body, done = f.NewBlock(""), f.NewBlock(""), f.NewBlock("")
	b.NewBr(head)
	iv = head.NewLoad(types.I64, i)
	head.NewCondBr(head.NewICmp(enum.IPredSLT, iv, sp), body, done)
	c := body.NewLoad(types.I64, slot(body, g.stack, iv))
	body.NewCall(g.putchar, body.NewTrunc(c, types.I32))
	body.NewStore(body.NewAdd(iv, i64(1)), i)
	body.NewBr(head)
	done.NewStore(start, g.sp)
	done.NewRet(nil)

	f = g.readKey
	b = f.NewBlock("entry")
	b.NewCall(g.fflush, constant.NewNull(types.I8Ptr))
	b.NewRet(b.NewSExt(b.NewCall(g.getchar), types.I64))

	f = g.doEnter
	b = f.NewBlock("entry")
	index := b.NewCall(g.pop)
	limit := b.NewCall(g.pop)
	lp := b.NewLoad(types.I64, g.lp)
	b = g.guard(f, b, b.NewICmp(enum.IPredSGE, lp, i64(llvmLoopDepth)), "Loop nesting too deep")
	b.NewStore(index, slot(b, g.loopIdx, lp))
	b.NewStore(limit, slot(b, g.loopLim, lp))
	b.NewStore(b.NewAdd(lp, i64(1)), g.lp)
	b.NewRet(nil)

	// loop_test and loop_next return a flag and drop the frame once it is spent.
	for _, op := range []*ll.Func{g.loopTest, g.loopNext} {
		f = op
		b = f.NewBlock("entry")
		lp = b.NewLoad(types.I64, g.lp)
		top := b.NewSub(lp, i64(1))
		p := slot(b, g.loopIdx, top)
		var idx value.Value = b.NewLoad(types.I64, p)
		lim := b.NewLoad(types.I64, slot(b, g.loopLim, top))
		live, spent := f.NewBlock(""), f.NewBlock("")
		if op == g.loopNext {
			idx = b.NewAdd(idx, i64(1))
			b.NewStore(idx, p)
			b.NewCondBr(b.NewICmp(enum.IPredSLT, idx, lim), live, spent)
		} else {
			b.NewCondBr(b.NewICmp(enum.IPredNE, idx, lim), live, spent)
		}
		live.NewRet(i64(-1))
		spent.NewStore(top, g.lp)
		spent.NewRet(i64(0))
	}

	f = g.loopIndex
	b = f.NewBlock("entry")
	lp = b.NewLoad(types.I64, g.lp)
	b = g.guard(f, b, b.NewICmp(enum.IPredSGE, f.Params[0], lp), "Loop index outside loop")
	b.NewRet(b.NewLoad(types.I64, slot(b, g.loopIdx, b.NewSub(b.NewSub(lp, i64(1)), f.Params[0]))))
}

func llvmFuncName(name string) string {
	if name == ir.MainName {
		return "forth_main"
	}
	return template.Identifier("w_", name)
}

// llvmFn lowers one IR function into basic blocks. Every label starts a
// block; code after a jump or return lands in a fresh block nothing enters.
type llvmFn struct {
	g      *llvmModule
	fn     *ll.Func
	cur    *ll.Block
	labels map[ir.Label]*ll.Block
	temps  map[int]*ll.InstAlloca
	fresh  int
}

func (g *llvmModule) begin(f *ll.Func, src *ir.Function) *llvmFn {
	l := &llvmFn{g: g, fn: f, labels: make(map[ir.Label]*ll.Block), temps: make(map[int]*ll.InstAlloca)}
	l.cur = f.NewBlock("entry")
	for _, id := range temporaries(src) {
		t := l.cur.NewAlloca(types.I64)
		l.cur.NewStore(i64(0), t)
		l.temps[id] = t
	}
	return l
}

func (l *llvmFn) block(label ir.Label) *ll.Block {
	if b, ok := l.labels[label]; ok {
		return b
	}
	b := l.fn.NewBlock(labelName(label))
	l.labels[label] = b
	return b
}

func (l *llvmFn) next() {
	l.fresh++
	l.cur = l.fn.NewBlock(fmt.Sprintf("cont_%d", l.fresh))
}

func (l *llvmFn) finish() {
	if l.cur.Term == nil {
		l.cur.NewRet(nil)
	}
}

func (l *llvmFn) call(f *ll.Func, args ...value.Value) value.Value {
	return l.cur.NewCall(f, args...)
}

func (l *llvmFn) pushV(v value.Value) { l.call(l.g.push, v) }

func (l *llvmFn) popV() value.Value { return l.call(l.g.pop) }

func (l *llvmFn) value(v ir.Value) value.Value {
	switch v.Kind {
	case ir.ValueStackTop, ir.ValueStackPos:
		return l.call(l.g.peek, i64(int64(v.Depth())))
	case ir.ValueVariable:
		return l.cur.NewLoad(types.I64, l.g.variable(v.Name))
	case ir.ValueTemporary:
		return l.cur.NewLoad(types.I64, l.temp(v.ID))
	default:
		return i64(v.Int)
	}
}

func (l *llvmFn) temp(id int) *ll.InstAlloca {
	if t, ok := l.temps[id]; ok {
		return t
	}
	// only reached for sample instructions, which declare no temporaries up front
	t := l.cur.NewAlloca(types.I64)
	l.temps[id] = t
	return t
}

func (l *llvmFn) store(dst ir.Value, v value.Value) {
	if dst.Kind == ir.ValueVariable {
		l.cur.NewStore(v, l.g.variable(dst.Name))
		return
	}
	l.cur.NewStore(v, l.temp(dst.ID))
}

func (l *llvmFn) flag(cond value.Value) value.Value {
	return l.cur.NewSelect(cond, i64(-1), i64(0))
}

func (l *llvmFn) binary(op ir.Op, a, b value.Value) value.Value {
	switch op {
	case ir.OpAdd:
		return l.cur.NewAdd(a, b)
	case ir.OpSub:
		return l.cur.NewSub(a, b)
	case ir.OpMul:
		return l.cur.NewMul(a, b)
	case ir.OpDiv:
		return l.call(l.g.div, a, b)
	case ir.OpMod:
		return l.call(l.g.mod, a, b)
	case ir.OpAnd:
		return l.flag(l.cur.NewAnd(l.cur.NewICmp(enum.IPredNE, a, i64(0)), l.cur.NewICmp(enum.IPredNE, b, i64(0))))
	case ir.OpOr:
		return l.flag(l.cur.NewOr(l.cur.NewICmp(enum.IPredNE, a, i64(0)), l.cur.NewICmp(enum.IPredNE, b, i64(0))))
	}
	return l.flag(l.cur.NewICmp(llvmPred[op], a, b))
}

func (l *llvmFn) unary(op ir.Op, a value.Value) value.Value {
	if op == ir.OpNeg {
		return l.cur.NewSub(i64(0), a)
	}
	return l.flag(l.cur.NewICmp(enum.IPredEQ, a, i64(0)))
}

func (l *llvmFn) branch(pred enum.IPred, label ir.Label) {
	cond := l.cur.NewICmp(pred, l.popV(), i64(0))
	from := l.cur
	l.next()
	from.NewCondBr(cond, l.block(label), l.cur)
}

// llvmEmitter appends one instruction to the current block.
type llvmEmitter func(l *llvmFn, in ir.Instruction) error

func llvmDo(f func(l *llvmFn)) llvmEmitter {
	return func(l *llvmFn, _ ir.Instruction) error {
		f(l)
		return nil
	}
}

func llvmTable() map[ir.Op]llvmEmitter {
	push := func(l *llvmFn, in ir.Instruction) error {
		l.pushV(l.value(in.Value))
		return nil
	}
	nothing := llvmDo(func(l *llvmFn) { l.call(l.g.donothing) })
	t := map[ir.Op]llvmEmitter{
		ir.OpPush: push,
		ir.OpPop: func(l *llvmFn, in ir.Instruction) error {
			v := l.popV()
			if in.Value.Kind == ir.ValueVariable || in.Value.Kind == ir.ValueTemporary {
				l.store(in.Value, v)
			}
			return nil
		},
		ir.OpDup:  llvmDo(func(l *llvmFn) { l.pushV(l.call(l.g.peek, i64(0))) }),
		ir.OpDrop: llvmDo(func(l *llvmFn) { l.popV() }),
		ir.OpSwap: llvmDo(func(l *llvmFn) {
			b, a := l.popV(), l.popV()
			l.pushV(b)
			l.pushV(a)
		}),
		ir.OpOver: llvmDo(func(l *llvmFn) { l.pushV(l.call(l.g.peek, i64(1))) }),
		ir.OpRot: llvmDo(func(l *llvmFn) {
			c := l.popV()
			b := l.popV()
			a := l.popV()
			l.pushV(b)
			l.pushV(c)
			l.pushV(a)
		}),
		ir.OpPrint:      llvmDo(func(l *llvmFn) { l.call(l.g.printf, l.g.str("%lld "), l.popV()) }),
		ir.OpPrintStack: llvmDo(func(l *llvmFn) { l.call(l.g.dotS) }),
		ir.OpEmit:       llvmDo(func(l *llvmFn) { l.call(l.g.putchar, l.cur.NewTrunc(l.popV(), types.I32)) }),
		ir.OpType:       llvmDo(func(l *llvmFn) { l.call(l.g.typeStr) }),
		ir.OpKey:        llvmDo(func(l *llvmFn) { l.pushV(l.call(l.g.readKey)) }),
		ir.OpNewline:    llvmDo(func(l *llvmFn) { l.call(l.g.putchar, i32('\n')) }),
		ir.OpSpace:      llvmDo(func(l *llvmFn) { l.call(l.g.putchar, i32(' ')) }),
		ir.OpLabel: func(l *llvmFn, in ir.Instruction) error {
			target := l.block(in.Label)
			if l.cur.Term == nil {
				l.cur.NewBr(target)
			}
			l.cur = target
			return nil
		},
		ir.OpJump: func(l *llvmFn, in ir.Instruction) error {
			l.cur.NewBr(l.block(in.Label))
			l.next()
			return nil
		},
		ir.OpJumpIf: func(l *llvmFn, in ir.Instruction) error {
			l.branch(enum.IPredNE, in.Label)
			return nil
		},
		ir.OpJumpIfNot: func(l *llvmFn, in ir.Instruction) error {
			l.branch(enum.IPredEQ, in.Label)
			return nil
		},
		ir.OpCall: func(l *llvmFn, in ir.Instruction) error {
			callee, ok := l.g.funcs[in.Callee]
			if !ok {
				return diag.Newf(diag.UnresolvedLabel, in.Pos, "call to undefined word %s", in.Callee)
			}
			l.call(callee)
			return nil
		},
		ir.OpReturn: llvmDo(func(l *llvmFn) {
			l.cur.NewRet(nil)
			l.next()
		}),
		ir.OpLoopEnter: llvmDo(func(l *llvmFn) { l.call(l.g.doEnter) }),
		ir.OpLoopTest:  llvmDo(func(l *llvmFn) { l.pushV(l.call(l.g.loopTest)) }),
		ir.OpLoopNext:  llvmDo(func(l *llvmFn) { l.pushV(l.call(l.g.loopNext)) }),
		ir.OpLoopIndex: func(l *llvmFn, in ir.Instruction) error {
			l.pushV(l.call(l.g.loopIndex, i64(int64(in.N))))
			return nil
		},
		ir.OpComment:   nothing,
		ir.OpNop:       nothing,
		ir.OpLoadConst: push,
		ir.OpBinaryOp: func(l *llvmFn, in ir.Instruction) error {
			a := l.value(in.Args[0])
			b := l.value(in.Args[1])
			l.pushV(l.binary(in.Kind, a, b))
			return nil
		},
		ir.OpUnaryOp: func(l *llvmFn, in ir.Instruction) error {
			l.pushV(l.unary(in.Kind, l.value(in.Args[0])))
			return nil
		},
		ir.OpStackGet: push,
		ir.OpStackSet: func(l *llvmFn, in ir.Instruction) error {
			v := l.popV()
			if d := in.Value.Depth(); d >= 0 {
				l.call(l.g.poke, i64(int64(d)), v)
				return nil
			}
			l.store(in.Value, v)
			return nil
		},
		ir.OpStackAlloc: func(l *llvmFn, in ir.Instruction) error {
			for i := 0; i < in.N; i++ {
				l.pushV(i64(0))
			}
			return nil
		},
		ir.OpStackFree: func(l *llvmFn, in ir.Instruction) error {
			l.call(l.g.free, i64(int64(in.N)))
			return nil
		},
	}
	for _, op := range []ir.Op{ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod, ir.OpEq, ir.OpNe, ir.OpLt, ir.OpGt, ir.OpLe, ir.OpGe, ir.OpAnd, ir.OpOr} {
		t[op] = llvmDo(func(l *llvmFn) {
			b := l.popV()
			a := l.popV()
			l.pushV(l.binary(op, a, b))
		})
	}
	for _, op := range []ir.Op{ir.OpNeg, ir.OpNot} {
		t[op] = llvmDo(func(l *llvmFn) { l.pushV(l.unary(op, l.popV())) })
	}
	return t
}

// LLVM builds a textual LLVM IR module with llir. The runtime is emitted as
// IR functions that call into libc.
type LLVM struct {
	table map[ir.Op]llvmEmitter
}

// NewLLVM builds the llvm-ir backend.
func NewLLVM() (*LLVM, error) {
	b := &LLVM{table: llvmTable()}
	if err := check(b.Name(), b.sample); err != nil {
		return nil, err
	}
	return b, nil
}

// sample lowers in into a scratch function and describes what it produced.
func (b *LLVM) sample(in ir.Instruction) (string, bool) {
	emit, ok := b.table[in.Op]
	if !ok {
		return "", false
	}
	g := newLLVMModule()
	g.funcs["SAMPLE"] = g.m.NewFunc(llvmFuncName("SAMPLE"), types.Void)
	f := g.m.NewFunc("sample", types.Void)
	l := g.begin(f, &ir.Function{Name: "sample"})
	if err := emit(l, in); err != nil {
		return "", true
	}
	n := 0
	for _, blk := range f.Blocks {
		n += len(blk.Insts)
		if blk.Term != nil {
			n++
		}
	}
	if n == 0 {
		return "", true
	}
	return fmt.Sprintf("%s: %d instructions", in, n), true
}

func (b *LLVM) Name() string      { return "llvm-ir" }
func (b *LLVM) Extension() string { return ".ll" }

func (b *LLVM) RunCommand(file string) string {
	return "lli " + file
}

func (b *LLVM) Generate(prog *ir.Program) (*Result, error) {
	g := newLLVMModule()
	for _, name := range variables(prog) {
		g.variable(name)
	}
	for _, fn := range prog.All() {
		g.funcs[fn.Name] = g.m.NewFunc(llvmFuncName(fn.Name), types.Void)
	}

	var errs diag.List
	for _, fn := range prog.All() {
		l := g.begin(g.funcs[fn.Name], fn)
		for _, in := range fn.Instructions {
			if err := b.table[in.Op](l, in); err != nil {
				errs.Add(err)
			}
		}
		l.finish()
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	main := g.m.NewFunc("main", types.I32)
	entry := main.NewBlock("entry")
	entry.NewCall(g.funcs[ir.MainName])
	entry.NewCall(g.fflush, constant.NewNull(types.I8Ptr))
	entry.NewRet(i32(0))

	return &Result{Code: g.m.String(), Warnings: warnings(prog)}, nil
}
