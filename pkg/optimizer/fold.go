package optimizer

import (
	"math"

	"github.com/chazu/forthc/pkg/ir"
)

// ConstantFolding evaluates operations whose operands are known at compile
// time. Adjacent constant pushes feeding an operator are replaced by the
// result; beyond that a simulated stack tracks known values through
// straight-line code so pure forms (binary_op, unary_op, dup, over) reading
// known slots become pushes. The simulation forgets everything at barriers.
//
// Division and modulo by zero, and the overflowing MinInt64 / -1, are left
// for run time.
type ConstantFolding struct{}

func (ConstantFolding) Name() string { return "constant_folding" }

type slot struct {
	known bool
	v     int64
}

// stack is the simulated top of the real stack; items below it are unknown.
type stack []slot

func (s stack) push(known bool, v int64) stack { return append(s, slot{known, v}) }

func (s stack) drop(n int) stack {
	if n >= len(s) {
		return s[:0]
	}
	return s[:len(s)-n]
}

func (s stack) at(depth int) (int64, bool) {
	if depth < 0 || depth >= len(s) || !s[len(s)-1-depth].known {
		return 0, false
	}
	return s[len(s)-1-depth].v, true
}

func (s stack) value(v ir.Value) (int64, bool) {
	if c, ok := v.Constant(); ok {
		return c, true
	}
	return s.at(v.Depth())
}

func foldable(op ir.Op, a, b int64) bool {
	if op == ir.OpDiv || op == ir.OpMod {
		return b != 0 && !(a == math.MinInt64 && b == -1)
	}
	return true
}

func (ConstantFolding) Apply(_ *ir.Program, fn *ir.Function) []string {
	var applied []string
	var sim stack

	for i := 0; i < len(fn.Instructions); i++ {
		in := fn.Instructions[i]

		switch {
		case in.Op.IsBarrier():
			sim = sim[:0]
			continue

		case in.Op.IsBinary() && i >= 2:
			a, okA := fn.Instructions[i-2].PushedConstant()
			b, okB := fn.Instructions[i-1].PushedConstant()
			if okA && okB && foldable(in.Op, a, b) {
				r, _ := ir.EvalBinary(in.Op, a, b)
				applied = append(applied, rewrite(fn, i-2, 3, ir.Push(r)))
				i -= 2
				sim = sim.drop(2).push(true, r)
				continue
			}

		case in.Op.IsUnary() && i >= 1:
			if a, ok := fn.Instructions[i-1].PushedConstant(); ok {
				r, _ := ir.EvalUnary(in.Op, a)
				applied = append(applied, rewrite(fn, i-1, 2, ir.Push(r)))
				i--
				sim = sim.drop(1).push(true, r)
				continue
			}

		case in.Op == ir.OpBinaryOp:
			a, okA := sim.value(in.Args[0])
			b, okB := sim.value(in.Args[1])
			if okA && okB && foldable(in.Kind, a, b) {
				r, _ := ir.EvalBinary(in.Kind, a, b)
				applied = append(applied, rewrite(fn, i, 1, ir.Push(r)))
				sim = sim.push(true, r)
				continue
			}

		case in.Op == ir.OpUnaryOp:
			if a, ok := sim.value(in.Args[0]); ok {
				r, _ := ir.EvalUnary(in.Kind, a)
				applied = append(applied, rewrite(fn, i, 1, ir.Push(r)))
				sim = sim.push(true, r)
				continue
			}

		case in.Op == ir.OpDup || in.Op == ir.OpOver:
			depth := 0
			if in.Op == ir.OpOver {
				depth = 1
			}
			if v, ok := sim.at(depth); ok {
				applied = append(applied, rewrite(fn, i, 1, ir.Push(v)))
				sim = sim.push(true, v)
				continue
			}
		}

		sim = simulate(sim, in)
	}
	return applied
}

// simulate applies in to the simulated stack.
func simulate(sim stack, in ir.Instruction) stack {
	n := len(sim)
	switch in.Op {
	case ir.OpPush, ir.OpLoadConst:
		return sim.push(true, in.Value.Int)
	case ir.OpSwap:
		if n >= 2 {
			sim[n-1], sim[n-2] = sim[n-2], sim[n-1]
			return sim
		}
	case ir.OpRot:
		if n >= 3 {
			sim[n-3], sim[n-2], sim[n-1] = sim[n-2], sim[n-1], sim[n-3]
			return sim
		}
	case ir.OpStackSet:
		top := slot{}
		if n > 0 {
			top = sim[n-1]
		}
		sim = sim.drop(1)
		if d := in.Value.Depth(); d >= 0 && d < len(sim) {
			sim[len(sim)-1-d] = top
		}
		return sim
	}

	_, pops, pushes := in.Effect(nil)
	sim = sim.drop(pops)
	for k := 0; k < pushes; k++ {
		sim = sim.push(false, 0)
	}
	return sim
}
