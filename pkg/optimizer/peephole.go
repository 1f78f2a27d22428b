package optimizer

import (
	"github.com/chazu/forthc/pkg/ir"
)

// Peephole removes and merges short instruction sequences:
//
//	push n, dup, add      => push 2n
//	push n, drop          => nothing
//	push a, push b, swap  => push b, push a
//	dup drop, swap swap, neg neg => nothing
//	over, over, <binary>  => binary_op(s1, top)
//	dup, neg|not          => unary_op(top)
type Peephole struct{}

func (Peephole) Name() string { return "peephole" }

func (Peephole) Apply(_ *ir.Program, fn *ir.Function) []string {
	var applied []string
	for i := 0; i < len(fn.Instructions); {
		if desc, ok := peephole(fn, i); ok {
			applied = append(applied, desc)
			i = max(i-2, 0)
			continue
		}
		i++
	}
	return applied
}

func peephole(fn *ir.Function, i int) (string, bool) {
	if w := window(fn, i, 3); w != nil {
		if n, ok := isPush(w[0]); ok && w[1].Op == ir.OpDup && w[2].Op == ir.OpAdd {
			return rewrite(fn, i, 3, ir.Push(n+n)), true
		}
		a, okA := isPush(w[0])
		b, okB := isPush(w[1])
		if okA && okB && w[2].Op == ir.OpSwap {
			return rewrite(fn, i, 3, ir.Push(b), ir.Push(a)), true
		}
		if w[0].Op == ir.OpOver && w[1].Op == ir.OpOver && w[2].Op.IsBinary() {
			return rewrite(fn, i, 3, ir.BinaryOp(w[2].Op, ir.StackPos(1), ir.StackTop())), true
		}
	}

	if w := window(fn, i, 2); w != nil {
		first, second := w[0].Op, w[1].Op
		switch {
		case first == ir.OpPush && second == ir.OpDrop,
			first == ir.OpDup && second == ir.OpDrop,
			first == ir.OpSwap && second == ir.OpSwap,
			first == ir.OpNeg && second == ir.OpNeg:
			return rewrite(fn, i, 2), true
		case first == ir.OpDup && second.IsUnary():
			return rewrite(fn, i, 2, ir.UnaryOp(second, ir.StackTop())), true
		}
	}
	return "", false
}
