package optimizer

import (
	"math/bits"

	"github.com/chazu/forthc/pkg/ir"
)

// StrengthReduction replaces arithmetic by a literal with cheaper
// equivalents. Division by powers of two is left alone: shifting rounds
// toward negative infinity where division truncates.
type StrengthReduction struct{}

func (StrengthReduction) Name() string { return "strength_reduction" }

func (StrengthReduction) Apply(_ *ir.Program, fn *ir.Function) []string {
	var applied []string
	for i := 0; i+1 < len(fn.Instructions); i++ {
		c, ok := isPush(fn.Instructions[i])
		if !ok {
			continue
		}
		if with, ok := reduce(c, fn.Instructions[i+1].Op); ok {
			applied = append(applied, rewrite(fn, i, 2, with...))
		}
	}
	return applied
}

func reduce(c int64, op ir.Op) ([]ir.Instruction, bool) {
	switch {
	case op == ir.OpMul && (c == 2 || c == 4 || c == 8):
		var with []ir.Instruction
		for k := bits.TrailingZeros64(uint64(c)); k > 0; k-- {
			with = append(with, ir.Simple(ir.OpDup), ir.Simple(ir.OpAdd))
		}
		return with, true
	case c == 1 && (op == ir.OpMul || op == ir.OpDiv),
		c == 0 && (op == ir.OpAdd || op == ir.OpSub):
		return nil, true
	case c == -1 && (op == ir.OpMul || op == ir.OpDiv):
		return []ir.Instruction{ir.Simple(ir.OpNeg)}, true
	case c == 0 && op == ir.OpMul,
		c == 1 && op == ir.OpMod:
		return []ir.Instruction{ir.Simple(ir.OpDrop), ir.LoadConst(0)}, true
	}
	return nil, false
}
