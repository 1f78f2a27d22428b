package optimizer

import (
	"github.com/chazu/forthc/pkg/ir"
)

// DeadCode deletes instructions that cannot affect the program: nops, pure
// producers whose result is dropped at once, code after an unconditional
// jump or return up to the next label, jumps to the label that follows
// them, and labels nothing jumps to.
type DeadCode struct{}

func (DeadCode) Name() string { return "dead_code_elimination" }

func (DeadCode) Apply(_ *ir.Program, fn *ir.Function) []string {
	var applied []string

	for i := 0; i < len(fn.Instructions); {
		in := fn.Instructions[i]
		switch {
		case in.Op == ir.OpNop:
			applied = append(applied, rewrite(fn, i, 1))
		case removable(in) && i+1 < len(fn.Instructions) && fn.Instructions[i+1].Op == ir.OpDrop:
			applied = append(applied, rewrite(fn, i, 2))
		default:
			i++
		}
	}

	for i := 0; i < len(fn.Instructions); i++ {
		in := fn.Instructions[i]
		if in.Op != ir.OpJump && in.Op != ir.OpReturn {
			continue
		}
		end := i + 1
		for end < len(fn.Instructions) && fn.Instructions[end].Op != ir.OpLabel {
			end++
		}
		// A function keeps its closing return.
		if in.Op == ir.OpJump && end == len(fn.Instructions) && fn.Instructions[end-1].Op == ir.OpReturn {
			end--
		}
		if end > i+1 {
			applied = append(applied, rewrite(fn, i+1, end-i-1))
		}
	}

	for i := 0; i+1 < len(fn.Instructions); {
		in := fn.Instructions[i]
		if in.Op == ir.OpJump && fn.Instructions[i+1].Op == ir.OpLabel && fn.Instructions[i+1].Label == in.Label {
			applied = append(applied, rewrite(fn, i, 1))
			continue
		}
		i++
	}

	referenced := make(map[ir.Label]bool)
	for _, in := range fn.Instructions {
		if in.Op.IsJump() {
			referenced[in.Label] = true
		}
	}
	for i := 0; i < len(fn.Instructions); {
		in := fn.Instructions[i]
		if in.Op == ir.OpLabel && !referenced[in.Label] {
			applied = append(applied, rewrite(fn, i, 1))
			continue
		}
		i++
	}

	return applied
}

// removable reports whether in may be deleted together with a following
// drop. Division keeps its run-time check.
func removable(in ir.Instruction) bool {
	if in.Op == ir.OpBinaryOp && (in.Kind == ir.OpDiv || in.Kind == ir.OpMod) {
		return false
	}
	return in.Op.Pure()
}
