package optimizer

import (
	"github.com/chazu/forthc/pkg/ir"
)

// DefaultInlineSize is the largest function Inline copies into callers.
const DefaultInlineSize = 20

// Inline replaces calls to small straight-line functions with their bodies.
// A candidate may not branch, return early, or call anything, so inlining
// never loops and never moves a label.
type Inline struct {
	MaxSize int
}

func (Inline) Name() string { return "function_inlining" }

func (p Inline) Apply(prog *ir.Program, fn *ir.Function) []string {
	var applied []string
	for i := 0; i < len(fn.Instructions); i++ {
		in := fn.Instructions[i]
		if in.Op != ir.OpCall || in.Callee == fn.Name {
			continue
		}
		callee, ok := prog.Functions[in.Callee]
		if !ok || !p.inlinable(callee) {
			continue
		}
		body := inlineBody(callee)
		applied = append(applied, rewrite(fn, i, 1, body...))
		i += len(body) - 1
	}
	return applied
}

func (p Inline) inlinable(fn *ir.Function) bool {
	limit := p.MaxSize
	if limit <= 0 {
		limit = DefaultInlineSize
	}
	if len(fn.Instructions) > limit {
		return false
	}
	for i, in := range fn.Instructions {
		switch {
		case in.Op == ir.OpLabel, in.Op.IsJump(), in.Op == ir.OpCall:
			return false
		case in.Op == ir.OpReturn && i != len(fn.Instructions)-1:
			return false
		}
	}
	return true
}

func inlineBody(fn *ir.Function) []ir.Instruction {
	src := fn.Clone().Instructions
	if n := len(src); n > 0 && src[n-1].Op == ir.OpReturn {
		src = src[:n-1]
	}
	return src
}
