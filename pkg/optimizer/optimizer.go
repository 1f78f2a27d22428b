// Package optimizer rewrites IR programs in place through a fixed sequence
// of passes, repeated until no pass changes anything.
package optimizer

import (
	"fmt"
	"slices"
	"strings"

	"github.com/chazu/forthc/pkg/ast"
	"github.com/chazu/forthc/pkg/diag"
	"github.com/chazu/forthc/pkg/ir"
)

// DefaultMaxIterations bounds the fixpoint loop.
const DefaultMaxIterations = 10

// Pass is one rewrite strategy. Apply mutates fn and returns a description
// of every rewrite it made; an empty result means the pass did nothing.
// prog is available for passes that need other functions.
type Pass interface {
	Name() string
	Apply(prog *ir.Program, fn *ir.Function) []string
}

// Pipeline runs its passes over every function, in order, once per
// iteration.
type Pipeline struct {
	Passes        []Pass
	MaxIterations int
}

// NewPipeline creates a pipeline over the given passes.
func NewPipeline(passes ...Pass) *Pipeline {
	return &Pipeline{Passes: passes, MaxIterations: DefaultMaxIterations}
}

// Default returns the standard pass order.
func Default() *Pipeline {
	return NewPipeline(Peephole{}, ConstantFolding{}, StrengthReduction{}, DeadCode{})
}

// WithInlining returns the standard passes preceded by function inlining.
func WithInlining() *Pipeline {
	p := Default()
	p.Passes = append([]Pass{Inline{}}, p.Passes...)
	return p
}

// Optimize runs the default pipeline over prog.
func Optimize(prog *ir.Program) *Report {
	return Default().Run(prog)
}

// Rewrite records one applied rewrite.
type Rewrite struct {
	Iteration   int
	Pass        string
	Function    string
	Description string
}

// Report describes a pipeline run. It never affects the optimized program.
type Report struct {
	Rewrites     []Rewrite
	PerIteration []int
	Iterations   int
	Converged    bool
}

// Warning returns a NonConvergence diagnostic when the run hit the
// iteration cap, and nil otherwise.
func (r *Report) Warning() error {
	if r.Converged {
		return nil
	}
	return diag.Newf(diag.NonConvergence, ast.Position{}, "no fixpoint after %d iterations", r.Iterations)
}

func (r *Report) String() string {
	var sb strings.Builder
	for _, rw := range r.Rewrites {
		fmt.Fprintf(&sb, "iteration %d: %s in %s: %s\n", rw.Iteration, rw.Pass, rw.Function, rw.Description)
	}
	if r.Converged {
		fmt.Fprintf(&sb, "converged after %d iterations (%d rewrites)\n", r.Iterations, len(r.Rewrites))
	} else {
		fmt.Fprintf(&sb, "stopped after %d iterations (%d rewrites)\n", r.Iterations, len(r.Rewrites))
	}
	return sb.String()
}

// Run optimizes prog in place. Iteration stops at the first iteration
// without rewrites, or once MaxIterations iterations have all rewritten
// something, in which case the report is not converged.
func (p *Pipeline) Run(prog *ir.Program) *Report {
	limit := p.MaxIterations
	if limit <= 0 {
		limit = DefaultMaxIterations
	}

	report := &Report{}
	for iter := 1; iter <= limit; iter++ {
		count := 0
		for _, pass := range p.Passes {
			for _, fn := range prog.All() {
				for _, desc := range pass.Apply(prog, fn) {
					report.Rewrites = append(report.Rewrites, Rewrite{
						Iteration:   iter,
						Pass:        pass.Name(),
						Function:    fn.Name,
						Description: desc,
					})
					count++
				}
			}
		}
		report.PerIteration = append(report.PerIteration, count)
		report.Iterations = iter
		if count == 0 {
			report.Converged = true
			break
		}
	}
	return report
}

// rewrite replaces n instructions of fn starting at i and describes the
// change. Replacements inherit the position of the first replaced
// instruction unless they carry their own.
func rewrite(fn *ir.Function, i, n int, with ...ir.Instruction) string {
	before := make([]string, n)
	for k, in := range fn.Instructions[i : i+n] {
		before[k] = in.String()
	}
	after := make([]string, len(with))
	pos := fn.Instructions[i].Pos
	for k := range with {
		if with[k].Pos.IsZero() {
			with[k].Pos = pos
		}
		after[k] = with[k].String()
	}
	fn.Instructions = slices.Replace(fn.Instructions, i, i+n, with...)

	desc := "nothing"
	if len(after) > 0 {
		desc = strings.Join(after, "; ")
	}
	return strings.Join(before, "; ") + " => " + desc
}

// window returns the n instructions at i, or nil when fewer remain.
func window(fn *ir.Function, i, n int) []ir.Instruction {
	if i < 0 || i+n > len(fn.Instructions) {
		return nil
	}
	return fn.Instructions[i : i+n]
}

func isPush(in ir.Instruction) (int64, bool) {
	if in.Op != ir.OpPush {
		return 0, false
	}
	return in.Value.Int, true
}
