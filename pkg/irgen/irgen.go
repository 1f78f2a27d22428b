// Package irgen turns optimized IR programs into target source. Every
// backend maps each ir.Op to an emitter and proves at construction that the
// mapping is complete.
package irgen

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/chazu/forthc/pkg/ast"
	"github.com/chazu/forthc/pkg/diag"
	"github.com/chazu/forthc/pkg/ir"
)

// Backend generates target source from an IR program.
type Backend interface {
	Name() string
	Extension() string
	RunCommand(file string) string
	Generate(prog *ir.Program) (*Result, error)
}

// Result contains the generated code and any warnings.
type Result struct {
	Code     string
	Warnings []string
}

// check renders the sample of every op through render and reports each op
// the backend cannot emit.
func check(backend string, render func(ir.Instruction) (string, bool)) error {
	var errs diag.List
	for _, op := range ir.AllOps() {
		text, ok := render(ir.Sample(op))
		switch {
		case !ok:
			errs.Add(diag.Newf(diag.BackendConstruction, ast.Position{}, "%s has no emitter for %s", backend, op))
		case strings.TrimSpace(text) == "":
			errs.Add(diag.Newf(diag.BackendConstruction, ast.Position{}, "%s renders %s as nothing", backend, op))
		}
	}
	return errs.Err()
}

// stem strips the extension from file.
func stem(file string) string {
	return strings.TrimSuffix(file, filepath.Ext(file))
}

// temporaries returns the temporary ids fn uses, ascending.
func temporaries(fn *ir.Function) []int {
	seen := make(map[int]bool)
	for _, in := range fn.Instructions {
		for _, v := range operands(in) {
			if v.Kind == ir.ValueTemporary {
				seen[v.ID] = true
			}
		}
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// variables returns the variable names prog uses, sorted.
func variables(prog *ir.Program) []string {
	seen := make(map[string]bool)
	for _, fn := range prog.All() {
		for _, in := range fn.Instructions {
			for _, v := range operands(in) {
				if v.Kind == ir.ValueVariable {
					seen[v.Name] = true
				}
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// referenced returns the labels some jump in fn targets.
func referenced(fn *ir.Function) map[ir.Label]bool {
	used := make(map[ir.Label]bool)
	for _, in := range fn.Instructions {
		if in.Op.IsJump() {
			used[in.Label] = true
		}
	}
	return used
}

func operands(in ir.Instruction) []ir.Value {
	switch in.Op {
	case ir.OpBinaryOp, ir.OpUnaryOp:
		return in.Args
	case ir.OpPop, ir.OpStackGet, ir.OpStackSet:
		return []ir.Value{in.Value}
	}
	return nil
}

// labelName spells a label as a target identifier. Lowering only produces
// labels made of lowercase letters, digits and underscores.
func labelName(l ir.Label) string { return "L_" + string(l) }
