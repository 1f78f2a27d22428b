package ir

import (
	"github.com/chazu/forthc/pkg/diag"
)

// Validate checks that every jump names a label of its own function and
// every call names a function of the program. All problems are collected.
func Validate(prog *Program) error {
	var errs diag.List
	for _, fn := range prog.All() {
		labels := make(map[Label]bool)
		for _, in := range fn.Instructions {
			if in.Op != OpLabel {
				continue
			}
			if labels[in.Label] {
				errs.Add(diag.Newf(diag.InvalidInput, in.Pos, "label %s defined twice in %s", in.Label, fn.Name))
			}
			labels[in.Label] = true
		}

		for _, in := range fn.Instructions {
			switch {
			case in.Op.IsJump() && !labels[in.Label]:
				errs.Add(diag.Newf(diag.UnresolvedLabel, in.Pos, "%s to undefined label %s in %s", in.Op, in.Label, fn.Name))
			case in.Op == OpCall:
				if _, ok := prog.Functions[in.Callee]; !ok {
					errs.Add(diag.Newf(diag.UnresolvedLabel, in.Pos, "call to undefined word %s in %s", in.Callee, fn.Name))
				}
			}
		}
	}
	return errs.Err()
}
