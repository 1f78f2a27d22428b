package ir

// AnalyzeStackEffects computes the (consumes, produces) effect of every
// function, main included, and stores it in Function.Effect.
//
// Each function is walked along its control-flow graph from the entry with
// the depth relative to entry. Consumes is the deepest deficit any
// instruction sees; produces is consumes plus the largest depth left at a
// return. Calls use the callee's current effect, so the walk is repeated
// until no effect changes, which settles mutual recursion.
func AnalyzeStackEffects(prog *Program) {
	fns := prog.All()
	for round := 0; round <= len(fns); round++ {
		effects := prog.Effects()
		changed := false
		for _, fn := range fns {
			e := functionEffect(fn, effects)
			if e != fn.Effect {
				fn.Effect = e
				changed = true
			}
			if fn.Name != MainName {
				effects[fn.Name] = e
			}
		}
		if !changed {
			return
		}
	}
}

func functionEffect(fn *Function, effects map[string]StackEffect) StackEffect {
	n := len(fn.Instructions)
	if n == 0 {
		return StackEffect{}
	}

	targets := make(map[Label]int)
	for i, in := range fn.Instructions {
		if in.Op == OpLabel {
			if _, ok := targets[in.Label]; !ok {
				targets[in.Label] = i
			}
		}
	}

	depth := make([]int, n)
	seen := make([]bool, n)
	var work []int
	need, exit, exited := 0, 0, false

	leave := func(d int) {
		if !exited || d > exit {
			exit = d
		}
		exited = true
	}
	visit := func(i, d int) {
		if i >= n {
			leave(d)
			return
		}
		if !seen[i] {
			seen[i] = true
			depth[i] = d
			work = append(work, i)
		}
	}

	visit(0, 0)
	for len(work) > 0 {
		i := work[len(work)-1]
		work = work[:len(work)-1]
		in := fn.Instructions[i]
		d := depth[i]

		requires, pops, pushes := in.Effect(effects)
		if requires-d > need {
			need = requires - d
		}
		next := d - pops + pushes

		switch in.Op {
		case OpReturn:
			leave(next)
		case OpJump:
			if t, ok := targets[in.Label]; ok {
				visit(t, next)
			}
		case OpJumpIf, OpJumpIfNot:
			if t, ok := targets[in.Label]; ok {
				visit(t, next)
			}
			visit(i+1, next)
		default:
			visit(i+1, next)
		}
	}

	produces := need + exit
	if produces < 0 {
		produces = 0
	}
	return StackEffect{Consumes: need, Produces: produces}
}
