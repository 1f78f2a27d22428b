package irgen

import (
	"strings"

	"github.com/chazu/forthc/pkg/ir"
)

// textEmitter spells one instruction as one or more source lines.
type textEmitter func(c *textCtx, in ir.Instruction) string

// textCtx is the per-function state text emitters may consult.
type textCtx struct {
	blocks map[ir.Label]int // state-machine block of each label
}

func fixed(s string) textEmitter {
	return func(*textCtx, ir.Instruction) string { return s }
}

// renderText looks up and runs the emitter for in.
func renderText(table map[ir.Op]textEmitter, c *textCtx, in ir.Instruction) (string, bool) {
	emit, ok := table[in.Op]
	if !ok {
		return "", false
	}
	return emit(c, in), true
}

// writeLines writes text with every line indented by prefix.
func writeLines(sb *strings.Builder, prefix, text string) {
	for _, line := range strings.Split(text, "\n") {
		sb.WriteString(prefix)
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
}

// warnings reports user words nothing calls.
func warnings(prog *ir.Program) []string {
	called := make(map[string]bool)
	for _, fn := range prog.All() {
		for _, in := range fn.Instructions {
			if in.Op == ir.OpCall {
				called[in.Callee] = true
			}
		}
	}
	var out []string
	for _, name := range prog.Names() {
		if !called[name] {
			out = append(out, "word "+name+" is defined but never called")
		}
	}
	return out
}

// oneLine flattens comment text.
func oneLine(s string) string {
	return strings.NewReplacer("\n", " ", "\r", " ").Replace(s)
}
