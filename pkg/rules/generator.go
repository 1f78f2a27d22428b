package rules

import (
	"github.com/chazu/forthc/pkg/ast"
	"github.com/chazu/forthc/pkg/diag"
	"github.com/chazu/forthc/pkg/pattern"
	"github.com/chazu/forthc/pkg/template"
)

// Labels the generator binds on its own, in addition to what patterns capture.
const (
	LabelName        = "name"        // word naming the matched definition
	LabelBody        = "body"        // generated text of the matched definition's body
	LabelDefinitions = "definitions" // frame: text of all definitions
	LabelMain        = "main"        // frame: text of all top-level code
	LabelWords       = "words"       // frame: names of all user definitions
)

// Generator emits target text for a tree by resolving one rule per position.
// It holds no per-call state, so one Generator may serve concurrent calls.
type Generator struct {
	Table     *Table
	Formatter template.Formatter
	Indent    string
	// Frame wraps the two sections; a nil Frame emits definitions then main.
	Frame template.Template
}

// Generate walks the program left to right, recursing into definition bodies.
// Output of rules that consumed a definition goes to the definitions section;
// everything else goes to the main section. Both keep program order.
func (g *Generator) Generate(prog *ast.Program) (string, error) {
	ctx := pattern.NewContext(prog)
	root := template.NewEmitter(g.Formatter, g.Indent)
	defs, main := root.Child(), root.Child()

	if err := g.walk(ctx, prog.Body, defs, main); err != nil {
		return "", err
	}

	var words []ast.Node
	for _, d := range prog.Definitions() {
		words = append(words, ast.W(d.Name))
	}

	frame := g.Frame
	if frame == nil {
		frame = template.Template{
			template.Variable{Label: LabelDefinitions},
			template.Variable{Label: LabelMain},
		}
	}
	frame.Render(root, pattern.Bindings{
		LabelDefinitions: pattern.TextCapture(defs.String()),
		LabelMain:        pattern.TextCapture(main.String()),
		LabelWords:       pattern.SeqCapture(words),
	})
	return root.String(), nil
}

func (g *Generator) walk(ctx *pattern.Context, nodes []ast.Node, defs, out *template.Emitter) error {
	for pos := 0; pos < len(nodes); {
		rule, n, b, ok := g.Table.Resolve(ctx, nodes, pos)
		if !ok {
			node := nodes[pos]
			return diag.AtNode(diag.UnmatchedConstruct, node, "no rule matches %s %s", ast.Kind(node), node)
		}

		if def := firstDefinition(nodes[pos : pos+n]); def != nil {
			body := out.Child()
			if err := g.walk(ctx, def.Body, defs, body); err != nil {
				return err
			}
			b[LabelName] = pattern.NodeCapture(ast.W(def.Name))
			b[LabelBody] = pattern.TextCapture(body.String())
			rule.Template.Render(defs, b)
		} else {
			rule.Template.Render(out, b)
		}
		pos += n
	}
	return nil
}

func firstDefinition(nodes []ast.Node) *ast.Definition {
	for _, n := range nodes {
		if d, ok := n.(*ast.Definition); ok {
			return d
		}
	}
	return nil
}
