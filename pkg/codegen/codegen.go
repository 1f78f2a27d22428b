// Package codegen provides the pattern-based backends: each one is a frozen
// rule table plus a frame template that turns a syntax tree straight into
// target source text.
package codegen

import (
	"sort"
	"strings"

	"github.com/chazu/forthc/pkg/ast"
	"github.com/chazu/forthc/pkg/pattern"
	"github.com/chazu/forthc/pkg/rules"
	"github.com/chazu/forthc/pkg/template"
)

// Rule priorities. Specific shapes sit high, catch-alls low, so specificity
// never depends on insertion order.
const (
	PrioritySpecialized = 100
	PriorityRun         = 90
	PriorityIdiom       = 80
	PriorityCall        = 60 // user definitions shadow built-ins
	PriorityBuiltin     = 50
	PriorityControl     = 40
	PriorityDefinition  = 10
	PriorityLiteral     = 1
)

// Backend is a pattern-based generator for one target language.
type Backend struct {
	name      string
	extension string
	run       func(file string) string
	gen       *rules.Generator
}

func (b *Backend) Name() string { return b.name }

// Extension is the conventional file extension of the output, with the dot.
func (b *Backend) Extension() string { return b.extension }

// RunCommand is the conventional shell command that builds and runs file.
func (b *Backend) RunCommand(file string) string { return b.run(file) }

// Rules exposes the backend's frozen rule table.
func (b *Backend) Rules() *rules.Table { return b.gen.Table }

// WithIndent returns a copy of the backend that indents by unit. The rule
// table is shared.
func (b *Backend) WithIndent(unit string) *Backend {
	cp := *b
	gen := *b.gen
	gen.Indent = unit
	cp.gen = &gen
	return &cp
}

// Generate renders prog as target source text.
func (b *Backend) Generate(prog *ast.Program) (string, error) {
	return b.gen.Generate(prog)
}

// lang holds the statement spellings a backend supplies for each construct.
type lang struct {
	builtins map[string]string // word -> statement
	control  map[string]template.Template

	push        func(v template.Part) []template.Part // statement pushing a rendered value
	addConst    string                                // "%s" receives the number
	subConst    string
	mulConst    string
	printConst  []template.Part
	square      string
	typeLiteral func(v template.Part) []template.Part
	pushString  func(v template.Part) []template.Part
	call        func(v template.Part) []template.Part
	definition  template.Template
}

func lit(s string) template.Literal { return template.Literal{Text: s} }

func ref(label string) template.Variable { return template.Variable{Label: label} }

// line is one statement on its own line.
func line(parts ...template.Part) template.Template {
	return append(template.Template{template.NewLine{}}, parts...)
}

// constStmt splits a "%s" format around a number reference.
func constStmt(format, label string) template.Template {
	before, after, _ := strings.Cut(format, "%s")
	return line(lit(before), ref(label), lit(after))
}

// buildTable assembles the rule set shared by every pattern backend.
func buildTable(l *lang) *rules.Table {
	t := rules.NewTable()
	num := pattern.Bind("n", pattern.AnyNumber{})

	t.Add(rules.Rule{Name: "add-const", Priority: PrioritySpecialized,
		Pattern: pattern.Seq(num, pattern.Word("+")), Template: constStmt(l.addConst, "n")})
	t.Add(rules.Rule{Name: "sub-const", Priority: PrioritySpecialized,
		Pattern: pattern.Seq(num, pattern.Word("-")), Template: constStmt(l.subConst, "n")})
	t.Add(rules.Rule{Name: "mul-const", Priority: PrioritySpecialized,
		Pattern: pattern.Seq(num, pattern.Word("*")), Template: constStmt(l.mulConst, "n")})
	t.Add(rules.Rule{Name: "print-const", Priority: PrioritySpecialized,
		Pattern: pattern.Seq(num, pattern.Word(".")), Template: line(l.printConst...)})
	t.Add(rules.Rule{Name: "type-literal", Priority: PrioritySpecialized,
		Pattern:  pattern.Seq(pattern.Bind("s", pattern.AnyString{}), pattern.Keyword("TYPE")),
		Template: line(l.typeLiteral(ref("s"))...)})

	// Two or more literals in a row are pushed on one line.
	t.Add(rules.Rule{Name: "number-run", Priority: PriorityRun,
		Pattern: pattern.Bind("ns", pattern.Seq(pattern.AnyNumber{}, pattern.AnyNumber{}, pattern.Repeat{P: pattern.AnyNumber{}})),
		Template: template.Template{template.NewLine{}, template.Loop{Label: "ns", Parts: append(
			l.push(ref("item")), lit(" "))}}})

	t.Add(rules.Rule{Name: "square", Priority: PriorityIdiom,
		Pattern: pattern.Seq(pattern.Keyword("DUP"), pattern.Word("*")), Template: line(lit(l.square))})

	for _, name := range sortedKeys(l.builtins) {
		t.Add(rules.Rule{Name: "builtin " + name, Priority: PriorityBuiltin,
			Pattern: pattern.Keyword(name), Template: line(lit(l.builtins[name]))})
	}
	for _, name := range sortedKeys(l.control) {
		t.Add(rules.Rule{Name: "control " + name, Priority: PriorityControl,
			Pattern: pattern.Keyword(name), Template: l.control[name]})
	}

	t.Add(rules.Rule{Name: "call", Priority: PriorityCall,
		Pattern:  pattern.Bind("w", pattern.When(pattern.AnyWord{}, "defined", pattern.IsDefinedWord)),
		Template: line(l.call(ref("w"))...)})
	t.Add(rules.Rule{Name: "definition", Priority: PriorityDefinition,
		Pattern: pattern.AnyDefinition{}, Template: l.definition})
	t.Add(rules.Rule{Name: "number", Priority: PriorityLiteral,
		Pattern: num, Template: line(l.push(ref("n"))...)})
	t.Add(rules.Rule{Name: "string", Priority: PriorityLiteral,
		Pattern: pattern.Bind("s", pattern.AnyString{}), Template: line(l.pushString(ref("s"))...)})

	return t.Freeze()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func baseName(file string) string {
	if i := strings.LastIndexByte(file, '.'); i > 0 {
		return file[:i]
	}
	return file
}
