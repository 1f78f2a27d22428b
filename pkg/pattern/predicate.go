package pattern

import (
	"strings"

	"github.com/chazu/forthc/pkg/ast"
)

// Predicate decides whether a Guard accepts the nodes its child consumed.
type Predicate func(ctx *Context, matched []ast.Node) bool

// Context carries per-generation facts that predicates may consult. Rule
// tables stay frozen; anything that varies between programs lives here.
type Context struct {
	defined map[string]bool
}

// NewContext records the words defined at the top level of prog.
func NewContext(prog *ast.Program) *Context {
	ctx := &Context{defined: make(map[string]bool)}
	if prog == nil {
		return ctx
	}
	for _, def := range prog.Definitions() {
		ctx.defined[strings.ToUpper(def.Name)] = true
	}
	return ctx
}

// IsDefined reports whether name is a user definition. A nil context knows no definitions.
func (c *Context) IsDefined(name string) bool {
	if c == nil {
		return false
	}
	return c.defined[strings.ToUpper(name)]
}

// When wraps p in a Guard.
func When(p Pattern, name string, pred Predicate) Guard {
	return Guard{P: p, Pred: pred, Name: name}
}

// WordIs accepts a single word whose name is one of names, ignoring case.
func WordIs(names ...string) Predicate {
	return func(_ *Context, matched []ast.Node) bool {
		if len(matched) != 1 {
			return false
		}
		w, ok := matched[0].(*ast.Word)
		if !ok {
			return false
		}
		for _, name := range names {
			if strings.EqualFold(w.Name, name) {
				return true
			}
		}
		return false
	}
}

// IsDefinedWord accepts a single word naming a user definition.
func IsDefinedWord(ctx *Context, matched []ast.Node) bool {
	if len(matched) != 1 {
		return false
	}
	w, ok := matched[0].(*ast.Word)
	return ok && ctx.IsDefined(w.Name)
}

// NumberIs accepts a single number satisfying test.
func NumberIs(test func(int64) bool) Predicate {
	return func(_ *Context, matched []ast.Node) bool {
		if len(matched) != 1 {
			return false
		}
		n, ok := matched[0].(*ast.Number)
		return ok && test(n.Value)
	}
}

// Keyword matches the word name in any letter case.
func Keyword(name string) Guard {
	return When(AnyWord{}, name, WordIs(name))
}
