// Package rules holds prioritized (pattern, template) rule tables and the
// generator that drives a table across a syntax tree.
package rules

import (
	"sort"

	"github.com/chazu/forthc/pkg/ast"
	"github.com/chazu/forthc/pkg/pattern"
	"github.com/chazu/forthc/pkg/template"
)

// Rule pairs a pattern with the template emitted when it matches.
type Rule struct {
	Name     string
	Pattern  pattern.Pattern
	Template template.Template
	Priority int
}

// Table is an ordered rule collection. Rules are tried by descending
// priority; equal priorities keep insertion order. A table is append-only
// and becomes read-only once frozen, after which it is safe for concurrent use.
type Table struct {
	rules  []Rule
	frozen bool
}

func NewTable() *Table {
	return &Table{}
}

// Add appends a rule. Adding to a frozen table panics.
func (t *Table) Add(r Rule) {
	if t.frozen {
		panic("rules: Add on frozen table")
	}
	t.rules = append(t.rules, r)
	sort.SliceStable(t.rules, func(i, j int) bool {
		return t.rules[i].Priority > t.rules[j].Priority
	})
}

// Freeze makes the table read-only and returns it.
func (t *Table) Freeze() *Table {
	t.frozen = true
	return t
}

func (t *Table) Frozen() bool { return t.frozen }

func (t *Table) Len() int { return len(t.rules) }

// Rules returns the rules in resolution order.
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

// Resolve returns the first rule, in resolution order, that matches at
// nodes[pos] and consumes at least one node. There is no backtracking across
// rules: the first match is the result.
func (t *Table) Resolve(ctx *pattern.Context, nodes []ast.Node, pos int) (Rule, int, pattern.Bindings, bool) {
	for _, r := range t.rules {
		n, b, ok := pattern.Match(r.Pattern, ctx, nodes, pos)
		if ok && n > 0 {
			return r, n, b, true
		}
	}
	return Rule{}, 0, nil, false
}
