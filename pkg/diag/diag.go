// Package diag defines the structured failures reported by every compilation stage.
package diag

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/forthc/pkg/ast"
	"github.com/hashicorp/go-multierror"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnknown Kind = iota
	UnmatchedConstruct
	UnresolvedLabel
	UnbalancedControl
	InvalidInput
	BackendConstruction
	NonConvergence
)

func (k Kind) String() string {
	switch k {
	case UnmatchedConstruct:
		return "unmatched construct"
	case UnresolvedLabel:
		return "unresolved label"
	case UnbalancedControl:
		return "unbalanced control"
	case InvalidInput:
		return "invalid input"
	case BackendConstruction:
		return "backend construction"
	case NonConvergence:
		return "optimizer non-convergence"
	default:
		return "unknown"
	}
}

// Error is a (kind, message, position) failure. Node is set when a specific
// syntax tree node is at fault.
type Error struct {
	Kind    Kind
	Message string
	Pos     ast.Position
	Node    ast.Node
	Err     error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	if !e.Pos.IsZero() {
		sb.WriteString(" at ")
		sb.WriteString(e.Pos.String())
	}
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinels below, so callers can write
// errors.Is(err, diag.ErrUnresolvedLabel).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Node == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrUnmatchedConstruct  = &Error{Kind: UnmatchedConstruct}
	ErrUnresolvedLabel     = &Error{Kind: UnresolvedLabel}
	ErrUnbalancedControl   = &Error{Kind: UnbalancedControl}
	ErrInvalidInput        = &Error{Kind: InvalidInput}
	ErrBackendConstruction = &Error{Kind: BackendConstruction}
	ErrNonConvergence      = &Error{Kind: NonConvergence}
)

// Newf builds an error of the given kind at pos.
func Newf(kind Kind, pos ast.Position, format string, args ...any) *Error {
	return &Error{Kind: kind, Pos: pos, Message: fmt.Sprintf(format, args...)}
}

// AtNode builds an error blaming a specific node.
func AtNode(kind Kind, node ast.Node, format string, args ...any) *Error {
	return &Error{Kind: kind, Pos: node.Position(), Node: node, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: err, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var d *Error
	if errors.As(err, &d) {
		return d.Kind
	}
	return KindUnknown
}

// List collects several failures of one stage into a single error.
type List struct {
	merr *multierror.Error
}

// Add appends err to the list; nil is ignored.
func (l *List) Add(err error) {
	if err == nil {
		return
	}
	l.merr = multierror.Append(l.merr, err)
	l.merr.ErrorFormat = formatList
}

// Len returns the number of collected errors.
func (l *List) Len() int {
	if l.merr == nil {
		return 0
	}
	return l.merr.Len()
}

// Err returns nil for an empty list, the sole error for a list of one,
// and a combined error otherwise.
func (l *List) Err() error {
	switch l.Len() {
	case 0:
		return nil
	case 1:
		return l.merr.Errors[0]
	default:
		return l.merr.ErrorOrNil()
	}
}

func formatList(errs []error) string {
	lines := make([]string, len(errs))
	for i, err := range errs {
		lines[i] = "  " + err.Error()
	}
	return fmt.Sprintf("%d errors:\n%s", len(errs), strings.Join(lines, "\n"))
}
