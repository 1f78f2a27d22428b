// Package ir provides the IR builder that lowers the syntax tree with word resolution.
package ir

import (
	"strconv"
	"strings"

	"github.com/chazu/forthc/pkg/ast"
	"github.com/chazu/forthc/pkg/diag"
)

// WordKind says how a word lowers.
type WordKind int

const (
	WordBuiltin WordKind = iota
	WordControl
	WordUser
)

// WordDecl is a dictionary entry.
type WordDecl struct {
	Name  string
	Kind  WordKind
	Instr Instruction // for builtins
}

// Scope tracks word bindings for name resolution. The root scope holds the
// built-in vocabulary; user definitions live in a child scope.
type Scope struct {
	parent   *Scope
	bindings map[string]WordDecl
}

// NewScope creates a new scope with the given parent.
func NewScope(parent *Scope) *Scope {
	return &Scope{
		parent:   parent,
		bindings: make(map[string]WordDecl),
	}
}

// Define adds a word binding to the scope. Names are case-insensitive.
func (s *Scope) Define(name string, decl WordDecl) {
	s.bindings[strings.ToUpper(name)] = decl
}

// Resolve looks up a word in this scope and parent scopes.
func (s *Scope) Resolve(name string) (WordDecl, bool) {
	if decl, ok := s.bindings[strings.ToUpper(name)]; ok {
		return decl, true
	}
	if s.parent != nil {
		return s.parent.Resolve(name)
	}
	return WordDecl{}, false
}

var builtinWords = map[string]Instruction{
	"DUP":    Simple(OpDup),
	"DROP":   Simple(OpDrop),
	"SWAP":   Simple(OpSwap),
	"OVER":   Simple(OpOver),
	"ROT":    Simple(OpRot),
	"+":      Simple(OpAdd),
	"-":      Simple(OpSub),
	"*":      Simple(OpMul),
	"/":      Simple(OpDiv),
	"MOD":    Simple(OpMod),
	"NEGATE": Simple(OpNeg),
	"=":      Simple(OpEq),
	"<>":     Simple(OpNe),
	"<":      Simple(OpLt),
	">":      Simple(OpGt),
	"<=":     Simple(OpLe),
	">=":     Simple(OpGe),
	"AND":    Simple(OpAnd),
	"OR":     Simple(OpOr),
	"NOT":    Simple(OpNot),
	".":      Simple(OpPrint),
	".S":     Simple(OpPrintStack),
	"EMIT":   Simple(OpEmit),
	"TYPE":   Simple(OpType),
	"KEY":    Simple(OpKey),
	"CR":     Simple(OpNewline),
	"SPACE":  Simple(OpSpace),
	"BL":     Push(32),
	"I":      LoopIndex(0),
	"J":      LoopIndex(1),
	"EXIT":   Simple(OpReturn),
}

var controlWords = []string{"IF", "ELSE", "THEN", "DO", "?DO", "LOOP", "BEGIN", "UNTIL", "AGAIN", "WHILE", "REPEAT"}

// RootScope returns a scope holding the built-in vocabulary.
func RootScope() *Scope {
	s := NewScope(nil)
	for name, in := range builtinWords {
		s.Define(name, WordDecl{Name: name, Kind: WordBuiltin, Instr: in})
	}
	for _, name := range controlWords {
		s.Define(name, WordDecl{Name: name, Kind: WordControl})
	}
	return s
}

type controlKind int

const (
	ctlIf controlKind = iota
	ctlElse
	ctlDo
	ctlBegin
	ctlWhile
)

type controlFrame struct {
	kind  controlKind
	word  *ast.Word
	first Label // else / loop body / begin
	end   Label // endif / loop exit / while exit
}

// Builder lowers a syntax tree to an unoptimized IR program.
type Builder struct {
	program *ast.Program
	scope   *Scope

	fn      *Function
	labels  int
	control []controlFrame
	errors  diag.List
}

// NewBuilder creates a new builder for the given program.
func NewBuilder(program *ast.Program) *Builder {
	b := &Builder{
		program: program,
		scope:   NewScope(RootScope()),
	}
	for _, def := range program.Definitions() {
		b.scope.Define(def.Name, WordDecl{Name: strings.ToUpper(def.Name), Kind: WordUser})
	}
	return b
}

// Lower is shorthand for NewBuilder(program).Build().
func Lower(program *ast.Program) (*Program, error) {
	return NewBuilder(program).Build()
}

// Build lowers every definition to a function and the remaining top-level
// code to main. Each word lowers to exactly one instruction, except control
// words, which lower to jumps and synthesized labels. Calls are not checked
// here; see Validate.
func (b *Builder) Build() (*Program, error) {
	prog := NewProgram()

	b.begin(prog.Main)
	for _, node := range b.program.Body {
		if def, ok := node.(*ast.Definition); ok {
			fn := &Function{Name: strings.ToUpper(def.Name)}
			outer, outerLabels, outerControl := b.fn, b.labels, b.control
			b.begin(fn)
			for _, n := range def.Body {
				b.lower(n)
			}
			b.finish()
			fn.Emit(Instruction{Op: OpReturn, Pos: def.Pos})
			prog.Add(fn)
			b.fn, b.labels, b.control = outer, outerLabels, outerControl
			continue
		}
		b.lower(node)
	}
	b.finish()

	if err := b.errors.Err(); err != nil {
		return nil, err
	}
	return prog, nil
}

func (b *Builder) begin(fn *Function) {
	b.fn = fn
	b.labels = 0
	b.control = nil
}

// finish reports control structures left open at the end of a function.
func (b *Builder) finish() {
	for _, frame := range b.control {
		b.errors.Add(diag.AtNode(diag.UnbalancedControl, frame.word, "%s in %s is never closed", frame.word.Name, b.fn.Name))
	}
	b.control = nil
}

func (b *Builder) newLabel(base string) Label {
	l := Label(base + "_" + strconv.Itoa(b.labels))
	b.labels++
	return l
}

func (b *Builder) emit(pos ast.Position, ins ...Instruction) {
	for i := range ins {
		ins[i].Pos = pos
	}
	b.fn.Emit(ins...)
}

func (b *Builder) lower(node ast.Node) {
	switch n := node.(type) {
	case *ast.Number:
		b.emit(n.Pos, Push(n.Value))
	case *ast.String:
		for i := 0; i < len(n.Value); i++ {
			b.emit(n.Pos, Push(int64(n.Value[i])))
		}
		b.emit(n.Pos, Push(int64(len(n.Value))))
	case *ast.Word:
		b.lowerWord(n)
	case *ast.Definition:
		b.errors.Add(diag.AtNode(diag.InvalidInput, n, "definition of %s nested inside %s", n.Name, b.fn.Name))
	default:
		b.errors.Add(diag.AtNode(diag.InvalidInput, node, "unexpected %s node", ast.Kind(node)))
	}
}

func (b *Builder) lowerWord(w *ast.Word) {
	decl, ok := b.scope.Resolve(w.Name)
	switch {
	case !ok, decl.Kind == WordUser:
		b.emit(w.Pos, Call(strings.ToUpper(w.Name)))
	case decl.Kind == WordBuiltin:
		b.emit(w.Pos, decl.Instr)
	default:
		b.lowerControl(w, decl.Name)
	}
}

func (b *Builder) lowerControl(w *ast.Word, name string) {
	switch name {
	case "IF":
		elseL := b.newLabel("else")
		b.emit(w.Pos, Jump(OpJumpIfNot, elseL))
		b.push(controlFrame{kind: ctlIf, word: w, first: elseL})
	case "ELSE":
		frame, ok := b.pop(w, ctlIf)
		if !ok {
			return
		}
		endL := b.newLabel("endif")
		b.emit(w.Pos, Jump(OpJump, endL), LabelAt(frame.first))
		b.push(controlFrame{kind: ctlElse, word: w, end: endL})
	case "THEN":
		frame, ok := b.pop(w, ctlIf, ctlElse)
		if !ok {
			return
		}
		if frame.kind == ctlIf {
			b.emit(w.Pos, LabelAt(frame.first))
		} else {
			b.emit(w.Pos, LabelAt(frame.end))
		}
	case "DO":
		body := b.newLabel("do")
		b.emit(w.Pos, Simple(OpLoopEnter), LabelAt(body))
		b.push(controlFrame{kind: ctlDo, word: w, first: body})
	case "?DO":
		body, end := b.newLabel("do"), b.newLabel("loop_end")
		b.emit(w.Pos, Simple(OpLoopEnter), Simple(OpLoopTest), Jump(OpJumpIfNot, end), LabelAt(body))
		b.push(controlFrame{kind: ctlDo, word: w, first: body, end: end})
	case "LOOP":
		frame, ok := b.pop(w, ctlDo)
		if !ok {
			return
		}
		b.emit(w.Pos, Simple(OpLoopNext), Jump(OpJumpIf, frame.first))
		if frame.end != "" {
			b.emit(w.Pos, LabelAt(frame.end))
		}
	case "BEGIN":
		start := b.newLabel("begin")
		b.emit(w.Pos, LabelAt(start))
		b.push(controlFrame{kind: ctlBegin, word: w, first: start})
	case "UNTIL":
		if frame, ok := b.pop(w, ctlBegin); ok {
			b.emit(w.Pos, Jump(OpJumpIfNot, frame.first))
		}
	case "AGAIN":
		if frame, ok := b.pop(w, ctlBegin); ok {
			b.emit(w.Pos, Jump(OpJump, frame.first))
		}
	case "WHILE":
		frame, ok := b.pop(w, ctlBegin)
		if !ok {
			return
		}
		end := b.newLabel("while_end")
		b.emit(w.Pos, Jump(OpJumpIfNot, end))
		b.push(controlFrame{kind: ctlWhile, word: w, first: frame.first, end: end})
	case "REPEAT":
		if frame, ok := b.pop(w, ctlWhile); ok {
			b.emit(w.Pos, Jump(OpJump, frame.first), LabelAt(frame.end))
		}
	}
}

func (b *Builder) push(f controlFrame) {
	b.control = append(b.control, f)
}

// pop removes the innermost control frame, which must be one of kinds.
func (b *Builder) pop(w *ast.Word, kinds ...controlKind) (controlFrame, bool) {
	if len(b.control) == 0 {
		b.errors.Add(diag.AtNode(diag.UnbalancedControl, w, "%s without a matching opener", strings.ToUpper(w.Name)))
		return controlFrame{}, false
	}
	top := b.control[len(b.control)-1]
	for _, k := range kinds {
		if top.kind == k {
			b.control = b.control[:len(b.control)-1]
			return top, true
		}
	}
	b.errors.Add(diag.AtNode(diag.UnbalancedControl, w, "%s cannot close %s", strings.ToUpper(w.Name), strings.ToUpper(top.word.Name)))
	return controlFrame{}, false
}
