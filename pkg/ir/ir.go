// Package ir defines the stack-machine intermediate representation used
// between lowering and code generation. It provides:
// - the instruction, value and function model
// - lowering from the syntax tree (Builder)
// - stack-effect analysis and label validation
// - a reference interpreter (Machine) used to check optimizations
package ir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/forthc/pkg/ast"
)

// ValueKind distinguishes operand kinds.
type ValueKind int

const (
	ValueConstant ValueKind = iota
	ValueStackTop
	ValueStackPos
	ValueVariable
	ValueTemporary
)

func (k ValueKind) String() string {
	switch k {
	case ValueStackTop:
		return "stack_top"
	case ValueStackPos:
		return "stack_pos"
	case ValueVariable:
		return "variable"
	case ValueTemporary:
		return "temporary"
	default:
		return "constant"
	}
}

// Value is an instruction operand. StackPos indexes from the top: 0 is the
// top item, 1 the one below it.
type Value struct {
	Kind  ValueKind
	Int   int64  // Constant
	Index int    // StackPos
	Name  string // Variable
	ID    int    // Temporary
}

func Const(c int64) Value        { return Value{Kind: ValueConstant, Int: c} }
func StackTop() Value            { return Value{Kind: ValueStackTop} }
func StackPos(i int) Value       { return Value{Kind: ValueStackPos, Index: i} }
func Variable(name string) Value { return Value{Kind: ValueVariable, Name: name} }
func Temporary(id int) Value     { return Value{Kind: ValueTemporary, ID: id} }

// Constant returns the value of a constant operand.
func (v Value) Constant() (int64, bool) {
	if v.Kind == ValueConstant {
		return v.Int, true
	}
	return 0, false
}

// Depth returns the stack depth a stack operand reads, or -1.
func (v Value) Depth() int {
	switch v.Kind {
	case ValueStackTop:
		return 0
	case ValueStackPos:
		return v.Index
	default:
		return -1
	}
}

func (v Value) String() string {
	switch v.Kind {
	case ValueStackTop:
		return "top"
	case ValueStackPos:
		return "s" + strconv.Itoa(v.Index)
	case ValueVariable:
		return "$" + v.Name
	case ValueTemporary:
		return "%t" + strconv.Itoa(v.ID)
	default:
		return strconv.FormatInt(v.Int, 10)
	}
}

// Label names a jump target within one function.
type Label string

// Instruction is one IR operation. Which fields are meaningful depends on Op:
//
//	Push, LoadConst           Value (a constant)
//	Pop, StackSet             Value is the destination; Pop with a constant discards
//	StackGet                  Value is the source
//	BinaryOp, UnaryOp         Kind is the operator, Args the operands
//	Label, Jump, JumpIf(Not)  Label
//	Call                      Callee
//	LoopIndex                 N is the loop depth (0 = innermost)
//	StackAlloc, StackFree     N is the number of slots
//	Comment                   Text
type Instruction struct {
	Op     Op
	Value  Value
	Kind   Op
	Args   []Value
	Label  Label
	Callee string
	N      int
	Text   string
	Pos    ast.Position
}

func Push(c int64) Instruction      { return Instruction{Op: OpPush, Value: Const(c)} }
func LoadConst(c int64) Instruction { return Instruction{Op: OpLoadConst, Value: Const(c)} }
func Simple(op Op) Instruction      { return Instruction{Op: op} }
func Jump(op Op, l Label) Instruction {
	return Instruction{Op: op, Label: l}
}
func LabelAt(l Label) Instruction      { return Instruction{Op: OpLabel, Label: l} }
func Call(name string) Instruction     { return Instruction{Op: OpCall, Callee: name} }
func Comment(text string) Instruction  { return Instruction{Op: OpComment, Text: text} }
func LoopIndex(depth int) Instruction  { return Instruction{Op: OpLoopIndex, N: depth} }
func StackGet(src Value) Instruction   { return Instruction{Op: OpStackGet, Value: src} }
func StackSet(dst Value) Instruction   { return Instruction{Op: OpStackSet, Value: dst} }
func StackAlloc(n int) Instruction     { return Instruction{Op: OpStackAlloc, N: n} }
func StackFree(n int) Instruction      { return Instruction{Op: OpStackFree, N: n} }
func PopInto(dst Value) Instruction    { return Instruction{Op: OpPop, Value: dst} }
func UnaryOp(op Op, a Value) Instruction {
	return Instruction{Op: OpUnaryOp, Kind: op, Args: []Value{a}}
}
func BinaryOp(op Op, a, b Value) Instruction {
	return Instruction{Op: OpBinaryOp, Kind: op, Args: []Value{a, b}}
}

// PushedConstant returns c when the instruction pushes the constant c.
func (in Instruction) PushedConstant() (int64, bool) {
	if in.Op == OpPush || in.Op == OpLoadConst {
		return in.Value.Constant()
	}
	return 0, false
}

// Equal compares two instructions ignoring position.
func (in Instruction) Equal(other Instruction) bool {
	if in.Op != other.Op || in.Value != other.Value || in.Kind != other.Kind ||
		in.Label != other.Label || in.Callee != other.Callee || in.N != other.N ||
		in.Text != other.Text || len(in.Args) != len(other.Args) {
		return false
	}
	for i := range in.Args {
		if in.Args[i] != other.Args[i] {
			return false
		}
	}
	return true
}

func (in Instruction) String() string {
	switch in.Op {
	case OpPush, OpLoadConst, OpStackGet, OpStackSet:
		return in.Op.String() + " " + in.Value.String()
	case OpPop:
		if in.Value.Kind == ValueVariable || in.Value.Kind == ValueTemporary {
			return "pop " + in.Value.String()
		}
		return "pop"
	case OpBinaryOp, OpUnaryOp:
		args := make([]string, len(in.Args))
		for i, a := range in.Args {
			args[i] = a.String()
		}
		return fmt.Sprintf("%s %s(%s)", in.Op, in.Kind, strings.Join(args, ", "))
	case OpLabel:
		return string(in.Label) + ":"
	case OpJump, OpJumpIf, OpJumpIfNot:
		return in.Op.String() + " " + string(in.Label)
	case OpCall:
		return "call " + in.Callee
	case OpLoopIndex, OpStackAlloc, OpStackFree:
		return in.Op.String() + " " + strconv.Itoa(in.N)
	case OpComment:
		return "; " + in.Text
	default:
		return in.Op.String()
	}
}

// Effect returns how many items the instruction needs on the stack, pops and
// pushes. Calls are resolved through effects; unknown callees count as (0, 0).
func (in Instruction) Effect(effects map[string]StackEffect) (requires, pops, pushes int) {
	info := opTable[in.Op]
	requires, pops, pushes = info.requires, info.pops, info.pushes
	switch in.Op {
	case OpBinaryOp, OpUnaryOp:
		for _, a := range in.Args {
			if d := a.Depth(); d+1 > requires {
				requires = d + 1
			}
		}
	case OpStackGet:
		requires = in.Value.Depth() + 1
	case OpStackSet:
		if d := in.Value.Depth(); d >= 0 {
			requires = d + 2
		}
	case OpStackAlloc:
		pushes = in.N
	case OpStackFree:
		requires, pops = in.N, in.N
	case OpCall:
		if e, ok := effects[in.Callee]; ok {
			requires, pops, pushes = e.Consumes, e.Consumes, e.Produces
		}
	}
	return requires, pops, pushes
}

// StackEffect is a function's declared arity.
type StackEffect struct {
	Consumes int
	Produces int
}

// Function is a named instruction sequence.
type Function struct {
	Name         string
	Instructions []Instruction
	Effect       StackEffect
	nextTemp     int
}

// NewTemp allocates a temporary unique within the function.
func (f *Function) NewTemp() Value {
	v := Temporary(f.nextTemp)
	f.nextTemp++
	return v
}

// Emit appends instructions.
func (f *Function) Emit(ins ...Instruction) {
	f.Instructions = append(f.Instructions, ins...)
}

// Clone returns a deep copy.
func (f *Function) Clone() *Function {
	cp := *f
	cp.Instructions = make([]Instruction, len(f.Instructions))
	for i, in := range f.Instructions {
		if in.Args != nil {
			in.Args = append([]Value(nil), in.Args...)
		}
		cp.Instructions[i] = in
	}
	return &cp
}

func (f *Function) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "function %s (consumes: %d, produces: %d):\n", f.Name, f.Effect.Consumes, f.Effect.Produces)
	for _, in := range f.Instructions {
		if in.Op == OpLabel {
			sb.WriteString(in.String())
		} else {
			sb.WriteString("  ")
			sb.WriteString(in.String())
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// MainName is the name of the function holding top-level code.
const MainName = "main"

// Program is a main function plus named user functions, kept in definition order.
type Program struct {
	Main      *Function
	Functions map[string]*Function
	order     []string
}

func NewProgram() *Program {
	return &Program{
		Main:      &Function{Name: MainName},
		Functions: make(map[string]*Function),
	}
}

// Add registers fn, replacing an earlier function of the same name in place.
func (p *Program) Add(fn *Function) {
	if _, ok := p.Functions[fn.Name]; !ok {
		p.order = append(p.order, fn.Name)
	}
	p.Functions[fn.Name] = fn
}

// Remove deletes the named function.
func (p *Program) Remove(name string) {
	if _, ok := p.Functions[name]; !ok {
		return
	}
	delete(p.Functions, name)
	for i, n := range p.order {
		if n == name {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// Names returns user function names in definition order.
func (p *Program) Names() []string {
	return append([]string(nil), p.order...)
}

// All returns the user functions in definition order followed by main.
func (p *Program) All() []*Function {
	fns := make([]*Function, 0, len(p.order)+1)
	for _, name := range p.order {
		fns = append(fns, p.Functions[name])
	}
	return append(fns, p.Main)
}

// Effects returns the declared effect of every user function.
func (p *Program) Effects() map[string]StackEffect {
	effects := make(map[string]StackEffect, len(p.Functions))
	for name, fn := range p.Functions {
		effects[name] = fn.Effect
	}
	return effects
}

// Clone returns a deep copy.
func (p *Program) Clone() *Program {
	cp := &Program{
		Main:      p.Main.Clone(),
		Functions: make(map[string]*Function, len(p.Functions)),
		order:     append([]string(nil), p.order...),
	}
	for name, fn := range p.Functions {
		cp.Functions[name] = fn.Clone()
	}
	return cp
}

func (p *Program) String() string {
	var sb strings.Builder
	for _, fn := range p.All() {
		sb.WriteString(fn.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Sample returns a representative instruction for op. Backends render the
// sample of every op once at construction to prove their mapping is complete.
func Sample(op Op) Instruction {
	switch op {
	case OpPush:
		return Push(1)
	case OpLoadConst:
		return LoadConst(1)
	case OpPop:
		return PopInto(Variable("x"))
	case OpLabel:
		return LabelAt("sample")
	case OpJump, OpJumpIf, OpJumpIfNot:
		return Jump(op, "sample")
	case OpCall:
		return Call("SAMPLE")
	case OpLoopIndex:
		return LoopIndex(0)
	case OpComment:
		return Comment("sample")
	case OpBinaryOp:
		return BinaryOp(OpAdd, StackPos(1), StackTop())
	case OpUnaryOp:
		return UnaryOp(OpNeg, StackTop())
	case OpStackGet:
		return StackGet(StackPos(1))
	case OpStackSet:
		return StackSet(StackPos(1))
	case OpStackAlloc:
		return StackAlloc(2)
	case OpStackFree:
		return StackFree(2)
	default:
		return Simple(op)
	}
}
