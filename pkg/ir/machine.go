package ir

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrStackUnderflow = errors.New("stack underflow")
	ErrDivisionByZero = errors.New("division by zero")
	ErrStepLimit      = errors.New("step limit exceeded")
	ErrCallDepth      = errors.New("call depth exceeded")
	ErrUnknownWord    = errors.New("unknown word")
	ErrNoLoop         = errors.New("loop index outside loop")
)

// Default machine limits.
const (
	DefaultMaxSteps = 1_000_000
	DefaultMaxDepth = 1000
)

// Flag converts a condition to a Forth flag: true is -1, false is 0.
func Flag(b bool) int64 {
	if b {
		return -1
	}
	return 0
}

// EvalBinary applies a binary operator to a (second) and b (top). Arithmetic
// wraps on overflow.
func EvalBinary(op Op, a, b int64) (int64, error) {
	switch op {
	case OpAdd:
		return a + b, nil
	case OpSub:
		return a - b, nil
	case OpMul:
		return a * b, nil
	case OpDiv:
		if b == 0 {
			return 0, ErrDivisionByZero
		}
		return a / b, nil
	case OpMod:
		if b == 0 {
			return 0, ErrDivisionByZero
		}
		return a % b, nil
	case OpEq:
		return Flag(a == b), nil
	case OpNe:
		return Flag(a != b), nil
	case OpLt:
		return Flag(a < b), nil
	case OpGt:
		return Flag(a > b), nil
	case OpLe:
		return Flag(a <= b), nil
	case OpGe:
		return Flag(a >= b), nil
	case OpAnd:
		return Flag(a != 0 && b != 0), nil
	case OpOr:
		return Flag(a != 0 || b != 0), nil
	}
	return 0, fmt.Errorf("%s is not a binary operator", op)
}

// EvalUnary applies Neg or Not.
func EvalUnary(op Op, a int64) (int64, error) {
	switch op {
	case OpNeg:
		return -a, nil
	case OpNot:
		return Flag(a == 0), nil
	}
	return 0, fmt.Errorf("%s is not a unary operator", op)
}

type loopFrame struct {
	index, limit int64
}

// Machine executes IR programs directly. It is the reference semantics the
// backends and the optimizer are checked against.
type Machine struct {
	Stack    []int64
	Out      io.Writer
	MaxSteps int
	MaxDepth int

	in    *bufio.Reader
	loops []loopFrame
	vars  map[string]int64
	steps int
	prog  *Program
}

// NewMachine creates a machine writing to out and reading KEY input from in.
// Either may be nil.
func NewMachine(out io.Writer, in io.Reader) *Machine {
	if out == nil {
		out = io.Discard
	}
	if in == nil {
		in = strings.NewReader("")
	}
	return &Machine{
		Out:      out,
		MaxSteps: DefaultMaxSteps,
		MaxDepth: DefaultMaxDepth,
		in:       bufio.NewReader(in),
		vars:     make(map[string]int64),
	}
}

// Run executes the main function of prog. The data stack is left in Stack.
func (m *Machine) Run(prog *Program) error {
	m.prog = prog
	m.steps = 0
	return m.call(prog.Main, 0)
}

// Output runs prog on a fresh machine and returns everything it printed.
func Output(prog *Program, input string) (string, error) {
	var sb strings.Builder
	err := NewMachine(&sb, strings.NewReader(input)).Run(prog)
	return sb.String(), err
}

type frame struct {
	temps map[int]int64
}

func (m *Machine) call(fn *Function, depth int) error {
	if depth > m.MaxDepth {
		return fmt.Errorf("%s: %w", fn.Name, ErrCallDepth)
	}
	labels := make(map[Label]int)
	for i, in := range fn.Instructions {
		if in.Op == OpLabel {
			labels[in.Label] = i
		}
	}
	fr := &frame{temps: make(map[int]int64)}

	for pc := 0; pc < len(fn.Instructions); pc++ {
		m.steps++
		if m.MaxSteps > 0 && m.steps > m.MaxSteps {
			return ErrStepLimit
		}
		in := fn.Instructions[pc]

		switch in.Op {
		case OpReturn:
			return nil
		case OpJump, OpJumpIf, OpJumpIfNot:
			take := true
			if in.Op != OpJump {
				v, err := m.pop()
				if err != nil {
					return m.fault(fn, in, err)
				}
				take = (v != 0) == (in.Op == OpJumpIf)
			}
			if !take {
				continue
			}
			target, ok := labels[in.Label]
			if !ok {
				return m.fault(fn, in, fmt.Errorf("undefined label %s", in.Label))
			}
			pc = target
		case OpCall:
			callee, ok := m.prog.Functions[in.Callee]
			if !ok {
				return m.fault(fn, in, fmt.Errorf("%w %s", ErrUnknownWord, in.Callee))
			}
			if err := m.call(callee, depth+1); err != nil {
				return err
			}
		default:
			if err := m.step(fr, in); err != nil {
				return m.fault(fn, in, err)
			}
		}
	}
	return nil
}

func (m *Machine) fault(fn *Function, in Instruction, err error) error {
	if in.Pos.IsZero() {
		return fmt.Errorf("%s: %s: %w", fn.Name, in, err)
	}
	return fmt.Errorf("%s at %s: %s: %w", fn.Name, in.Pos, in, err)
}

func (m *Machine) step(fr *frame, in Instruction) error {
	switch in.Op {
	case OpPush, OpLoadConst:
		m.push(in.Value.Int)
	case OpPop:
		v, err := m.pop()
		if err != nil {
			return err
		}
		m.store(fr, in.Value, v)
	case OpDup:
		return m.copy(0)
	case OpOver:
		return m.copy(1)
	case OpDrop:
		_, err := m.pop()
		return err
	case OpSwap:
		if err := m.need(2); err != nil {
			return err
		}
		n := len(m.Stack)
		m.Stack[n-1], m.Stack[n-2] = m.Stack[n-2], m.Stack[n-1]
	case OpRot:
		if err := m.need(3); err != nil {
			return err
		}
		n := len(m.Stack)
		a := m.Stack[n-3]
		m.Stack[n-3], m.Stack[n-2], m.Stack[n-1] = m.Stack[n-2], m.Stack[n-1], a
	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpEq, OpNe, OpLt, OpGt, OpLe, OpGe, OpAnd, OpOr:
		b, err := m.pop()
		if err != nil {
			return err
		}
		a, err := m.pop()
		if err != nil {
			return err
		}
		r, err := EvalBinary(in.Op, a, b)
		if err != nil {
			return err
		}
		m.push(r)
	case OpNeg, OpNot:
		a, err := m.pop()
		if err != nil {
			return err
		}
		r, _ := EvalUnary(in.Op, a)
		m.push(r)
	case OpBinaryOp:
		a, err := m.load(fr, in.Args[0])
		if err != nil {
			return err
		}
		b, err := m.load(fr, in.Args[1])
		if err != nil {
			return err
		}
		r, err := EvalBinary(in.Kind, a, b)
		if err != nil {
			return err
		}
		m.push(r)
	case OpUnaryOp:
		a, err := m.load(fr, in.Args[0])
		if err != nil {
			return err
		}
		r, err := EvalUnary(in.Kind, a)
		if err != nil {
			return err
		}
		m.push(r)
	case OpStackGet:
		v, err := m.load(fr, in.Value)
		if err != nil {
			return err
		}
		m.push(v)
	case OpStackSet:
		v, err := m.pop()
		if err != nil {
			return err
		}
		if d := in.Value.Depth(); d >= 0 {
			if err := m.need(d + 1); err != nil {
				return err
			}
			m.Stack[len(m.Stack)-1-d] = v
			return nil
		}
		m.store(fr, in.Value, v)
	case OpStackAlloc:
		for i := 0; i < in.N; i++ {
			m.push(0)
		}
	case OpStackFree:
		if err := m.need(in.N); err != nil {
			return err
		}
		m.Stack = m.Stack[:len(m.Stack)-in.N]
	case OpPrint:
		v, err := m.pop()
		if err != nil {
			return err
		}
		fmt.Fprintf(m.Out, "%d ", v)
	case OpPrintStack:
		fmt.Fprintf(m.Out, "<%d> ", len(m.Stack))
		for _, v := range m.Stack {
			fmt.Fprintf(m.Out, "%d ", v)
		}
	case OpEmit:
		v, err := m.pop()
		if err != nil {
			return err
		}
		m.Out.Write([]byte{byte(v)})
	case OpType:
		n, err := m.pop()
		if err != nil {
			return err
		}
		if n < 0 || int(n) > len(m.Stack) {
			return ErrStackUnderflow
		}
		start := len(m.Stack) - int(n)
		buf := make([]byte, 0, n)
		for _, c := range m.Stack[start:] {
			buf = append(buf, byte(c))
		}
		m.Stack = m.Stack[:start]
		m.Out.Write(buf)
	case OpKey:
		c, err := m.in.ReadByte()
		if err != nil {
			m.push(-1)
		} else {
			m.push(int64(c))
		}
	case OpNewline:
		io.WriteString(m.Out, "\n")
	case OpSpace:
		io.WriteString(m.Out, " ")
	case OpLoopEnter:
		index, err := m.pop()
		if err != nil {
			return err
		}
		limit, err := m.pop()
		if err != nil {
			return err
		}
		m.loops = append(m.loops, loopFrame{index: index, limit: limit})
	case OpLoopTest:
		if len(m.loops) == 0 {
			return ErrNoLoop
		}
		top := m.loops[len(m.loops)-1]
		if top.index != top.limit {
			m.push(-1)
		} else {
			m.loops = m.loops[:len(m.loops)-1]
			m.push(0)
		}
	case OpLoopNext:
		if len(m.loops) == 0 {
			return ErrNoLoop
		}
		top := &m.loops[len(m.loops)-1]
		top.index++
		if top.index < top.limit {
			m.push(-1)
		} else {
			m.loops = m.loops[:len(m.loops)-1]
			m.push(0)
		}
	case OpLoopIndex:
		if in.N >= len(m.loops) {
			return ErrNoLoop
		}
		m.push(m.loops[len(m.loops)-1-in.N].index)
	case OpLabel, OpComment, OpNop:
	default:
		return fmt.Errorf("cannot execute %s", in.Op)
	}
	return nil
}

func (m *Machine) push(v int64) { m.Stack = append(m.Stack, v) }

func (m *Machine) pop() (int64, error) {
	if len(m.Stack) == 0 {
		return 0, ErrStackUnderflow
	}
	v := m.Stack[len(m.Stack)-1]
	m.Stack = m.Stack[:len(m.Stack)-1]
	return v, nil
}

func (m *Machine) need(n int) error {
	if len(m.Stack) < n {
		return ErrStackUnderflow
	}
	return nil
}

func (m *Machine) copy(depth int) error {
	if err := m.need(depth + 1); err != nil {
		return err
	}
	m.push(m.Stack[len(m.Stack)-1-depth])
	return nil
}

func (m *Machine) load(fr *frame, v Value) (int64, error) {
	switch v.Kind {
	case ValueConstant:
		return v.Int, nil
	case ValueStackTop, ValueStackPos:
		d := v.Depth()
		if err := m.need(d + 1); err != nil {
			return 0, err
		}
		return m.Stack[len(m.Stack)-1-d], nil
	case ValueVariable:
		return m.vars[v.Name], nil
	default:
		return fr.temps[v.ID], nil
	}
}

func (m *Machine) store(fr *frame, v Value, x int64) {
	switch v.Kind {
	case ValueVariable:
		m.vars[v.Name] = x
	case ValueTemporary:
		fr.temps[v.ID] = x
	}
}
