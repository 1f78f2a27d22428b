package ir

// Op is the tag of an Instruction. The set is closed; AllOps lists it.
type Op int

const (
	// Stack primitives
	OpPush Op = iota
	OpPop
	OpDup
	OpDrop
	OpSwap
	OpOver
	OpRot

	// Arithmetic
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg

	// Comparison, true is -1
	OpEq
	OpNe
	OpLt
	OpGt
	OpLe
	OpGe

	// Logic on flags
	OpAnd
	OpOr
	OpNot

	// I/O
	OpPrint
	OpPrintStack
	OpEmit
	OpType
	OpKey
	OpNewline
	OpSpace

	// Control flow, labels are function-local
	OpLabel
	OpJump
	OpJumpIf
	OpJumpIfNot
	OpCall
	OpReturn

	// Counted loops
	OpLoopEnter
	OpLoopTest
	OpLoopNext
	OpLoopIndex

	// Metadata
	OpComment
	OpNop

	// Forms introduced by the optimizer, never by lowering
	OpLoadConst
	OpBinaryOp
	OpUnaryOp
	OpStackGet
	OpStackSet
	OpStackAlloc
	OpStackFree

	numOps
)

type opInfo struct {
	name     string
	requires int // items that must be on the stack
	pops     int
	pushes   int
	pure     bool // removable when the result is dropped unread
}

var opTable = [numOps]opInfo{
	OpPush:       {"push", 0, 0, 1, true},
	OpPop:        {"pop", 1, 1, 0, false},
	OpDup:        {"dup", 1, 1, 2, true},
	OpDrop:       {"drop", 1, 1, 0, false},
	OpSwap:       {"swap", 2, 2, 2, false},
	OpOver:       {"over", 2, 2, 3, true},
	OpRot:        {"rot", 3, 3, 3, false},
	OpAdd:        {"add", 2, 2, 1, false},
	OpSub:        {"sub", 2, 2, 1, false},
	OpMul:        {"mul", 2, 2, 1, false},
	OpDiv:        {"div", 2, 2, 1, false},
	OpMod:        {"mod", 2, 2, 1, false},
	OpNeg:        {"neg", 1, 1, 1, false},
	OpEq:         {"eq", 2, 2, 1, false},
	OpNe:         {"ne", 2, 2, 1, false},
	OpLt:         {"lt", 2, 2, 1, false},
	OpGt:         {"gt", 2, 2, 1, false},
	OpLe:         {"le", 2, 2, 1, false},
	OpGe:         {"ge", 2, 2, 1, false},
	OpAnd:        {"and", 2, 2, 1, false},
	OpOr:         {"or", 2, 2, 1, false},
	OpNot:        {"not", 1, 1, 1, false},
	OpPrint:      {"print", 1, 1, 0, false},
	OpPrintStack: {"print_stack", 0, 0, 0, false},
	OpEmit:       {"emit", 1, 1, 0, false},
	OpType:       {"type", 1, 1, 0, false},
	OpKey:        {"key", 0, 0, 1, false},
	OpNewline:    {"cr", 0, 0, 0, false},
	OpSpace:      {"space", 0, 0, 0, false},
	OpLabel:      {"label", 0, 0, 0, false},
	OpJump:       {"jump", 0, 0, 0, false},
	OpJumpIf:     {"jump_if", 1, 1, 0, false},
	OpJumpIfNot:  {"jump_if_not", 1, 1, 0, false},
	OpCall:       {"call", 0, 0, 0, false},
	OpReturn:     {"return", 0, 0, 0, false},
	OpLoopEnter:  {"loop_enter", 2, 2, 0, false},
	OpLoopTest:   {"loop_test", 0, 0, 1, false},
	OpLoopNext:   {"loop_next", 0, 0, 1, false},
	OpLoopIndex:  {"loop_index", 0, 0, 1, true},
	OpComment:    {"comment", 0, 0, 0, false},
	OpNop:        {"nop", 0, 0, 0, false},
	OpLoadConst:  {"load_const", 0, 0, 1, true},
	OpBinaryOp:   {"binary_op", 0, 0, 1, true},
	OpUnaryOp:    {"unary_op", 0, 0, 1, true},
	OpStackGet:   {"stack_get", 0, 0, 1, true},
	OpStackSet:   {"stack_set", 1, 1, 0, false},
	OpStackAlloc: {"stack_alloc", 0, 0, 0, false},
	OpStackFree:  {"stack_free", 0, 0, 0, false},
}

func (o Op) String() string {
	if o < 0 || o >= numOps {
		return "unknown"
	}
	return opTable[o].name
}

// AllOps returns every instruction tag in declaration order.
func AllOps() []Op {
	ops := make([]Op, numOps)
	for i := range ops {
		ops[i] = Op(i)
	}
	return ops
}

// IsBinary reports whether o pops two operands and pushes one result.
func (o Op) IsBinary() bool {
	return o >= OpAdd && o <= OpOr && o != OpNeg && o != OpNot
}

// IsUnary reports whether o transforms the top of stack in place.
func (o Op) IsUnary() bool {
	return o == OpNeg || o == OpNot
}

// IsJump reports whether o transfers control to a label.
func (o Op) IsJump() bool {
	return o == OpJump || o == OpJumpIf || o == OpJumpIfNot
}

// IsBarrier reports whether o ends straight-line reasoning about the stack:
// control can arrive from or leave to somewhere else, or the depth it
// leaves behind depends on run-time data.
func (o Op) IsBarrier() bool {
	switch o {
	case OpLabel, OpJump, OpJumpIf, OpJumpIfNot, OpCall, OpReturn,
		OpLoopEnter, OpLoopTest, OpLoopNext, OpType, OpStackAlloc, OpStackFree:
		return true
	}
	return false
}

// Pure reports whether an instruction with this tag only pushes a value
// derived from existing state, so it can be deleted together with a Drop
// that discards its result.
func (o Op) Pure() bool { return opTable[o].pure }
