package vm

import "escore/pkg/bytecode"

// Frame is the per-invocation execution context (spec component C): a
// register file, an operand-stack window, a cursor into the bytecode
// stream, and the lexical environment and this-binding in effect. One
// Frame exists per call/construct/generator-resume; the VM keeps an
// explicit stack of these (vm.frames) rather than recursing in Go, which is
// what lets CALL/SPREAD_CALL re-enter iteratively instead of growing the
// host stack one Go frame per ECMAScript call (spec §4G); CONSTRUCT and
// SUPER_CALL run their callee through a nested runFrame instead.
type Frame struct {
	Code       *bytecode.CompiledCode
	Registers  []Value
	Stack      []Value // operand stack, sized to Code.StackLimit; push appends past that if needed
	sp         int
	ip         int
	Contexts   []ContextRecord // the context-stack machine (component D)
	LexEnv     *LexEnv
	This       Value
	NewTarget  Value
	HomeObject Value
	Closure    *ClosureObject

	// Line is the source line of the most recently executed LINE opcode,
	// updated only when Options.LineInfo is set (spec §6's LINE_INFO config
	// flag); used for stack-trace/debugger surfaces layered on top of this
	// module, not consulted by the dispatch loop itself.
	Line int

	// BlockResult carries the completion value threaded through nested
	// blocks/try-finally so RETURN-from-finally and expression-statement
	// value production both have somewhere to read the "last evaluated
	// value" from (spec §4D point on BLOCK contexts).
	BlockResult Value

	// Pending is non-nil while this frame is waiting on a call it issued to
	// another frame to complete before it can continue (the call_operation
	// / AwaitingCall re-entry point of spec §4G). The dispatch loop checks
	// this immediately after popping a completed callee frame instead of
	// falling through to ordinary opcode fetch.
	Pending *PendingOp

	// Generator/async suspension point; nil for ordinary function frames.
	Suspend *SuspendState

	// alreadyComplete marks a synthetic frame wrapping a value that never
	// needed dispatch (a native function's return value, or a Proxy trap's
	// result): the call-protocol loop in vm.go pops it immediately instead
	// of stepping its (nonexistent) bytecode.
	alreadyComplete bool
	completeValue   Value
}

// PendingOp records what a multi-step opcode was doing when it had to call
// into script code (a Proxy trap, an iterator's next(), a getter) and
// therefore had to suspend itself and let the callee run as its own frame.
// Kind selects which resume function in vm.go continues the work once the
// callee's result is available in Resumed.
type PendingOp struct {
	Kind      PendingKind
	Iterator  Value // for-of / spread-call: the iterator object being driven
	Collected []Value // spread-call: elements gathered so far
	DestReg   int     // register the final result should land in
	ExtraInt  int     // opcode-specific scratch (e.g. which argument index)
	ExtraVal  Value
}

type PendingKind uint8

const (
	PendingNone PendingKind = iota
	PendingSpreadCallNext
	PendingForOfNext
	PendingIteratorClose
	PendingSuperCallArgs
)

// SuspendState captures a generator/async frame paused at a YIELD/AWAIT
// opcode (spec §5, component matching pkg/runtime's AsyncRuntime).
type SuspendState struct {
	Done      bool
	SentValue Value // value resumed with (the argument to .next()/.throw())
	IsThrow   bool
}

func NewFrame(code *bytecode.CompiledCode, this Value) *Frame {
	return &Frame{
		Code:      code,
		Registers: make([]Value, code.RegisterEnd),
		Stack:     make([]Value, code.StackLimit),
		This:      this,
		NewTarget: Undefined,
	}
}

func (f *Frame) push(v Value) {
	if f.sp >= len(f.Stack) {
		f.Stack = append(f.Stack, v)
		f.sp++
		return
	}
	f.Stack[f.sp] = v
	f.sp++
}

func (f *Frame) pop() Value {
	f.sp--
	v := f.Stack[f.sp]
	f.Stack[f.sp] = Value{}
	return v
}

func (f *Frame) peek() Value { return f.Stack[f.sp-1] }

func (f *Frame) depth() int { return f.sp }

// pushContext/popContext/topContext manage the context-stack machine
// (component D); the records themselves are defined in context.go.
func (f *Frame) pushContext(c ContextRecord) { f.Contexts = append(f.Contexts, c) }
func (f *Frame) popContext() ContextRecord {
	n := len(f.Contexts) - 1
	c := f.Contexts[n]
	f.Contexts = f.Contexts[:n]
	return c
}
func (f *Frame) topContext() (ContextRecord, bool) {
	if len(f.Contexts) == 0 {
		return ContextRecord{}, false
	}
	return f.Contexts[len(f.Contexts)-1], true
}
