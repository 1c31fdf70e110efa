package vm

import (
	"escore/pkg/bytecode"
	"escore/pkg/runtime"
)

// This file is the dispatch loop (spec component F): it decodes one opcode
// at a time, materializes its operands per the descriptor table in
// pkg/bytecode, and executes the matching semantic group. CALL and
// SPREAD_CALL never recurse into a nested Go call to run the callee; they
// push a Frame onto vm.frames and let this same loop pick it up next
// iteration, which is what bounds ECMAScript call depth by vm.frames'
// capacity rather than the host goroutine stack (spec §4G). CONSTRUCT and
// SUPER_CALL run the constructor through constructValue instead, a nested
// runFrame call on the Go stack.
// Grounded on the teacher's pkg/vm/vm.go run loop structure and debug-flag
// constants, rebuilt around this interpreter's context-record control flow
// instead of the teacher's register-VM exception table.

// Debug flags (grounded on the teacher's debugVM/debugCalls/debugExceptions
// constants). They are compile-time constants, not derived from Options,
// and no code path reads them.
const (
	debugOpcodes     = false
	debugCalls       = false
	debugExceptions  = false
)

// Options configures a VM instance (spec §6 "External Interfaces": the
// config-flag table the driver/CLI expose). Each flag in the table is
// modeled as an independently toggleable bool here, mirroring the source's
// independent compile-time switches (spec §6's table says each "must
// tolerate being independently on or off").
type Options struct {
	TraceOpcodes bool
	CacheStats   bool
	MaxFrames    int

	// ES2015 gates classes, spread calls, for-of, super and rest
	// parameters. Off, GroupClassLiteral/GroupSuperCall/GroupSpreadCall/
	// GroupRestCollect and for-of's GroupIteratorGet throw a SyntaxError
	// instead of executing, the way a build without the corresponding
	// compile-time switch would never have emitted (and so never needs to
	// run) that opcode in the first place. Arrows, generators, let/const
	// TDZ, new.target, Symbols and GroupIteratorStep are not gated.
	ES2015 bool
	// ModuleSystem gates RunModule and the module-init hook at global
	// entry; off, pkg/driver.RunModule refuses to run.
	ModuleSystem bool
	// LookupCache gates whether property.go/object.go consult the
	// process-global shape cache (spec §4E point 3) before the linear
	// prototype-chain scan.
	LookupCache bool
	// ErrorMessages gates whether thrown Error objects carry the formatted,
	// specific message (e.g. "Cannot read properties of undefined (reading
	// 'x')") or just the bare error-kind name.
	ErrorMessages bool
	// ExecStop gates the host stop-hook consultation on backward branches
	// (spec §5 "Cancellation"); see VM.StopHook.
	ExecStop bool
	// Snapshot records whether the host may hand this VM a CompiledCode
	// produced ahead-of-time from a shared/static region (spec §4B's
	// "snapshot" executables) rather than freshly generated per eval. This
	// module has no such ahead-of-time pipeline to toggle, so the flag is
	// carried but inert; a host embedding one would read it at the RunEval
	// boundary to decide whether to skip re-validating a cached CompiledCode.
	Snapshot bool
	// Debugger gates BREAKPOINT opcode handling (VM.OnBreakpoint) and
	// exception-thrown notification (VM.OnExceptionThrown).
	Debugger bool
	// LineInfo gates whether LINE opcodes update Frame.Line.
	LineInfo bool
}

func DefaultOptions() Options {
	return Options{
		MaxFrames:     10000,
		ES2015:        true,
		ModuleSystem:  true,
		LookupCache:   true,
		ErrorMessages: true,
	}
}

// VM owns the frame stack, the global environment, and the realm's
// intrinsic prototypes. One VM serves one realm; a pkg/driver Session
// constructs one and reuses it across all of its Run calls.
type VM struct {
	frames    []*Frame
	globalEnv *LexEnv
	globalObj Value

	objectProto   Value
	arrayProto    Value
	functionProto Value
	stringProto   Value
	numberProto   Value
	booleanProto  Value
	promiseProto  Value
	regexpProto   Value
	generatorProto Value
	errProtos     errorPrototypes

	// pendingException carries a thrown value out of a getter/setter/Proxy
	// trap call made from inside property.go, which has no *ThrownError
	// return path of its own; a pointer (not a sentinel Value) so a script
	// that throws `undefined` itself can't be confused with "nothing
	// pending".
	pendingException *Value
	pendingReturn    *Value

	Options Options
	async   runtime.AsyncRuntime

	// ConsoleWriter receives console.log's arguments; the driver installs
	// this to route output to its chosen writer instead of pkg/vm reaching
	// for os.Stdout directly.
	ConsoleWriter func(args []Value)

	// StopHook is the host's cancellation callback, consulted at each
	// backward branch when Options.ExecStop is set (spec §5
	// "Cancellation"). Returning a non-undefined value raises that value as
	// an exception in the frame that hit the branch.
	StopHook func() Value
	// OnBreakpoint fires for a BREAKPOINT opcode when Options.Debugger is
	// set (spec §6 "debugger hook surface").
	OnBreakpoint func(f *Frame)
	// OnExceptionThrown fires once per throw, before the unwinder searches
	// for a handler, when Options.Debugger is set.
	OnExceptionThrown func(v Value)
}

func NewVM(opts Options) *VM {
	vmi := &VM{Options: opts}
	vmi.globalEnv = NewDeclarativeEnv(nil)
	vmi.async = runtime.NewDefaultAsyncRuntime()
	setLookupCacheEnabled(opts.LookupCache)
	initGlobals(vmi)
	return vmi
}

// Global exposes the global environment record so the driver can declare
// top-level bindings before running a program (spec §6 RunGlobal).
func (vmi *VM) Global() *LexEnv { return vmi.globalEnv }

// GlobalThis exposes the realm's globalThis object as the indirect-eval and
// top-level this-binding the driver needs (spec §4H run_eval).
func (vmi *VM) GlobalThis() Value { return vmi.globalObj }

// RunFrame exposes runFrame to pkg/driver: eval and module code both need
// to run a frame whose LexEnv/This were set up by the caller (run_eval's
// direct/indirect distinction, run_module's pre-resolved bindings) rather
// than RunProgram's always-fresh-global-frame shape.
func (vmi *VM) RunFrame(f *Frame) (Value, *ThrownError) { return vmi.runFrame(f) }

// stepKind is the outcome of executing one opcode.
type stepKind uint8

const (
	stepContinue stepKind = iota
	stepPushFrame
	stepReturn
	stepThrow
	stepYield
)

type stepOutcome struct {
	kind  stepKind
	frame *Frame
	value Value
}

func outcomeContinue() stepOutcome      { return stepOutcome{kind: stepContinue} }
func outcomePush(f *Frame) stepOutcome  { return stepOutcome{kind: stepPushFrame, frame: f} }
func outcomeReturn(v Value) stepOutcome { return stepOutcome{kind: stepReturn, value: v} }
func outcomeThrow(v Value) stepOutcome  { return stepOutcome{kind: stepThrow, value: v} }
func outcomeYield(v Value) stepOutcome  { return stepOutcome{kind: stepYield, value: v} }

// RunProgram executes a top-level script or module body (spec component H
// RunGlobal/RunModule): a fresh frame rooted at the global environment.
func (vmi *VM) RunProgram(code *bytecode.CompiledCode) (Value, *ThrownError) {
	frame := NewFrame(code, vmi.globalObj)
	frame.LexEnv = vmi.globalEnv
	return vmi.runFrame(frame)
}

// runFrame drives the dispatch loop until the frame it was given (and
// anything it calls) unwinds back below its own starting depth. base tracks
// that starting depth so nested runFrame calls (callValue's bounded-
// recursion path) never touch frames that belong to an outer runFrame call.
func (vmi *VM) runFrame(initial *Frame) (Value, *ThrownError) {
	base := len(vmi.frames)
	vmi.frames = append(vmi.frames, initial)
	var pendingExc *Value

	for len(vmi.frames) > base {
		if vmi.Options.MaxFrames > 0 && len(vmi.frames) > vmi.Options.MaxFrames {
			return Undefined, NewThrownError(vmi.makeRangeError("Maximum call stack size exceeded"))
		}
		f := vmi.frames[len(vmi.frames)-1]

		if pendingExc != nil {
			if throwInFrame(vmi, f, *pendingExc) {
				pendingExc = nil
				continue
			}
			vmi.frames = vmi.frames[:len(vmi.frames)-1]
			continue
		}

		if f.alreadyComplete {
			result := f.completeValue
			vmi.frames = vmi.frames[:len(vmi.frames)-1]
			if len(vmi.frames) == base {
				return result, nil
			}
			vmi.deliverResult(vmi.frames[len(vmi.frames)-1], result)
			continue
		}

		outcome := vmi.step(f)
		switch outcome.kind {
		case stepContinue:
			// nothing to do; f.ip already advanced by step
		case stepPushFrame:
			vmi.frames = append(vmi.frames, outcome.frame)
		case stepReturn:
			vmi.frames = vmi.frames[:len(vmi.frames)-1]
			if len(vmi.frames) == base {
				return outcome.value, nil
			}
			vmi.deliverResult(vmi.frames[len(vmi.frames)-1], outcome.value)
		case stepThrow:
			if vmi.Options.Debugger && vmi.OnExceptionThrown != nil {
				vmi.OnExceptionThrown(outcome.value)
			}
			pendingExc = &outcome.value
		case stepYield:
			// YIELD only makes sense inside a generator's own resumable frame
			// stack (runGeneratorFrames in generator.go); reaching it here
			// means a generator function's frame was run through the
			// ordinary call protocol instead of wrapped by execCall.
			exc := vmi.makeSyntaxError("yield is only valid inside a generator")
			pendingExc = &exc
		}
	}

	if pendingExc != nil {
		return Undefined, NewThrownError(*pendingExc)
	}
	return Undefined, nil
}

// deliverResult hands a completed callee's result to its caller frame: if
// the caller was in the middle of a multi-step opcode that needed the
// callee's value to proceed (the call_operation / AwaitingCall re-entry
// point, spec §4G), it resumes that opcode; otherwise the value is simply
// pushed as the completed CALL/SPREAD_CALL expression's result.
func (vmi *VM) deliverResult(caller *Frame, v Value) {
	if caller.Pending != nil {
		vmi.resumePending(caller, v)
		return
	}
	caller.push(v)
}

func (vmi *VM) resumePending(f *Frame, v Value) {
	p := f.Pending
	f.Pending = nil
	switch p.Kind {
	case PendingSpreadCallNext:
		p.Collected = append(p.Collected, v)
		f.push(NewObjectValue(NewArrayObject(vmi.arrayProto, p.Collected)))
	default:
		f.push(v)
	}
}

func branchTarget(f *Frame, width int) int {
	off := f.Code.ReadBranchOffset(&f.ip, width)
	return f.ip + off
}

// checkStopHook consults the host's cancellation callback at a backward
// branch actually being taken (spec §5 "Cancellation": "the host's
// stop-hook is consulted at each backward branch; returning a non-undefined
// value raises that value as an exception"). Returns (outcome, true) when
// the hook fired and the step should abort with that outcome instead of
// completing the branch.
func (vmi *VM) checkStopHook() (stepOutcome, bool) {
	if !vmi.Options.ExecStop || vmi.StopHook == nil {
		return stepOutcome{}, false
	}
	if v := vmi.StopHook(); !v.IsUndefined() {
		return outcomeThrow(v), true
	}
	return stepOutcome{}, false
}

// step executes exactly one opcode of f and reports what the loop should do
// next. Operand conventions: GroupArithmetic/Bitwise/Comparison pop right
// then left (the right-hand operand was pushed last); property ops pop
// value then base where both are stack operands; PostIncr pushes [old, new]
// and PreIncr pushes only the new value, so a following PUT_IDENT/PUT_PROP
// can store the updated value while a postfix expression's own completion
// value stays underneath.
func (vmi *VM) step(f *Frame) stepOutcome {
	op := bytecode.OpCode(f.Code.Code[f.ip])
	f.ip++
	desc, ok := bytecode.DescriptorFor(op)
	if !ok {
		return outcomeThrow(vmi.makeRangeError("invalid opcode"))
	}

	switch desc.Group {
	case bytecode.GroupMove:
		return vmi.execMove(f, op)
	case bytecode.GroupArithmetic:
		return vmi.execArithmetic(f, op)
	case bytecode.GroupBitwise:
		return vmi.execBitwise(f, op)
	case bytecode.GroupComparison:
		return vmi.execComparison(f, op)
	case bytecode.GroupLogicalNot:
		v := f.pop()
		f.push(NewBoolean(!v.ToBoolean()))
		return outcomeContinue()
	case bytecode.GroupPreIncrDecr, bytecode.GroupPostIncrDecr:
		return vmi.execIncrDecr(f, op, desc.Group == bytecode.GroupPreIncrDecr)
	case bytecode.GroupPropIncrDecr:
		return vmi.execPropIncrDecr(f, op)
	case bytecode.GroupIdentGet:
		return vmi.execGetIdent(f)
	case bytecode.GroupIdentPut:
		return vmi.execPutIdent(f)
	case bytecode.GroupPropertyGet:
		return vmi.execGetProp(f, op)
	case bytecode.GroupPropertySet:
		return vmi.execSetProp(f, op)
	case bytecode.GroupPropertyDelete:
		return vmi.execDeleteProp(f)
	case bytecode.GroupJump:
		target := branchTarget(f, desc.BranchWidth)
		if desc.Backward {
			if out, abort := vmi.checkStopHook(); abort {
				return out
			}
		}
		f.ip = target
		return outcomeContinue()
	case bytecode.GroupCondJump:
		cond := f.pop().ToBoolean()
		target := branchTarget(f, desc.BranchWidth)
		takeIfFalse := op == bytecode.OpBranchIfFalse || op == bytecode.OpBranchIfFalseB
		if (takeIfFalse && !cond) || (!takeIfFalse && cond) {
			if desc.Backward {
				if out, abort := vmi.checkStopHook(); abort {
					return out
				}
			}
			f.ip = target
		}
		return outcomeContinue()
	case bytecode.GroupShortCircuitJump:
		v := f.peek()
		target := branchTarget(f, desc.BranchWidth)
		wantTrue := op == bytecode.OpBranchIfLogicalTrue
		if v.ToBoolean() == wantTrue {
			f.ip = target
		} else {
			f.pop()
		}
		return outcomeContinue()
	case bytecode.GroupObjectLiteral:
		f.push(NewObjectValue(NewPlainObject(vmi.objectProto)))
		return outcomeContinue()
	case bytecode.GroupArrayLiteral:
		return vmi.execArrayLiteral(f, op)
	case bytecode.GroupFunctionLiteral:
		return vmi.execNewFunction(f)
	case bytecode.GroupClassLiteral:
		if !vmi.Options.ES2015 {
			return outcomeThrow(vmi.makeSyntaxError("classes require ES2015"))
		}
		return vmi.execNewClass(f)
	case bytecode.GroupIteratorGet:
		if !vmi.Options.ES2015 {
			return outcomeThrow(vmi.makeSyntaxError("for-of/spread require ES2015"))
		}
		iterable := f.pop()
		iter, thrown := getIterator(vmi, iterable)
		if thrown != nil {
			return outcomeThrow(thrown.Value)
		}
		f.push(iter)
		return outcomeContinue()
	case bytecode.GroupIteratorStep:
		return vmi.execIteratorStep(f, op)
	case bytecode.GroupRestCollect:
		if !vmi.Options.ES2015 {
			return outcomeThrow(vmi.makeSyntaxError("rest parameters require ES2015"))
		}
		return vmi.execRestCollect(f)
	case bytecode.GroupThrow:
		return outcomeThrow(f.pop())
	case bytecode.GroupThrowReference:
		idx := f.Code.ReadLiteralIndex(&f.ip)
		name := normalizeIdent(f.Code.Ident(idx))
		return outcomeThrow(vmi.makeReferenceError(name + " is not defined"))
	case bytecode.GroupThrowConstAssign:
		idx := f.Code.ReadLiteralIndex(&f.ip)
		name := normalizeIdent(f.Code.Ident(idx))
		return outcomeThrow(vmi.makeTypeError("Assignment to constant variable '" + name + "'."))
	case bytecode.GroupContextTry:
		target := branchTarget(f, desc.BranchWidth)
		f.pushContext(ContextRecord{Kind: ContextTry, CatchTarget: target})
		return outcomeContinue()
	case bytecode.GroupContextFinally:
		target := branchTarget(f, desc.BranchWidth)
		f.pushContext(ContextRecord{Kind: ContextTry, HasFinally: true, FinallyTarget: target})
		return outcomeContinue()
	case bytecode.GroupContextCatch:
		return vmi.execEnterCatch(f)
	case bytecode.GroupContextWith:
		return vmi.execEnterWith(f)
	case bytecode.GroupContextForIn:
		return vmi.execEnterForIn(f)
	case bytecode.GroupContextForOf:
		return vmi.execEnterForOf(f)
	case bytecode.GroupContextBlock:
		f.pushContext(ContextRecord{Kind: ContextBlock})
		return outcomeContinue()
	case bytecode.GroupContextEnd:
		return vmi.execContextEnd(f)
	case bytecode.GroupCall:
		return vmi.execCall(f)
	case bytecode.GroupConstruct:
		return vmi.execConstruct(f)
	case bytecode.GroupSuperCall:
		if !vmi.Options.ES2015 {
			return outcomeThrow(vmi.makeSyntaxError("super requires ES2015"))
		}
		return vmi.execSuperCall(f)
	case bytecode.GroupSpreadCall:
		if !vmi.Options.ES2015 {
			return outcomeThrow(vmi.makeSyntaxError("spread calls require ES2015"))
		}
		return vmi.execSpreadCall(f)
	case bytecode.GroupLineInfo:
		if vmi.Options.LineInfo {
			f.Line = int(f.Code.Code[f.ip])<<8 | int(f.Code.Code[f.ip+1])
		}
		f.ip += 2
		return outcomeContinue()
	case bytecode.GroupBreakpoint:
		if vmi.Options.Debugger && vmi.OnBreakpoint != nil {
			vmi.OnBreakpoint(f)
		}
		return outcomeContinue()
	case bytecode.GroupAwait:
		return vmi.execAwait(f)
	case bytecode.GroupYield:
		return vmi.execYield(f)
	default:
		return outcomeContinue()
	}
}

func (vmi *VM) execMove(f *Frame, op bytecode.OpCode) stepOutcome {
	switch op {
	case bytecode.OpLoadLiteral:
		idx := f.Code.ReadLiteralIndex(&f.ip)
		f.push(vmi.resolveLiteral(f, idx))
	case bytecode.OpLoadUndefined:
		f.push(Undefined)
	case bytecode.OpLoadNull:
		f.push(Null)
	case bytecode.OpLoadTrue:
		f.push(True)
	case bytecode.OpLoadFalse:
		f.push(False)
	case bytecode.OpLoadThis:
		f.push(f.This)
	case bytecode.OpDup:
		f.push(f.peek())
	case bytecode.OpPop:
		f.pop()
	case bytecode.OpMove:
		f.push(f.peek())
	case bytecode.OpReturn:
		return vmi.execReturn(f, f.pop())
	case bytecode.OpReturnUndefined:
		return vmi.execReturn(f, Undefined)
	}
	return outcomeContinue()
}

// execReturn implements a RETURN/RETURN_UNDEFINED opcode: if the frame has
// a pending finally block on its context stack, the return value can't
// propagate yet — the finally must run first, and may itself override the
// return with its own completion (spec §12's pending-finally-precedence
// rule, same as throwInFrame's ContextTry/HasFinally branch in
// exceptions.go). With no enclosing finally, the return completes the
// frame directly.
func (vmi *VM) execReturn(f *Frame, v Value) stepOutcome {
	if idx, ok := findFinally(f); ok {
		target := f.Contexts[idx].FinallyTarget
		contextAbort(vmi, f, idx)
		f.pushContext(ContextRecord{
			Kind:              ContextFinallyReturn,
			FinallyTarget:     target,
			PendingCompletion: &Completion{Kind: CompletionReturn, Value: v},
		})
		f.ip = target
		return outcomeContinue()
	}
	return outcomeReturn(v)
}

// resolveLiteral materializes a literal-table reference per its segment
// (spec §4B): a register index copies the current register value, a
// constant is pushed as-is, and a sub-function/regexp entry is
// materialized fresh (function literals always produce a new closure;
// regexp literals always produce a new RegExp object, matching
// ECMAScript's per-evaluation object identity for both).
func (vmi *VM) resolveLiteral(f *Frame, idx uint16) Value {
	switch f.Code.ClassifyLiteral(idx) {
	case bytecode.LiteralRegister:
		return f.Registers[idx]
	case bytecode.LiteralConst:
		if v, ok := f.Code.Constant(idx).(Value); ok {
			return v
		}
		return Undefined
	case bytecode.LiteralSubCode:
		if sub := f.Code.SubCodeAt(idx); sub != nil {
			return vmi.materializeClosure(f, sub)
		}
		if lit, ok := f.Code.RegexpAt(idx); ok {
			return vmi.materializeRegexp(lit)
		}
		return Undefined
	default: // LiteralIdent: resolve through the lexical environment chain
		idxName := normalizeIdent(f.Code.Ident(idx))
		env := f.LexEnv.Resolve(idxName)
		if env == nil {
			return Undefined
		}
		v, _, _ := env.GetBindingValue(idxName)
		return v
	}
}
