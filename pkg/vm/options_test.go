package vm

import (
	"testing"

	"escore/pkg/bytecode"
)

// buildSuperCallProgram assembles a bare SUPER_CALL opcode, just enough to
// exercise the ES2015 gate on GroupSuperCall without a real derived-class
// constructor (the gate fires before execSuperCall ever inspects the frame).
func buildSuperCallProgram() *bytecode.CompiledCode {
	a := bytecode.NewAssembler("super_probe", 0, 0, 0)
	a.Emit(bytecode.OpNewArray, 1) // execSuperCall pops an args array first
	a.Emit(bytecode.OpSuperCall, 1)
	a.Emit(bytecode.OpReturnUndefined, 1)
	a.SetStackLimit(1)
	return a.Finish()
}

func TestES2015OffRejectsSuperCall(t *testing.T) {
	opts := DefaultOptions()
	opts.ES2015 = false
	vmi := NewVM(opts)
	_, thrown := vmi.RunProgram(buildSuperCallProgram())
	if thrown == nil {
		t.Fatalf("super() with ES2015 disabled must throw")
	}
	name, _ := thrown.Value.AsObject().(*PlainObject).GetOwn("name")
	if !name.IsString() || name.AsString() != "SyntaxError" {
		t.Fatalf("expected SyntaxError, got %+v", name)
	}
}

func TestES2015OnAllowsSuperCallToReachExecSuperCall(t *testing.T) {
	opts := DefaultOptions() // ES2015 true by default
	vmi := NewVM(opts)
	_, thrown := vmi.RunProgram(buildSuperCallProgram())
	// With ES2015 on, the gate does not fire; execSuperCall itself will
	// reject this malformed probe (no enclosing derived-class frame state),
	// but the failure must not be the SyntaxError the gate raises.
	if thrown == nil {
		return
	}
	name, _ := thrown.Value.AsObject().(*PlainObject).GetOwn("name")
	if name.IsString() && name.AsString() == "SyntaxError" {
		t.Fatalf("ES2015 enabled must not raise the feature-gate SyntaxError, got: %s", thrown.Value.ToStringValue())
	}
}

func TestErrorMessagesOffStripsFormattedMessage(t *testing.T) {
	opts := DefaultOptions()
	opts.ErrorMessages = false
	vmi := NewVM(opts)
	errVal := vmi.makeTypeError("Cannot read properties of undefined (reading 'x')")
	msg, _ := errVal.AsObject().(*PlainObject).GetOwn("message")
	if !msg.IsString() || msg.AsString() != "TypeError" {
		t.Fatalf("ErrorMessages=false must fall back to the bare error name, got %+v", msg)
	}
}

func TestErrorMessagesOnKeepsFormattedMessage(t *testing.T) {
	vmi := NewVM(DefaultOptions())
	errVal := vmi.makeTypeError("Cannot read properties of undefined (reading 'x')")
	msg, _ := errVal.AsObject().(*PlainObject).GetOwn("message")
	if !msg.IsString() || msg.AsString() != "Cannot read properties of undefined (reading 'x')" {
		t.Fatalf("ErrorMessages=true must keep the formatted message, got %+v", msg)
	}
}

func TestLookupCacheOffStillResolvesProperties(t *testing.T) {
	opts := DefaultOptions()
	opts.LookupCache = false
	_ = NewVM(opts) // sets the process-global lookupCacheOn flag to false
	defer setLookupCacheEnabled(true)

	proto := NewObjectValue(NewPlainObject(Undefined))
	o := NewPlainObject(proto)
	o.SetOwn("x", NewInteger(9))
	if f, _, ok := cachedFieldLookup(o.shape, keyFromString("x")); !ok || f.offset < 0 {
		t.Fatalf("property lookup must still succeed with LookupCache disabled")
	}
}

func TestExecStopHookAbortsBackwardBranch(t *testing.T) {
	opts := DefaultOptions()
	opts.ExecStop = true
	vmi := NewVM(opts)

	stopValue := NewString("cancelled")
	calls := 0
	vmi.StopHook = func() Value {
		calls++
		return stopValue
	}

	a := bytecode.NewAssembler("infinite_loop", 0, 0, 0)
	loopStart := a.Here()
	back := a.EmitBranch(bytecode.OpJumpBackward, 1)
	a.PatchBranch(back, loopStart)
	a.SetStackLimit(1)
	code := a.Finish()

	_, thrown := vmi.RunProgram(code)
	if thrown == nil {
		t.Fatalf("an ExecStop hook returning a non-undefined value must raise it as an exception")
	}
	if !thrown.Value.IsString() || thrown.Value.AsString() != "cancelled" {
		t.Fatalf("expected the stop-hook's return value to be the thrown value, got %+v", thrown.Value)
	}
	if calls == 0 {
		t.Fatalf("StopHook was never consulted")
	}
}

func TestExecStopOffNeverConsultsHook(t *testing.T) {
	vmi := NewVM(DefaultOptions()) // ExecStop defaults off
	called := false
	vmi.StopHook = func() Value { called = true; return NewString("should not matter") }

	result, thrown := vmi.RunProgram(demoSquareForOptionsTest())
	if thrown != nil {
		t.Fatalf("unexpected throw: %v", thrown.Value.ToStringValue())
	}
	if !result.IsInteger() || result.AsInteger() != 121 {
		t.Fatalf("got %+v, want 121", result)
	}
	if called {
		t.Fatalf("StopHook must not be consulted when Options.ExecStop is off")
	}
}

// demoSquareForOptionsTest mirrors internal/demo.SquareCall without an
// import (internal/demo imports pkg/vm, so pkg/vm can't import it back).
func demoSquareForOptionsTest() *bytecode.CompiledCode {
	fn := bytecode.NewAssembler("f", 1, 1, bytecode.IsFunction)
	fn.EmitLiteral(bytecode.OpLoadLiteral, 0, 1)
	fn.EmitLiteral(bytecode.OpLoadLiteral, 0, 1)
	fn.Emit(bytecode.OpMul, 1)
	fn.Emit(bytecode.OpReturn, 1)
	fn.SetStackLimit(2)
	fnCode := fn.Finish()

	a := bytecode.NewAssembler("square_call_probe", 0, 0, 0)
	sub := a.SubCode(fnCode)
	a.EmitLiteral(bytecode.OpNewFunction, sub, 1)
	eleven := a.Const(bytecode.Value(NewInteger(11)))
	a.EmitLiteral(bytecode.OpLoadLiteral, eleven, 2)
	a.Emit(bytecode.OpCall, 2)
	a.Emit(bytecode.OpReturn, 2)
	a.SetStackLimit(4)
	return a.Finish()
}

func TestDebuggerHooksFireWhenEnabled(t *testing.T) {
	opts := DefaultOptions()
	opts.Debugger = true
	vmi := NewVM(opts)

	breakpointHits := 0
	vmi.OnBreakpoint = func(f *Frame) { breakpointHits++ }
	var thrownSeen Value
	vmi.OnExceptionThrown = func(v Value) { thrownSeen = v }

	a := bytecode.NewAssembler("debug_probe", 0, 0, 0)
	a.Emit(bytecode.OpBreakpoint, 1)
	cx := a.Const(bytecode.Value(NewString("boom")))
	a.EmitLiteral(bytecode.OpLoadLiteral, cx, 2)
	a.Emit(bytecode.OpThrow, 2)
	a.SetStackLimit(1)
	code := a.Finish()

	_, thrown := vmi.RunProgram(code)
	if thrown == nil {
		t.Fatalf("expected the program to throw")
	}
	if breakpointHits != 1 {
		t.Fatalf("expected exactly 1 breakpoint hit, got %d", breakpointHits)
	}
	if !thrownSeen.IsString() || thrownSeen.AsString() != "boom" {
		t.Fatalf("OnExceptionThrown did not observe the thrown value, got %+v", thrownSeen)
	}
}

func TestLineInfoUpdatesFrameLineOnlyWhenEnabled(t *testing.T) {
	build := func(lineInfo bool) (int, *ThrownError) {
		opts := DefaultOptions()
		opts.LineInfo = lineInfo
		vmi := NewVM(opts)

		a := bytecode.NewAssembler("line_probe", 0, 0, 0)
		a.EmitLine(42, 1)
		a.Emit(bytecode.OpLoadUndefined, 1)
		a.Emit(bytecode.OpPop, 1)
		a.Emit(bytecode.OpReturnUndefined, 1)
		a.SetStackLimit(1)
		code := a.Finish()

		f := NewFrame(code, Undefined)
		f.LexEnv = vmi.globalEnv
		_, thrown := vmi.RunFrame(f)
		return f.Line, thrown
	}

	if line, thrown := build(true); thrown != nil || line != 42 {
		t.Fatalf("LineInfo=true: frame.Line = %d, thrown = %v, want 42, nil", line, thrown)
	}
	if line, thrown := build(false); thrown != nil || line != 0 {
		t.Fatalf("LineInfo=false: frame.Line = %d, thrown = %v, want 0 (untouched), nil", line, thrown)
	}
}
