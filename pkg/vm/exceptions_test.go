package vm

import (
	"escore/pkg/bytecode"
	"testing"
)

func newBareFrame() *Frame {
	return NewFrame(&bytecode.CompiledCode{}, Undefined)
}

func TestThrowInFrameJumpsToCatchTarget(t *testing.T) {
	vmi := NewVM(DefaultOptions())
	f := newBareFrame()
	f.pushContext(ContextRecord{Kind: ContextTry, CatchTarget: 42})

	if !throwInFrame(vmi, f, NewString("boom")) {
		t.Fatalf("a ContextTry with a catch target should claim the exception")
	}
	if f.ip != 42 {
		t.Fatalf("f.ip = %d, want 42 (the catch target)", f.ip)
	}
	if f.BlockResult.AsString() != "boom" {
		t.Fatalf("the thrown value should be stashed in BlockResult for the catch binding, got %+v", f.BlockResult)
	}
	if len(f.Contexts) != 0 {
		t.Fatalf("the claiming context should be popped, got %d remaining", len(f.Contexts))
	}
}

func TestThrowInFrameRunsFinallyWhenNoCatch(t *testing.T) {
	vmi := NewVM(DefaultOptions())
	f := newBareFrame()
	f.pushContext(ContextRecord{Kind: ContextTry, HasFinally: true, FinallyTarget: 99})

	if !throwInFrame(vmi, f, NewString("boom")) {
		t.Fatalf("a ContextTry with HasFinally and no catch target must still claim the exception to run its finally")
	}
	if f.ip != 99 {
		t.Fatalf("f.ip = %d, want 99 (the finally target)", f.ip)
	}
	top, ok := f.topContext()
	if !ok || top.Kind != ContextFinallyThrow {
		t.Fatalf("a ContextFinallyThrow record should be pushed to carry the pending throw, got %+v ok=%v", top, ok)
	}
	if top.PendingCompletion == nil || top.PendingCompletion.Kind != CompletionThrow {
		t.Fatalf("the pending completion should record the throw, got %+v", top.PendingCompletion)
	}
}

func TestThrowInFrameClosesForOfIteratorOnTheWayOut(t *testing.T) {
	vmi := NewVM(DefaultOptions())
	f := newBareFrame()
	closeCalled := false
	iterObj := NewPlainObject(Undefined)
	returnFn := NewNativeFunction("return", 0, func(vmi *VM, _ Value, args []Value, _ Value) (Value, *ThrownError) {
		closeCalled = true
		return Undefined, nil
	})
	iterObj.SetOwn("return", NewObjectValue(returnFn))
	f.pushContext(ContextRecord{Kind: ContextForOf, Iterator: NewObjectValue(iterObj)})

	if throwInFrame(vmi, f, NewString("boom")) {
		t.Fatalf("a bare ContextForOf record never claims the exception itself")
	}
	if !closeCalled {
		t.Fatalf("throwInFrame must close the for-of iterator while unwinding past it")
	}
}

func TestThrowInFrameReturnsFalseWhenNoHandler(t *testing.T) {
	vmi := NewVM(DefaultOptions())
	f := newBareFrame()
	if throwInFrame(vmi, f, NewString("boom")) {
		t.Fatalf("a frame with no try/catch contexts must not claim the exception")
	}
}

func TestResumeFinallyRethrowsPendingThrowWhenNoOuterHandler(t *testing.T) {
	vmi := NewVM(DefaultOptions())
	f := newBareFrame()
	f.pushContext(ContextRecord{Kind: ContextFinallyThrow, PendingCompletion: &Completion{Kind: CompletionThrow, Value: NewString("orig")}})

	done, rethrew := resumeFinally(vmi, f)
	if !done || !rethrew {
		t.Fatalf("resumeFinally with no outer handler should report done=true, rethrew=true, got done=%v rethrew=%v", done, rethrew)
	}
	if vmi.pendingException == nil || vmi.pendingException.AsString() != "orig" {
		t.Fatalf("the original throw should be restored as the frame's pending exception, got %+v", vmi.pendingException)
	}
}

func TestResumeFinallyHonorsInnerThrowOverOuterTry(t *testing.T) {
	vmi := NewVM(DefaultOptions())
	f := newBareFrame()
	// An outer try still waiting to claim whatever the finally completes with.
	f.pushContext(ContextRecord{Kind: ContextTry, CatchTarget: 7})
	f.pushContext(ContextRecord{Kind: ContextFinallyThrow, PendingCompletion: &Completion{Kind: CompletionThrow, Value: NewString("orig")}})

	done, rethrew := resumeFinally(vmi, f)
	if done || !rethrew {
		t.Fatalf("resumeFinally should hand the pending throw to the outer try, got done=%v rethrew=%v", done, rethrew)
	}
	if f.ip != 7 {
		t.Fatalf("f.ip = %d, want 7 (the outer try's catch target)", f.ip)
	}
}

func TestResumeFinallyReturnSetsPendingReturn(t *testing.T) {
	vmi := NewVM(DefaultOptions())
	f := newBareFrame()
	f.pushContext(ContextRecord{Kind: ContextFinallyReturn, PendingCompletion: &Completion{Kind: CompletionReturn, Value: NewInteger(9)}})

	done, rethrew := resumeFinally(vmi, f)
	if !done || rethrew {
		t.Fatalf("a pending return with nothing further to do should report done=true, rethrew=false, got done=%v rethrew=%v", done, rethrew)
	}
	if vmi.pendingReturn == nil || vmi.pendingReturn.AsInteger() != 9 {
		t.Fatalf("the finally's pending return value should be installed as vmi.pendingReturn, got %+v", vmi.pendingReturn)
	}
}

func TestFindFinallySkipsNonTryRecordsAboveIt(t *testing.T) {
	f := newBareFrame()
	f.pushContext(ContextRecord{Kind: ContextTry, HasFinally: true})
	f.pushContext(ContextRecord{Kind: ContextCatch})

	idx, ok := findFinally(f)
	if !ok || idx != 0 {
		t.Fatalf("findFinally should find the try record beneath an intervening catch, got idx=%d ok=%v", idx, ok)
	}
}

func TestContextAbortRestoresLexEnvAndClosesForOfIterator(t *testing.T) {
	vmi := NewVM(DefaultOptions())
	f := newBareFrame()
	outer := NewDeclarativeEnv(nil)
	inner := NewDeclarativeEnv(outer)
	f.LexEnv = inner

	closed := false
	iterObj := NewPlainObject(Undefined)
	returnFn := NewNativeFunction("return", 0, func(vmi *VM, _ Value, args []Value, _ Value) (Value, *ThrownError) {
		closed = true
		return Undefined, nil
	})
	iterObj.SetOwn("return", NewObjectValue(returnFn))
	f.pushContext(ContextRecord{Kind: ContextForOf, Iterator: NewObjectValue(iterObj), Flags: ctxHasLexEnv | ctxCloseIterator, SavedEnv: outer})

	contextAbort(vmi, f, 0)

	if f.LexEnv != outer {
		t.Fatalf("contextAbort should restore the saved lexical environment")
	}
	if !closed {
		t.Fatalf("contextAbort should close an abandoned for-of iterator")
	}
	if len(f.Contexts) != 0 {
		t.Fatalf("contextAbort should pop every context down to upTo, got %d remaining", len(f.Contexts))
	}
}
