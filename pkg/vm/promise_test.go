package vm

import "testing"

func TestPromiseThenRunsAsAMicrotaskAfterResolve(t *testing.T) {
	vmi := NewVM(DefaultOptions())
	p := newPendingPromise()

	var gotValue Value
	var ran bool
	onFulfilled := NewNativeFunction("", 1, func(vmi *VM, _ Value, args []Value, _ Value) (Value, *ThrownError) {
		ran = true
		gotValue = argOrUndefined(args, 0)
		return NewInteger(99), nil
	})
	result := vmi.promiseThen(p, NewObjectValue(onFulfilled), Undefined)

	vmi.resolvePromise(p, NewString("ok"))
	if ran {
		t.Fatalf("the reaction must not run synchronously inside resolvePromise; it belongs on the microtask queue")
	}

	vmi.DrainMicrotasks()
	if !ran || !gotValue.IsString() || gotValue.AsString() != "ok" {
		t.Fatalf("reaction did not run with the resolved value: ran=%v value=%+v", ran, gotValue)
	}
	if result.state != promiseFulfilled || result.result.AsInteger() != 99 {
		t.Fatalf("the promise .then() returns should settle with the handler's return value, got state=%v value=%+v", result.state, result.result)
	}
}

func TestPromiseRejectionPropagatesThroughMissingHandler(t *testing.T) {
	vmi := NewVM(DefaultOptions())
	p := newPendingPromise()
	result := vmi.promiseThen(p, Undefined, Undefined)

	vmi.rejectPromise(p, NewString("boom"))
	vmi.DrainMicrotasks()

	if result.state != promiseRejected || result.result.AsString() != "boom" {
		t.Fatalf("a .then() with no onRejected handler must forward the rejection unchanged, got state=%v value=%+v", result.state, result.result)
	}
}

func TestResolvingWithAnotherPromiseChainsInsteadOfSettling(t *testing.T) {
	vmi := NewVM(DefaultOptions())
	outer := newPendingPromise()
	inner := newPendingPromise()

	vmi.resolvePromise(outer, NewObjectValue(inner))
	if outer.state != promisePending {
		t.Fatalf("resolving with a thenable must not settle immediately; it chains onto it")
	}

	vmi.resolvePromise(inner, NewInteger(7))
	vmi.DrainMicrotasks()
	if outer.state != promiseFulfilled || outer.result.AsInteger() != 7 {
		t.Fatalf("outer promise should adopt inner's eventual value, got state=%v value=%+v", outer.state, outer.result)
	}
}

func TestAwaitSynchronouslyDrainsUntilSettled(t *testing.T) {
	vmi := NewVM(DefaultOptions())
	p := newPendingPromise()
	vmi.async.ScheduleMicrotask(func() { vmi.resolvePromise(p, NewInteger(5)) })

	f := NewFrame(buildYieldTwiceThenReturn(), Undefined) // any frame; only used for its stack
	f.push(NewObjectValue(p))
	outcome := vmi.execAwait(f)
	if outcome.kind != stepContinue {
		t.Fatalf("await of a promise that settles during the drain should continue, got kind=%v", outcome.kind)
	}
	got := f.pop()
	if !got.IsInteger() || got.AsInteger() != 5 {
		t.Fatalf("await should push the fulfilled value, got %+v", got)
	}
}

func TestAwaitOfRejectedPromiseThrows(t *testing.T) {
	vmi := NewVM(DefaultOptions())
	p := newPendingPromise()
	vmi.rejectPromise(p, NewString("nope"))

	f := NewFrame(buildYieldTwiceThenReturn(), Undefined)
	f.push(NewObjectValue(p))
	outcome := vmi.execAwait(f)
	if outcome.kind != stepThrow || outcome.value.AsString() != "nope" {
		t.Fatalf("await of an already-rejected promise should throw its reason, got kind=%v value=%+v", outcome.kind, outcome.value)
	}
}

func TestAwaitOfNonThenableResolvesToItself(t *testing.T) {
	vmi := NewVM(DefaultOptions())
	f := NewFrame(buildYieldTwiceThenReturn(), Undefined)
	f.push(NewInteger(42))
	outcome := vmi.execAwait(f)
	if outcome.kind != stepContinue {
		t.Fatalf("awaiting a non-thenable should continue immediately, got kind=%v", outcome.kind)
	}
	if got := f.pop(); !got.IsInteger() || got.AsInteger() != 42 {
		t.Fatalf("awaiting a non-thenable must resolve to itself unchanged, got %+v", got)
	}
}
