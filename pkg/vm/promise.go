package vm

// Promise support: a PromiseObject heap type plus the constructor and
// .then/.catch instance methods (there is no .finally), scheduled through
// runtime.AsyncRuntime's microtask queue rather than run synchronously.
// Grounded on the teacher's pkg/vm/async.go PromiseObject/PromiseReaction
// split, adapted from its TypePromise tagged-union slot (this interpreter's
// Value ABI has no room for a dedicated promise tag, so a PromiseObject is
// just another HeapObject behind TypeObject, matching how ArrayObject and
// FunctionObject already work).
type promiseState uint8

const (
	promisePending promiseState = iota
	promiseFulfilled
	promiseRejected
)

type promiseReaction struct {
	onFulfilled Value
	onRejected  Value
	result      *PromiseObject // the promise .then returns, to settle once this reaction runs
}

// PromiseObject is the heap representation backing every Promise value.
type PromiseObject struct {
	Object
	state    promiseState
	result   Value
	handled  bool
	reactions []promiseReaction
}

func (p *PromiseObject) heapKind() string { return "promise" }

func newPendingPromise() *PromiseObject {
	return &PromiseObject{state: promisePending}
}

func (vmi *VM) resolvePromise(p *PromiseObject, v Value) {
	if p.state != promisePending {
		return
	}
	if inner, ok := v.AsObject().(*PromiseObject); ok {
		// Resolving with another promise chains onto it instead of settling
		// immediately, per ECMAScript's PromiseResolveThenableJob.
		vmi.promiseThen(inner, NewObjectValue(NewNativeFunction("", 1, func(vmi *VM, _ Value, args []Value, _ Value) (Value, *ThrownError) {
			vmi.resolvePromise(p, argOrUndefined(args, 0))
			return Undefined, nil
		})), NewObjectValue(NewNativeFunction("", 1, func(vmi *VM, _ Value, args []Value, _ Value) (Value, *ThrownError) {
			vmi.rejectPromise(p, argOrUndefined(args, 0))
			return Undefined, nil
		})))
		return
	}
	p.state = promiseFulfilled
	p.result = v
	vmi.flushReactions(p)
}

func (vmi *VM) rejectPromise(p *PromiseObject, v Value) {
	if p.state != promisePending {
		return
	}
	p.state = promiseRejected
	p.result = v
	vmi.flushReactions(p)
}

func (vmi *VM) flushReactions(p *PromiseObject) {
	reactions := p.reactions
	p.reactions = nil
	for _, r := range reactions {
		r := r
		vmi.async.ScheduleMicrotask(func() { vmi.runReaction(p, r) })
	}
}

func (vmi *VM) runReaction(p *PromiseObject, r promiseReaction) {
	handler := r.onRejected
	if p.state == promiseFulfilled {
		handler = r.onFulfilled
	}
	if !handler.IsObject() {
		if p.state == promiseFulfilled {
			vmi.resolvePromise(r.result, p.result)
		} else {
			vmi.rejectPromise(r.result, p.result)
		}
		return
	}
	v, thrown := vmi.callValue(handler, Undefined, []Value{p.result})
	if thrown != nil {
		vmi.rejectPromise(r.result, thrown.Value)
		return
	}
	vmi.resolvePromise(r.result, v)
}

// promiseThen implements Promise.prototype.then: always returns a new
// promise, queuing the matching handler as a microtask once p settles (or
// immediately enqueuing it if p has already settled).
func (vmi *VM) promiseThen(p *PromiseObject, onFulfilled, onRejected Value) *PromiseObject {
	result := newPendingPromise()
	r := promiseReaction{onFulfilled: onFulfilled, onRejected: onRejected, result: result}
	p.handled = true
	if p.state == promisePending {
		p.reactions = append(p.reactions, r)
	} else {
		vmi.async.ScheduleMicrotask(func() { vmi.runReaction(p, r) })
	}
	return result
}

func argOrUndefined(args []Value, i int) Value {
	if i < len(args) {
		return args[i]
	}
	return Undefined
}

func installPromise(vmi *VM) {
	proto := NewPlainObject(vmi.objectProto)
	proto.SetOwn("then", NewObjectValue(NewNativeFunction("then", 2, func(vmi *VM, this Value, args []Value, _ Value) (Value, *ThrownError) {
		p, ok := this.AsObject().(*PromiseObject)
		if !ok {
			return Undefined, NewThrownError(vmi.makeTypeError("Promise.prototype.then called on non-promise"))
		}
		result := vmi.promiseThen(p, argOrUndefined(args, 0), argOrUndefined(args, 1))
		return NewObjectValue(result), nil
	})))
	proto.SetOwn("catch", NewObjectValue(NewNativeFunction("catch", 1, func(vmi *VM, this Value, args []Value, _ Value) (Value, *ThrownError) {
		p, ok := this.AsObject().(*PromiseObject)
		if !ok {
			return Undefined, NewThrownError(vmi.makeTypeError("Promise.prototype.catch called on non-promise"))
		}
		result := vmi.promiseThen(p, Undefined, argOrUndefined(args, 0))
		return NewObjectValue(result), nil
	})))
	vmi.promiseProto = NewObjectValue(proto)

	ctor := NewNativeFunction("Promise", 1, func(vmi *VM, _ Value, args []Value, newTarget Value) (Value, *ThrownError) {
		if newTarget.Type() == TypeUndefined {
			return Undefined, NewThrownError(vmi.makeTypeError("Promise constructor cannot be invoked without 'new'"))
		}
		p := newPendingPromise()
		if len(args) > 0 {
			resolveFn := NewNativeFunction("", 1, func(vmi *VM, _ Value, args []Value, _ Value) (Value, *ThrownError) {
				vmi.resolvePromise(p, argOrUndefined(args, 0))
				return Undefined, nil
			})
			rejectFn := NewNativeFunction("", 1, func(vmi *VM, _ Value, args []Value, _ Value) (Value, *ThrownError) {
				vmi.rejectPromise(p, argOrUndefined(args, 0))
				return Undefined, nil
			})
			_, thrown := vmi.callValue(args[0], Undefined, []Value{NewObjectValue(resolveFn), NewObjectValue(rejectFn)})
			if thrown != nil {
				vmi.rejectPromise(p, thrown.Value)
			}
		}
		return NewObjectValue(p), nil
	})
	declareGlobalNative(vmi, "Promise", 1, ctor.Fn)
}
