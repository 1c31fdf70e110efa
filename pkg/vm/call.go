package vm

import "escore/pkg/bytecode"

// This file implements the call/construct/super-call/spread-call protocol
// (spec component G): CALL pushes a new Frame onto vm.frames and returns to
// the dispatch loop rather than recursing in Go, so ECMAScript call depth
// is bounded by vm.frames' capacity, not by the Go goroutine stack. Native
// functions and Proxy traps are the exception — they run through
// callValue, a bounded Go-recursive helper, since their call depth is
// driven by host code (getters, the `get`/`set` Proxy traps invoked from
// inside property.go, iterator protocol steps) rather than by
// user-controlled ECMAScript call recursion, which is what the context
// stack machine needs to bound. Grounded on the teacher's pkg/vm/call.go
// prepareCall/prepareCallWithGeneratorMode and its Proxy apply-trap
// handling.

// prepareCall resolves a callee Value into a Frame ready to run, or a
// *ThrownError if target is not callable. construct is true for `new`
// expressions and super() calls; newTarget is the [[Construct]] newTarget
// (usually the same as target, different for Reflect.construct).
func (vmi *VM) prepareCall(target Value, this Value, args []Value, construct bool, newTarget Value) (*Frame, *ThrownError) {
	switch fn := target.AsObject().(type) {
	case *ClosureObject:
		if construct && fn.Fn.IsArrow {
			return nil, NewThrownError(vmi.makeTypeError(fn.Fn.Name + " is not a constructor"))
		}
		if !construct && fn.Fn.IsClassConstructor {
			return nil, NewThrownError(vmi.makeTypeError("Class constructor " + fn.Fn.Name + " cannot be invoked without 'new'"))
		}
		frame := NewFrame(fn.Fn.Code, this)
		frame.Closure = fn
		frame.HomeObject = fn.Fn.HomeObject
		frame.LexEnv = NewDeclarativeEnv(fn.CapturedEnv)
		if fn.Fn.IsArrow {
			frame.This = fn.CapturedThis
			frame.NewTarget = fn.CapturedNewTarget
		} else if construct {
			frame.NewTarget = newTarget
		}
		bindParameters(frame, fn.Fn.Code, args)
		return frame, nil

	case *NativeFunctionObject:
		nt := Undefined
		if construct {
			nt = newTarget
		}
		result, thrown := fn.Fn(vmi, this, args, nt)
		if thrown != nil {
			return nil, thrown
		}
		return nativeResultFrame(result), nil

	case *BoundFunctionObject:
		combined := append(append([]Value{}, fn.PartialArgs...), args...)
		if construct {
			return vmi.prepareCall(fn.Target, this, combined, true, fn.Target)
		}
		return vmi.prepareCall(fn.Target, fn.BoundThis, combined, false, Undefined)

	case *ProxyObject:
		if fn.Revoked {
			return nil, NewThrownError(vmi.makeTypeError("Cannot perform operation on a proxy that has been revoked"))
		}
		trapName := "apply"
		if construct {
			trapName = "construct"
		}
		if trapFn, ok := fn.trap(vmi, trapName); ok {
			argArray := NewObjectValue(NewArrayObject(vmi.arrayProto, append([]Value{}, args...)))
			var callArgs []Value
			if construct {
				callArgs = []Value{fn.Target, argArray, newTarget}
			} else {
				callArgs = []Value{fn.Target, this, argArray}
			}
			result, thrown := vmi.callValue(trapFn, fn.Handler, callArgs)
			if thrown != nil {
				return nil, thrown
			}
			return nativeResultFrame(result), nil
		}
		return vmi.prepareCall(fn.Target, this, args, construct, newTarget)

	default:
		return nil, NewThrownError(vmi.makeTypeError(target.ToStringValue() + " is not a function"))
	}
}

// nativeResultFrame wraps an already-computed value (a native function's
// result, or a Proxy trap's return) as a zero-instruction frame so it can
// flow through the same "push a frame, let the loop pop it" protocol as a
// real call — this keeps the dispatch loop's CALL handling uniform instead
// of special-casing "did the callee actually need a frame."
func nativeResultFrame(v Value) *Frame {
	return &Frame{alreadyComplete: true, completeValue: v}
}

// bindParameters copies call arguments into the callee frame's parameter
// registers (registers [0, ArgumentEnd)), padding missing trailing
// arguments with Undefined and, when the function declares a rest
// parameter (spec §4B RestParameter header flag), folding any surplus
// arguments into an array bound to the last parameter register instead of
// the usual per-argument slot.
func bindParameters(frame *Frame, code *bytecode.CompiledCode, args []Value) {
	argEnd := int(code.ArgumentEnd)
	hasRest := code.Flags&bytecode.RestParameter != 0
	fixedCount := argEnd
	if hasRest {
		fixedCount--
	}
	for i := 0; i < fixedCount; i++ {
		if i < len(args) {
			frame.Registers[i] = args[i]
		} else {
			frame.Registers[i] = Undefined
		}
	}
	if hasRest {
		var rest []Value
		if len(args) > fixedCount {
			rest = append(rest, args[fixedCount:]...)
		}
		frame.Registers[argEnd-1] = NewObjectValue(NewArrayObject(Undefined, rest))
	}
}

// callValue is the bounded-recursion call helper used by property access
// (getters/setters), Proxy trap dispatch, and iterator protocol steps.
// Because Go's own call stack backs this rather than vm.frames, deeply
// nested getter/proxy recursion is bounded only by the host stack; ordinary
// function-to-function ECMAScript call depth never goes through this path —
// plain calls go through CALL/SPREAD_CALL's iterative frame-stack handling
// in vm.go, and `new`/super() through constructValue.
func (vmi *VM) callValue(target Value, this Value, args []Value) (Value, *ThrownError) {
	frame, thrown := vmi.prepareCall(target, this, args, false, Undefined)
	if thrown != nil {
		return Undefined, thrown
	}
	if frame.alreadyComplete {
		return frame.completeValue, nil
	}
	return vmi.runFrame(frame)
}

// constructValue implements `new`: allocate the instance with its
// prototype resolved from target.prototype, run the constructor, and (per
// ECMAScript's [[Construct]]) substitute the constructor's return value
// only if it is itself an object.
func (vmi *VM) constructValue(target Value, args []Value, newTarget Value) (Value, *ThrownError) {
	proto, found := lookupProperty(vmi, target, NewStringKey("prototype"))
	if !found || !proto.IsObject() {
		proto = vmi.objectProto
	}
	this := NewObjectValue(NewPlainObject(proto))
	if closure, ok := target.AsObject().(*ClosureObject); ok && closure.Fn.IsDerivedConstructor {
		this = Uninitialized // super() must run before `this` is usable; see execSuperCall in dispatch_helpers.go
	}
	frame, thrown := vmi.prepareCall(target, this, args, true, newTarget)
	if thrown != nil {
		return Undefined, thrown
	}
	if frame.alreadyComplete {
		if frame.completeValue.IsObject() {
			return frame.completeValue, nil
		}
		return this, nil
	}
	result, thrown := vmi.runFrame(frame)
	if thrown != nil {
		return Undefined, thrown
	}
	if result.IsObject() {
		return result, nil
	}
	return frame.This, nil
}
