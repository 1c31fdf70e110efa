package vm

// Generator support backs the IsGenerator header flag (spec §4B) and the
// YIELD opcode. A generator function call doesn't run its body (see
// execCall's special case): it produces a GeneratorObject holding the
// call's freshly-built Frame, started only on the first .next(). Grounded
// on the teacher's pkg/vm/vm.go handling of generator frames as a
// detachable sub-stack; generalized here to an explicit frames slice
// (rather than reusing vm.frames) so a generator can be suspended for an
// arbitrary number of turns without pinning slots in the main call stack.
type GeneratorObject struct {
	Object
	vmi     *VM
	initial *Frame
	frames  []*Frame
	done    bool
	started bool
}

func (g *GeneratorObject) heapKind() string { return "generator" }

func newGeneratorObject(vmi *VM, initial *Frame) *GeneratorObject {
	return &GeneratorObject{vmi: vmi, initial: initial}
}

// runGeneratorFrames drives g's own frame stack exactly like vm.go's
// runFrame drives vm.frames, with one addition: a YIELD reaching the
// generator's outermost frame suspends the whole sub-stack and returns
// control to the caller of .next() instead of unwinding anything.
func (g *GeneratorObject) runGeneratorFrames() (Value, bool, *ThrownError) {
	vmi := g.vmi
	var pendingExc *Value

	for len(g.frames) > 0 {
		f := g.frames[len(g.frames)-1]

		if pendingExc != nil {
			if throwInFrame(vmi, f, *pendingExc) {
				pendingExc = nil
				continue
			}
			g.frames = g.frames[:len(g.frames)-1]
			continue
		}

		if f.alreadyComplete {
			result := f.completeValue
			g.frames = g.frames[:len(g.frames)-1]
			if len(g.frames) == 0 {
				return result, true, nil
			}
			vmi.deliverResult(g.frames[len(g.frames)-1], result)
			continue
		}

		outcome := vmi.step(f)
		switch outcome.kind {
		case stepContinue:
		case stepPushFrame:
			g.frames = append(g.frames, outcome.frame)
		case stepReturn:
			g.frames = g.frames[:len(g.frames)-1]
			if len(g.frames) == 0 {
				return outcome.value, true, nil
			}
			vmi.deliverResult(g.frames[len(g.frames)-1], outcome.value)
		case stepThrow:
			pendingExc = &outcome.value
		case stepYield:
			return outcome.value, false, nil
		}
	}

	if pendingExc != nil {
		return Undefined, true, NewThrownError(*pendingExc)
	}
	return Undefined, true, nil
}

// next implements Generator.prototype.next: resumes the suspended YIELD
// with sent as its value, or starts the body on the first call (the
// argument to that first call is discarded, per ECMAScript).
func (g *GeneratorObject) next(sent Value) (Value, bool, *ThrownError) {
	if g.done {
		return Undefined, true, nil
	}
	if !g.started {
		g.started = true
		g.frames = []*Frame{g.initial}
	} else if len(g.frames) > 0 {
		g.frames[len(g.frames)-1].push(sent)
	}
	v, done, thrown := g.runGeneratorFrames()
	if done {
		g.done = true
	}
	return v, done, thrown
}

// throw implements Generator.prototype.throw: injects an exception at the
// suspended YIELD point, letting the generator's own try/catch machinery
// (if any) handle it like any other thrown value.
func (g *GeneratorObject) throw(exc Value) (Value, bool, *ThrownError) {
	if g.done || !g.started || len(g.frames) == 0 {
		g.done = true
		return Undefined, true, NewThrownError(exc)
	}
	top := g.frames[len(g.frames)-1]
	if !throwInFrame(g.vmi, top, exc) {
		g.frames = g.frames[:len(g.frames)-1]
		if len(g.frames) == 0 {
			g.done = true
			return Undefined, true, NewThrownError(exc)
		}
	}
	v, done, thrown := g.runGeneratorFrames()
	if done {
		g.done = true
	}
	return v, done, thrown
}

// return implements Generator.prototype.return: completes the generator
// immediately with the given value, without resuming its body.
func (g *GeneratorObject) returnValue(v Value) (Value, bool, *ThrownError) {
	g.done = true
	g.frames = nil
	return v, true, nil
}

func generatorResultObject(vmi *VM, value Value, done bool) Value {
	obj := NewPlainObject(vmi.objectProto)
	obj.SetOwn("value", value)
	obj.SetOwn("done", NewBoolean(done))
	return NewObjectValue(obj)
}

// installGeneratorPrototype wires .next/.throw/.return and
// Symbol.iterator (returning the generator itself, so a generator is its
// own iterator per ECMAScript) — mirroring how installArrayPrototype wires
// the array iterator in vm_init.go.
func installGeneratorPrototype(vmi *VM) {
	proto := NewPlainObject(vmi.objectProto)
	proto.SetOwn("next", NewObjectValue(NewNativeFunction("next", 1, func(vmi *VM, this Value, args []Value, _ Value) (Value, *ThrownError) {
		g, ok := this.AsObject().(*GeneratorObject)
		if !ok {
			return Undefined, NewThrownError(vmi.makeTypeError("Generator.prototype.next called on non-generator"))
		}
		v, done, thrown := g.next(argOrUndefined(args, 0))
		if thrown != nil {
			return Undefined, thrown
		}
		return generatorResultObject(vmi, v, done), nil
	})))
	proto.SetOwn("throw", NewObjectValue(NewNativeFunction("throw", 1, func(vmi *VM, this Value, args []Value, _ Value) (Value, *ThrownError) {
		g, ok := this.AsObject().(*GeneratorObject)
		if !ok {
			return Undefined, NewThrownError(vmi.makeTypeError("Generator.prototype.throw called on non-generator"))
		}
		v, done, thrown := g.throw(argOrUndefined(args, 0))
		if thrown != nil {
			return Undefined, thrown
		}
		return generatorResultObject(vmi, v, done), nil
	})))
	proto.SetOwn("return", NewObjectValue(NewNativeFunction("return", 1, func(vmi *VM, this Value, args []Value, _ Value) (Value, *ThrownError) {
		g, ok := this.AsObject().(*GeneratorObject)
		if !ok {
			return Undefined, NewThrownError(vmi.makeTypeError("Generator.prototype.return called on non-generator"))
		}
		v, done, thrown := g.returnValue(argOrUndefined(args, 0))
		if thrown != nil {
			return Undefined, thrown
		}
		return generatorResultObject(vmi, v, done), nil
	})))
	proto.SetOwnByKey(NewSymbolKey(NewObjectValue(SymbolIterator)), NewObjectValue(NewNativeFunction("[Symbol.iterator]", 0, func(vmi *VM, this Value, args []Value, _ Value) (Value, *ThrownError) {
		return this, nil
	})))
	vmi.generatorProto = NewObjectValue(proto)
}
