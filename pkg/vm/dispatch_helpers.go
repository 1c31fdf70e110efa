package vm

import (
	"math"

	"escore/pkg/bytecode"
)

// This file holds the per-semantic-group opcode handlers vm.go's step()
// dispatches to once it has classified an opcode by its descriptor (spec
// §4F). Split out of vm.go purely to keep the dispatch loop itself
// readable; grounded the same way as vm.go on the teacher's per-opcode
// op_*.go files, one handler per family instead of one file per opcode.

// checkPending drains vmi.pendingException, which lookupOwn/proxyGet/
// setProperty stash a thrown value into when a getter, setter, or Proxy trap
// they invoked via callValue threw (those call sites have no *ThrownError-
// returning signature of their own to propagate it through directly).
func (vmi *VM) checkPending() (Value, bool) {
	if vmi.pendingException == nil {
		return Undefined, false
	}
	exc := *vmi.pendingException
	vmi.pendingException = nil
	return exc, true
}

// propNameLiteral reads a literal-table reference as a plain property-name
// string, regardless of whether it classifies as an identifier or a
// constant-string literal. Unlike resolveLiteral's LiteralIdent branch (which
// resolves identifiers through the lexical environment chain as variable
// bindings), a property name is never a binding — "x.foo" and "x['foo']"
// must read the same literal the same way.
func propNameLiteral(f *Frame, idx uint16) string {
	if f.Code.ClassifyLiteral(idx) == bytecode.LiteralConst {
		if v, ok := f.Code.Constant(idx).(Value); ok {
			return v.ToStringValue()
		}
		return ""
	}
	return normalizeIdent(f.Code.Ident(idx))
}

// numericResult re-tags a computed float64 as a tagged integer when it falls
// within the lossless window, matching the ABI's preference for the integer
// representation whenever one is exact (spec component A).
func numericResult(r float64) Value {
	if r == math.Trunc(r) && !math.IsInf(r, 0) && r >= float64(MinTaggedInt) && r <= float64(MaxTaggedInt) {
		return NewInteger(int64(r))
	}
	return NewFloat(r)
}

// looseEqual implements a simplified ECMAScript abstract equality: same-type
// (including the Integer/Float split, which ECMAScript sees as one Number
// type) delegates to StrictEqual; null and undefined are mutually loosely
// equal; a number/string pair compares numerically. Object-vs-primitive
// coercion through ToPrimitive is not implemented — an object never loosely
// equals a non-nullish primitive here, a documented narrowing of the real
// abstract-equality algorithm.
func looseEqual(a, b Value) bool {
	if a.Type() == b.Type() || (a.IsNumber() && b.IsNumber()) {
		return a.StrictEqual(b)
	}
	if a.IsNullOrUndef() && b.IsNullOrUndef() {
		return true
	}
	if a.IsBoolean() {
		return looseEqual(NewFloat(a.ToNumberFloat()), b)
	}
	if b.IsBoolean() {
		return looseEqual(a, NewFloat(b.ToNumberFloat()))
	}
	if a.IsNumber() && b.IsString() {
		return a.ToNumberFloat() == b.ToNumberFloat()
	}
	if a.IsString() && b.IsNumber() {
		return a.ToNumberFloat() == b.ToNumberFloat()
	}
	return false
}

func comparisonResult(op bytecode.OpCode, less, greater, equal bool) bool {
	switch op {
	case bytecode.OpLess:
		return less
	case bytecode.OpGreater:
		return greater
	case bytecode.OpLessEq:
		return less || equal
	case bytecode.OpGreaterEq:
		return greater || equal
	default:
		return false
	}
}

// valuesFromArray unpacks a fast-array Value into a plain Go slice for the
// call protocol's argument list; any non-array callee-side value (which
// should never occur for compiler-generated CALL/CONSTRUCT bytecode) yields
// no arguments rather than panicking.
func valuesFromArray(v Value) []Value {
	arr, ok := v.AsObject().(*ArrayObject)
	if !ok {
		return nil
	}
	out := make([]Value, arr.Length())
	for i := range out {
		if v, ok := arr.GetElement(i); ok {
			out[i] = v
		} else {
			out[i] = Undefined
		}
	}
	return out
}

// --- GroupArithmetic ---

func (vmi *VM) execArithmetic(f *Frame, op bytecode.OpCode) stepOutcome {
	if op == bytecode.OpNeg {
		v := f.pop()
		if neg, ok := tryIntSub(NewInteger(0), v); ok {
			f.push(neg)
			return outcomeContinue()
		}
		f.push(numericResult(-v.ToNumberFloat()))
		return outcomeContinue()
	}

	right := f.pop()
	left := f.pop()
	switch op {
	case bytecode.OpAdd:
		if v, ok := tryIntAdd(left, right); ok {
			f.push(v)
			return outcomeContinue()
		}
		if left.IsString() || right.IsString() {
			f.push(NewString(left.ToStringValue() + right.ToStringValue()))
			return outcomeContinue()
		}
		f.push(numericResult(left.ToNumberFloat() + right.ToNumberFloat()))
	case bytecode.OpSub:
		if v, ok := tryIntSub(left, right); ok {
			f.push(v)
			return outcomeContinue()
		}
		f.push(numericResult(left.ToNumberFloat() - right.ToNumberFloat()))
	case bytecode.OpMul:
		if v, ok := tryIntMul(left, right); ok {
			f.push(v)
			return outcomeContinue()
		}
		f.push(numericResult(left.ToNumberFloat() * right.ToNumberFloat()))
	case bytecode.OpDiv:
		f.push(numericResult(left.ToNumberFloat() / right.ToNumberFloat()))
	case bytecode.OpMod:
		f.push(numericResult(math.Mod(left.ToNumberFloat(), right.ToNumberFloat())))
	}
	return outcomeContinue()
}

// --- GroupBitwise ---

func (vmi *VM) execBitwise(f *Frame, op bytecode.OpCode) stepOutcome {
	if op == bytecode.OpBitNot {
		v := f.pop()
		f.push(NewInteger(int64(^int32(v.ToNumberFloat()))))
		return outcomeContinue()
	}

	right := f.pop()
	left := f.pop()
	var bop bitwiseOp
	switch op {
	case bytecode.OpBitAnd:
		bop = bitAnd
	case bytecode.OpBitOr:
		bop = bitOr
	case bytecode.OpBitXor:
		bop = bitXor
	case bytecode.OpShl:
		bop = bitShl
	case bytecode.OpShr:
		bop = bitShr
	case bytecode.OpUShr:
		bop = bitUShr
	}
	if v, ok := tryIntBitwise(bop, left, right); ok {
		f.push(v)
		return outcomeContinue()
	}
	li := int32(left.ToNumberFloat())
	ri := uint32(right.ToNumberFloat()) & 31
	switch bop {
	case bitAnd:
		f.push(NewInteger(int64(li & int32(ri))))
	case bitOr:
		f.push(NewInteger(int64(li | int32(ri))))
	case bitXor:
		f.push(NewInteger(int64(li ^ int32(ri))))
	case bitShl:
		f.push(NewInteger(int64(li << ri)))
	case bitShr:
		f.push(NewInteger(int64(li >> ri)))
	case bitUShr:
		f.push(NewInteger(int64(uint32(li) >> ri)))
	}
	return outcomeContinue()
}

// --- GroupComparison ---

func (vmi *VM) execComparison(f *Frame, op bytecode.OpCode) stepOutcome {
	right := f.pop()
	left := f.pop()
	switch op {
	case bytecode.OpStrictEqual:
		f.push(NewBoolean(left.StrictEqual(right)))
	case bytecode.OpStrictNotEqual:
		f.push(NewBoolean(!left.StrictEqual(right)))
	case bytecode.OpEqual:
		f.push(NewBoolean(looseEqual(left, right)))
	case bytecode.OpNotEqual:
		f.push(NewBoolean(!looseEqual(left, right)))
	default: // Less/Greater/LessEq/GreaterEq
		if less, greater, equal, ok := tryIntCompare(left, right); ok {
			result := comparisonResult(op, less, greater, equal)
			// Hot-loop fusion (spec §4F): a LESS/GREATER/... of two tagged
			// integers immediately followed by BRANCH_IF_TRUE_BACKWARD is
			// decoded and executed inline here, skipping the push/pop of the
			// intermediate boolean that a for/while condition would otherwise
			// round-trip through the operand stack every iteration.
			if f.ip < len(f.Code.Code) && bytecode.OpCode(f.Code.Code[f.ip]) == bytecode.OpBranchIfTrueB {
				f.ip++
				target := branchTarget(f, 2)
				if result {
					if out, abort := vmi.checkStopHook(); abort {
						return out
					}
					f.ip = target
				}
				return outcomeContinue()
			}
			f.push(NewBoolean(result))
			return outcomeContinue()
		}
		if left.IsString() && right.IsString() {
			ls, rs := left.AsString(), right.AsString()
			f.push(NewBoolean(comparisonResult(op, ls < rs, ls > rs, ls == rs)))
			return outcomeContinue()
		}
		lf, rf := left.ToNumberFloat(), right.ToNumberFloat()
		f.push(NewBoolean(comparisonResult(op, lf < rf, lf > rf, lf == rf)))
	}
	return outcomeContinue()
}

// --- GroupPreIncrDecr / GroupPostIncrDecr ---

// execIncrDecr handles ++/-- on a bare identifier: the operand is the
// variable's current value, already pushed by a preceding GET_IDENT, and the
// result is pushed back for a following PUT_IDENT to store. Pre pushes only
// the new value; Post pushes [old, new] so the expression's own completion
// value (old) survives underneath the value PUT_IDENT consumes.
func (vmi *VM) execIncrDecr(f *Frame, op bytecode.OpCode, isPre bool) stepOutcome {
	old := f.pop()
	delta := int64(1)
	if op == bytecode.OpPreDecr || op == bytecode.OpPostDecr {
		delta = -1
	}
	newVal, ok := tryIntIncrDecr(old, delta)
	if !ok {
		newVal = numericResult(old.ToNumberFloat() + float64(delta))
	}
	if isPre {
		f.push(newVal)
	} else {
		f.push(numericResult(old.ToNumberFloat()))
		f.push(newVal)
	}
	return outcomeContinue()
}

// --- GroupPropIncrDecr ---

// execPropIncrDecr handles ++/-- on a property reference (obj.prop or
// obj[expr]): unlike the bare-identifier form, it owns the full
// read-modify-write itself since PUT_PROP has no separate opcode to follow
// it with here.
func (vmi *VM) execPropIncrDecr(f *Frame, op bytecode.OpCode) stepOutcome {
	keyVal := f.pop()
	base := f.pop()
	key := ToPropertyKey(keyVal)
	if base.IsNullOrUndef() {
		return outcomeThrow(vmi.makeTypeError(TypeErrorCannotReadProperty(key, base)))
	}
	old, _ := getProperty(vmi, base, key)
	if exc, thrown := vmi.checkPending(); thrown {
		return outcomeThrow(exc)
	}
	delta := 1.0
	if op == bytecode.OpPropPreDecr || op == bytecode.OpPropPostDecr {
		delta = -1
	}
	newVal := numericResult(old.ToNumberFloat() + delta)
	setProperty(vmi, base, key, newVal)
	if exc, thrown := vmi.checkPending(); thrown {
		return outcomeThrow(exc)
	}
	if op == bytecode.OpPropPreIncr || op == bytecode.OpPropPreDecr {
		f.push(newVal)
	} else {
		f.push(numericResult(old.ToNumberFloat()))
	}
	return outcomeContinue()
}

// --- GroupIdentGet / GroupIdentPut ---

func (vmi *VM) execGetIdent(f *Frame) stepOutcome {
	idx := f.Code.ReadLiteralIndex(&f.ip)
	name := normalizeIdent(f.Code.Ident(idx))
	env := f.LexEnv.Resolve(name)
	if env == nil {
		return outcomeThrow(vmi.makeReferenceError(name + " is not defined"))
	}
	v, _, isTDZ := env.GetBindingValue(name)
	if isTDZ {
		return outcomeThrow(vmi.makeReferenceError("Cannot access '" + name + "' before initialization"))
	}
	f.push(v)
	return outcomeContinue()
}

// execPutIdent stores into an existing binding, or — finding none — declares
// it on the global environment (ECMAScript sloppy-mode implicit global
// assignment; a strict-mode assignment to an undeclared name is instead
// compiled as an explicit THROW_REFERENCE ahead of this opcode).
func (vmi *VM) execPutIdent(f *Frame) stepOutcome {
	idx := f.Code.ReadLiteralIndex(&f.ip)
	name := normalizeIdent(f.Code.Ident(idx))
	v := f.pop()
	assignInferredName(v, name)
	env := f.LexEnv.Resolve(name)
	if env == nil {
		vmi.globalEnv.CreateBinding(name, true)
		vmi.globalEnv.InitializeBinding(name, v)
		return outcomeContinue()
	}
	if _, mutErr := env.SetBindingValue(name, v); mutErr {
		return outcomeThrow(vmi.makeTypeError("Assignment to constant variable '" + name + "'."))
	}
	return outcomeContinue()
}

// assignInferredName implements ECMAScript's NamedEvaluation: an anonymous
// function or arrow expression assigned straight to a binding takes that
// binding's name as its own (`const f = () => {}` gives `f.name === "f"`),
// but only if the closure didn't already get a name from its own syntax.
func assignInferredName(v Value, name string) {
	closure, ok := v.AsObject().(*ClosureObject)
	if !ok || closure.Fn.Name != "" {
		return
	}
	closure.Fn.Name = name
}

// --- GroupPropertyGet / GroupPropertySet / GroupPropertyDelete ---

func (vmi *VM) execGetProp(f *Frame, op bytecode.OpCode) stepOutcome {
	var base Value
	var key PropertyKey
	if op == bytecode.OpGetProp {
		base = f.pop()
		idx := f.Code.ReadLiteralIndex(&f.ip)
		key = keyFromString(propNameLiteral(f, idx))
	} else {
		keyVal := f.pop()
		base = f.pop()
		key = ToPropertyKey(keyVal)
	}
	if base.IsNullOrUndef() {
		return outcomeThrow(vmi.makeTypeError(TypeErrorCannotReadProperty(key, base)))
	}
	v, _ := getProperty(vmi, base, key)
	if exc, thrown := vmi.checkPending(); thrown {
		return outcomeThrow(exc)
	}
	f.push(v)
	return outcomeContinue()
}

// execSetProp leaves the assigned value on the stack as the assignment
// expression's completion value (so `a = b = c` chains correctly).
func (vmi *VM) execSetProp(f *Frame, op bytecode.OpCode) stepOutcome {
	var base, val Value
	var key PropertyKey
	if op == bytecode.OpSetProp {
		val = f.pop()
		base = f.pop()
		idx := f.Code.ReadLiteralIndex(&f.ip)
		key = keyFromString(propNameLiteral(f, idx))
	} else {
		val = f.pop()
		keyVal := f.pop()
		base = f.pop()
		key = ToPropertyKey(keyVal)
	}
	if base.IsNullOrUndef() {
		return outcomeThrow(vmi.makeTypeError(TypeErrorCannotReadProperty(key, base)))
	}
	setProperty(vmi, base, key, val)
	if exc, thrown := vmi.checkPending(); thrown {
		return outcomeThrow(exc)
	}
	f.push(val)
	return outcomeContinue()
}

func (vmi *VM) execDeleteProp(f *Frame) stepOutcome {
	base := f.pop()
	idx := f.Code.ReadLiteralIndex(&f.ip)
	key := keyFromString(propNameLiteral(f, idx))
	if base.IsNullOrUndef() {
		f.push(True)
		return outcomeContinue()
	}
	ok := deleteProperty(vmi, base, key)
	if exc, thrown := vmi.checkPending(); thrown {
		return outcomeThrow(exc)
	}
	f.push(NewBoolean(ok))
	return outcomeContinue()
}

// --- GroupArrayLiteral ---

func (vmi *VM) execArrayLiteral(f *Frame, op bytecode.OpCode) stepOutcome {
	switch op {
	case bytecode.OpNewArray:
		f.push(NewObjectValue(NewArrayObject(vmi.arrayProto, nil)))
	case bytecode.OpArrayPush:
		v := f.pop()
		arrVal := f.peek()
		if arr, ok := arrVal.AsObject().(*ArrayObject); ok {
			arr.Push(v)
		}
	}
	return outcomeContinue()
}

// --- GroupFunctionLiteral / GroupClassLiteral ---

func functionLength(sub *bytecode.CompiledCode) int {
	n := int(sub.ArgumentEnd)
	if sub.Flags&bytecode.RestParameter != 0 {
		n--
	}
	if n < 0 {
		return 0
	}
	return n
}

// materializeClosure builds a fresh ClosureObject pairing sub's compiled
// body with the lexical environment chain in effect at the point the
// function literal is evaluated (spec §4B: "materialized into a fresh
// function object at reference time"). Arrow functions additionally capture
// this/newTarget/super from the enclosing frame rather than binding their
// own at call time.
func (vmi *VM) materializeClosure(f *Frame, sub *bytecode.CompiledCode) Value {
	fn := &FunctionObject{
		Name:        sub.Name,
		Code:        sub,
		Length:      functionLength(sub),
		IsGenerator: sub.Flags&bytecode.IsGenerator != 0,
		IsAsync:     sub.Flags&bytecode.IsAsync != 0,
		IsArrow:     sub.Flags&bytecode.IsArrow != 0,
	}
	if !fn.IsArrow {
		fn.Prototype = NewObjectValue(NewPlainObject(vmi.objectProto))
	}
	closure := &ClosureObject{Fn: fn, CapturedEnv: f.LexEnv}
	if fn.IsArrow {
		closure.CapturedThis = f.This
		closure.CapturedNewTarget = f.NewTarget
		closure.CapturedSuper = f.HomeObject
	}
	return NewObjectValue(closure)
}

func (vmi *VM) execNewFunction(f *Frame) stepOutcome {
	idx := f.Code.ReadLiteralIndex(&f.ip)
	sub := f.Code.SubCodeAt(idx)
	f.push(vmi.materializeClosure(f, sub))
	return outcomeContinue()
}

// execNewClass materializes a class's constructor as a closure and wires its
// prototype chain; `extends` is encoded as a stack operand so the
// superclass can be any expression, not just an identifier. Method
// definitions on the resulting prototype are ordinary SET_PROP bytecode the
// compiler emits right after NEW_CLASS, not a dedicated opcode here.
func (vmi *VM) execNewClass(f *Frame) stepOutcome {
	superVal := f.pop()
	idx := f.Code.ReadLiteralIndex(&f.ip)
	sub := f.Code.SubCodeAt(idx)
	if sub == nil {
		return outcomeThrow(vmi.makeTypeError("class has no constructor body"))
	}
	ctorVal := vmi.materializeClosure(f, sub)
	closure := ctorVal.AsObject().(*ClosureObject)
	closure.Fn.IsClassConstructor = true

	protoParent := vmi.objectProto
	if superVal.Type() != TypeUndefined {
		closure.Fn.IsDerivedConstructor = true
		closure.Fn.SuperConstructor = superVal
		if p, found := lookupProperty(vmi, superVal, NewStringKey("prototype")); found {
			protoParent = p
		}
	}
	proto := NewPlainObject(protoParent)
	proto.SetOwn("constructor", ctorVal)
	closure.Fn.Prototype = NewObjectValue(proto)
	closure.Fn.HomeObject = closure.Fn.Prototype

	f.push(ctorVal)
	return outcomeContinue()
}

// --- GroupIteratorStep / GroupRestCollect ---

// execIteratorStep drives whichever iterator the innermost active context
// record owns — FOR_IN and FOR_OF both stash one in ContextRecord.Iterator
// (FOR_IN's is a synthetic array iterator over its pre-collected keys, see
// execEnterForIn), so this one handler serves both loop forms identically.
func (vmi *VM) execIteratorStep(f *Frame, op bytecode.OpCode) stepOutcome {
	ctx, ok := f.topContext()
	if !ok {
		return outcomeThrow(vmi.makeTypeError("no active loop context"))
	}
	switch op {
	case bytecode.OpIteratorStep:
		v, done, thrown := iteratorStep(vmi, ctx.Iterator)
		if thrown != nil {
			return outcomeThrow(thrown.Value)
		}
		f.push(v)
		f.push(NewBoolean(done))
	case bytecode.OpIteratorClose:
		if thrown := closeIterator(vmi, ctx.Iterator, true); thrown != nil {
			return outcomeThrow(thrown.Value)
		}
	}
	return outcomeContinue()
}

// execRestCollect drains the remainder of the innermost context's iterator
// into a fresh array, for a rest element in a destructuring pattern fed by
// that same FOR_OF-style iterator protocol.
func (vmi *VM) execRestCollect(f *Frame) stepOutcome {
	ctx, ok := f.topContext()
	if !ok {
		f.push(NewObjectValue(NewArrayObject(vmi.arrayProto, nil)))
		return outcomeContinue()
	}
	var collected []Value
	for {
		v, done, thrown := iteratorStep(vmi, ctx.Iterator)
		if thrown != nil {
			return outcomeThrow(thrown.Value)
		}
		if done {
			break
		}
		collected = append(collected, v)
	}
	f.push(NewObjectValue(NewArrayObject(vmi.arrayProto, collected)))
	return outcomeContinue()
}

// --- GroupContextCatch / GroupContextWith / GroupContextForIn / GroupContextForOf ---

// execEnterCatch binds the exception throwInFrame stashed in f.BlockResult
// into a fresh declarative environment and leaves it on the stack; ordinary
// compiler-emitted PUT_IDENT bytecode binds it to the catch parameter's
// name, so this opcode needs no binding-name operand of its own.
func (vmi *VM) execEnterCatch(f *Frame) stepOutcome {
	exc := f.BlockResult
	f.BlockResult = Undefined
	oldEnv := f.LexEnv
	f.LexEnv = NewDeclarativeEnv(oldEnv)
	f.pushContext(ContextRecord{Kind: ContextCatch, Flags: ctxHasLexEnv, SavedEnv: oldEnv})
	f.push(exc)
	return outcomeContinue()
}

func (vmi *VM) execEnterWith(f *Frame) stepOutcome {
	obj := f.pop()
	oldEnv := f.LexEnv
	f.LexEnv = NewObjectEnv(oldEnv, obj, true)
	f.pushContext(ContextRecord{Kind: ContextWith, Flags: ctxHasLexEnv, SavedEnv: oldEnv})
	return outcomeContinue()
}

// execEnterForIn snapshots the enumerable key set up front (spec §12:
// enumeration order is fixed at loop entry) and wraps it as the same
// array-iterator the fast-array FOR_OF path uses, so IteratorStep needs no
// special case for FOR_IN at all.
func (vmi *VM) execEnterForIn(f *Frame) stepOutcome {
	base := f.pop()
	keys := collectForInKeys(vmi, base)
	vals := make([]Value, len(keys))
	for i, k := range keys {
		vals[i] = NewString(k)
	}
	iter := NewObjectValue(newArrayIteratorState(NewArrayObject(Undefined, vals)))
	f.pushContext(ContextRecord{Kind: ContextForIn, Iterator: iter})
	return outcomeContinue()
}

func (vmi *VM) execEnterForOf(f *Frame) stepOutcome {
	iterable := f.pop()
	iter, thrown := getIterator(vmi, iterable)
	if thrown != nil {
		return outcomeThrow(thrown.Value)
	}
	f.pushContext(ContextRecord{Kind: ContextForOf, Iterator: iter, Flags: ctxCloseIterator})
	return outcomeContinue()
}

// --- GroupContextEnd ---

// execContextEnd pops exactly the top context record and runs its
// completion cleanup. A normally-exited ContextTry with a paired finally
// must itself enter the finally block here — that is the only place in the
// dispatch loop that reaches FinallyTarget on the non-exceptional path,
// since throwInFrame only ever enters it via an exception.
func (vmi *VM) execContextEnd(f *Frame) stepOutcome {
	c, ok := f.topContext()
	if !ok {
		return outcomeContinue()
	}
	switch c.Kind {
	case ContextTry:
		f.popContext()
		if c.Flags&ctxHasLexEnv != 0 {
			f.LexEnv = c.SavedEnv
		}
		if c.HasFinally {
			f.pushContext(ContextRecord{Kind: ContextFinallyJump, FinallyTarget: c.FinallyTarget})
			f.ip = c.FinallyTarget
		}
		return outcomeContinue()

	case ContextCatch, ContextWith:
		f.popContext()
		f.LexEnv = c.SavedEnv
		return outcomeContinue()

	case ContextForIn, ContextForOf, ContextBlock:
		f.popContext()
		if c.Flags&ctxHasLexEnv != 0 {
			f.LexEnv = c.SavedEnv
		}
		return outcomeContinue()

	case ContextFinallyJump, ContextFinallyThrow, ContextFinallyReturn:
		done, rethrew := resumeFinally(vmi, f)
		if rethrew {
			if done {
				exc, _ := vmi.checkPending()
				return outcomeThrow(exc)
			}
			return outcomeContinue() // throwInFrame already repositioned f.ip at a handler in this frame
		}
		if done {
			if vmi.pendingReturn != nil {
				v := *vmi.pendingReturn
				vmi.pendingReturn = nil
				// Route back through execReturn rather than completing
				// directly: an enclosing try still on this frame's context
				// stack needs its own finally to run first, the same
				// precedence a bare RETURN checks for.
				return vmi.execReturn(f, v)
			}
		}
		return outcomeContinue()

	default:
		f.popContext()
		return outcomeContinue()
	}
}

// --- GroupCall / GroupConstruct / GroupSuperCall / GroupSpreadCall ---

// execCall pushes the prepared callee frame and returns control to the
// dispatch loop (stepPushFrame) rather than recursing in Go: CALL and
// SPREAD_CALL are the call forms this interpreter runs through the fully
// iterative frame-stack protocol (spec §4G), since plain calls are the
// user-controlled recursive-call form whose depth the context-stack
// machine must bound.
func (vmi *VM) execCall(f *Frame) stepOutcome {
	argsVal := f.pop()
	calleeVal := f.pop()
	thisVal := f.pop()
	args := valuesFromArray(argsVal)
	frame, thrown := vmi.prepareCall(calleeVal, thisVal, args, false, Undefined)
	if thrown != nil {
		return outcomeThrow(thrown.Value)
	}
	// Calling a generator function doesn't run its body: it materializes a
	// GeneratorObject wrapping the freshly-built (not-yet-started) frame,
	// which only runGeneratorFrames (generator.go) ever steps, driven by
	// .next()/.throw()/.return() rather than by this dispatch loop's own
	// frame stack.
	if frame.Closure != nil && frame.Closure.Fn.IsGenerator {
		f.push(NewObjectValue(newGeneratorObject(vmi, frame)))
		return outcomeContinue()
	}
	return outcomePush(frame)
}

// execConstruct runs through the bounded-recursion constructValue helper
// rather than the iterative protocol execCall uses: substituting
// [[Construct]]'s return-value rule (keep the constructor's return only if
// it's an object, otherwise keep `this`) through the generic deliverResult
// path would need its own PendingKind variant for a case that, unlike plain
// calls, is not the interpreter's primary recursion-depth concern.
func (vmi *VM) execConstruct(f *Frame) stepOutcome {
	argsVal := f.pop()
	calleeVal := f.pop()
	args := valuesFromArray(argsVal)
	result, thrown := vmi.constructValue(calleeVal, args, calleeVal)
	if thrown != nil {
		return outcomeThrow(thrown.Value)
	}
	f.push(result)
	return outcomeContinue()
}

// execSuperCall resolves the super constructor from the current frame's
// closure (set at class-literal evaluation time) and, on success, installs
// the constructed instance as `this` — a derived constructor's `this` stays
// Uninitialized (see constructValue) until super() runs. f.This itself is
// the double-call guard (the original tracks the equivalent bit on the
// environment record; this module has no separate lexical binding for `this`
// to hang it on, so the frame's own sentinel serves the same purpose).
func (vmi *VM) execSuperCall(f *Frame) stepOutcome {
	argsVal := f.pop()
	args := valuesFromArray(argsVal)
	if f.Closure == nil || f.Closure.Fn.SuperConstructor.Type() == TypeUndefined {
		return outcomeThrow(vmi.makeTypeError("'super' keyword is only valid inside a derived class constructor"))
	}
	if !f.This.IsUninitialized() {
		return outcomeThrow(vmi.makeReferenceError("Super constructor may only be called once"))
	}
	result, thrown := vmi.constructValue(f.Closure.Fn.SuperConstructor, args, f.NewTarget)
	if thrown != nil {
		return outcomeThrow(thrown.Value)
	}
	f.This = result
	f.push(result)
	return outcomeContinue()
}

// execSpreadCall drains the spread iterable synchronously through the
// iterator protocol (bounded Go recursion via callValue, same as a getter or
// Proxy trap) before handing the fully materialized argument list to the
// same iterative call protocol execCall uses — only the argument collection
// needs bounded recursion here, not the call itself.
func (vmi *VM) execSpreadCall(f *Frame) stepOutcome {
	iterableVal := f.pop()
	calleeVal := f.pop()
	thisVal := f.pop()

	iter, thrown := getIterator(vmi, iterableVal)
	if thrown != nil {
		return outcomeThrow(thrown.Value)
	}
	var args []Value
	for {
		v, done, thrown := iteratorStep(vmi, iter)
		if thrown != nil {
			return outcomeThrow(thrown.Value)
		}
		if done {
			break
		}
		args = append(args, v)
	}

	frame, thrown := vmi.prepareCall(calleeVal, thisVal, args, false, Undefined)
	if thrown != nil {
		return outcomeThrow(thrown.Value)
	}
	return outcomePush(frame)
}
