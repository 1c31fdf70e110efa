// Package demo hand-assembles the bytecode programs cmd/escore runs and
// pkg/vm's end-to-end tests check against, using pkg/bytecode.Assembler in
// place of the parser/compiler this module has no business owning. Each
// program corresponds to one concrete scenario in the dispatch loop's
// testable-properties list: plain arithmetic, a three-deep try/finally
// whose innermost finally overrides a pending throw with a return, for-in
// enumeration, a do-while loop exercising the comparison/backward-branch
// fusion, a function call through the multiply fast path, an arrow call,
// and a Proxy get/set trap pair.
package demo

import (
	"escore/pkg/bytecode"
	"escore/pkg/vm"
)

// intLiteral and stringLiteral box a constant for the assembler's literal
// table. Constants are stored as bytecode.Value (an interface{} avoiding an
// import cycle between pkg/bytecode and pkg/vm) but resolveLiteral expects
// the boxed dynamic type to be vm.Value itself, so every constant built here
// goes through the same constructors the dispatch loop uses for any other
// value.
func intLiteral(n int64) vm.Value    { return vm.NewInteger(n) }
func stringLiteral(s string) vm.Value { return vm.NewString(s) }

// Addition builds `var a = 1; var b = 2; a + b`, returning the tagged
// integer 3.
func Addition() *bytecode.CompiledCode {
	a := bytecode.NewAssembler("addition", 0, 0, 0)
	c1 := a.Const(bytecode.Value(intLiteral(1)))
	c2 := a.Const(bytecode.Value(intLiteral(2)))
	identA := a.Ident("a")
	identB := a.Ident("b")

	a.EmitLiteral(bytecode.OpLoadLiteral, c1, 1)
	a.EmitStackLiteral(bytecode.OpPutIdent, identA, 1)
	a.EmitLiteral(bytecode.OpLoadLiteral, c2, 1)
	a.EmitStackLiteral(bytecode.OpPutIdent, identB, 1)
	a.EmitLiteral(bytecode.OpGetIdent, identA, 1)
	a.EmitLiteral(bytecode.OpGetIdent, identB, 1)
	a.Emit(bytecode.OpAdd, 1)
	a.Emit(bytecode.OpReturn, 1)
	a.SetStackLimit(4)
	return a.Finish()
}

// TryFinallyReturnOverThrow builds three nested try/finally blocks: the
// innermost body throws the string "x", and its finally does `return 7`.
// The pending-finally-precedence rule (spec component D/section 12) means
// that return overrides the throw at every enclosing level in turn, so the
// whole program evaluates to 7 with no exception left pending — each of
// the two outer finally blocks is a no-op, present only to exercise the
// multi-level unwind.
func TryFinallyReturnOverThrow() *bytecode.CompiledCode {
	a := bytecode.NewAssembler("try_finally_nest", 0, 0, 0)

	outerFinally := a.EmitBranch(bytecode.OpEnterFinally, 1)
	midFinally := a.EmitBranch(bytecode.OpEnterFinally, 2)
	innerFinally := a.EmitBranch(bytecode.OpEnterFinally, 3)

	// innermost try body: throw "x"
	cx := a.Const(bytecode.Value(stringLiteral("x")))
	a.EmitLiteral(bytecode.OpLoadLiteral, cx, 4)
	a.Emit(bytecode.OpThrow, 4)

	a.PatchBranch(innerFinally, a.Here())
	c7 := a.Const(bytecode.Value(intLiteral(7)))
	a.EmitLiteral(bytecode.OpLoadLiteral, c7, 5)
	a.Emit(bytecode.OpReturn, 5)

	a.PatchBranch(midFinally, a.Here())
	a.Emit(bytecode.OpLoadUndefined, 6)
	a.Emit(bytecode.OpPop, 6)
	a.Emit(bytecode.OpContextEnd, 6)

	a.PatchBranch(outerFinally, a.Here())
	a.Emit(bytecode.OpLoadUndefined, 7)
	a.Emit(bytecode.OpPop, 7)
	a.Emit(bytecode.OpContextEnd, 7)

	a.Emit(bytecode.OpReturnUndefined, 8) // unreachable: every path above completes via a pending return
	a.SetStackLimit(2)
	return a.Finish()
}

// ForInConcat builds `for (let k in {a:0,b:0,c:0}) s += k` with s starting
// at "", returning the concatenation of the enumerated keys in snapshot
// order.
func ForInConcat() *bytecode.CompiledCode {
	a := bytecode.NewAssembler("for_in_concat", 0, 0, 0)

	emptyStr := a.Const(bytecode.Value(stringLiteral("")))
	identS := a.Ident("s")
	a.EmitLiteral(bytecode.OpLoadLiteral, emptyStr, 1)
	a.EmitStackLiteral(bytecode.OpPutIdent, identS, 1)

	zero := a.Const(bytecode.Value(intLiteral(0)))
	identA := a.Ident("a")
	identB := a.Ident("b")
	identC := a.Ident("c")
	a.Emit(bytecode.OpNewObject, 2)
	for _, key := range []uint16{identA, identB, identC} {
		a.Emit(bytecode.OpDup, 2)
		a.EmitLiteral(bytecode.OpLoadLiteral, zero, 2)
		a.EmitLiteral(bytecode.OpSetProp, key, 2)
		a.Emit(bytecode.OpPop, 2)
	}
	a.Emit(bytecode.OpEnterForIn, 2)

	identK := a.Ident("k")
	loopStart := a.Here()
	a.Emit(bytecode.OpIteratorStep, 3)
	doneBranch := a.EmitBranch(bytecode.OpBranchIfTrue, 3)
	a.EmitStackLiteral(bytecode.OpPutIdent, identK, 3)
	a.EmitLiteral(bytecode.OpGetIdent, identS, 3)
	a.EmitLiteral(bytecode.OpGetIdent, identK, 3)
	a.Emit(bytecode.OpAdd, 3)
	a.EmitStackLiteral(bytecode.OpPutIdent, identS, 3)
	back := a.EmitBranch(bytecode.OpJumpBackward, 3)
	a.PatchBranch(back, loopStart)

	a.PatchBranch(doneBranch, a.Here())
	a.Emit(bytecode.OpIteratorClose, 4)
	a.Emit(bytecode.OpContextEnd, 4)
	a.EmitLiteral(bytecode.OpGetIdent, identS, 4)
	a.Emit(bytecode.OpReturn, 4)
	a.SetStackLimit(4)
	return a.Finish()
}

// SumBelowFive builds `var i=0; var s=0; do { s+=i; i=i+1 } while (i<5);
// return s`, using the comparison+backward-branch fusion (spec §4F): the
// loop's condition check compiles to a LESS immediately followed by
// BRANCH_IF_TRUE_BACKWARD, so the interpreter never materializes the
// intermediate boolean on the operand stack for any of the five iterations.
// Returns the tagged integer 10 (0+1+2+3+4).
func SumBelowFive() *bytecode.CompiledCode {
	a := bytecode.NewAssembler("sum_below_five", 0, 0, 0)

	zero := a.Const(bytecode.Value(intLiteral(0)))
	one := a.Const(bytecode.Value(intLiteral(1)))
	five := a.Const(bytecode.Value(intLiteral(5)))
	identI := a.Ident("i")
	identS := a.Ident("s")

	a.EmitLiteral(bytecode.OpLoadLiteral, zero, 1)
	a.EmitStackLiteral(bytecode.OpPutIdent, identI, 1)
	a.EmitLiteral(bytecode.OpLoadLiteral, zero, 1)
	a.EmitStackLiteral(bytecode.OpPutIdent, identS, 1)

	loopStart := a.Here()
	a.EmitLiteral(bytecode.OpGetIdent, identS, 2)
	a.EmitLiteral(bytecode.OpGetIdent, identI, 2)
	a.Emit(bytecode.OpAdd, 2)
	a.EmitStackLiteral(bytecode.OpPutIdent, identS, 2)
	a.EmitLiteral(bytecode.OpGetIdent, identI, 3)
	a.EmitLiteral(bytecode.OpLoadLiteral, one, 3)
	a.Emit(bytecode.OpAdd, 3)
	a.EmitStackLiteral(bytecode.OpPutIdent, identI, 3)

	a.EmitLiteral(bytecode.OpGetIdent, identI, 4)
	a.EmitLiteral(bytecode.OpLoadLiteral, five, 4)
	a.Emit(bytecode.OpLess, 4)
	back := a.EmitBranch(bytecode.OpBranchIfTrueB, 4)
	a.PatchBranch(back, loopStart)

	a.EmitLiteral(bytecode.OpGetIdent, identS, 5)
	a.Emit(bytecode.OpReturn, 5)
	a.SetStackLimit(4)
	return a.Finish()
}

// SquareCall builds `function f(x){return x*x}; f(11)`, returning 121 via
// the multiply fast path.
func SquareCall() *bytecode.CompiledCode {
	fn := bytecode.NewAssembler("f", 1, 1, bytecode.IsFunction)
	fn.EmitLiteral(bytecode.OpLoadLiteral, 0, 1)
	fn.EmitLiteral(bytecode.OpLoadLiteral, 0, 1)
	fn.Emit(bytecode.OpMul, 1)
	fn.Emit(bytecode.OpReturn, 1)
	fn.SetStackLimit(2)
	fnCode := fn.Finish()

	a := bytecode.NewAssembler("square_call", 0, 0, 0)
	subIdx := a.SubCode(fnCode)
	identF := a.Ident("f")
	a.EmitLiteral(bytecode.OpNewFunction, subIdx, 1)
	a.EmitStackLiteral(bytecode.OpPutIdent, identF, 1)

	a.Emit(bytecode.OpLoadUndefined, 2) // this
	a.EmitLiteral(bytecode.OpGetIdent, identF, 2)
	a.Emit(bytecode.OpNewArray, 2)
	c11 := a.Const(bytecode.Value(intLiteral(11)))
	a.EmitLiteral(bytecode.OpLoadLiteral, c11, 2)
	a.Emit(bytecode.OpArrayPush, 2)
	a.Emit(bytecode.OpCall, 2)
	a.Emit(bytecode.OpReturn, 2)
	a.SetStackLimit(4)
	return a.Finish()
}

// ArrowCall builds `((x) => x + 1)(41)`, returning 42.
func ArrowCall() *bytecode.CompiledCode {
	fn := bytecode.NewAssembler("arrow", 1, 1, bytecode.IsArrow)
	fn.EmitLiteral(bytecode.OpLoadLiteral, 0, 1)
	c1 := fn.Const(bytecode.Value(intLiteral(1)))
	fn.EmitLiteral(bytecode.OpLoadLiteral, c1, 1)
	fn.Emit(bytecode.OpAdd, 1)
	fn.Emit(bytecode.OpReturn, 1)
	fn.SetStackLimit(2)
	fnCode := fn.Finish()

	a := bytecode.NewAssembler("arrow_call", 0, 0, 0)
	subIdx := a.SubCode(fnCode)
	a.Emit(bytecode.OpLoadUndefined, 1) // this
	a.EmitLiteral(bytecode.OpNewFunction, subIdx, 1)
	a.Emit(bytecode.OpNewArray, 1)
	c41 := a.Const(bytecode.Value(intLiteral(41)))
	a.EmitLiteral(bytecode.OpLoadLiteral, c41, 1)
	a.Emit(bytecode.OpArrayPush, 1)
	a.Emit(bytecode.OpCall, 1)
	a.Emit(bytecode.OpReturn, 1)
	a.SetStackLimit(4)
	return a.Finish()
}

// ProxyCallCounter builds a Proxy whose handler's get trap returns a
// running call count and whose set trap rebases that counter to the
// assigned value, then reads p.value three times, assigns p.value = 55,
// and reads it a fourth time. The returned program yields the array
// [1, 2, 3, 56].
func ProxyCallCounter() *bytecode.CompiledCode {
	get := bytecode.NewAssembler("get", 3, 3, bytecode.IsFunction)
	getCount := get.Ident("count")
	// count = count + 1; return count
	get.EmitLiteral(bytecode.OpGetIdent, getCount, 1)
	c1 := get.Const(bytecode.Value(intLiteral(1)))
	get.EmitLiteral(bytecode.OpLoadLiteral, c1, 1)
	get.Emit(bytecode.OpAdd, 1)
	get.EmitStackLiteral(bytecode.OpPutIdent, getCount, 1)
	get.EmitLiteral(bytecode.OpGetIdent, getCount, 1)
	get.Emit(bytecode.OpReturn, 1)
	get.SetStackLimit(2)

	set := bytecode.NewAssembler("set", 4, 4, bytecode.IsFunction)
	setCount := set.Ident("count")
	// count = value (the third handler argument, register index 2)
	set.EmitLiteral(bytecode.OpLoadLiteral, 2, 1)
	set.EmitStackLiteral(bytecode.OpPutIdent, setCount, 1)
	set.Emit(bytecode.OpReturnUndefined, 1)
	set.SetStackLimit(2)

	a := bytecode.NewAssembler("proxy_get_count", 0, 0, 0)
	identCount := a.Ident("count")
	// each of the three assemblers interns "count" in its own literal
	// table, so the index differs per function body; GET_IDENT/PUT_IDENT
	// resolve by name through the lexical environment chain, so all three
	// reach the same global binding.
	getSub := a.SubCode(get.Finish())
	setSub := a.SubCode(set.Finish())
	identGet := a.Ident("get")
	identSet := a.Ident("set")
	identProxy := a.Ident("Proxy")
	identValue := a.Ident("value")
	identP := a.Ident("p")

	zero := a.Const(bytecode.Value(intLiteral(0)))
	a.EmitLiteral(bytecode.OpLoadLiteral, zero, 1)
	a.EmitStackLiteral(bytecode.OpPutIdent, identCount, 1)

	a.EmitLiteral(bytecode.OpGetIdent, identProxy, 2)
	a.Emit(bytecode.OpNewArray, 2)

	a.Emit(bytecode.OpNewObject, 2) // target
	a.Emit(bytecode.OpArrayPush, 2)

	a.Emit(bytecode.OpNewObject, 2) // handler
	a.Emit(bytecode.OpDup, 2)
	a.EmitLiteral(bytecode.OpNewFunction, getSub, 2)
	a.EmitLiteral(bytecode.OpSetProp, identGet, 2)
	a.Emit(bytecode.OpPop, 2)
	a.Emit(bytecode.OpDup, 2)
	a.EmitLiteral(bytecode.OpNewFunction, setSub, 2)
	a.EmitLiteral(bytecode.OpSetProp, identSet, 2)
	a.Emit(bytecode.OpPop, 2)
	a.Emit(bytecode.OpArrayPush, 2)

	a.Emit(bytecode.OpConstruct, 2)
	a.EmitStackLiteral(bytecode.OpPutIdent, identP, 2)

	a.Emit(bytecode.OpNewArray, 3) // results
	for i := 0; i < 3; i++ {
		a.EmitLiteral(bytecode.OpGetIdent, identP, 3)
		a.EmitLiteral(bytecode.OpGetProp, identValue, 3)
		a.Emit(bytecode.OpArrayPush, 3)
	}

	a.EmitLiteral(bytecode.OpGetIdent, identP, 4)
	c55 := a.Const(bytecode.Value(intLiteral(55)))
	a.EmitLiteral(bytecode.OpLoadLiteral, c55, 4)
	a.EmitLiteral(bytecode.OpSetProp, identValue, 4)
	a.Emit(bytecode.OpPop, 4)

	a.EmitLiteral(bytecode.OpGetIdent, identP, 5)
	a.EmitLiteral(bytecode.OpGetProp, identValue, 5)
	a.Emit(bytecode.OpArrayPush, 5)

	a.Emit(bytecode.OpReturn, 5)
	a.SetStackLimit(6)
	return a.Finish()
}
