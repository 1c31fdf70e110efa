package vm

import (
	"escore/pkg/bytecode"
	"testing"
)

// buildReturnFirstArg assembles a tiny function body `return arg0` so
// prepareCall/bindParameters/runFrame can be exercised without a compiler.
func buildReturnFirstArg() *bytecode.CompiledCode {
	a := bytecode.NewAssembler("id", 1, 1, bytecode.IsFunction)
	a.EmitLiteral(bytecode.OpLoadLiteral, 0, 1) // literal index 0 falls in the register segment: arg0
	a.Emit(bytecode.OpReturn, 1)
	a.SetStackLimit(1)
	return a.Finish()
}

func newIdentityClosure() *ClosureObject {
	fn := &FunctionObject{Name: "id", Code: buildReturnFirstArg(), Length: 1}
	return &ClosureObject{Fn: fn, CapturedEnv: nil}
}

func TestCallValueInvokesClosureAndReturnsItsValue(t *testing.T) {
	vmi := NewVM(DefaultOptions())
	closure := newIdentityClosure()

	result, thrown := vmi.callValue(NewObjectValue(closure), Undefined, []Value{NewInteger(7)})
	if thrown != nil {
		t.Fatalf("unexpected throw: %v", thrown.Value.ToStringValue())
	}
	if !result.IsInteger() || result.AsInteger() != 7 {
		t.Fatalf("callValue(identity, 7) = %+v, want 7", result)
	}
}

func TestCallValueOnNonCallableThrowsTypeError(t *testing.T) {
	vmi := NewVM(DefaultOptions())
	_, thrown := vmi.callValue(NewInteger(5), Undefined, nil)
	if thrown == nil {
		t.Fatalf("calling a non-callable value must throw a TypeError")
	}
}

func TestCallValueInvokesNativeFunction(t *testing.T) {
	vmi := NewVM(DefaultOptions())
	native := NewNativeFunction("double", 1, func(vmi *VM, this Value, args []Value, newTarget Value) (Value, *ThrownError) {
		return NewInteger(argOrUndefined(args, 0).AsInteger() * 2), nil
	})
	result, thrown := vmi.callValue(NewObjectValue(native), Undefined, []Value{NewInteger(21)})
	if thrown != nil {
		t.Fatalf("unexpected throw: %v", thrown.Value.ToStringValue())
	}
	if !result.IsInteger() || result.AsInteger() != 42 {
		t.Fatalf("callValue(double, 21) = %+v, want 42", result)
	}
}

func TestBoundFunctionPrependsPartialArgs(t *testing.T) {
	vmi := NewVM(DefaultOptions())
	var seen []Value
	target := NewNativeFunction("record", 0, func(vmi *VM, this Value, args []Value, newTarget Value) (Value, *ThrownError) {
		seen = args
		return Undefined, nil
	})
	bound := &BoundFunctionObject{Target: NewObjectValue(target), BoundThis: Undefined, PartialArgs: []Value{NewInteger(1), NewInteger(2)}}

	_, thrown := vmi.callValue(NewObjectValue(bound), Undefined, []Value{NewInteger(3)})
	if thrown != nil {
		t.Fatalf("unexpected throw: %v", thrown.Value.ToStringValue())
	}
	if len(seen) != 3 || seen[0].AsInteger() != 1 || seen[1].AsInteger() != 2 || seen[2].AsInteger() != 3 {
		t.Fatalf("bound call should see partial args followed by call-site args, got %v", seen)
	}
}

func TestBindParametersFoldsSurplusIntoRestArray(t *testing.T) {
	code := &bytecode.CompiledCode{ArgumentEnd: 2, RegisterEnd: 2, Flags: bytecode.RestParameter}
	frame := &Frame{Code: code, Registers: make([]Value, 2)}

	bindParameters(frame, code, []Value{NewInteger(1), NewInteger(2), NewInteger(3)})

	if frame.Registers[0].AsInteger() != 1 {
		t.Fatalf("first fixed parameter = %+v, want 1", frame.Registers[0])
	}
	rest, ok := frame.Registers[1].AsObject().(*ArrayObject)
	if !ok {
		t.Fatalf("rest parameter register should hold an array, got %+v", frame.Registers[1])
	}
	if rest.Length() != 2 {
		t.Fatalf("rest array should collect the 2 surplus arguments, got length %d", rest.Length())
	}
}

func TestBindParametersPadsMissingArgsWithUndefined(t *testing.T) {
	code := &bytecode.CompiledCode{ArgumentEnd: 2, RegisterEnd: 2}
	frame := &Frame{Code: code, Registers: make([]Value, 2)}

	bindParameters(frame, code, []Value{NewInteger(1)})

	if frame.Registers[1].Type() != TypeUndefined {
		t.Fatalf("a missing trailing argument should be padded with Undefined, got %+v", frame.Registers[1])
	}
}

func TestConstructValueSubstitutesObjectReturnValue(t *testing.T) {
	vmi := NewVM(DefaultOptions())
	sentinel := NewObjectValue(NewPlainObject(Undefined))
	ctor := NewNativeFunction("Weird", 0, func(vmi *VM, this Value, args []Value, newTarget Value) (Value, *ThrownError) {
		return sentinel, nil
	})

	result, thrown := vmi.constructValue(NewObjectValue(ctor), nil, NewObjectValue(ctor))
	if thrown != nil {
		t.Fatalf("unexpected throw: %v", thrown.Value.ToStringValue())
	}
	if result != sentinel {
		t.Fatalf("a constructor returning an object must substitute that object for `this`, got %+v", result)
	}
}

func TestExecSuperCallRejectsASecondCallInTheSameConstructor(t *testing.T) {
	vmi := NewVM(DefaultOptions())
	superCtor := NewNativeFunction("Base", 0, func(vmi *VM, this Value, args []Value, newTarget Value) (Value, *ThrownError) {
		return Undefined, nil
	})
	derived := &ClosureObject{Fn: &FunctionObject{
		Name:                 "Derived",
		IsClassConstructor:   true,
		IsDerivedConstructor: true,
		SuperConstructor:     NewObjectValue(superCtor),
	}}
	f := newBareFrame()
	f.Closure = derived
	f.This = Uninitialized

	f.push(NewObjectValue(NewArrayObject(vmi.arrayProto, nil)))
	if outcome := vmi.execSuperCall(f); outcome.kind == stepThrow {
		t.Fatalf("the first super() call should succeed, got throw %+v", outcome.value)
	}
	if f.This.IsUninitialized() {
		t.Fatalf("a successful super() call should resolve f.This")
	}

	f.push(NewObjectValue(NewArrayObject(vmi.arrayProto, nil)))
	outcome := vmi.execSuperCall(f)
	if outcome.kind != stepThrow {
		t.Fatalf("a second super() call in the same constructor must throw, got %+v", outcome)
	}
}

func TestConstructValueKeepsAllocatedThisWhenCtorReturnsNonObject(t *testing.T) {
	vmi := NewVM(DefaultOptions())
	ctor := NewNativeFunction("Plain", 0, func(vmi *VM, this Value, args []Value, newTarget Value) (Value, *ThrownError) {
		return NewInteger(123), nil
	})

	result, thrown := vmi.constructValue(NewObjectValue(ctor), nil, NewObjectValue(ctor))
	if thrown != nil {
		t.Fatalf("unexpected throw: %v", thrown.Value.ToStringValue())
	}
	if !result.IsObject() {
		t.Fatalf("a constructor returning a primitive must keep the freshly allocated `this`, got %+v", result)
	}
}
