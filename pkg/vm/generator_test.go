package vm

import (
	"escore/pkg/bytecode"
	"testing"
)

// buildYieldTwiceThenReturn assembles the generator body `{ yield 1; yield
// 2; return 3 }`, bypassing the call protocol (no parser/compiler in this
// module) to drive GeneratorObject directly at the frame level.
func buildYieldTwiceThenReturn() *bytecode.CompiledCode {
	a := bytecode.NewAssembler("gen", 0, 0, bytecode.IsFunction|bytecode.IsGenerator)
	c1 := a.Const(NewInteger(1))
	a.EmitLiteral(bytecode.OpLoadLiteral, c1, 1)
	a.Emit(bytecode.OpYield, 1)
	a.Emit(bytecode.OpPop, 1)
	c2 := a.Const(NewInteger(2))
	a.EmitLiteral(bytecode.OpLoadLiteral, c2, 2)
	a.Emit(bytecode.OpYield, 2)
	a.Emit(bytecode.OpPop, 2)
	c3 := a.Const(NewInteger(3))
	a.EmitLiteral(bytecode.OpLoadLiteral, c3, 3)
	a.Emit(bytecode.OpReturn, 3)
	a.SetStackLimit(2)
	return a.Finish()
}

func TestGeneratorYieldSuspendsAndResumes(t *testing.T) {
	vmi := NewVM(DefaultOptions())
	frame := NewFrame(buildYieldTwiceThenReturn(), Undefined)
	g := newGeneratorObject(vmi, frame)

	v, done, thrown := g.next(Undefined)
	if thrown != nil || done || !v.IsInteger() || v.AsInteger() != 1 {
		t.Fatalf("first next() = (%+v, done=%v, thrown=%v), want (1, false, nil)", v, done, thrown)
	}

	v, done, thrown = g.next(Undefined)
	if thrown != nil || done || !v.IsInteger() || v.AsInteger() != 2 {
		t.Fatalf("second next() = (%+v, done=%v, thrown=%v), want (2, false, nil)", v, done, thrown)
	}

	v, done, thrown = g.next(Undefined)
	if thrown != nil || !done || !v.IsInteger() || v.AsInteger() != 3 {
		t.Fatalf("third next() = (%+v, done=%v, thrown=%v), want (3, true, nil)", v, done, thrown)
	}

	v, done, thrown = g.next(Undefined)
	if thrown != nil || !done || v.Type() != TypeUndefined {
		t.Fatalf("next() after completion should keep returning (undefined, true, nil), got (%+v, %v, %v)", v, done, thrown)
	}
}

func TestGeneratorThrowIntoNotStartedGeneratorPropagates(t *testing.T) {
	vmi := NewVM(DefaultOptions())
	frame := NewFrame(buildYieldTwiceThenReturn(), Undefined)
	g := newGeneratorObject(vmi, frame)

	_, done, thrown := g.throw(NewString("boom"))
	if !done || thrown == nil {
		t.Fatalf("throwing into a not-yet-started generator should fail it immediately with the thrown value")
	}
	if thrown.Value.AsString() != "boom" {
		t.Fatalf("throw() must surface the injected value unchanged, got %q", thrown.Value.ToStringValue())
	}
}

func TestGeneratorReturnEndsEarly(t *testing.T) {
	vmi := NewVM(DefaultOptions())
	frame := NewFrame(buildYieldTwiceThenReturn(), Undefined)
	g := newGeneratorObject(vmi, frame)

	g.next(Undefined) // reach the first yield

	v, done, thrown := g.returnValue(NewInteger(99))
	if thrown != nil || !done || !v.IsInteger() || v.AsInteger() != 99 {
		t.Fatalf("returnValue(99) = (%+v, done=%v, thrown=%v), want (99, true, nil)", v, done, thrown)
	}
	v, done, _ = g.next(Undefined)
	if !done {
		t.Fatalf("a generator must stay done after an explicit return()")
	}
	_ = v
}
