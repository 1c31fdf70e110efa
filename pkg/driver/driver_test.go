package driver_test

import (
	"testing"

	"escore/internal/demo"
	"escore/pkg/driver"
	"escore/pkg/vm"
)

func TestRunGlobalPersistsDeclarationsAcrossCalls(t *testing.T) {
	s := driver.NewDefault()

	result, thrown := s.RunGlobal(demo.Addition())
	if thrown != nil {
		t.Fatalf("unexpected throw: %v", thrown.Value.ToStringValue())
	}
	if !result.IsInteger() || result.AsInteger() != 3 {
		t.Fatalf("Addition() = %+v, want 3", result)
	}

	// Addition() declares top-level `a` and `b` as var bindings; after the
	// call returns they must still be bound on the session's global
	// environment, the one environment every later call on this session
	// shares.
	env := s.VM.Global()
	if !env.HasBinding("a") || !env.HasBinding("b") {
		t.Fatalf("top-level var declarations from a prior RunGlobal call did not persist on the session")
	}
}

func TestRunEvalIndirectUsesGlobalThis(t *testing.T) {
	s := driver.NewDefault()
	code := demo.Addition()
	result, thrown := s.RunEval(code, driver.IndirectEval, driver.CallingContext{})
	if thrown != nil {
		t.Fatalf("unexpected throw: %v", thrown.Value.ToStringValue())
	}
	if !result.IsInteger() || result.AsInteger() != 3 {
		t.Fatalf("RunEval(IndirectEval) = %+v, want 3", result)
	}
}

func TestRunEvalDirectInheritsCallingThis(t *testing.T) {
	s := driver.NewDefault()
	callerThis := vm.NewObjectValue(vm.NewPlainObject(vm.Undefined))
	calling := driver.CallingContext{This: callerThis, LexEnv: s.VM.Global()}

	// ArrowCall doesn't reference `this`, so this only exercises that a
	// direct eval runs without error when given an explicit calling context;
	// a full this-binding assertion would need a program that reads `this`.
	_, thrown := s.RunEval(demo.ArrowCall(), driver.DirectEval, calling)
	if thrown != nil {
		t.Fatalf("unexpected throw: %v", thrown.Value.ToStringValue())
	}
}

func TestRunModuleWithNilLexEnvCreatesOne(t *testing.T) {
	s := driver.NewDefault()
	result, thrown := s.RunModule(demo.SquareCall(), nil)
	if thrown != nil {
		t.Fatalf("unexpected throw: %v", thrown.Value.ToStringValue())
	}
	if !result.IsInteger() || result.AsInteger() != 121 {
		t.Fatalf("RunModule(SquareCall) = %+v, want 121", result)
	}
}
