package errors

import (
	"strings"
	"testing"
)

func TestAssembleErrorImplementsEngineError(t *testing.T) {
	var e EngineError = &AssembleError{Position: Position{Line: 3, Column: 5}, Msg: "bad literal index"}
	if e.Kind() != "Assemble" {
		t.Fatalf("Kind() = %q, want Assemble", e.Kind())
	}
	if e.Message() != "bad literal index" {
		t.Fatalf("Message() = %q, want the plain message without position info", e.Message())
	}
	if !strings.Contains(e.Error(), "3:5") {
		t.Fatalf("Error() = %q, want it to include the 1-based line:column", e.Error())
	}
}

func TestRuntimeErrorImplementsEngineError(t *testing.T) {
	var e EngineError = &RuntimeError{Position: Position{Line: 1, Column: 1}, Msg: "frame overflow"}
	if e.Kind() != "Runtime" {
		t.Fatalf("Kind() = %q, want Runtime", e.Kind())
	}
	if e.Pos().Line != 1 {
		t.Fatalf("Pos().Line = %d, want 1", e.Pos().Line)
	}
}

func TestDisplayErrorsDoesNotPanicOnEmptyList(t *testing.T) {
	DisplayErrors(nil)
	DisplayErrors([]EngineError{&RuntimeError{Msg: "x"}})
}
