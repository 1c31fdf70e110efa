// Package errors defines the host-side diagnostic types the interpreter core
// surfaces to its embedder. These are distinct from the ECMAScript exception
// taxonomy (TypeError, ReferenceError, ...) that script code observes as
// ordinary heap values with a pending-exception slot (see pkg/vm/exceptions.go) —
// an EngineError here means "the host-level operation itself could not be
// carried out," e.g. malformed bytecode handed to the assembler.
package errors

import "fmt"

// EngineError is the interface implemented by all host-facing escore errors.
type EngineError interface {
	error
	Pos() Position
	Kind() string // "Assemble", "Runtime"
	// Message returns the specific error message without position info.
	Message() string
}

// AssembleError represents a malformed CompiledCode object: a literal-table
// bound violated, an opcode with an unknown descriptor, a header flag
// combination the loop cannot service. This is the module's substitute for
// a compiler's "syntax error" now that the compiler is an external collaborator;
// neither pkg/bytecode's Assembler nor pkg/vm constructs one.
type AssembleError struct {
	Position
	Msg string
}

func (e *AssembleError) Error() string {
	return fmt.Sprintf("Assemble Error at %d:%d: %s", e.Line, e.Column, e.Msg)
}
func (e *AssembleError) Pos() Position   { return e.Position }
func (e *AssembleError) Kind() string    { return "Assemble" }
func (e *AssembleError) Message() string { return e.Msg }

// RuntimeError represents a host-level failure during execution that is not
// itself a script-visible exception: an internal invariant violated, not a
// thrown TypeError. Nothing in pkg/vm constructs one; exceeding
// Options.MaxFrames raises a script-visible RangeError instead.
type RuntimeError struct {
	Position
	Msg string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("Runtime Error at %d:%d: %s", e.Line, e.Column, e.Msg)
}
func (e *RuntimeError) Pos() Position   { return e.Position }
func (e *RuntimeError) Kind() string    { return "Runtime" }
func (e *RuntimeError) Message() string { return e.Msg }

// DisplayErrors prints a list of EngineErrors, one line per error. The
// sourceCode arguments are accepted but not used in the output.
func DisplayErrors(errs []EngineError, sourceCode ...string) {
	for _, e := range errs {
		fmt.Println(e.Error())
	}
}
