// Package driver wires the three entry points spec component H names
// (run_global, run_eval, run_module) onto a persistent pkg/vm.VM instance,
// the way the teacher's pkg/driver.Paserati session wires compile+interpret
// onto a persistent VM. Since the bytecode-producing compiler is out of
// scope (spec §1), the caller supplies an already-built
// *bytecode.CompiledCode (the assembler's output) instead of source text —
// this package starts one step later in the pipeline than the teacher's
// RunString/RunFile, but keeps the same session-object shape.
package driver

import (
	"escore/pkg/bytecode"
	"escore/pkg/vm"
)

// Session is a persistent interpreter session: one VM/realm shared across
// multiple RunGlobal/RunEval calls, so top-level `var`/function declarations
// from one call are visible to the next — the behavior a REPL needs and
// which a fresh VM per call would not give.
type Session struct {
	VM *vm.VM
}

// New creates a session with a fresh VM and realm (globalThis, standard
// prototypes, error constructors, console).
func New(opts vm.Options) *Session {
	return &Session{VM: vm.NewVM(opts)}
}

// NewDefault is New with the VM's default Options (spec §6's MaxFrames
// bound, tracing/cache-stats off).
func NewDefault() *Session {
	return New(vm.DefaultOptions())
}

// RunGlobal installs code as the global scope and dispatches it (spec
// §4H): "installs the global scope, optionally creates a lexical block, and
// calls into the loop." The session's persistent global environment is used
// directly (not a fresh one per call), so declarations accumulate exactly
// as the teacher's persistent Paserati session accumulates globals across
// RunCode calls.
func (s *Session) RunGlobal(code *bytecode.CompiledCode) (vm.Value, *vm.ThrownError) {
	result, thrown := s.VM.RunProgram(code)
	s.VM.DrainMicrotasks()
	return result, thrown
}

// EvalKind distinguishes a direct eval (inherits the caller's this-binding
// and lexical environment) from an indirect eval (runs against the global
// environment), per spec §4H's run_eval description.
type EvalKind uint8

const (
	// IndirectEval runs code against the global this-binding and
	// environment, as if it were a separate top-level script — what
	// `(0, eval)(code)` or calling eval through any other non-direct
	// reference produces.
	IndirectEval EvalKind = iota
	// DirectEval runs code with the calling context's this-binding and
	// lexical environment as its immediate parent, what a bare `eval(code)`
	// call produces.
	DirectEval
)

// CallingContext captures the this-binding and lexical environment a
// direct eval inherits from; the driver's caller (the dispatch loop's own
// EVAL opcode, if one exists in a given build) supplies this from the
// frame that issued the eval.
type CallingContext struct {
	This   vm.Value
	LexEnv *vm.LexEnv
}

// RunEval implements run_eval: "chooses the this-binding and lex-env based
// on whether the eval is direct ... or indirect, layers a strict
// declarative env if the code is strict, and layers a block env if
// requested." The strict/block layering follows the compiled code's own
// header flags (StrictMode, LexicalBlockNeeded) exactly as a function call
// does, since eval code is compiled with the same header shape as any
// other code this module consumes.
func (s *Session) RunEval(code *bytecode.CompiledCode, kind EvalKind, calling CallingContext) (vm.Value, *vm.ThrownError) {
	this := s.VM.GlobalThis()
	parentEnv := s.VM.Global()
	if kind == DirectEval {
		this = calling.This
		if calling.LexEnv != nil {
			parentEnv = calling.LexEnv
		}
	}

	env := parentEnv
	if code.Flags&bytecode.StrictMode != 0 {
		env = vm.NewDeclarativeEnv(env)
	}
	if code.Flags&bytecode.LexicalBlockNeeded != 0 {
		env = vm.NewDeclarativeEnv(env)
	}

	frame := vm.NewFrame(code, this)
	frame.LexEnv = env
	result, thrown := s.VM.RunFrame(frame)
	s.VM.DrainMicrotasks()
	return result, thrown
}

// RunModule implements run_module: "initializes module bindings before
// dispatch." lexEnv is the module's own lexical environment record,
// pre-populated by the caller with the imported bindings it resolved (the
// module loader/resolver sits upstream of this module's boundary per spec
// §1; this entry point takes an already-resolved environment rather than a
// specifier string to load).
//
// Gated by Options.ModuleSystem (the MODULE_SYSTEM config flag, spec §6): a
// build without module support compiled in has no run_module entry point at
// all, so calling this with the flag off is a SyntaxError rather than a
// silently-accepted no-op.
func (s *Session) RunModule(code *bytecode.CompiledCode, lexEnv *vm.LexEnv) (vm.Value, *vm.ThrownError) {
	if !s.VM.Options.ModuleSystem {
		return vm.Undefined, vm.NewThrownError(s.VM.MakeSyntaxErrorValue("modules are not enabled (Options.ModuleSystem is off)"))
	}
	frame := vm.NewFrame(code, vm.Undefined)
	if lexEnv != nil {
		frame.LexEnv = lexEnv
	} else {
		frame.LexEnv = vm.NewDeclarativeEnv(s.VM.Global())
	}
	result, thrown := s.VM.RunFrame(frame)
	s.VM.DrainMicrotasks()
	return result, thrown
}
