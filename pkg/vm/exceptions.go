package vm

import "fmt"

// This file implements the exception-propagation model (spec §7): throwing
// walks the current frame's context stack for a handler, running any
// pending finally blocks along the way; finding none, it pops the frame and
// re-raises in the caller, following the call chain this interpreter
// already maintains explicitly via vm.frames (the non-recursive call
// protocol of component G doubles as the unwind path here — there is no
// separate native stack to unwind). Grounded on the teacher's
// pkg/vm/exceptions.go control flow, adapted from its exception-table model
// to this interpreter's context-record model.

// errorPrototypes holds the standard Error subtype prototypes, populated at
// VM construction (vm_init.go).
type errorPrototypes struct {
	errorProto       Value
	typeErrorProto   Value
	rangeErrorProto  Value
	refErrorProto    Value
	syntaxErrorProto Value
}

// newErrorObject builds a standard Error-family instance. When
// Options.ErrorMessages is off (the ERROR_MESSAGES config flag, spec §6),
// the specific formatted message is dropped in favor of the bare error
// kind, the way a build without ERROR_MESSAGES compiled in has no string
// table to format from.
func (vmi *VM) newErrorObject(proto Value, name, message string) Value {
	if !vmi.Options.ErrorMessages {
		message = name
	}
	obj := NewPlainObject(proto)
	obj.class = "Error"
	obj.SetOwn("message", NewString(message))
	obj.SetOwn("name", NewString(name))
	obj.SetOwn("stack", NewString(fmt.Sprintf("%s: %s", name, message)))
	return NewObjectValue(obj)
}

func (vmi *VM) makeTypeError(message string) Value {
	return vmi.newErrorObject(vmi.errProtos.typeErrorProto, "TypeError", message)
}

func (vmi *VM) makeRangeError(message string) Value {
	return vmi.newErrorObject(vmi.errProtos.rangeErrorProto, "RangeError", message)
}

func (vmi *VM) makeReferenceError(message string) Value {
	return vmi.newErrorObject(vmi.errProtos.refErrorProto, "ReferenceError", message)
}

func (vmi *VM) makeSyntaxError(message string) Value {
	return vmi.newErrorObject(vmi.errProtos.syntaxErrorProto, "SyntaxError", message)
}

// MakeSyntaxErrorValue exposes makeSyntaxError to pkg/driver, which has no
// access to the dispatch loop's internal error constructors but still needs
// to reject a disabled-config-flag call (e.g. RunModule with
// Options.ModuleSystem off) with a real engine error value rather than a Go
// error.
func (vmi *VM) MakeSyntaxErrorValue(message string) Value {
	return vmi.makeSyntaxError(message)
}

// throwInFrame implements the THROW opcode group and every internal error
// site: it searches f's context stack (innermost first) for a handler.
//
//   - A ContextTry with a catch target: pop contexts down to and including
//     that record, leave the exception in f.BlockResult, and resume at
//     CatchTarget.
//   - A ContextTry with HasFinally but the exception reached it before any
//     catch claimed it: pop down to and including it, push a
//     ContextFinallyThrow record carrying the exception as a pending Throw
//     completion, and resume at FinallyTarget — the finally block
//     always runs, even on an unhandled exception, per spec §7.
//   - Nothing found in this frame: the frame itself completes abruptly; the
//     caller (vm.go's dispatch loop, after popping this frame) re-enters
//     throwInFrame on the parent frame with the same exception value.
//
// Returns true if a handler in this frame claimed the exception (dispatch
// should resume at f.ip), false if the frame has no handler and must
// unwind to its caller.
func throwInFrame(vmi *VM, f *Frame, exc Value) bool {
	for i := len(f.Contexts) - 1; i >= 0; i-- {
		c := f.Contexts[i]
		switch c.Kind {
		case ContextTry:
			if c.CatchTarget != 0 {
				contextAbort(vmi, f, i)
				f.ip = c.CatchTarget
				f.BlockResult = exc
				return true
			}
			if c.HasFinally {
				contextAbort(vmi, f, i)
				f.pushContext(ContextRecord{
					Kind:              ContextFinallyThrow,
					FinallyTarget:     c.FinallyTarget,
					PendingCompletion: &Completion{Kind: CompletionThrow, Value: exc},
				})
				f.ip = c.FinallyTarget
				return true
			}
		case ContextForOf:
			// An exception unwinding past a for-of loop must close its
			// iterator before continuing to search outer contexts (spec
			// §4D ctxCloseIterator), even though this context itself never
			// claims the exception.
			closeIterator(vmi, c.Iterator, true)
		}
	}
	return false
}

// resumeFinally is called by the dispatch loop when it decodes a
// CONTEXT_END opcode that closes a finally block: the pending completion
// recorded when the finally was entered is resumed here. If the finally
// body itself produced a *new* abrupt completion (a return, break,
// continue, or throw executed inside the finally), that overrides whatever
// completion this finally was entered to propagate — the
// pending-finally-precedence rule of spec §12, grounded on
// original_source/jerry-core/vm/vm.c's VM_CONTEXT_FINALLY handling, which
// always honors the innermost completion rather than queuing both.
func resumeFinally(vmi *VM, f *Frame) (done bool, rethrew bool) {
	c := f.popContext()
	if c.PendingCompletion == nil {
		return true, false
	}
	switch c.PendingCompletion.Kind {
	case CompletionThrow:
		if throwInFrame(vmi, f, c.PendingCompletion.Value) {
			return false, true
		}
		excVal := c.PendingCompletion.Value
		vmi.pendingException = &excVal
		return true, true
	case CompletionReturn:
		v := c.PendingCompletion.Value
		vmi.pendingReturn = &v
		return true, false
	case CompletionBreak, CompletionContinue:
		f.ip = c.PendingCompletion.Target
		return false, false
	default:
		return true, false
	}
}
