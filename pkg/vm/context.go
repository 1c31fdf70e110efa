package vm

// ContextKind enumerates the context-stack machine's record types (spec
// component D), grounded directly on the VM_CONTEXT_* family in
// original_source/jerry-core/vm/vm.c: each statement form that needs
// cleanup on abrupt completion (break/continue/return/throw) pushes one of
// these onto the current frame's context stack, and CONTEXT_END pops and
// runs that cleanup.
type ContextKind uint8

const (
	ContextTry ContextKind = iota
	ContextCatch
	ContextFinallyJump   // running a finally block entered via normal fallthrough
	ContextFinallyThrow  // running a finally block entered by an exception
	ContextFinallyReturn // running a finally block entered by a return
	ContextWith
	ContextForIn
	ContextForOf
	ContextBlock
)

// Context record bit flags, also grounded on vm.c's VM_CONTEXT_*_HAS_LEX_ENV
// and close-iterator bits.
const (
	ctxHasLexEnv     = 1 << iota // this context pushed a lexical environment that CONTEXT_END must pop
	ctxCloseIterator              // for-of: the driving iterator needs IteratorClose on abrupt exit
)

// ContextRecord is one entry of a frame's context stack.
type ContextRecord struct {
	Kind  ContextKind
	Flags uint8

	// CatchJumpTarget / FinallyJumpTarget: bytecode offsets to resume at.
	CatchTarget   int
	FinallyTarget int

	// HasFinally marks a ContextTry record as one a matching finally must
	// also run for, even when a catch handled the exception (spec's
	// "pending finally takes precedence" rule).
	HasFinally bool

	// SavedEnv is the lexical environment to restore when this context
	// pops, if ctxHasLexEnv is set.
	SavedEnv *LexEnv

	// Iterator state for ContextForIn/ContextForOf.
	Iterator    Value
	ForInKeys   []string // pre-collected enumerable keys, walked by index (spec §12: enumeration order is fixed up front)
	ForInIndex  int
	LoopVarSlot int // register or ident literal index the loop variable binds to each iteration

	// PendingCompletion carries an in-flight abrupt completion (return
	// value, or break/continue target) through a finally block so it can be
	// resumed or re-thrown once the finally body finishes, per the
	// pending-finally-precedence rule below.
	PendingCompletion *Completion
}

// CompletionKind distinguishes the different ways a block or function body
// can finish.
type CompletionKind uint8

const (
	CompletionNormal CompletionKind = iota
	CompletionReturn
	CompletionThrow
	CompletionBreak
	CompletionContinue
)

// Completion is an abrupt (or normal) completion value threaded through
// CONTEXT_END while a finally block is pending (spec §12's pending-finally
// precedence: a new abrupt completion produced *inside* a finally block
// overrides whatever completion the finally was entered to propagate).
type Completion struct {
	Kind   CompletionKind
	Value  Value
	Target int // bytecode offset for Break/Continue
}

// findFinally scans a frame's context stack from the top for the nearest
// ContextTry record with HasFinally set; every record above it, including
// the ContextFinally* record of a finally that is already running, is
// skipped. A try's own record is popped when its finally starts, so a
// running finally's try is never found again.
// Mirrors vm.c's handling of exception propagation through nested try
// blocks: the *nearest* enclosing finally always runs before the
// exception/return/break continues outward, and only one finally runs per
// CONTEXT_END pop — outer finallys get their turn on their own subsequent
// pop, not all at once.
func findFinally(f *Frame) (int, bool) {
	for i := len(f.Contexts) - 1; i >= 0; i-- {
		c := f.Contexts[i]
		if c.Kind == ContextTry && c.HasFinally {
			return i, true
		}
		if c.Kind == ContextCatch {
			continue
		}
	}
	return -1, false
}

// contextAbort unwinds contexts above (and including) index `upTo`,
// restoring each one's saved lexical environment and running
// IteratorClose for any for-of context being abandoned abnormally (spec
// §4D "CLOSE_ITERATOR" bit, grounded on vm.c's abrupt completion handling of
// VM_CONTEXT_HAS_LEX_ENV / iterator-owning contexts). It does not touch
// index upTo-1 and below.
func contextAbort(vmi *VM, f *Frame, upTo int) {
	for len(f.Contexts) > upTo {
		c := f.popContext()
		if c.Flags&ctxHasLexEnv != 0 {
			f.LexEnv = c.SavedEnv
		}
		if c.Flags&ctxCloseIterator != 0 && c.Kind == ContextForOf {
			closeIterator(vmi, c.Iterator, false)
		}
	}
}
