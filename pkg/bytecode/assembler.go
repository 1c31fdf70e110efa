package bytecode

// Assembler builds a CompiledCode value one opcode at a time. It stands in
// for the bytecode-generating compiler spec.md §1 puts out of scope: callers
// (tests, cmd/escore's bundled demos) act as that compiler would, emitting
// already-resolved literal-table indices rather than parsing source text.
type Assembler struct {
	code CompiledCode

	identIndex map[string]uint16
	constList  []Value
}

// NewAssembler starts a CompiledCode builder. argumentEnd/registerEnd size
// the register segment; flags become the header's flag word as given. The
// literal-segment bounds start at registerEnd and are widened by Ident,
// Const, SubCode and Regexp as literals are added.
func NewAssembler(name string, argumentEnd, registerEnd uint16, flags HeaderFlags) *Assembler {
	a := &Assembler{
		code: CompiledCode{
			Name:        name,
			Flags:       flags,
			ArgumentEnd: argumentEnd,
			RegisterEnd: registerEnd,
		},
		identIndex: make(map[string]uint16),
	}
	a.code.IdentEnd = registerEnd
	a.code.ConstLiteralEnd = registerEnd
	a.code.LiteralEnd = registerEnd
	return a
}

// Ident interns an identifier name and returns its literal-table index,
// reusing the index if the same name was already interned (spec §4B: the
// identifier segment holds variable names for lex-env lookup).
func (a *Assembler) Ident(name string) uint16 {
	if idx, ok := a.identIndex[name]; ok {
		return idx
	}
	idx := a.code.IdentEnd
	a.code.Idents = append(a.code.Idents, name)
	a.identIndex[name] = idx
	a.code.IdentEnd++
	a.code.ConstLiteralEnd++
	a.code.LiteralEnd++
	return idx
}

// Const appends a primitive literal and returns its literal-table index.
// Unlike Ident, constants are not deduplicated (matching the teacher's
// Chunk.AddConstant, which has the same TODO).
func (a *Assembler) Const(v Value) uint16 {
	idx := a.code.ConstLiteralEnd
	a.code.Constants = append(a.code.Constants, v)
	a.code.ConstLiteralEnd++
	a.code.LiteralEnd++
	return idx
}

// SubCode appends a nested function body and returns its literal-table index.
func (a *Assembler) SubCode(fn *CompiledCode) uint16 {
	idx := a.code.LiteralEnd
	a.code.SubCode = append(a.code.SubCode, fn)
	a.code.Regexps = append(a.code.Regexps, RegexpLiteral{})
	a.code.LiteralEnd++
	return idx
}

// Regexp appends a regexp literal template and returns its literal-table index.
func (a *Assembler) Regexp(source, flags string) uint16 {
	idx := a.code.LiteralEnd
	a.code.SubCode = append(a.code.SubCode, nil)
	a.code.Regexps = append(a.code.Regexps, RegexpLiteral{Source: source, Flags: flags})
	a.code.LiteralEnd++
	return idx
}

// Emit appends a bare opcode byte with no operands.
func (a *Assembler) Emit(op OpCode, line int) {
	a.code.Code = append(a.code.Code, byte(op))
	a.code.Lines = append(a.code.Lines, line)
}

// EmitLiteral appends an opcode followed by a literal-table index, encoded
// narrow or wide per the header's FullLiteralEncoding flag.
func (a *Assembler) EmitLiteral(op OpCode, lit uint16, line int) {
	a.Emit(op, line)
	a.writeLiteralIndex(lit)
}

// EmitStackLiteral appends an opcode whose only encoded operand is a
// literal index (the stack operand is implicit: the top of the operand
// stack at execution time).
func (a *Assembler) EmitStackLiteral(op OpCode, lit uint16, line int) {
	a.EmitLiteral(op, lit, line)
}

func (a *Assembler) writeLiteralIndex(lit uint16) {
	if a.code.Flags&FullLiteralEncoding != 0 {
		a.code.Code = append(a.code.Code, byte(lit>>8), byte(lit&0xFF))
		return
	}
	if lit < narrowEncodingLimit {
		a.code.Code = append(a.code.Code, byte(lit))
		return
	}
	wide := lit + narrowEncodingDelta
	a.code.Code = append(a.code.Code, byte(wide>>8), byte(wide&0xFF))
}

// EmitLine appends an OpLine carrying a raw 2-byte source line number (not
// a literal-table index — LINE_INFO's whole point is to update frame state
// from a number the compiler already knows, without a literal-table
// round-trip for something this transient).
func (a *Assembler) EmitLine(sourceLine int, line int) {
	a.Emit(OpLine, line)
	a.code.Code = append(a.code.Code, byte(sourceLine>>8), byte(sourceLine&0xFF))
}

// EmitBranch appends a branch opcode with a placeholder 2-byte offset and
// returns the byte offset of that placeholder, to be resolved by PatchBranch
// once the jump target is known (two-pass assembly, as a real compiler's
// backpatcher would do).
func (a *Assembler) EmitBranch(op OpCode, line int) int {
	a.Emit(op, line)
	placeholder := len(a.code.Code)
	a.code.Code = append(a.code.Code, 0, 0)
	return placeholder
}

// Here returns the current end-of-stream offset, for computing branch targets.
func (a *Assembler) Here() int { return len(a.code.Code) }

// PatchBranch backfills a placeholder produced by EmitBranch with the signed
// offset from just after the 2-byte operand to the given absolute target.
func (a *Assembler) PatchBranch(placeholder int, target int) {
	offset := int16(target - (placeholder + 2))
	a.code.Code[placeholder] = byte(uint16(offset) >> 8)
	a.code.Code[placeholder+1] = byte(uint16(offset) & 0xFF)
}

// SetStackLimit records the compiler-computed maximum operand-stack height
// (spec §3: "the compiler guarantees stack_limit suffices").
func (a *Assembler) SetStackLimit(n uint16) { a.code.StackLimit = n }

// Finish returns the assembled CompiledCode. The Assembler should not be
// reused afterward.
func (a *Assembler) Finish() *CompiledCode {
	return &a.code
}
