package bytecode

import "testing"

func TestClassifyLiteralSegments(t *testing.T) {
	a := NewAssembler("t", 0, 2, 0)
	identX := a.Ident("x")
	constY := a.Const(Value("y"))
	code := a.Finish()

	if got := code.ClassifyLiteral(0); got != LiteralRegister {
		t.Fatalf("index 0 should classify as a register, got %v", got)
	}
	if got := code.ClassifyLiteral(identX); got != LiteralIdent {
		t.Fatalf("ident index should classify as LiteralIdent, got %v", got)
	}
	if got := code.ClassifyLiteral(constY); got != LiteralConst {
		t.Fatalf("const index should classify as LiteralConst, got %v", got)
	}
	if code.Ident(identX) != "x" {
		t.Fatalf("Ident(%d) = %q, want x", identX, code.Ident(identX))
	}
	if code.Constant(constY) != Value("y") {
		t.Fatalf("Constant(%d) = %v, want y", constY, code.Constant(constY))
	}
}

func TestIdentInterningDeduplicates(t *testing.T) {
	a := NewAssembler("t", 0, 0, 0)
	first := a.Ident("foo")
	second := a.Ident("foo")
	if first != second {
		t.Fatalf("interning the same identifier twice should return the same index: %d != %d", first, second)
	}
	third := a.Ident("bar")
	if third == first {
		t.Fatalf("distinct identifiers must not collide")
	}
}

func TestConstDoesNotDeduplicate(t *testing.T) {
	a := NewAssembler("t", 0, 0, 0)
	first := a.Const(Value(int64(1)))
	second := a.Const(Value(int64(1)))
	if first == second {
		t.Fatalf("Const is documented as non-deduplicating, unlike Ident")
	}
}

func TestNarrowLiteralIndexRoundTrip(t *testing.T) {
	a := NewAssembler("t", 0, 0, 0)
	// Force enough idents that one index lands above narrowEncodingLimit,
	// exercising the two-byte narrow-header escape.
	var last uint16
	for i := 0; i < narrowEncodingLimit+5; i++ {
		last = a.Ident(string(rune('a' + i)))
	}
	a.EmitLiteral(OpGetIdent, last, 1)
	code := a.Finish()

	ip := 1 // skip the opcode byte
	got := code.ReadLiteralIndexFrom(&ip)
	if got != last {
		t.Fatalf("narrow-encoded literal index round-trip failed: wrote %d, read %d", last, got)
	}
}

func TestWideLiteralIndexRoundTrip(t *testing.T) {
	a := NewAssembler("t", 0, 0, FullLiteralEncoding)
	idx := a.Ident("x")
	a.EmitLiteral(OpGetIdent, idx, 1)
	code := a.Finish()

	ip := 1
	got := code.ReadLiteralIndexFrom(&ip)
	if got != idx {
		t.Fatalf("wide-encoded literal index round-trip failed: wrote %d, read %d", idx, got)
	}
	if ip != 3 {
		t.Fatalf("FullLiteralEncoding must always consume exactly 2 bytes, cursor at %d", ip)
	}
}

func TestBranchPatchRoundTrip(t *testing.T) {
	a := NewAssembler("t", 0, 0, 0)
	placeholder := a.EmitBranch(OpJump, 1)
	a.Emit(OpLoadUndefined, 2)
	target := a.Here()
	a.PatchBranch(placeholder, target)
	code := a.Finish()

	ip := 1
	off := code.ReadBranchOffset(&ip, 2)
	if ip+off != target {
		t.Fatalf("branch target mismatch: ip=%d off=%d want=%d", ip, off, target)
	}
}

func TestSubCodeAndRegexpShareLiteralSegment(t *testing.T) {
	a := NewAssembler("outer", 0, 0, 0)
	inner := NewAssembler("inner", 0, 0, IsFunction).Finish()
	subIdx := a.SubCode(inner)
	reIdx := a.Regexp("a+", "i")
	code := a.Finish()

	if code.ClassifyLiteral(subIdx) != LiteralSubCode {
		t.Fatalf("sub-code literal index must classify as LiteralSubCode")
	}
	if got := code.SubCodeAt(subIdx); got != inner {
		t.Fatalf("SubCodeAt returned a different CompiledCode than was appended")
	}
	if _, ok := code.RegexpAt(subIdx); ok {
		t.Fatalf("a function sub-code slot must not report as a regexp literal")
	}
	lit, ok := code.RegexpAt(reIdx)
	if !ok || lit.Source != "a+" || lit.Flags != "i" {
		t.Fatalf("RegexpAt(%d) = %+v, ok=%v, want {a+ i} true", reIdx, lit, ok)
	}
}

func TestDisassembleDoesNotPanicOnEveryOperandShape(t *testing.T) {
	a := NewAssembler("smoke", 0, 1, 0)
	idx := a.Const(Value(int64(42)))
	a.EmitLiteral(OpLoadLiteral, idx, 1)
	b := a.EmitBranch(OpJump, 2)
	a.PatchBranch(b, a.Here())
	a.Emit(OpReturn, 3)
	out := a.Finish().Disassemble()
	if out == "" {
		t.Fatalf("Disassemble produced no output")
	}
}
