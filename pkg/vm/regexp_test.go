package vm

import (
	"escore/pkg/bytecode"
	"testing"
)

func TestCompileRegExpAppliesFlagOptions(t *testing.T) {
	r, err := compileRegExp("abc", "i")
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	if !r.Test("ABC") {
		t.Fatalf("the 'i' flag should make the match case-insensitive")
	}
	if r.Test("xyz") {
		t.Fatalf("a non-matching string must report no match")
	}
}

func TestCompileRegExpRejectsInvalidPattern(t *testing.T) {
	if _, err := compileRegExp("(", ""); err == nil {
		t.Fatalf("an unbalanced group must fail to compile")
	}
}

func TestExecReturnsWholeMatchAndCaptureGroups(t *testing.T) {
	r, err := compileRegExp(`(\d+)-(\d+)`, "")
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	groups := r.Exec("id 12-34 end")
	if groups == nil {
		t.Fatalf("expected a match")
	}
	if groups[0] != "12-34" || groups[1] != "12" || groups[2] != "34" {
		t.Fatalf("Exec groups = %v, want [\"12-34\" \"12\" \"34\"]", groups)
	}
}

func TestExecReturnsNilOnNoMatch(t *testing.T) {
	r, _ := compileRegExp("zzz", "")
	if r.Exec("abc") != nil {
		t.Fatalf("Exec on a non-matching string should return nil")
	}
}

func TestMaterializeRegexpFallsBackGracefullyOnBadLiteral(t *testing.T) {
	vmi := NewVM(DefaultOptions())
	v := vmi.materializeRegexp(bytecode.RegexpLiteral{Source: "(", Flags: ""})
	r, ok := v.AsObject().(*RegExpObject)
	if !ok {
		t.Fatalf("materializeRegexp should still produce a RegExpObject even when compilation fails")
	}
	if r.Test("anything") {
		t.Fatalf("an uncompiled RegExpObject must report no match rather than panicking")
	}
}
