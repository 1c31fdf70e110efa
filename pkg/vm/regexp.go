package vm

import (
	"escore/pkg/bytecode"

	"github.com/dlclark/regexp2"
)

// RegExpObject wraps a compiled regexp2.Regexp (ECMAScript-semantics regex,
// unlike Go's own RE2-based regexp package which rejects backreferences and
// lookaround that real-world JS regex literals use freely). Grounded on the
// teacher's former pkg/vm/regex.go, rebuilt as a thin adapter around
// regexp2 instead of a hand-rolled engine.
type RegExpObject struct {
	Object
	Source string
	Flags  string
	re     *regexp2.Regexp
}

func (r *RegExpObject) heapKind() string { return "regexp" }

func compileRegExp(source, flags string) (*RegExpObject, error) {
	opts := regexp2.None
	for _, f := range flags {
		switch f {
		case 'i':
			opts |= regexp2.IgnoreCase
		case 'm':
			opts |= regexp2.Multiline
		case 's':
			opts |= regexp2.Singleline
		}
	}
	re, err := regexp2.Compile(source, opts)
	if err != nil {
		return nil, err
	}
	return &RegExpObject{Source: source, Flags: flags, re: re}, nil
}

// Test implements RegExp.prototype.test: does the pattern match anywhere in
// s. The "g"/"y" sticky-index bookkeeping real engines carry on lastIndex is
// left unimplemented (Non-goal: this interpreter's regex support targets
// one-shot test/exec, not stateful global-match iteration).
func (r *RegExpObject) Test(s string) bool {
	if r.re == nil {
		return false
	}
	m, err := r.re.FindStringMatch(s)
	return err == nil && m != nil
}

// Exec implements RegExp.prototype.exec: returns the match plus capture
// groups as a plain string slice, or nil if there was no match.
func (r *RegExpObject) Exec(s string) []string {
	if r.re == nil {
		return nil
	}
	m, err := r.re.FindStringMatch(s)
	if err != nil || m == nil {
		return nil
	}
	groups := m.Groups()
	out := make([]string, len(groups))
	for i, g := range groups {
		if len(g.Captures) > 0 {
			out[i] = g.String()
		}
	}
	return out
}

// materializeRegexp builds a fresh RegExp object for a regexp literal
// reference (spec §4B: sub-literals materialize a new object every time
// they're evaluated, matching ECMAScript's per-evaluation identity for
// regex literals). A literal that fails to compile yields an object whose
// Test/Exec always report no match rather than aborting evaluation — this
// interpreter has no separate parse-time validation phase to catch it
// earlier the way a real engine's parser would.
func (vmi *VM) materializeRegexp(lit bytecode.RegexpLiteral) Value {
	r, err := compileRegExp(lit.Source, lit.Flags)
	if err != nil {
		return NewObjectValue(&RegExpObject{Source: lit.Source, Flags: lit.Flags})
	}
	return NewObjectValue(r)
}

func installRegExp(vmi *VM) {
	proto := NewPlainObject(vmi.objectProto)
	proto.SetOwn("test", NewObjectValue(NewNativeFunction("test", 1, func(vmi *VM, this Value, args []Value, _ Value) (Value, *ThrownError) {
		r, ok := this.AsObject().(*RegExpObject)
		if !ok {
			return Undefined, NewThrownError(vmi.makeTypeError("RegExp.prototype.test called on non-RegExp"))
		}
		s := ""
		if len(args) > 0 {
			s = args[0].ToStringValue()
		}
		return NewBoolean(r.Test(s)), nil
	})))
	vmi.regexpProto = NewObjectValue(proto)
}
