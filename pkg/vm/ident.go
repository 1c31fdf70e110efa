package vm

import "golang.org/x/text/unicode/norm"

// normalizeIdent applies Unicode Normalization Form C to an identifier or
// property-name string. ECMAScript source text is normalized to NFC before
// identifiers are compared (two source files spelling the same accented
// identifier with different combining-mark sequences must bind to the same
// variable), so every identifier the dispatch loop resolves through a
// lexical environment, and every string-valued property key, is normalized
// at the point it enters the interpreter rather than re-normalized on every
// comparison. Grounded on the teacher's own use of golang.org/x/text/unicode/norm
// in pkg/builtins/string_init.go (String.prototype.normalize); moved here to
// the property-name coercion boundary since this module has no lexer of its
// own to normalize source text at read time.
func normalizeIdent(s string) string {
	if norm.NFC.IsNormalString(s) {
		return s
	}
	return norm.NFC.String(s)
}
