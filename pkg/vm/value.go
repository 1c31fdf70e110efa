package vm

import (
	"fmt"
	"math"
)

// ValueType is the tag discriminator of the Value ABI (spec component A).
type ValueType uint8

const (
	TypeInteger ValueType = iota
	TypeFloat
	TypeString
	TypeSymbol
	TypeObject
	TypeBoolean
	TypeNull
	TypeUndefined

	// Interpreter-internal sentinels. These are never observable from
	// script code; each has a single meaning documented at its constructor.
	TypeEmpty
	TypeError
	TypeArrayHole
	TypeRegisterRef
	TypeReleaseLexEnv
	TypeUninitialized
	TypeSpreadElement
)

// Tagged-integer window. Integers are kept well inside int64's range so that
// ADD/SUB of two tagged integers can never overflow int64 during the
// fast-path check; only the narrower MinTaggedInt/MaxTaggedInt window is
// re-validated after the raw add.
const (
	taggedIntBits       = 31
	MaxTaggedInt  int64  = 1<<(taggedIntBits-1) - 1
	MinTaggedInt  int64  = -(1 << (taggedIntBits - 1))
	multiplyMaxAbs int64 = 1 << 15 // |a|,|b| bound so a*b can't overflow int64; the product is still checked against MaxTaggedInt
)

// HeapObject is satisfied by every object-, symbol-, or reference-counted
// heap value. Retain/Release are the fast_copy/fast_free ownership
// primitives: Go's own GC keeps memory alive regardless, so these exist to
// let the stack-discipline invariant ("exactly one matching free on every
// exit path") be checked mechanically in tests rather than to actually free
// anything.
type HeapObject interface {
	heapKind() string
	Retain()
	Release()
}

// RefCounted is embedded into heap object types to give them a Retain/Release
// pair and a debug-visible count. A cycle through two RefCounted objects
// never reaches zero, same as any refcounted scheme; Go's tracing GC is what
// actually reclaims them, so the count exists for invariant-checking, not
// lifetime management.
type RefCounted struct {
	refs int32
}

func (r *RefCounted) Retain()         { r.refs++ }
func (r *RefCounted) Release()        { r.refs-- }
func (r *RefCounted) RefCount() int32 { return r.refs }

// Value is the tagged word of the interpreter's value ABI. Only one payload
// field is valid at a time, selected by typ; this mirrors the teacher's
// tagged-union Value type (nooga-paserati's pkg/vm/value.go) without its
// NaN-boxing layout, which is a C-specific memory trick with no Go
// equivalent worth forcing.
type Value struct {
	typ ValueType
	i   int64      // tagged-integer payload, or register slot index for TypeRegisterRef
	f   float64    // float payload
	s   string     // string payload (Go strings are already heap-allocated and GC-tracked)
	obj HeapObject // object / symbol payload
}

// --- Constructors ---

var (
	Undefined           = Value{typ: TypeUndefined}
	Null                = Value{typ: TypeNull}
	True                = Value{typ: TypeBoolean, i: 1}
	False               = Value{typ: TypeBoolean, i: 0}
	Empty               = Value{typ: TypeEmpty}    // absent
	ErrorVal            = Value{typ: TypeError}    // exception pending in context
	ArrayHole           = Value{typ: TypeArrayHole} // sparse array element
	ReleaseLexEnvMarker = Value{typ: TypeReleaseLexEnv}
	Uninitialized       = Value{typ: TypeUninitialized} // let/const pre-init sentinel
	SpreadElementMarker = Value{typ: TypeSpreadElement}
)

func NewBoolean(b bool) Value {
	if b {
		return True
	}
	return False
}

// NewInteger constructs a tagged integer. Callers outside the arithmetic
// fast path are not required to stay within [MinTaggedInt, MaxTaggedInt];
// the fast-path helpers below are what enforce the window.
func NewInteger(i int64) Value { return Value{typ: TypeInteger, i: i} }

func NewFloat(f float64) Value { return Value{typ: TypeFloat, f: f} }

func NewString(s string) Value { return Value{typ: TypeString, s: s} }

func NewObjectValue(obj HeapObject) Value {
	if obj == nil {
		panic("NewObjectValue: nil HeapObject")
	}
	return Value{typ: TypeObject, obj: obj}
}

func NewSymbolValue(sym HeapObject) Value {
	return Value{typ: TypeSymbol, obj: sym}
}

// RegisterRefValue constructs the "next slot holds a register index" stack
// marker used by the reference-disposition protocol.
func RegisterRefValue(slot int) Value { return Value{typ: TypeRegisterRef, i: int64(slot)} }

// --- Predicates ---

func (v Value) Type() ValueType { return v.typ }

func (v Value) IsObject() bool      { return v.typ == TypeObject }
func (v Value) IsString() bool      { return v.typ == TypeString }
func (v Value) IsSymbol() bool      { return v.typ == TypeSymbol }
func (v Value) IsInteger() bool     { return v.typ == TypeInteger }
func (v Value) IsFloat() bool       { return v.typ == TypeFloat }
func (v Value) IsNumber() bool      { return v.typ == TypeInteger || v.typ == TypeFloat }
func (v Value) IsBoolean() bool     { return v.typ == TypeBoolean }
func (v Value) IsNullOrUndef() bool { return v.typ == TypeNull || v.typ == TypeUndefined }
func (v Value) IsUndefined() bool   { return v.typ == TypeUndefined }
func (v Value) IsPropName() bool {
	return v.typ == TypeString || v.typ == TypeSymbol || v.typ == TypeInteger
}
func (v Value) IsEmpty() bool         { return v.typ == TypeEmpty }
func (v Value) IsError() bool         { return v.typ == TypeError }
func (v Value) IsArrayHole() bool     { return v.typ == TypeArrayHole }
func (v Value) IsRegisterRef() bool   { return v.typ == TypeRegisterRef }
func (v Value) IsUninitialized() bool { return v.typ == TypeUninitialized }
func (v Value) IsSpreadElement() bool { return v.typ == TypeSpreadElement }

func (v Value) AsBoolean() bool      { return v.i != 0 }
func (v Value) AsInteger() int64     { return v.i }
func (v Value) AsFloat() float64     { return v.f }
func (v Value) AsString() string     { return v.s }
func (v Value) AsObject() HeapObject { return v.obj }
func (v Value) RegisterSlot() int    { return int(v.i) }

// --- Ownership primitives (copy/free, fast_* variants) ---

// Copy implements the ABI's `copy`: adds a reference if heap-backed,
// otherwise a no-op. Every value popped from the operand stack or read from
// a register that is about to be duplicated should go through Copy so the
// "stack slot owns its value" invariant holds.
func (v Value) Copy() Value {
	if v.obj != nil {
		v.obj.Retain()
	}
	return v
}

// Free implements the ABI's `free`: drops a reference. Called once per
// value on every exit path.
func (v Value) Free() {
	if v.obj != nil {
		v.obj.Release()
	}
}

// FastCopy/FastFree are the spec's fast_* variants: callers assert the value
// is not TypeError/TypeEmpty before using them. They're identical to
// Copy/Free here (Go doesn't need the extra branch to be fast), but kept
// named separately so call sites document which invariant they're relying
// on, matching the source ABI's split.
func (v Value) FastCopy() Value { return v.Copy() }
func (v Value) FastFree()       { v.Free() }

// --- Coercions ---

// ToBoolean implements ECMAScript ToBoolean.
func (v Value) ToBoolean() bool {
	switch v.typ {
	case TypeBoolean:
		return v.i != 0
	case TypeInteger:
		return v.i != 0
	case TypeFloat:
		return v.f != 0 && !math.IsNaN(v.f)
	case TypeString:
		return v.s != ""
	case TypeNull, TypeUndefined:
		return false
	case TypeObject, TypeSymbol:
		return true
	default:
		return false
	}
}

// ToNumberFloat coerces to a float64, following ToNumber far enough for the
// arithmetic groups that must box (the integer fast path never calls this).
func (v Value) ToNumberFloat() float64 {
	switch v.typ {
	case TypeInteger:
		return float64(v.i)
	case TypeFloat:
		return v.f
	case TypeBoolean:
		if v.i != 0 {
			return 1
		}
		return 0
	case TypeNull:
		return 0
	case TypeString:
		if v.s == "" {
			return 0
		}
		var f float64
		if _, err := fmt.Sscanf(v.s, "%g", &f); err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

// ToStringValue coerces to its ECMAScript string representation.
func (v Value) ToStringValue() string {
	switch v.typ {
	case TypeString:
		return v.s
	case TypeInteger:
		return fmt.Sprintf("%d", v.i)
	case TypeFloat:
		if math.IsNaN(v.f) {
			return "NaN"
		}
		if math.IsInf(v.f, 1) {
			return "Infinity"
		}
		if math.IsInf(v.f, -1) {
			return "-Infinity"
		}
		return fmt.Sprintf("%g", v.f)
	case TypeBoolean:
		if v.i != 0 {
			return "true"
		}
		return "false"
	case TypeNull:
		return "null"
	case TypeUndefined:
		return "undefined"
	case TypeObject:
		if s, ok := v.obj.(interface{ ToDisplayString() string }); ok {
			return s.ToDisplayString()
		}
		return "[object Object]"
	default:
		return ""
	}
}

func (v Value) TypeName() string {
	switch v.typ {
	case TypeInteger, TypeFloat:
		return "number"
	case TypeString:
		return "string"
	case TypeSymbol:
		return "symbol"
	case TypeBoolean:
		return "boolean"
	case TypeNull:
		return "null"
	case TypeUndefined:
		return "undefined"
	case TypeObject:
		if _, ok := v.obj.(callable); ok {
			return "function"
		}
		return "object"
	default:
		return "internal"
	}
}

// StrictEqual implements the ABI's strict_equal primitive: strict_equal(x,
// x) is true for every non-NaN x, false for NaN.
func (v Value) StrictEqual(other Value) bool {
	if v.typ != other.typ {
		// Integer and Float are distinct tags but ECMAScript has one Number
		// type; strict equality compares across the tag split.
		if v.IsNumber() && other.IsNumber() {
			return numEqual(v, other)
		}
		return false
	}
	switch v.typ {
	case TypeInteger:
		return v.i == other.i
	case TypeFloat:
		return numEqual(v, other)
	case TypeString:
		return v.s == other.s
	case TypeBoolean:
		return v.i == other.i
	case TypeNull, TypeUndefined, TypeEmpty:
		return true
	case TypeObject, TypeSymbol:
		return v.obj == other.obj
	default:
		return false
	}
}

func numEqual(a, b Value) bool {
	af, bf := a.numAsFloat(), b.numAsFloat()
	if math.IsNaN(af) || math.IsNaN(bf) {
		return false
	}
	return af == bf
}

func (v Value) numAsFloat() float64 {
	if v.typ == TypeInteger {
		return float64(v.i)
	}
	return v.f
}

// --- Arithmetic fast paths ---

func absI64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

// tryIntAdd/tryIntSub/tryIntMul attempt the tagged-integer fast path for
// ADD/SUB/MUL. They return ok=false on overflow or out-of-window operands,
// signaling the caller to fall back to the boxed-number path.
func tryIntAdd(a, b Value) (Value, bool) {
	if !a.IsInteger() || !b.IsInteger() {
		return Value{}, false
	}
	sum := a.i + b.i
	if sum > MaxTaggedInt || sum < MinTaggedInt {
		return Value{}, false
	}
	return NewInteger(sum), true
}

func tryIntSub(a, b Value) (Value, bool) {
	if !a.IsInteger() || !b.IsInteger() {
		return Value{}, false
	}
	diff := a.i - b.i
	if diff > MaxTaggedInt || diff < MinTaggedInt {
		return Value{}, false
	}
	return NewInteger(diff), true
}

// tryIntMul additionally requires |a|,|b| <= multiplyMaxAbs so a*b cannot
// overflow int64 (the product is then checked against the tagged window,
// since 2^15 * 2^15 is one past MaxTaggedInt), and special-cases either operand being zero so
// that a negative-times-zero preserves IEEE-754 signed-zero semantics by
// falling back to a boxed float rather than returning a sign-less tagged
// zero.
func tryIntMul(a, b Value) (Value, bool) {
	if !a.IsInteger() || !b.IsInteger() {
		return Value{}, false
	}
	if a.i == 0 || b.i == 0 {
		if a.i < 0 || b.i < 0 {
			return NewFloat(math.Copysign(0, -1)), true
		}
		return NewInteger(0), true
	}
	if absI64(a.i) > multiplyMaxAbs || absI64(b.i) > multiplyMaxAbs {
		return Value{}, false
	}
	product := a.i * b.i
	if product > MaxTaggedInt || product < MinTaggedInt {
		return Value{}, false
	}
	return NewInteger(product), true
}

// tryIntCompare handles LESS/GREATER/LESS_EQ/GREATER_EQ on two tagged
// integers without boxing either operand.
func tryIntCompare(a, b Value) (less, greater, equal bool, ok bool) {
	if !a.IsInteger() || !b.IsInteger() {
		return false, false, false, false
	}
	switch {
	case a.i < b.i:
		return true, false, false, true
	case a.i > b.i:
		return false, true, false, true
	default:
		return false, false, true, true
	}
}

type bitwiseOp uint8

const (
	bitAnd bitwiseOp = iota
	bitOr
	bitXor
	bitShl
	bitShr
	bitUShr
)

// tryIntBitwise handles AND/OR/XOR/SHIFT on two tagged integers.
func tryIntBitwise(op bitwiseOp, a, b Value) (Value, bool) {
	if !a.IsInteger() || !b.IsInteger() {
		return Value{}, false
	}
	switch op {
	case bitAnd:
		return NewInteger(a.i & b.i), true
	case bitOr:
		return NewInteger(a.i | b.i), true
	case bitXor:
		return NewInteger(a.i ^ b.i), true
	case bitShl:
		return NewInteger(int64(int32(a.i) << (uint32(b.i) & 31))), true
	case bitShr:
		return NewInteger(int64(int32(a.i) >> (uint32(b.i) & 31))), true
	case bitUShr:
		return NewInteger(int64(uint32(a.i) >> (uint32(b.i) & 31))), true
	default:
		return Value{}, false
	}
}

// tryIntIncrDecr handles PRE/POST INCR/DECR's "already a tagged integer
// within the non-saturation window" fast path.
func tryIntIncrDecr(v Value, delta int64) (Value, bool) {
	if !v.IsInteger() {
		return Value{}, false
	}
	next := v.i + delta
	if next > MaxTaggedInt || next < MinTaggedInt {
		return Value{}, false
	}
	return NewInteger(next), true
}

// callable is implemented by heap objects the Call protocol (component G)
// can invoke; defined here (rather than call.go) so TypeName can use it
// without an import cycle.
type callable interface {
	HeapObject
	isCallable()
}
