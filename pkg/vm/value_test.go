package vm

import (
	"math"
	"testing"
)

func TestTryIntAddOverflowFallsBackToFloat(t *testing.T) {
	near := NewInteger(MaxTaggedInt)
	one := NewInteger(1)
	if _, ok := tryIntAdd(near, one); ok {
		t.Fatalf("tryIntAdd should report overflow at the tagged-int boundary")
	}
	if _, ok := tryIntAdd(NewInteger(1), NewInteger(2)); !ok {
		t.Fatalf("tryIntAdd should take the fast path for small operands")
	}
}

func TestTryIntMulSignedZero(t *testing.T) {
	v, ok := tryIntMul(NewInteger(-3), NewInteger(0))
	if !ok || !v.IsFloat() || !math.Signbit(v.AsFloat()) {
		t.Fatalf("negative * 0 should produce a signed-zero float, got %+v ok=%v", v, ok)
	}
	v, ok = tryIntMul(NewInteger(3), NewInteger(0))
	if !ok || !v.IsInteger() || v.AsInteger() != 0 {
		t.Fatalf("positive * 0 should stay a tagged integer zero, got %+v ok=%v", v, ok)
	}
}

func TestTryIntMulOutOfWindowFallsBack(t *testing.T) {
	big := NewInteger(multiplyMaxAbs + 1)
	if _, ok := tryIntMul(big, NewInteger(2)); ok {
		t.Fatalf("operands beyond multiplyMaxAbs must not take the fast path")
	}
}

func TestStrictEqualAcrossIntegerFloatSplit(t *testing.T) {
	if !NewInteger(3).StrictEqual(NewFloat(3.0)) {
		t.Fatalf("3 (tagged) and 3.0 (float) are the same ECMAScript Number and must compare strict-equal")
	}
	if NewFloat(math.NaN()).StrictEqual(NewFloat(math.NaN())) {
		t.Fatalf("NaN must never strict-equal itself")
	}
}

func TestStrictEqualObjectIdentity(t *testing.T) {
	a := NewObjectValue(NewPlainObject(Undefined))
	b := NewObjectValue(NewPlainObject(Undefined))
	if a.StrictEqual(b) {
		t.Fatalf("two distinct objects must not be strict-equal")
	}
	if !a.StrictEqual(a) {
		t.Fatalf("an object must be strict-equal to itself")
	}
}

func TestToBooleanCoercions(t *testing.T) {
	cases := []struct {
		v    Value
		want bool
	}{
		{NewInteger(0), false},
		{NewInteger(1), true},
		{NewFloat(0), false},
		{NewFloat(math.NaN()), false},
		{NewString(""), false},
		{NewString("a"), true},
		{Null, false},
		{Undefined, false},
		{NewObjectValue(NewPlainObject(Undefined)), true},
	}
	for _, c := range cases {
		if got := c.v.ToBoolean(); got != c.want {
			t.Errorf("ToBoolean(%+v) = %v, want %v", c.v, got, c.want)
		}
	}
}

func TestTryIntCompare(t *testing.T) {
	less, greater, equal, ok := tryIntCompare(NewInteger(1), NewInteger(2))
	if !ok || !less || greater || equal {
		t.Fatalf("1 < 2 expected, got less=%v greater=%v equal=%v ok=%v", less, greater, equal, ok)
	}
	if _, _, _, ok := tryIntCompare(NewInteger(1), NewFloat(2)); ok {
		t.Fatalf("tryIntCompare must decline a mixed integer/float pair")
	}
}
