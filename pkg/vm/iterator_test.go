package vm

import "testing"

func TestArrayIteratorStepsInOrderThenDone(t *testing.T) {
	vmi := NewVM(DefaultOptions())
	arr := NewArrayObject(Undefined, []Value{NewInteger(1), NewInteger(2)})

	iter, thrown := getIterator(vmi, NewObjectValue(arr))
	if thrown != nil {
		t.Fatalf("unexpected throw: %v", thrown.Value.ToStringValue())
	}

	v, done, thrown := iteratorStep(vmi, iter)
	if thrown != nil || done || v.AsInteger() != 1 {
		t.Fatalf("first step = (%+v, done=%v, thrown=%v), want (1, false, nil)", v, done, thrown)
	}
	v, done, thrown = iteratorStep(vmi, iter)
	if thrown != nil || done || v.AsInteger() != 2 {
		t.Fatalf("second step = (%+v, done=%v, thrown=%v), want (2, false, nil)", v, done, thrown)
	}
	_, done, thrown = iteratorStep(vmi, iter)
	if thrown != nil || !done {
		t.Fatalf("third step should report done, got done=%v thrown=%v", done, thrown)
	}
}

func TestGetIteratorOnNonIterableThrowsTypeError(t *testing.T) {
	vmi := NewVM(DefaultOptions())
	_, thrown := getIterator(vmi, NewInteger(5))
	if thrown == nil {
		t.Fatalf("iterating a plain integer must throw a TypeError")
	}
}

func TestCloseIteratorIsNoOpForArrayFastPath(t *testing.T) {
	vmi := NewVM(DefaultOptions())
	arr := NewArrayObject(Undefined, []Value{NewInteger(1)})
	iter, _ := getIterator(vmi, NewObjectValue(arr))

	if thrown := closeIterator(vmi, iter, true); thrown != nil {
		t.Fatalf("closing the array fast-path iterator must never throw, got %v", thrown.Value.ToStringValue())
	}
}

func TestCloseIteratorCallsReturnWhenPresent(t *testing.T) {
	vmi := NewVM(DefaultOptions())
	iterObj := NewPlainObject(Undefined)
	called := false
	returnFn := NewNativeFunction("return", 0, func(vmi *VM, _ Value, args []Value, _ Value) (Value, *ThrownError) {
		called = true
		return Undefined, nil
	})
	iterObj.SetOwn("return", NewObjectValue(returnFn))

	if thrown := closeIterator(vmi, NewObjectValue(iterObj), false); thrown != nil {
		t.Fatalf("unexpected throw: %v", thrown.Value.ToStringValue())
	}
	if !called {
		t.Fatalf("closeIterator should invoke the iterator's return() method when one exists")
	}
}

func TestCloseIteratorSwallowsThrowUnlessPropagated(t *testing.T) {
	vmi := NewVM(DefaultOptions())
	iterObj := NewPlainObject(Undefined)
	returnFn := NewNativeFunction("return", 0, func(vmi *VM, _ Value, args []Value, _ Value) (Value, *ThrownError) {
		return Undefined, NewThrownError(NewString("close failed"))
	})
	iterObj.SetOwn("return", NewObjectValue(returnFn))

	if thrown := closeIterator(vmi, NewObjectValue(iterObj), false); thrown != nil {
		t.Fatalf("without propagateThrow, a failing return() must be swallowed, got %v", thrown.Value.ToStringValue())
	}
	if thrown := closeIterator(vmi, NewObjectValue(iterObj), true); thrown == nil {
		t.Fatalf("with propagateThrow, a failing return() must surface")
	}
}

func TestCollectForInKeysSnapshotsOwnAndInheritedEnumerableKeys(t *testing.T) {
	vmi := NewVM(DefaultOptions())
	proto := NewPlainObject(Undefined)
	proto.SetOwn("inherited", NewInteger(1))
	child := NewPlainObject(NewObjectValue(proto))
	child.SetOwn("own", NewInteger(2))
	child.DefineOwnByKey(keyFromString("hidden"), NewInteger(3), true, false, true) // non-enumerable

	keys := collectForInKeys(vmi, NewObjectValue(child))
	want := map[string]bool{"own": true, "inherited": true}
	if len(keys) != 2 {
		t.Fatalf("collectForInKeys() = %v, want exactly the 2 enumerable keys %v", keys, want)
	}
	for _, k := range keys {
		if !want[k] {
			t.Fatalf("unexpected key %q in for-in snapshot: %v", k, keys)
		}
	}
}

func TestCollectForInKeysDeduplicatesShadowedNames(t *testing.T) {
	vmi := NewVM(DefaultOptions())
	proto := NewPlainObject(Undefined)
	proto.SetOwn("x", NewInteger(1))
	child := NewPlainObject(NewObjectValue(proto))
	child.SetOwn("x", NewInteger(2))

	keys := collectForInKeys(vmi, NewObjectValue(child))
	if len(keys) != 1 || keys[0] != "x" {
		t.Fatalf("a name shadowed on the child must appear once, not once per chain level; got %v", keys)
	}
}
