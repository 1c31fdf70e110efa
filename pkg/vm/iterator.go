package vm

// Iterator protocol helpers backing FOR_OF context records and
// SPREAD_CALL's argument-collecting opcode group. Fast arrays get a
// built-in iterator that never calls back into script (the fast-array
// short-circuit of spec §4E extended to iteration); anything else goes
// through the standard Symbol.iterator / next() / done / value protocol,
// which can call arbitrary user code and therefore can throw.

// getIterator implements ECMAScript's GetIterator: look up @@iterator and
// call it. The result is returned as is, without checking that it is an
// object with a callable next; iteratorStep looks next up on each step.
func getIterator(vmi *VM, v Value) (Value, *ThrownError) {
	if arr, ok := v.AsObject().(*ArrayObject); ok {
		return NewObjectValue(newArrayIteratorState(arr)), nil
	}
	method, found := lookupProperty(vmi, v, NewSymbolKey(NewObjectValue(SymbolIterator)))
	if !found || !method.IsObject() {
		return Undefined, NewThrownError(vmi.makeTypeError(v.ToStringValue() + " is not iterable"))
	}
	iter, thrown := vmi.callValue(method, v, nil)
	if thrown != nil {
		return Undefined, thrown
	}
	return iter, nil
}

// iteratorStep calls iterator.next() and reports (value, done, thrown).
func iteratorStep(vmi *VM, iter Value) (Value, bool, *ThrownError) {
	if it, ok := iter.AsObject().(*arrayIteratorState); ok {
		v, done := it.next()
		return v, done, nil
	}
	nextFn, found := lookupProperty(vmi, iter, NewStringKey("next"))
	if !found {
		return Undefined, true, NewThrownError(vmi.makeTypeError("iterator.next is not a function"))
	}
	result, thrown := vmi.callValue(nextFn, iter, nil)
	if thrown != nil {
		return Undefined, true, thrown
	}
	doneV, _ := lookupProperty(vmi, result, NewStringKey("done"))
	valV, _ := lookupProperty(vmi, result, NewStringKey("value"))
	return valV, doneV.ToBoolean(), nil
}

// closeIterator implements IteratorClose: call .return() if present,
// swallowing its result unless propagateThrow demands surfacing failures
// (spec §4D ctxCloseIterator: "abandoning a for-of loop via break/return
// still closes the iterator").
func closeIterator(vmi *VM, iter Value, propagateThrow bool) *ThrownError {
	if _, ok := iter.AsObject().(*arrayIteratorState); ok {
		return nil // array fast-path iterator owns no external resource
	}
	if !iter.IsObject() {
		return nil
	}
	returnFn, found := lookupProperty(vmi, iter, NewStringKey("return"))
	if !found || !returnFn.IsObject() {
		return nil
	}
	_, thrown := vmi.callValue(returnFn, iter, nil)
	if thrown != nil && propagateThrow {
		return thrown
	}
	return nil
}

// arrayIteratorState is the built-in iterator fast arrays hand out; it
// never round-trips through script, so for-of over a plain array never pays
// the property-lookup cost for the per-element protocol.
type arrayIteratorState struct {
	RefCounted
	arr *ArrayObject
	idx int
}

func (a *arrayIteratorState) heapKind() string { return "array-iterator" }

func newArrayIteratorState(arr *ArrayObject) *arrayIteratorState {
	return &arrayIteratorState{arr: arr}
}

func (a *arrayIteratorState) next() (Value, bool) {
	if a.idx >= a.arr.Length() {
		return Undefined, true
	}
	v, ok := a.arr.GetElement(a.idx)
	a.idx++
	if !ok {
		return Undefined, false
	}
	return v, false
}

// collectForInKeys pre-collects the enumerable own+inherited string keys of
// an object at for-in entry, in the fixed order the loop will walk them
// (spec §12: enumeration order is captured once up front rather than
// re-queried every iteration, matching original_source/jerry-core's
// ecma_op_for_in semantics, which snapshots keys before the first
// iteration so that properties added mid-loop are not visited).
func collectForInKeys(vmi *VM, v Value) []string {
	seen := make(map[string]bool)
	var keys []string
	current := v
	for depth := 0; depth < maxPrototypeChainDepth; depth++ {
		if p, ok := current.AsObject().(*ProxyObject); ok {
			if p.Revoked {
				break
			}
			if trapFn, ok := p.trap(vmi, "ownKeys"); ok {
				result, thrown := vmi.callValue(trapFn, p.Handler, []Value{p.Target})
				if thrown == nil {
					for _, k := range valuesFromArray(result) {
						name := k.ToStringValue()
						if !seen[name] {
							seen[name] = true
							keys = append(keys, name)
						}
					}
				}
				break
			}
			current = p.Target
			continue
		}
		obj, ok := current.AsObject().(*PlainObject)
		if !ok {
			if arr, ok := current.AsObject().(*ArrayObject); ok {
				for i := 0; i < arr.Length(); i++ {
					if _, present := arr.GetElement(i); present {
						k := NewInteger(int64(i)).ToStringValue()
						if !seen[k] {
							seen[k] = true
							keys = append(keys, k)
						}
					}
				}
				if arr.named != nil {
					obj = arr.named
				} else {
					break
				}
			} else {
				break
			}
		}
		for _, k := range obj.OwnKeys(true) {
			if k.IsString() && !seen[k.name] {
				seen[k.name] = true
				keys = append(keys, k.name)
			}
		}
		current = obj.prototype
		if !current.IsObject() {
			break
		}
	}
	return keys
}
