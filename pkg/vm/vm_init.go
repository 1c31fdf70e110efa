package vm

// initGlobals builds the realm's standard prototype objects, installs the
// handful of built-ins the bundled demos and test suite rely on, and
// declares the global bindings (globalThis, console, standard constructors)
// that RunProgram's top-level frame resolves identifiers against. Grounded
// on the teacher's pkg/vm/vm_init.go initializePrototypes, rebuilt around
// the new PlainObject/Shape model instead of the teacher's flat NewObject
// helper.
func initGlobals(vmi *VM) {
	vmi.objectProto = NewObjectValue(NewPlainObject(Null))
	vmi.functionProto = NewObjectValue(funcPrototypeHolder)
	funcPrototypeHolder.SetPrototype(vmi.objectProto)
	vmi.arrayProto = NewObjectValue(NewPlainObject(vmi.objectProto))
	vmi.stringProto = NewObjectValue(NewPlainObject(vmi.objectProto))
	vmi.numberProto = NewObjectValue(NewPlainObject(vmi.objectProto))
	vmi.booleanProto = NewObjectValue(NewPlainObject(vmi.objectProto))

	vmi.errProtos.errorProto = NewObjectValue(NewPlainObject(vmi.objectProto))
	vmi.errProtos.typeErrorProto = NewObjectValue(NewPlainObject(vmi.errProtos.errorProto))
	vmi.errProtos.rangeErrorProto = NewObjectValue(NewPlainObject(vmi.errProtos.errorProto))
	vmi.errProtos.refErrorProto = NewObjectValue(NewPlainObject(vmi.errProtos.errorProto))
	vmi.errProtos.syntaxErrorProto = NewObjectValue(NewPlainObject(vmi.errProtos.errorProto))

	installArrayPrototype(vmi)
	installObjectPrototype(vmi)
	installFunctionPrototype(vmi)
	installErrorConstructors(vmi)
	installPromise(vmi)
	installRegExp(vmi)
	installGeneratorPrototype(vmi)
	installProxy(vmi)

	global := NewPlainObject(vmi.objectProto)
	vmi.globalObj = NewObjectValue(global)
	global.SetOwn("globalThis", vmi.globalObj)
	vmi.globalEnv.CreateBinding("globalThis", false)
	vmi.globalEnv.InitializeBinding("globalThis", vmi.globalObj)

	installConsole(vmi)
}

func declareGlobalNative(vmi *VM, name string, length int, fn NativeFunc) {
	nf := NewNativeFunction(name, length, fn)
	vmi.globalEnv.CreateBinding(name, true)
	vmi.globalEnv.InitializeBinding(name, NewObjectValue(nf))
}

// installConsole provides the minimal console.log surface the bundled CLI
// demos and tests print through; it writes via the driver's configured
// writer once wired (see pkg/driver), and falls back to nothing here since
// pkg/vm has no business owning stdout directly. Grounded on the teacher's
// practice of keeping host I/O out of pkg/vm and exposing a hook the driver
// installs, adapted to this interpreter's NativeFunc calling convention.
func installConsole(vmi *VM) {
	console := NewPlainObject(vmi.objectProto)
	log := NewNativeFunction("log", 0, func(_ *VM, _ Value, args []Value, _ Value) (Value, *ThrownError) {
		if vmi.ConsoleWriter != nil {
			vmi.ConsoleWriter(args)
		}
		return Undefined, nil
	})
	console.SetOwn("log", NewObjectValue(log))
	vmi.globalEnv.CreateBinding("console", true)
	vmi.globalEnv.InitializeBinding("console", NewObjectValue(console))
}

func installArrayPrototype(vmi *VM) {
	proto := vmi.arrayProto.AsObject().(*PlainObject)
	proto.SetOwn("push", NewObjectValue(NewNativeFunction("push", 1, func(vmi *VM, this Value, args []Value, _ Value) (Value, *ThrownError) {
		arr, ok := this.AsObject().(*ArrayObject)
		if !ok {
			return Undefined, NewThrownError(vmi.makeTypeError("Array.prototype.push called on non-array"))
		}
		for _, a := range args {
			arr.Push(a)
		}
		return NewInteger(int64(arr.Length())), nil
	})))
	proto.SetOwn("pop", NewObjectValue(NewNativeFunction("pop", 0, func(vmi *VM, this Value, _ []Value, _ Value) (Value, *ThrownError) {
		arr, ok := this.AsObject().(*ArrayObject)
		if !ok || arr.Length() == 0 {
			return Undefined, nil
		}
		v, _ := arr.GetElement(arr.Length() - 1)
		arr.elements = arr.elements[:arr.Length()-1]
		arr.length--
		return v, nil
	})))
	proto.SetOwn(SymbolIterator.Description, NewObjectValue(NewNativeFunction("[Symbol.iterator]", 0, func(vmi *VM, this Value, _ []Value, _ Value) (Value, *ThrownError) {
		arr, ok := this.AsObject().(*ArrayObject)
		if !ok {
			return Undefined, NewThrownError(vmi.makeTypeError("not an array"))
		}
		return NewObjectValue(newArrayIteratorState(arr)), nil
	})))
}

func installObjectPrototype(vmi *VM) {
	proto := vmi.objectProto.AsObject().(*PlainObject)
	proto.SetOwn("hasOwnProperty", NewObjectValue(NewNativeFunction("hasOwnProperty", 1, func(vmi *VM, this Value, args []Value, _ Value) (Value, *ThrownError) {
		if len(args) == 0 {
			return NewBoolean(false), nil
		}
		key := ToPropertyKey(args[0])
		if o, ok := this.AsObject().(*PlainObject); ok {
			_, found := o.GetOwnByKey(key)
			return NewBoolean(found), nil
		}
		return NewBoolean(false), nil
	})))
}

func installFunctionPrototype(vmi *VM) {
	proto := funcPrototypeHolder
	proto.SetOwn("call", NewObjectValue(NewNativeFunction("call", 1, func(vmi *VM, this Value, args []Value, _ Value) (Value, *ThrownError) {
		var thisArg Value = Undefined
		var rest []Value
		if len(args) > 0 {
			thisArg = args[0]
			rest = args[1:]
		}
		return vmi.callValue(this, thisArg, rest)
	})))
	proto.SetOwn("apply", NewObjectValue(NewNativeFunction("apply", 2, func(vmi *VM, this Value, args []Value, _ Value) (Value, *ThrownError) {
		var thisArg Value = Undefined
		var rest []Value
		if len(args) > 0 {
			thisArg = args[0]
		}
		if len(args) > 1 {
			if arr, ok := args[1].AsObject().(*ArrayObject); ok {
				for i := 0; i < arr.Length(); i++ {
					v, _ := arr.GetElement(i)
					rest = append(rest, v)
				}
			}
		}
		return vmi.callValue(this, thisArg, rest)
	})))
	proto.SetOwn("bind", NewObjectValue(NewNativeFunction("bind", 1, func(vmi *VM, this Value, args []Value, _ Value) (Value, *ThrownError) {
		var boundThis Value = Undefined
		var partial []Value
		if len(args) > 0 {
			boundThis = args[0]
			partial = args[1:]
		}
		return NewObjectValue(&BoundFunctionObject{Target: this, BoundThis: boundThis, PartialArgs: partial}), nil
	})))
}

// installProxy wires the global Proxy constructor: `new Proxy(target,
// handler)` builds a *ProxyObject directly rather than routing through
// constructValue's usual PlainObject allocation, since a Proxy's identity
// comes entirely from the target/handler pair it wraps, not from a
// prototype lookup. Grounded on the teacher's native-constructor pattern in
// pkg/vm/vm_init.go (Error/TypeError et al.), with the object returned from
// the native body substituted for the allocated `this` exactly as
// constructValue already does for every other constructor whose native body
// returns an object (spec [[Construct]] return-value substitution).
func installProxy(vmi *VM) {
	ctor := NewNativeFunction("Proxy", 2, func(vmi *VM, _ Value, args []Value, newTarget Value) (Value, *ThrownError) {
		if newTarget == Undefined {
			return Undefined, NewThrownError(vmi.makeTypeError("Constructor Proxy requires 'new'"))
		}
		if len(args) < 2 || !args[0].IsObject() || !args[1].IsObject() {
			return Undefined, NewThrownError(vmi.makeTypeError("Cannot create proxy with a non-object as target or handler"))
		}
		return NewObjectValue(&ProxyObject{Target: args[0], Handler: args[1]}), nil
	})
	declareGlobalNative(vmi, "Proxy", 2, ctor.Fn)
}

func installErrorConstructors(vmi *VM) {
	install := func(name string, proto Value) {
		p := proto.AsObject().(*PlainObject)
		p.SetOwn("name", NewString(name))
		ctor := NewNativeFunction(name, 1, func(vmi *VM, this Value, args []Value, newTarget Value) (Value, *ThrownError) {
			msg := ""
			if len(args) > 0 {
				msg = args[0].ToStringValue()
			}
			return vmi.newErrorObject(proto, name, msg), nil
		})
		declareGlobalNative(vmi, name, 1, ctor.Fn)
	}
	install("Error", vmi.errProtos.errorProto)
	install("TypeError", vmi.errProtos.typeErrorProto)
	install("RangeError", vmi.errProtos.rangeErrorProto)
	install("ReferenceError", vmi.errProtos.refErrorProto)
	install("SyntaxError", vmi.errProtos.syntaxErrorProto)
}
