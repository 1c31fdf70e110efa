package vm

import (
	"escore/pkg/bytecode"
	"fmt"
)

// FunctionObject is the immutable, shareable half of a closure: the
// compiled body plus the declared-arity metadata the call protocol
// (component G) needs before it can build a frame. A ClosureObject pairs one
// of these with the lexical environment captured at creation time
// (grounded on the teacher's split between FunctionObject and
// ClosureObject, generalized from register upvalues to lex-env capture
// since this interpreter resolves identifiers through environment records
// rather than compiler-resolved upvalue slots).
type FunctionObject struct {
	Object
	Name                 string
	Code                 *bytecode.CompiledCode
	Length               int // ECMAScript .length: params before the first default/rest
	IsGenerator          bool
	IsAsync              bool
	IsArrow              bool
	IsDerivedConstructor bool
	IsClassConstructor   bool
	HomeObject           Value // [[HomeObject]]: resolves `super` property lookups
	SuperConstructor     Value // the parent class's constructor, resolved at class-literal evaluation time; used by super()
	Properties           *PlainObject
	Prototype            Value // function.prototype, lazily materialized for non-arrow functions
}

func (f *FunctionObject) heapKind() string { return "function" }
func (f *FunctionObject) isCallable()      {}

// ClosureObject is what CREATE_CLOSURE actually pushes: a FunctionObject
// plus the lexical environment chain in effect where the function literal
// was evaluated (spec §4B "sub-function... materialized into a fresh
// function object at reference time").
type ClosureObject struct {
	Object
	Fn                *FunctionObject
	CapturedEnv       *LexEnv
	CapturedThis      Value // arrow functions close over the enclosing this
	CapturedNewTarget Value
	CapturedSuper     Value // enclosing HomeObject, for arrow functions using `super`
	Properties        *PlainObject
}

func (c *ClosureObject) heapKind() string { return "closure" }
func (c *ClosureObject) isCallable()      {}

func (c *ClosureObject) Name() string { return c.Fn.Name }

// NativeFunctionObject wraps a Go function as a callable ECMAScript value;
// this is how the driver's bundled demos and the error constructors expose
// host behavior (spec §6 "External Interfaces").
type NativeFunctionObject struct {
	Object
	Name          string
	Length        int
	IsConstructor bool
	Fn            NativeFunc
	Properties    *PlainObject
}

// NativeFunc is the calling convention for host functions: vm is the
// executing VM (for allocating return objects, throwing, scheduling
// microtasks), this is the receiver, newTarget is non-Undefined only for
// [[Construct]] calls.
type NativeFunc func(vm *VM, this Value, args []Value, newTarget Value) (Value, *ThrownError)

func (n *NativeFunctionObject) heapKind() string { return "native-function" }
func (n *NativeFunctionObject) isCallable()       {}

func NewNativeFunction(name string, length int, fn NativeFunc) *NativeFunctionObject {
	return &NativeFunctionObject{Name: name, Length: length, Fn: fn}
}

// BoundFunctionObject implements Function.prototype.bind: a target function
// with a fixed this and a prefix of partially-applied arguments.
type BoundFunctionObject struct {
	Object
	Target      Value
	BoundThis   Value
	PartialArgs []Value
	Name        string
}

func (b *BoundFunctionObject) heapKind() string { return "bound-function" }
func (b *BoundFunctionObject) isCallable()       {}

// ProxyObject implements the Proxy exotic object. Trap lookup falls through
// to the target's own behavior whenever a trap is Undefined, per
// ECMAScript's "derived trap" default (grounded on the teacher's
// pkg/vm/call.go Proxy apply-trap handling, generalized to the
// get/set/deleteProperty/ownKeys traps property access and for-in use; no
// `has` trap is consulted).
type ProxyObject struct {
	Object
	Target  Value
	Handler Value
	Revoked bool
}

func (p *ProxyObject) heapKind() string { return "proxy" }
func (p *ProxyObject) isCallable()      { /* only when Target is itself callable; checked at call sites */ }

// trap fetches handler[name] if it is callable, reporting whether a usable
// trap was found so the caller can fall back to the target's own behavior.
func (p *ProxyObject) trap(vmi *VM, name string) (Value, bool) {
	handlerObj, ok := p.Handler.AsObject().(*PlainObject)
	if !ok {
		return Undefined, false
	}
	v, ok := handlerObj.GetOwn(name)
	if !ok || !v.IsObject() {
		return Undefined, false
	}
	if _, ok := v.AsObject().(callable); !ok {
		return Undefined, false
	}
	return v, true
}

// ThrownError wraps a pending ECMAScript exception value as it propagates
// through Go's own call stack between the point it's thrown and the point
// the context-stack machine (component D) finds a handler for it.
type ThrownError struct {
	Value Value
}

func (e *ThrownError) Error() string {
	return fmt.Sprintf("uncaught exception: %s", e.Value.ToStringValue())
}

func NewThrownError(v Value) *ThrownError { return &ThrownError{Value: v} }
