package vm

import (
	"fmt"
	"sort"
	"sync"
)

// KeyKind distinguishes the three property-key spaces ECMAScript objects
// carry (ordinary string keys, well-known/user symbols, and private names).
type KeyKind uint8

const (
	KeyKindString KeyKind = iota
	KeyKindSymbol
	KeyKindPrivate
)

// PropertyKey represents a property key which can be a string, symbol, or
// private key (grounded on the teacher's pkg/vm/object.go PropertyKey).
type PropertyKey struct {
	kind      KeyKind
	name      string
	symbolVal Value
}

func keyFromString(name string) PropertyKey {
	return PropertyKey{kind: KeyKindString, name: normalizeIdent(name)}
}
func keyFromSymbol(sym Value) PropertyKey    { return PropertyKey{kind: KeyKindSymbol, symbolVal: sym} }

func NewStringKey(name string) PropertyKey { return keyFromString(name) }
func NewSymbolKey(sym Value) PropertyKey   { return keyFromSymbol(sym) }

func (k PropertyKey) IsString() bool { return k.kind == KeyKindString }
func (k PropertyKey) IsSymbol() bool { return k.kind == KeyKindSymbol }

func (k PropertyKey) debugName() string {
	switch k.kind {
	case KeyKindString:
		return k.name
	case KeyKindSymbol:
		if sym, ok := k.symbolVal.AsObject().(*SymbolObject); ok {
			return fmt.Sprintf("Symbol(%s)", sym.Description)
		}
		return "Symbol()"
	default:
		return "<private>"
	}
}

func (k PropertyKey) hash() string {
	switch k.kind {
	case KeyKindString:
		return "s:" + k.name
	case KeyKindSymbol:
		return fmt.Sprintf("y:%p", k.symbolVal.AsObject())
	default:
		return "p:" + k.name
	}
}

// Field is one entry of a Shape's layout (grounded on the teacher's Field).
type Field struct {
	offset       int
	name         string
	keyKind      KeyKind
	symbolVal    Value
	writable     bool
	enumerable   bool
	configurable bool
	isAccessor   bool
}

// Shape is a property-layout descriptor shared across every object with the
// same sequence of own-property additions (spec §4E: the lookup cache keys
// on this to decide whether a cached offset still applies). Shapes form a
// transition tree: adding property X to shape S always produces the same
// child shape regardless of which object triggered the transition, which is
// what lets the cache validate with a pointer compare instead of rewalking
// the property list.
type Shape struct {
	parent      *Shape
	fields      []Field
	transitions map[string]*Shape
	mu          sync.RWMutex
	version     uint32
}

func newRootShape() *Shape {
	return &Shape{transitions: make(map[string]*Shape)}
}

// transitionFor returns the child shape produced by adding key k with the
// given attributes, creating and caching it the first time any object takes
// that transition.
func (s *Shape) transitionFor(k PropertyKey, writable, enumerable, configurable, isAccessor bool) *Shape {
	h := k.hash()
	s.mu.RLock()
	if child, ok := s.transitions[h]; ok {
		s.mu.RUnlock()
		return child
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if child, ok := s.transitions[h]; ok {
		return child
	}
	child := &Shape{
		parent:      s,
		transitions: make(map[string]*Shape),
		version:     s.version + 1,
	}
	child.fields = append(child.fields, s.fields...)
	child.fields = append(child.fields, Field{
		offset: len(s.fields), name: k.name, keyKind: k.kind, symbolVal: k.symbolVal,
		writable: writable, enumerable: enumerable, configurable: configurable, isAccessor: isAccessor,
	})
	s.transitions[h] = child
	return child
}

func (s *Shape) lookup(k PropertyKey) (Field, int, bool) {
	h := k.hash()
	for i := len(s.fields) - 1; i >= 0; i-- {
		f := s.fields[i]
		if fieldHash(f) == h {
			return f, f.offset, true
		}
	}
	return Field{}, -1, false
}

func fieldHash(f Field) string {
	switch f.keyKind {
	case KeyKindString:
		return "s:" + f.name
	case KeyKindSymbol:
		return fmt.Sprintf("y:%p", f.symbolVal.AsObject())
	default:
		return "p:" + f.name
	}
}

// Object is embedded by every heap object that participates in the
// RefCounted ownership model.
type Object struct {
	RefCounted
}

// PlainObject is the ordinary ECMAScript object: a shape plus the property
// values stored at the offsets the shape assigns (spec §4E, grounded on the
// teacher's PlainObject).
type PlainObject struct {
	Object
	shape      *Shape
	prototype  Value
	properties []Value
	getters    map[string]Value
	setters    map[string]Value
	class      string // "Object", "Error", "Arguments", ... — Object.prototype.toString tag
	extensible bool
}

func (o *PlainObject) heapKind() string { return "object" }

func NewPlainObject(proto Value) *PlainObject {
	return &PlainObject{shape: newRootShape(), prototype: proto, extensible: true, class: "Object"}
}

// GetOwn looks up a direct (own) property by name.
func (o *PlainObject) GetOwn(name string) (Value, bool) { return o.GetOwnByKey(keyFromString(name)) }

func (o *PlainObject) GetOwnByKey(k PropertyKey) (Value, bool) {
	f, offset, ok := cachedFieldLookup(o.shape, k)
	if !ok {
		return Undefined, false
	}
	if f.isAccessor {
		return Undefined, false // accessors are resolved through getters map by caller
	}
	if o.properties[offset].IsEmpty() {
		return Undefined, false // tombstoned by a prior DeleteOwn
	}
	return o.properties[offset], true
}

func (o *PlainObject) GetAccessor(k PropertyKey) (getter, setter Value, ok bool) {
	f, _, found := o.shape.lookup(k)
	if !found || !f.isAccessor {
		return Undefined, Undefined, false
	}
	h := k.hash()
	return o.getters[h], o.setters[h], true
}

// SetOwn assigns an existing own data property, or adds a new enumerable,
// writable, configurable one (ECMAScript's default attributes for
// programmatic CreateDataProperty).
func (o *PlainObject) SetOwn(name string, v Value) { o.SetOwnByKey(keyFromString(name), v) }

func (o *PlainObject) SetOwnByKey(k PropertyKey, v Value) {
	if f, offset, ok := cachedFieldLookup(o.shape, k); ok && !f.isAccessor {
		o.properties[offset] = v
		return
	}
	o.DefineOwnByKey(k, v, true, true, true)
}

// DefineOwnByKey adds a new own data property with explicit attributes
// (ECMAScript's DefineOwnProperty for data descriptors).
func (o *PlainObject) DefineOwnByKey(k PropertyKey, v Value, writable, enumerable, configurable bool) {
	o.shape = o.shape.transitionFor(k, writable, enumerable, configurable, false)
	o.properties = append(o.properties, v)
}

// DefineAccessor installs a getter/setter pair under key k.
func (o *PlainObject) DefineAccessor(k PropertyKey, getter, setter Value, enumerable, configurable bool) {
	if o.getters == nil {
		o.getters = make(map[string]Value)
		o.setters = make(map[string]Value)
	}
	h := k.hash()
	if _, _, ok := o.shape.lookup(k); !ok {
		o.shape = o.shape.transitionFor(k, false, enumerable, configurable, true)
		o.properties = append(o.properties, Undefined)
	}
	if getter.Type() != TypeUndefined || o.getters[h].Type() == TypeUndefined {
		o.getters[h] = getter
	}
	if setter.Type() != TypeUndefined || o.setters[h].Type() == TypeUndefined {
		o.setters[h] = setter
	}
}

// DeleteOwn removes an own property if it is configurable, returning whether
// the slot is now absent (true even when it was absent to begin with, per
// ECMAScript's [[Delete]]).
func (o *PlainObject) DeleteOwn(k PropertyKey) bool {
	f, offset, ok := o.shape.lookup(k)
	if !ok {
		return true
	}
	if !f.configurable {
		return false
	}
	o.properties[offset] = Empty
	// Leaving the shape's field list intact (tombstoning the slot rather
	// than rebuilding a shape without it) keeps existing cached offsets for
	// sibling properties valid; the Empty sentinel marks it absent to
	// OwnKeys/GetOwn.
	for i := range o.shape.fields {
		if o.shape.fields[i].offset == offset {
			return true
		}
	}
	return true
}

// OwnKeys returns own property keys in ECMAScript's insertion order for
// strings, following the spec's integer-index-first rule is left to callers
// that special-case array-likes (fast arrays implement their own OwnKeys).
func (o *PlainObject) OwnKeys(enumerableOnly bool) []PropertyKey {
	keys := make([]PropertyKey, 0, len(o.shape.fields))
	for _, f := range o.shape.fields {
		if enumerableOnly && !f.enumerable {
			continue
		}
		if o.properties[f.offset].IsEmpty() {
			continue
		}
		if f.keyKind == KeyKindString {
			keys = append(keys, keyFromString(f.name))
		} else if f.keyKind == KeyKindSymbol {
			keys = append(keys, keyFromSymbol(f.symbolVal))
		}
	}
	return keys
}

func (o *PlainObject) Prototype() Value     { return o.prototype }
func (o *PlainObject) SetPrototype(v Value) { o.prototype = v }
func (o *PlainObject) Class() string        { return o.class }
func (o *PlainObject) SetClass(c string)    { o.class = c }
func (o *PlainObject) Extensible() bool     { return o.extensible }
func (o *PlainObject) PreventExtensions()   { o.extensible = false }

// ArrayObject is the fast-array representation: dense integer-indexed
// storage with its own length slot, bypassing the shape machinery for
// indexed access (spec §4E "fast-array short-circuit"). Named, non-index
// properties still fall back to a PlainObject-style side table.
type ArrayObject struct {
	Object
	elements  []Value // ArrayHole marks a missing index
	length    int
	prototype Value
	named     *PlainObject // lazily created for non-index properties ("foo", Symbol.iterator, ...)
}

func (a *ArrayObject) heapKind() string { return "array" }

func NewArrayObject(proto Value, elements []Value) *ArrayObject {
	return &ArrayObject{elements: elements, length: len(elements), prototype: proto}
}

func (a *ArrayObject) Length() int { return a.length }

func (a *ArrayObject) GetElement(idx int) (Value, bool) {
	if idx < 0 || idx >= len(a.elements) {
		return Undefined, false
	}
	v := a.elements[idx]
	if v.IsArrayHole() {
		return Undefined, false
	}
	return v, true
}

func (a *ArrayObject) SetElement(idx int, v Value) {
	if idx < 0 {
		return
	}
	if idx >= len(a.elements) {
		grown := make([]Value, idx+1)
		copy(grown, a.elements)
		for i := len(a.elements); i < idx; i++ {
			grown[i] = ArrayHole
		}
		a.elements = grown
	}
	a.elements[idx] = v
	if idx+1 > a.length {
		a.length = idx + 1
	}
}

func (a *ArrayObject) Push(v Value) {
	a.elements = append(a.elements, v)
	a.length = len(a.elements)
}

func (a *ArrayObject) namedObject() *PlainObject {
	if a.named == nil {
		a.named = NewPlainObject(Undefined)
	}
	return a.named
}

// SymbolObject is the heap representation of a unique Symbol value.
type SymbolObject struct {
	Object
	Description string
}

func (s *SymbolObject) heapKind() string { return "symbol" }

func NewSymbol(description string) *SymbolObject { return &SymbolObject{Description: description} }

// Well-known symbols, allocated once as package-level variables and shared
// by every VM.
var (
	SymbolIterator     = NewSymbol("Symbol.iterator")
	SymbolAsyncIterator = NewSymbol("Symbol.asyncIterator")
	SymbolToPrimitive   = NewSymbol("Symbol.toPrimitive")
)

// sortedKeyNames returns the debug names of keys in sorted order. No code in
// the module calls it, and runtime semantics do not depend on it
// (ECMAScript's own ordering rule is insertion order, not sorted order).
func sortedKeyNames(keys []PropertyKey) []string {
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, k.debugName())
	}
	sort.Strings(names)
	return names
}
