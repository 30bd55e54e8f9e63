package replica

import (
	"math"
	"math/big"
	"reflect"
	"sort"
	"strconv"
)

// Value is any value of the object model.
//
// Primitives are nil (null), Undefined, bool, Go numeric kinds, string,
// *Symbol and *big.Int. *Object is the reference kind of the dynamic model.
// Pointers to structs, slices and maps are host references.
type Value = any

type undefined struct{}

func (undefined) String() string { return "undefined" }

// Undefined is the absent value. It is distinct from nil, which is null.
var Undefined Value = undefined{}

// Symbol is a unique property key and primitive value. Identity is the pointer.
type Symbol struct {
	description string
}

// NewSymbol creates a new unique symbol.
func NewSymbol(description string) *Symbol {
	return &Symbol{description: description}
}

// Description returns the symbol's description.
func (s *Symbol) Description() string { return s.description }

func (s *Symbol) String() string { return "Symbol(" + s.description + ")" }

// Well-known symbols.
var (
	// SymbolToStringTag names the property consulted by fast classification.
	SymbolToStringTag = NewSymbol("toStringTag")

	// SymbolClone marks a self-describing clone method. See (*Object).SetCloneMethod.
	SymbolClone = NewSymbol("replica.clone")
)

// Key is a property key: either a string or a symbol.
type Key struct {
	name string
	sym  *Symbol
}

// StringKey returns the key for a string-named property.
func StringKey(name string) Key { return Key{name: name} }

// SymbolKey returns the key for a symbol-named property.
func SymbolKey(sym *Symbol) Key { return Key{sym: sym} }

// IndexKey returns the key for an integer index.
func IndexKey(i int) Key { return Key{name: strconv.Itoa(i)} }

// IsSymbol reports whether the key is symbol-named.
func (k Key) IsSymbol() bool { return k.sym != nil }

// Name returns the string name; empty for symbol keys.
func (k Key) Name() string { return k.name }

// Symbol returns the symbol; nil for string keys.
func (k Key) Symbol() *Symbol { return k.sym }

func (k Key) String() string {
	if k.sym != nil {
		return k.sym.String()
	}
	return k.name
}

// index returns the array index for integer-like keys.
func (k Key) index() (int, bool) {
	if k.sym != nil || k.name == "" {
		return 0, false
	}
	if len(k.name) > 1 && k.name[0] == '0' {
		return 0, false
	}
	n, err := strconv.Atoi(k.name)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Descriptor mirrors a property's access contract.
// A descriptor with Get or Set is an accessor; Value and Writable are then ignored.
type Descriptor struct {
	Value        Value
	Get          *Object
	Set          *Object
	Writable     bool
	Enumerable   bool
	Configurable bool
}

// IsAccessor reports whether the descriptor describes an accessor property.
func (d Descriptor) IsAccessor() bool { return d.Get != nil || d.Set != nil }

// isPlainData reports whether d is a fully standard data property.
func (d Descriptor) isPlainData() bool {
	return !d.IsAccessor() && d.Writable && d.Enumerable && d.Configurable
}

// DataDescriptor returns a writable, enumerable, configurable data descriptor.
func DataDescriptor(v Value) Descriptor {
	return Descriptor{Value: v, Writable: true, Enumerable: true, Configurable: true}
}

type property struct {
	desc Descriptor
}

// Object is a key/value container with per-property metadata, a prototype
// link, an extensibility flag and an optional internal slot holding the data
// of native kinds (maps, buffers, dates, ...).
type Object struct {
	proto      *Object
	keys       []Key
	props      map[Key]*property
	extensible bool
	slot       any
	intrinsic  bool
}

func newObject(proto *Object, slot any) *Object {
	return &Object{
		proto:      proto,
		props:      make(map[Key]*property),
		extensible: true,
		slot:       slot,
	}
}

// NewObject creates an ordinary object inheriting from the object prototype.
func NewObject() *Object {
	return newObject(ObjectPrototype, nil)
}

// NewObjectWithProto creates an ordinary object with the given prototype.
// A nil proto creates an object with no prototype.
func NewObjectWithProto(proto *Object) *Object {
	return newObject(proto, nil)
}

// Prototype returns the prototype link.
func (o *Object) Prototype() *Object { return o.proto }

// SetPrototype relinks the prototype. Non-extensible objects refuse a change.
func (o *Object) SetPrototype(proto *Object) error {
	if o.proto == proto {
		return nil
	}
	if !o.extensible {
		return &PropertyError{Err: ErrNotExtensible, Key: StringKey("[[Prototype]]")}
	}
	for p := proto; p != nil; p = p.proto {
		if p == o {
			return &PropertyError{Err: ErrCyclicPrototype, Key: StringKey("[[Prototype]]")}
		}
	}
	o.proto = proto
	return nil
}

// IsIntrinsic reports whether o is one of the realm's built-in prototypes.
func (o *Object) IsIntrinsic() bool { return o.intrinsic }

// OwnKeys returns the own property keys: integer-like keys ascending, then
// remaining string keys in insertion order, then symbol keys in insertion order.
func (o *Object) OwnKeys() []Key {
	var indices []Key
	if ta, ok := o.slot.(*typedArraySlot); ok {
		for i := 0; i < ta.length; i++ {
			indices = append(indices, IndexKey(i))
		}
	}
	var strs, syms []Key
	start := len(indices)
	for _, k := range o.keys {
		switch {
		case k.sym != nil:
			syms = append(syms, k)
		default:
			if _, ok := k.index(); ok {
				indices = append(indices, k)
			} else {
				strs = append(strs, k)
			}
		}
	}
	tail := indices[start:]
	sort.SliceStable(tail, func(i, j int) bool {
		a, _ := tail[i].index()
		b, _ := tail[j].index()
		return a < b
	})
	out := make([]Key, 0, len(indices)+len(strs)+len(syms))
	out = append(out, indices...)
	out = append(out, strs...)
	return append(out, syms...)
}

// GetOwnProperty returns the descriptor of an own property.
func (o *Object) GetOwnProperty(k Key) (Descriptor, bool) {
	if ta, ok := o.slot.(*typedArraySlot); ok {
		if i, isIndex := k.index(); isIndex && i < ta.length {
			return Descriptor{Value: ta.get(i), Writable: true, Enumerable: true, Configurable: true}, true
		}
	}
	p, ok := o.props[k]
	if !ok {
		return Descriptor{}, false
	}
	return p.desc, true
}

// HasOwn reports whether k is an own property.
func (o *Object) HasOwn(k Key) bool {
	_, ok := o.GetOwnProperty(k)
	return ok
}

// lookup finds a property along the prototype chain.
func (o *Object) lookup(k Key) (Descriptor, *Object, bool) {
	for cur := o; cur != nil; cur = cur.proto {
		if d, ok := cur.GetOwnProperty(k); ok {
			return d, cur, true
		}
	}
	return Descriptor{}, nil, false
}

// Get reads a property along the prototype chain, invoking getters with o as
// the receiver. Missing properties and failing getters read as Undefined.
func (o *Object) Get(k Key) Value {
	d, _, ok := o.lookup(k)
	if !ok {
		return Undefined
	}
	if d.IsAccessor() {
		if d.Get == nil {
			return Undefined
		}
		v, err := d.Get.Call(o)
		if err != nil {
			return Undefined
		}
		return v
	}
	return d.Value
}

// GetString is shorthand for Get(StringKey(name)).
func (o *Object) GetString(name string) Value {
	return o.Get(StringKey(name))
}

// Set assigns a property with ordinary assignment semantics.
func (o *Object) Set(k Key, v Value) error {
	d, owner, ok := o.lookup(k)
	if ok {
		if d.IsAccessor() {
			if d.Set == nil {
				return &PropertyError{Err: ErrNotWritable, Key: k}
			}
			_, err := d.Set.Call(o, v)
			return err
		}
		if !d.Writable {
			return &PropertyError{Err: ErrNotWritable, Key: k}
		}
		if owner == o {
			if ta, isTyped := o.slot.(*typedArraySlot); isTyped {
				if i, isIndex := k.index(); isIndex && i < ta.length {
					ta.set(i, v)
					return nil
				}
			}
			o.props[k].desc.Value = v
			return nil
		}
	}
	return o.SetOwn(k, v)
}

// SetOwn creates or overwrites an own data property without consulting the
// prototype chain. New properties are writable, enumerable and configurable.
func (o *Object) SetOwn(k Key, v Value) error {
	if ta, ok := o.slot.(*typedArraySlot); ok {
		if i, isIndex := k.index(); isIndex && i < ta.length {
			ta.set(i, v)
			return nil
		}
	}
	if p, ok := o.props[k]; ok {
		if p.desc.IsAccessor() || !p.desc.Writable {
			if !p.desc.Configurable {
				return &PropertyError{Err: ErrNotWritable, Key: k}
			}
			p.desc = DataDescriptor(v)
			return nil
		}
		p.desc.Value = v
		return nil
	}
	if !o.extensible {
		return &PropertyError{Err: ErrNotExtensible, Key: k}
	}
	o.keys = append(o.keys, k)
	o.props[k] = &property{desc: DataDescriptor(v)}
	return nil
}

// SetString is shorthand for SetOwn(StringKey(name), v) that panics on failure.
// It is meant for building fixtures.
func (o *Object) SetString(name string, v Value) *Object {
	if err := o.SetOwn(StringKey(name), v); err != nil {
		panic(err)
	}
	return o
}

// DefineOwnProperty defines or redefines an own property.
// Redefining a non-configurable property only succeeds for compatible changes.
func (o *Object) DefineOwnProperty(k Key, d Descriptor) error {
	if ta, ok := o.slot.(*typedArraySlot); ok {
		if i, isIndex := k.index(); isIndex && i < ta.length {
			if d.IsAccessor() || !d.Writable {
				return &PropertyError{Err: ErrNonConfigurable, Key: k}
			}
			ta.set(i, d.Value)
			return nil
		}
	}
	p, ok := o.props[k]
	if !ok {
		if !o.extensible {
			return &PropertyError{Err: ErrNotExtensible, Key: k}
		}
		o.keys = append(o.keys, k)
		o.props[k] = &property{desc: d}
		return nil
	}
	cur := p.desc
	if !cur.Configurable {
		if d.Configurable || d.Enumerable != cur.Enumerable || d.IsAccessor() != cur.IsAccessor() {
			return &PropertyError{Err: ErrNonConfigurable, Key: k}
		}
		if cur.IsAccessor() {
			if d.Get != cur.Get || d.Set != cur.Set {
				return &PropertyError{Err: ErrNonConfigurable, Key: k}
			}
		} else if !cur.Writable {
			if d.Writable || !sameValue(d.Value, cur.Value) {
				return &PropertyError{Err: ErrNonConfigurable, Key: k}
			}
		}
	}
	p.desc = d
	return nil
}

// DefineAccessor defines an accessor property.
func (o *Object) DefineAccessor(k Key, get, set *Object, enumerable, configurable bool) error {
	return o.DefineOwnProperty(k, Descriptor{Get: get, Set: set, Enumerable: enumerable, Configurable: configurable})
}

// Delete removes a configurable own property. It reports whether the property
// is absent afterwards.
func (o *Object) Delete(k Key) bool {
	p, ok := o.props[k]
	if !ok {
		return !o.HasOwn(k)
	}
	if !p.desc.Configurable {
		return false
	}
	delete(o.props, k)
	for i, existing := range o.keys {
		if existing == k {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
	return true
}

// PreventExtensions forbids adding new own properties.
func (o *Object) PreventExtensions() { o.extensible = false }

// Seal prevents extensions and makes every own property non-configurable.
func (o *Object) Seal() {
	o.extensible = false
	for _, p := range o.props {
		p.desc.Configurable = false
	}
}

// Freeze seals the object and makes every own data property non-writable.
func (o *Object) Freeze() {
	o.Seal()
	for _, p := range o.props {
		if !p.desc.IsAccessor() {
			p.desc.Writable = false
		}
	}
}

// IsExtensible reports whether new properties may be added.
func (o *Object) IsExtensible() bool { return o.extensible }

// IsSealed reports whether o is non-extensible with only non-configurable properties.
func (o *Object) IsSealed() bool {
	if o.extensible {
		return false
	}
	if ta, ok := o.slot.(*typedArraySlot); ok && ta.length > 0 {
		return false
	}
	for _, p := range o.props {
		if p.desc.Configurable {
			return false
		}
	}
	return true
}

// IsFrozen reports whether o is sealed and every own data property is read-only.
func (o *Object) IsFrozen() bool {
	if !o.IsSealed() {
		return false
	}
	for _, p := range o.props {
		if !p.desc.IsAccessor() && p.desc.Writable {
			return false
		}
	}
	return true
}

// inheritsFrom reports whether proto appears on o's prototype chain.
func (o *Object) inheritsFrom(proto *Object) bool {
	for p := o.proto; p != nil; p = p.proto {
		if p == proto {
			return true
		}
	}
	return false
}

// IsPrimitive reports whether v is returned by value rather than cloned.
func IsPrimitive(v Value) bool {
	switch v.(type) {
	case nil, undefined, bool, string, *Symbol, *big.Int,
		int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, uintptr,
		float32, float64, complex64, complex128:
		return true
	case *Object:
		return false
	}
	return !isHostReference(v)
}

// isHostReference reports whether v is a non-nil Go pointer to struct, slice or map.
func isHostReference(v Value) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		return !rv.IsNil() && rv.Elem().Kind() == reflect.Struct
	case reflect.Slice, reflect.Map:
		return !rv.IsNil()
	}
	return false
}

// sameValue compares primitives the way property redefinition does.
func sameValue(a, b Value) bool {
	if fa, ok := a.(float64); ok {
		if fb, ok := b.(float64); ok {
			if math.IsNaN(fa) && math.IsNaN(fb) {
				return true
			}
			return fa == fb
		}
	}
	if IsPrimitive(a) && IsPrimitive(b) {
		if ba, ok := a.(*big.Int); ok {
			bb, ok := b.(*big.Int)
			return ok && ba.Cmp(bb) == 0
		}
		return isComparable(a) && isComparable(b) && a == b
	}
	return identity(a) == identity(b)
}

func isComparable(v Value) bool {
	if v == nil {
		return true
	}
	return reflect.TypeOf(v).Comparable()
}
