package replica

import (
	"math/big"
	"reflect"
)

// Intrinsic prototypes. They are built once by init and never mutated after.
var (
	ObjectPrototype         *Object
	FunctionPrototype       *Object
	ArrayPrototype          *Object
	BooleanPrototype        *Object
	NumberPrototype         *Object
	StringPrototype         *Object
	SymbolPrototype         *Object
	BigIntPrototype         *Object
	DatePrototype           *Object
	RegExpPrototype         *Object
	ErrorPrototype          *Object
	AggregateErrorPrototype *Object
	MapPrototype            *Object
	SetPrototype            *Object
	WeakMapPrototype        *Object
	WeakSetPrototype        *Object
	ArrayBufferPrototype    *Object
	DataViewPrototype       *Object
	TypedArrayPrototype     *Object
	BlobPrototype           *Object
	ExceptionPrototype      *Object
	PointPrototype          *Object
	MatrixPrototype         *Object
	RectPrototype           *Object
	QuadPrototype           *Object
	ImageDataPrototype      *Object
	SecretPrototype         *Object
	AsyncResourcePrototype  *Object
)

// errorPrototypes maps allow-listed family names to their prototypes.
var errorPrototypes = map[string]*Object{}

// typedArrayPrototypes maps element kinds to their prototypes.
var typedArrayPrototypes = map[TypedKind]*Object{}

func init() {
	ObjectPrototype = intrinsic(nil, "")
	FunctionPrototype = intrinsic(ObjectPrototype, "")
	FunctionPrototype.slot = &funcSlot{name: "", fn: func(Value, ...Value) (Value, error) { return Undefined, nil }}
	ArrayPrototype = intrinsic(ObjectPrototype, "")
	ArrayPrototype.slot = arraySlot{}
	BooleanPrototype = intrinsic(ObjectPrototype, "")
	NumberPrototype = intrinsic(ObjectPrototype, "")
	StringPrototype = intrinsic(ObjectPrototype, "")
	SymbolPrototype = intrinsic(ObjectPrototype, TagSymbol)
	BigIntPrototype = intrinsic(ObjectPrototype, TagBigInt)
	DatePrototype = intrinsic(ObjectPrototype, "")
	RegExpPrototype = intrinsic(ObjectPrototype, "")

	ErrorPrototype = intrinsic(ObjectPrototype, "")
	defineHidden(ErrorPrototype, "name", "Error")
	defineHidden(ErrorPrototype, "message", "")
	errorPrototypes["Error"] = ErrorPrototype
	for name := range errorFamilies {
		if name == "Error" {
			continue
		}
		p := intrinsic(ErrorPrototype, "")
		defineHidden(p, "name", name)
		defineHidden(p, "message", "")
		errorPrototypes[name] = p
	}
	AggregateErrorPrototype = errorPrototypes["AggregateError"]

	MapPrototype = intrinsic(ObjectPrototype, TagMap)
	SetPrototype = intrinsic(ObjectPrototype, TagSet)
	WeakMapPrototype = intrinsic(ObjectPrototype, TagWeakMap)
	WeakSetPrototype = intrinsic(ObjectPrototype, TagWeakSet)
	ArrayBufferPrototype = intrinsic(ObjectPrototype, TagArrayBuffer)
	DataViewPrototype = intrinsic(ObjectPrototype, TagDataView)
	TypedArrayPrototype = intrinsic(ObjectPrototype, "")
	for kind, info := range typedKinds {
		typedArrayPrototypes[kind] = intrinsic(TypedArrayPrototype, info.tag)
	}

	BlobPrototype = intrinsic(ObjectPrototype, TagBlob)
	ExceptionPrototype = intrinsic(ErrorPrototype, TagException)
	defineHidden(ExceptionPrototype, "name", "Error")
	PointPrototype = intrinsic(ObjectPrototype, TagPoint)
	MatrixPrototype = intrinsic(ObjectPrototype, TagMatrix)
	RectPrototype = intrinsic(ObjectPrototype, TagRect)
	QuadPrototype = intrinsic(ObjectPrototype, TagQuad)
	ImageDataPrototype = intrinsic(ObjectPrototype, TagImageData)
	SecretPrototype = intrinsic(ObjectPrototype, TagSecret)
	AsyncResourcePrototype = intrinsic(ObjectPrototype, TagAsyncResource)
}

// intrinsic builds a realm prototype, optionally carrying a string tag.
func intrinsic(proto *Object, tag Tag) *Object {
	o := newObject(proto, nil)
	o.intrinsic = true
	if tag != "" {
		_ = o.DefineOwnProperty(SymbolKey(SymbolToStringTag), Descriptor{Value: string(tag), Configurable: true})
	}
	return o
}

func defineHidden(o *Object, name string, v Value) {
	_ = o.DefineOwnProperty(StringKey(name), Descriptor{Value: v, Writable: true, Configurable: true})
}

// ErrorPrototypeFor returns the prototype of an allow-listed error family.
func ErrorPrototypeFor(name string) (*Object, bool) {
	p, ok := errorPrototypes[name]
	return p, ok
}

// NativeFunc is the Go implementation behind a callable object.
type NativeFunc func(this Value, args ...Value) (Value, error)

type funcSlot struct {
	name   string
	fn     NativeFunc
	method CloneMethod
}

// NewFunction creates a callable object.
func NewFunction(name string, fn NativeFunc) *Object {
	o := newObject(FunctionPrototype, &funcSlot{name: name, fn: fn})
	_ = o.DefineOwnProperty(StringKey("name"), Descriptor{Value: name, Configurable: true})
	return o
}

// IsCallable reports whether v is a callable object.
func IsCallable(v Value) bool {
	o, ok := v.(*Object)
	if !ok {
		return false
	}
	_, ok = o.slot.(*funcSlot)
	return ok
}

// Call invokes a callable object.
func (o *Object) Call(this Value, args ...Value) (Value, error) {
	f, ok := o.slot.(*funcSlot)
	if !ok || f.fn == nil {
		return Undefined, ErrNotCallable
	}
	return f.fn(this, args...)
}

type arraySlot struct{}

// NewArray creates an array holding vals at indices 0..n-1.
func NewArray(vals ...Value) *Object {
	o := newObject(ArrayPrototype, arraySlot{})
	for i, v := range vals {
		_ = o.SetOwn(IndexKey(i), v)
	}
	return o
}

// IsArray reports whether v is an array.
func IsArray(v Value) bool {
	o, ok := v.(*Object)
	if !ok {
		return false
	}
	_, ok = o.slot.(arraySlot)
	return ok
}

// Len returns the array length (highest own index plus one), or the element
// count of a typed array. Other objects report zero.
func (o *Object) Len() int {
	if ta, ok := o.slot.(*typedArraySlot); ok {
		return ta.length
	}
	if _, ok := o.slot.(arraySlot); !ok {
		return 0
	}
	n := 0
	for _, k := range o.keys {
		if i, ok := k.index(); ok && i+1 > n {
			n = i + 1
		}
	}
	return n
}

// Index reads element i.
func (o *Object) Index(i int) Value {
	return o.Get(IndexKey(i))
}

// Push appends to an array.
func (o *Object) Push(vals ...Value) error {
	n := o.Len()
	for i, v := range vals {
		if err := o.SetOwn(IndexKey(n+i), v); err != nil {
			return err
		}
	}
	return nil
}

// Elements returns the array elements in index order.
func (o *Object) Elements() []Value {
	n := o.Len()
	out := make([]Value, n)
	for i := 0; i < n; i++ {
		out[i] = o.Index(i)
	}
	return out
}

type boxSlot struct {
	value Value
}

func boxPrototype(v Value) *Object {
	switch v.(type) {
	case bool:
		return BooleanPrototype
	case string:
		return StringPrototype
	case *Symbol:
		return SymbolPrototype
	case *big.Int:
		return BigIntPrototype
	}
	return NumberPrototype
}

func newBox(v Value) *Object {
	return newObject(boxPrototype(v), &boxSlot{value: v})
}

// NewBoolean boxes a bool.
func NewBoolean(b bool) *Object { return newBox(b) }

// NewNumber boxes a number.
func NewNumber(n float64) *Object { return newBox(n) }

// NewString boxes a string.
func NewString(s string) *Object { return newBox(s) }

// NewSymbolObject boxes a symbol.
func NewSymbolObject(s *Symbol) *Object { return newBox(s) }

// NewBigIntObject boxes a big integer.
func NewBigIntObject(n *big.Int) *Object { return newBox(new(big.Int).Set(n)) }

// PrimitiveValue returns the primitive held by a boxed primitive.
func (o *Object) PrimitiveValue() (Value, bool) {
	b, ok := o.slot.(*boxSlot)
	if !ok {
		return nil, false
	}
	return b.value, true
}

// slotTag returns the built-in tag derived from the internal slot, used by
// fast classification when no string tag is present.
func slotTag(o *Object) Tag {
	switch s := o.slot.(type) {
	case arraySlot:
		return TagArray
	case *funcSlot:
		return TagFunction
	case *errorSlot:
		return TagError
	case *dateSlot:
		return TagDate
	case *regexpSlot:
		return TagRegExp
	case *boxSlot:
		switch s.value.(type) {
		case bool:
			return TagBoolean
		case string:
			return TagString
		case *Symbol, *big.Int:
			return TagObject
		}
		if isNumber(s.value) {
			return TagNumber
		}
	}
	return TagObject
}

func isNumber(v Value) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
