package replica

import (
	"math/big"
	"reflect"
)

// Classify returns the tag selecting the adapter for v.
//
// The fast mode trusts the string tag a value carries under
// SymbolToStringTag, falling back to the tag implied by its internal slot.
// It is cheap and can be spoofed. The robust mode walks a fixed probe list
// (see probes) and only falls back to the fast tag when nothing matches.
func Classify(v Value, robust bool) Tag {
	switch t := v.(type) {
	case nil:
		return TagNull
	case undefined:
		return TagUndefined
	case bool:
		return TagBool
	case string:
		return TagStr
	case *Symbol:
		return TagSym
	case *big.Int:
		return TagBig
	case *Object:
		if t == nil {
			return TagNull
		}
		if robust {
			return robustTag(t)
		}
		return fastTag(t)
	}
	if isNumber(v) {
		return TagNum
	}
	if isHostReference(v) {
		switch reflect.TypeOf(v).Kind() {
		case reflect.Slice:
			return TagHostSlice
		case reflect.Map:
			return TagHostMap
		}
		return TagHostStruct
	}
	return TagOpaque
}

func isPrimitiveTag(t Tag) bool {
	switch t {
	case TagUndefined, TagNull, TagBool, TagNum, TagStr, TagSym, TagBig, TagOpaque:
		return true
	}
	return false
}

// fastTag reads the string tag as a data property only; getters are not run.
func fastTag(o *Object) Tag {
	if d, _, ok := o.lookup(SymbolKey(SymbolToStringTag)); ok && !d.IsAccessor() {
		if s, isString := d.Value.(string); isString {
			return Tag(s)
		}
	}
	return slotTag(o)
}

type probe struct {
	proto **Object
	test  func(o *Object) bool
	tag   Tag
}

func slotIs[T any](o *Object) bool {
	_, ok := o.slot.(T)
	return ok
}

func boxOf(kind func(Value) bool) func(o *Object) bool {
	return func(o *Object) bool {
		b, ok := o.slot.(*boxSlot)
		return ok && kind(b.value)
	}
}

func typedOf(k TypedKind) func(o *Object) bool {
	return func(o *Object) bool {
		s, ok := o.slot.(*typedArraySlot)
		return ok && s.kind == k
	}
}

func isAggregate(o *Object) bool {
	if !slotIs[*errorSlot](o) {
		return false
	}
	name, _ := dataString(o, "name")
	return name == "AggregateError"
}

// dataString reads a string data property through the prototype chain
// without running getters.
func dataString(o *Object, name string) (string, bool) {
	d, _, ok := o.lookup(StringKey(name))
	if !ok || d.IsAccessor() {
		return "", false
	}
	s, ok := d.Value.(string)
	return s, ok
}

// probes is the ordered robust classification list. Subclass probes come
// before their parents: exceptions and aggregate errors before Error, typed
// arrays by element kind.
var probes = []probe{
	{&ArrayPrototype, slotIs[arraySlot], TagArray},
	{&FunctionPrototype, slotIs[*funcSlot], TagFunction},
	{&MapPrototype, slotIs[*MapData], TagMap},
	{&SetPrototype, slotIs[*SetData], TagSet},
	{&WeakMapPrototype, func(o *Object) bool { w, ok := o.slot.(*weakSlot); return ok && !w.set }, TagWeakMap},
	{&WeakSetPrototype, func(o *Object) bool { w, ok := o.slot.(*weakSlot); return ok && w.set }, TagWeakSet},
	{&DatePrototype, slotIs[*dateSlot], TagDate},
	{&RegExpPrototype, slotIs[*regexpSlot], TagRegExp},
	{&ExceptionPrototype, slotIs[*exceptionSlot], TagException},
	{&ErrorPrototype, isAggregate, TagAggregateError},
	{&ErrorPrototype, slotIs[*errorSlot], TagError},
	{&BooleanPrototype, boxOf(func(v Value) bool { _, ok := v.(bool); return ok }), TagBoolean},
	{&NumberPrototype, boxOf(isNumber), TagNumber},
	{&StringPrototype, boxOf(func(v Value) bool { _, ok := v.(string); return ok }), TagString},
	{&SymbolPrototype, boxOf(func(v Value) bool { _, ok := v.(*Symbol); return ok }), TagSymbol},
	{&BigIntPrototype, boxOf(func(v Value) bool { _, ok := v.(*big.Int); return ok }), TagBigInt},
	{&ArrayBufferPrototype, slotIs[*bufferSlot], TagArrayBuffer},
	{&TypedArrayPrototype, typedOf(Int8), TagInt8Array},
	{&TypedArrayPrototype, typedOf(Uint8), TagUint8Array},
	{&TypedArrayPrototype, typedOf(Uint8Clamped), TagUint8ClampedArray},
	{&TypedArrayPrototype, typedOf(Int16), TagInt16Array},
	{&TypedArrayPrototype, typedOf(Uint16), TagUint16Array},
	{&TypedArrayPrototype, typedOf(Int32), TagInt32Array},
	{&TypedArrayPrototype, typedOf(Uint32), TagUint32Array},
	{&TypedArrayPrototype, typedOf(Float32), TagFloat32Array},
	{&TypedArrayPrototype, typedOf(Float64), TagFloat64Array},
	{&TypedArrayPrototype, typedOf(BigInt64), TagBigInt64Array},
	{&TypedArrayPrototype, typedOf(BigUint64), TagBigUint64Array},
	{&DataViewPrototype, slotIs[*dataViewSlot], TagDataView},
	{&BlobPrototype, slotIs[*blobSlot], TagBlob},
	{&PointPrototype, slotIs[*pointSlot], TagPoint},
	{&MatrixPrototype, slotIs[*matrixSlot], TagMatrix},
	{&RectPrototype, slotIs[*rectSlot], TagRect},
	{&QuadPrototype, slotIs[*quadSlot], TagQuad},
	{&ImageDataPrototype, slotIs[*imageDataSlot], TagImageData},
	{&SecretPrototype, slotIs[*secretSlot], TagSecret},
	{&AsyncResourcePrototype, slotIs[*asyncResourceSlot], TagAsyncResource},
}

func robustTag(o *Object) Tag {
	for _, p := range probes {
		if !o.inheritsFrom(*p.proto) {
			continue
		}
		if runProbe(p, o) {
			return p.tag
		}
	}
	return fastTag(o)
}

func runProbe(p probe, o *Object) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return p.test(o)
}
