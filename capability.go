package replica

// Tag is a classifier's stable name for a value's runtime type family.
type Tag string

// Primitive tags.
const (
	TagUndefined Tag = "undefined"
	TagNull      Tag = "null"
	TagBool      Tag = "boolean"
	TagNum       Tag = "number"
	TagStr       Tag = "string"
	TagSym       Tag = "symbol"
	TagBig       Tag = "bigint"
	TagOpaque    Tag = "opaque"
)

// Ordinary and built-in object tags.
const (
	TagObject         Tag = "Object"
	TagArray          Tag = "Array"
	TagFunction       Tag = "Function"
	TagBoolean        Tag = "Boolean"
	TagNumber         Tag = "Number"
	TagString         Tag = "String"
	TagSymbol         Tag = "Symbol"
	TagBigInt         Tag = "BigInt"
	TagDate           Tag = "Date"
	TagRegExp         Tag = "RegExp"
	TagError          Tag = "Error"
	TagAggregateError Tag = "AggregateError"
	TagMap            Tag = "Map"
	TagSet            Tag = "Set"
	TagWeakMap        Tag = "WeakMap"
	TagWeakSet        Tag = "WeakSet"
	TagArrayBuffer    Tag = "ArrayBuffer"
	TagDataView       Tag = "DataView"
)

// Typed array tags, one per element kind.
const (
	TagInt8Array         Tag = "Int8Array"
	TagUint8Array        Tag = "Uint8Array"
	TagUint8ClampedArray Tag = "Uint8ClampedArray"
	TagInt16Array        Tag = "Int16Array"
	TagUint16Array       Tag = "Uint16Array"
	TagInt32Array        Tag = "Int32Array"
	TagUint32Array       Tag = "Uint32Array"
	TagFloat32Array      Tag = "Float32Array"
	TagFloat64Array      Tag = "Float64Array"
	TagBigInt64Array     Tag = "BigInt64Array"
	TagBigUint64Array    Tag = "BigUint64Array"
)

// Platform resource tags.
const (
	TagBlob          Tag = "Blob"
	TagException     Tag = "DOMException"
	TagPoint         Tag = "DOMPoint"
	TagMatrix        Tag = "DOMMatrix"
	TagRect          Tag = "DOMRect"
	TagQuad          Tag = "DOMQuad"
	TagImageData     Tag = "ImageData"
	TagSecret        Tag = "Secret"
	TagAsyncResource Tag = "AsyncResource"
)

// Host (Go value) tags.
const (
	TagHostStruct Tag = "HostStruct"
	TagHostSlice  Tag = "HostSlice"
	TagHostMap    Tag = "HostMap"
)

// Family groups adapters by the policy that applies to them.
type Family string

const (
	// FamilyBuiltin covers ordinary objects, containers and native wrappers.
	FamilyBuiltin Family = "builtin"

	// FamilyPlatform covers synchronously duplicable platform resources.
	FamilyPlatform Family = "platform"

	// FamilyAsync covers resources only duplicable through an awaited operation.
	FamilyAsync Family = "async"

	// FamilyUnsupported covers recognized kinds that are never cloned.
	FamilyUnsupported Family = "unsupported"

	// FamilyHost covers Go pointers to structs, slices and maps.
	FamilyHost Family = "host"
)

// errorFamilies is the allow-list of error family names, by exact match.
var errorFamilies = map[string]bool{
	"Error":          true,
	"EvalError":      true,
	"RangeError":     true,
	"ReferenceError": true,
	"SyntaxError":    true,
	"TypeError":      true,
	"URIError":       true,
	"AggregateError": true,
}

// IsErrorFamily returns true if name is an allow-listed error family.
func IsErrorFamily(name string) bool {
	return errorFamilies[name]
}

// IsKnownTag returns true if some adapter handles the tag.
func IsKnownTag(tag Tag) bool {
	_, ok := adapterIndex[tag]
	return ok
}

// FamilyOf returns the adapter family handling tag.
func FamilyOf(tag Tag) (Family, bool) {
	a, ok := adapterIndex[tag]
	if !ok {
		return "", false
	}
	return a.family, true
}
