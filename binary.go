package replica

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
)

type bufferSlot struct {
	data []byte
}

// NewArrayBuffer creates a raw byte buffer holding a copy of data.
func NewArrayBuffer(data []byte) *Object {
	return newObject(ArrayBufferPrototype, &bufferSlot{data: append([]byte(nil), data...)})
}

// Bytes returns the live bytes of a buffer object.
func (o *Object) Bytes() ([]byte, bool) {
	b, ok := o.slot.(*bufferSlot)
	if !ok {
		return nil, false
	}
	return b.data, true
}

// TypedKind is the element kind of a typed array.
type TypedKind uint8

// Typed array element kinds.
const (
	Int8 TypedKind = iota + 1
	Uint8
	Uint8Clamped
	Int16
	Uint16
	Int32
	Uint32
	Float32
	Float64
	BigInt64
	BigUint64
)

type typedInfo struct {
	tag  Tag
	size int
}

var typedKinds = map[TypedKind]typedInfo{
	Int8:         {TagInt8Array, 1},
	Uint8:        {TagUint8Array, 1},
	Uint8Clamped: {TagUint8ClampedArray, 1},
	Int16:        {TagInt16Array, 2},
	Uint16:       {TagUint16Array, 2},
	Int32:        {TagInt32Array, 4},
	Uint32:       {TagUint32Array, 4},
	Float32:      {TagFloat32Array, 4},
	Float64:      {TagFloat64Array, 8},
	BigInt64:     {TagBigInt64Array, 8},
	BigUint64:    {TagBigUint64Array, 8},
}

// Tag returns the classification tag of the element kind.
func (k TypedKind) Tag() Tag { return typedKinds[k].tag }

// Size returns the element width in bytes.
func (k TypedKind) Size() int { return typedKinds[k].size }

type typedArraySlot struct {
	kind   TypedKind
	buffer *Object
	offset int
	length int
}

type dataViewSlot struct {
	buffer *Object
	offset int
	length int
}

// NewTypedArray creates a typed view of length elements over buffer starting
// at byte offset. A nil buffer allocates a fresh zeroed one.
func NewTypedArray(kind TypedKind, buffer *Object, offset, length int) (*Object, error) {
	info, ok := typedKinds[kind]
	if !ok {
		return nil, fmt.Errorf("unknown typed array kind %d", kind)
	}
	if buffer == nil {
		buffer = NewArrayBuffer(make([]byte, offset+length*info.size))
	}
	data, ok := buffer.Bytes()
	if !ok {
		return nil, fmt.Errorf("typed array over non-buffer: %w", ErrUnsupported)
	}
	if offset < 0 || offset%info.size != 0 || offset+length*info.size > len(data) {
		return nil, fmt.Errorf("typed array range [%d, %d) outside buffer of %d bytes", offset, offset+length*info.size, len(data))
	}
	return newObject(typedArrayPrototypes[kind], &typedArraySlot{kind: kind, buffer: buffer, offset: offset, length: length}), nil
}

// NewDataView creates an untyped view over buffer.
func NewDataView(buffer *Object, offset, length int) (*Object, error) {
	data, ok := buffer.Bytes()
	if !ok {
		return nil, fmt.Errorf("data view over non-buffer: %w", ErrUnsupported)
	}
	if offset < 0 || length < 0 || offset+length > len(data) {
		return nil, fmt.Errorf("data view range [%d, %d) outside buffer of %d bytes", offset, offset+length, len(data))
	}
	return newObject(DataViewPrototype, &dataViewSlot{buffer: buffer, offset: offset, length: length}), nil
}

// View returns the backing buffer, byte offset and length of a typed array
// (length in elements) or data view (length in bytes).
func (o *Object) View() (buffer *Object, offset, length int, ok bool) {
	switch s := o.slot.(type) {
	case *typedArraySlot:
		return s.buffer, s.offset, s.length, true
	case *dataViewSlot:
		return s.buffer, s.offset, s.length, true
	}
	return nil, 0, 0, false
}

// TypedKind returns the element kind of a typed array.
func (o *Object) TypedKind() (TypedKind, bool) {
	s, ok := o.slot.(*typedArraySlot)
	if !ok {
		return 0, false
	}
	return s.kind, true
}

func (s *typedArraySlot) bytes(i int) []byte {
	if s.buffer == nil {
		return nil
	}
	data, ok := s.buffer.Bytes()
	if !ok {
		return nil
	}
	size := s.kind.Size()
	start := s.offset + i*size
	if start+size > len(data) {
		return nil
	}
	return data[start : start+size]
}

func (s *typedArraySlot) get(i int) Value {
	b := s.bytes(i)
	if b == nil {
		return Undefined
	}
	le := binary.LittleEndian
	switch s.kind {
	case Int8:
		return float64(int8(b[0]))
	case Uint8, Uint8Clamped:
		return float64(b[0])
	case Int16:
		return float64(int16(le.Uint16(b)))
	case Uint16:
		return float64(le.Uint16(b))
	case Int32:
		return float64(int32(le.Uint32(b)))
	case Uint32:
		return float64(le.Uint32(b))
	case Float32:
		return float64(math.Float32frombits(le.Uint32(b)))
	case Float64:
		return math.Float64frombits(le.Uint64(b))
	case BigInt64:
		return big.NewInt(int64(le.Uint64(b)))
	case BigUint64:
		return new(big.Int).SetUint64(le.Uint64(b))
	}
	return Undefined
}

func (s *typedArraySlot) set(i int, v Value) {
	b := s.bytes(i)
	if b == nil {
		return
	}
	le := binary.LittleEndian
	if s.kind == BigInt64 || s.kind == BigUint64 {
		n, ok := v.(*big.Int)
		if !ok {
			return
		}
		le.PutUint64(b, n.Uint64())
		return
	}
	f := toFloat(v)
	switch s.kind {
	case Int8, Uint8:
		b[0] = byte(int64(f))
	case Uint8Clamped:
		b[0] = byte(math.Max(0, math.Min(255, math.RoundToEven(f))))
	case Int16, Uint16:
		le.PutUint16(b, uint16(int64(f)))
	case Int32, Uint32:
		le.PutUint32(b, uint32(int64(f)))
	case Float32:
		le.PutUint32(b, math.Float32bits(float32(f)))
	case Float64:
		le.PutUint64(b, math.Float64bits(f))
	}
}

func toFloat(v Value) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case uint8:
		return float64(n)
	case bool:
		if n {
			return 1
		}
		return 0
	}
	return math.NaN()
}
