package replica

import (
	"bytes"
	"math/big"
	"reflect"
	"slices"
)

type valuePair struct {
	a, b Value
}

// Equal reports whether a and b are structurally equal graphs.
//
// References are matched one-to-one, so a cycle in a only equals the same
// cycle in b. Prototypes, accessor functions and callables compare by
// identity. Property order is not compared; descriptor flags are, except
// where one side holds an accessor and the other a data property, which
// compare by the value read. Go host values compare with reflect.DeepEqual.
func Equal(a, b Value) bool {
	fwd := make(map[any]any)
	back := make(map[any]any)
	work := []valuePair{{a, b}}
	for len(work) > 0 {
		p := work[len(work)-1]
		work = work[:len(work)-1]
		more, ok := comparePair(p.a, p.b, fwd, back)
		if !ok {
			return false
		}
		work = append(work, more...)
	}
	return true
}

func comparePair(a, b Value, fwd, back map[any]any) ([]valuePair, bool) {
	pa, pb := IsPrimitive(a), IsPrimitive(b)
	if pa || pb {
		return nil, pa && pb && primitiveEqual(a, b)
	}

	ka, kb := identity(a), identity(b)
	if seen, ok := fwd[ka]; ok {
		return nil, seen == kb
	}
	if _, ok := back[kb]; ok {
		return nil, false
	}
	fwd[ka], back[kb] = kb, ka

	oa, aObj := a.(*Object)
	ob, bObj := b.(*Object)
	switch {
	case aObj && bObj:
		return compareObjects(oa, ob)
	case aObj || bObj:
		return nil, false
	}
	return nil, reflect.DeepEqual(a, b)
}

func primitiveEqual(a, b Value) bool {
	if ba, ok := a.(*big.Int); ok {
		bb, ok := b.(*big.Int)
		return ok && ba.Cmp(bb) == 0
	}
	if isComparable(a) && isComparable(b) {
		return sameValue(a, b)
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) {
		return false
	}
	if ta.Kind() == reflect.Func {
		return identity(a) == identity(b)
	}
	return reflect.DeepEqual(a, b)
}

func compareObjects(a, b *Object) ([]valuePair, bool) {
	if a.proto != b.proto ||
		a.IsExtensible() != b.IsExtensible() ||
		a.IsSealed() != b.IsSealed() ||
		a.IsFrozen() != b.IsFrozen() {
		return nil, false
	}

	more, ok := compareSlots(a, b)
	if !ok {
		return nil, false
	}

	ak, bk := a.OwnKeys(), b.OwnKeys()
	if len(ak) != len(bk) {
		return nil, false
	}
	for _, k := range ak {
		da, _ := a.GetOwnProperty(k)
		db, ok := b.GetOwnProperty(k)
		if !ok {
			return nil, false
		}
		switch {
		case da.IsAccessor() && db.IsAccessor():
			if da.Get != db.Get || da.Set != db.Set || da.Enumerable != db.Enumerable || da.Configurable != db.Configurable {
				return nil, false
			}
		case da.IsAccessor() || db.IsAccessor():
			more = append(more, valuePair{a.Get(k), b.Get(k)})
		default:
			if da.Writable != db.Writable || da.Enumerable != db.Enumerable || da.Configurable != db.Configurable {
				return nil, false
			}
			more = append(more, valuePair{da.Value, db.Value})
		}
	}
	return more, true
}

func compareSlots(a, b *Object) ([]valuePair, bool) {
	switch sa := a.slot.(type) {
	case nil:
		return nil, b.slot == nil
	case arraySlot:
		_, ok := b.slot.(arraySlot)
		return nil, ok
	case *errorSlot:
		_, ok := b.slot.(*errorSlot)
		return nil, ok
	case *funcSlot, *weakSlot:
		return nil, a == b
	case *boxSlot:
		sb, ok := b.slot.(*boxSlot)
		return nil, ok && primitiveEqual(sa.value, sb.value)
	case *dateSlot:
		sb, ok := b.slot.(*dateSlot)
		return nil, ok && sa.invalid == sb.invalid && sa.at.Equal(sb.at)
	case *regexpSlot:
		sb, ok := b.slot.(*regexpSlot)
		return nil, ok && sa.source == sb.source && sa.flags == sb.flags
	case *MapData:
		sb, ok := b.slot.(*MapData)
		if !ok || sa.Len() != sb.Len() {
			return nil, false
		}
		ea, eb := mapEntries(sa), mapEntries(sb)
		more := make([]valuePair, 0, 2*len(ea))
		for i := range ea {
			more = append(more, valuePair{ea[i].key, eb[i].key}, valuePair{ea[i].value, eb[i].value})
		}
		return more, true
	case *SetData:
		sb, ok := b.slot.(*SetData)
		if !ok || sa.Len() != sb.Len() {
			return nil, false
		}
		va, vb := sa.Values(), sb.Values()
		more := make([]valuePair, len(va))
		for i := range va {
			more[i] = valuePair{va[i], vb[i]}
		}
		return more, true
	case *bufferSlot:
		sb, ok := b.slot.(*bufferSlot)
		return nil, ok && bytes.Equal(sa.data, sb.data)
	case *typedArraySlot:
		sb, ok := b.slot.(*typedArraySlot)
		if !ok || sa.kind != sb.kind || sa.offset != sb.offset || sa.length != sb.length {
			return nil, false
		}
		return []valuePair{{optional(sa.buffer), optional(sb.buffer)}}, true
	case *dataViewSlot:
		sb, ok := b.slot.(*dataViewSlot)
		if !ok || sa.offset != sb.offset || sa.length != sb.length {
			return nil, false
		}
		return []valuePair{{optional(sa.buffer), optional(sb.buffer)}}, true
	case *blobSlot:
		sb, ok := b.slot.(*blobSlot)
		return nil, ok && sa.mime == sb.mime && bytes.Equal(sa.data, sb.data)
	case *exceptionSlot:
		sb, ok := b.slot.(*exceptionSlot)
		return nil, ok && *sa == *sb
	case *pointSlot:
		sb, ok := b.slot.(*pointSlot)
		return nil, ok && *sa == *sb
	case *rectSlot:
		sb, ok := b.slot.(*rectSlot)
		return nil, ok && *sa == *sb
	case *matrixSlot:
		sb, ok := b.slot.(*matrixSlot)
		return nil, ok && *sa == *sb
	case *quadSlot:
		sb, ok := b.slot.(*quadSlot)
		if !ok {
			return nil, false
		}
		more := make([]valuePair, 4)
		for i := range sa.points {
			more[i] = valuePair{optional(sa.points[i]), optional(sb.points[i])}
		}
		return more, true
	case *imageDataSlot:
		sb, ok := b.slot.(*imageDataSlot)
		if !ok || sa.width != sb.width || sa.height != sb.height || sa.colorSpace != sb.colorSpace {
			return nil, false
		}
		return []valuePair{{optional(sa.data), optional(sb.data)}}, true
	case *secretSlot:
		sb, ok := b.slot.(*secretSlot)
		if !ok || sa.algorithm != sb.algorithm || !slices.Equal(sa.usages, sb.usages) {
			return nil, false
		}
		pa, errA := sa.open()
		pb, errB := sb.open()
		return nil, errA == nil && errB == nil && bytes.Equal(pa, pb)
	case *asyncResourceSlot:
		sb, ok := b.slot.(*asyncResourceSlot)
		return nil, ok && sa.label == sb.label
	}
	return nil, reflect.DeepEqual(a.slot, b.slot)
}

func mapEntries(m *MapData) []entry {
	out := make([]entry, 0, m.Len())
	m.Range(func(k, v Value) bool {
		out = append(out, entry{key: k, value: v})
		return true
	})
	return out
}

// optional turns a nil object into null so it compares as a primitive.
func optional(o *Object) Value {
	if o == nil {
		return nil
	}
	return o
}
