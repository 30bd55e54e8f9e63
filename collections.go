package replica

import (
	"math"
	"math/big"
	"reflect"
)

type entry struct {
	key   Value
	value Value
	dead  bool
}

// MapData is the ordered key/value storage of a map object. Keys compare by
// value for primitives and by identity for references.
type MapData struct {
	entries []entry
	index   map[any]int
	live    int
}

// SetData is the ordered member storage of a set object.
type SetData struct {
	m MapData
}

type weakSlot struct {
	set     bool
	entries map[*Object]Value
}

// normalizeKey maps a value to a comparable key with SameValueZero semantics.
func normalizeKey(v Value) any {
	switch t := v.(type) {
	case *Object:
		return t
	case *big.Int:
		return struct{ big string }{t.String()}
	case float64:
		if math.IsNaN(t) {
			return struct{ nan bool }{true}
		}
		if t == 0 {
			return 0.0
		}
		return t
	}
	if isNumber(v) {
		return normalizeKey(reflect.ValueOf(v).Convert(reflect.TypeOf(0.0)).Float())
	}
	return identity(v)
}

func (m *MapData) init() {
	if m.index == nil {
		m.index = make(map[any]int)
	}
}

// Set inserts or replaces the value for key, keeping first-insertion order.
func (m *MapData) Set(key, value Value) {
	m.init()
	nk := normalizeKey(key)
	if i, ok := m.index[nk]; ok {
		m.entries[i].value = value
		return
	}
	m.index[nk] = len(m.entries)
	m.entries = append(m.entries, entry{key: key, value: value})
	m.live++
}

// Get returns the value stored for key.
func (m *MapData) Get(key Value) (Value, bool) {
	i, ok := m.index[normalizeKey(key)]
	if !ok {
		return Undefined, false
	}
	return m.entries[i].value, true
}

// Has reports whether key is present.
func (m *MapData) Has(key Value) bool {
	_, ok := m.index[normalizeKey(key)]
	return ok
}

// Delete removes key and reports whether it was present.
func (m *MapData) Delete(key Value) bool {
	nk := normalizeKey(key)
	i, ok := m.index[nk]
	if !ok {
		return false
	}
	m.entries[i] = entry{dead: true}
	delete(m.index, nk)
	m.live--
	return true
}

// Len returns the number of entries.
func (m *MapData) Len() int { return m.live }

// Range calls fn for each entry in insertion order until fn returns false.
func (m *MapData) Range(fn func(key, value Value) bool) {
	for i := 0; i < len(m.entries); i++ {
		e := m.entries[i]
		if e.dead {
			continue
		}
		if !fn(e.key, e.value) {
			return
		}
	}
}

// Add inserts a member.
func (s *SetData) Add(v Value) { s.m.Set(v, v) }

// Has reports whether v is a member.
func (s *SetData) Has(v Value) bool { return s.m.Has(v) }

// Delete removes a member.
func (s *SetData) Delete(v Value) bool { return s.m.Delete(v) }

// Len returns the member count.
func (s *SetData) Len() int { return s.m.Len() }

// Range calls fn for each member in insertion order until fn returns false.
func (s *SetData) Range(fn func(v Value) bool) {
	s.m.Range(func(k, _ Value) bool { return fn(k) })
}

// Values returns the members in insertion order.
func (s *SetData) Values() []Value {
	out := make([]Value, 0, s.Len())
	s.Range(func(v Value) bool {
		out = append(out, v)
		return true
	})
	return out
}

// NewMap creates an ordered map object. pairs alternate key, value.
func NewMap(pairs ...Value) *Object {
	data := &MapData{}
	for i := 0; i+1 < len(pairs); i += 2 {
		data.Set(pairs[i], pairs[i+1])
	}
	return newObject(MapPrototype, data)
}

// NewSet creates a set object holding members.
func NewSet(members ...Value) *Object {
	data := &SetData{}
	for _, m := range members {
		data.Add(m)
	}
	return newObject(SetPrototype, data)
}

// MapData returns the storage of a map object.
func (o *Object) MapData() (*MapData, bool) {
	m, ok := o.slot.(*MapData)
	return m, ok
}

// SetData returns the storage of a set object.
func (o *Object) SetData() (*SetData, bool) {
	s, ok := o.slot.(*SetData)
	return s, ok
}

// NewWeakMap creates a weak-key map object. Its entries are not enumerable.
func NewWeakMap() *Object {
	return newObject(WeakMapPrototype, &weakSlot{entries: make(map[*Object]Value)})
}

// NewWeakSet creates a weak-membership set object.
func NewWeakSet() *Object {
	return newObject(WeakSetPrototype, &weakSlot{set: true, entries: make(map[*Object]Value)})
}

// WeakPut stores an entry in a weak map, or a member in a weak set.
func (o *Object) WeakPut(key *Object, v Value) bool {
	w, ok := o.slot.(*weakSlot)
	if !ok {
		return false
	}
	if w.set {
		v = true
	}
	w.entries[key] = v
	return true
}
