package replica

import (
	"encoding/base64"
	"encoding/xml"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"
)

// SnapshotVersion is the document format version written by Snapshot.
const SnapshotVersion = 1

// Document is a flattened object graph. Objects are stored once in Nodes and
// referenced by index, so sharing and cycles survive a round trip. Numbers
// are written as text and restore as float64.
type Document struct {
	XMLName xml.Name `json:"-" yaml:"-" msgpack:"-" bson:"-" xml:"snapshot"`
	Version int      `json:"version" yaml:"version" msgpack:"version" bson:"version" xml:"version,attr"`
	Root    Slot     `json:"root" yaml:"root" msgpack:"root" bson:"root" xml:"root"`
	Nodes   []Node   `json:"nodes" yaml:"nodes" msgpack:"nodes" bson:"nodes" xml:"node"`
}

// Slot holds a primitive or a reference to a node.
type Slot struct {
	Kind string `json:"kind" yaml:"kind" msgpack:"kind" bson:"kind" xml:"kind,attr"`
	Text string `json:"text,omitempty" yaml:"text,omitempty" msgpack:"text,omitempty" bson:"text,omitempty" xml:"text,attr,omitempty"`
	Ref  int    `json:"ref,omitempty" yaml:"ref,omitempty" msgpack:"ref,omitempty" bson:"ref,omitempty" xml:"ref,attr,omitempty"`
}

// Slot kinds.
const (
	SlotUndefined = "undefined"
	SlotNull      = "null"
	SlotBool      = "bool"
	SlotNumber    = "number"
	SlotString    = "string"
	SlotBigInt    = "bigint"
	SlotRef       = "ref"
)

// Node is one object of the graph.
type Node struct {
	Kind      string   `json:"kind" yaml:"kind" msgpack:"kind" bson:"kind" xml:"kind,attr"`
	Proto     string   `json:"proto" yaml:"proto" msgpack:"proto" bson:"proto" xml:"proto,attr"`
	Integrity string   `json:"integrity,omitempty" yaml:"integrity,omitempty" msgpack:"integrity,omitempty" bson:"integrity,omitempty" xml:"integrity,attr,omitempty"`
	Props     []Prop   `json:"props,omitempty" yaml:"props,omitempty" msgpack:"props,omitempty" bson:"props,omitempty" xml:"prop"`
	Entries   []Entry  `json:"entries,omitempty" yaml:"entries,omitempty" msgpack:"entries,omitempty" bson:"entries,omitempty" xml:"entry"`
	Box       *Slot    `json:"box,omitempty" yaml:"box,omitempty" msgpack:"box,omitempty" bson:"box,omitempty" xml:"box,omitempty"`
	Bytes     string   `json:"bytes,omitempty" yaml:"bytes,omitempty" msgpack:"bytes,omitempty" bson:"bytes,omitempty" xml:"bytes,omitempty"`
	Text      string   `json:"text,omitempty" yaml:"text,omitempty" msgpack:"text,omitempty" bson:"text,omitempty" xml:"text,omitempty"`
	Flags     string   `json:"flags,omitempty" yaml:"flags,omitempty" msgpack:"flags,omitempty" bson:"flags,omitempty" xml:"flags,omitempty"`
	Numbers   []string `json:"numbers,omitempty" yaml:"numbers,omitempty" msgpack:"numbers,omitempty" bson:"numbers,omitempty" xml:"n"`
	Buffer    *Slot    `json:"buffer,omitempty" yaml:"buffer,omitempty" msgpack:"buffer,omitempty" bson:"buffer,omitempty" xml:"buffer,omitempty"`
}

// Prop is an own data property. Attrs lists the set flags among w, e and c.
type Prop struct {
	Key   string `json:"key" yaml:"key" msgpack:"key" bson:"key" xml:"key,attr"`
	Attrs string `json:"attrs" yaml:"attrs" msgpack:"attrs" bson:"attrs" xml:"attrs,attr"`
	Value Slot   `json:"value" yaml:"value" msgpack:"value" bson:"value" xml:"value"`
}

// Entry is a map entry or, with a null Value, a set member.
type Entry struct {
	Key   Slot `json:"key" yaml:"key" msgpack:"key" bson:"key" xml:"key"`
	Value Slot `json:"value" yaml:"value" msgpack:"value" bson:"value" xml:"value"`
}

// Node kinds without a tag of their own.
const (
	nodeBox = "Box"
)

// Integrity levels.
const (
	integrityNonExtensible = "nonextensible"
	integritySealed        = "sealed"
	integrityFrozen        = "frozen"
)

var (
	intrinsicOnce   sync.Once
	intrinsicByName map[string]*Object
	intrinsicByObj  map[*Object]string
)

func intrinsicTable() (map[string]*Object, map[*Object]string) {
	intrinsicOnce.Do(func() {
		intrinsicByName = map[string]*Object{
			"Object":        ObjectPrototype,
			"Function":      FunctionPrototype,
			"Array":         ArrayPrototype,
			"Boolean":       BooleanPrototype,
			"Number":        NumberPrototype,
			"String":        StringPrototype,
			"Symbol":        SymbolPrototype,
			"BigInt":        BigIntPrototype,
			"Date":          DatePrototype,
			"RegExp":        RegExpPrototype,
			"Map":           MapPrototype,
			"Set":           SetPrototype,
			"WeakMap":       WeakMapPrototype,
			"WeakSet":       WeakSetPrototype,
			"ArrayBuffer":   ArrayBufferPrototype,
			"DataView":      DataViewPrototype,
			"TypedArray":    TypedArrayPrototype,
			"Blob":          BlobPrototype,
			"DOMException":  ExceptionPrototype,
			"DOMPoint":      PointPrototype,
			"DOMMatrix":     MatrixPrototype,
			"DOMRect":       RectPrototype,
			"DOMQuad":       QuadPrototype,
			"ImageData":     ImageDataPrototype,
			"Secret":        SecretPrototype,
			"AsyncResource": AsyncResourcePrototype,
		}
		for name, p := range errorPrototypes {
			intrinsicByName[name] = p
		}
		for kind, p := range typedArrayPrototypes {
			intrinsicByName[string(kind.Tag())] = p
		}
		intrinsicByObj = make(map[*Object]string, len(intrinsicByName))
		for name, p := range intrinsicByName {
			intrinsicByObj[p] = name
		}
	})
	return intrinsicByName, intrinsicByObj
}

type snapshotter struct {
	ids   map[*Object]int
	objs  []*Object
	nodes []Node
}

// Snapshot flattens the graph reachable from v into a document.
// Callables, symbols, accessors, weak containers, secrets, async resources
// and Go host values cannot be represented and fail with ErrNotSerializable.
// Clones of errors carry their stack behind a getter and are not
// serializable either.
func Snapshot(v Value) (*Document, error) {
	s := &snapshotter{ids: make(map[*Object]int)}
	root, err := s.slot(v, -1)
	if err != nil {
		return nil, err
	}
	for i := 0; i < len(s.objs); i++ {
		if err := s.fill(i); err != nil {
			return nil, err
		}
	}
	return &Document{Version: SnapshotVersion, Root: root, Nodes: s.nodes}, nil
}

func (s *snapshotter) ref(o *Object) int {
	if id, ok := s.ids[o]; ok {
		return id
	}
	id := len(s.objs)
	s.ids[o] = id
	s.objs = append(s.objs, o)
	s.nodes = append(s.nodes, Node{})
	return id
}

func (s *snapshotter) slot(v Value, node int) (Slot, error) {
	switch t := v.(type) {
	case nil:
		return Slot{Kind: SlotNull}, nil
	case undefined:
		return Slot{Kind: SlotUndefined}, nil
	case bool:
		return Slot{Kind: SlotBool, Text: strconv.FormatBool(t)}, nil
	case string:
		return Slot{Kind: SlotString, Text: t}, nil
	case *big.Int:
		return Slot{Kind: SlotBigInt, Text: t.String()}, nil
	case *Object:
		if t == nil {
			return Slot{Kind: SlotNull}, nil
		}
		return Slot{Kind: SlotRef, Ref: s.ref(t)}, nil
	}
	if isNumber(v) {
		return Slot{Kind: SlotNumber, Text: formatNumber(numberValue(v))}, nil
	}
	return Slot{}, newSnapshotError(ErrNotSerializable, node, "value of type %T", v)
}

func (s *snapshotter) protoName(p *Object) string {
	if p == nil {
		return SlotNull
	}
	_, byObj := intrinsicTable()
	if name, ok := byObj[p]; ok {
		return "%" + name
	}
	return "#" + strconv.Itoa(s.ref(p))
}

func (s *snapshotter) fill(i int) error {
	o := s.objs[i]
	n := Node{Proto: s.protoName(o.proto)}
	switch {
	case o.IsFrozen():
		n.Integrity = integrityFrozen
	case o.IsSealed():
		n.Integrity = integritySealed
	case !o.IsExtensible():
		n.Integrity = integrityNonExtensible
	}

	skipIndices := 0
	switch sl := o.slot.(type) {
	case nil:
		n.Kind = string(TagObject)
	case arraySlot:
		n.Kind = string(TagArray)
	case *errorSlot:
		n.Kind = string(TagError)
	case *boxSlot:
		n.Kind = nodeBox
		box, err := s.slot(sl.value, i)
		if err != nil {
			return err
		}
		n.Box = &box
	case *dateSlot:
		n.Kind = string(TagDate)
		n.Text = "invalid"
		if !sl.invalid {
			n.Text = sl.at.Format(time.RFC3339Nano)
		}
	case *regexpSlot:
		n.Kind = string(TagRegExp)
		n.Text, n.Flags = sl.source, sl.flags
	case *MapData:
		n.Kind = string(TagMap)
		var err error
		sl.Range(func(k, v Value) bool {
			var e Entry
			if e.Key, err = s.slot(k, i); err != nil {
				return false
			}
			if e.Value, err = s.slot(v, i); err != nil {
				return false
			}
			n.Entries = append(n.Entries, e)
			return true
		})
		if err != nil {
			return err
		}
	case *SetData:
		n.Kind = string(TagSet)
		for _, m := range sl.Values() {
			k, err := s.slot(m, i)
			if err != nil {
				return err
			}
			n.Entries = append(n.Entries, Entry{Key: k, Value: Slot{Kind: SlotNull}})
		}
	case *bufferSlot:
		n.Kind = string(TagArrayBuffer)
		n.Bytes = base64.StdEncoding.EncodeToString(sl.data)
	case *typedArraySlot:
		n.Kind = string(sl.kind.Tag())
		n.Numbers = []string{strconv.Itoa(sl.offset), strconv.Itoa(sl.length)}
		buf, _ := s.slot(optional(sl.buffer), i)
		n.Buffer = &buf
		skipIndices = sl.length
	case *dataViewSlot:
		n.Kind = string(TagDataView)
		n.Numbers = []string{strconv.Itoa(sl.offset), strconv.Itoa(sl.length)}
		buf, _ := s.slot(optional(sl.buffer), i)
		n.Buffer = &buf
	case *exceptionSlot:
		n.Kind = string(TagException)
		n.Text, n.Flags = sl.message, sl.name
	case *blobSlot:
		n.Kind = string(TagBlob)
		n.Bytes = base64.StdEncoding.EncodeToString(sl.data)
		n.Text = sl.mime
	case *pointSlot:
		n.Kind = string(TagPoint)
		n.Numbers = formatNumbers(sl.x, sl.y, sl.z, sl.w)
	case *rectSlot:
		n.Kind = string(TagRect)
		n.Numbers = formatNumbers(sl.x, sl.y, sl.width, sl.height)
	case *matrixSlot:
		n.Kind = string(TagMatrix)
		n.Numbers = formatNumbers(sl.m[:]...)
		if sl.is2D {
			n.Flags = "2d"
		}
	default:
		return newSnapshotError(ErrNotSerializable, i, "%s object", slotTag(o))
	}

	for _, k := range o.OwnKeys() {
		if idx, ok := k.index(); ok && idx < skipIndices {
			continue
		}
		if k.IsSymbol() {
			return newSnapshotError(ErrNotSerializable, i, "symbol key %s", k)
		}
		d, _ := o.GetOwnProperty(k)
		if d.IsAccessor() {
			return newSnapshotError(ErrNotSerializable, i, "accessor %s", k)
		}
		v, err := s.slot(d.Value, i)
		if err != nil {
			return err
		}
		n.Props = append(n.Props, Prop{Key: k.Name(), Attrs: formatAttrs(d), Value: v})
	}

	s.nodes[i] = n
	return nil
}

func numberValue(v Value) float64 {
	if f, ok := v.(float64); ok {
		return f
	}
	return reflect.ValueOf(v).Convert(reflect.TypeOf(0.0)).Float()
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func formatNumbers(fs ...float64) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = formatNumber(f)
	}
	return out
}

func formatAttrs(d Descriptor) string {
	var b strings.Builder
	if d.Writable {
		b.WriteByte('w')
	}
	if d.Enumerable {
		b.WriteByte('e')
	}
	if d.Configurable {
		b.WriteByte('c')
	}
	return b.String()
}

type restorer struct {
	doc  *Document
	objs []*Object
}

// Restore rebuilds the graph described by doc.
func Restore(doc *Document) (Value, error) {
	if doc == nil {
		return nil, newSnapshotError(ErrInvalidSnapshot, -1, "nil document")
	}
	if doc.Version != SnapshotVersion {
		return nil, newSnapshotError(ErrInvalidSnapshot, -1, "unsupported version %d", doc.Version)
	}
	r := &restorer{doc: doc, objs: make([]*Object, len(doc.Nodes))}
	for i := range doc.Nodes {
		o, err := r.shell(i, &doc.Nodes[i])
		if err != nil {
			return nil, err
		}
		r.objs[i] = o
	}
	for i := range doc.Nodes {
		if err := r.link(i, &doc.Nodes[i]); err != nil {
			return nil, err
		}
	}
	for i := range doc.Nodes {
		switch doc.Nodes[i].Integrity {
		case integrityFrozen:
			r.objs[i].Freeze()
		case integritySealed:
			r.objs[i].Seal()
		case integrityNonExtensible:
			r.objs[i].PreventExtensions()
		case "":
		default:
			return nil, newSnapshotError(ErrInvalidSnapshot, i, "unknown integrity %q", doc.Nodes[i].Integrity)
		}
	}
	return r.value(doc.Root, -1)
}

// shell creates the object of a node with its scalar data. References are
// resolved by link.
func (r *restorer) shell(i int, n *Node) (*Object, error) {
	switch Tag(n.Kind) {
	case TagObject:
		return newObject(nil, nil), nil
	case TagArray:
		return newObject(nil, arraySlot{}), nil
	case TagError:
		return newErrorShell(nil), nil
	case nodeBox:
		return newObject(nil, &boxSlot{}), nil
	case TagDate:
		if n.Text == "invalid" {
			return newObject(nil, &dateSlot{invalid: true}), nil
		}
		t, err := time.Parse(time.RFC3339Nano, n.Text)
		if err != nil {
			return nil, newSnapshotError(ErrInvalidSnapshot, i, "date %q: %v", n.Text, err)
		}
		return newObject(nil, &dateSlot{at: t}), nil
	case TagRegExp:
		o, err := newRegExpObject(n.Text, n.Flags)
		if err != nil {
			return nil, newSnapshotError(ErrInvalidSnapshot, i, "%v", err)
		}
		return o, nil
	case TagMap:
		return newObject(nil, &MapData{}), nil
	case TagSet:
		return newObject(nil, &SetData{}), nil
	case TagArrayBuffer:
		data, err := base64.StdEncoding.DecodeString(n.Bytes)
		if err != nil {
			return nil, newSnapshotError(ErrInvalidSnapshot, i, "buffer bytes: %v", err)
		}
		return newObject(nil, &bufferSlot{data: data}), nil
	case TagDataView:
		off, length, err := r.span(i, n)
		if err != nil {
			return nil, err
		}
		return newObject(nil, &dataViewSlot{offset: off, length: length}), nil
	case TagBlob:
		data, err := base64.StdEncoding.DecodeString(n.Bytes)
		if err != nil {
			return nil, newSnapshotError(ErrInvalidSnapshot, i, "blob bytes: %v", err)
		}
		return newObject(nil, &blobSlot{data: data, mime: n.Text}), nil
	case TagException:
		return newException(n.Text, n.Flags), nil
	case TagPoint:
		f, err := r.numbers(i, n, 4)
		if err != nil {
			return nil, err
		}
		return newObject(nil, &pointSlot{x: f[0], y: f[1], z: f[2], w: f[3]}), nil
	case TagRect:
		f, err := r.numbers(i, n, 4)
		if err != nil {
			return nil, err
		}
		return newObject(nil, &rectSlot{x: f[0], y: f[1], width: f[2], height: f[3]}), nil
	case TagMatrix:
		f, err := r.numbers(i, n, 16)
		if err != nil {
			return nil, err
		}
		m := &matrixSlot{is2D: n.Flags == "2d"}
		copy(m.m[:], f)
		return newObject(nil, m), nil
	}
	for kind, info := range typedKinds {
		if string(info.tag) == n.Kind {
			off, length, err := r.span(i, n)
			if err != nil {
				return nil, err
			}
			return newObject(nil, &typedArraySlot{kind: kind, offset: off, length: length}), nil
		}
	}
	return nil, newSnapshotError(ErrInvalidSnapshot, i, "unknown node kind %q", n.Kind)
}

func (r *restorer) span(i int, n *Node) (int, int, error) {
	if len(n.Numbers) != 2 {
		return 0, 0, newSnapshotError(ErrInvalidSnapshot, i, "view needs offset and length")
	}
	off, err1 := strconv.Atoi(n.Numbers[0])
	length, err2 := strconv.Atoi(n.Numbers[1])
	if err1 != nil || err2 != nil || off < 0 || length < 0 {
		return 0, 0, newSnapshotError(ErrInvalidSnapshot, i, "view span %v", n.Numbers)
	}
	return off, length, nil
}

func (r *restorer) numbers(i int, n *Node, want int) ([]float64, error) {
	if len(n.Numbers) != want {
		return nil, newSnapshotError(ErrInvalidSnapshot, i, "%s needs %d numbers, got %d", n.Kind, want, len(n.Numbers))
	}
	out := make([]float64, want)
	for j, t := range n.Numbers {
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return nil, newSnapshotError(ErrInvalidSnapshot, i, "number %q", t)
		}
		out[j] = f
	}
	return out, nil
}

func (r *restorer) link(i int, n *Node) error {
	o := r.objs[i]
	proto, err := r.proto(i, n.Proto)
	if err != nil {
		return err
	}
	o.proto = nil
	if err := o.SetPrototype(proto); err != nil {
		return newSnapshotError(ErrInvalidSnapshot, i, "%v", err)
	}

	switch sl := o.slot.(type) {
	case *boxSlot:
		if n.Box == nil {
			return newSnapshotError(ErrInvalidSnapshot, i, "box without value")
		}
		v, err := r.value(*n.Box, i)
		if err != nil {
			return err
		}
		sl.value = v
	case *MapData, *SetData:
		for _, e := range n.Entries {
			k, err := r.value(e.Key, i)
			if err != nil {
				return err
			}
			v, err := r.value(e.Value, i)
			if err != nil {
				return err
			}
			if m, ok := sl.(*MapData); ok {
				m.Set(k, v)
			} else {
				sl.(*SetData).Add(k)
			}
		}
	case *typedArraySlot:
		buf, err := r.buffer(i, n, sl.offset+sl.length*sl.kind.Size())
		if err != nil {
			return err
		}
		sl.buffer = buf
	case *dataViewSlot:
		buf, err := r.buffer(i, n, sl.offset+sl.length)
		if err != nil {
			return err
		}
		sl.buffer = buf
	}

	for _, p := range n.Props {
		v, err := r.value(p.Value, i)
		if err != nil {
			return err
		}
		d := Descriptor{
			Value:        v,
			Writable:     strings.Contains(p.Attrs, "w"),
			Enumerable:   strings.Contains(p.Attrs, "e"),
			Configurable: strings.Contains(p.Attrs, "c"),
		}
		if err := o.DefineOwnProperty(StringKey(p.Key), d); err != nil {
			return newSnapshotError(ErrInvalidSnapshot, i, "%v", err)
		}
	}
	return nil
}

func (r *restorer) proto(i int, name string) (*Object, error) {
	switch {
	case name == SlotNull:
		return nil, nil
	case strings.HasPrefix(name, "%"):
		byName, _ := intrinsicTable()
		p, ok := byName[name[1:]]
		if !ok {
			return nil, newSnapshotError(ErrInvalidSnapshot, i, "unknown intrinsic %q", name)
		}
		return p, nil
	case strings.HasPrefix(name, "#"):
		id, err := strconv.Atoi(name[1:])
		if err != nil || id < 0 || id >= len(r.objs) {
			return nil, newSnapshotError(ErrInvalidSnapshot, i, "bad prototype reference %q", name)
		}
		return r.objs[id], nil
	}
	return nil, newSnapshotError(ErrInvalidSnapshot, i, "bad prototype %q", name)
}

func (r *restorer) buffer(i int, n *Node, need int) (*Object, error) {
	if n.Buffer == nil {
		return nil, nil
	}
	v, err := r.value(*n.Buffer, i)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	b, ok := v.(*Object)
	if !ok {
		return nil, newSnapshotError(ErrInvalidSnapshot, i, "view buffer is not an object")
	}
	data, ok := b.Bytes()
	if !ok || need > len(data) {
		return nil, newSnapshotError(ErrInvalidSnapshot, i, "view exceeds its buffer")
	}
	return b, nil
}

func (r *restorer) value(s Slot, node int) (Value, error) {
	switch s.Kind {
	case SlotUndefined:
		return Undefined, nil
	case SlotNull:
		return nil, nil
	case SlotBool:
		b, err := strconv.ParseBool(s.Text)
		if err != nil {
			return nil, newSnapshotError(ErrInvalidSnapshot, node, "bool %q", s.Text)
		}
		return b, nil
	case SlotNumber:
		f, err := strconv.ParseFloat(s.Text, 64)
		if err != nil {
			return nil, newSnapshotError(ErrInvalidSnapshot, node, "number %q", s.Text)
		}
		return f, nil
	case SlotString:
		return s.Text, nil
	case SlotBigInt:
		n, ok := new(big.Int).SetString(s.Text, 10)
		if !ok {
			return nil, newSnapshotError(ErrInvalidSnapshot, node, "bigint %q", s.Text)
		}
		return n, nil
	case SlotRef:
		if s.Ref < 0 || s.Ref >= len(r.objs) {
			return nil, newSnapshotError(ErrInvalidSnapshot, node, "reference %d out of range", s.Ref)
		}
		return r.objs[s.Ref], nil
	}
	return nil, newSnapshotError(ErrInvalidSnapshot, node, "unknown slot kind %q", s.Kind)
}
