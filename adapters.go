package replica

import (
	"context"
	"fmt"
)

// outcome is what an adapter produces for one value.
type outcome struct {
	clone Value
	plan  walkPlan
	async func(context.Context) (Value, error)
}

// adapter reconstructs the values of one family of tags.
type adapter struct {
	tags        []Tag
	family      Family
	reconstruct func(v Value, c *adapterContext) (outcome, error)
}

// run calls reconstruct, turning panics into errors.
func (a *adapter) run(v Value, c *adapterContext) (out outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = outcome{}, newKindError(ErrUnsupported, c.tag, fmt.Errorf("panic: %v", r))
		}
	}()
	return a.reconstruct(v, c)
}

// adapterContext is handed to reconstruct. Enqueued obligations only reach
// the queue once reconstruct succeeds.
type adapterContext struct {
	e      *engine
	root   bool
	tag    Tag
	queued []item
}

// Enqueue schedules v for cloning; assign receives its clone.
func (c *adapterContext) Enqueue(v Value, assign func(Value)) {
	c.queued = append(c.queued, item{value: v, dest: destination{kind: destSetter, setter: assign}})
}

// IsRoot reports whether the value is the root of the call.
func (c *adapterContext) IsRoot() bool { return c.root }

// Async reports whether the call runs the async pump.
func (c *adapterContext) Async() bool { return c.e.async }

// Context returns the call's context.
func (c *adapterContext) Context() context.Context { return c.e.ctx }

func (c *adapterContext) warn(code DiagnosticCode, msg string, err error) {
	c.e.log.warn(code, c.tag, msg, err)
}

// onSettle runs fn after the queue and the pending batches have drained.
func (c *adapterContext) onSettle(fn func()) {
	c.e.settlers = append(c.e.settlers, fn)
}

func (c *adapterContext) flush() {
	for _, it := range c.queued {
		c.e.push(it)
	}
	c.queued = nil
}

// adapters is the dispatch table. It is read-only after package init.
var adapters = []*adapter{
	{tags: []Tag{TagObject}, family: FamilyBuiltin, reconstruct: reconstructObject},
	{tags: []Tag{TagArray}, family: FamilyBuiltin, reconstruct: reconstructArray},
	{tags: []Tag{TagFunction}, family: FamilyBuiltin, reconstruct: reconstructFunction},
	{tags: []Tag{TagBoolean, TagNumber, TagString, TagSymbol, TagBigInt}, family: FamilyBuiltin, reconstruct: reconstructBox},
	{tags: []Tag{TagDate}, family: FamilyBuiltin, reconstruct: reconstructDate},
	{tags: []Tag{TagRegExp}, family: FamilyBuiltin, reconstruct: reconstructRegExp},
	{tags: []Tag{TagError, TagAggregateError}, family: FamilyBuiltin, reconstruct: reconstructError},
	{tags: []Tag{TagMap}, family: FamilyBuiltin, reconstruct: reconstructMap},
	{tags: []Tag{TagSet}, family: FamilyBuiltin, reconstruct: reconstructSet},
	{tags: []Tag{TagArrayBuffer}, family: FamilyBuiltin, reconstruct: reconstructBuffer},
	{tags: []Tag{
		TagInt8Array, TagUint8Array, TagUint8ClampedArray, TagInt16Array, TagUint16Array,
		TagInt32Array, TagUint32Array, TagFloat32Array, TagFloat64Array,
		TagBigInt64Array, TagBigUint64Array,
	}, family: FamilyBuiltin, reconstruct: reconstructTypedArray},
	{tags: []Tag{TagDataView}, family: FamilyBuiltin, reconstruct: reconstructDataView},
	{tags: []Tag{TagWeakMap, TagWeakSet}, family: FamilyUnsupported, reconstruct: reconstructDisallowed},

	{tags: []Tag{TagBlob}, family: FamilyPlatform, reconstruct: reconstructBlob},
	{tags: []Tag{TagException}, family: FamilyPlatform, reconstruct: reconstructException},
	{tags: []Tag{TagPoint}, family: FamilyPlatform, reconstruct: reconstructPoint},
	{tags: []Tag{TagMatrix}, family: FamilyPlatform, reconstruct: reconstructMatrix},
	{tags: []Tag{TagRect}, family: FamilyPlatform, reconstruct: reconstructRect},
	{tags: []Tag{TagQuad}, family: FamilyPlatform, reconstruct: reconstructQuad},
	{tags: []Tag{TagImageData}, family: FamilyPlatform, reconstruct: reconstructImageData},

	{tags: []Tag{TagSecret}, family: FamilyAsync, reconstruct: reconstructSecret},
	{tags: []Tag{TagAsyncResource}, family: FamilyAsync, reconstruct: reconstructAsyncResource},

	{tags: []Tag{TagHostStruct}, family: FamilyHost, reconstruct: reconstructHostStruct},
	{tags: []Tag{TagHostSlice}, family: FamilyHost, reconstruct: reconstructHostSlice},
	{tags: []Tag{TagHostMap}, family: FamilyHost, reconstruct: reconstructHostMap},
}

var adapterIndex = indexAdapters(adapters)

func indexAdapters(list []*adapter) map[Tag]*adapter {
	idx := make(map[Tag]*adapter)
	for _, a := range list {
		for _, t := range a.tags {
			if _, dup := idx[t]; dup {
				panic(fmt.Sprintf("replica: tag %s registered twice", t))
			}
			idx[t] = a
		}
	}
	return idx
}

// asObject extracts the object an adapter expects.
func asObject(v Value, tag Tag) (*Object, error) {
	o, ok := v.(*Object)
	if !ok || o == nil {
		return nil, newKindError(ErrUnsupported, tag, fmt.Errorf("%T is not an object", v))
	}
	return o, nil
}

// slotOf extracts the internal slot an adapter expects. A spoofed tag fails here.
func slotOf[T any](v Value, tag Tag) (*Object, T, error) {
	var zero T
	o, err := asObject(v, tag)
	if err != nil {
		return nil, zero, err
	}
	s, ok := o.slot.(T)
	if !ok {
		return nil, zero, newKindError(ErrUnsupported, tag, fmt.Errorf("object does not carry %s data", tag))
	}
	return o, s, nil
}

// orderedFill commits entries of a container in their original order even
// when their clones complete out of order. Entries that never complete are
// skipped when the call settles.
type orderedFill struct {
	ready  []bool
	keys   []Value
	values []Value
	next   int
	put    func(k, v Value)
}

func newOrderedFill(n int, put func(k, v Value)) *orderedFill {
	return &orderedFill{
		ready:  make([]bool, n),
		keys:   make([]Value, n),
		values: make([]Value, n),
		put:    put,
	}
}

func (f *orderedFill) set(i int, k, v Value) {
	f.keys[i], f.values[i], f.ready[i] = k, v, true
	for f.next < len(f.ready) && f.ready[f.next] {
		f.emit(f.next)
		f.next++
	}
}

func (f *orderedFill) emit(i int) {
	f.put(f.keys[i], f.values[i])
	f.keys[i], f.values[i] = nil, nil
}

// settle commits whatever completed behind a missing entry.
func (f *orderedFill) settle() {
	for ; f.next < len(f.ready); f.next++ {
		if f.ready[f.next] {
			f.emit(f.next)
		}
	}
}
