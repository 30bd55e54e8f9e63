package replica

import (
	"fmt"
	"math/big"
)

func reconstructObject(v Value, c *adapterContext) (outcome, error) {
	o, err := asObject(v, c.tag)
	if err != nil {
		return outcome{}, err
	}
	return outcome{clone: newObject(o.proto, nil)}, nil
}

func reconstructArray(v Value, c *adapterContext) (outcome, error) {
	o, _, err := slotOf[arraySlot](v, c.tag)
	if err != nil {
		return outcome{}, err
	}
	return outcome{clone: newObject(o.proto, arraySlot{})}, nil
}

// reconstructFunction never fabricates a callable. At the root the result is
// an empty object inheriting the function prototype; nested callables are
// shared.
func reconstructFunction(v Value, c *adapterContext) (outcome, error) {
	o, err := asObject(v, c.tag)
	if err != nil {
		return outcome{}, err
	}
	plan := walkPlan{ignoreProps: true, ignoreProto: true}
	if c.IsRoot() {
		c.warn(DiagCallable, "callable root replaced with an empty object", nil)
		return outcome{clone: newObject(FunctionPrototype, nil), plan: plan}, nil
	}
	c.warn(DiagCallable, "callable copied by reference", nil)
	return outcome{clone: o, plan: plan}, nil
}

func reconstructBox(v Value, c *adapterContext) (outcome, error) {
	o, b, err := slotOf[*boxSlot](v, c.tag)
	if err != nil {
		return outcome{}, err
	}
	val := b.value
	if n, ok := val.(*big.Int); ok {
		val = new(big.Int).Set(n)
	}
	return outcome{clone: newObject(o.proto, &boxSlot{value: val})}, nil
}

func reconstructDate(v Value, c *adapterContext) (outcome, error) {
	o, d, err := slotOf[*dateSlot](v, c.tag)
	if err != nil {
		return outcome{}, err
	}
	cp := *d
	return outcome{clone: newObject(o.proto, &cp)}, nil
}

// reconstructRegExp recompiles the pattern. lastIndex travels with the
// property walk.
func reconstructRegExp(v Value, c *adapterContext) (outcome, error) {
	o, r, err := slotOf[*regexpSlot](v, c.tag)
	if err != nil {
		return outcome{}, err
	}
	clone := newObject(o.proto, &regexpSlot{source: r.source, flags: r.flags, re: r.re})
	return outcome{clone: clone}, nil
}

// reconstructError builds an error of the narrowest allow-listed family.
// Message and cause travel with the property walk. A stack data property is
// deferred and reinstalled behind a getter.
func reconstructError(v Value, c *adapterContext) (outcome, error) {
	o, _, err := slotOf[*errorSlot](v, c.tag)
	if err != nil {
		return outcome{}, err
	}
	name, _ := dataString(o, "name")
	proto, ok := errorPrototypes[name]
	if !ok {
		c.warn(DiagErrorFamily, fmt.Sprintf("unknown error family %q; using Error", name), nil)
		proto = ErrorPrototype
	}
	clone := newErrorShell(proto)
	out := outcome{clone: clone}
	deferStack(o, clone, c, &out.plan)

	if name == "AggregateError" {
		k := StringKey("errors")
		if d, has := o.GetOwnProperty(k); has && !d.IsAccessor() && !isIterable(d.Value) {
			c.warn(DiagNotIterable, "aggregate errors list is not iterable; using an empty list", nil)
			out.plan.skipKey(k)
			_ = clone.DefineOwnProperty(k, Descriptor{
				Value:        NewArray(),
				Writable:     d.Writable,
				Enumerable:   d.Enumerable,
				Configurable: d.Configurable,
			})
		}
	}
	return out, nil
}

// deferStack skips an own stack data property and enqueues it with a setter
// installing a getter that returns the cloned trace.
func deferStack(orig, clone *Object, c *adapterContext, plan *walkPlan) {
	k := StringKey("stack")
	d, ok := orig.GetOwnProperty(k)
	if !ok || d.IsAccessor() {
		return
	}
	plan.skipKey(k)
	c.Enqueue(d.Value, func(stack Value) {
		getter := NewFunction("stack", func(Value, ...Value) (Value, error) { return stack, nil })
		if err := clone.DefineAccessor(k, getter, nil, false, true); err != nil {
			c.warn(DiagAssignFailed, "install stack getter", err)
		}
	})
}

func isIterable(v Value) bool {
	switch t := v.(type) {
	case string:
		return true
	case *Object:
		switch s := t.slot.(type) {
		case arraySlot, *MapData, *SetData, *typedArraySlot:
			return true
		case *boxSlot:
			_, ok := s.value.(string)
			return ok
		}
	}
	return false
}

// reconstructMap creates an empty map and clones every key and value. A pair
// is inserted once both halves are cloned, in original order.
func reconstructMap(v Value, c *adapterContext) (outcome, error) {
	o, data, err := slotOf[*MapData](v, c.tag)
	if err != nil {
		return outcome{}, err
	}
	dst := &MapData{}
	fill := newOrderedFill(data.Len(), func(k, val Value) { dst.Set(k, val) })
	i := 0
	data.Range(func(k, val Value) bool {
		slot := i
		i++
		var key, value Value
		halves := 0
		done := func() {
			halves++
			if halves == 2 {
				fill.set(slot, key, value)
			}
		}
		c.Enqueue(k, func(ck Value) { key = ck; done() })
		c.Enqueue(val, func(cv Value) { value = cv; done() })
		return true
	})
	c.onSettle(fill.settle)
	return outcome{clone: newObject(o.proto, dst)}, nil
}

func reconstructSet(v Value, c *adapterContext) (outcome, error) {
	o, data, err := slotOf[*SetData](v, c.tag)
	if err != nil {
		return outcome{}, err
	}
	dst := &SetData{}
	fill := newOrderedFill(data.Len(), func(m, _ Value) { dst.Add(m) })
	i := 0
	data.Range(func(m Value) bool {
		slot := i
		i++
		c.Enqueue(m, func(cm Value) { fill.set(slot, cm, nil) })
		return true
	})
	c.onSettle(fill.settle)
	return outcome{clone: newObject(o.proto, dst)}, nil
}

func reconstructBuffer(v Value, c *adapterContext) (outcome, error) {
	o, b, err := slotOf[*bufferSlot](v, c.tag)
	if err != nil {
		return outcome{}, err
	}
	return outcome{clone: newObject(o.proto, &bufferSlot{data: append([]byte(nil), b.data...)})}, nil
}

// reconstructTypedArray clones the view and enqueues its buffer, so views
// sharing a buffer keep sharing its clone. Indexed elements are skipped by
// the walk.
func reconstructTypedArray(v Value, c *adapterContext) (outcome, error) {
	o, s, err := slotOf[*typedArraySlot](v, c.tag)
	if err != nil {
		return outcome{}, err
	}
	dst := &typedArraySlot{kind: s.kind, offset: s.offset, length: s.length}
	out := outcome{clone: newObject(o.proto, dst)}
	for i := 0; i < s.length; i++ {
		out.plan.skipKey(IndexKey(i))
	}
	c.Enqueue(optional(s.buffer), func(b Value) { dst.buffer = bufferOrNil(b) })
	return out, nil
}

func reconstructDataView(v Value, c *adapterContext) (outcome, error) {
	o, s, err := slotOf[*dataViewSlot](v, c.tag)
	if err != nil {
		return outcome{}, err
	}
	dst := &dataViewSlot{offset: s.offset, length: s.length}
	c.Enqueue(optional(s.buffer), func(b Value) { dst.buffer = bufferOrNil(b) })
	return outcome{clone: newObject(o.proto, dst)}, nil
}

func bufferOrNil(v Value) *Object {
	if b, ok := v.(*Object); ok && b != nil {
		if _, isBuffer := b.slot.(*bufferSlot); isBuffer {
			return b
		}
	}
	return nil
}

func reconstructDisallowed(_ Value, c *adapterContext) (outcome, error) {
	return outcome{}, newKindError(ErrDisallowed, c.tag, nil)
}
