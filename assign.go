package replica

import "fmt"

// assign commits a clone to its destination.
func (e *engine) assign(clone Value, d destination) {
	switch d.kind {
	case destTop:
		e.result = clone
	case destSetter:
		d.setter(clone)
	case destParent:
		e.define(d.parent, d.key, d.desc, clone)
	}
}

// define places clone on parent under k, recreating the original descriptor.
// Plain data properties take the SetOwn fast path. Accessors are relocated
// by reference. Failures are logged, never fatal.
func (e *engine) define(parent *Object, k Key, d Descriptor, clone Value) {
	var err error
	switch {
	case d.IsAccessor():
		e.log.warn(DiagAccessor, "", fmt.Sprintf("accessor %s copied by reference", k), nil)
		err = parent.DefineOwnProperty(k, Descriptor{
			Get:          d.Get,
			Set:          d.Set,
			Enumerable:   d.Enumerable,
			Configurable: d.Configurable,
		})
	case d.isPlainData():
		err = parent.SetOwn(k, clone)
	default:
		err = parent.DefineOwnProperty(k, Descriptor{
			Value:        clone,
			Writable:     d.Writable,
			Enumerable:   d.Enumerable,
			Configurable: d.Configurable,
		})
	}
	if err != nil {
		e.log.warn(DiagAssignFailed, "", fmt.Sprintf("assign %s", k), err)
	}
}
