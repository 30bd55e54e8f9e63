package replica

import (
	"context"
	"fmt"
)

// Override describes how a single value is cloned. It is returned by a
// Customizer or a clone method. A nil *Override means "no opinion".
type Override struct {
	// Clone is the value committed in place of the original. A nil Clone is
	// a valid result and commits null.
	Clone Value

	// Ignore commits nothing for the value. Customizers only.
	Ignore bool

	// IgnoreProps skips copying the original's own properties onto Clone.
	IgnoreProps bool

	// IgnoreProto keeps Clone's prototype as constructed.
	IgnoreProto bool

	// PropsToIgnore lists own properties the walk skips.
	PropsToIgnore []Key

	// AdditionalValues are cloned as extra obligations. Customizers only.
	AdditionalValues []AdditionalValue

	// Async produces the clone through an awaited operation. Only honored by
	// CloneAsync; Clone is ignored when Async is set.
	Async func(ctx context.Context) (Value, error)
}

// AdditionalValue is an out-of-band value to clone. Assign receives its clone.
type AdditionalValue struct {
	Value  Value
	Assign func(clone Value)
}

// Customizer is consulted for every non-primitive value before any default
// dispatch.
type Customizer func(v Value) (*Override, error)

// CloneMethod is a self-describing clone recipe attached to an object or
// inherited through its prototype chain.
type CloneMethod func(self *Object) (*Override, error)

// SelfCloner is implemented by Go host values that describe their own clone.
type SelfCloner interface {
	CloneSelf() (*Override, error)
}

// SetCloneMethod installs m under SymbolClone as a non-enumerable callable.
// Objects inheriting from o use the same method.
func (o *Object) SetCloneMethod(m CloneMethod) error {
	fn := newObject(FunctionPrototype, &funcSlot{
		name:   "clone",
		method: m,
		fn: func(this Value, _ ...Value) (Value, error) {
			self, ok := this.(*Object)
			if !ok {
				return Undefined, ErrNotCallable
			}
			ov, err := m(self)
			if err != nil || ov == nil {
				return Undefined, err
			}
			return ov.Clone, nil
		},
	})
	return o.DefineOwnProperty(SymbolKey(SymbolClone), Descriptor{Value: fn, Writable: true, Configurable: true})
}

// cloneMethodOf resolves the clone method of o through its prototype chain.
// The returned function object identifies the method.
func cloneMethodOf(o *Object) (*Object, CloneMethod, bool) {
	d, _, ok := o.lookup(SymbolKey(SymbolClone))
	if !ok || d.IsAccessor() {
		return nil, nil, false
	}
	fn, ok := d.Value.(*Object)
	if !ok {
		return nil, nil, false
	}
	f, ok := fn.slot.(*funcSlot)
	if !ok || f.method == nil {
		return nil, nil, false
	}
	return fn, f.method, true
}

// UseCustomizers composes customizers. The first non-nil override wins; a
// failing customizer stops the chain with its error.
func UseCustomizers(cs []Customizer) (Customizer, error) {
	if cs == nil {
		return nil, fmt.Errorf("compose customizers: nil list: %w", ErrMisuse)
	}
	for i, c := range cs {
		if c == nil {
			return nil, fmt.Errorf("compose customizers: element %d is nil: %w", i, ErrMisuse)
		}
	}
	list := append([]Customizer(nil), cs...)
	return func(v Value) (*Override, error) {
		for _, c := range list {
			ov, err := c(v)
			if err != nil {
				return nil, err
			}
			if ov != nil {
				return ov, nil
			}
		}
		return nil, nil
	}, nil
}

// ParentRegistry records the originals already cloned as hop roots during a
// CloneFully walk, together with the clone methods invoked for them. A clone
// method recorded here is not invoked again at the root of a later hop.
type ParentRegistry struct {
	originals map[*Object]bool
	methods   map[*Object]bool
}

// NewParentRegistry returns an empty registry.
func NewParentRegistry() *ParentRegistry {
	return &ParentRegistry{
		originals: make(map[*Object]bool),
		methods:   make(map[*Object]bool),
	}
}

// Add records o as a cloned hop root.
func (r *ParentRegistry) Add(o *Object) {
	r.originals[o] = true
	if fn, _, ok := cloneMethodOf(o); ok {
		r.methods[fn] = true
	}
}

// Has reports whether o was recorded.
func (r *ParentRegistry) Has(o *Object) bool {
	return r != nil && r.originals[o]
}

func (r *ParentRegistry) suppresses(method *Object) bool {
	return r != nil && r.methods[method]
}

// callHook runs a hook, turning panics into errors.
func callHook(fn func() (*Override, error)) (ov *Override, err error) {
	defer func() {
		if r := recover(); r != nil {
			ov, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
