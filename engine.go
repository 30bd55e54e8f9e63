package replica

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

type destKind uint8

const (
	destTop destKind = iota
	destSetter
	destParent
)

// destination is where a finished clone is committed.
type destination struct {
	kind   destKind
	setter func(Value)
	parent *Object
	key    Key
	desc   Descriptor
}

// item is one pending clone obligation.
type item struct {
	value Value
	dest  destination
	root  bool
}

type deferredPair struct {
	orig  *Object
	clone *Object
}

// walkPlan controls what a commit propagates from the original.
type walkPlan struct {
	ignoreProps bool
	ignoreProto bool
	skip        map[Key]bool
}

func (p *walkPlan) skipKey(k Key) {
	if p.skip == nil {
		p.skip = make(map[Key]bool)
	}
	p.skip[k] = true
}

func planOf(ov *Override) walkPlan {
	p := walkPlan{ignoreProps: ov.IgnoreProps, ignoreProto: ov.IgnoreProto}
	for _, k := range ov.PropsToIgnore {
		p.skipKey(k)
	}
	return p
}

// compactAt bounds the dead prefix of the queue.
const compactAt = 1024

// engine owns the state of one clone call: the FIFO queue, the memo table,
// the deferred integrity list and, in async mode, the pending batch.
type engine struct {
	ctx     context.Context
	opts    *options
	log     diagnostics
	async   bool
	parents *ParentRegistry

	queue    []item
	head     int
	memo     map[any]Value
	deferred []deferredPair
	pending  []*pendingResult
	inflight map[any]*pendingResult
	settlers []func()

	result Value
	nodes  int
}

func newEngine(ctx context.Context, opts *options, async bool, parents *ParentRegistry) *engine {
	return &engine{
		ctx:      ctx,
		opts:     opts,
		log:      diagnostics{logger: opts.activeLogger()},
		async:    async,
		parents:  parents,
		memo:     make(map[any]Value),
		inflight: make(map[any]*pendingResult),
		result:   Undefined,
	}
}

// run clones v. Integrity levels are applied separately by finalize.
func (e *engine) run(v Value) (Value, error) {
	e.push(item{value: v, dest: destination{kind: destTop}, root: true})
	if err := e.pump(); err != nil {
		return nil, err
	}
	for _, s := range e.settlers {
		s()
	}
	e.settlers = nil
	return e.result, nil
}

func (e *engine) push(it item) {
	e.queue = append(e.queue, it)
}

// drain pops items until the queue is empty.
func (e *engine) drain() error {
	for e.head < len(e.queue) {
		it := e.queue[e.head]
		e.queue[e.head] = item{}
		e.head++
		if err := e.step(it); err != nil {
			return err
		}
		if e.head >= compactAt && e.head*2 >= len(e.queue) {
			n := copy(e.queue, e.queue[e.head:])
			e.queue = e.queue[:n]
			e.head = 0
		}
	}
	e.queue = e.queue[:0]
	e.head = 0
	return nil
}

// step processes one item: classify, memo, customizer, clone method,
// adapter dispatch, commit. Primitives skip the memo and the clone method
// but still pass through the customizer.
func (e *engine) step(it item) error {
	v := it.value
	tag := Classify(v, e.opts.robust)
	primitive := isPrimitiveTag(tag)

	var key any
	if !primitive {
		key = identity(v)
		if c, ok := e.memo[key]; ok {
			e.assign(c, it.dest)
			return nil
		}
		if p, ok := e.inflight[key]; ok {
			p.waiters = append(p.waiters, it)
			return nil
		}
		e.nodes++
	}

	if e.opts.customizer != nil {
		ov, err := callHook(func() (*Override, error) { return e.opts.customizer(v) })
		if err != nil {
			if herr := e.hookFailed("customizer", tag, err); herr != nil {
				return herr
			}
		} else if ov != nil {
			if ov.Ignore {
				return nil
			}
			e.enqueueAdditional(ov.AdditionalValues, tag)
			if e.resolve(it, key, tag, ov) {
				return nil
			}
		}
	}

	if primitive {
		e.assign(v, it.dest)
		return nil
	}

	ov, err := e.cloneMethod(it, tag)
	if err != nil {
		return err
	}
	if ov != nil && e.resolve(it, key, tag, ov) {
		return nil
	}

	e.dispatch(it, key, tag)
	return nil
}

// resolve commits a hook result, or registers its awaited clone. It reports
// false when the result cannot be honored and dispatch must continue.
func (e *engine) resolve(it item, key any, tag Tag, ov *Override) bool {
	if ov.Async != nil {
		if !e.async {
			e.log.warn(DiagAsyncOnly, tag, "async override ignored outside CloneAsync", ErrAsyncOnly)
			return false
		}
		e.register(it, key, tag, ov.Async, planOf(ov))
		return true
	}
	e.commit(it, tag, ov.Clone, planOf(ov))
	return true
}

// hookFailed logs a hook failure, or returns it when hooks may throw.
func (e *engine) hookFailed(hook string, tag Tag, cause error) error {
	err := newHookError(hook, tag, cause)
	if e.opts.letThrow {
		return err
	}
	e.log.error(DiagHookError, tag, hook+" failed; using default dispatch", err)
	return nil
}

// cloneMethod consults the self-describing clone method of the value.
func (e *engine) cloneMethod(it item, tag Tag) (*Override, error) {
	if e.opts.ignoreMethods {
		return nil, nil
	}
	var call func() (*Override, error)
	switch t := it.value.(type) {
	case *Object:
		fn, m, ok := cloneMethodOf(t)
		if !ok || (it.root && e.parents.suppresses(fn)) {
			return nil, nil
		}
		call = func() (*Override, error) { return m(t) }
	case SelfCloner:
		call = t.CloneSelf
	default:
		return nil, nil
	}

	ov, err := callHook(call)
	if err != nil {
		return nil, e.hookFailed("clone method", tag, err)
	}
	if ov == nil {
		return nil, nil
	}
	if ov.Ignore || len(ov.AdditionalValues) > 0 {
		e.log.warn(DiagMalformedResult, tag, "clone method result sets Ignore or AdditionalValues; dropped", ErrMalformedResult)
		cp := *ov
		cp.Ignore = false
		cp.AdditionalValues = nil
		ov = &cp
	}
	return ov, nil
}

func (e *engine) enqueueAdditional(values []AdditionalValue, tag Tag) {
	for i, av := range values {
		if av.Assign == nil {
			e.log.warn(DiagMalformedResult, tag, fmt.Sprintf("additional value %d has no Assign; dropped", i), ErrMalformedResult)
			continue
		}
		assign := av.Assign
		e.push(item{value: av.Value, dest: destination{kind: destSetter, setter: func(c Value) {
			defer func() {
				if r := recover(); r != nil {
					e.log.error(DiagHookError, tag, "additional value assign panicked", newHookError("assign", tag, fmt.Errorf("panic: %v", r)))
				}
			}()
			assign(c)
		}}})
	}
}

// dispatch reconstructs the value through its adapter, degrading to an
// empty object when no adapter applies or the adapter fails.
func (e *engine) dispatch(it item, key any, tag Tag) {
	a, ok := adapterIndex[tag]
	if !ok {
		e.fallback(it, tag, newKindError(ErrUnsupported, tag, nil))
		return
	}
	c := &adapterContext{e: e, root: it.root, tag: tag}
	out, err := a.run(it.value, c)
	if err != nil {
		e.fallback(it, tag, err)
		return
	}
	c.flush()
	if out.async != nil {
		e.register(it, key, tag, out.async, out.plan)
		return
	}
	e.commit(it, tag, out.clone, out.plan)
}

func (e *engine) fallback(it item, tag Tag, err error) {
	code := DiagUnsupported
	switch {
	case errors.Is(err, ErrDisallowed):
		code = DiagDisallowed
	case errors.Is(err, ErrAsyncOnly):
		code = DiagAsyncOnly
	}
	e.log.error(code, tag, "replaced with an empty object", err)
	e.commit(it, tag, NewObject(), walkPlan{ignoreProto: true})
}

// commit assigns the clone, memoizes it, records it for finalization and
// enqueues the original's own properties.
func (e *engine) commit(it item, tag Tag, clone Value, plan walkPlan) {
	e.assign(clone, it.dest)
	if IsPrimitive(clone) || IsPrimitive(it.value) {
		return
	}
	e.memo[identity(it.value)] = clone

	orig, ok := it.value.(*Object)
	if !ok {
		return
	}
	co, ok := clone.(*Object)
	if !ok || co == orig {
		return
	}
	e.deferred = append(e.deferred, deferredPair{orig: orig, clone: co})
	if !plan.ignoreProps {
		e.enqueueProps(orig, co, plan.skip)
	}
	if !plan.ignoreProto && co.proto != orig.proto {
		if err := co.SetPrototype(orig.proto); err != nil {
			e.log.warn(DiagAssignFailed, tag, "relink prototype", err)
		}
	}
}

// enqueueProps schedules every own property of orig, string and symbol,
// enumerable or not, for commit onto clone.
func (e *engine) enqueueProps(orig, clone *Object, skip map[Key]bool) {
	for _, k := range orig.OwnKeys() {
		if skip[k] {
			continue
		}
		d, ok := orig.GetOwnProperty(k)
		if !ok {
			continue
		}
		v := d.Value
		if d.IsAccessor() {
			v = Undefined
		}
		e.push(item{value: v, dest: destination{kind: destParent, parent: clone, key: k, desc: d}})
	}
}

type sliceIdentity struct {
	typ reflect.Type
	ptr uintptr
	len int
	cap int
}

type refIdentity struct {
	typ reflect.Type
	ptr uintptr
}

type valueIdentity struct {
	typ  reflect.Type
	repr string
}

// identity returns a comparable key standing for v's identity: the pointer
// for references, the value itself for comparable primitives.
func identity(v Value) any {
	switch t := v.(type) {
	case nil:
		return nil
	case *Object:
		return t
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		return sliceIdentity{typ: rv.Type(), ptr: rv.Pointer(), len: rv.Len(), cap: rv.Cap()}
	case reflect.Map, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return refIdentity{typ: rv.Type(), ptr: rv.Pointer()}
	}
	if rv.Type().Comparable() {
		return v
	}
	return valueIdentity{typ: rv.Type(), repr: fmt.Sprintf("%#v", v)}
}
