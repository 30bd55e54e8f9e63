// Package replica deep-copies cyclic graphs of dynamic objects and Go values.
//
// The object model is a realm of key/value containers with per-property
// descriptors, prototype links and extensibility, plus native kinds carried
// in internal slots: boxed primitives, dates, patterns, errors, ordered maps
// and sets, buffers, typed arrays, platform resources and opaque handles.
// Go pointers to structs, slices and maps reachable from the graph are
// cloned too.
//
// # Cloning
//
// Clone walks the graph with a FIFO worklist, never recursing in proportion
// to depth. Shared and circular references collapse through a memo table,
// descriptors are recreated on the clone and integrity levels (frozen,
// sealed, non-extensible) are reapplied after every property is in place:
//
//	a := replica.NewObject()
//	a.SetString("self", a)
//	c, _ := replica.Clone(a)
//	c.(*replica.Object).GetString("self") == c // true
//
// Values that cannot be copied degrade to an empty object and a diagnostic.
// Callables are never fabricated: a callable root becomes an empty object
// inheriting FunctionPrototype, nested callables and accessors are shared.
//
// # Hooks
//
// A Customizer sees every value first and may replace its clone, drop it,
// add out-of-band values or stop property and prototype propagation:
//
//	replica.Clone(v, replica.WithCustomizer(func(v replica.Value) (*replica.Override, error) {
//	    if v == secret {
//	        return &replica.Override{Ignore: true}, nil
//	    }
//	    return nil, nil
//	}))
//
// Objects may carry their own recipe through SetCloneMethod, inherited along
// the prototype chain; Go values implement SelfCloner.
//
// # Async
//
// CloneAsync additionally clones kinds only duplicable through an awaited
// operation (Secret, AsyncResource, Override.Async). Pending operations are
// awaited together between drains of the worklist, and a failure degrades
// only its own node.
//
// # Host structs
//
// Struct fields are planned once per type from sentinel metadata:
//
//	type Session struct {
//	    User   *User
//	    Cache  map[string]any `clone:"-"`
//	    Logger *log.Logger    `clone:"shallow"`
//	}
//
// # Observability
//
// Diagnostics go to a Logger, which defaults to capitan signals. Each call
// also emits SignalCloneStart and SignalCloneComplete.
package replica

import (
	"context"
	"time"
)

// Result wraps the clone produced by an async call.
type Result struct {
	Clone Value
}

// Clone deep-copies v.
//
// The only errors are hook failures under WithLetCustomizerThrow, wrapped in
// *HookError. Every other problem is node-local and reported to the logger.
func Clone(v Value, opts ...Option) (Value, error) {
	return execute(context.Background(), "sync", v, newOptions(opts), false)
}

// CloneAsync deep-copies v, awaiting kinds that can only be duplicated
// asynchronously. It returns once every pending operation has settled.
func CloneAsync(ctx context.Context, v Value, opts ...Option) (*Result, error) {
	c, err := execute(ctx, "async", v, newOptions(opts), true)
	if err != nil {
		return nil, err
	}
	return &Result{Clone: c}, nil
}

func execute(ctx context.Context, mode string, v Value, o *options, async bool) (clone Value, err error) {
	start := time.Now()
	emitCloneStart(ctx, mode, Classify(v, o.robust))
	e := newEngine(ctx, o, async, nil)
	defer func() {
		emitCloneComplete(ctx, mode, e.nodes, time.Since(start), err)
	}()

	clone, err = e.run(v)
	if err != nil {
		return nil, err
	}
	e.finalize()
	return clone, nil
}
