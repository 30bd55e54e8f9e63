package replica

import (
	"context"
	"time"
)

// CloneFully clones v and then each ancestor on its prototype chain, linking
// the clones into a mirrored chain. Each ancestor is cloned by a separate
// engine run. The walk stops before the first ancestor exposing callable
// members, and at intrinsic prototypes, unless WithForce is set.
//
// A clone method invoked for one hop is not invoked again when its owner
// becomes the root of a later hop.
func CloneFully(v Value, opts ...Option) (Value, error) {
	return executeFully(context.Background(), "fully", v, newOptions(opts), false)
}

// CloneFullyAsync is CloneFully with the async pump.
func CloneFullyAsync(ctx context.Context, v Value, opts ...Option) (*Result, error) {
	c, err := executeFully(ctx, "fully-async", v, newOptions(opts), true)
	if err != nil {
		return nil, err
	}
	return &Result{Clone: c}, nil
}

func executeFully(ctx context.Context, mode string, v Value, o *options, async bool) (clone Value, err error) {
	start := time.Now()
	emitCloneStart(ctx, mode, Classify(v, o.robust))
	nodes := 0
	defer func() {
		emitCloneComplete(ctx, mode, nodes, time.Since(start), err)
	}()

	parents := NewParentRegistry()
	var engines []*engine
	hop := func(x Value) (Value, error) {
		e := newEngine(ctx, o, async, parents)
		engines = append(engines, e)
		c, err := e.run(x)
		nodes += e.nodes
		return c, err
	}

	clone, err = hop(v)
	if err != nil {
		return nil, err
	}

	orig, ok := v.(*Object)
	tail, isObj := clone.(*Object)
	if ok && isObj && tail != orig {
		parents.Add(orig)
		log := diagnostics{logger: o.activeLogger()}
		for p := orig.proto; p != nil; p = p.proto {
			if !o.force && exposesCallables(p) {
				break
			}
			pc, err := hop(p)
			if err != nil {
				return nil, err
			}
			next, ok := pc.(*Object)
			if !ok || next == p {
				break
			}
			if err := tail.SetPrototype(next); err != nil {
				log.warn(DiagAssignFailed, Classify(p, o.robust), "link cloned ancestor", err)
				break
			}
			parents.Add(p)
			tail = next
		}
	}

	for _, e := range engines {
		e.finalize()
	}
	return clone, nil
}

// exposesCallables reports whether p is intrinsic or owns a callable or an
// accessor property.
func exposesCallables(p *Object) bool {
	if p.intrinsic {
		return true
	}
	for _, k := range p.OwnKeys() {
		d, ok := p.GetOwnProperty(k)
		if !ok {
			continue
		}
		if d.IsAccessor() || IsCallable(d.Value) {
			return true
		}
	}
	return false
}
