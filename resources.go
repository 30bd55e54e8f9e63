package replica

import (
	"context"
	"fmt"
)

func reconstructBlob(v Value, c *adapterContext) (outcome, error) {
	o, b, err := slotOf[*blobSlot](v, c.tag)
	if err != nil {
		return outcome{}, err
	}
	return outcome{clone: newObject(o.proto, b.slice(0, len(b.data)))}, nil
}

// reconstructException rebuilds from name and message and defers the stack
// the same way errors do.
func reconstructException(v Value, c *adapterContext) (outcome, error) {
	o, s, err := slotOf[*exceptionSlot](v, c.tag)
	if err != nil {
		return outcome{}, err
	}
	clone := newException(s.message, s.name)
	clone.proto = o.proto
	out := outcome{clone: clone}
	deferStack(o, clone, c, &out.plan)
	return out, nil
}

func reconstructPoint(v Value, c *adapterContext) (outcome, error) {
	o, p, err := slotOf[*pointSlot](v, c.tag)
	if err != nil {
		return outcome{}, err
	}
	cp := *p
	return outcome{clone: newObject(o.proto, &cp)}, nil
}

func reconstructMatrix(v Value, c *adapterContext) (outcome, error) {
	o, m, err := slotOf[*matrixSlot](v, c.tag)
	if err != nil {
		return outcome{}, err
	}
	cp := *m
	return outcome{clone: newObject(o.proto, &cp)}, nil
}

func reconstructRect(v Value, c *adapterContext) (outcome, error) {
	o, r, err := slotOf[*rectSlot](v, c.tag)
	if err != nil {
		return outcome{}, err
	}
	cp := *r
	return outcome{clone: newObject(o.proto, &cp)}, nil
}

// reconstructQuad enqueues the four corner points.
func reconstructQuad(v Value, c *adapterContext) (outcome, error) {
	o, q, err := slotOf[*quadSlot](v, c.tag)
	if err != nil {
		return outcome{}, err
	}
	dst := &quadSlot{}
	for i, p := range q.points {
		c.Enqueue(p, func(cp Value) {
			if po, ok := cp.(*Object); ok {
				dst.points[i] = po
			}
		})
	}
	return outcome{clone: newObject(o.proto, dst)}, nil
}

// reconstructImageData copies the geometry and enqueues the pixel array.
func reconstructImageData(v Value, c *adapterContext) (outcome, error) {
	o, s, err := slotOf[*imageDataSlot](v, c.tag)
	if err != nil {
		return outcome{}, err
	}
	dst := &imageDataSlot{width: s.width, height: s.height, colorSpace: s.colorSpace}
	c.Enqueue(s.data, func(px Value) {
		if po, ok := px.(*Object); ok {
			dst.data = po
		}
	})
	return outcome{clone: newObject(o.proto, dst)}, nil
}

// reconstructSecret reseals the key material under a fresh key. Only the
// async pump can await it.
func reconstructSecret(v Value, c *adapterContext) (outcome, error) {
	o, s, err := slotOf[*secretSlot](v, c.tag)
	if err != nil {
		return outcome{}, err
	}
	if !c.Async() {
		return outcome{}, newKindError(ErrAsyncOnly, c.tag, nil)
	}
	proto := o.proto
	return outcome{async: func(ctx context.Context) (Value, error) {
		dup, err := s.reseal(ctx)
		if err != nil {
			return nil, err
		}
		dup.proto = proto
		return dup, nil
	}}, nil
}

func reconstructAsyncResource(v Value, c *adapterContext) (outcome, error) {
	_, r, err := slotOf[*asyncResourceSlot](v, c.tag)
	if err != nil {
		return outcome{}, err
	}
	if !c.Async() {
		return outcome{}, newKindError(ErrAsyncOnly, c.tag, nil)
	}
	if r.dup == nil {
		return outcome{}, newKindError(ErrUnsupported, c.tag, fmt.Errorf("resource %q has no duplicator", r.label))
	}
	return outcome{async: r.dup}, nil
}
