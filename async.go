package replica

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// pendingResult is a node whose clone is only available after an awaited
// operation. Later visits of the same original wait on it.
type pendingResult struct {
	it      item
	key     any
	tag     Tag
	plan    walkPlan
	run     func(context.Context) (Value, error)
	waiters []item

	value Value
	err   error
}

func (e *engine) register(it item, key any, tag Tag, run func(context.Context) (Value, error), plan walkPlan) {
	p := &pendingResult{it: it, key: key, tag: tag, plan: plan, run: run}
	e.pending = append(e.pending, p)
	if key != nil {
		e.inflight[key] = p
	}
}

// pump alternates draining the queue and awaiting the pending batch until
// both are empty. Outside async mode nothing is ever pending.
func (e *engine) pump() error {
	for {
		if err := e.drain(); err != nil {
			return err
		}
		if len(e.pending) == 0 {
			return nil
		}
		batch := e.pending
		e.pending = nil
		e.await(batch)
		for _, p := range batch {
			e.settle(p)
		}
	}
}

// await runs every pending operation concurrently and waits for all of them
// to settle. A failure never cancels its siblings.
func (e *engine) await(batch []*pendingResult) {
	start := time.Now()
	var g errgroup.Group
	for _, p := range batch {
		g.Go(func() error {
			p.value, p.err = awaitOne(e.ctx, p.run)
			return nil
		})
	}
	_ = g.Wait()

	failures := 0
	for _, p := range batch {
		if p.err != nil {
			failures++
		}
	}
	emitAsyncBatch(e.ctx, len(batch), failures, time.Since(start))
}

func awaitOne(ctx context.Context, run func(context.Context) (Value, error)) (v Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return run(ctx)
}

// settle commits a settled result in batch order and releases its waiters.
func (e *engine) settle(p *pendingResult) {
	delete(e.inflight, p.key)
	clone := p.value
	if p.err != nil {
		e.log.error(DiagAsyncRejected, p.tag, "replaced with an empty object", newKindError(ErrAsyncRejected, p.tag, p.err))
		clone = NewObject()
		e.commit(p.it, p.tag, clone, walkPlan{ignoreProto: true})
	} else {
		e.commit(p.it, p.tag, clone, p.plan)
	}
	for _, w := range p.waiters {
		e.assign(clone, w.dest)
	}
}
