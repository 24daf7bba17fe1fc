// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendergraph

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// queueLocks serializes submissions to the same Queue value across graphs
// and goroutines, for queues that are not SubmitLockers. An entry lives
// while at least one graph holds it.
var queueLocks = struct {
	sync.Mutex
	m map[Queue]*sharedLock
}{m: make(map[Queue]*sharedLock)}

type sharedLock struct {
	sync.Mutex
	refs int
}

// acquireQueueLock returns the lock guarding submissions to q and a release
// func the graph calls on Destroy.
func acquireQueueLock(q Queue) (sync.Locker, func()) {
	if l, ok := q.(SubmitLocker); ok {
		return l.SubmitLock(), func() {}
	}
	if !reflect.TypeOf(q).Comparable() {
		Logger().Debug("rendergraph: queue is not comparable, lock is per graph", "type", fmt.Sprintf("%T", q))
		return new(sync.Mutex), func() {}
	}

	queueLocks.Lock()
	defer queueLocks.Unlock()
	l := queueLocks.m[q]
	if l == nil {
		l = new(sharedLock)
		queueLocks.m[q] = l
	}
	l.refs++
	return l, func() {
		queueLocks.Lock()
		defer queueLocks.Unlock()
		if l.refs--; l.refs == 0 {
			delete(queueLocks.m, q)
		}
	}
}

// queueLock returns the graph's lock for submissions to q on kind.
func (g *Graph) queueLock(kind QueueKind, q Queue) sync.Locker {
	if g.locks[kind] == nil {
		g.locks[kind], g.unlocks[kind] = acquireQueueLock(q)
	}
	return g.locks[kind]
}

// releaseQueueLocks drops the graph's hold on shared queue locks.
func (g *Graph) releaseQueueLocks() {
	for k := range g.unlocks {
		if g.unlocks[k] != nil {
			g.unlocks[k]()
		}
		g.locks[k], g.unlocks[k] = nil, nil
	}
}

// discarder is implemented by recorders that hold resources which must be
// released when a batch is abandoned.
type discarder interface {
	Discard()
}

type batch struct {
	queue   QueueKind
	label   string
	rec     CommandRecorder
	waits   []TimelineWait
	signals []TimelineSignal
	value   uint64
	cb      CommandBuffer
	passes  int

	submitted bool
}

// step is one unit of submission: an ended device batch or a host pass.
type step struct {
	batch *batch
	host  *Pass
}

type executor struct {
	g        *Graph
	open     [queueKindCount]*batch
	first    [queueKindCount]*batch
	last     [queueKindCount]*batch
	steps    []step
	signalOf map[*Pass]TimelineWait
	all      []*batch
	batches  int
}

// Execute records and submits the compiled frame. waits are applied to the
// first batch on every queue the frame uses and signals to the last one.
// In synchronous mode Execute returns only after all submitted work has
// completed, bounded by the wait timeout.
//
// Any error aborts the frame: batches not yet submitted are discarded.
func (g *Graph) Execute(waits []TimelineWait, signals []TimelineSignal, synchronous bool) error {
	if !g.compiled {
		return ErrNotCompiled
	}
	if g.executed {
		return fmt.Errorf("%w: frame %d already executed", ErrInvalidSubmission, g.frame)
	}
	ex := &executor{g: g, signalOf: make(map[*Pass]TimelineWait)}
	var base [queueKindCount]uint64
	for q, tl := range g.timelines {
		if tl != nil {
			base[q] = tl.value
		}
	}

	err := ex.record()
	if err == nil {
		err = ex.attachExternal(waits, signals)
	}
	if err == nil {
		err = ex.submit()
	}
	if err == nil && synchronous {
		err = ex.wait()
	}
	if err != nil {
		ex.discard()
		ex.rollback(base)
		return err
	}

	g.executed = true
	g.commitLayouts()
	g.stats.Batches = ex.batches
	Logger().Debug("rendergraph: executed", "frame", g.frame, "batches", ex.batches, "sync", synchronous)
	return nil
}

func (ex *executor) record() error {
	g := ex.g
	for _, p := range g.order {
		if p.queue == QueueHost {
			if err := ex.checkWaits(p); err != nil {
				return err
			}
			ex.steps = append(ex.steps, step{host: p})
			if p.mustSignal {
				ex.signalOf[p] = TimelineWait{Semaphore: g.timelines[QueueHost].sem, Value: g.timelines[QueueHost].next()}
			}
			continue
		}
		b, err := ex.batchFor(p)
		if err != nil {
			return err
		}
		if err := g.recordPass(b.rec, p); err != nil {
			return err
		}
		b.passes++
		if p.mustSignal {
			if err := ex.end(b); err != nil {
				return err
			}
			ex.signalOf[p] = TimelineWait{Semaphore: g.timelines[b.queue].sem, Value: b.value}
		}
	}

	if ft := g.final; ft != nil {
		b := ex.open[ft.queue]
		if b != nil && ft.after != nil {
			if err := ex.end(b); err != nil {
				return err
			}
			b = nil
		}
		if b == nil {
			var err error
			if b, err = ex.begin(ft.queue, "final"); err != nil {
				return err
			}
			if ft.after != nil {
				b.waits = append(b.waits, ex.signalOf[ft.after])
			}
		}
		img, _ := g.resolveBarriers([]Barrier{ft.barrier})
		b.rec.Barrier(img, nil)
	}
	for q := range ex.open {
		if b := ex.open[q]; b != nil {
			if err := ex.end(b); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkWaits verifies every producer a host pass waits for has ended its
// batch with a signal.
func (ex *executor) checkWaits(p *Pass) error {
	for _, w := range p.waits {
		if _, ok := ex.signalOf[w]; !ok {
			return passError(p, "wait", fmt.Errorf("%w: producer %q has no signal", ErrInvalidSubmission, w.name))
		}
	}
	return nil
}

// batchFor returns the batch p records into, starting a new one when the
// pass waits on another queue or none is open for its queue.
func (ex *executor) batchFor(p *Pass) (*batch, error) {
	b := ex.open[p.queue]
	if b != nil && len(p.waits) > 0 {
		if err := ex.end(b); err != nil {
			return nil, err
		}
		b = nil
	}
	if b == nil {
		var err error
		if b, err = ex.begin(p.queue, p.label()); err != nil {
			return nil, passError(p, "begin batch", err)
		}
	}
	for _, w := range p.waits {
		sig, ok := ex.signalOf[w]
		if !ok {
			return nil, passError(p, "wait", fmt.Errorf("%w: producer %q has no signal", ErrInvalidSubmission, w.name))
		}
		b.waits = append(b.waits, sig)
	}
	return b, nil
}

func (ex *executor) begin(q QueueKind, label string) (*batch, error) {
	label = fmt.Sprintf("frame%d/%s/%s", ex.g.frame, q, label)
	rec, err := ex.g.device.NewRecorder(q, label)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidSubmission, label, err)
	}
	b := &batch{queue: q, label: label, rec: rec}
	ex.open[q] = b
	ex.all = append(ex.all, b)
	if ex.first[q] == nil {
		ex.first[q] = b
	}
	return b, nil
}

// end finishes b and assigns its timeline signal value.
func (ex *executor) end(b *batch) error {
	if ex.open[b.queue] != b {
		return fmt.Errorf("%w: batch %s is not open", ErrInvalidSubmission, b.label)
	}
	ex.open[b.queue] = nil
	cb, err := b.rec.Finish()
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidSubmission, b.label, err)
	}
	b.cb = cb
	b.rec = nil
	b.value = ex.g.timelines[b.queue].next()
	ex.last[b.queue] = b
	ex.steps = append(ex.steps, step{batch: b})
	ex.batches++
	return nil
}

// attachExternal adds the caller's waits to the first batch on every used
// queue. Signals go on the last graphics batch; when other device queues
// took part, an empty graphics batch joining their last values carries them
// instead. A frame without device work gets an empty graphics batch too.
func (ex *executor) attachExternal(waits []TimelineWait, signals []TimelineSignal) error {
	if len(waits) == 0 && len(signals) == 0 {
		return nil
	}
	var joins []TimelineWait
	for q, b := range ex.last {
		if b != nil && QueueKind(q) != QueueGraphics {
			joins = append(joins, TimelineWait{Semaphore: ex.g.timelines[q].sem, Value: b.value})
		}
	}
	if ex.last[QueueGraphics] == nil || (len(joins) > 0 && len(signals) > 0) {
		b, err := ex.begin(QueueGraphics, "external")
		if err != nil {
			return err
		}
		b.waits = joins
		if err := ex.end(b); err != nil {
			return err
		}
	}
	for _, b := range ex.first {
		if b != nil {
			b.waits = append(b.waits, waits...)
		}
	}
	last := ex.last[QueueGraphics]
	last.signals = append(last.signals, signals...)
	return nil
}

func (ex *executor) submit() error {
	g := ex.g
	for i, s := range ex.steps {
		if s.host != nil {
			if err := g.runHost(s.host, ex.signalOf); err != nil {
				ex.steps = ex.steps[i+1:]
				return err
			}
			continue
		}
		b := s.batch
		q, ok := g.device.Queue(b.queue)
		if !ok {
			ex.steps = ex.steps[i:]
			return fmt.Errorf("%w: device has no %s queue", ErrInvalidSubmission, b.queue)
		}
		sub := Submission{
			Label:          b.label,
			CommandBuffers: []CommandBuffer{b.cb},
			Waits:          b.waits,
			Signals:        append([]TimelineSignal{{Semaphore: g.timelines[b.queue].sem, Value: b.value}}, b.signals...),
		}
		mu := g.queueLock(b.queue, q)
		mu.Lock()
		err := q.Submit(sub)
		mu.Unlock()
		if err != nil {
			ex.steps = ex.steps[i+1:]
			return fmt.Errorf("%w: submit %s: %w", ErrInvalidSubmission, b.label, err)
		}
		b.submitted = true
	}
	ex.steps = nil
	return nil
}

// runHost blocks on the pass's waits, runs its body and advances the CPU
// timeline.
func (g *Graph) runHost(p *Pass, signalOf map[*Pass]TimelineWait) error {
	for _, w := range p.waits {
		sig := signalOf[w]
		if err := sig.Semaphore.Wait(sig.Value, g.opts.waitTimeout); err != nil {
			return passError(p, "wait", err)
		}
	}
	if p.execute != nil {
		push, err := g.resolvePush(p)
		if err != nil {
			return passError(p, "push data", err)
		}
		if err := p.execute(&PassContext{g: g, pass: p, push: push}); err != nil {
			return passError(p, "execute", err)
		}
	}
	if sig, ok := signalOf[p]; ok {
		if err := sig.Semaphore.Signal(sig.Value); err != nil {
			return passError(p, "signal", err)
		}
	}
	return nil
}

// wait blocks until every used queue reaches its last signalled value, then
// marks the CPU timeline.
func (ex *executor) wait() error {
	g := ex.g
	for q, b := range ex.last {
		if b == nil {
			continue
		}
		tl := g.timelines[q]
		if err := tl.sem.Wait(b.value, g.opts.waitTimeout); err != nil {
			return fmt.Errorf("rendergraph: synchronous wait on %s: %w", QueueKind(q), err)
		}
	}
	host := g.timelines[QueueHost]
	v := host.next()
	if err := host.sem.Signal(v); err != nil {
		return fmt.Errorf("rendergraph: signal %s: %w", QueueHost, err)
	}
	return host.sem.Wait(v, g.opts.waitTimeout)
}

func (ex *executor) discard() {
	for _, b := range ex.open {
		if b != nil && b.rec != nil {
			if d, ok := b.rec.(discarder); ok {
				d.Discard()
			}
		}
	}
	if len(ex.steps) > 0 {
		Logger().Warn("rendergraph: frame aborted", "frame", ex.g.frame, "unsubmitted", len(ex.steps))
	}
}

// rollback rewinds queue counters past values that were assigned but never
// submitted, so later frames do not wait on them.
func (ex *executor) rollback(base [queueKindCount]uint64) {
	top := base
	for _, b := range ex.all {
		if b.submitted {
			top[b.queue] = max(top[b.queue], b.value)
		}
	}
	if tl := ex.g.timelines[QueueHost]; tl != nil {
		top[QueueHost] = max(top[QueueHost], tl.sem.Value())
	}
	for q, tl := range ex.g.timelines {
		if tl != nil {
			tl.value = top[q]
		}
	}
}

// recordPass records barriers, query scopes, the render scope and the body
// of a device pass.
func (g *Graph) recordPass(rec CommandRecorder, p *Pass) error {
	if imgs, bufs := g.resolveBarriers(p.barriers); len(imgs)+len(bufs) > 0 {
		rec.Barrier(imgs, bufs)
	}
	label := p.label()
	if g.opts.timestamps {
		rec.BeginTimestamp(label)
	}
	if g.opts.statistics {
		rec.BeginStatistics(label)
	}
	scoped := p.kind == PassGraphics && len(p.attachments) > 0
	if scoped {
		scope, err := g.renderScope(p)
		if err != nil {
			return err
		}
		rec.BeginRenderScope(scope)
	}

	push, err := g.resolvePush(p)
	if err != nil {
		return passError(p, "push data", err)
	}
	ctx := &PassContext{g: g, pass: p, rec: rec, push: push}
	if p.pipeline != nil {
		if err := ctx.BindPipeline(p.pipeline); err != nil {
			return passError(p, "bind pipeline", err)
		}
	}
	if p.execute != nil {
		if err := p.execute(ctx); err != nil {
			if errors.Is(err, ErrInvalidPipeline) {
				return passError(p, "bind pipeline", err)
			}
			return passError(p, "execute", err)
		}
	}

	if scoped {
		rec.EndRenderScope()
	}
	if g.opts.statistics {
		rec.EndStatistics(label)
	}
	if g.opts.timestamps {
		rec.EndTimestamp(label)
	}
	if imgs, bufs := g.resolveBarriers(p.releases); len(imgs)+len(bufs) > 0 {
		rec.Barrier(imgs, bufs)
	}
	return nil
}

// resolveBarriers binds synthesized barriers to the physical objects.
func (g *Graph) resolveBarriers(bs []Barrier) ([]ImageBarrier, []BufferBarrier) {
	var imgs []ImageBarrier
	var bufs []BufferBarrier
	for _, b := range bs {
		obj := g.physical(g.resources[b.Ref.Slot])
		if obj == nil {
			continue
		}
		switch b.Kind {
		case ResourceImage:
			imgs = append(imgs, ImageBarrier{
				Image:    obj.image,
				SrcStage: b.SrcStage, SrcAccess: b.SrcAccess, SrcLayout: b.SrcLayout,
				DstStage: b.DstStage, DstAccess: b.DstAccess, DstLayout: b.DstLayout,
				SrcQueue: b.SrcQueue, DstQueue: b.DstQueue,
			})
		case ResourceBuffer:
			bufs = append(bufs, BufferBarrier{
				Buffer:   obj.buffer,
				SrcStage: b.SrcStage, SrcAccess: b.SrcAccess,
				DstStage: b.DstStage, DstAccess: b.DstAccess,
				SrcQueue: b.SrcQueue, DstQueue: b.DstQueue,
			})
		}
	}
	return imgs, bufs
}
