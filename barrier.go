// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendergraph

// slotAccess is the merged access of one pass to one physical slot.
type slotAccess struct {
	pass   *Pass
	ref    ResourceRef
	kind   ResourceKind
	access Access
	stage  PipelineStage
	layout ImageLayout
}

// finalTransition moves the backbuffer to the caller's final layout after
// its last access.
type finalTransition struct {
	barrier Barrier
	queue   QueueKind
	// after is the last pass touching the backbuffer, if it runs on
	// another queue than the transition.
	after *Pass
}

// FinalBarrier returns the synthesized backbuffer transition, if any.
func (g *Graph) FinalBarrier() (Barrier, bool) {
	if g.final == nil {
		return Barrier{}, false
	}
	return g.final.barrier, true
}

// synthesizeBarriers walks the accesses of every physical slot in
// execution order and emits, into each consuming pass, the transition from
// the previous access (or the slot's initial state) to the current one.
// Accesses on different queues additionally get a release barrier on the
// producer, a signal on the producer's batch and a wait on the consumer.
func (g *Graph) synthesizeBarriers(order []*Pass) {
	perSlot := make(map[uint32][]slotAccess)
	var slots []uint32
	for _, p := range order {
		for _, a := range passAccesses(p) {
			if _, seen := perSlot[a.ref.Slot]; !seen {
				slots = append(slots, a.ref.Slot)
			}
			perSlot[a.ref.Slot] = append(perSlot[a.ref.Slot], a)
		}
	}

	g.endLayouts = make(map[uint32]ImageLayout, len(slots))
	g.final = nil
	bbDone := false

	for _, slot := range slots {
		lr := g.resources[slot]
		prev := slotAccess{stage: StageTopOfPipe, access: AccessNone, layout: g.initialLayout(lr), kind: lr.kind}
		for _, cur := range perSlot[slot] {
			if cur.kind == ResourceImage && cur.pass.kind == PassHost {
				// The CPU cannot transition layouts; the image stays as it was.
				cur.layout = prev.layout
			}
			b := makeBarrier(prev, cur)
			cur.pass.barriers = append(cur.pass.barriers, b)
			if prev.pass != nil && prev.pass.queue != cur.pass.queue {
				if prev.pass.kind != PassHost {
					prev.pass.releases = append(prev.pass.releases, b)
				}
				prev.pass.mustSignal = true
				cur.pass.waits = appendUnique(cur.pass.waits, prev.pass)
			}
			prev = cur
		}
		if lr.kind == ResourceImage {
			g.endLayouts[slot] = prev.layout
		}
		if slot == g.backbuffer.Slot {
			bbDone = true
			g.finalTransition(lr, prev)
		}
	}
	if !bbDone {
		lr := g.resources[g.backbuffer.Slot]
		g.finalTransition(lr, slotAccess{stage: StageTopOfPipe, layout: g.initialLayout(lr), kind: lr.kind})
	}
}

func (g *Graph) finalTransition(lr *logicalResource, last slotAccess) {
	if lr.kind != ResourceImage || g.finalLayout == LayoutUndefined {
		return
	}
	ft := &finalTransition{queue: QueueGraphics}
	if last.pass != nil {
		if last.pass.queue == QueueHost {
			ft.after = last.pass
			last.pass.mustSignal = true
		} else {
			ft.queue = last.pass.queue
		}
	}
	ft.barrier = Barrier{
		Ref:       g.backbuffer,
		Kind:      ResourceImage,
		SrcStage:  last.stage,
		SrcAccess: last.access,
		SrcLayout: last.layout,
		DstStage:  StageBottomOfPipe,
		DstAccess: AccessNone,
		DstLayout: g.finalLayout,
		SrcQueue:  ft.queue,
		DstQueue:  ft.queue,
	}
	g.final = ft
	g.endLayouts[lr.slot] = g.finalLayout
}

func makeBarrier(prev, cur slotAccess) Barrier {
	b := Barrier{
		Ref:       cur.ref,
		Kind:      cur.kind,
		SrcStage:  prev.stage,
		SrcAccess: prev.access,
		DstStage:  cur.stage,
		DstAccess: cur.access,
		SrcQueue:  cur.pass.queue,
		DstQueue:  cur.pass.queue,
	}
	if prev.pass != nil {
		b.SrcQueue = prev.pass.queue
	}
	if cur.kind == ResourceImage {
		b.SrcLayout = prev.layout
		b.DstLayout = cur.layout
	}
	return b
}

// initialLayout is the layout the slot's first access in a frame
// transitions from: the layout the previous frame left the physical image
// in, or the declared initial layout for a fresh image.
func (g *Graph) initialLayout(lr *logicalResource) ImageLayout {
	if lr.kind != ResourceImage {
		return LayoutUndefined
	}
	if g.physical(lr) != nil && lr.layout != LayoutUndefined {
		return lr.layout
	}
	return lr.image.InitialLayout
}

// passAccesses merges a pass's non-dummy accesses per physical slot,
// outputs first. The first declared layout of a slot wins.
func passAccesses(p *Pass) []slotAccess {
	var out []slotAccess
	idx := make(map[uint32]int)
	add := func(a ResourceAccess) {
		if a.Dummy {
			return
		}
		if i, ok := idx[a.Ref.Slot]; ok {
			out[i].access |= a.Access
			out[i].stage |= a.Stage
			return
		}
		idx[a.Ref.Slot] = len(out)
		out = append(out, slotAccess{
			pass: p, ref: a.Ref, kind: a.Kind,
			access: a.Access, stage: a.Stage, layout: a.Layout,
		})
	}
	for _, a := range p.outputs {
		add(a)
	}
	for _, a := range p.inputs {
		add(a)
	}
	return out
}

// commitLayouts records the layouts the executed frame left images in.
func (g *Graph) commitLayouts() {
	for slot, layout := range g.endLayouts {
		if lr := g.resources[slot]; lr != nil {
			lr.layout = layout
		}
	}
}
