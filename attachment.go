package rendergraph

import (
	"github.com/gogpu/gputypes"
)

// deriveAttachments fixes each attachment's load and store operations from
// the position of its pass in the order: load when an earlier pass touched
// the slot this frame, store when a later pass will read it or the slot
// outlives the frame.
func (g *Graph) deriveAttachments(order []*Pass) {
	first := make(map[uint32]int)
	last := make(map[uint32]int)
	for i, p := range order {
		for _, a := range passAccesses(p) {
			if _, ok := first[a.ref.Slot]; !ok {
				first[a.ref.Slot] = i
			}
			last[a.ref.Slot] = i
		}
	}
	keep := make(map[uint32]bool, len(g.outputs)+1)
	keep[g.backbuffer.Slot] = true
	for _, out := range g.outputs {
		keep[out.Slot] = true
	}

	for i, p := range order {
		if p.kind != PassGraphics {
			continue
		}
		for k := range p.attachments {
			att := &p.attachments[k]
			slot := att.Ref.Slot
			if first[slot] < i || att.ReadOnly {
				att.LoadOp = gputypes.LoadOpLoad
			} else {
				att.LoadOp = gputypes.LoadOpClear
			}
			lr := g.resources[slot]
			if last[slot] > i || keep[slot] || lr.external {
				att.StoreOp = gputypes.StoreOpStore
			} else {
				att.StoreOp = gputypes.StoreOpDiscard
			}
		}
	}
}

// renderScope resolves a graphics pass's attachments against the
// materialized images.
func (g *Graph) renderScope(p *Pass) (RenderScope, error) {
	scope := RenderScope{Label: p.label(), Width: p.renderW, Height: p.renderH}
	for _, att := range p.attachments {
		obj := g.physical(g.resources[att.Ref.Slot])
		if obj == nil || obj.kind != ResourceImage {
			return RenderScope{}, passError(p, "render scope", ErrInvalidPass)
		}
		if scope.Width == 0 || scope.Height == 0 {
			scope.Width, scope.Height = obj.idesc.Width, obj.idesc.Height
		}
		b := AttachmentBinding{
			Image:      obj.image,
			LoadOp:     att.LoadOp,
			StoreOp:    att.StoreOp,
			ClearColor: att.ClearColor,
			ClearDepth: att.ClearDepth,
		}
		switch {
		case att.Depth && att.ReadOnly:
			b.Layout = LayoutDepthStencilReadOnly
			scope.Depth = &b
		case att.Depth:
			b.Layout = LayoutDepthStencilAttachment
			scope.Depth = &b
		default:
			b.Layout = LayoutColorAttachment
			scope.Colors = append(scope.Colors, b)
		}
	}
	return scope, nil
}
