// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendergraph

import (
	"fmt"
	"sort"
)

// materialize binds a physical object to every slot the live passes touch.
// An existing object is kept while it satisfies the accumulated
// requirements; otherwise a replacement is created with the union of the
// old and new usages and the old object is retired.
func (g *Graph) materialize(order []*Pass) error {
	used := make(map[uint32]struct{})
	used[g.backbuffer.Slot] = struct{}{}
	for _, out := range g.outputs {
		used[out.Slot] = struct{}{}
	}
	for _, p := range order {
		for _, a := range p.inputs {
			used[a.Ref.Slot] = struct{}{}
		}
		for _, a := range p.outputs {
			used[a.Ref.Slot] = struct{}{}
		}
	}
	slots := make([]uint32, 0, len(used))
	for slot := range used {
		if slot != g.backbuffer.Slot {
			slots = append(slots, slot)
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	// The backbuffer goes first so MatchOutput images can read its extent.
	slots = append([]uint32{g.backbuffer.Slot}, slots...)

	for _, slot := range slots {
		lr := g.resources[slot]
		var err error
		switch lr.kind {
		case ResourceImage:
			err = g.materializeImage(lr)
		case ResourceBuffer:
			err = g.materializeBuffer(lr)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) imageRequirement(lr *logicalResource) (ImageDesc, error) {
	req := ImageDesc{
		Label:     lr.name,
		Width:     lr.image.Width,
		Height:    lr.image.Height,
		Depth:     lr.image.Depth,
		MipLevels: lr.image.MipLevels,
		Format:    lr.image.Format,
		Usage:     lr.imageUsage,
	}
	if lr.image.MatchOutput && lr.slot != g.backbuffer.Slot {
		bb := g.physical(g.resources[g.backbuffer.Slot])
		if bb == nil || bb.kind != ResourceImage {
			return ImageDesc{}, fmt.Errorf("rendergraph: image %q matches the output but the backbuffer is not an image", lr.name)
		}
		req.Width, req.Height = bb.idesc.Width, bb.idesc.Height
	}
	if req.Width == 0 || req.Height == 0 {
		return ImageDesc{}, fmt.Errorf("rendergraph: image %q has zero extent", lr.name)
	}
	return req, nil
}

func imageSatisfies(have, req ImageDesc) bool {
	return have.Width == req.Width && have.Height == req.Height && have.Depth == req.Depth &&
		have.Format == req.Format && have.MipLevels >= req.MipLevels &&
		have.Usage&req.Usage == req.Usage
}

func bufferSatisfies(have, req BufferDesc) bool {
	return have.Size >= req.Size && have.Usage&req.Usage == req.Usage && have.Locality == req.Locality
}

func (g *Graph) materializeImage(lr *logicalResource) error {
	req, err := g.imageRequirement(lr)
	if err != nil {
		return err
	}
	cur := g.physical(lr)
	if cur != nil && cur.external {
		if !imageSatisfies(cur.idesc, req) {
			Logger().Warn("rendergraph: imported image does not satisfy declared requirements",
				"name", lr.name, "usage", req.Usage, "have", cur.idesc.Usage)
		}
		return nil
	}
	if cur != nil && imageSatisfies(cur.idesc, req) {
		return nil
	}
	if cur != nil {
		req.Usage |= cur.idesc.Usage
	}
	img, err := g.device.CreateImage(req)
	if err != nil {
		return fmt.Errorf("rendergraph: materialize image %q: %w", lr.name, err)
	}
	g.rebind(lr, &physicalObject{kind: ResourceImage, image: img, idesc: req}, cur != nil)
	return nil
}

func (g *Graph) materializeBuffer(lr *logicalResource) error {
	req := BufferDesc{
		Label:    lr.name,
		Size:     lr.buffer.Size,
		Usage:    lr.bufferUsage,
		Locality: lr.locality,
	}
	if req.Size == 0 {
		return fmt.Errorf("rendergraph: buffer %q has zero size", lr.name)
	}
	cur := g.physical(lr)
	if cur != nil && cur.external {
		if !bufferSatisfies(cur.bdesc, req) {
			Logger().Warn("rendergraph: imported buffer does not satisfy declared requirements",
				"name", lr.name, "size", req.Size, "have", cur.bdesc.Size)
		}
		return nil
	}
	if cur != nil && bufferSatisfies(cur.bdesc, req) {
		return nil
	}
	if cur != nil && cur.bdesc.Locality == req.Locality {
		req.Usage |= cur.bdesc.Usage
		req.Size = max(req.Size, cur.bdesc.Size)
	}
	buf, err := g.device.CreateBuffer(req)
	if err != nil {
		return fmt.Errorf("rendergraph: materialize buffer %q: %w", lr.name, err)
	}
	g.rebind(lr, &physicalObject{kind: ResourceBuffer, buffer: buf, bdesc: req}, cur != nil)
	return nil
}

func (g *Graph) rebind(lr *logicalResource, obj *physicalObject, replaced bool) {
	g.retire(lr)
	lr.physical = g.objects.Insert(obj)
	lr.layout = LayoutUndefined
	g.stats.Allocations++
	if replaced {
		Logger().Info("rendergraph: rematerialized resource", "name", lr.name, "kind", lr.kind, "frame", g.frame)
	} else {
		Logger().Debug("rendergraph: materialized resource", "name", lr.name, "kind", lr.kind)
	}
}
