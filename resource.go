// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendergraph

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendergraph/internal/arena"
)

// ResourceKind distinguishes images from buffers.
type ResourceKind uint8

const (
	ResourceImage ResourceKind = iota
	ResourceBuffer
)

// String returns the kind name.
func (k ResourceKind) String() string {
	if k == ResourceBuffer {
		return "buffer"
	}
	return "image"
}

// ResourceRef names one version of a logical resource. ID is unique per
// registration or alias within a frame; Slot identifies the physical
// storage shared by every alias. The zero ResourceRef is invalid.
type ResourceRef struct {
	ID   uint32
	Slot uint32
}

// IsValid reports whether r was produced by a graph.
func (r ResourceRef) IsValid() bool { return r.ID != 0 }

func (r ResourceRef) String() string { return fmt.Sprintf("#%d@%d", r.ID, r.Slot) }

// ImageInfo declares an image resource.
type ImageInfo struct {
	Width     uint32
	Height    uint32
	Depth     uint32
	MipLevels uint32
	Format    gputypes.TextureFormat
	// MatchOutput makes the image inherit width and height from the
	// backbuffer's physical image at materialization time.
	MatchOutput bool
	// InitialLayout is the layout the first access of a freshly created
	// image transitions from.
	InitialLayout ImageLayout
	// Usage is ORed into the usages accumulated from declared accesses.
	Usage gputypes.TextureUsage
}

// BufferInfo declares a buffer resource.
type BufferInfo struct {
	Size     uint64
	Locality MemoryLocality
	Usage    gputypes.BufferUsage
}

// logicalResource is the per-slot descriptor. Aliases share it.
type logicalResource struct {
	slot uint32
	kind ResourceKind
	name string

	image  ImageInfo
	buffer BufferInfo

	imageUsage  gputypes.TextureUsage
	bufferUsage gputypes.BufferUsage
	locality    MemoryLocality

	// physical is the arena handle of the bound object.
	physical arena.Handle
	external bool
	// layout is the layout the physical image was left in by the last
	// executed frame.
	layout ImageLayout

	lastFrame uint64
}

type physicalObject struct {
	kind   ResourceKind
	image  Image
	buffer Buffer
	idesc  ImageDesc
	bdesc  BufferDesc
	// external objects are owned by the caller and never destroyed.
	external bool
}

// CreateImage registers a named image. Registering a name that already has
// a slot rebinds the declaration to that slot, so its physical image is
// reused across frames. An empty name is keyed by declaration order within
// the frame.
func (g *Graph) CreateImage(name string, info ImageInfo) ResourceRef {
	if info.Depth == 0 {
		info.Depth = 1
	}
	if info.MipLevels == 0 {
		info.MipLevels = 1
	}
	lr := g.declare(name, ResourceImage)
	lr.image = info
	lr.imageUsage = info.Usage
	return g.newRef(lr.slot)
}

// CreateBuffer registers a named buffer. See CreateImage for name handling.
func (g *Graph) CreateBuffer(name string, info BufferInfo) ResourceRef {
	lr := g.declare(name, ResourceBuffer)
	lr.buffer = info
	lr.bufferUsage = info.Usage
	lr.locality = info.Locality
	return g.newRef(lr.slot)
}

// ImportImage binds an externally owned image to a named slot. The graph
// never destroys it. layout is the layout the image is currently in.
func (g *Graph) ImportImage(name string, img Image, desc ImageDesc, layout ImageLayout) ResourceRef {
	if img == nil {
		misuse("ImportImage %q: nil image", name)
	}
	lr := g.declare(name, ResourceImage)
	lr.image = ImageInfo{
		Width: desc.Width, Height: desc.Height, Depth: max(desc.Depth, 1),
		MipLevels: max(desc.MipLevels, 1), Format: desc.Format, InitialLayout: layout,
	}
	lr.imageUsage = 0
	g.bindExternal(lr, &physicalObject{kind: ResourceImage, image: img, idesc: desc, external: true})
	lr.layout = layout
	return g.newRef(lr.slot)
}

// ImportBuffer binds an externally owned buffer to a named slot.
func (g *Graph) ImportBuffer(name string, buf Buffer, desc BufferDesc) ResourceRef {
	if buf == nil {
		misuse("ImportBuffer %q: nil buffer", name)
	}
	lr := g.declare(name, ResourceBuffer)
	lr.buffer = BufferInfo{Size: desc.Size, Locality: desc.Locality}
	lr.bufferUsage = 0
	lr.locality = desc.Locality
	g.bindExternal(lr, &physicalObject{kind: ResourceBuffer, buffer: buf, bdesc: desc, external: true})
	return g.newRef(lr.slot)
}

// Alias returns a new version of ref bound to the same physical slot.
func (g *Graph) Alias(ref ResourceRef) ResourceRef {
	g.checkRef(ref)
	return g.newRef(ref.Slot)
}

// Kind returns the kind of the resource ref points to.
func (g *Graph) Kind(ref ResourceRef) ResourceKind {
	g.checkRef(ref)
	return g.resources[ref.Slot].kind
}

// Name returns the registered name of ref's slot.
func (g *Graph) Name(ref ResourceRef) string {
	g.checkRef(ref)
	return g.resources[ref.Slot].name
}

// PhysicalImage returns the image bound to ref's slot, or nil before
// materialization.
func (g *Graph) PhysicalImage(ref ResourceRef) Image {
	g.checkRef(ref)
	if obj := g.physical(g.resources[ref.Slot]); obj != nil {
		return obj.image
	}
	return nil
}

// PhysicalBuffer returns the buffer bound to ref's slot, or nil before
// materialization.
func (g *Graph) PhysicalBuffer(ref ResourceRef) Buffer {
	g.checkRef(ref)
	if obj := g.physical(g.resources[ref.Slot]); obj != nil {
		return obj.buffer
	}
	return nil
}

// ImageDesc returns the capabilities of the image bound to ref's slot.
func (g *Graph) ImageDesc(ref ResourceRef) (ImageDesc, bool) {
	g.checkRef(ref)
	obj := g.physical(g.resources[ref.Slot])
	if obj == nil || obj.kind != ResourceImage {
		return ImageDesc{}, false
	}
	return obj.idesc, true
}

// BufferDesc returns the capabilities of the buffer bound to ref's slot.
func (g *Graph) BufferDesc(ref ResourceRef) (BufferDesc, bool) {
	g.checkRef(ref)
	obj := g.physical(g.resources[ref.Slot])
	if obj == nil || obj.kind != ResourceBuffer {
		return BufferDesc{}, false
	}
	return obj.bdesc, true
}

func (g *Graph) declare(name string, kind ResourceKind) *logicalResource {
	if g.compiled {
		misuse("declaring resource %q after compile", name)
	}
	if name == "" {
		name = fmt.Sprintf("transient#%d", g.transients)
		g.transients++
	}
	if slot, ok := g.names[name]; ok {
		lr := g.resources[slot]
		if lr.kind != kind {
			misuse("resource %q re-registered as %s, was %s", name, kind, lr.kind)
		}
		lr.lastFrame = g.frame
		return lr
	}
	lr := &logicalResource{
		slot:      uint32(len(g.resources)), //nolint:gosec // slot count fits uint32
		kind:      kind,
		name:      name,
		lastFrame: g.frame,
	}
	if n := len(g.freeSlots); n > 0 {
		lr.slot = g.freeSlots[n-1]
		g.freeSlots = g.freeSlots[:n-1]
		g.resources[lr.slot] = lr
	} else {
		g.resources = append(g.resources, lr)
	}
	g.names[name] = lr.slot
	return lr
}

func (g *Graph) newRef(slot uint32) ResourceRef {
	id := uint32(len(g.idSlots)) //nolint:gosec // id count fits uint32
	g.idSlots = append(g.idSlots, slot)
	return ResourceRef{ID: id, Slot: slot}
}

// checkRef asserts that ref was produced by this graph in this frame.
func (g *Graph) checkRef(ref ResourceRef) {
	if ref.ID == 0 || int(ref.ID) >= len(g.idSlots) || g.idSlots[ref.ID] != ref.Slot {
		misuse("resource %v was not produced by this graph in this frame", ref)
	}
}

func (g *Graph) physical(lr *logicalResource) *physicalObject {
	if lr == nil {
		return nil
	}
	obj, ok := g.objects.Get(lr.physical)
	if !ok {
		return nil
	}
	return obj
}

func (g *Graph) bindExternal(lr *logicalResource, obj *physicalObject) {
	if cur := g.physical(lr); cur != nil && cur.external &&
		cur.image == obj.image && cur.buffer == obj.buffer {
		cur.idesc, cur.bdesc = obj.idesc, obj.bdesc
		lr.external = true
		return
	}
	g.retire(lr)
	lr.physical = g.objects.Insert(obj)
	lr.external = true
}

// retire unbinds the slot's object and queues it for delayed destruction.
func (g *Graph) retire(lr *logicalResource) {
	if lr.physical.IsZero() {
		return
	}
	if g.objects.Retire(lr.physical, g.frame) {
		g.stats.Retired++
	}
	lr.physical = arena.Handle{}
	lr.external = false
	lr.layout = LayoutUndefined
}
