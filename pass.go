// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendergraph

import (
	"github.com/gogpu/gputypes"
)

// ResourceAccess is one declared read or write of a resource by a pass.
type ResourceAccess struct {
	Ref    ResourceRef
	Kind   ResourceKind
	Access Access
	Stage  PipelineStage
	// Layout is the image layout required by the access. Unused for buffers.
	Layout ImageLayout
	// Dummy accesses order the pass against the resource without any
	// barrier being synthesized for them.
	Dummy bool
}

// Barrier is a synthesized transition between two accesses of the same
// physical slot. Ref is the version accessed by the consuming side.
type Barrier struct {
	Ref       ResourceRef
	Kind      ResourceKind
	SrcStage  PipelineStage
	SrcAccess Access
	SrcLayout ImageLayout
	DstStage  PipelineStage
	DstAccess Access
	DstLayout ImageLayout
	SrcQueue  QueueKind
	DstQueue  QueueKind
}

// CrossQueue reports whether the barrier transfers ownership between queues.
func (b Barrier) CrossQueue() bool { return b.SrcQueue != b.DstQueue }

// Attachment is a render attachment of a graphics pass. LoadOp and StoreOp
// are derived during Compile from the pass's position in the order.
type Attachment struct {
	Ref        ResourceRef
	Depth      bool
	ReadOnly   bool
	LoadOp     gputypes.LoadOp
	StoreOp    gputypes.StoreOp
	ClearColor gputypes.Color
	ClearDepth float32
}

// PassFunc is the body of a pass. Device passes record through the
// context's recorder; host passes run on the CPU at submission time.
type PassFunc func(ctx *PassContext) error

// Pass is one unit of declared work.
type Pass struct {
	name  string
	kind  PassKind
	group string
	index int

	queue QueueKind
	level int

	inputs  []ResourceAccess
	outputs []ResourceAccess
	// aliases are ids created by AliasOutput; the pass is their producer.
	aliases []ResourceRef

	barriers   []Barrier
	releases   []Barrier
	waits      []*Pass
	mustSignal bool

	attachments []Attachment
	renderW     uint32
	renderH     uint32

	push     []byte
	patches  []pushPatch
	pipeline Pipeline
	execute  PassFunc
}

// Name returns the pass name.
func (p *Pass) Name() string { return p.name }

// Kind returns the pass kind.
func (p *Pass) Kind() PassKind { return p.kind }

// Group returns the group tag.
func (p *Pass) Group() string { return p.group }

// Queue returns the assigned queue. Valid after Compile.
func (p *Pass) Queue() QueueKind { return p.queue }

// Level returns the dependency level computed by multi-queue assignment.
func (p *Pass) Level() int { return p.level }

// Inputs returns the declared reads.
func (p *Pass) Inputs() []ResourceAccess { return p.inputs }

// Outputs returns the declared writes.
func (p *Pass) Outputs() []ResourceAccess { return p.outputs }

// Barriers returns the barriers recorded before the pass body.
func (p *Pass) Barriers() []Barrier { return p.barriers }

// ReleaseBarriers returns the queue-release barriers recorded after the body.
func (p *Pass) ReleaseBarriers() []Barrier { return p.releases }

// Waits returns the passes on other queues this pass waits for.
func (p *Pass) Waits() []*Pass { return p.waits }

// MustSignal reports whether the pass ends its batch with a timeline signal.
func (p *Pass) MustSignal() bool { return p.mustSignal }

// Attachments returns the render attachments.
func (p *Pass) Attachments() []Attachment { return p.attachments }

func (p *Pass) label() string {
	if p.group == "" {
		return p.name
	}
	return p.group + "/" + p.name
}

func (p *Pass) resetCompiled() {
	p.queue = QueueGraphics
	p.level = 0
	p.barriers = p.barriers[:0]
	p.releases = p.releases[:0]
	p.waits = p.waits[:0]
	p.mustSignal = false
}

// PassBuilder declares a pass. Every method returns the builder.
type PassBuilder struct {
	g *Graph
	p *Pass
}

// AddPass registers a pass. Passes are ordered by their resource
// dependencies, not by declaration order.
func (g *Graph) AddPass(name string, kind PassKind) *PassBuilder {
	if g.compiled {
		misuse("AddPass %q after compile", name)
	}
	p := &Pass{name: name, kind: kind, index: len(g.passes)}
	g.passes = append(g.passes, p)
	return &PassBuilder{g: g, p: p}
}

// Pass returns the pass being built.
func (b *PassBuilder) Pass() *Pass { return b.p }

// Group sets the group tag used for batching labels and statistics.
func (b *PassBuilder) Group(tag string) *PassBuilder {
	b.p.group = tag
	return b
}

// Execute sets the pass body.
func (b *PassBuilder) Execute(fn PassFunc) *PassBuilder {
	b.p.execute = fn
	return b
}

// Pipeline binds p before the body runs. A failed bind fails the frame
// with ErrInvalidPipeline.
func (b *PassBuilder) Pipeline(p Pipeline) *PassBuilder {
	b.p.pipeline = p
	return b
}

// RenderArea overrides the render scope size derived from the first attachment.
func (b *PassBuilder) RenderArea(width, height uint32) *PassBuilder {
	b.p.renderW, b.p.renderH = width, height
	return b
}

// ColorWrite declares ref as a colour attachment.
func (b *PassBuilder) ColorWrite(ref ResourceRef, clear gputypes.Color, stage ...PipelineStage) *PassBuilder {
	b.requireGraphics("ColorWrite")
	b.image(ref, true, AccessColorAttachmentWrite, pick(stage, StageColorAttachmentOutput),
		LayoutColorAttachment, gputypes.TextureUsageRenderAttachment)
	b.p.attachments = append(b.p.attachments, Attachment{Ref: ref, ClearColor: clear})
	return b
}

// DepthWrite declares ref as a writable depth/stencil attachment.
func (b *PassBuilder) DepthWrite(ref ResourceRef, clearDepth float32, stage ...PipelineStage) *PassBuilder {
	b.requireGraphics("DepthWrite")
	b.image(ref, true, AccessDepthStencilRead|AccessDepthStencilWrite,
		pick(stage, StageEarlyFragmentTests|StageLateFragmentTests),
		LayoutDepthStencilAttachment, gputypes.TextureUsageRenderAttachment)
	b.p.attachments = append(b.p.attachments, Attachment{Ref: ref, Depth: true, ClearDepth: clearDepth})
	return b
}

// DepthRead declares ref as a read-only depth/stencil attachment.
func (b *PassBuilder) DepthRead(ref ResourceRef, stage ...PipelineStage) *PassBuilder {
	b.requireGraphics("DepthRead")
	b.image(ref, false, AccessDepthStencilRead,
		pick(stage, StageEarlyFragmentTests|StageLateFragmentTests),
		LayoutDepthStencilReadOnly, gputypes.TextureUsageRenderAttachment)
	b.p.attachments = append(b.p.attachments, Attachment{Ref: ref, Depth: true, ReadOnly: true})
	return b
}

// SampledRead declares a sampled image read.
func (b *PassBuilder) SampledRead(ref ResourceRef, stage ...PipelineStage) *PassBuilder {
	b.image(ref, false, AccessShaderRead, pick(stage, shaderStage(b.p.kind)),
		LayoutShaderReadOnly, gputypes.TextureUsageTextureBinding)
	return b
}

// StorageImageRead declares a storage image read.
func (b *PassBuilder) StorageImageRead(ref ResourceRef, stage ...PipelineStage) *PassBuilder {
	b.image(ref, false, AccessShaderRead, pick(stage, shaderStage(b.p.kind)),
		LayoutGeneral, gputypes.TextureUsageStorageBinding)
	return b
}

// StorageImageWrite declares a storage image write.
func (b *PassBuilder) StorageImageWrite(ref ResourceRef, stage ...PipelineStage) *PassBuilder {
	b.image(ref, true, AccessShaderWrite, pick(stage, shaderStage(b.p.kind)),
		LayoutGeneral, gputypes.TextureUsageStorageBinding)
	return b
}

// StorageBufferRead declares a storage buffer read.
func (b *PassBuilder) StorageBufferRead(ref ResourceRef, stage ...PipelineStage) *PassBuilder {
	b.buffer(ref, false, AccessShaderRead, pick(stage, shaderStage(b.p.kind)), gputypes.BufferUsageStorage)
	return b
}

// StorageBufferWrite declares a storage buffer write.
func (b *PassBuilder) StorageBufferWrite(ref ResourceRef, stage ...PipelineStage) *PassBuilder {
	b.buffer(ref, true, AccessShaderWrite, pick(stage, shaderStage(b.p.kind)), gputypes.BufferUsageStorage)
	return b
}

// UniformRead declares a uniform buffer read.
func (b *PassBuilder) UniformRead(ref ResourceRef, stage ...PipelineStage) *PassBuilder {
	b.buffer(ref, false, AccessUniformRead, pick(stage, shaderStage(b.p.kind)), gputypes.BufferUsageUniform)
	return b
}

// VertexBufferRead declares a vertex buffer read.
func (b *PassBuilder) VertexBufferRead(ref ResourceRef, stage ...PipelineStage) *PassBuilder {
	b.buffer(ref, false, AccessVertexAttributeRead, pick(stage, StageVertexInput), gputypes.BufferUsageVertex)
	return b
}

// IndexBufferRead declares an index buffer read.
func (b *PassBuilder) IndexBufferRead(ref ResourceRef, stage ...PipelineStage) *PassBuilder {
	b.buffer(ref, false, AccessIndexRead, pick(stage, StageVertexInput), gputypes.BufferUsageIndex)
	return b
}

// IndirectRead declares an indirect argument buffer read.
func (b *PassBuilder) IndirectRead(ref ResourceRef, stage ...PipelineStage) *PassBuilder {
	b.buffer(ref, false, AccessIndirectCommandRead, pick(stage, StageDrawIndirect), gputypes.BufferUsageIndirect)
	return b
}

// TransferRead declares ref as a copy source.
func (b *PassBuilder) TransferRead(ref ResourceRef, stage ...PipelineStage) *PassBuilder {
	if b.g.Kind(ref) == ResourceImage {
		b.image(ref, false, AccessTransferRead, pick(stage, StageTransfer), LayoutTransferSrc, gputypes.TextureUsageCopySrc)
	} else {
		b.buffer(ref, false, AccessTransferRead, pick(stage, StageTransfer), gputypes.BufferUsageCopySrc)
	}
	return b
}

// TransferWrite declares ref as a copy destination.
func (b *PassBuilder) TransferWrite(ref ResourceRef, stage ...PipelineStage) *PassBuilder {
	if b.g.Kind(ref) == ResourceImage {
		b.image(ref, true, AccessTransferWrite, pick(stage, StageTransfer), LayoutTransferDst, gputypes.TextureUsageCopyDst)
	} else {
		b.buffer(ref, true, AccessTransferWrite, pick(stage, StageTransfer), gputypes.BufferUsageCopyDst)
	}
	return b
}

// HostRead declares a CPU read of a buffer. The buffer is promoted to
// readback memory.
func (b *PassBuilder) HostRead(ref ResourceRef) *PassBuilder {
	b.buffer(ref, false, AccessHostRead, StageHost, gputypes.BufferUsageMapRead)
	b.g.promote(ref, MemoryReadback)
	return b
}

// HostWrite declares a CPU write of a buffer. The buffer is promoted to
// staging memory.
func (b *PassBuilder) HostWrite(ref ResourceRef) *PassBuilder {
	b.buffer(ref, true, AccessHostWrite, StageHost, gputypes.BufferUsageMapWrite)
	b.g.promote(ref, MemoryStaging)
	return b
}

// Dummy orders the pass after the producers of ref without touching it.
// No barrier is synthesized for a dummy access.
func (b *PassBuilder) Dummy(ref ResourceRef) *PassBuilder {
	b.g.checkRef(ref)
	b.checkOpen()
	b.p.inputs = append(b.p.inputs, ResourceAccess{Ref: ref, Kind: b.g.resources[ref.Slot].kind, Dummy: true})
	return b
}

// AliasOutput returns a new version of an output of this pass. Downstream
// passes read the alias, which keeps in-place transformation chains
// acyclic.
func (b *PassBuilder) AliasOutput(ref ResourceRef) ResourceRef {
	b.checkOpen()
	for _, out := range b.p.outputs {
		if out.Ref == ref {
			alias := b.g.Alias(ref)
			b.p.aliases = append(b.p.aliases, alias)
			return alias
		}
	}
	misuse("AliasOutput: %v is not an output of pass %q", ref, b.p.name)
	return ResourceRef{}
}

func (b *PassBuilder) image(ref ResourceRef, write bool, access Access, stage PipelineStage,
	layout ImageLayout, usage gputypes.TextureUsage) {
	b.g.checkRef(ref)
	b.checkOpen()
	lr := b.g.resources[ref.Slot]
	if lr.kind != ResourceImage {
		misuse("pass %q: image access to buffer %q", b.p.name, lr.name)
	}
	lr.imageUsage |= usage
	b.append(write, ResourceAccess{Ref: ref, Kind: ResourceImage, Access: access, Stage: stage, Layout: layout})
}

func (b *PassBuilder) buffer(ref ResourceRef, write bool, access Access, stage PipelineStage, usage gputypes.BufferUsage) {
	b.g.checkRef(ref)
	b.checkOpen()
	lr := b.g.resources[ref.Slot]
	if lr.kind != ResourceBuffer {
		misuse("pass %q: buffer access to image %q", b.p.name, lr.name)
	}
	lr.bufferUsage |= usage
	b.append(write, ResourceAccess{Ref: ref, Kind: ResourceBuffer, Access: access, Stage: stage})
}

func (b *PassBuilder) append(write bool, a ResourceAccess) {
	if write {
		b.p.outputs = append(b.p.outputs, a)
	} else {
		b.p.inputs = append(b.p.inputs, a)
	}
}

func (b *PassBuilder) checkOpen() {
	if b.g.compiled {
		misuse("pass %q: declaring an access after compile", b.p.name)
	}
}

func (b *PassBuilder) requireGraphics(op string) {
	if b.p.kind != PassGraphics {
		misuse("pass %q: %s on a %s pass", b.p.name, op, b.p.kind)
	}
}

func (g *Graph) promote(ref ResourceRef, loc MemoryLocality) {
	lr := g.resources[ref.Slot]
	if lr.locality == MemoryDevice {
		lr.locality = loc
	}
}

// shaderStage is the default stage of a shader access for each pass kind.
func shaderStage(kind PassKind) PipelineStage {
	switch kind {
	case PassGraphics:
		return StageVertexShader | StageFragmentShader
	case PassCompute:
		return StageComputeShader
	case PassTransfer:
		return StageTransfer
	case PassHost:
		return StageHost
	default:
		return StageAllCommands
	}
}

func pick(override []PipelineStage, def PipelineStage) PipelineStage {
	if len(override) > 0 && override[0] != StageNone {
		return override[0]
	}
	return def
}
