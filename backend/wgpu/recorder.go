package wgpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rendergraph"
)

// ErrPipelineKind is returned when a compute pipeline is bound inside a
// render scope or a render pipeline outside one.
var ErrPipelineKind = errors.New("wgpu: pipeline kind does not match the current scope")

// Pipeline is a compiled HAL pipeline. Exactly one of Render and Compute
// is set.
type Pipeline struct {
	Label   string
	Render  hal.RenderPipeline
	Compute hal.ComputePipeline

	// PushGroup binds the device push ring with a dynamic offset at
	// PushGroupIndex. Nil if the pipeline takes no push data.
	PushGroup      hal.BindGroup
	PushGroupIndex uint32

	// Reflection is the pipeline interface, typically from shader.Reflect.
	Reflection rendergraph.PipelineLayout
}

// Layout returns the reflected pipeline interface.
func (p *Pipeline) Layout() rendergraph.PipelineLayout { return p.Reflection }

// CommandBuffer is a finished HAL command buffer.
type CommandBuffer struct {
	Label string
	buf   hal.CommandBuffer
}

// Recorder encodes one batch into a HAL command encoder. Compute passes are
// opened lazily by BindPipeline and closed by the next barrier, render scope
// or Finish.
type Recorder struct {
	dev   *Device
	label string
	enc   hal.CommandEncoder

	render   hal.RenderPassEncoder
	compute  hal.ComputePassEncoder
	pipeline *Pipeline

	finished bool
}

// Barrier records texture usage transitions for the image barriers.
// Buffer barriers need no commands; the HAL tracks buffer usage.
func (r *Recorder) Barrier(images []rendergraph.ImageBarrier, _ []rendergraph.BufferBarrier) {
	r.endCompute()
	if len(images) == 0 {
		return
	}
	barriers := make([]hal.TextureBarrier, 0, len(images))
	for _, b := range images {
		img, ok := b.Image.(*Image)
		if !ok {
			slogger().Warn("wgpu: barrier on foreign image", "batch", r.label)
			continue
		}
		barriers = append(barriers, hal.TextureBarrier{
			Texture: img.tex,
			Usage: hal.TextureUsageTransition{
				OldUsage: b.SrcLayout.TextureUsage(),
				NewUsage: b.DstLayout.TextureUsage(),
			},
		})
	}
	r.enc.TransitionTextures(barriers)
}

// BeginRenderScope begins a HAL render pass over the scope's attachments.
func (r *Recorder) BeginRenderScope(scope rendergraph.RenderScope) {
	r.endCompute()
	desc := &hal.RenderPassDescriptor{Label: scope.Label}
	for _, c := range scope.Colors {
		desc.ColorAttachments = append(desc.ColorAttachments, hal.RenderPassColorAttachment{
			View:       viewOf(c.Image),
			LoadOp:     c.LoadOp,
			StoreOp:    c.StoreOp,
			ClearValue: c.ClearColor,
		})
	}
	if d := scope.Depth; d != nil {
		desc.DepthStencilAttachment = &hal.RenderPassDepthStencilAttachment{
			View:              viewOf(d.Image),
			DepthLoadOp:       d.LoadOp,
			DepthStoreOp:      d.StoreOp,
			DepthClearValue:   d.ClearDepth,
			StencilLoadOp:     d.LoadOp,
			StencilStoreOp:    d.StoreOp,
			StencilClearValue: 0,
		}
	}
	r.render = r.enc.BeginRenderPass(desc)
}

func viewOf(img rendergraph.Image) hal.TextureView {
	if i, ok := img.(*Image); ok {
		return i.view
	}
	return nil
}

// EndRenderScope ends the current render pass.
func (r *Recorder) EndRenderScope() {
	if r.render == nil {
		return
	}
	r.render.End()
	r.render = nil
	r.pipeline = nil
}

// BindPipeline sets a render pipeline inside a render scope, or opens a
// compute pass and sets a compute pipeline outside one.
func (r *Recorder) BindPipeline(p rendergraph.Pipeline) error {
	pp, ok := p.(*Pipeline)
	if !ok || pp == nil {
		return fmt.Errorf("%w: pipeline %T", ErrForeignObject, p)
	}
	if r.render != nil {
		if pp.Render == nil {
			return fmt.Errorf("%w: %q has no render pipeline", ErrPipelineKind, pp.Label)
		}
		r.render.SetPipeline(pp.Render)
	} else {
		if pp.Compute == nil {
			return fmt.Errorf("%w: %q has no compute pipeline", ErrPipelineKind, pp.Label)
		}
		if r.compute == nil {
			r.compute = r.enc.BeginComputePass(&hal.ComputePassDescriptor{Label: r.label})
		}
		r.compute.SetPipeline(pp.Compute)
	}
	r.pipeline = pp
	return nil
}

// PushData uploads data to the push ring and binds it to the current
// pipeline's PushGroup.
func (r *Recorder) PushData(data []byte) {
	if r.pipeline == nil || r.pipeline.PushGroup == nil || r.dev.push == nil {
		slogger().Debug("wgpu: push data without push group dropped", "batch", r.label, "bytes", len(data))
		return
	}
	off, err := r.dev.push.write(data)
	if err != nil {
		slogger().Warn("wgpu: push data", "batch", r.label, "error", err)
		return
	}
	offsets := []uint32{off}
	switch {
	case r.render != nil:
		r.render.SetBindGroup(r.pipeline.PushGroupIndex, r.pipeline.PushGroup, offsets)
	case r.compute != nil:
		r.compute.SetBindGroup(r.pipeline.PushGroupIndex, r.pipeline.PushGroup, offsets)
	}
}

// Draw records a draw in the current render pass.
func (r *Recorder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	if r.render == nil {
		slogger().Warn("wgpu: draw outside render scope", "batch", r.label)
		return
	}
	r.render.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

// Dispatch records a dispatch in the current compute pass.
func (r *Recorder) Dispatch(x, y, z uint32) {
	if r.compute == nil {
		slogger().Warn("wgpu: dispatch without compute pipeline", "batch", r.label)
		return
	}
	r.compute.Dispatch(x, y, z)
}

// BeginTimestamp is a no-op; the HAL exposes no query sets to the graph.
func (r *Recorder) BeginTimestamp(string) {}

// EndTimestamp is a no-op.
func (r *Recorder) EndTimestamp(string) {}

// BeginStatistics is a no-op.
func (r *Recorder) BeginStatistics(string) {}

// EndStatistics is a no-op.
func (r *Recorder) EndStatistics(string) {}

// Finish ends encoding.
func (r *Recorder) Finish() (rendergraph.CommandBuffer, error) {
	if r.finished {
		return nil, fmt.Errorf("wgpu: batch %q already finished", r.label)
	}
	if r.render != nil {
		return nil, fmt.Errorf("wgpu: batch %q finished inside a render scope", r.label)
	}
	r.endCompute()
	r.finished = true
	buf, err := r.enc.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("wgpu: end encoding %q: %w", r.label, err)
	}
	return &CommandBuffer{Label: r.label, buf: buf}, nil
}

// Discard abandons the batch.
func (r *Recorder) Discard() {
	if r.finished {
		return
	}
	r.finished = true
	if r.render != nil {
		r.render.End()
		r.render = nil
	}
	r.endCompute()
	r.enc.DiscardEncoding()
}

func (r *Recorder) endCompute() {
	if r.compute == nil {
		return
	}
	r.compute.End()
	r.compute = nil
	r.pipeline = nil
}
