package rendergraph

import (
	"fmt"
)

// PassContext is handed to a pass body. Device passes record through
// Recorder; host passes have no recorder.
type PassContext struct {
	g        *Graph
	pass     *Pass
	rec      CommandRecorder
	pipeline Pipeline
	push     []byte
}

// Pass returns the running pass.
func (c *PassContext) Pass() *Pass { return c.pass }

// Graph returns the graph the pass belongs to.
func (c *PassContext) Graph() *Graph { return c.g }

// Recorder returns the command recorder, or nil in a host pass.
func (c *PassContext) Recorder() CommandRecorder { return c.rec }

// Image returns the physical image behind ref.
func (c *PassContext) Image(ref ResourceRef) Image { return c.g.PhysicalImage(ref) }

// Buffer returns the physical buffer behind ref.
func (c *PassContext) Buffer(ref ResourceRef) Buffer { return c.g.PhysicalBuffer(ref) }

// ImageDesc returns the capabilities of the image behind ref.
func (c *PassContext) ImageDesc(ref ResourceRef) (ImageDesc, bool) { return c.g.ImageDesc(ref) }

// PushBytes returns the pass's push data with resource handles resolved.
func (c *PassContext) PushBytes() []byte { return c.push }

// BindPipeline binds p and records the pass's push data against it. A
// failed bind, or push data larger than the pipeline's push block, is
// reported as ErrInvalidPipeline.
func (c *PassContext) BindPipeline(p Pipeline) error {
	if c.rec == nil {
		return fmt.Errorf("%w: host pass %q cannot bind a pipeline", ErrInvalidPass, c.pass.name)
	}
	if p == nil {
		return fmt.Errorf("%w: nil pipeline", ErrInvalidPipeline)
	}
	if err := c.rec.BindPipeline(p); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPipeline, err)
	}
	c.pipeline = p
	if len(c.push) == 0 {
		return nil
	}
	if size := p.Layout().PushDataSize; uint32(len(c.push)) > size { //nolint:gosec // push data is small
		return fmt.Errorf("%w: %d bytes of push data exceed the %d byte block", ErrInvalidPipeline, len(c.push), size)
	}
	c.rec.PushData(c.push)
	return nil
}

// PushData records the resolved push data without binding a pipeline.
func (c *PassContext) PushData() {
	if c.rec != nil && len(c.push) > 0 {
		c.rec.PushData(c.push)
	}
}

// Draw records a non-indexed draw.
func (c *PassContext) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	if c.rec != nil {
		c.rec.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
	}
}

// Dispatch records a dispatch of x*y*z workgroups.
func (c *PassContext) Dispatch(x, y, z uint32) {
	if c.rec != nil {
		c.rec.Dispatch(x, y, z)
	}
}

// DispatchElements dispatches enough workgroups of the bound pipeline to
// cover x*y*z elements.
func (c *PassContext) DispatchElements(x, y, z uint32) error {
	if c.rec == nil {
		return fmt.Errorf("%w: host pass %q cannot dispatch", ErrInvalidPass, c.pass.name)
	}
	if c.pipeline == nil {
		return fmt.Errorf("%w: dispatch without a bound pipeline", ErrInvalidPipeline)
	}
	wg := c.pipeline.Layout().Workgroup
	if wg[0] == 0 || wg[1] == 0 || wg[2] == 0 {
		return fmt.Errorf("%w: pipeline has no workgroup size", ErrInvalidPipeline)
	}
	c.rec.Dispatch(divCeil(x, wg[0]), divCeil(y, wg[1]), divCeil(z, wg[2]))
	return nil
}

func divCeil(n, d uint32) uint32 {
	q := n / d
	if n%d != 0 {
		q++
	}
	return q
}
