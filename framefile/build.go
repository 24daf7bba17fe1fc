package framefile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendergraph"
	"github.com/gogpu/rendergraph/shader"
)

// Refs maps the resource and alias names of a frame to graph refs.
type Refs map[string]rendergraph.ResourceRef

// Build declares the frame on g. Pass bodies record the draws and
// dispatches named in the description.
func (f *Frame) Build(g *rendergraph.Graph) (refs Refs, err error) {
	defer func() {
		if r := recover(); r != nil {
			refs, err = nil, fmt.Errorf("%w: %v", ErrInvalidFrame, r)
		}
	}()

	refs = make(Refs, len(f.Resources))
	for _, r := range f.Resources {
		switch r.Kind {
		case "image":
			format, _ := parseFormat(r.Format)
			refs[r.Name] = g.CreateImage(r.Name, rendergraph.ImageInfo{
				Width:     r.Width,
				Height:    r.Height,
				Depth:     r.Depth,
				MipLevels: r.Mips,
				Format:    format,
			})
		case "buffer":
			loc, _ := parseLocality(r.Locality)
			refs[r.Name] = g.CreateBuffer(r.Name, rendergraph.BufferInfo{Size: r.Size, Locality: loc})
		}
	}

	modules := make(map[string]*shader.Module)
	for i := range f.Passes {
		p := &f.Passes[i]
		kind, _ := parsePassKind(p.Kind)
		b := g.AddPass(p.Name, kind).Group(p.Group)
		for _, a := range p.Access {
			ref := refs[a.Resource]
			declare(b, a, ref)
			if a.As != "" {
				refs[a.As] = b.AliasOutput(ref)
			}
		}
		if p.Shader != nil {
			pipe, err := f.pipeline(modules, p.Shader)
			if err != nil {
				return nil, fmt.Errorf("pass %q: %w", p.Name, err)
			}
			b.Pipeline(pipe)
		}
		for _, v := range p.Push {
			b.PushUint32(v)
		}
		b.Execute(passBody(p))
	}

	layout, _ := parseLayout(f.Backbuffer.Layout)
	g.SetBackbuffer(refs[f.Backbuffer.Resource], layout)
	for _, name := range f.Outputs {
		g.MarkOutput(refs[name])
	}
	return refs, nil
}

func declare(b *rendergraph.PassBuilder, a Access, ref rendergraph.ResourceRef) {
	var color gputypes.Color
	if a.Clear != nil {
		color = *a.Clear
	}
	switch a.Use {
	case "color":
		b.ColorWrite(ref, color)
	case "depth-write":
		b.DepthWrite(ref, a.ClearDepth)
	case "depth-read":
		b.DepthRead(ref)
	case "sampled":
		b.SampledRead(ref)
	case "storage-image-read":
		b.StorageImageRead(ref)
	case "storage-image-write":
		b.StorageImageWrite(ref)
	case "storage-buffer-read":
		b.StorageBufferRead(ref)
	case "storage-buffer-write":
		b.StorageBufferWrite(ref)
	case "uniform":
		b.UniformRead(ref)
	case "vertex":
		b.VertexBufferRead(ref)
	case "index":
		b.IndexBufferRead(ref)
	case "indirect":
		b.IndirectRead(ref)
	case "transfer-read":
		b.TransferRead(ref)
	case "transfer-write":
		b.TransferWrite(ref)
	case "host-read":
		b.HostRead(ref)
	case "host-write":
		b.HostWrite(ref)
	case "dummy":
		b.Dummy(ref)
	}
}

func (f *Frame) pipeline(modules map[string]*shader.Module, s *Shader) (*shader.Pipeline, error) {
	path := s.File
	if !filepath.IsAbs(path) && f.dir != "" {
		path = filepath.Join(f.dir, path)
	}
	mod, ok := modules[path]
	if !ok {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("framefile: %w", err)
		}
		mod, err = shader.Reflect(filepath.Base(path), string(src))
		if err != nil {
			return nil, err
		}
		modules[path] = mod
	}
	return mod.Pipeline(s.Entry)
}

func dims(v []uint32) (x, y, z uint32) {
	d := [3]uint32{1, 1, 1}
	copy(d[:], v)
	return d[0], d[1], d[2]
}

func passBody(p *Pass) rendergraph.PassFunc {
	draw := p.Draw
	dispatch, elements := p.Dispatch, p.Elements
	return func(ctx *rendergraph.PassContext) error {
		if draw > 0 {
			ctx.Draw(draw, 1, 0, 0)
		}
		if len(dispatch) > 0 {
			ctx.Dispatch(dims(dispatch))
		}
		if len(elements) > 0 {
			return ctx.DispatchElements(dims(elements))
		}
		return nil
	}
}
