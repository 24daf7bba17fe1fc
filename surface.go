package rendergraph

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// Surface is a presentation engine handing out one image per frame.
type Surface interface {
	// Acquire returns the next image to render into.
	Acquire() (SurfaceFrame, error)
}

// SurfaceFrame is an acquired presentation image. The frame must wait on
// Acquire before touching Image and signal Present when it is done.
type SurfaceFrame struct {
	Image   Image
	Desc    ImageDesc
	Acquire TimelineWait
	Present TimelineSignal
}

// Waits returns the acquire wait for Execute.
func (f SurfaceFrame) Waits() []TimelineWait {
	if f.Acquire.Semaphore == nil {
		return nil
	}
	return []TimelineWait{f.Acquire}
}

// Signals returns the present signal for Execute.
func (f SurfaceFrame) Signals() []TimelineSignal {
	if f.Present.Semaphore == nil {
		return nil
	}
	return []TimelineSignal{f.Present}
}

// ImportSurface imports the acquired image under name and makes it the
// backbuffer, to be left in LayoutPresent.
func (g *Graph) ImportSurface(name string, f SurfaceFrame) ResourceRef {
	ref := g.ImportImage(name, f.Image, f.Desc, LayoutUndefined)
	g.SetBackbuffer(ref, LayoutPresent)
	return ref
}

// SurfaceImageDesc describes a presentable image in the provider's surface
// format.
func SurfaceImageDesc(provider gpucontext.DeviceProvider, width, height uint32) ImageDesc {
	format := gputypes.TextureFormatBGRA8Unorm
	if provider != nil {
		if f := provider.SurfaceFormat(); f != gputypes.TextureFormatUndefined {
			format = f
		}
	}
	return ImageDesc{
		Label:     "surface",
		Width:     width,
		Height:    height,
		Depth:     1,
		MipLevels: 1,
		Format:    format,
		Usage:     gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopyDst,
	}
}
