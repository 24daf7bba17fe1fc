// Package rendergraph schedules one frame of GPU work.
//
// # Overview
//
// A frame is declared as passes that read and write logical resources.
// Compile orders the passes that reach the backbuffer, drops the rest,
// assigns queues, binds physical images and buffers, synthesizes barriers
// and derives attachment load/store operations. Execute records the passes
// into command batches and submits them with timeline semaphore waits and
// signals.
//
// # Quick Start
//
//	g, err := rendergraph.New(device, rendergraph.WithMultiQueue(true))
//	if err != nil {
//	    return err
//	}
//
//	for {
//	    frame, _ := surface.Acquire()
//	    bb := g.ImportSurface("swapchain", frame)
//	    hdr := g.CreateImage("hdr", rendergraph.ImageInfo{
//	        Format: gputypes.TextureFormatRGBA8Unorm, MatchOutput: true,
//	    })
//
//	    g.AddPass("scene", rendergraph.PassGraphics).
//	        ColorWrite(hdr, gputypes.Color{}).
//	        Execute(drawScene)
//	    g.AddPass("tonemap", rendergraph.PassGraphics).
//	        SampledRead(hdr).
//	        ColorWrite(bb, gputypes.Color{}).
//	        Execute(tonemap)
//
//	    if err := g.Compile(); err != nil {
//	        return err
//	    }
//	    if err := g.Execute(frame.Waits(), frame.Signals(), false); err != nil {
//	        return err
//	    }
//	    g.Reset()
//	}
//
// # Resources
//
// A ResourceRef is a version of a logical resource: its ID is unique per
// registration or alias and its Slot names the shared physical storage.
// Each version has one producer. In-place chains write a version and hand
// the alias returned by PassBuilder.AliasOutput to the next pass.
//
// Named resources keep their slot and physical object across Reset. An
// object is replaced only when declared requirements grow beyond it; the
// old object is destroyed once the frames-in-flight window has passed.
//
// # Queues
//
// Without multi-queue mode every device pass runs on the graphics queue.
// With it, a compute pass sharing its dependency level with one graphics
// pass moves to the async compute queue. Host passes run on the calling
// goroutine at submission time and advance a CPU timeline.
//
// # Errors
//
// Structural problems are returned as ErrCyclicalGraph or ErrInvalidPass
// from Compile. Execution failures (ErrInvalidPipeline, ErrInvalidSubmission,
// ErrWaitTimeout) abort the frame. Misuse, such as a ResourceRef from a
// previous frame, panics.
package rendergraph
