package rendergraph_test

import (
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/rendergraph"
	"github.com/gogpu/rendergraph/backend/trace"
	"github.com/gogpu/rendergraph/internal/timeline"
)

func commands(subs []trace.Submission) []trace.Command {
	var out []trace.Command
	for _, s := range subs {
		for _, cb := range s.CommandBuffers {
			out = append(out, cb.Commands...)
		}
	}
	return out
}

func findOp(cmds []trace.Command, op trace.Op) (trace.Command, bool) {
	for _, c := range cmds {
		if c.Op == op {
			return c, true
		}
	}
	return trace.Command{}, false
}

func TestHostPassRequiresOption(t *testing.T) {
	g, _ := newGraph(t)
	out := g.CreateBuffer("out", rendergraph.BufferInfo{Size: 16})
	g.AddPass("cpu", rendergraph.PassHost).HostWrite(out)
	g.SetBackbuffer(out, rendergraph.LayoutUndefined)
	require.ErrorIs(t, g.Compile(), rendergraph.ErrInvalidPass)
}

func TestHostPassWaitsOnDevice(t *testing.T) {
	g, dev := newGraph(t, rendergraph.WithHostPasses(true))
	readback := g.CreateBuffer("readback", rendergraph.BufferInfo{Size: 256})
	result := g.CreateBuffer("result", rendergraph.BufferInfo{Size: 16})

	copyPass := g.AddPass("copy", rendergraph.PassTransfer).TransferWrite(readback).Pass()
	var ran bool
	host := g.AddPass("inspect", rendergraph.PassHost).
		HostRead(readback).
		HostWrite(result).
		Execute(func(ctx *rendergraph.PassContext) error {
			ran = true
			assert.Nil(t, ctx.Recorder())
			assert.NotNil(t, ctx.Buffer(readback))
			return nil
		}).
		Pass()
	g.SetBackbuffer(result, rendergraph.LayoutUndefined)

	require.NoError(t, g.Compile())
	assert.Equal(t, rendergraph.QueueHost, host.Queue())
	assert.True(t, copyPass.MustSignal())
	assert.Len(t, copyPass.ReleaseBarriers(), 1)
	assert.Equal(t, []*rendergraph.Pass{copyPass}, host.Waits())

	desc, ok := g.BufferDesc(readback)
	require.True(t, ok)
	assert.Equal(t, rendergraph.MemoryReadback, desc.Locality)

	require.NoError(t, g.Execute(nil, nil, false))
	assert.True(t, ran)
	assert.Len(t, dev.Submissions(), 1)
	assert.Equal(t, 1, g.Stats().HostPasses)
}

func TestDeviceWaitsOnHostPass(t *testing.T) {
	g, dev := newGraph(t, rendergraph.WithHostPasses(true))
	upload := g.CreateBuffer("upload", rendergraph.BufferInfo{Size: 64})
	bb := image(g, "bb")

	host := g.AddPass("fill", rendergraph.PassHost).HostWrite(upload).Pass()
	g.AddPass("copy", rendergraph.PassTransfer).TransferRead(upload).TransferWrite(bb)
	g.SetBackbuffer(bb, rendergraph.LayoutUndefined)
	require.NoError(t, g.Compile())

	assert.True(t, host.MustSignal())
	assert.Empty(t, host.ReleaseBarriers(), "the CPU records no barriers")

	require.NoError(t, g.Execute(nil, nil, false))
	subs := dev.Submissions()
	require.Len(t, subs, 1)
	require.Len(t, subs[0].Waits, 1)
	assert.Equal(t, g.Timeline(rendergraph.QueueHost), subs[0].Waits[0].Semaphore)
	assert.Equal(t, uint64(1), g.Timeline(rendergraph.QueueHost).Value())
}

func TestHostPassInheritsLayout(t *testing.T) {
	g, _ := newGraph(t, rendergraph.WithHostPasses(true))
	img := image(g, "img")
	out := g.CreateBuffer("out", rendergraph.BufferInfo{Size: 4})

	g.AddPass("draw", rendergraph.PassGraphics).ColorWrite(img, gputypes.Color{})
	host := g.AddPass("peek", rendergraph.PassHost).SampledRead(img).HostWrite(out).Pass()
	g.SetBackbuffer(out, rendergraph.LayoutUndefined)
	require.NoError(t, g.Compile())

	for _, b := range host.Barriers() {
		if b.Kind == rendergraph.ResourceImage {
			assert.Equal(t, b.SrcLayout, b.DstLayout)
			assert.Equal(t, rendergraph.LayoutColorAttachment, b.DstLayout)
		}
	}
}

func TestSynchronousExecute(t *testing.T) {
	g, _ := newGraph(t)
	out := g.CreateBuffer("out", rendergraph.BufferInfo{Size: 64})
	g.AddPass("compute", rendergraph.PassCompute).StorageBufferWrite(out)
	g.SetBackbuffer(out, rendergraph.LayoutUndefined)
	require.NoError(t, g.Compile())

	require.NoError(t, g.Execute(nil, nil, true))
	assert.Equal(t, uint64(1), g.Timeline(rendergraph.QueueGraphics).Value())
	assert.Equal(t, uint64(1), g.Timeline(rendergraph.QueueHost).Value())
}

func TestExternalSemaphores(t *testing.T) {
	g, dev := newGraph(t, rendergraph.WithMultiQueue(true))
	acquire := timeline.New("acquire")
	present := timeline.New("present")
	require.NoError(t, acquire.Signal(1))

	buildAsync(g)
	require.NoError(t, g.Compile())
	require.NoError(t, g.Execute(
		[]rendergraph.TimelineWait{{Semaphore: acquire, Value: 1}},
		[]rendergraph.TimelineSignal{{Semaphore: present, Value: 1}},
		false,
	))

	subs := dev.Submissions()
	require.Len(t, subs, 4, "a join batch carries the signal across queues")
	assert.Contains(t, subs[0].Waits, rendergraph.TimelineWait{Semaphore: acquire, Value: 1})
	assert.Contains(t, subs[1].Waits, rendergraph.TimelineWait{Semaphore: acquire, Value: 1})
	last := subs[3]
	assert.Equal(t, rendergraph.QueueGraphics, last.Queue)
	assert.Contains(t, last.Waits, rendergraph.TimelineWait{Semaphore: g.Timeline(rendergraph.QueueCompute), Value: 1})
	assert.Contains(t, last.Signals, rendergraph.TimelineSignal{Semaphore: present, Value: 1})
	assert.Equal(t, uint64(1), present.Value())
}

func TestExternalSemaphoresWithoutDeviceWork(t *testing.T) {
	g, dev := newGraph(t, rendergraph.WithHostPasses(true))
	out := g.CreateBuffer("out", rendergraph.BufferInfo{Size: 4})
	g.AddPass("cpu", rendergraph.PassHost).HostWrite(out)
	g.SetBackbuffer(out, rendergraph.LayoutUndefined)
	require.NoError(t, g.Compile())

	done := timeline.New("done")
	require.NoError(t, g.Execute(nil, []rendergraph.TimelineSignal{{Semaphore: done, Value: 5}}, false))
	require.Len(t, dev.Submissions(), 1)
	assert.Equal(t, uint64(5), done.Value())
}

func TestWaitTimeoutFailsFrame(t *testing.T) {
	dev := trace.New(trace.WithWaitTimeout(10 * time.Millisecond))
	g, err := rendergraph.New(dev)
	require.NoError(t, err)
	bb := image(g, "bb")
	g.AddPass("draw", rendergraph.PassGraphics).ColorWrite(bb, gputypes.Color{})
	g.SetBackbuffer(bb, rendergraph.LayoutUndefined)
	require.NoError(t, g.Compile())

	never := timeline.New("never")
	err = g.Execute([]rendergraph.TimelineWait{{Semaphore: never, Value: 1}}, nil, false)
	require.ErrorIs(t, err, rendergraph.ErrInvalidSubmission)
	require.ErrorIs(t, err, rendergraph.ErrWaitTimeout)
	assert.Empty(t, dev.Submissions())

	// The failed frame's signal value is handed out again.
	g.Reset()
	bb = image(g, "bb")
	g.AddPass("draw", rendergraph.PassGraphics).ColorWrite(bb, gputypes.Color{})
	g.SetBackbuffer(bb, rendergraph.LayoutUndefined)
	require.NoError(t, g.Compile())
	require.NoError(t, g.Execute(nil, nil, true))
	assert.Equal(t, uint64(1), g.Timeline(rendergraph.QueueGraphics).Value())
}

func TestSubmitFailureAbortsFrame(t *testing.T) {
	g, dev := newGraph(t)
	bb := image(g, "bb")
	g.AddPass("draw", rendergraph.PassGraphics).ColorWrite(bb, gputypes.Color{})
	g.SetBackbuffer(bb, rendergraph.LayoutUndefined)
	require.NoError(t, g.Compile())

	lost := errors.New("device lost")
	dev.FailSubmit(rendergraph.QueueGraphics, lost)
	err := g.Execute(nil, nil, false)
	require.ErrorIs(t, err, rendergraph.ErrInvalidSubmission)
	require.ErrorIs(t, err, lost)
}

func TestPushDataAndDispatchElements(t *testing.T) {
	g, dev := newGraph(t)
	particles := g.CreateBuffer("particles", rendergraph.BufferInfo{Size: 4096})
	pipe := &trace.Pipeline{Name: "integrate", PushSize: 16, Workgroup: [3]uint32{64, 1, 1}}

	g.AddPass("integrate", rendergraph.PassCompute).
		StorageBufferWrite(particles).
		Pipeline(pipe).
		PushUint32(100).
		PushRef(particles).
		Execute(func(ctx *rendergraph.PassContext) error {
			return ctx.DispatchElements(100, 1, 1)
		})
	g.SetBackbuffer(particles, rendergraph.LayoutUndefined)
	require.NoError(t, g.Compile())
	require.NoError(t, g.Execute(nil, nil, false))

	cmds := commands(dev.Submissions())
	assert.Equal(t, []trace.Op{trace.OpBarrier, trace.OpBindPipeline, trace.OpPushData, trace.OpDispatch},
		dev.Submissions()[0].CommandBuffers[0].Ops())

	push, ok := findOp(cmds, trace.OpPushData)
	require.True(t, ok)
	require.Len(t, push.Data, 16)
	assert.Equal(t, uint32(100), binary.LittleEndian.Uint32(push.Data))
	assert.Equal(t, g.PhysicalBuffer(particles).Handle(), binary.LittleEndian.Uint64(push.Data[8:]))

	dispatch, ok := findOp(cmds, trace.OpDispatch)
	require.True(t, ok)
	assert.Equal(t, [4]uint32{2, 1, 1, 0}, dispatch.Args)
}

func TestInvalidPipeline(t *testing.T) {
	tests := []struct {
		name string
		pipe *trace.Pipeline
	}{
		{"bind fails", &trace.Pipeline{Err: errors.New("missing shader"), PushSize: 8}},
		{"push too large", &trace.Pipeline{PushSize: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newGraph(t)
			out := g.CreateBuffer("out", rendergraph.BufferInfo{Size: 16})
			g.AddPass("bad", rendergraph.PassCompute).
				StorageBufferWrite(out).
				Pipeline(tt.pipe).
				PushUint32(1)
			g.SetBackbuffer(out, rendergraph.LayoutUndefined)
			require.NoError(t, g.Compile())

			err := g.Execute(nil, nil, false)
			require.ErrorIs(t, err, rendergraph.ErrInvalidPipeline)
			var pe *rendergraph.PassError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, "bad", pe.Pass)
		})
	}
}

func TestPassBodyErrorDiscardsBatch(t *testing.T) {
	g, dev := newGraph(t)
	bb := image(g, "bb")
	var rec *trace.Recorder
	boom := errors.New("boom")
	g.AddPass("draw", rendergraph.PassGraphics).
		ColorWrite(bb, gputypes.Color{}).
		Execute(func(ctx *rendergraph.PassContext) error {
			rec = ctx.Recorder().(*trace.Recorder)
			return boom
		})
	g.SetBackbuffer(bb, rendergraph.LayoutUndefined)
	require.NoError(t, g.Compile())

	err := g.Execute(nil, nil, false)
	require.ErrorIs(t, err, boom)
	require.NotNil(t, rec)
	assert.True(t, rec.Discarded())
	assert.Empty(t, dev.Submissions())
}

func TestTimestampAndStatisticsScopes(t *testing.T) {
	g, dev := newGraph(t, rendergraph.WithTimestamps(true), rendergraph.WithStatistics(true))
	bb := image(g, "bb")
	g.AddPass("draw", rendergraph.PassGraphics).
		Group("main").
		ColorWrite(bb, gputypes.Color{}).
		Execute(func(ctx *rendergraph.PassContext) error {
			ctx.Draw(3, 1, 0, 0)
			return nil
		})
	g.SetBackbuffer(bb, rendergraph.LayoutUndefined)
	require.NoError(t, g.Compile())
	require.NoError(t, g.Execute(nil, nil, false))

	cb := dev.Submissions()[0].CommandBuffers[0]
	assert.Equal(t, []trace.Op{
		trace.OpBarrier,
		trace.OpBeginTimestamp, trace.OpBeginStatistics,
		trace.OpBeginRenderScope, trace.OpDraw, trace.OpEndRenderScope,
		trace.OpEndStatistics, trace.OpEndTimestamp,
	}, cb.Ops())
	assert.Equal(t, "main/draw", cb.Commands[1].Label)

	scope := cb.Commands[3].Scope
	assert.Equal(t, uint32(64), scope.Width)
	require.Len(t, scope.Colors, 1)
	assert.Equal(t, gputypes.LoadOpClear, scope.Colors[0].LoadOp)
}

func TestConcurrentGraphsShareQueue(t *testing.T) {
	dev := trace.New()
	const graphs = 4
	var wg sync.WaitGroup
	errs := make(chan error, graphs)
	for range graphs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, err := rendergraph.New(dev)
			if err != nil {
				errs <- err
				return
			}
			for range 10 {
				buf := g.CreateBuffer("out", rendergraph.BufferInfo{Size: 64})
				g.AddPass("work", rendergraph.PassCompute).StorageBufferWrite(buf)
				g.SetBackbuffer(buf, rendergraph.LayoutUndefined)
				if err := g.Compile(); err != nil {
					errs <- err
					return
				}
				if err := g.Execute(nil, nil, true); err != nil {
					errs <- err
					return
				}
				g.Reset()
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.Len(t, dev.Submissions(), graphs*10)
}

func TestSurfaceFrame(t *testing.T) {
	g, dev := newGraph(t)
	acquire := timeline.New("acquire")
	present := timeline.New("present")
	require.NoError(t, acquire.Signal(3))

	swap, err := dev.CreateImage(rendergraph.SurfaceImageDesc(nil, 320, 240))
	require.NoError(t, err)
	frame := rendergraph.SurfaceFrame{
		Image:   swap,
		Desc:    rendergraph.SurfaceImageDesc(nil, 320, 240),
		Acquire: rendergraph.TimelineWait{Semaphore: acquire, Value: 3},
		Present: rendergraph.TimelineSignal{Semaphore: present, Value: 3},
	}

	bb := g.ImportSurface("swapchain", frame)
	g.AddPass("draw", rendergraph.PassGraphics).ColorWrite(bb, gputypes.Color{})
	require.NoError(t, g.Compile())

	final, ok := g.FinalBarrier()
	require.True(t, ok)
	assert.Equal(t, rendergraph.LayoutPresent, final.DstLayout)
	assert.Equal(t, gputypes.StoreOpStore, g.Order()[0].Attachments()[0].StoreOp)

	require.NoError(t, g.Execute(frame.Waits(), frame.Signals(), false))
	assert.Equal(t, uint64(3), present.Value())
	assert.Same(t, swap, g.PhysicalImage(bb))

	g.Destroy()
	assert.Equal(t, 0, dev.Destroyed(), "imported images are never destroyed")
}
