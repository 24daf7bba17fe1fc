package trace

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/rendergraph"
	"github.com/gogpu/rendergraph/backend"
	"github.com/gogpu/rendergraph/internal/timeline"
)

func TestRegistered(t *testing.T) {
	require.True(t, backend.IsRegistered(backend.BackendTrace))
	dev, closeDev, err := backend.Open(backend.BackendTrace)
	require.NoError(t, err)
	defer closeDev()
	_, ok := dev.Queue(rendergraph.QueueCompute)
	assert.True(t, ok)
}

func TestDeviceQueues(t *testing.T) {
	d := New()
	_, ok := d.Queue(rendergraph.QueueGraphics)
	assert.True(t, ok)
	_, ok = d.Queue(rendergraph.QueueCompute)
	assert.False(t, ok)
	_, err := d.NewRecorder(rendergraph.QueueCompute, "x")
	assert.Error(t, err)
}

func TestDeviceObjectAccounting(t *testing.T) {
	d := New()
	img, err := d.CreateImage(rendergraph.ImageDesc{Label: "a", Width: 4, Height: 4})
	require.NoError(t, err)
	buf, err := d.CreateBuffer(rendergraph.BufferDesc{Label: "b", Size: 16})
	require.NoError(t, err)
	assert.NotEqual(t, img.Handle(), buf.Handle())
	assert.Equal(t, "a", img.(*Image).Desc().Label)
	assert.Equal(t, 2, d.Live())

	d.DestroyImage(img)
	d.DestroyImage(img)
	d.DestroyBuffer(buf)
	assert.Equal(t, 2, d.Created())
	assert.Equal(t, 2, d.Destroyed())
	assert.Equal(t, 0, d.Live())

	d.FailCreate(ErrInjected)
	_, err = d.CreateImage(rendergraph.ImageDesc{})
	assert.ErrorIs(t, err, ErrInjected)
}

func TestRecorder(t *testing.T) {
	d := New()
	rec, err := d.NewRecorder(rendergraph.QueueGraphics, "batch")
	require.NoError(t, err)

	rec.BeginRenderScope(rendergraph.RenderScope{Label: "pass", Width: 8, Height: 8})
	require.NoError(t, rec.BindPipeline(&Pipeline{Name: "p"}))
	rec.Draw(3, 1, 0, 0)
	_, err = rec.Finish()
	require.Error(t, err, "finish inside a render scope")
	rec.EndRenderScope()

	cb, err := rec.Finish()
	require.NoError(t, err)
	tcb := cb.(*CommandBuffer)
	assert.Equal(t, []Op{OpBeginRenderScope, OpBindPipeline, OpDraw, OpEndRenderScope}, tcb.Ops())
	assert.Equal(t, "batch", tcb.Label)

	_, err = rec.Finish()
	assert.ErrorIs(t, err, ErrFinished)

	bad := errors.New("no shader")
	assert.ErrorIs(t, rec.BindPipeline(&Pipeline{Err: bad}), bad)
}

func TestQueueSubmitWaitsAndSignals(t *testing.T) {
	d := New(WithWaitTimeout(5 * time.Millisecond))
	q, _ := d.Queue(rendergraph.QueueGraphics)
	in := timeline.New("in")
	out := timeline.New("out")

	sub := rendergraph.Submission{
		Label:   "s",
		Waits:   []rendergraph.TimelineWait{{Semaphore: in, Value: 1}},
		Signals: []rendergraph.TimelineSignal{{Semaphore: out, Value: 2}},
	}
	err := q.Submit(sub)
	require.ErrorIs(t, err, rendergraph.ErrWaitTimeout)
	assert.Empty(t, d.Submissions())

	require.NoError(t, in.Signal(1))
	require.NoError(t, q.Submit(sub))
	assert.Equal(t, uint64(2), out.Value())
	require.Len(t, d.Submissions(), 1)

	d.FailSubmit(rendergraph.QueueGraphics, ErrInjected)
	assert.ErrorIs(t, q.Submit(rendergraph.Submission{}), ErrInjected)
	d.FailSubmit(rendergraph.QueueGraphics, nil)
	assert.NoError(t, q.Submit(rendergraph.Submission{}))

	d.Reset()
	assert.Empty(t, d.Submissions())
}

func TestQueueRejectsForeignCommandBuffer(t *testing.T) {
	d := New()
	q, _ := d.Queue(rendergraph.QueueGraphics)
	err := q.Submit(rendergraph.Submission{CommandBuffers: []rendergraph.CommandBuffer{"nope"}})
	assert.Error(t, err)
}
