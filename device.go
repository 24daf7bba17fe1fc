// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendergraph

import (
	"sync"
	"time"

	"github.com/gogpu/gputypes"
)

// Image is a materialized GPU image. Handle is the value patched into
// push data (a bindless index or native handle, depending on the backend).
type Image interface {
	Handle() uint64
}

// Buffer is a materialized GPU buffer. Handle is the value patched into
// push data (typically a device address).
type Buffer interface {
	Handle() uint64
}

// ImageDesc describes an image's requirements or a physical image's capabilities.
type ImageDesc struct {
	Label     string
	Width     uint32
	Height    uint32
	Depth     uint32
	MipLevels uint32
	Format    gputypes.TextureFormat
	Usage     gputypes.TextureUsage
}

// BufferDesc describes a buffer's requirements or a physical buffer's capabilities.
type BufferDesc struct {
	Label    string
	Size     uint64
	Usage    gputypes.BufferUsage
	Locality MemoryLocality
}

// Semaphore is a timeline semaphore: a monotonically increasing counter.
type Semaphore interface {
	// Value returns the last completed value.
	Value() uint64
	// Wait blocks until the counter reaches value or the timeout elapses.
	// A timed-out wait returns an error wrapping ErrWaitTimeout.
	Wait(value uint64, timeout time.Duration) error
	// Signal sets the counter from the host. Values must increase.
	Signal(value uint64) error
}

// TimelineWait is a wait on a semaphore reaching Value.
type TimelineWait struct {
	Semaphore Semaphore
	Value     uint64
}

// TimelineSignal sets a semaphore to Value when the work completes.
type TimelineSignal struct {
	Semaphore Semaphore
	Value     uint64
}

// CommandBuffer is a finished, submittable command sequence.
type CommandBuffer interface{}

// Submission is one batch handed to a queue.
type Submission struct {
	Label          string
	CommandBuffers []CommandBuffer
	Waits          []TimelineWait
	Signals        []TimelineSignal
}

// Queue submits command batches. The graph serializes submissions to the
// same Queue value across graphs and goroutines: through SubmitLock when the
// queue implements SubmitLocker, otherwise through a lock shared by every
// graph holding an equal Queue value.
type Queue interface {
	Submit(s Submission) error
}

// SubmitLocker is implemented by queues that own the lock guarding their
// submissions. Queues that are not comparable should implement it, since
// they cannot be shared between graphs any other way.
type SubmitLocker interface {
	SubmitLock() sync.Locker
}

// Device is the low-level collaborator the graph materializes resources
// with and records commands through.
type Device interface {
	CreateImage(desc ImageDesc) (Image, error)
	CreateBuffer(desc BufferDesc) (Buffer, error)
	DestroyImage(img Image)
	DestroyBuffer(buf Buffer)

	// Queue returns the queue of the given kind, or false if the device
	// has none. QueueGraphics must always be present.
	Queue(kind QueueKind) (Queue, bool)

	// CreateTimeline creates a timeline semaphore starting at zero. The
	// graph creates one per queue plus one host-signalled CPU timeline.
	CreateTimeline(label string) (Semaphore, error)

	// NewRecorder starts a command batch for the given queue.
	NewRecorder(queue QueueKind, label string) (CommandRecorder, error)
}

// ImageBarrier transitions a physical image between two accesses.
type ImageBarrier struct {
	Image     Image
	SrcStage  PipelineStage
	SrcAccess Access
	SrcLayout ImageLayout
	DstStage  PipelineStage
	DstAccess Access
	DstLayout ImageLayout
	SrcQueue  QueueKind
	DstQueue  QueueKind
}

// BufferBarrier orders accesses to a physical buffer.
type BufferBarrier struct {
	Buffer    Buffer
	SrcStage  PipelineStage
	SrcAccess Access
	DstStage  PipelineStage
	DstAccess Access
	SrcQueue  QueueKind
	DstQueue  QueueKind
}

// AttachmentBinding is a resolved render-scope attachment.
type AttachmentBinding struct {
	Image      Image
	Layout     ImageLayout
	LoadOp     gputypes.LoadOp
	StoreOp    gputypes.StoreOp
	ClearColor gputypes.Color
	ClearDepth float32
}

// RenderScope describes a render pass instance.
type RenderScope struct {
	Label  string
	Width  uint32
	Height uint32
	Colors []AttachmentBinding
	Depth  *AttachmentBinding
}

// CommandRecorder encodes commands for one batch. The graph calls the
// barrier, scope, query and finish methods; pass bodies use the rest.
type CommandRecorder interface {
	Barrier(images []ImageBarrier, buffers []BufferBarrier)
	BeginRenderScope(scope RenderScope)
	EndRenderScope()
	BindPipeline(p Pipeline) error
	PushData(data []byte)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	Dispatch(x, y, z uint32)
	BeginTimestamp(label string)
	EndTimestamp(label string)
	BeginStatistics(label string)
	EndStatistics(label string)
	Finish() (CommandBuffer, error)
}

// PipelineLayout is the reflected interface of a pipeline.
type PipelineLayout struct {
	// PushDataSize is the size in bytes of the push-data block.
	PushDataSize uint32
	// Workgroup is the compute workgroup size; zero for graphics pipelines.
	Workgroup [3]uint32
}

// Pipeline is an opaque compiled pipeline supplied by a shader provider.
type Pipeline interface {
	Layout() PipelineLayout
}
