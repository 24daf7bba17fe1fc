// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendergraph

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gogpu/rendergraph/internal/arena"
)

// FrameStats summarizes the last compiled and executed frame.
type FrameStats struct {
	Frame           uint64
	Declared        int
	Live            int
	Culled          int
	AsyncPasses     int
	HostPasses      int
	Barriers        int
	ReleaseBarriers int
	Batches         int
	Allocations     int
	Retired         int
	Released        int
	Evicted         int
}

type queueTimeline struct {
	sem   Semaphore
	value uint64
}

func (t *queueTimeline) next() uint64 {
	t.value++
	return t.value
}

// Graph is one frame's pass graph plus the resources that persist across
// frames. A Graph is not safe for concurrent use; declaration, compilation
// and execution of a frame happen on one goroutine.
type Graph struct {
	device Device
	opts   graphOptions

	// resources is indexed by physical slot. Evicted slots are nil.
	resources []*logicalResource
	freeSlots []uint32
	names     map[string]uint32
	objects   arena.Arena[*physicalObject]
	// idSlots maps a ResourceRef.ID to its slot. Index 0 is unused.
	idSlots []uint32

	passes      []*Pass
	order       []*Pass
	backbuffer  ResourceRef
	finalLayout ImageLayout
	outputs     []ResourceRef
	final       *finalTransition
	endLayouts  map[uint32]ImageLayout
	compiled    bool
	executed    bool

	frame      uint64
	transients int

	timelines [queueKindCount]*queueTimeline
	stats     FrameStats

	locks   [queueKindCount]sync.Locker
	unlocks [queueKindCount]func()
}

// New creates a graph on device. The device must expose a graphics queue.
func New(device Device, opts ...GraphOption) (*Graph, error) {
	if device == nil {
		return nil, errors.New("rendergraph: nil device")
	}
	if _, ok := device.Queue(QueueGraphics); !ok {
		return nil, errors.New("rendergraph: device has no graphics queue")
	}
	o := defaultGraphOptions()
	for _, opt := range opts {
		opt(&o)
	}
	g := &Graph{
		device:  device,
		opts:    o,
		names:   make(map[string]uint32),
		idSlots: make([]uint32, 1),
	}
	for q := QueueGraphics; q < queueKindCount; q++ {
		if q != QueueHost {
			if _, ok := device.Queue(q); !ok {
				continue
			}
		}
		sem, err := device.CreateTimeline(q.String() + "-timeline")
		if err != nil {
			return nil, fmt.Errorf("rendergraph: create %s timeline: %w", q, err)
		}
		g.timelines[q] = &queueTimeline{sem: sem}
	}
	return g, nil
}

// Device returns the device the graph materializes resources on.
func (g *Graph) Device() Device { return g.device }

// Frame returns the frame counter, incremented by Reset.
func (g *Graph) Frame() uint64 { return g.frame }

// Timeline returns the semaphore the graph signals for the given queue,
// or nil if the device has no such queue.
func (g *Graph) Timeline(q QueueKind) Semaphore {
	if q >= queueKindCount || g.timelines[q] == nil {
		return nil
	}
	return g.timelines[q].sem
}

// SetBackbuffer designates the frame's output. finalLayout, when not
// LayoutUndefined, is the layout the image is left in after the frame.
func (g *Graph) SetBackbuffer(ref ResourceRef, finalLayout ImageLayout) {
	g.checkRef(ref)
	if g.compiled {
		misuse("SetBackbuffer after compile")
	}
	g.backbuffer = ref
	g.finalLayout = finalLayout
}

// Backbuffer returns the designated output.
func (g *Graph) Backbuffer() ResourceRef { return g.backbuffer }

// MarkOutput keeps the producers of ref live even if they do not reach
// the backbuffer, e.g. for a readback buffer.
func (g *Graph) MarkOutput(ref ResourceRef) {
	g.checkRef(ref)
	if g.compiled {
		misuse("MarkOutput after compile")
	}
	g.outputs = append(g.outputs, ref)
}

// Passes returns the passes declared this frame in declaration order.
func (g *Graph) Passes() []*Pass { return g.passes }

// Order returns the compiled execution order, or nil before Compile.
func (g *Graph) Order() []*Pass { return g.order }

// Compiled reports whether Compile succeeded since the last Reset.
func (g *Graph) Compiled() bool { return g.compiled }

// Stats returns statistics for the current frame.
func (g *Graph) Stats() FrameStats { return g.stats }

// Reset starts a new frame. The pass list and resource ids are cleared;
// named slots and their physical objects persist. Named resources not
// declared for the eviction window are released, and retired objects older
// than the frames-in-flight window are destroyed.
func (g *Graph) Reset() {
	g.frame++
	for i := range g.passes {
		g.passes[i] = nil
	}
	g.passes = g.passes[:0]
	g.order = nil
	g.backbuffer = ResourceRef{}
	g.finalLayout = LayoutUndefined
	g.outputs = nil
	g.final = nil
	g.endLayouts = nil
	g.compiled = false
	g.executed = false
	g.idSlots = g.idSlots[:1]
	g.transients = 0
	g.stats = FrameStats{Frame: g.frame}

	g.evict()
	g.stats.Released += g.objects.Collect(g.frame, g.opts.framesInFlight, g.release)
}

// Destroy releases every physical object the graph owns immediately. The
// caller must ensure the GPU is idle.
func (g *Graph) Destroy() {
	for _, lr := range g.resources {
		if lr != nil {
			g.retire(lr)
		}
	}
	g.objects.Drain(g.release)
	g.releaseQueueLocks()
	g.resources = nil
	g.freeSlots = nil
	g.names = make(map[string]uint32)
	g.passes = nil
	g.order = nil
	g.compiled = false
	g.idSlots = g.idSlots[:1]
}

func (g *Graph) evict() {
	var evicted []string
	for slot, lr := range g.resources {
		if lr == nil || g.frame-lr.lastFrame <= g.opts.evictAfter {
			continue
		}
		g.retire(lr)
		delete(g.names, lr.name)
		g.resources[slot] = nil
		g.freeSlots = append(g.freeSlots, uint32(slot)) //nolint:gosec // slot count fits uint32
		evicted = append(evicted, lr.name)
	}
	if len(evicted) > 0 {
		sort.Strings(evicted)
		g.stats.Evicted = len(evicted)
		Logger().Debug("rendergraph: evicted resources", "frame", g.frame, "names", evicted)
	}
	// Recycle low slots first for stable slot numbering.
	sort.Slice(g.freeSlots, func(i, j int) bool { return g.freeSlots[i] > g.freeSlots[j] })
}

func (g *Graph) release(obj *physicalObject) {
	if obj == nil || obj.external {
		return
	}
	switch obj.kind {
	case ResourceImage:
		g.device.DestroyImage(obj.image)
	case ResourceBuffer:
		g.device.DestroyBuffer(obj.buffer)
	}
}
