// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package trace implements a headless rendergraph.Device that executes
// nothing and records everything: allocations, commands and submissions.
//
// Submissions complete immediately. A submission first checks that every
// wait is already satisfied (bounded by the device wait timeout), then
// signals its semaphores. This mirrors queue semantics closely enough to
// catch ordering mistakes in tests and in the rgplan tool.
package trace

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gogpu/rendergraph"
	"github.com/gogpu/rendergraph/backend"
	"github.com/gogpu/rendergraph/internal/timeline"
)

func init() {
	backend.Register(backend.BackendTrace, func() (rendergraph.Device, func(), error) {
		return New(WithComputeQueue()), nil, nil
	})
}

func slogger() *slog.Logger { return rendergraph.Logger() }

// ErrInjected is the default error returned by injected failures.
var ErrInjected = errors.New("trace: injected failure")

// Image is a recorded image.
type Image struct {
	handle uint64
	desc   rendergraph.ImageDesc
}

// Handle returns the image id.
func (i *Image) Handle() uint64 { return i.handle }

// Desc returns the creation descriptor.
func (i *Image) Desc() rendergraph.ImageDesc { return i.desc }

// Buffer is a recorded buffer.
type Buffer struct {
	handle uint64
	desc   rendergraph.BufferDesc
}

// Handle returns the buffer id.
func (b *Buffer) Handle() uint64 { return b.handle }

// Desc returns the creation descriptor.
func (b *Buffer) Desc() rendergraph.BufferDesc { return b.desc }

// Submission is a recorded queue submission.
type Submission struct {
	Queue          rendergraph.QueueKind
	Label          string
	CommandBuffers []*CommandBuffer
	Waits          []rendergraph.TimelineWait
	Signals        []rendergraph.TimelineSignal
}

// Option configures a Device.
type Option func(*Device)

// WithComputeQueue gives the device an async compute queue.
func WithComputeQueue() Option {
	return func(d *Device) { d.queues[rendergraph.QueueCompute] = &Queue{dev: d, kind: rendergraph.QueueCompute} }
}

// WithWaitTimeout bounds how long a submission waits for its semaphores.
func WithWaitTimeout(timeout time.Duration) Option {
	return func(d *Device) { d.waitTimeout = timeout }
}

// Device is a recording device. It is safe for concurrent use.
type Device struct {
	queues      map[rendergraph.QueueKind]*Queue
	waitTimeout time.Duration

	mu          sync.Mutex
	next        uint64
	live        map[uint64]any
	created     int
	destroyed   int
	submissions []Submission

	failCreate   error
	failSubmit   map[rendergraph.QueueKind]error
	failRecorder error
}

// New creates a device with a graphics queue.
func New(opts ...Option) *Device {
	d := &Device{
		queues:      make(map[rendergraph.QueueKind]*Queue),
		waitTimeout: 100 * time.Millisecond,
		live:        make(map[uint64]any),
		failSubmit:  make(map[rendergraph.QueueKind]error),
	}
	d.queues[rendergraph.QueueGraphics] = &Queue{dev: d, kind: rendergraph.QueueGraphics}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// FailCreate makes subsequent image and buffer creation fail with err.
// A nil err clears the failure.
func (d *Device) FailCreate(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failCreate = err
}

// FailSubmit makes subsequent submissions to q fail with err.
func (d *Device) FailSubmit(q rendergraph.QueueKind, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.failSubmit, q)
		return
	}
	d.failSubmit[q] = err
}

// FailRecorder makes NewRecorder fail with err.
func (d *Device) FailRecorder(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failRecorder = err
}

func (d *Device) CreateImage(desc rendergraph.ImageDesc) (rendergraph.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failCreate != nil {
		return nil, d.failCreate
	}
	d.next++
	img := &Image{handle: d.next, desc: desc}
	d.live[img.handle] = img
	d.created++
	slogger().Debug("trace: create image", "label", desc.Label, "handle", img.handle,
		"width", desc.Width, "height", desc.Height)
	return img, nil
}

func (d *Device) CreateBuffer(desc rendergraph.BufferDesc) (rendergraph.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failCreate != nil {
		return nil, d.failCreate
	}
	d.next++
	buf := &Buffer{handle: d.next, desc: desc}
	d.live[buf.handle] = buf
	d.created++
	slogger().Debug("trace: create buffer", "label", desc.Label, "handle", buf.handle, "size", desc.Size)
	return buf, nil
}

func (d *Device) DestroyImage(img rendergraph.Image) {
	d.destroy(img.Handle())
}

func (d *Device) DestroyBuffer(buf rendergraph.Buffer) {
	d.destroy(buf.Handle())
}

func (d *Device) destroy(handle uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.live[handle]; !ok {
		slogger().Warn("trace: destroy of unknown object", "handle", handle)
		return
	}
	delete(d.live, handle)
	d.destroyed++
}

func (d *Device) Queue(kind rendergraph.QueueKind) (rendergraph.Queue, bool) {
	q, ok := d.queues[kind]
	if !ok {
		return nil, false
	}
	return q, true
}

func (d *Device) CreateTimeline(label string) (rendergraph.Semaphore, error) {
	return timeline.New(label), nil
}

func (d *Device) NewRecorder(queue rendergraph.QueueKind, label string) (rendergraph.CommandRecorder, error) {
	d.mu.Lock()
	fail := d.failRecorder
	d.mu.Unlock()
	if fail != nil {
		return nil, fail
	}
	if _, ok := d.queues[queue]; !ok {
		return nil, fmt.Errorf("trace: no %s queue", queue)
	}
	return &Recorder{cb: &CommandBuffer{Label: label, Queue: queue}}, nil
}

// Created returns how many images and buffers were created.
func (d *Device) Created() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.created
}

// Destroyed returns how many images and buffers were destroyed.
func (d *Device) Destroyed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.destroyed
}

// Live returns how many created objects are not destroyed yet.
func (d *Device) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live)
}

// Submissions returns the recorded submissions in order.
func (d *Device) Submissions() []Submission {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Submission, len(d.submissions))
	copy(out, d.submissions)
	return out
}

// Reset forgets recorded submissions.
func (d *Device) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.submissions = nil
}

// Queue is a recording queue.
type Queue struct {
	dev  *Device
	kind rendergraph.QueueKind
}

// Submit checks the waits, records the submission and signals.
func (q *Queue) Submit(s rendergraph.Submission) error {
	d := q.dev
	d.mu.Lock()
	fail := d.failSubmit[q.kind]
	d.mu.Unlock()
	if fail != nil {
		return fail
	}

	for _, w := range s.Waits {
		if err := w.Semaphore.Wait(w.Value, d.waitTimeout); err != nil {
			return fmt.Errorf("trace: %s: %w", s.Label, err)
		}
	}
	rec := Submission{Queue: q.kind, Label: s.Label, Waits: s.Waits, Signals: s.Signals}
	for _, cb := range s.CommandBuffers {
		tcb, ok := cb.(*CommandBuffer)
		if !ok {
			return fmt.Errorf("trace: %s: foreign command buffer %T", s.Label, cb)
		}
		rec.CommandBuffers = append(rec.CommandBuffers, tcb)
	}
	d.mu.Lock()
	d.submissions = append(d.submissions, rec)
	d.mu.Unlock()

	for _, sig := range s.Signals {
		if err := sig.Semaphore.Signal(sig.Value); err != nil {
			return fmt.Errorf("trace: %s: %w", s.Label, err)
		}
	}
	return nil
}

var (
	_ rendergraph.Device = (*Device)(nil)
	_ rendergraph.Queue  = (*Queue)(nil)
)
