// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Vulkan is the HAL backend Open selects by default.
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/rendergraph"
	"github.com/gogpu/rendergraph/backend"
	"github.com/gogpu/rendergraph/internal/timeline"
)

func init() {
	backend.Register(backend.BackendWGPU, func() (rendergraph.Device, func(), error) {
		d, err := Open(gputypes.BackendVulkan)
		if err != nil {
			return nil, nil, err
		}
		return d, d.Close, nil
	})
}

func slogger() *slog.Logger { return rendergraph.Logger() }

const (
	defaultWaitTimeout = 5 * time.Second
	defaultPushRing    = 64 << 10

	// PushAlignment is the offset alignment of push data in the push ring.
	PushAlignment = 256
)

var (
	// ErrNoAdapter is returned by Open when the HAL backend reports no adapters.
	ErrNoAdapter = errors.New("wgpu: no GPU adapters found")

	// ErrForeignObject is returned when an object created by another device
	// is passed to this one.
	ErrForeignObject = errors.New("wgpu: object does not belong to this backend")
)

// Option configures a Device.
type Option func(*Device)

// WithWaitTimeout bounds host-side semaphore waits during submission.
func WithWaitTimeout(timeout time.Duration) Option {
	return func(d *Device) { d.waitTimeout = timeout }
}

// WithPushRing sets the size in bytes of the push data ring. Zero disables
// push data.
func WithPushRing(size uint64) Option {
	return func(d *Device) { d.pushSize = size }
}

// Image is a HAL texture with its default view.
type Image struct {
	handle uint64
	desc   rendergraph.ImageDesc
	tex    hal.Texture
	view   hal.TextureView
}

// Handle returns the image's bindless slot.
func (i *Image) Handle() uint64 { return i.handle }

// Texture returns the HAL texture.
func (i *Image) Texture() hal.Texture { return i.tex }

// View returns the default view covering every mip level.
func (i *Image) View() hal.TextureView { return i.view }

// Desc returns the creation descriptor.
func (i *Image) Desc() rendergraph.ImageDesc { return i.desc }

// Buffer is a HAL buffer.
type Buffer struct {
	handle uint64
	desc   rendergraph.BufferDesc
	buf    hal.Buffer
}

// Handle returns the buffer's bindless slot.
func (b *Buffer) Handle() uint64 { return b.handle }

// Raw returns the HAL buffer.
func (b *Buffer) Raw() hal.Buffer { return b.buf }

// Stats counts device activity.
type Stats struct {
	Images      int
	Buffers     int
	Submissions int
	InFlight    int
}

// Device adapts a HAL device to rendergraph.Device. It is safe for
// concurrent use.
type Device struct {
	dev         hal.Device
	queue       *Queue
	waitTimeout time.Duration
	pushSize    uint64
	push        *pushRing
	release     func()

	next        atomic.Uint64
	images      atomic.Int64
	buffers     atomic.Int64
	submissions atomic.Int64

	closeOnce sync.Once
}

// Open creates a standalone device on the given HAL backend, preferring a
// discrete or integrated GPU.
func Open(kind gputypes.Backend, opts ...Option) (*Device, error) {
	b, ok := hal.GetBackend(kind)
	if !ok {
		return nil, fmt.Errorf("%w: hal backend %v", backend.ErrBackendNotAvailable, kind)
	}
	instance, err := b.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("wgpu: open device: %w", err)
	}

	d, err := Wrap(openDev.Device, openDev.Queue, opts...)
	if err != nil {
		openDev.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	d.release = func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	slogger().Info("wgpu: device opened", "adapter", selected.Info.Name)
	return d, nil
}

// FromProvider wraps a device shared by a host application. The provider
// must implement HalDevice() any and HalQueue() any returning hal.Device
// and hal.Queue. The device is not destroyed by Close.
func FromProvider(provider any, opts ...Option) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("wgpu: provider does not expose HAL types")
	}
	dev, ok := hp.HalDevice().(hal.Device)
	if !ok || dev == nil {
		return nil, fmt.Errorf("wgpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("wgpu: provider HalQueue is not hal.Queue")
	}
	return Wrap(dev, queue, opts...)
}

// Wrap adapts an existing HAL device and queue. The caller keeps ownership
// of both.
func Wrap(dev hal.Device, queue hal.Queue, opts ...Option) (*Device, error) {
	d := &Device{
		dev:         dev,
		waitTimeout: defaultWaitTimeout,
		pushSize:    defaultPushRing,
	}
	for _, opt := range opts {
		opt(d)
	}

	d.queue = &Queue{dev: d, hal: queue}

	if d.pushSize > 0 {
		buf, err := dev.CreateBuffer(&hal.BufferDescriptor{
			Label: "rendergraph_push_ring",
			Size:  d.pushSize,
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return nil, fmt.Errorf("wgpu: create push ring: %w", err)
		}
		d.push = &pushRing{queue: queue, buf: buf, size: d.pushSize}
	}
	return d, nil
}

// Close waits for in-flight submissions, then releases the device's own
// objects and, for devices created by Open, the HAL device itself. Images
// and buffers must be destroyed first.
func (d *Device) Close() {
	d.closeOnce.Do(func() {
		d.queue.drain()
		if d.push != nil {
			d.dev.DestroyBuffer(d.push.buf)
		}
		if d.release != nil {
			d.release()
		}
	})
}

// HAL returns the underlying HAL device.
func (d *Device) HAL() hal.Device { return d.dev }

// PushBuffer returns the push ring buffer, or nil if push data is disabled.
// Pipelines bind it with a dynamic offset in their PushGroup.
func (d *Device) PushBuffer() hal.Buffer {
	if d.push == nil {
		return nil
	}
	return d.push.buf
}

// Stats returns live object and submission counts.
func (d *Device) Stats() Stats {
	return Stats{
		Images:      int(d.images.Load()),
		Buffers:     int(d.buffers.Load()),
		Submissions: int(d.submissions.Load()),
		InFlight:    d.queue.inFlight(),
	}
}

// CreateImage creates a texture and its default view.
func (d *Device) CreateImage(desc rendergraph.ImageDesc) (rendergraph.Image, error) {
	dim := gputypes.TextureDimension2D
	layers := uint32(1)
	if desc.Depth > 1 {
		dim = gputypes.TextureDimension3D
		layers = desc.Depth
	}
	mips := desc.MipLevels
	if mips == 0 {
		mips = 1
	}

	tex, err := d.dev.CreateTexture(&hal.TextureDescriptor{
		Label: desc.Label,
		Size: hal.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: layers,
		},
		MipLevelCount: mips,
		SampleCount:   1,
		Dimension:     dim,
		Format:        desc.Format,
		Usage:         desc.Usage,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create texture %q: %w", desc.Label, err)
	}

	view, err := d.dev.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:     desc.Label + " (default view)",
		Format:    gputypes.TextureFormatUndefined,
		Dimension: gputypes.TextureViewDimensionUndefined,
		Aspect:    gputypes.TextureAspectAll,
	})
	if err != nil {
		d.dev.DestroyTexture(tex)
		return nil, fmt.Errorf("wgpu: create view %q: %w", desc.Label, err)
	}

	d.images.Add(1)
	return &Image{handle: d.next.Add(1), desc: desc, tex: tex, view: view}, nil
}

// CreateBuffer creates a buffer. Host-visible localities add the mapping
// and copy usages they need.
func (d *Device) CreateBuffer(desc rendergraph.BufferDesc) (rendergraph.Buffer, error) {
	usage := desc.Usage
	switch desc.Locality {
	case rendergraph.MemoryStaging:
		usage |= gputypes.BufferUsageMapWrite | gputypes.BufferUsageCopySrc
	case rendergraph.MemoryReadback:
		usage |= gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst
	}

	buf, err := d.dev.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create buffer %q: %w", desc.Label, err)
	}
	d.buffers.Add(1)
	return &Buffer{handle: d.next.Add(1), desc: desc, buf: buf}, nil
}

// DestroyImage destroys the view and texture.
func (d *Device) DestroyImage(img rendergraph.Image) {
	i, ok := img.(*Image)
	if !ok || i == nil {
		slogger().Warn("wgpu: destroy of foreign image", "type", fmt.Sprintf("%T", img))
		return
	}
	d.dev.DestroyTextureView(i.view)
	d.dev.DestroyTexture(i.tex)
	d.images.Add(-1)
}

// DestroyBuffer destroys the buffer.
func (d *Device) DestroyBuffer(buf rendergraph.Buffer) {
	b, ok := buf.(*Buffer)
	if !ok || b == nil {
		slogger().Warn("wgpu: destroy of foreign buffer", "type", fmt.Sprintf("%T", buf))
		return
	}
	d.dev.DestroyBuffer(b.buf)
	d.buffers.Add(-1)
}

// Queue returns the device queue for QueueGraphics. The HAL has no
// separate compute queue.
func (d *Device) Queue(kind rendergraph.QueueKind) (rendergraph.Queue, bool) {
	if kind != rendergraph.QueueGraphics {
		return nil, false
	}
	return d.queue, true
}

// CreateTimeline creates a timeline bound to the device queue. Signals
// submitted on the queue land once the HAL reports the work complete.
func (d *Device) CreateTimeline(label string) (rendergraph.Semaphore, error) {
	return &Timeline{Timeline: timeline.New(label), q: d.queue}, nil
}

// NewRecorder begins a command encoder for the graphics queue.
func (d *Device) NewRecorder(kind rendergraph.QueueKind, label string) (rendergraph.CommandRecorder, error) {
	if kind != rendergraph.QueueGraphics {
		return nil, fmt.Errorf("wgpu: no %s queue", kind)
	}
	enc, err := d.dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := enc.BeginEncoding(label); err != nil {
		return nil, fmt.Errorf("wgpu: begin encoding: %w", err)
	}
	return &Recorder{dev: d, label: label, enc: enc}, nil
}

// pushRing hands out PushAlignment-aligned ranges of the push buffer and
// uploads data through the queue. Ranges wrap when the ring is exhausted.
type pushRing struct {
	mu    sync.Mutex
	queue hal.Queue
	buf   hal.Buffer
	size  uint64
	next  uint64
}

func (r *pushRing) write(data []byte) (uint32, error) {
	n := uint64(len(data))
	if n > r.size {
		return 0, fmt.Errorf("wgpu: push data of %d bytes exceeds ring of %d", n, r.size)
	}

	r.mu.Lock()
	off := (r.next + PushAlignment - 1) &^ (PushAlignment - 1)
	if off+n > r.size {
		off = 0
	}
	r.next = off + n
	r.mu.Unlock()

	if err := r.queue.WriteBuffer(r.buf, off, data); err != nil {
		return 0, fmt.Errorf("wgpu: write push data: %w", err)
	}
	return uint32(off), nil
}
