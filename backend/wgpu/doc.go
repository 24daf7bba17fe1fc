// Package wgpu implements rendergraph.Device on top of the gogpu/wgpu HAL.
//
// The HAL exposes a single queue per device, so only QueueGraphics is
// available and compute passes run there. Image barriers become texture usage
// transitions (the WebGPU model has no explicit layouts); buffer hazards are
// tracked by the HAL itself.
//
// Queue.Submit does not block on the GPU. The HAL reports completion by
// submission index, so signals are applied when a completed submission is
// retired: on the next Submit, or when a wait on a semaphore from
// CreateTimeline needs the value. Such a wait polls the HAL until the
// submission finishes, which makes a synchronous Execute or a host pass
// waiting on device work cost a short polling loop on the calling thread.
// Semaphores from CreateTimeline only ever hold completed values. Waits on
// values this queue signals are satisfied by submission order and skipped.
//
// # Push data
//
// WebGPU has no push constants. Push data is written to a uniform ring
// buffer owned by the device and bound with a dynamic offset through the
// pipeline's PushGroup. Pipelines without a PushGroup ignore push data.
//
// # Opening a device
//
//	dev, err := wgpu.Open(gputypes.BackendVulkan)
//	if err != nil {
//	    return err
//	}
//	defer dev.Close()
//
// Applications that already own a HAL device (for example through gogpu)
// use FromProvider or Wrap instead.
package wgpu
