package backend

import (
	"errors"

	"github.com/gogpu/rendergraph"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not registered.
	ErrBackendNotAvailable = errors.New("backend: not available")
)

// Backend names.
const (
	// BackendWGPU opens a device through gogpu/wgpu HAL.
	BackendWGPU = "wgpu"

	// BackendTrace opens a headless device that records every command.
	BackendTrace = "trace"
)

// DeviceFactory opens a device for a render graph. The returned close
// function releases the device.
type DeviceFactory func() (rendergraph.Device, func(), error)
