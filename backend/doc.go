// Package backend selects the device a render graph runs on.
//
// Device implementations register a factory from init():
//
//	import _ "github.com/gogpu/rendergraph/backend/trace"
//
// and callers open one by name, or the best available:
//
//	dev, closeDev, err := backend.Open(backend.BackendTrace)
//	if err != nil {
//	    return err
//	}
//	defer closeDev()
//
//	g, err := rendergraph.New(dev)
//
// Default prefers the wgpu HAL device and falls back to the trace device.
package backend
