package backend

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gogpu/rendergraph"
)

var (
	registryMu sync.RWMutex
	factories  = make(map[string]DeviceFactory)
	// Priority order for Default (first available wins).
	backendPriority = []string{BackendWGPU, BackendTrace}
)

// Register registers a device factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it is replaced.
func Register(name string, factory DeviceFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = factory
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// Available returns the registered backend names, sorted.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[name]
	return ok
}

// Open opens a device from the named backend.
func Open(name string) (rendergraph.Device, func(), error) {
	registryMu.RLock()
	factory, ok := factories[name]
	registryMu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, name)
	}
	dev, closeFn, err := factory()
	if err != nil {
		return nil, nil, fmt.Errorf("backend %s: %w", name, err)
	}
	if closeFn == nil {
		closeFn = func() {}
	}
	return dev, closeFn, nil
}

// Default opens the first backend in priority order that succeeds, then
// any other registered backend.
func Default() (rendergraph.Device, func(), error) {
	tried := make(map[string]bool)
	var lastErr error
	for _, name := range append(backendPriority, Available()...) {
		if tried[name] || !IsRegistered(name) {
			continue
		}
		tried[name] = true
		dev, closeFn, err := Open(name)
		if err == nil {
			return dev, closeFn, nil
		}
		rendergraph.Logger().Debug("backend: open failed", "backend", name, "error", err)
		lastErr = err
	}
	if lastErr == nil {
		lastErr = ErrBackendNotAvailable
	}
	return nil, nil, lastErr
}
