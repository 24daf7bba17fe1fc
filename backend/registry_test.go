package backend

import (
	"errors"
	"testing"

	"github.com/gogpu/rendergraph"
)

func TestRegistryRegisterAndOpen(t *testing.T) {
	closed := false
	Register("test-open", func() (rendergraph.Device, func(), error) {
		return nil, func() { closed = true }, nil
	})
	defer Unregister("test-open")

	if !IsRegistered("test-open") {
		t.Fatal("test-open should be registered")
	}
	_, closeFn, err := Open("test-open")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	closeFn()
	if !closed {
		t.Error("close function was not returned")
	}
}

func TestRegistryOpenUnknown(t *testing.T) {
	_, _, err := Open("no-such-backend")
	if !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("Open(unknown) error = %v, want ErrBackendNotAvailable", err)
	}
}

func TestRegistryOpenNilClose(t *testing.T) {
	Register("test-nil-close", func() (rendergraph.Device, func(), error) {
		return nil, nil, nil
	})
	defer Unregister("test-nil-close")

	_, closeFn, err := Open("test-nil-close")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if closeFn == nil {
		t.Fatal("Open() must never return a nil close function")
	}
	closeFn()
}

func TestRegistryAvailableSorted(t *testing.T) {
	Register("zz-test", func() (rendergraph.Device, func(), error) { return nil, nil, nil })
	Register("aa-test", func() (rendergraph.Device, func(), error) { return nil, nil, nil })
	defer Unregister("zz-test")
	defer Unregister("aa-test")

	names := Available()
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("Available() not sorted: %v", names)
		}
	}
}

func TestDefaultFallsBack(t *testing.T) {
	saved := make(map[string]DeviceFactory)
	registryMu.Lock()
	for k, v := range factories {
		saved[k] = v
	}
	factories = make(map[string]DeviceFactory)
	registryMu.Unlock()
	defer func() {
		registryMu.Lock()
		factories = saved
		registryMu.Unlock()
	}()

	failed := errors.New("no adapter")
	Register(BackendWGPU, func() (rendergraph.Device, func(), error) { return nil, nil, failed })
	opened := ""
	Register(BackendTrace, func() (rendergraph.Device, func(), error) {
		opened = BackendTrace
		return nil, nil, nil
	})

	if _, _, err := Default(); err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if opened != BackendTrace {
		t.Errorf("Default() opened %q, want %q", opened, BackendTrace)
	}

	Unregister(BackendTrace)
	if _, _, err := Default(); !errors.Is(err, failed) {
		t.Errorf("Default() error = %v, want %v", err, failed)
	}
}
