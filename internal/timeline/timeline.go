// Package timeline implements an in-process timeline semaphore.
//
// A Timeline is a monotonically increasing counter. Waiters block until the
// counter reaches a target value or a timeout elapses; there is no polling.
// Backends use it for the host-signalled CPU timeline and for queues whose
// completion is observed on the CPU.
package timeline

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/rendergraph"
)

// ErrNotMonotonic is returned when a signal does not increase the counter.
var ErrNotMonotonic = errors.New("timeline: signal value must increase")

// Timeline is safe for concurrent use.
type Timeline struct {
	label string

	mu      sync.Mutex
	value   uint64
	changed chan struct{}
}

// New creates a timeline at zero.
func New(label string) *Timeline {
	return &Timeline{label: label, changed: make(chan struct{})}
}

// Label returns the debug label.
func (t *Timeline) Label() string { return t.label }

// Value returns the current counter.
func (t *Timeline) Value() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value
}

// Signal raises the counter to v and wakes all waiters.
func (t *Timeline) Signal(v uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v <= t.value {
		return fmt.Errorf("%w: %s at %d, got %d", ErrNotMonotonic, t.label, t.value, v)
	}
	t.value = v
	close(t.changed)
	t.changed = make(chan struct{})
	return nil
}

// Wait blocks until the counter is at least v. A non-positive timeout
// only checks the current value.
func (t *Timeline) Wait(v uint64, timeout time.Duration) error {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	for {
		t.mu.Lock()
		cur, changed := t.value, t.changed
		t.mu.Unlock()
		if cur >= v {
			return nil
		}
		if deadline == nil {
			return fmt.Errorf("%w: %s at %d, want %d", rendergraph.ErrWaitTimeout, t.label, cur, v)
		}
		select {
		case <-changed:
		case <-deadline:
			return fmt.Errorf("%w: %s at %d, want %d after %v", rendergraph.ErrWaitTimeout, t.label, cur, v, timeout)
		}
	}
}

var _ rendergraph.Semaphore = (*Timeline)(nil)
