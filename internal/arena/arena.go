// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package arena provides a generational slot arena with a delayed free list.
//
// Values are addressed by a [Handle] carrying the slot index and the slot's
// generation at insertion time. Retiring a handle invalidates it at once, but
// the value itself is only released after a configurable number of frames
// has passed, so work still in flight on the GPU may keep using it.
package arena

// Handle addresses a value in an Arena. The zero Handle is never valid.
type Handle struct {
	index uint32
	gen   uint32
}

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool { return h.gen == 0 }

type entry[T any] struct {
	value T
	gen   uint32
	alive bool
}

type retired[T any] struct {
	index uint32
	frame uint64
	value T
}

// Arena stores values of type T. It is not safe for concurrent use.
type Arena[T any] struct {
	entries []entry[T]
	free    []uint32
	retired []retired[T]
	live    int
}

// Insert stores v and returns its handle.
func (a *Arena[T]) Insert(v T) Handle {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.entries)) //nolint:gosec // arena size fits uint32
		a.entries = append(a.entries, entry[T]{})
	}
	e := &a.entries[idx]
	e.gen++
	e.value = v
	e.alive = true
	a.live++
	return Handle{index: idx, gen: e.gen}
}

// Get returns the value for h, or false if h is stale or zero.
func (a *Arena[T]) Get(h Handle) (T, bool) {
	var zero T
	if h.gen == 0 || int(h.index) >= len(a.entries) {
		return zero, false
	}
	e := &a.entries[h.index]
	if !e.alive || e.gen != h.gen {
		return zero, false
	}
	return e.value, true
}

// Retire invalidates h and queues its value for release once frame is old
// enough. Returns false if h was already stale.
func (a *Arena[T]) Retire(h Handle, frame uint64) bool {
	if _, ok := a.Get(h); !ok {
		return false
	}
	e := &a.entries[h.index]
	a.retired = append(a.retired, retired[T]{index: h.index, frame: frame, value: e.value})
	var zero T
	e.value = zero
	e.alive = false
	e.gen++
	a.live--
	return true
}

// Collect releases every retired value whose retirement frame is at least
// framesInFlight frames before frame. The slot becomes reusable afterwards.
// Returns the number of released values.
func (a *Arena[T]) Collect(frame, framesInFlight uint64, release func(T)) int {
	n := 0
	kept := a.retired[:0]
	for _, r := range a.retired {
		if frame-r.frame < framesInFlight {
			kept = append(kept, r)
			continue
		}
		if release != nil {
			release(r.value)
		}
		a.free = append(a.free, r.index)
		n++
	}
	for i := len(kept); i < len(a.retired); i++ {
		a.retired[i] = retired[T]{}
	}
	a.retired = kept
	return n
}

// Drain releases every retired value regardless of age.
func (a *Arena[T]) Drain(release func(T)) int {
	return a.Collect(^uint64(0), 0, release)
}

// Pending returns the number of retired values not yet released.
func (a *Arena[T]) Pending() int { return len(a.retired) }

// Len returns the number of live values.
func (a *Arena[T]) Len() int { return a.live }

// Each calls fn for every live value in slot order.
func (a *Arena[T]) Each(fn func(Handle, T)) {
	for i := range a.entries {
		e := &a.entries[i]
		if e.alive {
			fn(Handle{index: uint32(i), gen: e.gen}, e.value) //nolint:gosec // arena size fits uint32
		}
	}
}
