package wgpu

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rendergraph"
	"github.com/gogpu/rendergraph/internal/timeline"
)

// pollInterval is how often a blocked timeline wait asks the HAL for
// completed submissions.
const pollInterval = 200 * time.Microsecond

// Queue submits batches to the HAL queue. Submit does not wait for the GPU:
// command buffers are freed and signals applied once the HAL reports the
// submission complete, either on a later Submit or when a timeline wait
// needs the value.
type Queue struct {
	dev *Device
	hal hal.Queue

	submitMu sync.Mutex

	mu      sync.Mutex
	pending []inflight
}

// SubmitLock returns the lock graphs hold around Submit.
func (q *Queue) SubmitLock() sync.Locker { return &q.submitMu }

type inflight struct {
	label   string
	index   uint64
	bufs    []hal.CommandBuffer
	signals []rendergraph.TimelineSignal
}

// Submit waits for the submission's semaphores on the host and submits its
// command buffers. Waits on values this queue will signal in submission
// order are skipped.
func (q *Queue) Submit(s rendergraph.Submission) error {
	for _, w := range s.Waits {
		if q.ordered(w) {
			continue
		}
		if err := w.Semaphore.Wait(w.Value, q.dev.waitTimeout); err != nil {
			return fmt.Errorf("wgpu: submit %q: %w", s.Label, err)
		}
	}

	bufs := make([]hal.CommandBuffer, 0, len(s.CommandBuffers))
	for _, cb := range s.CommandBuffers {
		c, ok := cb.(*CommandBuffer)
		if !ok {
			return fmt.Errorf("%w: submit %q: command buffer %T", ErrForeignObject, s.Label, cb)
		}
		bufs = append(bufs, c.buf)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	index, err := q.hal.Submit(bufs)
	if err != nil {
		return fmt.Errorf("wgpu: submit %q: %w", s.Label, err)
	}
	q.dev.submissions.Add(1)
	q.pending = append(q.pending, inflight{label: s.Label, index: index, bufs: bufs, signals: s.Signals})
	return q.complete()
}

// ordered reports whether w is satisfied by a submission already queued
// here, which the HAL executes before anything submitted after it.
func (q *Queue) ordered(w rendergraph.TimelineWait) bool {
	t, ok := w.Semaphore.(*Timeline)
	if !ok || t.q != q {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok = q.signalIndex(t, w.Value)
	return ok
}

// signalIndex returns the submission index of the first in-flight
// submission that raises t to at least v. The caller holds mu.
func (q *Queue) signalIndex(t *Timeline, v uint64) (uint64, bool) {
	for _, f := range q.pending {
		for _, sig := range f.signals {
			if s, ok := sig.Semaphore.(*Timeline); ok && s == t && sig.Value >= v {
				return f.index, true
			}
		}
	}
	return 0, false
}

// complete retires every in-flight submission the HAL reports finished, in
// submission order. The caller holds mu.
func (q *Queue) complete() error {
	done := q.hal.PollCompleted()
	n := 0
	for ; n < len(q.pending); n++ {
		f := q.pending[n]
		if f.index > done {
			break
		}
		for _, b := range f.bufs {
			q.dev.dev.FreeCommandBuffer(b)
		}
		for _, sig := range f.signals {
			if err := sig.Semaphore.Signal(sig.Value); err != nil {
				q.pending = q.pending[n+1:]
				return fmt.Errorf("wgpu: signal %q: %w", f.label, err)
			}
		}
	}
	q.pending = q.pending[n:]
	return nil
}

// await blocks until no in-flight submission is left that raises t to v,
// retiring completed submissions as it goes.
func (q *Queue) await(t *Timeline, v uint64, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		q.mu.Lock()
		err := q.complete()
		index, pending := q.signalIndex(t, v)
		q.mu.Unlock()

		switch {
		case err != nil:
			return err
		case !pending:
			return nil
		case !time.Now().Before(deadline):
			return fmt.Errorf("%w: submission %d after %v", rendergraph.ErrWaitTimeout, index, timeout)
		}
		time.Sleep(pollInterval)
	}
}

// inFlight returns the number of submissions not yet retired.
func (q *Queue) inFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// drain waits for the device to go idle and retires everything.
func (q *Queue) drain() {
	if q.inFlight() == 0 {
		return
	}
	if err := q.dev.dev.WaitIdle(); err != nil {
		slogger().Warn("wgpu: wait idle failed", "err", err)
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.complete(); err != nil {
		slogger().Warn("wgpu: drain", "err", err)
	}
}

// Timeline is a timeline semaphore whose queue signals are applied when the
// HAL reports the submission complete. Wait drives that completion.
type Timeline struct {
	*timeline.Timeline
	q *Queue
}

// Wait blocks until the counter reaches v. When a queued submission will
// signal v, Wait polls the HAL for its completion; otherwise it waits for a
// host signal.
func (t *Timeline) Wait(v uint64, timeout time.Duration) error {
	if t.Value() >= v {
		return nil
	}
	start := time.Now()
	if err := t.q.await(t, v, timeout); err != nil {
		return fmt.Errorf("%s: %w", t.Label(), err)
	}
	return t.Timeline.Wait(v, timeout-time.Since(start))
}

var (
	_ rendergraph.Semaphore    = (*Timeline)(nil)
	_ rendergraph.SubmitLocker = (*Queue)(nil)
)
