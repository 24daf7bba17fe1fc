package rendergraph

import (
	"fmt"
	"sync"
	"time"
)

// stubDevice is a minimal in-package Device. Tests that need command
// inspection use backend/trace from the external test package.
type stubDevice struct {
	mu      sync.Mutex
	next    uint64
	created int
	compute bool
	queue   *stubQueue
}

func newStubDevice() *stubDevice { return &stubDevice{queue: &stubQueue{}} }

type stubObject struct{ handle uint64 }

func (o *stubObject) Handle() uint64 { return o.handle }

func (d *stubDevice) CreateImage(ImageDesc) (Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	d.created++
	return &stubObject{handle: d.next}, nil
}

func (d *stubDevice) CreateBuffer(BufferDesc) (Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	d.created++
	return &stubObject{handle: d.next}, nil
}

func (d *stubDevice) DestroyImage(Image)   {}
func (d *stubDevice) DestroyBuffer(Buffer) {}

func (d *stubDevice) Queue(kind QueueKind) (Queue, bool) {
	if kind == QueueGraphics || (kind == QueueCompute && d.compute) {
		return d.queue, true
	}
	return nil, false
}

func (d *stubDevice) CreateTimeline(string) (Semaphore, error) { return &stubSemaphore{}, nil }

func (d *stubDevice) NewRecorder(QueueKind, string) (CommandRecorder, error) {
	return stubRecorder{}, nil
}

type stubQueue struct{ submits int }

func (q *stubQueue) Submit(s Submission) error {
	q.submits++
	for _, sig := range s.Signals {
		if err := sig.Semaphore.Signal(sig.Value); err != nil {
			return err
		}
	}
	return nil
}

type stubSemaphore struct {
	mu    sync.Mutex
	value uint64
}

func (s *stubSemaphore) Value() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

func (s *stubSemaphore) Wait(v uint64, _ time.Duration) error {
	if s.Value() < v {
		return fmt.Errorf("%w: at %d, want %d", ErrWaitTimeout, s.Value(), v)
	}
	return nil
}

func (s *stubSemaphore) Signal(v uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v > s.value {
		s.value = v
	}
	return nil
}

type stubRecorder struct{}

func (stubRecorder) Barrier([]ImageBarrier, []BufferBarrier) {}
func (stubRecorder) BeginRenderScope(RenderScope)             {}
func (stubRecorder) EndRenderScope()                          {}
func (stubRecorder) BindPipeline(Pipeline) error              { return nil }
func (stubRecorder) PushData([]byte)                          {}
func (stubRecorder) Draw(uint32, uint32, uint32, uint32)      {}
func (stubRecorder) Dispatch(uint32, uint32, uint32)          {}
func (stubRecorder) BeginTimestamp(string)                    {}
func (stubRecorder) EndTimestamp(string)                      {}
func (stubRecorder) BeginStatistics(string)                   {}
func (stubRecorder) EndStatistics(string)                     {}
func (stubRecorder) Finish() (CommandBuffer, error)           { return struct{}{}, nil }
