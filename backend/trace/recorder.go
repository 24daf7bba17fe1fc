package trace

import (
	"errors"

	"github.com/gogpu/rendergraph"
)

// Op identifies a recorded command.
type Op uint8

const (
	OpBarrier Op = iota
	OpBeginRenderScope
	OpEndRenderScope
	OpBindPipeline
	OpPushData
	OpDraw
	OpDispatch
	OpBeginTimestamp
	OpEndTimestamp
	OpBeginStatistics
	OpEndStatistics
)

var opNames = [...]string{
	"barrier", "begin-render", "end-render", "bind-pipeline", "push-data",
	"draw", "dispatch", "begin-timestamp", "end-timestamp", "begin-stats", "end-stats",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "unknown"
}

// Command is one recorded command. Only the fields of its Op are set.
type Command struct {
	Op       Op
	Label    string
	Images   []rendergraph.ImageBarrier
	Buffers  []rendergraph.BufferBarrier
	Scope    rendergraph.RenderScope
	Pipeline rendergraph.Pipeline
	Data     []byte
	Args     [4]uint32
}

// CommandBuffer is a finished recording.
type CommandBuffer struct {
	Label    string
	Queue    rendergraph.QueueKind
	Commands []Command
}

// Ops returns the ops of every command in order.
func (cb *CommandBuffer) Ops() []Op {
	ops := make([]Op, len(cb.Commands))
	for i, c := range cb.Commands {
		ops[i] = c.Op
	}
	return ops
}

// ErrFinished is returned when a recorder is finished twice.
var ErrFinished = errors.New("trace: recorder already finished")

// Recorder records commands into a CommandBuffer.
type Recorder struct {
	cb        *CommandBuffer
	inScope   bool
	finished  bool
	discarded bool
}

func (r *Recorder) add(c Command) { r.cb.Commands = append(r.cb.Commands, c) }

func (r *Recorder) Barrier(images []rendergraph.ImageBarrier, buffers []rendergraph.BufferBarrier) {
	r.add(Command{Op: OpBarrier, Images: images, Buffers: buffers})
}

func (r *Recorder) BeginRenderScope(scope rendergraph.RenderScope) {
	r.inScope = true
	r.add(Command{Op: OpBeginRenderScope, Label: scope.Label, Scope: scope})
}

func (r *Recorder) EndRenderScope() {
	r.inScope = false
	r.add(Command{Op: OpEndRenderScope})
}

// BindPipeline fails for a *Pipeline carrying an Err.
func (r *Recorder) BindPipeline(p rendergraph.Pipeline) error {
	if tp, ok := p.(*Pipeline); ok && tp.Err != nil {
		return tp.Err
	}
	r.add(Command{Op: OpBindPipeline, Pipeline: p})
	return nil
}

func (r *Recorder) PushData(data []byte) {
	r.add(Command{Op: OpPushData, Data: append([]byte(nil), data...)})
}

func (r *Recorder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	r.add(Command{Op: OpDraw, Args: [4]uint32{vertexCount, instanceCount, firstVertex, firstInstance}})
}

func (r *Recorder) Dispatch(x, y, z uint32) {
	r.add(Command{Op: OpDispatch, Args: [4]uint32{x, y, z}})
}

func (r *Recorder) BeginTimestamp(label string) {
	r.add(Command{Op: OpBeginTimestamp, Label: label})
}

func (r *Recorder) EndTimestamp(label string) { r.add(Command{Op: OpEndTimestamp, Label: label}) }

func (r *Recorder) BeginStatistics(label string) {
	r.add(Command{Op: OpBeginStatistics, Label: label})
}

func (r *Recorder) EndStatistics(label string) { r.add(Command{Op: OpEndStatistics, Label: label}) }

func (r *Recorder) Finish() (rendergraph.CommandBuffer, error) {
	if r.finished {
		return nil, ErrFinished
	}
	if r.inScope {
		return nil, errors.New("trace: finish inside a render scope")
	}
	r.finished = true
	return r.cb, nil
}

// Discard abandons the recording.
func (r *Recorder) Discard() {
	r.discarded = true
	r.cb.Commands = nil
}

// Discarded reports whether the recording was abandoned.
func (r *Recorder) Discarded() bool { return r.discarded }

// Pipeline is a stand-in pipeline. A non-nil Err makes binding fail.
type Pipeline struct {
	Name      string
	PushSize  uint32
	Workgroup [3]uint32
	Err       error
}

// Layout returns the declared push size and workgroup.
func (p *Pipeline) Layout() rendergraph.PipelineLayout {
	return rendergraph.PipelineLayout{PushDataSize: p.PushSize, Workgroup: p.Workgroup}
}

var (
	_ rendergraph.CommandRecorder = (*Recorder)(nil)
	_ rendergraph.Pipeline        = (*Pipeline)(nil)
)
