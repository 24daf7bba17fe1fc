// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package shader reflects WGSL modules into the pipeline interface the
// render graph needs: the push-data block size and each entry point's
// workgroup size.
//
// Reflection runs the naga front end (parse and lower to IR) and reads the
// IR directly. No backend code is generated unless SPIRV is called.
//
//	mod, err := shader.Reflect("blur", src)
//	if err != nil {
//	    return err
//	}
//	pipe, err := mod.Pipeline("main")
//	...
//	g.AddPass("blur", rendergraph.PassCompute).Pipeline(pipe)
package shader

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"

	"github.com/gogpu/rendergraph"
)

func slogger() *slog.Logger { return rendergraph.Logger() }

var (
	// ErrNoEntryPoint is returned when the requested entry point does not exist.
	ErrNoEntryPoint = errors.New("shader: no such entry point")

	// ErrMultiplePushBlocks is returned when a module declares more than one
	// push_constant variable.
	ErrMultiplePushBlocks = errors.New("shader: more than one push_constant block")

	// ErrUnsupportedStage is returned for entry points of stages a graph pass
	// cannot run, such as task and mesh shaders.
	ErrUnsupportedStage = errors.New("shader: unsupported stage")
)

// Stage is the shader stage of an entry point.
type Stage uint8

const (
	StageVertex Stage = iota
	StageFragment
	StageCompute
)

func stageOf(s ir.ShaderStage) (Stage, error) {
	switch s {
	case ir.StageVertex:
		return StageVertex, nil
	case ir.StageFragment:
		return StageFragment, nil
	case ir.StageCompute:
		return StageCompute, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedStage, s)
	}
}

// String returns the WGSL attribute name of the stage.
func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StageCompute:
		return "compute"
	default:
		return fmt.Sprintf("Stage(%d)", uint8(s))
	}
}

// EntryPoint is a reflected entry point.
type EntryPoint struct {
	Name      string
	Stage     Stage
	Workgroup [3]uint32
}

// Module is a reflected WGSL module.
type Module struct {
	Label string

	source       string
	ir           *ir.Module
	entries      []EntryPoint
	pushDataSize uint32
}

// Option configures Reflect.
type Option func(*reflectOptions)

type reflectOptions struct {
	validate bool
}

// WithValidation runs IR validation and fails on the first error.
func WithValidation() Option {
	return func(o *reflectOptions) { o.validate = true }
}

// Reflect parses and lowers WGSL source and extracts the pipeline interface.
func Reflect(label, source string, opts ...Option) (*Module, error) {
	var o reflectOptions
	for _, opt := range opts {
		opt(&o)
	}

	ast, err := naga.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("shader %s: %w", label, err)
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, fmt.Errorf("shader %s: lower: %w", label, err)
	}
	if o.validate {
		verrs, err := naga.Validate(module)
		if err != nil {
			return nil, fmt.Errorf("shader %s: validate: %w", label, err)
		}
		if len(verrs) > 0 {
			return nil, fmt.Errorf("shader %s: validation failed: %w", label, &verrs[0])
		}
	}

	m := &Module{Label: label, source: source, ir: module}
	for _, ep := range module.EntryPoints {
		stage, err := stageOf(ep.Stage)
		if err != nil {
			return nil, fmt.Errorf("shader %s: entry point %q: %w", label, ep.Name, err)
		}
		e := EntryPoint{Name: ep.Name, Stage: stage}
		if stage == StageCompute {
			e.Workgroup = ep.Workgroup
		}
		m.entries = append(m.entries, e)
	}

	seen := false
	for _, gv := range module.GlobalVariables {
		if gv.Space != ir.SpacePushConstant {
			continue
		}
		if seen {
			return nil, fmt.Errorf("shader %s: %w", label, ErrMultiplePushBlocks)
		}
		seen = true
		m.pushDataSize = typeSize(module, gv.Type)
	}

	slogger().Debug("shader: reflected", "label", label, "entries", len(m.entries), "push", m.pushDataSize)
	return m, nil
}

// EntryPoints returns the entry points sorted by name.
func (m *Module) EntryPoints() []EntryPoint {
	out := append([]EntryPoint(nil), m.entries...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// EntryPoint returns the named entry point.
func (m *Module) EntryPoint(name string) (EntryPoint, bool) {
	for _, e := range m.entries {
		if e.Name == name {
			return e, true
		}
	}
	return EntryPoint{}, false
}

// PushDataSize returns the size in bytes of the push_constant block, or zero.
func (m *Module) PushDataSize() uint32 { return m.pushDataSize }

// Layout returns the pipeline interface for an entry point.
func (m *Module) Layout(entry string) (rendergraph.PipelineLayout, error) {
	e, ok := m.EntryPoint(entry)
	if !ok {
		return rendergraph.PipelineLayout{}, fmt.Errorf("%w: %s.%s", ErrNoEntryPoint, m.Label, entry)
	}
	return rendergraph.PipelineLayout{PushDataSize: m.pushDataSize, Workgroup: e.Workgroup}, nil
}

// Pipeline returns a backend-neutral pipeline for an entry point. Backends
// that need a native object wrap the layout in their own pipeline type.
func (m *Module) Pipeline(entry string) (*Pipeline, error) {
	layout, err := m.Layout(entry)
	if err != nil {
		return nil, err
	}
	return &Pipeline{Name: m.Label + "." + entry, layout: layout}, nil
}

// SPIRV generates a SPIR-V binary for the module.
func (m *Module) SPIRV() ([]byte, error) {
	out, err := naga.GenerateSPIRV(m.ir, spirv.Options{Version: spirv.Version1_3})
	if err != nil {
		return nil, fmt.Errorf("shader %s: %w", m.Label, err)
	}
	return out, nil
}

// Pipeline is a reflected pipeline with no native object.
type Pipeline struct {
	Name   string
	layout rendergraph.PipelineLayout
}

// Layout returns the reflected interface.
func (p *Pipeline) Layout() rendergraph.PipelineLayout { return p.layout }

// typeSize returns the host-shareable size of a type using the same rules
// as the WGSL lowering (structs carry their own span).
func typeSize(m *ir.Module, h ir.TypeHandle) uint32 {
	if int(h) >= len(m.Types) {
		return 0
	}
	switch t := m.Types[h].Inner.(type) {
	case ir.ScalarType:
		return uint32(t.Width)
	case ir.VectorType:
		return uint32(t.Size) * uint32(t.Scalar.Width)
	case ir.MatrixType:
		col := uint32(t.Rows) * uint32(t.Scalar.Width)
		if t.Rows == ir.Vec3 {
			col = 4 * uint32(t.Scalar.Width)
		}
		return col * uint32(t.Columns)
	case ir.ArrayType:
		if t.Size.Constant == nil {
			return 0
		}
		stride := t.Stride
		if stride == 0 {
			stride = (typeSize(m, t.Base) + 15) &^ 15
		}
		return stride * *t.Size.Constant
	case ir.StructType:
		return t.Span
	default:
		return 0
	}
}
