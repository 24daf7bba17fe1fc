package shader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/naga/ir"

	"github.com/gogpu/rendergraph"
)

const blurSource = `
struct Push {
    count: u32,
    pad: u32,
    origin: vec2<u32>,
}

var<push_constant> pc: Push;

@compute @workgroup_size(8, 8)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
}
`

const triangleSource = `
@vertex
fn vs(@builtin(vertex_index) idx: u32) -> @builtin(position) vec4<f32> {
    return vec4<f32>(0.0, 0.0, 0.0, 1.0);
}
`

func TestReflectCompute(t *testing.T) {
	m, err := Reflect("blur", blurSource)
	require.NoError(t, err)

	assert.Equal(t, uint32(16), m.PushDataSize())
	e, ok := m.EntryPoint("main")
	require.True(t, ok)
	assert.Equal(t, StageCompute, e.Stage)
	assert.Equal(t, [3]uint32{8, 8, 1}, e.Workgroup, "missing dimensions default to 1")

	layout, err := m.Layout("main")
	require.NoError(t, err)
	assert.Equal(t, rendergraph.PipelineLayout{PushDataSize: 16, Workgroup: [3]uint32{8, 8, 1}}, layout)

	p, err := m.Pipeline("main")
	require.NoError(t, err)
	assert.Equal(t, "blur.main", p.Name)
	assert.Equal(t, layout, p.Layout())
}

func TestReflectVertex(t *testing.T) {
	m, err := Reflect("tri", triangleSource)
	require.NoError(t, err)

	assert.Zero(t, m.PushDataSize())
	entries := m.EntryPoints()
	require.Len(t, entries, 1)
	assert.Equal(t, EntryPoint{Name: "vs", Stage: StageVertex}, entries[0])
	assert.Equal(t, "vertex", entries[0].Stage.String())
}

const mixedSource = `
@vertex
fn vs(@builtin(vertex_index) idx: u32) -> @builtin(position) vec4<f32> {
    return vec4<f32>(0.0, 0.0, 0.0, 1.0);
}

@fragment
fn fs() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 0.0, 0.0, 1.0);
}

@compute @workgroup_size(64)
fn cs(@builtin(global_invocation_id) id: vec3<u32>) {
}
`

func TestReflectStages(t *testing.T) {
	m, err := Reflect("mixed", mixedSource)
	require.NoError(t, err)

	want := map[string]Stage{"vs": StageVertex, "fs": StageFragment, "cs": StageCompute}
	for name, stage := range want {
		e, ok := m.EntryPoint(name)
		require.True(t, ok, name)
		assert.Equal(t, stage, e.Stage, name)
	}
	cs, _ := m.EntryPoint("cs")
	assert.Equal(t, [3]uint32{64, 1, 1}, cs.Workgroup)
	fs, _ := m.EntryPoint("fs")
	assert.Zero(t, fs.Workgroup)
}

func TestStageOf(t *testing.T) {
	tests := []struct {
		in   ir.ShaderStage
		want Stage
	}{
		{ir.StageVertex, StageVertex},
		{ir.StageFragment, StageFragment},
		{ir.StageCompute, StageCompute},
	}
	for _, tt := range tests {
		got, err := stageOf(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
	for _, s := range []ir.ShaderStage{ir.StageTask, ir.StageMesh} {
		_, err := stageOf(s)
		assert.ErrorIs(t, err, ErrUnsupportedStage)
	}
}

func TestReflectErrors(t *testing.T) {
	_, err := Reflect("broken", "fn {")
	assert.Error(t, err)

	m, err := Reflect("tri", triangleSource)
	require.NoError(t, err)
	_, err = m.Layout("missing")
	assert.ErrorIs(t, err, ErrNoEntryPoint)
	_, err = m.Pipeline("missing")
	assert.ErrorIs(t, err, ErrNoEntryPoint)
}

func TestSPIRV(t *testing.T) {
	m, err := Reflect("cs", `
@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
}
`)
	require.NoError(t, err)
	out, err := m.SPIRV()
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestStageString(t *testing.T) {
	tests := []struct {
		stage Stage
		want  string
	}{
		{StageVertex, "vertex"},
		{StageFragment, "fragment"},
		{StageCompute, "compute"},
		{Stage(9), "Stage(9)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.stage.String())
	}
}
