package rendergraph

import (
	"encoding/binary"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(g *Graph, name string) ResourceRef {
	return g.CreateImage(name, ImageInfo{Width: 16, Height: 16, Format: gputypes.TextureFormatRGBA8Unorm})
}

func TestDependencyLevels(t *testing.T) {
	g, err := New(newStubDevice())
	require.NoError(t, err)

	a := g.CreateBuffer("a", BufferInfo{Size: 64})
	b := g.CreateBuffer("b", BufferInfo{Size: 64})
	bb := testImage(g, "bb")

	p1 := g.AddPass("p1", PassCompute).StorageBufferWrite(a).Pass()
	p2 := g.AddPass("p2", PassCompute).StorageBufferRead(a).StorageBufferWrite(b).Pass()
	p3 := g.AddPass("p3", PassGraphics).StorageBufferRead(b).StorageBufferRead(a).ColorWrite(bb, gputypes.Color{}).Pass()

	levels := dependencyLevels([]*Pass{p1, p2, p3})
	assert.Equal(t, []int{2, 1, 0}, levels)
}

func TestPassAccessesMergePerSlot(t *testing.T) {
	g, err := New(newStubDevice())
	require.NoError(t, err)

	img := testImage(g, "img")
	alias := g.Alias(img)
	buf := g.CreateBuffer("buf", BufferInfo{Size: 4})

	p := g.AddPass("p", PassCompute).
		StorageImageWrite(alias).
		StorageImageRead(img).
		Dummy(buf).
		Pass()

	got := passAccesses(p)
	require.Len(t, got, 1, "dummy accesses are skipped and same-slot accesses merge")
	assert.Equal(t, alias, got[0].ref)
	assert.Equal(t, AccessShaderWrite|AccessShaderRead, got[0].access)
	assert.Equal(t, LayoutGeneral, got[0].layout)
}

func TestResolvePushPatchesHandles(t *testing.T) {
	g, err := New(newStubDevice())
	require.NoError(t, err)

	buf := g.CreateBuffer("buf", BufferInfo{Size: 256})
	bb := testImage(g, "bb")
	b := g.AddPass("p", PassGraphics).
		StorageBufferRead(buf).
		ColorWrite(bb, gputypes.Color{}).
		PushUint32(0xdeadbeef).
		PushRef(buf).
		PushFloat32(1)
	require.Equal(t, 20, b.Pass().PushSize())

	g.SetBackbuffer(bb, LayoutUndefined)
	require.NoError(t, g.Compile())

	data, err := g.resolvePush(b.Pass())
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), binary.LittleEndian.Uint32(data[0:]))
	assert.Equal(t, []byte{0, 0, 0, 0}, data[4:8], "refs are 8-byte aligned")
	assert.Equal(t, g.PhysicalBuffer(buf).Handle(), binary.LittleEndian.Uint64(data[8:]))
	assert.Equal(t, uint32(0x3f800000), binary.LittleEndian.Uint32(data[16:]))
}

func TestDivCeil(t *testing.T) {
	tests := []struct{ n, d, want uint32 }{
		{0, 64, 0},
		{1, 64, 1},
		{64, 64, 1},
		{65, 64, 2},
		{^uint32(0), 2, 1 << 31},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, divCeil(tt.n, tt.d), "divCeil(%d, %d)", tt.n, tt.d)
	}
}

func TestResetKeepsNamedSlots(t *testing.T) {
	dev := newStubDevice()
	g, err := New(dev)
	require.NoError(t, err)

	build := func() ResourceRef {
		bb := testImage(g, "bb")
		tmp := g.CreateImage("", ImageInfo{Width: 4, Height: 4, Format: gputypes.TextureFormatR8Unorm})
		g.AddPass("a", PassCompute).StorageImageWrite(tmp)
		g.AddPass("b", PassGraphics).StorageImageRead(tmp).ColorWrite(bb, gputypes.Color{})
		g.SetBackbuffer(bb, LayoutUndefined)
		require.NoError(t, g.Compile())
		return tmp
	}

	first := build()
	require.NoError(t, g.Execute(nil, nil, false))
	g.Reset()
	second := build()

	assert.Equal(t, first.Slot, second.Slot, "unnamed resources are keyed by declaration order")
	assert.Equal(t, "transient#0", g.Name(second))
	assert.Equal(t, 2, dev.created)
}

func TestMisusePanics(t *testing.T) {
	g, err := New(newStubDevice())
	require.NoError(t, err)
	bb := testImage(g, "bb")
	g.AddPass("p", PassGraphics).ColorWrite(bb, gputypes.Color{})
	g.SetBackbuffer(bb, LayoutUndefined)
	require.NoError(t, g.Compile())

	assert.Panics(t, func() { g.AddPass("late", PassCompute) })
	assert.Panics(t, func() { g.CreateImage("late", ImageInfo{Width: 1, Height: 1}) })

	g.Reset()
	assert.Panics(t, func() { g.AddPass("stale", PassGraphics).ColorWrite(bb, gputypes.Color{}) },
		"refs do not survive Reset")
	assert.Panics(t, func() {
		buf := g.CreateBuffer("buf", BufferInfo{Size: 4})
		g.AddPass("wrong", PassCompute).SampledRead(buf)
	})
}
