package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertGet(t *testing.T) {
	var a Arena[string]
	h1 := a.Insert("a")
	h2 := a.Insert("b")

	v, ok := a.Get(h1)
	require.True(t, ok)
	assert.Equal(t, "a", v)
	v, ok = a.Get(h2)
	require.True(t, ok)
	assert.Equal(t, "b", v)
	assert.Equal(t, 2, a.Len())

	_, ok = a.Get(Handle{})
	assert.False(t, ok, "zero handle must be invalid")
	assert.True(t, Handle{}.IsZero())
}

func TestRetireInvalidatesImmediately(t *testing.T) {
	var a Arena[int]
	h := a.Insert(7)

	require.True(t, a.Retire(h, 10))
	_, ok := a.Get(h)
	assert.False(t, ok)
	assert.False(t, a.Retire(h, 10), "double retire")
	assert.Equal(t, 0, a.Len())
	assert.Equal(t, 1, a.Pending())
}

func TestCollectHonoursFramesInFlight(t *testing.T) {
	var a Arena[int]
	h := a.Insert(42)
	a.Retire(h, 5)

	var released []int
	release := func(v int) { released = append(released, v) }

	assert.Equal(t, 0, a.Collect(5, 2, release))
	assert.Equal(t, 0, a.Collect(6, 2, release))
	assert.Equal(t, 1, a.Collect(7, 2, release))
	assert.Equal(t, []int{42}, released)
	assert.Equal(t, 0, a.Pending())
}

func TestSlotReuseBumpsGeneration(t *testing.T) {
	var a Arena[int]
	old := a.Insert(1)
	a.Retire(old, 0)
	a.Drain(nil)

	fresh := a.Insert(2)
	assert.Equal(t, old.index, fresh.index, "slot should be reused")
	assert.NotEqual(t, old.gen, fresh.gen)

	_, ok := a.Get(old)
	assert.False(t, ok, "stale handle must not observe the new value")
	v, ok := a.Get(fresh)
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestEachVisitsLiveValues(t *testing.T) {
	var a Arena[int]
	a.Insert(1)
	h := a.Insert(2)
	a.Insert(3)
	a.Retire(h, 0)

	var got []int
	a.Each(func(_ Handle, v int) { got = append(got, v) })
	assert.Equal(t, []int{1, 3}, got)
}
