package timeline

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/rendergraph"
)

func TestSignalMustIncrease(t *testing.T) {
	tl := New("cpu")
	require.NoError(t, tl.Signal(1))
	require.NoError(t, tl.Signal(5))
	assert.ErrorIs(t, tl.Signal(5), ErrNotMonotonic)
	assert.ErrorIs(t, tl.Signal(3), ErrNotMonotonic)
	assert.Equal(t, uint64(5), tl.Value())
}

func TestWaitAlreadyReached(t *testing.T) {
	tl := New("cpu")
	require.NoError(t, tl.Signal(2))
	assert.NoError(t, tl.Wait(2, 0))
	assert.NoError(t, tl.Wait(1, time.Millisecond))
}

func TestWaitTimesOut(t *testing.T) {
	tl := New("gfx")
	err := tl.Wait(1, 10*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, rendergraph.ErrWaitTimeout)

	err = tl.Wait(1, 0)
	assert.ErrorIs(t, err, rendergraph.ErrWaitTimeout)
}

func TestWaitWakesOnSignal(t *testing.T) {
	tl := New("gfx")
	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = tl.Wait(3, 5*time.Second)
		}(i)
	}
	require.NoError(t, tl.Signal(1))
	require.NoError(t, tl.Signal(3))
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
}
