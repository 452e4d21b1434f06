package spectral

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeFrames(t *testing.T, n int) []*Frame {
	t.Helper()
	base := time.Now()
	frames := make([]*Frame, n)
	for i := 0; i < n; i++ {
		frames[i] = NewFrame(uint64(i), base.Add(time.Duration(i)*time.Millisecond),
			[]float64{float64(i)})
	}
	return frames
}

func TestHistoryAppendAndEvict(t *testing.T) {
	h, err := NewHistory(3)
	require.NoError(t, err)

	for _, f := range makeFrames(t, 5) {
		require.NoError(t, h.Append(f))
	}

	assert.Equal(t, 3, h.Len())
	assert.Equal(t, 3, h.Capacity())

	tail := h.Tail(3)
	require.Len(t, tail, 3)
	assert.Equal(t, uint64(2), tail[0].Index, "oldest surviving frame")
	assert.Equal(t, uint64(4), tail[2].Index, "newest frame last")
	assert.Equal(t, uint64(4), h.Latest().Index)
}

func TestHistoryRejectsOutOfOrder(t *testing.T) {
	h, err := NewHistory(8)
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, h.Append(NewFrame(0, now, []float64{0})))

	err = h.Append(NewFrame(1, now, []float64{0}))
	assert.Error(t, err, "equal timestamp must be rejected")

	err = h.Append(NewFrame(2, now.Add(-time.Second), []float64{0}))
	assert.Error(t, err, "earlier timestamp must be rejected")

	assert.Equal(t, 1, h.Len(), "rejected frames must not be stored")
}

func TestHistoryTailBounds(t *testing.T) {
	h, err := NewHistory(4)
	require.NoError(t, err)

	assert.Nil(t, h.Tail(3), "empty history has no tail")
	assert.Nil(t, h.Latest())

	for _, f := range makeFrames(t, 2) {
		require.NoError(t, h.Append(f))
	}
	assert.Len(t, h.Tail(10), 2, "tail is clamped to available frames")
	assert.Nil(t, h.Tail(0))
}

func TestHistorySliceByIndex(t *testing.T) {
	h, err := NewHistory(10)
	require.NoError(t, err)

	for _, f := range makeFrames(t, 6) {
		require.NoError(t, h.Append(f))
	}

	got := h.Slice(2, 5)
	require.Len(t, got, 3)
	assert.Equal(t, uint64(2), got[0].Index)
	assert.Equal(t, uint64(4), got[2].Index)
}

func TestHistorySetCapacityResets(t *testing.T) {
	h, err := NewHistory(4)
	require.NoError(t, err)
	for _, f := range makeFrames(t, 3) {
		require.NoError(t, h.Append(f))
	}

	require.NoError(t, h.SetCapacity(2))
	assert.Equal(t, 0, h.Len())
	assert.Equal(t, 2, h.Capacity())

	// Old timestamps are accepted again after a reset.
	require.NoError(t, h.Append(NewFrame(0, time.Now().Add(-time.Hour), []float64{0})))

	assert.Error(t, h.SetCapacity(0))
}
