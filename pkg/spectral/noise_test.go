package spectral

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frameAt(i int, mag []float64) *Frame {
	return NewFrame(uint64(i), time.Now().Add(time.Duration(i)*time.Millisecond), mag)
}

func TestEstimatorFloorIsPerBinMinimum(t *testing.T) {
	e := NewEstimator()
	e.Begin()

	e.Accumulate(frameAt(0, []float64{0.5, 0.1, 0.9}))
	e.Accumulate(frameAt(1, []float64{0.2, 0.4, 0.3}))
	e.Accumulate(frameAt(2, []float64{0.8, 0.2, 0.1}))

	p, err := e.End()
	require.NoError(t, err)
	assert.Equal(t, []float64{0.2, 0.1, 0.1}, p.Floor)
	assert.Equal(t, 3, p.Frames)
	assert.Equal(t, 3, p.Bins())
	assert.False(t, e.Active())
}

func TestEstimatorStdDev(t *testing.T) {
	e := NewEstimator()
	e.Begin()

	// Constant bin: zero deviation. Varying bin: population stddev of
	// {1, 3} is 1.
	e.Accumulate(frameAt(0, []float64{0.5, 1.0}))
	e.Accumulate(frameAt(1, []float64{0.5, 3.0}))

	p, err := e.End()
	require.NoError(t, err)
	assert.InDelta(t, 0.0, p.StdDev[0], 1e-12)
	assert.InDelta(t, 1.0, p.StdDev[1], 1e-12)
}

func TestEstimatorEmptyWindowKeepsPriorProfile(t *testing.T) {
	e := NewEstimator()

	e.Begin()
	e.Accumulate(frameAt(0, []float64{0.3}))
	first, err := e.End()
	require.NoError(t, err)

	e.Begin()
	_, err = e.End()
	assert.ErrorIs(t, err, ErrNoFrames)
	assert.Same(t, first, e.Current(), "failed calibration must not replace the profile")
}

func TestEstimatorBeginRestartsWindow(t *testing.T) {
	e := NewEstimator()

	e.Begin()
	e.Accumulate(frameAt(0, []float64{9.0}))
	e.Begin()
	e.Accumulate(frameAt(1, []float64{0.5}))

	p, err := e.End()
	require.NoError(t, err)
	assert.Equal(t, 1, p.Frames, "restart must discard prior accumulation")
	assert.Equal(t, []float64{0.5}, p.Floor)
}

func TestEstimatorIgnoresFramesOutsideWindow(t *testing.T) {
	e := NewEstimator()
	e.Accumulate(frameAt(0, []float64{1.0}))

	e.Begin()
	_, err := e.End()
	assert.ErrorIs(t, err, ErrNoFrames)
}

func TestEstimatorCancel(t *testing.T) {
	e := NewEstimator()
	e.Begin()
	e.Accumulate(frameAt(0, []float64{0.1}))
	e.Cancel()

	assert.False(t, e.Active())
	assert.Nil(t, e.Current())

	_, err := e.End()
	assert.Error(t, err, "End without an open window")
}

func TestNoiseProfileSubtractClamps(t *testing.T) {
	p := &NoiseProfile{Floor: []float64{0.5, 0.2}}

	gated := p.Subtract([]float64{0.3, 0.9, 0.4})
	require.Len(t, gated, 3)
	assert.Equal(t, 0.0, gated[0], "below the floor clamps to zero")
	assert.InDelta(t, 0.7, gated[1], 1e-12)
	assert.Equal(t, 0.4, gated[2], "bins past the profile pass through")
}
