package watch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigscope/sigscope/pkg/spectral"
)

func calibratedProfile(bins int, floor, stddev float64) *spectral.NoiseProfile {
	p := &spectral.NoiseProfile{
		Floor:        make([]float64, bins),
		StdDev:       make([]float64, bins),
		Frames:       100,
		CalibratedAt: time.Now(),
	}
	for i := 0; i < bins; i++ {
		p.Floor[i] = floor
		p.StdDev[i] = stddev
	}
	return p
}

func frameWith(index uint64, ts time.Time, bins int, hot map[int]float64) *spectral.Frame {
	mag := make([]float64, bins)
	for i, v := range hot {
		mag[i] = v
	}
	return spectral.NewFrame(index, ts, mag)
}

func TestWatchdogSilenceProducesNoEvents(t *testing.T) {
	w, err := NewWatchdog(Config{Cooldown: time.Second})
	require.NoError(t, err)
	profile := calibratedProfile(16, 0.1, 0.05)

	now := time.Now()
	for i := 0; i < 10; i++ {
		f := frameWith(uint64(i), now.Add(time.Duration(i)*time.Millisecond), 16, nil)
		events, err := w.Evaluate(f, profile, 10.0)
		require.NoError(t, err)
		assert.Empty(t, events)
	}
	assert.Equal(t, StateIdle, w.State())
}

func TestWatchdogTriggersOnExceedance(t *testing.T) {
	w, err := NewWatchdog(Config{Cooldown: time.Second})
	require.NoError(t, err)
	profile := calibratedProfile(16, 0.1, 0.05)

	// Residual 0.9 against a limit of 10 * 0.05 = 0.5.
	f := frameWith(0, time.Now(), 16, map[int]float64{4: 1.0, 5: 1.0, 6: 1.0})
	events, err := w.Evaluate(f, profile, 10.0)
	require.NoError(t, err)

	require.Len(t, events, 1, "contiguous bins form one band")
	ev := events[0]
	assert.Equal(t, 4, ev.BinFrom)
	assert.Equal(t, 6, ev.BinTo)
	assert.InDelta(t, 0.9, ev.PeakValue, 1e-9)
	assert.Equal(t, uint64(1), ev.ID)
	assert.Equal(t, StateCooldown, w.State())
}

func TestWatchdogSeparateBandsSeparateEvents(t *testing.T) {
	w, err := NewWatchdog(Config{Cooldown: time.Second})
	require.NoError(t, err)
	profile := calibratedProfile(32, 0.0, 0.01)

	f := frameWith(0, time.Now(), 32, map[int]float64{3: 1.0, 20: 1.0, 21: 1.0})
	events, err := w.Evaluate(f, profile, 10.0)
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, 3, events[0].BinFrom)
	assert.Equal(t, 3, events[0].BinTo)
	assert.Equal(t, 20, events[1].BinFrom)
	assert.Equal(t, 21, events[1].BinTo)
	assert.NotEqual(t, events[0].ID, events[1].ID)
}

func TestWatchdogCooldownSuppressesSustainedSignal(t *testing.T) {
	w, err := NewWatchdog(Config{Cooldown: time.Minute})
	require.NoError(t, err)
	profile := calibratedProfile(16, 0.0, 0.01)

	now := time.Now()
	first := frameWith(0, now, 16, map[int]float64{5: 1.0})
	events, err := w.Evaluate(first, profile, 10.0)
	require.NoError(t, err)
	require.Len(t, events, 1)

	// Same band, next frames: suppressed while cooling.
	for i := 1; i < 5; i++ {
		f := frameWith(uint64(i), now.Add(time.Duration(i)*time.Millisecond), 16,
			map[int]float64{5: 1.0})
		events, err := w.Evaluate(f, profile, 10.0)
		require.NoError(t, err)
		assert.Empty(t, events, "frame %d", i)
	}

	// An overlapping wider band coalesces instead of re-firing.
	wide := frameWith(9, now.Add(9*time.Millisecond), 16, map[int]float64{4: 1.0, 5: 1.0, 6: 1.0})
	events, err = w.Evaluate(wide, profile, 10.0)
	require.NoError(t, err)
	assert.Empty(t, events)

	// A distant band still fires.
	other := frameWith(10, now.Add(10*time.Millisecond), 16, map[int]float64{12: 1.0})
	events, err = w.Evaluate(other, profile, 10.0)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestWatchdogCooldownExpiresByTimer(t *testing.T) {
	w, err := NewWatchdog(Config{Cooldown: 10 * time.Millisecond})
	require.NoError(t, err)
	profile := calibratedProfile(8, 0.0, 0.01)

	now := time.Now()
	f := frameWith(0, now, 8, map[int]float64{2: 1.0})
	events, err := w.Evaluate(f, profile, 10.0)
	require.NoError(t, err)
	require.Len(t, events, 1)

	// Frame timestamps drive the cooldown clock.
	later := frameWith(1, now.Add(50*time.Millisecond), 8, map[int]float64{2: 1.0})
	events, err = w.Evaluate(later, profile, 10.0)
	require.NoError(t, err)
	assert.Len(t, events, 1, "band re-fires after its cooldown window closes")
}

func TestWatchdogThresholdMonotonicity(t *testing.T) {
	profile := calibratedProfile(8, 0.0, 0.05)
	f := frameWith(0, time.Now(), 8, map[int]float64{3: 0.4})

	low, err := NewWatchdog(Config{Cooldown: time.Second})
	require.NoError(t, err)
	events, err := low.Evaluate(f, profile, 5.0) // limit 0.25
	require.NoError(t, err)
	assert.Len(t, events, 1)

	high, err := NewWatchdog(Config{Cooldown: time.Second})
	require.NoError(t, err)
	events, err = high.Evaluate(f, profile, 10.0) // limit 0.50
	require.NoError(t, err)
	assert.Empty(t, events, "raising the threshold never makes triggering easier")
}

func TestWatchdogUncalibratedUsesAbsoluteFloor(t *testing.T) {
	w, err := NewWatchdog(Config{AbsoluteFloor: 0.01, Cooldown: time.Second})
	require.NoError(t, err)

	f := frameWith(0, time.Now(), 8, map[int]float64{1: 0.5})
	events, err := w.Evaluate(f, nil, 10.0) // limit 0.1 on raw magnitude
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.InDelta(t, 0.5, events[0].PeakValue, 1e-9, "raw magnitude without a profile")
}

func TestWatchdogInvalidInputs(t *testing.T) {
	_, err := NewWatchdog(Config{Cooldown: 0})
	assert.ErrorIs(t, err, ErrInvalidCooldown)

	w, err := NewWatchdog(Config{Cooldown: time.Second})
	require.NoError(t, err)
	_, err = w.Evaluate(frameWith(0, time.Now(), 4, nil), nil, 0)
	assert.ErrorIs(t, err, ErrInvalidThreshold)
}
