package spectral

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFrameCopiesMagnitude(t *testing.T) {
	buf := []float64{1, 2, 3}
	f := NewFrame(7, time.Now(), buf)

	buf[0] = 99
	assert.Equal(t, 1.0, f.Magnitude[0], "frame must not alias the caller's buffer")
	assert.Equal(t, uint64(7), f.Index)
	assert.Equal(t, 3, f.Bins())
}

func TestLogRoundTrip(t *testing.T) {
	linear := []float64{0, 1e-6, 0.01, 0.5, 1.0, 2.0}

	db := ToLog(linear)
	back := FromLog(db)

	require.Len(t, back, len(linear))
	for i := range linear {
		assert.InDelta(t, linear[i], back[i], 1e-9, "bin %d", i)
	}
}

func TestToLogZeroIsFinite(t *testing.T) {
	db := ToLog([]float64{0})
	assert.False(t, db[0] < -1000, "zero magnitude should map to a finite display value")
	// 20*log10(1e-9) + 100 = -80
	assert.InDelta(t, -80.0, db[0], 1e-6)
}

func TestDisplayDoesNotMutateFrame(t *testing.T) {
	f := NewFrame(0, time.Now(), []float64{0.25, 0.5})

	logOut := f.Display(AmplitudeLog)
	linOut := f.Display(AmplitudeLinear)
	logOut[0] = -1
	linOut[0] = -1

	assert.Equal(t, 0.25, f.Magnitude[0], "display output must be a copy")
}

func TestParseAmplitudeMode(t *testing.T) {
	tests := []struct {
		in      string
		want    AmplitudeMode
		wantErr bool
	}{
		{"log", AmplitudeLog, false},
		{"LOG", AmplitudeLog, false},
		{"linear", AmplitudeLinear, false},
		{"lin", AmplitudeLinear, false},
		{" linear ", AmplitudeLinear, false},
		{"decibel", AmplitudeLinear, true},
	}

	for _, tt := range tests {
		got, err := ParseAmplitudeMode(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}
