package snapshot

import (
	"bufio"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigscope/sigscope/configs"
	"github.com/sigscope/sigscope/internal/engine"
	"github.com/sigscope/sigscope/internal/journal"
	"github.com/sigscope/sigscope/pkg/spectral"
)

func captureConfig() *configs.Config {
	return &configs.Config{
		Audio: configs.AudioConfig{
			SampleRate:     48000,
			BlockSize:      1024,
			FFTSize:        4096,
			WindowFunction: "hann",
			Channels:       2,
			ChannelMode:    "mix",
		},
		Capture: configs.CaptureConfig{Duration: 15 * time.Second, HistoryFrames: 2000},
		Display: configs.DisplayConfig{Gain: 3, FreqZoom: 1, VerticalStretch: 8, AmplitudeMode: "log"},
	}
}

func captureSettings() *engine.Settings {
	return &engine.Settings{
		Gain:            3,
		FreqZoom:        1,
		VerticalStretch: 8,
		AmplitudeMode:   spectral.AmplitudeLog,
		DetectThreshold: 10,
		CaptureDuration: 15 * time.Second,
	}
}

func TestWriterProducesCompleteBundle(t *testing.T) {
	base := t.TempDir()
	w, err := NewWriter(base)
	require.NoError(t, err)

	samples := []float64{0, 0.5, -0.5, 1.0, -1.0}
	ctx := journal.Status{Commander: "Jameson", StarSystem: "Sol", Body: "Earth"}

	bundle, err := w.Write(samples, 48000, captureConfig(), captureSettings(), ctx, "manual", "test capture")
	require.NoError(t, err)
	require.NotEmpty(t, bundle.ID)

	for _, name := range []string{"capture.wav", "metadata.json", "context.json", "capture.sha256"} {
		_, err := os.Stat(filepath.Join(bundle.Dir, name))
		assert.NoError(t, err, "bundle must contain %s", name)
	}

	// Checksum covers the exact bytes on disk.
	wavData, err := os.ReadFile(filepath.Join(bundle.Dir, "capture.wav"))
	require.NoError(t, err)
	sum := sha256.Sum256(wavData)

	sumLine, err := os.ReadFile(filepath.Join(bundle.Dir, "capture.sha256"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(sumLine), hex.EncodeToString(sum[:])))

	var meta Metadata
	data, err := os.ReadFile(filepath.Join(bundle.Dir, "metadata.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &meta))
	assert.Equal(t, bundle.ID, meta.ID)
	assert.Equal(t, 48000, meta.SampleRate)
	assert.Equal(t, len(samples), meta.Samples)
	assert.Equal(t, "manual", meta.Trigger)

	// The full active configuration and live settings ride along.
	require.NotNil(t, meta.Config)
	assert.Equal(t, 4096, meta.Config.Audio.FFTSize)
	assert.Equal(t, 1024, meta.Config.Audio.BlockSize)
	assert.Equal(t, "mix", meta.Config.Audio.ChannelMode)
	assert.Equal(t, 15*time.Second, meta.Config.Capture.Duration)
	require.NotNil(t, meta.Settings)
	assert.Equal(t, 3.0, meta.Settings.Gain)
	assert.Equal(t, spectral.AmplitudeLog, meta.Settings.AmplitudeMode)
	assert.Equal(t, 15*time.Second, meta.Settings.CaptureDuration)
	assert.Contains(t, string(data), `"fft_size": 4096`, "config keys mirror the config file")
	assert.Contains(t, string(data), `"amplitude_mode": "log"`)

	var gotCtx journal.Status
	data, err = os.ReadFile(filepath.Join(bundle.Dir, "context.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &gotCtx))
	assert.Equal(t, "Sol", gotCtx.StarSystem)
}

func TestWriterAppendsIndex(t *testing.T) {
	base := t.TempDir()
	w, err := NewWriter(base)
	require.NoError(t, err)

	samples := []float64{0.1, 0.2}
	_, err = w.Write(samples, 48000, nil, nil, journal.Status{StarSystem: "Sol"}, "anomaly", "")
	require.NoError(t, err)
	_, err = w.Write(samples, 48000, nil, nil, journal.Status{}, "manual", "")
	require.NoError(t, err)

	f, err := os.Open(filepath.Join(base, "index.jsonl"))
	require.NoError(t, err)
	defer f.Close()

	var records []indexRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec indexRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.Len(t, records, 2)
	assert.Equal(t, "anomaly", records[0].Trigger)
	assert.Equal(t, "Sol", records[0].StarSystem)
	assert.Equal(t, "manual", records[1].Trigger)
}

func TestWriterRejectsEmptyCapture(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)

	_, err = w.Write(nil, 48000, nil, nil, journal.Status{}, "manual", "")
	assert.Error(t, err)

	_, err = w.Write([]float64{0.1}, 0, nil, nil, journal.Status{}, "manual", "")
	assert.Error(t, err)
}

func TestEncodeWAVHeaderAndClamping(t *testing.T) {
	data := encodeWAV([]float64{0, 1.0, -1.0, 2.0, -2.0}, 48000)

	require.Len(t, data, 44+10)
	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, "WAVE", string(data[8:12]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(data[20:22]), "PCM format")
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(data[22:24]), "mono")
	assert.Equal(t, uint32(48000), binary.LittleEndian.Uint32(data[24:28]))
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(data[34:36]), "bit depth")
	assert.Equal(t, uint32(10), binary.LittleEndian.Uint32(data[40:44]), "data chunk size")

	sample := func(i int) int16 {
		return int16(binary.LittleEndian.Uint16(data[44+i*2:]))
	}
	assert.Equal(t, int16(0), sample(0))
	assert.Equal(t, int16(32767), sample(1))
	assert.Equal(t, int16(-32767), sample(2))
	assert.Equal(t, int16(32767), sample(3), "over-range clamps, never wraps")
	assert.Equal(t, int16(-32767), sample(4))
}
