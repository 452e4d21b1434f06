package dsp

import (
	"fmt"
	"math/cmplx"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/sigscope/sigscope/pkg/spectral"
)

// FrameTransformer turns fixed-size audio blocks into spectral frames.
// Incoming blocks slide through a rolling window of fftSize samples
// (hop = block size), which is windowed and transformed each cycle. The
// emitted magnitudes are raw linear values; LOG presentation is derived
// downstream and never stored.
//
// Process must complete within one block period to avoid backlog; the
// caller detects overruns and records them through DroppedFrames rather
// than blocking the capture path.
type FrameTransformer struct {
	fftSize    int
	sampleRate int
	coeffs     []float64
	rolling    []float64
	windowed   []float64
	fft        *fourier.FFT

	frames  atomic.Uint64
	dropped atomic.Uint64
}

// NewFrameTransformer creates a transformer for the given FFT size,
// sample rate and analysis window. fftSize must be a positive power of
// two at least as large as the audio block size.
func NewFrameTransformer(fftSize, sampleRate int, windowType WindowType) (*FrameTransformer, error) {
	if fftSize <= 0 || fftSize&(fftSize-1) != 0 {
		return nil, fmt.Errorf("fft size must be a positive power of two, got %d", fftSize)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	return &FrameTransformer{
		fftSize:    fftSize,
		sampleRate: sampleRate,
		coeffs:     windowType.Coefficients(fftSize),
		rolling:    make([]float64, fftSize),
		windowed:   make([]float64, fftSize),
		fft:        fourier.NewFFT(fftSize),
	}, nil
}

// Bins returns the number of output frequency bins (fftSize/2 + 1).
func (t *FrameTransformer) Bins() int {
	return t.fftSize/2 + 1
}

// BinFrequency returns the center frequency in Hz of a bin.
func (t *FrameTransformer) BinFrequency(bin int) float64 {
	return float64(bin) * float64(t.sampleRate) / float64(t.fftSize)
}

// Process slides one audio block into the rolling window and emits the
// resulting spectral frame. The block length must not exceed the FFT size.
func (t *FrameTransformer) Process(samples []float64, index uint64, ts time.Time) (*spectral.Frame, error) {
	hop := len(samples)
	if hop == 0 {
		return nil, fmt.Errorf("empty audio block")
	}
	if hop > t.fftSize {
		return nil, fmt.Errorf("block of %d samples exceeds fft size %d", hop, t.fftSize)
	}

	copy(t.rolling, t.rolling[hop:])
	copy(t.rolling[t.fftSize-hop:], samples)

	for i := range t.rolling {
		t.windowed[i] = t.rolling[i] * t.coeffs[i]
	}

	spec := t.fft.Coefficients(nil, t.windowed)
	magnitude := make([]float64, len(spec))
	for i, c := range spec {
		magnitude[i] = cmplx.Abs(c)
	}

	t.frames.Add(1)
	return spectral.NewFrame(index, ts, magnitude), nil
}

// MarkDropped records a frame dropped due to a transform overrun.
func (t *FrameTransformer) MarkDropped() {
	t.dropped.Add(1)
}

// Frames returns the number of frames emitted so far.
func (t *FrameTransformer) Frames() uint64 {
	return t.frames.Load()
}

// DroppedFrames returns the number of frames dropped due to overruns.
func (t *FrameTransformer) DroppedFrames() uint64 {
	return t.dropped.Load()
}
