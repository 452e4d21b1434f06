package dsp

import "math"

// Characteristics summarizes a detected signal for reporting: computed
// from the noise-gated magnitude spectrum and the noise profile it was
// gated with.
type Characteristics struct {
	SNR              float64 `json:"snr"`
	Bandwidth        float64 `json:"bandwidth"`
	SpectralCentroid float64 `json:"spectral_centroid"`
	PeakFrequency    float64 `json:"peak_frequency"`
}

// Characterize computes signal characteristics for a gated magnitude
// spectrum. gated is the magnitude after noise subtraction, noiseFloor the
// profile that was subtracted; both are indexed by frequency bin for an
// FFT of fftSize samples at sampleRate.
func Characterize(gated, noiseFloor []float64, sampleRate, fftSize int) Characteristics {
	binHz := float64(sampleRate) / float64(fftSize)

	var signalPower, noisePower float64
	for _, m := range gated {
		signalPower += m * m
	}
	for _, m := range noiseFloor {
		noisePower += m * m
	}
	snr := math.Inf(1)
	if noisePower > 0 {
		snr = 10 * math.Log10(signalPower/noisePower)
	}

	firstBin, lastBin := -1, -1
	var magSum, weighted float64
	peakBin, peakMag := 0, 0.0
	for i, m := range gated {
		if m > 0 {
			if firstBin < 0 {
				firstBin = i
			}
			lastBin = i
		}
		magSum += m
		weighted += float64(i) * binHz * m
		if m > peakMag {
			peakMag = m
			peakBin = i
		}
	}

	var bandwidth float64
	if firstBin >= 0 && lastBin > firstBin {
		bandwidth = float64(lastBin-firstBin) * binHz
	}
	var centroid float64
	if magSum > 0 {
		centroid = weighted / magSum
	}
	var peakFreq float64
	if peakMag > 0 {
		peakFreq = float64(peakBin) * binHz
	}

	return Characteristics{
		SNR:              snr,
		Bandwidth:        bandwidth,
		SpectralCentroid: centroid,
		PeakFrequency:    peakFreq,
	}
}
