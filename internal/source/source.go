package source

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Block is one fixed-size chunk of mono samples handed to the pipeline.
// Blocks are immutable once produced; the sequence index increases
// monotonically per source.
type Block struct {
	Samples   []float64
	Index     uint64
	Timestamp time.Time
}

// Source produces AudioBlocks at a fixed cadence. Which device or file
// feeds a source is decided outside the engine; the engine only consumes
// the resulting stream.
type Source interface {
	// SampleRate returns the stream's sample rate in Hz.
	SampleRate() int
	// ReadBlock returns the next block, io.EOF when the stream ends.
	ReadBlock(ctx context.Context) (*Block, error)
	// Close releases the underlying stream.
	Close() error
}

// ChannelMode selects how multi-channel input is reduced to the mono
// stream the pipeline consumes.
type ChannelMode int

const (
	ChannelMix ChannelMode = iota
	ChannelLeft
	ChannelRight
)

// String returns the configuration name of the mode.
func (m ChannelMode) String() string {
	switch m {
	case ChannelLeft:
		return "left"
	case ChannelRight:
		return "right"
	default:
		return "mix"
	}
}

// ParseChannelMode parses a channel mode from configuration.
func ParseChannelMode(s string) (ChannelMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mix", "stereo", "":
		return ChannelMix, nil
	case "left":
		return ChannelLeft, nil
	case "right":
		return ChannelRight, nil
	default:
		return ChannelMix, fmt.Errorf("unknown channel mode: %q", s)
	}
}

// downmix reduces interleaved multi-channel samples to mono according to
// the mode. Mono input passes through unchanged.
func downmix(interleaved []float64, channels int, mode ChannelMode) []float64 {
	if channels <= 1 {
		return interleaved
	}
	frames := len(interleaved) / channels
	out := make([]float64, frames)
	switch mode {
	case ChannelLeft:
		for i := 0; i < frames; i++ {
			out[i] = interleaved[i*channels]
		}
	case ChannelRight:
		for i := 0; i < frames; i++ {
			out[i] = interleaved[i*channels+1]
		}
	default:
		for i := 0; i < frames; i++ {
			var sum float64
			for c := 0; c < channels; c++ {
				sum += interleaved[i*channels+c]
			}
			out[i] = sum / float64(channels)
		}
	}
	return out
}

// pacer spaces block delivery to real time for file-backed sources, so a
// recorded capture replays at the cadence a live device would produce.
type pacer struct {
	interval time.Duration
	next     time.Time
}

func newPacer(blockSize, sampleRate int) *pacer {
	return &pacer{
		interval: time.Duration(float64(blockSize) / float64(sampleRate) * float64(time.Second)),
	}
}

// wait sleeps until the next block deadline, honoring ctx cancellation.
func (p *pacer) wait(ctx context.Context) error {
	now := time.Now()
	if p.next.IsZero() {
		p.next = now
	}
	if d := p.next.Sub(now); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	p.next = p.next.Add(p.interval)
	return nil
}
