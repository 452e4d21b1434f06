package source

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// RawSource reads signed 16-bit little-endian PCM from an arbitrary
// reader (typically stdin fed by an external capture process) and emits
// AudioBlocks. The format parameters must match the producer exactly;
// there is no header to validate against.
type RawSource struct {
	r          io.ReadCloser
	sampleRate int
	channels   int
	blockSize  int
	mode       ChannelMode
	pacer      *pacer
	index      uint64
	buf        []byte
}

// NewRawSource creates a raw PCM source.
func NewRawSource(r io.ReadCloser, sampleRate, channels, blockSize int, mode ChannelMode, realtime bool) (*RawSource, error) {
	if sampleRate <= 0 || channels <= 0 || blockSize <= 0 {
		return nil, fmt.Errorf("invalid raw source format: rate=%d channels=%d block=%d",
			sampleRate, channels, blockSize)
	}

	s := &RawSource{
		r:          r,
		sampleRate: sampleRate,
		channels:   channels,
		blockSize:  blockSize,
		mode:       mode,
		buf:        make([]byte, blockSize*channels*2),
	}
	if realtime {
		s.pacer = newPacer(blockSize, sampleRate)
	}
	return s, nil
}

// SampleRate returns the configured sample rate.
func (s *RawSource) SampleRate() int {
	return s.sampleRate
}

// ReadBlock returns the next block of mono samples, io.EOF when the
// reader is exhausted.
func (s *RawSource) ReadBlock(ctx context.Context) (*Block, error) {
	if s.pacer != nil {
		if err := s.pacer.wait(ctx); err != nil {
			return nil, err
		}
	}

	n, err := io.ReadFull(s.r, s.buf)
	if err != nil {
		if err == io.EOF || (err == io.ErrUnexpectedEOF && n < 2) {
			return nil, io.EOF
		}
		if err != io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("failed to read PCM data: %w", err)
		}
	}

	samples := n / 2
	interleaved := make([]float64, samples)
	for i := 0; i < samples; i++ {
		v := int16(binary.LittleEndian.Uint16(s.buf[i*2:]))
		interleaved[i] = float64(v) / 32768.0
	}

	block := &Block{
		Samples:   downmix(interleaved, s.channels, s.mode),
		Index:     s.index,
		Timestamp: time.Now().UTC(),
	}
	s.index++
	return block, nil
}

// Close closes the underlying reader.
func (s *RawSource) Close() error {
	return s.r.Close()
}
