package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mjibson/go-dsp/wav"
	"github.com/sirupsen/logrus"
)

// WAVSource replays a WAV file as a stream of AudioBlocks, optionally
// paced to real time so the pipeline behaves as it would on a live
// device.
type WAVSource struct {
	file      *os.File
	reader    *wav.Wav
	blockSize int
	mode      ChannelMode
	pacer     *pacer
	index     uint64
}

// NewWAVSource opens path and prepares block delivery. blockSize is the
// number of mono samples per block; realtime enables pacing.
func NewWAVSource(path string, blockSize int, mode ChannelMode, realtime bool) (*WAVSource, error) {
	if blockSize <= 0 {
		return nil, fmt.Errorf("block size must be positive, got %d", blockSize)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	r, err := wav.New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to parse WAV header: %w", err)
	}
	if r.SampleRate == 0 || r.NumChannels == 0 {
		f.Close()
		return nil, fmt.Errorf("invalid WAV format: rate=%d channels=%d", r.SampleRate, r.NumChannels)
	}

	s := &WAVSource{
		file:      f,
		reader:    r,
		blockSize: blockSize,
		mode:      mode,
	}
	if realtime {
		s.pacer = newPacer(blockSize, int(r.SampleRate))
	}

	logrus.WithFields(logrus.Fields{
		"path":        path,
		"sample_rate": r.SampleRate,
		"channels":    r.NumChannels,
		"block_size":  blockSize,
		"realtime":    realtime,
	}).Info("WAV source opened")
	return s, nil
}

// SampleRate returns the file's sample rate.
func (s *WAVSource) SampleRate() int {
	return int(s.reader.SampleRate)
}

// ReadBlock returns the next block of mono samples, io.EOF at the end of
// the file.
func (s *WAVSource) ReadBlock(ctx context.Context) (*Block, error) {
	if s.pacer != nil {
		if err := s.pacer.wait(ctx); err != nil {
			return nil, err
		}
	}

	channels := int(s.reader.NumChannels)
	want := s.blockSize * channels
	raw, err := s.reader.ReadFloats(want)
	if err != nil {
		if err == io.EOF || len(raw) == 0 {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to read WAV samples: %w", err)
	}
	if len(raw) == 0 {
		return nil, io.EOF
	}

	interleaved := make([]float64, len(raw))
	for i, v := range raw {
		interleaved[i] = float64(v)
	}

	block := &Block{
		Samples:   downmix(interleaved, channels, s.mode),
		Index:     s.index,
		Timestamp: time.Now().UTC(),
	}
	s.index++
	return block, nil
}

// Close closes the underlying file.
func (s *WAVSource) Close() error {
	return s.file.Close()
}
