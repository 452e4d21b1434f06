package snapshot

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sigscope/sigscope/configs"
	"github.com/sigscope/sigscope/internal/engine"
	"github.com/sigscope/sigscope/internal/journal"
)

// Metadata describes the capture inside a snapshot bundle, including the
// full configuration and live settings in effect when it was taken, so a
// bundle can be interpreted without the session that produced it.
type Metadata struct {
	ID         string           `json:"id"`
	CreatedAt  time.Time        `json:"created_at"`
	SampleRate int              `json:"sample_rate"`
	Samples    int              `json:"samples"`
	Duration   float64          `json:"duration_seconds"`
	Trigger    string           `json:"trigger,omitempty"`
	Notes      string           `json:"notes,omitempty"`
	Config     *configs.Config  `json:"config,omitempty"`
	Settings   *engine.Settings `json:"settings,omitempty"`
}

// Bundle is the result of one snapshot: a directory holding the capture
// audio, its metadata, the game context at capture time, and the audio
// checksum.
type Bundle struct {
	ID       string
	Dir      string
	Metadata Metadata
}

// indexRecord is one line of the bundle index, appended per snapshot.
type indexRecord struct {
	ID         string    `json:"id"`
	Dir        string    `json:"dir"`
	CreatedAt  time.Time `json:"created_at"`
	Trigger    string    `json:"trigger,omitempty"`
	StarSystem string    `json:"star_system,omitempty"`
}

// Writer persists audio snapshots as self-contained bundles under a base
// directory:
//
//	<base>/<timestamp>-<id>/capture.wav
//	                        metadata.json
//	                        context.json
//	                        capture.sha256
//
// plus an append-only index.jsonl at the base. Each bundle is written
// into place file by file; a crash mid-write leaves a partial directory
// but never a corrupt index line.
type Writer struct {
	baseDir string
}

// NewWriter creates a snapshot writer, creating baseDir if needed.
func NewWriter(baseDir string) (*Writer, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &Writer{baseDir: baseDir}, nil
}

// Dir returns the base snapshot directory.
func (w *Writer) Dir() string {
	return w.baseDir
}

// Write persists one snapshot bundle. samples are mono float64 in
// [-1, 1] (values outside are clamped). cfg and settings are the active
// configuration and live settings, dumped into metadata.json (nil skips
// either). ctx is the game context at capture time (zero value when the
// journal watcher is disabled), and trigger records what caused the
// snapshot ("manual", "anomaly", ...).
func (w *Writer) Write(samples []float64, sampleRate int, cfg *configs.Config, settings *engine.Settings, ctx journal.Status, trigger, notes string) (*Bundle, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no audio captured")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	dir := filepath.Join(w.baseDir, fmt.Sprintf("%s-%s", now.Format("20060102-150405"), id[:8]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create bundle directory: %w", err)
	}

	wavData := encodeWAV(samples, sampleRate)
	wavPath := filepath.Join(dir, "capture.wav")
	if err := os.WriteFile(wavPath, wavData, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write capture audio: %w", err)
	}

	sum := sha256.Sum256(wavData)
	digest := hex.EncodeToString(sum[:])
	if err := os.WriteFile(filepath.Join(dir, "capture.sha256"),
		[]byte(digest+"  capture.wav\n"), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write checksum: %w", err)
	}

	meta := Metadata{
		ID:         id,
		CreatedAt:  now,
		SampleRate: sampleRate,
		Samples:    len(samples),
		Duration:   float64(len(samples)) / float64(sampleRate),
		Trigger:    trigger,
		Notes:      notes,
		Config:     cfg,
		Settings:   settings,
	}
	if err := writeJSON(filepath.Join(dir, "metadata.json"), meta); err != nil {
		return nil, err
	}
	if err := writeJSON(filepath.Join(dir, "context.json"), ctx); err != nil {
		return nil, err
	}

	if err := w.appendIndex(indexRecord{
		ID:         id,
		Dir:        filepath.Base(dir),
		CreatedAt:  now,
		Trigger:    trigger,
		StarSystem: ctx.StarSystem,
	}); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"id":       id,
		"dir":      dir,
		"duration": meta.Duration,
		"trigger":  trigger,
	}).Info("Snapshot bundle written")
	return &Bundle{ID: id, Dir: dir, Metadata: meta}, nil
}

// appendIndex adds one record to the bundle index. The whole line is
// written with a single call so concurrent appenders cannot interleave.
func (w *Writer) appendIndex(rec indexRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode index record: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(w.baseDir, "index.jsonl"),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open bundle index: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append bundle index: %w", err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// encodeWAV renders mono float64 samples as a 16-bit PCM RIFF/WAVE file.
// Samples outside [-1, 1] are clamped rather than wrapped.
func encodeWAV(samples []float64, sampleRate int) []byte {
	dataSize := len(samples) * 2
	buf := make([]byte, 44+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)
	binary.LittleEndian.PutUint16(buf[34:36], 16)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * 32767)
		binary.LittleEndian.PutUint16(buf[44+i*2:], uint16(v))
	}
	return buf
}
