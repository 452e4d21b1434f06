package profile

import (
	"fmt"
	"time"

	"github.com/sigscope/sigscope/pkg/spectral"
)

// SignalProfile is a named, persisted spectrogram template: a rectangular
// time-by-frequency grid of linear magnitudes extracted from history,
// immutable once saved. Edits are delete + re-save.
type SignalProfile struct {
	Name      string      `json:"name"`
	Grid      [][]float64 `json:"grid"` // time steps x frequency bins
	CreatedAt time.Time   `json:"created_at"`
	Notes     string      `json:"notes,omitempty"`
}

// Frames returns the number of time steps in the template.
func (p *SignalProfile) Frames() int {
	return len(p.Grid)
}

// Bins returns the number of frequency bins per time step.
func (p *SignalProfile) Bins() int {
	if len(p.Grid) == 0 {
		return 0
	}
	return len(p.Grid[0])
}

// Validate checks grid dimensions: non-zero and rectangular.
func (p *SignalProfile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile has no name")
	}
	if len(p.Grid) == 0 || len(p.Grid[0]) == 0 {
		return fmt.Errorf("profile %q has an empty grid", p.Name)
	}
	bins := len(p.Grid[0])
	for i, row := range p.Grid {
		if len(row) != bins {
			return fmt.Errorf("profile %q grid is ragged: row %d has %d bins, expected %d",
				p.Name, i, len(row), bins)
		}
	}
	return nil
}

// Region identifies a rectangular sub-grid of spectrogram history:
// a frame range [FrameFrom, FrameTo) by bin range [BinFrom, BinTo).
type Region struct {
	FrameFrom int `json:"frame_from"`
	FrameTo   int `json:"frame_to"`
	BinFrom   int `json:"bin_from"`
	BinTo     int `json:"bin_to"`
}

// Extract copies the region out of a frame sequence (oldest first) into a
// template grid. Frame indices are positions within frames; bin ranges are
// clamped to each frame's width.
func (r Region) Extract(frames []*spectral.Frame) ([][]float64, error) {
	if r.FrameFrom < 0 || r.FrameTo > len(frames) || r.FrameFrom >= r.FrameTo {
		return nil, ErrEmptyRegion
	}
	if r.BinFrom < 0 || r.BinFrom >= r.BinTo {
		return nil, ErrEmptyRegion
	}

	// Clamp the bin range to the narrowest frame so the grid stays
	// rectangular.
	to := r.BinTo
	for _, f := range frames[r.FrameFrom:r.FrameTo] {
		if f.Bins() < to {
			to = f.Bins()
		}
	}
	if r.BinFrom >= to {
		return nil, ErrEmptyRegion
	}

	grid := make([][]float64, 0, r.FrameTo-r.FrameFrom)
	for _, f := range frames[r.FrameFrom:r.FrameTo] {
		row := make([]float64, to-r.BinFrom)
		copy(row, f.Magnitude[r.BinFrom:to])
		grid = append(grid, row)
	}
	return grid, nil
}
