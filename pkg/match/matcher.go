package match

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/sigscope/sigscope/pkg/profile"
	"github.com/sigscope/sigscope/pkg/spectral"
)

// Result is the outcome of one evaluation cycle: the best-scoring profile
// with its confidence and the time offset (in frames back from the latest
// frame) at which the template aligned best. Results are transient and
// recomputed every cycle.
type Result struct {
	Profile     string    `json:"profile"`
	Confidence  float64   `json:"confidence"`
	FrameOffset int       `json:"frame_offset"`
	Timestamp   time.Time `json:"timestamp"`
}

// Matcher correlates the live spectrogram tail against stored profiles.
// Similarity is a normalized cross-correlation over linear magnitudes:
// the template slides over a small range of recent frames to tolerate
// timing jitter, and the best-aligned score wins. Scores are clamped to
// [0, 1].
type Matcher struct {
	searchRange int
}

// NewMatcher creates a matcher. searchRange is the number of additional
// frame offsets tried when aligning a template.
func NewMatcher(searchRange int) *Matcher {
	if searchRange < 0 {
		searchRange = 0
	}
	return &Matcher{searchRange: searchRange}
}

// Evaluate scores every profile against the history tail and returns the
// best match. threshold is the minimum confidence for a positive
// identification; it is passed per evaluation so callers can retune it
// between cycles. ok is false when no profile reaches the threshold
// (no-match) or when there is nothing to compare. Exact score ties prefer
// the most recently created profile.
func (m *Matcher) Evaluate(history *spectral.History, profiles []*profile.SignalProfile, threshold float64) (best *Result, ok bool) {
	if len(profiles) == 0 {
		return nil, false
	}

	now := time.Now().UTC()
	var bestCreated time.Time
	for _, p := range profiles {
		score, offset := m.scoreProfile(history, p)
		if best == nil ||
			score > best.Confidence ||
			(score == best.Confidence && p.CreatedAt.After(bestCreated)) {
			best = &Result{
				Profile:     p.Name,
				Confidence:  score,
				FrameOffset: offset,
				Timestamp:   now,
			}
			bestCreated = p.CreatedAt
		}
	}

	if best == nil || best.Confidence < threshold {
		return best, false
	}
	return best, true
}

// scoreProfile slides the template over the history tail and returns the
// best-aligned score and its frame offset back from the latest frame.
func (m *Matcher) scoreProfile(history *spectral.History, p *profile.SignalProfile) (float64, int) {
	h := p.Frames()
	tail := history.Tail(h + m.searchRange)
	if len(tail) < h {
		return 0, 0
	}

	bestScore := 0.0
	bestOffset := 0
	// offset counts frames back from the most recent frame.
	for offset := 0; offset <= len(tail)-h; offset++ {
		start := len(tail) - h - offset
		score := correlate(tail[start:start+h], p.Grid)
		if score > bestScore {
			bestScore = score
			bestOffset = offset
		}
	}
	return bestScore, bestOffset
}

// correlate computes the normalized cross-correlation between a window of
// live frames and a template grid of the same frame count. The overlap is
// limited to the narrower of the two in the frequency axis. The result is
// clamped to [0, 1]; anti-correlation carries no meaning for magnitude
// spectra.
func correlate(window []*spectral.Frame, grid [][]float64) float64 {
	if len(window) != len(grid) || len(grid) == 0 {
		return 0
	}

	var dot, liveSq, templSq float64
	for i, f := range window {
		row := grid[i]
		n := len(row)
		if f.Bins() < n {
			n = f.Bins()
		}
		live := f.Magnitude[:n]
		templ := row[:n]
		dot += floats.Dot(live, templ)
		liveSq += floats.Dot(live, live)
		templSq += floats.Dot(templ, templ)
	}

	if liveSq <= 0 || templSq <= 0 {
		return 0
	}
	score := dot / (math.Sqrt(liveSq) * math.Sqrt(templSq))
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
