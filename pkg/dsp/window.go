package dsp

import (
	"fmt"
	"strings"

	"github.com/mjibson/go-dsp/window"
)

// WindowType selects the analysis window applied before each transform.
type WindowType int

const (
	WindowHann WindowType = iota
	WindowHamming
	WindowBartlett
	WindowFlatTop
	WindowRectangular
)

// String returns the configuration name of the window.
func (w WindowType) String() string {
	switch w {
	case WindowHamming:
		return "hamming"
	case WindowBartlett:
		return "bartlett"
	case WindowFlatTop:
		return "flattop"
	case WindowRectangular:
		return "rectangular"
	default:
		return "hann"
	}
}

// ParseWindowType parses a window name from configuration.
func ParseWindowType(s string) (WindowType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hann", "hanning":
		return WindowHann, nil
	case "hamming":
		return WindowHamming, nil
	case "bartlett":
		return WindowBartlett, nil
	case "flattop":
		return WindowFlatTop, nil
	case "rectangular", "rect", "boxcar":
		return WindowRectangular, nil
	default:
		return WindowHann, fmt.Errorf("unknown window function: %q", s)
	}
}

// Coefficients returns the window coefficients for the given size.
func (w WindowType) Coefficients(size int) []float64 {
	switch w {
	case WindowHamming:
		return window.Hamming(size)
	case WindowBartlett:
		return window.Bartlett(size)
	case WindowFlatTop:
		return window.FlatTop(size)
	case WindowRectangular:
		return window.Rectangular(size)
	default:
		return window.Hann(size)
	}
}
