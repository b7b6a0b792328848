package common

import (
	"fmt"
	"slices"
)

// FitMode selects how FitToMultiple adjusts a signal length
type FitMode string

const (
	FitNone FitMode = "none" // Leave the signal untouched
	FitTrim FitMode = "trim" // Drop trailing samples
	FitPad  FitMode = "pad"  // Append zeros
)

// ParseFitMode validates a fit mode name; the empty string means FitNone
func ParseFitMode(name string) (FitMode, error) {
	switch FitMode(name) {
	case "", FitNone:
		return FitNone, nil
	case FitTrim, FitPad:
		return FitMode(name), nil
	default:
		return FitNone, fmt.Errorf("unknown fit mode %q", name)
	}
}

// FitToMultiple returns a signal whose length is a multiple of block.
// FitNone returns the input as is, whatever its length. The input is never modified.
func FitToMultiple(signal []float64, block int, mode FitMode) ([]float64, error) {
	if block <= 0 {
		return nil, fmt.Errorf("block size must be positive, got %d", block)
	}

	rem := len(signal) % block
	switch mode {
	case FitNone, "":
		return signal, nil
	case FitTrim:
		return slices.Clone(signal[:len(signal)-rem]), nil
	case FitPad:
		if rem == 0 && len(signal) > 0 {
			return slices.Clone(signal), nil
		}
		n := len(signal) + block - rem
		out := make([]float64, n)
		copy(out, signal)
		return out, nil
	default:
		return nil, fmt.Errorf("unknown fit mode %q", mode)
	}
}

// ReflectPad mirrors pad samples on each side without repeating the edge sample,
// e.g. [1 2 3 4] with pad 2 becomes [3 2 1 2 3 4 3 2]
func ReflectPad(signal []float64, pad int) ([]float64, error) {
	n := len(signal)
	if pad < 0 {
		return nil, fmt.Errorf("negative padding %d", pad)
	}
	if pad == 0 {
		return slices.Clone(signal), nil
	}
	if pad >= n {
		return nil, fmt.Errorf("reflect padding %d requires more than %d samples", pad, n)
	}

	out := make([]float64, n+2*pad)
	copy(out[pad:], signal)
	for i := 1; i <= pad; i++ {
		out[pad-i] = signal[i]
		out[pad+n-1+i] = signal[n-1-i]
	}
	return out, nil
}
