package windowing

import (
	"fmt"
	"math"
)

// Hann is a raised-cosine window. The periodic form (symmetric=false) is the
// one spectral analysis uses: its length-N coefficients are the first N points
// of a length N+1 symmetric window.
type Hann struct {
	size         int
	coefficients []float64
}

// NewHann creates a new Hann window
func NewHann(size int, symmetric bool) (*Hann, error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", size)
	}
	return &Hann{
		size:         size,
		coefficients: hannCoefficients(size, symmetric),
	}, nil
}

// NewPeriodicHann creates the DFT-even Hann window used by the STFT
func NewPeriodicHann(size int) (*Hann, error) {
	return NewHann(size, false)
}

func hannCoefficients(size int, symmetric bool) []float64 {
	coeffs := make([]float64, size)
	if size == 1 {
		coeffs[0] = 1
		return coeffs
	}

	denominator := float64(size)
	if symmetric {
		denominator = float64(size - 1)
	}

	for i := range size {
		coeffs[i] = 0.5 * (1.0 - math.Cos(2*math.Pi*float64(i)/denominator))
	}
	return coeffs
}

// ApplyInPlace multiplies frame by the window
func (h *Hann) ApplyInPlace(frame []float64) error {
	if len(frame) != h.size {
		return fmt.Errorf("frame length (%d) doesn't match window size (%d)", len(frame), h.size)
	}

	for i, c := range h.coefficients {
		frame[i] *= c
	}
	return nil
}
