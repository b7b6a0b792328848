package wavelet

import (
	"fmt"
	"slices"
)

// maxDepth bounds 2^depth to a value that fits in an int
const maxDepth = 62

// Decomposition is a multiresolution wavelet decomposition ordered coarse to fine:
// [approximation_L, detail_L, detail_L-1, ..., detail_1]
type Decomposition [][]float64

// Step runs one analysis level over y with periodic boundaries.
//
// For every output index k:
//
//	approx[k] = sum_i h[i] * y[(2k+i) mod N]
//	detail[k] = sum_i g[i] * y[(2k+i) mod N]
//
// which is the circular left shift of y by i, accumulated over the taps and
// decimated to the even samples. Signals that are not periodic pick up
// wrap-around terms near the end of each sub-band.
func (fb FilterBank) Step(y []float64) (approx, detail []float64, err error) {
	n := len(y)
	if n == 0 || n%2 != 0 {
		return nil, nil, fmt.Errorf("%w: signal length %d is not a positive even number", ErrInvalidInput, n)
	}

	half := n / 2
	approx = make([]float64, half)
	detail = make([]float64, half)

	for k := range half {
		var a, d float64
		for i := range Taps {
			v := y[(2*k+i)%n]
			a += fb.LowPass[i] * v
			d += fb.HighPass[i] * v
		}
		approx[k] = a
		detail[k] = d
	}

	return approx, detail, nil
}

// Decompose applies the Daubechies-4 filter bank depth times, each time to the
// previous approximation. The signal length must be a multiple of 2^depth; the
// signal is never padded or truncated here.
func Decompose(signal []float64, depth int) (Decomposition, error) {
	return daub4.Decompose(signal, depth)
}

// Decompose is the multiresolution driver for an arbitrary filter bank
func (fb FilterBank) Decompose(signal []float64, depth int) (Decomposition, error) {
	if err := checkLength(len(signal), depth); err != nil {
		return nil, err
	}

	if depth == 0 {
		return Decomposition{slices.Clone(signal)}, nil
	}

	current := signal
	details := make([][]float64, 0, depth)

	for level := 1; level <= depth; level++ {
		approx, detail, err := fb.Step(current)
		if err != nil {
			return nil, fmt.Errorf("level %d: %w", level, err)
		}
		details = append(details, detail)
		current = approx
	}

	// Finest detail was collected first
	slices.Reverse(details)

	result := make(Decomposition, 0, depth+1)
	result = append(result, current)
	result = append(result, details...)
	return result, nil
}

// Transform decomposes signal to the given depth. In chunked mode the sub-bands are
// returned as they are; otherwise the result is a one-chunk wrapper around the flat
// concatenation, so both modes share a return type. Callers that only want the flat
// sequence should use TransformFlat.
func Transform(signal []float64, depth int, chunked bool) ([][]float64, error) {
	d, err := Decompose(signal, depth)
	if err != nil {
		return nil, err
	}
	if chunked {
		return d, nil
	}
	return [][]float64{d.Flatten()}, nil
}

// TransformFlat returns the coarse-to-fine concatenation of the decomposition.
// Its length always equals len(signal).
func TransformFlat(signal []float64, depth int) ([]float64, error) {
	d, err := Decompose(signal, depth)
	if err != nil {
		return nil, err
	}
	return d.Flatten(), nil
}

// Flatten concatenates all sub-bands in order
func (d Decomposition) Flatten() []float64 {
	return slices.Concat([][]float64(d)...)
}

// Approximation returns the coarsest approximation (trend) sub-band
func (d Decomposition) Approximation() []float64 {
	if len(d) == 0 {
		return nil
	}
	return d[0]
}

// Details returns the detail sub-bands, coarsest first
func (d Decomposition) Details() [][]float64 {
	if len(d) < 2 {
		return nil
	}
	return d[1:]
}

// Depth is the number of decomposition levels that produced d
func (d Decomposition) Depth() int {
	return max(len(d)-1, 0)
}

// Len returns the total number of coefficients
func (d Decomposition) Len() int {
	n := 0
	for _, band := range d {
		n += len(band)
	}
	return n
}

func checkLength(n, depth int) error {
	if depth < 0 {
		return fmt.Errorf("%w: negative depth %d", ErrInvalidInput, depth)
	}
	if depth == 0 {
		return nil
	}
	if depth > maxDepth {
		return fmt.Errorf("%w: depth %d exceeds %d", ErrInvalidInput, depth, maxDepth)
	}
	block := 1 << depth
	if n == 0 || n%block != 0 {
		return fmt.Errorf("%w: signal length %d is not a positive multiple of 2^%d (%d)", ErrInvalidInput, n, depth, block)
	}
	return nil
}

// RequiredMultiple returns 2^depth, the block size a signal length must be a multiple of
func RequiredMultiple(depth int) (int, error) {
	if depth < 0 || depth > maxDepth {
		return 0, fmt.Errorf("%w: depth %d out of range [0, %d]", ErrInvalidInput, depth, maxDepth)
	}
	return 1 << depth, nil
}
