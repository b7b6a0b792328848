package wavelet

import "math"

// Taps is the support length of the Daubechies-4 filters
const Taps = 4

// FilterBank holds the analysis filter pair of a two-channel orthogonal filter bank
type FilterBank struct {
	LowPass  [Taps]float64 `json:"low_pass"`  // Scaling (trend) filter h
	HighPass [Taps]float64 `json:"high_pass"` // Wavelet (detail) filter g
}

// Daubechies order-2 scaling filter (4 taps, two vanishing moments)
var daub4LowPass = [Taps]float64{
	(1 + math.Sqrt(3)) / (4 * math.Sqrt(2)),
	(3 + math.Sqrt(3)) / (4 * math.Sqrt(2)),
	(3 - math.Sqrt(3)) / (4 * math.Sqrt(2)),
	(1 - math.Sqrt(3)) / (4 * math.Sqrt(2)),
}

var daub4 = newFilterBank(daub4LowPass)

// newFilterBank derives the high-pass filter with the quadrature mirror relation
// g[i] = (-1)^i * h[L-1-i]
func newFilterBank(lowPass [Taps]float64) FilterBank {
	fb := FilterBank{LowPass: lowPass}
	for i := range Taps {
		sign := 1.0
		if i%2 == 1 {
			sign = -1.0
		}
		fb.HighPass[i] = sign * lowPass[Taps-1-i]
	}
	return fb
}

// Daubechies4 returns the Daubechies-4 filter bank. The value is a copy of a
// package-level constant, so callers may not alter the filters used by Decompose.
func Daubechies4() FilterBank {
	return daub4
}
