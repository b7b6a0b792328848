package spectral

import (
	"math"
)

// Slaney (Auditory Toolbox) mel scale: linear below 1 kHz, logarithmic above
const (
	slaneyLinearStep = 200.0 / 3.0
	slaneyMinLogHz   = 1000.0
	slaneyMinLogMel  = slaneyMinLogHz / slaneyLinearStep
)

var slaneyLogStep = math.Log(6.4) / 27.0

// MelScale provides mel frequency conversion and filter bank construction.
// The zero value uses the Slaney formula.
type MelScale struct {
	htk bool
}

// NewMelScale creates a Slaney mel scale
func NewMelScale() *MelScale {
	return &MelScale{}
}

// NewHTKMelScale creates a mel scale using the HTK formula 2595*log10(1+f/700)
func NewHTKMelScale() *MelScale {
	return &MelScale{htk: true}
}

// HzToMel converts frequency in Hz to mel scale
func (ms *MelScale) HzToMel(hz float64) float64 {
	if ms.htk {
		return 2595.0 * math.Log10(1.0+hz/700.0)
	}
	if hz >= slaneyMinLogHz {
		return slaneyMinLogMel + math.Log(hz/slaneyMinLogHz)/slaneyLogStep
	}
	return hz / slaneyLinearStep
}

// MelToHz converts mel scale to frequency in Hz
func (ms *MelScale) MelToHz(mel float64) float64 {
	if ms.htk {
		return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
	}
	if mel >= slaneyMinLogMel {
		return slaneyMinLogHz * math.Exp(slaneyLogStep*(mel-slaneyMinLogMel))
	}
	return slaneyLinearStep * mel
}

// MelFrequencies returns n frequencies in Hz, equally spaced on the mel scale
// between lowFreq and highFreq inclusive
func (ms *MelScale) MelFrequencies(n int, lowFreq, highFreq float64) []float64 {
	if n <= 0 {
		return nil
	}
	freqs := make([]float64, n)
	if n == 1 {
		freqs[0] = lowFreq
		return freqs
	}

	lowMel := ms.HzToMel(lowFreq)
	step := (ms.HzToMel(highFreq) - lowMel) / float64(n-1)
	for i := range freqs {
		freqs[i] = ms.MelToHz(lowMel + float64(i)*step)
	}
	return freqs
}

// CreateMelFilterBank builds numFilters triangular filters over the fftSize/2+1
// bins of a real FFT. Edges are placed on the mel scale and the triangles are
// evaluated at the exact bin frequencies. With normalize set, every filter is
// scaled by 2/(upper-lower) so it has constant area in Hz.
func (ms *MelScale) CreateMelFilterBank(numFilters, fftSize, sampleRate int, lowFreq, highFreq float64, normalize bool) [][]float64 {
	if numFilters <= 0 || fftSize <= 0 || sampleRate <= 0 {
		return nil
	}

	numBins := fftSize/2 + 1
	binFreqs := make([]float64, numBins)
	for k := range binFreqs {
		binFreqs[k] = float64(k) * float64(sampleRate) / float64(fftSize)
	}

	edges := ms.MelFrequencies(numFilters+2, lowFreq, highFreq)

	filterBank := make([][]float64, numFilters)
	for m := range filterBank {
		left, center, right := edges[m], edges[m+1], edges[m+2]
		filter := make([]float64, numBins)

		for k, f := range binFreqs {
			var rising, falling float64
			if center > left {
				rising = (f - left) / (center - left)
			}
			if right > center {
				falling = (right - f) / (right - center)
			}
			filter[k] = math.Max(0, math.Min(rising, falling))
		}

		if normalize && right > left {
			scale := 2.0 / (right - left)
			for k := range filter {
				filter[k] *= scale
			}
		}

		filterBank[m] = filter
	}

	return filterBank
}

// ApplyFilterBank applies mel filter bank to power spectrum
func (ms *MelScale) ApplyFilterBank(powerSpectrum []float64, filterBank [][]float64) []float64 {
	if len(filterBank) == 0 || len(powerSpectrum) == 0 {
		return []float64{}
	}

	melSpectrum := make([]float64, len(filterBank))

	for i, filter := range filterBank {
		sum := 0.0
		for j := 0; j < len(filter) && j < len(powerSpectrum); j++ {
			sum += powerSpectrum[j] * filter[j]
		}
		melSpectrum[i] = sum
	}

	return melSpectrum
}
