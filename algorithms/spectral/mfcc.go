package spectral

import (
	"fmt"
	"math"
	"sync"

	"github.com/RyanBlaney/sonido-dcase/algorithms/common"
	"github.com/RyanBlaney/sonido-dcase/algorithms/windowing"
	"github.com/RyanBlaney/sonido-dcase/logging"
)

// amin floors power values before taking the logarithm
const amin = 1e-10

// MFCC computes Mel-Frequency Cepstral Coefficient matrices from raw PCM.
// A single MFCC value may be shared between goroutines.
type MFCC struct {
	params    MFCCParams
	melScale  *MelScale
	window    *windowing.Hann
	stft      *STFT
	dctMatrix [][]float64
	logger    logging.Logger

	mu          sync.Mutex
	filterBanks map[int][][]float64 // By sample rate
}

// MFCCParams contains parameters for MFCC computation
type MFCCParams struct {
	NumCoefficients int     `json:"num_coefficients"` // Number of MFCC coefficients (default: 20)
	NumMelFilters   int     `json:"num_mel_filters"`  // Number of mel bands (default: 128)
	FFTSize         int     `json:"fft_size"`         // STFT window length (default: 2048)
	HopSize         int     `json:"hop_size"`         // STFT hop (default: 512)
	LowFreq         float64 `json:"low_freq"`         // Lowest mel edge in Hz (default: 0)
	HighFreq        float64 `json:"high_freq"`        // Highest mel edge in Hz (0 means sampleRate/2)
	TopDB           float64 `json:"top_db"`           // Dynamic range below the peak in dB (default: 80, negative disables)
	HTK             bool    `json:"htk"`              // HTK mel formula instead of Slaney
	LifterCoeff     float64 `json:"lifter_coeff"`     // Sinusoidal liftering, 0 disables
}

// MFCCResult holds one MFCC matrix
type MFCCResult struct {
	Coefficients    [][]float64 `json:"coefficients"`     // Frames x coefficients
	TimeFrames      int         `json:"time_frames"`      // Number of frames
	NumCoefficients int         `json:"num_coefficients"` // Coefficients per frame
	SampleRate      int         `json:"sample_rate"`      // Sample rate of the input
}

// DefaultMFCCParams mirrors the usual librosa defaults
func DefaultMFCCParams() MFCCParams {
	return MFCCParams{
		NumCoefficients: 20,
		NumMelFilters:   128,
		FFTSize:         2048,
		HopSize:         512,
		TopDB:           80.0,
	}
}

// NewMFCCWithParams creates an MFCC computer.
// Zero values are replaced by defaults.
func NewMFCCWithParams(params MFCCParams) (*MFCC, error) {
	defaults := DefaultMFCCParams()
	if params.NumCoefficients <= 0 {
		params.NumCoefficients = defaults.NumCoefficients
	}
	if params.NumMelFilters <= 0 {
		params.NumMelFilters = defaults.NumMelFilters
	}
	if params.FFTSize <= 0 {
		params.FFTSize = defaults.FFTSize
	}
	if params.HopSize <= 0 {
		params.HopSize = defaults.HopSize
	}
	if params.TopDB == 0 {
		params.TopDB = defaults.TopDB
	}

	if params.NumCoefficients > params.NumMelFilters {
		return nil, fmt.Errorf("cannot take %d coefficients from %d mel bands", params.NumCoefficients, params.NumMelFilters)
	}
	if params.LowFreq < 0 || (params.HighFreq > 0 && params.HighFreq <= params.LowFreq) {
		return nil, fmt.Errorf("invalid mel frequency range [%g, %g]", params.LowFreq, params.HighFreq)
	}

	window, err := windowing.NewPeriodicHann(params.FFTSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	melScale := NewMelScale()
	if params.HTK {
		melScale = NewHTKMelScale()
	}

	mfcc := &MFCC{
		params:      params,
		melScale:    melScale,
		window:      window,
		stft:        NewSTFT(),
		filterBanks: make(map[int][][]float64),
		logger: logging.WithFields(logging.Fields{
			"component": "mfcc",
		}),
	}
	mfcc.createDCTMatrix()
	warnFFTSize(mfcc.logger, params.FFTSize)

	return mfcc, nil
}

// warnFFTSize flags FFT sizes that go-dsp cannot run on its radix-2 path
func warnFFTSize(logger logging.Logger, fftSize int) {
	if !common.IsPowerOfTwo(fftSize) {
		logger.Warn("FFT size is not a power of two, frames fall back to Bluestein's algorithm", logging.Fields{
			"fft_size": fftSize,
		})
	}
}

// Compute returns the MFCC matrix of a mono signal
func (mfcc *MFCC) Compute(signal []float64, sampleRate int) (*MFCCResult, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}

	filterBank, err := mfcc.filterBank(sampleRate)
	if err != nil {
		return nil, err
	}

	spec, err := mfcc.stft.PowerSpectrogram(signal, sampleRate, mfcc.params.FFTSize, mfcc.params.HopSize, mfcc.window, true)
	if err != nil {
		return nil, fmt.Errorf("failed to compute spectrogram: %w", err)
	}

	logMel := make([][]float64, spec.TimeFrames)
	peak := math.Inf(-1)
	for t, power := range spec.Power {
		mel := mfcc.melScale.ApplyFilterBank(power, filterBank)
		for i, v := range mel {
			mel[i] = 10.0 * math.Log10(math.Max(amin, v))
			peak = math.Max(peak, mel[i])
		}
		logMel[t] = mel
	}

	// Limit the dynamic range relative to the loudest mel bin of the clip
	if mfcc.params.TopDB > 0 {
		floor := peak - mfcc.params.TopDB
		for _, frame := range logMel {
			for i, v := range frame {
				frame[i] = math.Max(v, floor)
			}
		}
	}

	coeffs := make([][]float64, spec.TimeFrames)
	for t, frame := range logMel {
		c := mfcc.applyDCT(frame)
		if mfcc.params.LifterCoeff > 0 {
			mfcc.applyLiftering(c)
		}
		coeffs[t] = c
	}

	return &MFCCResult{
		Coefficients:    coeffs,
		TimeFrames:      spec.TimeFrames,
		NumCoefficients: mfcc.params.NumCoefficients,
		SampleRate:      sampleRate,
	}, nil
}

// Flatten returns the coefficients frame by frame
func (r *MFCCResult) Flatten() []float64 {
	flat := make([]float64, 0, r.TimeFrames*r.NumCoefficients)
	for _, frame := range r.Coefficients {
		flat = append(flat, frame...)
	}
	return flat
}

// filterBank returns the mel filter bank for sampleRate, building it once
func (mfcc *MFCC) filterBank(sampleRate int) ([][]float64, error) {
	mfcc.mu.Lock()
	defer mfcc.mu.Unlock()

	if fb, ok := mfcc.filterBanks[sampleRate]; ok {
		return fb, nil
	}

	nyquist := float64(sampleRate) / 2.0
	highFreq := mfcc.params.HighFreq
	if highFreq <= 0 {
		highFreq = nyquist
	}
	if highFreq > nyquist {
		return nil, fmt.Errorf("high frequency %g Hz exceeds Nyquist %g Hz", highFreq, nyquist)
	}

	fb := mfcc.melScale.CreateMelFilterBank(
		mfcc.params.NumMelFilters,
		mfcc.params.FFTSize,
		sampleRate,
		mfcc.params.LowFreq,
		highFreq,
		!mfcc.params.HTK,
	)
	if len(fb) == 0 {
		return nil, fmt.Errorf("failed to create mel filter bank")
	}

	mfcc.logger.Debug("Created mel filter bank", logging.Fields{
		"sample_rate": sampleRate,
		"mel_bands":   len(fb),
		"high_freq":   highFreq,
	})

	mfcc.filterBanks[sampleRate] = fb
	return fb, nil
}

// createDCTMatrix creates the orthonormal DCT-II matrix
func (mfcc *MFCC) createDCTMatrix() {
	numCoeffs := mfcc.params.NumCoefficients
	numFilters := mfcc.params.NumMelFilters
	mfcc.dctMatrix = make([][]float64, numCoeffs)

	for k := range numCoeffs {
		mfcc.dctMatrix[k] = make([]float64, numFilters)

		norm := math.Sqrt(2.0 / float64(numFilters))
		if k == 0 {
			norm = math.Sqrt(1.0 / float64(numFilters))
		}

		for n := range numFilters {
			mfcc.dctMatrix[k][n] = norm * math.Cos(math.Pi*float64(k)*(float64(n)+0.5)/float64(numFilters))
		}
	}
}

// applyDCT applies the Discrete Cosine Transform
func (mfcc *MFCC) applyDCT(logMelSpectrum []float64) []float64 {
	mfccCoeffs := make([]float64, len(mfcc.dctMatrix))

	for k, basis := range mfcc.dctMatrix {
		sum := 0.0
		for n := 0; n < len(logMelSpectrum) && n < len(basis); n++ {
			sum += logMelSpectrum[n] * basis[n]
		}
		mfccCoeffs[k] = sum
	}

	return mfccCoeffs
}

// applyLiftering scales coefficient k by 1 + (L/2)*sin(pi*(k+1)/L)
func (mfcc *MFCC) applyLiftering(coeffs []float64) {
	l := mfcc.params.LifterCoeff
	for k := range coeffs {
		coeffs[k] *= 1.0 + (l/2.0)*math.Sin(math.Pi*float64(k+1)/l)
	}
}
