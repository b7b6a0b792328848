package features

import (
	"fmt"
	"slices"

	"github.com/RyanBlaney/sonido-dcase/algorithms/common"
	"github.com/RyanBlaney/sonido-dcase/algorithms/spectral"
	"github.com/RyanBlaney/sonido-dcase/algorithms/wavelet"
	"github.com/RyanBlaney/sonido-dcase/config"
	"github.com/RyanBlaney/sonido-dcase/logging"
)

// Extractor turns the PCM of one chunk into a feature row
type Extractor interface {
	Extract(pcm []float64, sampleRate int) ([]float64, error)
	Name() string
}

// NewExtractor creates the extractor selected by cfg
func NewExtractor(cfg config.Config) (Extractor, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "feature_extractor_factory",
		"function":  "NewExtractor",
		"extractor": cfg.Extractor,
	})

	switch cfg.Extractor {
	case config.ExtractorDaub4:
		logger.Debug("Creating Daubechies-4 extractor", logging.Fields{
			"depth":  cfg.Daub4.Depth,
			"output": cfg.Daub4.Output,
		})
		return NewDaubechiesExtractor(cfg.Daub4)

	case config.ExtractorMFCC:
		logger.Debug("Creating MFCC extractor", logging.Fields{
			"coefficients": cfg.MFCC.NumCoefficients,
		})
		return NewMFCCExtractor(cfg.MFCC)

	default:
		return nil, fmt.Errorf("unknown extractor %q", cfg.Extractor)
	}
}

// DaubechiesExtractor emits the Daubechies-4 decomposition of a chunk
type DaubechiesExtractor struct {
	depth  int
	output config.Daub4Output
	fit    common.FitMode
	block  int
	logger logging.Logger
}

// NewDaubechiesExtractor validates cfg and creates the extractor
func NewDaubechiesExtractor(cfg config.Daub4Config) (*DaubechiesExtractor, error) {
	block, err := wavelet.RequiredMultiple(cfg.Depth)
	if err != nil {
		return nil, err
	}

	output := cfg.Output
	switch output {
	case "":
		output = config.Daub4Flat
	case config.Daub4Flat, config.Daub4Trend:
	default:
		return nil, fmt.Errorf("unknown wavelet output %q", cfg.Output)
	}

	fit, err := common.ParseFitMode(string(cfg.Fit))
	if err != nil {
		return nil, err
	}

	return &DaubechiesExtractor{
		depth:  cfg.Depth,
		output: output,
		fit:    fit,
		block:  block,
		logger: logging.WithFields(logging.Fields{
			"component": "daub4_extractor",
		}),
	}, nil
}

// Extract decomposes pcm. Without a fit mode a length that is not a multiple
// of 2^depth fails with wavelet.ErrInvalidInput.
func (e *DaubechiesExtractor) Extract(pcm []float64, sampleRate int) ([]float64, error) {
	signal, err := common.FitToMultiple(pcm, e.block, e.fit)
	if err != nil {
		return nil, err
	}

	d, err := wavelet.Decompose(signal, e.depth)
	if err != nil {
		return nil, err
	}

	// The transform is orthonormal, so both energies match up to rounding
	outputEnergy := 0.0
	for _, band := range d {
		outputEnergy += common.Energy(band)
	}
	e.logger.Debug("Decomposed chunk", logging.Fields{
		"samples":       len(signal),
		"depth":         e.depth,
		"input_energy":  common.Energy(signal),
		"output_energy": outputEnergy,
	})

	if e.output == config.Daub4Trend {
		return slices.Clone(d.Approximation()), nil
	}
	return d.Flatten(), nil
}

func (e *DaubechiesExtractor) Name() string {
	return "daub4"
}

// MFCCExtractor emits the frame-major MFCC matrix of a chunk
type MFCCExtractor struct {
	mfcc *spectral.MFCC
}

// NewMFCCExtractor creates an MFCC extractor from cfg
func NewMFCCExtractor(cfg config.MFCCConfig) (*MFCCExtractor, error) {
	mfcc, err := spectral.NewMFCCWithParams(spectral.MFCCParams{
		NumCoefficients: cfg.NumCoefficients,
		NumMelFilters:   cfg.NumMelFilters,
		FFTSize:         cfg.FFTSize,
		HopSize:         cfg.HopSize,
		TopDB:           cfg.TopDB,
		HTK:             cfg.HTK,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MFCC: %w", err)
	}
	return &MFCCExtractor{mfcc: mfcc}, nil
}

func (e *MFCCExtractor) Extract(pcm []float64, sampleRate int) ([]float64, error) {
	result, err := e.mfcc.Compute(pcm, sampleRate)
	if err != nil {
		return nil, err
	}
	return result.Flatten(), nil
}

func (e *MFCCExtractor) Name() string {
	return "mfcc"
}
