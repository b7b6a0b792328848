package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/RyanBlaney/sonido-dcase/algorithms/common"
	"github.com/RyanBlaney/sonido-dcase/logging"
)

// ExtractorKind selects the feature pipeline
type ExtractorKind string

const (
	ExtractorDaub4 ExtractorKind = "daub4"
	ExtractorMFCC  ExtractorKind = "mfcc"
)

// Daub4Output selects which part of the wavelet decomposition becomes the feature row
type Daub4Output string

const (
	Daub4Flat  Daub4Output = "flat"  // Trend followed by all detail bands, coarse to fine
	Daub4Trend Daub4Output = "trend" // Coarsest approximation only
)

// ErrorPolicy decides what the batch does when one chunk fails
type ErrorPolicy string

const (
	OnErrorAbort ErrorPolicy = "abort"
	OnErrorSkip  ErrorPolicy = "skip"
)

// Config holds one feature extraction run
type Config struct {
	// Dataset
	Root         string `json:"root"`          // Directory holding chime_home/
	Dataset      string `json:"dataset"`       // Index name, e.g. development_chunks_refined
	SamplingRate string `json:"sampling_rate"` // "16kHz" or "48kHz"

	Extractor ExtractorKind `json:"extractor"`
	Daub4     Daub4Config   `json:"daub4"`
	MFCC      MFCCConfig    `json:"mfcc"`

	Output OutputConfig `json:"output"`

	// Batch behavior
	Workers  int         `json:"workers"`   // 0 = one per CPU
	OnError  ErrorPolicy `json:"on_error"`  // "abort" or "skip"
	Progress bool        `json:"progress"`  // Render a progress bar on stderr
	LogLevel string      `json:"log_level"` // debug, info, warn, error
}

// Daub4Config configures the Daubechies-4 wavelet features
type Daub4Config struct {
	Depth  int            `json:"depth"`  // Decomposition levels
	Output Daub4Output    `json:"output"` // "flat" or "trend"
	Fit    common.FitMode `json:"fit"`    // "none", "trim" or "pad" to a multiple of 2^depth
}

// MFCCConfig configures the MFCC features
type MFCCConfig struct {
	NumCoefficients int     `json:"num_coefficients"`
	NumMelFilters   int     `json:"num_mel_filters"`
	FFTSize         int     `json:"fft_size"`
	HopSize         int     `json:"hop_size"`
	TopDB           float64 `json:"top_db"`
	HTK             bool    `json:"htk"`
}

// OutputConfig names the persisted files
type OutputConfig struct {
	Features string `json:"features"` // Whitespace-delimited matrix, one row per chunk
	Labels   string `json:"labels"`   // One label per line, same order
}

// DefaultDaub4Config returns the wavelet settings used for the 16 kHz DCASE2016 chunks
func DefaultDaub4Config() Daub4Config {
	return Daub4Config{
		Depth:  6,
		Output: Daub4Flat,
		Fit:    common.FitNone,
	}
}

// DefaultMFCCConfig returns MFCC settings for 16 kHz audio. 27 coefficients
// match the 3-leg isometries of the downstream MERA classifier.
func DefaultMFCCConfig() MFCCConfig {
	return MFCCConfig{
		NumCoefficients: 27,
		NumMelFilters:   128,
		FFTSize:         1024,
		HopSize:         512,
		TopDB:           80.0,
	}
}

// DefaultConfig returns the settings of a DCASE2016 run for the given extractor
func DefaultConfig(kind ExtractorKind) *Config {
	cfg := &Config{
		Root:         ".",
		Dataset:      "development_chunks_refined",
		SamplingRate: "16kHz",
		Extractor:    kind,
		Daub4:        DefaultDaub4Config(),
		MFCC:         DefaultMFCCConfig(),
		Output: OutputConfig{
			Features: "dcase2016." + string(kind),
			Labels:   "dcase2016.labels",
		},
		Workers:  0,
		OnError:  OnErrorAbort,
		Progress: false,
		LogLevel: "info",
	}
	return cfg
}

// Load reads a JSON config file on top of the defaults of its extractor
// (daub4 when the file names none)
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var probe struct {
		Extractor ExtractorKind `json:"extractor"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if probe.Extractor == "" {
		probe.Extractor = ExtractorDaub4
	}

	cfg := DefaultConfig(probe.Extractor)
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error

	if c.Dataset == "" {
		errs = append(errs, errors.New("dataset must be set"))
	}
	if c.SamplingRate == "" {
		errs = append(errs, errors.New("sampling_rate must be set"))
	}

	switch c.Extractor {
	case ExtractorDaub4:
		if c.Daub4.Depth < 0 || c.Daub4.Depth > 30 {
			errs = append(errs, fmt.Errorf("daub4.depth %d out of range [0, 30]", c.Daub4.Depth))
		}
		switch c.Daub4.Output {
		case Daub4Flat, Daub4Trend:
		default:
			errs = append(errs, fmt.Errorf("unknown daub4.output %q", c.Daub4.Output))
		}
		if _, err := common.ParseFitMode(string(c.Daub4.Fit)); err != nil {
			errs = append(errs, fmt.Errorf("daub4.fit: %w", err))
		}
	case ExtractorMFCC:
		if c.MFCC.NumCoefficients <= 0 {
			errs = append(errs, fmt.Errorf("mfcc.num_coefficients must be positive, got %d", c.MFCC.NumCoefficients))
		}
		if c.MFCC.FFTSize <= 0 || c.MFCC.HopSize <= 0 {
			errs = append(errs, fmt.Errorf("mfcc.fft_size and mfcc.hop_size must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown extractor %q", c.Extractor))
	}

	if c.Output.Features == "" || c.Output.Labels == "" {
		errs = append(errs, errors.New("output.features and output.labels must be set"))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	switch c.OnError {
	case OnErrorAbort, OnErrorSkip:
	default:
		errs = append(errs, fmt.Errorf("unknown on_error policy %q", c.OnError))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
