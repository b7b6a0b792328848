package features

import (
	"bytes"
	"errors"
	"regexp"
	"strconv"
	"testing"

	"github.com/RyanBlaney/sonido-dcase/algorithms/common"
	"github.com/RyanBlaney/sonido-dcase/algorithms/wavelet"
	"github.com/RyanBlaney/sonido-dcase/config"
	"github.com/RyanBlaney/sonido-dcase/internal/testutil"
	"github.com/RyanBlaney/sonido-dcase/logging"
)

func TestDaubechiesExtractor_Flat(t *testing.T) {
	t.Parallel()

	e, err := NewDaubechiesExtractor(config.Daub4Config{Depth: 3, Output: config.Daub4Flat})
	if err != nil {
		t.Fatalf("NewDaubechiesExtractor() error = %v", err)
	}

	signal := testutil.Noise(3, 1, 64)
	got, err := e.Extract(signal, 16000)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	want, _ := wavelet.TransformFlat(signal, 3)
	testutil.RequireSliceNearlyEqual(t, got, want, 0)
}

func TestDaubechiesExtractor_Trend(t *testing.T) {
	t.Parallel()

	e, err := NewDaubechiesExtractor(config.Daub4Config{Depth: 6, Output: config.Daub4Trend})
	if err != nil {
		t.Fatalf("NewDaubechiesExtractor() error = %v", err)
	}

	signal := testutil.Noise(4, 1, 640)
	got, err := e.Extract(signal, 16000)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("trend length = %d, want 10", len(got))
	}

	d, _ := wavelet.Decompose(signal, 6)
	testutil.RequireSliceNearlyEqual(t, got, d.Approximation(), 0)
}

func TestDaubechiesExtractor_Fit(t *testing.T) {
	t.Parallel()

	signal := testutil.Ramp(7)

	strict, _ := NewDaubechiesExtractor(config.Daub4Config{Depth: 1})
	if _, err := strict.Extract(signal, 16000); !errors.Is(err, wavelet.ErrInvalidInput) {
		t.Errorf("Extract() error = %v, want ErrInvalidInput", err)
	}

	tests := []struct {
		fit  common.FitMode
		want int
	}{
		{common.FitTrim, 4},
		{common.FitPad, 8},
	}
	for _, tt := range tests {
		e, err := NewDaubechiesExtractor(config.Daub4Config{Depth: 2, Fit: tt.fit})
		if err != nil {
			t.Fatalf("NewDaubechiesExtractor(%s) error = %v", tt.fit, err)
		}
		got, err := e.Extract(signal, 16000)
		if err != nil {
			t.Fatalf("Extract(%s) error = %v", tt.fit, err)
		}
		if len(got) != tt.want {
			t.Errorf("Extract(%s) length = %d, want %d", tt.fit, len(got), tt.want)
		}
	}
}

func TestDaubechiesExtractor_InvalidConfig(t *testing.T) {
	t.Parallel()

	if _, err := NewDaubechiesExtractor(config.Daub4Config{Depth: -1}); !errors.Is(err, wavelet.ErrInvalidInput) {
		t.Errorf("negative depth error = %v, want ErrInvalidInput", err)
	}
	if _, err := NewDaubechiesExtractor(config.Daub4Config{Depth: 2, Output: "chunks"}); err == nil {
		t.Error("unknown output should fail")
	}
	if _, err := NewDaubechiesExtractor(config.Daub4Config{Depth: 2, Fit: "stretch"}); err == nil {
		t.Error("unknown fit should fail")
	}
}

func TestMFCCExtractor(t *testing.T) {
	t.Parallel()

	e, err := NewMFCCExtractor(config.DefaultMFCCConfig())
	if err != nil {
		t.Fatalf("NewMFCCExtractor() error = %v", err)
	}

	row, err := e.Extract(testutil.Noise(9, 0.5, 16000), 16000)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(row) != 32*27 {
		t.Errorf("row length = %d, want %d", len(row), 32*27)
	}
	testutil.RequireFinite(t, row)
}

func TestNewExtractor(t *testing.T) {
	t.Parallel()

	for _, kind := range []config.ExtractorKind{config.ExtractorDaub4, config.ExtractorMFCC} {
		e, err := NewExtractor(*config.DefaultConfig(kind))
		if err != nil {
			t.Fatalf("NewExtractor(%s) error = %v", kind, err)
		}
		if e.Name() != string(kind) {
			t.Errorf("Name() = %q, want %q", e.Name(), kind)
		}
	}

	if _, err := NewExtractor(*config.DefaultConfig("chroma")); err == nil {
		t.Error("unknown extractor should fail")
	}
}

func TestDaubechiesExtractor_EnergyTrace(t *testing.T) {
	t.Parallel()

	e, err := NewDaubechiesExtractor(config.Daub4Config{Depth: 4})
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	logger := logging.NewWriterLogger(&out, &out)
	logger.SetLevel(logging.DebugLevel)
	e.logger = logger

	signal := testutil.Noise(12, 1, 256)
	if _, err := e.Extract(signal, 16000); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	energies := map[string]float64{}
	for _, m := range regexp.MustCompile(`(input_energy|output_energy):(\S+?)[ \]]`).FindAllStringSubmatch(out.String(), -1) {
		v, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			t.Fatalf("parse %s: %v", m[0], err)
		}
		energies[m[1]] = v
	}
	if len(energies) != 2 {
		t.Fatalf("energy trace missing from %q", out.String())
	}
	testutil.RequireNearlyEqual(t, energies["output_energy"], energies["input_energy"], 1e-9*energies["input_energy"])
}
