package common

import (
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-dcase/internal/testutil"
)

func TestStatistics(t *testing.T) {
	t.Parallel()

	data := []float64{1, 2, 3, 4}

	testutil.RequireNearlyEqual(t, Mean(data), 2.5, 1e-12)
	testutil.RequireNearlyEqual(t, Energy(data), 30, 1e-12)
	testutil.RequireNearlyEqual(t, RMS(data), math.Sqrt(7.5), 1e-12)

	if Mean(nil) != 0 || RMS(nil) != 0 {
		t.Error("degenerate inputs should yield 0")
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	t.Parallel()

	for n, want := range map[int]bool{0: false, 1: true, 2: true, 6: false, 1024: true, -4: false} {
		if got := IsPowerOfTwo(n); got != want {
			t.Errorf("IsPowerOfTwo(%d) = %v, want %v", n, got, want)
		}
	}
}

func TestFitToMultiple(t *testing.T) {
	t.Parallel()

	signal := testutil.Ramp(10)

	tests := []struct {
		name string
		mode FitMode
		want []float64
	}{
		{"none", FitNone, testutil.Ramp(10)},
		{"trim", FitTrim, testutil.Ramp(8)},
		{"pad", FitPad, append(testutil.Ramp(10), 0, 0, 0, 0, 0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := FitToMultiple(signal, 8, tt.mode)
			if err != nil {
				t.Fatalf("FitToMultiple() error = %v", err)
			}
			testutil.RequireSliceNearlyEqual(t, got, tt.want, 0)
		})
	}

	if _, err := FitToMultiple(signal, 0, FitPad); err == nil {
		t.Error("FitToMultiple() with block 0 should fail")
	}
	if _, err := FitToMultiple(signal, 4, FitMode("stretch")); err == nil {
		t.Error("FitToMultiple() with unknown mode should fail")
	}
}

func TestFitToMultiple_EmptyPad(t *testing.T) {
	t.Parallel()

	got, err := FitToMultiple(nil, 4, FitPad)
	if err != nil {
		t.Fatalf("FitToMultiple() error = %v", err)
	}
	if len(got) != 4 {
		t.Errorf("len = %d, want 4", len(got))
	}
}

func TestParseFitMode(t *testing.T) {
	t.Parallel()

	if m, err := ParseFitMode(""); err != nil || m != FitNone {
		t.Errorf("ParseFitMode(\"\") = %q, %v", m, err)
	}
	if m, err := ParseFitMode("pad"); err != nil || m != FitPad {
		t.Errorf("ParseFitMode(\"pad\") = %q, %v", m, err)
	}
	if _, err := ParseFitMode("mirror"); err == nil {
		t.Error("ParseFitMode(\"mirror\") should fail")
	}
}

func TestReflectPad(t *testing.T) {
	t.Parallel()

	got, err := ReflectPad([]float64{1, 2, 3, 4}, 2)
	if err != nil {
		t.Fatalf("ReflectPad() error = %v", err)
	}
	testutil.RequireSliceNearlyEqual(t, got, []float64{3, 2, 1, 2, 3, 4, 3, 2}, 0)

	if _, err := ReflectPad([]float64{1, 2}, 2); err == nil {
		t.Error("ReflectPad() should reject padding as long as the signal")
	}
}
