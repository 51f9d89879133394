package dfunc

import (
	"errors"
	"math"
	"testing"

	"github.com/plasmadsp/rfea/internal/testutil"
)

// sweep builds a one-sided IV trace with its retarding falloff at 60V.
// Its negated gradient is a clean bump.
func sweep(n int) (volt, curr []float64) {
	return testutil.RetardingSweep(n, 60, 8, 5)
}

func TestJoinMirrorSymmetry(t *testing.T) {
	volt, curr := sweep(121)

	j, err := Join(Side{Volt: volt, Curr: curr}, Side{Volt: volt, Curr: curr}, JoinConfig{})
	if err != nil {
		t.Fatal(err)
	}

	testutil.RequireFinite(t, j.F)
	if math.Abs(j.Factor-1) > 1e-12 {
		t.Errorf("Factor = %v, want 1 for identical sides", j.Factor)
	}
	if j.SpliceL != j.SpliceR {
		t.Errorf("splice points differ: %d vs %d", j.SpliceL, j.SpliceR)
	}

	// Identical sides must give F and Volt mirror-symmetric about the
	// splice: F(-1-m) == F(m), Volt(-1-m) == -Volt(m).
	zero := -j.Index[0] // position of Index == 0
	if j.Index[zero] != 0 {
		t.Fatalf("index origin at position %d holds %d", zero, j.Index[zero])
	}
	for m := 0; zero+m < len(j.F) && zero-1-m >= 0; m++ {
		if math.Abs(j.F[zero-1-m]-j.F[zero+m]) > 1e-12 {
			t.Fatalf("F asymmetric at m=%d: %v vs %v", m, j.F[zero-1-m], j.F[zero+m])
		}
		if math.Abs(j.Volt[zero-1-m]+j.Volt[zero+m]) > 1e-12 {
			t.Fatalf("Volt asymmetric at m=%d: %v vs %v", m, j.Volt[zero-1-m], j.Volt[zero+m])
		}
	}

	// The splice voltage is re-zeroed.
	if j.Volt[zero] != 0 {
		t.Errorf("splice voltage = %v, want 0", j.Volt[zero])
	}
}

func TestJoinIndexAxisFallback(t *testing.T) {
	_, curr := sweep(121)

	j, err := Join(Side{Curr: curr}, Side{Curr: curr}, JoinConfig{DV: 2})
	if err != nil {
		t.Fatal(err)
	}
	for i, idx := range j.Index {
		if j.Volt[i] != float64(idx)*2 {
			t.Fatalf("Volt[%d] = %v, want %v", i, j.Volt[i], float64(idx)*2)
		}
	}
}

func TestJoinNormalizesLeftToRight(t *testing.T) {
	volt, curr := sweep(121)

	// Left probe saw half the current.
	currL := make([]float64, len(curr))
	for i, v := range curr {
		currL[i] = v / 2
	}

	j, err := Join(Side{Volt: volt, Curr: currL}, Side{Volt: volt, Curr: curr}, JoinConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(j.Factor-2) > 0.1 {
		t.Errorf("Factor = %v, want ~2", j.Factor)
	}

	// After normalization the joined function is continuous at the splice.
	zero := -j.Index[0]
	if math.Abs(j.F[zero-1]-j.F[zero]) > 1e-9 {
		t.Errorf("discontinuity at splice: %v vs %v", j.F[zero-1], j.F[zero])
	}
}

func TestJoinDegenerateFlat(t *testing.T) {
	curr := testutil.DC(5, 121)

	_, err := Join(Side{Curr: curr}, Side{Curr: curr}, JoinConfig{})
	if !errors.Is(err, ErrDegenerateSplice) {
		t.Errorf("error = %v, want %v", err, ErrDegenerateSplice)
	}
}

func TestJoinValidation(t *testing.T) {
	volt, curr := sweep(121)

	if _, err := Join(Side{}, Side{Volt: volt, Curr: curr}, JoinConfig{}); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("empty left: error = %v, want %v", err, ErrEmptyInput)
	}
	bad := Side{Volt: volt[:10], Curr: curr}
	if _, err := Join(bad, Side{Volt: volt, Curr: curr}, JoinConfig{}); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("short voltage axis: error = %v, want %v", err, ErrLengthMismatch)
	}
}

func TestEnergyIntegral(t *testing.T) {
	// Unit weights at V = +-4: Ti = (2+2)/(1/2+1/2) = 4 exactly.
	ti, err := EnergyIntegral([]float64{-4, 4}, []float64{1, 1})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(ti-4) > 1e-12 {
		t.Errorf("Ti = %v, want 4", ti)
	}

	// V=0 samples are skipped.
	ti, err = EnergyIntegral([]float64{0, 4}, []float64{9, 1})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(ti-4) > 1e-12 {
		t.Errorf("Ti with skipped origin = %v, want 4", ti)
	}

	// A vanishing denominator is NaN, not a crash.
	ti, err = EnergyIntegral([]float64{4}, []float64{0})
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(ti) {
		t.Errorf("degenerate Ti = %v, want NaN", ti)
	}

	if _, err := EnergyIntegral(nil, nil); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("empty: error = %v, want %v", err, ErrEmptyInput)
	}
	if _, err := EnergyIntegral([]float64{1}, []float64{1, 2}); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("mismatch: error = %v, want %v", err, ErrLengthMismatch)
	}
}

func TestTiSeries(t *testing.T) {
	volt, curr := sweep(121)

	flat := testutil.DC(5, len(curr))

	currStack := [][]float64{curr, curr, flat, curr}
	series, err := TiSeries(volt, volt, currStack, currStack, SeriesConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if len(series) != 4 {
		t.Fatalf("series length = %d, want 4", len(series))
	}

	// Identical healthy slices give the same finite positive Ti.
	if math.IsNaN(series[0]) || series[0] <= 0 {
		t.Fatalf("Ti[0] = %v, want finite positive", series[0])
	}
	if series[0] != series[1] || series[0] != series[3] {
		t.Errorf("identical slices disagree: %v, %v, %v", series[0], series[1], series[3])
	}
	// The flat slice degenerates to NaN without ending the series.
	if !math.IsNaN(series[2]) {
		t.Errorf("flat slice Ti = %v, want NaN", series[2])
	}

	// Stride skips slices.
	series, err = TiSeries(volt, volt, currStack, currStack, SeriesConfig{Stride: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(series) != 2 {
		t.Errorf("strided series length = %d, want 2", len(series))
	}

	if _, err := TiSeries(volt, volt, currStack, currStack[:2], SeriesConfig{}); !errors.Is(err, ErrRaggedSeries) {
		t.Errorf("ragged error = %v, want %v", err, ErrRaggedSeries)
	}
}
