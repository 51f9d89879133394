// Package dfunc builds signed ion distribution functions from dual-probe
// RFEA sweeps.
//
// Two analyzers face opposite directions along the field line, each
// sweeping a one-sided IV curve. The negated smoothed gradient of each
// sweep is a one-sided distribution function; Join splices them back to
// back at their drift peaks into a single signed f(V), normalizing the
// left side to the right at the splice. The energy integral of the joined
// function is a model-free ion temperature estimate.
package dfunc

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/plasmadsp/rfea/dsp/smooth"
	"github.com/plasmadsp/rfea/fit"
	"github.com/plasmadsp/rfea/progress"
)

// Errors returned by the joiner.
var (
	ErrEmptyInput       = errors.New("dfunc: empty input")
	ErrLengthMismatch   = errors.New("dfunc: voltage and current lengths differ")
	ErrDegenerateSplice = errors.New("dfunc: zero gradient at splice point")
	ErrRaggedSeries     = errors.New("dfunc: series slices must share lengths")
)

// Side is one probe's one-sided sweep. Volt may be nil on both sides, in
// which case the joined axis falls back to sample index times DV.
type Side struct {
	Volt []float64
	Curr []float64
}

// JoinConfig tunes Join. Zero values select the standard smoothing: window
// 41, three passes, 1V index spacing. WindowR overrides the right side's
// window when the two analyzers were swept at different resolutions.
type JoinConfig struct {
	Window  int
	WindowR int
	Repeat  int
	DV      float64
}

func (c *JoinConfig) setDefaults() {
	if c.Window == 0 {
		c.Window = 41
	}
	if c.WindowR == 0 {
		c.WindowR = c.Window
	}
	if c.Repeat == 0 {
		c.Repeat = 3
	}
	if c.DV == 0 {
		c.DV = 1
	}
}

// Joined is a spliced signed distribution function. Index runs from
// -len(left slice) to len(right slice)-1 with 0 at the splice; F and Volt
// are parallel to it. Factor is the left-side normalization gradR/gradL
// applied at the splice.
type Joined struct {
	Index []int
	F     []float64
	Volt  []float64

	SpliceL int
	SpliceR int
	Factor  float64
}

// Join splices two one-sided sweeps into a signed distribution function.
//
// Each side is smoothed and differentiated, then its splice point chosen:
// nominally the gradient maximum, refined by a gaussian peak fit when the
// fitted drift-peak position stays within 10% of the raw maximum (fits
// that wander further are distrusted). The left slice is mirrored,
// normalized to the right side's splice amplitude, and concatenated.
func Join(left, right Side, cfg JoinConfig) (*Joined, error) {
	cfg.setDefaults()
	if err := checkSide(left); err != nil {
		return nil, fmt.Errorf("left: %w", err)
	}
	if err := checkSide(right); err != nil {
		return nil, fmt.Errorf("right: %w", err)
	}

	trL, vL, err := sideGradient(left, cfg.Window, cfg.Repeat, cfg.DV)
	if err != nil {
		return nil, fmt.Errorf("left: %w", err)
	}
	trR, vR, err := sideGradient(right, cfg.WindowR, cfg.Repeat, cfg.DV)
	if err != nil {
		return nil, fmt.Errorf("right: %w", err)
	}

	argL := splicePoint(vL, trL.Grad)
	argR := splicePoint(vR, trR.Grad)

	if trL.Grad[argL] == 0 {
		return nil, ErrDegenerateSplice
	}
	factor := trR.Grad[argR] / trL.Grad[argL]

	sliceL := trL.Grad[argL:]
	sliceR := trR.Grad[argR:]

	j := &Joined{
		Index:   make([]int, len(sliceL)+len(sliceR)),
		F:       make([]float64, 0, len(sliceL)+len(sliceR)),
		SpliceL: argL,
		SpliceR: argR,
		Factor:  factor,
	}
	for i := range j.Index {
		j.Index[i] = i - len(sliceL)
	}
	for i := len(sliceL) - 1; i >= 0; i-- {
		j.F = append(j.F, sliceL[i]*factor)
	}
	j.F = append(j.F, sliceR...)

	j.Volt = joinAxis(left, right, vL, vR, argL, argR, j.Index, cfg.DV)
	return j, nil
}

func checkSide(s Side) error {
	if len(s.Curr) == 0 {
		return ErrEmptyInput
	}
	if s.Volt != nil && len(s.Volt) != len(s.Curr) {
		return fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(s.Volt), len(s.Curr))
	}
	return nil
}

// sideGradient smooths and differentiates one sweep and builds the voltage
// axis of the trimmed samples (index*dV when no voltages were recorded).
func sideGradient(s Side, window, repeat int, dv float64) (smooth.Trim, []float64, error) {
	tr, err := smooth.Trimmed(s.Curr, window, repeat)
	if err != nil {
		return smooth.Trim{}, nil, err
	}

	v := make([]float64, len(tr.X))
	for i, xi := range tr.X {
		if s.Volt != nil {
			v[i] = s.Volt[xi]
		} else {
			v[i] = float64(xi) * dv
		}
	}
	return tr, v, nil
}

// splicePoint picks the splice sample: the gradient maximum, replaced by
// the fitted drift-peak position when a peak fit succeeds and lands within
// 10% of the raw maximum.
func splicePoint(v, grad []float64) int {
	arg := floats.MaxIdx(grad)

	pf, err := fit.FitPeaks(v, grad, fit.PeakConfig{})
	if err != nil {
		return arg
	}

	// With two populations the leftmost (slowest) peak marks the drift
	// velocity; the second sits on the tail.
	pp := pf.Params.X1
	if !pf.OneGauss && pf.Params.A2 != 0 && pf.Params.X2 < pp {
		pp = pf.Params.X2
	}

	argTest := 0
	for i := range v {
		if math.Abs(v[i]-pp) < math.Abs(v[argTest]-pp) {
			argTest = i
		}
	}
	if arg > 0 && math.Abs(float64(argTest-arg))/float64(arg) < 0.10 {
		return argTest
	}
	return arg
}

// joinAxis assembles the signed voltage axis: both sides re-zeroed at
// their splice voltage, the left negated and mirrored. Without recorded
// voltages the axis is the signed sample index scaled by dV.
func joinAxis(left, right Side, vL, vR []float64, argL, argR int, index []int, dv float64) []float64 {
	out := make([]float64, 0, len(index))
	if left.Volt == nil || right.Volt == nil {
		for _, i := range index {
			out = append(out, float64(i)*dv)
		}
		return out
	}

	for i := len(vL) - 1; i >= argL; i-- {
		out = append(out, -(vL[i] - vL[argL]))
	}
	for i := argR; i < len(vR); i++ {
		out = append(out, vR[i]-vR[argR])
	}
	return out
}

// EnergyIntegral estimates the ion temperature of a signed distribution
// function as the ratio of its sqrt(|V|)-weighted sums:
//
//	Ti = sum(f sqrt|V|) / sum(f / sqrt|V|)
//
// Samples at exactly V=0 carry no energy information and are skipped. A
// zero denominator (no usable samples, or exact cancellation) yields NaN;
// this degenerate value is deliberate and must be handled by the caller.
func EnergyIntegral(volt, f []float64) (float64, error) {
	if len(volt) == 0 || len(f) == 0 {
		return 0, ErrEmptyInput
	}
	if len(volt) != len(f) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(volt), len(f))
	}

	var num, den float64
	for i, v := range volt {
		if v == 0 {
			continue
		}
		root := math.Sqrt(math.Abs(v))
		num += f[i] * root
		den += f[i] / root
	}
	if den == 0 {
		return math.NaN(), nil
	}
	return num / den, nil
}

// SeriesConfig tunes TiSeries.
type SeriesConfig struct {
	Stride   int
	Join     JoinConfig
	Reporter progress.Reporter
}

// TiSeries runs the join and energy integral over two time-major IV
// stacks (currL[t][step], currR[t][step]) and returns Ti per processed
// slice. Slices whose join or integral degenerates yield NaN and the
// series continues.
func TiSeries(voltL, voltR []float64, currL, currR [][]float64, cfg SeriesConfig) ([]float64, error) {
	if len(currL) == 0 || len(currR) == 0 {
		return nil, ErrEmptyInput
	}
	if len(currL) != len(currR) {
		return nil, fmt.Errorf("%w: %d vs %d time slices", ErrRaggedSeries, len(currL), len(currR))
	}
	if cfg.Stride <= 0 {
		cfg.Stride = 1
	}
	if cfg.Reporter == nil {
		cfg.Reporter = progress.Nop{}
	}

	nt := len(currL)
	npts := (nt + cfg.Stride - 1) / cfg.Stride
	out := make([]float64, 0, npts)

	for i, t := 0, 0; t < nt; i, t = i+1, t+cfg.Stride {
		cfg.Reporter.Step([]int{i}, []int{npts}, []string{"time"})

		ti := math.NaN()
		j, err := Join(Side{Volt: voltL, Curr: currL[t]}, Side{Volt: voltR, Curr: currR[t]}, cfg.Join)
		switch {
		case err == nil:
			// A NaN integral (degenerate denominator) stays in the series.
			if v, err := EnergyIntegral(j.Volt, j.F); err == nil {
				ti = v
			}
		case errors.Is(err, ErrDegenerateSplice):
			// Recoverable per-slice failure.
		default:
			return nil, fmt.Errorf("dfunc: slice %d: %w", t, err)
		}
		out = append(out, ti)
	}
	return out, nil
}
