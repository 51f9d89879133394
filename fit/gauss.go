package fit

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// GaussParams parameterizes the two-population distribution-function model
//
//	f(x) = A1 exp(-((x-X1)/B1)^2) + A2 exp(-((x-X2)/B2)^2) + C
//
// Population 1 is the main drifting ion population; population 2 absorbs a
// secondary population or a noise shoulder. The one-gaussian model is the
// same with A2 forced to zero.
type GaussParams struct {
	X1, A1, B1 float64
	X2, A2, B2 float64
	C          float64
}

// Two evaluates the two-gaussian model.
func (p GaussParams) Two(x float64) float64 {
	return p.A1*math.Exp(-sq((x-p.X1)/p.B1)) + p.A2*math.Exp(-sq((x-p.X2)/p.B2)) + p.C
}

// One evaluates the one-gaussian model (A2 ignored).
func (p GaussParams) One(x float64) float64 {
	return p.A1*math.Exp(-sq((x-p.X1)/p.B1)) + p.C
}

func sq(v float64) float64 { return v * v }

func (p GaussParams) slice() []float64 {
	return []float64{p.X1, p.A1, p.B1, p.X2, p.A2, p.B2, p.C}
}

func gaussFromSlice(v []float64) GaussParams {
	return GaussParams{X1: v[0], A1: v[1], B1: v[2], X2: v[3], A2: v[4], B2: v[5], C: v[6]}
}

// PeakConfig tunes FitPeaks. The quiet range brackets the voltages where
// real signal is expected; the loudest sample outside it sets the noise
// floor. Guess optionally recycles the accepted parameters of a
// neighbouring time slice as a fourth starting point, which stabilizes
// frame-to-frame fits in animations.
type PeakConfig struct {
	QuietLow  float64
	QuietHigh float64
	Guess     *GaussParams
}

// Default quiet range in volts for the 120V flux-rope discharges.
const (
	DefaultQuietLow  = 43
	DefaultQuietHigh = 95
)

// PeakFit is an accepted distribution-function fit.
type PeakFit struct {
	Params   GaussParams
	LSQ      float64 // sum of squared residuals over above-noise samples
	OneGauss bool
	Noise    float64 // noise floor used for guess seeding and rejection
}

// FitPeaks fits the distribution function y(x) with up to three candidate
// models (two-gaussian from an automatic guess, two-gaussian from the
// recycled guess, one-gaussian) and returns the candidate with the lowest
// above-noise residual. Two-gaussian candidates whose fitted amplitudes
// fall below 1.5x the noise floor, or whose parameters leave the physical
// bounds, are rejected. When every candidate is rejected the error is
// ErrFitDiverged; the caller is expected to skip the slice, not abort.
func FitPeaks(x, y []float64, cfg PeakConfig) (*PeakFit, error) {
	if len(x) == 0 || len(y) == 0 {
		return nil, ErrEmptyInput
	}
	if len(x) != len(y) {
		return nil, ErrLengthMismatch
	}
	if cfg.QuietLow == 0 && cfg.QuietHigh == 0 {
		cfg.QuietLow, cfg.QuietHigh = DefaultQuietLow, DefaultQuietHigh
	}

	noise := noiseFloor(x, y, cfg.QuietLow, cfg.QuietHigh)
	auto := autoGuess(x, y, noise)
	lo, hi := peakBounds(y, noise)

	type candidate struct {
		guess    GaussParams
		oneGauss bool
	}
	candidates := []candidate{{guess: auto}}
	if cfg.Guess != nil {
		candidates = append(candidates, candidate{guess: *cfg.Guess})
	}
	candidates = append(candidates, candidate{guess: auto, oneGauss: true})

	var best *PeakFit
	for _, cand := range candidates {
		model := GaussParams.Two
		if cand.oneGauss {
			model = GaussParams.One
		}
		eval := func(xv float64, p []float64) float64 {
			return model(gaussFromSlice(p), xv)
		}

		popt, err := leastSquares(x, y, cand.guess.slice(), eval)
		if err != nil {
			continue
		}
		params := gaussFromSlice(popt)
		if cand.oneGauss {
			params.A2 = 0
		}

		if !withinBounds(params, lo, hi, cand.oneGauss) {
			continue
		}
		if !cand.oneGauss && (params.A1 < 1.5*noise || params.A2 < 1.5*noise) {
			continue
		}

		lsq := aboveNoiseLSQ(x, y, params, model, noise)
		// Later candidates win ties, so the simpler model is preferred
		// when it does no worse.
		if best == nil || lsq <= best.LSQ {
			best = &PeakFit{Params: params, LSQ: lsq, OneGauss: cand.oneGauss, Noise: noise}
		}
	}

	if best == nil {
		return nil, ErrFitDiverged
	}
	return best, nil
}

// noiseFloor returns the loudest sample outside the quiet range, or zero
// when every sample is inside it.
func noiseFloor(x, y []float64, lo, hi float64) float64 {
	var floor float64
	for i := range x {
		if (x[i] < lo || x[i] > hi) && y[i] > floor {
			floor = y[i]
		}
	}
	return floor
}

// autoGuess seeds the two-gaussian fit: amplitude and FWHM-derived width
// from the data, peak positions from detected local maxima with fallback
// centers of 60V and 80V.
func autoGuess(x, y []float64, noise float64) GaussParams {
	maxY := floats.Max(y)

	// Half-maximum span converted to a gaussian 1/e half-width.
	first, last := -1, -1
	for i, v := range y {
		if v > maxY/2 {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	b1 := 1.0
	if first >= 0 && last > first {
		b1 = (x[last] - x[first]) / (2 * math.Sqrt(2*math.Log(2)))
	}

	guess := GaussParams{X1: 60, A1: maxY, B1: b1, X2: 80, A2: noise, B2: 1, C: 0}

	peaks := findPeaks(y, 1.5*noise, noise, 20)
	if len(peaks) > 0 {
		guess.X1 = x[peaks[0]]
	}
	if len(peaks) > 1 {
		guess.X2 = x[peaks[1]]
	}
	return guess
}

// peakBounds is the physical box for the fit: peak centers within the
// discriminator sweep plateau, amplitudes between the noise floor and just
// above the data maximum, widths up to 10V, and a near-zero offset.
func peakBounds(y []float64, noise float64) (lo, hi GaussParams) {
	maxY := floats.Max(y)
	lo = GaussParams{X1: 50, A1: noise, B1: 0, X2: 50, A2: noise, B2: 0, C: -0.5}
	hi = GaussParams{X1: 90, A1: 1.1 * maxY, B1: 10, X2: 90, A2: 1.1 * maxY, B2: 10, C: 0.05}
	return lo, hi
}

// withinBounds rejects solutions outside the physical box. The solver has
// no box constraints, so this check replaces them after the fact. For the
// one-gaussian model the second population's parameters are unused and not
// checked.
func withinBounds(p, lo, hi GaussParams, oneGauss bool) bool {
	if p.X1 < lo.X1 || p.X1 > hi.X1 || p.A1 < lo.A1 || p.A1 > hi.A1 ||
		p.B1 < lo.B1 || p.B1 > hi.B1 || p.C < lo.C || p.C > hi.C {
		return false
	}
	if oneGauss {
		return true
	}
	return p.X2 >= lo.X2 && p.X2 <= hi.X2 && p.A2 >= lo.A2 && p.A2 <= hi.A2 &&
		p.B2 >= lo.B2 && p.B2 <= hi.B2
}

// aboveNoiseLSQ sums squared residuals over samples that rise above the
// noise floor, so the quiet wings do not dominate model selection.
func aboveNoiseLSQ(x, y []float64, p GaussParams, model func(GaussParams, float64) float64, noise float64) float64 {
	var lsq float64
	for i := range x {
		if y[i] > noise {
			r := y[i] - model(p, x[i])
			lsq += r * r
		}
	}
	return lsq
}

// findPeaks locates local maxima of y that clear the height and prominence
// requirements, then thins them so no two survivors sit within minDistance
// samples, keeping the taller peak. Indices are returned in ascending
// order.
func findPeaks(y []float64, height, prominence float64, minDistance int) []int {
	var peaks []int
	for i := 1; i < len(y)-1; i++ {
		if y[i] > y[i-1] && y[i] > y[i+1] && y[i] >= height {
			if peakProminence(y, i) >= prominence {
				peaks = append(peaks, i)
			}
		}
	}

	if minDistance > 1 && len(peaks) > 1 {
		order := append([]int(nil), peaks...)
		sort.Slice(order, func(a, b int) bool { return y[order[a]] > y[order[b]] })

		removed := make(map[int]bool)
		for _, p := range order {
			if removed[p] {
				continue
			}
			for _, q := range peaks {
				if q != p && !removed[q] && abs(q-p) < minDistance {
					removed[q] = true
				}
			}
		}

		kept := peaks[:0]
		for _, p := range peaks {
			if !removed[p] {
				kept = append(kept, p)
			}
		}
		peaks = kept
	}
	return peaks
}

// peakProminence measures how far a peak rises above the higher of the two
// valleys separating it from taller terrain (or the signal edge).
func peakProminence(y []float64, peak int) float64 {
	leftBase := y[peak]
	for i := peak - 1; i >= 0; i-- {
		if y[i] > y[peak] {
			break
		}
		if y[i] < leftBase {
			leftBase = y[i]
		}
	}

	rightBase := y[peak]
	for i := peak + 1; i < len(y); i++ {
		if y[i] > y[peak] {
			break
		}
		if y[i] < rightBase {
			rightBase = y[i]
		}
	}

	base := leftBase
	if rightBase > base {
		base = rightBase
	}
	return y[peak] - base
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
