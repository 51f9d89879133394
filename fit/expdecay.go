package fit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/plasmadsp/rfea/dsp/smooth"
	"github.com/plasmadsp/rfea/progress"
)

// ExpDecayConfig tunes FitExpDecay. StartSamples and EndSamples are the
// trace-edge sample counts averaged to estimate the saturation and floor
// currents; zero selects 100 each.
type ExpDecayConfig struct {
	StartSamples int
	EndSamples   int
}

// ExpDecay is the result of fitting the retarding branch of an IV curve to
//
//	I(V) = A exp(-(V-X0)/B) + C
//
// B is the e-folding width of the decay in volts, which for a Maxwellian
// population equals the ion temperature in eV. Vp is the plasma potential
// read off where the fitted curve departs from the saturation current.
type ExpDecay struct {
	Vp    float64
	Ti    float64 // [eV]
	TiErr float64 // one-sigma error on Ti; NaN when not estimable
	A     float64
	B     float64
	C     float64
	X0    float64 // knee voltage the model is anchored at, not fitted
	Cut   int     // sample index where the decay fit begins
}

// expModel returns the decay model anchored at the knee voltage x0:
//
//	I(V) = a exp(-(V-x0)/b) + c
//
// x0 is pinned rather than fitted. A free x0 is redundant with a (it only
// rescales the amplitude), which leaves the Jacobian rank-deficient and
// the parameter errors undefined.
func expModel(x0 float64) func(x float64, p []float64) float64 {
	return func(x float64, p []float64) float64 {
		return p[0]*math.Exp(-(x-x0)/p[1]) + p[2]
	}
}

// FitExpDecay extracts Ti and Vp from one IV curve. The curve is smoothed,
// the steepest-descent sample located from the gradient, and the decaying
// tail beyond it fitted with the model anchored at that sample. Fits that
// diverge or land outside the physical bounds (positive amplitude,
// 0 < B <= 50 eV, offset between floor and saturation) return
// ErrFitDiverged.
func FitExpDecay(volt, curr []float64, cfg ExpDecayConfig) (*ExpDecay, error) {
	if len(volt) == 0 || len(curr) == 0 {
		return nil, ErrEmptyInput
	}
	if len(volt) != len(curr) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(volt), len(curr))
	}
	n := len(curr)
	if cfg.StartSamples <= 0 {
		cfg.StartSamples = 100
	}
	if cfg.EndSamples <= 0 {
		cfg.EndSamples = 100
	}

	temp, err := smooth.Smooth(curr, oddWindow(n, 11))
	if err != nil {
		return nil, err
	}

	// The steepest current drop marks where the exponential tail starts.
	wide, err := smooth.Smooth(temp, oddWindow(n, 51))
	if err != nil {
		return nil, err
	}
	cut := floats.MaxIdx(smooth.Gradient(wide))

	vstart := mean(temp[:clamp(cfg.StartSamples, 1, n)])
	vend := mean(temp[n-clamp(cfg.EndSamples, 1, n):])

	if n-cut < 5 {
		return nil, fmt.Errorf("%w: %d samples beyond the knee", ErrTooFewSamples, n-cut)
	}

	x0 := volt[cut]
	model := expModel(x0)
	guess := []float64{vstart - vend, 2, vend}
	popt, err := leastSquares(volt[cut:], temp[cut:], guess, model)
	if err != nil {
		return nil, err
	}

	a, b, c := popt[0], popt[1], popt[2]
	if a < 0.1*(vstart-vend) || b <= 0 || b > 50 || c < vend-vstart || c > vstart {
		return nil, ErrFitDiverged
	}

	// Vp sits where the fitted decay crosses the saturation level.
	vp := volt[0]
	bestDiff := math.Inf(1)
	for i := range volt {
		if d := math.Abs(vstart - model(volt[i], popt)); d < bestDiff {
			bestDiff = d
			vp = volt[i]
		}
	}

	return &ExpDecay{
		Vp:    vp,
		Ti:    b,
		TiErr: stdErrors(volt[cut:], temp[cut:], popt, model)[1],
		A:     a,
		B:     b,
		C:     c,
		X0:    x0,
		Cut:   cut,
	}, nil
}

// TiProfileConfig tunes TiProfile. Stride skips time samples (default 1),
// Res divides raw current by the sense resistance (default 1), Reporter
// receives per-slice progress.
type TiProfileConfig struct {
	Stride   int
	Res      float64
	Decay    ExpDecayConfig
	Reporter progress.Reporter
}

// TiPoint is one time slice of a Ti profile. OK is false when the fit for
// that slice was rejected; Vp, Ti and TiErr are then NaN.
type TiPoint struct {
	T     int
	Vp    float64
	Ti    float64
	TiErr float64
	OK    bool
}

// TiProfile runs FitExpDecay over a time-major stack of IV curves:
// curr[t][step] is the current at time t and sweep step. Per-slice fit
// failures yield NaN points and the profile continues; only malformed
// input aborts.
func TiProfile(volt []float64, curr [][]float64, cfg TiProfileConfig) ([]TiPoint, error) {
	if len(volt) == 0 || len(curr) == 0 {
		return nil, ErrEmptyInput
	}
	if cfg.Stride <= 0 {
		cfg.Stride = 1
	}
	if cfg.Res == 0 {
		cfg.Res = 1
	}
	if cfg.Reporter == nil {
		cfg.Reporter = progress.Nop{}
	}

	nt := len(curr)
	npts := (nt + cfg.Stride - 1) / cfg.Stride
	out := make([]TiPoint, 0, npts)

	scaled := make([]float64, len(volt))
	for i, t := 0, 0; t < nt; i, t = i+1, t+cfg.Stride {
		if len(curr[t]) != len(volt) {
			return nil, fmt.Errorf("%w: slice %d has %d steps, voltage axis has %d",
				ErrLengthMismatch, t, len(curr[t]), len(volt))
		}
		cfg.Reporter.Step([]int{i}, []int{npts}, []string{"time"})

		for j, v := range curr[t] {
			scaled[j] = v / cfg.Res
		}

		pt := TiPoint{T: t, Vp: math.NaN(), Ti: math.NaN(), TiErr: math.NaN()}
		if dec, err := FitExpDecay(volt, scaled, cfg.Decay); err == nil {
			pt.Vp, pt.Ti, pt.TiErr, pt.OK = dec.Vp, dec.Ti, dec.TiErr, true
		}
		out = append(out, pt)
	}
	return out, nil
}

// oddWindow shrinks a preferred smoothing window to fit a trace of length
// n, keeping it odd and at least 1.
func oddWindow(n, w int) int {
	if w > n {
		w = n
	}
	if w%2 == 0 {
		w--
	}
	if w < 1 {
		w = 1
	}
	return w
}

func mean(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
