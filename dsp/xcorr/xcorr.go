// Package xcorr estimates the sample lag between a reference trace and a
// candidate trace by normalized cross-correlation, with a confidence
// threshold that turns low-quality alignments into an explicit "no reliable
// lag" outcome instead of a bogus shift.
//
// The estimator is the building block of conditional averaging: every shot's
// B-field trace is aligned against a reference shot, and the resulting lag
// is applied to the shot's current trace with a wrap-around shift (Roll).
package xcorr

import (
	"errors"
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// Errors returned by the lag estimator.
var (
	ErrEmptyInput       = errors.New("xcorr: empty input")
	ErrLengthMismatch   = errors.New("xcorr: traces must have equal length")
	ErrInvalidThreshold = errors.New("xcorr: threshold must be in (0, 1]")
)

// fftThreshold is the trace length above which the FFT path is used.
// Below it the direct O(n^2) sweep is faster and allocation-free.
const fftThreshold = 128

// Lag is the outcome of one alignment attempt. Offset is the number of
// samples by which the candidate is delayed relative to the reference;
// applying Roll(candidate, -Offset) brings the two into phase. Coeff is the
// peak normalized correlation coefficient in [-1, 1]. Valid is false when
// the peak fell below the caller's threshold or when either trace had zero
// variance (no correlation is defined); Offset must then be ignored.
type Lag struct {
	Offset int
	Coeff  float64
	Valid  bool
}

// EstimateLag computes the sample offset at which sig best correlates with
// ref. Both traces are mean-removed and the correlation is normalized by
// the product of their norms, so Coeff is scale-invariant.
//
// threshold is the minimum acceptable peak coefficient and must be supplied
// by the caller; typical values for B-dot phase references are 0.7-0.8,
// tuned per dataset. The result is deterministic for identical inputs: a
// tied peak resolves to the most negative lag.
func EstimateLag(ref, sig []float64, threshold float64) (Lag, error) {
	if len(ref) == 0 || len(sig) == 0 {
		return Lag{}, ErrEmptyInput
	}
	if len(ref) != len(sig) {
		return Lag{}, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(ref), len(sig))
	}
	if threshold <= 0 || threshold > 1 {
		return Lag{}, ErrInvalidThreshold
	}

	coeffs, ok, err := Normalized(ref, sig)
	if err != nil {
		return Lag{}, err
	}
	if !ok {
		return Lag{}, nil
	}

	peak := 0
	for i, v := range coeffs {
		if v > coeffs[peak] {
			peak = i
		}
	}

	lag := Lag{
		Offset: peak - (len(ref) - 1),
		Coeff:  coeffs[peak],
	}
	lag.Valid = lag.Coeff >= threshold
	return lag, nil
}

// Normalized returns the full normalized cross-correlation of two
// equal-length traces. The result has length 2n-1; index i corresponds to
// lag i-(n-1), where a positive lag means sig is delayed relative to ref.
// ok is false when either trace has zero variance after mean removal, in
// which case the coefficient array is nil.
func Normalized(ref, sig []float64) (coeffs []float64, ok bool, err error) {
	if len(ref) == 0 || len(sig) == 0 {
		return nil, false, ErrEmptyInput
	}
	if len(ref) != len(sig) {
		return nil, false, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(ref), len(sig))
	}

	a := demean(ref)
	b := demean(sig)
	if zeroVariance(a, ref) || zeroVariance(b, sig) {
		return nil, false, nil
	}

	normProduct := norm(a) * norm(b)

	var corr []float64
	if len(a) >= fftThreshold {
		corr, err = correlateFFT(a, b)
		if err != nil {
			return nil, false, err
		}
	} else {
		corr = correlateDirect(a, b)
	}

	for i := range corr {
		corr[i] /= normProduct
	}
	return corr, true, nil
}

// Roll returns x circularly shifted by shift samples: out[i] = x[(i-shift)
// mod n], so a positive shift moves content towards higher indices and edge
// samples wrap around from the opposite end. Conditional averaging relies
// on this wrap-around behaviour; it is not a zero-padded shift.
func Roll(x []float64, shift int) []float64 {
	n := len(x)
	out := make([]float64, n)
	if n == 0 {
		return out
	}

	shift %= n
	if shift < 0 {
		shift += n
	}
	copy(out[shift:], x[:n-shift])
	copy(out[:shift], x[n-shift:])
	return out
}

// correlateDirect computes corr[lag] = sum_t a[t]*b[t+lag] for all lags
// -(n-1)..n-1 by direct summation over the overlap.
func correlateDirect(a, b []float64) []float64 {
	n := len(a)
	corr := make([]float64, 2*n-1)

	for lag := -(n - 1); lag <= n-1; lag++ {
		var sum float64
		if lag >= 0 {
			for t := 0; t < n-lag; t++ {
				sum += a[t] * b[t+lag]
			}
		} else {
			for t := -lag; t < n; t++ {
				sum += a[t] * b[t+lag]
			}
		}
		corr[lag+n-1] = sum
	}
	return corr
}

// correlateFFT computes the same correlation via zero-padded FFTs:
// IFFT(conj(FFT(a)) * FFT(b)). Positive lags sit at the front of the
// circular result, negative lags wrap around from the back.
func correlateFFT(a, b []float64) ([]float64, error) {
	n := len(a)
	fftSize := nextPowerOf2(2*n - 1)

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("xcorr: failed to create FFT plan: %w", err)
	}

	aPadded := make([]complex128, fftSize)
	bPadded := make([]complex128, fftSize)
	for i := 0; i < n; i++ {
		aPadded[i] = complex(a[i], 0)
		bPadded[i] = complex(b[i], 0)
	}

	aFreq := make([]complex128, fftSize)
	bFreq := make([]complex128, fftSize)
	if err := plan.Forward(aFreq, aPadded); err != nil {
		return nil, fmt.Errorf("xcorr: forward FFT failed: %w", err)
	}
	if err := plan.Forward(bFreq, bPadded); err != nil {
		return nil, fmt.Errorf("xcorr: forward FFT failed: %w", err)
	}

	prodFreq := make([]complex128, fftSize)
	for i := range prodFreq {
		aConj := complex(real(aFreq[i]), -imag(aFreq[i]))
		prodFreq[i] = aConj * bFreq[i]
	}

	prodTime := make([]complex128, fftSize)
	if err := plan.Inverse(prodTime, prodFreq); err != nil {
		return nil, fmt.Errorf("xcorr: inverse FFT failed: %w", err)
	}

	corr := make([]float64, 2*n-1)
	for lag := 0; lag < n; lag++ {
		corr[lag+n-1] = real(prodTime[lag])
	}
	for lag := -(n - 1); lag < 0; lag++ {
		corr[lag+n-1] = real(prodTime[fftSize+lag])
	}
	return corr, nil
}

func demean(x []float64) []float64 {
	var mean float64
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))

	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = v - mean
	}
	return out
}

// epsVariance bounds the demeaned energy, relative to the squared trace
// magnitude, below which a trace counts as constant. Subtracting the mean
// of a constant trace leaves rounding residue on the order of the machine
// epsilon times the trace level, so an exact zero test misses it.
const epsVariance = 1e-12

// zeroVariance reports whether a demeaned trace carries no signal beyond
// the rounding residue of mean removal.
func zeroVariance(demeaned, orig []float64) bool {
	var maxAbs float64
	for _, v := range orig {
		if a := math.Abs(v); a > maxAbs {
			maxAbs = a
		}
	}
	var sum float64
	for _, v := range demeaned {
		sum += v * v
	}
	return sum <= epsVariance*float64(len(orig))*maxAbs*maxAbs
}

func norm(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// nextPowerOf2 returns the next power of 2 >= n.
func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}

	p := 1
	for p < n {
		p *= 2
	}

	return p
}
